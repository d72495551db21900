// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sql

import "io"

// Row is a positional tuple of scalar values, aligned with some relational
// node's output attributes (§6 "Result shape").
type Row []interface{}

// NewRow is sugar for building a Row literal, mirroring the teacher's
// sql.NewRow(...) constructor used throughout its tests.
func NewRow(values ...interface{}) Row {
	return Row(values)
}

// Copy returns a shallow copy of the row, used whenever a row must outlive
// the iteration that produced it (cache buffers, working tables).
func (r Row) Copy() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// RowIter is the async pull iterator every row-producing instruction
// returns (§9 Design Notes: "represent as an async pull iterator"). Go's
// goroutine-and-blocking-call model stands in for await: Next blocks the
// calling goroutine at I/O or vtab boundaries rather than suspending a
// coroutine, which is the mechanical translation of the spec's async
// iterator onto Go.
type RowIter interface {
	// Next returns the next row, or io.EOF when exhausted. Implementations
	// must check ctx.Err() between rows and return it wrapped as
	// Cancelled when set (§5 Cancellation).
	Next(ctx *Context) (Row, error)
	Close(ctx *Context) error
}

// RowIterFunc adapts a plain function into a RowIter for simple producers
// (literal rows, single-value projections).
type RowIterFunc func(ctx *Context) (Row, error)

type funcRowIter struct {
	fn   RowIterFunc
	done bool
}

func (f *funcRowIter) Next(ctx *Context) (Row, error) {
	if f.done {
		return nil, io.EOF
	}
	f.done = true
	return f.fn(ctx)
}

func (f *funcRowIter) Close(ctx *Context) error { return nil }

// NewRowIterFunc wraps a one-shot function as a RowIter.
func NewRowIterFunc(fn RowIterFunc) RowIter {
	return &funcRowIter{fn: fn}
}

// RowsToSlice drains an iterator into a slice, closing it regardless of
// error. Used by operators that must materialize a side (hash build,
// recursive-CTE working table, CacheNode buffer).
func RowsToSlice(ctx *Context, iter RowIter) ([]Row, error) {
	var out []Row
	for {
		row, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			_ = iter.Close(ctx)
			return nil, err
		}
		out = append(out, row)
	}
	return out, iter.Close(ctx)
}

// SliceRowIter is a RowIter over an in-memory slice, used by CacheNode's
// buffered replay path and by working tables.
type SliceRowIter struct {
	rows []Row
	pos  int
}

func NewSliceRowIter(rows []Row) *SliceRowIter {
	return &SliceRowIter{rows: rows}
}

func (s *SliceRowIter) Next(ctx *Context) (Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrCancelled.Wrap(err)
	}
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}

func (s *SliceRowIter) Close(ctx *Context) error { return nil }
