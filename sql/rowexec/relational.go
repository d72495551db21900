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

package rowexec

import (
	"io"

	"github.com/spf13/cast"

	"github.com/dolthub/quereus/sql"
	"github.com/dolthub/quereus/sql/plan"
)

// mapRowIter wraps a source RowIter, applying fn to each row; used by
// Filter (predicate test) and Project (re-projection) alike.
type mapRowIter struct {
	ctx    *sql.Context
	source sql.RowIter
	inDesc sql.RowDescriptor
	fn     func(row sql.Row) (sql.Row, bool, error)
}

func (m *mapRowIter) Next(ctx *sql.Context) (sql.Row, error) {
	for {
		row, err := m.source.Next(ctx)
		if err != nil {
			return nil, err
		}
		pop := ctx.PushRow(m.inDesc, row)
		out, keep, err := m.fn(row)
		pop()
		if err != nil {
			return nil, err
		}
		if keep {
			return out, nil
		}
	}
}

func (m *mapRowIter) Close(ctx *sql.Context) error { return m.source.Close(ctx) }

func (c *Compiler) compileFilter(n *plan.Filter) (*Instruction, error) {
	input, err := c.compileChild(n, 0)
	if err != nil {
		return nil, err
	}
	if err := c.wireExpr(n.Predicate); err != nil {
		return nil, err
	}
	inDesc := n.Input.RelType().Descriptor()
	pred := n.Predicate
	return &Instruction{
		Note:   n.String(),
		Params: []*Instruction{input},
		Run: func(ctx *sql.Context, args []interface{}) (interface{}, error) {
			src := args[0].(sql.RowIter)
			return &mapRowIter{
				ctx:    ctx,
				source: src,
				inDesc: inDesc,
				fn: func(row sql.Row) (sql.Row, bool, error) {
					v, err := pred.Eval(ctx)
					if err != nil {
						return nil, false, err
					}
					if v == nil {
						return row, false, nil
					}
					ok, err := cast.ToBoolE(v)
					if err != nil {
						return nil, false, sql.ErrTypeMismatch.New(err.Error())
					}
					return row, ok, nil
				},
			}, nil
		},
	}, nil
}

func (c *Compiler) compileProject(n *plan.Project) (*Instruction, error) {
	input, err := c.compileChild(n, 0)
	if err != nil {
		return nil, err
	}
	if err := c.wireExprs(n.Projections); err != nil {
		return nil, err
	}
	inDesc := n.Input.RelType().Descriptor()
	projections := n.Projections
	return &Instruction{
		Note:   n.String(),
		Params: []*Instruction{input},
		Run: func(ctx *sql.Context, args []interface{}) (interface{}, error) {
			src := args[0].(sql.RowIter)
			return &mapRowIter{
				ctx:    ctx,
				source: src,
				inDesc: inDesc,
				fn: func(row sql.Row) (sql.Row, bool, error) {
					out := make(sql.Row, len(projections))
					for i, p := range projections {
						v, err := p.Eval(ctx)
						if err != nil {
							return nil, false, err
						}
						out[i] = v
					}
					return out, true, nil
				},
			}, nil
		},
	}, nil
}

// compileCache compiles a Cache node, whose whole point is re-execution
// across repeated Scheduler.Execute calls on the same compiled
// Instruction (a nested-loop's non-correlated inner side re-probed per
// outer row, a correlated subquery called once per binding but against
// an unchanging underlying relation): the first pass streams rows from
// the source while buffering them, up to Threshold; once complete,
// every later pass replays the buffer instead of re-running the source
// at all. Exceeding the threshold permanently disables buffering and
// every pass reverts to re-running the source. This is the one node
// whose Instruction intentionally holds state across executions, since
// that state (not the row stream itself) is its entire purpose.
func (c *Compiler) compileCache(n *plan.Cache) (*Instruction, error) {
	source, err := c.compileChild(n, 0)
	if err != nil {
		return nil, err
	}
	threshold := n.Threshold
	var buffer []sql.Row
	buffered := false
	overflowed := false
	return &Instruction{
		Note: n.String(),
		Run: func(ctx *sql.Context, args []interface{}) (interface{}, error) {
			if buffered {
				return sql.NewSliceRowIter(buffer), nil
			}
			res, err := (Scheduler{}).Execute(ctx, source)
			if err != nil {
				return nil, err
			}
			src := res.(sql.RowIter)
			if overflowed {
				return src, nil
			}
			return &cacheBufferingRowIter{
				source:    src,
				threshold: threshold,
				onDone: func(rows []sql.Row, complete bool) {
					if complete {
						buffer = rows
						buffered = true
					} else {
						overflowed = true
					}
				},
			}, nil
		},
	}, nil
}

// cacheBufferingRowIter streams from source, accumulating into a buffer
// up to threshold rows, and reports the outcome via onDone once the
// source is exhausted or the threshold is exceeded.
type cacheBufferingRowIter struct {
	source    sql.RowIter
	threshold int
	buffer    []sql.Row
	reported  bool
	onDone    func(rows []sql.Row, complete bool)
}

func (c *cacheBufferingRowIter) Next(ctx *sql.Context) (sql.Row, error) {
	row, err := c.source.Next(ctx)
	if err != nil {
		if err == io.EOF && !c.reported {
			c.reported = true
			c.onDone(c.buffer, true)
		}
		return nil, err
	}
	if c.buffer != nil || len(c.buffer) < c.threshold {
		if len(c.buffer) >= c.threshold {
			c.buffer = nil
			if !c.reported {
				c.reported = true
				c.onDone(nil, false)
			}
		} else {
			c.buffer = append(c.buffer, row)
		}
	}
	return row, nil
}

func (c *cacheBufferingRowIter) Close(ctx *sql.Context) error { return c.source.Close(ctx) }

func (c *Compiler) compileSink(n *plan.Sink) (*Instruction, error) {
	return c.compileChild(n, 0)
}

func (c *Compiler) compileLimitOffset(n *plan.LimitOffset) (*Instruction, error) {
	input, err := c.compileChild(n, 0)
	if err != nil {
		return nil, err
	}
	if n.Limit != nil {
		if err := c.wireExpr(n.Limit); err != nil {
			return nil, err
		}
	}
	if n.Offset != nil {
		if err := c.wireExpr(n.Offset); err != nil {
			return nil, err
		}
	}
	limitExpr, offsetExpr := n.Limit, n.Offset
	return &Instruction{
		Note:   n.String(),
		Params: []*Instruction{input},
		Run: func(ctx *sql.Context, args []interface{}) (interface{}, error) {
			src := args[0].(sql.RowIter)
			limit := int64(-1)
			if limitExpr != nil {
				v, err := limitExpr.Eval(ctx)
				if err != nil {
					return nil, err
				}
				if limit, err = cast.ToInt64E(v); err != nil {
					return nil, sql.ErrTypeMismatch.New(err.Error())
				}
			}
			offset := int64(0)
			if offsetExpr != nil {
				v, err := offsetExpr.Eval(ctx)
				if err != nil {
					return nil, err
				}
				if offset, err = cast.ToInt64E(v); err != nil {
					return nil, sql.ErrTypeMismatch.New(err.Error())
				}
			}
			return &limitOffsetRowIter{source: src, limit: limit, offset: offset}, nil
		},
	}, nil
}

type limitOffsetRowIter struct {
	source  sql.RowIter
	limit   int64
	offset  int64
	skipped int64
	emitted int64
}

func (l *limitOffsetRowIter) Next(ctx *sql.Context) (sql.Row, error) {
	if l.limit >= 0 && l.emitted >= l.limit {
		return nil, io.EOF
	}
	for l.skipped < l.offset {
		if _, err := l.source.Next(ctx); err != nil {
			return nil, err
		}
		l.skipped++
	}
	row, err := l.source.Next(ctx)
	if err != nil {
		return nil, err
	}
	l.emitted++
	return row, nil
}

func (l *limitOffsetRowIter) Close(ctx *sql.Context) error { return l.source.Close(ctx) }

func (c *Compiler) compileDistinct(n *plan.Distinct) (*Instruction, error) {
	input, err := c.compileChild(n, 0)
	if err != nil {
		return nil, err
	}
	types := attrTypes(n.Input.RelType().Attributes)
	return &Instruction{
		Note:   n.String(),
		Params: []*Instruction{input},
		Run: func(ctx *sql.Context, args []interface{}) (interface{}, error) {
			src := args[0].(sql.RowIter)
			return &distinctRowIter{source: src, seen: newRowSet(nil, types)}, nil
		},
	}, nil
}

type distinctRowIter struct {
	source sql.RowIter
	seen   *rowSet
}

func (d *distinctRowIter) Next(ctx *sql.Context) (sql.Row, error) {
	for {
		row, err := d.source.Next(ctx)
		if err != nil {
			return nil, err
		}
		if d.seen.add(row) {
			return row, nil
		}
	}
}

func (d *distinctRowIter) Close(ctx *sql.Context) error { return d.source.Close(ctx) }

func attrTypes(attrs []sql.Attribute) []sql.Type {
	out := make([]sql.Type, len(attrs))
	for i, a := range attrs {
		out[i] = a.Type
	}
	return out
}
