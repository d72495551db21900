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

	"github.com/dolthub/quereus/sql"
	"github.com/dolthub/quereus/sql/plan"
)

// compileSetOperation lowers a SetOperation. UnionAll is plain
// concatenation; every other kind is resolved by hashed deduplication
// using rowSet, materializing whichever side(s) membership testing
// needs. SetDiff resolves the symmetric-difference reading of DIFF
// (see DESIGN.md).
func (c *Compiler) compileSetOperation(n *plan.SetOperation) (*Instruction, error) {
	left, err := c.compileChild(n, 0)
	if err != nil {
		return nil, err
	}
	right, err := c.compileChild(n, 1)
	if err != nil {
		return nil, err
	}
	types := attrTypes(n.OutputAttributes())
	kind := n.Kind
	return &Instruction{
		Note:   n.String(),
		Params: []*Instruction{left, right},
		Run: func(ctx *sql.Context, args []interface{}) (interface{}, error) {
			leftIter := args[0].(sql.RowIter)
			rightIter := args[1].(sql.RowIter)

			if kind == plan.SetUnionAll {
				return newConcatRowIter(leftIter, rightIter), nil
			}

			leftRows, err := sql.RowsToSlice(ctx, leftIter)
			if err != nil {
				_ = rightIter.Close(ctx)
				return nil, err
			}
			rightRows, err := sql.RowsToSlice(ctx, rightIter)
			if err != nil {
				return nil, err
			}

			switch kind {
			case plan.SetUnion:
				out := newRowSet(nil, types)
				result := make([]sql.Row, 0, len(leftRows)+len(rightRows))
				for _, row := range leftRows {
					if out.add(row) {
						result = append(result, row)
					}
				}
				for _, row := range rightRows {
					if out.add(row) {
						result = append(result, row)
					}
				}
				return sql.NewSliceRowIter(result), nil

			case plan.SetIntersect:
				rightSet := newRowSet(nil, types)
				for _, row := range rightRows {
					rightSet.add(row)
				}
				seen := newRowSet(nil, types)
				result := make([]sql.Row, 0, len(leftRows))
				for _, row := range leftRows {
					if rightSet.contains(row) && seen.add(row) {
						result = append(result, row)
					}
				}
				return sql.NewSliceRowIter(result), nil

			case plan.SetExcept:
				rightSet := newRowSet(nil, types)
				for _, row := range rightRows {
					rightSet.add(row)
				}
				seen := newRowSet(nil, types)
				result := make([]sql.Row, 0, len(leftRows))
				for _, row := range leftRows {
					if !rightSet.contains(row) && seen.add(row) {
						result = append(result, row)
					}
				}
				return sql.NewSliceRowIter(result), nil

			case plan.SetDiff:
				leftSet := newRowSet(nil, types)
				for _, row := range leftRows {
					leftSet.add(row)
				}
				rightSet := newRowSet(nil, types)
				for _, row := range rightRows {
					rightSet.add(row)
				}
				seen := newRowSet(nil, types)
				result := make([]sql.Row, 0, len(leftRows)+len(rightRows))
				for _, row := range leftRows {
					if !rightSet.contains(row) && seen.add(row) {
						result = append(result, row)
					}
				}
				for _, row := range rightRows {
					if !leftSet.contains(row) && seen.add(row) {
						result = append(result, row)
					}
				}
				return sql.NewSliceRowIter(result), nil

			default:
				return nil, sql.ErrInvariantViolation.New("unrecognized SetOpKind")
			}
		},
	}, nil
}

// concatRowIter streams first to exhaustion, then second; UnionAll's
// whole implementation.
type concatRowIter struct {
	first, second sql.RowIter
	onFirst       bool
}

func newConcatRowIter(first, second sql.RowIter) *concatRowIter {
	return &concatRowIter{first: first, second: second, onFirst: true}
}

func (c *concatRowIter) Next(ctx *sql.Context) (sql.Row, error) {
	if c.onFirst {
		row, err := c.first.Next(ctx)
		if err == nil {
			return row, nil
		}
		if err != io.EOF {
			return nil, err
		}
		c.onFirst = false
	}
	return c.second.Next(ctx)
}

func (c *concatRowIter) Close(ctx *sql.Context) error {
	err1 := c.first.Close(ctx)
	err2 := c.second.Close(ctx)
	if err1 != nil {
		return err1
	}
	return err2
}
