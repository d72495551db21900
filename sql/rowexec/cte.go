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
	"github.com/dolthub/quereus/sql"
	"github.com/dolthub/quereus/sql/plan"
)

// compileCTE materializes Body once under Name in the runtime's
// working-table map, then evaluates In, whose CTERef leaves read it back
// by name. Using the working-table map for non-recursive CTEs too keeps
// a single name-binding mechanism instead of two.
func (c *Compiler) compileCTE(n *plan.CTE) (*Instruction, error) {
	body, err := c.compileChild(n, 0)
	if err != nil {
		return nil, err
	}
	in, err := c.compileChild(n, 1)
	if err != nil {
		return nil, err
	}
	name := n.Name
	return &Instruction{
		Note: n.String(),
		Run: func(ctx *sql.Context, args []interface{}) (interface{}, error) {
			res, err := (Scheduler{}).Execute(ctx, body)
			if err != nil {
				return nil, err
			}
			rows, err := sql.RowsToSlice(ctx, res.(sql.RowIter))
			if err != nil {
				return nil, err
			}
			ctx.SetWorkingTable(name, rows)
			defer ctx.ClearWorkingTable(name)
			res, err = (Scheduler{}).Execute(ctx, in)
			if err != nil {
				return nil, err
			}
			return res, nil
		},
	}, nil
}

// compileCTERef reads back a CTE's bound rows from the runtime's
// working-table map.
func (c *Compiler) compileCTERef(n *plan.CTERef) (*Instruction, error) {
	name := n.Name
	return leaf(n.String(), func(ctx *sql.Context, args []interface{}) (interface{}, error) {
		rows, ok := ctx.WorkingTable(name)
		if !ok {
			return nil, sql.ErrInvariantViolation.New("CTERef " + name + " read before its CTE was bound")
		}
		return sql.NewSliceRowIter(rows), nil
	}), nil
}

// compileWorkingTableRef reads the current iteration's delta for a
// recursive CTE, installed by compileRecursiveCTE between iterations.
func (c *Compiler) compileWorkingTableRef(n *plan.WorkingTableRef) (*Instruction, error) {
	name := n.Name
	return leaf(n.String(), func(ctx *sql.Context, args []interface{}) (interface{}, error) {
		rows, ok := ctx.WorkingTable(name)
		if !ok {
			return nil, sql.ErrInvariantViolation.New("WorkingTableRef " + name + " read outside a recursive iteration")
		}
		return sql.NewSliceRowIter(rows), nil
	}), nil
}

// compileRecursiveCTE runs the seminaive fixpoint loop of §4.E: Base is
// evaluated once to seed both the accumulated result and the first
// working-table delta; Recursive is then re-evaluated against each
// delta (read via WorkingTableRef) until a delta is empty or
// IterationLimit is reached. Non-UnionAll recursion dedups each new
// delta against everything accumulated so far using rowSet, matching
// SetOperation's hashed-dedup strategy.
func (c *Compiler) compileRecursiveCTE(n *plan.RecursiveCTE) (*Instruction, error) {
	base, err := c.compileChild(n, 0)
	if err != nil {
		return nil, err
	}
	recursive, err := c.compileChild(n, 1)
	if err != nil {
		return nil, err
	}
	in, err := c.compileChild(n, 2)
	if err != nil {
		return nil, err
	}
	name := n.Name
	unionAll := n.UnionAll
	iterationLimit := n.IterationLimit
	types := attrTypes(n.Base.RelType().Attributes)

	return &Instruction{
		Note: n.String(),
		Run: func(ctx *sql.Context, args []interface{}) (interface{}, error) {
			res, err := (Scheduler{}).Execute(ctx, base)
			if err != nil {
				return nil, err
			}
			delta, err := sql.RowsToSlice(ctx, res.(sql.RowIter))
			if err != nil {
				return nil, err
			}

			var seen *rowSet
			if !unionAll {
				seen = newRowSet(nil, types)
				deduped := make([]sql.Row, 0, len(delta))
				for _, row := range delta {
					if seen.add(row) {
						deduped = append(deduped, row)
					}
				}
				delta = deduped
			}

			full := append([]sql.Row{}, delta...)
			iterations := 0
			for len(delta) > 0 {
				if iterationLimit > 0 && iterations >= iterationLimit {
					ctx.ClearWorkingTable(name)
					return nil, sql.ErrRecursionLimit.New(iterationLimit)
				}
				iterations++
				ctx.SetWorkingTable(name, delta)
				res, err = (Scheduler{}).Execute(ctx, recursive)
				if err != nil {
					ctx.ClearWorkingTable(name)
					return nil, err
				}
				next, err := sql.RowsToSlice(ctx, res.(sql.RowIter))
				if err != nil {
					ctx.ClearWorkingTable(name)
					return nil, err
				}
				if !unionAll {
					deduped := make([]sql.Row, 0, len(next))
					for _, row := range next {
						if seen.add(row) {
							deduped = append(deduped, row)
						}
					}
					next = deduped
				}
				full = append(full, next...)
				delta = next
			}
			ctx.ClearWorkingTable(name)

			ctx.SetWorkingTable(name, full)
			defer ctx.ClearWorkingTable(name)
			return (Scheduler{}).Execute(ctx, in)
		},
	}, nil
}
