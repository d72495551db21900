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
	"sort"

	"github.com/dolthub/quereus/sql"
	"github.com/dolthub/quereus/sql/plan"
)

// compileSort lowers a Sort into an Instruction that materializes its
// input (sort needs the full row set; §5's "ORDER BY without LIMIT is a
// stable sort" requires sort.SliceStable) and evaluates each key against
// each row's own row-context frame.
func (c *Compiler) compileSort(n *plan.Sort) (*Instruction, error) {
	input, err := c.compileChild(n, 0)
	if err != nil {
		return nil, err
	}
	for _, k := range n.Keys {
		if err := c.wireExpr(k.Expr); err != nil {
			return nil, err
		}
	}
	inDesc := n.Input.RelType().Descriptor()
	keys := n.Keys
	return &Instruction{
		Note:   n.String(),
		Params: []*Instruction{input},
		Run: func(ctx *sql.Context, args []interface{}) (interface{}, error) {
			src := args[0].(sql.RowIter)
			rows, err := sql.RowsToSlice(ctx, src)
			if err != nil {
				return nil, err
			}
			var sortErr error
			sort.SliceStable(rows, func(i, j int) bool {
				if sortErr != nil {
					return false
				}
				less, err := rowLess(ctx, rows[i], rows[j], inDesc, keys)
				if err != nil {
					sortErr = err
				}
				return less
			})
			if sortErr != nil {
				return nil, sortErr
			}
			return sql.NewSliceRowIter(rows), nil
		},
	}, nil
}

// rowLess evaluates each sort key against a and b in turn, breaking ties
// by moving to the next key, per standard multi-key ORDER BY semantics.
func rowLess(ctx *sql.Context, a, b sql.Row, desc sql.RowDescriptor, keys []plan.SortKey) (bool, error) {
	for _, k := range keys {
		popA := ctx.PushRow(desc, a)
		av, err := k.Expr.Eval(ctx)
		popA()
		if err != nil {
			return false, err
		}
		popB := ctx.PushRow(desc, b)
		bv, err := k.Expr.Eval(ctx)
		popB()
		if err != nil {
			return false, err
		}
		cmp, isNull := sql.Compare(av, bv, k.Expr.Type())
		if isNull && av == nil && bv == nil {
			continue
		}
		if cmp == 0 {
			continue
		}
		if k.Desc {
			return cmp > 0, nil
		}
		return cmp < 0, nil
	}
	return false, nil
}
