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
	"github.com/dolthub/quereus/sql/expression"
	"github.com/dolthub/quereus/sql/plan"
)

// compileWindow lowers a Window node: it materializes its input, sorts
// it by PartitionBy then OrderBy (partitioning is just a coarser sort
// key; ROW_NUMBER's running counter falls out of detecting when the
// partition columns change between consecutive rows, §4.E), and appends
// each WindowExpr's value to every row.
func (c *Compiler) compileWindow(n *plan.Window) (*Instruction, error) {
	input, err := c.compileChild(n, 0)
	if err != nil {
		return nil, err
	}
	if err := c.wireExprs(n.PartitionBy); err != nil {
		return nil, err
	}
	for _, k := range n.OrderBy {
		if err := c.wireExpr(k.Expr); err != nil {
			return nil, err
		}
	}
	inDesc := n.Input.RelType().Descriptor()
	partitionBy := n.PartitionBy
	orderBy := n.OrderBy
	funcs := n.Funcs
	inWidth := len(n.Input.RelType().Attributes)

	sortKeys := make([]plan.SortKey, 0, len(partitionBy)+len(orderBy))
	for _, p := range partitionBy {
		sortKeys = append(sortKeys, plan.SortKey{Expr: p})
	}
	sortKeys = append(sortKeys, orderBy...)

	partitionTypes := make([]sql.Type, len(partitionBy))
	for i, p := range partitionBy {
		partitionTypes[i] = p.Type()
	}

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
			if len(sortKeys) > 0 {
				sort.SliceStable(rows, func(i, j int) bool {
					if sortErr != nil {
						return false
					}
					less, err := rowLess(ctx, rows[i], rows[j], inDesc, sortKeys)
					if err != nil {
						sortErr = err
					}
					return less
				})
				if sortErr != nil {
					return nil, sortErr
				}
			}

			partKeys, err := evalPartitionKeys(ctx, rows, inDesc, partitionBy)
			if err != nil {
				return nil, err
			}

			out := make([]sql.Row, len(rows))
			rowNum := 0
			for i, row := range rows {
				if i == 0 || !partitionKeysEqual(partKeys[i-1], partKeys[i], partitionTypes) {
					rowNum = 0
				}
				rowNum++
				extended := make(sql.Row, inWidth+len(funcs))
				copy(extended, row)
				for fi, f := range funcs {
					switch f.Kind {
					case plan.WindowRowNumber:
						extended[inWidth+fi] = int64(rowNum)
					default:
						return nil, sql.ErrUnsupported.New("unrecognized window function kind")
					}
				}
				out[i] = extended
			}
			return sql.NewSliceRowIter(out), nil
		},
	}, nil
}

func evalPartitionKeys(ctx *sql.Context, rows []sql.Row, desc sql.RowDescriptor, partitionBy []expression.Expression) ([]sql.Row, error) {
	keys := make([]sql.Row, len(rows))
	for i, row := range rows {
		pop := ctx.PushRow(desc, row)
		key := make(sql.Row, len(partitionBy))
		for j, p := range partitionBy {
			v, err := p.Eval(ctx)
			if err != nil {
				pop()
				return nil, err
			}
			key[j] = v
		}
		pop()
		keys[i] = key
	}
	return keys, nil
}

func partitionKeysEqual(a, b sql.Row, types []sql.Type) bool {
	for i := range a {
		cmp, _ := sql.Compare(a[i], b[i], types[i])
		if cmp != 0 {
			return false
		}
	}
	return true
}
