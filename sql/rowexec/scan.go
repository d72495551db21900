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

// compileTableScan lowers a physical TableScan into an Instruction that
// calls the module's XQuery with the access plan the analyzer
// negotiated, per §4.D/§4.G.
func (c *Compiler) compileTableScan(n *plan.TableScan) (*Instruction, error) {
	table := n.Table
	filter := n.FilterInfo()
	return leaf(n.String(), func(ctx *sql.Context, args []interface{}) (interface{}, error) {
		return table.XQuery(ctx, filter)
	}), nil
}

// compileValues lowers a literal VALUES row set into an Instruction that
// evaluates each row's expressions afresh on every execution.
func (c *Compiler) compileValues(n *plan.Values) (*Instruction, error) {
	for _, row := range n.Rows {
		if err := c.wireExprs(row); err != nil {
			return nil, err
		}
	}
	rows := n.Rows
	return leaf(n.String(), func(ctx *sql.Context, args []interface{}) (interface{}, error) {
		out := make([]sql.Row, len(rows))
		for i, row := range rows {
			r := make(sql.Row, len(row))
			for j, e := range row {
				v, err := e.Eval(ctx)
				if err != nil {
					return nil, err
				}
				r[j] = v
			}
			out[i] = r
		}
		return sql.NewSliceRowIter(out), nil
	}), nil
}
