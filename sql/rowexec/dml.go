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

// compileDmlExecutor lowers the sole mutation point: for each Source row
// it slices out the OLD/NEW halves by index, applies affinity coercion
// to the NEW half for INSERT/UPDATE, extracts the primary key from the
// OLD half for UPDATE/DELETE, and invokes Table.Update, yielding the
// resulting row for Returning (or a plain row-count consumer) to use.
func (c *Compiler) compileDmlExecutor(n *plan.DmlExecutor) (*Instruction, error) {
	input, err := c.compileChild(n, 0)
	if err != nil {
		return nil, err
	}
	op := n.Op.String()
	schema := n.Schema
	table := n.Table
	onConflict := n.OnConflict
	newColumns := n.NewColumns
	oldColumns := n.OldColumns
	columns := schema.Columns

	return &Instruction{
		Note:   n.String(),
		Params: []*Instruction{input},
		Run: func(ctx *sql.Context, args []interface{}) (interface{}, error) {
			src := args[0].(sql.RowIter)
			return &dmlRowIter{
				source:     src,
				op:         op,
				schema:     schema,
				table:      table,
				onConflict: onConflict,
				newColumns: newColumns,
				oldColumns: oldColumns,
				columns:    columns,
			}, nil
		},
	}, nil
}

type dmlRowIter struct {
	source     sql.RowIter
	op         string
	schema     sql.TableSchema
	table      sql.Table
	onConflict sql.ConflictPolicy
	newColumns []int
	oldColumns []int
	columns    []sql.ColumnDef
}

func (d *dmlRowIter) Next(ctx *sql.Context) (sql.Row, error) {
	row, err := d.source.Next(ctx)
	if err != nil {
		return nil, err
	}

	var newRow sql.Row
	if len(d.newColumns) > 0 {
		newRow = make(sql.Row, len(d.newColumns))
		for i, idx := range d.newColumns {
			v := row[idx]
			if i < len(d.columns) {
				v = sql.CoerceTo(v, d.columns[i].Affinity)
			}
			newRow[i] = v
		}
	}

	var oldKey sql.Row
	if len(d.oldColumns) > 0 {
		oldRow := make(sql.Row, len(d.oldColumns))
		for i, idx := range d.oldColumns {
			oldRow[i] = row[idx]
		}
		oldKey, err = d.schema.ExtractKey(oldRow)
		if err != nil {
			return nil, err
		}
	}

	return d.table.Update(ctx, d.op, newRow, oldKey, d.onConflict)
}

func (d *dmlRowIter) Close(ctx *sql.Context) error { return d.source.Close(ctx) }

func (c *Compiler) compileReturning(n *plan.Returning) (*Instruction, error) {
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

// compileBlock is a Block's whole job: carry Params through to the
// prepared-statement layer untouched, while its own execution is simply
// running Input.
func (c *Compiler) compileBlock(n *plan.Block) (*Instruction, error) {
	return c.compileChild(n, 0)
}

// drainCount runs src to exhaustion, discarding rows but counting them;
// EXPLAIN ANALYZE uses it to count the rows its Target produced.
func drainCount(ctx *sql.Context, src sql.RowIter) (int64, error) {
	var n int64
	for {
		_, err := src.Next(ctx)
		if err != nil {
			if err == io.EOF {
				return n, src.Close(ctx)
			}
			return n, err
		}
		n++
	}
}
