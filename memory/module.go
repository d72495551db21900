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

package memory

import (
	"github.com/dolthub/quereus/sql"
)

// ModuleName is the identifier statements reference via `USING memory(...)`
// and the name TableSchema.ModuleName carries for tables this module owns.
const ModuleName = "memory"

// Module is the built-in in-memory virtual-table provider (§4.G, §4.H): a
// process-local table per schema, with no on-disk backing, fronted by the
// MVCC transaction overlay implemented in this package.
type Module struct{}

// NewModule constructs the in-memory module. There is exactly one useful
// instance; callers register it once per sql.ModuleRegistry.
func NewModule() *Module { return &Module{} }

func (m *Module) Name() string { return ModuleName }

func (m *Module) Create(ctx *sql.Context, db string, schema sql.TableSchema) (sql.Table, error) {
	return NewMemoryTable(schema), nil
}

// Connect rebinds to an existing in-memory table. Since this module keeps
// no durable state of its own, there is nothing to reattach to beyond
// what aux already carries; a caller that wants a previously-created
// table back must pass it as aux.
func (m *Module) Connect(ctx *sql.Context, db string, moduleName string, schema sql.TableSchema, aux interface{}) (sql.Table, error) {
	if t, ok := aux.(*MemoryTable); ok {
		return t, nil
	}
	return NewMemoryTable(schema), nil
}

func (m *Module) Destroy(ctx *sql.Context, db string, table sql.Table) error {
	if mt, ok := table.(*MemoryTable); ok {
		mt.events.Emit("destroyed", mt.schema.Name)
	}
	return nil
}

// GetBestAccessPlan recognizes the one access path this module can
// exploit beyond a full scan: an equality constraint covering every
// column of the effective primary key resolves to an O(log n) point
// lookup (§4.D, §4.H).
func (m *Module) GetBestAccessPlan(ctx *sql.Context, schema sql.TableSchema, req sql.AccessPlanRequest) (sql.AccessPlan, bool) {
	handled := make([]bool, len(req.Filters))
	pk := schema.EffectivePrimaryKey()
	eqByColumn := make(map[int]interface{}, len(pk))
	for _, f := range req.Filters {
		if f.Usable && f.Op == sql.FilterEQ {
			eqByColumn[f.ColumnIndex] = f.Value
		}
	}
	key := make(sql.Row, len(pk))
	isPoint := len(pk) > 0
	for i, c := range pk {
		v, ok := eqByColumn[c.ColumnIndex]
		if !ok {
			isPoint = false
			break
		}
		key[i] = v
	}
	rows := uint64(1000)
	if req.EstimatedRows != nil {
		rows = *req.EstimatedRows
	}
	if isPoint {
		for i, f := range req.Filters {
			if f.Usable && f.Op == sql.FilterEQ {
				for _, c := range pk {
					if f.ColumnIndex == c.ColumnIndex {
						handled[i] = true
					}
				}
			}
		}
		return sql.AccessPlan{
			HandledFilters: handled,
			Cost:           1,
			Rows:           1,
			IsSet:          true,
			Opaque:         pointLookup{key: key},
		}, true
	}

	var ordering []sql.OrderingKey
	if len(pk) > 0 {
		ordering = []sql.OrderingKey{{ColumnIndex: pk[0].ColumnIndex, Desc: pk[0].Desc}}
	}
	return sql.AccessPlan{
		HandledFilters:   handled,
		Cost:             float64(rows),
		Rows:             rows,
		ProvidesOrdering: ordering,
	}, true
}

// Supports reports no push-down: this module has no query engine of its
// own to hand a subtree to.
func (m *Module) Supports(node interface{}) (float64, interface{}, bool) { return 0, nil, false }

func (m *Module) CreateIndex(ctx *sql.Context, table sql.Table, index sql.IndexDef) error {
	mt, ok := table.(*MemoryTable)
	if !ok {
		return sql.ErrInvariantViolation.New("memory.CreateIndex given a non-memory table")
	}
	mt.base.AddIndex(index)
	return nil
}

func (m *Module) Capabilities() sql.ModuleCapabilities {
	return sql.ModuleCapabilities{Transactions: true, Savepoints: true, Indexing: true, PushDown: false}
}
