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

// MemoryTable is the sql.Table a memory Module hands back for a given
// schema: a committed BaseLayer plus the event emitter DDL uses to
// invalidate cached plans.
type MemoryTable struct {
	schema sql.TableSchema
	base   *BaseLayer
	events *emitter
}

// NewMemoryTable builds an empty table for schema.
func NewMemoryTable(schema sql.TableSchema) *MemoryTable {
	return &MemoryTable{
		schema: schema,
		base:   NewBaseLayer(schema),
		events: newEmitter(),
	}
}

func (t *MemoryTable) Schema() sql.TableSchema { return t.schema }

func (t *MemoryTable) Events() sql.EventEmitter { return t.events }

// connection resolves (and lazily creates) the cached connection for
// this table within ctx, per §4.F "Connection caching": scans and
// mutations share one connection per (schema, table) for the lifetime
// of the statement/transaction that created it.
func (t *MemoryTable) connection(ctx *sql.Context) (*MemoryTableConnection, error) {
	if v, ok := ctx.Conn("", t.schema.Name); ok {
		return v.(*MemoryTableConnection), nil
	}
	conn, _ := t.CreateConnection(ctx)
	mc := conn.(*MemoryTableConnection)
	if err := mc.Begin(ctx); err != nil {
		return nil, err
	}
	ctx.SetConn("", t.schema.Name, mc)
	return mc, nil
}

// CreateConnection implements the richer per-connection transaction
// style (§4.G); this module never implements the XBegin/.../XRollbackTo
// callback style.
func (t *MemoryTable) CreateConnection(ctx *sql.Context) (sql.VirtualTableConnection, bool) {
	return newMemoryTableConnection(t), true
}

func (t *MemoryTable) XBegin(ctx *sql.Context) error      { return sql.ErrUnsupported.New("XBegin: table uses CreateConnection") }
func (t *MemoryTable) XCommit(ctx *sql.Context) error     { return sql.ErrUnsupported.New("XCommit: table uses CreateConnection") }
func (t *MemoryTable) XRollback(ctx *sql.Context) error   { return sql.ErrUnsupported.New("XRollback: table uses CreateConnection") }
func (t *MemoryTable) XSavepoint(ctx *sql.Context, name string) error {
	return sql.ErrUnsupported.New("XSavepoint: table uses CreateConnection")
}
func (t *MemoryTable) XRelease(ctx *sql.Context, name string) error {
	return sql.ErrUnsupported.New("XRelease: table uses CreateConnection")
}
func (t *MemoryTable) XRollbackTo(ctx *sql.Context, name string) error {
	return sql.ErrUnsupported.New("XRollbackTo: table uses CreateConnection")
}

// XExecutePlan is never reachable: Module.Supports always reports
// ok=false, so the analyzer never hands this table a pushed-down
// subtree.
func (t *MemoryTable) XExecutePlan(ctx *sql.Context, node interface{}, execCtx interface{}) (sql.RowIter, error) {
	return nil, sql.ErrUnsupported.New("XExecutePlan: memory module has no push-down support")
}

// XQuery serves either a point lookup (when the chosen access plan
// carries a pointLookup Opaque payload) or a full scan, both through the
// connection's merged read view (§4.H "Read protocol").
func (t *MemoryTable) XQuery(ctx *sql.Context, filter sql.FilterInfo) (sql.RowIter, error) {
	conn, err := t.connection(ctx)
	if err != nil {
		return nil, err
	}
	if pl, ok := filter.Opaque.(pointLookup); ok {
		row, found := conn.getByKey(pl.key)
		if !found {
			return sql.NewSliceRowIter(nil), nil
		}
		return sql.NewSliceRowIter([]sql.Row{row}), nil
	}
	desc := len(filter.RequiredOrdering) > 0 && filter.RequiredOrdering[0].Desc
	rows := conn.scanAll(desc)
	if filter.Limit > 0 && int64(len(rows)) > filter.Limit {
		rows = rows[:filter.Limit]
	}
	return sql.NewSliceRowIter(rows), nil
}

// Update applies one mutation through the connection's pending overlay,
// enforcing the structural constraints storage can check on its own
// (NOT NULL, PRIMARY KEY, UNIQUE) under the requested ConflictPolicy; it
// never evaluates CHECK/ASSERTION expressions since TableSchema keeps
// those as opaque text (schema.go) with no parser reachable from this
// package — their enforcement is the engine layer's job, the same as
// assertions (see DESIGN.md).
func (t *MemoryTable) Update(ctx *sql.Context, op string, newRow sql.Row, oldKey sql.Row, onConflict sql.ConflictPolicy) (sql.Row, error) {
	conn, err := t.connection(ctx)
	if err != nil {
		return nil, err
	}

	switch op {
	case "delete":
		oldRow, found := conn.getByKey(oldKey)
		if !found {
			return nil, nil
		}
		conn.delete(oldKey, oldRow)
		return oldRow, nil

	case "insert":
		if err := t.checkNotNull(newRow); err != nil {
			return nil, err
		}
		key, err := t.schema.ExtractKey(newRow)
		if err != nil {
			return nil, err
		}
		if _, exists := conn.getByKey(key); exists {
			switch onConflict {
			case sql.ConflictIgnore:
				return nil, nil
			case sql.ConflictReplace:
				oldRow, _ := conn.getByKey(key)
				conn.put(key, newRow, oldRow, true)
				return newRow, nil
			default:
				return nil, sql.ErrPrimaryKeyViolation.New(key)
			}
		}
		if err := t.checkUnique(conn, newRow, key, nil); err != nil {
			return t.resolveConflict(onConflict, err)
		}
		conn.put(key, newRow, nil, false)
		return newRow, nil

	case "update":
		oldRow, found := conn.getByKey(oldKey)
		if !found {
			return nil, nil
		}
		if err := t.checkNotNull(newRow); err != nil {
			return nil, err
		}
		newKey, err := t.schema.ExtractKey(newRow)
		if err != nil {
			return nil, err
		}
		if !rowKeyEqual(oldKey, newKey) {
			if _, exists := conn.getByKey(newKey); exists {
				return t.resolveConflict(onConflict, sql.ErrPrimaryKeyViolation.New(newKey))
			}
		}
		if err := t.checkUnique(conn, newRow, newKey, oldRow); err != nil {
			return t.resolveConflict(onConflict, err)
		}
		if !rowKeyEqual(oldKey, newKey) {
			conn.delete(oldKey, oldRow)
			conn.put(newKey, newRow, nil, false)
		} else {
			conn.put(newKey, newRow, oldRow, true)
		}
		return newRow, nil
	}

	return nil, sql.ErrInvariantViolation.New("unknown DML op " + op)
}

// resolveConflict applies the requested ConflictPolicy to a constraint
// violation detected before any overlay mutation was made: IGNORE drops
// the row silently; every other policy, REPLACE included, returns the
// violation unchanged (REPLACE does not remove the conflicting row here).
func (t *MemoryTable) resolveConflict(policy sql.ConflictPolicy, violation error) (sql.Row, error) {
	switch policy {
	case sql.ConflictIgnore:
		return nil, nil
	default:
		return nil, violation
	}
}

func (t *MemoryTable) checkNotNull(row sql.Row) error {
	for i, col := range t.schema.Columns {
		if !col.Nullable && i < len(row) && row[i] == nil {
			return sql.ErrNotNullViolation.New(col.Name)
		}
	}
	return nil
}

// checkUnique enforces every UNIQUE secondary index against the
// connection's merged read view, skipping the row's own prior identity
// (oldRow) so an UPDATE that leaves a unique column unchanged doesn't
// spuriously conflict with itself. An index key containing NULL never
// conflicts, so any number of rows may hold NULL in a unique column.
func (t *MemoryTable) checkUnique(conn *MemoryTableConnection, row sql.Row, key sql.Row, oldRow sql.Row) error {
	for _, si := range t.base.secondary {
		if !si.def.Unique {
			continue
		}
		newKey := indexKey(row, si.def)
		hasNull := false
		for _, v := range newKey {
			if v == nil {
				hasNull = true
				break
			}
		}
		if hasNull {
			continue
		}
		if oldRow != nil && rowKeyEqual(newKey, indexKey(oldRow, si.def)) {
			continue
		}
		for _, pk := range conn.lookupIndex(si.def.Name, newKey) {
			if !rowKeyEqual(pk, key) {
				return sql.ErrUniqueViolation.New(si.def.Name)
			}
		}
	}
	return nil
}

func rowKeyEqual(a, b sql.Row) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// pointLookup is the Opaque payload GetBestAccessPlan hands back for an
// equality match on every primary-key column.
type pointLookup struct {
	key sql.Row
}
