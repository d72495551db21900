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

// ConflictPolicy is the ON CONFLICT resolution a DML statement requests
// (§4.H "Failure semantics", §7).
type ConflictPolicy int

const (
	ConflictAbort ConflictPolicy = iota
	ConflictRollback
	ConflictReplace
	ConflictIgnore
	ConflictFail
)

// FilterOp is a predicate operator a module may be asked to handle via
// getBestAccessPlan (§4.D).
type FilterOp int

const (
	FilterEQ FilterOp = iota
	FilterGT
	FilterGE
	FilterLT
	FilterLE
	FilterMatch
	FilterLike
	FilterGlob
	FilterIsNull
	FilterIsNotNull
	FilterIn
	FilterNotIn
)

// FilterConstraint is one predicate extracted from the filter surrounding
// a TableReference, offered to a module's getBestAccessPlan.
type FilterConstraint struct {
	ColumnIndex int
	Op          FilterOp
	Value       interface{}
	// Usable is false when the constraint's value is not available at
	// plan time (e.g. depends on an outer correlated column); modules
	// must not claim to handle an unusable constraint.
	Usable bool
}

// OrderingKey is one column/direction pair of a requested or provided
// ordering.
type OrderingKey struct {
	ColumnIndex int
	Desc        bool
}

// AccessPlanRequest is passed to a module's getBestAccessPlan (§4.D).
type AccessPlanRequest struct {
	Columns         []ColumnDef
	Filters         []FilterConstraint
	RequiredOrdering []OrderingKey
	Limit           int64 // <=0 means unbounded
	EstimatedRows   *uint64
}

// AccessPlan is a module's chosen scan strategy, returned from
// getBestAccessPlan.
type AccessPlan struct {
	// HandledFilters must have exactly len(request.Filters) entries per
	// §6 "modules must honor handledFilters.length == filters.length".
	HandledFilters []bool
	Cost           float64
	Rows           uint64
	// ProvidesOrdering is non-nil when the scan's natural iteration order
	// already satisfies (a prefix of) an ordering.
	ProvidesOrdering []OrderingKey
	IsSet            bool
	// ResidualFilter, if non-nil, is evaluated by the engine in addition
	// to (not instead of) any unhandled filters; modules rarely need this
	// since unhandled filters already remain outside HandledFilters.
	ResidualFilter interface{}
	Explains       []string
	// Opaque is module-defined state threaded through to xQuery's
	// FilterInfo, carrying whatever the module needs to actually perform
	// the chosen access path (e.g. a resolved index name or key bounds).
	Opaque interface{}
}

// FilterInfo is handed to Table.XQuery, carrying the access plan the
// optimizer chose for this scan.
type FilterInfo struct {
	Filters          []FilterConstraint
	HandledFilters   []bool
	RequiredOrdering []OrderingKey
	Limit            int64
	Opaque           interface{}
}

// EventEmitter lets a module announce schema/data changes to interested
// listeners (§4.G). The core only uses this to invalidate cached plans
// when DDL changes a table's shape; concrete subscription mechanisms are
// module-defined.
type EventEmitter interface {
	Emit(event string, payload interface{})
	Subscribe(event string, fn func(payload interface{}))
}

// Module is the minimal surface the core consumes from a virtual-table
// backend (§4.G, §1 "Virtual-table contract").
type Module interface {
	// Name is the module name tables reference via `USING module(...)`.
	Name() string

	Create(ctx *Context, db string, schema TableSchema) (Table, error)
	Connect(ctx *Context, db string, moduleName string, schema TableSchema, aux interface{}) (Table, error)
	Destroy(ctx *Context, db string, table Table) error

	// GetBestAccessPlan is optional; a module that returns ok=false opts
	// entirely out of access-path negotiation, per §4.D "If the module
	// offers neither supports() nor getBestAccessPlan, the planner
	// raises an internal error".
	GetBestAccessPlan(ctx *Context, schema TableSchema, req AccessPlanRequest) (AccessPlan, bool)

	// Supports reports whether the module can execute an entire physical
	// subtree itself (push-down), returning an execution cost and an
	// opaque context to pass back to XExecutePlan.
	Supports(node interface{}) (cost float64, execCtx interface{}, ok bool)

	CreateIndex(ctx *Context, table Table, index IndexDef) error

	// Capabilities advertises optional feature flags (transactions,
	// indexing, push-down) a caller may probe before relying on them.
	Capabilities() ModuleCapabilities
}

// ModuleCapabilities is a set of advertised optional features.
type ModuleCapabilities struct {
	Transactions bool
	Savepoints   bool
	Indexing     bool
	PushDown     bool
}

// Table is the per-table surface the core drives for scans and
// mutations (§4.G).
type Table interface {
	Schema() TableSchema

	// XQuery performs a scan honoring the given FilterInfo, returning an
	// async row stream of the table's full row shape.
	XQuery(ctx *Context, filter FilterInfo) (RowIter, error)

	// Update performs one mutation. op is "insert", "update", or
	// "delete"; newRow is required for insert/update, oldKey for
	// update/delete. Returns the resulting row (post-image) when
	// applicable, for RETURNING.
	Update(ctx *Context, op string, newRow Row, oldKey Row, onConflict ConflictPolicy) (Row, error)

	// XExecutePlan runs a pushed-down subtree the module claimed via
	// Supports; execCtx is whatever Supports returned.
	XExecutePlan(ctx *Context, node interface{}, execCtx interface{}) (RowIter, error)

	// Connection-style transaction hooks. A table uses either these
	// four methods OR CreateConnection, never both (§4.G "Exactly one
	// of the two transaction styles is used per table").
	XBegin(ctx *Context) error
	XCommit(ctx *Context) error
	XRollback(ctx *Context) error
	XSavepoint(ctx *Context, name string) error
	XRelease(ctx *Context, name string) error
	XRollbackTo(ctx *Context, name string) error

	// CreateConnection returns a richer VirtualTableConnection the core
	// drives instead of the XBegin/.../XRollbackTo methods above.
	CreateConnection(ctx *Context) (VirtualTableConnection, bool)

	Events() EventEmitter
}

// VirtualTableConnection is the richer per-connection transaction surface
// a module may offer instead of the XBegin/XCommit/... callbacks.
type VirtualTableConnection interface {
	Begin(ctx *Context) error
	Commit(ctx *Context) error
	Rollback(ctx *Context) error
	Savepoint(ctx *Context, name string) error
	Release(ctx *Context, name string) error
	RollbackTo(ctx *Context, name string) error
	Close(ctx *Context) error
}

// ModuleRegistry is the process-wide, append-only map of module name to
// Module, mirroring the teacher's catalog of registered table providers
// (§9 "No global mutable state beyond the attribute ID counter and the
// module registry; both are append-only").
type ModuleRegistry struct {
	modules map[string]Module
}

// NewModuleRegistry constructs an empty registry.
func NewModuleRegistry() *ModuleRegistry {
	return &ModuleRegistry{modules: make(map[string]Module)}
}

// Register adds a module under its own Name(). Registering the same name
// twice replaces the prior entry; this is an administrative action, not a
// per-query one, so no additional synchronization is provided beyond the
// registry's own mutex-free append-only usage pattern (callers register
// modules before opening connections).
func (r *ModuleRegistry) Register(m Module) {
	r.modules[m.Name()] = m
}

// Lookup resolves a module by name.
func (r *ModuleRegistry) Lookup(name string) (Module, bool) {
	m, ok := r.modules[name]
	return m, ok
}
