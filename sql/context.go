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

import (
	"context"
	"sync"

	"github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"
)

// contextFrame is one entry of the row-context stack described in §4.F/§9:
// a descriptor plus a thunk returning the row currently bound under it.
// ColumnReference emitters search the stack newest-first.
type contextFrame struct {
	descriptor RowDescriptor
	row        func() Row
}

// tableConnKey identifies a cached vtab connection within a statement's
// runtime context, keyed by (schema, table) per §4.F.
type tableConnKey struct {
	schema string
	table  string
}

// Tracer receives per-instruction events so EXPLAIN can render the
// instruction tree (§4.E "Tracing").
type Tracer interface {
	Input(note string, args []interface{})
	Output(note string, result interface{})
	Row(note string, row Row)
	Error(note string, err error)
	// SubProgram registers a nested scheduler's program under note, so a
	// parent EXPLAIN can recurse into it.
	SubProgram(note string, child interface{})
}

// Context is the runtime context threaded through every instruction's run
// function (§4.F). It carries the database handle, parameter bindings,
// the row-context stack, the per-transaction vtab connection cache, CTE
// working tables, and cancellation/tracing.
type Context struct {
	context.Context

	mu sync.Mutex

	id string

	log *logrus.Entry

	// Params holds bound statement parameters, positional (1-based via
	// index 0) and/or named.
	Params      []interface{}
	NamedParams map[string]interface{}

	rowStack []contextFrame

	conns map[tableConnKey]interface{}

	// workingTables holds the current iteration's working-table rows for
	// recursive CTEs, keyed by CTE name (§4.E "Recursive CTE").
	workingTables map[string][]Row

	Tracer Tracer

	// Pragmas is the connection-scoped pragma registry (§2 AMBIENT STACK
	// "Configuration").
	Pragmas *PragmaRegistry
}

// NewContext wraps a context.Context into a Context, minting a fresh
// connection id and a default logger, mirroring the teacher's
// sql.NewContext constructor.
func NewContext(ctx context.Context, opts ...ContextOption) *Context {
	c := &Context{
		Context: ctx,
		id:      uuid.NewV4().String(),
		log:     logrus.StandardLogger().WithField("conn", ""),
		conns:   make(map[tableConnKey]interface{}),
		Pragmas: NewPragmaRegistry(),
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.WithField("conn", c.id)
	return c
}

// NewEmptyContext is sugar for NewContext(context.Background()), used
// pervasively by tests the way the teacher's sql.NewEmptyContext is.
func NewEmptyContext() *Context {
	return NewContext(context.Background())
}

// ContextOption configures a Context at construction time.
type ContextOption func(*Context)

// WithTracer installs a Tracer for EXPLAIN-style instrumentation.
func WithTracer(t Tracer) ContextOption {
	return func(c *Context) { c.Tracer = t }
}

// WithLogger overrides the default logrus entry.
func WithLogger(l *logrus.Entry) ContextOption {
	return func(c *Context) { c.log = l }
}

// ID returns the connection identifier assigned at construction.
func (c *Context) ID() string { return c.id }

// Logger returns the structured logger scoped to this context.
func (c *Context) Logger() *logrus.Entry { return c.log }

// PushRow installs a new row-context frame, returning a function that pops
// it. Producers call this around yielding a row to their children.
func (c *Context) PushRow(d RowDescriptor, row Row) func() {
	frame := contextFrame{descriptor: d, row: func() Row { return row }}
	c.rowStack = append(c.rowStack, frame)
	depth := len(c.rowStack)
	return func() {
		if len(c.rowStack) != depth {
			// Defensive: a mismatched push/pop indicates a scheduler bug,
			// but don't panic in production paths; just truncate to depth-1.
		}
		c.rowStack = c.rowStack[:depth-1]
	}
}

// Resolve implements the newest-first linear search described in §4.F /
// §9 for a ColumnReference's attribute id. ok is false when no frame on
// the stack binds the id, the internal-error condition of I1.
func (c *Context) Resolve(id AttrId) (value interface{}, ok bool) {
	for i := len(c.rowStack) - 1; i >= 0; i-- {
		frame := c.rowStack[i]
		if idx, found := frame.descriptor[id]; found {
			row := frame.row()
			if idx < 0 || idx >= len(row) {
				return nil, false
			}
			return row[idx], true
		}
	}
	return nil, false
}

// StackDepth reports the current row-context stack depth, useful for
// emitters that want to assert balanced push/pop in tests.
func (c *Context) StackDepth() int { return len(c.rowStack) }

// Conn returns the cached vtab connection for (schema, table), if any.
func (c *Context) Conn(schema, table string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.conns[tableConnKey{schema, table}]
	return v, ok
}

// SetConn caches a connection for (schema, table) for reuse by later scans
// within the same transaction (§4.F "Connection caching").
func (c *Context) SetConn(schema, table string, v interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conns[tableConnKey{schema, table}] = v
}

// ClearConns drops all cached vtab connections, called at statement end
// unless an enclosing transaction still owns them.
func (c *Context) ClearConns() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conns = make(map[tableConnKey]interface{})
}

// ConnEntry pairs a cached vtab connection with the (schema, table) it
// belongs to, so transaction-control statements can drive COMMIT/
// ROLLBACK/SAVEPOINT across whatever tables a transaction actually
// touched without the caller tracking that set itself.
type ConnEntry struct {
	Schema string
	Table  string
	Conn   interface{}
}

// EachConn snapshots and iterates every cached vtab connection.
func (c *Context) EachConn(fn func(ConnEntry)) {
	c.mu.Lock()
	entries := make([]ConnEntry, 0, len(c.conns))
	for k, v := range c.conns {
		entries = append(entries, ConnEntry{Schema: k.schema, Table: k.table, Conn: v})
	}
	c.mu.Unlock()
	for _, e := range entries {
		fn(e)
	}
}

// WorkingTable returns the current working-table rows for a recursive CTE
// by name, and whether one has been installed.
func (c *Context) WorkingTable(name string) ([]Row, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.workingTables == nil {
		return nil, false
	}
	rows, ok := c.workingTables[name]
	return rows, ok
}

// SetWorkingTable installs/replaces the working-table rows for a
// recursive CTE, used by the seminaive loop between iterations.
func (c *Context) SetWorkingTable(name string, rows []Row) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.workingTables == nil {
		c.workingTables = make(map[string][]Row)
	}
	c.workingTables[name] = rows
}

// ClearWorkingTable removes a CTE's working table once its recursion ends.
func (c *Context) ClearWorkingTable(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.workingTables, name)
}
