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

import "sync"

// tableEntry is one registered table's schema plus its module/connected
// handle, the unit the builder resolves a bare table name to (§4.C).
type tableEntry struct {
	schema TableSchema
	module Module
	table  Table
}

// Catalog is the builder/engine-facing registry of tables, views, and
// declared schemas. View bodies are stored as opaque interface{} (the
// caller's *plan.Node) since package sql cannot import package plan
// without a cycle — the same pattern ScalarSubquery.Relation already
// uses for the same reason.
type Catalog struct {
	mu       sync.RWMutex
	tables     map[string]tableEntry
	views      map[string]interface{}
	declared   map[string]DeclaredSchema
	assertions map[string]interface{}
	stats      *StatisticsCatalog
}

// NewCatalog builds an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		tables:     make(map[string]tableEntry),
		views:      make(map[string]interface{}),
		declared:   make(map[string]DeclaredSchema),
		assertions: make(map[string]interface{}),
		stats:      NewStatisticsCatalog(),
	}
}

// RegisterTable adds or replaces a table definition.
func (c *Catalog) RegisterTable(schema TableSchema, module Module, table Table) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[schema.Name] = tableEntry{schema: schema, module: module, table: table}
}

// LookupTable resolves a bare table name.
func (c *Catalog) LookupTable(name string) (TableSchema, Module, Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.tables[name]
	return e.schema, e.module, e.table, ok
}

// DropTable removes a table definition, reporting whether it existed.
func (c *Catalog) DropTable(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tables[name]; !ok {
		return false
	}
	delete(c.tables, name)
	return true
}

// AllTables returns a snapshot of every registered table's schema, keyed
// by name, for ANALYZE/DIFF SCHEMA to iterate.
func (c *Catalog) AllTables() map[string]TableSchema {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]TableSchema, len(c.tables))
	for name, e := range c.tables {
		out[name] = e.schema
	}
	return out
}

// RegisterView binds name to an opaque view body (a *plan.Node).
func (c *Catalog) RegisterView(name string, body interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views[name] = body
}

// LookupView resolves a view name to its stored body.
func (c *Catalog) LookupView(name string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.views[name]
	return v, ok
}

// DropView removes a view definition, reporting whether it existed.
func (c *Catalog) DropView(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.views[name]; !ok {
		return false
	}
	delete(c.views, name)
	return true
}

// DeclareSchema records a named declarative schema target for later
// DIFF SCHEMA/APPLY SCHEMA statements.
func (c *Catalog) DeclareSchema(ds DeclaredSchema) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.declared[ds.Name] = ds
}

// LookupDeclaredSchema resolves a previously-declared schema by name.
func (c *Catalog) LookupDeclaredSchema(name string) (DeclaredSchema, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ds, ok := c.declared[name]
	return ds, ok
}

// Stats returns the catalog's statistics store (§5 "Supplemented
// features" ANALYZE).
func (c *Catalog) Stats() *StatisticsCatalog { return c.stats }

// RegisterAssertion binds name to an opaque assertion predicate (a
// *plan.CreateAssertion's expression.Expression), the same
// import-cycle-avoidance pattern RegisterView uses.
func (c *Catalog) RegisterAssertion(name string, predicate interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assertions[name] = predicate
}

// LookupAssertion resolves an assertion name to its stored predicate.
func (c *Catalog) LookupAssertion(name string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.assertions[name]
	return p, ok
}

// DropAssertion removes an assertion definition, reporting whether it
// existed.
func (c *Catalog) DropAssertion(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.assertions[name]; !ok {
		return false
	}
	delete(c.assertions, name)
	return true
}

// AllAssertions returns a snapshot of every registered assertion,
// keyed by name, for commit-time enforcement to iterate.
func (c *Catalog) AllAssertions() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]interface{}, len(c.assertions))
	for name, p := range c.assertions {
		out[name] = p
	}
	return out
}
