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

import "sort"

// PragmaHandler implements a single pragma's get/set behavior. Get
// returns the current value(s) as rows (a pragma like table_info yields
// many rows); Set applies a new value and may be nil for read-only
// pragmas.
type PragmaHandler struct {
	Get func(ctx *Context, arg string) ([]Row, error)
	Set func(ctx *Context, arg string, value interface{}) error
}

// PragmaRegistry is the core's stand-in for a configuration file (§2
// AMBIENT STACK "Configuration"): pragmas are the only per-connection
// tunables the core itself defines, everything else being a module
// concern out of scope per spec.md §1.
type PragmaRegistry struct {
	handlers  map[string]PragmaHandler
	tableInfo func(ctx *Context, table string) ([]Row, error)
}

// NewPragmaRegistry builds a registry pre-populated with the handful of
// pragmas the engine itself understands.
func NewPragmaRegistry() *PragmaRegistry {
	r := &PragmaRegistry{handlers: make(map[string]PragmaHandler)}
	r.registerBuiltins()
	return r
}

// Register installs or replaces a pragma handler by name.
func (r *PragmaRegistry) Register(name string, h PragmaHandler) {
	r.handlers[name] = h
}

// Get looks up and invokes a pragma's getter.
func (r *PragmaRegistry) Get(ctx *Context, name, arg string) ([]Row, error) {
	h, ok := r.handlers[name]
	if !ok || h.Get == nil {
		return nil, ErrUnknownPragma.New(name)
	}
	return h.Get(ctx, arg)
}

// Set looks up and invokes a pragma's setter.
func (r *PragmaRegistry) Set(ctx *Context, name, arg string, value interface{}) error {
	h, ok := r.handlers[name]
	if !ok || h.Set == nil {
		return ErrUnknownPragma.New(name)
	}
	return h.Set(ctx, arg, value)
}

// Names returns the registered pragma names in sorted order, for
// `PRAGMA pragma_list` style introspection.
func (r *PragmaRegistry) Names() []string {
	out := make([]string, 0, len(r.handlers))
	for n := range r.handlers {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (r *PragmaRegistry) registerBuiltins() {
	foreignKeys := true
	r.handlers["foreign_keys"] = PragmaHandler{
		Get: func(ctx *Context, arg string) ([]Row, error) {
			v := int64(0)
			if foreignKeys {
				v = 1
			}
			return []Row{NewRow(v)}, nil
		},
		Set: func(ctx *Context, arg string, value interface{}) error {
			switch v := value.(type) {
			case bool:
				foreignKeys = v
			case int64:
				foreignKeys = v != 0
			}
			return nil
		},
	}

	journalMode := "memory"
	r.handlers["journal_mode"] = PragmaHandler{
		Get: func(ctx *Context, arg string) ([]Row, error) {
			return []Row{NewRow(journalMode)}, nil
		},
		Set: func(ctx *Context, arg string, value interface{}) error {
			// journal_mode is a no-op echo: the core is storage-agnostic
			// and never journals to disk itself (spec.md §1 Non-goals).
			if s, ok := value.(string); ok {
				journalMode = s
			}
			return nil
		},
	}

	// table_info is populated by the engine at registration time via
	// SetTableInfoSource, since it needs access to the schema catalog the
	// pragma package itself doesn't own.
	r.handlers["table_info"] = PragmaHandler{
		Get: func(ctx *Context, arg string) ([]Row, error) {
			if r.tableInfo == nil {
				return nil, nil
			}
			return r.tableInfo(ctx, arg)
		},
	}
}

// SetTableInfoSource wires the table_info pragma to a schema lookup
// function; called once by the engine during registry setup.
func (r *PragmaRegistry) SetTableInfoSource(f func(ctx *Context, table string) ([]Row, error)) {
	r.tableInfo = f
}
