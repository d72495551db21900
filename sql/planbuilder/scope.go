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

// Package planbuilder translates the ast typed tree into a logical plan
// (spec.md §4.C), resolving columns/parameters/functions through a
// scope chain. The lexer/parser that produces ast.Statement trees is an
// external collaborator (§1); this package only consumes its output.
package planbuilder

import (
	"github.com/dolthub/quereus/quereuserr"
	"github.com/dolthub/quereus/sql"
)

// relInfo is one FROM-clause entry visible to column resolution: its
// alias (or bare table name if unaliased) and the attributes it
// contributes.
type relInfo struct {
	alias string
	attrs []sql.Attribute
}

// Scope is one level of the name-resolution chain §4.C describes.
// Subqueries build a nested Scope whose parent is the outer scope;
// correlated column references resolve against the parent without
// rewriting the captured attribute id (§4.C "correlated references
// capture outer attribute IDs unchanged").
type Scope struct {
	parent    *Scope
	relations []relInfo
	ctes      map[string][]sql.Attribute
}

// NewScope builds a scope with no relations of its own, chained to parent
// for outer-name resolution (parent is nil for a root scope).
func NewScope(parent *Scope) *Scope {
	return &Scope{parent: parent}
}

// PushRelation makes a FROM-clause entry visible for column resolution
// under alias (or its own table name if unaliased).
func (s *Scope) PushRelation(alias string, attrs []sql.Attribute) {
	s.relations = append(s.relations, relInfo{alias: alias, attrs: attrs})
}

// BindCTE records a CTE's output shape so unqualified FROM references
// under this scope (and nested scopes) resolve to it without re-planning
// the CTE body.
func (s *Scope) BindCTE(name string, attrs []sql.Attribute) {
	if s.ctes == nil {
		s.ctes = make(map[string][]sql.Attribute)
	}
	s.ctes[name] = attrs
}

// LookupCTE finds a CTE's bound output shape, searching outward.
func (s *Scope) LookupCTE(name string) ([]sql.Attribute, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if sc.ctes != nil {
			if attrs, ok := sc.ctes[name]; ok {
				return attrs, true
			}
		}
	}
	return nil, false
}

// ResolveColumn implements §4.C's column resolution: an unqualified name
// matching exactly one visible attribute succeeds; more than one is
// ambiguous; a table-qualified name matches only relations under that
// alias. Falls back to the parent scope (a correlated reference) when
// nothing in the local scope matches.
func (s *Scope) ResolveColumn(table, column string) (sql.AttrId, sql.Type, error) {
	var matches []sql.Attribute
	for _, rel := range s.relations {
		if table != "" && rel.alias != table {
			continue
		}
		for _, a := range rel.attrs {
			if a.Name == column {
				matches = append(matches, a)
			}
		}
	}
	switch len(matches) {
	case 1:
		return matches[0].Id, matches[0].Type, nil
	case 0:
		if s.parent != nil {
			return s.parent.ResolveColumn(table, column)
		}
		return 0, sql.Type{}, quereuserr.ErrUnknownColumn.New(qualify(table, column))
	default:
		return 0, sql.Type{}, quereuserr.ErrAmbiguousColumn.New(qualify(table, column))
	}
}

func qualify(table, column string) string {
	if table == "" {
		return column
	}
	return table + "." + column
}

// AllAttributes returns every attribute visible in this scope alone (not
// the parent chain), in FROM order, for `SELECT *` expansion.
func (s *Scope) AllAttributes() []sql.Attribute {
	var out []sql.Attribute
	for _, rel := range s.relations {
		out = append(out, rel.attrs...)
	}
	return out
}

// AttributesFor returns the attributes of a specific aliased relation,
// for `table.*` expansion.
func (s *Scope) AttributesFor(alias string) ([]sql.Attribute, bool) {
	for _, rel := range s.relations {
		if rel.alias == alias {
			return rel.attrs, true
		}
	}
	return nil, false
}

// paramCollector accumulates parameter shape as expressions are built,
// backing the Block's recorded parameter list (§4.B "Block carries a
// snapshot of the SQL parameter shape").
type paramCollector struct {
	positional map[int]sql.Type
	named      map[string]sql.Type
	order      []paramRef
}

type paramRef struct {
	index int
	name  string
}

func newParamCollector() *paramCollector {
	return &paramCollector{positional: make(map[int]sql.Type), named: make(map[string]sql.Type)}
}

func (p *paramCollector) record(index int, name string, t sql.Type) {
	if name != "" {
		if _, ok := p.named[name]; !ok {
			p.order = append(p.order, paramRef{name: name})
		}
		p.named[name] = t
		return
	}
	if _, ok := p.positional[index]; !ok {
		p.order = append(p.order, paramRef{index: index})
	}
	p.positional[index] = t
}
