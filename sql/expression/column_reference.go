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

package expression

import "github.com/dolthub/quereus/sql"

// ColumnReference resolves an attribute id through the nearest enclosing
// row context whose descriptor maps it, per I1/§4.F. It never carries a
// name or ordinal at runtime; Name is kept only for EXPLAIN/error text.
type ColumnReference struct {
	Id   sql.AttrId
	Name string
	typ  sql.Type
}

// NewColumnReference builds a reference to a previously-minted attribute.
func NewColumnReference(id sql.AttrId, name string, t sql.Type) *ColumnReference {
	return &ColumnReference{Id: id, Name: name, typ: t}
}

func (c *ColumnReference) Type() sql.Type { return c.typ }

func (c *ColumnReference) Eval(ctx *sql.Context) (interface{}, error) {
	v, ok := ctx.Resolve(c.Id)
	if !ok {
		return nil, sql.ErrMissingRowContext.New(int64(c.Id))
	}
	return v, nil
}

func (c *ColumnReference) Children() []Expression { return nil }

func (c *ColumnReference) WithChildren(children ...Expression) (Expression, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvariantViolation.New("ColumnReference accepts no children")
	}
	return c, nil
}

func (c *ColumnReference) String() string { return c.Name }

func (c *ColumnReference) Deterministic() bool { return true }

// ParameterReference is a bound statement parameter: positional (`?`,
// `:N`) or named (`:name`). Index is 1-based for positional parameters
// and ignored (-1) for purely named ones.
type ParameterReference struct {
	Index int
	Name  string
	typ   sql.Type
}

// NewParameterReference builds a positional or named parameter reference.
func NewParameterReference(index int, name string, t sql.Type) *ParameterReference {
	return &ParameterReference{Index: index, Name: name, typ: t}
}

func (p *ParameterReference) Type() sql.Type { return p.typ }

func (p *ParameterReference) Eval(ctx *sql.Context) (interface{}, error) {
	if p.Name != "" {
		if v, ok := ctx.NamedParams[p.Name]; ok {
			return v, nil
		}
		return nil, sql.ErrParamNameMismatch.New(p.Name)
	}
	idx := p.Index - 1
	if idx < 0 || idx >= len(ctx.Params) {
		return nil, sql.ErrParamCountMismatch.New(p.Index, len(ctx.Params))
	}
	return ctx.Params[idx], nil
}

func (p *ParameterReference) Children() []Expression { return nil }

func (p *ParameterReference) WithChildren(children ...Expression) (Expression, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvariantViolation.New("ParameterReference accepts no children")
	}
	return p, nil
}

func (p *ParameterReference) String() string {
	if p.Name != "" {
		return ":" + p.Name
	}
	return "?"
}

func (p *ParameterReference) Deterministic() bool { return true }
