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

package plan

import (
	"fmt"

	"github.com/dolthub/quereus/sql"
	"github.com/dolthub/quereus/sql/expression"
)

// unaryRel is embedded by nodes with exactly one relational input and
// publishes that input's attributes unchanged (the common case for
// Filter/Sort/Distinct/LimitOffset/Cache).
type unaryRel struct {
	Input Node
}

func (u *unaryRel) RelType() sql.RelationType { return u.Input.RelType() }

func (u *unaryRel) Relations() []Node { return []Node{u.Input} }

// Filter is §4.B's Filter node: rows from Input are kept where Predicate
// evaluates true (SQL three-valued logic: NULL/false are both dropped).
type Filter struct {
	base
	unaryRel
	Predicate expression.Expression
}

// NewFilter builds a Filter over input.
func NewFilter(predicate expression.Expression, input Node) *Filter {
	return &Filter{base: newBase(), unaryRel: unaryRel{Input: input}, Predicate: predicate}
}

func (f *Filter) Children() []expression.Expression { return []expression.Expression{f.Predicate} }

func (f *Filter) WithChildren(children ...expression.Expression) (Node, error) {
	if len(children) != 1 {
		return nil, sql.ErrInvariantViolation.New("Filter requires exactly 1 scalar child")
	}
	return NewFilter(children[0], f.Input), nil
}

func (f *Filter) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 1 {
		return nil, sql.ErrInvariantViolation.New("Filter requires exactly 1 relational input")
	}
	return NewFilter(f.Predicate, relations[0]), nil
}

func (f *Filter) EstimatedRows() uint64 {
	// Heuristic: an unqualified filter keeps ~1/3 of its input, the same
	// fallback selectivity constant the cost model applies everywhere a
	// residual predicate's real selectivity is unknown (§4.D).
	return f.Input.EstimatedRows()/3 + 1
}

func (f *Filter) EstimatedCost() float64 { return CostEstimate(float64(f.Input.EstimatedRows()), []Node{f.Input}) }

func (f *Filter) ComputePhysical(children []*PhysicalProperties) *PhysicalProperties {
	in := children[0]
	return &PhysicalProperties{
		Ordering:      in.Ordering,
		UniqueKeys:    in.UniqueKeys,
		Deterministic: in.Deterministic && f.Predicate.Deterministic(),
		ReadOnly:      in.ReadOnly,
	}
}

func (f *Filter) String() string { return fmt.Sprintf("Filter(%s)", f.Predicate.String()) }

// Project is §4.B's Project node: computes a new attribute per
// expression in Projections, discarding Input's original attributes
// unless re-referenced by a pass-through ColumnReference.
type Project struct {
	base
	unaryRel
	Projections []expression.Expression
	outAttrs    []sql.Attribute
}

// NewProject builds a Project, minting one fresh attribute per
// projection expression, named per names (parallel slice).
func NewProject(projections []expression.Expression, names []string, input Node) *Project {
	attrs := make([]sql.Attribute, len(projections))
	for i, p := range projections {
		name := ""
		if i < len(names) {
			name = names[i]
		}
		attrs[i] = sql.Attribute{Id: sql.NewAttrId(), Name: name, Type: p.Type()}
	}
	return &Project{base: newBase(), unaryRel: unaryRel{Input: input}, Projections: projections, outAttrs: attrs}
}

func (p *Project) RelType() sql.RelationType {
	return sql.RelationType{Attributes: p.outAttrs}
}

func (p *Project) Children() []expression.Expression { return p.Projections }

func (p *Project) WithChildren(children ...expression.Expression) (Node, error) {
	if len(children) != len(p.Projections) {
		return nil, sql.ErrInvariantViolation.New("Project child count mismatch")
	}
	names := make([]string, len(p.outAttrs))
	for i, a := range p.outAttrs {
		names[i] = a.Name
	}
	out := NewProject(children, names, p.Input)
	// Preserve attribute identity across a pure expression rewrite (e.g.
	// constant folding) so downstream ColumnReferences stay valid.
	out.outAttrs = p.outAttrs
	return out, nil
}

func (p *Project) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 1 {
		return nil, sql.ErrInvariantViolation.New("Project requires exactly 1 relational input")
	}
	out := *p
	out.Input = relations[0]
	return &out, nil
}

func (p *Project) EstimatedRows() uint64 { return p.Input.EstimatedRows() }

func (p *Project) EstimatedCost() float64 {
	return CostEstimate(float64(p.Input.EstimatedRows())*float64(len(p.Projections)+1), []Node{p.Input})
}

func (p *Project) ComputePhysical(children []*PhysicalProperties) *PhysicalProperties {
	in := children[0]
	// A projection preserves input ordering only for attributes it
	// passes through unchanged (plain ColumnReference projections);
	// anything else breaks the ordering guarantee at that position.
	var ordering []OrderingAttr
	passthrough := make(map[sql.AttrId]sql.AttrId)
	for i, proj := range p.Projections {
		if cr, ok := proj.(*expression.ColumnReference); ok {
			passthrough[cr.Id] = p.outAttrs[i].Id
		}
	}
	for _, o := range in.Ordering {
		out, ok := passthrough[o.Attr]
		if !ok {
			break
		}
		ordering = append(ordering, OrderingAttr{Attr: out, Desc: o.Desc})
	}
	var uniqueKeys [][]sql.AttrId
	for _, key := range in.UniqueKeys {
		mapped := make([]sql.AttrId, 0, len(key))
		ok := true
		for _, k := range key {
			out, found := passthrough[k]
			if !found {
				ok = false
				break
			}
			mapped = append(mapped, out)
		}
		if ok {
			uniqueKeys = append(uniqueKeys, mapped)
		}
	}
	return &PhysicalProperties{
		Ordering:      ordering,
		UniqueKeys:    uniqueKeys,
		Deterministic: in.Deterministic && expression.AllDeterministic(p.Projections),
		ReadOnly:      in.ReadOnly,
	}
}

func (p *Project) String() string { return "Project" }

func (p *Project) OutputAttributes() []sql.Attribute { return p.outAttrs }
