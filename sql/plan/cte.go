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

// CTE is §4.B's non-recursive CTE node: Body is planned once and
// Consumers reference it by name through a CTERef leaf.
type CTE struct {
	base
	Name string
	Body Node
	In   Node
}

// NewCTE builds a non-recursive CTE binding name to body, scoped over in.
func NewCTE(name string, body, in Node) *CTE {
	return &CTE{base: newBase(), Name: name, Body: body, In: in}
}

func (c *CTE) RelType() sql.RelationType { return c.In.RelType() }

func (c *CTE) Children() []expression.Expression { return nil }

func (c *CTE) Relations() []Node { return []Node{c.Body, c.In} }

func (c *CTE) WithChildren(children ...expression.Expression) (Node, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvariantViolation.New("CTE accepts no scalar children")
	}
	return c, nil
}

func (c *CTE) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 2 {
		return nil, sql.ErrInvariantViolation.New("CTE requires exactly 2 relational inputs")
	}
	return NewCTE(c.Name, relations[0], relations[1]), nil
}

func (c *CTE) EstimatedRows() uint64 { return c.In.EstimatedRows() }

func (c *CTE) EstimatedCost() float64 {
	return CostEstimate(0, []Node{c.Body, c.In})
}

func (c *CTE) ComputePhysical(children []*PhysicalProperties) *PhysicalProperties {
	return children[1]
}

func (c *CTE) String() string { return fmt.Sprintf("CTE(%s)", c.Name) }

// CTERef is the leaf a builder emits wherever a CTE name is referenced in
// FROM; it carries the CTE's own RelationType so attribute ids line up
// with the body's output, without re-planning the body.
type CTERef struct {
	base
	Name string
	Rel  sql.RelationType
}

// NewCTERef builds a reference to a previously-bound CTE.
func NewCTERef(name string, rel sql.RelationType) *CTERef {
	return &CTERef{base: newBase(), Name: name, Rel: rel}
}

func (r *CTERef) RelType() sql.RelationType { return r.Rel }

func (r *CTERef) Children() []expression.Expression { return nil }

func (r *CTERef) Relations() []Node { return nil }

func (r *CTERef) WithChildren(children ...expression.Expression) (Node, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvariantViolation.New("CTERef accepts no scalar children")
	}
	return r, nil
}

func (r *CTERef) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 0 {
		return nil, sql.ErrInvariantViolation.New("CTERef accepts no relational inputs")
	}
	return r, nil
}

func (r *CTERef) EstimatedRows() uint64 { return sql.DefaultUnknownRowEstimate }

func (r *CTERef) EstimatedCost() float64 { return float64(r.EstimatedRows()) }

func (r *CTERef) ComputePhysical(children []*PhysicalProperties) *PhysicalProperties {
	return &PhysicalProperties{Deterministic: true}
}

func (r *CTERef) String() string { return fmt.Sprintf("CTERef(%s)", r.Name) }

// RecursiveCTE is §4.B/§4.E's recursive CTE: Base is evaluated once,
// Recursive is re-evaluated against the growing working table until a
// batch is empty or IterationLimit is hit (0 = no limit, §4.E). UnionAll
// disables the seminaive dedup comparator.
type RecursiveCTE struct {
	base
	Name           string
	Base           Node
	Recursive      Node
	In             Node
	UnionAll       bool
	IterationLimit int
	outAttrs       []sql.Attribute
}

// NewRecursiveCTE builds a recursive CTE binding; outAttrs is the column
// shape the base case establishes and the recursive branch must match.
func NewRecursiveCTE(name string, base_, recursive, in Node, unionAll bool, iterationLimit int) *RecursiveCTE {
	return &RecursiveCTE{
		base: newBase(), Name: name, Base: base_, Recursive: recursive, In: in,
		UnionAll: unionAll, IterationLimit: iterationLimit,
		outAttrs: base_.RelType().Attributes,
	}
}

func (r *RecursiveCTE) RelType() sql.RelationType { return r.In.RelType() }

func (r *RecursiveCTE) Children() []expression.Expression { return nil }

func (r *RecursiveCTE) Relations() []Node { return []Node{r.Base, r.Recursive, r.In} }

func (r *RecursiveCTE) WithChildren(children ...expression.Expression) (Node, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvariantViolation.New("RecursiveCTE accepts no scalar children")
	}
	return r, nil
}

func (r *RecursiveCTE) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 3 {
		return nil, sql.ErrInvariantViolation.New("RecursiveCTE requires exactly 3 relational inputs")
	}
	out := NewRecursiveCTE(r.Name, relations[0], relations[1], relations[2], r.UnionAll, r.IterationLimit)
	out.outAttrs = r.outAttrs
	return out, nil
}

func (r *RecursiveCTE) EstimatedRows() uint64 { return r.In.EstimatedRows() }

func (r *RecursiveCTE) EstimatedCost() float64 {
	return CostEstimate(float64(r.Base.EstimatedRows())*4, []Node{r.Base, r.Recursive, r.In})
}

func (r *RecursiveCTE) ComputePhysical(children []*PhysicalProperties) *PhysicalProperties {
	return children[2]
}

func (r *RecursiveCTE) String() string { return fmt.Sprintf("RecursiveCTE(%s)", r.Name) }

// WorkingTableRef is the leaf the recursive branch uses to read the
// current iteration's working table; the rowexec scheduler installs its
// rows into the runtime context's working-table map before each
// iteration (§4.E).
type WorkingTableRef struct {
	base
	Name string
	Rel  sql.RelationType
}

// NewWorkingTableRef builds a reference to a recursive CTE's working table.
func NewWorkingTableRef(name string, rel sql.RelationType) *WorkingTableRef {
	return &WorkingTableRef{base: newBase(), Name: name, Rel: rel}
}

func (w *WorkingTableRef) RelType() sql.RelationType { return w.Rel }

func (w *WorkingTableRef) Children() []expression.Expression { return nil }

func (w *WorkingTableRef) Relations() []Node { return nil }

func (w *WorkingTableRef) WithChildren(children ...expression.Expression) (Node, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvariantViolation.New("WorkingTableRef accepts no scalar children")
	}
	return w, nil
}

func (w *WorkingTableRef) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 0 {
		return nil, sql.ErrInvariantViolation.New("WorkingTableRef accepts no relational inputs")
	}
	return w, nil
}

func (w *WorkingTableRef) EstimatedRows() uint64 { return sql.DefaultUnknownRowEstimate }

func (w *WorkingTableRef) EstimatedCost() float64 { return float64(w.EstimatedRows()) }

func (w *WorkingTableRef) ComputePhysical(children []*PhysicalProperties) *PhysicalProperties {
	return &PhysicalProperties{Deterministic: true}
}

func (w *WorkingTableRef) String() string { return fmt.Sprintf("WorkingTableRef(%s)", w.Name) }
