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

// SortKey is one ORDER BY term.
type SortKey struct {
	Expr expression.Expression
	Desc bool
}

// Sort is §4.B's Sort node; ORDER BY without LIMIT is a stable sort
// (§5 Ordering guarantees).
type Sort struct {
	base
	unaryRel
	Keys []SortKey
}

// NewSort builds a Sort over input.
func NewSort(keys []SortKey, input Node) *Sort {
	return &Sort{base: newBase(), unaryRel: unaryRel{Input: input}, Keys: keys}
}

func (s *Sort) Children() []expression.Expression {
	out := make([]expression.Expression, len(s.Keys))
	for i, k := range s.Keys {
		out[i] = k.Expr
	}
	return out
}

func (s *Sort) WithChildren(children ...expression.Expression) (Node, error) {
	if len(children) != len(s.Keys) {
		return nil, sql.ErrInvariantViolation.New("Sort child count mismatch")
	}
	keys := make([]SortKey, len(children))
	for i, c := range children {
		keys[i] = SortKey{Expr: c, Desc: s.Keys[i].Desc}
	}
	return NewSort(keys, s.Input), nil
}

func (s *Sort) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 1 {
		return nil, sql.ErrInvariantViolation.New("Sort requires exactly 1 relational input")
	}
	return NewSort(s.Keys, relations[0]), nil
}

func (s *Sort) EstimatedRows() uint64 { return s.Input.EstimatedRows() }

func (s *Sort) EstimatedCost() float64 {
	n := float64(s.Input.EstimatedRows())
	logN := 1.0
	for x := n; x > 1; x /= 2 {
		logN++
	}
	return CostEstimate(n*logN, []Node{s.Input})
}

func (s *Sort) ComputePhysical(children []*PhysicalProperties) *PhysicalProperties {
	ordering := make([]OrderingAttr, 0, len(s.Keys))
	for _, k := range s.Keys {
		if cr, ok := k.Expr.(*expression.ColumnReference); ok {
			ordering = append(ordering, OrderingAttr{Attr: cr.Id, Desc: k.Desc})
		}
	}
	in := children[0]
	return &PhysicalProperties{
		Ordering:      ordering,
		UniqueKeys:    in.UniqueKeys,
		Deterministic: in.Deterministic && expression.AllDeterministic(s.Children()),
		ReadOnly:      in.ReadOnly,
	}
}

func (s *Sort) String() string { return fmt.Sprintf("Sort(%d keys)", len(s.Keys)) }

// Distinct is §4.B's Distinct node. The analyzer removes it when its
// input is already unique; otherwise rowexec deduplicates through a
// hashed row set whose equality check is sql.Compare.
type Distinct struct {
	base
	unaryRel
}

// NewDistinct builds a Distinct over input.
func NewDistinct(input Node) *Distinct {
	return &Distinct{base: newBase(), unaryRel: unaryRel{Input: input}}
}

func (d *Distinct) Children() []expression.Expression { return nil }

func (d *Distinct) WithChildren(children ...expression.Expression) (Node, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvariantViolation.New("Distinct accepts no scalar children")
	}
	return d, nil
}

func (d *Distinct) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 1 {
		return nil, sql.ErrInvariantViolation.New("Distinct requires exactly 1 relational input")
	}
	return NewDistinct(relations[0]), nil
}

func (d *Distinct) EstimatedRows() uint64 { return d.Input.EstimatedRows() }

func (d *Distinct) EstimatedCost() float64 {
	return CostEstimate(float64(d.Input.EstimatedRows())*2, []Node{d.Input})
}

func (d *Distinct) ComputePhysical(children []*PhysicalProperties) *PhysicalProperties {
	in := children[0]
	attrs := d.Input.RelType().Attributes
	key := make([]sql.AttrId, len(attrs))
	for i, a := range attrs {
		key[i] = a.Id
	}
	return &PhysicalProperties{
		Ordering:      in.Ordering,
		UniqueKeys:    [][]sql.AttrId{key},
		Deterministic: in.Deterministic,
		ReadOnly:      in.ReadOnly,
	}
}

func (d *Distinct) String() string { return "Distinct" }

// LimitOffset is §4.B's LimitOffset node. Limit/Offset of -1 mean
// "unbounded"/"none" respectively.
type LimitOffset struct {
	base
	unaryRel
	Limit  expression.Expression
	Offset expression.Expression
}

// NewLimitOffset builds a LimitOffset over input; either bound may be nil.
func NewLimitOffset(limit, offset expression.Expression, input Node) *LimitOffset {
	return &LimitOffset{base: newBase(), unaryRel: unaryRel{Input: input}, Limit: limit, Offset: offset}
}

func (l *LimitOffset) Children() []expression.Expression {
	var out []expression.Expression
	if l.Limit != nil {
		out = append(out, l.Limit)
	}
	if l.Offset != nil {
		out = append(out, l.Offset)
	}
	return out
}

func (l *LimitOffset) WithChildren(children ...expression.Expression) (Node, error) {
	i := 0
	var limit, offset expression.Expression
	if l.Limit != nil {
		limit = children[i]
		i++
	}
	if l.Offset != nil {
		offset = children[i]
	}
	return NewLimitOffset(limit, offset, l.Input), nil
}

func (l *LimitOffset) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 1 {
		return nil, sql.ErrInvariantViolation.New("LimitOffset requires exactly 1 relational input")
	}
	return NewLimitOffset(l.Limit, l.Offset, relations[0]), nil
}

func (l *LimitOffset) EstimatedRows() uint64 { return l.Input.EstimatedRows() }

func (l *LimitOffset) EstimatedCost() float64 { return CostEstimate(0, []Node{l.Input}) }

func (l *LimitOffset) ComputePhysical(children []*PhysicalProperties) *PhysicalProperties {
	in := children[0]
	return &PhysicalProperties{Ordering: in.Ordering, UniqueKeys: in.UniqueKeys, Deterministic: in.Deterministic, ReadOnly: in.ReadOnly}
}

func (l *LimitOffset) String() string { return "LimitOffset" }
