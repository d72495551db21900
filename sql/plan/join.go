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

// JoinKind enumerates the join semantics §6 lists.
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinRight
	JoinFull
	JoinCross
)

// Join is §4.B's nested-loop Join node, the default physical strategy
// before the analyzer considers rewriting an equi-join to BloomJoin
// (§4.D). Condition is nil for JoinCross.
type Join struct {
	base
	Left, Right Node
	Kind        JoinKind
	Condition   expression.Expression
}

// NewJoin builds a nested-loop join.
func NewJoin(kind JoinKind, condition expression.Expression, left, right Node) *Join {
	return &Join{base: newBase(), Left: left, Right: right, Kind: kind, Condition: condition}
}

func (j *Join) RelType() sql.RelationType {
	l := j.Left.RelType()
	r := j.Right.RelType()
	attrs := make([]sql.Attribute, 0, len(l.Attributes)+len(r.Attributes))
	attrs = append(attrs, l.Attributes...)
	attrs = append(attrs, r.Attributes...)
	return sql.RelationType{Attributes: attrs}
}

func (j *Join) Children() []expression.Expression {
	if j.Condition == nil {
		return nil
	}
	return []expression.Expression{j.Condition}
}

func (j *Join) Relations() []Node { return []Node{j.Left, j.Right} }

func (j *Join) WithChildren(children ...expression.Expression) (Node, error) {
	if j.Condition == nil {
		if len(children) != 0 {
			return nil, sql.ErrInvariantViolation.New("cross Join accepts no scalar children")
		}
		return j, nil
	}
	if len(children) != 1 {
		return nil, sql.ErrInvariantViolation.New("Join requires exactly 1 scalar child")
	}
	return NewJoin(j.Kind, children[0], j.Left, j.Right), nil
}

func (j *Join) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 2 {
		return nil, sql.ErrInvariantViolation.New("Join requires exactly 2 relational inputs")
	}
	return NewJoin(j.Kind, j.Condition, relations[0], relations[1]), nil
}

func (j *Join) EstimatedRows() uint64 { return j.Left.EstimatedRows() * j.Right.EstimatedRows() }

func (j *Join) EstimatedCost() float64 {
	return CostEstimate(float64(j.Left.EstimatedRows())*float64(j.Right.EstimatedRows()), []Node{j.Left, j.Right})
}

func (j *Join) ComputePhysical(children []*PhysicalProperties) *PhysicalProperties {
	l, r := children[0], children[1]
	det := l.Deterministic && r.Deterministic
	if j.Condition != nil {
		det = det && j.Condition.Deterministic()
	}
	// Outer order is preserved: the nested-loop iterates outer rows in
	// outer order and, for each outer, inner rows in inner order (§5).
	// RIGHT and FULL joins append unmatched inner rows (NULL outer
	// columns) after the outer stream, so they publish no ordering.
	ordering := l.Ordering
	if j.Kind == JoinRight || j.Kind == JoinFull {
		ordering = nil
	}
	return &PhysicalProperties{Ordering: ordering, Deterministic: det, ReadOnly: l.ReadOnly && r.ReadOnly}
}

func (j *Join) String() string { return fmt.Sprintf("Join(%v)", j.Kind) }

// EquiPair is one equality pair of an equi-join condition, extracted by
// the analyzer when considering a BloomJoin rewrite.
type EquiPair struct {
	Left, Right sql.AttrId
}

// BloomJoin is §4.B's physical hash-join operator: the analyzer rewrites
// an equi-key Join with a bounded-size build side into this form (§4.D),
// building a hash table over the smaller side keyed by EquiPairs.
type BloomJoin struct {
	*Join
	EquiPairs  []EquiPair
	BuildRight bool
	Residual   expression.Expression
}

// NewBloomJoin lowers an equi-join into its hash-join physical form.
// buildRight selects which side is materialized into the hash table
// (the "bounded-size build side" the analyzer chose, §4.D).
func NewBloomJoin(j *Join, pairs []EquiPair, buildRight bool, residual expression.Expression) *BloomJoin {
	return &BloomJoin{Join: j, EquiPairs: pairs, BuildRight: buildRight, Residual: residual}
}

func (b *BloomJoin) String() string { return fmt.Sprintf("BloomJoin(%d keys)", len(b.EquiPairs)) }

func (b *BloomJoin) WithRelations(relations ...Node) (Node, error) {
	n, err := b.Join.WithRelations(relations...)
	if err != nil {
		return nil, err
	}
	return NewBloomJoin(n.(*Join), b.EquiPairs, b.BuildRight, b.Residual), nil
}

func (b *BloomJoin) WithChildren(children ...expression.Expression) (Node, error) {
	n, err := b.Join.WithChildren(children...)
	if err != nil {
		return nil, err
	}
	return NewBloomJoin(n.(*Join), b.EquiPairs, b.BuildRight, b.Residual), nil
}

func (b *BloomJoin) ComputePhysical(children []*PhysicalProperties) *PhysicalProperties {
	p := b.Join.ComputePhysical(children)
	// Hashing the build side destroys its ordering contribution but a
	// BloomJoin still iterates its probe side in order. The probe side is
	// Left only when BuildRight is set; otherwise Right is probed and the
	// Left ordering no longer holds.
	if !b.BuildRight {
		p.Ordering = nil
	}
	return p
}

func (b *BloomJoin) EstimatedCost() float64 {
	// Build + probe: O(build) to hash, O(probe) to look up, far cheaper
	// than the nested-loop's product when the build side is small.
	build, probe := b.Left.EstimatedRows(), b.Right.EstimatedRows()
	if b.BuildRight {
		build, probe = b.Right.EstimatedRows(), b.Left.EstimatedRows()
	}
	return CostEstimate(float64(build)+float64(probe), []Node{b.Left, b.Right})
}
