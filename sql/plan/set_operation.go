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

// SetOpKind enumerates §6's set operations, including DIFF, whose
// semantics spec.md §9 leaves as an Open Question this implementation
// resolves as symmetric difference (see DESIGN.md).
type SetOpKind int

const (
	SetUnion SetOpKind = iota
	SetUnionAll
	SetIntersect
	SetExcept
	SetDiff
)

// SetOperation is §4.B's SetOperation node over two union-compatible
// inputs. The rowexec compiler runs UnionAll as plain concatenation and
// the rest as hashed deduplication strategies (§4.D).
type SetOperation struct {
	base
	Kind        SetOpKind
	Left, Right Node
	outAttrs    []sql.Attribute
}

// NewSetOperation builds a set operation; output attributes are freshly
// minted, column-aligned with Left (UNION-like alignment, including for
// DIFF per the Open Question resolution).
func NewSetOperation(kind SetOpKind, left, right Node) *SetOperation {
	leftAttrs := left.RelType().Attributes
	out := make([]sql.Attribute, len(leftAttrs))
	for i, a := range leftAttrs {
		out[i] = sql.Attribute{Id: sql.NewAttrId(), Name: a.Name, Type: a.Type}
	}
	return &SetOperation{base: newBase(), Kind: kind, Left: left, Right: right, outAttrs: out}
}

func (s *SetOperation) RelType() sql.RelationType { return sql.RelationType{Attributes: s.outAttrs} }

func (s *SetOperation) Children() []expression.Expression { return nil }

func (s *SetOperation) Relations() []Node { return []Node{s.Left, s.Right} }

func (s *SetOperation) WithChildren(children ...expression.Expression) (Node, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvariantViolation.New("SetOperation accepts no scalar children")
	}
	return s, nil
}

func (s *SetOperation) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 2 {
		return nil, sql.ErrInvariantViolation.New("SetOperation requires exactly 2 relational inputs")
	}
	out := NewSetOperation(s.Kind, relations[0], relations[1])
	out.outAttrs = s.outAttrs
	return out, nil
}

func (s *SetOperation) EstimatedRows() uint64 {
	l, r := s.Left.EstimatedRows(), s.Right.EstimatedRows()
	switch s.Kind {
	case SetUnionAll:
		return l + r
	case SetIntersect:
		if l < r {
			return l
		}
		return r
	default:
		return l + r
	}
}

func (s *SetOperation) EstimatedCost() float64 {
	return CostEstimate(float64(s.Left.EstimatedRows())+float64(s.Right.EstimatedRows()), []Node{s.Left, s.Right})
}

func (s *SetOperation) ComputePhysical(children []*PhysicalProperties) *PhysicalProperties {
	l, r := children[0], children[1]
	det := l.Deterministic && r.Deterministic
	var uniqueKeys [][]sql.AttrId
	if s.Kind != SetUnionAll {
		key := make([]sql.AttrId, len(s.outAttrs))
		for i, a := range s.outAttrs {
			key[i] = a.Id
		}
		uniqueKeys = [][]sql.AttrId{key}
	}
	return &PhysicalProperties{UniqueKeys: uniqueKeys, Deterministic: det, ReadOnly: true}
}

func (s *SetOperation) String() string { return fmt.Sprintf("SetOperation(%v)", s.Kind) }

func (s *SetOperation) OutputAttributes() []sql.Attribute { return s.outAttrs }
