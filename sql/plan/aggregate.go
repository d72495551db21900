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

// AggregateExpr pairs a (possibly aggregate) expression with the output
// attribute the group-by/aggregate node produces for it.
type AggregateExpr struct {
	Expr expression.Expression
	Attr sql.Attribute
}

// Aggregate is §4.B's logical Aggregate node (GROUP BY + aggregate
// projections + HAVING folded into an enclosing Filter by the builder).
// The analyzer always lowers this to StreamAggregate (§4.D).
type Aggregate struct {
	base
	unaryRel
	GroupBy      []expression.Expression
	Aggregates   []AggregateExpr
	groupAttrs   []sql.Attribute
}

// NewAggregate builds a logical Aggregate; groupAttrs parallels GroupBy
// with the output attribute each grouping expression is bound to
// (typically a fresh attribute unless the expression is already a plain
// ColumnReference, in which case its own id is reused).
func NewAggregate(groupBy []expression.Expression, aggregates []AggregateExpr, input Node) *Aggregate {
	groupAttrs := make([]sql.Attribute, len(groupBy))
	for i, g := range groupBy {
		if cr, ok := g.(*expression.ColumnReference); ok {
			groupAttrs[i] = sql.Attribute{Id: cr.Id, Name: cr.Name, Type: cr.Type()}
		} else {
			groupAttrs[i] = sql.Attribute{Id: sql.NewAttrId(), Type: g.Type()}
		}
	}
	return &Aggregate{base: newBase(), unaryRel: unaryRel{Input: input}, GroupBy: groupBy, Aggregates: aggregates, groupAttrs: groupAttrs}
}

func (a *Aggregate) RelType() sql.RelationType {
	attrs := make([]sql.Attribute, 0, len(a.groupAttrs)+len(a.Aggregates))
	attrs = append(attrs, a.groupAttrs...)
	for _, agg := range a.Aggregates {
		attrs = append(attrs, agg.Attr)
	}
	var keys [][]sql.AttrId
	if len(a.groupAttrs) > 0 {
		key := make([]sql.AttrId, len(a.groupAttrs))
		for i, g := range a.groupAttrs {
			key[i] = g.Id
		}
		keys = [][]sql.AttrId{key}
	}
	return sql.RelationType{Attributes: attrs, UniqueKeys: keys}
}

func (a *Aggregate) Children() []expression.Expression {
	out := append([]expression.Expression{}, a.GroupBy...)
	for _, agg := range a.Aggregates {
		out = append(out, agg.Expr)
	}
	return out
}

func (a *Aggregate) WithChildren(children ...expression.Expression) (Node, error) {
	if len(children) != len(a.GroupBy)+len(a.Aggregates) {
		return nil, sql.ErrInvariantViolation.New("Aggregate child count mismatch")
	}
	groupBy := children[:len(a.GroupBy)]
	rest := children[len(a.GroupBy):]
	aggs := make([]AggregateExpr, len(a.Aggregates))
	for i, e := range rest {
		aggs[i] = AggregateExpr{Expr: e, Attr: a.Aggregates[i].Attr}
	}
	out := NewAggregate(groupBy, aggs, a.Input)
	out.groupAttrs = a.groupAttrs
	return out, nil
}

func (a *Aggregate) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 1 {
		return nil, sql.ErrInvariantViolation.New("Aggregate requires exactly 1 relational input")
	}
	out := *a
	out.Input = relations[0]
	return &out, nil
}

func (a *Aggregate) EstimatedRows() uint64 {
	if len(a.GroupBy) == 0 {
		return 1
	}
	return a.Input.EstimatedRows()/10 + 1
}

func (a *Aggregate) EstimatedCost() float64 {
	return CostEstimate(float64(a.Input.EstimatedRows()), []Node{a.Input})
}

func (a *Aggregate) ComputePhysical(children []*PhysicalProperties) *PhysicalProperties {
	in := children[0]
	key := make([]sql.AttrId, len(a.groupAttrs))
	for i, g := range a.groupAttrs {
		key[i] = g.Id
	}
	var keys [][]sql.AttrId
	if len(key) > 0 {
		keys = [][]sql.AttrId{key}
	}
	return &PhysicalProperties{UniqueKeys: keys, Deterministic: in.Deterministic, ReadOnly: true}
}

func (a *Aggregate) String() string { return fmt.Sprintf("Aggregate(%d group keys)", len(a.GroupBy)) }

func (a *Aggregate) GroupAttributes() []sql.Attribute { return a.groupAttrs }

// StreamAggregate is §4.B's physical aggregate operator: input rows
// arrive already sorted on the grouping keys (the analyzer inserts a
// Sort below when needed, §4.D), so groups can be folded with O(1)
// working memory — one accumulator set per in-flight group.
type StreamAggregate struct {
	*Aggregate
}

// NewStreamAggregate lowers a logical Aggregate to its physical form.
func NewStreamAggregate(a *Aggregate) *StreamAggregate {
	return &StreamAggregate{Aggregate: a}
}

func (s *StreamAggregate) WithRelations(relations ...Node) (Node, error) {
	n, err := s.Aggregate.WithRelations(relations...)
	if err != nil {
		return nil, err
	}
	return NewStreamAggregate(n.(*Aggregate)), nil
}

func (s *StreamAggregate) WithChildren(children ...expression.Expression) (Node, error) {
	n, err := s.Aggregate.WithChildren(children...)
	if err != nil {
		return nil, err
	}
	return NewStreamAggregate(n.(*Aggregate)), nil
}

func (s *StreamAggregate) String() string { return "StreamAggregate" }
