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

// Values is the logical leaf an INSERT ... VALUES statement sources from:
// a fixed, planner-known set of row tuples, each a parallel slice of
// scalar expressions evaluated with no row context (literals and
// parameters only; VALUES rows do not see any relation's attributes).
type Values struct {
	base
	Rows     [][]expression.Expression
	outAttrs []sql.Attribute
}

// NewValues builds a Values leaf whose output shape mirrors schema's
// columns, minting one fresh attribute per column so downstream nodes
// (DmlExecutor) see the same attribute identity convention as any other
// relational producer.
func NewValues(rows [][]expression.Expression, schema sql.TableSchema) *Values {
	rel := schema.RelationType()
	return &Values{base: newBase(), Rows: rows, outAttrs: rel.Attributes}
}

func (v *Values) RelType() sql.RelationType { return sql.RelationType{Attributes: v.outAttrs} }

func (v *Values) Children() []expression.Expression {
	var out []expression.Expression
	for _, row := range v.Rows {
		out = append(out, row...)
	}
	return out
}

func (v *Values) Relations() []Node { return nil }

func (v *Values) WithChildren(children ...expression.Expression) (Node, error) {
	width := len(v.outAttrs)
	if width == 0 && len(v.Rows) > 0 {
		width = len(v.Rows[0])
	}
	if width == 0 {
		if len(children) != 0 {
			return nil, sql.ErrInvariantViolation.New("Values child count mismatch")
		}
		return v, nil
	}
	if len(children)%width != 0 {
		return nil, sql.ErrInvariantViolation.New("Values child count mismatch")
	}
	rows := make([][]expression.Expression, len(children)/width)
	for i := range rows {
		rows[i] = children[i*width : (i+1)*width]
	}
	out := *v
	out.Rows = rows
	return &out, nil
}

func (v *Values) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 0 {
		return nil, sql.ErrInvariantViolation.New("Values accepts no relational inputs")
	}
	return v, nil
}

func (v *Values) EstimatedRows() uint64 { return uint64(len(v.Rows)) }

func (v *Values) EstimatedCost() float64 { return float64(len(v.Rows)) }

func (v *Values) ComputePhysical(children []*PhysicalProperties) *PhysicalProperties {
	return &PhysicalProperties{Deterministic: true, ReadOnly: true}
}

func (v *Values) String() string { return fmt.Sprintf("Values(%d rows)", len(v.Rows)) }
