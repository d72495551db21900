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

// WindowFuncKind enumerates the window functions §6 requires "at
// minimum". Concrete bodies beyond ROW_NUMBER are a function-registry
// concern (§1 out of scope); the node only needs to know whether a
// running counter suffices.
type WindowFuncKind int

const (
	WindowRowNumber WindowFuncKind = iota
)

// WindowExpr pairs a window function with the output attribute it binds.
type WindowExpr struct {
	Kind WindowFuncKind
	Attr sql.Attribute
}

// Window is §4.B's Window node: functions are streamed per partition,
// ROW_NUMBER realized by a running counter reset at each partition
// boundary (§4.E "Window functions").
type Window struct {
	base
	unaryRel
	PartitionBy []expression.Expression
	OrderBy     []SortKey
	Funcs       []WindowExpr
	outAttrs    []sql.Attribute
}

// NewWindow builds a Window node over input.
func NewWindow(partitionBy []expression.Expression, orderBy []SortKey, funcs []WindowExpr, input Node) *Window {
	attrs := append([]sql.Attribute{}, input.RelType().Attributes...)
	for _, f := range funcs {
		attrs = append(attrs, f.Attr)
	}
	return &Window{base: newBase(), unaryRel: unaryRel{Input: input}, PartitionBy: partitionBy, OrderBy: orderBy, Funcs: funcs, outAttrs: attrs}
}

func (w *Window) RelType() sql.RelationType { return sql.RelationType{Attributes: w.outAttrs} }

func (w *Window) Children() []expression.Expression {
	out := append([]expression.Expression{}, w.PartitionBy...)
	for _, k := range w.OrderBy {
		out = append(out, k.Expr)
	}
	return out
}

func (w *Window) WithChildren(children ...expression.Expression) (Node, error) {
	if len(children) != len(w.PartitionBy)+len(w.OrderBy) {
		return nil, sql.ErrInvariantViolation.New("Window child count mismatch")
	}
	partitionBy := children[:len(w.PartitionBy)]
	rest := children[len(w.PartitionBy):]
	orderBy := make([]SortKey, len(w.OrderBy))
	for i, e := range rest {
		orderBy[i] = SortKey{Expr: e, Desc: w.OrderBy[i].Desc}
	}
	out := NewWindow(partitionBy, orderBy, w.Funcs, w.Input)
	out.outAttrs = w.outAttrs
	return out, nil
}

func (w *Window) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 1 {
		return nil, sql.ErrInvariantViolation.New("Window requires exactly 1 relational input")
	}
	out := *w
	out.Input = relations[0]
	return &out, nil
}

func (w *Window) EstimatedRows() uint64 { return w.Input.EstimatedRows() }

func (w *Window) EstimatedCost() float64 {
	n := float64(w.Input.EstimatedRows())
	logN := 1.0
	for x := n; x > 1; x /= 2 {
		logN++
	}
	return CostEstimate(n*logN, []Node{w.Input})
}

func (w *Window) ComputePhysical(children []*PhysicalProperties) *PhysicalProperties {
	in := children[0]
	return &PhysicalProperties{Deterministic: in.Deterministic, ReadOnly: in.ReadOnly}
}

func (w *Window) String() string { return fmt.Sprintf("Window(%d funcs)", len(w.Funcs)) }

func (w *Window) OutputAttributes() []sql.Attribute { return w.outAttrs }
