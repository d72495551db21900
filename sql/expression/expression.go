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

// Package expression holds the scalar plan node variants of §4.B:
// Literal, ColumnReference, ParameterReference, BinaryOp, UnaryOp, Cast,
// Case, Between, ScalarFunctionCall, AggregateFunctionCall,
// ScalarSubquery, In, Collate. Each is a tagged-union-style struct
// implementing Expression, following the "plan nodes as tagged unions"
// design note (§9) rather than a class hierarchy.
package expression

import "github.com/dolthub/quereus/sql"

// Expression is a scalar plan node. Eval reads whatever the enclosing
// row-context stack currently has bound (§4.F); subquery/aggregate
// expressions may additionally invoke runtime callbacks supplied by the
// rowexec emitter that wraps them, which is why Eval alone is not always
// sufficient for the most advanced variants — those also implement
// CallbackExpression (see subquery.go).
type Expression interface {
	// Type reports the scalar type this expression produces.
	Type() sql.Type
	// Eval evaluates against the current row-context stack on ctx.
	Eval(ctx *sql.Context) (interface{}, error)
	// Children returns this expression's scalar child expressions, in
	// the fixed order WithChildren expects them back.
	Children() []Expression
	// WithChildren returns a copy of this expression with its children
	// replaced, the mechanism transform passes use to rewrite subtrees.
	WithChildren(children ...Expression) (Expression, error)
	String() string
	// Deterministic reports whether repeated Eval calls with the same
	// row-context produce the same value (feeds PhysicalProperties).
	Deterministic() bool
}

// UnaryExpression is embedded by expressions with exactly one child.
type UnaryExpression struct {
	Child Expression
}

func (u *UnaryExpression) Children() []Expression { return []Expression{u.Child} }

// BinaryExpression is embedded by expressions with exactly two children.
type BinaryExpression struct {
	Left, Right Expression
}

func (b *BinaryExpression) Children() []Expression { return []Expression{b.Left, b.Right} }

// NaryExpression is embedded by expressions with an arbitrary arity.
type NaryExpression struct {
	ChildExprs []Expression
}

func (n *NaryExpression) Children() []Expression { return n.ChildExprs }

// AllDeterministic reports whether every expression in exprs is
// deterministic, the common aggregation rule a compound expression uses
// to compute its own Deterministic().
func AllDeterministic(exprs []Expression) bool {
	for _, e := range exprs {
		if !e.Deterministic() {
			return false
		}
	}
	return true
}
