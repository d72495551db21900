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

// CallbackExpression is implemented by scalar nodes that re-evaluate a
// child relational sub-plan per outer row rather than a pure scalar
// child tree (§4.E "Callback parameters"). The rowexec emitter that
// compiles the enclosing plan assigns Callback to a call factory: a
// function of the runtime context returning a fresh async row stream
// scoped to the current row context. Assignment happens once at compile time, not per
// row, since Callback closes over the runtime context implicitly via the
// ctx argument passed to Eval/EvalRows.
type CallbackExpression interface {
	Expression
	SetCallback(fn func(ctx *sql.Context) (sql.RowIter, error))
}

// ScalarSubquery is §4.B's ScalarSubquery node: a correlated or
// uncorrelated subquery appearing where a scalar value is expected.
// Returning more than one row is a Runtime error per §7.
type ScalarSubquery struct {
	Relation interface{} // the *plan.Node subtree, opaque here to avoid an import cycle
	callback func(ctx *sql.Context) (sql.RowIter, error)
	typ      sql.Type
}

// NewScalarSubquery builds a scalar-subquery node; relation is the
// *plan.Node produced by the planbuilder for the subquery body.
func NewScalarSubquery(relation interface{}, typ sql.Type) *ScalarSubquery {
	return &ScalarSubquery{Relation: relation, typ: typ}
}

func (s *ScalarSubquery) Type() sql.Type { return s.typ }

func (s *ScalarSubquery) Children() []Expression { return nil }

func (s *ScalarSubquery) WithChildren(children ...Expression) (Expression, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvariantViolation.New("ScalarSubquery accepts no scalar children")
	}
	return s, nil
}

func (s *ScalarSubquery) Deterministic() bool { return false }

func (s *ScalarSubquery) String() string { return "(SELECT ...)" }

// SetCallback installs the call factory the rowexec emitter compiled for
// this subquery's relational subtree.
func (s *ScalarSubquery) SetCallback(fn func(ctx *sql.Context) (sql.RowIter, error)) {
	s.callback = fn
}

// EvalRows runs the subquery to completion and returns all rows, used by
// In's subquery form.
func (s *ScalarSubquery) EvalRows(ctx *sql.Context) ([]sql.Row, error) {
	if s.callback == nil {
		return nil, sql.ErrInvariantViolation.New("ScalarSubquery evaluated before compilation wired its callback")
	}
	iter, err := s.callback(ctx)
	if err != nil {
		return nil, err
	}
	return sql.RowsToSlice(ctx, iter)
}

func (s *ScalarSubquery) Eval(ctx *sql.Context) (interface{}, error) {
	rows, err := s.EvalRows(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if len(rows) > 1 {
		return nil, sql.ErrSubqueryTooManyRow.New()
	}
	if len(rows[0]) == 0 {
		return nil, nil
	}
	return rows[0][0], nil
}
