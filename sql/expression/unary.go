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

import (
	"github.com/spf13/cast"

	"github.com/dolthub/quereus/sql"
)

// UnaryOpKind enumerates §4.B's UnaryOp variants.
type UnaryOpKind int

const (
	OpNeg UnaryOpKind = iota
	OpNot
	OpIsNull
	OpIsNotNull
)

// UnaryOp is a single-operand scalar operator.
type UnaryOp struct {
	UnaryExpression
	Op  UnaryOpKind
	typ sql.Type
}

// NewUnaryOp builds a unary operator node.
func NewUnaryOp(op UnaryOpKind, child Expression, typ sql.Type) *UnaryOp {
	return &UnaryOp{UnaryExpression: UnaryExpression{Child: child}, Op: op, typ: typ}
}

func (u *UnaryOp) Type() sql.Type { return u.typ }

func (u *UnaryOp) WithChildren(children ...Expression) (Expression, error) {
	if len(children) != 1 {
		return nil, sql.ErrInvariantViolation.New("UnaryOp requires exactly 1 child")
	}
	return NewUnaryOp(u.Op, children[0], u.typ), nil
}

func (u *UnaryOp) Deterministic() bool { return u.Child.Deterministic() }

func (u *UnaryOp) String() string {
	switch u.Op {
	case OpIsNull:
		return u.Child.String() + " IS NULL"
	case OpIsNotNull:
		return u.Child.String() + " IS NOT NULL"
	case OpNot:
		return "NOT " + u.Child.String()
	default:
		return "-" + u.Child.String()
	}
}

func (u *UnaryOp) Eval(ctx *sql.Context) (interface{}, error) {
	v, err := u.Child.Eval(ctx)
	if err != nil {
		return nil, err
	}
	switch u.Op {
	case OpIsNull:
		return v == nil, nil
	case OpIsNotNull:
		return v != nil, nil
	}
	if v == nil {
		return nil, nil
	}
	switch u.Op {
	case OpNot:
		b, err := cast.ToBoolE(v)
		if err != nil {
			return nil, sql.ErrTypeMismatch.New(err.Error())
		}
		return !b, nil
	case OpNeg:
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, sql.ErrArithmetic.New("non-numeric operand to unary minus")
		}
		return arithResult(u.typ, -f), nil
	}
	return nil, sql.ErrUnsupported.New("unary operator")
}
