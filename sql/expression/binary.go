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

// BinaryOpKind enumerates the binary scalar operators §6 requires.
type BinaryOpKind int

const (
	OpAdd BinaryOpKind = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEQ
	OpNE
	OpGT
	OpGE
	OpLT
	OpLE
	OpAnd
	OpOr
	OpConcat
)

// BinaryOp is §4.B's BinaryOp scalar node: arithmetic, comparison, and
// boolean connectives, all following SQL three-valued NULL propagation.
type BinaryOp struct {
	BinaryExpression
	Op  BinaryOpKind
	typ sql.Type
}

// NewBinaryOp builds a binary operator node; typ is the result type
// (arithmetic ops inherit the wider operand affinity, comparisons and
// boolean ops are always a nullable INTEGER acting as boolean).
func NewBinaryOp(op BinaryOpKind, left, right Expression, typ sql.Type) *BinaryOp {
	return &BinaryOp{BinaryExpression: BinaryExpression{Left: left, Right: right}, Op: op, typ: typ}
}

func (b *BinaryOp) Type() sql.Type { return b.typ }

func (b *BinaryOp) WithChildren(children ...Expression) (Expression, error) {
	if len(children) != 2 {
		return nil, sql.ErrInvariantViolation.New("BinaryOp requires exactly 2 children")
	}
	return NewBinaryOp(b.Op, children[0], children[1], b.typ), nil
}

func (b *BinaryOp) Deterministic() bool { return AllDeterministic(b.Children()) }

func (b *BinaryOp) String() string {
	return "(" + b.Left.String() + " " + opSymbol(b.Op) + " " + b.Right.String() + ")"
}

func opSymbol(op BinaryOpKind) string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpMod:
		return "%"
	case OpEQ:
		return "="
	case OpNE:
		return "<>"
	case OpGT:
		return ">"
	case OpGE:
		return ">="
	case OpLT:
		return "<"
	case OpLE:
		return "<="
	case OpAnd:
		return "AND"
	case OpOr:
		return "OR"
	case OpConcat:
		return "||"
	}
	return "?"
}

func (b *BinaryOp) Eval(ctx *sql.Context) (interface{}, error) {
	switch b.Op {
	case OpAnd:
		return evalAnd(ctx, b.Left, b.Right)
	case OpOr:
		return evalOr(ctx, b.Left, b.Right)
	}

	l, err := b.Left.Eval(ctx)
	if err != nil {
		return nil, err
	}
	r, err := b.Right.Eval(ctx)
	if err != nil {
		return nil, err
	}
	if l == nil || r == nil {
		if isComparison(b.Op) || isArithmetic(b.Op) || b.Op == OpConcat {
			return nil, nil
		}
	}

	switch b.Op {
	case OpConcat:
		ls, _ := cast.ToStringE(l)
		rs, _ := cast.ToStringE(r)
		return ls + rs, nil
	case OpEQ, OpNE, OpGT, OpGE, OpLT, OpLE:
		cmp, isNull := sql.Compare(l, r, comparisonType(b.Left.Type(), b.Right.Type()))
		if isNull {
			return nil, nil
		}
		switch b.Op {
		case OpEQ:
			return cmp == 0, nil
		case OpNE:
			return cmp != 0, nil
		case OpGT:
			return cmp > 0, nil
		case OpGE:
			return cmp >= 0, nil
		case OpLT:
			return cmp < 0, nil
		case OpLE:
			return cmp <= 0, nil
		}
	}

	lf, lerr := cast.ToFloat64E(l)
	rf, rerr := cast.ToFloat64E(r)
	if lerr != nil || rerr != nil {
		return nil, sql.ErrArithmetic.New("non-numeric operand")
	}
	switch b.Op {
	case OpAdd:
		return arithResult(b.typ, lf+rf), nil
	case OpSub:
		return arithResult(b.typ, lf-rf), nil
	case OpMul:
		return arithResult(b.typ, lf*rf), nil
	case OpDiv:
		if rf == 0 {
			return nil, nil
		}
		return arithResult(b.typ, lf/rf), nil
	case OpMod:
		if rf == 0 {
			return nil, nil
		}
		return arithResult(b.typ, float64(int64(lf)%int64(rf))), nil
	}
	return nil, sql.ErrUnsupported.New("binary operator")
}

func arithResult(t sql.Type, f float64) interface{} {
	if t.Affinity == sql.Integer {
		return int64(f)
	}
	return f
}

func isComparison(op BinaryOpKind) bool {
	switch op {
	case OpEQ, OpNE, OpGT, OpGE, OpLT, OpLE:
		return true
	}
	return false
}

func isArithmetic(op BinaryOpKind) bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		return true
	}
	return false
}

func comparisonType(l, r sql.Type) sql.Type {
	if l.Affinity == sql.Text || r.Affinity == sql.Text {
		return sql.TextType
	}
	return sql.NumericType
}

// evalAnd/evalOr implement SQL three-valued logic rather than Go's
// two-valued &&/||: NULL AND false is false, NULL OR true is true.
func evalAnd(ctx *sql.Context, l, r Expression) (interface{}, error) {
	lv, err := boolOrNull(ctx, l)
	if err != nil {
		return nil, err
	}
	if lv != nil && !*lv {
		return false, nil
	}
	rv, err := boolOrNull(ctx, r)
	if err != nil {
		return nil, err
	}
	if rv != nil && !*rv {
		return false, nil
	}
	if lv == nil || rv == nil {
		return nil, nil
	}
	return true, nil
}

func evalOr(ctx *sql.Context, l, r Expression) (interface{}, error) {
	lv, err := boolOrNull(ctx, l)
	if err != nil {
		return nil, err
	}
	if lv != nil && *lv {
		return true, nil
	}
	rv, err := boolOrNull(ctx, r)
	if err != nil {
		return nil, err
	}
	if rv != nil && *rv {
		return true, nil
	}
	if lv == nil || rv == nil {
		return nil, nil
	}
	return false, nil
}

func boolOrNull(ctx *sql.Context, e Expression) (*bool, error) {
	v, err := e.Eval(ctx)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return nil, sql.ErrTypeMismatch.New(err.Error())
	}
	return &b, nil
}
