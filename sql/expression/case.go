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

// CaseBranch is one WHEN/THEN pair of a Case expression.
type CaseBranch struct {
	When Expression
	Then Expression
}

// Case is §4.B's CASE node, supporting both the simple (`CASE x WHEN ...`)
// and searched (`CASE WHEN cond ...`) forms; Value is nil for the
// searched form.
type Case struct {
	Value    Expression
	Branches []CaseBranch
	Else     Expression
	typ      sql.Type
}

// NewCase builds a CASE expression.
func NewCase(value Expression, branches []CaseBranch, elseExpr Expression, typ sql.Type) *Case {
	return &Case{Value: value, Branches: branches, Else: elseExpr, typ: typ}
}

func (c *Case) Type() sql.Type { return c.typ }

func (c *Case) Children() []Expression {
	var out []Expression
	if c.Value != nil {
		out = append(out, c.Value)
	}
	for _, b := range c.Branches {
		out = append(out, b.When, b.Then)
	}
	if c.Else != nil {
		out = append(out, c.Else)
	}
	return out
}

func (c *Case) WithChildren(children ...Expression) (Expression, error) {
	i := 0
	var value Expression
	if c.Value != nil {
		value = children[i]
		i++
	}
	branches := make([]CaseBranch, len(c.Branches))
	for j := range branches {
		branches[j] = CaseBranch{When: children[i], Then: children[i+1]}
		i += 2
	}
	var elseExpr Expression
	if c.Else != nil {
		elseExpr = children[i]
	}
	return NewCase(value, branches, elseExpr, c.typ), nil
}

func (c *Case) Deterministic() bool { return AllDeterministic(c.Children()) }

func (c *Case) String() string { return "CASE ... END" }

func (c *Case) Eval(ctx *sql.Context) (interface{}, error) {
	var valueV interface{}
	if c.Value != nil {
		v, err := c.Value.Eval(ctx)
		if err != nil {
			return nil, err
		}
		valueV = v
	}
	for _, b := range c.Branches {
		if c.Value != nil {
			whenV, err := b.When.Eval(ctx)
			if err != nil {
				return nil, err
			}
			if whenV == nil || valueV == nil {
				continue
			}
			eq, isNull := sql.Equal(valueV, whenV, c.Value.Type())
			if isNull || !eq {
				continue
			}
			return b.Then.Eval(ctx)
		}
		cond, err := b.When.Eval(ctx)
		if err != nil {
			return nil, err
		}
		if cond == nil {
			continue
		}
		bv, err := cast.ToBoolE(cond)
		if err != nil {
			return nil, sql.ErrTypeMismatch.New(err.Error())
		}
		if bv {
			return b.Then.Eval(ctx)
		}
	}
	if c.Else != nil {
		return c.Else.Eval(ctx)
	}
	return nil, nil
}

// Between is §4.B's BETWEEN node: `value BETWEEN lower AND upper`.
type Between struct {
	Value, Lower, Upper Expression
}

// NewBetween builds a BETWEEN expression.
func NewBetween(value, lower, upper Expression) *Between {
	return &Between{Value: value, Lower: lower, Upper: upper}
}

func (b *Between) Type() sql.Type { return sql.NullableInt }

func (b *Between) Children() []Expression { return []Expression{b.Value, b.Lower, b.Upper} }

func (b *Between) WithChildren(children ...Expression) (Expression, error) {
	if len(children) != 3 {
		return nil, sql.ErrInvariantViolation.New("Between requires exactly 3 children")
	}
	return NewBetween(children[0], children[1], children[2]), nil
}

func (b *Between) Deterministic() bool { return AllDeterministic(b.Children()) }

func (b *Between) String() string {
	return b.Value.String() + " BETWEEN " + b.Lower.String() + " AND " + b.Upper.String()
}

func (b *Between) Eval(ctx *sql.Context) (interface{}, error) {
	v, err := b.Value.Eval(ctx)
	if err != nil {
		return nil, err
	}
	lo, err := b.Lower.Eval(ctx)
	if err != nil {
		return nil, err
	}
	hi, err := b.Upper.Eval(ctx)
	if err != nil {
		return nil, err
	}
	if v == nil || lo == nil || hi == nil {
		return nil, nil
	}
	t := b.Value.Type()
	loCmp, _ := sql.Compare(v, lo, t)
	hiCmp, _ := sql.Compare(v, hi, t)
	return loCmp >= 0 && hiCmp <= 0, nil
}
