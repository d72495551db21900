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

// In is §4.B's IN node, supporting both the list form (`x IN (1,2,3)`)
// and the subquery form (`x IN (SELECT ...)`); exactly one of List or
// Subquery is set. Negate flips it to NOT IN.
type In struct {
	Value    Expression
	List     []Expression
	Subquery *ScalarSubquery
	Negate   bool
}

// NewIn builds an IN-list expression.
func NewIn(value Expression, list []Expression, negate bool) *In {
	return &In{Value: value, List: list, Negate: negate}
}

// NewInSubquery builds an IN-subquery expression.
func NewInSubquery(value Expression, sub *ScalarSubquery, negate bool) *In {
	return &In{Value: value, Subquery: sub, Negate: negate}
}

func (i *In) Type() sql.Type { return sql.NullableInt }

func (i *In) Children() []Expression {
	out := append([]Expression{i.Value}, i.List...)
	if i.Subquery != nil {
		out = append(out, i.Subquery)
	}
	return out
}

func (i *In) WithChildren(children ...Expression) (Expression, error) {
	if len(children) < 1 {
		return nil, sql.ErrInvariantViolation.New("In requires at least a value child")
	}
	out := &In{Value: children[0], Negate: i.Negate}
	if i.Subquery != nil {
		sub, ok := children[len(children)-1].(*ScalarSubquery)
		if !ok {
			return nil, sql.ErrInvariantViolation.New("In subquery child must be *ScalarSubquery")
		}
		out.Subquery = sub
	} else {
		out.List = children[1:]
	}
	return out, nil
}

func (i *In) Deterministic() bool { return AllDeterministic(i.Children()) }

func (i *In) String() string {
	s := i.Value.String()
	if i.Negate {
		s += " NOT IN (...)"
	} else {
		s += " IN (...)"
	}
	return s
}

func (i *In) Eval(ctx *sql.Context) (interface{}, error) {
	v, err := i.Value.Eval(ctx)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	t := i.Value.Type()

	found := false
	sawNull := false

	if i.Subquery != nil {
		rows, err := i.Subquery.EvalRows(ctx)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if len(row) == 0 {
				continue
			}
			if row[0] == nil {
				sawNull = true
				continue
			}
			eq, _ := sql.Equal(v, row[0], t)
			if eq {
				found = true
				break
			}
		}
	} else {
		for _, e := range i.List {
			ev, err := e.Eval(ctx)
			if err != nil {
				return nil, err
			}
			if ev == nil {
				sawNull = true
				continue
			}
			eq, _ := sql.Equal(v, ev, t)
			if eq {
				found = true
				break
			}
		}
	}

	switch {
	case found:
		return !i.Negate, nil
	case sawNull:
		return nil, nil
	default:
		return i.Negate, nil
	}
}
