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
	"fmt"

	"github.com/dolthub/quereus/sql"
)

// Literal is a constant scalar value (§4.B).
type Literal struct {
	Value interface{}
	typ   sql.Type
}

// NewLiteral constructs a Literal of the given type.
func NewLiteral(value interface{}, t sql.Type) *Literal {
	return &Literal{Value: value, typ: t}
}

func (l *Literal) Type() sql.Type { return l.typ }

func (l *Literal) Eval(ctx *sql.Context) (interface{}, error) { return l.Value, nil }

func (l *Literal) Children() []Expression { return nil }

func (l *Literal) WithChildren(children ...Expression) (Expression, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvariantViolation.New("Literal accepts no children")
	}
	return l, nil
}

func (l *Literal) String() string {
	if l.Value == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", l.Value)
}

func (l *Literal) Deterministic() bool { return true }
