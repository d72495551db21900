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

// Cast is §4.A's CAST node: conversion failures fall back to the target
// affinity's default rather than erroring, per spec.
type Cast struct {
	UnaryExpression
	target sql.Type
}

// NewCast builds a CAST to the given target type.
func NewCast(child Expression, target sql.Type) *Cast {
	return &Cast{UnaryExpression: UnaryExpression{Child: child}, target: target}
}

func (c *Cast) Type() sql.Type { return c.target }

func (c *Cast) WithChildren(children ...Expression) (Expression, error) {
	if len(children) != 1 {
		return nil, sql.ErrInvariantViolation.New("Cast requires exactly 1 child")
	}
	return NewCast(children[0], c.target), nil
}

func (c *Cast) Deterministic() bool { return c.Child.Deterministic() }

func (c *Cast) String() string { return "CAST(" + c.Child.String() + " AS " + c.target.Affinity.String() + ")" }

func (c *Cast) Eval(ctx *sql.Context) (interface{}, error) {
	v, err := c.Child.Eval(ctx)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return sql.CoerceTo(v, c.target.Affinity), nil
}

// Collate annotates an expression (typically TEXT) with the collation
// under which comparisons/ordering should treat its value (§4.B).
type Collate struct {
	UnaryExpression
	collation sql.Collation
}

// NewCollate builds a COLLATE node.
func NewCollate(child Expression, collation sql.Collation) *Collate {
	return &Collate{UnaryExpression: UnaryExpression{Child: child}, collation: collation}
}

func (c *Collate) Type() sql.Type {
	t := c.Child.Type()
	t.Collation = c.collation
	return t
}

func (c *Collate) WithChildren(children ...Expression) (Expression, error) {
	if len(children) != 1 {
		return nil, sql.ErrInvariantViolation.New("Collate requires exactly 1 child")
	}
	return NewCollate(children[0], c.collation), nil
}

func (c *Collate) Deterministic() bool { return c.Child.Deterministic() }

func (c *Collate) String() string { return c.Child.String() + " COLLATE " + string(c.collation) }

func (c *Collate) Eval(ctx *sql.Context) (interface{}, error) { return c.Child.Eval(ctx) }
