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

// ddlBase is embedded by the utility DDL nodes of §3/§6: each is a
// relational leaf (no scalar or relational children) executed once for
// its side effect, yielding zero or one status row.
type ddlBase struct {
	base
}

func (ddlBase) Children() []expression.Expression { return nil }

func (ddlBase) Relations() []Node { return nil }

func (d *ddlBase) EstimatedRows() uint64 { return 0 }

func (d *ddlBase) EstimatedCost() float64 { return 1 }

func (d *ddlBase) ComputePhysical(children []*PhysicalProperties) *PhysicalProperties {
	return &PhysicalProperties{Deterministic: false, ReadOnly: false}
}

func statusRelation() sql.RelationType {
	return sql.RelationType{Attributes: []sql.Attribute{{Id: sql.NewAttrId(), Name: "status", Type: sql.TextType}}}
}

// CreateTable is §6's `CREATE TABLE`.
type CreateTable struct {
	ddlBase
	Schema      sql.TableSchema
	Module      sql.Module
	IfNotExists bool
}

// NewCreateTable builds a CREATE TABLE node.
func NewCreateTable(schema sql.TableSchema, module sql.Module, ifNotExists bool) *CreateTable {
	return &CreateTable{ddlBase: ddlBase{base: newBase()}, Schema: schema, Module: module, IfNotExists: ifNotExists}
}

func (c *CreateTable) RelType() sql.RelationType { return statusRelation() }

func (c *CreateTable) WithChildren(children ...expression.Expression) (Node, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvariantViolation.New("CreateTable accepts no scalar children")
	}
	return c, nil
}

func (c *CreateTable) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 0 {
		return nil, sql.ErrInvariantViolation.New("CreateTable accepts no relational inputs")
	}
	return c, nil
}

func (c *CreateTable) String() string { return fmt.Sprintf("CreateTable(%s)", c.Schema.Name) }

// CreateIndex is §6's `CREATE INDEX`.
type CreateIndex struct {
	ddlBase
	Table  sql.Table
	Schema sql.TableSchema
	Index  sql.IndexDef
}

// NewCreateIndex builds a CREATE INDEX node.
func NewCreateIndex(table sql.Table, schema sql.TableSchema, index sql.IndexDef) *CreateIndex {
	return &CreateIndex{ddlBase: ddlBase{base: newBase()}, Table: table, Schema: schema, Index: index}
}

func (c *CreateIndex) RelType() sql.RelationType { return statusRelation() }

func (c *CreateIndex) WithChildren(children ...expression.Expression) (Node, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvariantViolation.New("CreateIndex accepts no scalar children")
	}
	return c, nil
}

func (c *CreateIndex) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 0 {
		return nil, sql.ErrInvariantViolation.New("CreateIndex accepts no relational inputs")
	}
	return c, nil
}

func (c *CreateIndex) String() string { return fmt.Sprintf("CreateIndex(%s)", c.Index.Name) }

// CreateView is §6's `CREATE VIEW`: Body is the view's planned query,
// stored as the logical plan a later reference re-inlines (views are not
// materialized by the core, per §1's storage-agnostic scope).
type CreateView struct {
	base
	Name string
	Body Node
}

// NewCreateView builds a CREATE VIEW node.
func NewCreateView(name string, body Node) *CreateView {
	return &CreateView{base: newBase(), Name: name, Body: body}
}

func (c *CreateView) RelType() sql.RelationType { return statusRelation() }

func (c *CreateView) Children() []expression.Expression { return nil }

func (c *CreateView) Relations() []Node { return []Node{c.Body} }

func (c *CreateView) WithChildren(children ...expression.Expression) (Node, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvariantViolation.New("CreateView accepts no scalar children")
	}
	return c, nil
}

func (c *CreateView) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 1 {
		return nil, sql.ErrInvariantViolation.New("CreateView requires exactly 1 relational input")
	}
	return NewCreateView(c.Name, relations[0]), nil
}

func (c *CreateView) EstimatedRows() uint64 { return 0 }

func (c *CreateView) EstimatedCost() float64 { return 1 }

func (c *CreateView) ComputePhysical(children []*PhysicalProperties) *PhysicalProperties {
	return &PhysicalProperties{Deterministic: false, ReadOnly: false}
}

func (c *CreateView) String() string { return fmt.Sprintf("CreateView(%s)", c.Name) }

// DropKind distinguishes what a Drop node removes.
type DropKind int

const (
	DropKindTable DropKind = iota
	DropKindView
)

// Drop is §6's `DROP TABLE`/`DROP VIEW`.
type Drop struct {
	ddlBase
	Kind     DropKind
	Name     string
	IfExists bool
}

// NewDrop builds a DROP TABLE/VIEW node.
func NewDrop(kind DropKind, name string, ifExists bool) *Drop {
	return &Drop{ddlBase: ddlBase{base: newBase()}, Kind: kind, Name: name, IfExists: ifExists}
}

func (d *Drop) RelType() sql.RelationType { return statusRelation() }

func (d *Drop) WithChildren(children ...expression.Expression) (Node, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvariantViolation.New("Drop accepts no scalar children")
	}
	return d, nil
}

func (d *Drop) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 0 {
		return nil, sql.ErrInvariantViolation.New("Drop accepts no relational inputs")
	}
	return d, nil
}

func (d *Drop) String() string { return fmt.Sprintf("Drop(%s)", d.Name) }

// AddConstraint is §6's `ALTER TABLE ADD CONSTRAINT`.
type AddConstraint struct {
	ddlBase
	Table      sql.Table
	Schema     sql.TableSchema
	Constraint sql.CheckConstraint
}

// NewAddConstraint builds an ALTER TABLE ADD CONSTRAINT node.
func NewAddConstraint(table sql.Table, schema sql.TableSchema, constraint sql.CheckConstraint) *AddConstraint {
	return &AddConstraint{ddlBase: ddlBase{base: newBase()}, Table: table, Schema: schema, Constraint: constraint}
}

func (a *AddConstraint) RelType() sql.RelationType { return statusRelation() }

func (a *AddConstraint) WithChildren(children ...expression.Expression) (Node, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvariantViolation.New("AddConstraint accepts no scalar children")
	}
	return a, nil
}

func (a *AddConstraint) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 0 {
		return nil, sql.ErrInvariantViolation.New("AddConstraint accepts no relational inputs")
	}
	return a, nil
}

func (a *AddConstraint) String() string { return fmt.Sprintf("AddConstraint(%s)", a.Constraint.Name) }

// CreateAssertion is §6's `CREATE ASSERTION`: a named boolean expression
// checked across the whole database (not a single table's CHECK), stored
// as an always-evaluated predicate the engine re-validates at commit.
type CreateAssertion struct {
	base
	Name      string
	Predicate expression.Expression
}

// NewCreateAssertion builds a CREATE ASSERTION node.
func NewCreateAssertion(name string, predicate expression.Expression) *CreateAssertion {
	return &CreateAssertion{base: newBase(), Name: name, Predicate: predicate}
}

func (c *CreateAssertion) RelType() sql.RelationType { return statusRelation() }

func (c *CreateAssertion) Children() []expression.Expression {
	return []expression.Expression{c.Predicate}
}

func (c *CreateAssertion) Relations() []Node { return nil }

func (c *CreateAssertion) WithChildren(children ...expression.Expression) (Node, error) {
	if len(children) != 1 {
		return nil, sql.ErrInvariantViolation.New("CreateAssertion requires exactly 1 scalar child")
	}
	return NewCreateAssertion(c.Name, children[0]), nil
}

func (c *CreateAssertion) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 0 {
		return nil, sql.ErrInvariantViolation.New("CreateAssertion accepts no relational inputs")
	}
	return c, nil
}

func (c *CreateAssertion) EstimatedRows() uint64 { return 0 }

func (c *CreateAssertion) EstimatedCost() float64 { return 1 }

func (c *CreateAssertion) ComputePhysical(children []*PhysicalProperties) *PhysicalProperties {
	return &PhysicalProperties{Deterministic: false, ReadOnly: false}
}

func (c *CreateAssertion) String() string { return fmt.Sprintf("CreateAssertion(%s)", c.Name) }

// DropAssertion is §6's `DROP ASSERTION`.
type DropAssertion struct {
	ddlBase
	Name     string
	IfExists bool
}

// NewDropAssertion builds a DROP ASSERTION node.
func NewDropAssertion(name string, ifExists bool) *DropAssertion {
	return &DropAssertion{ddlBase: ddlBase{base: newBase()}, Name: name, IfExists: ifExists}
}

func (d *DropAssertion) RelType() sql.RelationType { return statusRelation() }

func (d *DropAssertion) WithChildren(children ...expression.Expression) (Node, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvariantViolation.New("DropAssertion accepts no scalar children")
	}
	return d, nil
}

func (d *DropAssertion) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 0 {
		return nil, sql.ErrInvariantViolation.New("DropAssertion accepts no relational inputs")
	}
	return d, nil
}

func (d *DropAssertion) String() string { return fmt.Sprintf("DropAssertion(%s)", d.Name) }
