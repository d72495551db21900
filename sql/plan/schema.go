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

// DeclareSchema is §6's `DECLARE SCHEMA name { ... }` node: records a
// named sql.DeclaredSchema in the engine's schema catalog for later
// `DIFF SCHEMA`/`APPLY SCHEMA` statements to reference by name.
type DeclareSchema struct {
	ddlBase
	Schema sql.DeclaredSchema
}

// NewDeclareSchema builds a DECLARE SCHEMA node.
func NewDeclareSchema(schema sql.DeclaredSchema) *DeclareSchema {
	return &DeclareSchema{ddlBase: ddlBase{base: newBase()}, Schema: schema}
}

func (d *DeclareSchema) RelType() sql.RelationType { return statusRelation() }

func (d *DeclareSchema) WithChildren(children ...expression.Expression) (Node, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvariantViolation.New("DeclareSchema accepts no scalar children")
	}
	return d, nil
}

func (d *DeclareSchema) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 0 {
		return nil, sql.ErrInvariantViolation.New("DeclareSchema accepts no relational inputs")
	}
	return d, nil
}

func (d *DeclareSchema) String() string { return fmt.Sprintf("DeclareSchema(%s)", d.Schema.Name) }

// DiffSchema is §6's `DIFF SCHEMA name` node: yields one row per
// sql.SchemaChange comparing the live catalog against the named declared
// schema.
type DiffSchema struct {
	base
	SchemaName string
}

// NewDiffSchema builds a DIFF SCHEMA node.
func NewDiffSchema(schemaName string) *DiffSchema {
	return &DiffSchema{base: newBase(), SchemaName: schemaName}
}

func (d *DiffSchema) RelType() sql.RelationType {
	return sql.RelationType{Attributes: []sql.Attribute{
		{Id: sql.NewAttrId(), Name: "kind", Type: sql.TextType},
		{Id: sql.NewAttrId(), Name: "table", Type: sql.TextType},
		{Id: sql.NewAttrId(), Name: "detail", Type: sql.NullableText},
	}}
}

func (d *DiffSchema) Children() []expression.Expression { return nil }

func (d *DiffSchema) Relations() []Node { return nil }

func (d *DiffSchema) WithChildren(children ...expression.Expression) (Node, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvariantViolation.New("DiffSchema accepts no scalar children")
	}
	return d, nil
}

func (d *DiffSchema) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 0 {
		return nil, sql.ErrInvariantViolation.New("DiffSchema accepts no relational inputs")
	}
	return d, nil
}

func (d *DiffSchema) EstimatedRows() uint64 { return sql.DefaultUnknownRowEstimate }

func (d *DiffSchema) EstimatedCost() float64 { return 1 }

func (d *DiffSchema) ComputePhysical(children []*PhysicalProperties) *PhysicalProperties {
	return &PhysicalProperties{Deterministic: false, ReadOnly: true}
}

func (d *DiffSchema) String() string { return fmt.Sprintf("DiffSchema(%s)", d.SchemaName) }

// ApplySchema is §6's `APPLY SCHEMA name [WITH SEED]` node: replays the
// named declared schema's diff against the live catalog. Changes are
// applied one at a time and are not rolled back: a failure leaves the
// changes before it in place, and ALTER changes are not replayed.
// WithSeed is recorded on the node; the compiled statement does not read
// it, so no seed data is loaded.
type ApplySchema struct {
	ddlBase
	SchemaName string
	WithSeed   bool
}

// NewApplySchema builds an APPLY SCHEMA node.
func NewApplySchema(schemaName string, withSeed bool) *ApplySchema {
	return &ApplySchema{ddlBase: ddlBase{base: newBase()}, SchemaName: schemaName, WithSeed: withSeed}
}

func (a *ApplySchema) RelType() sql.RelationType { return statusRelation() }

func (a *ApplySchema) WithChildren(children ...expression.Expression) (Node, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvariantViolation.New("ApplySchema accepts no scalar children")
	}
	return a, nil
}

func (a *ApplySchema) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 0 {
		return nil, sql.ErrInvariantViolation.New("ApplySchema accepts no relational inputs")
	}
	return a, nil
}

func (a *ApplySchema) String() string { return fmt.Sprintf("ApplySchema(%s)", a.SchemaName) }

// ExplainSchema is §6's `EXPLAIN SCHEMA name` node: renders the named
// declared schema's diff against the live catalog as a YAML document
// (§2 AMBIENT STACK "Configuration" / §5 "Supplemented features"), one
// row holding the whole rendered document.
type ExplainSchema struct {
	base
	SchemaName string
}

// NewExplainSchema builds an EXPLAIN SCHEMA node.
func NewExplainSchema(schemaName string) *ExplainSchema {
	return &ExplainSchema{base: newBase(), SchemaName: schemaName}
}

func (e *ExplainSchema) RelType() sql.RelationType {
	return sql.RelationType{Attributes: []sql.Attribute{{Id: sql.NewAttrId(), Name: "yaml", Type: sql.TextType}}}
}

func (e *ExplainSchema) Children() []expression.Expression { return nil }

func (e *ExplainSchema) Relations() []Node { return nil }

func (e *ExplainSchema) WithChildren(children ...expression.Expression) (Node, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvariantViolation.New("ExplainSchema accepts no scalar children")
	}
	return e, nil
}

func (e *ExplainSchema) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 0 {
		return nil, sql.ErrInvariantViolation.New("ExplainSchema accepts no relational inputs")
	}
	return e, nil
}

func (e *ExplainSchema) EstimatedRows() uint64 { return 1 }

func (e *ExplainSchema) EstimatedCost() float64 { return 1 }

func (e *ExplainSchema) ComputePhysical(children []*PhysicalProperties) *PhysicalProperties {
	return &PhysicalProperties{Deterministic: false, ReadOnly: true}
}

func (e *ExplainSchema) String() string { return fmt.Sprintf("ExplainSchema(%s)", e.SchemaName) }
