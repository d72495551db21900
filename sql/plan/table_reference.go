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

// TableReference is the logical leaf the planbuilder emits for a table
// name in FROM (§3). The analyzer wraps every TableReference in a
// Retrieve placeholder before access-path selection runs.
type TableReference struct {
	base
	Schema sql.TableSchema
	Rel    sql.RelationType
	Module sql.Module
	Table  sql.Table
}

// NewTableReference builds a logical table reference, minting fresh
// attributes for the table's columns via Schema.RelationType().
func NewTableReference(schema sql.TableSchema, module sql.Module, table sql.Table) *TableReference {
	return &TableReference{base: newBase(), Schema: schema, Rel: schema.RelationType(), Module: module, Table: table}
}

func (t *TableReference) RelType() sql.RelationType { return t.Rel }

func (t *TableReference) Children() []expression.Expression { return nil }

func (t *TableReference) Relations() []Node { return nil }

func (t *TableReference) WithChildren(children ...expression.Expression) (Node, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvariantViolation.New("TableReference accepts no scalar children")
	}
	return t, nil
}

func (t *TableReference) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 0 {
		return nil, sql.ErrInvariantViolation.New("TableReference accepts no relational inputs")
	}
	return t, nil
}

func (t *TableReference) EstimatedRows() uint64 { return sql.DefaultUnknownRowEstimate }

func (t *TableReference) EstimatedCost() float64 { return float64(t.EstimatedRows()) }

func (t *TableReference) ComputePhysical(children []*PhysicalProperties) *PhysicalProperties {
	return &PhysicalProperties{Deterministic: true}
}

func (t *TableReference) String() string { return fmt.Sprintf("TableReference(%s)", t.Schema.Name) }

// Retrieve is the access-path placeholder §4.D installs around every
// TableReference before the analyzer asks the module for its best
// access plan. It is never executed directly: the analyzer always
// replaces it with a physical TableScan.
type Retrieve struct {
	base
	Ref              *TableReference
	PushedFilters    []sql.FilterConstraint
	RequiredOrdering []sql.OrderingKey
	Limit            int64
}

// NewRetrieve wraps a table reference for access-path negotiation.
func NewRetrieve(ref *TableReference) *Retrieve {
	return &Retrieve{base: newBase(), Ref: ref}
}

func (r *Retrieve) RelType() sql.RelationType { return r.Ref.Rel }

func (r *Retrieve) Children() []expression.Expression { return nil }

func (r *Retrieve) Relations() []Node { return []Node{r.Ref} }

func (r *Retrieve) WithChildren(children ...expression.Expression) (Node, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvariantViolation.New("Retrieve accepts no scalar children")
	}
	return r, nil
}

func (r *Retrieve) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 1 {
		return nil, sql.ErrInvariantViolation.New("Retrieve requires exactly 1 relational input")
	}
	ref, ok := relations[0].(*TableReference)
	if !ok {
		return nil, sql.ErrInvariantViolation.New("Retrieve's input must be a TableReference")
	}
	out := *r
	out.Ref = ref
	return &out, nil
}

func (r *Retrieve) EstimatedRows() uint64 { return r.Ref.EstimatedRows() }

func (r *Retrieve) EstimatedCost() float64 { return r.Ref.EstimatedCost() }

func (r *Retrieve) ComputePhysical(children []*PhysicalProperties) *PhysicalProperties {
	return &PhysicalProperties{Deterministic: true}
}

func (r *Retrieve) String() string { return fmt.Sprintf("Retrieve(%s)", r.Ref.Schema.Name) }

// TableScan is the physical operator the analyzer installs in place of a
// Retrieve once it has negotiated an AccessPlan with the module (§4.D
// step 1).
type TableScan struct {
	base
	Schema  sql.TableSchema
	Rel     sql.RelationType
	Module  sql.Module
	Table   sql.Table
	Plan    sql.AccessPlan
	Filters []sql.FilterConstraint
	Limit   int64
}

// NewTableScan builds a physical scan from a resolved access plan.
func NewTableScan(ref *TableReference, filters []sql.FilterConstraint, ap sql.AccessPlan, limit int64) *TableScan {
	return &TableScan{base: newBase(), Schema: ref.Schema, Rel: ref.Rel, Module: ref.Module, Table: ref.Table, Plan: ap, Filters: filters, Limit: limit}
}

func (t *TableScan) RelType() sql.RelationType { return t.Rel }

func (t *TableScan) Children() []expression.Expression { return nil }

func (t *TableScan) Relations() []Node { return nil }

func (t *TableScan) WithChildren(children ...expression.Expression) (Node, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvariantViolation.New("TableScan accepts no scalar children")
	}
	return t, nil
}

func (t *TableScan) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 0 {
		return nil, sql.ErrInvariantViolation.New("TableScan accepts no relational inputs")
	}
	return t, nil
}

func (t *TableScan) EstimatedRows() uint64 { return t.Plan.Rows }

func (t *TableScan) EstimatedCost() float64 { return t.Plan.Cost }

// ComputePhysical publishes the ordering/set-ness the module's access
// plan promised, per §4.D's "Each rewrite produces a node that overrides
// getPhysical to publish the new ordering/keys."
func (t *TableScan) ComputePhysical(children []*PhysicalProperties) *PhysicalProperties {
	ordering := make([]OrderingAttr, 0, len(t.Plan.ProvidesOrdering))
	for _, k := range t.Plan.ProvidesOrdering {
		if k.ColumnIndex < 0 || k.ColumnIndex >= len(t.Rel.Attributes) {
			continue
		}
		ordering = append(ordering, OrderingAttr{Attr: t.Rel.Attributes[k.ColumnIndex].Id, Desc: k.Desc})
	}
	var uniqueKeys [][]sql.AttrId
	if t.Plan.IsSet {
		uniqueKeys = t.Rel.UniqueKeys
	}
	return &PhysicalProperties{Ordering: ordering, UniqueKeys: uniqueKeys, Deterministic: true, ReadOnly: t.Rel.IsReadOnly}
}

func (t *TableScan) String() string { return fmt.Sprintf("TableScan(%s)", t.Schema.Name) }

// FilterInfo builds the sql.FilterInfo XQuery expects from this scan's
// resolved access plan.
func (t *TableScan) FilterInfo() sql.FilterInfo {
	return sql.FilterInfo{
		Filters:          t.Filters,
		HandledFilters:   t.Plan.HandledFilters,
		RequiredOrdering: t.Plan.ProvidesOrdering,
		Limit:            t.Limit,
		Opaque:           t.Plan.Opaque,
	}
}
