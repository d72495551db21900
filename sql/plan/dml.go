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

// DmlOp enumerates the mutation §4.E's DmlExecutor performs.
type DmlOp int

const (
	DmlInsert DmlOp = iota
	DmlUpdate
	DmlDelete
)

func (o DmlOp) String() string {
	switch o {
	case DmlInsert:
		return "insert"
	case DmlUpdate:
		return "update"
	case DmlDelete:
		return "delete"
	}
	return "?"
}

// DmlExecutor is §4.B/§4.E's sole mutation point: it pulls flat
// "OLD|NEW" rows from Source (the result of the DML statement's WHERE-
// filtered scan plus any SET-list projection for UPDATE), applies
// affinity coercion for INSERT, extracts the primary key for
// UPDATE/DELETE, invokes the vtab's Update, and yields the flat row so
// Returning can project it. OldColumns/NewColumns index Source's output
// row to locate each half when both are present (UPDATE).
type DmlExecutor struct {
	base
	unaryRel
	Op          DmlOp
	Schema      sql.TableSchema
	Module      sql.Module
	Table       sql.Table
	OnConflict  sql.ConflictPolicy
	NewColumns  []int // Source row indexes holding the post-image, empty for DELETE
	OldColumns  []int // Source row indexes holding the pre-image, empty for INSERT
	outAttrs    []sql.Attribute
}

// NewDmlExecutor builds a DmlExecutor over source.
func NewDmlExecutor(op DmlOp, schema sql.TableSchema, module sql.Module, table sql.Table, onConflict sql.ConflictPolicy, newColumns, oldColumns []int, source Node) *DmlExecutor {
	return &DmlExecutor{
		base: newBase(), unaryRel: unaryRel{Input: source}, Op: op, Schema: schema, Module: module, Table: table,
		OnConflict: onConflict, NewColumns: newColumns, OldColumns: oldColumns,
		outAttrs: schema.RelationType().Attributes,
	}
}

func (d *DmlExecutor) RelType() sql.RelationType { return sql.RelationType{Attributes: d.outAttrs} }

func (d *DmlExecutor) Children() []expression.Expression { return nil }

func (d *DmlExecutor) WithChildren(children ...expression.Expression) (Node, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvariantViolation.New("DmlExecutor accepts no scalar children")
	}
	return d, nil
}

func (d *DmlExecutor) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 1 {
		return nil, sql.ErrInvariantViolation.New("DmlExecutor requires exactly 1 relational input")
	}
	out := *d
	out.Input = relations[0]
	return &out, nil
}

func (d *DmlExecutor) EstimatedRows() uint64 { return d.Input.EstimatedRows() }

func (d *DmlExecutor) EstimatedCost() float64 {
	return CostEstimate(float64(d.Input.EstimatedRows())*2, []Node{d.Input})
}

func (d *DmlExecutor) ComputePhysical(children []*PhysicalProperties) *PhysicalProperties {
	return &PhysicalProperties{Deterministic: false, ReadOnly: false}
}

func (d *DmlExecutor) String() string { return fmt.Sprintf("DmlExecutor(%s %s)", d.Op, d.Schema.Name) }

// Returning is §4.B's RETURNING node: projects DmlExecutor's yielded flat
// row through Projections, the same way a normal Project would over a
// scan, letting RETURNING reuse arbitrary scalar expressions over the
// mutated row's attributes.
type Returning struct {
	base
	unaryRel
	Projections []expression.Expression
	outAttrs    []sql.Attribute
}

// NewReturning builds a RETURNING projection over a DmlExecutor input.
func NewReturning(projections []expression.Expression, names []string, input Node) *Returning {
	attrs := make([]sql.Attribute, len(projections))
	for i, p := range projections {
		name := ""
		if i < len(names) {
			name = names[i]
		}
		attrs[i] = sql.Attribute{Id: sql.NewAttrId(), Name: name, Type: p.Type()}
	}
	return &Returning{base: newBase(), unaryRel: unaryRel{Input: input}, Projections: projections, outAttrs: attrs}
}

func (r *Returning) RelType() sql.RelationType { return sql.RelationType{Attributes: r.outAttrs} }

func (r *Returning) Children() []expression.Expression { return r.Projections }

func (r *Returning) WithChildren(children ...expression.Expression) (Node, error) {
	if len(children) != len(r.Projections) {
		return nil, sql.ErrInvariantViolation.New("Returning child count mismatch")
	}
	names := make([]string, len(r.outAttrs))
	for i, a := range r.outAttrs {
		names[i] = a.Name
	}
	out := NewReturning(children, names, r.Input)
	out.outAttrs = r.outAttrs
	return out, nil
}

func (r *Returning) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 1 {
		return nil, sql.ErrInvariantViolation.New("Returning requires exactly 1 relational input")
	}
	out := *r
	out.Input = relations[0]
	return &out, nil
}

func (r *Returning) EstimatedRows() uint64 { return r.Input.EstimatedRows() }

func (r *Returning) EstimatedCost() float64 {
	return CostEstimate(float64(r.Input.EstimatedRows()), []Node{r.Input})
}

func (r *Returning) ComputePhysical(children []*PhysicalProperties) *PhysicalProperties {
	return children[0]
}

func (r *Returning) String() string { return "Returning" }

// Block is §4.B's Block node: the top-level container for a single
// prepared statement, carrying the parameter shape captured during
// planning (§4.B "Block carries a snapshot of the SQL parameter shape").
type Block struct {
	base
	unaryRel
	Params []ParamInfo
}

// ParamInfo records one parameter's resolved shape as captured on the
// enclosing Block (§4.C "Parameters").
type ParamInfo struct {
	Index int // 1-based positional index, 0 if purely named
	Name  string
	Type  sql.Type
}

// NewBlock wraps a statement body with its parameter shape.
func NewBlock(body Node, params []ParamInfo) *Block {
	return &Block{base: newBase(), unaryRel: unaryRel{Input: body}, Params: params}
}

func (b *Block) Children() []expression.Expression { return nil }

func (b *Block) WithChildren(children ...expression.Expression) (Node, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvariantViolation.New("Block accepts no scalar children")
	}
	return b, nil
}

func (b *Block) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 1 {
		return nil, sql.ErrInvariantViolation.New("Block requires exactly 1 relational input")
	}
	return NewBlock(relations[0], b.Params), nil
}

func (b *Block) EstimatedRows() uint64 { return b.Input.EstimatedRows() }

func (b *Block) EstimatedCost() float64 { return CostEstimate(0, []Node{b.Input}) }

func (b *Block) ComputePhysical(children []*PhysicalProperties) *PhysicalProperties {
	return children[0]
}

func (b *Block) String() string { return fmt.Sprintf("Block(%d params)", len(b.Params)) }
