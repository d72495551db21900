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

// Package plan holds the relational plan node variants of §4.B: the
// logical operators the planbuilder produces and the physical operators
// the analyzer lowers them into. Following the "plan nodes as tagged
// unions" design note (§9), each variant is its own struct; shared
// behavior lives in the Node interface and the embeddable base.
package plan

import (
	"sync/atomic"

	"github.com/dolthub/quereus/sql"
	"github.com/dolthub/quereus/sql/expression"
)

// PhysicalProperties are the post-optimization guarantees §3/GLOSSARY
// describes: declared ordering, unique keys, determinism, read-only-ness,
// and whether the whole subtree is a compile-time constant.
type PhysicalProperties struct {
	Ordering    []OrderingAttr
	UniqueKeys  [][]sql.AttrId
	Deterministic bool
	ReadOnly    bool
	Constant    bool
}

// OrderingAttr is one ordering key expressed over an attribute id rather
// than a column index, since plan-level ordering must survive projection
// reordering.
type OrderingAttr struct {
	Attr sql.AttrId
	Desc bool
}

// SatisfiesPrefix reports whether this ordering (as produced by a scan or
// sort) covers required as the prefix a Sort node needs, letting §4.D's
// sort-elision rule (P4) compare them attribute-wise.
func SatisfiesPrefix(provided, required []OrderingAttr) bool {
	if len(provided) < len(required) {
		return false
	}
	for i, r := range required {
		if provided[i].Attr != r.Attr || provided[i].Desc != r.Desc {
			return false
		}
	}
	return true
}

var nodeCounter int64

// nextNodeId mints a stable per-process node identity (§4.B "stable
// id"), distinct from attribute ids.
func nextNodeId() int64 { return atomic.AddInt64(&nodeCounter, 1) }

// Node is the common relational plan node surface (§4.B): every variant,
// logical or physical, implements this.
type Node interface {
	ID() int64
	// RelType returns the node's output relation type (getType()).
	RelType() sql.RelationType
	// Children returns scalar child expressions (getChildren()).
	Children() []expression.Expression
	// Relations returns relational inputs (getRelations()).
	Relations() []Node
	// WithChildren returns a copy with scalar children replaced.
	WithChildren(children ...expression.Expression) (Node, error)
	// WithRelations returns a copy with relational inputs replaced.
	WithRelations(relations ...Node) (Node, error)
	// EstimatedRows is this node's output row estimate; EstimatedCost is
	// its own cost plus, for nodes that delegate to CostEstimate, the
	// summed costs of its relational inputs (§4.B).
	EstimatedRows() uint64
	EstimatedCost() float64
	// Physical returns this node's PhysicalProperties, nil before
	// optimization (I2 requires non-nil once executable).
	Physical() *PhysicalProperties
	// ComputePhysical derives this node's PhysicalProperties from its
	// already-computed children's properties; called bottom-up by the
	// optimizer's final annotation pass.
	ComputePhysical(children []*PhysicalProperties) *PhysicalProperties
	String() string
}

// base is embedded by every plan node to provide the id/physical
// plumbing common to all variants.
type base struct {
	id       int64
	physical *PhysicalProperties
}

func newBase() base { return base{id: nextNodeId()} }

func (b *base) ID() int64 { return b.id }

func (b *base) Physical() *PhysicalProperties { return b.physical }

func (b *base) SetPhysical(p *PhysicalProperties) { b.physical = p }

// RequirePhysical panics^H^H^Hreturns an Internal error if called on a
// node the optimizer never annotated, enforcing I2 at the scheduler
// boundary rather than silently compiling a half-optimized plan.
func RequirePhysical(n Node) (*PhysicalProperties, error) {
	p := n.Physical()
	if p == nil {
		return nil, sql.ErrNotOptimized.New(n)
	}
	return p, nil
}

// CostEstimate aggregates a node's self-cost with its children's,
// following §4.D's heuristic row-count * per-row-multiplier model. It is
// the shared helper every node's EstimatedCost delegates its
// multi-child summation to.
func CostEstimate(selfCost float64, children []Node) float64 {
	total := selfCost
	for _, c := range children {
		total += c.EstimatedCost()
	}
	return total
}
