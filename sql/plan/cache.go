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

// DefaultCacheThreshold is the row count above which a CacheNode's
// buffer is discarded rather than replayed (§4.E "Caching").
const DefaultCacheThreshold = 10000

// Cache is §4.B's Cache node, wrapping a re-executed sub-plan (nested-
// loop inner side, correlated subquery) with a streaming-first buffer
// (§4.E). Threshold <= 0 means DefaultCacheThreshold.
type Cache struct {
	base
	unaryRel
	Threshold int
}

// NewCache builds a Cache over input with the given buffer threshold.
func NewCache(input Node, threshold int) *Cache {
	if threshold <= 0 {
		threshold = DefaultCacheThreshold
	}
	return &Cache{base: newBase(), unaryRel: unaryRel{Input: input}, Threshold: threshold}
}

func (c *Cache) Children() []expression.Expression { return nil }

func (c *Cache) WithChildren(children ...expression.Expression) (Node, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvariantViolation.New("Cache accepts no scalar children")
	}
	return c, nil
}

func (c *Cache) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 1 {
		return nil, sql.ErrInvariantViolation.New("Cache requires exactly 1 relational input")
	}
	return NewCache(relations[0], c.Threshold), nil
}

func (c *Cache) EstimatedRows() uint64 { return c.Input.EstimatedRows() }

func (c *Cache) EstimatedCost() float64 { return CostEstimate(0, []Node{c.Input}) }

func (c *Cache) ComputePhysical(children []*PhysicalProperties) *PhysicalProperties {
	return children[0]
}

func (c *Cache) String() string { return fmt.Sprintf("Cache(threshold=%d)", c.Threshold) }

// Sink is §4.B's Sink node: a no-op pass-through relational wrapper used
// to mark a subtree's output as the final statement result, giving the
// scheduler a single well-known root to drive regardless of what kind of
// node the statement body actually produces.
type Sink struct {
	base
	unaryRel
}

// NewSink wraps input as the statement's terminal output.
func NewSink(input Node) *Sink { return &Sink{base: newBase(), unaryRel: unaryRel{Input: input}} }

func (s *Sink) Children() []expression.Expression { return nil }

func (s *Sink) WithChildren(children ...expression.Expression) (Node, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvariantViolation.New("Sink accepts no scalar children")
	}
	return s, nil
}

func (s *Sink) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 1 {
		return nil, sql.ErrInvariantViolation.New("Sink requires exactly 1 relational input")
	}
	return NewSink(relations[0]), nil
}

func (s *Sink) EstimatedRows() uint64 { return s.Input.EstimatedRows() }

func (s *Sink) EstimatedCost() float64 { return CostEstimate(0, []Node{s.Input}) }

func (s *Sink) ComputePhysical(children []*PhysicalProperties) *PhysicalProperties {
	return children[0]
}

func (s *Sink) String() string { return "Sink" }
