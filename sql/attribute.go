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

package sql

import "sync/atomic"

// AttrId is a process-wide, plan-scoped integer identity for a relational
// attribute (§3, §9 "Attributes by value with interned IDs"). Producer
// nodes (scans, projections, aggregates) mint these; consumers reference
// them by ID, never by name or ordinal.
type AttrId int64

var attrCounter int64

// NewAttrId issues the next attribute ID from the global monotonic
// counter described in §4.A. Append-only, safe to call concurrently.
func NewAttrId() AttrId {
	return AttrId(atomic.AddInt64(&attrCounter, 1))
}

// Attribute pairs an AttrId with the name and type it was produced under.
type Attribute struct {
	Id   AttrId
	Name string
	Type Type
}

// RowDescriptor maps attribute IDs to column indexes within a concrete
// row, §4.F / GLOSSARY "Row descriptor". Descriptors are small and are
// rebuilt per producer node, not mutated in place.
type RowDescriptor map[AttrId]int

// NewRowDescriptor builds a descriptor from an ordered attribute list,
// the common case for a relational node's output.
func NewRowDescriptor(attrs []Attribute) RowDescriptor {
	d := make(RowDescriptor, len(attrs))
	for i, a := range attrs {
		d[a.Id] = i
	}
	return d
}
