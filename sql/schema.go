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

// RelationType is §3's "Relation type": an ordered list of named
// attributes, the unique-key attribute sets, row constraints and flags.
type RelationType struct {
	Attributes []Attribute
	UniqueKeys [][]AttrId
	IsReadOnly bool
	IsSet      bool
}

// AttrIndex returns the column index of id within the relation, or -1.
func (r RelationType) AttrIndex(id AttrId) int {
	for i, a := range r.Attributes {
		if a.Id == id {
			return i
		}
	}
	return -1
}

// Descriptor builds the RowDescriptor a producer of this relation should
// push onto the row-context stack.
func (r RelationType) Descriptor() RowDescriptor {
	return NewRowDescriptor(r.Attributes)
}

// ColumnDef is a column in a persistent table schema (§3 "Table schema").
type ColumnDef struct {
	Name       string
	Affinity   Affinity
	Nullable   bool
	Default    interface{}
	Collation  Collation
	Hidden     bool
}

// PKColumn is one ordered component of a primary key definition.
type PKColumn struct {
	ColumnIndex int
	Desc        bool
	Collation   Collation
}

// CheckConstraint is a named boolean expression, stored as opaque text
// since expression parsing is the planner's job, not the schema's.
type CheckConstraint struct {
	Name string
	Expr string
}

// IndexDef describes a secondary index over a table.
type IndexDef struct {
	Name    string
	Columns []int
	Unique  bool
}

// TableSchema is the persistent definition of a virtual table (§3). An
// empty PrimaryKey means "all columns, singleton table" per §1's
// documented SQLite-like deviation.
type TableSchema struct {
	Name        string
	Columns     []ColumnDef
	PrimaryKey  []PKColumn
	Checks      []CheckConstraint
	Indexes     []IndexDef
	ModuleName  string
	ModuleArgs  []string
}

// AllColumnsKey reports whether this schema has the empty-PK "all columns
// are the key" deviation from §1.
func (s TableSchema) AllColumnsKey() bool {
	return len(s.PrimaryKey) == 0
}

// EffectivePrimaryKey returns the PK columns to use for row identity,
// resolving the AllColumnsKey deviation.
func (s TableSchema) EffectivePrimaryKey() []PKColumn {
	if !s.AllColumnsKey() {
		return s.PrimaryKey
	}
	pk := make([]PKColumn, len(s.Columns))
	for i := range s.Columns {
		pk[i] = PKColumn{ColumnIndex: i}
	}
	return pk
}

// RelationType converts the persistent schema into the RelationType a
// TableReference/TableScan node exposes, minting a fresh attribute per
// column.
func (s TableSchema) RelationType() RelationType {
	attrs := make([]Attribute, len(s.Columns))
	for i, c := range s.Columns {
		attrs[i] = Attribute{
			Id:   NewAttrId(),
			Name: c.Name,
			Type: Type{Affinity: c.Affinity, Nullable: c.Nullable, Collation: c.Collation},
		}
	}
	var keys [][]AttrId
	if len(s.PrimaryKey) > 0 {
		key := make([]AttrId, len(s.PrimaryKey))
		for i, pk := range s.EffectivePrimaryKey() {
			key[i] = attrs[pk.ColumnIndex].Id
		}
		keys = [][]AttrId{key}
	} else {
		key := make([]AttrId, len(attrs))
		for i := range attrs {
			key[i] = attrs[i].Id
		}
		keys = [][]AttrId{key}
	}
	return RelationType{Attributes: attrs, UniqueKeys: keys}
}

// ExtractKey pulls the primary-key tuple out of a full row, per §3 I5
// ("Primary-key extraction is deterministic and total on well-formed
// rows"). The returned value is comparable and suitable as a map/B-tree
// key when stringified by the caller's comparator.
func (s TableSchema) ExtractKey(row Row) (Row, error) {
	pk := s.EffectivePrimaryKey()
	key := make(Row, len(pk))
	for i, c := range pk {
		if c.ColumnIndex >= len(row) {
			return nil, ErrInvalidPK
		}
		key[i] = row[c.ColumnIndex]
	}
	return key, nil
}
