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

import (
	"sort"

	"gopkg.in/yaml.v2"
)

// DeclaredSchema is the target shape `DECLARE SCHEMA` records: a named
// set of table definitions, compared against the live catalog by
// `DIFF SCHEMA` and materialized by `APPLY SCHEMA` (§6).
type DeclaredSchema struct {
	Name   string           `yaml:"name"`
	Tables []TableSchema    `yaml:"tables"`
}

// SchemaChangeKind enumerates the kinds of change a SchemaDiff entry
// describes.
type SchemaChangeKind string

const (
	SchemaChangeCreateTable SchemaChangeKind = "create_table"
	SchemaChangeDropTable   SchemaChangeKind = "drop_table"
	SchemaChangeAlterTable  SchemaChangeKind = "alter_table"
)

// SchemaChange is one row of a schema diff: what changes, on which
// table, and (for alters) the column-level detail.
type SchemaChange struct {
	Kind    SchemaChangeKind `yaml:"kind"`
	Table   string           `yaml:"table"`
	Detail  string           `yaml:"detail"`
}

// SchemaDiff is the ordered set of changes `DIFF SCHEMA` computes between
// a declared target and the live catalog; `APPLY SCHEMA` replays it.
type SchemaDiff struct {
	Changes []SchemaChange `yaml:"changes"`
}

// ToYAML renders the diff the way `EXPLAIN SCHEMA` does (§5 "Supplemented
// features"), using the teacher's own yaml.v2 dependency.
func (d SchemaDiff) ToYAML() (string, error) {
	out, err := yaml.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// DiffSchemas computes the SchemaDiff taking `current` (the live catalog,
// by table name) to `declared` (the target set), column-for-column.
// Table order in the result is alphabetical so the diff is stable across
// runs given the same inputs.
func DiffSchemas(current map[string]TableSchema, declared []TableSchema) SchemaDiff {
	declaredByName := make(map[string]TableSchema, len(declared))
	for _, t := range declared {
		declaredByName[t.Name] = t
	}

	var changes []SchemaChange

	for name, cur := range current {
		want, ok := declaredByName[name]
		if !ok {
			changes = append(changes, SchemaChange{Kind: SchemaChangeDropTable, Table: name})
			continue
		}
		if detail, changed := diffColumns(cur, want); changed {
			changes = append(changes, SchemaChange{Kind: SchemaChangeAlterTable, Table: name, Detail: detail})
		}
	}
	for _, want := range declared {
		if _, ok := current[want.Name]; !ok {
			changes = append(changes, SchemaChange{Kind: SchemaChangeCreateTable, Table: want.Name})
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Table != changes[j].Table {
			return changes[i].Table < changes[j].Table
		}
		return changes[i].Kind < changes[j].Kind
	})
	return SchemaDiff{Changes: changes}
}

func diffColumns(cur, want TableSchema) (string, bool) {
	if len(cur.Columns) != len(want.Columns) {
		return "column count differs", true
	}
	for i := range cur.Columns {
		a, b := cur.Columns[i], want.Columns[i]
		if a.Name != b.Name || a.Affinity != b.Affinity || a.Nullable != b.Nullable {
			return "column " + b.Name + " differs", true
		}
	}
	return "", false
}
