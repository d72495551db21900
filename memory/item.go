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

// Package memory is the built-in in-memory virtual-table module: a
// committed B-tree base layer plus a per-connection MVCC overlay of
// transaction layers, giving each connection snapshot isolation and
// read-your-own-writes without locking readers against writers.
package memory

import (
	"github.com/google/btree"

	"github.com/dolthub/quereus/sql"
)

// rowItem is one primary-key slot in a layer's modification (or base)
// tree. Tombstone marks a delete recorded by an overlay; the base tree
// never holds tombstones since a commit fold deletes the slot outright.
type rowItem struct {
	Key       sql.Row
	Row       sql.Row
	Tombstone bool
}

// idxItem is one slot of a secondary index tree, ordered by (indexKey,
// pk) per §4.H so ties between equal index keys break on primary key.
type idxItem struct {
	IndexKey  sql.Row
	PK        sql.Row
	Tombstone bool
}

// keyLess builds the ordering a primary-key tree uses from the schema's
// effective primary key, comparing component-wise under each column's
// declared affinity/collation (§3's "total order for index purposes").
func keyLess(schema sql.TableSchema) btree.LessFunc[*rowItem] {
	pk := schema.EffectivePrimaryKey()
	types := make([]sql.Type, len(pk))
	for i, c := range pk {
		col := schema.Columns[c.ColumnIndex]
		types[i] = sql.Type{Affinity: col.Affinity, Collation: col.Collation}
	}
	return func(a, b *rowItem) bool {
		return rowKeyLess(a.Key, b.Key, types, pk)
	}
}

func rowKeyLess(a, b sql.Row, types []sql.Type, pk []sql.PKColumn) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		cmp, _ := sql.Compare(a[i], b[i], types[i])
		if pk[i].Desc {
			cmp = -cmp
		}
		if cmp != 0 {
			return cmp < 0
		}
	}
	return false
}

// indexLess builds the ordering a secondary index tree uses: the index's
// own columns first, then the primary key as a tiebreaker so two rows
// with an equal (non-unique) index key still order deterministically.
func indexLess(schema sql.TableSchema, idx sql.IndexDef) btree.LessFunc[*idxItem] {
	types := make([]sql.Type, len(idx.Columns))
	for i, ci := range idx.Columns {
		col := schema.Columns[ci]
		types[i] = sql.Type{Affinity: col.Affinity, Collation: col.Collation}
	}
	pk := schema.EffectivePrimaryKey()
	pkTypes := make([]sql.Type, len(pk))
	for i, c := range pk {
		col := schema.Columns[c.ColumnIndex]
		pkTypes[i] = sql.Type{Affinity: col.Affinity, Collation: col.Collation}
	}
	return func(a, b *idxItem) bool {
		for i := 0; i < len(types); i++ {
			cmp, _ := sql.Compare(a.IndexKey[i], b.IndexKey[i], types[i])
			if cmp != 0 {
				return cmp < 0
			}
		}
		return rowKeyLess(a.PK, b.PK, pkTypes, pk)
	}
}

func indexKey(row sql.Row, idx sql.IndexDef) sql.Row {
	key := make(sql.Row, len(idx.Columns))
	for i, ci := range idx.Columns {
		key[i] = row[ci]
	}
	return key
}
