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

package memory

import (
	"testing"

	"github.com/google/btree"
	"github.com/stretchr/testify/require"

	"github.com/dolthub/quereus/sql"
)

func TestMergeRowsOverlayUpsertHidesBaseRow(t *testing.T) {
	schema := peopleSchema()
	less := keyLess(schema)
	base := btree.NewG(32, less)
	base.ReplaceOrInsert(&rowItem{Key: sql.Row{int64(1)}, Row: sql.Row{int64(1), "ada", nil}})

	overlay := NewTransactionLayer(base, 0, less, nil)
	overlay.Put(&rowItem{Key: sql.Row{int64(1)}, Row: sql.Row{int64(1), "ada lovelace", nil}})

	rows := mergeRows(base, overlay, less, false)
	require.Len(t, rows, 1)
	require.Equal(t, "ada lovelace", rows[0][1])
}

func TestMergeRowsOverlayTombstoneSuppressesBaseRow(t *testing.T) {
	schema := peopleSchema()
	less := keyLess(schema)
	base := btree.NewG(32, less)
	base.ReplaceOrInsert(&rowItem{Key: sql.Row{int64(1)}, Row: sql.Row{int64(1), "ada", nil}})

	overlay := NewTransactionLayer(base, 0, less, nil)
	overlay.Put(&rowItem{Key: sql.Row{int64(1)}, Tombstone: true})

	rows := mergeRows(base, overlay, less, false)
	require.Empty(t, rows)
}

func TestMergeRowsNilOverlayPassesBaseThrough(t *testing.T) {
	schema := peopleSchema()
	less := keyLess(schema)
	base := btree.NewG(32, less)
	base.ReplaceOrInsert(&rowItem{Key: sql.Row{int64(1)}, Row: sql.Row{int64(1), "ada", nil}})

	rows := mergeRows(base, nil, less, false)
	require.Len(t, rows, 1)
	require.Equal(t, "ada", rows[0][1])
}

func TestMergeRowsInterleavesOverlayKeyInSortedPosition(t *testing.T) {
	schema := peopleSchema()
	less := keyLess(schema)
	base := btree.NewG(32, less)
	base.ReplaceOrInsert(&rowItem{Key: sql.Row{int64(1)}, Row: sql.Row{int64(1), "ada", nil}})
	base.ReplaceOrInsert(&rowItem{Key: sql.Row{int64(3)}, Row: sql.Row{int64(3), "carol", nil}})

	overlay := NewTransactionLayer(base, 0, less, nil)
	overlay.Put(&rowItem{Key: sql.Row{int64(2)}, Row: sql.Row{int64(2), "bob", nil}})

	rows := mergeRows(base, overlay, less, false)
	require.Equal(t, []sql.Row{
		{int64(1), "ada", nil},
		{int64(2), "bob", nil},
		{int64(3), "carol", nil},
	}, rows)

	desc := mergeRows(base, overlay, less, true)
	require.Equal(t, []sql.Row{
		{int64(3), "carol", nil},
		{int64(2), "bob", nil},
		{int64(1), "ada", nil},
	}, desc)
}

func TestMergeIndexPKsSuppressesTombstonedOverlayEntries(t *testing.T) {
	schema := peopleSchema()
	idx := sql.IndexDef{Name: "email_idx", Columns: []int{2}}
	less := indexLess(schema, idx)

	base := btree.NewG(32, less)
	base.ReplaceOrInsert(&idxItem{IndexKey: sql.Row{"ada@example.com"}, PK: sql.Row{int64(1)}})

	overlay := btree.NewG(32, less)
	overlay.ReplaceOrInsert(&idxItem{IndexKey: sql.Row{"ada@example.com"}, PK: sql.Row{int64(1)}, Tombstone: true})

	pks := mergeIndexPKs(base, overlay, sql.Row{"ada@example.com"})
	require.Empty(t, pks)
}

func TestMergeIndexPKsCombinesBaseAndOverlay(t *testing.T) {
	schema := peopleSchema()
	idx := sql.IndexDef{Name: "email_idx", Columns: []int{2}}
	less := indexLess(schema, idx)

	base := btree.NewG(32, less)
	base.ReplaceOrInsert(&idxItem{IndexKey: sql.Row{"shared@example.com"}, PK: sql.Row{int64(1)}})

	overlay := btree.NewG(32, less)
	overlay.ReplaceOrInsert(&idxItem{IndexKey: sql.Row{"shared@example.com"}, PK: sql.Row{int64(2)}})

	pks := mergeIndexPKs(base, overlay, sql.Row{"shared@example.com"})
	require.Len(t, pks, 2)
}

func TestRowKeyStringDistinguishesNilFromEmptyString(t *testing.T) {
	require.NotEqual(t, rowKeyString(sql.Row{nil}), rowKeyString(sql.Row{""}))
}
