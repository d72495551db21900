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

	"github.com/stretchr/testify/require"

	"github.com/dolthub/quereus/sql"
)

func TestBaseLayerSnapshotStableAcrossCommit(t *testing.T) {
	schema := peopleSchema()
	bl := NewBaseLayer(schema)

	before, beforeVersion := bl.Snapshot()
	require.Equal(t, 0, before.Len())
	require.Equal(t, uint64(0), beforeVersion)

	txn := NewTransactionLayer(before, beforeVersion, bl.less, nil)
	txn.Put(&rowItem{Key: sql.Row{int64(1)}, Row: sql.Row{int64(1), "ada", nil}})
	require.NoError(t, bl.Commit(txn))

	// The snapshot taken before the commit must not observe it: btree.Clone
	// gives the pre-commit tree structural independence from whatever the
	// commit publishes next.
	require.Equal(t, 0, before.Len())

	after, afterVersion := bl.Snapshot()
	require.Equal(t, 1, after.Len())
	require.Greater(t, afterVersion, beforeVersion)
}

func TestTransactionLayerCloneIsIndependent(t *testing.T) {
	schema := peopleSchema()
	bl := NewBaseLayer(schema)
	current, version := bl.Snapshot()

	txn := NewTransactionLayer(current, version, bl.less, nil)
	txn.Put(&rowItem{Key: sql.Row{int64(1)}, Row: sql.Row{int64(1), "ada", nil}})

	clone := txn.Clone()
	clone.Put(&rowItem{Key: sql.Row{int64(2)}, Row: sql.Row{int64(2), "grace", nil}})

	_, ok := txn.Get(sql.Row{int64(2)})
	require.False(t, ok, "mutating the clone must not affect the original")

	_, ok = clone.Get(sql.Row{int64(1)})
	require.True(t, ok, "the clone keeps what it inherited from the original")
}

func TestTransactionLayerGetIsOverlayLocal(t *testing.T) {
	schema := peopleSchema()
	bl := NewBaseLayer(schema)

	seed := NewTransactionLayer(nil, 0, bl.less, nil)
	seed.Put(&rowItem{Key: sql.Row{int64(1)}, Row: sql.Row{int64(1), "ada", nil}})
	require.NoError(t, bl.Commit(seed))

	current, version := bl.Snapshot()
	txn := NewTransactionLayer(current, version, bl.less, nil)

	// A fresh overlay has no modifications of its own yet; Get reports
	// found=false for a key that exists only in the parent, leaving the
	// parent lookup to the caller (this is what MemoryTableConnection.
	// getByKey does).
	_, ok := txn.Get(sql.Row{int64(1)})
	require.False(t, ok)

	txn.Put(&rowItem{Key: sql.Row{int64(1)}, Row: sql.Row{int64(1), "ada lovelace", nil}})
	item, ok := txn.Get(sql.Row{int64(1)})
	require.True(t, ok)
	require.Equal(t, "ada lovelace", item.Row[1])
}

func TestBaseLayerAddIndexBackfillsExistingRows(t *testing.T) {
	schema := peopleSchema()
	schema.Indexes = nil
	bl := NewBaseLayer(schema)

	seed := NewTransactionLayer(nil, 0, bl.less, nil)
	seed.Put(&rowItem{Key: sql.Row{int64(1)}, Row: sql.Row{int64(1), "ada", "ada@example.com"}})
	require.NoError(t, bl.Commit(seed))

	bl.AddIndex(sql.IndexDef{Name: "email_idx", Columns: []int{2}})

	si, ok := bl.secondary["email_idx"]
	require.True(t, ok)
	require.Equal(t, 1, si.tree.Len())
}

func TestBaseLayerCommitAppliesTombstones(t *testing.T) {
	schema := peopleSchema()
	bl := NewBaseLayer(schema)

	seed := NewTransactionLayer(nil, 0, bl.less, nil)
	seed.Put(&rowItem{Key: sql.Row{int64(1)}, Row: sql.Row{int64(1), "ada", nil}})
	require.NoError(t, bl.Commit(seed))

	current, version := bl.Snapshot()
	del := NewTransactionLayer(current, version, bl.less, nil)
	del.Put(&rowItem{Key: sql.Row{int64(1)}, Tombstone: true})
	require.NoError(t, bl.Commit(del))

	after, _ := bl.Snapshot()
	require.Equal(t, 0, after.Len())
}
