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

func TestConnectionSnapshotIsolation(t *testing.T) {
	ctx := sql.NewEmptyContext()
	tbl := NewMemoryTable(peopleSchema())

	_, err := tbl.Update(ctx, "insert", sql.Row{int64(1), "ada", nil}, nil, sql.ConflictAbort)
	require.NoError(t, err)

	// Commit connection one so the base layer has a row, then open a
	// second, independent connection and take its read snapshot before
	// the base layer gains a second row; it must not see the write that
	// lands after its Begin.
	c1, err := tbl.connection(ctx)
	require.NoError(t, err)
	require.NoError(t, c1.Commit(ctx))

	conn2, _ := tbl.CreateConnection(ctx)
	c2 := conn2.(*MemoryTableConnection)
	require.NoError(t, c2.Begin(ctx))

	conn3, _ := tbl.CreateConnection(ctx)
	c3 := conn3.(*MemoryTableConnection)
	require.NoError(t, c3.Begin(ctx))
	c3.put(sql.Row{int64(2)}, sql.Row{int64(2), "grace", nil}, nil, false)
	require.NoError(t, c3.Commit(ctx))

	require.Len(t, c2.scanAll(false), 1)
}

func TestConnectionCommitFoldsPendingIntoBase(t *testing.T) {
	ctx := sql.NewEmptyContext()
	tbl := NewMemoryTable(peopleSchema())

	conn, _ := tbl.CreateConnection(ctx)
	c := conn.(*MemoryTableConnection)
	require.NoError(t, c.Begin(ctx))

	c.put(sql.Row{int64(1)}, sql.Row{int64(1), "ada", nil}, nil, false)
	require.Len(t, c.scanAll(false), 1)

	require.NoError(t, c.Commit(ctx))

	snapshot, _ := tbl.base.Snapshot()
	require.Equal(t, 1, snapshot.Len())
}

func TestConnectionRollbackDiscardsPending(t *testing.T) {
	ctx := sql.NewEmptyContext()
	tbl := NewMemoryTable(peopleSchema())

	conn, _ := tbl.CreateConnection(ctx)
	c := conn.(*MemoryTableConnection)
	require.NoError(t, c.Begin(ctx))

	c.put(sql.Row{int64(1)}, sql.Row{int64(1), "ada", nil}, nil, false)
	require.NoError(t, c.Rollback(ctx))

	snapshot, _ := tbl.base.Snapshot()
	require.Equal(t, 0, snapshot.Len())
	require.False(t, c.Explicit())
}

func TestConnectionSavepointUpgradesToExplicit(t *testing.T) {
	ctx := sql.NewEmptyContext()
	tbl := NewMemoryTable(peopleSchema())

	conn, _ := tbl.CreateConnection(ctx)
	c := conn.(*MemoryTableConnection)
	require.NoError(t, c.Begin(ctx))
	require.False(t, c.Explicit())

	require.NoError(t, c.Savepoint(ctx, "s1"))
	require.True(t, c.Explicit())
}

func TestConnectionRollbackToRestoresSnapshot(t *testing.T) {
	ctx := sql.NewEmptyContext()
	tbl := NewMemoryTable(peopleSchema())

	conn, _ := tbl.CreateConnection(ctx)
	c := conn.(*MemoryTableConnection)
	require.NoError(t, c.Begin(ctx))

	c.put(sql.Row{int64(1)}, sql.Row{int64(1), "ada", nil}, nil, false)
	require.NoError(t, c.Savepoint(ctx, "s1"))

	c.put(sql.Row{int64(2)}, sql.Row{int64(2), "grace", nil}, nil, false)
	require.Len(t, c.scanAll(false), 2)

	require.NoError(t, c.RollbackTo(ctx, "s1"))
	require.Len(t, c.scanAll(false), 1)

	// A second ROLLBACK TO the same name is idempotent.
	require.NoError(t, c.RollbackTo(ctx, "s1"))
	require.Len(t, c.scanAll(false), 1)
}

func TestConnectionReleaseDropsLaterSavepoints(t *testing.T) {
	ctx := sql.NewEmptyContext()
	tbl := NewMemoryTable(peopleSchema())

	conn, _ := tbl.CreateConnection(ctx)
	c := conn.(*MemoryTableConnection)
	require.NoError(t, c.Begin(ctx))

	require.NoError(t, c.Savepoint(ctx, "s1"))
	require.NoError(t, c.Savepoint(ctx, "s2"))
	require.NoError(t, c.Release(ctx, "s1"))

	require.Equal(t, -1, c.savepointIndex("s1"))
	require.Equal(t, -1, c.savepointIndex("s2"))
}

func TestConnectionRollbackToUnknownSavepointErrors(t *testing.T) {
	ctx := sql.NewEmptyContext()
	tbl := NewMemoryTable(peopleSchema())

	conn, _ := tbl.CreateConnection(ctx)
	c := conn.(*MemoryTableConnection)
	require.NoError(t, c.Begin(ctx))

	err := c.RollbackTo(ctx, "nope")
	require.Error(t, err)
	require.True(t, sql.ErrUnsupported.Is(err))
}

func TestConnectionGetByKeyPrefersOverlayOverBase(t *testing.T) {
	ctx := sql.NewEmptyContext()
	tbl := NewMemoryTable(peopleSchema())

	_, err := tbl.Update(ctx, "insert", sql.Row{int64(1), "ada", nil}, nil, sql.ConflictAbort)
	require.NoError(t, err)
	seed, err := tbl.connection(ctx)
	require.NoError(t, err)
	require.NoError(t, seed.Commit(ctx))

	conn, _ := tbl.CreateConnection(ctx)
	c := conn.(*MemoryTableConnection)
	require.NoError(t, c.Begin(ctx))

	c.put(sql.Row{int64(1)}, sql.Row{int64(1), "ada lovelace", nil}, sql.Row{int64(1), "ada", nil}, true)

	row, found := c.getByKey(sql.Row{int64(1)})
	require.True(t, found)
	require.Equal(t, "ada lovelace", row[1])
}

func TestConnectionDeleteTombstonesOverBase(t *testing.T) {
	ctx := sql.NewEmptyContext()
	tbl := NewMemoryTable(peopleSchema())

	_, err := tbl.Update(ctx, "insert", sql.Row{int64(1), "ada", nil}, nil, sql.ConflictAbort)
	require.NoError(t, err)
	seed, err := tbl.connection(ctx)
	require.NoError(t, err)
	require.NoError(t, seed.Commit(ctx))

	conn, _ := tbl.CreateConnection(ctx)
	c := conn.(*MemoryTableConnection)
	require.NoError(t, c.Begin(ctx))

	c.delete(sql.Row{int64(1)}, sql.Row{int64(1), "ada", nil})

	_, found := c.getByKey(sql.Row{int64(1)})
	require.False(t, found)
}
