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

func peopleSchema() sql.TableSchema {
	return sql.TableSchema{
		Name: "people",
		Columns: []sql.ColumnDef{
			{Name: "id", Affinity: sql.Integer},
			{Name: "name", Affinity: sql.Text},
			{Name: "email", Affinity: sql.Text, Nullable: true},
		},
		PrimaryKey: []sql.PKColumn{{ColumnIndex: 0}},
		Indexes: []sql.IndexDef{
			{Name: "email_unique", Columns: []int{2}, Unique: true},
		},
	}
}

func scanRows(t *testing.T, ctx *sql.Context, tbl *MemoryTable) []sql.Row {
	iter, err := tbl.XQuery(ctx, sql.FilterInfo{})
	require.NoError(t, err)
	rows, err := sql.RowsToSlice(ctx, iter)
	require.NoError(t, err)
	return rows
}

func TestTableInsertAndScan(t *testing.T) {
	ctx := sql.NewEmptyContext()
	tbl := NewMemoryTable(peopleSchema())

	row, err := tbl.Update(ctx, "insert", sql.Row{int64(1), "ada", "ada@example.com"}, nil, sql.ConflictAbort)
	require.NoError(t, err)
	require.Equal(t, sql.Row{int64(1), "ada", "ada@example.com"}, row)

	rows := scanRows(t, ctx, tbl)
	require.Len(t, rows, 1)
	require.Equal(t, "ada", rows[0][1])
}

func TestTableInsertDuplicatePrimaryKey(t *testing.T) {
	ctx := sql.NewEmptyContext()
	tbl := NewMemoryTable(peopleSchema())

	_, err := tbl.Update(ctx, "insert", sql.Row{int64(1), "ada", nil}, nil, sql.ConflictAbort)
	require.NoError(t, err)

	_, err = tbl.Update(ctx, "insert", sql.Row{int64(1), "grace", nil}, nil, sql.ConflictAbort)
	require.Error(t, err)
	require.True(t, sql.ErrPrimaryKeyViolation.Is(err))
}

func TestTableInsertConflictIgnore(t *testing.T) {
	ctx := sql.NewEmptyContext()
	tbl := NewMemoryTable(peopleSchema())

	_, err := tbl.Update(ctx, "insert", sql.Row{int64(1), "ada", nil}, nil, sql.ConflictAbort)
	require.NoError(t, err)

	row, err := tbl.Update(ctx, "insert", sql.Row{int64(1), "grace", nil}, nil, sql.ConflictIgnore)
	require.NoError(t, err)
	require.Nil(t, row)

	rows := scanRows(t, ctx, tbl)
	require.Len(t, rows, 1)
	require.Equal(t, "ada", rows[0][1])
}

func TestTableInsertConflictReplace(t *testing.T) {
	ctx := sql.NewEmptyContext()
	tbl := NewMemoryTable(peopleSchema())

	_, err := tbl.Update(ctx, "insert", sql.Row{int64(1), "ada", nil}, nil, sql.ConflictAbort)
	require.NoError(t, err)

	row, err := tbl.Update(ctx, "insert", sql.Row{int64(1), "grace", nil}, nil, sql.ConflictReplace)
	require.NoError(t, err)
	require.Equal(t, "grace", row[1])

	rows := scanRows(t, ctx, tbl)
	require.Len(t, rows, 1)
	require.Equal(t, "grace", rows[0][1])
}

func TestTableUpdateChangingPrimaryKey(t *testing.T) {
	ctx := sql.NewEmptyContext()
	tbl := NewMemoryTable(peopleSchema())

	_, err := tbl.Update(ctx, "insert", sql.Row{int64(1), "ada", nil}, nil, sql.ConflictAbort)
	require.NoError(t, err)

	row, err := tbl.Update(ctx, "update", sql.Row{int64(2), "ada lovelace", nil}, sql.Row{int64(1)}, sql.ConflictAbort)
	require.NoError(t, err)
	require.Equal(t, int64(2), row[0])

	rows := scanRows(t, ctx, tbl)
	require.Len(t, rows, 1)
	require.Equal(t, int64(2), rows[0][0])
}

func TestTableUpdateMissingRowIsNoop(t *testing.T) {
	ctx := sql.NewEmptyContext()
	tbl := NewMemoryTable(peopleSchema())

	row, err := tbl.Update(ctx, "update", sql.Row{int64(1), "ada", nil}, sql.Row{int64(99)}, sql.ConflictAbort)
	require.NoError(t, err)
	require.Nil(t, row)
}

func TestTableDelete(t *testing.T) {
	ctx := sql.NewEmptyContext()
	tbl := NewMemoryTable(peopleSchema())

	_, err := tbl.Update(ctx, "insert", sql.Row{int64(1), "ada", nil}, nil, sql.ConflictAbort)
	require.NoError(t, err)

	old, err := tbl.Update(ctx, "delete", nil, sql.Row{int64(1)}, sql.ConflictAbort)
	require.NoError(t, err)
	require.Equal(t, "ada", old[1])

	rows := scanRows(t, ctx, tbl)
	require.Empty(t, rows)
}

func TestTableDeleteMissingRowIsNoop(t *testing.T) {
	ctx := sql.NewEmptyContext()
	tbl := NewMemoryTable(peopleSchema())

	old, err := tbl.Update(ctx, "delete", nil, sql.Row{int64(1)}, sql.ConflictAbort)
	require.NoError(t, err)
	require.Nil(t, old)
}

func TestTableNotNullViolation(t *testing.T) {
	ctx := sql.NewEmptyContext()
	schema := peopleSchema()
	schema.Columns[1].Nullable = false
	tbl := NewMemoryTable(schema)

	_, err := tbl.Update(ctx, "insert", sql.Row{int64(1), nil, nil}, nil, sql.ConflictAbort)
	require.Error(t, err)
	require.True(t, sql.ErrNotNullViolation.Is(err))
}

func TestTableUniqueIndexViolation(t *testing.T) {
	ctx := sql.NewEmptyContext()
	tbl := NewMemoryTable(peopleSchema())

	_, err := tbl.Update(ctx, "insert", sql.Row{int64(1), "ada", "ada@example.com"}, nil, sql.ConflictAbort)
	require.NoError(t, err)

	_, err = tbl.Update(ctx, "insert", sql.Row{int64(2), "grace", "ada@example.com"}, nil, sql.ConflictAbort)
	require.Error(t, err)
	require.True(t, sql.ErrUniqueViolation.Is(err))
}

func TestTableUniqueIndexAllowsUnchangedValueOnUpdate(t *testing.T) {
	ctx := sql.NewEmptyContext()
	tbl := NewMemoryTable(peopleSchema())

	_, err := tbl.Update(ctx, "insert", sql.Row{int64(1), "ada", "ada@example.com"}, nil, sql.ConflictAbort)
	require.NoError(t, err)

	_, err = tbl.Update(ctx, "update", sql.Row{int64(1), "ada lovelace", "ada@example.com"}, sql.Row{int64(1)}, sql.ConflictAbort)
	require.NoError(t, err)
}

func TestTablePointLookup(t *testing.T) {
	ctx := sql.NewEmptyContext()
	tbl := NewMemoryTable(peopleSchema())

	_, err := tbl.Update(ctx, "insert", sql.Row{int64(1), "ada", nil}, nil, sql.ConflictAbort)
	require.NoError(t, err)
	_, err = tbl.Update(ctx, "insert", sql.Row{int64(2), "grace", nil}, nil, sql.ConflictAbort)
	require.NoError(t, err)

	iter, err := tbl.XQuery(ctx, sql.FilterInfo{Opaque: pointLookup{key: sql.Row{int64(2)}}})
	require.NoError(t, err)
	rows, err := sql.RowsToSlice(ctx, iter)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "grace", rows[0][1])
}

func TestTablePointLookupMiss(t *testing.T) {
	ctx := sql.NewEmptyContext()
	tbl := NewMemoryTable(peopleSchema())

	iter, err := tbl.XQuery(ctx, sql.FilterInfo{Opaque: pointLookup{key: sql.Row{int64(99)}}})
	require.NoError(t, err)
	rows, err := sql.RowsToSlice(ctx, iter)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestTableReadYourOwnWrites(t *testing.T) {
	ctx := sql.NewEmptyContext()
	tbl := NewMemoryTable(peopleSchema())

	_, err := tbl.Update(ctx, "insert", sql.Row{int64(1), "ada", nil}, nil, sql.ConflictAbort)
	require.NoError(t, err)

	// A second statement sharing ctx's connection cache sees the first
	// statement's uncommitted write (§4.F connection caching).
	rows := scanRows(t, ctx, tbl)
	require.Len(t, rows, 1)
}

func TestTableScanLimit(t *testing.T) {
	ctx := sql.NewEmptyContext()
	tbl := NewMemoryTable(peopleSchema())

	for i := int64(1); i <= 5; i++ {
		_, err := tbl.Update(ctx, "insert", sql.Row{i, "person", nil}, nil, sql.ConflictAbort)
		require.NoError(t, err)
	}

	iter, err := tbl.XQuery(ctx, sql.FilterInfo{Limit: 2})
	require.NoError(t, err)
	rows, err := sql.RowsToSlice(ctx, iter)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}
