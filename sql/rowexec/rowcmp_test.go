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

package rowexec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dolthub/quereus/sql"
)

func TestRowsEqualAllColumns(t *testing.T) {
	types := []sql.Type{sql.IntegerType, sql.TextType}
	a := sql.Row{int64(1), "ada"}
	b := sql.Row{int64(1), "ada"}
	c := sql.Row{int64(1), "grace"}

	require.True(t, rowsEqual(a, b, types, nil))
	require.False(t, rowsEqual(a, c, types, nil))
}

func TestRowsEqualTreatsNullAsEqualToNull(t *testing.T) {
	types := []sql.Type{sql.NullableInt}
	a := sql.Row{nil}
	b := sql.Row{nil}
	require.True(t, rowsEqual(a, b, types, nil), "dedup/grouping equality groups NULL with NULL")
}

func TestRowsEqualRestrictedToColumns(t *testing.T) {
	types := []sql.Type{sql.IntegerType, sql.TextType}
	a := sql.Row{int64(1), "ada"}
	b := sql.Row{int64(1), "grace"}

	require.True(t, rowsEqual(a, b, types, []int{0}))
	require.False(t, rowsEqual(a, b, types, []int{0, 1}))
}

func TestRowSetAddReportsNewness(t *testing.T) {
	types := []sql.Type{sql.IntegerType}
	s := newRowSet(nil, types)

	require.True(t, s.add(sql.Row{int64(1)}))
	require.False(t, s.add(sql.Row{int64(1)}), "a structurally equal row is not new")
	require.True(t, s.add(sql.Row{int64(2)}))
}

func TestRowSetContainsDoesNotInsert(t *testing.T) {
	types := []sql.Type{sql.IntegerType}
	s := newRowSet(nil, types)
	s.add(sql.Row{int64(1)})

	require.True(t, s.contains(sql.Row{int64(1)}))
	require.False(t, s.contains(sql.Row{int64(2)}))

	require.True(t, s.add(sql.Row{int64(2)}), "contains must not have inserted row 2")
}

func TestRowSetRestrictedColumnsDedupsOnSubset(t *testing.T) {
	types := []sql.Type{sql.IntegerType, sql.TextType}
	s := newRowSet([]int{0}, types)

	require.True(t, s.add(sql.Row{int64(1), "ada"}))
	require.False(t, s.add(sql.Row{int64(1), "grace"}), "dedup key is column 0 only")
}

func TestHashRowStableForEqualRows(t *testing.T) {
	a := sql.Row{int64(1), "ada"}
	b := sql.Row{int64(1), "ada"}
	require.Equal(t, hashRow(a, nil), hashRow(b, nil))
}

func TestHashRowRestrictedToColumns(t *testing.T) {
	a := sql.Row{int64(1), "ada"}
	b := sql.Row{int64(1), "grace"}
	require.Equal(t, hashRow(a, []int{0}), hashRow(b, []int{0}))
}
