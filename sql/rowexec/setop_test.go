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

func TestConcatRowIterStreamsFirstThenSecond(t *testing.T) {
	ctx := sql.NewEmptyContext()
	first := sql.NewSliceRowIter([]sql.Row{{int64(1)}, {int64(2)}})
	second := sql.NewSliceRowIter([]sql.Row{{int64(3)}})

	iter := newConcatRowIter(first, second)
	rows, err := sql.RowsToSlice(ctx, iter)
	require.NoError(t, err)
	require.Equal(t, []sql.Row{{int64(1)}, {int64(2)}, {int64(3)}}, rows)
}

func TestConcatRowIterEmptyFirstFallsThroughToSecond(t *testing.T) {
	ctx := sql.NewEmptyContext()
	first := sql.NewSliceRowIter(nil)
	second := sql.NewSliceRowIter([]sql.Row{{int64(1)}})

	iter := newConcatRowIter(first, second)
	rows, err := sql.RowsToSlice(ctx, iter)
	require.NoError(t, err)
	require.Equal(t, []sql.Row{{int64(1)}}, rows)
}

func TestConcatRowIterCloseClosesBoth(t *testing.T) {
	ctx := sql.NewEmptyContext()
	first := sql.NewSliceRowIter(nil)
	second := sql.NewSliceRowIter(nil)

	iter := newConcatRowIter(first, second)
	require.NoError(t, iter.Close(ctx))
}

// setDiffSymmetric exercises the same row-set bookkeeping
// compileSetOperation's SetDiff branch performs, without needing a full
// plan.SetOperation node: DIFF resolves to the symmetric difference
// between the two sides (see DESIGN.md's Open Question decision), not a
// one-sided EXCEPT.
func setDiffSymmetric(left, right []sql.Row, types []sql.Type) []sql.Row {
	leftSet := newRowSet(nil, types)
	for _, row := range left {
		leftSet.add(row)
	}
	rightSet := newRowSet(nil, types)
	for _, row := range right {
		rightSet.add(row)
	}
	seen := newRowSet(nil, types)
	var result []sql.Row
	for _, row := range left {
		if !rightSet.contains(row) && seen.add(row) {
			result = append(result, row)
		}
	}
	for _, row := range right {
		if !leftSet.contains(row) && seen.add(row) {
			result = append(result, row)
		}
	}
	return result
}

func TestSetDiffIsSymmetricDifference(t *testing.T) {
	types := []sql.Type{sql.IntegerType}
	left := []sql.Row{{int64(1)}, {int64(2)}}
	right := []sql.Row{{int64(2)}, {int64(3)}}

	result := setDiffSymmetric(left, right, types)
	require.ElementsMatch(t, []sql.Row{{int64(1)}, {int64(3)}}, result)
}

func TestSetDiffOfIdenticalSidesIsEmpty(t *testing.T) {
	types := []sql.Type{sql.IntegerType}
	rows := []sql.Row{{int64(1)}, {int64(2)}}

	result := setDiffSymmetric(rows, rows, types)
	require.Empty(t, result)
}
