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
	"github.com/mitchellh/hashstructure"

	"github.com/dolthub/quereus/sql"
)

// rowKey is a bucket key for hashed set membership (Distinct, hashed
// SetOperation, RecursiveCTE dedup, BloomJoin build-side indexing): a
// cheap structural hash for bucketing, refined by an exact sql.Compare
// tie-break so hash collisions never cause false equality.
type rowKey uint64

// hashRow hashes the given columns of row (all columns if cols is nil)
// via hashstructure, the domain-stack dependency this package's row
// comparator is grounded on.
func hashRow(row sql.Row, cols []int) rowKey {
	var vals []interface{}
	if cols == nil {
		vals = []interface{}(row)
	} else {
		vals = make([]interface{}, len(cols))
		for i, c := range cols {
			vals[i] = row[c]
		}
	}
	h, err := hashstructure.Hash(vals, nil)
	if err != nil {
		// hashstructure only errors on unsupported types (channels,
		// funcs); row values are always SQL scalars, so fall back to a
		// constant bucket rather than propagating an impossible error.
		return 0
	}
	return rowKey(h)
}

// rowsEqual reports whether a and b agree on every type in types,
// restricted to cols when non-nil, using sql.Compare's cmp==0 check
// (which groups NULL with NULL, the correct notion of equality for
// dedup/grouping, as opposed to three-valued WHERE-predicate semantics).
func rowsEqual(a, b sql.Row, types []sql.Type, cols []int) bool {
	if cols == nil {
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			cmp, _ := sql.Compare(a[i], b[i], types[i])
			if cmp != 0 {
				return false
			}
		}
		return true
	}
	for _, c := range cols {
		cmp, _ := sql.Compare(a[c], b[c], types[c])
		if cmp != 0 {
			return false
		}
	}
	return true
}

// rowSet is a hashed set of rows used for Distinct, dedup'd set
// operations, and recursive-CTE seminaive accumulation. Collisions are
// resolved by the exact equality check above.
type rowSet struct {
	cols    []int
	types   []sql.Type
	buckets map[rowKey][]sql.Row
}

func newRowSet(cols []int, types []sql.Type) *rowSet {
	return &rowSet{cols: cols, types: types, buckets: make(map[rowKey][]sql.Row)}
}

// add inserts row if not already present, reporting whether it was new.
func (s *rowSet) add(row sql.Row) bool {
	k := hashRow(row, s.cols)
	for _, existing := range s.buckets[k] {
		if rowsEqual(existing, row, s.types, s.cols) {
			return false
		}
	}
	s.buckets[k] = append(s.buckets[k], row)
	return true
}

// contains reports whether an equivalent row is already present, without
// inserting it.
func (s *rowSet) contains(row sql.Row) bool {
	k := hashRow(row, s.cols)
	for _, existing := range s.buckets[k] {
		if rowsEqual(existing, row, s.types, s.cols) {
			return true
		}
	}
	return false
}
