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
	"fmt"

	"github.com/google/btree"

	"github.com/dolthub/quereus/sql"
)

// mergeRows walks base and, if non-nil, an overlay in a single key-order
// pass per §4.H's read protocol: an overlay tombstone suppresses the
// underlying row, an overlay upsert with an equal key replaces it,
// everything else from base passes through untouched. Both base.Ascend
// and overlay.AscendMods already visit items in the schema's key order
// (keyLess), so the merge is a standard sorted-merge of the two
// sequences rather than a concatenate-then-reverse, which would
// interleave an overlay key incorrectly if it falls between two base
// keys. The merge is materialized into a slice rather than streamed
// lazily; the B-trees involved are process-local and bounded by table
// size, so the simplification costs memory, not correctness.
func mergeRows(base *btree.BTreeG[*rowItem], overlay *TransactionLayer, less btree.LessFunc[*rowItem], desc bool) []sql.Row {
	var baseRows, overlayRows []*rowItem
	base.Ascend(func(item *rowItem) bool {
		baseRows = append(baseRows, item)
		return true
	})
	if overlay != nil {
		overlay.AscendMods(func(item *rowItem) bool {
			overlayRows = append(overlayRows, item)
			return true
		})
	}

	var out []sql.Row
	i, j := 0, 0
	for i < len(baseRows) && j < len(overlayRows) {
		switch {
		case rowKeyEqual(baseRows[i].Key, overlayRows[j].Key):
			if !overlayRows[j].Tombstone {
				out = append(out, overlayRows[j].Row)
			}
			i++
			j++
		case less(baseRows[i], overlayRows[j]):
			out = append(out, baseRows[i].Row)
			i++
		default:
			if !overlayRows[j].Tombstone {
				out = append(out, overlayRows[j].Row)
			}
			j++
		}
	}
	for ; i < len(baseRows); i++ {
		out = append(out, baseRows[i].Row)
	}
	for ; j < len(overlayRows); j++ {
		if !overlayRows[j].Tombstone {
			out = append(out, overlayRows[j].Row)
		}
	}

	if desc {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// mergeIndexPKs resolves every primary key currently filed under
// indexKey across a secondary index's base tree and (if present) an
// overlay's modifications to that same index, applying the same
// tombstone-suppression rule mergeRows applies to the primary tree.
func mergeIndexPKs(base, overlay *btree.BTreeG[*idxItem], indexKey sql.Row) []sql.Row {
	seen := make(map[string]bool)
	var out []sql.Row
	if overlay != nil {
		overlay.Ascend(func(item *idxItem) bool {
			if rowKeyEqual(item.IndexKey, indexKey) {
				seen[rowKeyString(item.PK)] = true
				if !item.Tombstone {
					out = append(out, item.PK)
				}
			}
			return true
		})
	}
	if base != nil {
		base.Ascend(func(item *idxItem) bool {
			if rowKeyEqual(item.IndexKey, indexKey) && !seen[rowKeyString(item.PK)] {
				out = append(out, item.PK)
			}
			return true
		})
	}
	return out
}

// rowKeyString renders a key tuple into a map key for set-membership
// checks during a merge; values are drawn from the bounded scalar set.
func rowKeyString(key sql.Row) string {
	s := ""
	for i, v := range key {
		if i > 0 {
			s += "\x1f"
		}
		s += toKeyPart(v)
	}
	return s
}

func toKeyPart(v interface{}) string {
	if v == nil {
		return "\x00"
	}
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
