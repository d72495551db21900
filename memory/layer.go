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
	"sync"

	"github.com/google/btree"

	"github.com/dolthub/quereus/sql"
)

// secondaryIndex pairs an IndexDef with its own ordering and the
// currently-committed tree of entries.
type secondaryIndex struct {
	def  sql.IndexDef
	less btree.LessFunc[*idxItem]
	tree *btree.BTreeG[*idxItem]
}

// BaseLayer is the committed data for one in-memory table (§4.H). current
// is swapped, never mutated in place, on every commit: the fold builds a
// clone (O(1) via btree.Clone's structural sharing) and only then
// publishes it, so a reader holding the old pointer keeps a stable
// snapshot regardless of later commits.
type BaseLayer struct {
	schema sql.TableSchema

	gate sync.Mutex // "commit gate" serializing layer folding

	less btree.LessFunc[*rowItem]

	mu      sync.RWMutex
	current *btree.BTreeG[*rowItem]
	version uint64

	secondary map[string]*secondaryIndex
}

// NewBaseLayer constructs an empty committed layer for schema.
func NewBaseLayer(schema sql.TableSchema) *BaseLayer {
	less := keyLess(schema)
	bl := &BaseLayer{
		schema:    schema,
		less:      less,
		current:   btree.NewG(32, less),
		secondary: make(map[string]*secondaryIndex, len(schema.Indexes)),
	}
	for _, idx := range schema.Indexes {
		bl.addIndexLocked(idx)
	}
	return bl
}

func (b *BaseLayer) addIndexLocked(idx sql.IndexDef) {
	il := indexLess(b.schema, idx)
	si := &secondaryIndex{def: idx, less: il, tree: btree.NewG(32, il)}
	b.current.Ascend(func(item *rowItem) bool {
		si.tree.ReplaceOrInsert(&idxItem{IndexKey: indexKey(item.Row, idx), PK: item.Key})
		return true
	})
	b.secondary[idx.Name] = si
}

// AddIndex registers idx against the current committed data, used by
// CREATE INDEX; it acquires the commit gate since it mutates the set of
// trees a commit must fold into.
func (b *BaseLayer) AddIndex(idx sql.IndexDef) {
	b.gate.Lock()
	defer b.gate.Unlock()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addIndexLocked(idx)
}

// Snapshot returns the currently-published committed tree and its
// version, the pair a new connection's readLayer pins to.
func (b *BaseLayer) Snapshot() (*btree.BTreeG[*rowItem], uint64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current, b.version
}

// Commit folds pending's modifications into the base, per §4.H "Commit":
// acquire the gate, apply upserts/deletes onto a clone of the current
// committed tree, update secondary indexes the same way, then publish
// the clone as the new current and advance the version.
func (b *BaseLayer) Commit(pending *TransactionLayer) error {
	b.gate.Lock()
	defer b.gate.Unlock()

	b.mu.Lock()
	next := b.current.Clone()
	b.mu.Unlock()

	pending.mods.Ascend(func(item *rowItem) bool {
		if item.Tombstone {
			next.Delete(item)
		} else {
			next.ReplaceOrInsert(item)
		}
		return true
	})

	nextSecondary := make(map[string]*btree.BTreeG[*idxItem], len(b.secondary))
	for name, si := range b.secondary {
		nextSecondary[name] = si.tree.Clone()
	}
	for name, mods := range pending.secondaryMods {
		tree, ok := nextSecondary[name]
		if !ok {
			continue
		}
		mods.Ascend(func(item *idxItem) bool {
			if item.Tombstone {
				tree.Delete(item)
			} else {
				tree.ReplaceOrInsert(item)
			}
			return true
		})
	}

	b.mu.Lock()
	b.current = next
	for name, tree := range nextSecondary {
		b.secondary[name].tree = tree
	}
	b.version++
	b.mu.Unlock()
	return nil
}

// TransactionLayer is a connection's uncommitted overlay (§4.H): a
// pointer to the committed snapshot it was opened against (for read
// fallback and for the version a future commit would supersede) plus a
// tree of modifications keyed the same way as the base.
type TransactionLayer struct {
	parent        *btree.BTreeG[*rowItem]
	parentVersion uint64

	less btree.LessFunc[*rowItem]
	mods *btree.BTreeG[*rowItem]

	secLess       map[string]btree.LessFunc[*idxItem]
	secondaryMods map[string]*btree.BTreeG[*idxItem]
}

// NewTransactionLayer opens a fresh overlay rooted at parent.
func NewTransactionLayer(parent *btree.BTreeG[*rowItem], parentVersion uint64, less btree.LessFunc[*rowItem], secLess map[string]btree.LessFunc[*idxItem]) *TransactionLayer {
	secondaryMods := make(map[string]*btree.BTreeG[*idxItem], len(secLess))
	for name, l := range secLess {
		secondaryMods[name] = btree.NewG(32, l)
	}
	return &TransactionLayer{
		parent:        parent,
		parentVersion: parentVersion,
		less:          less,
		mods:          btree.NewG(32, less),
		secLess:       secLess,
		secondaryMods: secondaryMods,
	}
}

// Clone takes an immutable savepoint snapshot of t: btree.Clone is O(1)
// structural sharing, so this is cheap regardless of overlay size (§4.H
// "Snapshot the pending layer by copying its effective data into an
// immutable new TransactionLayer with the same parent").
func (t *TransactionLayer) Clone() *TransactionLayer {
	secondaryMods := make(map[string]*btree.BTreeG[*idxItem], len(t.secondaryMods))
	for name, tree := range t.secondaryMods {
		secondaryMods[name] = tree.Clone()
	}
	return &TransactionLayer{
		parent:        t.parent,
		parentVersion: t.parentVersion,
		less:          t.less,
		mods:          t.mods.Clone(),
		secLess:       t.secLess,
		secondaryMods: secondaryMods,
	}
}

// Get resolves key against this overlay only, reporting whether a
// tombstone or upsert slot exists (found=false means "ask the parent").
func (t *TransactionLayer) Get(key sql.Row) (item *rowItem, found bool) {
	v, ok := t.mods.Get(&rowItem{Key: key})
	if !ok {
		return nil, false
	}
	return v, true
}

// Put records an upsert or tombstone in the overlay.
func (t *TransactionLayer) Put(item *rowItem) {
	t.mods.ReplaceOrInsert(item)
}

// AscendMods visits every modification in key order.
func (t *TransactionLayer) AscendMods(fn func(*rowItem) bool) {
	t.mods.Ascend(fn)
}
