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
	"github.com/google/btree"

	"github.com/dolthub/quereus/sql"
)

// savepointEntry pairs a SAVEPOINT's name with the immutable overlay
// snapshot taken at that point, kept in issue order so RELEASE/ROLLBACK
// TO can find "every savepoint after n" positionally (§4.H).
type savepointEntry struct {
	name  string
	layer *TransactionLayer
}

// MemoryTableConnection is the VirtualTableConnection a MemoryTable hands
// the core: one per (schema, table) per transaction, implementing
// snapshot isolation, read-your-own-writes, and nested savepoints over
// the table's BaseLayer (§4.H).
type MemoryTableConnection struct {
	table *MemoryTable

	readLayer   *btree.BTreeG[*rowItem]
	readVersion uint64
	pending     *TransactionLayer
	explicit    bool
	savepoints  []savepointEntry
}

func newMemoryTableConnection(t *MemoryTable) *MemoryTableConnection {
	return &MemoryTableConnection{table: t}
}

// Begin takes the connection's read snapshot, the moment its isolation
// guarantee pins to (§4.H "Isolation guarantee").
func (c *MemoryTableConnection) Begin(ctx *sql.Context) error {
	c.readLayer, c.readVersion = c.table.base.Snapshot()
	c.pending = nil
	c.explicit = false
	c.savepoints = nil
	return nil
}

// ensurePending lazily opens the overlay on first write, rooted at the
// table's *current* committed layer rather than this connection's own
// (possibly older) read snapshot, per §4.H "Write protocol": "a fresh
// TransactionLayer is created whose parent is the table's current
// committed layer at that instant."
func (c *MemoryTableConnection) ensurePending() *TransactionLayer {
	if c.pending == nil {
		current, version := c.table.base.Snapshot()
		c.pending = NewTransactionLayer(current, version, c.table.base.less, c.secLessMap())
	}
	return c.pending
}

func (c *MemoryTableConnection) secLessMap() map[string]btree.LessFunc[*idxItem] {
	out := make(map[string]btree.LessFunc[*idxItem], len(c.table.base.secondary))
	for name, si := range c.table.base.secondary {
		out[name] = si.less
	}
	return out
}

// readSnapshot returns the layer a read should start from: the pending
// overlay if one exists, else the connection's own fixed read snapshot
// (§4.H "Read protocol": "starting from pendingTransactionLayer ??
// readLayer").
func (c *MemoryTableConnection) readSnapshot() (*btree.BTreeG[*rowItem], *TransactionLayer) {
	if c.pending != nil {
		return c.pending.parent, c.pending
	}
	return c.readLayer, nil
}

// getByKey resolves a point read, per §4.H's point-read rule: the first
// layer with an entry (upsert or tombstone) decides.
func (c *MemoryTableConnection) getByKey(key sql.Row) (sql.Row, bool) {
	base, overlay := c.readSnapshot()
	if overlay != nil {
		if item, ok := overlay.Get(key); ok {
			if item.Tombstone {
				return nil, false
			}
			return item.Row, true
		}
	}
	item, ok := base.Get(&rowItem{Key: key})
	if !ok {
		return nil, false
	}
	return item.Row, true
}

// scanAll resolves a full scan via the stream-merge rule.
func (c *MemoryTableConnection) scanAll(desc bool) []sql.Row {
	base, overlay := c.readSnapshot()
	return mergeRows(base, overlay, keyLess(c.table.Schema()), desc)
}

// lookupIndex resolves every live primary key currently filed under
// indexKey in the named secondary index, merging the base index tree
// with the pending overlay's index modifications the same way scanAll
// merges the primary tree.
func (c *MemoryTableConnection) lookupIndex(name string, indexKey sql.Row) []sql.Row {
	si, ok := c.table.base.secondary[name]
	if !ok {
		return nil
	}
	var overlayTree *btree.BTreeG[*idxItem]
	if c.pending != nil {
		overlayTree = c.pending.secondaryMods[name]
	}
	return mergeIndexPKs(si.tree, overlayTree, indexKey)
}

// put upserts row under key in the pending overlay, maintaining the
// table's secondary indexes alongside the primary slot.
func (c *MemoryTableConnection) put(key, row sql.Row, oldRow sql.Row, hadOld bool) {
	p := c.ensurePending()
	p.Put(&rowItem{Key: key, Row: row})
	for name, si := range c.table.base.secondary {
		tree := p.secondaryMods[name]
		if hadOld {
			tree.ReplaceOrInsert(&idxItem{IndexKey: indexKey(oldRow, si.def), PK: key, Tombstone: true})
		}
		tree.ReplaceOrInsert(&idxItem{IndexKey: indexKey(row, si.def), PK: key})
	}
}

// delete tombstones key in the pending overlay.
func (c *MemoryTableConnection) delete(key, oldRow sql.Row) {
	p := c.ensurePending()
	p.mods.ReplaceOrInsert(&rowItem{Key: key, Tombstone: true})
	for name, si := range c.table.base.secondary {
		tree := p.secondaryMods[name]
		tree.ReplaceOrInsert(&idxItem{IndexKey: indexKey(oldRow, si.def), PK: key, Tombstone: true})
	}
}

// Commit folds the pending overlay into the base and resets the
// connection onto the freshly-committed snapshot (§4.H "Commit").
func (c *MemoryTableConnection) Commit(ctx *sql.Context) error {
	if c.pending != nil {
		if err := c.table.base.Commit(c.pending); err != nil {
			return err
		}
	}
	c.pending = nil
	c.explicit = false
	c.savepoints = nil
	c.readLayer, c.readVersion = c.table.base.Snapshot()
	return nil
}

// Rollback drops the pending overlay without touching committed state
// (§4.H "Rollback").
func (c *MemoryTableConnection) Rollback(ctx *sql.Context) error {
	c.pending = nil
	c.explicit = false
	c.savepoints = nil
	c.readLayer, c.readVersion = c.table.base.Snapshot()
	return nil
}

// Savepoint snapshots the pending overlay's current contents under name,
// opening one first if the connection has no writes yet, and upgrades
// the connection to an explicit transaction (§4.H "Savepoints").
func (c *MemoryTableConnection) Savepoint(ctx *sql.Context, name string) error {
	p := c.ensurePending()
	c.explicit = true
	c.savepoints = append(c.savepoints, savepointEntry{name: name, layer: p.Clone()})
	return nil
}

// Release drops the savepoint named name and every savepoint issued
// after it, per §4.H "RELEASE n".
func (c *MemoryTableConnection) Release(ctx *sql.Context, name string) error {
	idx := c.savepointIndex(name)
	if idx < 0 {
		return nil
	}
	c.savepoints = c.savepoints[:idx]
	return nil
}

// RollbackTo restores the pending overlay to the snapshot saved under
// name and drops every later savepoint, retaining name itself so a
// second ROLLBACK TO the same name is idempotent (§4.H "ROLLBACK TO n").
func (c *MemoryTableConnection) RollbackTo(ctx *sql.Context, name string) error {
	idx := c.savepointIndex(name)
	if idx < 0 {
		return sql.ErrUnsupported.New("no such savepoint: " + name)
	}
	c.pending = c.savepoints[idx].layer.Clone()
	c.savepoints = c.savepoints[:idx+1]
	return nil
}

func (c *MemoryTableConnection) savepointIndex(name string) int {
	for i := len(c.savepoints) - 1; i >= 0; i-- {
		if c.savepoints[i].name == name {
			return i
		}
	}
	return -1
}

// Close is a no-op: the connection's lifetime is owned by the runtime
// context's connection cache, not by the module.
func (c *MemoryTableConnection) Close(ctx *sql.Context) error { return nil }

// Explicit reports whether a SAVEPOINT has upgraded this connection out
// of auto-commit; the session layer driving per-statement auto-commit
// consults this before issuing an implicit COMMIT.
func (c *MemoryTableConnection) Explicit() bool { return c.explicit }
