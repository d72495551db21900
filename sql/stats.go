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

package sql

import (
	"io"
	"sync"
)

// ColumnHistogram is a coarse per-column statistic gathered by ANALYZE: a
// distinct-value estimate and min/max, enough to refine filter
// selectivity guesses without a full histogram implementation.
type ColumnHistogram struct {
	DistinctCount uint64
	Min           interface{}
	Max           interface{}
	NullCount     uint64
}

// TableStatistics is what ANALYZE records per table (§5 "Supplemented
// features"), consumed by the cost model as a better-than-default
// estimatedRows hint, resolving the Open Question in spec.md §9 about
// the `rows: undefined` default.
type TableStatistics struct {
	RowCount uint64
	Columns  map[string]ColumnHistogram
}

// StatisticsCatalog is the process-wide store ANALYZE populates and the
// analyzer's cost model reads from.
type StatisticsCatalog struct {
	mu    sync.RWMutex
	stats map[string]TableStatistics
}

// NewStatisticsCatalog builds an empty catalog; every table starts with
// no statistics until ANALYZE runs.
func NewStatisticsCatalog() *StatisticsCatalog {
	return &StatisticsCatalog{stats: make(map[string]TableStatistics)}
}

// Get returns the recorded statistics for a table, if ANALYZE has run.
func (c *StatisticsCatalog) Get(table string) (TableStatistics, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.stats[table]
	return s, ok
}

// Set records fresh statistics for a table, replacing any prior entry.
func (c *StatisticsCatalog) Set(table string, stats TableStatistics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats[table] = stats
}

// DefaultUnknownRowEstimate resolves spec.md §9's Open Question: when a module's
// AccessPlan leaves Rows at its zero value and no ANALYZE statistics
// exist, the cost model uses DefaultUnknownRowEstimate; otherwise ANALYZE
// statistics take precedence over a module-provided row count, since
// they were computed by scanning the actual data.
const DefaultUnknownRowEstimate uint64 = 1000

// ResolveRowEstimate implements that precedence: ANALYZE stats first,
// then the access plan's own estimate, then the constant default.
func (c *StatisticsCatalog) ResolveRowEstimate(table string, planRows uint64) uint64 {
	if s, ok := c.Get(table); ok && s.RowCount > 0 {
		return s.RowCount
	}
	if planRows > 0 {
		return planRows
	}
	return DefaultUnknownRowEstimate
}

// Analyze scans a table via its module's XQuery and recomputes
// TableStatistics for it. Called by the ANALYZE plan node's execution.
func Analyze(ctx *Context, schema TableSchema, table Table) (TableStatistics, error) {
	iter, err := table.XQuery(ctx, FilterInfo{})
	if err != nil {
		return TableStatistics{}, err
	}
	defer iter.Close(ctx)

	distinct := make([]map[interface{}]struct{}, len(schema.Columns))
	nullCounts := make([]uint64, len(schema.Columns))
	mins := make([]interface{}, len(schema.Columns))
	maxs := make([]interface{}, len(schema.Columns))
	for i := range distinct {
		distinct[i] = make(map[interface{}]struct{})
	}

	var rowCount uint64
	for {
		row, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return TableStatistics{}, err
		}
		rowCount++
		for i, v := range row {
			if i >= len(schema.Columns) {
				break
			}
			if v == nil {
				nullCounts[i]++
				continue
			}
			if _, seen := distinct[i][v]; !seen && len(distinct[i]) < 10000 {
				distinct[i][v] = struct{}{}
			}
			col := schema.Columns[i]
			typ := Type{Affinity: col.Affinity, Collation: col.Collation}
			if mins[i] == nil {
				mins[i] = v
			} else if cmp, _ := Compare(v, mins[i], typ); cmp < 0 {
				mins[i] = v
			}
			if maxs[i] == nil {
				maxs[i] = v
			} else if cmp, _ := Compare(v, maxs[i], typ); cmp > 0 {
				maxs[i] = v
			}
		}
	}

	cols := make(map[string]ColumnHistogram, len(schema.Columns))
	for i, c := range schema.Columns {
		cols[c.Name] = ColumnHistogram{
			DistinctCount: uint64(len(distinct[i])),
			Min:           mins[i],
			Max:           maxs[i],
			NullCount:     nullCounts[i],
		}
	}
	return TableStatistics{RowCount: rowCount, Columns: cols}, nil
}
