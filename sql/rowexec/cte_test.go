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
	"github.com/dolthub/quereus/sql/analyzer"
	"github.com/dolthub/quereus/sql/expression"
	"github.com/dolthub/quereus/sql/plan"
)

func oneRowIntSchema(name string) sql.TableSchema {
	return sql.TableSchema{Name: name, Columns: []sql.ColumnDef{{Name: "n", Affinity: sql.Integer}}}
}

// buildRecursiveCTE wires a base case yielding one row and a recursive
// case that, by never reading back the working table, keeps producing
// exactly one row every iteration -- a runaway recursion standing in for
// any query whose recursive branch never converges, used to drive the
// iteration-limit path.
func buildRecursiveCTE(t *testing.T, limit int) *Instruction {
	schema := oneRowIntSchema("base")
	base := plan.NewValues([][]expression.Expression{{expression.NewLiteral(int64(1), sql.IntegerType)}}, schema)
	recursive := plan.NewValues([][]expression.Expression{{expression.NewLiteral(int64(2), sql.IntegerType)}}, schema)
	in := plan.NewCTERef("r", base.RelType())
	cte := plan.NewRecursiveCTE("r", base, recursive, in, true, limit)

	ctx := sql.NewEmptyContext()
	optimized, err := analyzer.Optimize(ctx, cte)
	require.NoError(t, err)

	c := NewCompiler(sql.NewCatalog(), sql.NewModuleRegistry())
	ins, err := c.Compile(optimized)
	require.NoError(t, err)
	return ins
}

func TestRecursiveCTEExceedingIterationLimitErrors(t *testing.T) {
	ins := buildRecursiveCTE(t, 3)
	ctx := sql.NewEmptyContext()

	_, err := (Scheduler{}).Execute(ctx, ins)
	require.Error(t, err)
	require.True(t, sql.ErrRecursionLimit.Is(err), "expected ErrRecursionLimit, got %v", err)
}

func TestRecursiveCTEWithinIterationLimitTerminatesOnEmptyDelta(t *testing.T) {
	schema := oneRowIntSchema("base")
	base := plan.NewValues([][]expression.Expression{{expression.NewLiteral(int64(1), sql.IntegerType)}}, schema)
	// A recursive branch with zero rows makes the delta empty after the
	// first iteration, so the loop terminates normally well under any limit.
	recursive := plan.NewValues(nil, schema)
	in := plan.NewCTERef("r", base.RelType())
	cte := plan.NewRecursiveCTE("r", base, recursive, in, true, 1000)

	ctx := sql.NewEmptyContext()
	optimized, err := analyzer.Optimize(ctx, cte)
	require.NoError(t, err)

	c := NewCompiler(sql.NewCatalog(), sql.NewModuleRegistry())
	ins, err := c.Compile(optimized)
	require.NoError(t, err)

	result, err := (Scheduler{}).Execute(ctx, ins)
	require.NoError(t, err)
	rows, err := sql.RowsToSlice(ctx, result.(sql.RowIter))
	require.NoError(t, err)
	require.Equal(t, []sql.Row{{int64(1)}}, rows)
}
