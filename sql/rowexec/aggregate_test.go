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
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dolthub/quereus/sql"
	"github.com/dolthub/quereus/sql/expression"
	"github.com/dolthub/quereus/sql/plan"
)

func countStarCall(t *testing.T) *expression.AggregateFunctionCall {
	funcs := expression.NewFunctionRegistry()
	expression.RegisterBuiltins(funcs)
	impl, ok := funcs.ResolveAggregate("count", 0)
	require.True(t, ok)
	return expression.NewAggregateFunctionCall(impl, nil, false)
}

func sumCall(t *testing.T, arg expression.Expression) *expression.AggregateFunctionCall {
	funcs := expression.NewFunctionRegistry()
	expression.RegisterBuiltins(funcs)
	impl, ok := funcs.ResolveAggregate("sum", 1)
	require.True(t, ok)
	return expression.NewAggregateFunctionCall(impl, []expression.Expression{arg}, false)
}

func TestStreamAggregateNoGroupByOverEmptyInputEmitsOneRow(t *testing.T) {
	ctx := sql.NewEmptyContext()
	iter := &streamAggregateIter{
		source: sql.NewSliceRowIter(nil),
		aggregates: []plan.AggregateExpr{
			{Expr: countStarCall(t)},
			{Expr: sumCall(t, expression.NewLiteral(int64(0), sql.IntegerType))},
		},
	}

	row, err := iter.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, sql.Row{int64(0), nil}, row)

	_, err = iter.Next(ctx)
	require.ErrorIs(t, err, io.EOF)
}

func TestStreamAggregateNoGroupByOverNonEmptyInputCountsRows(t *testing.T) {
	ctx := sql.NewEmptyContext()
	iter := &streamAggregateIter{
		source:     sql.NewSliceRowIter([]sql.Row{{int64(1)}, {int64(2)}, {int64(3)}}),
		inDesc:     sql.RowDescriptor{},
		aggregates: []plan.AggregateExpr{{Expr: countStarCall(t)}},
	}

	row, err := iter.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, sql.Row{int64(3)}, row)

	_, err = iter.Next(ctx)
	require.ErrorIs(t, err, io.EOF)
}

func TestStreamAggregateWithGroupByOverEmptyInputEmitsNoRows(t *testing.T) {
	ctx := sql.NewEmptyContext()
	iter := &streamAggregateIter{
		source:     sql.NewSliceRowIter(nil),
		groupBy:    []expression.Expression{expression.NewLiteral(int64(0), sql.IntegerType)},
		groupTypes: []sql.Type{sql.IntegerType},
		aggregates: []plan.AggregateExpr{{Expr: countStarCall(t)}},
	}

	_, err := iter.Next(ctx)
	require.ErrorIs(t, err, io.EOF)
}
