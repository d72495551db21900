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

func TestModuleNameAndCapabilities(t *testing.T) {
	m := NewModule()
	require.Equal(t, ModuleName, m.Name())

	caps := m.Capabilities()
	require.True(t, caps.Transactions)
	require.True(t, caps.Savepoints)
	require.True(t, caps.Indexing)
	require.False(t, caps.PushDown)
}

func TestModuleCreateReturnsMemoryTable(t *testing.T) {
	m := NewModule()
	tbl, err := m.Create(sql.NewEmptyContext(), "", peopleSchema())
	require.NoError(t, err)
	require.IsType(t, &MemoryTable{}, tbl)
}

func TestModuleConnectReattachesGivenAuxTable(t *testing.T) {
	m := NewModule()
	original := NewMemoryTable(peopleSchema())
	_, err := original.Update(sql.NewEmptyContext(), "insert", sql.Row{int64(1), "ada", nil}, nil, sql.ConflictAbort)
	require.NoError(t, err)

	reattached, err := m.Connect(sql.NewEmptyContext(), "", ModuleName, peopleSchema(), original)
	require.NoError(t, err)
	require.Same(t, original, reattached)
}

func TestModuleConnectWithoutAuxCreatesFreshTable(t *testing.T) {
	m := NewModule()
	tbl, err := m.Connect(sql.NewEmptyContext(), "", ModuleName, peopleSchema(), nil)
	require.NoError(t, err)
	rows := scanRows(t, sql.NewEmptyContext(), tbl.(*MemoryTable))
	require.Empty(t, rows)
}

func TestModuleGetBestAccessPlanDetectsPointLookup(t *testing.T) {
	m := NewModule()
	req := sql.AccessPlanRequest{
		Filters: []sql.FilterConstraint{
			{ColumnIndex: 0, Op: sql.FilterEQ, Value: int64(1), Usable: true},
		},
	}
	plan, ok := m.GetBestAccessPlan(sql.NewEmptyContext(), peopleSchema(), req)
	require.True(t, ok)
	require.True(t, plan.IsSet)
	require.Equal(t, uint64(1), plan.Rows)
	require.True(t, plan.HandledFilters[0])

	pl, ok := plan.Opaque.(pointLookup)
	require.True(t, ok)
	require.Equal(t, sql.Row{int64(1)}, pl.key)
}

func TestModuleGetBestAccessPlanFallsBackToFullScan(t *testing.T) {
	m := NewModule()
	req := sql.AccessPlanRequest{
		Filters: []sql.FilterConstraint{
			{ColumnIndex: 1, Op: sql.FilterEQ, Value: "ada", Usable: true},
		},
	}
	plan, ok := m.GetBestAccessPlan(sql.NewEmptyContext(), peopleSchema(), req)
	require.True(t, ok)
	require.False(t, plan.IsSet)
	require.False(t, plan.HandledFilters[0])
	require.Len(t, plan.ProvidesOrdering, 1)
}

func TestModuleGetBestAccessPlanRequiresEveryPKColumn(t *testing.T) {
	schema := peopleSchema()
	schema.PrimaryKey = []sql.PKColumn{{ColumnIndex: 0}, {ColumnIndex: 1}}

	m := NewModule()
	req := sql.AccessPlanRequest{
		Filters: []sql.FilterConstraint{
			{ColumnIndex: 0, Op: sql.FilterEQ, Value: int64(1), Usable: true},
		},
	}
	plan, ok := m.GetBestAccessPlan(sql.NewEmptyContext(), schema, req)
	require.True(t, ok)
	require.False(t, plan.IsSet, "a partial PK equality match is not a point lookup")
}

func TestModuleSupportsNoPushDown(t *testing.T) {
	m := NewModule()
	cost, opaque, ok := m.Supports(nil)
	require.False(t, ok)
	require.Zero(t, cost)
	require.Nil(t, opaque)
}

func TestModuleCreateIndexAddsToBaseLayer(t *testing.T) {
	m := NewModule()
	schema := peopleSchema()
	schema.Indexes = nil
	tbl := NewMemoryTable(schema)

	err := m.CreateIndex(sql.NewEmptyContext(), tbl, sql.IndexDef{Name: "email_idx", Columns: []int{2}})
	require.NoError(t, err)

	_, ok := tbl.base.secondary["email_idx"]
	require.True(t, ok)
}

func TestModuleCreateIndexRejectsNonMemoryTable(t *testing.T) {
	m := NewModule()
	err := m.CreateIndex(sql.NewEmptyContext(), nil, sql.IndexDef{Name: "x"})
	require.Error(t, err)
	require.True(t, sql.ErrInvariantViolation.Is(err))
}

func TestModuleDestroyEmitsEvent(t *testing.T) {
	m := NewModule()
	tbl := NewMemoryTable(peopleSchema())

	var got string
	tbl.Events().Subscribe("destroyed", func(payload interface{}) {
		got = payload.(string)
	})

	require.NoError(t, m.Destroy(sql.NewEmptyContext(), "", tbl))
	require.Equal(t, "people", got)
}
