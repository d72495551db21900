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
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dolthub/quereus/sql"
)

func TestSchedulerExecuteLeafInstruction(t *testing.T) {
	ctx := sql.NewEmptyContext()
	ins := leaf("constant", func(ctx *sql.Context, args []interface{}) (interface{}, error) {
		return 42, nil
	})

	result, err := (Scheduler{}).Execute(ctx, ins)
	require.NoError(t, err)
	require.Equal(t, 42, result)
}

func TestSchedulerExecutesParamsDepthFirst(t *testing.T) {
	ctx := sql.NewEmptyContext()
	var order []string

	left := leaf("left", func(ctx *sql.Context, args []interface{}) (interface{}, error) {
		order = append(order, "left")
		return 1, nil
	})
	right := leaf("right", func(ctx *sql.Context, args []interface{}) (interface{}, error) {
		order = append(order, "right")
		return 2, nil
	})
	parent := &Instruction{
		Note:   "sum",
		Params: []*Instruction{left, right},
		Run: func(ctx *sql.Context, args []interface{}) (interface{}, error) {
			order = append(order, "parent")
			return args[0].(int) + args[1].(int), nil
		},
	}

	result, err := (Scheduler{}).Execute(ctx, parent)
	require.NoError(t, err)
	require.Equal(t, 3, result)
	require.Equal(t, []string{"left", "right", "parent"}, order)
}

func TestSchedulerExecuteNilInstructionIsNoop(t *testing.T) {
	ctx := sql.NewEmptyContext()
	result, err := (Scheduler{}).Execute(ctx, nil)
	require.NoError(t, err)
	require.Nil(t, result)
}

func TestSchedulerExecutePropagatesParamError(t *testing.T) {
	ctx := sql.NewEmptyContext()
	boom := errors.New("boom")

	failing := leaf("failing", func(ctx *sql.Context, args []interface{}) (interface{}, error) {
		return nil, boom
	})
	ran := false
	parent := &Instruction{
		Note:   "parent",
		Params: []*Instruction{failing},
		Run: func(ctx *sql.Context, args []interface{}) (interface{}, error) {
			ran = true
			return nil, nil
		},
	}

	_, err := (Scheduler{}).Execute(ctx, parent)
	require.ErrorIs(t, err, boom)
	require.False(t, ran, "Run must not execute when a Param fails")
}

func TestSchedulerExecutePropagatesRunError(t *testing.T) {
	ctx := sql.NewEmptyContext()
	boom := errors.New("boom")

	ins := leaf("failing", func(ctx *sql.Context, args []interface{}) (interface{}, error) {
		return nil, boom
	})

	_, err := (Scheduler{}).Execute(ctx, ins)
	require.ErrorIs(t, err, boom)
}

type recordingTracer struct {
	inputs, outputs, errs, subs int
}

func (r *recordingTracer) Input(note string, args []interface{})    { r.inputs++ }
func (r *recordingTracer) Output(note string, result interface{})   { r.outputs++ }
func (r *recordingTracer) Row(note string, row sql.Row)              {}
func (r *recordingTracer) Error(note string, err error)              { r.errs++ }
func (r *recordingTracer) SubProgram(note string, child interface{}) { r.subs++ }

func TestSchedulerExecuteReportsToTracer(t *testing.T) {
	tracer := &recordingTracer{}
	ctx := sql.NewContext(context.Background(), sql.WithTracer(tracer))

	inner := leaf("inner", func(ctx *sql.Context, args []interface{}) (interface{}, error) {
		return 1, nil
	})
	parent := &Instruction{
		Note:     "parent",
		Programs: []*Instruction{inner},
		Run: func(ctx *sql.Context, args []interface{}) (interface{}, error) {
			return 2, nil
		},
	}

	_, err := (Scheduler{}).Execute(ctx, parent)
	require.NoError(t, err)
	require.Equal(t, 1, tracer.inputs)
	require.Equal(t, 1, tracer.outputs)
	require.Equal(t, 1, tracer.subs)
	require.Equal(t, 0, tracer.errs)
}

func TestSchedulerExecuteReportsErrorToTracer(t *testing.T) {
	tracer := &recordingTracer{}
	ctx := sql.NewContext(context.Background(), sql.WithTracer(tracer))
	boom := errors.New("boom")

	ins := leaf("failing", func(ctx *sql.Context, args []interface{}) (interface{}, error) {
		return nil, boom
	})

	_, err := (Scheduler{}).Execute(ctx, ins)
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, tracer.errs)
}
