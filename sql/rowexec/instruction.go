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

// Package rowexec compiles an optimized *plan.Node tree into a tree of
// Instructions (§4.E) and drives them with a stateless Scheduler (§4.F).
// A Compiler lowers each relational node once at statement-prepare time;
// the resulting Instruction is re-executed, unchanged, for every
// statement execution, every correlated-subquery probe, and every
// recursive-CTE iteration -- apart from the Cache instruction's replay
// buffer (compileCache), there is no per-Instruction memoization, so
// "run it again" is simply calling Scheduler.Execute against the same
// compiled tree.
package rowexec

import "github.com/dolthub/quereus/sql"

// Instruction is one node of the compiled program (§4.E): Params are
// evaluated, left to right, before Run is invoked with their results.
// Programs is metadata only, letting a Tracer or EXPLAIN renderer recurse
// into a nested scheduler's sub-program (a CTE body, a subquery) without
// that structure affecting execution, which always happens by a closure
// inside Run calling Scheduler.Execute directly.
type Instruction struct {
	Note     string
	Params   []*Instruction
	Run      func(ctx *sql.Context, args []interface{}) (interface{}, error)
	Programs []*Instruction
}

// Scheduler drives Instructions. It carries no state of its own; every
// field-less Scheduler{} value behaves identically, which is what lets
// nested re-execution (a correlated subquery's callback, a nested loop
// join's inner scan, a recursive CTE's next iteration) just construct
// another Scheduler{} and call Execute again.
type Scheduler struct{}

// Execute evaluates ins.Params depth-first, then calls ins.Run with their
// results, reporting each step to ctx.Tracer when one is installed.
func (s Scheduler) Execute(ctx *sql.Context, ins *Instruction) (interface{}, error) {
	if ins == nil {
		return nil, nil
	}
	args := make([]interface{}, len(ins.Params))
	for i, p := range ins.Params {
		v, err := s.Execute(ctx, p)
		if err != nil {
			if ctx.Tracer != nil {
				ctx.Tracer.Error(ins.Note, err)
			}
			return nil, err
		}
		args[i] = v
	}
	if ctx.Tracer != nil {
		ctx.Tracer.Input(ins.Note, args)
		for _, prog := range ins.Programs {
			ctx.Tracer.SubProgram(ins.Note, prog)
		}
	}
	result, err := ins.Run(ctx, args)
	if err != nil {
		if ctx.Tracer != nil {
			ctx.Tracer.Error(ins.Note, err)
		}
		return nil, err
	}
	if ctx.Tracer != nil {
		ctx.Tracer.Output(ins.Note, result)
	}
	return result, nil
}

// leaf builds an Instruction with no Params, the common shape for a
// relational producer's compiled form.
func leaf(note string, run func(ctx *sql.Context, args []interface{}) (interface{}, error)) *Instruction {
	return &Instruction{Note: note, Run: run}
}
