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

	"github.com/dolthub/quereus/sql"
	"github.com/dolthub/quereus/sql/expression"
	"github.com/dolthub/quereus/sql/plan"
)

// compileStreamAggregate drives each AggregateFunctionCall's own
// NewAccumulator/Update/Eval across the rows of one group, never calling
// AggregateFunctionCall.Eval directly (it deliberately errors to enforce
// exactly this). Input rows are assumed already sorted on the grouping
// keys (the analyzer inserts a Sort below when needed), so one pass with
// one accumulator set per in-flight group suffices.
func (c *Compiler) compileStreamAggregate(n *plan.StreamAggregate) (*Instruction, error) {
	input, err := c.compileChild(n, 0)
	if err != nil {
		return nil, err
	}
	for _, g := range n.GroupBy {
		if err := c.wireExpr(g); err != nil {
			return nil, err
		}
	}
	for _, a := range n.Aggregates {
		if call, ok := a.Expr.(*expression.AggregateFunctionCall); ok {
			if err := c.wireExprs(call.ChildExprs); err != nil {
				return nil, err
			}
		} else if err := c.wireExpr(a.Expr); err != nil {
			return nil, err
		}
	}
	inDesc := n.Input.RelType().Descriptor()
	groupBy := n.GroupBy
	groupAttrs := n.GroupAttributes()
	aggregates := n.Aggregates
	groupTypes := make([]sql.Type, len(groupBy))
	for i, g := range groupBy {
		groupTypes[i] = g.Type()
	}
	return &Instruction{
		Note:   n.String(),
		Params: []*Instruction{input},
		Run: func(ctx *sql.Context, args []interface{}) (interface{}, error) {
			src := args[0].(sql.RowIter)
			return &streamAggregateIter{
				source:     src,
				inDesc:     inDesc,
				groupBy:    groupBy,
				groupTypes: groupTypes,
				groupAttrs: groupAttrs,
				aggregates: aggregates,
			}, nil
		},
	}, nil
}

type streamAggregateIter struct {
	source     sql.RowIter
	inDesc     sql.RowDescriptor
	groupBy    []expression.Expression
	groupTypes []sql.Type
	groupAttrs []sql.Attribute
	aggregates []plan.AggregateExpr

	started  bool
	pending  sql.Row
	pendKeys sql.Row
	done     bool
}

// groupKeys evaluates the GROUP BY expressions against row's context.
func (s *streamAggregateIter) groupKeys(ctx *sql.Context, row sql.Row) (sql.Row, error) {
	pop := ctx.PushRow(s.inDesc, row)
	defer pop()
	keys := make(sql.Row, len(s.groupBy))
	for i, g := range s.groupBy {
		v, err := g.Eval(ctx)
		if err != nil {
			return nil, err
		}
		keys[i] = v
	}
	return keys, nil
}

type accEntry struct {
	call *expression.AggregateFunctionCall
	acc  expression.Accumulator
	seen *rowSet // for DISTINCT aggregates, dedup'd by evaluated args
}

// emptyGroupRow builds the single result row a GROUP-BY-less aggregate
// must still produce over zero input rows (e.g. count(*) = 0, sum = NULL),
// folding each accumulator over no updates at all.
func (s *streamAggregateIter) emptyGroupRow(ctx *sql.Context, accs []accEntry) (sql.Row, error) {
	out := make(sql.Row, len(s.aggregates))
	for i, a := range s.aggregates {
		if accs[i].call != nil {
			v, err := accs[i].acc.Eval(ctx)
			if err != nil {
				return nil, err
			}
			out[i] = v
			continue
		}
		v, err := a.Expr.Eval(ctx)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *streamAggregateIter) sameGroup(a, b sql.Row) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		cmp, _ := sql.Compare(a[i], b[i], s.groupTypes[i])
		if cmp != 0 {
			return false
		}
	}
	return true
}

// Next folds one full group of rows (sharing the same group keys) into
// accumulators and returns the resulting row: group keys followed by
// each aggregate's final value.
func (s *streamAggregateIter) Next(ctx *sql.Context) (sql.Row, error) {
	if s.done {
		return nil, io.EOF
	}

	accs := make([]accEntry, len(s.aggregates))
	var passthrough sql.Row
	for i, a := range s.aggregates {
		if call, ok := a.Expr.(*expression.AggregateFunctionCall); ok {
			entry := accEntry{call: call, acc: call.NewAccumulator()}
			if call.Distinct {
				argTypes := make([]sql.Type, len(call.ChildExprs))
				for j, e := range call.ChildExprs {
					argTypes[j] = e.Type()
				}
				entry.seen = newRowSet(nil, argTypes)
			}
			accs[i] = entry
		}
	}

	var curKeys sql.Row
	haveRow := false

	if !s.started {
		s.started = true
		row, err := s.source.Next(ctx)
		if err != nil {
			if err == io.EOF {
				s.done = true
				if len(s.groupBy) == 0 {
					return s.emptyGroupRow(ctx, accs)
				}
				return nil, io.EOF
			}
			return nil, err
		}
		s.pending = row
		keys, err := s.groupKeys(ctx, row)
		if err != nil {
			return nil, err
		}
		s.pendKeys = keys
	}
	if s.pending == nil {
		s.done = true
		return nil, io.EOF
	}
	curKeys = s.pendKeys
	haveRow = true

	for haveRow {
		row := s.pending
		pop := ctx.PushRow(s.inDesc, row)
		for i, a := range s.aggregates {
			if accs[i].call != nil {
				args := make([]interface{}, len(accs[i].call.ChildExprs))
				for j, e := range accs[i].call.ChildExprs {
					v, err := e.Eval(ctx)
					if err != nil {
						pop()
						return nil, err
					}
					args[j] = v
				}
				if accs[i].seen != nil && !accs[i].seen.add(sql.Row(args)) {
					continue
				}
				if err := accs[i].acc.Update(ctx, args); err != nil {
					pop()
					return nil, err
				}
			} else if passthrough == nil {
				v, err := a.Expr.Eval(ctx)
				if err != nil {
					pop()
					return nil, err
				}
				if passthrough == nil {
					passthrough = make(sql.Row, len(s.aggregates))
				}
				passthrough[i] = v
			}
		}
		pop()

		next, err := s.source.Next(ctx)
		if err != nil {
			if err == io.EOF {
				s.pending = nil
				haveRow = false
				break
			}
			return nil, err
		}
		keys, err := s.groupKeys(ctx, next)
		if err != nil {
			return nil, err
		}
		if !s.sameGroup(curKeys, keys) {
			s.pending = next
			s.pendKeys = keys
			haveRow = false
			break
		}
		s.pending = next
	}

	out := make(sql.Row, len(s.groupAttrs)+len(s.aggregates))
	copy(out, curKeys)
	for i := range s.aggregates {
		if accs[i].call != nil {
			v, err := accs[i].acc.Eval(ctx)
			if err != nil {
				return nil, err
			}
			out[len(s.groupAttrs)+i] = v
		} else if passthrough != nil {
			out[len(s.groupAttrs)+i] = passthrough[i]
		}
	}
	return out, nil
}

func (s *streamAggregateIter) Close(ctx *sql.Context) error { return s.source.Close(ctx) }
