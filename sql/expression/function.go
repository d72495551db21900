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

package expression

import (
	"fmt"
	"strings"

	"github.com/dolthub/quereus/sql"
)

// ScalarFunctionImpl is a registered scalar function body (§1 Out of
// scope: "Built-in scalar/aggregate function bodies; only their
// registration and invocation contract are specified"); the core only
// needs a name, arity, return-type resolver, and an eval function to
// drive ScalarFunctionCall — this package ships only the small reference
// set in builtins.go (RegisterBuiltins); any other body is registered by
// callers.
type ScalarFunctionImpl struct {
	Name          string
	Arity         int // -1 means variadic
	ResolveType   func(argTypes []sql.Type) sql.Type
	Eval          func(ctx *sql.Context, args []interface{}) (interface{}, error)
	IsDeterministic bool
}

// AggregateFunctionImpl is a registered aggregate's accumulator
// contract, driven by the rowexec StreamAggregate emitter.
type AggregateFunctionImpl struct {
	Name        string
	Arity       int
	ResolveType func(argTypes []sql.Type) sql.Type
	// NewAccumulator returns a fresh per-group accumulator.
	NewAccumulator func() Accumulator
}

// Accumulator folds rows into a running aggregate state.
type Accumulator interface {
	Update(ctx *sql.Context, args []interface{}) error
	Eval(ctx *sql.Context) (interface{}, error)
}

// FunctionRegistry resolves (name, arity) to a scalar or aggregate
// function implementation, per §4.C "Functions by (name, arity)".
type FunctionRegistry struct {
	scalars    map[string][]*ScalarFunctionImpl
	aggregates map[string][]*AggregateFunctionImpl
}

// NewFunctionRegistry builds an empty registry; callers register
// concrete function bodies (out of scope per spec.md §1).
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{
		scalars:    make(map[string][]*ScalarFunctionImpl),
		aggregates: make(map[string][]*AggregateFunctionImpl),
	}
}

// RegisterScalar installs a scalar function implementation.
func (r *FunctionRegistry) RegisterScalar(f *ScalarFunctionImpl) {
	key := strings.ToLower(f.Name)
	r.scalars[key] = append(r.scalars[key], f)
}

// RegisterAggregate installs an aggregate function implementation.
func (r *FunctionRegistry) RegisterAggregate(f *AggregateFunctionImpl) {
	key := strings.ToLower(f.Name)
	r.aggregates[key] = append(r.aggregates[key], f)
}

// IsAggregate reports whether name is registered as an aggregate,
// letting the builder choose ScalarFunctionCall vs AggregateFunctionCall
// per §4.C "aggregate vs scalar chosen from the schema".
func (r *FunctionRegistry) IsAggregate(name string) bool {
	_, ok := r.aggregates[strings.ToLower(name)]
	return ok
}

// ResolveScalar finds a matching scalar implementation for (name, arity).
func (r *FunctionRegistry) ResolveScalar(name string, arity int) (*ScalarFunctionImpl, bool) {
	for _, f := range r.scalars[strings.ToLower(name)] {
		if f.Arity == -1 || f.Arity == arity {
			return f, true
		}
	}
	return nil, false
}

// ResolveAggregate finds a matching aggregate implementation.
func (r *FunctionRegistry) ResolveAggregate(name string, arity int) (*AggregateFunctionImpl, bool) {
	for _, f := range r.aggregates[strings.ToLower(name)] {
		if f.Arity == -1 || f.Arity == arity {
			return f, true
		}
	}
	return nil, false
}

// ScalarFunctionCall is §4.B's ScalarFunctionCall node.
type ScalarFunctionCall struct {
	NaryExpression
	Impl *ScalarFunctionImpl
	typ  sql.Type
}

// NewScalarFunctionCall builds a call to a resolved scalar function.
func NewScalarFunctionCall(impl *ScalarFunctionImpl, args []Expression) *ScalarFunctionCall {
	argTypes := make([]sql.Type, len(args))
	for i, a := range args {
		argTypes[i] = a.Type()
	}
	return &ScalarFunctionCall{NaryExpression: NaryExpression{ChildExprs: args}, Impl: impl, typ: impl.ResolveType(argTypes)}
}

func (f *ScalarFunctionCall) Type() sql.Type { return f.typ }

func (f *ScalarFunctionCall) WithChildren(children ...Expression) (Expression, error) {
	return NewScalarFunctionCall(f.Impl, children), nil
}

func (f *ScalarFunctionCall) Deterministic() bool {
	return f.Impl.IsDeterministic && AllDeterministic(f.ChildExprs)
}

func (f *ScalarFunctionCall) String() string {
	parts := make([]string, len(f.ChildExprs))
	for i, c := range f.ChildExprs {
		parts[i] = c.String()
	}
	return fmt.Sprintf("%s(%s)", f.Impl.Name, strings.Join(parts, ", "))
}

func (f *ScalarFunctionCall) Eval(ctx *sql.Context) (interface{}, error) {
	args := make([]interface{}, len(f.ChildExprs))
	for i, c := range f.ChildExprs {
		v, err := c.Eval(ctx)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return f.Impl.Eval(ctx, args)
}

// AggregateFunctionCall is §4.B's AggregateFunctionCall node. It is never
// Eval'd directly against a single row; the rowexec StreamAggregate
// emitter drives Impl.NewAccumulator()/Update/Eval across a group's rows
// and binds the result as an ordinary attribute for downstream nodes.
type AggregateFunctionCall struct {
	NaryExpression
	Impl     *AggregateFunctionImpl
	Distinct bool
	typ      sql.Type
}

// NewAggregateFunctionCall builds a call to a resolved aggregate
// function.
func NewAggregateFunctionCall(impl *AggregateFunctionImpl, args []Expression, distinct bool) *AggregateFunctionCall {
	argTypes := make([]sql.Type, len(args))
	for i, a := range args {
		argTypes[i] = a.Type()
	}
	return &AggregateFunctionCall{NaryExpression: NaryExpression{ChildExprs: args}, Impl: impl, Distinct: distinct, typ: impl.ResolveType(argTypes)}
}

func (a *AggregateFunctionCall) Type() sql.Type { return a.typ }

func (a *AggregateFunctionCall) WithChildren(children ...Expression) (Expression, error) {
	return NewAggregateFunctionCall(a.Impl, children, a.Distinct), nil
}

func (a *AggregateFunctionCall) Deterministic() bool { return false }

func (a *AggregateFunctionCall) String() string {
	parts := make([]string, len(a.ChildExprs))
	for i, c := range a.ChildExprs {
		parts[i] = c.String()
	}
	distinct := ""
	if a.Distinct {
		distinct = "DISTINCT "
	}
	return fmt.Sprintf("%s(%s%s)", a.Impl.Name, distinct, strings.Join(parts, ", "))
}

// Eval is not meaningful outside a StreamAggregate's accumulator loop; it
// returns an Internal error so misuse is caught loudly rather than
// silently returning a wrong value.
func (a *AggregateFunctionCall) Eval(ctx *sql.Context) (interface{}, error) {
	return nil, sql.ErrInvariantViolation.New("AggregateFunctionCall must be driven by StreamAggregate, not Eval'd directly")
}

// NewAccumulator produces a fresh accumulator for one group.
func (a *AggregateFunctionCall) NewAccumulator() Accumulator { return a.Impl.NewAccumulator() }
