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
	"strings"

	"github.com/spf13/cast"

	"github.com/dolthub/quereus/sql"
)

// RegisterBuiltins installs the small set of aggregate/scalar functions
// the engine's own tests and examples rely on (§1 "only their
// registration and invocation contract are specified" — these are
// reference bodies, not an exhaustive SQL function library).
func RegisterBuiltins(r *FunctionRegistry) {
	r.RegisterAggregate(&AggregateFunctionImpl{
		Name:        "count",
		Arity:       -1,
		ResolveType: func([]sql.Type) sql.Type { return sql.IntegerType },
		NewAccumulator: func() Accumulator { return &countAcc{} },
	})
	r.RegisterAggregate(&AggregateFunctionImpl{
		Name:        "sum",
		Arity:       1,
		ResolveType: func([]sql.Type) sql.Type { return sql.NullableReal },
		NewAccumulator: func() Accumulator { return &sumAcc{} },
	})
	r.RegisterAggregate(&AggregateFunctionImpl{
		Name:        "avg",
		Arity:       1,
		ResolveType: func([]sql.Type) sql.Type { return sql.NullableReal },
		NewAccumulator: func() Accumulator { return &avgAcc{} },
	})
	r.RegisterAggregate(&AggregateFunctionImpl{
		Name:        "min",
		Arity:       1,
		ResolveType: func(a []sql.Type) sql.Type { return nullable(firstOr(a, sql.NullableReal)) },
		NewAccumulator: func() Accumulator { return &minMaxAcc{min: true} },
	})
	r.RegisterAggregate(&AggregateFunctionImpl{
		Name:        "max",
		Arity:       1,
		ResolveType: func(a []sql.Type) sql.Type { return nullable(firstOr(a, sql.NullableReal)) },
		NewAccumulator: func() Accumulator { return &minMaxAcc{min: false} },
	})

	r.RegisterScalar(&ScalarFunctionImpl{
		Name: "abs", Arity: 1, IsDeterministic: true,
		ResolveType: func([]sql.Type) sql.Type { return sql.NullableReal },
		Eval: func(ctx *sql.Context, args []interface{}) (interface{}, error) {
			if args[0] == nil {
				return nil, nil
			}
			f, err := cast.ToFloat64E(args[0])
			if err != nil {
				return nil, sql.ErrArithmetic.New("abs of non-numeric value")
			}
			if f < 0 {
				f = -f
			}
			return f, nil
		},
	})
	r.RegisterScalar(&ScalarFunctionImpl{
		Name: "length", Arity: 1, IsDeterministic: true,
		ResolveType: func([]sql.Type) sql.Type { return sql.NullableInt },
		Eval: func(ctx *sql.Context, args []interface{}) (interface{}, error) {
			if args[0] == nil {
				return nil, nil
			}
			switch v := args[0].(type) {
			case []byte:
				return int64(len(v)), nil
			default:
				s, _ := cast.ToStringE(v)
				return int64(len(s)), nil
			}
		},
	})
	r.RegisterScalar(&ScalarFunctionImpl{
		Name: "upper", Arity: 1, IsDeterministic: true,
		ResolveType: func([]sql.Type) sql.Type { return sql.NullableText },
		Eval: func(ctx *sql.Context, args []interface{}) (interface{}, error) {
			if args[0] == nil {
				return nil, nil
			}
			s, _ := cast.ToStringE(args[0])
			return strings.ToUpper(s), nil
		},
	})
	r.RegisterScalar(&ScalarFunctionImpl{
		Name: "lower", Arity: 1, IsDeterministic: true,
		ResolveType: func([]sql.Type) sql.Type { return sql.NullableText },
		Eval: func(ctx *sql.Context, args []interface{}) (interface{}, error) {
			if args[0] == nil {
				return nil, nil
			}
			s, _ := cast.ToStringE(args[0])
			return strings.ToLower(s), nil
		},
	})
	r.RegisterScalar(&ScalarFunctionImpl{
		Name: "coalesce", Arity: -1, IsDeterministic: true,
		ResolveType: func(a []sql.Type) sql.Type { return nullable(firstOr(a, sql.NullableText)) },
		Eval: func(ctx *sql.Context, args []interface{}) (interface{}, error) {
			for _, a := range args {
				if a != nil {
					return a, nil
				}
			}
			return nil, nil
		},
	})
}

func firstOr(types []sql.Type, def sql.Type) sql.Type {
	if len(types) > 0 {
		return types[0]
	}
	return def
}

func nullable(t sql.Type) sql.Type {
	t.Nullable = true
	return t
}

type countAcc struct{ n int64 }

func (a *countAcc) Update(ctx *sql.Context, args []interface{}) error {
	if len(args) == 0 {
		a.n++
		return nil
	}
	if args[0] != nil {
		a.n++
	}
	return nil
}

func (a *countAcc) Eval(ctx *sql.Context) (interface{}, error) { return a.n, nil }

type sumAcc struct {
	sum  float64
	seen bool
}

func (a *sumAcc) Update(ctx *sql.Context, args []interface{}) error {
	if len(args) == 0 || args[0] == nil {
		return nil
	}
	f, err := cast.ToFloat64E(args[0])
	if err != nil {
		return sql.ErrArithmetic.New("sum of non-numeric value")
	}
	a.sum += f
	a.seen = true
	return nil
}

func (a *sumAcc) Eval(ctx *sql.Context) (interface{}, error) {
	if !a.seen {
		return nil, nil
	}
	return a.sum, nil
}

type avgAcc struct {
	sum   float64
	count int64
}

func (a *avgAcc) Update(ctx *sql.Context, args []interface{}) error {
	if len(args) == 0 || args[0] == nil {
		return nil
	}
	f, err := cast.ToFloat64E(args[0])
	if err != nil {
		return sql.ErrArithmetic.New("avg of non-numeric value")
	}
	a.sum += f
	a.count++
	return nil
}

func (a *avgAcc) Eval(ctx *sql.Context) (interface{}, error) {
	if a.count == 0 {
		return nil, nil
	}
	return a.sum / float64(a.count), nil
}

type minMaxAcc struct {
	min   bool
	value interface{}
}

func (a *minMaxAcc) Update(ctx *sql.Context, args []interface{}) error {
	if len(args) == 0 || args[0] == nil {
		return nil
	}
	if a.value == nil {
		a.value = args[0]
		return nil
	}
	cmp, _ := sql.Compare(args[0], a.value, sql.NumericType)
	if (a.min && cmp < 0) || (!a.min && cmp > 0) {
		a.value = args[0]
	}
	return nil
}

func (a *minMaxAcc) Eval(ctx *sql.Context) (interface{}, error) { return a.value, nil }
