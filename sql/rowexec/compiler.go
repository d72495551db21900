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
	"fmt"

	"github.com/dolthub/quereus/sql"
	"github.com/dolthub/quereus/sql/expression"
	"github.com/dolthub/quereus/sql/plan"
)

// Compiler lowers an optimized *plan.Node tree into a tree of
// Instructions. A Compiler is stateless beyond the Catalog it consults
// for DDL/TXN/assertion bookkeeping, so one Compiler can compile every
// statement a connection prepares.
type Compiler struct {
	Catalog *sql.Catalog
	// Modules resolves a module by name for DDL that creates tables
	// without a pre-resolved sql.Module handle (APPLY SCHEMA's
	// module-per-declared-table lookup); nil if the caller never issues
	// such statements.
	Modules *sql.ModuleRegistry
}

// NewCompiler builds a Compiler bound to catalog and modules.
func NewCompiler(catalog *sql.Catalog, modules *sql.ModuleRegistry) *Compiler {
	return &Compiler{Catalog: catalog, Modules: modules}
}

// Compile lowers n, requiring every node in the tree to already carry
// PhysicalProperties (I2): RequirePhysical enforces that at each node
// visited, rather than only at the root, so an un-optimized subtree
// fails close to its source.
func (c *Compiler) Compile(n plan.Node) (*Instruction, error) {
	if _, err := plan.RequirePhysical(n); err != nil {
		return nil, err
	}
	switch node := n.(type) {
	case *plan.Filter:
		return c.compileFilter(node)
	case *plan.Project:
		return c.compileProject(node)
	case *plan.TableScan:
		return c.compileTableScan(node)
	case *plan.Retrieve:
		return nil, sql.ErrNotOptimized.New(node)
	case *plan.TableReference:
		return nil, sql.ErrNotOptimized.New(node)
	case *plan.Join:
		return c.compileJoin(node)
	case *plan.BloomJoin:
		return c.compileBloomJoin(node)
	case *plan.Aggregate:
		return nil, sql.ErrNotOptimized.New(node)
	case *plan.StreamAggregate:
		return c.compileStreamAggregate(node)
	case *plan.Sort:
		return c.compileSort(node)
	case *plan.Distinct:
		return c.compileDistinct(node)
	case *plan.LimitOffset:
		return c.compileLimitOffset(node)
	case *plan.Window:
		return c.compileWindow(node)
	case *plan.SetOperation:
		return c.compileSetOperation(node)
	case *plan.Cache:
		return c.compileCache(node)
	case *plan.Sink:
		return c.compileSink(node)
	case *plan.Values:
		return c.compileValues(node)
	case *plan.CTE:
		return c.compileCTE(node)
	case *plan.CTERef:
		return c.compileCTERef(node)
	case *plan.RecursiveCTE:
		return c.compileRecursiveCTE(node)
	case *plan.WorkingTableRef:
		return c.compileWorkingTableRef(node)
	case *plan.DmlExecutor:
		return c.compileDmlExecutor(node)
	case *plan.Returning:
		return c.compileReturning(node)
	case *plan.Block:
		return c.compileBlock(node)
	case *plan.CreateTable:
		return c.compileCreateTable(node)
	case *plan.CreateIndex:
		return c.compileCreateIndex(node)
	case *plan.CreateView:
		return c.compileCreateView(node)
	case *plan.Drop:
		return c.compileDrop(node)
	case *plan.AddConstraint:
		return c.compileAddConstraint(node)
	case *plan.CreateAssertion:
		return c.compileCreateAssertion(node)
	case *plan.DropAssertion:
		return c.compileDropAssertion(node)
	case *plan.TxnStatement:
		return c.compileTxnStatement(node)
	case *plan.Pragma:
		return c.compilePragma(node)
	case *plan.Analyze:
		return c.compileAnalyze(node)
	case *plan.Explain:
		return c.compileExplain(node)
	case *plan.DeclareSchema:
		return c.compileDeclareSchema(node)
	case *plan.DiffSchema:
		return c.compileDiffSchema(node)
	case *plan.ApplySchema:
		return c.compileApplySchema(node)
	case *plan.ExplainSchema:
		return c.compileExplainSchema(node)
	default:
		return nil, sql.ErrUnsupported.New(fmt.Sprintf("rowexec: no compiler for node type %T", n))
	}
}

// compileChild is sugar for Compile(n.Relations()[i]) with a descriptive
// error when the expected relational input is missing, which would
// indicate an analyzer bug rather than user error.
func (c *Compiler) compileChild(n plan.Node, idx int) (*Instruction, error) {
	rels := n.Relations()
	if idx >= len(rels) || rels[idx] == nil {
		return nil, sql.ErrInvariantViolation.New(fmt.Sprintf("%T missing relational input %d", n, idx))
	}
	return c.Compile(rels[idx])
}

// wireExprs wires every *expression.ScalarSubquery reachable from exprs,
// recursing into children. Subquery wiring happens once per statement at
// compile time (per CallbackExpression's own contract), not per row.
func (c *Compiler) wireExprs(exprs []expression.Expression) error {
	for _, e := range exprs {
		if err := c.wireExpr(e); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) wireExpr(e expression.Expression) error {
	if e == nil {
		return nil
	}
	if sub, ok := e.(*expression.ScalarSubquery); ok {
		rel, ok := sub.Relation.(plan.Node)
		if !ok {
			return sql.ErrInvariantViolation.New("ScalarSubquery.Relation is not a plan.Node")
		}
		ins, err := c.Compile(rel)
		if err != nil {
			return err
		}
		sub.SetCallback(func(ctx *sql.Context) (sql.RowIter, error) {
			res, err := (Scheduler{}).Execute(ctx, ins)
			if err != nil {
				return nil, err
			}
			iter, ok := res.(sql.RowIter)
			if !ok {
				return nil, sql.ErrInvariantViolation.New("compiled subquery did not produce a RowIter")
			}
			return iter, nil
		})
		return nil
	}
	return c.wireExprs(e.Children())
}
