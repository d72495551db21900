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

// Package quereus is the embeddable SQL query core: it owns the catalog
// and module registry, drives planbuilder -> analyzer -> rowexec for each
// statement, and wires autocommit and assertion enforcement across the
// virtual-table connections a transaction touches (§4.G, §4.H, §6).
package quereus

import (
	"context"
	"fmt"

	"github.com/spf13/cast"

	"github.com/dolthub/quereus/memory"
	"github.com/dolthub/quereus/sql"
	"github.com/dolthub/quereus/sql/analyzer"
	"github.com/dolthub/quereus/sql/expression"
	"github.com/dolthub/quereus/sql/plan"
	"github.com/dolthub/quereus/sql/planbuilder"
	"github.com/dolthub/quereus/sql/planbuilder/ast"
	"github.com/dolthub/quereus/sql/rowexec"
)

// Engine owns the process-wide registries a Connection builds and runs
// statements against: the table/view/schema catalog and the virtual-table
// module registry (§4.G, §9 "no global mutable state beyond the attribute
// id counter and the module registry").
type Engine struct {
	Catalog   *sql.Catalog
	Modules   *sql.ModuleRegistry
	Functions *expression.FunctionRegistry

	compiler *rowexec.Compiler
}

// NewEngine builds an Engine with the built-in memory module registered
// under its own name, ready for CREATE TABLE ... USING memory(...) (or the
// default module a bare CREATE TABLE resolves to, per planbuilder's
// astTableSchema).
func NewEngine() *Engine {
	catalog := sql.NewCatalog()
	modules := sql.NewModuleRegistry()
	modules.Register(memory.NewModule())
	funcs := expression.NewFunctionRegistry()
	expression.RegisterBuiltins(funcs)

	e := &Engine{Catalog: catalog, Modules: modules, Functions: funcs}
	e.compiler = rowexec.NewCompiler(catalog, modules)
	return e
}

// PreparedStatement is one statement's compiled program: a *rowexec.
// Instruction that can be scheduled once per execution (§4.E "there is no
// per-Instruction memoization"), plus the parameter shape captured by
// planbuilder so a caller can validate/bind arguments before running it.
type PreparedStatement struct {
	engine  *Engine
	program *rowexec.Instruction
	Params  []plan.ParamInfo

	// txnOp/txnName capture a BEGIN/COMMIT/ROLLBACK/SAVEPOINT/RELEASE/
	// ROLLBACK TO statement's kind directly off the ast.Statement Prepare
	// was given; everything else leaves txnOp nil, since neither the
	// optimized plan.Node nor the compiled Instruction retains a
	// reliably-typed handle back to "this is transaction control" once
	// compileTxnStatement has already lowered it into a status-row leaf.
	txnOp   *plan.TxnOp
	txnName string
}

// Prepare builds, optimizes, and compiles stmt into a PreparedStatement.
// Each of the three phases mirrors §4.C/§4.D/§4.E exactly: planbuilder
// resolves names against the catalog, the analyzer lowers and annotates
// physical properties, and the compiler lowers the optimized tree into an
// Instruction tree the Scheduler can run.
func (e *Engine) Prepare(stmt ast.Statement) (*PreparedStatement, error) {
	builder := planbuilder.NewBuilder(e.Catalog, e.Modules, e.Functions)
	block, err := builder.Build(stmt)
	if err != nil {
		return nil, err
	}

	optCtx := sql.NewEmptyContext()
	optimized, err := analyzer.Optimize(optCtx, block)
	if err != nil {
		return nil, err
	}

	program, err := e.compiler.Compile(optimized)
	if err != nil {
		return nil, err
	}

	prepared := &PreparedStatement{engine: e, program: program, Params: block.Params}
	if txn, ok := stmt.(*ast.TxnStmt); ok {
		op := plan.TxnOp(txn.Kind)
		prepared.txnOp = &op
		prepared.txnName = txn.Name
	}
	return prepared, nil
}

// bindParams copies positional/named arguments onto ctx. ParameterReference
// stores a 1-based Index but subtracts 1 before indexing, so ctx.Params
// itself is 0-based and holds args verbatim.
func bindParams(ctx *sql.Context, args []interface{}, named map[string]interface{}) {
	if len(args) > 0 {
		ctx.Params = args
	}
	if len(named) > 0 {
		ctx.NamedParams = named
	}
}

// Run schedules the prepared statement's compiled program against ctx,
// binding args as positional parameters, returning the resulting row
// stream every compiled Instruction uniformly produces regardless of
// statement kind (a SELECT's rows, a DML statement's RETURNING/affected
// rows, or a DDL/TXN/PRAGMA leaf's single status row).
func (p *PreparedStatement) Run(ctx *sql.Context, args ...interface{}) (sql.RowIter, error) {
	bindParams(ctx, args, nil)
	result, err := (rowexec.Scheduler{}).Execute(ctx, p.program)
	if err != nil {
		return nil, err
	}
	iter, ok := result.(sql.RowIter)
	if !ok {
		return nil, sql.ErrInvariantViolation.New(fmt.Sprintf("compiled statement produced %T, not a RowIter", result))
	}
	return iter, nil
}

// Connection is a single logical database handle (§4.F, §4.G): it carries
// the runtime *sql.Context that threads vtab connection caching, pragma
// state, and row-context bindings across every statement the caller runs
// on it, plus the explicit-transaction flag BEGIN/COMMIT/ROLLBACK toggle.
type Connection struct {
	engine *Engine
	ctx    *sql.Context
	inTxn  bool
}

// NewConnection opens a Connection against engine, defaulting to
// autocommit (§6 "statements outside an explicit BEGIN...COMMIT commit
// individually").
func (e *Engine) NewConnection(ctx context.Context) *Connection {
	return &Connection{engine: e, ctx: sql.NewContext(ctx)}
}

// Context returns the connection's runtime *sql.Context, for callers that
// need to install a Tracer or inspect pragma state between statements.
func (c *Connection) Context() *sql.Context { return c.ctx }

// Exec prepares and runs stmt in one step, applying autocommit semantics
// afterward (§4.H "Commit"/"Rollback", §6 transaction statements).
func (c *Connection) Exec(stmt ast.Statement, args ...interface{}) (sql.RowIter, error) {
	prepared, err := c.engine.Prepare(stmt)
	if err != nil {
		return nil, err
	}
	return c.run(prepared, args...)
}

// Run executes an already-prepared statement against this connection,
// letting a caller reuse one PreparedStatement across many invocations
// (e.g. an INSERT executed once per row of a batch) without re-planning.
func (c *Connection) Run(prepared *PreparedStatement, args ...interface{}) (sql.RowIter, error) {
	return c.run(prepared, args...)
}

// run executes prepared and then applies the transaction-boundary side
// effects its statement kind calls for. An explicit COMMIT's own compiled
// Instruction (compileTxnStatement's TxnCommit path) already drives
// ctx.EachConn to commit and clear every touched connection the moment
// prepared.Run returns, so assertions for an explicit COMMIT must be
// checked *before* running the statement, while a rejected commit can
// still be turned into a rollback instead. Ordinary (autocommit)
// statements have no such built-in commit step, so their assertion check
// and commit both happen after Run, exactly mirroring compileTxnStatement.
func (c *Connection) run(prepared *PreparedStatement, args ...interface{}) (sql.RowIter, error) {
	op, name := txnOpOf(prepared)

	if op == plan.TxnCommit {
		if err := c.enforceAssertions(); err != nil {
			_ = c.rollbackAll()
			c.inTxn = false
			return nil, err
		}
	}

	iter, err := prepared.Run(c.ctx, args...)
	if err != nil {
		return nil, err
	}

	switch op {
	case plan.TxnBegin:
		c.inTxn = true
	case plan.TxnCommit, plan.TxnRollback:
		c.inTxn = false
	case plan.TxnSavepoint, plan.TxnRelease, plan.TxnRollbackTo:
		_ = name // savepoints don't change inTxn; BEGIN already set it
	default:
		if !c.inTxn && !c.anyConnExplicit() {
			if err := c.enforceAssertions(); err != nil {
				_ = c.rollbackAll()
				return nil, err
			}
			if err := c.commitAll(); err != nil {
				return nil, err
			}
		}
	}
	return iter, nil
}

// txnOpOf reports the statement's TxnOp and target name, captured at
// Prepare time directly off the ast.Statement, for every BEGIN, COMMIT,
// ROLLBACK, SAVEPOINT, RELEASE, or ROLLBACK TO; everything else reports
// no op.
func txnOpOf(p *PreparedStatement) (plan.TxnOp, string) {
	if p.txnOp == nil {
		return -1, ""
	}
	return *p.txnOp, p.txnName
}

// anyConnExplicit reports whether any vtab connection this Connection has
// touched has been upgraded out of autocommit by a SAVEPOINT issued
// without a preceding BEGIN reaching this layer (defensive consistency
// with memory.MemoryTableConnection.Explicit(), consulted the same way
// compileTxnStatement drives every connection uniformly via ctx.EachConn).
func (c *Connection) anyConnExplicit() bool {
	explicit := false
	c.ctx.EachConn(func(e sql.ConnEntry) {
		if x, ok := e.Conn.(interface{ Explicit() bool }); ok && x.Explicit() {
			explicit = true
		}
	})
	return explicit
}

// commitAll drives Commit across every vtab connection this Connection's
// context has touched, the same sequence compileTxnStatement's TxnCommit
// path runs, then clears the cache so the next statement opens fresh
// connections (§4.H "Commit").
func (c *Connection) commitAll() error {
	var firstErr error
	c.ctx.EachConn(func(e sql.ConnEntry) {
		if firstErr != nil {
			return
		}
		if conn, ok := e.Conn.(sql.VirtualTableConnection); ok {
			if err := conn.Commit(c.ctx); err != nil {
				firstErr = err
			}
		}
	})
	c.ctx.ClearConns()
	return firstErr
}

// rollbackAll is commitAll's mirror for the case an assertion fails after
// a statement's writes already landed in a pending overlay: the whole
// autocommit unit rolls back rather than leaving a partially-applied
// write that violated a registered invariant (§6 "CREATE ASSERTION").
func (c *Connection) rollbackAll() error {
	var firstErr error
	c.ctx.EachConn(func(e sql.ConnEntry) {
		if firstErr != nil {
			return
		}
		if conn, ok := e.Conn.(sql.VirtualTableConnection); ok {
			if err := conn.Rollback(c.ctx); err != nil {
				firstErr = err
			}
		}
	})
	c.ctx.ClearConns()
	return firstErr
}

// enforceAssertions evaluates every registered CREATE ASSERTION predicate
// before a commit is allowed to land, per DESIGN.md's decision to defer
// assertion checking to the engine layer: each predicate was already wired
// (its subqueries bound) at CREATE ASSERTION compile time, so evaluating
// it here is a plain expression.Expression.Eval against the connection's
// context. A predicate evaluating to NULL passes, matching ordinary CHECK
// constraint semantics; only an explicit false violates.
func (c *Connection) enforceAssertions() error {
	for name, raw := range c.engine.Catalog.AllAssertions() {
		pred, ok := raw.(expression.Expression)
		if !ok {
			return sql.ErrInvariantViolation.New("assertion " + name + " predicate is not an expression.Expression")
		}
		v, err := pred.Eval(c.ctx)
		if err != nil {
			return err
		}
		if v == nil {
			continue
		}
		ok2, err := cast.ToBoolE(v)
		if err != nil {
			return sql.ErrTypeMismatch.New(err.Error())
		}
		if !ok2 {
			return sql.ErrAssertionViolation.New(name)
		}
	}
	return nil
}
