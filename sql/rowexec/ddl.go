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
	"github.com/dolthub/quereus/sql/plan"
)

func statusRow(status string) sql.RowIter { return sql.NewSliceRowIter([]sql.Row{{status}}) }

func (c *Compiler) compileCreateTable(n *plan.CreateTable) (*Instruction, error) {
	schema := n.Schema
	module := n.Module
	ifNotExists := n.IfNotExists
	catalog := c.Catalog
	return leaf(n.String(), func(ctx *sql.Context, args []interface{}) (interface{}, error) {
		if _, _, _, ok := catalog.LookupTable(schema.Name); ok {
			if ifNotExists {
				return statusRow("ok"), nil
			}
			return nil, sql.ErrTableExists.New(schema.Name)
		}
		table, err := module.Create(ctx, "", schema)
		if err != nil {
			return nil, err
		}
		catalog.RegisterTable(schema, module, table)
		return statusRow("ok"), nil
	}), nil
}

func (c *Compiler) compileCreateIndex(n *plan.CreateIndex) (*Instruction, error) {
	table := n.Table
	schema := n.Schema
	index := n.Index
	catalog := c.Catalog
	return leaf(n.String(), func(ctx *sql.Context, args []interface{}) (interface{}, error) {
		_, module, _, ok := catalog.LookupTable(schema.Name)
		if !ok {
			return nil, sql.ErrUnknownTable.New(schema.Name)
		}
		if err := module.CreateIndex(ctx, table, index); err != nil {
			return nil, err
		}
		schema.Indexes = append(append([]sql.IndexDef{}, schema.Indexes...), index)
		catalog.RegisterTable(schema, module, table)
		return statusRow("ok"), nil
	}), nil
}

// compileCreateView registers Body (already a compiled plan.Node, never
// materialized) under Name, per §1's storage-agnostic view handling: a
// later FROM reference re-plans the body rather than reading persisted
// output.
func (c *Compiler) compileCreateView(n *plan.CreateView) (*Instruction, error) {
	name := n.Name
	body := n.Body
	catalog := c.Catalog
	return leaf(n.String(), func(ctx *sql.Context, args []interface{}) (interface{}, error) {
		catalog.RegisterView(name, body)
		return statusRow("ok"), nil
	}), nil
}

func (c *Compiler) compileDrop(n *plan.Drop) (*Instruction, error) {
	kind := n.Kind
	name := n.Name
	ifExists := n.IfExists
	catalog := c.Catalog
	return leaf(n.String(), func(ctx *sql.Context, args []interface{}) (interface{}, error) {
		switch kind {
		case plan.DropKindTable:
			schema, module, table, ok := catalog.LookupTable(name)
			if !ok {
				if ifExists {
					return statusRow("ok"), nil
				}
				return nil, sql.ErrUnknownTable.New(name)
			}
			if err := module.Destroy(ctx, "", table); err != nil {
				return nil, err
			}
			_ = schema
			catalog.DropTable(name)
		case plan.DropKindView:
			if !catalog.DropView(name) && !ifExists {
				return nil, sql.ErrUnknownTable.New(name)
			}
		}
		return statusRow("ok"), nil
	}), nil
}

// compileAddConstraint appends Constraint to the table's registered
// schema and re-registers it, since the catalog's table entry is the
// sole source of truth for a table's check constraints (there is no
// separate constraint store).
func (c *Compiler) compileAddConstraint(n *plan.AddConstraint) (*Instruction, error) {
	table := n.Table
	schema := n.Schema
	constraint := n.Constraint
	catalog := c.Catalog
	return leaf(n.String(), func(ctx *sql.Context, args []interface{}) (interface{}, error) {
		_, module, _, ok := catalog.LookupTable(schema.Name)
		if !ok {
			return nil, sql.ErrUnknownTable.New(schema.Name)
		}
		schema.Checks = append(append([]sql.CheckConstraint{}, schema.Checks...), constraint)
		catalog.RegisterTable(schema, module, table)
		return statusRow("ok"), nil
	}), nil
}

// compileCreateAssertion wires the predicate's subqueries (if any) at
// compile time, then stores the predicate itself for commit-time
// enforcement, which lives at the engine layer since it must run across
// every write in a transaction, not at CREATE ASSERTION time.
func (c *Compiler) compileCreateAssertion(n *plan.CreateAssertion) (*Instruction, error) {
	if err := c.wireExpr(n.Predicate); err != nil {
		return nil, err
	}
	name := n.Name
	predicate := n.Predicate
	catalog := c.Catalog
	return leaf(n.String(), func(ctx *sql.Context, args []interface{}) (interface{}, error) {
		catalog.RegisterAssertion(name, predicate)
		return statusRow("ok"), nil
	}), nil
}

func (c *Compiler) compileDropAssertion(n *plan.DropAssertion) (*Instruction, error) {
	name := n.Name
	ifExists := n.IfExists
	catalog := c.Catalog
	return leaf(n.String(), func(ctx *sql.Context, args []interface{}) (interface{}, error) {
		if !catalog.DropAssertion(name) && !ifExists {
			return nil, sql.ErrUnknownAssertion.New(name)
		}
		return statusRow("ok"), nil
	}), nil
}

// compileTxnStatement drives every vtab connection a transaction has
// touched (ctx.EachConn) through the matching VirtualTableConnection
// method. BEGIN is a no-op at this layer: the first write lazily opens
// each table's connection regardless (§4.H "Write protocol"), so there
// is nothing to eagerly start here.
func (c *Compiler) compileTxnStatement(n *plan.TxnStatement) (*Instruction, error) {
	op := n.Op
	name := n.Name
	return leaf(n.String(), func(ctx *sql.Context, args []interface{}) (interface{}, error) {
		if op == plan.TxnBegin {
			return statusRow("ok"), nil
		}
		var firstErr error
		ctx.EachConn(func(e sql.ConnEntry) {
			if firstErr != nil {
				return
			}
			conn, ok := e.Conn.(sql.VirtualTableConnection)
			if !ok {
				return
			}
			var err error
			switch op {
			case plan.TxnCommit:
				err = conn.Commit(ctx)
			case plan.TxnRollback:
				err = conn.Rollback(ctx)
			case plan.TxnSavepoint:
				err = conn.Savepoint(ctx, name)
			case plan.TxnRelease:
				err = conn.Release(ctx, name)
			case plan.TxnRollbackTo:
				err = conn.RollbackTo(ctx, name)
			}
			if err != nil {
				firstErr = err
			}
		})
		if firstErr != nil {
			return nil, firstErr
		}
		if op == plan.TxnCommit || op == plan.TxnRollback {
			ctx.ClearConns()
		}
		return statusRow("ok"), nil
	}), nil
}

func (c *Compiler) compilePragma(n *plan.Pragma) (*Instruction, error) {
	name := n.Name
	arg := n.Arg
	isSet := n.IsSet()
	value := n.Value
	return leaf(n.String(), func(ctx *sql.Context, args []interface{}) (interface{}, error) {
		if isSet {
			if err := ctx.Pragmas.Set(ctx, name, arg, value); err != nil {
				return nil, err
			}
			return statusRow("ok"), nil
		}
		rows, err := ctx.Pragmas.Get(ctx, name, arg)
		if err != nil {
			return nil, err
		}
		return sql.NewSliceRowIter(rows), nil
	}), nil
}

func (c *Compiler) compileAnalyze(n *plan.Analyze) (*Instruction, error) {
	tables := n.Tables
	catalog := c.Catalog
	return leaf(n.String(), func(ctx *sql.Context, args []interface{}) (interface{}, error) {
		names := tables
		if len(names) == 0 {
			for name := range catalog.AllTables() {
				names = append(names, name)
			}
		}
		for _, name := range names {
			schema, _, table, ok := catalog.LookupTable(name)
			if !ok {
				return nil, sql.ErrUnknownTable.New(name)
			}
			stats, err := sql.Analyze(ctx, schema, table)
			if err != nil {
				return nil, err
			}
			catalog.Stats().Set(name, stats)
		}
		return statusRow("ok"), nil
	}), nil
}

// compileExplain renders Target's Instruction tree instead of running
// it, unless Analyze requests EXPLAIN ANALYZE, in which case Target is
// actually executed and the row count folded into the rendering.
func (c *Compiler) compileExplain(n *plan.Explain) (*Instruction, error) {
	target, err := c.Compile(n.Target)
	if err != nil {
		return nil, err
	}
	analyze := n.Analyze
	return leaf(n.String(), func(ctx *sql.Context, args []interface{}) (interface{}, error) {
		text := explainTree(target, 0)
		if analyze {
			res, err := (Scheduler{}).Execute(ctx, target)
			if err != nil {
				return nil, err
			}
			n, err := drainCount(ctx, res.(sql.RowIter))
			if err != nil {
				return nil, err
			}
			text += fmt.Sprintf("\n(actual rows: %d)", n)
		}
		return sql.NewSliceRowIter([]sql.Row{{text}}), nil
	}), nil
}

func explainTree(ins *Instruction, depth int) string {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	out := indent + ins.Note + "\n"
	for _, p := range ins.Params {
		out += explainTree(p, depth+1)
	}
	for _, p := range ins.Programs {
		out += explainTree(p, depth+1)
	}
	return out
}

func (c *Compiler) compileDeclareSchema(n *plan.DeclareSchema) (*Instruction, error) {
	schema := n.Schema
	catalog := c.Catalog
	return leaf(n.String(), func(ctx *sql.Context, args []interface{}) (interface{}, error) {
		catalog.DeclareSchema(schema)
		return statusRow("ok"), nil
	}), nil
}

func (c *Compiler) computeSchemaDiff(catalog *sql.Catalog, schemaName string) (sql.SchemaDiff, error) {
	declared, ok := catalog.LookupDeclaredSchema(schemaName)
	if !ok {
		return sql.SchemaDiff{}, sql.ErrUnknownSchema.New(schemaName)
	}
	return sql.DiffSchemas(catalog.AllTables(), declared.Tables), nil
}

func (c *Compiler) compileDiffSchema(n *plan.DiffSchema) (*Instruction, error) {
	schemaName := n.SchemaName
	catalog := c.Catalog
	return leaf(n.String(), func(ctx *sql.Context, args []interface{}) (interface{}, error) {
		diff, err := c.computeSchemaDiff(catalog, schemaName)
		if err != nil {
			return nil, err
		}
		rows := make([]sql.Row, len(diff.Changes))
		for i, ch := range diff.Changes {
			rows[i] = sql.Row{string(ch.Kind), ch.Table, ch.Detail}
		}
		return sql.NewSliceRowIter(rows), nil
	}), nil
}

// compileApplySchema replays a declared schema's diff against the live
// catalog: creates tables the declared schema adds (resolving the
// module by the declared table's own ModuleName via the compiler's
// module registry) and drops tables the declared schema no longer
// names. Alters are reported by DIFF SCHEMA but not mechanically
// replayed here, since a column-level ALTER has no single vtab
// operation this core's Module/Table contract defines (see DESIGN.md).
func (c *Compiler) compileApplySchema(n *plan.ApplySchema) (*Instruction, error) {
	schemaName := n.SchemaName
	catalog := c.Catalog
	modules := c.Modules
	return leaf(n.String(), func(ctx *sql.Context, args []interface{}) (interface{}, error) {
		declared, ok := catalog.LookupDeclaredSchema(schemaName)
		if !ok {
			return nil, sql.ErrUnknownSchema.New(schemaName)
		}
		diff, err := c.computeSchemaDiff(catalog, schemaName)
		if err != nil {
			return nil, err
		}
		declaredByName := make(map[string]sql.TableSchema, len(declared.Tables))
		for _, t := range declared.Tables {
			declaredByName[t.Name] = t
		}
		for _, ch := range diff.Changes {
			switch ch.Kind {
			case sql.SchemaChangeCreateTable:
				schema := declaredByName[ch.Table]
				if modules == nil {
					return nil, sql.ErrInvariantViolation.New("APPLY SCHEMA requires a module registry")
				}
				module, ok := modules.Lookup(schema.ModuleName)
				if !ok {
					return nil, sql.ErrUnknownModule.New(schema.ModuleName)
				}
				table, err := module.Create(ctx, "", schema)
				if err != nil {
					return nil, err
				}
				catalog.RegisterTable(schema, module, table)
			case sql.SchemaChangeDropTable:
				_, module, table, ok := catalog.LookupTable(ch.Table)
				if !ok {
					continue
				}
				if err := module.Destroy(ctx, "", table); err != nil {
					return nil, err
				}
				catalog.DropTable(ch.Table)
			}
		}
		return statusRow("ok"), nil
	}), nil
}

func (c *Compiler) compileExplainSchema(n *plan.ExplainSchema) (*Instruction, error) {
	schemaName := n.SchemaName
	catalog := c.Catalog
	return leaf(n.String(), func(ctx *sql.Context, args []interface{}) (interface{}, error) {
		diff, err := c.computeSchemaDiff(catalog, schemaName)
		if err != nil {
			return nil, err
		}
		text, err := diff.ToYAML()
		if err != nil {
			return nil, err
		}
		return sql.NewSliceRowIter([]sql.Row{{text}}), nil
	}), nil
}
