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

package planbuilder

import (
	"fmt"

	"github.com/dolthub/quereus/quereuserr"
	"github.com/dolthub/quereus/sql"
	"github.com/dolthub/quereus/sql/expression"
	"github.com/dolthub/quereus/sql/plan"
	"github.com/dolthub/quereus/sql/planbuilder/ast"
)

// Builder translates one ast.Statement tree into a logical plan.Node,
// resolving names against the catalog as it goes (§4.C). A Builder is
// single-use: build one statement, discard it.
type Builder struct {
	catalog *sql.Catalog
	modules *sql.ModuleRegistry
	funcs   *expression.FunctionRegistry
	params  *paramCollector
}

// NewBuilder returns a Builder that resolves tables against catalog,
// modules against modules, and functions against funcs.
func NewBuilder(catalog *sql.Catalog, modules *sql.ModuleRegistry, funcs *expression.FunctionRegistry) *Builder {
	return &Builder{catalog: catalog, modules: modules, funcs: funcs, params: newParamCollector()}
}

// Build translates stmt into a logical plan rooted at a Block, carrying
// the parameter shape the statement declared (§4.B).
func (b *Builder) Build(stmt ast.Statement) (*plan.Block, error) {
	scope := NewScope(nil)
	node, err := b.buildStatement(scope, stmt)
	if err != nil {
		return nil, err
	}
	return plan.NewBlock(plan.NewSink(node), b.paramInfos()), nil
}

func (b *Builder) paramInfos() []plan.ParamInfo {
	out := make([]plan.ParamInfo, 0, len(b.params.order))
	for _, ref := range b.params.order {
		if ref.name != "" {
			out = append(out, plan.ParamInfo{Name: ref.name, Type: b.params.named[ref.name]})
		} else {
			out = append(out, plan.ParamInfo{Index: ref.index, Type: b.params.positional[ref.index]})
		}
	}
	return out
}

func (b *Builder) buildStatement(scope *Scope, stmt ast.Statement) (plan.Node, error) {
	switch s := stmt.(type) {
	case *ast.SelectStmt:
		return b.buildSelect(scope, s)
	case *ast.InsertStmt:
		return b.buildInsert(scope, s)
	case *ast.UpdateStmt:
		return b.buildUpdate(scope, s)
	case *ast.DeleteStmt:
		return b.buildDelete(scope, s)
	case *ast.CreateTableStmt:
		return b.buildCreateTable(s)
	case *ast.CreateIndexStmt:
		return b.buildCreateIndex(s)
	case *ast.CreateViewStmt:
		return b.buildCreateView(scope, s)
	case *ast.DropStmt:
		return b.buildDrop(s)
	case *ast.AddConstraintStmt:
		return b.buildAddConstraint(s)
	case *ast.CreateAssertionStmt:
		return b.buildCreateAssertion(scope, s)
	case *ast.DropAssertionStmt:
		return plan.NewDropAssertion(s.Name, s.IfExists), nil
	case *ast.TxnStmt:
		return b.buildTxn(s), nil
	case *ast.PragmaStmt:
		return b.buildPragma(scope, s)
	case *ast.AnalyzeStmt:
		return plan.NewAnalyze(s.Tables), nil
	case *ast.ExplainStmt:
		return b.buildExplain(scope, s)
	case *ast.DeclareSchemaStmt:
		return b.buildDeclareSchema(s)
	case *ast.DiffSchemaStmt:
		return plan.NewDiffSchema(s.Name), nil
	case *ast.ApplySchemaStmt:
		return plan.NewApplySchema(s.Name, s.WithSeed), nil
	case *ast.ExplainSchemaStmt:
		return plan.NewExplainSchema(s.Name), nil
	default:
		return nil, quereuserr.ErrUnsupported.New(fmt.Sprintf("statement type %T", stmt))
	}
}

// ---- SELECT ----

func (b *Builder) buildSelect(scope *Scope, s *ast.SelectStmt) (plan.Node, error) {
	inner := NewScope(scope)

	node, err := b.buildCTEsAndBody(inner, s)
	if err != nil {
		return nil, err
	}

	if s.SetOp != ast.SetNone {
		right, err := b.buildSelect(scope, s.Compound)
		if err != nil {
			return nil, err
		}
		node = plan.NewSetOperation(astSetOpKind(s.SetOp), node, right)
	}

	return node, nil
}

// buildCTEsAndBody builds every CTE this SELECT declares, then the
// SELECT's own body, then wraps the body with CTE/RecursiveCTE nodes
// from innermost to outermost (§4.B: each CTE node carries the
// continuation (`In`) it feeds as a constructor argument, so the wrapping
// can only happen once that continuation is fully built).
func (b *Builder) buildCTEsAndBody(scope *Scope, s *ast.SelectStmt) (plan.Node, error) {
	if len(s.CTEs) == 0 {
		return b.buildSelectBody(scope, s)
	}

	type pending struct {
		name       string
		recursive  bool
		unionAll   bool
		base, rec  plan.Node
		body       plan.Node // non-recursive CTE body
	}

	var chain []pending
	for _, cte := range s.CTEs {
		if cte.Recursive {
			base, rec, unionAll, attrs, err := b.planRecursiveCTE(scope, cte)
			if err != nil {
				return nil, err
			}
			scope.BindCTE(cte.Name, attrs)
			scope.PushRelation(cte.Name, attrs)
			chain = append(chain, pending{name: cte.Name, recursive: true, unionAll: unionAll, base: base, rec: rec})
			continue
		}
		body, err := b.buildSelect(scope, cte.Select)
		if err != nil {
			return nil, err
		}
		attrs := renameAttrs(body.RelType().Attributes, cte.Columns)
		scope.BindCTE(cte.Name, attrs)
		scope.PushRelation(cte.Name, attrs)
		chain = append(chain, pending{name: cte.Name, body: body})
	}

	out, err := b.buildSelectBody(scope, s)
	if err != nil {
		return nil, err
	}

	for i := len(chain) - 1; i >= 0; i-- {
		p := chain[i]
		if p.recursive {
			out = plan.NewRecursiveCTE(p.name, p.base, p.rec, out, p.unionAll, 0)
		} else {
			out = plan.NewCTE(p.name, p.body, out)
		}
	}
	return out, nil
}

// planRecursiveCTE splits the CTE body's top-level UNION [ALL] into the
// seed (non-recursive) term and the recursive term referencing the CTE's
// own working table (§4.D's seminaive evaluation), returning the pieces
// NewRecursiveCTE needs plus the CTE's bound output shape.
func (b *Builder) planRecursiveCTE(scope *Scope, cte ast.CTEDef) (base, rec plan.Node, unionAll bool, attrs []sql.Attribute, err error) {
	sel := cte.Select
	if sel.SetOp == ast.SetNone {
		return nil, nil, false, nil, quereuserr.ErrUnsupported.New("RECURSIVE CTE requires a UNION")
	}
	baseStmt := &ast.SelectStmt{Distinct: sel.Distinct, Columns: sel.Columns, From: sel.From, Where: sel.Where, GroupBy: sel.GroupBy, Having: sel.Having}
	base, err = b.buildSelect(scope, baseStmt)
	if err != nil {
		return nil, nil, false, nil, err
	}
	attrs = renameAttrs(base.RelType().Attributes, cte.Columns)

	recScope := NewScope(scope)
	recScope.PushRelation(cte.Name, attrs)
	recScope.BindCTE(cte.Name, attrs)
	rec, err = b.buildSelect(recScope, sel.Compound)
	if err != nil {
		return nil, nil, false, nil, err
	}
	return base, rec, sel.SetOp == ast.SetUnionAll, attrs, nil
}

func (b *Builder) buildSelectBody(scope *Scope, s *ast.SelectStmt) (plan.Node, error) {
	var node plan.Node
	var err error
	if s.From != nil {
		node, err = b.buildTableExpr(scope, s.From)
		if err != nil {
			return nil, err
		}
	} else {
		node = plan.NewValues([][]expression.Expression{{}}, sql.TableSchema{Name: "(dual)"})
	}

	if s.Where != nil {
		pred, err := b.buildExpr(scope, s.Where)
		if err != nil {
			return nil, err
		}
		node = plan.NewFilter(pred, node)
	}

	node, err = b.buildProjectAndGroup(scope, s, node)
	if err != nil {
		return nil, err
	}

	if len(s.OrderBy) > 0 {
		keys := make([]plan.SortKey, 0, len(s.OrderBy))
		for _, ot := range s.OrderBy {
			e, err := b.buildExpr(scope, ot.Expr)
			if err != nil {
				return nil, err
			}
			keys = append(keys, plan.SortKey{Expr: e, Desc: ot.Desc})
		}
		node = plan.NewSort(keys, node)
	}

	if s.Distinct {
		node = plan.NewDistinct(node)
	}

	if s.Limit != nil || s.Offset != nil {
		var limit, offset expression.Expression
		if s.Limit != nil {
			limit, err = b.buildExpr(scope, s.Limit)
			if err != nil {
				return nil, err
			}
		}
		if s.Offset != nil {
			offset, err = b.buildExpr(scope, s.Offset)
			if err != nil {
				return nil, err
			}
		}
		node = plan.NewLimitOffset(limit, offset, node)
	}

	return node, nil
}

func astSetOpKind(k ast.SetOpKind) plan.SetOpKind {
	switch k {
	case ast.SetUnion:
		return plan.SetUnion
	case ast.SetUnionAll:
		return plan.SetUnionAll
	case ast.SetIntersect:
		return plan.SetIntersect
	case ast.SetExcept:
		return plan.SetExcept
	case ast.SetDiff:
		return plan.SetDiff
	default:
		return plan.SetUnionAll
	}
}

func renameAttrs(attrs []sql.Attribute, names []string) []sql.Attribute {
	if len(names) == 0 {
		return attrs
	}
	out := make([]sql.Attribute, len(attrs))
	copy(out, attrs)
	for i := 0; i < len(names) && i < len(out); i++ {
		out[i].Name = names[i]
	}
	return out
}

// buildProjectAndGroup handles the SELECT list, installing an Aggregate
// when GROUP BY or an aggregate function call is present, or a Window
// node when a window function call is present (the two are mutually
// exclusive in one SELECT list; a statement mixing them is unsupported).
func (b *Builder) buildProjectAndGroup(scope *Scope, s *ast.SelectStmt, input plan.Node) (plan.Node, error) {
	hasAgg := len(s.GroupBy) > 0 || s.Having != nil
	hasWindow := false
	if !hasAgg {
		for _, rc := range s.Columns {
			if containsAggregate(rc.Expr, b.funcs) {
				hasAgg = true
			}
			if containsWindowCall(rc.Expr) {
				hasWindow = true
			}
		}
	}

	if hasAgg {
		return b.buildAggregate(scope, s, input)
	}
	if hasWindow {
		return b.buildWindow(scope, s, input)
	}

	projs, names, err := b.buildResultColumns(scope, s.Columns)
	if err != nil {
		return nil, err
	}
	return plan.NewProject(projs, names, input), nil
}

func containsAggregate(e ast.Expr, funcs *expression.FunctionRegistry) bool {
	fc, ok := e.(*ast.FuncCall)
	if ok && funcs.IsAggregate(fc.Name) {
		return true
	}
	found := false
	walkExpr(e, func(c ast.Expr) {
		if f, ok := c.(*ast.FuncCall); ok && funcs.IsAggregate(f.Name) {
			found = true
		}
	})
	return found
}

func containsWindowCall(e ast.Expr) bool {
	if _, ok := e.(*ast.WindowCall); ok {
		return true
	}
	found := false
	walkExpr(e, func(c ast.Expr) {
		if _, ok := c.(*ast.WindowCall); ok {
			found = true
		}
	})
	return found
}

// walkExpr visits every descendant of e (not e itself).
func walkExpr(e ast.Expr, visit func(ast.Expr)) {
	switch x := e.(type) {
	case *ast.BinaryExpr:
		visit(x.Left)
		walkExpr(x.Left, visit)
		visit(x.Right)
		walkExpr(x.Right, visit)
	case *ast.UnaryExpr:
		visit(x.Child)
		walkExpr(x.Child, visit)
	case *ast.CastExpr:
		visit(x.Child)
		walkExpr(x.Child, visit)
	case *ast.FuncCall:
		for _, a := range x.Args {
			visit(a)
			walkExpr(a, visit)
		}
	case *ast.CaseExpr:
		if x.Value != nil {
			visit(x.Value)
		}
		for _, w := range x.Whens {
			visit(w.When)
			visit(w.Then)
		}
		if x.Else != nil {
			visit(x.Else)
		}
	}
}

func (b *Builder) buildAggregate(scope *Scope, s *ast.SelectStmt, input plan.Node) (plan.Node, error) {
	groupBy := make([]expression.Expression, 0, len(s.GroupBy))
	for _, g := range s.GroupBy {
		e, err := b.buildExpr(scope, g)
		if err != nil {
			return nil, err
		}
		groupBy = append(groupBy, e)
	}

	var aggs []plan.AggregateExpr
	projExprs := make([]expression.Expression, 0, len(s.Columns))
	names := make([]string, 0, len(s.Columns))
	for _, rc := range s.Columns {
		fc, isAgg := rc.Expr.(*ast.FuncCall)
		if isAgg && b.funcs.IsAggregate(fc.Name) {
			call, err := b.buildAggregateCall(scope, fc)
			if err != nil {
				return nil, err
			}
			attr := sql.Attribute{Id: sql.NewAttrId(), Name: resultColumnName(rc, fc.Name), Type: call.Type()}
			aggs = append(aggs, plan.AggregateExpr{Expr: call, Attr: attr})
			projExprs = append(projExprs, nil) // placeholder, replaced below
			names = append(names, attr.Name)
			continue
		}
		e, err := b.buildExpr(scope, rc.Expr)
		if err != nil {
			return nil, err
		}
		projExprs = append(projExprs, e)
		names = append(names, resultColumnName(rc, ""))
	}

	aggNode := plan.NewAggregate(groupBy, aggs, input)

	// Reconnect projection references to the aggregate's published attrs:
	// group keys first (in order), then aggregate results.
	outAttrs := aggNode.RelType().Attributes
	aggIdx := len(groupBy)
	finalProjs := make([]expression.Expression, 0, len(projExprs))
	for _, e := range projExprs {
		if e == nil {
			attr := outAttrs[aggIdx]
			finalProjs = append(finalProjs, expression.NewColumnReference(attr.Id, attr.Name, attr.Type))
			aggIdx++
			continue
		}
		finalProjs = append(finalProjs, e)
	}

	var result plan.Node = aggNode
	if s.Having != nil {
		pred, err := b.buildExpr(scope, s.Having)
		if err != nil {
			return nil, err
		}
		result = plan.NewFilter(pred, result)
	}
	return plan.NewProject(finalProjs, names, result), nil
}

func (b *Builder) buildAggregateCall(scope *Scope, fc *ast.FuncCall) (*expression.AggregateFunctionCall, error) {
	args := make([]expression.Expression, 0, len(fc.Args))
	for _, a := range fc.Args {
		e, err := b.buildExpr(scope, a)
		if err != nil {
			return nil, err
		}
		args = append(args, e)
	}
	impl, ok := b.funcs.ResolveAggregate(fc.Name, len(args))
	if !ok {
		return nil, quereuserr.ErrUnknownFunction.New(fc.Name, len(args))
	}
	return expression.NewAggregateFunctionCall(impl, args, fc.Distinct), nil
}

// buildWindow installs a Window node for a SELECT list containing exactly
// one window function call (§1/§5 "ROW_NUMBER only"); the window's
// PARTITION BY/ORDER BY come from the call itself, so only one distinct
// window spec per SELECT is supported.
func (b *Builder) buildWindow(scope *Scope, s *ast.SelectStmt, input plan.Node) (plan.Node, error) {
	var wc *ast.WindowCall
	for _, rc := range s.Columns {
		if w, ok := rc.Expr.(*ast.WindowCall); ok {
			wc = w
			break
		}
	}
	if wc == nil {
		return nil, quereuserr.ErrUnsupported.New("window function expected in SELECT list")
	}
	kind, err := windowFuncKind(wc.Func.Name)
	if err != nil {
		return nil, err
	}

	partitionBy := make([]expression.Expression, 0, len(wc.PartitionBy))
	for _, p := range wc.PartitionBy {
		e, err := b.buildExpr(scope, p)
		if err != nil {
			return nil, err
		}
		partitionBy = append(partitionBy, e)
	}
	orderBy := make([]plan.SortKey, 0, len(wc.OrderBy))
	for _, ot := range wc.OrderBy {
		e, err := b.buildExpr(scope, ot.Expr)
		if err != nil {
			return nil, err
		}
		orderBy = append(orderBy, plan.SortKey{Expr: e, Desc: ot.Desc})
	}
	winAttr := sql.Attribute{Id: sql.NewAttrId(), Name: wc.Func.Name, Type: sql.NullableInt}
	winNode := plan.NewWindow(partitionBy, orderBy, []plan.WindowExpr{{Kind: kind, Attr: winAttr}}, input)

	projs := make([]expression.Expression, 0, len(s.Columns))
	names := make([]string, 0, len(s.Columns))
	for _, rc := range s.Columns {
		if _, ok := rc.Expr.(*ast.WindowCall); ok {
			projs = append(projs, expression.NewColumnReference(winAttr.Id, winAttr.Name, winAttr.Type))
			names = append(names, resultColumnName(rc, wc.Func.Name))
			continue
		}
		e, err := b.buildExpr(scope, rc.Expr)
		if err != nil {
			return nil, err
		}
		projs = append(projs, e)
		names = append(names, resultColumnName(rc, ""))
	}
	return plan.NewProject(projs, names, winNode), nil
}

func windowFuncKind(name string) (plan.WindowFuncKind, error) {
	switch name {
	case "ROW_NUMBER", "row_number":
		return plan.WindowRowNumber, nil
	default:
		return 0, quereuserr.ErrUnsupported.New("window function " + name)
	}
}

func resultColumnName(rc ast.ResultColumn, fallback string) string {
	if rc.Alias != "" {
		return rc.Alias
	}
	if cn, ok := rc.Expr.(*ast.ColumnName); ok {
		return cn.Column
	}
	return fallback
}

func (b *Builder) buildResultColumns(scope *Scope, cols []ast.ResultColumn) ([]expression.Expression, []string, error) {
	var out []expression.Expression
	var names []string
	for _, rc := range cols {
		if rc.Star {
			var attrs []sql.Attribute
			if rc.Table != "" {
				a, ok := scope.AttributesFor(rc.Table)
				if !ok {
					return nil, nil, quereuserr.ErrUnknownTable.New(rc.Table)
				}
				attrs = a
			} else {
				attrs = scope.AllAttributes()
			}
			for _, a := range attrs {
				out = append(out, expression.NewColumnReference(a.Id, a.Name, a.Type))
				names = append(names, a.Name)
			}
			continue
		}
		e, err := b.buildExpr(scope, rc.Expr)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, e)
		names = append(names, resultColumnName(rc, ""))
	}
	return out, names, nil
}

// ---- FROM clause ----

func (b *Builder) buildTableExpr(scope *Scope, te ast.TableExpr) (plan.Node, error) {
	switch t := te.(type) {
	case *ast.TableName:
		return b.buildTableName(scope, t)
	case *ast.JoinExpr:
		return b.buildJoin(scope, t)
	case *ast.SubqueryTableExpr:
		return b.buildSubqueryTable(scope, t)
	default:
		return nil, quereuserr.ErrUnsupported.New(fmt.Sprintf("table expr %T", te))
	}
}

func (b *Builder) buildTableName(scope *Scope, t *ast.TableName) (plan.Node, error) {
	alias := t.Alias
	if alias == "" {
		alias = t.Name
	}

	if attrs, ok := scope.LookupCTE(t.Name); ok {
		scope.PushRelation(alias, attrs)
		return plan.NewCTERef(t.Name, sql.RelationType{Attributes: attrs}), nil
	}

	if body, ok := b.catalog.LookupView(t.Name); ok {
		view, ok := body.(plan.Node)
		if !ok {
			return nil, quereuserr.ErrInvariantViolation.New("view " + t.Name + " body is not a plan.Node")
		}
		scope.PushRelation(alias, view.RelType().Attributes)
		return view, nil
	}

	schema, module, table, ok := b.catalog.LookupTable(t.Name)
	if !ok {
		return nil, quereuserr.ErrUnknownTable.New(t.Name)
	}
	ref := plan.NewTableReference(schema, module, table)
	scope.PushRelation(alias, ref.RelType().Attributes)
	return plan.NewRetrieve(ref), nil
}

func (b *Builder) buildJoin(scope *Scope, j *ast.JoinExpr) (plan.Node, error) {
	left, err := b.buildTableExpr(scope, j.Left)
	if err != nil {
		return nil, err
	}
	right, err := b.buildTableExpr(scope, j.Right)
	if err != nil {
		return nil, err
	}
	var cond expression.Expression
	if j.On != nil {
		cond, err = b.buildExpr(scope, j.On)
		if err != nil {
			return nil, err
		}
	}
	return plan.NewJoin(astJoinKind(j.Kind), cond, left, right), nil
}

func astJoinKind(k ast.JoinKind) plan.JoinKind {
	switch k {
	case ast.JoinLeft:
		return plan.JoinLeft
	case ast.JoinRight:
		return plan.JoinRight
	case ast.JoinFull:
		return plan.JoinFull
	case ast.JoinCross:
		return plan.JoinCross
	default:
		return plan.JoinInner
	}
}

func (b *Builder) buildSubqueryTable(scope *Scope, st *ast.SubqueryTableExpr) (plan.Node, error) {
	inner := NewScope(scope)
	body, err := b.buildSelect(inner, st.Select)
	if err != nil {
		return nil, err
	}
	alias := st.Alias
	attrs := body.RelType().Attributes
	scope.PushRelation(alias, attrs)
	return body, nil
}

// ---- Scalar expressions ----

func (b *Builder) buildExpr(scope *Scope, e ast.Expr) (expression.Expression, error) {
	switch x := e.(type) {
	case *ast.Literal:
		return expression.NewLiteral(x.Value, literalType(x)), nil
	case *ast.ColumnName:
		id, typ, err := scope.ResolveColumn(x.Table, x.Column)
		if err != nil {
			return nil, err
		}
		return expression.NewColumnReference(id, x.Column, typ), nil
	case *ast.Param:
		t := sql.NullableText
		b.params.record(x.Index, x.Name, t)
		return expression.NewParameterReference(x.Index, x.Name, t), nil
	case *ast.BinaryExpr:
		return b.buildBinary(scope, x)
	case *ast.UnaryExpr:
		return b.buildUnary(scope, x)
	case *ast.CastExpr:
		child, err := b.buildExpr(scope, x.Child)
		if err != nil {
			return nil, err
		}
		return expression.NewCast(child, affinityFromName(x.TypeName)), nil
	case *ast.CollateExpr:
		child, err := b.buildExpr(scope, x.Child)
		if err != nil {
			return nil, err
		}
		return expression.NewCollate(child, collationFromName(x.Name)), nil
	case *ast.BetweenExpr:
		return b.buildBetween(scope, x)
	case *ast.CaseExpr:
		return b.buildCase(scope, x)
	case *ast.InExpr:
		return b.buildIn(scope, x)
	case *ast.FuncCall:
		return b.buildFuncCall(scope, x)
	case *ast.Subquery:
		return b.buildScalarSubquery(scope, x)
	default:
		return nil, quereuserr.ErrUnsupported.New(fmt.Sprintf("expr %T", e))
	}
}

func literalType(l *ast.Literal) sql.Type {
	switch l.Kind {
	case ast.LitInteger, ast.LitBool:
		return sql.NullableInt
	case ast.LitFloat:
		return sql.NullableReal
	case ast.LitString:
		return sql.NullableText
	case ast.LitBlob:
		return sql.NullableBlob
	default:
		return sql.NullType
	}
}

func affinityFromName(name string) sql.Type {
	switch name {
	case "INTEGER", "INT":
		return sql.NullableInt
	case "REAL", "FLOAT", "DOUBLE":
		return sql.NullableReal
	case "TEXT", "VARCHAR", "CHAR":
		return sql.NullableText
	case "BLOB":
		return sql.NullableBlob
	default:
		return sql.Type{Affinity: sql.Numeric, Nullable: true}
	}
}

func collationFromName(name string) sql.Collation {
	if name == "NOCASE" {
		return sql.CollationNoCase
	}
	return sql.CollationBinary
}

// binaryResultType computes a BinaryOp's static type from its operator
// and operand types: arithmetic widens to the operands' numeric
// affinity, comparisons and boolean connectives produce a nullable
// boolean-shaped INTEGER (§4.A three-valued logic), and concatenation
// produces nullable TEXT. Nullability always propagates from either
// operand.
func binaryResultType(op expression.BinaryOpKind, l, r sql.Type) sql.Type {
	nullable := l.Nullable || r.Nullable
	switch op {
	case expression.OpAdd, expression.OpSub, expression.OpMul, expression.OpDiv, expression.OpMod:
		aff := sql.Numeric
		switch {
		case l.Affinity == sql.Real || r.Affinity == sql.Real:
			aff = sql.Real
		case l.Affinity == sql.Integer && r.Affinity == sql.Integer:
			aff = sql.Integer
		}
		return sql.Type{Affinity: aff, Nullable: nullable}
	case expression.OpConcat:
		return sql.Type{Affinity: sql.Text, Nullable: nullable, Collation: sql.CollationBinary}
	default:
		return sql.Type{Affinity: sql.Integer, Nullable: nullable}
	}
}

func (b *Builder) buildBinary(scope *Scope, x *ast.BinaryExpr) (expression.Expression, error) {
	left, err := b.buildExpr(scope, x.Left)
	if err != nil {
		return nil, err
	}
	right, err := b.buildExpr(scope, x.Right)
	if err != nil {
		return nil, err
	}
	op, err := binaryOpFromSymbol(x.Op)
	if err != nil {
		return nil, err
	}
	return expression.NewBinaryOp(op, left, right, binaryResultType(op, left.Type(), right.Type())), nil
}

func binaryOpFromSymbol(sym string) (expression.BinaryOpKind, error) {
	switch sym {
	case "+":
		return expression.OpAdd, nil
	case "-":
		return expression.OpSub, nil
	case "*":
		return expression.OpMul, nil
	case "/":
		return expression.OpDiv, nil
	case "%":
		return expression.OpMod, nil
	case "=", "==":
		return expression.OpEQ, nil
	case "!=", "<>":
		return expression.OpNE, nil
	case ">":
		return expression.OpGT, nil
	case ">=":
		return expression.OpGE, nil
	case "<":
		return expression.OpLT, nil
	case "<=":
		return expression.OpLE, nil
	case "AND":
		return expression.OpAnd, nil
	case "OR":
		return expression.OpOr, nil
	case "||":
		return expression.OpConcat, nil
	default:
		return 0, quereuserr.ErrUnsupported.New("operator " + sym)
	}
}

func (b *Builder) buildUnary(scope *Scope, x *ast.UnaryExpr) (expression.Expression, error) {
	child, err := b.buildExpr(scope, x.Child)
	if err != nil {
		return nil, err
	}
	switch x.Op {
	case "-":
		return expression.NewUnaryOp(expression.OpNeg, child, child.Type()), nil
	case "NOT":
		return expression.NewUnaryOp(expression.OpNot, child, sql.Type{Affinity: sql.Integer, Nullable: child.Type().Nullable}), nil
	case "ISNULL":
		return expression.NewUnaryOp(expression.OpIsNull, child, sql.IntegerType), nil
	case "ISNOTNULL":
		return expression.NewUnaryOp(expression.OpIsNotNull, child, sql.IntegerType), nil
	default:
		return nil, quereuserr.ErrUnsupported.New("unary operator " + x.Op)
	}
}

func (b *Builder) buildBetween(scope *Scope, x *ast.BetweenExpr) (expression.Expression, error) {
	value, err := b.buildExpr(scope, x.Value)
	if err != nil {
		return nil, err
	}
	lower, err := b.buildExpr(scope, x.Lower)
	if err != nil {
		return nil, err
	}
	upper, err := b.buildExpr(scope, x.Upper)
	if err != nil {
		return nil, err
	}
	between := expression.NewBetween(value, lower, upper)
	if x.Negate {
		return expression.NewUnaryOp(expression.OpNot, between, sql.NullableInt), nil
	}
	return between, nil
}

func (b *Builder) buildCase(scope *Scope, x *ast.CaseExpr) (expression.Expression, error) {
	var value expression.Expression
	var err error
	if x.Value != nil {
		value, err = b.buildExpr(scope, x.Value)
		if err != nil {
			return nil, err
		}
	}
	branches := make([]expression.CaseBranch, 0, len(x.Whens))
	for _, w := range x.Whens {
		when, err := b.buildExpr(scope, w.When)
		if err != nil {
			return nil, err
		}
		then, err := b.buildExpr(scope, w.Then)
		if err != nil {
			return nil, err
		}
		branches = append(branches, expression.CaseBranch{When: when, Then: then})
	}
	var elseExpr expression.Expression
	if x.Else != nil {
		elseExpr, err = b.buildExpr(scope, x.Else)
		if err != nil {
			return nil, err
		}
	}

	typ := sql.NullableText
	if len(branches) > 0 {
		typ = branches[0].Then.Type()
	} else if elseExpr != nil {
		typ = elseExpr.Type()
	}
	if elseExpr == nil {
		typ.Nullable = true
	}
	return expression.NewCase(value, branches, elseExpr, typ), nil
}

func (b *Builder) buildIn(scope *Scope, x *ast.InExpr) (expression.Expression, error) {
	value, err := b.buildExpr(scope, x.Value)
	if err != nil {
		return nil, err
	}
	if x.Subquery != nil {
		sub, err := b.buildScalarSubquery(scope, &ast.Subquery{Select: x.Subquery})
		if err != nil {
			return nil, err
		}
		return expression.NewInSubquery(value, sub.(*expression.ScalarSubquery), x.Negate), nil
	}
	list := make([]expression.Expression, 0, len(x.List))
	for _, item := range x.List {
		e, err := b.buildExpr(scope, item)
		if err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return expression.NewIn(value, list, x.Negate), nil
}

func (b *Builder) buildFuncCall(scope *Scope, fc *ast.FuncCall) (expression.Expression, error) {
	args := make([]expression.Expression, 0, len(fc.Args))
	for _, a := range fc.Args {
		e, err := b.buildExpr(scope, a)
		if err != nil {
			return nil, err
		}
		args = append(args, e)
	}
	if b.funcs.IsAggregate(fc.Name) {
		return nil, quereuserr.ErrUnsupported.New("aggregate function outside SELECT list/HAVING: " + fc.Name)
	}
	impl, ok := b.funcs.ResolveScalar(fc.Name, len(args))
	if !ok {
		return nil, quereuserr.ErrUnknownFunction.New(fc.Name, len(args))
	}
	return expression.NewScalarFunctionCall(impl, args), nil
}

func (b *Builder) buildScalarSubquery(scope *Scope, sub *ast.Subquery) (expression.Expression, error) {
	inner := NewScope(scope)
	body, err := b.buildSelect(inner, sub.Select)
	if err != nil {
		return nil, err
	}
	attrs := body.RelType().Attributes
	var typ sql.Type
	if len(attrs) > 0 {
		typ = attrs[0].Type
	}
	return expression.NewScalarSubquery(body, typ), nil
}

// ---- DML ----

func (b *Builder) buildInsert(scope *Scope, s *ast.InsertStmt) (plan.Node, error) {
	schema, module, table, ok := b.catalog.LookupTable(s.Table)
	if !ok {
		return nil, quereuserr.ErrUnknownTable.New(s.Table)
	}

	var source plan.Node
	var err error
	if s.Select != nil {
		source, err = b.buildSelect(scope, s.Select)
		if err != nil {
			return nil, err
		}
	} else {
		rows, err := b.buildValuesRows(scope, s.Columns, s.Values, schema)
		if err != nil {
			return nil, err
		}
		source = plan.NewValues(rows, schema)
	}

	newColumns := make([]int, len(schema.Columns))
	for i := range newColumns {
		newColumns[i] = i
	}
	dml := plan.NewDmlExecutor(plan.DmlInsert, schema, module, table, astConflict(s.OnConflict), newColumns, nil, source)
	return b.attachReturning(scope, dml, s.Returning)
}

// buildValuesRows expands INSERT's VALUES tuples into full-width rows
// matching schema's column order, filling any column omitted by an
// explicit column list with NULL.
func (b *Builder) buildValuesRows(scope *Scope, columns []string, values [][]ast.Expr, schema sql.TableSchema) ([][]expression.Expression, error) {
	colIndex := make(map[string]int, len(columns))
	if len(columns) > 0 {
		for i, c := range schema.Columns {
			_ = i
			_ = c
		}
		for i, name := range columns {
			for j, c := range schema.Columns {
				if c.Name == name {
					colIndex[name] = j
					_ = i
					break
				}
			}
		}
	}

	rows := make([][]expression.Expression, 0, len(values))
	for _, tuple := range values {
		row := make([]expression.Expression, len(schema.Columns))
		for i := range row {
			row[i] = expression.NewLiteral(nil, sql.NullType)
		}
		if len(columns) == 0 {
			for i, e := range tuple {
				if i >= len(row) {
					break
				}
				ex, err := b.buildExpr(scope, e)
				if err != nil {
					return nil, err
				}
				row[i] = ex
			}
		} else {
			for i, e := range tuple {
				if i >= len(columns) {
					break
				}
				idx, ok := colIndex[columns[i]]
				if !ok {
					return nil, quereuserr.ErrUnknownColumn.New(columns[i])
				}
				ex, err := b.buildExpr(scope, e)
				if err != nil {
					return nil, err
				}
				row[idx] = ex
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (b *Builder) buildUpdate(scope *Scope, s *ast.UpdateStmt) (plan.Node, error) {
	schema, module, table, ok := b.catalog.LookupTable(s.Table)
	if !ok {
		return nil, quereuserr.ErrUnknownTable.New(s.Table)
	}
	ref := plan.NewTableReference(schema, module, table)
	inner := NewScope(scope)
	inner.PushRelation(s.Table, ref.RelType().Attributes)

	var node plan.Node = ref
	if s.Where != nil {
		pred, err := b.buildExpr(inner, s.Where)
		if err != nil {
			return nil, err
		}
		node = plan.NewFilter(pred, node)
	}

	assignExprs := make(map[string]expression.Expression, len(s.Set))
	for _, a := range s.Set {
		e, err := b.buildExpr(inner, a.Value)
		if err != nil {
			return nil, err
		}
		assignExprs[a.Column] = e
	}

	oldAttrs := ref.RelType().Attributes
	newCols := make([]expression.Expression, 0, len(schema.Columns)*2)
	oldCols := make([]expression.Expression, 0, len(schema.Columns))
	for i, c := range schema.Columns {
		if e, ok := assignExprs[c.Name]; ok {
			newCols = append(newCols, e)
		} else {
			attr := oldAttrs[i]
			newCols = append(newCols, expression.NewColumnReference(attr.Id, attr.Name, attr.Type))
		}
		attr := oldAttrs[i]
		oldCols = append(oldCols, expression.NewColumnReference(attr.Id, attr.Name, attr.Type))
	}
	projs := append(append([]expression.Expression{}, newCols...), oldCols...)
	names := make([]string, len(projs))
	node = plan.NewProject(projs, names, node)

	width := len(schema.Columns)
	newColumns := make([]int, width)
	oldColumns := make([]int, width)
	for i := 0; i < width; i++ {
		newColumns[i] = i
		oldColumns[i] = width + i
	}

	dml := plan.NewDmlExecutor(plan.DmlUpdate, schema, module, table, astConflict(s.OnConflict), newColumns, oldColumns, node)
	return b.attachReturning(scope, dml, s.Returning)
}

func (b *Builder) buildDelete(scope *Scope, s *ast.DeleteStmt) (plan.Node, error) {
	schema, module, table, ok := b.catalog.LookupTable(s.Table)
	if !ok {
		return nil, quereuserr.ErrUnknownTable.New(s.Table)
	}
	ref := plan.NewTableReference(schema, module, table)
	inner := NewScope(scope)
	inner.PushRelation(s.Table, ref.RelType().Attributes)

	var node plan.Node = ref
	if s.Where != nil {
		pred, err := b.buildExpr(inner, s.Where)
		if err != nil {
			return nil, err
		}
		node = plan.NewFilter(pred, node)
	}

	oldColumns := make([]int, len(schema.Columns))
	for i := range oldColumns {
		oldColumns[i] = i
	}
	dml := plan.NewDmlExecutor(plan.DmlDelete, schema, module, table, sql.ConflictAbort, nil, oldColumns, node)
	return b.attachReturning(scope, dml, s.Returning)
}

func (b *Builder) attachReturning(scope *Scope, dml *plan.DmlExecutor, returning []ast.ResultColumn) (plan.Node, error) {
	if len(returning) == 0 {
		return dml, nil
	}
	inner := NewScope(scope)
	inner.PushRelation("", dml.RelType().Attributes)
	projs, names, err := b.buildResultColumns(inner, returning)
	if err != nil {
		return nil, err
	}
	return plan.NewReturning(projs, names, dml), nil
}

func astConflict(c ast.ConflictAction) sql.ConflictPolicy {
	switch c {
	case ast.ConflictRollback:
		return sql.ConflictRollback
	case ast.ConflictReplace:
		return sql.ConflictReplace
	case ast.ConflictIgnore:
		return sql.ConflictIgnore
	case ast.ConflictFail:
		return sql.ConflictFail
	default:
		return sql.ConflictAbort
	}
}

// ---- DDL ----

func (b *Builder) buildCreateTable(s *ast.CreateTableStmt) (plan.Node, error) {
	schema, err := astTableSchema(s)
	if err != nil {
		return nil, err
	}
	module, ok := b.modules.Lookup(schema.ModuleName)
	if !ok {
		return nil, quereuserr.ErrUnknownModule.New(schema.ModuleName)
	}
	return plan.NewCreateTable(schema, module, s.IfNotExists), nil
}

func astTableSchema(s *ast.CreateTableStmt) (sql.TableSchema, error) {
	cols := make([]sql.ColumnDef, 0, len(s.Columns))
	var pk []sql.PKColumn
	for i, c := range s.Columns {
		cols = append(cols, sql.ColumnDef{Name: c.Name, Affinity: affinityFromName(c.TypeName).Affinity, Nullable: c.Nullable, Default: c.Default, Collation: collationFromName(c.Collation)})
		if c.PrimaryKey {
			pk = append(pk, sql.PKColumn{ColumnIndex: i, Desc: c.Desc})
		}
	}
	checks := make([]sql.CheckConstraint, 0, len(s.Checks))
	for _, c := range s.Checks {
		checks = append(checks, sql.CheckConstraint{Name: c.Name, Expr: exprText(c.Expr)})
	}
	moduleName := s.ModuleName
	if moduleName == "" {
		moduleName = "memory"
	}
	return sql.TableSchema{Name: s.Table, Columns: cols, PrimaryKey: pk, Checks: checks, ModuleName: moduleName, ModuleArgs: s.ModuleArgs}, nil
}

// exprText renders an ast expression back to SQL text for the opaque
// TableSchema.CheckConstraint.Expr field (§3: check bodies are stored as
// text, not re-parsed by the schema layer).
func exprText(e ast.Expr) string {
	switch x := e.(type) {
	case *ast.Literal:
		return fmt.Sprintf("%v", x.Value)
	case *ast.ColumnName:
		if x.Table != "" {
			return x.Table + "." + x.Column
		}
		return x.Column
	case *ast.BinaryExpr:
		return exprText(x.Left) + " " + x.Op + " " + exprText(x.Right)
	case *ast.UnaryExpr:
		return x.Op + " " + exprText(x.Child)
	case *ast.FuncCall:
		parts := make([]string, len(x.Args))
		for i, a := range x.Args {
			parts[i] = exprText(a)
		}
		return x.Name + "(" + joinComma(parts) + ")"
	default:
		return ""
	}
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

func (b *Builder) buildCreateIndex(s *ast.CreateIndexStmt) (plan.Node, error) {
	schema, _, table, ok := b.catalog.LookupTable(s.Table)
	if !ok {
		return nil, quereuserr.ErrUnknownTable.New(s.Table)
	}
	cols := make([]int, len(s.Columns))
	for i, name := range s.Columns {
		ci := -1
		for j, c := range schema.Columns {
			if c.Name == name {
				ci = j
				break
			}
		}
		if ci < 0 {
			return nil, quereuserr.ErrUnknownColumn.New(name)
		}
		cols[i] = ci
	}
	idx := sql.IndexDef{Name: s.Name, Columns: cols, Unique: s.Unique}
	return plan.NewCreateIndex(table, schema, idx), nil
}

func (b *Builder) buildCreateView(scope *Scope, s *ast.CreateViewStmt) (plan.Node, error) {
	body, err := b.buildSelect(scope, s.Select)
	if err != nil {
		return nil, err
	}
	return plan.NewCreateView(s.Name, body), nil
}

func (b *Builder) buildDrop(s *ast.DropStmt) (plan.Node, error) {
	kind := plan.DropKindTable
	if s.Kind == "view" {
		kind = plan.DropKindView
	}
	return plan.NewDrop(kind, s.Name, s.IfExists), nil
}

func (b *Builder) buildAddConstraint(s *ast.AddConstraintStmt) (plan.Node, error) {
	schema, _, table, ok := b.catalog.LookupTable(s.Table)
	if !ok {
		return nil, quereuserr.ErrUnknownTable.New(s.Table)
	}
	return plan.NewAddConstraint(table, schema, sql.CheckConstraint{Name: s.Constraint.Name, Expr: exprText(s.Constraint.Expr)}), nil
}

func (b *Builder) buildCreateAssertion(scope *Scope, s *ast.CreateAssertionStmt) (plan.Node, error) {
	pred, err := b.buildExpr(NewScope(scope), s.Expr)
	if err != nil {
		return nil, err
	}
	return plan.NewCreateAssertion(s.Name, pred), nil
}

func (b *Builder) buildTxn(s *ast.TxnStmt) plan.Node {
	var op plan.TxnOp
	switch s.Kind {
	case ast.TxnBegin:
		op = plan.TxnBegin
	case ast.TxnCommit:
		op = plan.TxnCommit
	case ast.TxnRollback:
		op = plan.TxnRollback
	case ast.TxnSavepoint:
		op = plan.TxnSavepoint
	case ast.TxnRelease:
		op = plan.TxnRelease
	case ast.TxnRollbackTo:
		op = plan.TxnRollbackTo
	}
	return plan.NewTxnStatement(op, s.Name, s.Deferred)
}

func (b *Builder) buildPragma(scope *Scope, s *ast.PragmaStmt) (plan.Node, error) {
	if s.Value == nil {
		return plan.NewPragmaGet(s.Name, s.Arg), nil
	}
	v, err := b.buildExpr(scope, s.Value)
	if err != nil {
		return nil, err
	}
	lit, ok := v.(*expression.Literal)
	if !ok {
		return nil, quereuserr.ErrUnsupported.New("non-constant PRAGMA value")
	}
	return plan.NewPragmaSet(s.Name, s.Arg, lit.Value), nil
}

func (b *Builder) buildExplain(scope *Scope, s *ast.ExplainStmt) (plan.Node, error) {
	target, err := b.buildStatement(scope, s.Target)
	if err != nil {
		return nil, err
	}
	return plan.NewExplain(target, s.Analyze), nil
}

func (b *Builder) buildDeclareSchema(s *ast.DeclareSchemaStmt) (plan.Node, error) {
	tables := make([]sql.TableSchema, 0, len(s.Tables))
	for _, t := range s.Tables {
		ts, err := astTableSchema(&t)
		if err != nil {
			return nil, err
		}
		tables = append(tables, ts)
	}
	decl := sql.DeclaredSchema{Name: s.Name, Tables: tables}
	return plan.NewDeclareSchema(decl), nil
}
