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

// Package ast is the typed-tree stand-in for the external lexer/parser's
// output (spec.md §1 "Out of scope: SQL lexer/parser producing AST
// (consumed as a typed tree)"). The planbuilder package consumes exactly
// this shape; a real parser would construct it instead of the small
// fixture helpers tests use here.
package ast

// Pos is a source location, threaded through for §7 "source location
// (line/column from the AST) when available".
type Pos struct {
	Line, Col int
}

// Node is the common surface every AST node implements, just enough for
// error reporting.
type Node interface {
	Position() Pos
}

type base struct{ Pos Pos }

func (b base) Position() Pos { return b.Pos }

// Statement is any top-level SQL statement.
type Statement interface {
	Node
	isStatement()
}

type stmtBase struct{ base }

func (stmtBase) isStatement() {}

// Expr is any scalar expression node.
type Expr interface {
	Node
	isExpr()
}

type exprBase struct{ base }

func (exprBase) isExpr() {}

// TableExpr is any FROM-clause entry: a table name, a join, or a
// subquery.
type TableExpr interface {
	Node
	isTableExpr()
}

type tableExprBase struct{ base }

func (tableExprBase) isTableExpr() {}

// ---- Expressions ----

// Literal is a constant value in source text; Kind disambiguates NULL
// from other literal forms since Value is untyped nil for NULL too.
type Literal struct {
	exprBase
	Kind  LiteralKind
	Value interface{}
}

type LiteralKind int

const (
	LitInteger LiteralKind = iota
	LitFloat
	LitString
	LitBlob
	LitNull
	LitBool
)

// ColumnName is an unqualified or table-qualified column reference.
type ColumnName struct {
	exprBase
	Table  string // empty if unqualified
	Column string
}

// Param is a bound parameter: `?` (Index>0, Name==""), `:N` (Index==N),
// or `:name` (Name!="").
type Param struct {
	exprBase
	Index int
	Name  string
}

// BinaryExpr is any two-operand operator, including AND/OR.
type BinaryExpr struct {
	exprBase
	Op          string
	Left, Right Expr
}

// UnaryExpr is NOT/-/IS NULL/IS NOT NULL.
type UnaryExpr struct {
	exprBase
	Op    string
	Child Expr
}

// CastExpr is `CAST(Child AS TypeName)`.
type CastExpr struct {
	exprBase
	Child    Expr
	TypeName string
}

// CollateExpr is `Child COLLATE Name`.
type CollateExpr struct {
	exprBase
	Child Expr
	Name  string
}

// BetweenExpr is `Value BETWEEN Lower AND Upper`.
type BetweenExpr struct {
	exprBase
	Value, Lower, Upper Expr
	Negate              bool
}

// WhenClause is one WHEN/THEN pair of a CaseExpr.
type WhenClause struct {
	When, Then Expr
}

// CaseExpr is `CASE [Value] WHEN ... THEN ... [ELSE ...] END`.
type CaseExpr struct {
	exprBase
	Value    Expr // nil for the searched form
	Whens    []WhenClause
	Else     Expr
}

// InExpr is `Value [NOT] IN (List...)` or `Value [NOT] IN (Subquery)`.
type InExpr struct {
	exprBase
	Value    Expr
	List     []Expr
	Subquery *SelectStmt
	Negate   bool
}

// FuncCall is a scalar or aggregate function invocation; Star marks
// `COUNT(*)`.
type FuncCall struct {
	exprBase
	Name     string
	Args     []Expr
	Distinct bool
	Star     bool
}

// WindowCall is a window-function invocation, `FuncCall OVER (...)`.
type WindowCall struct {
	exprBase
	Func        FuncCall
	PartitionBy []Expr
	OrderBy     []OrderTerm
}

// Subquery is a scalar or row subquery appearing where an expression is
// expected.
type Subquery struct {
	exprBase
	Select *SelectStmt
}

// ---- Table expressions ----

// TableName is a FROM-clause table reference, optionally aliased.
type TableName struct {
	tableExprBase
	Name  string
	Alias string
}

// JoinKind mirrors §6's join kinds.
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinRight
	JoinFull
	JoinCross
)

// JoinExpr is a two-sided join.
type JoinExpr struct {
	tableExprBase
	Kind        JoinKind
	Left, Right TableExpr
	On          Expr // nil for JoinCross
}

// SubqueryTableExpr is a `(SELECT ...) AS alias` in FROM.
type SubqueryTableExpr struct {
	tableExprBase
	Select *SelectStmt
	Alias  string
}

// ---- Statements ----

// OrderTerm is one ORDER BY key.
type OrderTerm struct {
	Expr Expr
	Desc bool
}

// ResultColumn is one SELECT-list entry; Star marks `*`/`table.*`.
type ResultColumn struct {
	Expr  Expr
	Alias string
	Star  bool
	Table string // qualifies Star as `table.*`, empty means bare `*`
}

// CTEDef is one `WITH name(cols) AS (...)` binding.
type CTEDef struct {
	Name      string
	Columns   []string
	Select    *SelectStmt
	Recursive bool
}

// SetOpKind enumerates §6's set operations.
type SetOpKind int

const (
	SetNone SetOpKind = iota
	SetUnion
	SetUnionAll
	SetIntersect
	SetExcept
	SetDiff
)

// SelectStmt is a full SELECT, including an optional trailing set
// operation against Compound.
type SelectStmt struct {
	stmtBase
	CTEs     []CTEDef
	Distinct bool
	Columns  []ResultColumn
	From     TableExpr // nil for a FROM-less SELECT (e.g. `SELECT 1`)
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	OrderBy  []OrderTerm
	Limit    Expr
	Offset   Expr

	SetOp    SetOpKind
	Compound *SelectStmt // right-hand side when SetOp != SetNone
}

// ConflictAction enumerates `ON CONFLICT` policies.
type ConflictAction int

const (
	ConflictAbort ConflictAction = iota
	ConflictRollback
	ConflictReplace
	ConflictIgnore
	ConflictFail
)

// Assignment is one `column = expr` of an UPDATE's SET list.
type Assignment struct {
	Column string
	Value  Expr
}

// InsertStmt is §6's `INSERT`.
type InsertStmt struct {
	stmtBase
	Table      string
	Columns    []string
	Values     [][]Expr // nil when Select is set (INSERT ... SELECT)
	Select     *SelectStmt
	OnConflict ConflictAction
	Returning  []ResultColumn
}

// UpdateStmt is §6's `UPDATE`.
type UpdateStmt struct {
	stmtBase
	Table      string
	Set        []Assignment
	Where      Expr
	OnConflict ConflictAction
	Returning  []ResultColumn
}

// DeleteStmt is §6's `DELETE`.
type DeleteStmt struct {
	stmtBase
	Table     string
	Where     Expr
	Returning []ResultColumn
}

// ColumnDef is one column of a CREATE TABLE.
type ColumnDef struct {
	Name       string
	TypeName   string
	Nullable   bool
	Default    Expr
	Collation  string
	PrimaryKey bool
	Desc       bool // PK column sort direction
}

// CreateTableStmt is §6's `CREATE TABLE`.
type CreateTableStmt struct {
	stmtBase
	Table       string
	Columns     []ColumnDef
	Checks      []CheckDef
	ModuleName  string
	ModuleArgs  []string
	IfNotExists bool
}

// CheckDef is one named CHECK constraint.
type CheckDef struct {
	Name string
	Expr Expr
}

// CreateIndexStmt is §6's `CREATE INDEX`.
type CreateIndexStmt struct {
	stmtBase
	Name    string
	Table   string
	Columns []string
	Unique  bool
}

// CreateViewStmt is §6's `CREATE VIEW`.
type CreateViewStmt struct {
	stmtBase
	Name   string
	Select *SelectStmt
}

// DropStmt is §6's `DROP TABLE`/`DROP VIEW`.
type DropStmt struct {
	stmtBase
	Kind     string // "table" or "view"
	Name     string
	IfExists bool
}

// AddConstraintStmt is §6's `ALTER TABLE ADD CONSTRAINT`.
type AddConstraintStmt struct {
	stmtBase
	Table      string
	Constraint CheckDef
}

// CreateAssertionStmt is §6's `CREATE ASSERTION`.
type CreateAssertionStmt struct {
	stmtBase
	Name string
	Expr Expr
}

// DropAssertionStmt is §6's `DROP ASSERTION`.
type DropAssertionStmt struct {
	stmtBase
	Name     string
	IfExists bool
}

// TxnStmtKind enumerates §6's transaction statements.
type TxnStmtKind int

const (
	TxnBegin TxnStmtKind = iota
	TxnCommit
	TxnRollback
	TxnSavepoint
	TxnRelease
	TxnRollbackTo
)

// TxnStmt is §6's `BEGIN`/`COMMIT`/`ROLLBACK`/`SAVEPOINT`/`RELEASE`.
type TxnStmt struct {
	stmtBase
	Kind     TxnStmtKind
	Name     string
	Deferred bool
}

// PragmaStmt is §6's `PRAGMA`.
type PragmaStmt struct {
	stmtBase
	Name  string
	Arg   string
	Value Expr // nil for a get-form pragma
}

// AnalyzeStmt is §6's `ANALYZE`.
type AnalyzeStmt struct {
	stmtBase
	Tables []string
}

// ExplainStmt is §5's `EXPLAIN`/`EXPLAIN ANALYZE`.
type ExplainStmt struct {
	stmtBase
	Target  Statement
	Analyze bool
}

// SchemaTableDef is one table definition inside a DECLARE SCHEMA block.
type SchemaTableDef struct {
	CreateTableStmt
}

// DeclareSchemaStmt is §6's `DECLARE SCHEMA`.
type DeclareSchemaStmt struct {
	stmtBase
	Name   string
	Tables []CreateTableStmt
}

// DiffSchemaStmt is §6's `DIFF SCHEMA`.
type DiffSchemaStmt struct {
	stmtBase
	Name string
}

// ApplySchemaStmt is §6's `APPLY SCHEMA ... [WITH SEED]`.
type ApplySchemaStmt struct {
	stmtBase
	Name     string
	WithSeed bool
}

// ExplainSchemaStmt is §5's `EXPLAIN SCHEMA`.
type ExplainSchemaStmt struct {
	stmtBase
	Name string
}
