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

// Package quereuserr defines the error Kind taxonomy the core raises,
// following the same errors.NewKind/.New idiom the teacher uses in its
// auth package.
package quereuserr

import errorskind "gopkg.in/src-d/go-errors.v1"

// Kind groups related errors so callers can distinguish failure classes
// with errors.Is without parsing messages.
type Kind = *errorskind.Kind

var (
	// Parse errors originate outside the core (lexer/parser); the core
	// only forwards them, wrapped, from the AST it is handed.
	ErrParse = errorskind.NewKind("parse error: %s")

	// Planning errors: builder/scope resolution failures.
	ErrUnknownTable    = errorskind.NewKind("unknown table %q")
	ErrUnknownModule   = errorskind.NewKind("unknown module %q")
	ErrUnknownColumn   = errorskind.NewKind("unknown column %q")
	ErrUnknownFunction = errorskind.NewKind("unknown function %q with %d argument(s)")
	ErrAmbiguousColumn = errorskind.NewKind("ambiguous column name %q")
	ErrUnknownParam    = errorskind.NewKind("unknown parameter %q")
	ErrUnknownPragma   = errorskind.NewKind("unknown pragma %q")
	ErrTypeMismatch    = errorskind.NewKind("type mismatch: %s")
	ErrUnsupported     = errorskind.NewKind("unsupported: %s")
	ErrTableExists     = errorskind.NewKind("table %q already exists")
	ErrUnknownAssertion = errorskind.NewKind("unknown assertion %q")
	ErrUnknownSchema   = errorskind.NewKind("unknown declared schema %q")

	// Constraint errors: DML-time data violations.
	ErrPrimaryKeyViolation = errorskind.NewKind("UNIQUE constraint failed: primary key %v")
	ErrUniqueViolation     = errorskind.NewKind("UNIQUE constraint failed: %s")
	ErrCheckViolation      = errorskind.NewKind("CHECK constraint failed: %s")
	ErrAssertionViolation  = errorskind.NewKind("assertion %q failed")
	ErrNotNullViolation    = errorskind.NewKind("NOT NULL constraint failed: %s")

	// Runtime errors.
	ErrVtabError            = errorskind.NewKind("virtual table error: %s")
	ErrSubqueryTooManyRows  = errorskind.NewKind("scalar subquery returned more than one row")
	ErrArithmetic           = errorskind.NewKind("arithmetic error: %s")
	ErrRecursionLimit       = errorskind.NewKind("recursive CTE exceeded iteration limit (%d)")
	ErrNoBestAccessPlan     = errorskind.NewKind("virtual table %q does not implement getBestAccessPlan or supports")
	ErrHandledFiltersLength = errorskind.NewKind("access plan for %q returned %d handledFilters, expected %d")

	// Internal invariant violations: these indicate a builder/optimizer bug.
	ErrMissingRowContext  = errorskind.NewKind("internal: no row-context frame binds attribute %d")
	ErrNotOptimized       = errorskind.NewKind("internal: node %T has no physical properties after optimization")
	ErrInvalidPrimaryKey  = errorskind.NewKind("internal: could not extract primary key from row")
	ErrInvariantViolation = errorskind.NewKind("internal invariant violation: %s")

	// Misuse: caller errors.
	ErrParamCountMismatch = errorskind.NewKind("expected %d parameters, got %d")
	ErrParamNameMismatch  = errorskind.NewKind("no value bound for named parameter %q")
	ErrStatementClosed    = errorskind.NewKind("statement is closed")
	ErrConnectionClosed   = errorskind.NewKind("connection is closed")

	// Cancellation.
	ErrCancelled = errorskind.NewKind("statement cancelled")
)

// WithLocation annotates an error with a source location, when the AST
// node that triggered it carried one. Internal errors and planning errors
// surface this per §7.
func WithLocation(err error, line, col int) error {
	if err == nil || (line == 0 && col == 0) {
		return err
	}
	return &locatedError{err: err, line: line, col: col}
}

type locatedError struct {
	err  error
	line int
	col  int
}

func (e *locatedError) Error() string {
	return e.err.Error() + " (at line " + itoa(e.line) + ", column " + itoa(e.col) + ")"
}

func (e *locatedError) Unwrap() error { return e.err }

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
