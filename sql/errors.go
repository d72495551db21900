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

package sql

import "github.com/dolthub/quereus/quereuserr"

// Re-exported for convenience so callers working only against package sql
// don't need a second import for the error Kinds they see in practice.
var (
	ErrUnknownTable       = quereuserr.ErrUnknownTable
	ErrUnknownModule      = quereuserr.ErrUnknownModule
	ErrTableExists        = quereuserr.ErrTableExists
	ErrUnknownAssertion   = quereuserr.ErrUnknownAssertion
	ErrUnknownSchema      = quereuserr.ErrUnknownSchema
	ErrUnknownColumn      = quereuserr.ErrUnknownColumn
	ErrAmbiguousColumn    = quereuserr.ErrAmbiguousColumn
	ErrMissingRowContext  = quereuserr.ErrMissingRowContext
	ErrInvalidPrimaryKey  = quereuserr.ErrInvalidPrimaryKey
	ErrNoBestAccessPlan   = quereuserr.ErrNoBestAccessPlan
	ErrSubqueryTooManyRow = quereuserr.ErrSubqueryTooManyRows
	ErrCancelled          = quereuserr.ErrCancelled
	ErrUnknownPragma      = quereuserr.ErrUnknownPragma
	ErrInvariantViolation = quereuserr.ErrInvariantViolation
	ErrTypeMismatch       = quereuserr.ErrTypeMismatch
	ErrUnsupported        = quereuserr.ErrUnsupported
	ErrArithmetic         = quereuserr.ErrArithmetic
	ErrRecursionLimit     = quereuserr.ErrRecursionLimit
	ErrParamNameMismatch  = quereuserr.ErrParamNameMismatch
	ErrParamCountMismatch = quereuserr.ErrParamCountMismatch
	ErrNotOptimized       = quereuserr.ErrNotOptimized
	ErrHandledFiltersLength = quereuserr.ErrHandledFiltersLength
	ErrStatementClosed    = quereuserr.ErrStatementClosed
	ErrConnectionClosed   = quereuserr.ErrConnectionClosed
	ErrPrimaryKeyViolation = quereuserr.ErrPrimaryKeyViolation
	ErrUniqueViolation    = quereuserr.ErrUniqueViolation
	ErrCheckViolation     = quereuserr.ErrCheckViolation
	ErrNotNullViolation   = quereuserr.ErrNotNullViolation
	ErrAssertionViolation = quereuserr.ErrAssertionViolation
	ErrVtabError          = quereuserr.ErrVtabError

	// ErrInvalidPK is the internal error raised when primary-key
	// extraction (§3 I5) cannot find its columns in a row; this indicates
	// a row shape mismatch between a DML source and its target schema.
	ErrInvalidPK = quereuserr.ErrInvalidPrimaryKey.New()
)
