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

package plan

import (
	"fmt"

	"github.com/dolthub/quereus/sql"
	"github.com/dolthub/quereus/sql/expression"
)

// TxnOp enumerates §6's transaction statements.
type TxnOp int

const (
	TxnBegin TxnOp = iota
	TxnCommit
	TxnRollback
	TxnSavepoint
	TxnRelease
	TxnRollbackTo
)

func (o TxnOp) String() string {
	switch o {
	case TxnBegin:
		return "BEGIN"
	case TxnCommit:
		return "COMMIT"
	case TxnRollback:
		return "ROLLBACK"
	case TxnSavepoint:
		return "SAVEPOINT"
	case TxnRelease:
		return "RELEASE"
	case TxnRollbackTo:
		return "ROLLBACK TO"
	}
	return "?"
}

// TxnStatement is §4.H's transaction-control leaf: BEGIN [DEFERRED],
// COMMIT, ROLLBACK [TO SAVEPOINT n], SAVEPOINT n, RELEASE n. Name is the
// savepoint name for Savepoint/Release/RollbackTo, empty otherwise.
// Deferred records whether BEGIN requested DEFERRED (informational only
// at the core level: the first write still lazily creates the pending
// transaction layer regardless, per §4.H "Write protocol").
type TxnStatement struct {
	ddlBase
	Op       TxnOp
	Name     string
	Deferred bool
}

// NewTxnStatement builds a transaction-control node.
func NewTxnStatement(op TxnOp, name string, deferred bool) *TxnStatement {
	return &TxnStatement{ddlBase: ddlBase{base: newBase()}, Op: op, Name: name, Deferred: deferred}
}

func (t *TxnStatement) RelType() sql.RelationType { return statusRelation() }

func (t *TxnStatement) WithChildren(children ...expression.Expression) (Node, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvariantViolation.New("TxnStatement accepts no scalar children")
	}
	return t, nil
}

func (t *TxnStatement) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 0 {
		return nil, sql.ErrInvariantViolation.New("TxnStatement accepts no relational inputs")
	}
	return t, nil
}

func (t *TxnStatement) String() string {
	if t.Name != "" {
		return fmt.Sprintf("%s(%s)", t.Op, t.Name)
	}
	return t.Op.String()
}
