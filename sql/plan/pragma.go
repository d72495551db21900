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

// Pragma is §6's `PRAGMA name[(=value|(arg))]` node: a get when Value is
// nil, a set otherwise, driven through sql.PragmaRegistry (§2 AMBIENT
// STACK "Configuration").
type Pragma struct {
	base
	Name  string
	Arg   string
	Value interface{}
	isSet bool
}

// NewPragmaGet builds a read-form PRAGMA node.
func NewPragmaGet(name, arg string) *Pragma {
	return &Pragma{base: newBase(), Name: name, Arg: arg}
}

// NewPragmaSet builds a write-form PRAGMA node.
func NewPragmaSet(name, arg string, value interface{}) *Pragma {
	return &Pragma{base: newBase(), Name: name, Arg: arg, Value: value, isSet: true}
}

func (p *Pragma) IsSet() bool { return p.isSet }

func (p *Pragma) RelType() sql.RelationType {
	return sql.RelationType{Attributes: []sql.Attribute{{Id: sql.NewAttrId(), Name: p.Name, Type: sql.NullableText}}}
}

func (p *Pragma) Children() []expression.Expression { return nil }

func (p *Pragma) Relations() []Node { return nil }

func (p *Pragma) WithChildren(children ...expression.Expression) (Node, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvariantViolation.New("Pragma accepts no scalar children")
	}
	return p, nil
}

func (p *Pragma) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 0 {
		return nil, sql.ErrInvariantViolation.New("Pragma accepts no relational inputs")
	}
	return p, nil
}

func (p *Pragma) EstimatedRows() uint64 { return 1 }

func (p *Pragma) EstimatedCost() float64 { return 1 }

func (p *Pragma) ComputePhysical(children []*PhysicalProperties) *PhysicalProperties {
	return &PhysicalProperties{Deterministic: false, ReadOnly: !p.isSet}
}

func (p *Pragma) String() string { return fmt.Sprintf("Pragma(%s)", p.Name) }

// Analyze is §6's `ANALYZE` node: recomputes sql.TableStatistics for
// Tables (empty means every known table) via sql.Analyze (§5
// "Supplemented features").
type Analyze struct {
	ddlBase
	Tables []string
}

// NewAnalyze builds an ANALYZE node over the given table names.
func NewAnalyze(tables []string) *Analyze {
	return &Analyze{ddlBase: ddlBase{base: newBase()}, Tables: tables}
}

func (a *Analyze) RelType() sql.RelationType { return statusRelation() }

func (a *Analyze) WithChildren(children ...expression.Expression) (Node, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvariantViolation.New("Analyze accepts no scalar children")
	}
	return a, nil
}

func (a *Analyze) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 0 {
		return nil, sql.ErrInvariantViolation.New("Analyze accepts no relational inputs")
	}
	return a, nil
}

func (a *Analyze) String() string { return "Analyze" }

// Explain is §5 "Supplemented features"'s EXPLAIN node: renders Target's
// instruction/plan tree instead of executing it for its rows. Analyze
// requests EXPLAIN ANALYZE semantics (actually run Target and append the
// total number of rows it produced after the static plan).
type Explain struct {
	base
	Target  Node
	Analyze bool
}

// NewExplain wraps target for plan-tree rendering instead of execution.
func NewExplain(target Node, analyze bool) *Explain {
	return &Explain{base: newBase(), Target: target, Analyze: analyze}
}

func (e *Explain) RelType() sql.RelationType {
	return sql.RelationType{Attributes: []sql.Attribute{{Id: sql.NewAttrId(), Name: "plan", Type: sql.TextType}}}
}

func (e *Explain) Children() []expression.Expression { return nil }

func (e *Explain) Relations() []Node { return []Node{e.Target} }

func (e *Explain) WithChildren(children ...expression.Expression) (Node, error) {
	if len(children) != 0 {
		return nil, sql.ErrInvariantViolation.New("Explain accepts no scalar children")
	}
	return e, nil
}

func (e *Explain) WithRelations(relations ...Node) (Node, error) {
	if len(relations) != 1 {
		return nil, sql.ErrInvariantViolation.New("Explain requires exactly 1 relational input")
	}
	return NewExplain(relations[0], e.Analyze), nil
}

func (e *Explain) EstimatedRows() uint64 { return 1 }

func (e *Explain) EstimatedCost() float64 { return 1 }

func (e *Explain) ComputePhysical(children []*PhysicalProperties) *PhysicalProperties {
	return &PhysicalProperties{Deterministic: false, ReadOnly: true}
}

func (e *Explain) String() string { return "Explain" }
