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

// Package analyzer is the rule-based optimizer: access-path selection
// against every scan, the Aggregate/Join/Distinct lowering rules, and a
// bottom-up PhysicalProperties annotation pass. Optimize never mutates
// its input tree's nodes in place (beyond the shared-subtree identity a
// ScalarSubquery's Relation carries); every rewrite returns a new node
// so callers holding the original tree are unaffected, aside from the
// Filter(Retrieve) and Join rules installing the corresponding physical
// nodes in its place.
package analyzer

import (
	"github.com/dolthub/quereus/quereuserr"
	"github.com/dolthub/quereus/sql"
	"github.com/dolthub/quereus/sql/expression"
	"github.com/dolthub/quereus/sql/plan"
)

// hint carries access-path-relevant information an enclosing Sort,
// LimitOffset, or Aggregate contributes to a Retrieve it sits above in
// the same pipeline, since getBestAccessPlan wants requiredOrdering and
// limit up front rather than discovered after the scan is already built.
type hint struct {
	ordering []plan.OrderingAttr
	limit    int64
}

// physSetter is the structural interface every concrete node satisfies
// via its embedded base's promoted pointer-receiver method; Node itself
// deliberately doesn't expose SetPhysical since callers outside the
// optimizer have no business mutating it.
type physSetter interface {
	SetPhysical(*plan.PhysicalProperties)
}

// Optimize lowers a logical plan tree into its physical form (access-path
// selection against every scan, StreamAggregate/BloomJoin rewrites, and a
// bottom-up PhysicalProperties annotation) so the scheduler's I2 ("every
// executable node has physical != nil") holds. It is idempotent: feeding
// an already-optimized tree back in produces an equivalent tree.
func Optimize(ctx *sql.Context, n plan.Node) (plan.Node, error) {
	return optimizeRel(ctx, n, hint{})
}

func optimizeRel(ctx *sql.Context, n plan.Node, h hint) (plan.Node, error) {
	switch t := n.(type) {
	case *plan.Filter:
		if ret, ok := t.Input.(*plan.Retrieve); ok {
			return lowerFilterOverRetrieve(ctx, t, ret, h)
		}
		return transformChildren(ctx, t)
	case *plan.Retrieve:
		scan, _, err := lowerRetrieve(ctx, t, nil, h)
		return scan, err
	case *plan.Join:
		return lowerJoin(ctx, t)
	case *plan.Aggregate:
		return lowerAggregate(ctx, t)
	case *plan.Sort:
		return lowerSort(ctx, t, h)
	case *plan.Distinct:
		return lowerDistinct(ctx, t)
	case *plan.LimitOffset:
		return lowerLimitOffset(ctx, t, h)
	default:
		return transformChildren(ctx, n)
	}
}

// transformChildren is the default rewrite: recurse into every
// relational input (no ordering/limit hint, since only Sort/LimitOffset/
// Aggregate know how to construct one), recurse into every scalar child
// (including descending into correlated subquery bodies), rebuild the
// node via its own WithRelations/WithChildren so attribute identity and
// node-specific fields survive, and annotate the result.
func transformChildren(ctx *sql.Context, n plan.Node) (plan.Node, error) {
	rels := n.Relations()
	newRels := make([]plan.Node, len(rels))
	for i, r := range rels {
		nr, err := optimizeRel(ctx, r, hint{})
		if err != nil {
			return nil, err
		}
		newRels[i] = nr
	}
	cur := n
	if len(rels) > 0 {
		var err error
		cur, err = cur.WithRelations(newRels...)
		if err != nil {
			return nil, err
		}
	}
	children := cur.Children()
	if len(children) > 0 {
		newChildren := make([]expression.Expression, len(children))
		for i, c := range children {
			nc, err := optimizeExpr(ctx, c)
			if err != nil {
				return nil, err
			}
			newChildren[i] = nc
		}
		var err error
		cur, err = cur.WithChildren(newChildren...)
		if err != nil {
			return nil, err
		}
	}
	return annotate(cur, newRels)
}

// optimizeExpr walks a scalar expression tree looking for correlated or
// uncorrelated subquery bodies (ScalarSubquery.Relation, In.Subquery) and
// recursively optimizes them in place; ScalarSubquery.Relation is opaque
// interface{} specifically to avoid an import cycle with package plan,
// so it is never reachable through any Node.Relations() walk and must be
// found by walking scalar Children() instead.
func optimizeExpr(ctx *sql.Context, e expression.Expression) (expression.Expression, error) {
	if sub, ok := e.(*expression.ScalarSubquery); ok {
		rel, ok := sub.Relation.(plan.Node)
		if !ok {
			return nil, sql.ErrInvariantViolation.New("scalar subquery relation is not a plan.Node")
		}
		opt, err := optimizeRel(ctx, rel, hint{})
		if err != nil {
			return nil, err
		}
		sub.Relation = opt
		return sub, nil
	}
	children := e.Children()
	if len(children) == 0 {
		return e, nil
	}
	newChildren := make([]expression.Expression, len(children))
	changed := false
	for i, c := range children {
		nc, err := optimizeExpr(ctx, c)
		if err != nil {
			return nil, err
		}
		newChildren[i] = nc
		if nc != c {
			changed = true
		}
	}
	if !changed {
		return e, nil
	}
	return e.WithChildren(newChildren...)
}

// annotate computes n's PhysicalProperties from its already-annotated
// children (optimizeRel always annotates before returning, so every
// entry in children carries a non-nil Physical()) and installs them via
// the promoted SetPhysical, enforcing I2 for every node the optimizer
// touches.
func annotate(n plan.Node, children []plan.Node) (plan.Node, error) {
	childProps := make([]*plan.PhysicalProperties, len(children))
	for i, c := range children {
		childProps[i] = c.Physical()
	}
	props := n.ComputePhysical(childProps)
	ps, ok := n.(physSetter)
	if !ok {
		return nil, sql.ErrInvariantViolation.New("node does not support physical annotation")
	}
	ps.SetPhysical(props)
	return n, nil
}

// --- Access-path selection -------------------------------------------

func lowerFilterOverRetrieve(ctx *sql.Context, f *plan.Filter, ret *plan.Retrieve, h hint) (plan.Node, error) {
	conjuncts := flattenAnd(f.Predicate)
	var constraints []sql.FilterConstraint
	var constraintExprs []expression.Expression
	var alwaysResidual []expression.Expression
	for _, c := range conjuncts {
		if fc, ok := matchConstraint(ctx, c, ret.Ref); ok {
			constraints = append(constraints, fc)
			constraintExprs = append(constraintExprs, c)
			continue
		}
		alwaysResidual = append(alwaysResidual, c)
	}

	scan, handled, err := lowerRetrieve(ctx, ret, constraints, h)
	if err != nil {
		return nil, err
	}

	residual := append([]expression.Expression{}, alwaysResidual...)
	for i, wasHandled := range handled {
		if !wasHandled {
			residual = append(residual, constraintExprs[i])
		}
	}
	if len(residual) == 0 {
		return scan, nil
	}
	// The residual predicate still drops rows after the scan, so the scan
	// must not stop early at a LIMIT hint.
	if ts, ok := scan.(*plan.TableScan); ok {
		ts.Limit = 0
	}

	pred, err := optimizeExpr(ctx, joinAnd(residual))
	if err != nil {
		return nil, err
	}
	filt := plan.NewFilter(pred, scan)
	return annotate(filt, []plan.Node{scan})
}

// lowerRetrieve negotiates an access plan for ref and installs the
// resulting TableScan, per §4.D steps 1-2: the enclosing Filter removes
// constraints handledFilters marks true and keeps the rest as residual.
func lowerRetrieve(ctx *sql.Context, ret *plan.Retrieve, filters []sql.FilterConstraint, h hint) (plan.Node, []bool, error) {
	ref := ret.Ref
	rows := ref.EstimatedRows()
	req := sql.AccessPlanRequest{
		Columns:          ref.Schema.Columns,
		Filters:          filters,
		RequiredOrdering: resolveOrdering(h.ordering, ref),
		Limit:            h.limit,
		EstimatedRows:    &rows,
	}
	ap, ok := ref.Module.GetBestAccessPlan(ctx, ref.Schema, req)
	if !ok {
		return nil, nil, quereuserr.ErrNoBestAccessPlan.New(ref.Schema.Name)
	}
	if len(ap.HandledFilters) != len(filters) {
		return nil, nil, quereuserr.ErrHandledFiltersLength.New(ref.Schema.Name, len(ap.HandledFilters), len(filters))
	}
	scan := plan.NewTableScan(ref, filters, ap, h.limit)
	if _, err := annotate(scan, nil); err != nil {
		return nil, nil, err
	}
	return scan, ap.HandledFilters, nil
}

// resolveOrdering maps an ordering hint expressed over attribute ids
// into the column-index form getBestAccessPlan expects, stopping at the
// first attribute that isn't one of ref's own columns (an ordering
// requirement that reaches past a renaming node the optimizer didn't
// see through gets dropped rather than mis-resolved).
func resolveOrdering(attrs []plan.OrderingAttr, ref *plan.TableReference) []sql.OrderingKey {
	var out []sql.OrderingKey
	for _, a := range attrs {
		idx, ok := columnIndex(ref, a.Attr)
		if !ok {
			break
		}
		out = append(out, sql.OrderingKey{ColumnIndex: idx, Desc: a.Desc})
	}
	return out
}

func columnIndex(ref *plan.TableReference, id sql.AttrId) (int, bool) {
	idx := ref.Rel.AttrIndex(id)
	if idx < 0 {
		return 0, false
	}
	return idx, true
}

// matchConstraint recognizes the predicate shapes §4.D lists as
// extractable FilterConstraints: a column compared to a constant, a
// column IS [NOT] NULL, and a column IN/NOT IN a constant list.
func matchConstraint(ctx *sql.Context, e expression.Expression, ref *plan.TableReference) (sql.FilterConstraint, bool) {
	if b, ok := e.(*expression.BinaryOp); ok {
		if op, ok := filterOpFor(b.Op); ok {
			if cr, ok := b.Left.(*expression.ColumnReference); ok {
				if idx, ok := columnIndex(ref, cr.Id); ok {
					if v, ok := constantValue(ctx, b.Right); ok {
						return sql.FilterConstraint{ColumnIndex: idx, Op: op, Value: v, Usable: true}, true
					}
				}
			}
			if cr, ok := b.Right.(*expression.ColumnReference); ok {
				if idx, ok := columnIndex(ref, cr.Id); ok {
					if v, ok := constantValue(ctx, b.Left); ok {
						return sql.FilterConstraint{ColumnIndex: idx, Op: flipOp(op), Value: v, Usable: true}, true
					}
				}
			}
		}
		return sql.FilterConstraint{}, false
	}

	if u, ok := e.(*expression.UnaryOp); ok {
		if u.Op != expression.OpIsNull && u.Op != expression.OpIsNotNull {
			return sql.FilterConstraint{}, false
		}
		cr, ok := u.Child.(*expression.ColumnReference)
		if !ok {
			return sql.FilterConstraint{}, false
		}
		idx, ok := columnIndex(ref, cr.Id)
		if !ok {
			return sql.FilterConstraint{}, false
		}
		op := sql.FilterIsNull
		if u.Op == expression.OpIsNotNull {
			op = sql.FilterIsNotNull
		}
		return sql.FilterConstraint{ColumnIndex: idx, Op: op, Usable: true}, true
	}

	if in, ok := e.(*expression.In); ok && in.Subquery == nil {
		cr, ok := in.Value.(*expression.ColumnReference)
		if !ok {
			return sql.FilterConstraint{}, false
		}
		idx, ok := columnIndex(ref, cr.Id)
		if !ok {
			return sql.FilterConstraint{}, false
		}
		vals := make([]interface{}, 0, len(in.List))
		for _, item := range in.List {
			v, ok := constantValue(ctx, item)
			if !ok {
				return sql.FilterConstraint{}, false
			}
			vals = append(vals, v)
		}
		op := sql.FilterIn
		if in.Negate {
			op = sql.FilterNotIn
		}
		return sql.FilterConstraint{ColumnIndex: idx, Op: op, Value: vals, Usable: true}, true
	}

	return sql.FilterConstraint{}, false
}

func filterOpFor(op expression.BinaryOpKind) (sql.FilterOp, bool) {
	switch op {
	case expression.OpEQ:
		return sql.FilterEQ, true
	case expression.OpGT:
		return sql.FilterGT, true
	case expression.OpGE:
		return sql.FilterGE, true
	case expression.OpLT:
		return sql.FilterLT, true
	case expression.OpLE:
		return sql.FilterLE, true
	}
	return 0, false
}

// flipOp swaps a comparison's direction when the column operand turned
// out to be on the right ("5 < x" means "x > 5").
func flipOp(op sql.FilterOp) sql.FilterOp {
	switch op {
	case sql.FilterGT:
		return sql.FilterLT
	case sql.FilterGE:
		return sql.FilterLE
	case sql.FilterLT:
		return sql.FilterGT
	case sql.FilterLE:
		return sql.FilterGE
	}
	return op
}

// constantValue reports the statically-known value of e if it is a
// literal or a bound statement parameter; anything else (most commonly a
// correlated outer column reference) isn't available at plan time, per
// §4.D's "usable" flag.
func constantValue(ctx *sql.Context, e expression.Expression) (interface{}, bool) {
	switch e.(type) {
	case *expression.Literal, *expression.ParameterReference:
		v, err := e.Eval(ctx)
		if err != nil {
			return nil, false
		}
		return v, true
	}
	return nil, false
}

func flattenAnd(e expression.Expression) []expression.Expression {
	if b, ok := e.(*expression.BinaryOp); ok && b.Op == expression.OpAnd {
		return append(flattenAnd(b.Left), flattenAnd(b.Right)...)
	}
	return []expression.Expression{e}
}

func joinAnd(exprs []expression.Expression) expression.Expression {
	if len(exprs) == 0 {
		return nil
	}
	out := exprs[0]
	for _, e := range exprs[1:] {
		nullable := out.Type().Nullable || e.Type().Nullable
		out = expression.NewBinaryOp(expression.OpAnd, out, e, sql.Type{Affinity: sql.Integer, Nullable: nullable})
	}
	return out
}

// --- Join lowering -----------------------------------------------------

func lowerJoin(ctx *sql.Context, j *plan.Join) (plan.Node, error) {
	left, err := optimizeRel(ctx, j.Left, hint{})
	if err != nil {
		return nil, err
	}
	right, err := optimizeRel(ctx, j.Right, hint{})
	if err != nil {
		return nil, err
	}
	var cond expression.Expression
	if j.Condition != nil {
		cond, err = optimizeExpr(ctx, j.Condition)
		if err != nil {
			return nil, err
		}
	}
	nl := plan.NewJoin(j.Kind, cond, left, right)
	if _, err := annotate(nl, []plan.Node{left, right}); err != nil {
		return nil, err
	}

	if cond == nil || j.Kind == plan.JoinCross {
		return nl, nil
	}
	pairs, residual := extractEquiPairs(cond, left.RelType(), right.RelType())
	if len(pairs) == 0 {
		return nl, nil
	}
	// Build the smaller side's hash table, per §4.D "bounded-size build
	// side"; the cost model's row estimates are the only signal available
	// at this point since no statistics-driven size bound is tracked.
	buildRight := right.EstimatedRows() <= left.EstimatedRows()
	bj := plan.NewBloomJoin(nl, pairs, buildRight, residual)
	if _, err := annotate(bj, []plan.Node{left, right}); err != nil {
		return nil, err
	}
	return bj, nil
}

func extractEquiPairs(cond expression.Expression, left, right sql.RelationType) ([]plan.EquiPair, expression.Expression) {
	leftIds := attrSet(left)
	rightIds := attrSet(right)
	conjuncts := flattenAnd(cond)
	var pairs []plan.EquiPair
	var residual []expression.Expression
	for _, c := range conjuncts {
		if b, ok := c.(*expression.BinaryOp); ok && b.Op == expression.OpEQ {
			lc, lok := b.Left.(*expression.ColumnReference)
			rc, rok := b.Right.(*expression.ColumnReference)
			if lok && rok {
				if leftIds[lc.Id] && rightIds[rc.Id] {
					pairs = append(pairs, plan.EquiPair{Left: lc.Id, Right: rc.Id})
					continue
				}
				if rightIds[lc.Id] && leftIds[rc.Id] {
					pairs = append(pairs, plan.EquiPair{Left: rc.Id, Right: lc.Id})
					continue
				}
			}
		}
		residual = append(residual, c)
	}
	return pairs, joinAnd(residual)
}

func attrSet(rel sql.RelationType) map[sql.AttrId]bool {
	out := make(map[sql.AttrId]bool, len(rel.Attributes))
	for _, a := range rel.Attributes {
		out[a.Id] = true
	}
	return out
}

// --- Aggregate lowering --------------------------------------------------

func lowerAggregate(ctx *sql.Context, a *plan.Aggregate) (plan.Node, error) {
	groupOrdering := groupByOrdering(a.GroupAttributes())
	in, err := optimizeRel(ctx, a.Input, hint{ordering: groupOrdering})
	if err != nil {
		return nil, err
	}

	children := a.Children()
	newChildren := make([]expression.Expression, len(children))
	for i, c := range children {
		nc, err := optimizeExpr(ctx, c)
		if err != nil {
			return nil, err
		}
		newChildren[i] = nc
	}
	rewritten, err := a.WithChildren(newChildren...)
	if err != nil {
		return nil, err
	}

	source := in
	needsSort := len(a.GroupBy) > 0 && !plan.SatisfiesPrefix(in.Physical().Ordering, groupOrdering)
	if needsSort {
		keys := make([]plan.SortKey, len(a.GroupBy))
		for i, g := range newChildren[:len(a.GroupBy)] {
			keys[i] = plan.SortKey{Expr: g}
		}
		sortNode := plan.NewSort(keys, in)
		if _, err := annotate(sortNode, []plan.Node{in}); err != nil {
			return nil, err
		}
		source = sortNode
	}

	withInput, err := rewritten.WithRelations(source)
	if err != nil {
		return nil, err
	}
	agg, ok := withInput.(*plan.Aggregate)
	if !ok {
		return nil, sql.ErrInvariantViolation.New("Aggregate rewrite produced non-Aggregate node")
	}
	sa := plan.NewStreamAggregate(agg)
	return annotate(sa, []plan.Node{source})
}

func groupByOrdering(attrs []sql.Attribute) []plan.OrderingAttr {
	out := make([]plan.OrderingAttr, len(attrs))
	for i, a := range attrs {
		out[i] = plan.OrderingAttr{Attr: a.Id}
	}
	return out
}

// --- Sort / Distinct elision --------------------------------------------

// lowerSort elides the Sort when its input (optimized with this Sort's
// keys passed down as an ordering hint) already provides that ordering
// as a prefix, per §4.D step 3.
func lowerSort(ctx *sql.Context, s *plan.Sort, h hint) (plan.Node, error) {
	required := sortOrdering(s.Keys)
	in, err := optimizeRel(ctx, s.Input, hint{ordering: required, limit: h.limit})
	if err != nil {
		return nil, err
	}
	if plan.SatisfiesPrefix(in.Physical().Ordering, required) {
		return in, nil
	}
	keys := make([]plan.SortKey, len(s.Keys))
	for i, k := range s.Keys {
		e, err := optimizeExpr(ctx, k.Expr)
		if err != nil {
			return nil, err
		}
		keys[i] = plan.SortKey{Expr: e, Desc: k.Desc}
	}
	out := plan.NewSort(keys, in)
	return annotate(out, []plan.Node{in})
}

func sortOrdering(keys []plan.SortKey) []plan.OrderingAttr {
	var out []plan.OrderingAttr
	for _, k := range keys {
		cr, ok := k.Expr.(*expression.ColumnReference)
		if !ok {
			break
		}
		out = append(out, plan.OrderingAttr{Attr: cr.Id, Desc: k.Desc})
	}
	return out
}

// lowerDistinct elides the Distinct when its input already publishes any
// unique key, per §4.D step 4's isSet-redundancy rule; this is a
// heuristic (a unique key over a strict subset of columns doesn't
// strictly guarantee full-row distinctness) accepted for the same reason
// the cost model is heuristic rather than exhaustive.
func lowerDistinct(ctx *sql.Context, d *plan.Distinct) (plan.Node, error) {
	in, err := optimizeRel(ctx, d.Input, hint{})
	if err != nil {
		return nil, err
	}
	if len(in.Physical().UniqueKeys) > 0 {
		return in, nil
	}
	out := plan.NewDistinct(in)
	return annotate(out, []plan.Node{in})
}

// lowerLimitOffset passes its own bound down as a hint only when it sits
// directly above the scan path (optionally through a single Filter),
// since pushing a limit further down through an arbitrary subtree can
// change which rows are returned.
func lowerLimitOffset(ctx *sql.Context, l *plan.LimitOffset, h hint) (plan.Node, error) {
	childHint := hint{}
	if l.Offset == nil {
		if lit, ok := l.Limit.(*expression.Literal); ok {
			if n, ok := toInt64(lit.Value); ok {
				switch l.Input.(type) {
				case *plan.Retrieve:
					childHint.limit = n
				case *plan.Filter:
					childHint.limit = n
				}
			}
		}
	}
	in, err := optimizeRel(ctx, l.Input, childHint)
	if err != nil {
		return nil, err
	}
	var limit, offset expression.Expression
	if l.Limit != nil {
		limit, err = optimizeExpr(ctx, l.Limit)
		if err != nil {
			return nil, err
		}
	}
	if l.Offset != nil {
		offset, err = optimizeExpr(ctx, l.Offset)
		if err != nil {
			return nil, err
		}
	}
	out := plan.NewLimitOffset(limit, offset, in)
	return annotate(out, []plan.Node{in})
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}
