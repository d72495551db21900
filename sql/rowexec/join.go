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
	"io"

	"github.com/spf13/cast"

	roaring "github.com/RoaringBitmap/roaring/v2"

	"github.com/dolthub/quereus/sql"
	"github.com/dolthub/quereus/sql/expression"
	"github.com/dolthub/quereus/sql/plan"
)

// evalBoolCondition evaluates cond with ctx's current row context,
// treating NULL (SQL's UNKNOWN) the same as false, per join/filter
// predicate semantics.
func evalBoolCondition(ctx *sql.Context, cond expression.Expression) (bool, error) {
	if cond == nil {
		return true, nil
	}
	v, err := cond.Eval(ctx)
	if err != nil {
		return false, err
	}
	if v == nil {
		return false, nil
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return false, sql.ErrTypeMismatch.New(err.Error())
	}
	return b, nil
}

// compileJoin lowers a nested-loop Join. The right side is materialized
// once per execution (nested loop requires re-scanning it per outer row
// anyway, and RIGHT/FULL outer semantics require knowing, after the
// whole left side has streamed past, which right rows were never
// matched); a roaring bitmap records matched right-row positions
// sparsely for that check.
func (c *Compiler) compileJoin(n *plan.Join) (*Instruction, error) {
	left, err := c.compileChild(n, 0)
	if err != nil {
		return nil, err
	}
	right, err := c.compileChild(n, 1)
	if err != nil {
		return nil, err
	}
	if n.Condition != nil {
		if err := c.wireExpr(n.Condition); err != nil {
			return nil, err
		}
	}
	leftDesc := n.Left.RelType().Descriptor()
	rightDesc := n.Right.RelType().Descriptor()
	leftWidth := len(n.Left.RelType().Attributes)
	rightWidth := len(n.Right.RelType().Attributes)
	kind := n.Kind
	cond := n.Condition
	return &Instruction{
		Note:   n.String(),
		Params: []*Instruction{left, right},
		Run: func(ctx *sql.Context, args []interface{}) (interface{}, error) {
			leftIter := args[0].(sql.RowIter)
			rightIter := args[1].(sql.RowIter)
			rightRows, err := sql.RowsToSlice(ctx, rightIter)
			if err != nil {
				_ = leftIter.Close(ctx)
				return nil, err
			}
			return &nestedLoopJoinIter{
				left:       leftIter,
				rightRows:  rightRows,
				leftDesc:   leftDesc,
				rightDesc:  rightDesc,
				leftWidth:  leftWidth,
				rightWidth: rightWidth,
				kind:       kind,
				cond:       cond,
				matched:    roaring.New(),
			}, nil
		},
	}, nil
}

type nestedLoopJoinIter struct {
	left       sql.RowIter
	rightRows  []sql.Row
	leftDesc   sql.RowDescriptor
	rightDesc  sql.RowDescriptor
	leftWidth  int
	rightWidth int
	kind       plan.JoinKind
	cond       expression.Expression
	matched    *roaring.Bitmap

	curLeft     sql.Row
	curLeftOK   bool
	curLeftHit  bool
	rightPos    int
	exhausted   bool
	emitUnmatch bool
	unmatchPos  int
}

func nullRow(width int) sql.Row {
	return make(sql.Row, width)
}

func concatRows(left, right sql.Row) sql.Row {
	out := make(sql.Row, len(left)+len(right))
	copy(out, left)
	copy(out[len(left):], right)
	return out
}

func (it *nestedLoopJoinIter) advanceLeft(ctx *sql.Context) error {
	row, err := it.left.Next(ctx)
	if err != nil {
		return err
	}
	it.curLeft = row
	it.curLeftOK = true
	it.curLeftHit = false
	it.rightPos = 0
	return nil
}

func (it *nestedLoopJoinIter) Next(ctx *sql.Context) (sql.Row, error) {
	if it.emitUnmatch {
		for it.unmatchPos < len(it.rightRows) {
			idx := it.unmatchPos
			it.unmatchPos++
			if !it.matched.Contains(uint32(idx)) {
				return concatRows(nullRow(it.leftWidth), it.rightRows[idx]), nil
			}
		}
		return nil, io.EOF
	}

	if !it.curLeftOK {
		if err := it.advanceLeft(ctx); err != nil {
			if err == io.EOF {
				it.exhausted = true
				if it.kind == plan.JoinRight || it.kind == plan.JoinFull {
					it.emitUnmatch = true
					return it.Next(ctx)
				}
				return nil, io.EOF
			}
			return nil, err
		}
	}

	for {
		for it.rightPos < len(it.rightRows) {
			rightRow := it.rightRows[it.rightPos]
			idx := it.rightPos
			it.rightPos++

			popL := ctx.PushRow(it.leftDesc, it.curLeft)
			popR := ctx.PushRow(it.rightDesc, rightRow)
			ok, err := evalBoolCondition(ctx, it.cond)
			popR()
			popL()
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			it.curLeftHit = true
			it.matched.Add(uint32(idx))
			return concatRows(it.curLeft, rightRow), nil
		}

		// Exhausted the right side for this left row.
		if !it.curLeftHit && (it.kind == plan.JoinLeft || it.kind == plan.JoinFull) {
			row := concatRows(it.curLeft, nullRow(it.rightWidth))
			if err := it.advanceLeft(ctx); err != nil {
				if err == io.EOF {
					it.exhausted = true
					it.curLeftOK = false
				} else {
					return nil, err
				}
			}
			return row, nil
		}
		if err := it.advanceLeft(ctx); err != nil {
			if err == io.EOF {
				it.exhausted = true
				it.curLeftOK = false
				if it.kind == plan.JoinRight || it.kind == plan.JoinFull {
					it.emitUnmatch = true
					return it.Next(ctx)
				}
				return nil, io.EOF
			}
			return nil, err
		}
	}
}

func (it *nestedLoopJoinIter) Close(ctx *sql.Context) error { return it.left.Close(ctx) }

// compileBloomJoin lowers a hash-join: the build side (chosen by
// BuildRight) is hashed once on its EquiPairs keys; the probe side
// streams, looking up candidate matches and verifying them (equality
// plus any Residual predicate). A roaring bitmap tracks matched
// build-side row positions so LEFT/RIGHT/FULL outer completeness can
// emit the build side's unmatched rows afterward, mirroring the
// nested-loop Join's approach.
func (c *Compiler) compileBloomJoin(n *plan.BloomJoin) (*Instruction, error) {
	left, err := c.compileChild(n.Join, 0)
	if err != nil {
		return nil, err
	}
	right, err := c.compileChild(n.Join, 1)
	if err != nil {
		return nil, err
	}
	if n.Residual != nil {
		if err := c.wireExpr(n.Residual); err != nil {
			return nil, err
		}
	}
	leftDesc := n.Left.RelType().Descriptor()
	rightDesc := n.Right.RelType().Descriptor()
	leftWidth := len(n.Left.RelType().Attributes)
	rightWidth := len(n.Right.RelType().Attributes)
	leftTypes := attrTypes(n.Left.RelType().Attributes)
	rightTypes := attrTypes(n.Right.RelType().Attributes)
	pairs := n.EquiPairs
	buildRight := n.BuildRight
	kind := n.Kind
	residual := n.Residual

	leftIdx := make([]int, len(pairs))
	rightIdx := make([]int, len(pairs))
	for i, p := range pairs {
		leftIdx[i] = n.Left.RelType().AttrIndex(p.Left)
		rightIdx[i] = n.Right.RelType().AttrIndex(p.Right)
	}

	return &Instruction{
		Note:   n.String(),
		Params: []*Instruction{left, right},
		Run: func(ctx *sql.Context, args []interface{}) (interface{}, error) {
			leftIter := args[0].(sql.RowIter)
			rightIter := args[1].(sql.RowIter)

			var buildRows []sql.Row
			var probeIter sql.RowIter
			var buildCols, probeCols []int
			var buildTypes []sql.Type
			var buildWidth, probeWidth int
			var buildIsRight bool

			if buildRight {
				rows, err := sql.RowsToSlice(ctx, rightIter)
				if err != nil {
					_ = leftIter.Close(ctx)
					return nil, err
				}
				buildRows, probeIter = rows, leftIter
				buildCols, probeCols = rightIdx, leftIdx
				buildTypes = rightTypes
				buildWidth, probeWidth = rightWidth, leftWidth
				buildIsRight = true
			} else {
				rows, err := sql.RowsToSlice(ctx, leftIter)
				if err != nil {
					_ = rightIter.Close(ctx)
					return nil, err
				}
				buildRows, probeIter = rows, rightIter
				buildCols, probeCols = leftIdx, rightIdx
				buildTypes = leftTypes
				buildWidth, probeWidth = leftWidth, rightWidth
				buildIsRight = false
			}

			index := make(map[rowKey][]int, len(buildRows))
			for i, row := range buildRows {
				k := hashRow(row, buildCols)
				index[k] = append(index[k], i)
			}

			probeNeedsPad := kind == plan.JoinFull ||
				(kind == plan.JoinLeft && buildIsRight) ||
				(kind == plan.JoinRight && !buildIsRight)
			buildNeedsPad := kind == plan.JoinFull ||
				(kind == plan.JoinLeft && !buildIsRight) ||
				(kind == plan.JoinRight && buildIsRight)

			return &bloomJoinIter{
				probe:         probeIter,
				buildRows:     buildRows,
				index:         index,
				buildCols:     buildCols,
				probeCols:     probeCols,
				buildTypes:    buildTypes,
				buildWidth:    buildWidth,
				probeWidth:    probeWidth,
				buildIsRight:  buildIsRight,
				leftDesc:      leftDesc,
				rightDesc:     rightDesc,
				kind:          kind,
				residual:      residual,
				matched:       roaring.New(),
				probeNeedsPad: probeNeedsPad,
				buildNeedsPad: buildNeedsPad,
			}, nil
		},
	}, nil
}

type bloomJoinIter struct {
	probe        sql.RowIter
	buildRows    []sql.Row
	index        map[rowKey][]int
	buildCols    []int
	probeCols    []int
	buildTypes   []sql.Type
	buildWidth   int
	probeWidth   int
	buildIsRight bool
	leftDesc     sql.RowDescriptor
	rightDesc    sql.RowDescriptor
	kind         plan.JoinKind
	residual     expression.Expression
	matched      *roaring.Bitmap

	// probeNeedsPad: an unmatched probe row must still be emitted, padded
	// with nulls on the build side (LEFT JOIN probing the left, RIGHT
	// JOIN probing the right, or FULL either way).
	probeNeedsPad bool
	// buildNeedsPad: after the probe side is exhausted, every build row
	// never matched must still be emitted, padded with nulls on the
	// probe side.
	buildNeedsPad bool

	curProbe    sql.Row
	candidates  []int
	candPos     int
	curHit      bool
	emitUnmatch bool
	unmatchPos  int
}

func (it *bloomJoinIter) makeRow(probe, build sql.Row) sql.Row {
	if it.buildIsRight {
		return concatRows(probe, build)
	}
	return concatRows(build, probe)
}

// makeProbeUnmatchedRow pairs an unmatched probe row with nulls on the
// build side.
func (it *bloomJoinIter) makeProbeUnmatchedRow(probe sql.Row) sql.Row {
	if it.buildIsRight {
		return concatRows(probe, nullRow(it.buildWidth))
	}
	return concatRows(nullRow(it.buildWidth), probe)
}

// makeBuildUnmatchedRow pairs an unmatched build row with nulls on the
// probe side.
func (it *bloomJoinIter) makeBuildUnmatchedRow(build sql.Row) sql.Row {
	if it.buildIsRight {
		return concatRows(nullRow(it.probeWidth), build)
	}
	return concatRows(build, nullRow(it.probeWidth))
}

func (it *bloomJoinIter) pushBoth(ctx *sql.Context, probe, build sql.Row) func() {
	var leftRow, rightRow sql.Row
	if it.buildIsRight {
		leftRow, rightRow = probe, build
	} else {
		leftRow, rightRow = build, probe
	}
	popL := ctx.PushRow(it.leftDesc, leftRow)
	popR := ctx.PushRow(it.rightDesc, rightRow)
	return func() { popR(); popL() }
}

func (it *bloomJoinIter) advanceProbe(ctx *sql.Context) error {
	row, err := it.probe.Next(ctx)
	if err != nil {
		return err
	}
	it.curProbe = row
	it.curHit = false
	k := hashRow(row, it.probeCols)
	it.candidates = it.index[k]
	it.candPos = 0
	return nil
}

// probeExhausted transitions from streaming the probe side to either the
// build-side unmatched pass (if needed) or EOF.
func (it *bloomJoinIter) probeExhausted() {
	it.curProbe = nil
	if it.buildNeedsPad {
		it.emitUnmatch = true
	}
}

func (it *bloomJoinIter) Next(ctx *sql.Context) (sql.Row, error) {
	if it.emitUnmatch {
		for it.unmatchPos < len(it.buildRows) {
			idx := it.unmatchPos
			it.unmatchPos++
			if !it.matched.Contains(uint32(idx)) {
				return it.makeBuildUnmatchedRow(it.buildRows[idx]), nil
			}
		}
		return nil, io.EOF
	}

	if it.curProbe == nil {
		if err := it.advanceProbe(ctx); err != nil {
			if err == io.EOF {
				it.probeExhausted()
				return it.Next(ctx)
			}
			return nil, err
		}
	}

	for {
		for it.candPos < len(it.candidates) {
			idx := it.candidates[it.candPos]
			it.candPos++
			buildRow := it.buildRows[idx]
			sameKey := true
			for i, bc := range it.buildCols {
				cmp, _ := sql.Compare(buildRow[bc], it.curProbe[it.probeCols[i]], it.buildTypes[bc])
				if cmp != 0 {
					sameKey = false
					break
				}
			}
			if !sameKey {
				// A hash collision across distinct key values.
				continue
			}
			pop := it.pushBoth(ctx, it.curProbe, buildRow)
			ok, err := evalBoolCondition(ctx, it.residual)
			pop()
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			it.curHit = true
			it.matched.Add(uint32(idx))
			return it.makeRow(it.curProbe, buildRow), nil
		}

		if !it.curHit && it.probeNeedsPad {
			row := it.makeProbeUnmatchedRow(it.curProbe)
			if err := it.advanceProbe(ctx); err != nil {
				if err != io.EOF {
					return nil, err
				}
				it.probeExhausted()
			}
			return row, nil
		}
		if err := it.advanceProbe(ctx); err != nil {
			if err == io.EOF {
				it.probeExhausted()
				return it.Next(ctx)
			}
			return nil, err
		}
	}
}

func (it *bloomJoinIter) Close(ctx *sql.Context) error { return it.probe.Close(ctx) }
