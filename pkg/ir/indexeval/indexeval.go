// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package indexeval evaluates index computations of the IR for a given subgroup.
//
// It's used to check decompositions: the offsets of every subgroup-level tile can be computed for each subgroup
// id, and the union checked against the workgroup-level tile.
package indexeval

import (
	"github.com/gomlx/xetile/pkg/ir"
	"github.com/pkg/errors"
)

// Evaluator computes index values as seen by one subgroup. Results are memoized.
type Evaluator struct {
	SubgroupID int64

	cache map[*ir.Value]int64
}

// New creates an Evaluator for the given subgroup id.
func New(subgroupID int64) *Evaluator {
	return &Evaluator{SubgroupID: subgroupID, cache: make(map[*ir.Value]int64)}
}

// Eval returns the value of v. It supports index/integer constants, the subgroup id, index arithmetic and
// index casts. Anything else (e.g. a block argument) returns an error.
func (e *Evaluator) Eval(v *ir.Value) (int64, error) {
	if result, found := e.cache[v]; found {
		return result, nil
	}
	op := v.DefiningOp()
	if op == nil {
		return 0, errors.Errorf("cannot evaluate block argument #%d of type %s", v.ArgNumber(), v.Type())
	}
	var result int64
	switch op.Kind() {
	case ir.KindConstant:
		c, ok := ir.ConstantIntValue(v)
		if !ok {
			return 0, errors.Errorf("constant of type %s is not a scalar integer", v.Type())
		}
		result = c
	case ir.KindSubgroupID:
		result = e.SubgroupID
	case ir.KindIndexCast, ir.KindIndexCastUI:
		x, err := e.Eval(op.Operand(0))
		if err != nil {
			return 0, err
		}
		result = x
	case ir.KindIndexAdd, ir.KindIndexMul, ir.KindIndexDivU, ir.KindIndexRemU:
		lhs, err := e.Eval(op.Operand(0))
		if err != nil {
			return 0, err
		}
		rhs, err := e.Eval(op.Operand(1))
		if err != nil {
			return 0, err
		}
		l, r := uint64(lhs), uint64(rhs)
		switch op.Kind() {
		case ir.KindIndexAdd:
			result = int64(l + r)
		case ir.KindIndexMul:
			result = int64(l * r)
		default:
			if r == 0 {
				return 0, errors.Errorf("%s by zero", op.Kind())
			}
			if op.Kind() == ir.KindIndexDivU {
				result = int64(l / r)
			} else {
				result = int64(l % r)
			}
		}
	default:
		return 0, errors.Errorf("cannot evaluate index value defined by %s", op.Kind())
	}
	e.cache[v] = result
	return result, nil
}

// EvalMixed evaluates a static or dynamic index.
func (e *Evaluator) EvalMixed(m ir.Mixed) (int64, error) {
	if m.Value == nil {
		return m.Const, nil
	}
	return e.Eval(m.Value)
}

// TileOffsets evaluates the offsets of an init_tile op.
func (e *Evaluator) TileOffsets(initOp *ir.Op) ([]int64, error) {
	if initOp.Kind() != ir.KindInitTile {
		return nil, errors.Errorf("TileOffsets requires %s, got %s", ir.KindInitTile, initOp.Kind())
	}
	mixed := ir.InitTileOffsets(initOp)
	offsets := make([]int64, len(mixed))
	for i, m := range mixed {
		var err error
		offsets[i], err = e.EvalMixed(m)
		if err != nil {
			return nil, errors.WithMessagef(err, "offset #%d", i)
		}
	}
	return offsets, nil
}
