// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package wgtosg

import (
	"github.com/gomlx/xetile/pkg/ir"
	"github.com/gomlx/xetile/pkg/ir/dataflow"
	"github.com/gomlx/xetile/pkg/transforms/conversion"
)

// mappedVectorKinds are the vector ops decomposed according to their "map" attribute.
var mappedVectorKinds = []ir.Kind{
	ir.KindConstant, ir.KindAddF, ir.KindExp, ir.KindSqrt, ir.KindExtF, ir.KindExtSI, ir.KindExtUI,
	ir.KindFPToSI, ir.KindFPToUI, ir.KindUIToFP, ir.KindSIToFP, ir.KindTruncF, ir.KindTruncI, ir.KindCmpI,
	ir.KindCmpF, ir.KindIndexCastUI, ir.KindSelect, ir.KindFPowI, ir.KindIndexCast, ir.KindBitcast,
	ir.KindTranspose, ir.KindBroadcast, ir.KindMultiReduction, ir.KindShapeCast, ir.KindCreateMask,
}

// hasWgMap returns whether t is a tile type still distributed over the workgroup.
func hasWgMap(t ir.Type) bool {
	tile, ok := t.(*ir.TileType)
	return ok && tile.WgMap != nil
}

// producerHasMap returns whether the op defining a vector still carries a workgroup map: for load_tile, the map
// of the loaded tile; otherwise the op's own map. Block arguments have none.
func producerHasMap(op *ir.Op) bool {
	if op == nil {
		return false
	}
	if op.Kind() == ir.KindLoadTile {
		return hasWgMap(op.Operand(0).Type())
	}
	return op.HasMap()
}

// isWorkgroupValue returns whether a loop-carried value is still workgroup-level.
//
// Vector iter args are followed back to their loop init with dataflow.PreLoopValue. Values waiting for their
// replacement to be committed count as workgroup-level: results of erased ops, and arguments of loop bodies that
// were already re-created (they are detached from their block).
func isWorkgroupValue(v *ir.Value) bool {
	switch v.Type().(type) {
	case *ir.TileType:
		return hasWgMap(v.Type())
	case *ir.VectorType:
		if v.IsBlockArgument() {
			v = dataflow.PreLoopValue(v)
		}
		def := v.DefiningOp()
		if def == nil {
			return !v.IsBlockArgument()
		}
		return def.IsErased() || producerHasMap(def)
	}
	return false
}

// NewTarget returns the legality rules of the decomposition: an op is legal once it's subgroup-level.
func NewTarget() *conversion.Target {
	target := conversion.NewTarget()
	operandTileLegal := func(idx int) conversion.LegalityFn {
		return func(op *ir.Op) bool { return !hasWgMap(op.Operand(idx).Type()) }
	}
	target.AddDynamicallyLegal(func(op *ir.Op) bool { return !hasWgMap(op.Result(0).Type()) },
		ir.KindInitTile, ir.KindUpdateTileOffset)
	target.AddDynamicallyLegal(operandTileLegal(0), ir.KindLoadTile, ir.KindLoadGather, ir.KindPrefetchTile)
	target.AddDynamicallyLegal(operandTileLegal(1), ir.KindStoreTile, ir.KindStoreScatter)
	target.AddDynamicallyLegal(func(op *ir.Op) bool {
		data, _ := op.Data().(*ir.TileMMAData)
		return data == nil || data.WgMapA == nil
	}, ir.KindTileMMA)
	target.AddDynamicallyLegal(func(op *ir.Op) bool {
		for _, init := range ir.ForInits(op) {
			if isWorkgroupValue(init) {
				return false
			}
		}
		return true
	}, ir.KindFor)
	target.AddDynamicallyLegal(func(op *ir.Op) bool {
		for _, v := range op.Operands() {
			if isWorkgroupValue(v) {
				return false
			}
		}
		return true
	}, ir.KindYield)
	target.AddDynamicallyLegal(func(op *ir.Op) bool { return op.Map == nil }, mappedVectorKinds...)
	target.AddLegal(ir.KindIf)
	target.AddIllegal(ir.KindConvertLayout)
	return target
}
