// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package wgtosg

import (
	"github.com/gomlx/xetile/pkg/core/dtypes"
	"github.com/gomlx/xetile/pkg/ir"
	"github.com/gomlx/xetile/pkg/transforms/conversion"
)

// producerMap returns the workgroup map a value was produced with: for load_tile the map of the loaded tile,
// otherwise the map of the defining op. It returns nil for block arguments.
func producerMap(v *ir.Value) *ir.WorkGroupMap {
	def := v.DefiningOp()
	if def == nil {
		return nil
	}
	if def.Kind() == ir.KindLoadTile {
		if tile, ok := def.Operand(0).Type().(*ir.TileType); ok {
			return tile.WgMap
		}
		return nil
	}
	return def.Map
}

// isOneUseTranspose returns whether op is a (vector or tile) transpose whose result has a single use.
func isOneUseTranspose(op *ir.Op) bool {
	if op == nil || op.IsErased() {
		return false
	}
	return (op.Kind() == ir.KindTranspose || op.Kind() == ir.KindTileTranspose) && op.Result(0).HasOneUse()
}

// convertLayout moves a value between two workgroup maps through scratch memory: every subgroup stores its
// slice at the position given by the source map, waits on a barrier, and loads its slice at the position given
// by the result map.
//
// If the value comes from a transpose used only here, the transpose is folded: its input is stored through a
// transposed view of the scratch buffer, and the transpose is erased.
func (r *rules) convertLayout(op *ir.Op, adaptor *conversion.Adaptor, rw *conversion.Rewriter) conversion.Result {
	resultType, ok := op.Result(0).Type().(*ir.VectorType)
	if !ok || !isRank2Vector(op.Operand(0).Type()) {
		return conversion.Failure("source is not a 2D vector")
	}
	data := op.Data().(*ir.ConvertLayoutData)
	def := op.Operand(0).DefiningOp()
	foldTranspose := isOneUseTranspose(def)

	var srcMap *ir.WorkGroupMap
	srcShape := resultType.Shape
	switch {
	case foldTranspose:
		srcMap = producerMap(def.Operand(0))
		srcShape = ir.ShapeOf(def.Operand(0).Type())
	case data.Source != nil:
		srcMap = data.Source
	default:
		srcMap = producerMap(op.Operand(0))
	}
	dstMap := data.Result
	if srcMap == nil || dstMap == nil {
		return conversion.Failure("missing source or result map")
	}
	if err := srcMap.Validate(srcShape); err != nil {
		return conversion.Failure("source map: %v", err)
	}
	if err := dstMap.Validate(resultType.Shape); err != nil {
		return conversion.Failure("result map: %v", err)
	}

	var stored *ir.Value
	if foldTranspose {
		stored = singleValue(rw.Lookup(def.Operand(0)))
	} else {
		stored = adaptor.Single(0)
	}
	if stored == nil {
		return conversion.Failure("stored value was replaced by multiple values")
	}

	// Scratch buffer holding the whole workgroup value.
	dtype := resultType.DType
	numBytes := dtype.SizeForDimensions(resultType.Shape...)
	scratch := rw.Alloc(&ir.MemRefType{Shape: []int{numBytes}, DType: dtypes.Int8, MemorySpace: ir.SharedMemorySpace})
	view := rw.View(scratch, rw.IndexConst(0),
		&ir.MemRefType{Shape: resultType.Shape, DType: dtype, MemorySpace: ir.SharedMemorySpace})
	sgID := rw.SubgroupID()

	// Store phase.
	row, col := emitLayoutOffsets(rw.Builder, sgID, srcMap)
	storeView, order := view, []int{1, 0}
	if foldTranspose {
		storeView = rw.MemRefTranspose(view, []int{1, 0})
		order = []int{0, 1}
	}
	storeTileType := &ir.TileType{
		Shape: sgDataShape(srcMap), DType: dtype, MemorySpace: ir.SharedMemorySpace, Order: order,
	}
	storeTile := rw.InitTile(storeTileType, storeView, []ir.Mixed{ir.Dyn(row), ir.Dyn(col)}, nil, nil)
	rw.StoreTile(stored, storeTile, ir.CacheHints{})

	rw.Barrier()

	// Load phase.
	row, col = emitLayoutOffsets(rw.Builder, sgID, dstMap)
	row = rw.CreateOrFold(ir.KindIndexRemU, row, rw.IndexConst(int64(resultType.Shape[0])))
	col = rw.CreateOrFold(ir.KindIndexRemU, col, rw.IndexConst(int64(resultType.Shape[1])))
	loadTileType := &ir.TileType{
		Shape: sgDataShape(dstMap), DType: dtype, MemorySpace: ir.SharedMemorySpace, Order: []int{1, 0},
	}
	loadTile := rw.InitTile(loadTileType, view, []ir.Mixed{ir.Dyn(row), ir.Dyn(col)}, nil, nil)
	loaded := rw.LoadTile(ir.NewVectorType(dtype, sgDataShape(dstMap)...), loadTile, nil)
	rw.ReplaceOp(op, loaded)

	if foldTranspose {
		rw.EraseOp(def)
	}
	return conversion.Success()
}

func singleValue(values []*ir.Value) *ir.Value {
	if len(values) != 1 {
		return nil
	}
	return values[0]
}
