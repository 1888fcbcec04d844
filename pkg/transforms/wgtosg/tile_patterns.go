// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package wgtosg

import (
	"github.com/gomlx/xetile/pkg/ir"
	"github.com/gomlx/xetile/pkg/transforms/conversion"
)

// resolveMixed returns the current version of static/dynamic indices. It returns false if a dynamic index
// was replaced by more than one value.
func resolveMixed(rw *conversion.Rewriter, values []ir.Mixed) ([]ir.Mixed, bool) {
	if values == nil {
		return nil, true
	}
	resolved := make([]ir.Mixed, len(values))
	for i, m := range values {
		if m.Value == nil {
			resolved[i] = m
			continue
		}
		current := rw.Lookup(m.Value)
		if len(current) != 1 {
			return nil, false
		}
		resolved[i] = ir.Dyn(current[0])
	}
	return resolved, true
}

// initTile decomposes a workgroup tile into the tiles visited by the subgroup: one init_tile per combination of
// the row and column offsets of AxisOffsets. Scattered tiles are rewritten 1:1.
func (r *rules) initTile(op *ir.Op, adaptor *conversion.Adaptor, rw *conversion.Rewriter) conversion.Result {
	tileType := op.Result(0).Type().(*ir.TileType)
	if ir.IsColumnMajor(tileType.EffectiveOrder()) {
		return conversion.Failure("tiles with order [0, 1] are not supported")
	}
	wgMap := tileType.WgMap
	if err := wgMap.Validate(tileType.Shape); err != nil {
		return conversion.Failure("%v", err)
	}
	sgShape := []int{wgMap.SgData[0], wgMap.SgData[1]}
	source := adaptor.Single(0)
	if source == nil {
		return conversion.Failure("source was replaced by %d values", len(adaptor.Operand(0)))
	}
	sourceType, ok := source.Type().(*ir.MemRefType)
	if !ok {
		return conversion.Failure("source of type %s is not a memref", source.Type())
	}

	if tileType.Scatter {
		indices := adaptor.Operand(adaptor.NumOperands() - 1)
		if len(indices) == 0 {
			return conversion.Failure("scattered tile without indices")
		}
		newType := &ir.TileType{
			Shape:       sgShape,
			DType:       tileType.DType,
			MemorySpace: tileType.MemorySpace,
			Order:       []int{1, 0},
			Scatter:     true,
		}
		rw.ReplaceOp(op, rw.InitScatterTile(newType, source, indices[0]))
		return conversion.Success()
	}

	offsets, ok := resolveMixed(rw, ir.InitTileOffsets(op))
	if !ok || len(offsets) < 2 {
		return conversion.Failure("init_tile requires at least 2 single-valued offsets")
	}
	var sizes, strides []ir.Mixed
	if !sourceType.HasStaticShape() {
		var okSizes, okStrides bool
		sizes, okSizes = resolveMixed(rw, ir.InitTileSizes(op))
		strides, okStrides = resolveMixed(rw, ir.InitTileStrides(op))
		if !okSizes || !okStrides {
			return conversion.Failure("sizes or strides replaced by multiple values")
		}
	}

	sgID := rw.SubgroupID()
	row, col := emitSubgroupCoords(rw.Builder, sgID, wgMap.SgLayout, r.orders.IsColumnMajor(op.Result(0)))
	asValue := func(m ir.Mixed) *ir.Value {
		if m.Value != nil {
			return m.Value
		}
		return rw.IndexConst(m.Const)
	}
	numLeading := len(offsets) - 2
	rows := emitAxisOffsets(rw.Builder, asValue(offsets[numLeading]), tileType.Shape[0], wgMap.SgData[0],
		wgMap.SgLayout[0], row)
	cols := emitAxisOffsets(rw.Builder, asValue(offsets[numLeading+1]), tileType.Shape[1], wgMap.SgData[1],
		wgMap.SgLayout[1], col)

	newType := ir.NewTileType(tileType.DType, sgShape...)
	tiles := make([]*ir.Value, 0, len(rows)*len(cols))
	for _, rowOffset := range rows {
		for _, colOffset := range cols {
			newOffsets := append(append([]ir.Mixed{}, offsets[:numLeading]...), ir.Dyn(rowOffset), ir.Dyn(colOffset))
			tiles = append(tiles, rw.InitTile(newType, source, newOffsets, sizes, strides))
		}
	}
	rw.ReplaceOpWithMultiple(op, [][]*ir.Value{tiles})
	return conversion.Success()
}

func cloneLoadData(op *ir.Op) *ir.LoadData {
	data, _ := op.Data().(*ir.LoadData)
	if data == nil {
		return &ir.LoadData{}
	}
	clone := *data
	return &clone
}

func hints(op *ir.Op) ir.CacheHints {
	if data, ok := op.Data().(*ir.MemoryAccessData); ok {
		return data.Hints
	}
	return ir.CacheHints{}
}

// tileVectorType returns the vector type loaded from a tile.
func tileVectorType(tile *ir.Value) *ir.VectorType {
	t := tile.Type().(*ir.TileType)
	return ir.NewVectorType(t.DType, t.Shape...)
}

func isRank2Vector(t ir.Type) bool {
	vt, ok := t.(*ir.VectorType)
	return ok && vt.Rank() == 2
}

// loadTile loads each of the subgroup tiles.
func (r *rules) loadTile(op *ir.Op, adaptor *conversion.Adaptor, rw *conversion.Rewriter) conversion.Result {
	if !isRank2Vector(op.Result(0).Type()) {
		return conversion.Failure("result is not a 2D vector")
	}
	var loads []*ir.Value
	for _, tile := range adaptor.Operand(0) {
		loads = append(loads, rw.LoadTile(tileVectorType(tile), tile, cloneLoadData(op)))
	}
	rw.ReplaceOpWithMultiple(op, [][]*ir.Value{loads})
	return conversion.Success()
}

// loadGather loads each pair of subgroup tile and mask.
func (r *rules) loadGather(op *ir.Op, adaptor *conversion.Adaptor, rw *conversion.Rewriter) conversion.Result {
	if !isRank2Vector(op.Result(0).Type()) {
		return conversion.Failure("result is not a 2D vector")
	}
	tiles, masks := adaptor.Operand(0), adaptor.Operand(1)
	var loads []*ir.Value
	for i := range min(len(tiles), len(masks)) {
		loads = append(loads, rw.LoadGather(tileVectorType(tiles[i]), tiles[i], masks[i], cloneLoadData(op)))
	}
	rw.ReplaceOpWithMultiple(op, [][]*ir.Value{loads})
	return conversion.Success()
}

// storeTile stores each subgroup value into the corresponding subgroup tile.
func (r *rules) storeTile(op *ir.Op, adaptor *conversion.Adaptor, rw *conversion.Rewriter) conversion.Result {
	values, tiles := adaptor.Operand(0), adaptor.Operand(1)
	if len(tiles) < len(values) {
		return conversion.Failure("%d values to store in %d tiles", len(values), len(tiles))
	}
	for i, value := range values {
		rw.StoreTile(value, tiles[i], hints(op))
	}
	rw.EraseOp(op)
	return conversion.Success()
}

// storeScatter stores each subgroup value into the corresponding subgroup tile, with its mask.
func (r *rules) storeScatter(op *ir.Op, adaptor *conversion.Adaptor, rw *conversion.Rewriter) conversion.Result {
	values, tiles, masks := adaptor.Operand(0), adaptor.Operand(1), adaptor.Operand(2)
	if len(tiles) < len(values) || len(masks) < len(values) {
		return conversion.Failure("%d values to store in %d tiles with %d masks", len(values), len(tiles), len(masks))
	}
	for i, value := range values {
		rw.StoreScatter(value, tiles[i], masks[i], hints(op))
	}
	rw.EraseOp(op)
	return conversion.Success()
}

// prefetchTile prefetches each subgroup tile.
func (r *rules) prefetchTile(op *ir.Op, adaptor *conversion.Adaptor, rw *conversion.Rewriter) conversion.Result {
	for _, tile := range adaptor.Operand(0) {
		rw.PrefetchTile(tile, hints(op))
	}
	rw.EraseOp(op)
	return conversion.Success()
}

// updateTileOffset moves each subgroup tile by the same offsets.
func (r *rules) updateTileOffset(op *ir.Op, adaptor *conversion.Adaptor, rw *conversion.Rewriter) conversion.Result {
	tiles := adaptor.Operand(0)
	offsetX, offsetY := adaptor.Single(1), adaptor.Single(2)
	if offsetX == nil || offsetY == nil {
		return conversion.Failure("offsets replaced by multiple values")
	}
	var indices []*ir.Value
	if op.NumOperands() > 3 {
		indices = adaptor.Operand(3)
		if len(indices) != 1 && len(indices) < len(tiles) {
			return conversion.Failure("%d indices for %d tiles", len(indices), len(tiles))
		}
	}
	var updated []*ir.Value
	for i, tile := range tiles {
		var tileIndices *ir.Value
		switch {
		case len(indices) == 1:
			tileIndices = indices[0]
		case len(indices) > 1:
			tileIndices = indices[i]
		}
		updated = append(updated, rw.UpdateTileOffset(tile, offsetX, offsetY, tileIndices))
	}
	rw.ReplaceOpWithMultiple(op, [][]*ir.Value{updated})
	return conversion.Success()
}

// tileMMA creates one matmul per pair of subgroup operands (a_i, b_j), consuming the accumulators (if any) in
// the same order.
func (r *rules) tileMMA(op *ir.Op, adaptor *conversion.Adaptor, rw *conversion.Rewriter) conversion.Result {
	resultType, ok := op.Result(0).Type().(*ir.VectorType)
	if !ok || resultType.Rank() != 2 {
		return conversion.Failure("result is not a 2D vector")
	}
	as, bs := adaptor.Operand(0), adaptor.Operand(1)
	var cs []*ir.Value
	hasAcc := op.NumOperands() > 2
	if hasAcc {
		cs = adaptor.Operand(2)
		if len(cs) < len(as)*len(bs) {
			return conversion.Failure("%d accumulators for %dx%d products", len(cs), len(as), len(bs))
		}
	}
	var products []*ir.Value
	i := 0
	for _, a := range as {
		for _, b := range bs {
			var c *ir.Value
			if hasAcc {
				c = cs[i]
				i++
			}
			t := ir.NewVectorType(resultType.DType, ir.ShapeOf(a.Type())[0], ir.ShapeOf(b.Type())[1])
			products = append(products, rw.TileMMA(t, a, b, c, nil))
		}
	}
	rw.ReplaceOpWithMultiple(op, [][]*ir.Value{products})
	return conversion.Success()
}
