// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package wgtosg

import (
	"github.com/gomlx/xetile/pkg/ir"
)

// SubgroupCoords returns the coordinates of the subgroup id in the sgLayout grid.
//
// In the default row-major order, row = id / sgLayout[1] and col = id % sgLayout[1].
// In column-major order the ids run down the columns: row = id % sgLayout[0] and col = id / sgLayout[0].
func SubgroupCoords(sgLayout [2]int, id int, columnMajor bool) (row, col int) {
	if columnMajor {
		return id % sgLayout[0], id / sgLayout[0]
	}
	return id / sgLayout[1], id % sgLayout[1]
}

// AxisOffsets returns the offsets along one axis of the tiles visited by the subgroup at coordinate sgCoord.
//
// The workgroup dimension wgDim is split in wgDim/sgData blocks, distributed round-robin over the sgLayout
// subgroups of the axis: the subgroup visits the blocks (i + sgCoord) % (wgDim/sgData), for i in
// 0, sgLayout, 2*sgLayout, ... < wgDim/sgData.
//
// It returns nil if sgData or sgLayout is not positive.
func AxisOffsets(base, wgDim, sgData, sgLayout, sgCoord int) []int {
	if sgData <= 0 || sgLayout <= 0 {
		return nil
	}
	numBlocks := wgDim / sgData
	var offsets []int
	for i := 0; i < numBlocks; i += sgLayout {
		offsets = append(offsets, base+((i+sgCoord)%numBlocks)*sgData)
	}
	return offsets
}

// TileOffsets returns the (row, col) origins of all the tiles of a wgShape value visited by the subgroup id,
// rows first. It's the static version of what the init_tile decomposition emits.
// It returns nil if wgMap can't distribute wgShape.
func TileOffsets(wgShape []int, wgMap *ir.WorkGroupMap, id int, columnMajor bool) [][2]int {
	if wgMap.Validate(wgShape) != nil {
		return nil
	}
	row, col := SubgroupCoords(wgMap.SgLayout, id, columnMajor)
	rows := AxisOffsets(0, wgShape[0], wgMap.SgData[0], wgMap.SgLayout[0], row)
	cols := AxisOffsets(0, wgShape[1], wgMap.SgData[1], wgMap.SgLayout[1], col)
	origins := make([][2]int, 0, len(rows)*len(cols))
	for _, r := range rows {
		for _, c := range cols {
			origins = append(origins, [2]int{r, c})
		}
	}
	return origins
}

// emitSubgroupCoords creates the ops computing the subgroup coordinates from its id, see SubgroupCoords.
func emitSubgroupCoords(b *ir.Builder, sgID *ir.Value, sgLayout [2]int, columnMajor bool) (row, col *ir.Value) {
	divisor := sgLayout[1]
	if columnMajor {
		divisor = sgLayout[0]
	}
	divisorConst := b.IndexConst(int64(divisor))
	quotient := b.IndexDivU(sgID, divisorConst)
	remainder := b.IndexRemU(sgID, divisorConst)
	if columnMajor {
		return remainder, quotient
	}
	return quotient, remainder
}

// emitAxisOffsets creates the index arithmetic for AxisOffsets, folding constants.
func emitAxisOffsets(b *ir.Builder, base *ir.Value, wgDim, sgData, sgLayout int, sgCoord *ir.Value) []*ir.Value {
	if sgData <= 0 || sgLayout <= 0 {
		return nil
	}
	numBlocks := wgDim / sgData
	sgDataConst := b.IndexConst(int64(sgData))
	var offsets []*ir.Value
	for i := 0; i < numBlocks; i += sgLayout {
		block := b.CreateOrFold(ir.KindIndexAdd, b.IndexConst(int64(i)), sgCoord)
		block = b.CreateOrFold(ir.KindIndexRemU, block, b.IndexConst(int64(numBlocks)))
		local := b.CreateOrFold(ir.KindIndexMul, block, sgDataConst)
		offsets = append(offsets, b.CreateOrFold(ir.KindIndexAdd, base, local))
	}
	return offsets
}

// emitLayoutOffsets creates the offsets of the single tile owned by the subgroup in a plain row-major layout:
// (id / sgLayout[1] * sgData[0], id % sgLayout[1] * sgData[1]). Used for the scratch memory layout conversions.
func emitLayoutOffsets(b *ir.Builder, sgID *ir.Value, wgMap *ir.WorkGroupMap) (row, col *ir.Value) {
	cols := b.IndexConst(int64(wgMap.SgLayout[1]))
	row = b.IndexDivU(sgID, cols)
	col = b.IndexRemU(sgID, cols)
	row = b.CreateOrFold(ir.KindIndexMul, row, b.IndexConst(int64(wgMap.SgData[0])))
	col = b.CreateOrFold(ir.KindIndexMul, col, b.IndexConst(int64(wgMap.SgData[1])))
	return
}
