// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import "strconv"

// Kind is an enum of all operation kinds known to the IR.
//
// Operations not known to this package can still be represented with KindOpaque (see OpaqueData), they
// are never touched by the transformations.
type Kind int

const (
	KindInvalid Kind = iota
	KindOpaque

	// Functions.
	KindFunc
	KindReturn

	// Arithmetic, working on scalars, index values and vectors.
	KindConstant
	KindAddF
	KindCmpI
	KindCmpF
	KindSelect
	KindTruncF
	KindTruncI
	KindExtF
	KindExtSI
	KindExtUI
	KindSIToFP
	KindUIToFP
	KindFPToSI
	KindFPToUI
	KindIndexCast
	KindIndexCastUI
	KindBitcast

	// Math.
	KindExp
	KindSqrt
	KindFPowI

	// Index arithmetic (unsigned division and remainder).
	KindIndexAdd
	KindIndexMul
	KindIndexDivU
	KindIndexRemU

	// Vector shape manipulation.
	KindTranspose
	KindBroadcast
	KindMultiReduction
	KindShapeCast
	KindCreateMask

	// Tiles.
	KindInitTile
	KindLoadTile
	KindLoadGather
	KindStoreTile
	KindStoreScatter
	KindUpdateTileOffset
	KindPrefetchTile
	KindTileMMA
	KindConvertLayout
	KindTileTranspose

	// GPU.
	KindSubgroupID
	KindBarrier

	// Memory buffers.
	KindAlloc
	KindView
	KindMemRefTranspose

	// Structured control flow.
	KindFor
	KindYield
	KindIf

	numKinds
)

var kindNames = [numKinds]string{
	KindInvalid:          "invalid",
	KindOpaque:           "opaque",
	KindFunc:             "func.func",
	KindReturn:           "func.return",
	KindConstant:         "arith.constant",
	KindAddF:             "arith.addf",
	KindCmpI:             "arith.cmpi",
	KindCmpF:             "arith.cmpf",
	KindSelect:           "arith.select",
	KindTruncF:           "arith.truncf",
	KindTruncI:           "arith.trunci",
	KindExtF:             "arith.extf",
	KindExtSI:            "arith.extsi",
	KindExtUI:            "arith.extui",
	KindSIToFP:           "arith.sitofp",
	KindUIToFP:           "arith.uitofp",
	KindFPToSI:           "arith.fptosi",
	KindFPToUI:           "arith.fptoui",
	KindIndexCast:        "arith.index_cast",
	KindIndexCastUI:      "arith.index_castui",
	KindBitcast:          "arith.bitcast",
	KindExp:              "math.exp",
	KindSqrt:             "math.sqrt",
	KindFPowI:            "math.fpowi",
	KindIndexAdd:         "index.add",
	KindIndexMul:         "index.mul",
	KindIndexDivU:        "index.divu",
	KindIndexRemU:        "index.remu",
	KindTranspose:        "vector.transpose",
	KindBroadcast:        "vector.broadcast",
	KindMultiReduction:   "vector.multi_reduction",
	KindShapeCast:        "vector.shape_cast",
	KindCreateMask:       "vector.create_mask",
	KindInitTile:         "xetile.init_tile",
	KindLoadTile:         "xetile.load_tile",
	KindLoadGather:       "xetile.load",
	KindStoreTile:        "xetile.store_tile",
	KindStoreScatter:     "xetile.store",
	KindUpdateTileOffset: "xetile.update_tile_offset",
	KindPrefetchTile:     "xetile.prefetch_tile",
	KindTileMMA:          "xetile.tile_mma",
	KindConvertLayout:    "xetile.convert_layout",
	KindTileTranspose:    "xetile.transpose",
	KindSubgroupID:       "gpu.subgroup_id",
	KindBarrier:          "gpu.barrier",
	KindAlloc:            "memref.alloc",
	KindView:             "memref.view",
	KindMemRefTranspose:  "memref.transpose",
	KindFor:              "scf.for",
	KindYield:            "scf.yield",
	KindIf:               "scf.if",
}

var kindByName = func() map[string]Kind {
	m := make(map[string]Kind, numKinds)
	for kind, name := range kindNames {
		m[name] = Kind(kind)
	}
	return m
}()

// String returns the IR name of the kind, e.g. "xetile.init_tile".
func (k Kind) String() string {
	if k >= 0 && k < numKinds {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// KindFromName returns the Kind for an IR name, and whether it was found.
func KindFromName(name string) (Kind, bool) {
	k, found := kindByName[name]
	return k, found
}

// AllKinds returns the list of valid kinds (excluding KindInvalid).
func AllKinds() []Kind {
	kinds := make([]Kind, 0, numKinds-1)
	for k := KindOpaque; k < numKinds; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// IsElementwise returns whether the kind operates element by element on same-shaped operands and result.
func (k Kind) IsElementwise() bool {
	switch k {
	case KindAddF, KindExp, KindSqrt, KindFPowI, KindSelect, KindCmpI, KindCmpF:
		return true
	}
	return k.IsCast()
}

// IsCast returns whether the kind converts the element type, keeping the shape.
func (k Kind) IsCast() bool {
	switch k {
	case KindTruncF, KindTruncI, KindExtF, KindExtSI, KindExtUI, KindSIToFP, KindUIToFP, KindFPToSI, KindFPToUI,
		KindIndexCast, KindIndexCastUI, KindBitcast:
		return true
	}
	return false
}

// IsTerminator returns whether the kind ends a block.
func (k Kind) IsTerminator() bool {
	return k == KindYield || k == KindReturn
}
