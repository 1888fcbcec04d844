// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/gomlx/xetile/pkg/core/dtypes"
	"github.com/gomlx/xetile/pkg/support/xslices"
)

// Kind specific data of the ops. Ops without data (e.g. index.add, gpu.barrier) keep it nil.

// DenseElements is the value of a constant: a flat list of values for a given shape, in row-major order.
// Values are kept as float64 and rounded to the dtype (see dtypes.DType.Round).
// If Splat is set, Values has a single element repeated for the whole shape.
type DenseElements struct {
	DType  dtypes.DType
	Shape  []int
	Values []float64
	Splat  bool
}

// NewDenseElements creates dense elements rounding the values to the dtype.
func NewDenseElements(dtype dtypes.DType, shape []int, values []float64) *DenseElements {
	rounded := make([]float64, len(values))
	for i, v := range values {
		rounded[i] = dtype.Round(v)
	}
	return &DenseElements{DType: dtype, Shape: slices.Clone(shape), Values: rounded, Splat: len(values) == 1}
}

// NewSplat creates dense elements with the same value for the whole shape.
func NewSplat(dtype dtypes.DType, shape []int, value float64) *DenseElements {
	return NewDenseElements(dtype, shape, []float64{value})
}

// NumElements in the shape.
func (d *DenseElements) NumElements() int {
	return xslices.Product(d.Shape)
}

// At returns the i-th element in row-major order.
func (d *DenseElements) At(i int) float64 {
	if d.Splat {
		return d.Values[0]
	}
	return d.Values[i]
}

// Prefix returns new dense elements with the given shape, holding the first elements (in row-major order)
// of d. If d is a splat, so is the result.
func (d *DenseElements) Prefix(shape []int) *DenseElements {
	out := &DenseElements{DType: d.DType, Shape: slices.Clone(shape), Splat: d.Splat}
	if d.Splat {
		out.Values = slices.Clone(d.Values)
		return out
	}
	n := out.NumElements()
	out.Values = make([]float64, n)
	for i := range n {
		out.Values[i] = d.At(i)
	}
	return out
}

// String implements fmt.Stringer.
func (d *DenseElements) String() string {
	if len(d.Shape) == 0 {
		return d.DType.FormatValue(d.At(0))
	}
	if d.Splat {
		return "dense<" + d.DType.FormatValue(d.Values[0]) + ">"
	}
	parts := make([]string, len(d.Values))
	for i, v := range d.Values {
		parts[i] = d.DType.FormatValue(v)
	}
	return "dense<[" + strings.Join(parts, ", ") + "]>"
}

// ConstantData is the data of KindConstant ops.
type ConstantData struct {
	Value *DenseElements
}

// IntValue returns the value of a scalar integer (or index) constant.
func (c *ConstantData) IntValue() (int64, bool) {
	if c == nil || c.Value == nil || len(c.Value.Shape) != 0 || c.Value.DType.IsFloat() {
		return 0, false
	}
	return int64(c.Value.At(0)), true
}

// FuncData is the data of KindFunc ops.
type FuncData struct {
	Name string
	Type *FunctionType
}

// CacheHints are the cache policies of memory accesses, carried through transformations unchanged.
type CacheHints struct {
	L1, L2, L3 string
}

func (h CacheHints) String() string {
	var parts []string
	for i, hint := range []string{h.L1, h.L2, h.L3} {
		if hint != "" {
			parts = append(parts, fmt.Sprintf("l%d_hint = %s", i+1, hint))
		}
	}
	return strings.Join(parts, ", ")
}

// DynamicOffset marks an InitTileData static entry whose value is given by an operand.
const DynamicOffset = math.MinInt64

// InitTileData is the data of KindInitTile ops.
//
// Operands are ordered: source, dynamic offsets, dynamic sizes, dynamic strides and, for scattered tiles,
// the indices vector. Entries of StaticOffsets/StaticSizes/StaticStrides equal to DynamicOffset are taken,
// in order, from the corresponding operands.
type InitTileData struct {
	StaticOffsets []int64
	StaticSizes   []int64
	StaticStrides []int64
	HasIndices    bool
}

func countDynamic(values []int64) int {
	n := 0
	for _, v := range values {
		if v == DynamicOffset {
			n++
		}
	}
	return n
}

// LoadData is the data of KindLoadTile and KindLoadGather ops.
type LoadData struct {
	Hints CacheHints

	// Padding value for out-of-bounds elements, optional.
	Padding *float64
}

// MemoryAccessData is the data of KindStoreTile, KindStoreScatter and KindPrefetchTile ops.
type MemoryAccessData struct {
	Hints CacheHints
}

// TileMMAData is the data of KindTileMMA ops: the workgroup maps of its operands and result.
type TileMMAData struct {
	WgMapA, WgMapB, WgMapC *WorkGroupMap
}

// ConvertLayoutData is the data of KindConvertLayout ops.
type ConvertLayoutData struct {
	// Source is the map the operand was produced with, optional: if nil, it's taken from the producer.
	Source *WorkGroupMap

	// Result is the map the result must be consumed with.
	Result *WorkGroupMap
}

// CompareData is the data of KindCmpI and KindCmpF ops.
type CompareData struct {
	Predicate string
}

// PermutationData is the data of KindTranspose, KindTileTranspose and KindMemRefTranspose ops.
type PermutationData struct {
	Permutation []int
}

// ReductionData is the data of KindMultiReduction ops.
//
// Operands are the source and the accumulator.
type ReductionData struct {
	// Combiner is the reduction kind, e.g. "add", "maximumf".
	Combiner string

	// Dims are the reduced dimensions of the source.
	Dims []int
}

// OpaqueData is the data of KindOpaque ops.
type OpaqueData struct {
	Name string
}
