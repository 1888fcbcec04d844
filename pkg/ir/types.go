// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/xetile/pkg/core/dtypes"
	"github.com/gomlx/xetile/pkg/support/xslices"
)

// Dynamic marks a dimension (or a static offset, size or stride) only known at runtime.
const Dynamic = -1

// SharedMemorySpace is the memory space of scratch (shared local) memory.
const SharedMemorySpace = 3

// Type of a Value.
//
// Implementations: *TileType, *VectorType, *MemRefType, *ScalarType, *IndexType and *FunctionType.
type Type interface {
	fmt.Stringer

	// Equal returns whether the types are structurally the same.
	Equal(other Type) bool
}

// Order values.
var (
	// RowMajor is the default order of tiles: the last axis varies fastest.
	RowMajor = []int{1, 0}

	// ColumnMajor order is used for transposed views: the first axis varies fastest.
	ColumnMajor = []int{0, 1}
)

// IsColumnMajor returns whether order is exactly {0, 1}.
func IsColumnMajor(order []int) bool {
	return len(order) == 2 && order[0] == 0 && order[1] == 1
}

// TileType describes a rectangular 2D tile of a larger buffer.
//
// WgMap is set while the tile is still workgroup-level: it is nil once the tile is subgroup-local.
type TileType struct {
	Shape []int
	DType dtypes.DType

	// MemorySpace of the tile, 0 for global memory and SharedMemorySpace for scratch memory.
	MemorySpace int

	// WgMap is the workgroup distribution of the tile, or nil.
	WgMap *WorkGroupMap

	// Order of the axes. nil means RowMajor.
	Order []int

	// Scatter marks tiles addressed by a vector of indices instead of contiguous offsets.
	Scatter bool
}

// NewTileType creates a plain (subgroup-level, row-major) tile type.
func NewTileType(dtype dtypes.DType, shape ...int) *TileType {
	return &TileType{Shape: slices.Clone(shape), DType: dtype}
}

// WithWgMap returns a copy of the tile type with the given workgroup map.
func (t *TileType) WithWgMap(wgMap *WorkGroupMap) *TileType {
	t2 := t.Clone()
	t2.WgMap = wgMap
	return t2
}

// Clone returns a deep copy of the tile type.
func (t *TileType) Clone() *TileType {
	t2 := *t
	t2.Shape = slices.Clone(t.Shape)
	t2.Order = slices.Clone(t.Order)
	if t.WgMap != nil {
		m := *t.WgMap
		t2.WgMap = &m
	}
	return &t2
}

// EffectiveOrder returns Order, or RowMajor if Order was not set.
func (t *TileType) EffectiveOrder() []int {
	if len(t.Order) == 0 {
		return RowMajor
	}
	return t.Order
}

// Rank of the tile.
func (t *TileType) Rank() int { return len(t.Shape) }

// String implements fmt.Stringer.
func (t *TileType) String() string {
	var sb strings.Builder
	sb.WriteString("!xetile.tile<")
	sb.WriteString(shapeString(t.Shape, t.DType))
	var attrs []string
	if t.WgMap != nil {
		attrs = append(attrs, "wg_map = "+t.WgMap.String())
	}
	if len(t.Order) > 0 {
		attrs = append(attrs, fmt.Sprintf("order = %s", intsString(t.Order)))
	}
	if t.MemorySpace != 0 {
		attrs = append(attrs, fmt.Sprintf("memory_space = %d", t.MemorySpace))
	}
	if t.Scatter {
		attrs = append(attrs, "scattered = true")
	}
	if len(attrs) > 0 {
		sb.WriteString(", #xetile.tile_attr<")
		sb.WriteString(strings.Join(attrs, ", "))
		sb.WriteString(">")
	}
	sb.WriteString(">")
	return sb.String()
}

// Equal implements Type.
func (t *TileType) Equal(other Type) bool {
	o, ok := other.(*TileType)
	if !ok {
		return false
	}
	return slices.Equal(t.Shape, o.Shape) && t.DType == o.DType && t.MemorySpace == o.MemorySpace &&
		t.WgMap.Equal(o.WgMap) && slices.Equal(t.EffectiveOrder(), o.EffectiveOrder()) && t.Scatter == o.Scatter
}

// VectorType is an n-dimensional value held in registers.
type VectorType struct {
	Shape []int
	DType dtypes.DType
}

// NewVectorType creates a VectorType.
func NewVectorType(dtype dtypes.DType, shape ...int) *VectorType {
	return &VectorType{Shape: slices.Clone(shape), DType: dtype}
}

// Rank of the vector.
func (t *VectorType) Rank() int { return len(t.Shape) }

// Size is the number of elements of the vector.
func (t *VectorType) Size() int {
	return xslices.Product(t.Shape)
}

// String implements fmt.Stringer.
func (t *VectorType) String() string {
	return "vector<" + shapeString(t.Shape, t.DType) + ">"
}

// Equal implements Type.
func (t *VectorType) Equal(other Type) bool {
	o, ok := other.(*VectorType)
	return ok && t.DType == o.DType && slices.Equal(t.Shape, o.Shape)
}

// MemRefType is a reference to a buffer in memory.
type MemRefType struct {
	Shape []int
	DType dtypes.DType

	// Strides in elements. nil means the identity (row-major, contiguous) layout.
	Strides []int

	MemorySpace int
}

// NewMemRefType creates a contiguous MemRefType in global memory.
func NewMemRefType(dtype dtypes.DType, shape ...int) *MemRefType {
	return &MemRefType{Shape: slices.Clone(shape), DType: dtype}
}

// HasStaticShape returns whether no dimension is Dynamic.
func (t *MemRefType) HasStaticShape() bool {
	return !slices.Contains(t.Shape, Dynamic)
}

// Rank of the memref.
func (t *MemRefType) Rank() int { return len(t.Shape) }

// String implements fmt.Stringer.
func (t *MemRefType) String() string {
	var sb strings.Builder
	sb.WriteString("memref<")
	sb.WriteString(shapeString(t.Shape, t.DType))
	if len(t.Strides) > 0 {
		_, _ = fmt.Fprintf(&sb, ", strided<%s>", intsString(t.Strides))
	}
	if t.MemorySpace != 0 {
		_, _ = fmt.Fprintf(&sb, ", %d", t.MemorySpace)
	}
	sb.WriteString(">")
	return sb.String()
}

// Equal implements Type.
func (t *MemRefType) Equal(other Type) bool {
	o, ok := other.(*MemRefType)
	return ok && t.DType == o.DType && slices.Equal(t.Shape, o.Shape) && slices.Equal(t.Strides, o.Strides) &&
		t.MemorySpace == o.MemorySpace
}

// ScalarType is a single element of a dtype.
type ScalarType struct {
	DType dtypes.DType
}

// String implements fmt.Stringer.
func (t *ScalarType) String() string { return t.DType.String() }

// Equal implements Type.
func (t *ScalarType) Equal(other Type) bool {
	o, ok := other.(*ScalarType)
	return ok && o.DType == t.DType
}

// IndexType is the type of offsets, sizes, loop induction variables and subgroup ids.
type IndexType struct{}

// Index is the singleton IndexType.
var Index = &IndexType{}

// String implements fmt.Stringer.
func (*IndexType) String() string { return "index" }

// Equal implements Type.
func (*IndexType) Equal(other Type) bool {
	_, ok := other.(*IndexType)
	return ok
}

// FunctionType is the signature of a function.
type FunctionType struct {
	Inputs, Results []Type
}

// String implements fmt.Stringer.
func (t *FunctionType) String() string {
	return "(" + typesString(t.Inputs) + ") -> (" + typesString(t.Results) + ")"
}

// Equal implements Type.
func (t *FunctionType) Equal(other Type) bool {
	o, ok := other.(*FunctionType)
	return ok && slices.EqualFunc(t.Inputs, o.Inputs, Type.Equal) && slices.EqualFunc(t.Results, o.Results, Type.Equal)
}

// ShapeOf returns the shape of tile, vector and memref types, or nil for other types.
func ShapeOf(t Type) []int {
	switch tt := t.(type) {
	case *TileType:
		return tt.Shape
	case *VectorType:
		return tt.Shape
	case *MemRefType:
		return tt.Shape
	}
	return nil
}

// DTypeOf returns the element type of t.
func DTypeOf(t Type) dtypes.DType {
	switch tt := t.(type) {
	case *TileType:
		return tt.DType
	case *VectorType:
		return tt.DType
	case *MemRefType:
		return tt.DType
	case *ScalarType:
		return tt.DType
	case *IndexType:
		return dtypes.Index
	}
	return dtypes.InvalidDType
}

func shapeString(shape []int, dtype dtypes.DType) string {
	var sb strings.Builder
	for _, dim := range shape {
		if dim == Dynamic {
			sb.WriteString("?x")
		} else {
			_, _ = fmt.Fprintf(&sb, "%dx", dim)
		}
	}
	sb.WriteString(dtype.String())
	return sb.String()
}

func intsString[T int | int64](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func typesString(types []Type) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}
