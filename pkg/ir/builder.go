// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/xetile/pkg/core/dtypes"
)

// Builder creates ops and inserts them at its insertion point: before a given op, or at the end of a block.
type Builder struct {
	block  *Block
	before *Op

	// Listener, if set, is called with every op inserted by the Builder.
	Listener func(op *Op)
}

// NewBuilderAtEnd creates a Builder that appends ops at the end of block.
func NewBuilderAtEnd(block *Block) *Builder {
	b := &Builder{}
	b.SetInsertionPointToEnd(block)
	return b
}

// NewBuilderBefore creates a Builder that inserts ops right before op.
func NewBuilderBefore(op *Op) *Builder {
	b := &Builder{}
	b.SetInsertionPoint(op)
	return b
}

// SetInsertionPoint makes the Builder insert new ops right before op.
func (b *Builder) SetInsertionPoint(op *Op) {
	if op.block == nil {
		exceptions.Panicf("cannot set insertion point before %s: it is not in a block (erased?)", op.kind)
	}
	b.block = op.block
	b.before = op
}

// SetInsertionPointToEnd makes the Builder append new ops at the end of block.
func (b *Builder) SetInsertionPointToEnd(block *Block) {
	b.block = block
	b.before = nil
}

// InsertionBlock returns the block where ops are being inserted.
func (b *Builder) InsertionBlock() *Block { return b.block }

// Create creates an op of the given kind and inserts it at the insertion point.
// It's the generic method used by all the other op constructors.
func (b *Builder) Create(kind Kind, resultTypes []Type, operands []*Value, data any) *Op {
	if b.block == nil {
		exceptions.Panicf("Builder has no insertion point set, cannot create %s", kind)
	}
	op := &Op{kind: kind, data: data}
	op.appendOperands(operands)
	op.results = make([]*Value, len(resultTypes))
	for i, t := range resultTypes {
		if t == nil {
			exceptions.Panicf("%s: result type #%d is nil", kind, i)
		}
		op.results[i] = &Value{typ: t, def: op, resultIdx: i}
	}
	if b.before != nil {
		b.block.InsertBefore(b.before, op)
	} else {
		b.block.Append(op)
	}
	if b.Listener != nil {
		b.Listener(op)
	}
	return op
}

// Insert inserts a detached op (see Op.Detach) at the insertion point.
func (b *Builder) Insert(op *Op) {
	if b.before != nil {
		b.block.InsertBefore(b.before, op)
	} else {
		b.block.Append(op)
	}
}

func (b *Builder) create1(kind Kind, resultType Type, operands []*Value, data any) *Value {
	return b.Create(kind, []Type{resultType}, operands, data).results[0]
}

// WithMap sets the workgroup map of the op defining v, and returns v.
func WithMap(v *Value, wgMap *WorkGroupMap) *Value {
	v.def.Map = wgMap
	return v
}

// Constant creates a constant of the given type.
func (b *Builder) Constant(t Type, value *DenseElements) *Value {
	return b.create1(KindConstant, t, nil, &ConstantData{Value: value})
}

// IndexConst creates an index constant.
func (b *Builder) IndexConst(value int64) *Value {
	return b.Constant(Index, NewDenseElements(dtypes.Index, nil, []float64{float64(value)}))
}

// ConstantIntValue returns the value of v if it is defined by an integer/index scalar constant.
func ConstantIntValue(v *Value) (int64, bool) {
	if v == nil || v.def == nil || v.def.kind != KindConstant {
		return 0, false
	}
	return v.def.data.(*ConstantData).IntValue()
}

// IndexAdd creates lhs + rhs.
func (b *Builder) IndexAdd(lhs, rhs *Value) *Value {
	return b.create1(KindIndexAdd, Index, []*Value{lhs, rhs}, nil)
}

// IndexMul creates lhs * rhs.
func (b *Builder) IndexMul(lhs, rhs *Value) *Value {
	return b.create1(KindIndexMul, Index, []*Value{lhs, rhs}, nil)
}

// IndexDivU creates lhs / rhs (unsigned).
func (b *Builder) IndexDivU(lhs, rhs *Value) *Value {
	return b.create1(KindIndexDivU, Index, []*Value{lhs, rhs}, nil)
}

// IndexRemU creates lhs % rhs (unsigned).
func (b *Builder) IndexRemU(lhs, rhs *Value) *Value {
	return b.create1(KindIndexRemU, Index, []*Value{lhs, rhs}, nil)
}

// CreateOrFold creates the index binary op of the given kind, unless it can be folded: if both operands are
// constants the result is a new constant; identities (x+0, x*1, x*0, x/1, x%1, 0/x, 0%x) return an existing or a
// constant value without creating the op.
func (b *Builder) CreateOrFold(kind Kind, lhs, rhs *Value) *Value {
	lc, lok := ConstantIntValue(lhs)
	rc, rok := ConstantIntValue(rhs)
	if lok && rok {
		if folded, ok := foldIndexBinary(kind, uint64(lc), uint64(rc)); ok {
			return b.IndexConst(int64(folded))
		}
	}
	switch kind {
	case KindIndexAdd:
		if lok && lc == 0 {
			return rhs
		}
		if rok && rc == 0 {
			return lhs
		}
	case KindIndexMul:
		if (lok && lc == 0) || (rok && rc == 0) {
			return b.IndexConst(0)
		}
		if lok && lc == 1 {
			return rhs
		}
		if rok && rc == 1 {
			return lhs
		}
	case KindIndexDivU:
		if rok && rc == 1 {
			return lhs
		}
		if lok && lc == 0 {
			return b.IndexConst(0)
		}
	case KindIndexRemU:
		if (rok && rc == 1) || (lok && lc == 0) {
			return b.IndexConst(0)
		}
	default:
		exceptions.Panicf("CreateOrFold only supports index binary ops, got %s", kind)
	}
	return b.create1(kind, Index, []*Value{lhs, rhs}, nil)
}

// foldIndexBinary evaluates an index binary op. It returns false for divisions by zero.
func foldIndexBinary(kind Kind, lhs, rhs uint64) (uint64, bool) {
	switch kind {
	case KindIndexAdd:
		return lhs + rhs, true
	case KindIndexMul:
		return lhs * rhs, true
	case KindIndexDivU:
		if rhs == 0 {
			return 0, false
		}
		return lhs / rhs, true
	case KindIndexRemU:
		if rhs == 0 {
			return 0, false
		}
		return lhs % rhs, true
	}
	return 0, false
}

// SubgroupID creates the op returning the linear id of the running subgroup.
func (b *Builder) SubgroupID() *Value { return b.create1(KindSubgroupID, Index, nil, nil) }

// Barrier creates a workgroup barrier.
func (b *Builder) Barrier() *Op { return b.Create(KindBarrier, nil, nil, nil) }

// Alloc creates a buffer allocation.
func (b *Builder) Alloc(t *MemRefType) *Value { return b.create1(KindAlloc, t, nil, nil) }

// View reinterprets a flat byte buffer, starting at byteShift, as a buffer of type t.
func (b *Builder) View(source, byteShift *Value, t *MemRefType) *Value {
	return b.create1(KindView, t, []*Value{source, byteShift}, nil)
}

// MemRefTranspose creates a permuted (strided) view of a 2D contiguous buffer.
func (b *Builder) MemRefTranspose(source *Value, permutation []int) *Value {
	srcType := source.Type().(*MemRefType)
	if srcType.Rank() != 2 {
		exceptions.Panicf("MemRefTranspose only supports 2D buffers, got %s", srcType)
	}
	strides := srcType.Strides
	if strides == nil {
		strides = []int{srcType.Shape[1], 1}
	}
	t := &MemRefType{DType: srcType.DType, MemorySpace: srcType.MemorySpace}
	for _, axis := range permutation {
		t.Shape = append(t.Shape, srcType.Shape[axis])
		t.Strides = append(t.Strides, strides[axis])
	}
	return b.create1(KindMemRefTranspose, t, []*Value{source}, &PermutationData{Permutation: slices.Clone(permutation)})
}

// Mixed is either a static index (Value == nil) or a dynamic index Value.
type Mixed struct {
	Value *Value
	Const int64
}

// Static creates a static Mixed.
func Static(v int64) Mixed { return Mixed{Const: v} }

// Dyn creates a dynamic Mixed.
func Dyn(v *Value) Mixed { return Mixed{Value: v} }

func splitMixed(values []Mixed) (static []int64, dynamic []*Value) {
	if len(values) == 0 {
		return nil, nil
	}
	static = make([]int64, len(values))
	for i, m := range values {
		if m.Value != nil {
			static[i] = DynamicOffset
			dynamic = append(dynamic, m.Value)
		} else {
			static[i] = m.Const
		}
	}
	return
}

// InitTile creates a tile of type t over source at the given offsets. Sizes and strides are only required for
// sources with dynamic shapes, and can be nil otherwise.
func (b *Builder) InitTile(t *TileType, source *Value, offsets, sizes, strides []Mixed) *Value {
	data := &InitTileData{}
	var dynOffsets, dynSizes, dynStrides []*Value
	data.StaticOffsets, dynOffsets = splitMixed(offsets)
	data.StaticSizes, dynSizes = splitMixed(sizes)
	data.StaticStrides, dynStrides = splitMixed(strides)
	operands := []*Value{source}
	operands = append(operands, dynOffsets...)
	operands = append(operands, dynSizes...)
	operands = append(operands, dynStrides...)
	return b.create1(KindInitTile, t, operands, data)
}

// InitScatterTile creates a scattered tile of type t over source, addressed by the indices vector.
func (b *Builder) InitScatterTile(t *TileType, source, indices *Value) *Value {
	return b.create1(KindInitTile, t, []*Value{source, indices}, &InitTileData{HasIndices: true})
}

// InitTileOffsets returns the offsets of an init_tile op.
func InitTileOffsets(op *Op) []Mixed {
	data := op.data.(*InitTileData)
	return mixedFrom(data.StaticOffsets, op.operands[1:])
}

// InitTileSizes returns the sizes of an init_tile op.
func InitTileSizes(op *Op) []Mixed {
	data := op.data.(*InitTileData)
	return mixedFrom(data.StaticSizes, op.operands[1+countDynamic(data.StaticOffsets):])
}

// InitTileStrides returns the strides of an init_tile op.
func InitTileStrides(op *Op) []Mixed {
	data := op.data.(*InitTileData)
	return mixedFrom(data.StaticStrides,
		op.operands[1+countDynamic(data.StaticOffsets)+countDynamic(data.StaticSizes):])
}

// InitTileIndices returns the indices operand of a scattered init_tile, or nil.
func InitTileIndices(op *Op) *Value {
	if !op.data.(*InitTileData).HasIndices {
		return nil
	}
	return op.operands[len(op.operands)-1]
}

func mixedFrom(static []int64, dynamic []*Value) []Mixed {
	if static == nil {
		return nil
	}
	values := make([]Mixed, len(static))
	next := 0
	for i, s := range static {
		if s == DynamicOffset {
			values[i] = Dyn(dynamic[next])
			next++
		} else {
			values[i] = Static(s)
		}
	}
	return values
}

// LoadTile loads the tile into a vector of type resultType.
func (b *Builder) LoadTile(resultType *VectorType, tile *Value, data *LoadData) *Value {
	if data == nil {
		data = &LoadData{}
	}
	return b.create1(KindLoadTile, resultType, []*Value{tile}, data)
}

// LoadGather loads the elements of a scattered tile selected by mask.
func (b *Builder) LoadGather(resultType *VectorType, tile, mask *Value, data *LoadData) *Value {
	if data == nil {
		data = &LoadData{}
	}
	return b.create1(KindLoadGather, resultType, []*Value{tile, mask}, data)
}

// StoreTile stores value into tile.
func (b *Builder) StoreTile(value, tile *Value, hints CacheHints) *Op {
	return b.Create(KindStoreTile, nil, []*Value{value, tile}, &MemoryAccessData{Hints: hints})
}

// StoreScatter stores the elements of value selected by mask into a scattered tile.
func (b *Builder) StoreScatter(value, tile, mask *Value, hints CacheHints) *Op {
	return b.Create(KindStoreScatter, nil, []*Value{value, tile, mask}, &MemoryAccessData{Hints: hints})
}

// PrefetchTile prefetches tile into the caches.
func (b *Builder) PrefetchTile(tile *Value, hints CacheHints) *Op {
	return b.Create(KindPrefetchTile, nil, []*Value{tile}, &MemoryAccessData{Hints: hints})
}

// UpdateTileOffset moves a tile by (offsetX, offsetY); indices is only used for scattered tiles and can be nil.
func (b *Builder) UpdateTileOffset(tile, offsetX, offsetY, indices *Value) *Value {
	operands := []*Value{tile, offsetX, offsetY}
	if indices != nil {
		operands = append(operands, indices)
	}
	return b.create1(KindUpdateTileOffset, tile.Type(), operands, nil)
}

// TileMMA creates the matrix-multiply-accumulate a×b+c; c can be nil.
func (b *Builder) TileMMA(resultType *VectorType, a, bValue, c *Value, data *TileMMAData) *Value {
	operands := []*Value{a, bValue}
	if c != nil {
		operands = append(operands, c)
	}
	if data == nil {
		data = &TileMMAData{}
	}
	return b.create1(KindTileMMA, resultType, operands, data)
}

// ConvertLayout changes the workgroup map of a vector.
func (b *Builder) ConvertLayout(source *Value, data *ConvertLayoutData) *Value {
	return b.create1(KindConvertLayout, source.Type(), []*Value{source}, data)
}

// Transpose permutes the axes of a vector.
func (b *Builder) Transpose(resultType *VectorType, source *Value, permutation []int) *Value {
	return b.create1(KindTranspose, resultType, []*Value{source},
		&PermutationData{Permutation: slices.Clone(permutation)})
}

// TileTranspose is the tile-dialect version of Transpose.
func (b *Builder) TileTranspose(resultType *VectorType, source *Value, permutation []int) *Value {
	return b.create1(KindTileTranspose, resultType, []*Value{source},
		&PermutationData{Permutation: slices.Clone(permutation)})
}

// Broadcast broadcasts source to resultType.
func (b *Builder) Broadcast(resultType *VectorType, source *Value) *Value {
	return b.create1(KindBroadcast, resultType, []*Value{source}, nil)
}

// MultiReduction reduces source over the given dims, combining with acc.
func (b *Builder) MultiReduction(resultType *VectorType, combiner string, source, acc *Value, dims []int) *Value {
	return b.create1(KindMultiReduction, resultType, []*Value{source, acc},
		&ReductionData{Combiner: combiner, Dims: slices.Clone(dims)})
}

// ShapeCast reshapes source to resultType.
func (b *Builder) ShapeCast(resultType *VectorType, source *Value) *Value {
	return b.create1(KindShapeCast, resultType, []*Value{source}, nil)
}

// CreateMask creates a mask vector with the leading sizes given by the operands set.
func (b *Builder) CreateMask(resultType *VectorType, sizes ...*Value) *Value {
	return b.create1(KindCreateMask, resultType, sizes, nil)
}

// Elementwise creates an elementwise (arith/math) op of the given kind.
func (b *Builder) Elementwise(kind Kind, resultType Type, operands ...*Value) *Value {
	if !kind.IsElementwise() {
		exceptions.Panicf("Elementwise called with non-elementwise kind %s", kind)
	}
	return b.create1(kind, resultType, operands, nil)
}

// Compare creates a comparison (KindCmpI or KindCmpF) with the given predicate.
func (b *Builder) Compare(kind Kind, predicate string, resultType Type, lhs, rhs *Value) *Value {
	return b.create1(kind, resultType, []*Value{lhs, rhs}, &CompareData{Predicate: predicate})
}

// For creates a structured loop from lowerBound to upperBound (exclusive) with the given step and loop-carried
// initial values. The body block has the induction variable followed by one argument per initial value; the
// caller must fill it and terminate it with Yield.
func (b *Builder) For(lowerBound, upperBound, step *Value, inits ...*Value) *Op {
	operands := append([]*Value{lowerBound, upperBound, step}, inits...)
	types := make([]Type, len(inits))
	for i, v := range inits {
		types[i] = v.Type()
	}
	op := b.Create(KindFor, types, operands, nil)
	region := &Region{parent: op}
	region.AddBlock(append([]Type{Index}, types...)...)
	op.regions = []*Region{region}
	return op
}

// ForInits returns the loop-carried initial values of a KindFor op.
func ForInits(op *Op) []*Value {
	return slices.Clone(op.operands[3:])
}

// Yield terminates a loop body (or an if branch) yielding values.
func (b *Builder) Yield(values ...*Value) *Op {
	return b.Create(KindYield, nil, values, nil)
}

// Return terminates a function.
func (b *Builder) Return(values ...*Value) *Op {
	return b.Create(KindReturn, nil, values, nil)
}

// If creates a conditional with "then" and "else" regions, each with one empty block.
func (b *Builder) If(condition *Value, resultTypes ...Type) *Op {
	op := b.Create(KindIf, resultTypes, []*Value{condition}, nil)
	for range 2 {
		region := &Region{parent: op}
		region.AddBlock()
		op.regions = append(op.regions, region)
	}
	return op
}

// Opaque creates an op unknown to this package.
func (b *Builder) Opaque(name string, resultTypes []Type, operands ...*Value) *Op {
	return b.Create(KindOpaque, resultTypes, operands, &OpaqueData{Name: name})
}

// AddRegion appends a new empty region (with no blocks) to op. Used when re-creating ops with regions.
func (op *Op) AddRegion() *Region {
	region := &Region{parent: op}
	op.regions = append(op.regions, region)
	return region
}
