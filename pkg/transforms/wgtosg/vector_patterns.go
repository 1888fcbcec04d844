// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package wgtosg

import (
	"github.com/gomlx/xetile/pkg/ir"
	"github.com/gomlx/xetile/pkg/transforms/conversion"
)

func sgDataShape(wgMap *ir.WorkGroupMap) []int {
	return []int{wgMap.SgData[0], wgMap.SgData[1]}
}

// numInstances returns how many subgroup-level ops replace an elementwise op over a wgShape value: 1 if the
// subgroup grid covers the value along either axis (also with the axes swapped, for values produced before a
// transpose), otherwise the sum of the ratios of both axes.
//
// The sum only matches the round-robin decomposition of init_tile when one of the axes has a single block.
func numInstances(wgShape []int, wgMap *ir.WorkGroupMap) int {
	layout, data := wgMap.SgLayout, wgMap.SgData
	if layout[0]*data[0] == wgShape[0] || layout[1]*data[1] == wgShape[1] ||
		layout[1]*data[0] == wgShape[0] || layout[0]*data[1] == wgShape[1] {
		return 1
	}
	return wgShape[0]/(layout[0]*data[0]) + wgShape[1]/(layout[1]*data[1])
}

// constant slices the first sgData[0]*sgData[1] elements of the workgroup constant, and replicates it as many
// times as an elementwise op would need.
func (r *rules) constant(op *ir.Op, _ *conversion.Adaptor, rw *conversion.Rewriter) conversion.Result {
	data, _ := op.Data().(*ir.ConstantData)
	resultType, ok := op.Result(0).Type().(*ir.VectorType)
	if data == nil || data.Value == nil || !ok {
		return conversion.Failure("not a dense vector constant")
	}
	wgMap := op.Map
	if wgMap == nil {
		return conversion.Failure("no map")
	}
	wgShape := resultType.Shape
	if err := wgMap.Validate(wgShape); err != nil {
		return conversion.Failure("%v", err)
	}
	layout, sgData := wgMap.SgLayout, wgMap.SgData
	var shape []int
	var numOps int
	switch len(wgShape) {
	case 1:
		if sgData[0] == 1 {
			shape = []int{sgData[1]}
		} else {
			shape = []int{sgData[0]}
		}
		if layout[0]*sgData[0] != wgShape[0] && layout[1]*sgData[1] != wgShape[0] {
			return conversion.Failure("round-robin distribution of 1D constants is not supported")
		}
		numOps = 1
	case 2:
		shape = sgDataShape(wgMap)
		if layout[0]*sgData[0] == wgShape[0] && layout[1]*sgData[1] == wgShape[1] {
			numOps = 1
		} else {
			numOps = wgShape[0]/(layout[0]*sgData[0]) + wgShape[1]/(layout[1]*sgData[1])
		}
	default:
		return conversion.Failure("rank %d constants are not supported", len(wgShape))
	}
	if !data.Value.Splat && len(data.Value.Values) < sgData[0]*sgData[1] {
		return conversion.Failure("constant has fewer than %d elements", sgData[0]*sgData[1])
	}
	newType := ir.NewVectorType(resultType.DType, shape...)
	value := data.Value.Prefix(shape)
	constants := make([]*ir.Value, numOps)
	for i := range constants {
		constants[i] = rw.Constant(newType, value)
	}
	rw.ReplaceOpWithMultiple(op, [][]*ir.Value{constants})
	return conversion.Success()
}

// transpose is decomposed within the subgroup only if the analysis marked it: its input tiles were then loaded
// with the column-major subgroup layout. Otherwise it's left for a layout conversion to fold.
func (r *rules) transpose(op *ir.Op, adaptor *conversion.Adaptor, rw *conversion.Rewriter) conversion.Result {
	if !isRank2Vector(op.Operand(0).Type()) {
		return conversion.Failure("source is not a 2D vector")
	}
	if op.Map == nil {
		return conversion.Failure("no map")
	}
	resultType := op.Result(0).Type().(*ir.VectorType)
	if err := op.Map.Validate(resultType.Shape); err != nil {
		return conversion.Failure("%v", err)
	}
	if !r.orders.IsColumnMajor(op.Result(0)) {
		return conversion.Failure("transpose across subgroups requires a layout conversion")
	}
	source := adaptor.Single(0)
	if source == nil {
		return conversion.Failure("source replaced by %d values", len(adaptor.Operand(0)))
	}
	perm := op.Data().(*ir.PermutationData).Permutation
	newType := ir.NewVectorType(resultType.DType, sgDataShape(op.Map)...)
	rw.ReplaceOp(op, rw.Transpose(newType, source, perm))
	return conversion.Success()
}

// broadcast of a row [1, N] or a column [M, 1] to the subgroup shape.
func (r *rules) broadcast(op *ir.Op, adaptor *conversion.Adaptor, rw *conversion.Rewriter) conversion.Result {
	resultType, ok := op.Result(0).Type().(*ir.VectorType)
	if !ok || resultType.Rank() != 2 {
		return conversion.Failure("result is not a 2D vector")
	}
	if op.Map == nil {
		return conversion.Failure("no map")
	}
	if err := op.Map.Validate(resultType.Shape); err != nil {
		return conversion.Failure("%v", err)
	}
	source := adaptor.Single(0)
	if source == nil || !isRank2Vector(source.Type()) {
		return conversion.Failure("source must be a single 2D vector")
	}
	srcShape := ir.ShapeOf(source.Type())
	dstShape := sgDataShape(op.Map)
	if !(srcShape[0] == 1 && srcShape[1] == dstShape[1]) && !(srcShape[1] == 1 && srcShape[0] == dstShape[0]) {
		return conversion.Failure("can't broadcast %v to %v", srcShape, dstShape)
	}
	rw.ReplaceOp(op, rw.Broadcast(ir.NewVectorType(resultType.DType, dstShape...), source))
	return conversion.Success()
}

// multiReduction reduces the subgroup slice.
//
// A 2D result (a reduction keeping the reduced dimension as a unit dimension) is reduced over the dimension
// with sgData > 1, with the accumulator reshaped to 1D and the result reshaped back.
func (r *rules) multiReduction(op *ir.Op, adaptor *conversion.Adaptor, rw *conversion.Rewriter) conversion.Result {
	resultType, ok := op.Result(0).Type().(*ir.VectorType)
	if !ok {
		return conversion.Failure("result is not a vector")
	}
	if op.Map == nil {
		return conversion.Failure("no map")
	}
	if err := op.Map.Validate(resultType.Shape); err != nil {
		return conversion.Failure("%v", err)
	}
	source, acc := adaptor.Single(0), adaptor.Single(1)
	if source == nil || acc == nil {
		return conversion.Failure("source and accumulator must be single values")
	}
	srcType, ok := source.Type().(*ir.VectorType)
	if !ok || srcType.Rank() != 2 {
		return conversion.Failure("source is not a 2D vector")
	}
	data := op.Data().(*ir.ReductionData)

	if resultType.Rank() == 2 {
		reduceDim := 1
		if op.Map.SgData[0] == 1 {
			reduceDim = 0
		}
		reducedType := ir.NewVectorType(srcType.DType, srcType.Shape[1-reduceDim])
		acc1D := rw.ShapeCast(reducedType, acc)
		reduced := rw.MultiReduction(reducedType, data.Combiner, source, acc1D, []int{reduceDim})
		accType := acc.Type().(*ir.VectorType)
		rw.ReplaceOp(op, rw.ShapeCast(ir.NewVectorType(accType.DType, accType.Shape...), reduced))
		return conversion.Success()
	}

	if len(data.Dims) != 1 {
		return conversion.Failure("%d reduction dimensions, only 1 is supported", len(data.Dims))
	}
	reduceDim := data.Dims[0]
	newType := ir.NewVectorType(srcType.DType, srcType.Shape[1-reduceDim])
	rw.ReplaceOp(op, rw.MultiReduction(newType, data.Combiner, source, acc, []int{reduceDim}))
	return conversion.Success()
}

// shapeCast to a 2D shape with a unit dimension takes the subgroup shape. A 3D shape cast feeding only
// reductions (a partial reduction) is dropped.
func (r *rules) shapeCast(op *ir.Op, adaptor *conversion.Adaptor, rw *conversion.Rewriter) conversion.Result {
	resultType, ok := op.Result(0).Type().(*ir.VectorType)
	if !ok {
		return conversion.Failure("result is not a vector")
	}
	source := adaptor.Single(0)
	if source == nil {
		return conversion.Failure("source replaced by %d values", len(adaptor.Operand(0)))
	}
	if resultType.Rank() == 3 {
		for _, user := range op.Result(0).Users() {
			if user.Kind() != ir.KindMultiReduction {
				return conversion.Failure("3D shape cast used by %s", user.Kind())
			}
		}
		rw.ReplaceOp(op, source)
		return conversion.Success()
	}
	if resultType.Rank() != 2 || (resultType.Shape[0] != 1 && resultType.Shape[1] != 1) {
		return conversion.Failure("result %s has no unit dimension", resultType)
	}
	if op.Map == nil {
		return conversion.Failure("no map")
	}
	if err := op.Map.Validate(resultType.Shape); err != nil {
		return conversion.Failure("%v", err)
	}
	newType := ir.NewVectorType(resultType.DType, sgDataShape(op.Map)...)
	rw.ReplaceOp(op, rw.ShapeCast(newType, source))
	return conversion.Success()
}

// createMask with the subgroup shape and the same sizes.
func (r *rules) createMask(op *ir.Op, adaptor *conversion.Adaptor, rw *conversion.Rewriter) conversion.Result {
	if op.Map == nil {
		return conversion.Failure("no map")
	}
	resultType := op.Result(0).Type().(*ir.VectorType)
	if err := op.Map.Validate(resultType.Shape); err != nil {
		return conversion.Failure("%v", err)
	}
	sizes := adaptor.Flat()
	if len(sizes) != op.NumOperands() {
		return conversion.Failure("mask sizes replaced by multiple values")
	}
	newType := ir.NewVectorType(resultType.DType, sgDataShape(op.Map)...)
	rw.ReplaceOp(op, rw.CreateMask(newType, sizes...))
	return conversion.Success()
}

// elementwise ops (also compare, select and fpowi) are replicated numInstances times, the i-th instance taking
// the i-th replacement of each operand.
func (r *rules) elementwise(op *ir.Op, adaptor *conversion.Adaptor, rw *conversion.Rewriter) conversion.Result {
	resultType, ok := op.Result(0).Type().(*ir.VectorType)
	if !ok || resultType.Rank() != 2 {
		return conversion.Failure("result is not a 2D vector")
	}
	if op.Map == nil {
		return conversion.Failure("no map")
	}
	if err := op.Map.Validate(resultType.Shape); err != nil {
		return conversion.Failure("%v", err)
	}
	n := numInstances(resultType.Shape, op.Map)
	for i, operand := range adaptor.Operands() {
		if len(operand) < n {
			return conversion.Failure("operand #%d has %d slices, %d needed", i, len(operand), n)
		}
	}
	newType := ir.NewVectorType(resultType.DType, sgDataShape(op.Map)...)
	instances := make([]*ir.Value, n)
	for i := range instances {
		operands := make([]*ir.Value, adaptor.NumOperands())
		for j, operand := range adaptor.Operands() {
			operands[j] = operand[i]
		}
		instances[i] = rw.Create(op.Kind(), []ir.Type{newType}, operands, op.Data()).Result(0)
	}
	rw.ReplaceOpWithMultiple(op, [][]*ir.Value{instances})
	return conversion.Success()
}

// cast ops change the element type: one instance with the subgroup shape.
func (r *rules) cast(op *ir.Op, adaptor *conversion.Adaptor, rw *conversion.Rewriter) conversion.Result {
	if op.Map == nil {
		return conversion.Failure("no map")
	}
	resultType, ok := op.Result(0).Type().(*ir.VectorType)
	if !ok {
		return conversion.Failure("result is not a vector")
	}
	if err := op.Map.Validate(resultType.Shape); err != nil {
		return conversion.Failure("%v", err)
	}
	source := adaptor.Single(0)
	if source == nil {
		return conversion.Failure("source replaced by %d values", len(adaptor.Operand(0)))
	}
	newType := ir.NewVectorType(resultType.DType, sgDataShape(op.Map)...)
	rw.ReplaceOp(op, rw.Create(op.Kind(), []ir.Type{newType}, []*ir.Value{source}, nil).Result(0))
	return conversion.Success()
}
