// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"slices"

	"github.com/gomlx/exceptions"
)

// Op is an operation of the IR: it has a kind, operands, typed results, optional nested regions and
// kind-specific data (see the *Data types in data.go).
type Op struct {
	kind     Kind
	operands []*Value
	results  []*Value
	regions  []*Region
	block    *Block

	// Map is the workgroup map of vector-producing ops ("map" attribute). It carries the decomposition intent
	// for values that are not tiles. nil means the op is already subgroup-level.
	Map *WorkGroupMap

	// data for the specific op kind.
	data any

	erased bool
}

// Kind of the op.
func (op *Op) Kind() Kind { return op.kind }

// Data returns the kind-specific data of the op (see data.go), or nil.
func (op *Op) Data() any { return op.data }

// SetData replaces the kind-specific data of the op.
func (op *Op) SetData(data any) { op.data = data }

// Operands returns a copy of the operands.
func (op *Op) Operands() []*Value { return slices.Clone(op.operands) }

// Operand returns the i-th operand.
func (op *Op) Operand(i int) *Value { return op.operands[i] }

// NumOperands returns the number of operands.
func (op *Op) NumOperands() int { return len(op.operands) }

// SetOperand replaces the i-th operand, updating the use lists.
func (op *Op) SetOperand(i int, v *Value) {
	if v == nil {
		exceptions.Panicf("%s: cannot set operand #%d to nil", op.kind, i)
	}
	old := op.operands[i]
	if old == v {
		return
	}
	old.removeUse(op, i)
	op.operands[i] = v
	v.addUse(op, i)
}

// SetOperands replaces all operands, updating the use lists.
func (op *Op) SetOperands(values []*Value) {
	op.dropOperandUses()
	op.operands = nil
	op.appendOperands(values)
}

func (op *Op) appendOperands(values []*Value) {
	for _, v := range values {
		if v == nil {
			exceptions.Panicf("%s: operand #%d is nil", op.kind, len(op.operands))
		}
		v.addUse(op, len(op.operands))
		op.operands = append(op.operands, v)
	}
}

func (op *Op) dropOperandUses() {
	for i, v := range op.operands {
		v.removeUse(op, i)
	}
}

// Results returns a copy of the results.
func (op *Op) Results() []*Value { return slices.Clone(op.results) }

// Result returns the i-th result.
func (op *Op) Result(i int) *Value { return op.results[i] }

// NumResults returns the number of results.
func (op *Op) NumResults() int { return len(op.results) }

// ResultTypes returns the types of the results.
func (op *Op) ResultTypes() []Type {
	types := make([]Type, len(op.results))
	for i, r := range op.results {
		types[i] = r.typ
	}
	return types
}

// Regions returns the nested regions of the op.
func (op *Op) Regions() []*Region { return slices.Clone(op.regions) }

// Region returns the i-th nested region.
func (op *Op) Region(i int) *Region { return op.regions[i] }

// Body returns the entry block of the first region, or nil if the op has no regions.
func (op *Op) Body() *Block {
	if len(op.regions) == 0 {
		return nil
	}
	return op.regions[0].Front()
}

// Block returns the block containing the op, or nil if it was detached or erased.
func (op *Op) Block() *Block { return op.block }

// ParentOp returns the op whose region contains this op, or nil for top-level ops.
func (op *Op) ParentOp() *Op {
	if op.block == nil {
		return nil
	}
	return op.block.ParentOp()
}

// IsErased returns whether the op was erased.
func (op *Op) IsErased() bool { return op.erased }

// IsAncestorOf returns whether op contains other in one of its (transitively) nested regions.
func (op *Op) IsAncestorOf(other *Op) bool {
	for p := other.ParentOp(); p != nil; p = p.ParentOp() {
		if p == op {
			return true
		}
	}
	return false
}

// Erase removes the op from its block and drops the uses of its operands.
// Ops nested in its regions are erased too. Its results keep their remaining uses: the caller is responsible for
// them (the conversion driver remaps them).
func (op *Op) Erase() {
	if op.erased {
		return
	}
	for _, region := range op.regions {
		for _, block := range region.blocks {
			for _, nested := range slices.Clone(block.ops) {
				nested.Erase()
			}
		}
	}
	if op.block != nil {
		op.block.remove(op)
	}
	op.dropOperandUses()
	op.erased = true
}

// Detach removes the op from its block without erasing it, so it can be re-inserted elsewhere.
func (op *Op) Detach() {
	if op.block != nil {
		op.block.remove(op)
	}
}

// HasMap returns whether the op carries a workgroup map: the "map" attribute, or the operand
// maps of tile_mma (wg_map_a), or the source/result maps of convert_layout.
func (op *Op) HasMap() bool {
	if op.Map != nil {
		return true
	}
	switch data := op.data.(type) {
	case *TileMMAData:
		return data.WgMapA != nil
	case *ConvertLayoutData:
		return data.Source != nil || data.Result != nil
	}
	return false
}
