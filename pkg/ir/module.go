// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package ir is a typed SSA intermediate representation for tile-based GPU tensor programs.
//
// A Module holds functions (KindFunc ops). Ops have operands (Value), typed results (Value), kind-specific data and
// nested regions (structured control flow). Values keep use lists, so they can be replaced everywhere with
// Value.ReplaceAllUsesWith.
//
// Ops are created with a Builder, which inserts them at an insertion point. Index arithmetic can be
// created with Builder.CreateOrFold, which folds constants the way offsets computations are expected to be
// simplified.
package ir

import (
	"slices"
)

// Module is a program unit: a list of functions.
type Module struct {
	Name string

	region *Region
}

// NewModule creates an empty module.
func NewModule(name string) *Module {
	m := &Module{Name: name, region: &Region{}}
	m.region.AddBlock()
	return m
}

// Body returns the block holding the functions.
func (m *Module) Body() *Block {
	return m.region.Front()
}

// Funcs returns the functions of the module.
func (m *Module) Funcs() []*Op {
	var funcs []*Op
	for _, op := range m.Body().ops {
		if op.kind == KindFunc {
			funcs = append(funcs, op)
		}
	}
	return funcs
}

// LookupFunc returns the function with the given name or nil.
func (m *Module) LookupFunc(name string) *Op {
	for _, f := range m.Funcs() {
		if f.data.(*FuncData).Name == name {
			return f
		}
	}
	return nil
}

// AddFunc adds a function with the given signature, and returns it. Its body has an entry block with one
// argument per input.
func (m *Module) AddFunc(name string, inputs, results []Type) *Op {
	f := &Op{
		kind: KindFunc,
		data: &FuncData{Name: name, Type: &FunctionType{Inputs: slices.Clone(inputs), Results: slices.Clone(results)}},
	}
	region := &Region{parent: f}
	region.AddBlock(inputs...)
	f.regions = []*Region{region}
	m.Body().Append(f)
	return f
}

// WalkResult controls a walk.
type WalkResult int

const (
	// WalkAdvance continues the walk, visiting nested ops.
	WalkAdvance WalkResult = iota

	// WalkSkip continues the walk without visiting the ops nested in the current op.
	WalkSkip

	// WalkInterrupt stops the walk.
	WalkInterrupt
)

// Walk visits all ops of the module in pre-order (an op before the ops nested in its regions).
// The list of ops of each block is copied before being visited, so fn may erase or insert ops.
// It returns false if the walk was interrupted.
func (m *Module) Walk(fn func(op *Op) WalkResult) bool {
	return walkBlock(m.Body(), fn)
}

// Walk visits op and its nested ops in pre-order, see Module.Walk.
func (op *Op) Walk(fn func(op *Op) WalkResult) bool {
	return walkOp(op, fn)
}

func walkOp(op *Op, fn func(op *Op) WalkResult) bool {
	if op.erased {
		return true
	}
	switch fn(op) {
	case WalkInterrupt:
		return false
	case WalkSkip:
		return true
	}
	for _, region := range op.regions {
		for _, block := range region.blocks {
			if !walkBlock(block, fn) {
				return false
			}
		}
	}
	return true
}

func walkBlock(block *Block, fn func(op *Op) WalkResult) bool {
	for _, op := range slices.Clone(block.ops) {
		if !walkOp(op, fn) {
			return false
		}
	}
	return true
}

// CollectOps returns all ops of the module in pre-order.
func (m *Module) CollectOps() []*Op {
	var ops []*Op
	m.Walk(func(op *Op) WalkResult {
		ops = append(ops, op)
		return WalkAdvance
	})
	return ops
}

// CountKinds returns the number of ops of each kind in the module.
func (m *Module) CountKinds() map[Kind]int {
	counts := make(map[Kind]int)
	m.Walk(func(op *Op) WalkResult {
		counts[op.kind]++
		return WalkAdvance
	})
	return counts
}
