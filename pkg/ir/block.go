// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"slices"

	"github.com/gomlx/exceptions"
)

// Block is a list of ops with a list of typed arguments, owned by a Region.
type Block struct {
	args   []*Value
	ops    []*Op
	parent *Region
}

// Region is a list of blocks owned by an op (for instance the body of a loop).
type Region struct {
	blocks []*Block
	parent *Op
}

// Args returns the block arguments.
func (b *Block) Args() []*Value { return slices.Clone(b.args) }

// Arg returns the i-th block argument.
func (b *Block) Arg(i int) *Value { return b.args[i] }

// NumArgs returns the number of block arguments.
func (b *Block) NumArgs() int { return len(b.args) }

// AddArgument appends a new argument of the given type to the block.
func (b *Block) AddArgument(t Type) *Value {
	v := &Value{typ: t, block: b, argIdx: len(b.args)}
	b.args = append(b.args, v)
	return v
}

// SetArguments replaces all block arguments with new ones of the given types and returns them.
// The old arguments are detached: they keep their uses, which are expected to be remapped by the caller.
func (b *Block) SetArguments(types []Type) []*Value {
	for _, arg := range b.args {
		arg.block = nil
	}
	b.args = nil
	for _, t := range types {
		b.AddArgument(t)
	}
	return b.Args()
}

// Ops returns a copy of the list of ops in the block.
func (b *Block) Ops() []*Op { return slices.Clone(b.ops) }

// NumOps returns the number of ops in the block.
func (b *Block) NumOps() int { return len(b.ops) }

// Terminator returns the last op of the block if it is a terminator, or nil.
func (b *Block) Terminator() *Op {
	if len(b.ops) == 0 {
		return nil
	}
	last := b.ops[len(b.ops)-1]
	if !last.kind.IsTerminator() {
		return nil
	}
	return last
}

// Parent returns the region owning the block.
func (b *Block) Parent() *Region { return b.parent }

// ParentOp returns the op owning the region of the block, or nil for the module body.
func (b *Block) ParentOp() *Op {
	if b.parent == nil {
		return nil
	}
	return b.parent.parent
}

// IndexOf returns the position of op in the block, or -1.
func (b *Block) IndexOf(op *Op) int {
	return slices.Index(b.ops, op)
}

// Append adds op at the end of the block.
func (b *Block) Append(op *Op) {
	b.insertAt(len(b.ops), op)
}

// InsertBefore inserts op right before anchor, which must be in the block.
func (b *Block) InsertBefore(anchor, op *Op) {
	idx := b.IndexOf(anchor)
	if idx < 0 {
		exceptions.Panicf("InsertBefore: anchor %s is not in the block", anchor.kind)
	}
	b.insertAt(idx, op)
}

func (b *Block) insertAt(idx int, op *Op) {
	if op.block != nil {
		exceptions.Panicf("cannot insert %s in a block, it is already in another block", op.kind)
	}
	b.ops = slices.Insert(b.ops, idx, op)
	op.block = b
}

// remove detaches op from the block, without touching its operands.
func (b *Block) remove(op *Op) {
	idx := b.IndexOf(op)
	if idx < 0 {
		return
	}
	b.ops = slices.Delete(b.ops, idx, idx+1)
	op.block = nil
}

// Blocks returns the blocks of the region.
func (r *Region) Blocks() []*Block { return slices.Clone(r.blocks) }

// Front returns the first (entry) block of the region, or nil if empty.
func (r *Region) Front() *Block {
	if len(r.blocks) == 0 {
		return nil
	}
	return r.blocks[0]
}

// Parent returns the op owning the region.
func (r *Region) Parent() *Op { return r.parent }

// AddBlock appends a new block with arguments of the given types.
func (r *Region) AddBlock(argTypes ...Type) *Block {
	b := &Block{parent: r}
	for _, t := range argTypes {
		b.AddArgument(t)
	}
	r.blocks = append(r.blocks, b)
	return b
}

// TakeBlocksFrom moves all blocks of other into r, leaving other empty.
// It's used to move a loop body into a newly created loop.
func (r *Region) TakeBlocksFrom(other *Region) {
	for _, b := range r.blocks {
		b.parent = nil
	}
	r.blocks = other.blocks
	other.blocks = nil
	for _, b := range r.blocks {
		b.parent = r
	}
}
