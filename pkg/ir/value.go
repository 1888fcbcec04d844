// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import "slices"

// Value is an SSA value: it is defined exactly once, either as the result of an Op or as an argument of a Block,
// and used by any number of operands.
type Value struct {
	typ Type

	// def and resultIdx are set for op results.
	def       *Op
	resultIdx int

	// block and argIdx are set for block arguments.
	block  *Block
	argIdx int

	uses []Use

	// Name is an optional hint used by the printer and by program documents.
	Name string
}

// Use is one operand slot referring to a Value.
type Use struct {
	Op    *Op
	Index int
}

// Type of the value.
func (v *Value) Type() Type { return v.typ }

// SetType changes the type of the value in place.
func (v *Value) SetType(t Type) { v.typ = t }

// DefiningOp returns the op that defines the value, or nil for block arguments.
func (v *Value) DefiningOp() *Op { return v.def }

// ResultNumber is the index of the value in the results of its defining op.
func (v *Value) ResultNumber() int { return v.resultIdx }

// IsBlockArgument returns whether the value is a block argument.
func (v *Value) IsBlockArgument() bool { return v.block != nil }

// OwnerBlock returns the block of a block argument, or nil.
func (v *Value) OwnerBlock() *Block { return v.block }

// ArgNumber is the index of a block argument in its block.
func (v *Value) ArgNumber() int { return v.argIdx }

// Uses returns a copy of the list of uses of the value.
func (v *Value) Uses() []Use { return slices.Clone(v.uses) }

// NumUses returns the number of operand slots using the value.
func (v *Value) NumUses() int { return len(v.uses) }

// HasOneUse returns whether the value is used by exactly one operand slot.
func (v *Value) HasOneUse() bool { return len(v.uses) == 1 }

// Users returns the distinct ops using the value, in the order of their first use.
func (v *Value) Users() []*Op {
	users := make([]*Op, 0, len(v.uses))
	for _, use := range v.uses {
		if !slices.Contains(users, use.Op) {
			users = append(users, use.Op)
		}
	}
	return users
}

// ReplaceAllUsesWith redirects every use of v to newValue.
func (v *Value) ReplaceAllUsesWith(newValue *Value) {
	if v == newValue {
		return
	}
	for _, use := range slices.Clone(v.uses) {
		use.Op.SetOperand(use.Index, newValue)
	}
}

func (v *Value) addUse(op *Op, idx int) {
	v.uses = append(v.uses, Use{Op: op, Index: idx})
}

func (v *Value) removeUse(op *Op, idx int) {
	for i, use := range v.uses {
		if use.Op == op && use.Index == idx {
			v.uses = slices.Delete(v.uses, i, i+1)
			return
		}
	}
}
