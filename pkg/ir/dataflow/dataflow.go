// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package dataflow implements backwards traversals of the use-def chains of the IR, looking through
// loop-carried values.
package dataflow

import (
	"github.com/gomlx/xetile/pkg/ir"
	"github.com/gomlx/xetile/pkg/support/sets"
)

// PreLoopValue follows loop-carried block arguments back to the values they are initialized with before the
// loop: for an iter arg of a loop body, it returns the corresponding loop init operand, repeating through nested
// loops. Other values (including the induction variable) are returned unchanged.
func PreLoopValue(v *ir.Value) *ir.Value {
	for v.IsBlockArgument() {
		block := v.OwnerBlock()
		loop := block.ParentOp()
		if loop == nil || loop.Kind() != ir.KindFor {
			break
		}
		inits := ir.ForInits(loop)
		firstIterArg := block.NumArgs() - len(inits)
		idx := v.ArgNumber()
		if idx < firstIterArg {
			break
		}
		v = inits[idx-firstIterArg]
	}
	return v
}

// FindProducers returns the ops of the given kind that contribute to v: the transitive closure of the defining
// ops of v and of their operands, looking through loop-carried values with PreLoopValue.
// Each op is returned once, in the order it is found by a depth-first traversal.
func FindProducers(v *ir.Value, kind ir.Kind) []*ir.Op {
	var found []*ir.Op
	foundSet := sets.Make[*ir.Op]()
	visited := sets.Make[*ir.Value]()
	worklist := []*ir.Value{v}
	for len(worklist) > 0 {
		current := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		if current == nil || visited.Has(current) {
			continue
		}
		visited.Insert(current)
		if current.IsBlockArgument() {
			current = PreLoopValue(current)
		}
		def := current.DefiningOp()
		if def == nil {
			continue
		}
		if def.Kind() == kind && !foundSet.Has(def) {
			foundSet.Insert(def)
			found = append(found, def)
		}
		worklist = append(worklist, def.Operands()...)
	}
	return found
}
