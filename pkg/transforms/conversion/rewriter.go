// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package conversion

import (
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/xetile/pkg/ir"
	"github.com/gomlx/xetile/pkg/support/sets"
)

// valueMapping records, for every replaced value, the ordered list of values replacing it.
// Entries are never removed: replacement values can themselves be replaced later, and lookup follows the chain.
type valueMapping struct {
	values map[*ir.Value][]*ir.Value
}

func newValueMapping() *valueMapping {
	return &valueMapping{values: make(map[*ir.Value][]*ir.Value)}
}

func (m *valueMapping) set(from *ir.Value, to []*ir.Value) {
	if _, found := m.values[from]; found {
		exceptions.Panicf("value of type %s was already replaced", from.Type())
	}
	m.values[from] = slices.Clone(to)
}

// lookup returns the current values replacing v, following chains of replacements.
// Values never replaced are returned as themselves.
func (m *valueMapping) lookup(v *ir.Value) []*ir.Value {
	return m.lookupVisited(v, sets.Make[*ir.Value]())
}

func (m *valueMapping) lookupVisited(v *ir.Value, visited sets.Set[*ir.Value]) []*ir.Value {
	to, found := m.values[v]
	if !found {
		return []*ir.Value{v}
	}
	if visited.Has(v) {
		exceptions.Panicf("cycle in value replacements at value of type %s", v.Type())
	}
	visited.Insert(v)
	var result []*ir.Value
	for _, replacement := range to {
		result = append(result, m.lookupVisited(replacement, visited)...)
	}
	delete(visited, v)
	return result
}

// Rewriter is used by patterns to create ops (with the embedded ir.Builder, positioned before the op being
// rewritten) and to record replacements.
//
// Replaced ops are erased immediately, but their results keep their uses: the remaining users see the
// replacement values through their Adaptor, and uses are substituted at the end of the conversion.
type Rewriter struct {
	*ir.Builder

	mapping *valueMapping
	created []*ir.Op
	stats   *Stats
}

func newRewriter(op *ir.Op, mapping *valueMapping, stats *Stats) *Rewriter {
	r := &Rewriter{Builder: ir.NewBuilderBefore(op), mapping: mapping, stats: stats}
	r.Listener = func(newOp *ir.Op) {
		r.created = append(r.created, newOp)
	}
	return r
}

// Lookup returns the current values replacing v.
func (r *Rewriter) Lookup(v *ir.Value) []*ir.Value {
	return r.mapping.lookup(v)
}

// ReplaceOp replaces each result of op by the corresponding value, and erases op.
func (r *Rewriter) ReplaceOp(op *ir.Op, values ...*ir.Value) {
	if len(values) != op.NumResults() {
		exceptions.Panicf("ReplaceOp(%s): %d replacement values for %d results", op.Kind(), len(values), op.NumResults())
	}
	groups := make([][]*ir.Value, len(values))
	for i, v := range values {
		groups[i] = []*ir.Value{v}
	}
	r.ReplaceOpWithMultiple(op, groups)
}

// ReplaceOpWithMultiple replaces each result of op by a group of values (one-to-many replacement), and erases op.
func (r *Rewriter) ReplaceOpWithMultiple(op *ir.Op, groups [][]*ir.Value) {
	if len(groups) != op.NumResults() {
		exceptions.Panicf("ReplaceOpWithMultiple(%s): %d replacement groups for %d results",
			op.Kind(), len(groups), op.NumResults())
	}
	for i, group := range groups {
		r.mapping.set(op.Result(i), group)
	}
	r.EraseOp(op)
}

// EraseOp erases op. Any remaining use of its results must be gone by the end of the conversion.
func (r *Rewriter) EraseOp(op *ir.Op) {
	op.Erase()
	r.stats.Erased++
}

// ModifyInPlace calls fn, which is expected to update op (its operands or data). The driver re-checks its legality.
func (r *Rewriter) ModifyInPlace(op *ir.Op, fn func()) {
	fn()
	r.stats.ModifiedInPlace++
}

// MoveRegion moves all the blocks of from into to, leaving from empty.
func (r *Rewriter) MoveRegion(from, to *ir.Region) {
	to.TakeBlocksFrom(from)
}

// SignatureConversion describes how the arguments of a block are converted: each original argument is replaced
// by a (possibly empty) group of new arguments.
type SignatureConversion struct {
	groups [][]ir.Type
}

// NewSignatureConversion creates a conversion for a block with numArgs arguments.
func NewSignatureConversion(numArgs int) *SignatureConversion {
	return &SignatureConversion{groups: make([][]ir.Type, numArgs)}
}

// AddInputs sets the types of the new arguments replacing the original argument origIdx.
func (s *SignatureConversion) AddInputs(origIdx int, types ...ir.Type) {
	s.groups[origIdx] = append(s.groups[origIdx], types...)
}

// ConvertedTypes returns the types of all the new arguments.
func (s *SignatureConversion) ConvertedTypes() []ir.Type {
	var types []ir.Type
	for _, group := range s.groups {
		types = append(types, group...)
	}
	return types
}

// ApplySignatureConversion replaces the arguments of block, and records each original argument as replaced by its
// group of new arguments. It returns the new arguments.
func (r *Rewriter) ApplySignatureConversion(block *ir.Block, conversion *SignatureConversion) []*ir.Value {
	if block.NumArgs() != len(conversion.groups) {
		exceptions.Panicf("signature conversion for %d arguments applied to a block with %d arguments",
			len(conversion.groups), block.NumArgs())
	}
	oldArgs := block.Args()
	newArgs := block.SetArguments(conversion.ConvertedTypes())
	pos := 0
	for i, old := range oldArgs {
		n := len(conversion.groups[i])
		r.mapping.set(old, newArgs[pos:pos+n])
		pos += n
	}
	return newArgs
}

// rollback erases the ops created so far, in reverse order.
func (r *Rewriter) rollback() {
	for _, op := range slices.Backward(r.created) {
		if !op.IsErased() {
			op.Erase()
		}
	}
	r.created = nil
}
