// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package conversion

import (
	"fmt"

	"github.com/gomlx/xetile/pkg/ir"
)

// Result of a rewrite attempt: either a success, or a decline with a reason.
//
// Declines are not errors: the driver tries the next pattern, and the op stays illegal if none applies.
type Result struct {
	ok     bool
	reason string
}

// Success is returned by patterns that rewrote the op.
func Success() Result { return Result{ok: true} }

// Failure is returned by patterns that decline to rewrite the op. The reason is logged.
func Failure(format string, args ...any) Result {
	return Result{reason: fmt.Sprintf(format, args...)}
}

// Succeeded returns whether the rewrite happened.
func (r Result) Succeeded() bool { return r.ok }

// Reason of a failure.
func (r Result) Reason() string { return r.reason }

// Pattern rewrites ops of one kind.
//
// Patterns must check all their preconditions before creating any op. If they create ops and then
// return a Failure, the driver erases the created ops, but replacements recorded with the Rewriter
// can't be undone.
type Pattern interface {
	// Name of the pattern, used for logging and statistics.
	Name() string

	// Kind of the root op matched by the pattern.
	Kind() ir.Kind

	// Rewrite op, whose operands (after previous replacements) are given by adaptor.
	// New ops are created with rewriter, which is positioned right before op.
	Rewrite(op *ir.Op, adaptor *Adaptor, rewriter *Rewriter) Result
}

// RewriteFn is the signature of Pattern.Rewrite.
type RewriteFn func(op *ir.Op, adaptor *Adaptor, rewriter *Rewriter) Result

type funcPattern struct {
	name string
	kind ir.Kind
	fn   RewriteFn
}

// NewPattern creates a Pattern from a function.
func NewPattern(name string, kind ir.Kind, fn RewriteFn) Pattern {
	return &funcPattern{name: name, kind: kind, fn: fn}
}

func (p *funcPattern) Name() string  { return p.name }
func (p *funcPattern) Kind() ir.Kind { return p.kind }
func (p *funcPattern) Rewrite(op *ir.Op, adaptor *Adaptor, rewriter *Rewriter) Result {
	return p.fn(op, adaptor, rewriter)
}

// Adaptor gives the current values of the operands of an op being rewritten: each original operand may have been
// replaced by zero, one or several values.
type Adaptor struct {
	operands [][]*ir.Value
}

// NumOperands returns the number of original operands.
func (a *Adaptor) NumOperands() int { return len(a.operands) }

// Operand returns the values currently replacing the i-th operand.
func (a *Adaptor) Operand(i int) []*ir.Value { return a.operands[i] }

// Operands returns the values currently replacing each of the operands.
func (a *Adaptor) Operands() [][]*ir.Value { return a.operands }

// Single returns the only value replacing the i-th operand, or nil if it was replaced by zero or several values.
func (a *Adaptor) Single(i int) *ir.Value {
	if len(a.operands[i]) != 1 {
		return nil
	}
	return a.operands[i][0]
}

// Flat returns all replacement values concatenated.
func (a *Adaptor) Flat() []*ir.Value {
	var flat []*ir.Value
	for _, values := range a.operands {
		flat = append(flat, values...)
	}
	return flat
}
