// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package conversion

import (
	"github.com/gomlx/xetile/pkg/ir"
	"github.com/gomlx/xetile/pkg/support/sets"
)

// LegalityFn decides whether an op of a dynamically legal kind is legal.
type LegalityFn func(op *ir.Op) bool

// Target defines which ops are legal after the conversion.
//
// Each kind is either legal, illegal, or dynamically legal (decided by a LegalityFn). Kinds that were not
// registered are legal: this default is applied last, so unknown ops never block the conversion.
type Target struct {
	legal   sets.Set[ir.Kind]
	illegal sets.Set[ir.Kind]
	dynamic map[ir.Kind]LegalityFn
}

// NewTarget creates a Target where every kind is legal.
func NewTarget() *Target {
	return &Target{
		legal:   sets.Make[ir.Kind](),
		illegal: sets.Make[ir.Kind](),
		dynamic: make(map[ir.Kind]LegalityFn),
	}
}

// AddLegal marks the kinds as always legal.
func (t *Target) AddLegal(kinds ...ir.Kind) *Target {
	for _, kind := range kinds {
		t.forget(kind)
		t.legal.Insert(kind)
	}
	return t
}

// AddIllegal marks the kinds as always illegal: ops of these kinds must be rewritten.
func (t *Target) AddIllegal(kinds ...ir.Kind) *Target {
	for _, kind := range kinds {
		t.forget(kind)
		t.illegal.Insert(kind)
	}
	return t
}

// AddDynamicallyLegal registers fn to decide the legality of the ops of the given kinds.
func (t *Target) AddDynamicallyLegal(fn LegalityFn, kinds ...ir.Kind) *Target {
	for _, kind := range kinds {
		t.forget(kind)
		t.dynamic[kind] = fn
	}
	return t
}

func (t *Target) forget(kind ir.Kind) {
	t.legal.Delete(kind)
	t.illegal.Delete(kind)
	delete(t.dynamic, kind)
}

// IsLegal returns whether op is legal.
func (t *Target) IsLegal(op *ir.Op) bool {
	kind := op.Kind()
	if t.illegal.Has(kind) {
		return false
	}
	if fn, found := t.dynamic[kind]; found {
		return fn(op)
	}
	return true
}
