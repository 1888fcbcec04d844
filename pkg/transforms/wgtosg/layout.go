// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package wgtosg

import (
	"github.com/gomlx/xetile/pkg/ir"
	"github.com/gomlx/xetile/pkg/ir/dataflow"
	"k8s.io/klog/v2"
)

// LayoutOrders records the values whose subgroup ids must be read in column-major order ({0, 1}).
//
// For a 4x8 subgroup layout, column-major order arranges the subgroup ids like this:
//
//	| 0 | 4 |  8 | 12 | 16 | 20 | 24 | 28 |
//	| 1 | 5 |  9 | 13 | 17 | 21 | 25 | 29 |
//	| 2 | 6 | 10 | 14 | 18 | 22 | 26 | 30 |
//	| 3 | 7 | 11 | 15 | 19 | 23 | 27 | 31 |
//
// It's filled by AnalyzeTransposes before the conversion, and only read by the patterns.
type LayoutOrders struct {
	orders map[*ir.Value][2]int
}

// NewLayoutOrders creates an empty store.
func NewLayoutOrders() *LayoutOrders {
	return &LayoutOrders{orders: make(map[*ir.Value][2]int)}
}

// Mark v as column-major.
func (l *LayoutOrders) Mark(v *ir.Value) {
	l.orders[v] = [2]int{0, 1}
}

// Unmark removes the mark of v, if any.
func (l *LayoutOrders) Unmark(v *ir.Value) {
	delete(l.orders, v)
}

// IsColumnMajor returns whether v is marked.
func (l *LayoutOrders) IsColumnMajor(v *ir.Value) bool {
	_, found := l.orders[v]
	return found
}

// Order returns the layout order of v: {0, 1} if marked, {1, 0} (row-major) otherwise.
func (l *LayoutOrders) Order(v *ir.Value) [2]int {
	if order, found := l.orders[v]; found {
		return order
	}
	return [2]int{1, 0}
}

// Len returns the number of marked values.
func (l *LayoutOrders) Len() int { return len(l.orders) }

// AnalyzeTransposes finds the vector transposes fed (possibly through loops) by tile loads, and marks the
// transpose result and the init_tile ops producing the loaded tiles as column-major.
//
// An init_tile reached more than once has its mark toggled: a tile shared by conflicting uses falls back to
// row-major. The IR is not modified.
func AnalyzeTransposes(module *ir.Module, orders *LayoutOrders) {
	module.Walk(func(op *ir.Op) ir.WalkResult {
		if op.Kind() != ir.KindTranspose {
			return ir.WalkAdvance
		}
		loads := dataflow.FindProducers(op.Operand(0), ir.KindLoadTile)
		if len(loads) == 0 {
			return ir.WalkSkip
		}
		for _, load := range loads {
			inits := dataflow.FindProducers(load.Operand(0), ir.KindInitTile)
			if len(inits) == 0 {
				continue
			}
			orders.Mark(op.Result(0))
			for _, init := range inits {
				tile := init.Result(0)
				if orders.IsColumnMajor(tile) {
					klog.Warningf("init_tile of %s feeds conflicting transposes, falling back to row-major", tile.Type())
					orders.Unmark(tile)
				} else {
					orders.Mark(tile)
				}
			}
		}
		return ir.WalkAdvance
	})
}
