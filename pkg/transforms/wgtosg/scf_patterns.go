// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package wgtosg

import (
	"slices"

	"github.com/gomlx/xetile/pkg/ir"
	"github.com/gomlx/xetile/pkg/transforms/conversion"
)

// forLoop re-creates a loop with its loop-carried values flattened: each original value occupies as many slots as
// it has replacements. The body is moved into the new loop, and the results are sliced back in groups.
func (r *rules) forLoop(op *ir.Op, adaptor *conversion.Adaptor, rw *conversion.Rewriter) conversion.Result {
	bounds := make([]*ir.Value, 3)
	for i := range bounds {
		if bounds[i] = adaptor.Single(i); bounds[i] == nil {
			return conversion.Failure("loop bound #%d replaced by multiple values", i)
		}
	}
	remappedInits := adaptor.Operands()[3:]
	groupSizes := make([]int, len(remappedInits))
	var flatInits []*ir.Value
	for i, group := range remappedInits {
		groupSizes[i] = len(group)
		flatInits = append(flatInits, group...)
	}

	oldBody := op.Body()
	signature := conversion.NewSignatureConversion(oldBody.NumArgs())
	signature.AddInputs(0, oldBody.Arg(0).Type())
	for i, group := range remappedInits {
		for _, v := range group {
			signature.AddInputs(i+1, v.Type())
		}
	}
	rw.ApplySignatureConversion(oldBody, signature)

	newLoop := rw.For(bounds[0], bounds[1], bounds[2], flatInits...)
	rw.MoveRegion(op.Region(0), newLoop.Region(0))

	results := newLoop.Results()
	groups := make([][]*ir.Value, len(groupSizes))
	offset := 0
	for i, size := range groupSizes {
		groups[i] = results[offset : offset+size]
		offset += size
	}
	rw.ReplaceOpWithMultiple(op, groups)
	return conversion.Success()
}

// yield concatenates the replacements of its operands, in place.
func (r *rules) yield(op *ir.Op, adaptor *conversion.Adaptor, rw *conversion.Rewriter) conversion.Result {
	flat := adaptor.Flat()
	if slices.Equal(flat, op.Operands()) {
		return conversion.Failure("operands were not replaced yet")
	}
	rw.ModifyInPlace(op, func() { op.SetOperands(flat) })
	return conversion.Success()
}
