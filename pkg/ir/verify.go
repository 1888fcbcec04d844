// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"github.com/pkg/errors"
)

// Verify checks the structural consistency of the module:
//
//   - Every operand is defined before its use, in the same block or in an enclosing one, and its defining op
//     was not erased.
//   - Use lists match the operands.
//   - Loop bodies are terminated by a yield matching the loop results, functions by a return.
//   - Workgroup maps divide the shapes they distribute.
func (m *Module) Verify() error {
	v := &verifier{visible: make(map[*Value]bool)}
	return v.block(m.Body())
}

type verifier struct {
	visible map[*Value]bool
}

func (v *verifier) block(block *Block) error {
	var defined []*Value
	defer func() {
		for _, value := range defined {
			delete(v.visible, value)
		}
	}()
	for _, arg := range block.args {
		v.visible[arg] = true
		defined = append(defined, arg)
	}
	for idx, op := range block.ops {
		if op.block != block {
			return errors.Errorf("%s at position %d has an inconsistent parent block", op.kind, idx)
		}
		if op.erased {
			return errors.Errorf("erased op %s still in a block", op.kind)
		}
		if err := v.op(op); err != nil {
			return err
		}
		for _, result := range op.results {
			v.visible[result] = true
			defined = append(defined, result)
		}
	}
	return nil
}

func (v *verifier) op(op *Op) error {
	for i, operand := range op.operands {
		if operand.def != nil && operand.def.erased {
			return errors.Errorf("%s: operand #%d is defined by an erased %s", op.kind, i, operand.def.kind)
		}
		if !v.visible[operand] {
			return errors.Errorf("%s: operand #%d (%s) doesn't dominate its use", op.kind, i, operand.typ)
		}
		found := false
		for _, use := range operand.uses {
			if use.Op == op && use.Index == i {
				found = true
				break
			}
		}
		if !found {
			return errors.Errorf("%s: operand #%d is missing from its value's use list", op.kind, i)
		}
	}
	for _, result := range op.results {
		if tile, ok := result.typ.(*TileType); ok && tile.WgMap != nil {
			if err := tile.WgMap.Validate(tile.Shape); err != nil {
				return errors.WithMessagef(err, "%s: invalid tile type", op.kind)
			}
		}
		if op.Map != nil {
			if err := op.Map.Validate(ShapeOf(result.typ)); err != nil {
				return errors.WithMessagef(err, "%s: invalid map", op.kind)
			}
		}
	}
	if err := v.terminator(op); err != nil {
		return err
	}
	for _, region := range op.regions {
		for _, block := range region.blocks {
			if block.parent != region {
				return errors.Errorf("%s: block with inconsistent parent region", op.kind)
			}
			if err := v.block(block); err != nil {
				return errors.WithMessagef(err, "in %s", op.kind)
			}
		}
	}
	return nil
}

func (v *verifier) terminator(op *Op) error {
	switch op.kind {
	case KindFor:
		body := op.Body()
		if body == nil {
			return errors.Errorf("%s without a body", op.kind)
		}
		if body.NumArgs() != len(op.results)+1 {
			return errors.Errorf("%s: body has %d arguments, expected induction variable plus %d iter args",
				op.kind, body.NumArgs(), len(op.results))
		}
		yield := body.Terminator()
		if yield == nil || yield.kind != KindYield {
			return errors.Errorf("%s: body is not terminated by %s", op.kind, KindYield)
		}
		if len(yield.operands) != len(op.results) {
			return errors.Errorf("%s: yields %d values for %d results", op.kind, len(yield.operands), len(op.results))
		}
		for i, value := range yield.operands {
			if !value.typ.Equal(op.results[i].typ) {
				return errors.Errorf("%s: yielded value #%d has type %s, but loop result has type %s",
					op.kind, i, value.typ, op.results[i].typ)
			}
		}
	case KindFunc:
		body := op.Body()
		if body == nil {
			return errors.Errorf("function %q without a body", op.data.(*FuncData).Name)
		}
		ret := body.Terminator()
		if ret == nil || ret.kind != KindReturn {
			return errors.Errorf("function %q is not terminated by %s", op.data.(*FuncData).Name, KindReturn)
		}
	}
	return nil
}
