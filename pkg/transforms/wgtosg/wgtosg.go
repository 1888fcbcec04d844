// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package wgtosg implements the workgroup-to-subgroup decomposition pass.
//
// Workgroup-level tile and vector ops carry a workgroup map (sg_layout, sg_data) describing how the value is
// partitioned over the subgroups of the workgroup. The pass rewrites them into subgroup-level ops, one or more per
// subgroup, with the per-subgroup offsets computed explicitly from the subgroup id. Layout conversions between two
// workgroup maps go through scratch memory, with a barrier between the writes and the reads.
//
// Example:
//
//	// A 256x256 tile of a 4x4 grid of subgroups, each one owning a 64x64 tile:
//	//   xetile.init_tile %C[%m, %n] : memref<4096x4096xf32> -> !xetile.tile<256x256xf32, wg_map<[4, 4], [64, 64]>>
//	// becomes, for each subgroup:
//	//   xetile.init_tile %C[%row, %col] : memref<4096x4096xf32> -> !xetile.tile<64x64xf32>
//	err := wgtosg.New(wgtosg.Config().Verify(true).Done()).Run(module)
package wgtosg

import (
	"fmt"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/xetile/pkg/ir"
	"github.com/gomlx/xetile/pkg/transforms"
	"github.com/gomlx/xetile/pkg/transforms/conversion"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrUnsupportedModule is returned (wrapped) when a function signature uses tile types.
var ErrUnsupportedModule = errors.New("function signatures with tile types are not supported")

// Options of the pass. Create them with Config.
type Options struct {
	// MaxSweeps limits the number of sweeps of the conversion driver, see conversion.Config.
	MaxSweeps int

	// VerifyBefore and VerifyAfter run ir.Module.Verify before and after the conversion.
	VerifyBefore, VerifyAfter bool

	// DumpIR logs the module (at verbosity level 3) before and after the conversion.
	DumpIR bool
}

// OptionsBuilder configures Options, see Config.
type OptionsBuilder struct {
	options Options
}

// Config starts the configuration of the pass options. Call Done to get the Options.
//
// Example:
//
//	options := wgtosg.Config().MaxSweeps(8).Verify(true).Done()
func Config() *OptionsBuilder {
	return &OptionsBuilder{options: Options{MaxSweeps: conversion.DefaultMaxSweeps}}
}

// MaxSweeps sets the maximum number of sweeps of the conversion driver.
// It returns the OptionsBuilder, so calls can be cascaded.
func (b *OptionsBuilder) MaxSweeps(n int) *OptionsBuilder {
	b.options.MaxSweeps = n
	return b
}

// Verify enables the structural verification of the module before and after the conversion.
// It returns the OptionsBuilder, so calls can be cascaded.
func (b *OptionsBuilder) Verify(verify bool) *OptionsBuilder {
	b.options.VerifyBefore = verify
	b.options.VerifyAfter = verify
	return b
}

// DumpIR enables logging the module before and after the conversion (klog verbosity 3).
// It returns the OptionsBuilder, so calls can be cascaded.
func (b *OptionsBuilder) DumpIR(dump bool) *OptionsBuilder {
	b.options.DumpIR = dump
	return b
}

// Done returns the configured Options.
func (b *OptionsBuilder) Done() Options {
	return b.options
}

// Pass is the workgroup-to-subgroup decomposition pass.
type Pass struct {
	options Options

	// Stats of the last run.
	Stats *conversion.Stats

	// Orders is the layout order analysis of the last run.
	Orders *LayoutOrders
}

// New creates the pass with the given options.
func New(options Options) *Pass {
	return &Pass{options: options}
}

// Name implements transforms.Pass.
func (p *Pass) Name() string { return "xetile-wg-to-sg" }

// Run decomposes the module in place. It returns ErrUnsupportedModule if a function signature uses tile types,
// or conversion.ErrLegalizationFailed if workgroup-level ops remain.
func (p *Pass) Run(module *ir.Module) (err error) {
	runID := uuid.NewString()
	prefix := fmt.Sprintf("[%s %s] ", p.Name(), runID[:8])
	klog.V(1).Infof("%sstarting on module %q", prefix, module.Name)

	if err = CheckSupportedModule(module); err != nil {
		return err
	}
	if p.options.VerifyBefore {
		if err = module.Verify(); err != nil {
			return errors.WithMessage(err, "invalid input module")
		}
	}
	if p.options.DumpIR && klog.V(3).Enabled() {
		klog.Infof("%sinput:\n%s", prefix, module)
	}

	var convErr error
	err = exceptions.TryCatch[error](func() {
		p.Orders = NewLayoutOrders()
		AnalyzeTransposes(module, p.Orders)
		klog.V(1).Infof("%s%d values marked column-major", prefix, p.Orders.Len())
		p.Stats, convErr = conversion.ApplyPartialConversion(module, NewTarget(), Patterns(p.Orders),
			conversion.Config{MaxSweeps: p.options.MaxSweeps, LogPrefix: prefix})
	})
	if err == nil {
		err = convErr
	}
	if err != nil {
		return errors.WithMessagef(err, "%s failed on module %q", p.Name(), module.Name)
	}

	if p.options.DumpIR && klog.V(3).Enabled() {
		klog.Infof("%soutput:\n%s", prefix, module)
	}
	if p.options.VerifyAfter {
		if err = module.Verify(); err != nil {
			return errors.WithMessage(err, "invalid output module")
		}
	}
	klog.V(1).Infof("%sdone: %d rewrites in %d sweeps", prefix, p.Stats.TotalRewrites(), p.Stats.Sweeps)
	return nil
}

// CheckSupportedModule returns ErrUnsupportedModule if any function takes or returns tiles.
func CheckSupportedModule(module *ir.Module) error {
	for _, f := range module.Funcs() {
		data := f.Data().(*ir.FuncData)
		for _, t := range slices.Concat(data.Type.Inputs, data.Type.Results) {
			if _, isTile := t.(*ir.TileType); isTile {
				return errors.Wrapf(ErrUnsupportedModule, "function %q", data.Name)
			}
		}
	}
	return nil
}

// rules holds the state shared by the patterns.
type rules struct {
	orders *LayoutOrders
}

// Patterns returns the decomposition patterns. orders is the result of AnalyzeTransposes, and it's only read.
func Patterns(orders *LayoutOrders) []conversion.Pattern {
	r := &rules{orders: orders}
	patterns := []conversion.Pattern{
		conversion.NewPattern("init-tile", ir.KindInitTile, r.initTile),
		conversion.NewPattern("load-tile", ir.KindLoadTile, r.loadTile),
		conversion.NewPattern("load-gather", ir.KindLoadGather, r.loadGather),
		conversion.NewPattern("tile-mma", ir.KindTileMMA, r.tileMMA),
		conversion.NewPattern("store-tile", ir.KindStoreTile, r.storeTile),
		conversion.NewPattern("store-scatter", ir.KindStoreScatter, r.storeScatter),
		conversion.NewPattern("prefetch-tile", ir.KindPrefetchTile, r.prefetchTile),
		conversion.NewPattern("update-tile-offset", ir.KindUpdateTileOffset, r.updateTileOffset),
		conversion.NewPattern("scf-for", ir.KindFor, r.forLoop),
		conversion.NewPattern("scf-yield", ir.KindYield, r.yield),
		conversion.NewPattern("constant", ir.KindConstant, r.constant),
		conversion.NewPattern("vector-transpose", ir.KindTranspose, r.transpose),
		conversion.NewPattern("convert-layout", ir.KindConvertLayout, r.convertLayout),
		conversion.NewPattern("vector-broadcast", ir.KindBroadcast, r.broadcast),
		conversion.NewPattern("vector-multi-reduction", ir.KindMultiReduction, r.multiReduction),
		conversion.NewPattern("vector-shape-cast", ir.KindShapeCast, r.shapeCast),
		conversion.NewPattern("vector-create-mask", ir.KindCreateMask, r.createMask),
	}
	for _, kind := range []ir.Kind{ir.KindExp, ir.KindSqrt, ir.KindAddF, ir.KindCmpI, ir.KindCmpF, ir.KindSelect,
		ir.KindFPowI} {
		patterns = append(patterns, conversion.NewPattern("elementwise-"+kind.String(), kind, r.elementwise))
	}
	for _, kind := range ir.AllKinds() {
		if kind.IsCast() {
			patterns = append(patterns, conversion.NewPattern("cast-"+kind.String(), kind, r.cast))
		}
	}
	return patterns
}

var _ transforms.Pass = (*Pass)(nil)
