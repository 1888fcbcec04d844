// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package conversion implements a partial conversion driver with support for one-to-many replacements.
//
// A conversion is defined by a Target, which tells which ops are legal, and a list of Pattern, each rewriting
// one kind of op. The driver sweeps the module in pre-order, and for every illegal op tries the patterns for its
// kind, in order, until one succeeds. Sweeps are repeated until no pattern applies. If illegal ops remain the
// conversion fails with ErrLegalizationFailed.
//
// An op result can be replaced by several values (see Rewriter.ReplaceOpWithMultiple). Users of replaced values
// are not updated right away: patterns see the replacements through their Adaptor, and the remaining users are
// updated at the end of the conversion, when every replacement is known.
package conversion

import (
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/xetile/pkg/ir"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrLegalizationFailed is returned (wrapped) when illegal ops remain after the conversion.
var ErrLegalizationFailed = errors.New("failed to legalize operations")

// DefaultMaxSweeps is the default limit on the number of sweeps over the module.
const DefaultMaxSweeps = 32

// Config of the driver.
type Config struct {
	// MaxSweeps is the maximum number of sweeps over the module. If <= 0, DefaultMaxSweeps is used.
	MaxSweeps int

	// LogPrefix is prepended to log lines, e.g. to identify a pass run.
	LogPrefix string
}

// Stats collected during a conversion.
type Stats struct {
	Sweeps          int
	Rewrites        map[string]int // Per pattern name.
	Declines        map[string]int // Per pattern name.
	Created         int
	Erased          int
	ModifiedInPlace int
}

func newStats() *Stats {
	return &Stats{Rewrites: make(map[string]int), Declines: make(map[string]int)}
}

// TotalRewrites returns the number of successful pattern applications.
func (s *Stats) TotalRewrites() int {
	total := 0
	for _, n := range s.Rewrites {
		total += n
	}
	return total
}

type driver struct {
	target   *Target
	patterns map[ir.Kind][]Pattern
	config   Config
	mapping  *valueMapping
	stats    *Stats

	// lastDecline holds the latest decline reason per op, for the final diagnostic.
	lastDecline map[*ir.Op]string
}

// ApplyPartialConversion converts module in place until every op is legal for target.
//
// It returns ErrLegalizationFailed (wrapped with the list of the remaining illegal ops) if the conversion didn't
// converge. Panics raised inside patterns are returned as errors.
// The module is left in an undefined state if an error is returned.
func ApplyPartialConversion(module *ir.Module, target *Target, patterns []Pattern, config Config) (*Stats, error) {
	if config.MaxSweeps <= 0 {
		config.MaxSweeps = DefaultMaxSweeps
	}
	d := &driver{
		target:      target,
		patterns:    make(map[ir.Kind][]Pattern),
		config:      config,
		mapping:     newValueMapping(),
		stats:       newStats(),
		lastDecline: make(map[*ir.Op]string),
	}
	for _, p := range patterns {
		d.patterns[p.Kind()] = append(d.patterns[p.Kind()], p)
	}

	for d.stats.Sweeps < config.MaxSweeps {
		d.stats.Sweeps++
		progress, err := d.sweep(module)
		if err != nil {
			return d.stats, err
		}
		klog.V(1).Infof("%ssweep #%d: progress=%v, %d rewrites so far", config.LogPrefix, d.stats.Sweeps, progress,
			d.stats.TotalRewrites())
		if !progress {
			break
		}
	}

	if err := d.checkLegal(module); err != nil {
		return d.stats, err
	}
	if err := d.commit(module); err != nil {
		return d.stats, err
	}
	return d.stats, nil
}

// sweep tries to legalize every illegal op of the module once. It returns whether any pattern was applied.
func (d *driver) sweep(module *ir.Module) (progress bool, err error) {
	for _, op := range module.CollectOps() {
		if op.IsErased() || op.Block() == nil || d.target.IsLegal(op) {
			continue
		}
		var applied bool
		applied, err = d.legalize(op)
		if err != nil {
			return
		}
		progress = progress || applied
	}
	return
}

// legalize tries the patterns for op's kind until one succeeds.
func (d *driver) legalize(op *ir.Op) (bool, error) {
	for _, p := range d.patterns[op.Kind()] {
		rewriter := newRewriter(op, d.mapping, d.stats)
		adaptor := d.adaptor(op)
		var result Result
		err := exceptions.TryCatch[error](func() {
			result = p.Rewrite(op, adaptor, rewriter)
		})
		if err != nil {
			return false, errors.WithMessagef(err, "pattern %s panicked while rewriting %s", p.Name(), op.Kind())
		}
		if result.Succeeded() {
			d.stats.Rewrites[p.Name()]++
			d.stats.Created += len(rewriter.created)
			delete(d.lastDecline, op)
			klog.V(2).Infof("%s%s: rewrote %s into %d ops", d.config.LogPrefix, p.Name(), op.Kind(),
				len(rewriter.created))
			return true, nil
		}
		rewriter.rollback()
		d.stats.Declines[p.Name()]++
		d.lastDecline[op] = fmt.Sprintf("%s: %s", p.Name(), result.Reason())
		klog.V(2).Infof("%s%s declined %s: %s", d.config.LogPrefix, p.Name(), op.Kind(), result.Reason())
	}
	return false, nil
}

func (d *driver) adaptor(op *ir.Op) *Adaptor {
	operands := make([][]*ir.Value, op.NumOperands())
	for i, v := range op.Operands() {
		operands[i] = d.mapping.lookup(v)
	}
	return &Adaptor{operands: operands}
}

// checkLegal returns an error listing the ops that remain illegal.
func (d *driver) checkLegal(module *ir.Module) error {
	var illegal []string
	module.Walk(func(op *ir.Op) ir.WalkResult {
		if !d.target.IsLegal(op) {
			desc := op.Kind().String()
			if reason, found := d.lastDecline[op]; found {
				desc += " (" + reason + ")"
			}
			illegal = append(illegal, desc)
		}
		return ir.WalkAdvance
	})
	if len(illegal) == 0 {
		return nil
	}
	return errors.Wrapf(ErrLegalizationFailed, "%d ops remain illegal after %d sweeps: %s",
		len(illegal), d.stats.Sweeps, strings.Join(illegal, "; "))
}

// commit substitutes the remaining uses of replaced values. Values replaced by anything other than exactly one
// value can't be used anymore.
func (d *driver) commit(module *ir.Module) (err error) {
	module.Walk(func(op *ir.Op) ir.WalkResult {
		for i, operand := range op.Operands() {
			replacements := d.mapping.lookup(operand)
			if len(replacements) == 1 {
				if replacements[0] != operand {
					op.SetOperand(i, replacements[0])
				}
				continue
			}
			err = errors.Wrapf(ErrLegalizationFailed, "operand #%d of %s (type %s) was replaced by %d values",
				i, op.Kind(), operand.Type(), len(replacements))
			return ir.WalkInterrupt
		}
		return ir.WalkAdvance
	})
	return
}
