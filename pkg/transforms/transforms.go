// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package transforms defines the interface of the passes transforming an ir.Module, and a Pipeline to run
// them in sequence.
package transforms

import (
	"time"

	"github.com/gomlx/xetile/pkg/ir"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Pass transforms a module in place.
type Pass interface {
	Name() string
	Run(module *ir.Module) error
}

// Pipeline runs passes in order, stopping at the first failure.
type Pipeline struct {
	passes []Pass
}

// NewPipeline creates a Pipeline with the given passes.
func NewPipeline(passes ...Pass) *Pipeline {
	return &Pipeline{passes: passes}
}

// Add appends passes to the pipeline. It returns the Pipeline, so calls can be cascaded.
func (p *Pipeline) Add(passes ...Pass) *Pipeline {
	p.passes = append(p.passes, passes...)
	return p
}

// Passes returns the passes of the pipeline.
func (p *Pipeline) Passes() []Pass { return p.passes }

// Run all the passes on module.
func (p *Pipeline) Run(module *ir.Module) error {
	for _, pass := range p.passes {
		start := time.Now()
		if err := pass.Run(module); err != nil {
			return errors.WithMessagef(err, "pass %s", pass.Name())
		}
		klog.V(1).Infof("pass %s on module %q took %s", pass.Name(), module.Name, time.Since(start))
	}
	return nil
}
