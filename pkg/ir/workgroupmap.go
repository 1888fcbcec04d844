// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"

	"github.com/pkg/errors"
)

// WorkGroupMap describes how a workgroup-level 2D value is partitioned across the subgroups of a workgroup.
//
//   - SgLayout: the 2D grid of subgroups laid over the value. SgLayout[0]*SgLayout[1] is the number of subgroups.
//   - SgData: the 2D shape of the portion of the value owned by one subgroup at a time.
//
// If SgLayout × SgData is smaller than the value's shape, subgroups visit more than one portion
// in a round-robin fashion.
//
// Example:
//
//	// A 256x256 tile split over a 4x4 grid of subgroups, each one owning a 64x64 tile.
//	wgMap := ir.NewWorkGroupMap([]int{4, 4}, []int{64, 64})
type WorkGroupMap struct {
	SgLayout [2]int
	SgData   [2]int
}

// NewWorkGroupMap creates a WorkGroupMap from the subgroup layout and subgroup data shape.
// It panics if either doesn't have 2 elements: use it with literals.
func NewWorkGroupMap(sgLayout, sgData []int) *WorkGroupMap {
	if len(sgLayout) != 2 || len(sgData) != 2 {
		panic(errors.Errorf("WorkGroupMap requires 2D sg_layout and sg_data, got %v and %v", sgLayout, sgData))
	}
	return &WorkGroupMap{SgLayout: [2]int{sgLayout[0], sgLayout[1]}, SgData: [2]int{sgData[0], sgData[1]}}
}

// NumSubgroups is the number of subgroups in the layout.
func (m *WorkGroupMap) NumSubgroups() int {
	return m.SgLayout[0] * m.SgLayout[1]
}

// Validate checks that the map can be used to distribute a value of the given shape: every sg_data
// dimension must divide the corresponding value dimension, and all sizes must be positive.
func (m *WorkGroupMap) Validate(shape []int) error {
	for axis := range 2 {
		if m.SgLayout[axis] <= 0 || m.SgData[axis] <= 0 {
			return errors.Errorf("%s has non-positive sizes", m)
		}
	}
	if len(shape) != 2 {
		return nil
	}
	for axis := range 2 {
		if shape[axis]%m.SgData[axis] != 0 {
			return errors.Errorf("%s: sg_data[%d]=%d doesn't divide the workgroup shape %v",
				m, axis, m.SgData[axis], shape)
		}
	}
	return nil
}

// Equal returns whether both maps are equal. Two nil maps are equal.
func (m *WorkGroupMap) Equal(other *WorkGroupMap) bool {
	if m == nil || other == nil {
		return m == other
	}
	return *m == *other
}

// String implements fmt.Stringer.
func (m *WorkGroupMap) String() string {
	if m == nil {
		return "#xetile.wg_map<nil>"
	}
	return fmt.Sprintf("#xetile.wg_map<sg_layout = [%d, %d], sg_data = [%d, %d]>",
		m.SgLayout[0], m.SgLayout[1], m.SgData[0], m.SgData[1])
}
