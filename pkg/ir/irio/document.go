// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package irio reads and writes modules as structured program documents, in YAML or JSON, optionally
// compressed with zstd.
//
// A document is not a textual IR: every op is a record with its kind, operands (by value name), results (name and
// type), the workgroup map and the kind specific attributes. Example of a YAML document:
//
//	module: gemm
//	funcs:
//	- name: kernel
//	  args:
//	  - {name: A, type: {kind: memref, shape: [1024, 1024], dtype: f16}}
//	  body:
//	  - op: xetile.init_tile
//	    operands: [A]
//	    results:
//	    - name: tile
//	      type: {kind: tile, shape: [256, 256], dtype: f16, wg_map: {sg_layout: [4, 4], sg_data: [64, 64]}}
//	    attrs: {static_offsets: [0, 0]}
//	  - op: func.return
package irio

// Document is the root of a program document.
type Document struct {
	Module string    `json:"module"`
	Funcs  []FuncDoc `json:"funcs"`
}

// FuncDoc describes one function.
type FuncDoc struct {
	Name    string     `json:"name"`
	Args    []ValueDoc `json:"args,omitempty"`
	Results []TypeDoc  `json:"results,omitempty"`
	Body    []OpDoc    `json:"body"`
}

// ValueDoc is a named value: a function or block argument, or an op result.
type ValueDoc struct {
	Name string  `json:"name"`
	Type TypeDoc `json:"type"`
}

// TypeDoc describes an ir.Type. Kind is one of "tile", "vector", "memref", "scalar" or "index".
type TypeDoc struct {
	Kind        string  `json:"kind"`
	Shape       []int   `json:"shape,omitempty"`
	DType       string  `json:"dtype,omitempty"`
	Strides     []int   `json:"strides,omitempty"`
	MemorySpace int     `json:"memory_space,omitempty"`
	WgMap       *MapDoc `json:"wg_map,omitempty"`
	Order       []int   `json:"order,omitempty"`
	Scatter     bool    `json:"scattered,omitempty"`
}

// MapDoc describes an ir.WorkGroupMap.
type MapDoc struct {
	SgLayout [2]int `json:"sg_layout"`
	SgData   [2]int `json:"sg_data"`
}

// OpDoc describes one op. Op is the IR name of the kind (e.g. "xetile.load_tile"); names unknown to the ir
// package are read as opaque ops.
type OpDoc struct {
	Op       string     `json:"op"`
	Operands []string   `json:"operands,omitempty"`
	Results  []ValueDoc `json:"results,omitempty"`
	Map      *MapDoc    `json:"map,omitempty"`
	Attrs    *AttrsDoc  `json:"attrs,omitempty"`
	Regions  []BlockDoc `json:"regions,omitempty"`
}

// BlockDoc is the single block of a region.
type BlockDoc struct {
	Args []ValueDoc `json:"args,omitempty"`
	Ops  []OpDoc    `json:"ops"`
}

// AttrsDoc holds the kind specific attributes of an op. Only the fields relevant to the op's kind are set.
//
// Static offsets, sizes and strides use null for the dynamic entries, which are taken in order from the operands
// following the source.
type AttrsDoc struct {
	// Constants.
	Values []float64 `json:"values,omitempty"`

	// Init tile.
	StaticOffsets []*int64 `json:"static_offsets,omitempty"`
	StaticSizes   []*int64 `json:"static_sizes,omitempty"`
	StaticStrides []*int64 `json:"static_strides,omitempty"`
	Indices       bool     `json:"indices,omitempty"`

	// Memory accesses.
	L1Hint  string   `json:"l1_hint,omitempty"`
	L2Hint  string   `json:"l2_hint,omitempty"`
	L3Hint  string   `json:"l3_hint,omitempty"`
	Padding *float64 `json:"padding,omitempty"`

	// Matrix multiply.
	WgMapA *MapDoc `json:"wg_map_a,omitempty"`
	WgMapB *MapDoc `json:"wg_map_b,omitempty"`
	WgMapC *MapDoc `json:"wg_map_c,omitempty"`

	// Layout conversion.
	WgMapSource *MapDoc `json:"wg_map_source,omitempty"`
	WgMapResult *MapDoc `json:"wg_map_result,omitempty"`

	Predicate     string `json:"predicate,omitempty"`
	Permutation   []int  `json:"permutation,omitempty"`
	Combiner      string `json:"kind,omitempty"`
	ReductionDims []int  `json:"reduction_dims,omitempty"`

	// Name of opaque ops.
	Name string `json:"name,omitempty"`
}
