// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package irio

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/xetile/pkg/core/dtypes"
	"github.com/gomlx/xetile/pkg/ir"
	"github.com/gomlx/xetile/pkg/support/xslices"
	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"
)

// Decode parses a YAML or JSON program document (JSON is valid YAML) and builds the module.
// Unknown fields are an error.
func Decode(data []byte) (*ir.Module, error) {
	var doc Document
	if err := yaml.UnmarshalStrict(data, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to parse program document")
	}
	return doc.Build()
}

// Build creates the module described by the document.
func (doc *Document) Build() (module *ir.Module, err error) {
	err = exceptions.TryCatch[error](func() {
		module = ir.NewModule(doc.Module)
		for _, fn := range doc.Funcs {
			buildFunc(module, fn)
		}
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "invalid program document for module %q", doc.Module)
	}
	return module, nil
}

// scope maps value names to values. Names are unique within a function.
type scope map[string]*ir.Value

func (s scope) define(doc ValueDoc, v *ir.Value) {
	if doc.Name == "" {
		return
	}
	if _, found := s[doc.Name]; found {
		exceptions.Panicf("value %q defined more than once", doc.Name)
	}
	s[doc.Name] = v
	v.Name = doc.Name
}

func (s scope) lookup(name string) *ir.Value {
	v, found := s[name]
	if !found {
		exceptions.Panicf("undefined value %q", name)
	}
	return v
}

func buildFunc(module *ir.Module, fn FuncDoc) {
	inputs := xslices.Map(fn.Args, func(arg ValueDoc) ir.Type { return buildType(arg.Type) })
	results := xslices.Map(fn.Results, buildType)
	if module.LookupFunc(fn.Name) != nil {
		exceptions.Panicf("function %q defined more than once", fn.Name)
	}
	f := module.AddFunc(fn.Name, inputs, results)
	values := make(scope)
	for i, arg := range fn.Args {
		values.define(arg, f.Body().Arg(i))
	}
	buildOps(ir.NewBuilderAtEnd(f.Body()), fn.Body, values)
}

func buildOps(b *ir.Builder, ops []OpDoc, values scope) {
	for _, opDoc := range ops {
		buildOp(b, opDoc, values)
	}
}

func buildOp(b *ir.Builder, doc OpDoc, values scope) {
	kind, known := ir.KindFromName(doc.Op)
	if !known {
		kind = ir.KindOpaque
	}
	if kind == ir.KindFunc || kind == ir.KindInvalid {
		exceptions.Panicf("op %q can't be used in a function body", doc.Op)
	}
	operands := make([]*ir.Value, len(doc.Operands))
	for i, name := range doc.Operands {
		operands[i] = values.lookup(name)
	}
	resultTypes := xslices.Map(doc.Results, func(result ValueDoc) ir.Type { return buildType(result.Type) })
	attrs := doc.Attrs
	if attrs == nil {
		attrs = &AttrsDoc{}
	}
	var data any
	if kind == ir.KindOpaque {
		name := attrs.Name
		if !known {
			name = doc.Op
		}
		data = &ir.OpaqueData{Name: name}
	} else {
		data = buildData(kind, attrs, resultTypes)
	}

	op := b.Create(kind, resultTypes, operands, data)
	op.Map = buildMap(doc.Map)
	for i, result := range doc.Results {
		values.define(result, op.Result(i))
	}
	for _, blockDoc := range doc.Regions {
		argTypes := make([]ir.Type, len(blockDoc.Args))
		for i, arg := range blockDoc.Args {
			argTypes[i] = buildType(arg.Type)
		}
		block := op.AddRegion().AddBlock(argTypes...)
		for i, arg := range blockDoc.Args {
			values.define(arg, block.Arg(i))
		}
		buildOps(ir.NewBuilderAtEnd(block), blockDoc.Ops, values)
	}
}

func buildData(kind ir.Kind, attrs *AttrsDoc, resultTypes []ir.Type) any {
	hints := ir.CacheHints{L1: attrs.L1Hint, L2: attrs.L2Hint, L3: attrs.L3Hint}
	switch kind {
	case ir.KindConstant:
		if len(resultTypes) != 1 {
			exceptions.Panicf("%s requires exactly one result", kind)
		}
		if len(attrs.Values) == 0 {
			exceptions.Panicf("%s without values", kind)
		}
		t := resultTypes[0]
		return &ir.ConstantData{Value: ir.NewDenseElements(ir.DTypeOf(t), ir.ShapeOf(t), attrs.Values)}
	case ir.KindInitTile:
		return &ir.InitTileData{
			StaticOffsets: buildStatic(attrs.StaticOffsets),
			StaticSizes:   buildStatic(attrs.StaticSizes),
			StaticStrides: buildStatic(attrs.StaticStrides),
			HasIndices:    attrs.Indices,
		}
	case ir.KindLoadTile, ir.KindLoadGather:
		return &ir.LoadData{Hints: hints, Padding: attrs.Padding}
	case ir.KindStoreTile, ir.KindStoreScatter, ir.KindPrefetchTile:
		return &ir.MemoryAccessData{Hints: hints}
	case ir.KindTileMMA:
		return &ir.TileMMAData{
			WgMapA: buildMap(attrs.WgMapA), WgMapB: buildMap(attrs.WgMapB), WgMapC: buildMap(attrs.WgMapC)}
	case ir.KindConvertLayout:
		return &ir.ConvertLayoutData{Source: buildMap(attrs.WgMapSource), Result: buildMap(attrs.WgMapResult)}
	case ir.KindCmpI, ir.KindCmpF:
		return &ir.CompareData{Predicate: attrs.Predicate}
	case ir.KindTranspose, ir.KindTileTranspose, ir.KindMemRefTranspose:
		return &ir.PermutationData{Permutation: attrs.Permutation}
	case ir.KindMultiReduction:
		return &ir.ReductionData{Combiner: attrs.Combiner, Dims: attrs.ReductionDims}
	}
	return nil
}

func buildStatic(values []*int64) []int64 {
	if values == nil {
		return nil
	}
	static := make([]int64, len(values))
	for i, v := range values {
		if v == nil {
			static[i] = ir.DynamicOffset
		} else {
			static[i] = *v
		}
	}
	return static
}

func buildMap(doc *MapDoc) *ir.WorkGroupMap {
	if doc == nil {
		return nil
	}
	return &ir.WorkGroupMap{SgLayout: doc.SgLayout, SgData: doc.SgData}
}

func buildDType(name string) dtypes.DType {
	dtype, err := dtypes.Parse(name)
	if err != nil {
		panic(err)
	}
	return dtype
}

func buildType(doc TypeDoc) ir.Type {
	switch doc.Kind {
	case "tile":
		return &ir.TileType{
			Shape:       doc.Shape,
			DType:       buildDType(doc.DType),
			MemorySpace: doc.MemorySpace,
			WgMap:       buildMap(doc.WgMap),
			Order:       doc.Order,
			Scatter:     doc.Scatter,
		}
	case "vector":
		return ir.NewVectorType(buildDType(doc.DType), doc.Shape...)
	case "memref":
		return &ir.MemRefType{
			Shape: doc.Shape, DType: buildDType(doc.DType), Strides: doc.Strides, MemorySpace: doc.MemorySpace}
	case "scalar":
		return &ir.ScalarType{DType: buildDType(doc.DType)}
	case "index":
		return ir.Index
	}
	exceptions.Panicf("unknown type kind %q", doc.Kind)
	return nil
}
