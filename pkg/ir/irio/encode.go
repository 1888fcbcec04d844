// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package irio

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/gomlx/xetile/pkg/ir"
	"github.com/gomlx/xetile/pkg/support/sets"
	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"
)

// Encode converts the module to a program document in the given format.
func Encode(module *ir.Module, format Format) ([]byte, error) {
	doc := NewDocument(module)
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatYAML:
		data, err = yaml.Marshal(doc)
	case FormatJSON:
		data, err = json.MarshalIndent(doc, "", "  ")
	default:
		return nil, errors.Errorf("unknown document format %s", format)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode module %q as %s", module.Name, format)
	}
	return data, nil
}

// NewDocument describes the module as a Document. Values keep their name hints (ir.Value.Name) when unique within
// the function; the others are named "argN" (function arguments) and "vN".
func NewDocument(module *ir.Module) *Document {
	doc := &Document{Module: module.Name}
	for _, f := range module.Funcs() {
		doc.Funcs = append(doc.Funcs, newFuncDoc(f))
	}
	return doc
}

// namer assigns unique names to the values of a function.
type namer struct {
	names map[*ir.Value]string
	taken sets.Set[string]
	count int
}

func (n *namer) assign(v *ir.Value, fallback func() string) string {
	if name, found := n.names[v]; found {
		return name
	}
	name := v.Name
	for name == "" || n.taken.Has(name) {
		name = fallback()
	}
	n.taken.Insert(name)
	n.names[v] = name
	return name
}

func (n *namer) name(v *ir.Value) string {
	return n.assign(v, func() string {
		name := fmt.Sprintf("v%d", n.count)
		n.count++
		return name
	})
}

func (n *namer) valueDoc(v *ir.Value) ValueDoc {
	return ValueDoc{Name: n.name(v), Type: newTypeDoc(v.Type())}
}

func newFuncDoc(f *ir.Op) FuncDoc {
	data := f.Data().(*ir.FuncData)
	n := &namer{names: make(map[*ir.Value]string), taken: sets.Make[string]()}
	doc := FuncDoc{Name: data.Name}
	for i, arg := range f.Body().Args() {
		suffix := 0
		n.assign(arg, func() string {
			suffix++
			if suffix == 1 {
				return fmt.Sprintf("arg%d", i)
			}
			return fmt.Sprintf("arg%d_%d", i, suffix)
		})
		doc.Args = append(doc.Args, n.valueDoc(arg))
	}
	for _, t := range data.Type.Results {
		doc.Results = append(doc.Results, newTypeDoc(t))
	}
	doc.Body = n.opDocs(f.Body())
	return doc
}

func (n *namer) opDocs(block *ir.Block) []OpDoc {
	ops := make([]OpDoc, 0, block.NumOps())
	for _, op := range block.Ops() {
		ops = append(ops, n.opDoc(op))
	}
	return ops
}

func (n *namer) opDoc(op *ir.Op) OpDoc {
	doc := OpDoc{Op: op.Kind().String(), Map: newMapDoc(op.Map)}
	if opaque, ok := op.Data().(*ir.OpaqueData); ok {
		doc.Op = opaque.Name
		if _, known := ir.KindFromName(opaque.Name); known || opaque.Name == "" {
			// Names clashing with known kinds are kept in the attributes.
			doc.Op = ir.KindOpaque.String()
			doc.Attrs = &AttrsDoc{Name: opaque.Name}
		}
	} else {
		doc.Attrs = newAttrsDoc(op)
	}
	for _, operand := range op.Operands() {
		doc.Operands = append(doc.Operands, n.name(operand))
	}
	for _, result := range op.Results() {
		doc.Results = append(doc.Results, n.valueDoc(result))
	}
	for _, region := range op.Regions() {
		for _, block := range region.Blocks() {
			blockDoc := BlockDoc{}
			for _, arg := range block.Args() {
				blockDoc.Args = append(blockDoc.Args, n.valueDoc(arg))
			}
			blockDoc.Ops = n.opDocs(block)
			doc.Regions = append(doc.Regions, blockDoc)
		}
	}
	return doc
}

func newMapDoc(m *ir.WorkGroupMap) *MapDoc {
	if m == nil {
		return nil
	}
	return &MapDoc{SgLayout: m.SgLayout, SgData: m.SgData}
}

func newStaticDoc(values []int64) []*int64 {
	if values == nil {
		return nil
	}
	doc := make([]*int64, len(values))
	for i, v := range values {
		if v != ir.DynamicOffset {
			doc[i] = &v
		}
	}
	return doc
}

// newAttrsDoc returns the attributes of op, or nil if it has none.
func newAttrsDoc(op *ir.Op) *AttrsDoc {
	attrs := &AttrsDoc{}
	setHints := func(h ir.CacheHints) {
		attrs.L1Hint, attrs.L2Hint, attrs.L3Hint = h.L1, h.L2, h.L3
	}
	switch data := op.Data().(type) {
	case *ir.ConstantData:
		if data.Value != nil {
			attrs.Values = data.Value.Values
		}
	case *ir.InitTileData:
		attrs.StaticOffsets = newStaticDoc(data.StaticOffsets)
		attrs.StaticSizes = newStaticDoc(data.StaticSizes)
		attrs.StaticStrides = newStaticDoc(data.StaticStrides)
		attrs.Indices = data.HasIndices
	case *ir.LoadData:
		setHints(data.Hints)
		attrs.Padding = data.Padding
	case *ir.MemoryAccessData:
		setHints(data.Hints)
	case *ir.TileMMAData:
		attrs.WgMapA, attrs.WgMapB, attrs.WgMapC = newMapDoc(data.WgMapA), newMapDoc(data.WgMapB), newMapDoc(data.WgMapC)
	case *ir.ConvertLayoutData:
		attrs.WgMapSource, attrs.WgMapResult = newMapDoc(data.Source), newMapDoc(data.Result)
	case *ir.CompareData:
		attrs.Predicate = data.Predicate
	case *ir.PermutationData:
		attrs.Permutation = data.Permutation
	case *ir.ReductionData:
		attrs.Combiner, attrs.ReductionDims = data.Combiner, data.Dims
	default:
		return nil
	}
	if reflect.ValueOf(*attrs).IsZero() {
		return nil
	}
	return attrs
}

func newTypeDoc(t ir.Type) TypeDoc {
	switch tt := t.(type) {
	case *ir.TileType:
		return TypeDoc{Kind: "tile", Shape: tt.Shape, DType: tt.DType.String(), MemorySpace: tt.MemorySpace,
			WgMap: newMapDoc(tt.WgMap), Order: tt.Order, Scatter: tt.Scatter}
	case *ir.VectorType:
		return TypeDoc{Kind: "vector", Shape: tt.Shape, DType: tt.DType.String()}
	case *ir.MemRefType:
		return TypeDoc{Kind: "memref", Shape: tt.Shape, DType: tt.DType.String(), Strides: tt.Strides,
			MemorySpace: tt.MemorySpace}
	case *ir.ScalarType:
		return TypeDoc{Kind: "scalar", DType: tt.DType.String()}
	case *ir.IndexType:
		return TypeDoc{Kind: "index"}
	}
	return TypeDoc{Kind: fmt.Sprintf("unsupported(%s)", t)}
}
