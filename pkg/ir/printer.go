// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"
	"io"
	"strings"
)

// String returns the textual form of the module, see Module.Print.
func (m *Module) String() string {
	var sb strings.Builder
	m.Print(&sb)
	return sb.String()
}

// Print writes the module in a generic textual form. Values are numbered in order of definition.
func (m *Module) Print(w io.Writer) {
	p := &printer{w: w, names: make(map[*Value]string)}
	p.printf("module @%s {\n", m.Name)
	p.block(m.Body(), 1, false)
	p.printf("}\n")
}

// String returns the textual form of a single op, with its operands and results numbered locally.
func (op *Op) String() string {
	var sb strings.Builder
	p := &printer{w: &sb, names: make(map[*Value]string)}
	p.op(op, 0)
	return strings.TrimRight(sb.String(), "\n")
}

type printer struct {
	w     io.Writer
	names map[*Value]string
	next  int
}

func (p *printer) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) name(v *Value) string {
	if name, found := p.names[v]; found {
		return name
	}
	var name string
	if v.Name != "" {
		name = fmt.Sprintf("%%%s_%d", v.Name, p.next)
	} else {
		name = fmt.Sprintf("%%%d", p.next)
	}
	p.next++
	p.names[v] = name
	return name
}

func (p *printer) valueNames(values []*Value) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = p.name(v)
	}
	return strings.Join(parts, ", ")
}

func (p *printer) block(block *Block, indent int, withArgs bool) {
	pad := strings.Repeat("  ", indent)
	if withArgs && len(block.args) > 0 {
		args := make([]string, len(block.args))
		for i, arg := range block.args {
			args[i] = p.name(arg) + ": " + arg.typ.String()
		}
		p.printf("%s^bb(%s):\n", strings.Repeat("  ", indent-1), strings.Join(args, ", "))
	}
	for _, op := range block.ops {
		p.printf("%s", pad)
		p.op(op, indent)
	}
}

func (p *printer) op(op *Op, indent int) {
	if op.kind == KindFunc {
		data := op.data.(*FuncData)
		body := op.Body()
		args := make([]string, len(body.args))
		for i, arg := range body.args {
			args[i] = p.name(arg) + ": " + arg.typ.String()
		}
		p.printf("func.func @%s(%s) -> %s {\n", data.Name, strings.Join(args, ", "), typesString(data.Type.Results))
		p.block(body, indent+1, false)
		p.printf("%s}\n", strings.Repeat("  ", indent))
		return
	}
	if len(op.results) > 0 {
		p.printf("%s = ", p.valueNames(op.results))
	}
	name := op.kind.String()
	if opaque, ok := op.data.(*OpaqueData); ok {
		name = opaque.Name
	}
	p.printf("%q(%s)", name, p.valueNames(op.operands))
	if attrs := attributes(op); len(attrs) > 0 {
		p.printf(" {%s}", strings.Join(attrs, ", "))
	}
	operandTypes := make([]Type, len(op.operands))
	for i, v := range op.operands {
		operandTypes[i] = v.typ
	}
	p.printf(" : %s -> %s", typesString(operandTypes), typesString(op.ResultTypes()))
	for _, region := range op.regions {
		p.printf(" {\n")
		for _, block := range region.blocks {
			p.block(block, indent+1, true)
		}
		p.printf("%s}", strings.Repeat("  ", indent))
	}
	p.printf("\n")
}

func attributes(op *Op) []string {
	var attrs []string
	if op.Map != nil {
		attrs = append(attrs, "map = "+op.Map.String())
	}
	switch data := op.data.(type) {
	case *ConstantData:
		attrs = append(attrs, "value = "+data.Value.String())
	case *InitTileData:
		if data.StaticOffsets != nil {
			attrs = append(attrs, "static_offsets = "+staticString(data.StaticOffsets))
		}
		if data.StaticSizes != nil {
			attrs = append(attrs, "static_sizes = "+staticString(data.StaticSizes))
		}
		if data.StaticStrides != nil {
			attrs = append(attrs, "static_strides = "+staticString(data.StaticStrides))
		}
	case *LoadData:
		if hints := data.Hints.String(); hints != "" {
			attrs = append(attrs, hints)
		}
		if data.Padding != nil {
			attrs = append(attrs, fmt.Sprintf("padding = %g", *data.Padding))
		}
	case *MemoryAccessData:
		if hints := data.Hints.String(); hints != "" {
			attrs = append(attrs, hints)
		}
	case *TileMMAData:
		for _, m := range []struct {
			name  string
			wgMap *WorkGroupMap
		}{{"wg_map_a", data.WgMapA}, {"wg_map_b", data.WgMapB}, {"wg_map_c", data.WgMapC}} {
			if m.wgMap != nil {
				attrs = append(attrs, m.name+" = "+m.wgMap.String())
			}
		}
	case *ConvertLayoutData:
		if data.Source != nil {
			attrs = append(attrs, "wg_map_source = "+data.Source.String())
		}
		if data.Result != nil {
			attrs = append(attrs, "wg_map_result = "+data.Result.String())
		}
	case *CompareData:
		attrs = append(attrs, "predicate = "+data.Predicate)
	case *PermutationData:
		attrs = append(attrs, "permutation = "+intsString(data.Permutation))
	case *ReductionData:
		attrs = append(attrs, "kind = "+data.Combiner, "reduction_dims = "+intsString(data.Dims))
	}
	return attrs
}

func staticString(values []int64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		if v == DynamicOffset {
			parts[i] = "?"
		} else {
			parts[i] = fmt.Sprint(v)
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
