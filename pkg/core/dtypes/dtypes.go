// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package dtypes includes the DType enum for the element types of tiles, vectors and memrefs.
//
// It includes the bit widths used to size scratch buffers, the short textual names used by the IR printer and
// program documents, and rounding of constant values to the precision of the dtype.
package dtypes

import (
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/xetile/pkg/core/dtypes/bfloat16"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// DType is an enum of the element types known to the IR.
type DType int32

const (
	// InvalidDType is the zero value, used for "not set".
	InvalidDType DType = iota

	// Bool is a 1-bit predicate, the result of comparisons and the element of masks.
	Bool

	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64

	Float16
	BFloat16
	Float32
	Float64

	// Index is the target-sized integer used for offsets and subgroup ids. It is treated as 64 bits.
	Index
)

// Aliases.
const (
	I1   = Bool
	I8   = Int8
	I16  = Int16
	I32  = Int32
	I64  = Int64
	F16  = Float16
	BF16 = BFloat16
	F32  = Float32
	F64  = Float64
)

var shortNames = map[DType]string{
	InvalidDType: "invalid",
	Bool:         "i1",
	Int8:         "i8",
	Int16:        "i16",
	Int32:        "i32",
	Int64:        "i64",
	Uint8:        "ui8",
	Uint16:       "ui16",
	Uint32:       "ui32",
	Uint64:       "ui64",
	Float16:      "f16",
	BFloat16:     "bf16",
	Float32:      "f32",
	Float64:      "f64",
	Index:        "index",
}

// MapOfNames maps names (short IR names and the Go-style names, in lower and upper case) to DType.
var MapOfNames = map[string]DType{
	"Bool":     Bool,
	"Int8":     Int8,
	"Int16":    Int16,
	"Int32":    Int32,
	"Int64":    Int64,
	"Uint8":    Uint8,
	"Uint16":   Uint16,
	"Uint32":   Uint32,
	"Uint64":   Uint64,
	"Float16":  Float16,
	"BFloat16": BFloat16,
	"Float32":  Float32,
	"Float64":  Float64,
	"Index":    Index,
}

func init() {
	for dtype, name := range shortNames {
		if dtype != InvalidDType {
			MapOfNames[name] = dtype
		}
	}
	// Add a mapping to the lower-case version of dtypes.
	keys := slices.Collect(maps.Keys(MapOfNames))
	for _, key := range keys {
		lowerKey := strings.ToLower(key)
		if _, found := MapOfNames[lowerKey]; found {
			continue
		}
		MapOfNames[lowerKey] = MapOfNames[key]
	}
}

// String returns the short IR name of the dtype (e.g. "f16", "i32", "index").
func (dtype DType) String() string {
	if name, found := shortNames[dtype]; found {
		return name
	}
	return "DType(" + strconv.Itoa(int(dtype)) + ")"
}

// Parse converts a name (see MapOfNames) to a DType.
func Parse(name string) (DType, error) {
	dtype, found := MapOfNames[name]
	if !found {
		return InvalidDType, errors.Errorf("unknown dtype %q", name)
	}
	return dtype, nil
}

// Bits returns the number of bits for the given DType.
func (dtype DType) Bits() int {
	switch dtype {
	case Bool:
		return 1
	case Int8, Uint8:
		return 8
	case Int16, Uint16, Float16, BFloat16:
		return 16
	case Int32, Uint32, Float32:
		return 32
	case Int64, Uint64, Float64, Index:
		return 64
	default:
		return 0
	}
}

// Size returns the number of bytes used to store one element. Bool elements take one byte.
func (dtype DType) Size() int {
	return (dtype.Bits() + 7) / 8
}

// SizeForDimensions returns the size in bytes used for a buffer with the given dimensions.
func (dtype DType) SizeForDimensions(dimensions ...int) int {
	numElements := 1
	for _, dim := range dimensions {
		if dim < 0 {
			panic(errors.Errorf("dim cannot be negative for SizeForDimensions, got %v", dimensions))
		}
		numElements *= dim
	}
	return numElements * dtype.Size()
}

// IsFloat returns whether dtype is a float.
func (dtype DType) IsFloat() bool {
	return dtype == Float32 || dtype == Float64 || dtype == Float16 || dtype == BFloat16
}

// Round returns value rounded to what is representable in dtype: floats are rounded to their precision
// and integer types are truncated towards zero and wrapped to their bit width.
func (dtype DType) Round(value float64) float64 {
	switch dtype {
	case Float16:
		return float64(float16.Fromfloat32(float32(value)).Float32())
	case BFloat16:
		return float64(bfloat16.FromFloat64(value).Float32())
	case Float32:
		return float64(float32(value))
	case Float64:
		return value
	case Bool:
		if value != 0 {
			return 1
		}
		return 0
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	v := int64(value)
	switch dtype {
	case Int8:
		return float64(int8(v))
	case Int16:
		return float64(int16(v))
	case Int32:
		return float64(int32(v))
	case Uint8:
		return float64(uint8(v))
	case Uint16:
		return float64(uint16(v))
	case Uint32:
		return float64(uint32(v))
	}
	return float64(v)
}

// FormatValue formats a value of the given dtype the way the IR printer shows constants.
func (dtype DType) FormatValue(value float64) string {
	switch dtype {
	case Float16:
		return float16.Fromfloat32(float32(value)).String()
	case BFloat16:
		return bfloat16.FromFloat64(value).String()
	case Float32:
		return strconv.FormatFloat(value, 'g', -1, 32)
	case Float64:
		return strconv.FormatFloat(value, 'g', -1, 64)
	case Bool:
		if value != 0 {
			return "true"
		}
		return "false"
	}
	return strconv.FormatInt(int64(value), 10)
}
