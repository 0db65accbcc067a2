// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package interpreter

import (
	"math"
	"reflect"
	"slices"

	"github.com/Artlesbol/triton-cpu/types/shapes"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/x448/float16"
)

// Buffer holds the value of a scalar, vector, tile or memref: a shape and a flat slice of the
// Go type of its DType (e.g.: []int8, []float16.Float16, []bfloat16.BFloat16).
type Buffer struct {
	shape shapes.Shape

	// flat is always a slice of the underlying data type (shape.DType).
	flat any
}

// NewBuffer returns a zero-initialized buffer of the given shape.
func NewBuffer(shape shapes.Shape) *Buffer {
	checkDType(shape.DType)
	goType := shape.DType.GoType()
	size := shape.Size()
	return &Buffer{
		shape: shape.Clone(),
		flat:  reflect.MakeSlice(reflect.SliceOf(goType), size, size).Interface(),
	}
}

// checkDType panics if the interpreter can't hold values of the dtype.
func checkDType(dtype dtypes.DType) {
	switch dtype {
	case dtypes.Bool, dtypes.Int8, dtypes.Int16, dtypes.Int32, dtypes.Int64,
		dtypes.Uint8, dtypes.Uint16, dtypes.Uint32, dtypes.Uint64,
		dtypes.Float16, dtypes.BFloat16, dtypes.Float32, dtypes.Float64:
		return
	}
	exceptions.Panicf("interpreter: dtype %s not supported", dtype)
}

// FromFlat creates a buffer with the given dimensions, holding a copy of flat.
func FromFlat[T dtypes.Supported](flat []T, dimensions ...int) *Buffer {
	shape := shapes.Make(dtypes.FromGenericsType[T](), dimensions...)
	checkDType(shape.DType)
	if shape.Size() != len(flat) {
		exceptions.Panicf("interpreter.FromFlat: %d values for shape %s", len(flat), shape)
	}
	return &Buffer{shape: shape, flat: slices.Clone(flat)}
}

// Flat returns the flat data of the buffer, a typed slice that can be cast with Flat().([]T).
// For memrefs the slice is shared: changes to it are visible to the executed function.
func (b *Buffer) Flat() any { return b.flat }

// Shape of the buffer.
func (b *Buffer) Shape() shapes.Shape { return b.shape }

// Clone returns a deep copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	b2 := NewBuffer(b.shape)
	reflect.Copy(reflect.ValueOf(b2.flat), reflect.ValueOf(b.flat))
	return b2
}

// Floats returns the values converted to float64, in row-major order.
func (b *Buffer) Floats() []float64 {
	values := make([]float64, b.shape.Size())
	for i := range values {
		values[i] = b.getFloat(i)
	}
	return values
}

// getFloat returns the i-th flat element as a float64.
func (b *Buffer) getFloat(i int) float64 {
	switch flat := b.flat.(type) {
	case []float32:
		return float64(flat[i])
	case []float64:
		return flat[i]
	case []float16.Float16:
		return float64(flat[i].Float32())
	case []bfloat16.BFloat16:
		return float64(flat[i].Float32())
	default:
		return float64(b.getInt(i))
	}
}

// setFloat sets the i-th flat element, rounding to the buffer dtype.
// For integer dtypes the value is truncated towards zero.
func (b *Buffer) setFloat(i int, v float64) {
	switch flat := b.flat.(type) {
	case []float32:
		flat[i] = float32(v)
	case []float64:
		flat[i] = v
	case []float16.Float16:
		flat[i] = float16.Fromfloat32(float32(v))
	case []bfloat16.BFloat16:
		flat[i] = bfloat16.FromFloat32(float32(v))
	case []bool:
		flat[i] = v != 0
	default:
		b.setInt(i, int64(math.Trunc(v)))
	}
}

// getInt returns the i-th flat element as an int64. Float values are truncated towards zero.
func (b *Buffer) getInt(i int) int64 {
	switch flat := b.flat.(type) {
	case []int8:
		return int64(flat[i])
	case []int16:
		return int64(flat[i])
	case []int32:
		return int64(flat[i])
	case []int64:
		return flat[i]
	case []uint8:
		return int64(flat[i])
	case []uint16:
		return int64(flat[i])
	case []uint32:
		return int64(flat[i])
	case []uint64:
		return int64(flat[i])
	case []bool:
		if flat[i] {
			return 1
		}
		return 0
	default:
		return int64(b.getFloat(i))
	}
}

// setInt sets the i-th flat element. Integers wrap around (two's complement) when narrowed.
func (b *Buffer) setInt(i int, v int64) {
	switch flat := b.flat.(type) {
	case []int8:
		flat[i] = int8(v)
	case []int16:
		flat[i] = int16(v)
	case []int32:
		flat[i] = int32(v)
	case []int64:
		flat[i] = v
	case []uint8:
		flat[i] = uint8(v)
	case []uint16:
		flat[i] = uint16(v)
	case []uint32:
		flat[i] = uint32(v)
	case []uint64:
		flat[i] = uint64(v)
	case []bool:
		flat[i] = v != 0
	default:
		b.setFloat(i, float64(v))
	}
}

// isFloat returns whether the buffer holds floating point values.
func (b *Buffer) isFloat() bool {
	switch b.flat.(type) {
	case []float32, []float64, []float16.Float16, []bfloat16.BFloat16:
		return true
	}
	return false
}

// copyElement copies element src[srcIdx] to dst[dstIdx], both buffers of the same dtype.
func copyElement(dst *Buffer, dstIdx int, src *Buffer, srcIdx int) {
	reflect.ValueOf(dst.flat).Index(dstIdx).Set(reflect.ValueOf(src.flat).Index(srcIdx))
}
