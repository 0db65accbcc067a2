// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package ir implements a small structured IR for tensor kernels: functions made of ops over
// vectors, memory references (memrefs) and hardware tiles, with loops carrying values across
// iterations.
//
// Ops are created with a Builder, and transformed with a Rewriter, which journals every change
// so a failed transformation can be rolled back.
package ir

import (
	"fmt"
	"strings"

	"github.com/Artlesbol/triton-cpu/types/shapes"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// TypeKind enumerates the kinds of types a Value can have.
type TypeKind int

//go:generate go tool enumer -type=TypeKind -trimprefix=Kind -transform=lower -output=gen_typekind_enumer.go types.go

const (
	KindInvalid TypeKind = iota
	// KindIndex is an integer used for addressing and loop bounds.
	KindIndex
	// KindScalar is a single element of some DType.
	KindScalar
	// KindVector is an immutable multidimensional value held in registers.
	KindVector
	// KindMemRef is a reference to (mutable) memory with a static shape.
	KindMemRef
	// KindTile is a hardware tile register value: at most 16 rows of 64 bytes.
	KindTile
)

// Type of Value in the IR. For all kinds but KindIndex, Shape holds the element DType
// and the dimensions.
type Type struct {
	Kind  TypeKind
	Shape shapes.Shape
}

// IndexType returns the type used for addressing (indices, loop bounds and induction variables).
func IndexType() Type { return Type{Kind: KindIndex, Shape: shapes.Make(dtypes.Int64)} }

// ScalarType returns the type of single element of the given dtype.
func ScalarType(dtype dtypes.DType) Type { return Type{Kind: KindScalar, Shape: shapes.Make(dtype)} }

// VectorType returns the type of vector value with the given shape.
func VectorType(shape shapes.Shape) Type {
	if shape.Rank() == 0 {
		exceptions.Panicf("ir.VectorType(%s): vectors must have rank >= 1", shape)
	}
	return Type{Kind: KindVector, Shape: shape.Clone()}
}

// MemRefType returns the type of memory reference with the given shape.
func MemRefType(shape shapes.Shape) Type {
	if shape.Rank() == 0 {
		exceptions.Panicf("ir.MemRefType(%s): memrefs must have rank >= 1", shape)
	}
	return Type{Kind: KindMemRef, Shape: shape.Clone()}
}

// TileType returns the type of hardware tile with the given 2D shape.
// It panics if the shape doesn't fit in a tile register: at most MaxTileRows rows of MaxTileRowBytes bytes.
func TileType(shape shapes.Shape) Type {
	if shape.Rank() != 2 {
		exceptions.Panicf("ir.TileType(%s): tiles must have rank 2", shape)
	}
	rowBytes := shape.Dim(1) * BitWidth(shape.DType) / 8
	if shape.Dim(0) > MaxTileRows || rowBytes > MaxTileRowBytes {
		exceptions.Panicf("ir.TileType(%s): tile exceeds %d rows of %d bytes", shape, MaxTileRows, MaxTileRowBytes)
	}
	return Type{Kind: KindTile, Shape: shape.Clone()}
}

const (
	// MaxTileRows is the maximum number of rows of a hardware tile.
	MaxTileRows = 16

	// MaxTileRowBytes is the maximum number of bytes in a row of a hardware tile.
	MaxTileRowBytes = 64
)

func (t Type) IsIndex() bool  { return t.Kind == KindIndex }
func (t Type) IsScalar() bool { return t.Kind == KindScalar }
func (t Type) IsVector() bool { return t.Kind == KindVector }
func (t Type) IsMemRef() bool { return t.Kind == KindMemRef }
func (t Type) IsTile() bool   { return t.Kind == KindTile }

// DType returns the element type.
func (t Type) DType() dtypes.DType { return t.Shape.DType }

// Rank returns the rank of the shaped type, or 0 for index and scalars.
func (t Type) Rank() int { return t.Shape.Rank() }

// Dim returns the dimension of the given axis, negative axes count from the end.
func (t Type) Dim(axis int) int { return t.Shape.Dim(axis) }

// WithDType returns the same kind of type and dimensions, with a different element type.
func (t Type) WithDType(dtype dtypes.DType) Type {
	return Type{Kind: t.Kind, Shape: t.Shape.WithDType(dtype)}
}

// Equal returns whether both types are the same.
func (t Type) Equal(t2 Type) bool {
	if t.Kind != t2.Kind {
		return false
	}
	if t.Kind == KindIndex {
		return true
	}
	return t.Shape.Equal(t2.Shape)
}

// String implements fmt.Stringer. E.g.: "vector<16x64xInt8>".
func (t Type) String() string {
	switch t.Kind {
	case KindIndex:
		return "index"
	case KindScalar:
		return t.Shape.DType.String()
	case KindVector, KindMemRef, KindTile:
		parts := make([]string, 0, t.Rank()+1)
		for _, dim := range t.Shape.Dimensions {
			parts = append(parts, fmt.Sprint(dim))
		}
		parts = append(parts, t.Shape.DType.String())
		return fmt.Sprintf("%s<%s>", t.Kind, strings.Join(parts, "x"))
	default:
		return t.Kind.String()
	}
}
