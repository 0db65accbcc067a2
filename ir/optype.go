// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

// OpType is an enum of all operations of the IR.
type OpType int

//go:generate go tool enumer -type=OpType -trimprefix=OpType -output=gen_optype_enumer.go optype.go

const (
	OpTypeInvalid OpType = iota

	// Structure.
	OpTypeModule
	OpTypeFunc
	OpTypeReturn
	OpTypeFor
	OpTypeYield

	// Arithmetic.
	OpTypeConstant
	OpTypeAddI
	OpTypeMulI
	OpTypeAdd
	OpTypeCast

	// Vector.
	OpTypeRead
	OpTypeWrite
	OpTypeExtract
	OpTypeInterleave
	OpTypeVNNIDecode

	// Memory.
	OpTypeAlloca
	OpTypePrefetch

	// Generic matrix multiply-accumulate.
	OpTypeDot

	// Hardware tiles.
	OpTypeTileZero
	OpTypeTileLoad
	OpTypeTileStore
	OpTypeTileMulF
	OpTypeTileMulI

	// OpTypeLast should always be kept the last, it is used as a counter/marker for OpType.
	OpTypeLast
)

// IsPure returns whether ops of this type have no side effects, and can be removed if their results are not used.
func (opType OpType) IsPure() bool {
	switch opType {
	case OpTypeConstant, OpTypeAddI, OpTypeMulI, OpTypeAdd, OpTypeCast,
		OpTypeRead, OpTypeExtract, OpTypeInterleave, OpTypeVNNIDecode,
		OpTypeAlloca, OpTypeDot,
		OpTypeTileZero, OpTypeTileLoad, OpTypeTileMulF, OpTypeTileMulI:
		return true
	}
	return false
}

// IsTerminator returns whether ops of this type must be the last one of their block.
func (opType OpType) IsTerminator() bool {
	return opType == OpTypeReturn || opType == OpTypeYield
}

// WritesMemory returns whether ops of this type write to the memref operand.
func (opType OpType) WritesMemory() bool {
	return opType == OpTypeWrite || opType == OpTypeTileStore
}
