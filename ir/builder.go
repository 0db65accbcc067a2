// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"slices"

	"github.com/Artlesbol/triton-cpu/types/shapes"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// Builder creates ops at an insertion point: either before a given op, or at the end of a block.
//
// Invalid arguments (mismatched types, wrong number of indices, etc.) are programming errors
// and panic with an exception.
type Builder struct {
	block  *Block
	before *Op

	// journal is set by the Rewriter, to record the insertions.
	journal *journal
}

// InsertionPoint saved by Builder.SaveInsertionPoint.
type InsertionPoint struct {
	block  *Block
	before *Op
}

// NewBuilder returns a Builder that inserts at the end of the given block.
func NewBuilder(block *Block) *Builder {
	return &Builder{block: block}
}

// SetInsertionPoint makes new ops be inserted right before op.
func (b *Builder) SetInsertionPoint(op *Op) {
	if op.block == nil {
		exceptions.Panicf("cannot insert before a detached op %s", op.opType)
	}
	b.block, b.before = op.block, op
}

// SetInsertionPointAfter makes new ops be inserted right after op.
func (b *Builder) SetInsertionPointAfter(op *Op) {
	if op.block == nil {
		exceptions.Panicf("cannot insert after a detached op %s", op.opType)
	}
	b.block = op.block
	pos := op.block.indexOf(op)
	if pos+1 < len(op.block.ops) {
		b.before = op.block.ops[pos+1]
	} else {
		b.before = nil
	}
}

// SetInsertionPointToStart makes new ops be inserted at the start of the block.
func (b *Builder) SetInsertionPointToStart(block *Block) {
	b.block = block
	if len(block.ops) > 0 {
		b.before = block.ops[0]
	} else {
		b.before = nil
	}
}

// SetInsertionPointToEnd makes new ops be appended at the end of the block.
func (b *Builder) SetInsertionPointToEnd(block *Block) {
	b.block, b.before = block, nil
}

// SaveInsertionPoint returns the current insertion point, to be restored later with RestoreInsertionPoint.
//
// Typical use:
//
//	defer b.RestoreInsertionPoint(b.SaveInsertionPoint())
func (b *Builder) SaveInsertionPoint() InsertionPoint {
	return InsertionPoint{block: b.block, before: b.before}
}

// RestoreInsertionPoint restores an insertion point returned by SaveInsertionPoint.
func (b *Builder) RestoreInsertionPoint(ip InsertionPoint) {
	b.block, b.before = ip.block, ip.before
}

// InsertionBlock returns the block where new ops are inserted.
func (b *Builder) InsertionBlock() *Block { return b.block }

// newOp creates the op, registers its operands uses and inserts it at the insertion point.
func (b *Builder) newOp(opType OpType, operands []*Value, resultTypes []Type, data any) *Op {
	if b.block == nil {
		exceptions.Panicf("Builder has no insertion point set, while creating %s", opType)
	}
	op := &Op{opType: opType, data: data}
	op.operands = make([]*Operand, len(operands))
	for i, v := range operands {
		if v == nil {
			exceptions.Panicf("%s: operand #%d is nil", opType, i)
		}
		operand := &Operand{owner: op, number: i, value: v}
		op.operands[i] = operand
		v.addUse(operand)
	}
	op.results = make([]*Value, len(resultTypes))
	for i, t := range resultTypes {
		op.results[i] = &Value{typ: t, op: op, resultIdx: i}
	}
	pos := len(b.block.ops)
	if b.before != nil {
		pos = b.block.indexOf(b.before)
	}
	b.block.insert(pos, op)
	if b.journal != nil {
		b.journal.record(func() {
			op.block.remove(op)
			for _, operand := range op.operands {
				operand.value.removeUse(operand)
			}
		})
	}
	return op
}

func checkIndices(opType OpType, memref *Value, indices []*Value) {
	if !memref.typ.IsMemRef() {
		exceptions.Panicf("%s: expected a memref, got %s", opType, memref.typ)
	}
	if len(indices) != memref.typ.Rank() {
		exceptions.Panicf("%s: memref %s requires %d indices, got %d", opType, memref.typ, memref.typ.Rank(), len(indices))
	}
	for i, idx := range indices {
		if !idx.typ.IsIndex() {
			exceptions.Panicf("%s: index #%d must be of type index, got %s", opType, i, idx.typ)
		}
	}
}

// checkTransfer validates a vector or tile of type t transferred to/from the trailing axes of memref.
func checkTransfer(opType OpType, t Type, memref *Value, indices []*Value) {
	checkIndices(opType, memref, indices)
	if t.DType() != memref.typ.DType() {
		exceptions.Panicf("%s: %s doesn't match element type of %s", opType, t, memref.typ)
	}
	if t.Rank() > memref.typ.Rank() {
		exceptions.Panicf("%s: %s has a higher rank than %s", opType, t, memref.typ)
	}
}

func checkSameType(opType OpType, values ...*Value) {
	for _, v := range values[1:] {
		if !v.typ.Equal(values[0].typ) {
			exceptions.Panicf("%s: operands of different types %s and %s", opType, values[0].typ, v.typ)
		}
	}
}

// ConstIndex creates an index constant.
func (b *Builder) ConstIndex(value int) *Value {
	return b.newOp(OpTypeConstant, nil, []Type{IndexType()}, &constantData{values: []float64{float64(value)}}).results[0]
}

// Constant creates a scalar or vector constant of type t. A single value is broadcast (splat) to all
// elements, otherwise there must be one value per element, in row-major order.
func (b *Builder) Constant(t Type, values ...float64) *Value {
	if !t.IsScalar() && !t.IsVector() && !t.IsIndex() {
		exceptions.Panicf("Constant: unsupported type %s", t)
	}
	if len(values) != 1 && len(values) != t.Shape.Size() {
		exceptions.Panicf("Constant: %d values given for %s", len(values), t)
	}
	return b.newOp(OpTypeConstant, nil, []Type{t}, &constantData{values: slices.Clone(values)}).results[0]
}

// AddI adds two indices.
func (b *Builder) AddI(lhs, rhs *Value) *Value {
	if !lhs.typ.IsIndex() || !rhs.typ.IsIndex() {
		exceptions.Panicf("AddI: operands must be indices, got %s and %s", lhs.typ, rhs.typ)
	}
	return b.newOp(OpTypeAddI, []*Value{lhs, rhs}, []Type{IndexType()}, nil).results[0]
}

// MulI multiplies two indices.
func (b *Builder) MulI(lhs, rhs *Value) *Value {
	if !lhs.typ.IsIndex() || !rhs.typ.IsIndex() {
		exceptions.Panicf("MulI: operands must be indices, got %s and %s", lhs.typ, rhs.typ)
	}
	return b.newOp(OpTypeMulI, []*Value{lhs, rhs}, []Type{IndexType()}, nil).results[0]
}

// Add adds two vectors elementwise.
func (b *Builder) Add(lhs, rhs *Value) *Value {
	checkSameType(OpTypeAdd, lhs, rhs)
	if !lhs.typ.IsVector() && !lhs.typ.IsScalar() {
		exceptions.Panicf("Add: operands must be vectors or scalars, got %s", lhs.typ)
	}
	return b.newOp(OpTypeAdd, []*Value{lhs, rhs}, []Type{lhs.typ}, nil).results[0]
}

// Cast converts the elements of a vector or scalar to dtype.
func (b *Builder) Cast(x *Value, dtype dtypes.DType) *Value {
	if !x.typ.IsVector() && !x.typ.IsScalar() {
		exceptions.Panicf("Cast: operand must be a vector or a scalar, got %s", x.typ)
	}
	if BitWidth(dtype) == 0 {
		exceptions.Panicf("Cast: unsupported dtype %s", dtype)
	}
	return b.newOp(OpTypeCast, []*Value{x}, []Type{x.typ.WithDType(dtype)}, nil).results[0]
}

// Read a vector of type vecType from the trailing axes of memref, starting at indices.
// The read is unmasked and is assumed to be in bounds.
func (b *Builder) Read(vecType Type, memref *Value, indices ...*Value) *Value {
	return b.read(vecType, memref, indices, nil, true)
}

// ReadWithBoundsCheck is like Read, but elements out of the memref bounds are read as zero.
func (b *Builder) ReadWithBoundsCheck(vecType Type, memref *Value, indices ...*Value) *Value {
	return b.read(vecType, memref, indices, nil, false)
}

// ReadMasked is like Read, but only the elements where mask is true are read, the others are zero.
// The mask must be a vector of Bool with the same dimensions as vecType.
func (b *Builder) ReadMasked(vecType Type, memref *Value, indices []*Value, mask *Value) *Value {
	return b.read(vecType, memref, indices, mask, true)
}

func (b *Builder) read(vecType Type, memref *Value, indices []*Value, mask *Value, inBounds bool) *Value {
	if !vecType.IsVector() {
		exceptions.Panicf("Read: result must be a vector, got %s", vecType)
	}
	checkTransfer(OpTypeRead, vecType, memref, indices)
	operands := append([]*Value{memref}, indices...)
	if mask != nil {
		checkMask(OpTypeRead, vecType, mask)
		operands = append(operands, mask)
	}
	data := &transferData{numIndices: len(indices), hasMask: mask != nil, inBounds: inBounds}
	return b.newOp(OpTypeRead, operands, []Type{vecType}, data).results[0]
}

func checkMask(opType OpType, vecType Type, mask *Value) {
	if !mask.typ.IsVector() || mask.typ.DType() != dtypes.Bool || !mask.typ.Shape.EqualDimensions(vecType.Shape) {
		exceptions.Panicf("%s: mask must be a vector of Bool shaped like %s, got %s", opType, vecType, mask.typ)
	}
}

// Write the vector value to the trailing axes of memref, starting at indices.
// The write is unmasked and is assumed to be in bounds.
func (b *Builder) Write(value, memref *Value, indices ...*Value) *Op {
	return b.write(value, memref, indices, nil, true)
}

// WriteWithBoundsCheck is like Write, but elements falling out of the memref bounds are skipped.
func (b *Builder) WriteWithBoundsCheck(value, memref *Value, indices ...*Value) *Op {
	return b.write(value, memref, indices, nil, false)
}

// WriteMasked is like Write, but only elements where mask is true are written.
func (b *Builder) WriteMasked(value, memref *Value, indices []*Value, mask *Value) *Op {
	return b.write(value, memref, indices, mask, true)
}

func (b *Builder) write(value, memref *Value, indices []*Value, mask *Value, inBounds bool) *Op {
	if !value.typ.IsVector() {
		exceptions.Panicf("Write: value must be a vector, got %s", value.typ)
	}
	checkTransfer(OpTypeWrite, value.typ, memref, indices)
	operands := append([]*Value{value, memref}, indices...)
	if mask != nil {
		checkMask(OpTypeWrite, value.typ, mask)
		operands = append(operands, mask)
	}
	data := &transferData{numIndices: len(indices), hasMask: mask != nil, inBounds: inBounds}
	return b.newOp(OpTypeWrite, operands, nil, data)
}

// Extract returns the row of a 2D vector as a 1D vector.
func (b *Builder) Extract(x *Value, row int) *Value {
	if !x.typ.IsVector() || x.typ.Rank() != 2 {
		exceptions.Panicf("Extract: operand must be a 2D vector, got %s", x.typ)
	}
	if row < 0 || row >= x.typ.Dim(0) {
		exceptions.Panicf("Extract: row %d out of range for %s", row, x.typ)
	}
	t := VectorType(shapes.Make(x.typ.DType(), x.typ.Dim(1)))
	return b.newOp(OpTypeExtract, []*Value{x}, []Type{t}, &extractData{row: row}).results[0]
}

// Interleave two 1D vectors of the same type: the result is [lhs[0], rhs[0], lhs[1], rhs[1], ...].
func (b *Builder) Interleave(lhs, rhs *Value) *Value {
	checkSameType(OpTypeInterleave, lhs, rhs)
	if !lhs.typ.IsVector() || lhs.typ.Rank() != 1 {
		exceptions.Panicf("Interleave: operands must be 1D vectors, got %s", lhs.typ)
	}
	t := VectorType(shapes.Make(lhs.typ.DType(), 2*lhs.typ.Dim(0)))
	return b.newOp(OpTypeInterleave, []*Value{lhs, rhs}, []Type{t}, nil).results[0]
}

// VNNIDecode converts a packed (VNNI encoded) 2D vector of shape [K/g, N*g] to its logical
// [K, N] form, where g = 32 / BitWidth(dtype) consecutive rows are interleaved in 32-bit lanes.
func (b *Builder) VNNIDecode(packed *Value) *Value {
	if !packed.typ.IsVector() || packed.typ.Rank() != 2 {
		exceptions.Panicf("VNNIDecode: operand must be a 2D vector, got %s", packed.typ)
	}
	group := VNNIGroupSize(packed.typ.DType())
	if group <= 1 || packed.typ.Dim(1)%group != 0 {
		exceptions.Panicf("VNNIDecode: %s is not a VNNI packed vector", packed.typ)
	}
	t := VectorType(shapes.Make(packed.typ.DType(), packed.typ.Dim(0)*group, packed.typ.Dim(1)/group))
	return b.newOp(OpTypeVNNIDecode, []*Value{packed}, []Type{t}, nil).results[0]
}

// VNNIGroupSize returns the number of rows packed in one 32-bit lane for the dtype: 2 for 16-bit types,
// 4 for 8-bit types. It returns 0 for dtypes that can't be packed.
func VNNIGroupSize(dtype dtypes.DType) int {
	bits := BitWidth(dtype)
	if bits != 8 && bits != 16 {
		return 0
	}
	return 32 / bits
}

// Alloca allocates a scratch memref with the function lifetime.
func (b *Builder) Alloca(shape shapes.Shape) *Value {
	return b.newOp(OpTypeAlloca, nil, []Type{MemRefType(shape)}, nil).results[0]
}

// Prefetch hints that the memref at the given indices is going to be read.
func (b *Builder) Prefetch(memref *Value, indices ...*Value) *Op {
	checkIndices(OpTypePrefetch, memref, indices)
	operands := append([]*Value{memref}, indices...)
	return b.newOp(OpTypePrefetch, operands, nil, &transferData{numIndices: len(indices), inBounds: false})
}

// Dot returns a·b + c, where a is [..., M, K], b is [..., K, N] and c is [..., M, N].
// The product is accumulated in the dtype of c.
func (b *Builder) Dot(lhs, rhs, acc *Value) *Value {
	for _, v := range []*Value{lhs, rhs, acc} {
		if !v.typ.IsVector() || v.typ.Rank() < 2 {
			exceptions.Panicf("Dot: operands must be vectors of rank >= 2, got %s", v.typ)
		}
	}
	rank := lhs.typ.Rank()
	if rhs.typ.Rank() != rank || acc.typ.Rank() != rank {
		exceptions.Panicf("Dot: operands of different ranks %s, %s, %s", lhs.typ, rhs.typ, acc.typ)
	}
	lDims, rDims, aDims := lhs.typ.Shape.Dimensions, rhs.typ.Shape.Dimensions, acc.typ.Shape.Dimensions
	if !slices.Equal(lDims[:rank-2], rDims[:rank-2]) || !slices.Equal(lDims[:rank-2], aDims[:rank-2]) {
		exceptions.Panicf("Dot: batch dimensions don't match: %s, %s, %s", lhs.typ, rhs.typ, acc.typ)
	}
	if lDims[rank-1] != rDims[rank-2] || lDims[rank-2] != aDims[rank-2] || rDims[rank-1] != aDims[rank-1] {
		exceptions.Panicf("Dot: incompatible shapes %s x %s + %s", lhs.typ, rhs.typ, acc.typ)
	}
	return b.newOp(OpTypeDot, []*Value{lhs, rhs, acc}, []Type{acc.typ}, nil).results[0]
}

// LoopBodyFn builds the body of a For loop: it receives a builder positioned in the body,
// the induction variable and the loop-carried values. It returns the values to yield,
// one per loop-carried value.
type LoopBodyFn func(b *Builder, iv *Value, iterArgs []*Value) []*Value

// For creates a loop from lowerBound (inclusive) to upperBound (exclusive), incremented by step,
// carrying the values initialized by inits. It returns the loop op, whose results are the
// final values of the loop-carried values.
func (b *Builder) For(lowerBound, upperBound, step *Value, inits []*Value, bodyFn LoopBodyFn) *Op {
	for _, v := range []*Value{lowerBound, upperBound, step} {
		if !v.typ.IsIndex() {
			exceptions.Panicf("For: bounds and step must be indices, got %s", v.typ)
		}
	}
	operands := append([]*Value{lowerBound, upperBound, step}, inits...)
	argTypes := []Type{IndexType()}
	resultTypes := make([]Type, len(inits))
	for i, init := range inits {
		argTypes = append(argTypes, init.typ)
		resultTypes[i] = init.typ
	}
	op := b.newOp(OpTypeFor, operands, resultTypes, nil)
	body := NewBlock(argTypes...)
	body.parent = op
	op.regions = []*Block{body}

	ip := b.SaveInsertionPoint()
	b.SetInsertionPointToEnd(body)
	yields := bodyFn(b, body.args[0], body.Args()[1:])
	if len(yields) != len(inits) {
		exceptions.Panicf("For: body yields %d values, but the loop carries %d", len(yields), len(inits))
	}
	for i, y := range yields {
		if !y.typ.Equal(inits[i].typ) {
			exceptions.Panicf("For: loop-carried value #%d is %s but yielded %s", i, inits[i].typ, y.typ)
		}
	}
	b.newOp(OpTypeYield, yields, nil, nil)
	b.RestoreInsertionPoint(ip)
	return op
}

// TileZero creates a tile with all elements set to zero.
func (b *Builder) TileZero(t Type) *Value {
	if !t.IsTile() {
		exceptions.Panicf("TileZero: expected a tile type, got %s", t)
	}
	return b.newOp(OpTypeTileZero, nil, []Type{t}, nil).results[0]
}

// TileLoad loads a tile from the two trailing axes of memref, starting at indices.
func (b *Builder) TileLoad(t Type, memref *Value, indices ...*Value) *Value {
	if !t.IsTile() {
		exceptions.Panicf("TileLoad: expected a tile type, got %s", t)
	}
	checkTransfer(OpTypeTileLoad, t, memref, indices)
	operands := append([]*Value{memref}, indices...)
	return b.newOp(OpTypeTileLoad, operands, []Type{t}, &transferData{numIndices: len(indices), inBounds: true}).results[0]
}

// TileStore stores a tile to the two trailing axes of memref, starting at indices.
func (b *Builder) TileStore(tile, memref *Value, indices ...*Value) *Op {
	if !tile.typ.IsTile() {
		exceptions.Panicf("TileStore: expected a tile, got %s", tile.typ)
	}
	checkTransfer(OpTypeTileStore, tile.typ, memref, indices)
	operands := append([]*Value{tile, memref}, indices...)
	return b.newOp(OpTypeTileStore, operands, nil, &transferData{numIndices: len(indices), inBounds: true})
}

// TileMulF multiplies 16-bit float tiles lhs [M, K] and the VNNI packed rhs [K/2, N*2], and adds
// the result to the float32 tile acc [M, N].
func (b *Builder) TileMulF(lhs, rhs, acc *Value) *Value {
	b.checkTileMul(OpTypeTileMulF, lhs, rhs, acc)
	if !IsFloatDType(lhs.typ.DType()) || BitWidth(lhs.typ.DType()) != 16 || acc.typ.DType() != dtypes.Float32 {
		exceptions.Panicf("TileMulF: unsupported types %s x %s + %s", lhs.typ, rhs.typ, acc.typ)
	}
	return b.newOp(OpTypeTileMulF, []*Value{lhs, rhs, acc}, []Type{acc.typ}, nil).results[0]
}

// TileMulI multiplies int8 tiles lhs [M, K] and the VNNI packed rhs [K/4, N*4], and adds
// the result to the int32 tile acc [M, N].
func (b *Builder) TileMulI(lhs, rhs, acc *Value) *Value {
	b.checkTileMul(OpTypeTileMulI, lhs, rhs, acc)
	if lhs.typ.DType() != dtypes.Int8 || acc.typ.DType() != dtypes.Int32 {
		exceptions.Panicf("TileMulI: unsupported types %s x %s + %s", lhs.typ, rhs.typ, acc.typ)
	}
	return b.newOp(OpTypeTileMulI, []*Value{lhs, rhs, acc}, []Type{acc.typ}, nil).results[0]
}

func (b *Builder) checkTileMul(opType OpType, lhs, rhs, acc *Value) {
	if !lhs.typ.IsTile() || !rhs.typ.IsTile() || !acc.typ.IsTile() {
		exceptions.Panicf("%s: operands must be tiles, got %s, %s, %s", opType, lhs.typ, rhs.typ, acc.typ)
	}
	if lhs.typ.DType() != rhs.typ.DType() {
		exceptions.Panicf("%s: lhs and rhs element types differ: %s, %s", opType, lhs.typ, rhs.typ)
	}
	group := VNNIGroupSize(lhs.typ.DType())
	m, k, n := lhs.typ.Dim(0), lhs.typ.Dim(1), acc.typ.Dim(1)
	if acc.typ.Dim(0) != m || rhs.typ.Dim(0)*group != k || rhs.typ.Dim(1) != n*group {
		exceptions.Panicf("%s: incompatible tiles %s x %s + %s", opType, lhs.typ, rhs.typ, acc.typ)
	}
}

// Return ends a function, returning the given values.
func (b *Builder) Return(values ...*Value) *Op {
	return b.newOp(OpTypeReturn, values, nil, nil)
}
