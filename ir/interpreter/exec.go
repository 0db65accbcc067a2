// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package interpreter

import (
	"github.com/Artlesbol/triton-cpu/ir"
	"github.com/Artlesbol/triton-cpu/types/shapes"
	"github.com/gomlx/exceptions"
)

func init() {
	executors[ir.OpTypeConstant] = execConstant
	executors[ir.OpTypeAddI] = execAddI
	executors[ir.OpTypeMulI] = execMulI
	executors[ir.OpTypeAdd] = execAdd
	executors[ir.OpTypeCast] = execCast
	executors[ir.OpTypeExtract] = execExtract
	executors[ir.OpTypeInterleave] = execInterleave
	executors[ir.OpTypeVNNIDecode] = execVNNIDecode
	executors[ir.OpTypeDot] = execDot
}

func execConstant(_ *frame, op *ir.Op, _ []any) []any {
	values, _ := ir.ConstantValues(op)
	t := op.Result(0).Type()
	if t.IsIndex() {
		return []any{int(values[0])}
	}
	buf := NewBuffer(t.Shape)
	for i := range buf.shape.Size() {
		v := values[0]
		if len(values) > 1 {
			v = values[i]
		}
		buf.setFloat(i, v)
	}
	return []any{buf}
}

func execAddI(_ *frame, _ *ir.Op, inputs []any) []any {
	return []any{inputs[0].(int) + inputs[1].(int)}
}

func execMulI(_ *frame, _ *ir.Op, inputs []any) []any {
	return []any{inputs[0].(int) * inputs[1].(int)}
}

// execAdd adds elementwise: integers wrap around, floats are added in float64 and rounded to the dtype.
func execAdd(_ *frame, _ *ir.Op, inputs []any) []any {
	lhs, rhs := inputs[0].(*Buffer), inputs[1].(*Buffer)
	output := NewBuffer(lhs.shape)
	for i := range output.shape.Size() {
		if output.isFloat() {
			output.setFloat(i, lhs.getFloat(i)+rhs.getFloat(i))
		} else {
			output.setInt(i, lhs.getInt(i)+rhs.getInt(i))
		}
	}
	return []any{output}
}

// execCast converts elements: integers are sign-extended or truncated (wrapping around), floats are
// rounded to the target dtype, and floats converted to integers are truncated towards zero.
func execCast(_ *frame, op *ir.Op, inputs []any) []any {
	operand := inputs[0].(*Buffer)
	output := NewBuffer(op.Result(0).Type().Shape)
	for i := range output.shape.Size() {
		if operand.isFloat() {
			output.setFloat(i, operand.getFloat(i))
		} else {
			output.setInt(i, operand.getInt(i))
		}
	}
	return []any{output}
}

func execExtract(_ *frame, op *ir.Op, inputs []any) []any {
	operand := inputs[0].(*Buffer)
	row := ir.ExtractRow(op)
	cols := operand.shape.Dim(1)
	output := NewBuffer(op.Result(0).Type().Shape)
	for col := range cols {
		copyElement(output, col, operand, row*cols+col)
	}
	return []any{output}
}

func execInterleave(_ *frame, op *ir.Op, inputs []any) []any {
	lhs, rhs := inputs[0].(*Buffer), inputs[1].(*Buffer)
	output := NewBuffer(op.Result(0).Type().Shape)
	for i := range lhs.shape.Size() {
		copyElement(output, 2*i, lhs, i)
		copyElement(output, 2*i+1, rhs, i)
	}
	return []any{output}
}

// execVNNIDecode converts packed[k/g][n*g + k%g] to logical[k][n].
func execVNNIDecode(_ *frame, op *ir.Op, inputs []any) []any {
	packed := inputs[0].(*Buffer)
	output := NewBuffer(op.Result(0).Type().Shape)
	group := ir.VNNIGroupSize(packed.shape.DType)
	rows, cols := output.shape.Dim(0), output.shape.Dim(1)
	packedCols := packed.shape.Dim(1)
	for k := range rows {
		for n := range cols {
			copyElement(output, k*cols+n, packed, (k/group)*packedCols+n*group+k%group)
		}
	}
	return []any{output}
}

// execDot computes lhs·rhs + acc for each batch element. The products are accumulated in int64 or float64,
// and then converted to the accumulator dtype.
func execDot(_ *frame, _ *ir.Op, inputs []any) []any {
	lhs, rhs, acc := inputs[0].(*Buffer), inputs[1].(*Buffer), inputs[2].(*Buffer)
	rank := acc.shape.Rank()
	m, n, k := acc.shape.Dim(rank-2), acc.shape.Dim(rank-1), lhs.shape.Dim(rank-1)
	batchSize := acc.shape.Size() / (m * n)
	output := NewBuffer(acc.shape)
	floatAcc := output.isFloat()
	for batch := range batchSize {
		lhsBase, rhsBase, accBase := batch*m*k, batch*k*n, batch*m*n
		for row := range m {
			for col := range n {
				accIdx := accBase + row*n + col
				if floatAcc {
					sum := acc.getFloat(accIdx)
					for i := range k {
						sum += lhs.getFloat(lhsBase+row*k+i) * rhs.getFloat(rhsBase+i*n+col)
					}
					output.setFloat(accIdx, sum)
				} else {
					sum := acc.getInt(accIdx)
					for i := range k {
						sum += lhs.getInt(lhsBase+row*k+i) * rhs.getInt(rhsBase+i*n+col)
					}
					output.setInt(accIdx, sum)
				}
			}
		}
	}
	return []any{output}
}

// transferIndices returns the memref indices of the element at vecIndices of a vector (or tile)
// transferred to the trailing axes of a memref, starting at base.
func transferIndices(base, vecIndices, memIndices []int) []int {
	offset := len(base) - len(vecIndices)
	copy(memIndices, base)
	for axis, idx := range vecIndices {
		memIndices[offset+axis] += idx
	}
	return memIndices
}

// checkTransferBounds panics if a transfer of shape, starting at base, doesn't fit in memShape.
func checkTransferBounds(opType ir.OpType, memShape shapes.Shape, base []int, shape shapes.Shape) {
	offset := memShape.Rank() - shape.Rank()
	for axis, idx := range base {
		end := idx + 1
		if axis >= offset {
			end = idx + shape.Dim(axis-offset)
		}
		if idx < 0 || end > memShape.Dim(axis) {
			exceptions.Panicf("%s: access of %s at %v out of bounds of memref %s", opType, shape, base, memShape)
		}
	}
}
