// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package interpreter

import (
	"github.com/Artlesbol/triton-cpu/ir"
)

func init() {
	executors[ir.OpTypeTileMulI] = execTileMulI
	executors[ir.OpTypeTileMulF] = execTileMulF
}

// execTileMulI computes acc[m][n] += Σ_k lhs[m][k] * rhs[k/4][n*4 + k%4], with int8 inputs and int32
// accumulation that wraps around on overflow.
func execTileMulI(_ *frame, _ *ir.Op, inputs []any) []any {
	lhs, rhs, acc := inputs[0].(*Buffer), inputs[1].(*Buffer), inputs[2].(*Buffer)
	lhsFlat, rhsFlat := lhs.flat.([]int8), rhs.flat.([]int8)
	output := acc.Clone()
	outFlat := output.flat.([]int32)
	m, k := lhs.shape.Dim(0), lhs.shape.Dim(1)
	n := acc.shape.Dim(1)
	rhsCols := rhs.shape.Dim(1)
	const group = 4
	for row := range m {
		for col := range n {
			sum := outFlat[row*n+col]
			for i := range k {
				sum += int32(lhsFlat[row*k+i]) * int32(rhsFlat[(i/group)*rhsCols+col*group+i%group])
			}
			outFlat[row*n+col] = sum
		}
	}
	return []any{output}
}

// execTileMulF computes acc[m][n] += Σ_k lhs[m][k] * rhs[k/2][n*2 + k%2], with 16-bit float inputs
// (float16 or bfloat16) and float32 accumulation.
func execTileMulF(_ *frame, _ *ir.Op, inputs []any) []any {
	lhs, rhs, acc := inputs[0].(*Buffer), inputs[1].(*Buffer), inputs[2].(*Buffer)
	output := acc.Clone()
	outFlat := output.flat.([]float32)
	m, k := lhs.shape.Dim(0), lhs.shape.Dim(1)
	n := acc.shape.Dim(1)
	rhsCols := rhs.shape.Dim(1)
	const group = 2
	for row := range m {
		for col := range n {
			sum := outFlat[row*n+col]
			for i := range k {
				sum += float32(lhs.getFloat(row*k+i)) * float32(rhs.getFloat((i/group)*rhsCols+col*group+i%group))
			}
			outFlat[row*n+col] = sum
		}
	}
	return []any{output}
}
