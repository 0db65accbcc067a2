// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package interpreter

import (
	"github.com/Artlesbol/triton-cpu/ir"
	"github.com/gomlx/exceptions"
)

func init() {
	executors[ir.OpTypeRead] = execRead
	executors[ir.OpTypeWrite] = execWrite
	executors[ir.OpTypeAlloca] = execAlloca
	executors[ir.OpTypePrefetch] = execPrefetch
	executors[ir.OpTypeTileZero] = execTileZero
	executors[ir.OpTypeTileLoad] = execRead
	executors[ir.OpTypeTileStore] = execWrite
}

// transferArgs splits the inputs of a transfer op into memref, base indices and mask (nil if unmasked).
func transferArgs(op *ir.Op, inputs []any) (memref *Buffer, base []int, mask *Buffer) {
	transfer, _ := ir.AsTransfer(op)
	pos := 0
	if op.Type() == ir.OpTypeWrite || op.Type() == ir.OpTypeTileStore {
		pos = 1
	}
	memref = inputs[pos].(*Buffer)
	numIndices := len(transfer.Indices())
	base = make([]int, numIndices)
	for i := range numIndices {
		base[i] = inputs[pos+1+i].(int)
	}
	if transfer.Mask() != nil {
		mask = inputs[len(inputs)-1].(*Buffer)
	}
	return
}

// execRead implements Read and TileLoad. Masked-out elements, and out-of-bounds elements of reads
// with bounds check, are zero.
func execRead(_ *frame, op *ir.Op, inputs []any) []any {
	transfer, _ := ir.AsTransfer(op)
	memref, base, mask := transferArgs(op, inputs)
	output := NewBuffer(op.Result(0).Type().Shape)
	if transfer.InBounds() {
		checkTransferBounds(op.Type(), memref.shape, base, output.shape)
	}
	memIndices := make([]int, len(base))
	for vecIndices := range output.shape.Iter() {
		outIdx := output.shape.FlatIndex(vecIndices)
		if mask != nil && mask.getInt(outIdx) == 0 {
			continue
		}
		memIndices = transferIndices(base, vecIndices, memIndices)
		if !memref.shape.InBounds(memIndices) {
			continue
		}
		copyElement(output, outIdx, memref, memref.shape.FlatIndex(memIndices))
	}
	return []any{output}
}

// execWrite implements Write and TileStore. Masked-out elements, and out-of-bounds elements of writes
// with bounds check, are skipped.
func execWrite(_ *frame, op *ir.Op, inputs []any) []any {
	transfer, _ := ir.AsTransfer(op)
	value := inputs[0].(*Buffer)
	memref, base, mask := transferArgs(op, inputs)
	if transfer.InBounds() {
		checkTransferBounds(op.Type(), memref.shape, base, value.shape)
	}
	memIndices := make([]int, len(base))
	for vecIndices := range value.shape.Iter() {
		valueIdx := value.shape.FlatIndex(vecIndices)
		if mask != nil && mask.getInt(valueIdx) == 0 {
			continue
		}
		memIndices = transferIndices(base, vecIndices, memIndices)
		if !memref.shape.InBounds(memIndices) {
			continue
		}
		copyElement(memref, memref.shape.FlatIndex(memIndices), value, valueIdx)
	}
	return nil
}

func execAlloca(_ *frame, op *ir.Op, _ []any) []any {
	return []any{NewBuffer(op.Result(0).Type().Shape)}
}

// execPrefetch is a hint only: it may point past the end of the memref, and it does nothing.
func execPrefetch(_ *frame, _ *ir.Op, inputs []any) []any {
	if _, ok := inputs[0].(*Buffer); !ok {
		exceptions.Panicf("Prefetch: expected a memref, got %T", inputs[0])
	}
	return nil
}

func execTileZero(_ *frame, op *ir.Op, _ []any) []any {
	return []any{NewBuffer(op.Result(0).Type().Shape)}
}
