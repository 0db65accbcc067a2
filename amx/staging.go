// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package amx

import (
	"slices"

	"github.com/Artlesbol/triton-cpu/ir"
	"github.com/Artlesbol/triton-cpu/types/shapes"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// stagingKind enumerates the ways a value is made available in memory for tile loads.
type stagingKind int

//go:generate go tool enumer -type=stagingKind -trimprefix=staging -transform=lower -output=gen_stagingkind_enumer.go staging.go

const (
	// stagingAllocated copies the value to a new scratch buffer.
	stagingAllocated stagingKind = iota

	// stagingReused loads the tiles directly from the memory the value was read from.
	stagingReused

	// stagingRepacked copies the memory the value was read from to a new scratch buffer, interleaving its rows.
	stagingRepacked

	// stagingSkipped is used for zero values: tiles are zero initialized, nothing is loaded.
	stagingSkipped
)

// stagingDecision is the outcome of decideStaging.
type stagingDecision struct {
	kind stagingKind

	// source is the memory the value was read from, for stagingReused and stagingRepacked.
	source MemBuffer

	// packed is the packed (VNNI) encoding of the value, if it's available as a value. Only for stagingAllocated.
	packed *ir.Value
}

// decideStaging decides how to make val available in memory for tile loads inserted right before the op at.
//
// If interleave is set, the memory must hold the packed (VNNI) encoding of val. If skipIfZero is set, zero
// values need not be in memory. Only if readOnly is set can the memory be shared with other users of val.
func decideStaging(val *ir.Value, interleave, skipIfZero, readOnly bool, at *ir.Op) stagingDecision {
	if readOnly {
		if source := findInputBuffer(val, interleave, at); !source.Empty() {
			if interleave && !source.VNNI {
				return stagingDecision{kind: stagingRepacked, source: source}
			}
			return stagingDecision{kind: stagingReused, source: source}
		}
	}
	if skipIfZero && isZeroConst(val) {
		return stagingDecision{kind: stagingSkipped}
	}
	decision := stagingDecision{kind: stagingAllocated}
	if interleave {
		if def := val.DefiningOp(); def != nil && def.Type() == ir.OpTypeVNNIDecode {
			decision.packed = def.Operand(0)
		}
	}
	return decision
}

// prepareTensorBuffer returns a buffer holding val (or its packed encoding, if interleave is set),
// from where tiles can be loaded right before the op at. See decideStaging for the arguments.
//
// New ops are inserted at the builder's insertion point, scratch buffers are allocated before allocaPoint.
// It returns an empty buffer if val is zero and skipIfZero is set.
func prepareTensorBuffer(b *ir.Builder, val *ir.Value, interleave, skipIfZero, readOnly bool,
	at, allocaPoint *ir.Op) (MemBuffer, error) {
	decision := decideStaging(val, interleave, skipIfZero, readOnly, at)
	klog.V(3).Infof("amx: staging %s (interleave=%v): %s", val.Type(), interleave, decision.kind)
	switch decision.kind {
	case stagingReused:
		return decision.source, nil
	case stagingSkipped:
		return MemBuffer{}, nil
	}

	shape := val.Type().Shape
	if interleave {
		var err error
		shape, err = packedLayoutShape(shape)
		if err != nil {
			return MemBuffer{}, errors.WithMessagef(err, "staging %s", val.Type())
		}
	}
	buf := allocateTmpBuffer(b, shape, allocaPoint)
	switch {
	case decision.kind == stagingRepacked:
		copyWithInterleave(b, val.Type().Shape, decision.source, buf)
	case decision.packed != nil:
		b.Write(decision.packed, buf.MemRef, buf.Indices...)
	case interleave:
		interleaveAndStore(b, val, buf)
	default:
		b.Write(val, buf.MemRef, buf.Indices...)
	}
	buf.VNNI = interleave
	return buf, nil
}

// interleaveRows packs a group of 2 or 4 rows into one row: element n of row i goes to position n*len(rows)+i.
func interleaveRows(b *ir.Builder, rows []*ir.Value) *ir.Value {
	switch len(rows) {
	case 2:
		return b.Interleave(rows[0], rows[1])
	case 4:
		return b.Interleave(b.Interleave(rows[0], rows[2]), b.Interleave(rows[1], rows[3]))
	}
	exceptions.Panicf("cannot interleave %d rows", len(rows))
	return nil
}

// interleaveAndStore writes the packed encoding of the 2D value val to buf: row i/g of buf holds
// rows [i, i+g) of val interleaved, where g is the packing group size.
func interleaveAndStore(b *ir.Builder, val *ir.Value, buf MemBuffer) {
	group := ir.VNNIGroupSize(val.Type().DType())
	rowAxis := len(buf.Indices) - 2
	rows := make([]*ir.Value, group)
	for row := 0; row < val.Type().Dim(0); row += group {
		for i := range group {
			rows[i] = b.Extract(val, row+i)
		}
		indices := slices.Clone(buf.Indices)
		indices[rowAxis] = shiftIndex(b, indices[rowAxis], row/group)
		b.Write(interleaveRows(b, rows), buf.MemRef, indices...)
	}
}

// copyWithInterleave emits a loop copying a 2D block of the given (unpacked) shape from src to its
// packed encoding in dst. If src has a Step, the rows of the next iteration of the enclosing loop
// are prefetched.
func copyWithInterleave(b *ir.Builder, shape shapes.Shape, src, dst MemBuffer) {
	group := ir.VNNIGroupSize(shape.DType)
	rowType := ir.VectorType(shapes.Make(shape.DType, shape.Dim(1)))
	srcRowAxis, dstRowAxis := len(src.Indices)-2, len(dst.Indices)-2
	b.For(b.ConstIndex(0), b.ConstIndex(shape.Dim(0)/group), b.ConstIndex(1), nil,
		func(b *ir.Builder, iv *ir.Value, _ []*ir.Value) []*ir.Value {
			firstRow := b.AddI(src.Indices[srcRowAxis], b.MulI(iv, b.ConstIndex(group)))
			rows := make([]*ir.Value, group)
			for i := range group {
				indices := slices.Clone(src.Indices)
				indices[srcRowAxis] = shiftIndex(b, firstRow, i)
				rows[i] = loadWithPrefetch(b, rowType, src.MemRef, indices, src.Step)
			}
			indices := slices.Clone(dst.Indices)
			indices[dstRowAxis] = b.AddI(indices[dstRowAxis], iv)
			b.Write(interleaveRows(b, rows), dst.MemRef, indices...)
			return nil
		})
}

// loadWithPrefetch reads a vector of type vecType from memref, and if step is given, prefetches
// the memory at indices+step.
func loadWithPrefetch(b *ir.Builder, vecType ir.Type, memref *ir.Value, indices []*ir.Value, step []int) *ir.Value {
	row := b.Read(vecType, memref, indices...)
	if step != nil {
		next := make([]*ir.Value, len(indices))
		for i, idx := range indices {
			next[i] = shiftIndex(b, idx, step[i])
		}
		b.Prefetch(memref, next...)
	}
	return row
}

// prepareResultBuffer returns where the accumulator tiles are stored: preferably the output
// buffer, so the result lands directly in its final place, then the (scratch) accumulator
// buffer, updated in place, or else a new scratch buffer of the given shape.
func prepareResultBuffer(b *ir.Builder, shape shapes.Shape, accBuf, outBuf MemBuffer, allocaPoint *ir.Op) (MemBuffer, error) {
	if !outBuf.Empty() {
		if len(outBuf.Indices) < 2 {
			return MemBuffer{}, errors.Errorf("output buffer %s must have rank >= 2", outBuf.MemRef.Type())
		}
		return outBuf, nil
	}
	if !accBuf.Empty() {
		return accBuf, nil
	}
	return allocateTmpBuffer(b, shape, allocaPoint), nil
}
