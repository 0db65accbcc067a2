// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package amx

import (
	"github.com/Artlesbol/triton-cpu/ir"
	"github.com/Artlesbol/triton-cpu/types/shapes"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// MemBuffer is a location in memory: a memref and the indices of the first element
// of the 2D block of interest, which sits on the two trailing axes of the memref.
//
// The zero value is the empty buffer: e.g. an accumulator known to be zero is staged
// to an empty buffer, and its tiles are created with TileZero instead of loaded.
type MemBuffer struct {
	MemRef  *ir.Value
	Indices []*ir.Value

	// Step holds, per index, the distance (in elements) the indices advance on each
	// iteration of the enclosing loop. It is nil if the indices are loop invariant, or
	// the distance is unknown. It is used to prefetch the next iteration's rows.
	Step []int

	// VNNI is set if the memory holds the packed (VNNI) encoding of the value.
	VNNI bool
}

// Empty returns whether the buffer doesn't point to any memory.
func (b MemBuffer) Empty() bool { return b.MemRef == nil }

// allocateTmpBuffer allocates a scratch buffer with the given shape, right before allocaPoint,
// an op in the body of the function, so the buffer lives as long as the function activation.
func allocateTmpBuffer(b *ir.Builder, shape shapes.Shape, allocaPoint *ir.Op) MemBuffer {
	defer b.RestoreInsertionPoint(b.SaveInsertionPoint())
	b.SetInsertionPoint(allocaPoint)
	memref := b.Alloca(shape)
	zero := b.ConstIndex(0)
	indices := make([]*ir.Value, shape.Rank())
	for i := range indices {
		indices[i] = zero
	}
	klog.V(3).Infof("amx: allocated scratch buffer %s (%s)", shape, humanize.Bytes(uint64(shape.Memory())))
	return MemBuffer{MemRef: memref, Indices: indices}
}

// packedLayoutShape returns the shape of the packed (VNNI) encoding of a [..., K, N] shape:
// [..., K/g, N*g], where g is the number of elements packed in a 32-bit lane.
func packedLayoutShape(shape shapes.Shape) (shapes.Shape, error) {
	if err := shape.CheckMinRank(2); err != nil {
		return shapes.Invalid(), errors.WithMessage(err, "cannot pack")
	}
	group := ir.VNNIGroupSize(shape.DType)
	if group == 0 {
		return shapes.Invalid(), errors.Errorf("cannot pack shape %s: no packed layout for %s", shape, shape.DType)
	}
	if err := shape.CheckMultiple(-2, group); err != nil {
		return shapes.Invalid(), errors.WithMessage(err, "cannot pack")
	}
	rank := shape.Rank()
	dims := shape.Clone().Dimensions
	dims[rank-2] /= group
	dims[rank-1] *= group
	return shapes.Make(shape.DType, dims...), nil
}

// hasMaskOrBoundsCheck returns whether the transfer is masked, or may access memory out of bounds.
func hasMaskOrBoundsCheck(transfer ir.TransferOp) bool {
	return transfer.Mask() != nil || !transfer.InBounds()
}

// findInputBuffer returns the memory val was read from, if it can be used in place of val by the
// tile loads inserted right before the op at: val must be a full, unmasked 2D read, and no op
// between the read and at may write to memory.
//
// If allowVNNI is set, val may also be the decoding of a packed read, in which case the returned
// buffer has VNNI set.
//
// It returns an empty buffer if val can't be found in memory.
func findInputBuffer(val *ir.Value, allowVNNI bool, at *ir.Op) MemBuffer {
	def := val.DefiningOp()
	if def == nil {
		return MemBuffer{}
	}
	vnni := false
	if allowVNNI && def.Type() == ir.OpTypeVNNIDecode {
		def = def.Operand(0).DefiningOp()
		vnni = true
	}
	read, ok := ir.AsTransfer(def)
	if !ok || read.Type() != ir.OpTypeRead || hasMaskOrBoundsCheck(read) {
		return MemBuffer{}
	}
	if read.Result(0).Type().Rank() != 2 {
		return MemBuffer{}
	}
	if !noWritesBetween(read.Op, at, read.MemRef()) {
		klog.V(3).Infof("amx: memory may be written between read and use, can't reuse it")
		return MemBuffer{}
	}
	return MemBuffer{
		MemRef:  read.MemRef(),
		Indices: read.Indices(),
		Step:    loopStep(read),
		VNNI:    vnni,
	}
}

// noWritesBetween returns whether from and to are in the same block, and no op strictly between
// them (or nested in them) may write to memref.
func noWritesBetween(from, to *ir.Op, memref *ir.Value) bool {
	if from.Block() == nil || from.Block() != to.Block() || !from.IsBeforeInBlock(to) {
		return false
	}
	ops := from.Block().Ops()
	inRange := false
	for _, op := range ops {
		if op == to {
			return true
		}
		if inRange {
			writes := false
			op.Walk(func(nested *ir.Op) {
				if mayWriteTo(nested, memref) {
					writes = true
				}
			})
			if writes {
				return false
			}
		}
		if op == from {
			inRange = true
		}
	}
	return false
}

// mayWriteTo returns whether op may write to memref. A scratch buffer (the result of an Alloca)
// only aliases itself.
func mayWriteTo(op *ir.Op, memref *ir.Value) bool {
	if !op.Type().WritesMemory() {
		return false
	}
	transfer, ok := ir.AsTransfer(op)
	if !ok || transfer.MemRef() == memref {
		return true
	}
	def := transfer.MemRef().DefiningOp()
	return def == nil || def.Type() != ir.OpTypeAlloca
}

// loopStep returns how much each index of the transfer advances per iteration of the loop
// directly containing it. It returns nil if the transfer is not in a loop, if some index is
// not an affine function of the induction variable with a constant step, or if no index changes.
func loopStep(transfer ir.TransferOp) []int {
	forOp, ok := ir.AsFor(transfer.ParentOp())
	if !ok {
		return nil
	}
	loopStepValue, ok := constIndexValue(forOp.Step())
	if !ok {
		return nil
	}
	indices := transfer.Indices()
	steps := make([]int, len(indices))
	moves := false
	for i, idx := range indices {
		coef, ok := ivCoefficient(idx, forOp)
		if !ok {
			return nil
		}
		steps[i] = coef * loopStepValue
		moves = moves || steps[i] != 0
	}
	if !moves {
		return nil
	}
	return steps
}

// ivCoefficient returns c such that v = c*iv + (loop invariant), for the induction variable
// iv of forOp.
func ivCoefficient(v *ir.Value, forOp ir.ForOp) (int, bool) {
	if v == forOp.InductionVar() {
		return 1, true
	}
	def := v.DefiningOp()
	if def == nil {
		// Other block arguments: only loop invariant if defined outside the loop.
		owner := v.ParentBlock().ParentOp()
		if owner == nil {
			return 0, true
		}
		return 0, owner != forOp.Op && !forOp.IsProperAncestor(owner)
	}
	if def.Block() != forOp.Body() && !forOp.IsProperAncestor(def) {
		return 0, true
	}
	switch def.Type() {
	case ir.OpTypeConstant:
		return 0, true
	case ir.OpTypeAddI:
		lhs, ok := ivCoefficient(def.Operand(0), forOp)
		if !ok {
			return 0, false
		}
		rhs, ok := ivCoefficient(def.Operand(1), forOp)
		return lhs + rhs, ok
	case ir.OpTypeMulI:
		if c, isConst := constIndexValue(def.Operand(0)); isConst {
			coef, ok := ivCoefficient(def.Operand(1), forOp)
			return c * coef, ok
		}
		if c, isConst := constIndexValue(def.Operand(1)); isConst {
			coef, ok := ivCoefficient(def.Operand(0), forOp)
			return c * coef, ok
		}
	}
	return 0, false
}

// constIndexValue returns the value of an index constant.
func constIndexValue(v *ir.Value) (int, bool) {
	if !v.Type().IsIndex() {
		return 0, false
	}
	values, ok := ir.ConstantValues(v.DefiningOp())
	if !ok {
		return 0, false
	}
	return int(values[0]), true
}

// isZeroConst returns whether v is a constant with all elements zero, possibly cast to another dtype.
func isZeroConst(v *ir.Value) bool {
	def := v.DefiningOp()
	for def != nil && def.Type() == ir.OpTypeCast {
		def = def.Operand(0).DefiningOp()
	}
	values, ok := ir.ConstantValues(def)
	if !ok {
		return false
	}
	for _, value := range values {
		if value != 0 {
			return false
		}
	}
	return true
}

// maybeCast returns val converted to dtype, or val itself if it already has that dtype.
func maybeCast(b *ir.Builder, val *ir.Value, dtype dtypes.DType) *ir.Value {
	if val.Type().DType() == dtype {
		return val
	}
	return b.Cast(val, dtype)
}

// shiftIndex returns idx+offset, folding constants.
func shiftIndex(b *ir.Builder, idx *ir.Value, offset int) *ir.Value {
	if offset == 0 {
		return idx
	}
	if c, ok := constIndexValue(idx); ok {
		return b.ConstIndex(c + offset)
	}
	return b.AddI(idx, b.ConstIndex(offset))
}

// isLoopCarriedAcc returns whether acc is the loop-carried value of the For loop directly
// containing the dot op that uses it, and whether the updated value is only yielded back to
// the same position: that is, the loop does nothing else with the accumulator.
func isLoopCarriedAcc(acc *ir.Value) (ir.ForOp, bool) {
	if !acc.IsBlockArgument() || !acc.HasOneUse() {
		return ir.ForOp{}, false
	}
	forOp, ok := ir.AsFor(acc.ParentBlock().ParentOp())
	if !ok {
		return ir.ForOp{}, false
	}
	iterIdx := forOp.IterArgIndex(acc)
	if iterIdx < 0 {
		return ir.ForOp{}, false
	}
	dot := acc.Users()[0]
	if dot.Type() != ir.OpTypeDot || dot.Block() != forOp.Body() {
		return ir.ForOp{}, false
	}
	updated := dot.Result(0)
	if !updated.HasOneUse() {
		return ir.ForOp{}, false
	}
	use := updated.Uses()[0]
	if use.Owner() != forOp.Yield() || use.Number() != iterIdx {
		return ir.ForOp{}, false
	}
	return forOp, true
}
