// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"slices"

	"github.com/gomlx/exceptions"
)

// journal records how to undo each mutation of the IR.
type journal struct {
	undos []func()
}

func (j *journal) record(undo func()) {
	j.undos = append(j.undos, undo)
}

// Rewriter is a Builder that also replaces and erases ops. Every change (including the ops created)
// is journaled, and can be undone with Rollback until Commit is called.
//
// A Rewriter is not safe for concurrent use, and only one Rewriter should be modifying a region of the
// IR at a time.
type Rewriter struct {
	Builder
	journal journal
}

// NewRewriter creates a Rewriter, with the insertion point set right before op.
func NewRewriter(op *Op) *Rewriter {
	r := &Rewriter{}
	r.Builder.journal = &r.journal
	r.SetInsertionPoint(op)
	return r
}

// NumChanges returns the number of journaled changes since the last Commit or Rollback.
func (r *Rewriter) NumChanges() int { return len(r.journal.undos) }

// Commit accepts all changes done so far: they can no longer be rolled back.
func (r *Rewriter) Commit() {
	r.journal.undos = nil
}

// Rollback undoes all changes since the last Commit, in reverse order, leaving the IR as it was.
func (r *Rewriter) Rollback() {
	undos := r.journal.undos
	r.journal.undos = nil
	for i := len(undos) - 1; i >= 0; i-- {
		undos[i]()
	}
}

// setOperand changes the value used by an operand.
func (r *Rewriter) setOperand(operand *Operand, v *Value) {
	old := operand.value
	if old == v {
		return
	}
	old.removeUse(operand)
	operand.value = v
	v.addUse(operand)
	r.journal.record(func() {
		v.removeUse(operand)
		operand.value = old
		old.addUse(operand)
	})
}

// ReplaceAllUsesWith makes every user of from use to instead.
func (r *Rewriter) ReplaceAllUsesWith(from, to *Value) {
	r.ReplaceUsesIf(from, to, func(*Operand) bool { return true })
}

// ReplaceUsesIf replaces the uses of from by to, for the uses accepted by the filter.
func (r *Rewriter) ReplaceUsesIf(from, to *Value, filter func(use *Operand) bool) {
	if from == to {
		return
	}
	if !from.typ.Equal(to.typ) {
		exceptions.Panicf("cannot replace value of type %s with value of type %s", from.typ, to.typ)
	}
	for _, use := range from.Uses() {
		if filter(use) {
			r.setOperand(use, to)
		}
	}
}

// ReplaceOp replaces all uses of the results of op by the given values, and erases op.
func (r *Rewriter) ReplaceOp(op *Op, values ...*Value) {
	if len(values) != len(op.results) {
		exceptions.Panicf("ReplaceOp(%s): %d results, but %d replacement values", op.opType, len(op.results), len(values))
	}
	for i, result := range op.results {
		r.ReplaceAllUsesWith(result, values[i])
	}
	r.EraseOp(op)
}

// EraseOp removes op (and any ops nested in it) from the IR. Its results must have no uses left.
func (r *Rewriter) EraseOp(op *Op) {
	if op.hasUses() {
		exceptions.Panicf("EraseOp(%s): results still in use", op.opType)
	}
	if op.block == nil {
		exceptions.Panicf("EraseOp(%s): op is not in a block", op.opType)
	}
	if r.before == op {
		r.SetInsertionPointAfter(op)
	}
	block := op.block
	pos := block.remove(op)
	op.dropUses()
	r.journal.record(func() {
		block.insert(pos, op)
		op.restoreUses()
	})
}

// ReplaceForWithAdditionalYields replaces forOp by a new loop that carries len(newInits) additional values.
//
// The body of the loop is moved to the new loop, with one new block argument per new init.
// If replaceInitUsesInLoop is set, uses of the new inits inside the loop body are replaced by the
// corresponding new block arguments. yieldFn is then called with the new block arguments, and must
// return the values to yield for them.
//
// The results of the old loop are replaced by the first results of the new loop, and the old loop
// is erased. The new loop is returned.
func (r *Rewriter) ReplaceForWithAdditionalYields(forOp ForOp, newInits []*Value, replaceInitUsesInLoop bool,
	yieldFn func(newArgs []*Value) []*Value) ForOp {
	defer r.RestoreInsertionPoint(r.SaveInsertionPoint())
	r.SetInsertionPoint(forOp.Op)

	// New loop op, without a body yet.
	operands := append(forOp.Operands(), newInits...)
	resultTypes := make([]Type, 0, len(forOp.results)+len(newInits))
	for _, result := range forOp.results {
		resultTypes = append(resultTypes, result.typ)
	}
	for _, init := range newInits {
		resultTypes = append(resultTypes, init.typ)
	}
	newOp := r.newOp(OpTypeFor, operands, resultTypes, forOp.data)
	newFor := ForOp{newOp}

	// Move body.
	body := forOp.Body()
	newOp.regions = []*Block{body}
	forOp.regions = nil
	body.parent = newOp
	r.journal.record(func() {
		forOp.regions = []*Block{body}
		newOp.regions = nil
		body.parent = forOp.Op
	})

	// Extend the body arguments.
	newArgs := make([]*Value, len(newInits))
	for i, init := range newInits {
		newArgs[i] = body.addArgument(init.typ)
	}
	r.journal.record(func() {
		for range newInits {
			body.popArgument()
		}
	})
	if replaceInitUsesInLoop {
		for i, init := range newInits {
			r.ReplaceUsesIf(init, newArgs[i], func(use *Operand) bool {
				return newOp.IsProperAncestor(use.owner)
			})
		}
	}

	// Extend the yield.
	yields := yieldFn(newArgs)
	if len(yields) != len(newInits) {
		exceptions.Panicf("ReplaceForWithAdditionalYields: %d values yielded for %d new inits", len(yields), len(newInits))
	}
	yieldOp := newFor.Yield()
	numOldOperands := len(yieldOp.operands)
	for i, y := range yields {
		if !y.typ.Equal(newInits[i].typ) {
			exceptions.Panicf("ReplaceForWithAdditionalYields: yield #%d is %s, expected %s", i, y.typ, newInits[i].typ)
		}
		operand := &Operand{owner: yieldOp, number: len(yieldOp.operands), value: y}
		yieldOp.operands = append(yieldOp.operands, operand)
		y.addUse(operand)
	}
	r.journal.record(func() {
		for _, operand := range yieldOp.operands[numOldOperands:] {
			operand.value.removeUse(operand)
		}
		yieldOp.operands = slices.Clip(yieldOp.operands[:numOldOperands])
	})

	// Replace old loop.
	for i, result := range forOp.results {
		r.ReplaceAllUsesWith(result, newOp.results[i])
	}
	r.EraseOp(forOp.Op)
	return newFor
}
