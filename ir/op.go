// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"slices"
)

// Op is one operation of the IR: it takes operands, produces results and may hold regions (blocks)
// with nested ops.
//
// Ops are created with a Builder (or Rewriter), which inserts them in a block.
type Op struct {
	opType   OpType
	operands []*Operand
	results  []*Value
	regions  []*Block
	block    *Block

	// data for the specific op type.
	data any
}

// Type returns the OpType of the op.
func (op *Op) Type() OpType { return op.opType }

// NumOperands returns the number of operands.
func (op *Op) NumOperands() int { return len(op.operands) }

// Operand returns the value of the i-th operand.
func (op *Op) Operand(i int) *Value { return op.operands[i].value }

// Operands returns the values of all operands.
func (op *Op) Operands() []*Value {
	values := make([]*Value, len(op.operands))
	for i, operand := range op.operands {
		values[i] = operand.value
	}
	return values
}

// NumResults returns the number of results.
func (op *Op) NumResults() int { return len(op.results) }

// Result returns the i-th result.
func (op *Op) Result(i int) *Value { return op.results[i] }

// Results returns all the results.
func (op *Op) Results() []*Value { return slices.Clone(op.results) }

// Region returns the i-th region.
func (op *Op) Region(i int) *Block { return op.regions[i] }

// NumRegions returns the number of regions (nested blocks) of the op.
func (op *Op) NumRegions() int { return len(op.regions) }

// Block returns the block containing the op, or nil if it is detached (e.g.: erased).
func (op *Op) Block() *Block { return op.block }

// ParentOp returns the op owning the block that contains this op, or nil.
func (op *Op) ParentOp() *Op {
	if op.block == nil {
		return nil
	}
	return op.block.parent
}

// Data returns the attributes specific to the op type.
func (op *Op) Data() any { return op.data }

// IsBeforeInBlock returns whether op comes before other. Both must be in the same block.
func (op *Op) IsBeforeInBlock(other *Op) bool {
	return op.block.indexOf(op) < other.block.indexOf(other)
}

// IsProperAncestor returns whether op contains other in one of its (possibly nested) regions.
func (op *Op) IsProperAncestor(other *Op) bool {
	for parent := other.ParentOp(); parent != nil; parent = parent.ParentOp() {
		if parent == op {
			return true
		}
	}
	return false
}

// hasUses returns whether any of the results is used.
func (op *Op) hasUses() bool {
	for _, result := range op.results {
		if result.NumUses() > 0 {
			return true
		}
	}
	return false
}

// dropUses unregisters the operands of op (and all its nested ops) from the uses of their values.
func (op *Op) dropUses() {
	op.Walk(func(nested *Op) {
		for _, operand := range nested.operands {
			operand.value.removeUse(operand)
		}
	})
}

// restoreUses undoes dropUses.
func (op *Op) restoreUses() {
	op.Walk(func(nested *Op) {
		for _, operand := range nested.operands {
			operand.value.addUse(operand)
		}
	})
}

// transferData holds the attributes of Read, Write, TileLoad, TileStore and Prefetch.
type transferData struct {
	numIndices int
	hasMask    bool
	inBounds   bool
}

// constantData holds the value of a Constant. A single value is a splat.
type constantData struct {
	values []float64
}

// funcData holds the attributes of a Func.
type funcData struct {
	name string
}

// extractData holds the attributes of an Extract.
type extractData struct {
	row int
}
