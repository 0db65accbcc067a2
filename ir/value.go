// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"slices"
)

// Value is either the result of an Op or an argument of a Block.
//
// Values are immutable, but the list of their uses changes as the IR is rewritten.
type Value struct {
	typ Type

	// Set for op results.
	op        *Op
	resultIdx int

	// Set for block arguments.
	block  *Block
	argIdx int

	uses []*Operand
}

// Type of the value.
func (v *Value) Type() Type { return v.typ }

// DefiningOp returns the op that produces the value, or nil for block arguments.
func (v *Value) DefiningOp() *Op { return v.op }

// IsBlockArgument returns whether the value is an argument of a block.
func (v *Value) IsBlockArgument() bool { return v.op == nil }

// ArgNumber returns the position of the block argument. Only valid if IsBlockArgument.
func (v *Value) ArgNumber() int { return v.argIdx }

// ResultNumber returns the position of the value in its defining op results. Only valid if not IsBlockArgument.
func (v *Value) ResultNumber() int { return v.resultIdx }

// ParentBlock returns the block where the value is defined: for block arguments it's the block
// itself, for op results it is the block containing the defining op.
func (v *Value) ParentBlock() *Block {
	if v.op != nil {
		return v.op.block
	}
	return v.block
}

// Uses returns a copy of the list of operands using this value.
func (v *Value) Uses() []*Operand { return slices.Clone(v.uses) }

// NumUses returns the number of times the value is used as an operand.
func (v *Value) NumUses() int { return len(v.uses) }

// HasOneUse returns whether the value is used exactly once.
func (v *Value) HasOneUse() bool { return len(v.uses) == 1 }

// Users returns the ops using the value, one entry per use.
func (v *Value) Users() []*Op {
	users := make([]*Op, 0, len(v.uses))
	for _, use := range v.uses {
		users = append(users, use.owner)
	}
	return users
}

func (v *Value) addUse(use *Operand) {
	v.uses = append(v.uses, use)
}

func (v *Value) removeUse(use *Operand) {
	if idx := slices.Index(v.uses, use); idx >= 0 {
		v.uses = slices.Delete(v.uses, idx, idx+1)
	}
}

// Operand is one use of a Value by an Op.
type Operand struct {
	owner  *Op
	number int
	value  *Value
}

// Owner returns the op using the value.
func (o *Operand) Owner() *Op { return o.owner }

// Number returns the position of the operand in its owner.
func (o *Operand) Number() int { return o.number }

// Get returns the value used.
func (o *Operand) Get() *Value { return o.value }
