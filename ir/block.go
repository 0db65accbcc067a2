// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"slices"

	"github.com/gomlx/exceptions"
)

// Block is an ordered list of ops, with arguments. Blocks are the regions of ops like For or Func.
type Block struct {
	args   []*Value
	ops    []*Op
	parent *Op
}

// NewBlock creates a detached block with arguments of the given types.
func NewBlock(argTypes ...Type) *Block {
	b := &Block{}
	for _, t := range argTypes {
		b.addArgument(t)
	}
	return b
}

func (b *Block) addArgument(t Type) *Value {
	arg := &Value{typ: t, block: b, argIdx: len(b.args)}
	b.args = append(b.args, arg)
	return arg
}

func (b *Block) popArgument() {
	b.args = b.args[:len(b.args)-1]
}

// Args returns the block arguments.
func (b *Block) Args() []*Value { return slices.Clone(b.args) }

// Arg returns the i-th block argument.
func (b *Block) Arg(i int) *Value { return b.args[i] }

// NumArgs returns the number of block arguments.
func (b *Block) NumArgs() int { return len(b.args) }

// Ops returns a copy of the list of ops in the block.
func (b *Block) Ops() []*Op { return slices.Clone(b.ops) }

// NumOps returns the number of ops in the block.
func (b *Block) NumOps() int { return len(b.ops) }

// ParentOp returns the op owning this block as a region, or nil if detached.
func (b *Block) ParentOp() *Op { return b.parent }

// Terminator returns the last op of the block if it is a terminator, or nil.
func (b *Block) Terminator() *Op {
	if len(b.ops) == 0 {
		return nil
	}
	last := b.ops[len(b.ops)-1]
	if !last.opType.IsTerminator() {
		return nil
	}
	return last
}

// indexOf returns the position of op in the block. It panics if the op is not there.
func (b *Block) indexOf(op *Op) int {
	idx := slices.Index(b.ops, op)
	if idx < 0 {
		exceptions.Panicf("op %s not found in its block", op.opType)
	}
	return idx
}

func (b *Block) insert(pos int, op *Op) {
	b.ops = slices.Insert(b.ops, pos, op)
	op.block = b
}

func (b *Block) remove(op *Op) (pos int) {
	pos = b.indexOf(op)
	b.ops = slices.Delete(b.ops, pos, pos+1)
	op.block = nil
	return pos
}
