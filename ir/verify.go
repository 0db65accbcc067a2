// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"slices"

	"github.com/pkg/errors"
)

// Verify checks the structural consistency of the module:
//
//   - Uses of every value match the operands referring to it.
//   - Every operand is defined before it is used: earlier in the same block, or in an enclosing block.
//   - Loops and functions are properly terminated, and loop-carried types are consistent.
//
// It returns the first problem found.
func Verify(m *Module) error {
	var err error
	m.Walk(func(op *Op) {
		if err == nil {
			err = verifyOp(op)
		}
	})
	return err
}

func verifyOp(op *Op) error {
	for i, operand := range op.operands {
		v := operand.value
		if operand.owner != op || operand.number != i {
			return errors.Errorf("%s: operand #%d is inconsistent", op.opType, i)
		}
		if !slices.Contains(v.uses, operand) {
			return errors.Errorf("%s: operand #%d is not registered as a use of its value", op.opType, i)
		}
		if err := verifyDominance(op, v); err != nil {
			return errors.WithMessagef(err, "%s: operand #%d", op.opType, i)
		}
	}
	for i, result := range op.results {
		for _, use := range result.uses {
			if use.owner.block == nil {
				return errors.Errorf("%s: result #%d is used by detached op %s", op.opType, i, use.owner.opType)
			}
			if use.value != result {
				return errors.Errorf("%s: result #%d has a stale use by %s", op.opType, i, use.owner.opType)
			}
		}
	}
	switch op.opType {
	case OpTypeFunc:
		fn := FuncOp{op}
		if term := fn.Body().Terminator(); term == nil || term.opType != OpTypeReturn {
			return errors.Errorf("function %q is not terminated by a Return", fn.Name())
		}
	case OpTypeFor:
		return verifyFor(ForOp{op})
	case OpTypeYield, OpTypeReturn:
		if op.block.Terminator() != op {
			return errors.Errorf("%s is not the last op of its block", op.opType)
		}
	}
	return nil
}

func verifyFor(forOp ForOp) error {
	if len(forOp.regions) != 1 {
		return errors.Errorf("loop must have exactly one body")
	}
	body := forOp.Body()
	if body.NumArgs() != forOp.NumIterArgs()+1 {
		return errors.Errorf("loop body has %d arguments for %d loop-carried values", body.NumArgs(), forOp.NumIterArgs())
	}
	term := body.Terminator()
	if term == nil || term.opType != OpTypeYield {
		return errors.Errorf("loop body is not terminated by a Yield")
	}
	if term.NumOperands() != forOp.NumIterArgs() || forOp.NumResults() != forOp.NumIterArgs() {
		return errors.Errorf("loop carries %d values, but yields %d and has %d results",
			forOp.NumIterArgs(), term.NumOperands(), forOp.NumResults())
	}
	inits := forOp.InitArgs()
	for i, iterArg := range forOp.RegionIterArgs() {
		t := iterArg.typ
		if !inits[i].typ.Equal(t) || !term.Operand(i).typ.Equal(t) || !forOp.Result(i).typ.Equal(t) {
			return errors.Errorf("loop-carried value #%d has inconsistent types: init %s, iter arg %s, yield %s, result %s",
				i, inits[i].typ, t, term.Operand(i).typ, forOp.Result(i).typ)
		}
	}
	return nil
}

// verifyDominance checks that v is available where op is.
func verifyDominance(op *Op, v *Value) error {
	defBlock := v.ParentBlock()
	if defBlock == nil {
		return errors.Errorf("uses a value defined by a detached op")
	}
	// Find the ancestor of op (possibly op itself) that lives in defBlock.
	ancestor := op
	for ancestor != nil && ancestor.block != defBlock {
		ancestor = ancestor.ParentOp()
	}
	if ancestor == nil {
		return errors.Errorf("uses a value %s defined in a block that doesn't enclose it", v.typ)
	}
	if v.IsBlockArgument() {
		return nil
	}
	if v.op == ancestor || !v.op.IsBeforeInBlock(ancestor) {
		return errors.Errorf("uses value %s before it is defined", v.typ)
	}
	return nil
}
