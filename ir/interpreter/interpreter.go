// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package interpreter executes functions of the ir package on the host, one op at a time.
//
// It is a reference implementation, used to check that transformations of the IR preserve its
// semantics: it favors simplicity over speed.
//
// Runtime values are:
//
//   - int for values of type index.
//   - *Buffer for scalars, vectors, tiles and memrefs. Memrefs are shared by reference (writes
//     are visible to the caller), all other values are never modified once created.
package interpreter

import (
	"github.com/Artlesbol/triton-cpu/ir"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// executor computes the results of op, given the runtime values of its operands.
// Errors are raised with exceptions.Panicf.
type executor func(fr *frame, op *ir.Op, inputs []any) []any

// executors should be populated during initialization (`init` functions) for the ops implemented.
var executors [ir.OpTypeLast]executor

// frame holds the runtime values of one function activation.
type frame struct {
	values map[*ir.Value]any

	// numOps executed, for logging.
	numOps int
}

// Run executes the function fn with the given arguments, and returns the values it returns.
//
// Arguments must be an int for index parameters, or a *Buffer matching the parameter type.
func Run(fn ir.FuncOp, args ...any) (results []any, err error) {
	body := fn.Body()
	if len(args) != body.NumArgs() {
		return nil, errors.Errorf("function %q takes %d arguments, %d given", fn.Name(), body.NumArgs(), len(args))
	}
	fr := &frame{values: make(map[*ir.Value]any)}
	for i, arg := range args {
		param := body.Arg(i)
		if err := checkValue(param.Type(), arg); err != nil {
			return nil, errors.WithMessagef(err, "argument #%d of %q", i, fn.Name())
		}
		fr.values[param] = arg
	}
	err = exceptions.TryCatch[error](func() {
		results = fr.execBlock(body)
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "while executing %q", fn.Name())
	}
	klog.V(2).Infof("interpreter: executed %q, %d ops", fn.Name(), fr.numOps)
	return results, nil
}

// checkValue returns an error if the runtime value doesn't match the type.
func checkValue(t ir.Type, value any) error {
	if t.IsIndex() {
		if _, ok := value.(int); !ok {
			return errors.Errorf("expected an int for an index, got %T", value)
		}
		return nil
	}
	buf, ok := value.(*Buffer)
	if !ok || buf == nil {
		return errors.Errorf("expected a *Buffer for %s, got %T", t, value)
	}
	if !buf.shape.Equal(t.Shape) {
		return errors.Errorf("expected a buffer shaped %s for %s, got %s", t.Shape, t, buf.shape)
	}
	return nil
}

// execBlock executes the ops of the block, and returns the operands of its terminator.
func (fr *frame) execBlock(block *ir.Block) []any {
	for _, op := range block.Ops() {
		inputs := make([]any, op.NumOperands())
		for i, operand := range op.Operands() {
			value, found := fr.values[operand]
			if !found {
				exceptions.Panicf("%s: operand #%d has no value", op.Type(), i)
			}
			inputs[i] = value
		}
		if op.Type().IsTerminator() {
			return inputs
		}
		exec := executors[op.Type()]
		if exec == nil {
			exceptions.Panicf("interpreter: op %s not implemented", op.Type())
		}
		outputs := exec(fr, op, inputs)
		fr.numOps++
		if len(outputs) != op.NumResults() {
			exceptions.Panicf("%s: executor returned %d values, expected %d", op.Type(), len(outputs), op.NumResults())
		}
		for i, output := range outputs {
			fr.values[op.Result(i)] = output
		}
	}
	exceptions.Panicf("block without terminator")
	return nil
}

func init() {
	executors[ir.OpTypeFor] = execFor
}

// execFor executes the loop body while the induction variable is below the upper bound.
func execFor(fr *frame, op *ir.Op, inputs []any) []any {
	forOp, _ := ir.AsFor(op)
	lower, upper, step := inputs[0].(int), inputs[1].(int), inputs[2].(int)
	if step <= 0 {
		exceptions.Panicf("For: step must be positive, got %d", step)
	}
	iterValues := inputs[3:]
	body := forOp.Body()
	for iv := lower; iv < upper; iv += step {
		fr.values[forOp.InductionVar()] = iv
		for i, arg := range forOp.RegionIterArgs() {
			fr.values[arg] = iterValues[i]
		}
		iterValues = fr.execBlock(body)
	}
	return iterValues
}
