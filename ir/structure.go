// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"github.com/gomlx/exceptions"
)

// Module is the top-level container of functions.
type Module struct {
	op *Op
}

// NewModule creates an empty module.
func NewModule() *Module {
	op := &Op{opType: OpTypeModule}
	body := NewBlock()
	body.parent = op
	op.regions = []*Block{body}
	return &Module{op: op}
}

// Op returns the op representing the module.
func (m *Module) Op() *Op { return m.op }

// Body returns the block holding the functions.
func (m *Module) Body() *Block { return m.op.regions[0] }

// AddFunction appends a new function with the given name and parameter types, and returns it with a
// Builder positioned in its body. The body must be terminated with Builder.Return.
func (m *Module) AddFunction(name string, paramTypes ...Type) (FuncOp, *Builder) {
	b := NewBuilder(m.Body())
	op := b.newOp(OpTypeFunc, nil, nil, &funcData{name: name})
	body := NewBlock(paramTypes...)
	body.parent = op
	op.regions = []*Block{body}
	return FuncOp{op}, NewBuilder(body)
}

// Functions returns the functions of the module, in order.
func (m *Module) Functions() []FuncOp {
	var funcs []FuncOp
	for _, op := range m.Body().ops {
		if fn, ok := AsFunc(op); ok {
			funcs = append(funcs, fn)
		}
	}
	return funcs
}

// Function returns the function with the given name.
func (m *Module) Function(name string) (FuncOp, bool) {
	for _, fn := range m.Functions() {
		if fn.Name() == name {
			return fn, true
		}
	}
	return FuncOp{}, false
}

// Walk visits all ops of the module (excluding the module op itself) in pre-order.
func (m *Module) Walk(fn func(op *Op)) {
	for _, op := range m.Body().Ops() {
		op.Walk(fn)
	}
}

// String returns the textual form of the module, see Print.
func (m *Module) String() string { return Print(m.op) }

// FuncOp is a view of an op of type OpTypeFunc.
type FuncOp struct {
	*Op
}

// AsFunc returns op as a FuncOp, if it is one.
func AsFunc(op *Op) (FuncOp, bool) {
	if op == nil || op.opType != OpTypeFunc {
		return FuncOp{}, false
	}
	return FuncOp{op}, true
}

// Name of the function.
func (f FuncOp) Name() string { return f.data.(*funcData).name }

// Body of the function: its arguments are the function parameters.
func (f FuncOp) Body() *Block { return f.regions[0] }

// Param returns the i-th parameter.
func (f FuncOp) Param(i int) *Value { return f.Body().args[i] }

// EnclosingFunc returns the function containing op, and the ancestor of op (possibly op itself)
// that sits directly in the function body.
func EnclosingFunc(op *Op) (fn FuncOp, topLevel *Op, found bool) {
	for topLevel = op; topLevel != nil; topLevel = topLevel.ParentOp() {
		if fn, ok := AsFunc(topLevel.ParentOp()); ok {
			return fn, topLevel, true
		}
	}
	return FuncOp{}, nil, false
}

// ForOp is a view of an op of type OpTypeFor.
//
// Its operands are [lowerBound, upperBound, step, inits...], its body arguments are
// [inductionVar, iterArgs...] and its body is terminated by a Yield with one value per iterArg.
type ForOp struct {
	*Op
}

// AsFor returns op as a ForOp, if it is one.
func AsFor(op *Op) (ForOp, bool) {
	if op == nil || op.opType != OpTypeFor {
		return ForOp{}, false
	}
	return ForOp{op}, true
}

const forNumControlOperands = 3

func (f ForOp) LowerBound() *Value { return f.Operand(0) }
func (f ForOp) UpperBound() *Value { return f.Operand(1) }
func (f ForOp) Step() *Value       { return f.Operand(2) }

// NumIterArgs returns the number of loop-carried values.
func (f ForOp) NumIterArgs() int { return len(f.operands) - forNumControlOperands }

// InitArgs returns the initial values of the loop-carried values.
func (f ForOp) InitArgs() []*Value { return f.Operands()[forNumControlOperands:] }

// Body of the loop.
func (f ForOp) Body() *Block { return f.regions[0] }

// InductionVar returns the loop induction variable.
func (f ForOp) InductionVar() *Value { return f.Body().args[0] }

// RegionIterArgs returns the body arguments holding the loop-carried values.
func (f ForOp) RegionIterArgs() []*Value { return f.Body().Args()[1:] }

// Yield returns the terminator of the body.
func (f ForOp) Yield() *Op {
	yield := f.Body().Terminator()
	if yield == nil || yield.opType != OpTypeYield {
		exceptions.Panicf("For loop body is not terminated by a Yield")
	}
	return yield
}

// IterArgIndex returns the position of v among the loop-carried values, or -1 if v
// is not an iter arg of this loop.
func (f ForOp) IterArgIndex(v *Value) int {
	if !v.IsBlockArgument() || v.block != f.Body() || v.argIdx == 0 {
		return -1
	}
	return v.argIdx - 1
}

// TiedLoopResult returns the loop result corresponding to the given iter arg.
func (f ForOp) TiedLoopResult(iterArg *Value) *Value {
	idx := f.IterArgIndex(iterArg)
	if idx < 0 {
		exceptions.Panicf("value is not an iter arg of the loop")
	}
	return f.results[idx]
}

// TiedInitArg returns the initial value of the given iter arg.
func (f ForOp) TiedInitArg(iterArg *Value) *Value {
	idx := f.IterArgIndex(iterArg)
	if idx < 0 {
		exceptions.Panicf("value is not an iter arg of the loop")
	}
	return f.Operand(forNumControlOperands + idx)
}

// DotOp is a view of an op of type OpTypeDot, computing A·B + C.
type DotOp struct {
	*Op
}

// AsDot returns op as a DotOp, if it is one.
func AsDot(op *Op) (DotOp, bool) {
	if op == nil || op.opType != OpTypeDot {
		return DotOp{}, false
	}
	return DotOp{op}, true
}

// A returns the left operand, shaped [M, K].
func (d DotOp) A() *Value { return d.Operand(0) }

// B returns the right operand, shaped [K, N].
func (d DotOp) B() *Value { return d.Operand(1) }

// C returns the accumulator, shaped [M, N].
func (d DotOp) C() *Value { return d.Operand(2) }

// Result of the dot, with the same type as the accumulator.
func (d DotOp) Result() *Value { return d.results[0] }

// TransferOp is a view of the ops that access memory through a memref and indices:
// Read, Write, Prefetch, TileLoad and TileStore.
type TransferOp struct {
	*Op
}

// AsTransfer returns op as a TransferOp, if it is one.
func AsTransfer(op *Op) (TransferOp, bool) {
	if op == nil {
		return TransferOp{}, false
	}
	if _, ok := op.data.(*transferData); !ok {
		return TransferOp{}, false
	}
	return TransferOp{op}, true
}

// memRefPos is the position of the memref operand: for writes the first operand is the value stored.
func (t TransferOp) memRefPos() int {
	if t.opType == OpTypeWrite || t.opType == OpTypeTileStore {
		return 1
	}
	return 0
}

// MemRef returns the memory accessed.
func (t TransferOp) MemRef() *Value { return t.Operand(t.memRefPos()) }

// Indices returns the indices of the first element accessed, one per memref axis.
func (t TransferOp) Indices() []*Value {
	pos := t.memRefPos() + 1
	return t.Operands()[pos : pos+t.data.(*transferData).numIndices]
}

// StoredValue returns the value written, for Write and TileStore.
func (t TransferOp) StoredValue() *Value {
	if t.memRefPos() == 0 {
		exceptions.Panicf("%s doesn't store a value", t.opType)
	}
	return t.Operand(0)
}

// Mask returns the mask, or nil if the transfer is not masked.
func (t TransferOp) Mask() *Value {
	if !t.data.(*transferData).hasMask {
		return nil
	}
	return t.operands[len(t.operands)-1].value
}

// InBounds returns whether the transfer is known to be within the memref bounds.
func (t TransferOp) InBounds() bool { return t.data.(*transferData).inBounds }

// ConstantValues returns the values of a Constant op: a single value for splats.
func ConstantValues(op *Op) ([]float64, bool) {
	if op == nil || op.opType != OpTypeConstant {
		return nil, false
	}
	return op.data.(*constantData).values, true
}

// ExtractRow returns the row extracted by an Extract op.
func ExtractRow(op *Op) int {
	return op.data.(*extractData).row
}
