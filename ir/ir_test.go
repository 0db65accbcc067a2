// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"testing"

	"github.com/Artlesbol/triton-cpu/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildLoopModule builds a function that accumulates a·b over 4 iterations and writes the result to out.
func buildLoopModule(t *testing.T) (*Module, ForOp, DotOp) {
	m := NewModule()
	mat := shapes.Make(dtypes.Float32, 16, 16)
	fn, b := m.AddFunction("loop", MemRefType(mat), MemRefType(mat), MemRefType(mat))
	zero := b.ConstIndex(0)
	a := b.Read(VectorType(mat), fn.Param(0), zero, zero)
	bb := b.Read(VectorType(mat), fn.Param(1), zero, zero)
	acc0 := b.Constant(VectorType(mat), 0)
	var dot *Value
	loop := b.For(zero, b.ConstIndex(4), b.ConstIndex(1), []*Value{acc0},
		func(b *Builder, iv *Value, iterArgs []*Value) []*Value {
			dot = b.Dot(a, bb, iterArgs[0])
			return []*Value{dot}
		})
	b.Write(loop.Result(0), fn.Param(2), zero, zero)
	b.Return()
	require.NoError(t, Verify(m))
	forOp, ok := AsFor(loop)
	require.True(t, ok)
	dotOp, ok := AsDot(dot.DefiningOp())
	require.True(t, ok)
	return m, forOp, dotOp
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "TileMulI", OpTypeTileMulI.String())
	assert.Equal(t, "VNNIDecode", OpTypeVNNIDecode.String())
	assert.Equal(t, "OpType(99)", OpType(99).String())
	opType, err := OpTypeString("tilestore")
	require.NoError(t, err)
	assert.Equal(t, OpTypeTileStore, opType)
	_, err = OpTypeString("Matmul")
	require.Error(t, err)

	assert.Equal(t, "memref", KindMemRef.String())
	assert.Equal(t, "vector<16x64xInt8>", VectorType(shapes.Make(dtypes.Int8, 16, 64)).String())
}

func TestBuilder(t *testing.T) {
	m, forOp, dotOp := buildLoopModule(t)
	assert.Equal(t, 1, forOp.NumIterArgs())
	assert.Equal(t, forOp.Op, dotOp.ParentOp())
	assert.Equal(t, 0, forOp.IterArgIndex(dotOp.C()))
	assert.Equal(t, forOp.Result(0), forOp.TiedLoopResult(dotOp.C()))
	assert.Equal(t, OpTypeConstant, forOp.TiedInitArg(dotOp.C()).DefiningOp().Type())
	assert.True(t, dotOp.Result().HasOneUse())
	assert.Equal(t, OpTypeYield, dotOp.Result().Users()[0].Type())

	fn, topLevel, found := EnclosingFunc(dotOp.Op)
	require.True(t, found)
	assert.Equal(t, "loop", fn.Name())
	assert.Equal(t, forOp.Op, topLevel)

	text := m.String()
	assert.Contains(t, text, "func loop(")
	assert.Contains(t, text, "Dot(")
	assert.Contains(t, text, "vector<16x16xFloat32>")
	assert.Len(t, OpsOfType(m.Op(), OpTypeRead), 2)
}

func TestBuilderPanics(t *testing.T) {
	m := NewModule()
	_, b := m.AddFunction("f", MemRefType(shapes.Make(dtypes.Int8, 32, 32)))
	require.Panics(t, func() { TileType(shapes.Make(dtypes.Int8, 17, 64)) })
	require.Panics(t, func() { TileType(shapes.Make(dtypes.Int8, 16, 65)) })
	require.Panics(t, func() { TileType(shapes.Make(dtypes.Float32, 16, 17)) })
	require.NotPanics(t, func() { TileType(shapes.Make(dtypes.BFloat16, 16, 32)) })

	lhs := b.Constant(VectorType(shapes.Make(dtypes.Int8, 8, 8)), 1)
	rhs := b.Constant(VectorType(shapes.Make(dtypes.Int8, 4, 8)), 1)
	acc := b.Constant(VectorType(shapes.Make(dtypes.Int32, 8, 8)), 0)
	require.Panics(t, func() { b.Dot(lhs, rhs, acc) })
	require.Panics(t, func() { b.AddI(lhs, rhs) })
	require.Panics(t, func() { b.Extract(lhs, 8) })
}

func TestInsertionPoints(t *testing.T) {
	m := NewModule()
	_, b := m.AddFunction("f")
	c1 := b.ConstIndex(1)
	c3 := b.ConstIndex(3)
	b.SetInsertionPointAfter(c1.DefiningOp())
	c2 := b.ConstIndex(2)
	b.SetInsertionPointToStart(c1.ParentBlock())
	c0 := b.ConstIndex(0)
	b.SetInsertionPointToEnd(c1.ParentBlock())
	b.Return()

	var got []float64
	for _, op := range c1.ParentBlock().Ops() {
		if values, ok := ConstantValues(op); ok {
			got = append(got, values[0])
		}
	}
	assert.Equal(t, []float64{0, 1, 2, 3}, got)
	assert.True(t, c0.DefiningOp().IsBeforeInBlock(c2.DefiningOp()))
	assert.False(t, c3.DefiningOp().IsBeforeInBlock(c2.DefiningOp()))
	require.NoError(t, Verify(m))
}

func TestVerifyDominance(t *testing.T) {
	m := NewModule()
	_, b := m.AddFunction("f")
	c1 := b.ConstIndex(1)
	b.Return()
	b.SetInsertionPoint(c1.DefiningOp())
	b.AddI(c1, c1)
	err := Verify(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "before it is defined")
}

func TestRewriterRollback(t *testing.T) {
	m, forOp, dotOp := buildLoopModule(t)
	before := m.String()

	r := NewRewriter(forOp.Op)
	tile := r.TileZero(TileType(shapes.Make(dtypes.Float32, 16, 16)))
	newFor := r.ReplaceForWithAdditionalYields(forOp, []*Value{tile}, true,
		func(newArgs []*Value) []*Value { return newArgs })
	r.ReplaceOp(dotOp.Op, dotOp.C())
	require.NoError(t, Verify(m))
	assert.NotEqual(t, before, m.String())
	assert.Equal(t, 2, newFor.NumIterArgs())
	assert.Nil(t, forOp.Block())
	assert.Greater(t, r.NumChanges(), 0)

	r.Rollback()
	assert.Equal(t, 0, r.NumChanges())
	assert.Equal(t, before, m.String())
	require.NoError(t, Verify(m))
	assert.Equal(t, forOp.Op, dotOp.ParentOp())
	assert.True(t, dotOp.Result().HasOneUse())
}

func TestReplaceForWithAdditionalYields(t *testing.T) {
	m, forOp, dotOp := buildLoopModule(t)
	r := NewRewriter(forOp.Op)
	tileType := TileType(shapes.Make(dtypes.Float32, 16, 16))
	init := r.TileZero(tileType)

	// A use of init inside the body is replaced by the new loop-carried value.
	r.SetInsertionPoint(dotOp.Op)
	lhs := r.TileZero(TileType(shapes.Make(dtypes.BFloat16, 16, 32)))
	rhs := r.TileZero(TileType(shapes.Make(dtypes.BFloat16, 16, 32)))
	updated := r.TileMulF(lhs, rhs, init)

	newFor := r.ReplaceForWithAdditionalYields(forOp, []*Value{init}, true,
		func(newArgs []*Value) []*Value {
			require.Len(t, newArgs, 1)
			return []*Value{updated}
		})
	r.Commit()
	require.NoError(t, Verify(m))

	assert.Equal(t, 2, newFor.NumResults())
	assert.Equal(t, newFor.RegionIterArgs()[1], updated.DefiningOp().Operand(2))
	assert.Equal(t, []*Value{dotOp.Result(), updated}, newFor.Yield().Operands())
	assert.Len(t, OpsOfType(m.Op(), OpTypeFor), 1)
	assert.Equal(t, 1, newFor.Result(0).NumUses())
	assert.Equal(t, 0, newFor.Result(1).NumUses())
	assert.Equal(t, newFor.Op, dotOp.ParentOp())
}

func TestRemoveDeadOps(t *testing.T) {
	m := NewModule()
	fn, b := m.AddFunction("f", MemRefType(shapes.Make(dtypes.Int32, 8)))
	zero := b.ConstIndex(0)
	one := b.ConstIndex(1)
	b.AddI(b.MulI(zero, one), one) // Dead chain.
	vec := b.Constant(VectorType(shapes.Make(dtypes.Int32, 8)), 7)
	b.Write(vec, fn.Param(0), zero)
	b.For(zero, one, one, nil, func(b *Builder, iv *Value, _ []*Value) []*Value {
		b.AddI(iv, iv)
		return nil
	})
	b.Return()
	require.NoError(t, Verify(m))

	// MulI, AddI, the For loop, the AddI in its body and the constant one.
	assert.Equal(t, 5, RemoveDeadOps(fn.Op))
	require.NoError(t, Verify(m))
	assert.Len(t, OpsOfType(fn.Op, OpTypeWrite), 1)
	assert.Len(t, OpsOfType(fn.Op, OpTypeFor), 0)
	assert.Equal(t, 0, RemoveDeadOps(fn.Op))
}

func TestRemoveDeadOpsKeep(t *testing.T) {
	m := NewModule()
	shape := shapes.Make(dtypes.Float32, 16, 16)
	fn, b := m.AddFunction("f", MemRefType(shape))
	zero := b.ConstIndex(0)
	x := b.Read(VectorType(shape), fn.Param(0), zero, zero)
	dot := b.Dot(x, x, x).DefiningOp()
	b.AddI(zero, zero)
	b.Return()

	dead := DeadOps(fn.Op)
	require.Len(t, dead, 2)
	assert.Equal(t, dot, dead[0])

	// The kept dot keeps its operands alive.
	assert.Equal(t, 1, RemoveDeadOps(fn.Op, dot))
	assert.Len(t, OpsOfType(fn.Op, OpTypeDot), 1)
	assert.Len(t, OpsOfType(fn.Op, OpTypeRead), 1)
	assert.Len(t, OpsOfType(fn.Op, OpTypeAddI), 0)
}
