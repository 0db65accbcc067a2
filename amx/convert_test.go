// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package amx

import (
	"fmt"
	"testing"

	"github.com/Artlesbol/triton-cpu/ir"
	"github.com/Artlesbol/triton-cpu/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildLoopCarriedModule builds a function f(a, b, c) with a loop accumulating a·b on the loop-carried
// value, initialized to zero or to the contents of c. The final value is stored back to c, or returned.
func buildLoopCarriedModule(lhsShape, rhsShape shapes.Shape, accDType dtypes.DType, iterations int,
	zeroInit, store bool) (*ir.Module, ir.DotOp) {
	accShape := shapes.Make(accDType, lhsShape.Dim(0), rhsShape.Dim(1))
	m := ir.NewModule()
	fn, b := m.AddFunction("f", ir.MemRefType(lhsShape), ir.MemRefType(rhsShape), ir.MemRefType(accShape))
	zero := b.ConstIndex(0)
	var init *ir.Value
	if zeroInit {
		init = b.Constant(ir.VectorType(accShape), 0)
	} else {
		init = b.Read(ir.VectorType(accShape), fn.Param(2), zero, zero)
	}
	var dot ir.DotOp
	loop := b.For(zero, b.ConstIndex(iterations), b.ConstIndex(1), []*ir.Value{init},
		func(b *ir.Builder, _ *ir.Value, iterArgs []*ir.Value) []*ir.Value {
			lhs := b.Read(ir.VectorType(lhsShape), fn.Param(0), zero, zero)
			rhs := b.Read(ir.VectorType(rhsShape), fn.Param(1), zero, zero)
			d := b.Dot(lhs, rhs, iterArgs[0])
			dot, _ = ir.AsDot(d.DefiningOp())
			return []*ir.Value{d}
		})
	if store {
		b.Write(loop.Result(0), fn.Param(2), zero, zero)
		b.Return()
	} else {
		b.Return(loop.Result(0))
	}
	return m, dot
}

// buildReturnedDotModule builds a function f(a, b, c) returning a·b + c.
func buildReturnedDotModule(lhs, rhs, acc shapes.Shape) *ir.Module {
	m := ir.NewModule()
	fn, b := m.AddFunction("f", ir.MemRefType(lhs), ir.MemRefType(rhs), ir.MemRefType(acc))
	zero := b.ConstIndex(0)
	d := b.Dot(
		b.Read(ir.VectorType(lhs), fn.Param(0), zero, zero),
		b.Read(ir.VectorType(rhs), fn.Param(1), zero, zero),
		b.Read(ir.VectorType(acc), fn.Param(2), zero, zero))
	b.Return(d)
	return m
}

// countTyped returns the number of ops of opType whose first result (or stored value, for writes) has the dtype.
func countTyped(m *ir.Module, opType ir.OpType, dtype dtypes.DType) int {
	var count int
	for _, op := range ir.OpsOfType(m.Op(), opType) {
		var v *ir.Value
		if op.NumResults() > 0 {
			v = op.Result(0)
		} else {
			v = op.Operand(0)
		}
		if v.Type().DType() == dtype {
			count++
		}
	}
	return count
}

// loopCarryingValues returns the only For op of the module with results.
func loopCarryingValues(t *testing.T, m *ir.Module) ir.ForOp {
	var loops []ir.ForOp
	for _, op := range ir.OpsOfType(m.Op(), ir.OpTypeFor) {
		if op.NumResults() > 0 {
			forOp, _ := ir.AsFor(op)
			loops = append(loops, forOp)
		}
	}
	require.Len(t, loops, 1)
	return loops[0]
}

func TestConvertInt8(t *testing.T) {
	pass := NewWithCapabilities(true, false, false)
	for _, k := range []int{16, 64} {
		for _, zeroAcc := range []bool{true, false} {
			t.Run(fmt.Sprintf("k=%d/zeroAcc=%v", k, zeroAcc), func(t *testing.T) {
				m, stats := checkLowering(t, func() *ir.Module {
					m, _ := buildDotModule(shapes.Make(dtypes.Int8, 16, k), shapes.Make(dtypes.Int8, k, 16),
						shapes.Make(dtypes.Int32, 16, 16), zeroAcc, plainWrite)
					return m
				}, pass, 0)
				assert.Equal(t, 1, stats.Converted)
				assert.Equal(t, 1, stats.FusedStores)
				assert.Positive(t, stats.DeadOpsRemoved)
				assert.Zero(t, countOps(m, ir.OpTypeDot))
				assert.Equal(t, 1, countOps(m, ir.OpTypeTileMulI))
				assert.Equal(t, 1, countOps(m, ir.OpTypeTileStore))
				if zeroAcc {
					// Nothing is staged, and the result is stored directly to the output buffer.
					assert.Equal(t, 1, countOps(m, ir.OpTypeTileZero))
					assert.Zero(t, countTyped(m, ir.OpTypeAlloca, dtypes.Int32))
					assert.Zero(t, countTyped(m, ir.OpTypeWrite, dtypes.Int32))
				} else {
					// Only the accumulator is copied to a scratch buffer.
					assert.Zero(t, countOps(m, ir.OpTypeTileZero))
					assert.Equal(t, 1, countTyped(m, ir.OpTypeWrite, dtypes.Int32))
				}
			})
		}
	}
}

func TestConvertMaskedStore(t *testing.T) {
	m, stats := checkLowering(t, func() *ir.Module {
		m, _ := buildDotModule(shapes.Make(dtypes.Int8, 16, 64), shapes.Make(dtypes.Int8, 64, 16),
			shapes.Make(dtypes.Int32, 16, 16), true, maskedWrite)
		return m
	}, NewWithCapabilities(true, false, false), 0)
	assert.Equal(t, 1, stats.Converted)
	assert.Zero(t, stats.FusedStores)

	// The masked store is kept, and the result goes through a scratch buffer.
	assert.Equal(t, 1, countTyped(m, ir.OpTypeAlloca, dtypes.Int32))
	var masked int
	for _, op := range ir.OpsOfType(m.Op(), ir.OpTypeWrite) {
		if transfer, _ := ir.AsTransfer(op); transfer.Mask() != nil {
			masked++
		}
	}
	assert.Equal(t, 1, masked)
}

func TestConvertFloat(t *testing.T) {
	testCases := []struct {
		name     string
		build    func() *ir.Module
		pass     *Pass
		delta    float64
		tileMuls int
		fused    bool
	}{
		{
			name: "bf16 returned",
			build: func() *ir.Module {
				return buildReturnedDotModule(shapes.Make(dtypes.BFloat16, 32, 64), shapes.Make(dtypes.BFloat16, 64, 32),
					shapes.Make(dtypes.Float32, 32, 32))
			},
			pass:     NewWithCapabilities(false, false, true),
			delta:    1e-4,
			tileMuls: 8,
		},
		{
			name: "f16 tall blocks",
			build: func() *ir.Module {
				return buildReturnedDotModule(shapes.Make(dtypes.Float16, 128, 32), shapes.Make(dtypes.Float16, 32, 16),
					shapes.Make(dtypes.Float32, 128, 16))
			},
			pass:     NewWithCapabilities(false, true, false),
			delta:    1e-4,
			tileMuls: 8,
		},
		{
			name: "bf16 stored",
			build: func() *ir.Module {
				m, _ := buildDotModule(shapes.Make(dtypes.BFloat16, 64, 32), shapes.Make(dtypes.BFloat16, 32, 64),
					shapes.Make(dtypes.Float32, 64, 64), false, plainWrite)
				return m
			},
			pass:     NewWithCapabilities(false, false, true),
			delta:    1e-4,
			tileMuls: 16,
			fused:    true,
		},
		{
			name: "bf16 accumulator",
			build: func() *ir.Module {
				return buildReturnedDotModule(shapes.Make(dtypes.BFloat16, 32, 32), shapes.Make(dtypes.BFloat16, 32, 32),
					shapes.Make(dtypes.BFloat16, 32, 32))
			},
			pass:     NewWithCapabilities(false, false, true),
			delta:    0.07,
			tileMuls: 4,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, stats := checkLowering(t, tc.build, tc.pass, tc.delta)
			assert.Equal(t, 1, stats.Converted)
			assert.Equal(t, tc.fused, stats.FusedStores == 1)
			assert.Equal(t, tc.tileMuls, countOps(m, ir.OpTypeTileMulF))
			assert.Zero(t, countOps(m, ir.OpTypeDot))
		})
	}
}

func TestConvertNarrowIntAccumulator(t *testing.T) {
	m, stats := checkLowering(t, func() *ir.Module {
		m, _ := buildDotModule(shapes.Make(dtypes.Int8, 16, 64), shapes.Make(dtypes.Int8, 64, 16),
			shapes.Make(dtypes.Int16, 16, 16), false, plainWrite)
		return m
	}, NewWithCapabilities(true, false, false), 0)
	assert.Equal(t, 1, stats.Converted)
	// int16 memory can't hold the int32 tiles.
	assert.Zero(t, stats.FusedStores)
	assert.Equal(t, 2, countOps(m, ir.OpTypeCast))
}

func TestConvertLoopCarried(t *testing.T) {
	testCases := []struct {
		name            string
		lhs, rhs        shapes.Shape
		accDType        dtypes.DType
		zeroInit, store bool
		tiles           int
		casts           int
	}{
		{"f16 zero init stored", shapes.Make(dtypes.Float16, 16, 32), shapes.Make(dtypes.Float16, 32, 16),
			dtypes.Float32, true, true, 1, 0},
		{"bf16 returned", shapes.Make(dtypes.BFloat16, 32, 32), shapes.Make(dtypes.BFloat16, 32, 32),
			dtypes.Float32, false, false, 4, 0},
		{"bf16 stored", shapes.Make(dtypes.BFloat16, 16, 64), shapes.Make(dtypes.BFloat16, 64, 32),
			dtypes.Float32, false, true, 2, 0},
		// int16 memory can't hold the int32 tiles: the initial value is widened before the loop, and the
		// result narrowed back after it.
		{"int16 accumulator stored", shapes.Make(dtypes.Int8, 16, 64), shapes.Make(dtypes.Int8, 64, 16),
			dtypes.Int16, false, true, 1, 2},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, stats := checkLowering(t, func() *ir.Module {
				m, _ := buildLoopCarriedModule(tc.lhs, tc.rhs, tc.accDType, 10, tc.zeroInit, tc.store)
				return m
			}, NewWithCapabilities(true, true, true), 1e-3)
			assert.Equal(t, 1, stats.Converted)
			assert.Equal(t, 1, stats.AccOnTiles)
			if tc.store && tc.casts == 0 {
				assert.Equal(t, 1, stats.FusedStores)
			} else {
				assert.Zero(t, stats.FusedStores)
			}

			// The loop carries the accumulator tiles, and they are only stored after the loop.
			forOp := loopCarryingValues(t, m)
			assert.Equal(t, 1+tc.tiles, forOp.NumResults())
			assert.Zero(t, forOp.Result(0).NumUses())
			assert.Equal(t, tc.tiles, countOps(m, ir.OpTypeTileStore))
			for _, op := range ir.OpsOfType(m.Op(), ir.OpTypeTileStore) {
				assert.False(t, forOp.IsProperAncestor(op))
			}
			casts := ir.OpsOfType(m.Op(), ir.OpTypeCast)
			assert.Len(t, casts, tc.casts)
			for _, op := range casts {
				assert.False(t, forOp.IsProperAncestor(op))
			}
		})
	}
}

func TestConvertAccumulatorInBuffer(t *testing.T) {
	for _, zeroInit := range []bool{false, true} {
		t.Run(fmt.Sprintf("zeroInit=%v", zeroInit), func(t *testing.T) {
			m, stats := checkLowering(t, func() *ir.Module {
				m, _ := buildLoopCarriedModule(shapes.Make(dtypes.Int8, 64, 64), shapes.Make(dtypes.Int8, 64, 32),
					dtypes.Int32, 3, zeroInit, true)
				return m
			}, NewWithCapabilities(true, false, false), 0)
			assert.Equal(t, 1, stats.Converted)
			assert.Equal(t, 1, stats.AccInBuf)
			assert.Zero(t, stats.FusedStores)

			// 2 blocks of 2x2 tiles are loaded and stored back on each iteration.
			forOp := loopCarryingValues(t, m)
			assert.Equal(t, 1, forOp.NumResults())
			assert.Equal(t, 8, countOps(m, ir.OpTypeTileStore))
			for _, op := range ir.OpsOfType(m.Op(), ir.OpTypeTileStore) {
				assert.True(t, forOp.IsProperAncestor(op))
			}

			// The buffer is reloaded on every iteration, so a zero initial value is written to it
			// once, before the loop.
			var zeroWrites int
			for _, op := range ir.OpsOfType(m.Op(), ir.OpTypeWrite) {
				if isZeroConst(op.Operand(0)) {
					zeroWrites++
					assert.False(t, forOp.IsProperAncestor(op))
				}
			}
			if zeroInit {
				assert.Equal(t, 1, zeroWrites)
				assert.Zero(t, countOps(m, ir.OpTypeTileZero))
			} else {
				assert.Zero(t, zeroWrites)
			}
		})
	}
}

func TestCountTyped(t *testing.T) {
	m := ir.NewModule()
	shape := shapes.Make(dtypes.Int32, 16, 16)
	fn, b := m.AddFunction("f", ir.MemRefType(shape))
	zero := b.ConstIndex(0)
	scratch := b.Alloca(shape)
	b.Write(b.Read(ir.VectorType(shape), fn.Param(0), zero, zero), scratch, zero, zero)
	b.Return()

	// Alloca has no operands, Write has no results.
	assert.Equal(t, 1, countTyped(m, ir.OpTypeAlloca, dtypes.Int32))
	assert.Zero(t, countTyped(m, ir.OpTypeAlloca, dtypes.Float32))
	assert.Equal(t, 1, countTyped(m, ir.OpTypeWrite, dtypes.Int32))
}

func TestConvertPackedInput(t *testing.T) {
	m, stats := checkLowering(t, func() *ir.Module {
		m := ir.NewModule()
		fn, b := m.AddFunction("f", memref(dtypes.BFloat16, 16, 32), memref(dtypes.BFloat16, 16, 32),
			memref(dtypes.Float32, 16, 16))
		zero := b.ConstIndex(0)
		lhs := b.Read(vector(dtypes.BFloat16, 16, 32), fn.Param(0), zero, zero)
		rhs := b.VNNIDecode(b.Read(vector(dtypes.BFloat16, 16, 32), fn.Param(1), zero, zero))
		d := b.Dot(lhs, rhs, b.Constant(vector(dtypes.Float32, 16, 16), 0))
		b.Write(d, fn.Param(2), zero, zero)
		b.Return()
		return m
	}, NewWithCapabilities(false, false, true), 1e-4)
	assert.Equal(t, 1, stats.Converted)
	assert.Equal(t, 1, stats.FusedStores)

	// All tiles are loaded directly from the arguments.
	assert.Zero(t, countOps(m, ir.OpTypeAlloca))
	assert.Zero(t, countOps(m, ir.OpTypeInterleave))
	assert.Zero(t, countOps(m, ir.OpTypeVNNIDecode))
}

func TestConvertRepackInLoop(t *testing.T) {
	m, stats := checkLowering(t, func() *ir.Module {
		m := ir.NewModule()
		fn, b := m.AddFunction("f", memref(dtypes.BFloat16, 64, 32), memref(dtypes.BFloat16, 128, 16),
			memref(dtypes.Float32, 64, 16))
		zero := b.ConstIndex(0)
		b.For(zero, b.ConstIndex(4), b.ConstIndex(1), nil,
			func(b *ir.Builder, iv *ir.Value, _ []*ir.Value) []*ir.Value {
				row := b.MulI(iv, b.ConstIndex(16))
				lhs := b.Read(vector(dtypes.BFloat16, 16, 32), fn.Param(0), row, zero)
				rhs := b.Read(vector(dtypes.BFloat16, 32, 16), fn.Param(1), b.MulI(iv, b.ConstIndex(32)), zero)
				d := b.Dot(lhs, rhs, b.Constant(vector(dtypes.Float32, 16, 16), 0))
				b.Write(d, fn.Param(2), row, zero)
				return nil
			})
		b.Return()
		return m
	}, NewWithCapabilities(false, false, true), 1e-4)
	assert.Equal(t, 1, stats.Converted)
	assert.Equal(t, 1, stats.FusedStores)
	assert.Zero(t, stats.AccOnTiles+stats.AccInBuf)

	// The rhs is repacked in a scratch buffer, prefetching the rows of the next iteration.
	assert.Equal(t, 1, countTyped(m, ir.OpTypeAlloca, dtypes.BFloat16))
	assert.Positive(t, countOps(m, ir.OpTypePrefetch))
	assert.Equal(t, 1, countOps(m, ir.OpTypeTileStore))
}

func TestConvertSharedOperands(t *testing.T) {
	lhs, rhs := shapes.Make(dtypes.BFloat16, 16, 32), shapes.Make(dtypes.BFloat16, 32, 16)
	acc := shapes.Make(dtypes.Float32, 16, 16)
	m, stats := checkLowering(t, func() *ir.Module {
		m := ir.NewModule()
		fn, b := m.AddFunction("f", ir.MemRefType(lhs), ir.MemRefType(rhs), ir.MemRefType(acc))
		zero := b.ConstIndex(0)
		a := b.Read(ir.VectorType(lhs), fn.Param(0), zero, zero)
		bv := b.Read(ir.VectorType(rhs), fn.Param(1), zero, zero)
		d := b.Dot(a, bv, b.Constant(ir.VectorType(acc), 0))
		b.Return(b.Dot(a, bv, d))
		return m
	}, NewWithCapabilities(false, false, true), 1e-3)
	assert.Equal(t, 2, stats.Converted)

	// The writes of the first conversion go to scratch buffers: the second one still loads its lhs tiles
	// from the argument, and only repacks its rhs.
	assert.Equal(t, 2, countTyped(m, ir.OpTypeAlloca, dtypes.BFloat16))
	fn, _ := m.Function("f")
	var lhsLoads int
	for _, op := range ir.OpsOfType(m.Op(), ir.OpTypeTileLoad) {
		transfer, _ := ir.AsTransfer(op)
		if transfer.MemRef() == fn.Param(0) {
			lhsLoads++
		}
	}
	assert.Equal(t, 2, lhsLoads)
}

func TestConvertRollback(t *testing.T) {
	// K=96 can't be split in tiles of 64 int8 values.
	build := func() *ir.Module {
		m, _ := buildDotModule(shapes.Make(dtypes.Int8, 16, 96), shapes.Make(dtypes.Int8, 96, 16),
			shapes.Make(dtypes.Int32, 16, 16), true, plainWrite)
		return m
	}
	m, stats := checkLowering(t, build, NewWithCapabilities(true, false, false), 0)
	assert.Equal(t, Stats{Dots: 1, Candidates: 1, Failed: 1}, stats)
	assert.Equal(t, build().String(), m.String())
	require.NoError(t, ir.Verify(m))
}
