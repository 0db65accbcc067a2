// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package amx

import (
	"math/rand/v2"
	"testing"

	"github.com/Artlesbol/triton-cpu/ir"
	"github.com/Artlesbol/triton-cpu/ir/interpreter"
	"github.com/Artlesbol/triton-cpu/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackedLayoutShape(t *testing.T) {
	packed, err := packedLayoutShape(shapes.Make(dtypes.Int8, 64, 16))
	require.NoError(t, err)
	assert.Equal(t, shapes.Make(dtypes.Int8, 16, 64), packed)

	packed, err = packedLayoutShape(shapes.Make(dtypes.BFloat16, 32, 16))
	require.NoError(t, err)
	assert.Equal(t, shapes.Make(dtypes.BFloat16, 16, 32), packed)

	packed, err = packedLayoutShape(shapes.Make(dtypes.Float16, 2, 8, 4))
	require.NoError(t, err)
	assert.Equal(t, shapes.Make(dtypes.Float16, 2, 4, 8), packed)

	_, err = packedLayoutShape(shapes.Make(dtypes.Int8, 10, 16))
	require.Error(t, err)
	_, err = packedLayoutShape(shapes.Make(dtypes.Float32, 16, 16))
	require.Error(t, err)
	_, err = packedLayoutShape(shapes.Make(dtypes.Int8, 16))
	require.Error(t, err)
}

func TestInterleaveAndStore(t *testing.T) {
	for _, shape := range []shapes.Shape{
		shapes.Make(dtypes.Int8, 16, 8),
		shapes.Make(dtypes.BFloat16, 8, 16),
		shapes.Make(dtypes.Float16, 32, 16),
	} {
		t.Run(shape.String(), func(t *testing.T) {
			packedShape, err := packedLayoutShape(shape)
			require.NoError(t, err)
			m := ir.NewModule()
			fn, b := m.AddFunction("f", ir.VectorType(shape))
			zero := b.ConstIndex(0)
			buf := MemBuffer{MemRef: b.Alloca(packedShape), Indices: []*ir.Value{zero, zero}}
			interleaveAndStore(b, fn.Param(0), buf)
			packed := b.Read(ir.VectorType(packedShape), buf.MemRef, zero, zero)
			b.Return(b.VNNIDecode(packed), packed)
			require.NoError(t, ir.Verify(m))

			input := randomBuffer(rand.New(rand.NewPCG(1, 2)), shape)
			outputs := run(t, m, []*interpreter.Buffer{input})
			assert.Equal(t, input.Flat(), outputs[0].Flat())

			// packed[k/g][n*g + k%g] == input[k][n]
			group := ir.VNNIGroupSize(shape.DType)
			inputValues, packedValues := input.Floats(), outputs[1].Floats()
			rows, cols := shape.Dim(0), shape.Dim(1)
			for k := range rows {
				for n := range cols {
					require.Equal(t, inputValues[k*cols+n], packedValues[(k/group)*cols*group+n*group+k%group])
				}
			}
		})
	}
}

func TestCopyWithInterleave(t *testing.T) {
	// Copies the second 16x8 matrix of the memref.
	srcShape := shapes.Make(dtypes.Int8, 2, 16, 8)
	shape := shapes.Make(dtypes.Int8, 16, 8)
	packedShape, err := packedLayoutShape(shape)
	require.NoError(t, err)

	m := ir.NewModule()
	fn, b := m.AddFunction("f", ir.MemRefType(srcShape))
	zero := b.ConstIndex(0)
	src := MemBuffer{
		MemRef:  fn.Param(0),
		Indices: []*ir.Value{b.ConstIndex(1), zero, zero},
		Step:    []int{0, 16, 0},
	}
	dst := MemBuffer{MemRef: b.Alloca(packedShape), Indices: []*ir.Value{zero, zero}}
	copyWithInterleave(b, shape, src, dst)
	packed := b.Read(ir.VectorType(packedShape), dst.MemRef, zero, zero)
	b.Return(b.VNNIDecode(packed))
	require.NoError(t, ir.Verify(m))
	assert.Equal(t, 4, countOps(m, ir.OpTypePrefetch))
	assert.Equal(t, 1, countOps(m, ir.OpTypeFor))

	input := randomBuffer(rand.New(rand.NewPCG(3, 4)), srcShape)
	outputs := run(t, m, []*interpreter.Buffer{input})
	assert.Equal(t, input.Flat().([]int8)[16*8:], outputs[0].Flat())
}

func TestDecideStaging(t *testing.T) {
	t.Run("reads", func(t *testing.T) {
		_, dot := buildDotModule(shapes.Make(dtypes.BFloat16, 16, 32), shapes.Make(dtypes.BFloat16, 32, 16),
			shapes.Make(dtypes.Float32, 16, 16), true, plainWrite)
		at := dot.Op
		decision := decideStaging(dot.A(), false, false, true, at)
		assert.Equal(t, stagingReused, decision.kind)
		assert.Equal(t, dot.A().DefiningOp().Operand(0), decision.source.MemRef)
		assert.Nil(t, decision.source.Step)

		assert.Equal(t, stagingRepacked, decideStaging(dot.B(), true, false, true, at).kind)
		// Writable staging never aliases the source memory.
		assert.Equal(t, stagingAllocated, decideStaging(dot.A(), false, false, false, at).kind)
		assert.Equal(t, stagingSkipped, decideStaging(dot.C(), false, true, false, at).kind)
		assert.Equal(t, stagingAllocated, decideStaging(dot.C(), false, false, false, at).kind)
	})

	t.Run("vnni", func(t *testing.T) {
		m := ir.NewModule()
		fn, b := m.AddFunction("f", memref(dtypes.Int8, 16, 16), memref(dtypes.Int8, 4, 64))
		zero := b.ConstIndex(0)
		a := b.Read(vector(dtypes.Int8, 16, 16), fn.Param(0), zero, zero)
		b.Write(a, fn.Param(0), zero, zero)
		packed := b.Read(vector(dtypes.Int8, 4, 64), fn.Param(1), zero, zero)
		decoded := b.VNNIDecode(packed)
		computed := b.VNNIDecode(b.Add(packed, packed))
		d := b.Dot(a, decoded, b.Constant(vector(dtypes.Int32, 16, 16), 0))
		b.Dot(a, computed, d)
		b.Return()
		require.NoError(t, ir.Verify(m))
		at := fn.Body().Terminator()

		// a is read before a write to memory.
		assert.Equal(t, stagingAllocated, decideStaging(a, false, false, true, at).kind)

		decision := decideStaging(decoded, true, false, true, at)
		assert.Equal(t, stagingReused, decision.kind)
		assert.True(t, decision.source.VNNI)
		assert.Equal(t, fn.Param(1), decision.source.MemRef)

		// Packed reads are only reused when the packed layout is needed.
		assert.Equal(t, stagingAllocated, decideStaging(decoded, false, false, true, at).kind)

		decision = decideStaging(computed, true, false, true, at)
		assert.Equal(t, stagingAllocated, decision.kind)
		assert.Equal(t, computed.DefiningOp().Operand(0), decision.packed)
	})

	t.Run("scratch writes", func(t *testing.T) {
		m := ir.NewModule()
		fn, b := m.AddFunction("f", memref(dtypes.Int8, 16, 16), memref(dtypes.Int8, 16, 16))
		zero := b.ConstIndex(0)
		a := b.Read(vector(dtypes.Int8, 16, 16), fn.Param(0), zero, zero)
		scratch := b.Alloca(shapes.Make(dtypes.Int8, 16, 16))
		b.Write(a, scratch, zero, zero)
		at := b.Write(a, fn.Param(1), zero, zero)
		b.Return()
		require.NoError(t, ir.Verify(m))

		// Scratch buffers don't alias the function arguments.
		assert.Equal(t, stagingReused, decideStaging(a, false, false, true, at).kind)
		// But two arguments may be the same memory.
		assert.Equal(t, stagingAllocated, decideStaging(a, false, false, true, fn.Body().Terminator()).kind)
	})
}

func TestStagingKindString(t *testing.T) {
	assert.Equal(t, "reused", stagingReused.String())
	assert.Equal(t, "skipped", stagingSkipped.String())
	assert.True(t, stagingRepacked.IsAstagingKind())
	assert.False(t, stagingKind(7).IsAstagingKind())
}

func TestLoopStep(t *testing.T) {
	m := ir.NewModule()
	fn, b := m.AddFunction("f", memref(dtypes.BFloat16, 128, 32), ir.IndexType())
	zero := b.ConstIndex(0)
	offset := b.ConstIndex(3)
	outside := b.Read(vector(dtypes.BFloat16, 16, 32), fn.Param(0), zero, zero)
	var reads []*ir.Value
	b.For(zero, b.ConstIndex(8), b.ConstIndex(2), nil,
		func(b *ir.Builder, iv *ir.Value, _ []*ir.Value) []*ir.Value {
			row := b.MulI(iv, b.ConstIndex(8))
			readType := vector(dtypes.BFloat16, 16, 32)
			reads = append(reads,
				b.Read(readType, fn.Param(0), row, zero),
				b.Read(readType, fn.Param(0), b.AddI(b.AddI(row, iv), offset), fn.Param(1)),
				b.Read(readType, fn.Param(0), b.MulI(iv, iv), zero),
				b.Read(readType, fn.Param(0), offset, zero),
			)
			return nil
		})
	b.Return()
	require.NoError(t, ir.Verify(m))

	steps := make([][]int, len(reads))
	for i, read := range reads {
		transfer, ok := ir.AsTransfer(read.DefiningOp())
		require.True(t, ok)
		steps[i] = loopStep(transfer)
	}
	assert.Equal(t, []int{16, 0}, steps[0])
	assert.Equal(t, []int{18, 0}, steps[1])
	assert.Nil(t, steps[2])
	assert.Nil(t, steps[3])

	transfer, _ := ir.AsTransfer(outside.DefiningOp())
	assert.Nil(t, loopStep(transfer))
}

func TestIsZeroConst(t *testing.T) {
	m := ir.NewModule()
	_, b := m.AddFunction("f")
	vec := vector(dtypes.Int16, 2, 2)
	assert.True(t, isZeroConst(b.Constant(vec, 0)))
	assert.True(t, isZeroConst(b.Constant(vec, 0, 0, 0, 0)))
	assert.True(t, isZeroConst(b.Cast(b.Constant(vec, 0), dtypes.Int32)))
	assert.False(t, isZeroConst(b.Constant(vec, 0, 1, 0, 0)))
	assert.False(t, isZeroConst(b.Add(b.Constant(vec, 0), b.Constant(vec, 0))))
}
