// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package amx

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/Artlesbol/triton-cpu/ir"
	"github.com/Artlesbol/triton-cpu/ir/interpreter"
	"github.com/Artlesbol/triton-cpu/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
	"k8s.io/klog/v2"
)

func init() {
	klog.InitFlags(nil)
}

// randomBuffer returns a buffer filled with random values: the full range for int8, small values
// for other integers and values in [-1, 1) for floats.
func randomBuffer(rng *rand.Rand, shape shapes.Shape) *interpreter.Buffer {
	size, dims := shape.Size(), shape.Dimensions
	switch shape.DType {
	case dtypes.Int8:
		flat := make([]int8, size)
		for i := range flat {
			flat[i] = int8(rng.IntN(256) - 128)
		}
		return interpreter.FromFlat(flat, dims...)
	case dtypes.Int16:
		flat := make([]int16, size)
		for i := range flat {
			flat[i] = int16(rng.IntN(2001) - 1000)
		}
		return interpreter.FromFlat(flat, dims...)
	case dtypes.Int32:
		flat := make([]int32, size)
		for i := range flat {
			flat[i] = int32(rng.IntN(200001) - 100000)
		}
		return interpreter.FromFlat(flat, dims...)
	case dtypes.BFloat16:
		flat := make([]bfloat16.BFloat16, size)
		for i := range flat {
			flat[i] = bfloat16.FromFloat32(rng.Float32()*2 - 1)
		}
		return interpreter.FromFlat(flat, dims...)
	case dtypes.Float16:
		flat := make([]float16.Float16, size)
		for i := range flat {
			flat[i] = float16.Fromfloat32(rng.Float32()*2 - 1)
		}
		return interpreter.FromFlat(flat, dims...)
	case dtypes.Float32:
		flat := make([]float32, size)
		for i := range flat {
			flat[i] = rng.Float32()*2 - 1
		}
		return interpreter.FromFlat(flat, dims...)
	}
	panic(fmt.Sprintf("randomBuffer: dtype %s not supported", shape.DType))
}

// run executes the function "f" of the module with copies of args, and returns its results followed
// by the final contents of the memref arguments.
func run(t *testing.T, m *ir.Module, args []*interpreter.Buffer) []*interpreter.Buffer {
	fn, found := m.Function("f")
	require.True(t, found)
	anyArgs := make([]any, len(args))
	copies := make([]*interpreter.Buffer, len(args))
	for i, arg := range args {
		copies[i] = arg.Clone()
		anyArgs[i] = copies[i]
	}
	results, err := interpreter.Run(fn, anyArgs...)
	require.NoError(t, err)
	var outputs []*interpreter.Buffer
	for _, result := range results {
		outputs = append(outputs, result.(*interpreter.Buffer))
	}
	return append(outputs, copies...)
}

// checkLowering builds two copies of a module with a function "f", lowers one with pass, runs both with
// the same random arguments and checks their outputs match: exactly for integers, within delta for floats.
//
// It returns the lowered module and the pass stats.
func checkLowering(t *testing.T, build func() *ir.Module, pass *Pass, delta float64) (*ir.Module, Stats) {
	want := build()
	got := build()
	require.NoError(t, ir.Verify(got))
	stats, err := pass.Run(got)
	require.NoError(t, err)
	require.NoError(t, ir.Verify(got), "lowered module:\n%s", got)

	fn, found := got.Function("f")
	require.True(t, found)
	rng := rand.New(rand.NewPCG(42, uint64(fn.Body().NumArgs())))
	args := make([]*interpreter.Buffer, fn.Body().NumArgs())
	for i := range args {
		args[i] = randomBuffer(rng, fn.Param(i).Type().Shape)
	}
	wantOutputs := run(t, want, args)
	gotOutputs := run(t, got, args)
	require.Len(t, gotOutputs, len(wantOutputs))
	for i, wantOutput := range wantOutputs {
		gotOutput := gotOutputs[i]
		require.True(t, wantOutput.Shape().Equal(gotOutput.Shape()))
		if ir.IsFloatDType(wantOutput.Shape().DType) {
			assert.InDeltaSlicef(t, wantOutput.Floats(), gotOutput.Floats(), delta, "output #%d", i)
		} else {
			assert.Equalf(t, wantOutput.Flat(), gotOutput.Flat(), "output #%d", i)
		}
	}
	return got, stats
}

// countOps returns the number of ops of the given type in the module.
func countOps(m *ir.Module, opType ir.OpType) int {
	return len(ir.OpsOfType(m.Op(), opType))
}

func memref(dtype dtypes.DType, dims ...int) ir.Type {
	return ir.MemRefType(shapes.Make(dtype, dims...))
}

func vector(dtype dtypes.DType, dims ...int) ir.Type {
	return ir.VectorType(shapes.Make(dtype, dims...))
}
