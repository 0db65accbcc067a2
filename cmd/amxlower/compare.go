// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"math"
	"math/rand/v2"

	"github.com/Artlesbol/triton-cpu/ir"
	"github.com/Artlesbol/triton-cpu/ir/interpreter"
	"github.com/Artlesbol/triton-cpu/types/shapes"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/janpfeifer/must"
	"github.com/x448/float16"
)

// randomBuffer returns a buffer with random values: small integers, or floats in [-1, 1).
func randomBuffer(rng *rand.Rand, shape shapes.Shape) *interpreter.Buffer {
	dims := shape.Dimensions
	switch shape.DType {
	case dtypes.Int8:
		return interpreter.FromFlat(randomFlat(rng, shape, func(r *rand.Rand) int8 { return int8(r.IntN(256) - 128) }), dims...)
	case dtypes.Int32:
		return interpreter.FromFlat(randomFlat(rng, shape, func(r *rand.Rand) int32 { return int32(r.IntN(2001) - 1000) }), dims...)
	case dtypes.Float32:
		return interpreter.FromFlat(randomFlat(rng, shape, func(r *rand.Rand) float32 { return r.Float32()*2 - 1 }), dims...)
	case dtypes.Float16:
		return interpreter.FromFlat(randomFlat(rng, shape, func(r *rand.Rand) float16.Float16 {
			return float16.Fromfloat32(r.Float32()*2 - 1)
		}), dims...)
	case dtypes.BFloat16:
		return interpreter.FromFlat(randomFlat(rng, shape, func(r *rand.Rand) bfloat16.BFloat16 {
			return bfloat16.FromFloat32(r.Float32()*2 - 1)
		}), dims...)
	}
	exceptions.Panicf("randomBuffer: dtype %s not supported", shape.DType)
	return nil
}

func randomFlat[T dtypes.Supported](rng *rand.Rand, shape shapes.Shape, fn func(r *rand.Rand) T) []T {
	flat := make([]T, shape.Size())
	for i := range flat {
		flat[i] = fn(rng)
	}
	return flat
}

// runKernel runs the function "f" of the module with copies of args, and returns its results
// followed by the final contents of the arguments.
func runKernel(m *ir.Module, args []*interpreter.Buffer) []*interpreter.Buffer {
	fn, found := m.Function("f")
	if !found {
		exceptions.Panicf("kernel has no function \"f\"")
	}
	anyArgs := make([]any, len(args))
	copies := make([]*interpreter.Buffer, len(args))
	for i, arg := range args {
		copies[i] = arg.Clone()
		anyArgs[i] = copies[i]
	}
	var outputs []*interpreter.Buffer
	for _, result := range must.M1(interpreter.Run(fn, anyArgs...)) {
		outputs = append(outputs, result.(*interpreter.Buffer))
	}
	return append(outputs, copies...)
}

// compare runs both kernels with the same random arguments, and returns the maximum absolute difference
// of their outputs.
func compare(original, lowered *ir.Module, seed uint64) float64 {
	fn, _ := original.Function("f")
	rng := rand.New(rand.NewPCG(seed, 0))
	args := make([]*interpreter.Buffer, fn.Body().NumArgs())
	for i := range args {
		args[i] = randomBuffer(rng, fn.Param(i).Type().Shape)
	}
	want, got := runKernel(original, args), runKernel(lowered, args)
	if len(want) != len(got) {
		return math.Inf(1)
	}
	var maxDiff float64
	for i := range want {
		if !want[i].Shape().Equal(got[i].Shape()) {
			return math.Inf(1)
		}
		gotValues := got[i].Floats()
		for j, value := range want[i].Floats() {
			maxDiff = max(maxDiff, math.Abs(value-gotValues[j]))
		}
	}
	return maxDiff
}
