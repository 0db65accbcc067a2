// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/Artlesbol/triton-cpu/ir"
	"github.com/Artlesbol/triton-cpu/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
)

// kernel is a sample function "f" exercising one of the lowerings.
type kernel struct {
	name, description string
	build             func() *ir.Module
}

var kernels = []kernel{
	{"int8_gemm", "int8 64x64x64 GEMM, result stored to memory", buildInt8GEMM},
	{"bf16_kloop", "bf16 32x32 accumulator carried by a loop over K blocks", buildBF16KLoop},
	{"f16_tall", "f16 128x32x16 GEMM, result returned", buildF16Tall},
	{"int8_kloop_wide", "int8 64x32 accumulator carried by a loop, larger than the tile registers", buildInt8WideKLoop},
	{"bf16_masked", "bf16 GEMM with a masked store of the result", buildBF16Masked},
	{"f32_gemm", "f32 GEMM, not supported by the tile unit", buildF32GEMM},
}

func findKernel(name string) (kernel, bool) {
	for _, k := range kernels {
		if k.name == name {
			return k, true
		}
	}
	return kernel{}, false
}

func memref(dtype dtypes.DType, dims ...int) ir.Type {
	return ir.MemRefType(shapes.Make(dtype, dims...))
}

func vector(dtype dtypes.DType, dims ...int) ir.Type {
	return ir.VectorType(shapes.Make(dtype, dims...))
}

// buildGEMM builds f(a, b, c) with c = a·b + c, and calls store with the result.
func buildGEMM(dtype, accDType dtypes.DType, m, n, k int, store func(b *ir.Builder, fn ir.FuncOp, result, zero *ir.Value)) *ir.Module {
	module := ir.NewModule()
	fn, b := module.AddFunction("f", memref(dtype, m, k), memref(dtype, k, n), memref(accDType, m, n))
	zero := b.ConstIndex(0)
	lhs := b.Read(vector(dtype, m, k), fn.Param(0), zero, zero)
	rhs := b.Read(vector(dtype, k, n), fn.Param(1), zero, zero)
	acc := b.Read(vector(accDType, m, n), fn.Param(2), zero, zero)
	store(b, fn, b.Dot(lhs, rhs, acc), zero)
	return module
}

func storeResult(b *ir.Builder, fn ir.FuncOp, result, zero *ir.Value) {
	b.Write(result, fn.Param(2), zero, zero)
	b.Return()
}

func returnResult(b *ir.Builder, _ ir.FuncOp, result, _ *ir.Value) {
	b.Return(result)
}

func buildInt8GEMM() *ir.Module {
	return buildGEMM(dtypes.Int8, dtypes.Int32, 64, 64, 64, storeResult)
}

func buildF16Tall() *ir.Module {
	return buildGEMM(dtypes.Float16, dtypes.Float32, 128, 16, 32, returnResult)
}

func buildF32GEMM() *ir.Module {
	return buildGEMM(dtypes.Float32, dtypes.Float32, 32, 32, 32, storeResult)
}

func buildBF16Masked() *ir.Module {
	return buildGEMM(dtypes.BFloat16, dtypes.Float32, 32, 32, 32, func(b *ir.Builder, fn ir.FuncOp, result, zero *ir.Value) {
		mask := b.Constant(vector(dtypes.Bool, 32, 32), 1)
		b.WriteMasked(result, fn.Param(2), []*ir.Value{zero, zero}, mask)
		b.Return()
	})
}

// buildKLoop builds f(a, b, c), where a is [m, k*steps] and b is [k*steps, n], computing c = a·b + c
// with a loop over blocks of k.
func buildKLoop(dtype, accDType dtypes.DType, m, n, k, steps int) *ir.Module {
	module := ir.NewModule()
	fn, b := module.AddFunction("f", memref(dtype, m, k*steps), memref(dtype, k*steps, n), memref(accDType, m, n))
	zero := b.ConstIndex(0)
	init := b.Read(vector(accDType, m, n), fn.Param(2), zero, zero)
	loop := b.For(zero, b.ConstIndex(k*steps), b.ConstIndex(k), []*ir.Value{init},
		func(b *ir.Builder, iv *ir.Value, iterArgs []*ir.Value) []*ir.Value {
			lhs := b.Read(vector(dtype, m, k), fn.Param(0), zero, iv)
			rhs := b.Read(vector(dtype, k, n), fn.Param(1), iv, zero)
			return []*ir.Value{b.Dot(lhs, rhs, iterArgs[0])}
		})
	b.Write(loop.Result(0), fn.Param(2), zero, zero)
	b.Return()
	return module
}

func buildBF16KLoop() *ir.Module {
	return buildKLoop(dtypes.BFloat16, dtypes.Float32, 32, 32, 32, 4)
}

func buildInt8WideKLoop() *ir.Module {
	return buildKLoop(dtypes.Int8, dtypes.Int32, 64, 32, 64, 3)
}
