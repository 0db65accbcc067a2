// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"github.com/gomlx/gopjrt/dtypes"
)

// BitWidth returns the number of bits of the element type, or 0 if it is not known.
//
// It also covers the 8-bit float types, which have no Go equivalent.
func BitWidth(dtype dtypes.DType) int {
	switch dtype {
	case dtypes.Bool, dtypes.Int8, dtypes.Uint8, dtypes.F8E5M2, dtypes.F8E4M3FN:
		return 8
	case dtypes.Int16, dtypes.Uint16, dtypes.Float16, dtypes.BFloat16:
		return 16
	case dtypes.Int32, dtypes.Uint32, dtypes.Float32:
		return 32
	case dtypes.Int64, dtypes.Uint64, dtypes.Float64, dtypes.Complex64:
		return 64
	case dtypes.Complex128:
		return 128
	}
	return 0
}

// IsIntDType returns whether dtype is a signed or unsigned integer.
func IsIntDType(dtype dtypes.DType) bool {
	switch dtype {
	case dtypes.Int8, dtypes.Int16, dtypes.Int32, dtypes.Int64,
		dtypes.Uint8, dtypes.Uint16, dtypes.Uint32, dtypes.Uint64:
		return true
	}
	return false
}

// IsFloatDType returns whether dtype is a real floating point type, including the 8-bit ones.
func IsFloatDType(dtype dtypes.DType) bool {
	switch dtype {
	case dtypes.F8E5M2, dtypes.F8E4M3FN, dtypes.Float16, dtypes.BFloat16, dtypes.Float32, dtypes.Float64:
		return true
	}
	return false
}
