// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package amx

import (
	"fmt"
	"strings"

	"github.com/Artlesbol/triton-cpu/capabilities"
	"github.com/Artlesbol/triton-cpu/ir"
	"github.com/Artlesbol/triton-cpu/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	// MaxAccTiles is the number of accumulator tiles processed in one block: the hardware
	// has 8 tile registers, the other ones hold the lhs and rhs tiles.
	MaxAccTiles = 4

	// minDim is the smallest size of the lhs dimensions and of the result columns worth lowering to tiles.
	minDim = 8
)

// Candidate is a dot op that can be lowered to tile operations, along with the parameters of the lowering.
//
// It is created by Evaluate, and it's only valid until the IR around the dot op is changed.
type Candidate struct {
	Op ir.DotOp

	// Element types of the lhs, rhs and accumulator tiles. Inputs of other types are cast.
	LhsTileDType, RhsTileDType, AccTileDType dtypes.DType

	// TileM, TileN and TileK are the tile sizes: lhs tiles are TileM x TileK, rhs tiles are TileK x TileN
	// (before packing) and accumulator tiles are TileM x TileN.
	TileM, TileN, TileK int

	// TilesInBlockM and TilesInBlockN are the number of accumulator tiles (along each axis) kept
	// in tile registers at the same time.
	TilesInBlockM, TilesInBlockN int

	// KeepAccOnTiles is set if the accumulator is carried by the enclosing loop, and all of it fits
	// in tile registers: the loop is changed to carry the tiles instead.
	KeepAccOnTiles bool

	// KeepAccInBuf is set if the accumulator is carried by the enclosing loop, but doesn't fit in
	// tile registers: it's kept in a scratch buffer through the loop.
	KeepAccInBuf bool

	// OutBuf is where the result is stored, if its only use is an unmasked Write (OrigStore).
	// For KeepAccOnTiles the Write is of the loop result. The tiles are stored there directly,
	// and OrigStore is removed.
	OutBuf    MemBuffer
	OrigStore *ir.Op
}

// String implements fmt.Stringer, for debug traces.
func (c Candidate) String() string {
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "dot %s x %s + %s: ", c.Op.A().Type(), c.Op.B().Type(), c.Op.C().Type())
	_, _ = fmt.Fprintf(&sb, "tiles %s x %s -> %s, ", c.LhsTileDType, c.RhsTileDType, c.AccTileDType)
	_, _ = fmt.Fprintf(&sb, "tileM=%d tileN=%d tileK=%d, ", c.TileM, c.TileN, c.TileK)
	_, _ = fmt.Fprintf(&sb, "block %dx%d tiles", c.TilesInBlockM, c.TilesInBlockN)
	if c.KeepAccOnTiles {
		sb.WriteString(", acc on tiles")
	}
	if c.KeepAccInBuf {
		sb.WriteString(", acc in buffer")
	}
	if !c.OutBuf.Empty() {
		sb.WriteString(", fused store")
	}
	return sb.String()
}

// Evaluate checks whether op is a dot that can be lowered to tile operations supported by the
// hardware capabilities caps, and if so returns the Candidate describing how.
func Evaluate(op *ir.Op, caps capabilities.Capabilities) (Candidate, bool) {
	dot, ok := ir.AsDot(op)
	if !ok {
		return Candidate{}, false
	}
	lhsType, rhsType, accType := dot.A().Type(), dot.B().Type(), dot.C().Type()
	resType := dot.Result().Type()
	klog.V(2).Infof("amx: considering dot %s x %s + %s -> %s", lhsType, rhsType, accType, resType)

	lhsTileDType, rhsTileDType, accTileDType, err := checkElemTypes(
		lhsType.DType(), rhsType.DType(), accType.DType(), resType.DType(), caps)
	if err != nil {
		klog.V(2).Infof("amx: drop candidate: %v", err)
		return Candidate{}, false
	}
	if err := checkInputShapes(lhsType.Shape, resType.Shape); err != nil {
		klog.V(2).Infof("amx: drop candidate: %v", err)
		return Candidate{}, false
	}

	c := Candidate{
		Op:           dot,
		LhsTileDType: lhsTileDType,
		RhsTileDType: rhsTileDType,
		AccTileDType: accTileDType,
	}
	c.TileM, c.TileN, c.TileK, c.TilesInBlockM, c.TilesInBlockN = setupBlockAndTileSizes(
		lhsType.Shape, resType.Shape, lhsTileDType)

	forOp, loopCarried := isLoopCarriedAcc(dot.C())
	c.KeepAccOnTiles = loopCarried
	if loopCarried && (c.TileM*c.TilesInBlockM < resType.Dim(0) || c.TileN*c.TilesInBlockN < resType.Dim(1)) {
		// Only part of the accumulator fits in tile registers.
		c.KeepAccOnTiles = false
		c.KeepAccInBuf = true
	}
	switch {
	case c.KeepAccOnTiles:
		c.OutBuf, c.OrigStore = findOutputBuffer(forOp.TiedLoopResult(dot.C()), accTileDType)
	case !c.KeepAccInBuf:
		c.OutBuf, c.OrigStore = findOutputBuffer(dot.Result(), accTileDType)
	}
	klog.V(2).Infof("amx: candidate %s", c)
	return c, true
}

// checkElemTypes checks the element types of the dot are supported by the tile unit, and returns the
// element types to use for the lhs, rhs and accumulator tiles.
//
// Integer dots must be int8 x int8, accumulated in integers of up to 32 bits: they are computed
// with int32 tiles. Float dots take inputs of up to 16 bits, accumulated in floats of up to 32 bits:
// they are computed with float32 accumulator tiles. Inputs narrower than 16 bits are promoted to
// bfloat16 (or float16, if bfloat16 is not supported).
func checkElemTypes(lhs, rhs, acc, res dtypes.DType, caps capabilities.Capabilities) (
	lhsTile, rhsTile, accTile dtypes.DType, err error) {
	invalid := dtypes.InvalidDType
	if ir.IsIntDType(lhs) {
		if !caps.Int8 {
			return invalid, invalid, invalid, errors.Errorf("integer dot (%s) requires int8 support", lhs)
		}
		if lhs != dtypes.Int8 || rhs != dtypes.Int8 {
			return invalid, invalid, invalid, errors.Errorf("unsupported integer inputs %s x %s, only int8 is supported", lhs, rhs)
		}
		for _, dtype := range []dtypes.DType{acc, res} {
			if !ir.IsIntDType(dtype) || ir.BitWidth(dtype) > 32 {
				return invalid, invalid, invalid, errors.Errorf("unsupported integer accumulator %s, must be an integer of at most 32 bits", dtype)
			}
		}
		return dtypes.Int8, dtypes.Int8, dtypes.Int32, nil
	}

	for _, dtype := range []dtypes.DType{lhs, rhs, acc, res} {
		if !ir.IsFloatDType(dtype) {
			return invalid, invalid, invalid, errors.Errorf("mixed or unsupported element types %s x %s + %s -> %s", lhs, rhs, acc, res)
		}
	}
	lhsBits, rhsBits := ir.BitWidth(lhs), ir.BitWidth(rhs)
	if lhsBits > 16 || rhsBits > 16 {
		return invalid, invalid, invalid, errors.Errorf("unsupported float inputs %s x %s, must be at most 16 bits", lhs, rhs)
	}
	var common dtypes.DType
	switch {
	case lhsBits == 16 && rhsBits == 16:
		if lhs != rhs {
			return invalid, invalid, invalid, errors.Errorf("float inputs %s x %s of different types", lhs, rhs)
		}
		common = lhs
	case lhsBits == 16:
		common = lhs
	case rhsBits == 16:
		common = rhs
	case caps.BF16:
		common = dtypes.BFloat16
	default:
		common = dtypes.Float16
	}
	if (common == dtypes.BFloat16 && !caps.BF16) || (common == dtypes.Float16 && !caps.FP16) {
		return invalid, invalid, invalid, errors.Errorf("%s dot not supported by the hardware (%s)", common, caps)
	}
	if ir.BitWidth(acc) > 32 {
		return invalid, invalid, invalid, errors.Errorf("unsupported float accumulator %s, must be at most 32 bits", acc)
	}
	return common, common, dtypes.Float32, nil
}

// checkInputShapes checks the dot is 2D, and large enough to be worth using tiles.
func checkInputShapes(lhs, res shapes.Shape) error {
	if err := lhs.CheckDims(shapes.UncheckedAxis, shapes.UncheckedAxis); err != nil {
		return errors.WithMessage(err, "only 2D dots are supported")
	}
	if lhs.Dim(0) < minDim || lhs.Dim(1) < minDim || res.Dim(1) < minDim {
		return errors.Errorf("dot too small (lhs %s, result %s), dimensions must be at least %d", lhs, res, minDim)
	}
	return nil
}

// setupBlockAndTileSizes returns the largest tiles that fit in the hardware registers, and the number
// of accumulator tiles per block: it starts from a block covering the whole accumulator, and halves
// its largest dimension until it has at most MaxAccTiles tiles.
func setupBlockAndTileSizes(lhs, res shapes.Shape, lhsTileDType dtypes.DType) (
	tileM, tileN, tileK, tilesInBlockM, tilesInBlockN int) {
	tileM = min(res.Dim(0), ir.MaxTileRows)
	tileN = min(res.Dim(1), ir.MaxTileRows)
	tileK = min(lhs.Dim(1), ir.MaxTileRowBytes*8/ir.BitWidth(lhsTileDType))

	tilesInBlockM = res.Dim(0) / tileM
	tilesInBlockN = res.Dim(1) / tileN
	for tilesInBlockM*tilesInBlockN > MaxAccTiles {
		if tilesInBlockM > tilesInBlockN {
			tilesInBlockM /= 2
		} else {
			tilesInBlockN /= 2
		}
	}
	return
}

// findOutputBuffer returns where val is stored, if its only use is a Write that can be replaced
// by tile stores of accTileDType, and the Write itself.
func findOutputBuffer(val *ir.Value, accTileDType dtypes.DType) (MemBuffer, *ir.Op) {
	if !val.HasOneUse() {
		return MemBuffer{}, nil
	}
	use := val.Uses()[0]
	store, ok := ir.AsTransfer(use.Owner())
	if !ok || store.Type() != ir.OpTypeWrite || use.Number() != 0 {
		return MemBuffer{}, nil
	}
	if hasMaskOrBoundsCheck(store) {
		klog.V(3).Infof("amx: store of the result is masked or bounds checked, not fused")
		return MemBuffer{}, nil
	}
	if store.MemRef().Type().DType() != accTileDType {
		klog.V(3).Infof("amx: result stored as %s, not fused", store.MemRef().Type())
		return MemBuffer{}, nil
	}
	return MemBuffer{MemRef: store.MemRef(), Indices: store.Indices()}, store.Op
}
