// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package amx

import (
	"github.com/Artlesbol/triton-cpu/ir"
	"github.com/Artlesbol/triton-cpu/types/shapes"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// convertCandidate replaces the dot op of the candidate by tile operations, using the rewriter r,
// whose insertion point must be right before the dot op.
//
// If it returns an error, some changes may have been done already: the caller is expected to roll back r.
// Violated invariants (the candidate doesn't match the IR) panic.
func convertCandidate(r *ir.Rewriter, c Candidate) error {
	b := &r.Builder
	dot := c.Op
	lhsType, accType := dot.A().Type(), dot.C().Type()

	rhsTileShape, err := packedLayoutShape(shapes.Make(c.RhsTileDType, c.TileK, c.TileN))
	if err != nil {
		return errors.WithMessage(err, "rhs tile")
	}
	lhsTileType := ir.TileType(shapes.Make(c.LhsTileDType, c.TileM, c.TileK))
	rhsTileType := ir.TileType(rhsTileShape)
	accTileType := ir.TileType(shapes.Make(c.AccTileDType, c.TileM, c.TileN))
	resShape := accType.Shape.WithDType(c.AccTileDType)

	// at is where the tiles are loaded: if the result is going to be stored directly to the output buffer,
	// the computation is moved to the store, where the output buffer indices are defined.
	at := dot.Op
	if !c.KeepAccOnTiles && !c.KeepAccInBuf && c.OrigStore != nil {
		at = c.OrigStore
		r.SetInsertionPoint(at)
	}
	_, allocaPoint, found := ir.EnclosingFunc(dot.Op)
	if !found {
		exceptions.Panicf("dot op is not in a function")
	}

	lhs := maybeCast(b, dot.A(), c.LhsTileDType)
	lhsBuf, err := prepareTensorBuffer(b, lhs, false, false, true, at, allocaPoint)
	if err != nil {
		return errors.WithMessage(err, "lhs")
	}
	rhs := maybeCast(b, dot.B(), c.RhsTileDType)
	rhsBuf, err := prepareTensorBuffer(b, rhs, true, false, true, at, allocaPoint)
	if err != nil {
		return errors.WithMessage(err, "rhs")
	}

	// The accumulator of loops is staged before the loop, from its initial value.
	var forOp ir.ForOp
	var accBuf MemBuffer
	if c.KeepAccOnTiles || c.KeepAccInBuf {
		var ok bool
		forOp, ok = ir.AsFor(dot.ParentOp())
		if !ok || forOp.IterArgIndex(dot.C()) < 0 {
			exceptions.Panicf("loop-carried accumulator of %s is not an iter arg of the enclosing loop", c)
		}
		ip := r.SaveInsertionPoint()
		r.SetInsertionPoint(forOp.Op)
		init := maybeCast(b, forOp.TiedInitArg(dot.C()), c.AccTileDType)
		accBuf, err = prepareTensorBuffer(b, init, false, !c.KeepAccInBuf, false, forOp.Op, allocaPoint)
		r.RestoreInsertionPoint(ip)
	} else {
		acc := maybeCast(b, dot.C(), c.AccTileDType)
		accBuf, err = prepareTensorBuffer(b, acc, false, true, false, at, allocaPoint)
	}
	if err != nil {
		return errors.WithMessage(err, "accumulator")
	}
	resBuf, err := prepareResultBuffer(b, resShape, accBuf, c.OutBuf, allocaPoint)
	if err != nil {
		return err
	}

	// Number of blocks.
	m, n, k := accType.Dim(0), accType.Dim(1), lhsType.Dim(1)
	blockRows, blockCols := c.TileM*c.TilesInBlockM, c.TileN*c.TilesInBlockN
	if m%blockRows != 0 || n%blockCols != 0 {
		return errors.Errorf("accumulator %dx%d can't be split in blocks of %dx%d", m, n, blockRows, blockCols)
	}
	if k%c.TileK != 0 {
		return errors.Errorf("reduction dimension %d is not a multiple of the tile size %d", k, c.TileK)
	}
	blocksInAccM, blocksInAccN, tilesInVectorK := m/blockRows, n/blockCols, k/c.TileK
	klog.V(3).Infof("amx: %dx%d blocks, %d tiles along K", blocksInAccM, blocksInAccN, tilesInVectorK)

	bm := &blockMultiplier{
		lhsTileType:   lhsTileType,
		rhsTileType:   rhsTileType,
		lhsBuf:        lhsBuf,
		rhsBuf:        rhsBuf,
		resBuf:        resBuf,
		tilesInBlockM: c.TilesInBlockM,
		tilesInBlockN: c.TilesInBlockN,
		kind:          tileMulKindFor(c.AccTileDType),
		side:          choosePreloadSide(c.TilesInBlockM, c.TilesInBlockN),
	}

	// With the accumulator on tiles, the initial tiles are loaded before the loop. There is a single block.
	var accInitTiles, accTiles tileGrid
	if c.KeepAccOnTiles {
		ip := r.SaveInsertionPoint()
		r.SetInsertionPoint(forOp.Op)
		accInitTiles = loadBlockTiles(b, accTileType, accBuf, c.TilesInBlockM, c.TilesInBlockN, 0, 0)
		r.RestoreInsertionPoint(ip)
		accTiles = accInitTiles.clone()
	}
	for blockM := range blocksInAccM {
		for blockN := range blocksInAccN {
			if !c.KeepAccOnTiles {
				accTiles = loadBlockTiles(b, accTileType, accBuf, c.TilesInBlockM, c.TilesInBlockN, blockM, blockN)
			}
			for blockK := range tilesInVectorK {
				// TODO: with the accumulator on tiles, the last iteration of the loop could store the tiles
				// to the output buffer directly, instead of yielding them.
				storeResult := !c.KeepAccOnTiles && blockK == tilesInVectorK-1
				bm.multiplyBlocks(b, blockM, blockN, blockK, accTiles, storeResult)
			}
		}
	}

	switch {
	case c.KeepAccOnTiles:
		finalizeAccOnTiles(r, c, forOp, accInitTiles, accTiles, resBuf)
	case c.KeepAccInBuf:
		// The accumulator lives in resBuf through the loop: read it once after the loop.
		loopResult := forOp.TiedLoopResult(dot.C())
		r.SetInsertionPointAfter(forOp.Op)
		r.ReplaceAllUsesWith(loopResult, readResult(b, accType, resBuf))
		r.ReplaceOp(dot.Op, dot.C())
	case c.OrigStore == nil:
		r.ReplaceOp(dot.Op, readResult(b, accType, resBuf))
	default:
		// The result was stored directly to the output buffer.
		r.EraseOp(c.OrigStore)
		r.EraseOp(dot.Op)
	}
	klog.V(2).Infof("amx: converted %s", c)
	return nil
}

// finalizeAccOnTiles changes forOp to carry the accumulator tiles, from accInitTiles (loaded before the loop)
// to accTiles (updated in the loop body). After the loop the tiles are stored to the output buffer, if fused,
// or to resBuf, from where the loop result is read back.
func finalizeAccOnTiles(r *ir.Rewriter, c Candidate, forOp ir.ForOp, accInitTiles, accTiles tileGrid, resBuf MemBuffer) {
	b := &r.Builder
	dot := c.Op
	accType := dot.C().Type()
	resultIdx := forOp.IterArgIndex(dot.C())

	// The dot becomes a no-op: the loop-carried accumulator is only yielded back, and the loop result is
	// replaced below.
	r.ReplaceOp(dot.Op, dot.C())
	yields := accTiles.flatten()
	newFor := r.ReplaceForWithAdditionalYields(forOp, accInitTiles.flatten(), true,
		func([]*ir.Value) []*ir.Value { return yields })
	tileResults := newFor.Results()[newFor.NumResults()-len(yields):]
	resTiles := newTileGrid(c.TilesInBlockM, c.TilesInBlockN)
	for i, tile := range tileResults {
		resTiles[i/c.TilesInBlockN][i%c.TilesInBlockN] = tile
	}

	if c.OrigStore != nil {
		r.SetInsertionPoint(c.OrigStore)
		storeBlockTiles(b, c.OutBuf, 0, 0, resTiles)
		r.EraseOp(c.OrigStore)
		return
	}
	r.SetInsertionPointAfter(newFor.Op)
	storeBlockTiles(b, resBuf, 0, 0, resTiles)
	r.ReplaceAllUsesWith(newFor.Result(resultIdx), readResult(b, accType, resBuf))
}

// readResult reads the accumulator tiles stored in resBuf back as a vector of accType, converting it
// back from the accumulator tiles dtype if needed.
func readResult(b *ir.Builder, accType ir.Type, resBuf MemBuffer) *ir.Value {
	resType := ir.VectorType(accType.Shape.WithDType(resBuf.MemRef.Type().DType()))
	result := b.Read(resType, resBuf.MemRef, resBuf.Indices...)
	return maybeCast(b, result, accType.DType())
}
