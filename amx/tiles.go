// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package amx

import (
	"slices"

	"github.com/Artlesbol/triton-cpu/ir"
	"github.com/gomlx/gopjrt/dtypes"
)

// tileMulKind selects the tile multiply instruction.
type tileMulKind int

const (
	// tileMulInt is int8 x int8 accumulated in int32 (ir.OpTypeTileMulI).
	tileMulInt tileMulKind = iota

	// tileMulFloat is 16-bit floats accumulated in float32 (ir.OpTypeTileMulF).
	tileMulFloat
)

// tileMulKindFor returns the tile multiply for the accumulator tile dtype.
func tileMulKindFor(accTileDType dtypes.DType) tileMulKind {
	if ir.IsIntDType(accTileDType) {
		return tileMulInt
	}
	return tileMulFloat
}

// preloadSide selects which operand tiles of a block are all loaded first, and kept in tile
// registers while the tiles of the other operand are loaded one at a time.
type preloadSide int

const (
	preloadLhs preloadSide = iota
	preloadRhs
)

// choosePreloadSide preloads the side with fewer (or as many) tiles in the block.
func choosePreloadSide(tilesInBlockM, tilesInBlockN int) preloadSide {
	if tilesInBlockM <= tilesInBlockN {
		return preloadLhs
	}
	return preloadRhs
}

// tileGrid holds the tiles of a block, indexed by [tileM][tileN].
type tileGrid [][]*ir.Value

func newTileGrid(rows, cols int) tileGrid {
	grid := make(tileGrid, rows)
	for i := range grid {
		grid[i] = make([]*ir.Value, cols)
	}
	return grid
}

// clone returns a copy of the grid, that can be updated independently.
func (g tileGrid) clone() tileGrid {
	grid := make(tileGrid, len(g))
	for i, row := range g {
		grid[i] = slices.Clone(row)
	}
	return grid
}

// flatten returns the tiles in row-major order.
func (g tileGrid) flatten() []*ir.Value {
	var tiles []*ir.Value
	for _, row := range g {
		tiles = append(tiles, row...)
	}
	return tiles
}

// shiftIndices returns the indices of the tile (tileM, tileN) of the block (blockM, blockN), for
// blocks of tilesInBlockM x tilesInBlockN tiles of type tileType, counting from the given indices.
func shiftIndices(b *ir.Builder, indices []*ir.Value, tileType ir.Type,
	tilesInBlockM, tilesInBlockN, blockM, blockN, tileM, tileN int) []*ir.Value {
	rows, cols := tileType.Dim(0), tileType.Dim(1)
	offsetM := blockM*tilesInBlockM*rows + tileM*rows
	offsetN := blockN*tilesInBlockN*cols + tileN*cols
	shifted := slices.Clone(indices)
	rowAxis := len(shifted) - 2
	shifted[rowAxis] = shiftIndex(b, shifted[rowAxis], offsetM)
	shifted[rowAxis+1] = shiftIndex(b, shifted[rowAxis+1], offsetN)
	return shifted
}

// loadTile loads the tile (tileM, tileN) of the block (blockM, blockN) from buf. See shiftIndices.
func loadTile(b *ir.Builder, tileType ir.Type, buf MemBuffer,
	tilesInBlockM, tilesInBlockN, blockM, blockN, tileM, tileN int) *ir.Value {
	indices := shiftIndices(b, buf.Indices, tileType, tilesInBlockM, tilesInBlockN, blockM, blockN, tileM, tileN)
	return b.TileLoad(tileType, buf.MemRef, indices...)
}

// storeTile stores tile as the tile (tileM, tileN) of the block (blockM, blockN) of buf. See shiftIndices.
func storeTile(b *ir.Builder, tile *ir.Value, buf MemBuffer,
	tilesInBlockM, tilesInBlockN, blockM, blockN, tileM, tileN int) {
	indices := shiftIndices(b, buf.Indices, tile.Type(), tilesInBlockM, tilesInBlockN, blockM, blockN, tileM, tileN)
	b.TileStore(tile, buf.MemRef, indices...)
}

// loadBlockTiles loads all the tiles of the block (blockM, blockN) from buf, or creates zero tiles
// if buf is empty.
func loadBlockTiles(b *ir.Builder, tileType ir.Type, buf MemBuffer,
	tilesInBlockM, tilesInBlockN, blockM, blockN int) tileGrid {
	grid := newTileGrid(tilesInBlockM, tilesInBlockN)
	for tileM := range tilesInBlockM {
		for tileN := range tilesInBlockN {
			if buf.Empty() {
				grid[tileM][tileN] = b.TileZero(tileType)
			} else {
				grid[tileM][tileN] = loadTile(b, tileType, buf, tilesInBlockM, tilesInBlockN, blockM, blockN, tileM, tileN)
			}
		}
	}
	return grid
}

// storeBlockTiles stores the tiles of the block (blockM, blockN) to buf.
func storeBlockTiles(b *ir.Builder, buf MemBuffer, blockM, blockN int, tiles tileGrid) {
	tilesInBlockM, tilesInBlockN := len(tiles), len(tiles[0])
	for tileM, row := range tiles {
		for tileN, tile := range row {
			storeTile(b, tile, buf, tilesInBlockM, tilesInBlockN, blockM, blockN, tileM, tileN)
		}
	}
}

// blockMultiplier emits the tile operations multiplying blocks of the lhs and rhs buffers.
//
// Lhs blocks are tilesInBlockM x 1 tiles, rhs blocks are 1 x tilesInBlockN (packed) tiles, and
// accumulator blocks are tilesInBlockM x tilesInBlockN tiles.
type blockMultiplier struct {
	lhsTileType, rhsTileType ir.Type
	lhsBuf, rhsBuf, resBuf   MemBuffer

	tilesInBlockM, tilesInBlockN int
	kind                         tileMulKind
	side                         preloadSide
}

func (bm *blockMultiplier) mul(b *ir.Builder, lhs, rhs, acc *ir.Value) *ir.Value {
	if bm.kind == tileMulInt {
		return b.TileMulI(lhs, rhs, acc)
	}
	return b.TileMulF(lhs, rhs, acc)
}

// multiplyBlocks accumulates the product of the lhs block (blockM, blockK) and the rhs block
// (blockK, blockN) into accTiles, which is updated with the new tile values.
//
// If storeResult is set, each accumulator tile is stored to the result buffer right after its last update.
func (bm *blockMultiplier) multiplyBlocks(b *ir.Builder, blockM, blockN, blockK int, accTiles tileGrid, storeResult bool) {
	store := func(tileM, tileN int) {
		if storeResult {
			storeTile(b, accTiles[tileM][tileN], bm.resBuf, bm.tilesInBlockM, bm.tilesInBlockN, blockM, blockN, tileM, tileN)
		}
	}
	if bm.side == preloadLhs {
		lhsTiles := loadBlockTiles(b, bm.lhsTileType, bm.lhsBuf, bm.tilesInBlockM, 1, blockM, blockK)
		for tileN := range bm.tilesInBlockN {
			rhsTile := loadTile(b, bm.rhsTileType, bm.rhsBuf, 1, bm.tilesInBlockN, blockK, blockN, 0, tileN)
			for tileM := range bm.tilesInBlockM {
				accTiles[tileM][tileN] = bm.mul(b, lhsTiles[tileM][0], rhsTile, accTiles[tileM][tileN])
				store(tileM, tileN)
			}
		}
		return
	}
	rhsTiles := loadBlockTiles(b, bm.rhsTileType, bm.rhsBuf, 1, bm.tilesInBlockN, blockK, blockN)
	for tileM := range bm.tilesInBlockM {
		lhsTile := loadTile(b, bm.lhsTileType, bm.lhsBuf, bm.tilesInBlockM, 1, blockM, blockK, tileM, 0)
		for tileN := range bm.tilesInBlockN {
			accTiles[tileM][tileN] = bm.mul(b, lhsTile, rhsTiles[0][tileN], accTiles[tileM][tileN])
			store(tileM, tileN)
		}
	}
}
