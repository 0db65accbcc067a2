// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"iter"

	"github.com/gomlx/exceptions"
)

// Iter yields the multi-dimensional indices of every element of the shape, in row-major order
// (the last axis changes fastest). A scalar yields one empty index.
//
// The yielded slice is reused between iterations: clone it if it needs to be kept.
func (s Shape) Iter() iter.Seq[[]int] {
	return func(yield func([]int) bool) {
		if !s.Ok() || s.Size() == 0 {
			return
		}
		indices := make([]int, s.Rank())
		for {
			if !yield(indices) {
				return
			}
			axis := s.Rank() - 1
			for ; axis >= 0; axis-- {
				indices[axis]++
				if indices[axis] < s.Dimensions[axis] {
					break
				}
				indices[axis] = 0
			}
			if axis < 0 {
				return
			}
		}
	}
}

// FlatIndex returns the position in a row-major flat storage of the element at indices.
// It panics if the indices are out of bounds.
func (s Shape) FlatIndex(indices []int) int {
	if len(indices) != s.Rank() {
		exceptions.Panicf("shape %s requires %d indices, got %d", s, s.Rank(), len(indices))
	}
	var flat int
	for axis, idx := range indices {
		dim := s.Dimensions[axis]
		if idx < 0 || idx >= dim {
			exceptions.Panicf("index %d out of bounds for axis %d of shape %s", idx, axis, s)
		}
		flat = flat*dim + idx
	}
	return flat
}

// InBounds returns whether the indices address an element of the shape.
func (s Shape) InBounds(indices []int) bool {
	if len(indices) != s.Rank() {
		return false
	}
	for axis, idx := range indices {
		if idx < 0 || idx >= s.Dimensions[axis] {
			return false
		}
	}
	return true
}
