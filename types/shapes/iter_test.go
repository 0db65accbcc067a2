// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"slices"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIter(t *testing.T) {
	collect := func(s Shape) [][]int {
		var all [][]int
		for indices := range s.Iter() {
			all = append(all, slices.Clone(indices))
		}
		return all
	}
	require.Equal(t, [][]int{{}}, collect(Make(dtypes.Float32)))
	require.Equal(t, [][]int{{0, 0, 0}}, collect(Make(dtypes.Int8, 1, 1, 1)))
	require.Equal(t, [][]int{{0, 0}, {0, 1}, {1, 0}, {1, 1}, {2, 0}, {2, 1}}, collect(Make(dtypes.Int32, 3, 2)))
	require.Equal(t, [][]int{{0, 0, 0}, {0, 0, 1}, {1, 0, 0}, {1, 0, 1}}, collect(Make(dtypes.BFloat16, 2, 1, 2)))

	// Flat indices follow the iteration order.
	s := Make(dtypes.Int8, 2, 3, 4)
	var count int
	for indices := range s.Iter() {
		require.Equal(t, count, s.FlatIndex(indices))
		count++
	}
	assert.Equal(t, s.Size(), count)
}

func TestFlatIndex(t *testing.T) {
	s := Make(dtypes.Float32, 4, 8)
	assert.Equal(t, 13, s.FlatIndex([]int{1, 5}))
	assert.True(t, s.InBounds([]int{3, 7}))
	assert.False(t, s.InBounds([]int{4, 0}))
	assert.False(t, s.InBounds([]int{0}))
	require.Panics(t, func() { s.FlatIndex([]int{0, 8}) })
}
