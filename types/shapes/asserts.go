// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import "github.com/pkg/errors"

// UncheckedAxis can be used in CheckDims for an axis whose dimension doesn't matter.
const UncheckedAxis = -1

// CheckDims returns an error if the shape doesn't have exactly the given dimensions.
// Axes given as UncheckedAxis match any dimension.
func (s Shape) CheckDims(dimensions ...int) error {
	if s.Rank() != len(dimensions) {
		return errors.Errorf("shape %s has rank %d, wanted %d", s, s.Rank(), len(dimensions))
	}
	for axis, want := range dimensions {
		if want != UncheckedAxis && s.Dimensions[axis] != want {
			return errors.Errorf("shape %s has dimension %d on axis %d, wanted %d", s, s.Dimensions[axis], axis, want)
		}
	}
	return nil
}

// CheckMinRank returns an error if the shape has fewer than rank axes.
func (s Shape) CheckMinRank(rank int) error {
	if s.Rank() < rank {
		return errors.Errorf("shape %s has rank %d, wanted at least %d", s, s.Rank(), rank)
	}
	return nil
}

// CheckMultiple returns an error if the dimension of the axis is not a multiple of factor.
// Negative axes count from the end.
func (s Shape) CheckMultiple(axis, factor int) error {
	if dim := s.Dim(axis); factor <= 0 || dim%factor != 0 {
		return errors.Errorf("shape %s has dimension %d on axis %d, not a multiple of %d", s, dim, axis, factor)
	}
	return nil
}
