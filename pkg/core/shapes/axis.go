// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import "github.com/pkg/errors"

// ErrAxisOutOfRange is returned by NormalizeAxis.
var ErrAxisOutOfRange = errors.New("axis out of range")

// NormalizeAxis converts an axis in the range [-rank, rank-1] to the range [0, rank-1]:
// negative axes count from the end, so -1 becomes rank-1.
//
// It returns an error wrapping ErrAxisOutOfRange for any other value, including any axis
// for rank 0.
func NormalizeAxis(axis, rank int) (int, error) {
	adjusted := axis
	if adjusted < 0 {
		adjusted += rank
	}
	if adjusted < 0 || adjusted >= rank {
		return 0, errors.Wrapf(ErrAxisOutOfRange, "axis %d for rank %d, it must be in [%d, %d]", axis, rank, -rank, rank-1)
	}
	return adjusted, nil
}
