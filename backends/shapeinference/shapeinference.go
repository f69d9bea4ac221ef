// Package shapeinference calculates the shape resulting from operations and validates its inputs.
//
// This can be useful for new backends to test and help plan for buffer space for temporary or output buffers.
//
// It defines one function per OpType, plus the validation of the attributes and of the axis given as a tensor.
// All functions accept dynamic shapes (see shapes.DimUnknown): an unknown dimension is compatible with any other.
package shapeinference

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/scatterupdate/backends"
	"github.com/gomlx/scatterupdate/pkg/core/shapes"
	"github.com/pkg/errors"
)

// ScatterElementsUpdateOp checks that the parameters are consistent, and returns the output shape and the
// normalized axis (in the range [0, rank-1]).
//
// The output shape returned is the unchanged data shape (including its dynamic dimensions): the updates are
// scattered into data, but its shape is unchanged.
//
// Errors wrap backends.ErrShapeMismatch for any inconsistency in ranks, dimensions or dtypes, and
// backends.ErrInvalidAxis if the axis is out of [-rank, rank-1].
func ScatterElementsUpdateOp(data, indices, updates shapes.Shape, axis int) (output shapes.Shape, normalizedAxis int, err error) {
	if !data.Ok() || !indices.Ok() || !updates.Ok() {
		return shapes.Invalid(), 0, errors.Wrapf(backends.ErrShapeMismatch,
			"invalid shape for data (%s), indices (%s) or updates (%s) for ScatterElementsUpdateOp", data, indices, updates)
	}
	rank := data.Rank()
	if indices.Rank() != rank || updates.Rank() != rank {
		return shapes.Invalid(), 0, errors.Wrapf(backends.ErrShapeMismatch,
			"ScatterElementsUpdateOp requires data (%s), indices (%s) and updates (%s) to have the same rank", data, indices, updates)
	}
	normalizedAxis, err = shapes.NormalizeAxis(axis, rank)
	if err != nil {
		return shapes.Invalid(), 0, errors.Wrapf(backends.ErrInvalidAxis, "ScatterElementsUpdateOp for data %s: %v", data, err)
	}
	if data.DType != updates.DType {
		return shapes.Invalid(), 0, errors.Wrapf(backends.ErrShapeMismatch,
			"data types (DType) for ScatterElementsUpdateOp data (%s) and updates (%s) must match", data, updates)
	}
	if !indices.DType.IsInt() {
		return shapes.Invalid(), 0, errors.Wrapf(backends.ErrShapeMismatch,
			"indices DType (%s) must be an integer type", indices)
	}
	if !indices.Compatible(updates) {
		return shapes.Invalid(), 0, errors.Wrapf(backends.ErrShapeMismatch,
			"indices (%s) and updates (%s) must have the same dimensions", indices, updates)
	}
	for d, dataDim := range data.Dimensions {
		indicesDim := indices.Dimensions[d]
		if d == normalizedAxis {
			if dataDim != shapes.DimUnknown && indicesDim != shapes.DimUnknown && indicesDim > dataDim {
				return shapes.Invalid(), 0, errors.Wrapf(backends.ErrShapeMismatch,
					"indices.Dimensions[axis=%d](%d) > data.Dimensions[axis=%d](%d), indices (%s) won't fit into data (%s)",
					d, indicesDim, d, dataDim, indices, data)
			}
			continue
		}
		if !shapes.CompatibleDims(dataDim, indicesDim) {
			return shapes.Invalid(), 0, errors.Wrapf(backends.ErrShapeMismatch,
				"mismatched dimensions for ScatterElementsUpdateOp at axis %d (not the scatter axis %d): data (%s) has %d, indices (%s) has %d",
				d, normalizedAxis, data, dataDim, indices, indicesDim)
		}
	}
	return data.Clone(), normalizedAxis, nil
}

// AxisOp validates the shape of an axis given as a tensor: it must be an integer scalar, or an integer
// tensor of shape [1].
func AxisOp(axis shapes.Shape) error {
	if !axis.Ok() || !axis.DType.IsInt() {
		return errors.Wrapf(backends.ErrInvalidAxis, "axis tensor must have an integer DType, got %s", axis)
	}
	if axis.IsScalar() || (axis.Rank() == 1 && axis.Dimensions[0] == 1) {
		return nil
	}
	return errors.Wrapf(backends.ErrInvalidAxis, "axis tensor must be a scalar or have shape [1], got %s", axis)
}

// ReductionOp checks that the reduction is valid for the given dtype of data.
// Errors wrap backends.ErrInvalidAttribute.
func ReductionOp(reduction backends.ReductionType, dtype dtypes.DType) error {
	return backends.ScatterAttributes{Reduction: reduction}.Validate(dtype)
}
