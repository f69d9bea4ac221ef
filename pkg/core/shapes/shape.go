// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapes defines Shape and associated tools.
//
// Shape represents the shape (rank, dimensions and DType) of a Tensor, or the expected shape
// of an operation's input or output, before any values are known.
//
// ## Glossary
//
//   - Rank: number of axes (dimensions) of a Tensor.
//   - Axis: is the index of a dimension on a multidimensional Tensor. Negative axes count from the end,
//     so -1 is the last axis.
//   - Dimension: the size of a multi-dimensions Tensor in one of its axes.
//   - Dynamic dimension: a dimension not known yet, represented by DimUnknown. A shape with
//     dynamic dimensions can be used for shape inference, but it cannot hold values.
//   - DType: the data type of the unit element in a tensor. Enumeration defined in github.com/gomlx/gopjrt/dtypes
//   - Scalar: is a shape where there are no axes (or dimensions), only a single value
//     of the associated DType.
//
// Example: The multi-dimensional array `[][]int32{{0, 1, 2}, {3, 4, 5}}` if converted to a Tensor
// would have shape `(Int32)[2 3]`. We say it has rank 2 (so 2 axes), axis 0 has
// dimension 2, and axis 1 has dimension 3. This shape could be created with
// `shapes.Make(dtypes.Int32, 2, 3)`.
package shapes

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// DimUnknown marks a dynamic dimension, whose value is only known at execution time.
const DimUnknown = -1

// Shape represents the shape of either a Tensor or the expected shape
// of the value from a computation node.
//
// Use Make to create a new shape. See example in package shapes documentation.
type Shape struct {
	DType      dtypes.DType
	Dimensions []int
}

// Make returns a Shape structure filled with the values given.
//
// It panics if any dimension is negative: use MakeDynamic for shapes with unknown dimensions.
func Make(dtype dtypes.DType, dimensions ...int) Shape {
	s := Shape{Dimensions: slices.Clone(dimensions), DType: dtype}
	for _, dim := range dimensions {
		if dim < 0 {
			exceptions.Panicf("shapes.Make(%s): cannot create a shape with an axis with dimension < 0", s)
		}
	}
	return s
}

// MakeDynamic is like Make, but it accepts DimUnknown for dimensions not known yet.
func MakeDynamic(dtype dtypes.DType, dimensions ...int) Shape {
	s := Shape{Dimensions: slices.Clone(dimensions), DType: dtype}
	for _, dim := range dimensions {
		if dim < 0 && dim != DimUnknown {
			exceptions.Panicf("shapes.MakeDynamic(%s): invalid dimension %d, only DimUnknown (%d) is accepted as negative",
				s, dim, DimUnknown)
		}
	}
	return s
}

// Scalar returns a scalar Shape for the given type.
func Scalar[T dtypes.Supported]() Shape {
	return Shape{DType: dtypes.FromGenericsType[T]()}
}

// Invalid returns an invalid shape.
//
// Invalid().Ok() == false.
func Invalid() Shape {
	return Shape{DType: dtypes.InvalidDType}
}

// Ok returns whether this is a valid Shape. A "zero" shape, that is just instantiating it with Shape{} will be invalid.
func (s Shape) Ok() bool { return s.DType != dtypes.InvalidDType }

// Rank of the shape, that is, the number of dimensions.
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar returns whether the shape represents a scalar, that is there are no dimensions (rank==0).
func (s Shape) IsScalar() bool { return s.Ok() && s.Rank() == 0 }

// IsDynamic returns whether any of the dimensions is DimUnknown.
func (s Shape) IsDynamic() bool {
	return slices.Contains(s.Dimensions, DimUnknown)
}

// IsZeroSize returns whether any of the dimensions is 0, in which case the shape holds no values.
func (s Shape) IsZeroSize() bool {
	return slices.Contains(s.Dimensions, 0)
}

// Dim returns the dimension of the given axis. axis can take negative numbers, in which
// case it counts as starting from the end -- so axis=-1 refers to the last axis.
// Like with a slice indexing, it panics for an out-of-bound axis.
func (s Shape) Dim(axis int) int {
	adjustedAxis, err := NormalizeAxis(axis, s.Rank())
	if err != nil {
		exceptions.Panicf("Shape.Dim(%d) out-of-bounds for rank %d (shape=%s)", axis, s.Rank(), s)
	}
	return s.Dimensions[adjustedAxis]
}

// Shape returns a shallow copy of itself. It implements the HasShape interface.
func (s Shape) Shape() Shape { return s }

// HasShape is an interface for objects that have an associated Shape.
type HasShape interface {
	Shape() Shape
}

// String implements stringer, pretty-prints the shape.
// Unknown dimensions are printed as "?".
func (s Shape) String() string {
	if s.Rank() == 0 {
		return fmt.Sprintf("(%s)", s.DType)
	}
	if !s.IsDynamic() {
		return fmt.Sprintf("(%s)%v", s.DType, s.Dimensions)
	}
	parts := make([]string, len(s.Dimensions))
	for axis, dim := range s.Dimensions {
		if dim == DimUnknown {
			parts[axis] = "?"
		} else {
			parts[axis] = fmt.Sprintf("%d", dim)
		}
	}
	return fmt.Sprintf("(%s)[%s]", s.DType, strings.Join(parts, " "))
}

// Size returns the number of elements of DType are needed for this shape. It's the product of all dimensions.
//
// It panics for dynamic shapes, since their size is not known.
func (s Shape) Size() (size int) {
	if s.IsDynamic() {
		exceptions.Panicf("Shape.Size() undefined for dynamic shape %s", s)
	}
	size = 1
	for _, d := range s.Dimensions {
		size *= d
	}
	return
}

// Memory returns the memory used to store an array of the given shape, the same as the size in bytes.
func (s Shape) Memory() uintptr {
	return s.DType.Memory() * uintptr(s.Size())
}

// Equal compares two shapes for equality: dtype and dimensions are compared.
// Unknown dimensions are only equal to unknown dimensions, see Compatible for a looser comparison.
func (s Shape) Equal(s2 Shape) bool {
	if s.DType != s2.DType {
		return false
	}
	return s.EqualDimensions(s2)
}

// EqualDimensions compares two shapes for equality of dimensions. Dtypes can be different.
func (s Shape) EqualDimensions(s2 Shape) bool {
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// Compatible returns whether both shapes have the same rank, and for each axis
// the dimensions are equal or at least one of them is DimUnknown. DTypes are not compared.
func (s Shape) Compatible(s2 Shape) bool {
	if s.Rank() != s2.Rank() {
		return false
	}
	for axis, dim := range s.Dimensions {
		if !CompatibleDims(dim, s2.Dimensions[axis]) {
			return false
		}
	}
	return true
}

// CompatibleDims returns whether two dimensions are equal or at least one of them is DimUnknown.
func CompatibleDims(dim1, dim2 int) bool {
	return dim1 == dim2 || dim1 == DimUnknown || dim2 == DimUnknown
}

// Clone returns a new deep copy of the shape.
func (s Shape) Clone() (s2 Shape) {
	s2.DType = s.DType
	s2.Dimensions = slices.Clone(s.Dimensions)
	return
}
