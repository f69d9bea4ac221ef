// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tensors implements a `Tensor`, a representation of a multi-dimensional array stored
// in host memory as a flat Go slice in row-major order.
//
// Tensors are used as inputs and outputs of the evaluators in the backends packages. By convention,
// they are immutable once handed to an evaluator: a new Tensor is always created for the output,
// unless the caller explicitly donates an input.
//
// To create tensors use FromValue (from multi-dimensional Go slices), FromFlatDataAndDimensions,
// FromScalar or FromShape (zero-initialized).
package tensors

import (
	"fmt"
	"reflect"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/scatterupdate/pkg/core/shapes"
)

// Tensor holds a shape and a flat slice with the values, in row-major order.
//
// The flat slice is always of the Go type corresponding to the shape's DType (e.g. []float32 for Float32).
type Tensor struct {
	shape shapes.Shape

	// flat is nil once the tensor is finalized.
	flat any
}

// FromShape returns a zero-initialized tensor with the given shape.
// It panics for invalid or dynamic shapes.
func FromShape(shape shapes.Shape) *Tensor {
	if !shape.Ok() {
		exceptions.Panicf("tensors.FromShape(%s): invalid shape", shape)
	}
	if shape.IsDynamic() {
		exceptions.Panicf("tensors.FromShape(%s): cannot allocate values for a dynamic shape", shape)
	}
	goType := shape.DType.GoType()
	if goType == nil {
		exceptions.Panicf("tensors.FromShape(%s): dtype has no Go equivalent", shape)
	}
	size := shape.Size()
	return &Tensor{
		shape: shape.Clone(),
		flat:  reflect.MakeSlice(reflect.SliceOf(goType), size, size).Interface(),
	}
}

// FromFlat creates a tensor that takes ownership of the given flat slice, without copying it.
// The flat slice must be of the Go type corresponding to shape.DType, with exactly shape.Size() elements.
//
// The caller should not use the flat slice after this call.
func FromFlat(shape shapes.Shape, flat any) *Tensor {
	if shape.IsDynamic() {
		exceptions.Panicf("tensors.FromFlat(%s): cannot hold values for a dynamic shape", shape)
	}
	flatV := reflect.ValueOf(flat)
	if flatV.Kind() != reflect.Slice || flatV.Type().Elem() != shape.DType.GoType() {
		exceptions.Panicf("tensors.FromFlat(%s): flat data of type %T doesn't match dtype", shape, flat)
	}
	if flatV.Len() != shape.Size() {
		exceptions.Panicf("tensors.FromFlat(%s): flat data has %d elements, shape requires %d", shape, flatV.Len(), shape.Size())
	}
	return &Tensor{shape: shape.Clone(), flat: flat}
}

// FromFlatDataAndDimensions creates a tensor with the given dimensions, filled with the flattened values given in `data`.
// The data is copied to the Tensor.
// The `DType` is inferred from the `data` type.
func FromFlatDataAndDimensions[T dtypes.Supported](data []T, dimensions ...int) *Tensor {
	dtype := dtypes.FromGenericsType[T]()
	shape := shapes.Make(dtype, dimensions...)
	if len(data) != shape.Size() {
		exceptions.Panicf("FromFlatDataAndDimensions(%s): data size is %d, but dimensions size is %d", shape, len(data), shape.Size())
	}
	t := FromShape(shape)
	copyFlatConverting(reflect.ValueOf(t.flat), reflect.ValueOf(data))
	return t
}

// FromScalar creates a tensor with the given scalar.
// The `DType` is inferred from the value.
func FromScalar[T dtypes.Supported](value T) *Tensor {
	return FromFlatDataAndDimensions([]T{value})
}

// Shape of the tensor.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType of the tensor's shape.
func (t *Tensor) DType() dtypes.DType { return t.shape.DType }

// Rank of the tensor's shape.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// IsScalar returns whether the tensor represents a scalar value.
func (t *Tensor) IsScalar() bool { return t.shape.IsScalar() }

// Size returns the number of elements in the tensor.
func (t *Tensor) Size() int { return t.shape.Size() }

// Ok returns whether the tensor is not nil and holds values, that is, it hasn't been finalized.
func (t *Tensor) Ok() bool { return t != nil && t.flat != nil }

// AssertValid panics if the tensor is nil or was finalized.
func (t *Tensor) AssertValid() {
	if t == nil {
		exceptions.Panicf("tensor is nil")
	}
	if t.flat == nil {
		exceptions.Panicf("tensor shaped %s has been finalized", t.shape)
	}
}

// Flat returns the underlying flat slice of values, e.g. a []float32 for a Float32 tensor.
//
// It is not a copy: the caller must not modify it.
func (t *Tensor) Flat() any {
	t.AssertValid()
	return t.flat
}

// TakeFlat transfers the ownership of the underlying flat slice to the caller, and finalizes the tensor.
func (t *Tensor) TakeFlat() any {
	t.AssertValid()
	flat := t.flat
	t.flat = nil
	return flat
}

// Finalize releases the reference to the values. The tensor can no longer be used.
func (t *Tensor) Finalize() {
	if t == nil {
		return
	}
	t.flat = nil
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	t.AssertValid()
	clone := FromShape(t.shape)
	reflect.Copy(reflect.ValueOf(clone.flat), reflect.ValueOf(t.flat))
	return clone
}

// ConstFlatData calls accessFn with the flat values of the tensor, typed.
// It panics if T doesn't match the tensor's DType.
//
// The caller must not modify the slice.
func ConstFlatData[T dtypes.Supported](t *Tensor, accessFn func(flat []T)) {
	t.AssertValid()
	flat, ok := t.flat.([]T)
	if !ok {
		var dummy T
		exceptions.Panicf("ConstFlatData[%T] used on tensor shaped %s", dummy, t.shape)
	}
	accessFn(flat)
}

// CopyFlatData returns a copy of the flat values of the tensor.
// It panics if T doesn't match the tensor's DType.
func CopyFlatData[T dtypes.Supported](t *Tensor) []T {
	var result []T
	ConstFlatData(t, func(flat []T) {
		result = make([]T, len(flat))
		copy(result, flat)
	})
	return result
}

// ToScalar returns the single value of a tensor with one element.
// It panics if T doesn't match the tensor's DType, or if the tensor doesn't have exactly one element.
func ToScalar[T dtypes.Supported](t *Tensor) (value T) {
	if t.Size() != 1 {
		exceptions.Panicf("ToScalar used on tensor shaped %s, with %d elements", t.shape, t.Size())
	}
	ConstFlatData(t, func(flat []T) {
		value = flat[0]
	})
	return
}

// String implements fmt.Stringer.
func (t *Tensor) String() string {
	if t == nil {
		return "Tensor(nil)"
	}
	if t.flat == nil {
		return fmt.Sprintf("Tensor%s: finalized", t.shape)
	}
	return fmt.Sprintf("Tensor%s: %v", t.shape, t.Value())
}
