// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"math"
	"reflect"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/gomlx/scatterupdate/pkg/core/shapes"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// FromValue returns a tensor constructed from the given multi-dimension slice (or scalar).
// If the rank of the `value` is larger than 1, the shape of all sub-slices must be the same.
// If the value is a *Tensor already, it is simply returned.
//
// Go `int` values are stored as Int64 (or Int32 on 32-bit platforms).
//
// It panics if the shape is not regular or the type is not supported.
// Notice that FromFlatDataAndDimensions is much faster if speed here is a concern.
func FromValue(value any) *Tensor {
	if valueT, ok := value.(*Tensor); ok {
		return valueT
	}
	shape, err := shapeForValue(value)
	if err != nil {
		panic(errors.Wrapf(err, "cannot create shape from %T", value))
	}
	t := FromShape(shape)
	flatV := reflect.ValueOf(t.flat)
	if shape.IsScalar() {
		flatV.Index(0).Set(reflect.ValueOf(value).Convert(flatV.Type().Elem()))
		return t
	}
	copySlicesRecursively(flatV, reflect.ValueOf(value), shape.Strides())
	return t
}

// copyFlatConverting copies src to dst, converting the element type if needed (e.g. from []int to []int64).
func copyFlatConverting(dst, src reflect.Value) {
	if dst.Type().Elem() == src.Type().Elem() {
		reflect.Copy(dst, src)
		return
	}
	elemType := dst.Type().Elem()
	for ii := range src.Len() {
		dst.Index(ii).Set(src.Index(ii).Convert(elemType))
	}
}

// copySlicesRecursively copy values on a multi-dimension slice to a flat data slice
// assuming the strides for each dimension.
func copySlicesRecursively(data reflect.Value, mdSlice reflect.Value, strides []int) {
	if len(strides) == 1 {
		copyFlatConverting(data, mdSlice)
		return
	}
	numElements := mdSlice.Len()
	subStrides := strides[1:]
	for ii := range numElements {
		start := ii * strides[0]
		end := (ii + 1) * strides[0]
		copySlicesRecursively(data.Slice(start, end), mdSlice.Index(ii), subStrides)
	}
}

func shapeForValue(v any) (shape shapes.Shape, err error) {
	if v == nil {
		return shapes.Invalid(), errors.New("nil value")
	}
	err = shapeForValueRecursive(&shape, reflect.ValueOf(v), reflect.TypeOf(v))
	return
}

func shapeForValueRecursive(shape *shapes.Shape, v reflect.Value, t reflect.Type) error {
	switch t.Kind() {
	case reflect.Slice:
		t = t.Elem()
		shape.Dimensions = append(shape.Dimensions, v.Len())
		shapePrefix := shape.Clone()
		if v.Len() == 0 {
			return errors.Errorf("value with empty slice not valid for Tensor conversion: %T -- use tensors.FromShape for zero-sized tensors", v.Interface())
		}
		if err := shapeForValueRecursive(shape, v.Index(0), t); err != nil {
			return err
		}
		// Other elements must have the same shape as the first one.
		for ii := 1; ii < v.Len(); ii++ {
			shapeTest := shapePrefix.Clone()
			if err := shapeForValueRecursive(&shapeTest, v.Index(ii), t); err != nil {
				return err
			}
			if !shape.Equal(shapeTest) {
				return errors.Errorf("sub-slices have irregular shapes, found shapes %q, and %q", shape, shapeTest)
			}
		}
	case reflect.Pointer:
		return errors.Errorf("cannot convert Pointer (%s) to a concrete value for tensors", t)
	default:
		shape.DType = dtypes.FromGoType(t)
		if shape.DType == dtypes.InvalidDType {
			return errors.Errorf("cannot convert type %s to a value concrete tensor type (maybe type not supported yet?)", t)
		}
	}
	return nil
}

// Value returns a multi-dimensional slice (or a scalar for rank 0) with a copy of the tensor values.
// E.g.: a Float32 tensor shaped [2 3] returns a [][]float32.
func (t *Tensor) Value() any {
	t.AssertValid()
	flatV := reflect.ValueOf(t.flat)
	if t.shape.IsScalar() {
		return flatV.Index(0).Interface()
	}
	flatCopy := reflect.MakeSlice(flatV.Type(), flatV.Len(), flatV.Len())
	reflect.Copy(flatCopy, flatV)
	return convertDataToSlices(flatCopy, t.shape.Dimensions...).Interface()
}

// convertDataToSlices takes data as a flat slice, and creates a multidimensional slices with the given dimensions that
// points to the given data.
func convertDataToSlices(dataV reflect.Value, dimensions ...int) reflect.Value {
	if len(dimensions) <= 1 {
		return dataV
	}
	resultT := dataV.Type().Elem()
	for range dimensions {
		resultT = reflect.SliceOf(resultT)
	}
	strides := make([]int, len(dimensions))
	currentStride := 1
	for axis := len(dimensions) - 1; axis >= 0; axis-- {
		strides[axis] = currentStride
		currentStride *= dimensions[axis]
	}
	return createSlicesRecursively(resultT, dataV, dimensions, strides)
}

// createSlicesRecursively creates the nested slices pointing to the flat data.
func createSlicesRecursively(resultT reflect.Type, data reflect.Value, dimensions []int, strides []int) reflect.Value {
	if len(strides) == 1 {
		return data
	}
	numElements := dimensions[0]
	slice := reflect.MakeSlice(resultT, numElements, numElements)
	subStrides := strides[1:]
	subDimensions := dimensions[1:]
	subResultT := resultT.Elem()
	for ii := range numElements {
		start := ii * strides[0]
		end := (ii + 1) * strides[0]
		slice.Index(ii).Set(createSlicesRecursively(subResultT, data.Slice(start, end), subDimensions, subStrides))
	}
	return slice
}

// Equal checks weather t == otherTensor: same shape and same values.
// If they are the same pointer they are considered equal.
// If either are invalid (nil or finalized) it panics.
func (t *Tensor) Equal(otherTensor *Tensor) bool {
	t.AssertValid()
	otherTensor.AssertValid()
	if t == otherTensor {
		return true
	}
	if !t.shape.Equal(otherTensor.shape) {
		return false
	}
	return reflect.DeepEqual(t.flat, otherTensor.flat)
}

// InDelta checks weather Abs(t - otherTensor) <= delta for every element.
// If the shapes are different it returns false.
//
// It panics for Bool tensors, or if either tensor is invalid.
func (t *Tensor) InDelta(otherTensor *Tensor, delta float64) bool {
	t.AssertValid()
	otherTensor.AssertValid()
	if t == otherTensor {
		return true
	}
	if !t.shape.Equal(otherTensor.shape) {
		return false
	}
	values0, values1 := flatAsFloat64(t.flat), flatAsFloat64(otherTensor.flat)
	for ii, v0 := range values0 {
		v1 := values1[ii]
		if math.IsNaN(v0) || math.IsNaN(v1) {
			if math.IsNaN(v0) != math.IsNaN(v1) {
				return false
			}
			continue
		}
		if math.Abs(v0-v1) > delta {
			return false
		}
	}
	return true
}

func convertFlat[T interface {
	int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64
}](flat []T) []float64 {
	values := make([]float64, len(flat))
	for ii, v := range flat {
		values[ii] = float64(v)
	}
	return values
}

// flatAsFloat64 converts a flat slice of any numeric supported type to []float64.
func flatAsFloat64(flat any) []float64 {
	switch typed := flat.(type) {
	case []float64:
		return typed
	case []float32:
		return convertFlat(typed)
	case []int8:
		return convertFlat(typed)
	case []int16:
		return convertFlat(typed)
	case []int32:
		return convertFlat(typed)
	case []int64:
		return convertFlat(typed)
	case []uint8:
		return convertFlat(typed)
	case []uint16:
		return convertFlat(typed)
	case []uint32:
		return convertFlat(typed)
	case []uint64:
		return convertFlat(typed)
	case []float16.Float16:
		values := make([]float64, len(typed))
		for ii, v := range typed {
			values[ii] = float64(v.Float32())
		}
		return values
	case []bfloat16.BFloat16:
		values := make([]float64, len(typed))
		for ii, v := range typed {
			values[ii] = float64(v.Float32())
		}
		return values
	default:
		exceptions.Panicf("InDelta not supported for flat values of type %T", flat)
	}
	return nil
}
