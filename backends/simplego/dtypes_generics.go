package simplego

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/x448/float16"
	"golang.org/x/exp/constraints"
)

// FuncForDispatcher is type of functions that the DTypeDispatcher can handle.
type FuncForDispatcher func(params ...any) any

const MaxDTypes = 32

// DTypeDispatcher will call the function registered for the dtype given.
// It's used to map a dtype known only at runtime to an instance of a generic function.
type DTypeDispatcher struct {
	Name  string
	fnMap [MaxDTypes]FuncForDispatcher
}

// NewDTypeDispatcher creates a new dispatcher for a class of functions.
func NewDTypeDispatcher(name string) *DTypeDispatcher {
	return &DTypeDispatcher{
		Name: name,
	}
}

// Dispatch call the function that matches the dtype.
// It panics if there is no function registered for the dtype.
func (d *DTypeDispatcher) Dispatch(dtype dtypes.DType, params ...any) any {
	if dtype < 0 || dtype >= MaxDTypes {
		exceptions.Panicf("dtype %s not supported by %s", dtype, d.Name)
	}
	fn := d.fnMap[dtype]
	if fn == nil {
		exceptions.Panicf("dtype %s not supported by %s", dtype, d.Name)
	}
	return fn(params...)
}

// Register a function to handle a specific dtype.
// This overwrites any previous setting for the same dtype.
func (d *DTypeDispatcher) Register(dtype dtypes.DType, fn FuncForDispatcher) {
	if dtype < 0 || dtype >= MaxDTypes {
		exceptions.Panicf("dtype %s not supported by %s", dtype, d.Name)
	}
	d.fnMap[dtype] = fn
}

// Supports returns whether there is a function registered for the dtype.
func (d *DTypeDispatcher) Supports(dtype dtypes.DType) bool {
	return dtype >= 0 && dtype < MaxDTypes && d.fnMap[dtype] != nil
}

// SupportedTypesConstraints enumerates the types supported by SimpleGo.
type SupportedTypesConstraints interface {
	bool | int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64 |
		float16.Float16 | bfloat16.BFloat16
}

// PODIntegerConstraints are used for generics for the Golang pod (plain-old-data) types.
type PODIntegerConstraints interface {
	constraints.Integer
}

// PODFloatConstraints are used for generics for the Golang pod (plain-old-data) types.
// Float16 and BFloat16 are not included because they are specialized types, not natively supported by Go.
type PODFloatConstraints interface {
	constraints.Float
}

// HalfPrecisionConstraints are the 16 bits float types, that are converted to float32 for arithmetic.
type HalfPrecisionConstraints interface {
	float16.Float16 | bfloat16.BFloat16
	Float32() float32
}
