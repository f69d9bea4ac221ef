// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package notimplemented implements a backends.Backend interface that returns a "not implemented"
// error to all operations.
//
// This can help bootstrap any backend implementation, or be used as a mock in tests.
package notimplemented

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/scatterupdate/backends"
	"github.com/gomlx/scatterupdate/pkg/core/shapes"
	"github.com/gomlx/scatterupdate/pkg/core/tensors"
	"github.com/pkg/errors"
)

// NotImplementedError is returned by every method.
//
// It doesn't contain a stack, attach a stack to with with errors.Wrapf(ErrNotImplemented, "...") when using it.
var NotImplementedError = backends.ErrNotImplemented

// Backend is a dummy backend that can be embedded to create mock backends.
type Backend struct {
	// Config is the configuration string the backend was created with, if created by New.
	Config string
}

var _ backends.Backend = &Backend{}

// New creates a Backend, it never fails. It can be used as a backends.Constructor.
func New(config string) (backends.Backend, error) {
	return &Backend{Config: config}, nil
}

// Name returns the short name of the backend.
func (b *Backend) Name() string {
	return "notimplemented"
}

// String returns the same as Name.
func (b *Backend) String() string {
	return b.Name()
}

// Description is a longer description of the Backend.
func (b *Backend) Description() string {
	return "Not Implemented Backend (mock backend for testing)"
}

// Capabilities returns empty capabilities.
func (b *Backend) Capabilities() backends.Capabilities {
	return backends.Capabilities{
		Operations:    make(map[backends.OpType]bool),
		DTypes:        make(map[dtypes.DType]bool),
		IndicesDTypes: make(map[dtypes.DType]bool),
		Reductions:    make(map[backends.ReductionType]bool),
	}
}

// InferShape returns NotImplementedError.
func (b *Backend) InferShape(data, indices, updates shapes.Shape, axis int, attrs backends.ScatterAttributes) (shapes.Shape, error) {
	return shapes.Invalid(), errors.Wrapf(NotImplementedError, "in InferShape()")
}

// ScatterElementsUpdate returns NotImplementedError.
func (b *Backend) ScatterElementsUpdate(data, indices, updates, axis *tensors.Tensor, attrs backends.ScatterAttributes) (*tensors.Tensor, error) {
	return nil, errors.Wrapf(NotImplementedError, "in ScatterElementsUpdate()")
}

// ScatterElementsUpdateWithAxis returns NotImplementedError.
func (b *Backend) ScatterElementsUpdateWithAxis(data, indices, updates *tensors.Tensor, axis int, attrs backends.ScatterAttributes) (*tensors.Tensor, error) {
	return nil, errors.Wrapf(NotImplementedError, "in ScatterElementsUpdateWithAxis()")
}

// Recycle finalizes the tensor.
func (b *Backend) Recycle(t *tensors.Tensor) {
	if t != nil {
		t.Finalize()
	}
}

// Finalize is a no-op.
func (b *Backend) Finalize() {}
