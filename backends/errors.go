package backends

import "github.com/pkg/errors"

// Error taxonomy of the evaluators. They don't contain a stack: backends attach one with
// errors.Wrapf(ErrXxx, "...") when returning them, and callers match them with errors.Is.
var (
	// ErrShapeMismatch indicates inconsistent ranks, dimensions or dtypes among data, indices and updates.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrInvalidAxis indicates an axis that doesn't normalize into [0, rank-1], or an invalid axis tensor.
	ErrInvalidAxis = errors.New("invalid axis")

	// ErrIndexOutOfRange indicates a value in indices outside of [0, data.shape[axis]).
	// It's a precondition violation detected during value inference, before any output is exposed.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrInvalidAttribute indicates an invalid attribute, e.g. an unknown reduction, or a reduction
	// not defined for the dtype.
	ErrInvalidAttribute = errors.New("invalid attribute")

	// ErrNotImplemented indicates the operation or dtype is not supported by the backend.
	ErrNotImplemented = errors.New("not implemented")
)
