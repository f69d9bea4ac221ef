package simplego

import (
	"math"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/scatterupdate/backends"
	"github.com/gomlx/scatterupdate/backends/shapeinference"
	"github.com/gomlx/scatterupdate/pkg/core/shapes"
	"github.com/gomlx/scatterupdate/pkg/core/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// nodeExecutor for the given operation type.
//
// It is given the buffers for its inputs, and whether they are owned by the executor (donated by the caller),
// in which case they can be reused for the output. If an input is reused, the executor must set it to nil in
// inputs, so it is not given back to the pool.
//
// The shapes of the inputs are static and were already validated.
type nodeExecutor func(backend *Backend, node *Node, inputs []*Buffer, inputsOwned []bool) (*Buffer, error)

// nodeExecutors should be populated during initialization (`init` functions) for the ops implemented.
// For the nodes not implemented, leave it as nil, and it will return an error.
var nodeExecutors [backends.OpTypeLast]nodeExecutor

// Execute the node with the given inputs.
//
// The inputs must have static shapes compatible with the shapes the node was created with.
// All shape errors are returned before any value is computed.
//
// If donate is not nil, it must have the same length as inputs, and donate[i] indicates that the caller
// gives ownership of inputs[i] to the backend, which may reuse its storage for the output.
// Donated tensors are always invalidated, even if the execution fails after the inputs are validated,
// except if the same tensor is also given as another input, in which case the donation is ignored.
//
// The returned tensor is owned by the caller.
func (b *Backend) Execute(node *Node, inputs []*tensors.Tensor, donate []bool) (*tensors.Tensor, error) {
	if err := b.checkOk(); err != nil {
		return nil, err
	}
	if node == nil {
		return nil, errors.New("Execute: nil node")
	}
	if donate != nil && len(donate) != len(inputs) {
		return nil, errors.Errorf("Execute(%s): %d inputs given, but %d donate flags", node.opType, len(inputs), len(donate))
	}
	if err := node.checkInputs(inputs); err != nil {
		return nil, err
	}
	executor := nodeExecutors[node.opType]
	if executor == nil {
		return nil, errors.Wrapf(backends.ErrNotImplemented, "Execute: node executor for op type %s not implemented", node.opType)
	}

	buffers := make([]*Buffer, len(inputs))
	owned := make([]bool, len(inputs))
	for ii, input := range inputs {
		if donate != nil && donate[ii] && !slices.Contains(inputs[ii+1:], input) && !slices.Contains(inputs[:ii], input) {
			buffers[ii] = takeTensor(input)
			owned[ii] = true
		} else {
			if donate != nil && donate[ii] {
				klog.Warningf("Execute(%s): input #%d is donated but also used as another input, donation ignored", node.opType, ii)
			}
			buffers[ii] = borrowTensor(input)
		}
	}

	var output *Buffer
	var err error
	if panicErr := exceptions.TryCatch[error](func() {
		output, err = executor(b, node, buffers, owned)
	}); panicErr != nil {
		err = panicErr
	}

	// Owned inputs not reused are given back to the pool.
	for ii, buffer := range buffers {
		if owned[ii] && buffer != nil {
			b.putBuffer(buffer)
		}
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "while executing %q", node.opType)
	}
	return bufferToTensor(output), nil
}

// checkInputs validates the tensors given for execution against the node input shapes.
// For nodes created with dynamic shapes, the shape inference is run again with the concrete shapes.
func (n *Node) checkInputs(inputs []*tensors.Tensor) error {
	if len(inputs) != len(n.inputShapes) {
		return errors.Wrapf(backends.ErrShapeMismatch, "%s takes %d inputs, %d given", n.opType, len(n.inputShapes), len(inputs))
	}
	concrete := make([]shapes.Shape, len(inputs))
	var isDynamic bool
	for ii, input := range inputs {
		if !input.Ok() {
			return errors.Wrapf(backends.ErrShapeMismatch, "%s input #%d is nil or finalized", n.opType, ii)
		}
		declared := n.inputShapes[ii]
		concrete[ii] = input.Shape()
		if concrete[ii].DType != declared.DType || !concrete[ii].Compatible(declared) {
			return errors.Wrapf(backends.ErrShapeMismatch, "%s input #%d has shape %s, but node was created for shape %s",
				n.opType, ii, concrete[ii], declared)
		}
		isDynamic = isDynamic || declared.IsDynamic()
	}
	if !isDynamic {
		return nil
	}
	switch n.opType {
	case backends.OpTypeScatterElementsUpdate:
		params := n.data.(*scatterElementsNode)
		_, _, err := shapeinference.ScatterElementsUpdateOp(concrete[0], concrete[1], concrete[2], params.axis)
		return err
	default:
		return errors.Wrapf(backends.ErrNotImplemented, "dynamic shapes not supported for %s", n.opType)
	}
}

// ScatterElementsUpdate implements backends.Backend. The axis must be an integer scalar, or an integer tensor
// with shape [1].
func (b *Backend) ScatterElementsUpdate(data, indices, updates, axis *tensors.Tensor, attrs backends.ScatterAttributes) (*tensors.Tensor, error) {
	if !axis.Ok() {
		return nil, errors.Wrapf(backends.ErrInvalidAxis, "axis tensor is nil or finalized")
	}
	if err := shapeinference.AxisOp(axis.Shape()); err != nil {
		return nil, err
	}
	axisValue := dispatchAxisValue.Dispatch(axis.DType(), axis.Flat()).(int)
	return b.ScatterElementsUpdateWithAxis(data, indices, updates, axisValue, attrs)
}

// ScatterElementsUpdateWithAxis implements backends.Backend.
func (b *Backend) ScatterElementsUpdateWithAxis(data, indices, updates *tensors.Tensor, axis int, attrs backends.ScatterAttributes) (*tensors.Tensor, error) {
	for _, input := range []struct {
		name   string
		tensor *tensors.Tensor
	}{{"data", data}, {"indices", indices}, {"updates", updates}} {
		if !input.tensor.Ok() {
			return nil, errors.Wrapf(backends.ErrShapeMismatch, "ScatterElementsUpdate: %s tensor is nil or finalized", input.name)
		}
	}
	node, err := b.NewScatterElementsUpdateNode(data.Shape(), indices.Shape(), updates.Shape(), axis, attrs)
	if err != nil {
		return nil, err
	}
	return b.Execute(node, []*tensors.Tensor{data, indices, updates}, nil)
}

var dispatchAxisValue = NewDTypeDispatcher("AxisValue")

func init() {
	dispatchAxisValue.Register(dtypes.Int8, axisValueGeneric[int8])
	dispatchAxisValue.Register(dtypes.Int16, axisValueGeneric[int16])
	dispatchAxisValue.Register(dtypes.Int32, axisValueGeneric[int32])
	dispatchAxisValue.Register(dtypes.Int64, axisValueGeneric[int64])
	dispatchAxisValue.Register(dtypes.Uint8, axisValueGeneric[uint8])
	dispatchAxisValue.Register(dtypes.Uint16, axisValueGeneric[uint16])
	dispatchAxisValue.Register(dtypes.Uint32, axisValueGeneric[uint32])
	dispatchAxisValue.Register(dtypes.Uint64, axisValueGeneric[uint64])
}

// axisValueGeneric returns the only value of the axis tensor as an int.
// Unsigned values that don't fit an int64 are returned as math.MaxInt, an invalid axis.
func axisValueGeneric[T PODIntegerConstraints](params ...any) any {
	value := params[0].([]T)[0]
	if value > 0 && int64(value) < 0 {
		return math.MaxInt
	}
	return int(value)
}
