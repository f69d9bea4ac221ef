package simplego

import (
	"slices"

	"github.com/gomlx/scatterupdate/backends"
	"github.com/gomlx/scatterupdate/backends/shapeinference"
	"github.com/gomlx/scatterupdate/pkg/core/shapes"
	"github.com/pkg/errors"
)

// Node holds a validated operation, ready to be executed any number of times with Backend.Execute.
//
// Nodes are immutable after created, and can be executed concurrently.
type Node struct {
	opType backends.OpType

	// inputShapes as declared at creation, they may be dynamic.
	inputShapes []shapes.Shape

	// shape of the output, it may be dynamic.
	shape shapes.Shape

	// data for the specific node type.
	data any
}

// OpType returns the operation of the node.
func (n *Node) OpType() backends.OpType { return n.opType }

// Shape returns the output shape of the node. It may be dynamic, if the inputs shapes were dynamic.
func (n *Node) Shape() shapes.Shape { return n.shape.Clone() }

// InputShapes returns the shapes of the inputs given when the node was created.
func (n *Node) InputShapes() []shapes.Shape {
	cloned := make([]shapes.Shape, len(n.inputShapes))
	for ii, shape := range n.inputShapes {
		cloned[ii] = shape.Clone()
	}
	return cloned
}

// scatterElementsNode is attached to the Node.data field for ScatterElementsUpdate.
type scatterElementsNode struct {
	// axis is normalized to [0, rank-1].
	axis  int
	attrs backends.ScatterAttributes
}

// NewScatterElementsUpdateNode validates the shapes and attributes of a ScatterElementsUpdate operation,
// and returns a Node that can be executed with Execute.
//
// The shapes may be dynamic (with shapes.DimUnknown dimensions), in which case the inputs given to Execute
// must be compatible with them.
func (b *Backend) NewScatterElementsUpdateNode(data, indices, updates shapes.Shape, axis int, attrs backends.ScatterAttributes) (*Node, error) {
	output, normalizedAxis, err := shapeinference.ScatterElementsUpdateOp(data, indices, updates, axis)
	if err != nil {
		return nil, err
	}
	if err = shapeinference.ReductionOp(attrs.Reduction, data.DType); err != nil {
		return nil, err
	}
	if err = b.checkCapabilities(backends.OpTypeScatterElementsUpdate, data, indices, attrs); err != nil {
		return nil, err
	}
	return &Node{
		opType:      backends.OpTypeScatterElementsUpdate,
		inputShapes: []shapes.Shape{data.Clone(), indices.Clone(), updates.Clone()},
		shape:       output,
		data:        &scatterElementsNode{axis: normalizedAxis, attrs: attrs},
	}, nil
}

// checkCapabilities returns an error wrapping backends.ErrNotImplemented if the backend doesn't support
// the operation for the given shapes and attributes.
func (b *Backend) checkCapabilities(opType backends.OpType, data, indices shapes.Shape, attrs backends.ScatterAttributes) error {
	capabilities := b.Capabilities()
	switch {
	case !capabilities.Operations[opType]:
		return errors.Wrapf(backends.ErrNotImplemented, "backend %q doesn't support operation %s", BackendName, opType)
	case !capabilities.DTypes[data.DType]:
		return errors.Wrapf(backends.ErrNotImplemented, "backend %q doesn't support data dtype %s for %s", BackendName, data.DType, opType)
	case !capabilities.IndicesDTypes[indices.DType]:
		return errors.Wrapf(backends.ErrNotImplemented, "backend %q doesn't support indices dtype %s for %s", BackendName, indices.DType, opType)
	case !capabilities.Reductions[attrs.Reduction]:
		return errors.Wrapf(backends.ErrNotImplemented, "backend %q doesn't support reduction %s for %s", BackendName, attrs.Reduction, opType)
	case !capabilities.SupportsDynamicShapes && slices.ContainsFunc([]shapes.Shape{data, indices}, shapes.Shape.IsDynamic):
		return errors.Wrapf(backends.ErrNotImplemented, "backend %q doesn't support dynamic shapes for %s", BackendName, opType)
	}
	return nil
}

// InferShape runs only the shape inference of ScatterElementsUpdate, it accepts dynamic shapes.
func (b *Backend) InferShape(data, indices, updates shapes.Shape, axis int, attrs backends.ScatterAttributes) (shapes.Shape, error) {
	node, err := b.NewScatterElementsUpdateNode(data, indices, updates, axis, attrs)
	if err != nil {
		return shapes.Invalid(), err
	}
	return node.Shape(), nil
}
