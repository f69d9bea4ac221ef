package simplego

import (
	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/gomlx/scatterupdate/backends"
	"github.com/gomlx/scatterupdate/pkg/core/shapes"
	"github.com/pkg/errors"
	"github.com/x448/float16"
	"k8s.io/klog/v2"
)

var (
	dispatchScatterDestinations = NewDTypeDispatcher("ScatterDestinations")
	dispatchScatterAssign       = NewDTypeDispatcher("ScatterAssign")
	dispatchScatterReduce       = NewDTypeDispatcher("ScatterReduce")
)

func init() {
	nodeExecutors[backends.OpTypeScatterElementsUpdate] = execScatterElementsUpdate

	// Indices.
	dispatchScatterDestinations.Register(dtypes.Int8, scatterDestinationsGeneric[int8])
	dispatchScatterDestinations.Register(dtypes.Int16, scatterDestinationsGeneric[int16])
	dispatchScatterDestinations.Register(dtypes.Int32, scatterDestinationsGeneric[int32])
	dispatchScatterDestinations.Register(dtypes.Int64, scatterDestinationsGeneric[int64])
	dispatchScatterDestinations.Register(dtypes.Uint8, scatterDestinationsGeneric[uint8])
	dispatchScatterDestinations.Register(dtypes.Uint16, scatterDestinationsGeneric[uint16])
	dispatchScatterDestinations.Register(dtypes.Uint32, scatterDestinationsGeneric[uint32])
	dispatchScatterDestinations.Register(dtypes.Uint64, scatterDestinationsGeneric[uint64])

	// Plain updates: any dtype.
	dispatchScatterAssign.Register(dtypes.Bool, execScatterAssignGeneric[bool])
	dispatchScatterAssign.Register(dtypes.Int8, execScatterAssignGeneric[int8])
	dispatchScatterAssign.Register(dtypes.Int16, execScatterAssignGeneric[int16])
	dispatchScatterAssign.Register(dtypes.Int32, execScatterAssignGeneric[int32])
	dispatchScatterAssign.Register(dtypes.Int64, execScatterAssignGeneric[int64])
	dispatchScatterAssign.Register(dtypes.Uint8, execScatterAssignGeneric[uint8])
	dispatchScatterAssign.Register(dtypes.Uint16, execScatterAssignGeneric[uint16])
	dispatchScatterAssign.Register(dtypes.Uint32, execScatterAssignGeneric[uint32])
	dispatchScatterAssign.Register(dtypes.Uint64, execScatterAssignGeneric[uint64])
	dispatchScatterAssign.Register(dtypes.Float16, execScatterAssignGeneric[float16.Float16])
	dispatchScatterAssign.Register(dtypes.BFloat16, execScatterAssignGeneric[bfloat16.BFloat16])
	dispatchScatterAssign.Register(dtypes.Float32, execScatterAssignGeneric[float32])
	dispatchScatterAssign.Register(dtypes.Float64, execScatterAssignGeneric[float64])

	// Reductions.
	dispatchScatterReduce.Register(dtypes.Bool, execScatterReduceBool)
	dispatchScatterReduce.Register(dtypes.Int8, execScatterReduceIntegerGeneric[int8])
	dispatchScatterReduce.Register(dtypes.Int16, execScatterReduceIntegerGeneric[int16])
	dispatchScatterReduce.Register(dtypes.Int32, execScatterReduceIntegerGeneric[int32])
	dispatchScatterReduce.Register(dtypes.Int64, execScatterReduceIntegerGeneric[int64])
	dispatchScatterReduce.Register(dtypes.Uint8, execScatterReduceIntegerGeneric[uint8])
	dispatchScatterReduce.Register(dtypes.Uint16, execScatterReduceIntegerGeneric[uint16])
	dispatchScatterReduce.Register(dtypes.Uint32, execScatterReduceIntegerGeneric[uint32])
	dispatchScatterReduce.Register(dtypes.Uint64, execScatterReduceIntegerGeneric[uint64])
	dispatchScatterReduce.Register(dtypes.Float32, execScatterReduceFloatGeneric[float32])
	dispatchScatterReduce.Register(dtypes.Float64, execScatterReduceFloatGeneric[float64])
	dispatchScatterReduce.Register(dtypes.Float16, func(params ...any) any {
		execScatterReduceHalf(params[0].(*scatterKernelParams), float16.Fromfloat32)
		return nil
	})
	dispatchScatterReduce.Register(dtypes.BFloat16, func(params ...any) any {
		execScatterReduceHalf(params[0].(*scatterKernelParams), bfloat16.FromFloat32)
		return nil
	})
}

// scatterKernelParams are passed to the kernels dispatched by dtype.
type scatterKernelParams struct {
	backend         *Backend
	output, updates *Buffer

	// destinations holds, for each element of updates (in row-major order), the flat index in output where
	// it goes to.
	destinations []int64

	// counts of updates received for each output position. Only set for reductions that need it:
	// ReductionMean, or when the initial value is ignored.
	counts []int64

	attrs backends.ScatterAttributes
}

// execScatterElementsUpdate implements the ScatterElementsUpdate op.
//
// The destination of each update is calculated (and validated) first, before the output is allocated, so
// an out-of-range index never exposes a partially updated output.
func execScatterElementsUpdate(backend *Backend, node *Node, inputs []*Buffer, inputsOwned []bool) (*Buffer, error) {
	data, indices, updates := inputs[0], inputs[1], inputs[2]
	params := node.data.(*scatterElementsNode)

	destinationsBuf := backend.getBuffer(dtypes.Int64, indices.shape.Size())
	defer backend.putBuffer(destinationsBuf)
	destinations := destinationsBuf.flat.([]int64)
	result := dispatchScatterDestinations.Dispatch(indices.shape.DType, indices, data.shape, params.axis, destinations)
	if err, _ := result.(error); err != nil {
		return nil, err
	}

	// Figure out what the output buffer is going to be.
	var output *Buffer
	if inputsOwned[0] && backend.allowReuse {
		output = data
		inputs[0] = nil
		klog.V(2).Infof("ScatterElementsUpdate: reusing donated data buffer %s for output", data.shape)
	} else {
		output = backend.cloneBuffer(data)
	}
	if klog.V(1).Enabled() {
		klog.Infof("ScatterElementsUpdate(data=%s, indices=%s, updates=%s, axis=%d, %s): output %s",
			data.shape, indices.shape, updates.shape, params.axis, params.attrs,
			humanize.Bytes(uint64(output.shape.Memory())))
	}

	kernelParams := &scatterKernelParams{
		backend:      backend,
		output:       output,
		updates:      updates,
		destinations: destinations,
		attrs:        params.attrs,
	}
	if params.attrs.Reduction == backends.ReductionNone {
		dispatchScatterAssign.Dispatch(output.shape.DType, kernelParams)
		return output, nil
	}
	if params.attrs.IgnoreInitValue || params.attrs.Reduction == backends.ReductionMean {
		countsBuf := backend.getZeroedBuffer(dtypes.Int64, output.shape.Size())
		defer backend.putBuffer(countsBuf)
		kernelParams.counts = countsBuf.flat.([]int64)
	}
	dispatchScatterReduce.Dispatch(output.shape.DType, kernelParams)
	return output, nil
}

// scatterDestinationsGeneric calculates the flat destination of every element of indices, and checks that
// the indices are in range. It returns an error wrapping backends.ErrIndexOutOfRange, or nil.
//
// For the position P in indices, the destination Q is the same as P, except on the axis, where Q[axis] = indices[P].
func scatterDestinationsGeneric[I PODIntegerConstraints](params ...any) any {
	indices := params[0].(*Buffer)
	dataShape := params[1].(shapes.Shape)
	axis := params[2].(int)
	destinations := params[3].([]int64)

	indicesFlat := indices.flat.([]I)
	dataStrides := dataShape.Strides()
	axisDim := int64(dataShape.Dimensions[axis])
	for flatIdx, position := range indices.shape.Iter() {
		target := int64(indicesFlat[flatIdx])
		if target < 0 || target >= axisDim {
			return errors.Wrapf(backends.ErrIndexOutOfRange, "indices%v=%d is out of range [0, %d) for axis %d of data %s",
				position, indicesFlat[flatIdx], axisDim, axis, dataShape)
		}
		var destination int64
		for d, coord := range position {
			if d == axis {
				destination += target * int64(dataStrides[d])
			} else {
				destination += int64(coord * dataStrides[d])
			}
		}
		destinations[flatIdx] = destination
	}
	return nil
}

// execScatterAssignGeneric overwrites the output with the updates. The last update to a position wins.
func execScatterAssignGeneric[T SupportedTypesConstraints](params ...any) any {
	p := params[0].(*scatterKernelParams)
	outputFlat := p.output.flat.([]T)
	updatesFlat := p.updates.flat.([]T)
	for srcIdx, dst := range p.destinations {
		outputFlat[dst] = updatesFlat[srcIdx]
	}
	return nil
}

// scatterReduce combines the updates into the output, in row-major order of the updates.
//
// If p.counts is set, it counts the updates per position. And if the initial values are ignored, the first
// update to a position overwrites the value there.
func scatterReduce[T any](p *scatterKernelParams, outputFlat, updatesFlat []T, combine func(a, b T) T) {
	counts := p.counts
	ignoreInit := p.attrs.IgnoreInitValue
	for srcIdx, dst := range p.destinations {
		update := updatesFlat[srcIdx]
		if counts == nil {
			outputFlat[dst] = combine(outputFlat[dst], update)
			continue
		}
		if ignoreInit && counts[dst] == 0 {
			outputFlat[dst] = update
		} else {
			outputFlat[dst] = combine(outputFlat[dst], update)
		}
		counts[dst]++
	}
}

// scatterMean divides the sums in the output by the number of values summed, for the positions that received
// any update.
func scatterMean[T any](p *scatterKernelParams, outputFlat []T, divide func(sum T, n int64) T) {
	for dst, count := range p.counts {
		if count == 0 {
			continue
		}
		if !p.attrs.IgnoreInitValue {
			count++
		}
		outputFlat[dst] = divide(outputFlat[dst], count)
	}
}

// numericCombiner returns the function that combines two values for the reduction.
// ReductionMean sums, and the division is done at the end by scatterMean.
func numericCombiner[T PODIntegerConstraints | PODFloatConstraints](reduction backends.ReductionType) func(a, b T) T {
	switch reduction {
	case backends.ReductionSum, backends.ReductionMean:
		return func(a, b T) T { return a + b }
	case backends.ReductionProd:
		return func(a, b T) T { return a * b }
	case backends.ReductionMin:
		return func(a, b T) T { return min(a, b) }
	case backends.ReductionMax:
		return func(a, b T) T { return max(a, b) }
	default:
		exceptions.Panicf("unsupported reduction %s for ScatterElementsUpdate", reduction)
		return nil
	}
}

func execScatterReduceIntegerGeneric[T PODIntegerConstraints](params ...any) any {
	p := params[0].(*scatterKernelParams)
	outputFlat := p.output.flat.([]T)
	scatterReduce(p, outputFlat, p.updates.flat.([]T), numericCombiner[T](p.attrs.Reduction))
	if p.attrs.Reduction == backends.ReductionMean {
		scatterMean(p, outputFlat, floorDiv[T])
	}
	return nil
}

// floorDiv divides rounding towards negative infinity.
func floorDiv[T PODIntegerConstraints](sum T, n int64) T {
	var zero T
	if ^zero > 0 {
		// Unsigned.
		return T(uint64(sum) / uint64(n))
	}
	s := int64(sum)
	q := s / n
	if s%n != 0 && s < 0 {
		q--
	}
	return T(q)
}

func execScatterReduceFloatGeneric[T PODFloatConstraints](params ...any) any {
	p := params[0].(*scatterKernelParams)
	outputFlat := p.output.flat.([]T)
	scatterReduceFloat(p, outputFlat, p.updates.flat.([]T))
	return nil
}

func scatterReduceFloat[T PODFloatConstraints](p *scatterKernelParams, outputFlat, updatesFlat []T) {
	scatterReduce(p, outputFlat, updatesFlat, numericCombiner[T](p.attrs.Reduction))
	if p.attrs.Reduction == backends.ReductionMean {
		scatterMean(p, outputFlat, func(sum T, n int64) T { return sum / T(n) })
	}
}

// execScatterReduceHalf converts the values to float32 to reduce, and then back to the half-precision type.
func execScatterReduceHalf[T HalfPrecisionConstraints](p *scatterKernelParams, fromFloat32 func(float32) T) {
	outputFlat := p.output.flat.([]T)
	updatesFlat := p.updates.flat.([]T)
	outputBuf := p.backend.getBuffer(dtypes.Float32, len(outputFlat))
	defer p.backend.putBuffer(outputBuf)
	updatesBuf := p.backend.getBuffer(dtypes.Float32, len(updatesFlat))
	defer p.backend.putBuffer(updatesBuf)

	outputF32 := outputBuf.flat.([]float32)
	for ii, v := range outputFlat {
		outputF32[ii] = v.Float32()
	}
	updatesF32 := updatesBuf.flat.([]float32)
	for ii, v := range updatesFlat {
		updatesF32[ii] = v.Float32()
	}
	scatterReduceFloat(p, outputF32, updatesF32)
	for ii, v := range outputF32 {
		outputFlat[ii] = fromFloat32(v)
	}
}

// execScatterReduceBool reduces booleans: ReductionSum and ReductionMax are a logical or,
// ReductionProd and ReductionMin are a logical and.
func execScatterReduceBool(params ...any) any {
	p := params[0].(*scatterKernelParams)
	var combine func(a, b bool) bool
	switch p.attrs.Reduction {
	case backends.ReductionSum, backends.ReductionMax:
		combine = func(a, b bool) bool { return a || b }
	case backends.ReductionProd, backends.ReductionMin:
		combine = func(a, b bool) bool { return a && b }
	default:
		exceptions.Panicf("reduction %s not supported for %s", p.attrs.Reduction, dtypes.Bool)
	}
	scatterReduce(p, p.output.flat.([]bool), p.updates.flat.([]bool), combine)
	return nil
}
