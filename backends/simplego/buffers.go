package simplego

import (
	"reflect"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/scatterupdate/pkg/core/shapes"
	"github.com/gomlx/scatterupdate/pkg/core/tensors"
	"k8s.io/klog/v2"
)

// Buffer for SimpleGo backend holds a shape and a reference to the flat data.
//
// The flat data may be borrowed from a caller's tensor (read-only), or owned by the buffer, in which case
// it can be reused for the output or given back to the pool.
type Buffer struct {
	shape shapes.Shape
	valid bool

	// flat is always a slice of the underlying data type (shape.DType).
	flat any
}

type bufferPoolKey struct {
	dtype  dtypes.DType
	length int
}

// getBufferPool for given dtype/length.
func (b *Backend) getBufferPool(dtype dtypes.DType, length int) *sync.Pool {
	key := bufferPoolKey{dtype: dtype, length: length}
	poolInterface, ok := b.bufferPools.Load(key)
	if !ok {
		poolInterface, _ = b.bufferPools.LoadOrStore(key, &sync.Pool{
			New: func() interface{} {
				return &Buffer{
					flat:  reflect.MakeSlice(reflect.SliceOf(dtype.GoType()), length, length).Interface(),
					shape: shapes.Make(dtype, length),
				}
			},
		})
	}
	return poolInterface.(*sync.Pool)
}

// getBuffer from backend pool of buffers. The contents of the buffer are undefined.
// Its shape is reset to a rank-1 shape with the given length (recycled buffers may carry any shape
// of the same size), callers usually overwrite it.
func (b *Backend) getBuffer(dtype dtypes.DType, length int) *Buffer {
	if !b.usePool {
		return &Buffer{
			flat:  reflect.MakeSlice(reflect.SliceOf(dtype.GoType()), length, length).Interface(),
			shape: shapes.Make(dtype, length),
			valid: true,
		}
	}
	pool := b.getBufferPool(dtype, length)
	buf := pool.Get().(*Buffer)
	buf.shape = shapes.Make(dtype, length)
	buf.valid = true
	return buf
}

// getZeroedBuffer is like getBuffer, but the contents are set to zero.
func (b *Backend) getZeroedBuffer(dtype dtypes.DType, length int) *Buffer {
	buf := b.getBuffer(dtype, length)
	reflect.ValueOf(buf.flat).Clear()
	return buf
}

// putBuffer back into the backend pool of buffers.
// After this any references to buffer should be dropped.
func (b *Backend) putBuffer(buffer *Buffer) {
	if buffer == nil || !buffer.shape.Ok() || !buffer.valid {
		return
	}
	buffer.valid = false
	if !b.usePool || b.isFinalized.Load() {
		buffer.flat = nil
		return
	}
	pool := b.getBufferPool(buffer.shape.DType, buffer.shape.Size())
	pool.Put(buffer)
}

// copyFlat assumes both flat slices are of the same underlying type.
func copyFlat(flatDst, flatSrc any) {
	reflect.Copy(reflect.ValueOf(flatDst), reflect.ValueOf(flatSrc))
}

// cloneBuffer using the pool to allocate a new one.
func (b *Backend) cloneBuffer(buffer *Buffer) *Buffer {
	if buffer == nil || buffer.flat == nil || !buffer.shape.Ok() || !buffer.valid {
		// the buffer is already empty.
		var issues []string
		if buffer != nil {
			if buffer.flat == nil {
				issues = append(issues, "buffer.flat was nil")
			}
			if !buffer.shape.Ok() {
				issues = append(issues, "buffer.shape was invalid")
			}
			if !buffer.valid {
				issues = append(issues, "buffer was marked as invalid")
			}
		} else {
			issues = append(issues, "buffer was nil")
		}
		exceptions.Panicf("cloneBuffer(%p): %s -- buffer was already finalized!?\n", buffer, strings.Join(issues, ", "))
		return nil
	}
	newBuffer := b.getBuffer(buffer.shape.DType, buffer.shape.Size())
	newBuffer.shape = buffer.shape.Clone()
	copyFlat(newBuffer.flat, buffer.flat)
	return newBuffer
}

// borrowTensor returns a buffer that points to the tensor values, without copying.
// The buffer must not be modified or given back to the pool.
func borrowTensor(t *tensors.Tensor) *Buffer {
	return &Buffer{shape: t.Shape(), flat: t.Flat(), valid: true}
}

// takeTensor returns an owned buffer with the tensor values. The tensor is invalidated.
func takeTensor(t *tensors.Tensor) *Buffer {
	shape := t.Shape().Clone()
	return &Buffer{shape: shape, flat: t.TakeFlat(), valid: true}
}

// bufferToTensor transfers the ownership of the buffer values to a new tensor.
// The buffer is invalidated.
func bufferToTensor(buffer *Buffer) *tensors.Tensor {
	t := tensors.FromFlat(buffer.shape, buffer.flat)
	buffer.flat = nil
	buffer.valid = false
	return t
}

// Recycle gives back the storage of the tensor to the pool of buffers, and finalizes the tensor.
// It is safe to use on any tensor, not only on those created by the backend, but the tensor must not be
// used afterward.
func (b *Backend) Recycle(t *tensors.Tensor) {
	if !t.Ok() {
		klog.Warningf("Recycle() called on a nil or finalized tensor, ignored")
		return
	}
	if !b.usePool {
		t.Finalize()
		return
	}
	buffer := takeTensor(t)
	klog.V(2).Infof("Recycle(%s): %s back to the pool", buffer.shape, humanize.Bytes(uint64(buffer.shape.Memory())))
	b.putBuffer(buffer)
}
