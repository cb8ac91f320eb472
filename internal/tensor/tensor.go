package tensor

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/geocog/geocog/cogerr"
)

// Tensor is a dense row-major tensor backed either by host memory (a byte
// buffer) or by device memory (a raw pointer plus a free function). Shape,
// strides, dtype and device are fixed at construction.
//
// Device tensors are move-only: exactly one owner holds the free function at
// any time. Close releases the storage once; ToDLPack transfers ownership of
// a device buffer into the capsule, after which the tensor no longer owns it.
type Tensor struct {
	shape  Shape
	stride []int
	dtype  DataType
	device Device

	data []byte         // host storage
	ptr  unsafe.Pointer // device storage
	free func()         // device storage release, nil once moved

	mu       sync.Mutex
	closed   bool
	exported bool
}

// New creates a zero-initialized host tensor with the given shape and type.
func New(shape Shape, dtype DataType) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, cogerr.Wrap(cogerr.ShapeMismatch, err, "invalid shape %v", shape)
	}

	byteSize := shape.NumElements() * dtype.Size()
	return &Tensor{
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		device: CPU,
		data:   make([]byte, byteSize),
	}, nil
}

// FromSlice wraps an existing slice as a host tensor without copying.
// The tensor aliases the slice's memory; the caller must not resize it.
func FromSlice[T DType](data []T, shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, cogerr.Wrap(cogerr.ShapeMismatch, err, "invalid shape %v", shape)
	}
	if len(data) != shape.NumElements() {
		return nil, cogerr.New(cogerr.ShapeMismatch,
			"failed to convert vector of size %d to shape %v", len(data), shape)
	}

	dtype := DataTypeOf[T]()
	raw := unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(data)*dtype.Size())
	return &Tensor{
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		device: CPU,
		data:   raw,
	}, nil
}

// NewDevice wraps a device allocation as a tensor. free releases the
// allocation and is called at most once, by Close or by the DLPack deleter.
func NewDevice(ptr unsafe.Pointer, shape Shape, dtype DataType, device Device, free func()) (*Tensor, error) {
	if device.IsCPU() {
		return nil, cogerr.New(cogerr.DeviceFailure, "NewDevice called with host device")
	}
	if err := shape.Validate(); err != nil {
		return nil, cogerr.Wrap(cogerr.ShapeMismatch, err, "invalid shape %v", shape)
	}

	return &Tensor{
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		device: device,
		ptr:    ptr,
		free:   free,
	}, nil
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// Strides returns the tensor's memory strides in elements.
func (t *Tensor) Strides() []int {
	return t.stride
}

// DType returns the tensor's data type.
func (t *Tensor) DType() DataType {
	return t.dtype
}

// Device returns where the tensor's memory lives.
func (t *Tensor) Device() Device {
	return t.device
}

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int {
	return t.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (t *Tensor) ByteSize() int {
	return t.NumElements() * t.dtype.Size()
}

// Data returns the raw host byte slice.
// Panics for device tensors; use DataPointer instead.
func (t *Tensor) Data() []byte {
	if !t.device.IsCPU() {
		panic(fmt.Sprintf("tensor is on %s, host data unavailable", t.device))
	}
	return t.data
}

// DataPointer returns the address of the first element. For CUDA tensors
// this is a device pointer and must not be dereferenced on the host.
func (t *Tensor) DataPointer() unsafe.Pointer {
	if t.device.IsCPU() {
		if len(t.data) == 0 {
			return nil
		}
		return unsafe.Pointer(&t.data[0])
	}
	return t.ptr
}

// As interprets a host tensor's data as []T without copying.
// Panics if the dtype does not match T or the tensor is not on the host.
func As[T DType](t *Tensor) []T {
	want := DataTypeOf[T]()
	if t.dtype != want {
		panic(fmt.Sprintf("tensor dtype is %s, not %s", t.dtype, want))
	}
	data := t.Data()
	//nolint:gosec // unsafe.Slice for zero-copy views, length fixed by NumElements()
	return unsafe.Slice((*T)(unsafe.Pointer(&data[0])), t.NumElements())
}

// AsUint8 interprets the data as []uint8.
// Panics if the tensor's dtype is not Uint8.
func (t *Tensor) AsUint8() []uint8 { return As[uint8](t) }

// AsUint16 interprets the data as []uint16.
// Panics if the tensor's dtype is not Uint16.
func (t *Tensor) AsUint16() []uint16 { return As[uint16](t) }

// AsUint32 interprets the data as []uint32.
// Panics if the tensor's dtype is not Uint32.
func (t *Tensor) AsUint32() []uint32 { return As[uint32](t) }

// AsUint64 interprets the data as []uint64.
// Panics if the tensor's dtype is not Uint64.
func (t *Tensor) AsUint64() []uint64 { return As[uint64](t) }

// AsInt8 interprets the data as []int8.
// Panics if the tensor's dtype is not Int8.
func (t *Tensor) AsInt8() []int8 { return As[int8](t) }

// AsInt16 interprets the data as []int16.
// Panics if the tensor's dtype is not Int16.
func (t *Tensor) AsInt16() []int16 { return As[int16](t) }

// AsInt32 interprets the data as []int32.
// Panics if the tensor's dtype is not Int32.
func (t *Tensor) AsInt32() []int32 { return As[int32](t) }

// AsInt64 interprets the data as []int64.
// Panics if the tensor's dtype is not Int64.
func (t *Tensor) AsInt64() []int64 { return As[int64](t) }

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (t *Tensor) AsFloat32() []float32 { return As[float32](t) }

// AsFloat64 interprets the data as []float64.
// Panics if the tensor's dtype is not Float64.
func (t *Tensor) AsFloat64() []float64 { return As[float64](t) }

// Close releases the tensor's storage. Only the first call has an effect.
// A device buffer already moved into a DLPack capsule is not touched.
func (t *Tensor) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true

	if t.free != nil {
		t.free()
		t.free = nil
	}
	t.data = nil
	t.ptr = nil
}
