package tensor

import (
	"fmt"
	"runtime"

	"github.com/geocog/geocog/dlpack"
)

// DLPack returns the DLPack encoding of the data type.
func (dt DataType) DLPack() dlpack.DataType {
	bits := uint8(dt.Size() * 8)
	switch dt {
	case Uint8, Uint16, Uint32, Uint64:
		return dlpack.DataType{Code: dlpack.TypeUint, Bits: bits, Lanes: 1}
	case Int8, Int16, Int32, Int64:
		return dlpack.DataType{Code: dlpack.TypeInt, Bits: bits, Lanes: 1}
	case Float32, Float64:
		return dlpack.DataType{Code: dlpack.TypeFloat, Bits: bits, Lanes: 1}
	default:
		panic("unknown data type")
	}
}

// DLPack returns the DLPack device descriptor.
func (d Device) DLPack() dlpack.Device {
	switch d.Kind {
	case KindCPU:
		return dlpack.Device{Type: dlpack.DeviceCPU}
	case KindCUDA:
		return dlpack.Device{Type: dlpack.DeviceCUDA, ID: int32(d.Ordinal)}
	default:
		panic("unknown device kind")
	}
}

// ToDLPack exports the tensor as a DLPack capsule.
//
// For device tensors this is a move: ownership of the buffer transfers to
// the capsule's deleter and the tensor is consumed. A second export, or an
// export after Close, fails. Host tensors stay usable; the capsule's deleter
// drops the reference that keeps the buffer reachable.
func (t *Tensor) ToDLPack() (*dlpack.Capsule, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, fmt.Errorf("tensor: export after Close")
	}
	if t.exported && !t.device.IsCPU() {
		return nil, fmt.Errorf("tensor: device buffer already exported")
	}

	shape := make([]int64, len(t.shape))
	strides := make([]int64, len(t.stride))
	for i, d := range t.shape {
		shape[i] = int64(d)
	}
	for i, s := range t.stride {
		strides[i] = int64(s)
	}

	var deleter func()
	if t.device.IsCPU() {
		// Pin the Go buffer until the consumer is done with the capsule.
		buf := t.data
		deleter = func() {
			runtime.KeepAlive(buf)
		}
	} else {
		deleter = t.free
		t.free = nil
	}
	t.exported = true

	return dlpack.New(t.DataPointer(), shape, strides, t.dtype.DLPack(), t.device.DLPack(), deleter), nil
}
