// Copyright 2025 The geocog Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package dlpack describes tensors in the DLPack tensor-exchange layout.
//
// A Capsule is a versioned, self-describing view of a tensor buffer (host or
// device memory) together with a deleter that releases the buffer. It is the
// hand-off format between the decoders and downstream array frameworks: the
// consumer that receives the capsule becomes responsible for calling Close.
package dlpack

import (
	"fmt"
	"sync"
	"unsafe"
)

// DLPack descriptor version implemented by this package.
const (
	VersionMajor = 1
	VersionMinor = 0
)

// DeviceType identifies the memory space a capsule points into.
type DeviceType int32

// Device type codes from the DLPack ABI.
const (
	DeviceCPU  DeviceType = 1
	DeviceCUDA DeviceType = 2
)

// String returns the conventional name for the device type.
func (t DeviceType) String() string {
	switch t {
	case DeviceCPU:
		return "kDLCPU"
	case DeviceCUDA:
		return "kDLCUDA"
	default:
		return fmt.Sprintf("DeviceType(%d)", int32(t))
	}
}

// Device locates a capsule's memory: a device type plus an ordinal.
type Device struct {
	Type DeviceType
	ID   int32
}

// Type codes for DataType.Code from the DLPack ABI.
const (
	TypeInt   uint8 = 0
	TypeUint  uint8 = 1
	TypeFloat uint8 = 2
)

// DataType describes the element encoding: a type-class code, the width in
// bits, and the vector lane count (1 for scalar elements).
type DataType struct {
	Code  uint8
	Bits  uint8
	Lanes uint16
}

// String returns a name like "uint16" or "float64".
func (dt DataType) String() string {
	var class string
	switch dt.Code {
	case TypeInt:
		class = "int"
	case TypeUint:
		class = "uint"
	case TypeFloat:
		class = "float"
	default:
		class = fmt.Sprintf("code%d", dt.Code)
	}
	if dt.Lanes != 1 {
		return fmt.Sprintf("%s%dx%d", class, dt.Bits, dt.Lanes)
	}
	return fmt.Sprintf("%s%d", class, dt.Bits)
}

// Capsule is a managed tensor descriptor. Shape and Strides are element
// counts (not bytes), row-major. Data points at the first element; for CUDA
// capsules it is a device pointer and must not be dereferenced on the host.
//
// The capsule owns the buffer it describes. Close releases it exactly once;
// it is safe to call Close multiple times and from a finalizer.
type Capsule struct {
	VersionMajor uint32
	VersionMinor uint32
	Device       Device
	DType        DataType
	Shape        []int64
	Strides      []int64
	Data         unsafe.Pointer
	ByteOffset   uint64

	deleter func()
	once    sync.Once
}

// New builds a capsule over data with the given deleter. The deleter may be
// nil for buffers whose lifetime is managed elsewhere.
func New(data unsafe.Pointer, shape, strides []int64, dtype DataType, device Device, deleter func()) *Capsule {
	return &Capsule{
		VersionMajor: VersionMajor,
		VersionMinor: VersionMinor,
		Device:       device,
		DType:        dtype,
		Shape:        shape,
		Strides:      strides,
		Data:         data,
		ByteOffset:   0,
		deleter:      deleter,
	}
}

// NumDims returns the number of dimensions.
func (c *Capsule) NumDims() int {
	return len(c.Shape)
}

// DeviceInfo returns the device type code and ordinal, as consumers query
// them before deciding how to import the buffer.
func (c *Capsule) DeviceInfo() (DeviceType, int32) {
	return c.Device.Type, c.Device.ID
}

// Close runs the deleter. Only the first call has an effect.
func (c *Capsule) Close() {
	c.once.Do(func() {
		if c.deleter != nil {
			c.deleter()
		}
		c.Data = nil
	})
}
