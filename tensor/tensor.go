// Copyright 2025 The geocog Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the dense tensor type the geocog decoders
// produce.
//
// # Overview
//
// A Tensor is a row-major, dense array with a fixed shape, dtype and
// device. Host tensors wrap a Go byte buffer; CUDA tensors wrap a device
// pointer plus a free function with move-only ownership. Either kind can
// be exported as a DLPack capsule for downstream array frameworks.
//
// # Basic Usage
//
//	import "github.com/geocog/geocog/tensor"
//
//	t, err := tensor.FromSlice([]uint16{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
//	if err != nil {
//	    return err
//	}
//	defer t.Close()
//
//	pixels := t.AsUint16() // zero-copy view
//	cap, _ := t.ToDLPack() // exchange capsule
//
// # Supported Data Types
//
// The ten primitive types a GeoTIFF sample can decode to, via the DType
// constraint: uint8..uint64, int8..int64, float32, float64.
//
// # Memory Management
//
// Tensor views are zero-copy. Close releases storage exactly once; a device
// buffer exported via ToDLPack is owned by the capsule from then on.
package tensor

import (
	"github.com/geocog/geocog/internal/tensor"
)

// Tensor is a dense row-major tensor on the host or on a CUDA device.
//
// Tensor provides:
//   - Shape and type information via Shape(), DType(), Device()
//   - Type-safe zero-copy data access via AsUint16(), AsFloat64(), etc.
//   - DLPack export via ToDLPack()
//   - Single-owner release semantics via Close()
type Tensor = tensor.Tensor

// Shape represents the dimensions of a tensor.
type Shape = tensor.Shape

// DataType represents runtime type information for tensors.
type DataType = tensor.DataType

// Device identifies where a tensor's memory lives.
type Device = tensor.Device

// DeviceKind identifies a class of compute device.
type DeviceKind = tensor.DeviceKind

// DType is a constraint for supported tensor element types.
type DType interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~int8 | ~int16 | ~int32 | ~int64 |
		~float32 | ~float64
}

// Supported data types for tensors.
const (
	Uint8   = tensor.Uint8
	Uint16  = tensor.Uint16
	Uint32  = tensor.Uint32
	Uint64  = tensor.Uint64
	Int8    = tensor.Int8
	Int16   = tensor.Int16
	Int32   = tensor.Int32
	Int64   = tensor.Int64
	Float32 = tensor.Float32
	Float64 = tensor.Float64
)

// Supported device kinds.
const (
	KindCPU  = tensor.KindCPU
	KindCUDA = tensor.KindCUDA
)

// CPU is the host device.
var CPU = tensor.CPU

// CUDA returns the CUDA device with the given ordinal.
func CUDA(ordinal int) Device {
	return tensor.CUDA(ordinal)
}

// New creates a zero-initialized host tensor with the given shape and type.
func New(shape Shape, dtype DataType) (*Tensor, error) {
	return tensor.New(shape, dtype)
}

// FromSlice wraps an existing slice as a host tensor without copying.
//
// Example:
//
//	t, err := tensor.FromSlice(pixels, tensor.Shape{bands, height, width})
func FromSlice[T DType](data []T, shape Shape) (*Tensor, error) {
	return tensor.FromSlice(data, shape)
}

// As interprets a host tensor's data as []T without copying.
// Panics if the dtype does not match T or the tensor is not on the host.
func As[T DType](t *Tensor) []T {
	return tensor.As[T](t)
}

// DataTypeOf infers the runtime DataType for a generic element type.
func DataTypeOf[T DType]() DataType {
	return tensor.DataTypeOf[T]()
}
