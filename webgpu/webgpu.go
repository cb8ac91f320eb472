// Copyright 2025 The geocog Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu uploads decoded host tensors into WebGPU storage buffers,
// for consumers that post-process rasters on the GPU without CUDA.
package webgpu

import (
	"fmt"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/geocog/geocog/tensor"
)

// Uploader owns a WebGPU device and copies tensors into storage buffers.
type Uploader struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
}

// Available reports whether a WebGPU device can be initialized.
func Available() bool {
	u, err := NewUploader()
	if err != nil {
		return false
	}
	u.Release()
	return true
}

// NewUploader initializes a WebGPU instance, adapter and device.
// Returns an error if the wgpu native library or a GPU is not available.
func NewUploader() (uploader *Uploader, err error) {
	// Recover from panic if the wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			uploader = nil
			err = fmt.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	instance, instanceErr := wgpu.CreateInstance(nil)
	if instanceErr != nil {
		return nil, fmt.Errorf("webgpu: failed to create instance: %w", instanceErr)
	}
	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request adapter: %w", adapterErr)
	}

	device, deviceErr := adapter.RequestDevice(nil)
	if deviceErr != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request device: %w", deviceErr)
	}

	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to get queue")
	}

	return &Uploader{
		instance: instance,
		adapter:  adapter,
		device:   device,
		queue:    queue,
	}, nil
}

// Upload copies a host tensor into a new storage buffer and returns it. The
// caller releases the buffer when done. WebGPU requires buffer sizes in
// whole 4-byte words; the tail of an unaligned tensor is zero padded.
func (u *Uploader) Upload(t *tensor.Tensor) (*wgpu.Buffer, error) {
	if !t.Device().IsCPU() {
		return nil, fmt.Errorf("webgpu: tensor is on %s, only host tensors can be uploaded", t.Device())
	}

	data := t.Data()
	size := uint64((len(data) + 3) &^ 3)

	buffer := u.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mapped := unsafe.Slice((*byte)(mappedPtr), size)
	copy(mapped, data)
	buffer.Unmap()

	return buffer, nil
}

// Release frees the device, adapter and instance.
func (u *Uploader) Release() {
	if u.device != nil {
		u.device.Release()
		u.device = nil
	}
	if u.adapter != nil {
		u.adapter.Release()
		u.adapter = nil
	}
	if u.instance != nil {
		u.instance.Release()
		u.instance = nil
	}
}
