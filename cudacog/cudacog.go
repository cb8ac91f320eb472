// Copyright 2025 The geocog Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cudacog decodes Cloud-Optimized GeoTIFFs straight into CUDA
// device memory using nvTIFF.
//
// The native binding is only compiled with the "cuda" build tag; use
// Available to probe for it. Decoded tensors live on the selected CUDA
// device and can be handed to downstream frameworks via ToDLPack without
// copying.
//
// # Basic Usage
//
//	data, err := os.ReadFile("scene.tif")
//	...
//	r, err := cudacog.NewReader(data, cudacog.WithDevice(0))
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	t, err := r.Decode(0) // default CUDA stream
//	if err != nil {
//	    return err
//	}
//	cap, err := t.ToDLPack() // capsule now owns the device buffer
package cudacog

import (
	internalcudacog "github.com/geocog/geocog/internal/cudacog"
	"github.com/geocog/geocog/internal/nvtiff"
)

// Reader drives one GPU decode. Each reader decodes at most once, so the
// device buffer always has exactly one owner.
type Reader = internalcudacog.Reader

// Option configures NewReader.
type Option = internalcudacog.Option

// ComputeStream is a CUDA stream handle. The zero value is the default
// stream.
type ComputeStream = nvtiff.ComputeStream

// Available reports whether the native nvTIFF binding is compiled in.
func Available() bool {
	return nvtiff.Available()
}

// NewReader parses TIFF bytes on the host and validates the sample layout.
// Device memory is not touched until Decode.
func NewReader(data []byte, opts ...Option) (*Reader, error) {
	return internalcudacog.NewReader(data, opts...)
}

// WithDevice selects the CUDA device ordinal. The default is device 0.
func WithDevice(ordinal int) Option {
	return internalcudacog.WithDevice(ordinal)
}
