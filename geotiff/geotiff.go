// Copyright 2025 The geocog Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package geotiff decodes Cloud-Optimized GeoTIFFs into tensors on the CPU.
//
// # Basic Usage
//
//	import (
//	    "os"
//
//	    "github.com/geocog/geocog/geotiff"
//	)
//
//	func load(path string) error {
//	    f, err := os.Open(path)
//	    if err != nil {
//	        return err
//	    }
//	    defer f.Close()
//
//	    r, err := geotiff.NewReader(f)
//	    if err != nil {
//	        return err
//	    }
//
//	    t, err := r.Decode() // (bands, height, width), dtype preserved
//	    if err != nil {
//	        return err
//	    }
//	    defer t.Close()
//
//	    tf, err := r.Transform() // affine geotransform
//	    ...
//	}
//
// Failures carry a cogerr.Kind so callers can tell malformed files apart
// from deliberately unsupported features.
package geotiff

import (
	"io"

	internalgeotiff "github.com/geocog/geocog/internal/geotiff"
	"github.com/geocog/geocog/tensor"
)

// Reader decodes one GeoTIFF: pixels at any resolution level, band count,
// element type, and the affine geotransform.
type Reader = internalgeotiff.Reader

// Affine is the pixel-to-world mapping (a, b, c, d, e, f):
//
//	x = c + a*col + b*row
//	y = f + d*col + e*row
type Affine = internalgeotiff.Affine

// NewReader parses the container structure of the stream. Pixels are not
// decoded until Decode or DecodeLevel is called.
func NewReader(r io.ReadSeeker) (*Reader, error) {
	return internalgeotiff.NewReader(r)
}

// Read decodes the full-resolution image of a GeoTIFF whose element type is
// known ahead of time. The file's actual type must match T exactly.
//
// Example:
//
//	t, err := geotiff.Read[uint16](f)
func Read[T tensor.DType](r io.ReadSeeker) (*tensor.Tensor, error) {
	return internalgeotiff.Read[T](r)
}
