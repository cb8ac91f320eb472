// Copyright 2025 The geocog Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cogerr defines the error taxonomy shared by the CPU and GPU
// GeoTIFF decoders.
//
// Every failure in the decode pipeline is reported as an *Error carrying a
// Kind, so callers (and binding layers) can distinguish "this file is
// broken" from "this feature is not built" without string matching:
//
//	t, err := geotiff.NewReader(r)
//	if cogerr.IsKind(err, cogerr.Unimplemented) {
//	    // known-missing feature, e.g. rotated transforms
//	}
package cogerr

import (
	"errors"
	"fmt"
)

// Kind classifies a decode failure.
type Kind int

// Decode failure kinds.
const (
	// Io is a stream read or seek failure.
	Io Kind = iota
	// Container is a malformed TIFF structure or a tile/strip
	// decompression failure.
	Container
	// UnsupportedColorType is a band layout the decoder deliberately does
	// not support (e.g. CMYK, palette).
	UnsupportedColorType
	// UnsupportedSampleFormat is a non uint/int/float sample encoding
	// (e.g. complex numbers).
	UnsupportedSampleFormat
	// ShapeMismatch is a decoded element count inconsistent with the
	// declared width, height and band count.
	ShapeMismatch
	// MissingGeoTag means geocoordinate derivation cannot proceed because
	// ModelPixelScaleTag or ModelTiepointTag is absent or malformed.
	MissingGeoTag
	// UnsupportedTiepoint is a tiepoint whose reference pixel is not the
	// top-left corner.
	UnsupportedTiepoint
	// Unimplemented flags a known-missing feature (e.g. rotation support)
	// distinctly from a true format error.
	Unimplemented
	// DeviceFailure is a native GPU status code indicating an allocation,
	// context or decode failure.
	DeviceFailure
)

// String returns a short name for the kind.
func (k Kind) String() string {
	switch k {
	case Io:
		return "io"
	case Container:
		return "container"
	case UnsupportedColorType:
		return "unsupported color type"
	case UnsupportedSampleFormat:
		return "unsupported sample format"
	case ShapeMismatch:
		return "shape mismatch"
	case MissingGeoTag:
		return "missing geo tag"
	case UnsupportedTiepoint:
		return "unsupported tiepoint"
	case Unimplemented:
		return "unimplemented"
	case DeviceFailure:
		return "device failure"
	default:
		return "unknown"
	}
}

// Error is a typed decode failure. It optionally wraps an underlying cause
// (I/O errors, native status errors).
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode error (%s): %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("decode error (%s): %s", e.Kind, e.Msg)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// New returns a decode error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap returns a decode error of the given kind wrapping err.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// IsKind reports whether err is (or wraps) a decode error of the given kind.
func IsKind(err error, kind Kind) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == kind
}
