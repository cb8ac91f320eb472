// Package nvtiff defines the contract with the native nvTIFF + CUDA runtime
// used for GPU-side GeoTIFF decoding.
//
// The Engine interface mirrors the native call sequence one step per method:
// parse on the host, query file info, allocate device memory, create a
// decoder bound to a CUDA stream, check support, decode. The production
// implementation is a cgo binding built with the "cuda" tag; everything
// above this package talks only to Engine, so decode logic is testable
// without a GPU.
package nvtiff

import "fmt"

// FileInfo is the file-level metadata nvTIFF reports after parsing.
type FileInfo struct {
	ImageWidth      uint32
	ImageHeight     uint32
	SamplesPerPixel uint16
	BitsPerPixel    uint16
	BitsPerSample   []uint16
	SampleFormat    []uint32
}

// Sample format codes, as in the TIFF SampleFormat tag.
const (
	SampleFormatUint         = 1
	SampleFormatInt          = 2
	SampleFormatFloat        = 3
	SampleFormatVoid         = 4
	SampleFormatComplexInt   = 5
	SampleFormatComplexFloat = 6
)

// Native status codes.
const (
	StatusSuccess          = 0
	StatusNotInitialized   = 1
	StatusInvalidParameter = 2
	StatusBadTIFF          = 3
	StatusNotSupported     = 4
	StatusAllocatorFailure = 5
	StatusExecutionFailed  = 6
	StatusArchMismatch     = 7
	StatusInternalError    = 8
	StatusNvcompNotFound   = 9
)

// StatusError is a non-success status from a native call.
type StatusError struct {
	Op   string
	Code int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("nvtiff: %s returned status %d (%s)", e.Op, e.Code, statusName(e.Code))
}

func statusName(code int) string {
	switch code {
	case StatusSuccess:
		return "success"
	case StatusNotInitialized:
		return "not initialized"
	case StatusInvalidParameter:
		return "invalid parameter"
	case StatusBadTIFF:
		return "bad tiff"
	case StatusNotSupported:
		return "tiff not supported"
	case StatusAllocatorFailure:
		return "allocator failure"
	case StatusExecutionFailed:
		return "execution failed"
	case StatusArchMismatch:
		return "arch mismatch"
	case StatusInternalError:
		return "internal error"
	case StatusNvcompNotFound:
		return "nvcomp not found"
	default:
		return "unknown"
	}
}

// Opaque native handles. Zero is never a valid handle.
type (
	// Stream is a host-side parsed TIFF stream handle.
	Stream uintptr
	// Decoder is a decoder instance bound to a CUDA stream.
	Decoder uintptr
	// DevicePtr is a raw CUDA device allocation.
	DevicePtr uintptr
	// ComputeStream is a CUDA stream. The zero value is the default stream.
	ComputeStream uintptr
)

// Engine is the native decode surface. Every method that can fail returns
// an error carrying the native status; callers must not ignore any of them.
type Engine interface {
	// CreateStream allocates a host-side TIFF stream handle.
	CreateStream() (Stream, error)
	// ParseStream parses TIFF bytes into the stream handle on the host.
	ParseStream(ts Stream, data []byte) error
	// FileInfo queries file-level metadata from a parsed stream.
	FileInfo(ts Stream) (FileInfo, error)
	// DestroyStream releases the host-side stream handle.
	DestroyStream(ts Stream) error

	// AllocZeroed allocates n zeroed bytes on the device, ordered on cs.
	AllocZeroed(device int, cs ComputeStream, n int) (DevicePtr, error)
	// Free releases a device allocation.
	Free(device int, ptr DevicePtr)
	// CopyToHost copies n bytes from a device allocation into host memory.
	CopyToHost(device int, src DevicePtr, n int) ([]byte, error)

	// CreateDecoder creates a decoder bound to the CUDA stream cs.
	CreateDecoder(device int, cs ComputeStream) (Decoder, error)
	// DestroyDecoder releases a decoder.
	DestroyDecoder(dec Decoder) error
	// CheckSupported reports whether image imageID of the parsed stream can
	// be decoded by this build of the native library.
	CheckSupported(ts Stream, dec Decoder, imageID int) error
	// DecodeImage decodes image imageID into dst, ordered on cs.
	DecodeImage(ts Stream, dec Decoder, imageID int, dst DevicePtr, cs ComputeStream) error
}
