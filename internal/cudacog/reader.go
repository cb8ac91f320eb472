// Package cudacog decodes Cloud-Optimized GeoTIFFs straight into CUDA
// device memory through the nvTIFF engine contract.
package cudacog

import (
	"errors"
	"unsafe"

	"github.com/geocog/geocog/cogerr"
	"github.com/geocog/geocog/internal/nvtiff"
	"github.com/geocog/geocog/internal/tensor"
)

// Reader drives one GPU decode: the TIFF structure is parsed on the host at
// construction; Decode allocates device memory and decodes into it. Each
// reader decodes at most once, so the device buffer always has exactly one
// owner.
type Reader struct {
	engine nvtiff.Engine
	stream nvtiff.Stream
	info   nvtiff.FileInfo

	dtype    tensor.DataType
	numBytes int
	device   int

	decoded bool
	closed  bool
}

type options struct {
	engine nvtiff.Engine
	device int
}

// Option configures NewReader.
type Option func(*options)

// WithEngine substitutes the native engine, mainly for tests.
func WithEngine(e nvtiff.Engine) Option {
	return func(o *options) { o.engine = e }
}

// WithDevice selects the CUDA device ordinal. The default is device 0.
func WithDevice(ordinal int) Option {
	return func(o *options) { o.device = ordinal }
}

// NewReader parses TIFF bytes on the host and validates that the sample
// layout maps onto one of the ten element types. No device memory is
// touched yet.
func NewReader(data []byte, opts ...Option) (*Reader, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.engine == nil {
		e, err := nvtiff.New()
		if err != nil {
			return nil, cogerr.Wrap(cogerr.DeviceFailure, err, "nvTIFF engine unavailable")
		}
		o.engine = e
	}

	ts, err := o.engine.CreateStream()
	if err != nil {
		return nil, mapStatus(err, "create TIFF stream")
	}

	r := &Reader{engine: o.engine, stream: ts, device: o.device}

	if err := o.engine.ParseStream(ts, data); err != nil {
		r.destroyStream()
		return nil, mapStatus(err, "parse TIFF stream")
	}
	info, err := o.engine.FileInfo(ts)
	if err != nil {
		r.destroyStream()
		return nil, mapStatus(err, "query file info")
	}
	r.info = info

	dtype, err := inferDataType(info)
	if err != nil {
		r.destroyStream()
		return nil, err
	}
	r.dtype = dtype
	r.numBytes = int(info.ImageWidth) * int(info.ImageHeight) * int(info.BitsPerPixel) / 8
	return r, nil
}

// DataType returns the element type the image decodes to.
func (r *Reader) DataType() tensor.DataType {
	return r.dtype
}

// Info returns the file-level metadata nvTIFF reported.
func (r *Reader) Info() nvtiff.FileInfo {
	return r.info
}

// Device returns the CUDA device ordinal decodes run on.
func (r *Reader) Device() int {
	return r.device
}

// Decode decodes the image into a freshly allocated device buffer, ordered
// on the given CUDA stream, and wraps it as a flat 1-D CUDA tensor. On any
// failure the allocation is released and no tensor escapes.
func (r *Reader) Decode(cs nvtiff.ComputeStream) (*tensor.Tensor, error) {
	if r.closed {
		return nil, cogerr.New(cogerr.DeviceFailure, "reader is closed")
	}
	if r.decoded {
		return nil, cogerr.New(cogerr.DeviceFailure,
			"image already decoded; the device buffer has a single owner")
	}

	ptr, err := r.engine.AllocZeroed(r.device, cs, r.numBytes)
	if err != nil {
		return nil, mapStatus(err, "allocate device buffer")
	}

	dec, err := r.engine.CreateDecoder(r.device, cs)
	if err != nil {
		r.engine.Free(r.device, ptr)
		return nil, mapStatus(err, "create decoder")
	}

	if err := r.engine.CheckSupported(r.stream, dec, 0); err != nil {
		_ = r.engine.DestroyDecoder(dec)
		r.engine.Free(r.device, ptr)
		return nil, mapStatus(err, "check image support")
	}

	if err := r.engine.DecodeImage(r.stream, dec, 0, ptr, cs); err != nil {
		_ = r.engine.DestroyDecoder(dec)
		r.engine.Free(r.device, ptr)
		return nil, mapStatus(err, "decode image")
	}

	if err := r.engine.DestroyDecoder(dec); err != nil {
		r.engine.Free(r.device, ptr)
		return nil, mapStatus(err, "destroy decoder")
	}

	engine, device := r.engine, r.device
	free := func() { engine.Free(device, ptr) }

	elems := r.numBytes / r.dtype.Size()
	//nolint:govet // ptr is a CUDA device address, not a Go pointer
	t, err := tensor.NewDevice(unsafe.Pointer(uintptr(ptr)), tensor.Shape{elems},
		r.dtype, tensor.CUDA(r.device), free)
	if err != nil {
		free()
		return nil, err
	}
	r.decoded = true
	return t, nil
}

// Close releases the host-side parsed stream. Device buffers handed out by
// Decode stay valid; they are owned by their tensors.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if err := r.engine.DestroyStream(r.stream); err != nil {
		return mapStatus(err, "destroy TIFF stream")
	}
	return nil
}

func (r *Reader) destroyStream() {
	_ = r.engine.DestroyStream(r.stream)
	r.closed = true
}

// ToHost copies a decoded CUDA tensor back into host memory, mainly for
// verification against the CPU decoder.
func ToHost(e nvtiff.Engine, t *tensor.Tensor) ([]byte, error) {
	dev := t.Device()
	if dev.IsCPU() {
		return nil, cogerr.New(cogerr.DeviceFailure, "tensor is already on the host")
	}
	out, err := e.CopyToHost(dev.Ordinal, nvtiff.DevicePtr(uintptr(t.DataPointer())), t.ByteSize())
	if err != nil {
		return nil, mapStatus(err, "copy to host")
	}
	return out, nil
}

// inferDataType maps nvTIFF file info onto an element type. Bit depth and
// sample format must be uniform across bands.
func inferDataType(info nvtiff.FileInfo) (tensor.DataType, error) {
	if info.SamplesPerPixel == 0 || info.BitsPerPixel == 0 {
		return 0, cogerr.New(cogerr.Container, "file info reports no samples")
	}
	bits := info.BitsPerPixel / info.SamplesPerPixel

	for _, b := range info.BitsPerSample {
		if b != bits {
			return 0, cogerr.New(cogerr.UnsupportedSampleFormat,
				"non-uniform bits per sample %v", info.BitsPerSample)
		}
	}
	format := uint32(nvtiff.SampleFormatUint)
	if len(info.SampleFormat) > 0 {
		format = info.SampleFormat[0]
		for _, f := range info.SampleFormat[1:] {
			if f != format {
				return 0, cogerr.New(cogerr.UnsupportedSampleFormat,
					"non-uniform sample format %v", info.SampleFormat)
			}
		}
	}

	switch format {
	case nvtiff.SampleFormatUint:
		switch bits {
		case 8:
			return tensor.Uint8, nil
		case 16:
			return tensor.Uint16, nil
		case 32:
			return tensor.Uint32, nil
		case 64:
			return tensor.Uint64, nil
		}
	case nvtiff.SampleFormatInt:
		switch bits {
		case 8:
			return tensor.Int8, nil
		case 16:
			return tensor.Int16, nil
		case 32:
			return tensor.Int32, nil
		case 64:
			return tensor.Int64, nil
		}
	case nvtiff.SampleFormatFloat:
		switch bits {
		case 32:
			return tensor.Float32, nil
		case 64:
			return tensor.Float64, nil
		}
	}
	return 0, cogerr.New(cogerr.UnsupportedSampleFormat,
		"sample format %d with %d bits per sample not supported", format, bits)
}

// mapStatus wraps a native failure with the matching error kind: parse
// failures are container errors, unsupported layouts keep their meaning,
// everything else is a device failure.
func mapStatus(err error, msg string) *cogerr.Error {
	var se *nvtiff.StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case nvtiff.StatusBadTIFF:
			return cogerr.Wrap(cogerr.Container, err, "%s", msg)
		case nvtiff.StatusNotSupported:
			return cogerr.Wrap(cogerr.UnsupportedColorType, err, "%s", msg)
		}
	}
	return cogerr.Wrap(cogerr.DeviceFailure, err, "%s", msg)
}
