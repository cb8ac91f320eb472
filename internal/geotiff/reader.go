// Package geotiff decodes Cloud-Optimized GeoTIFFs into tensors on the CPU
// and derives their affine geotransform.
package geotiff

import (
	"io"

	"github.com/geocog/geocog/cogerr"
	"github.com/geocog/geocog/internal/tensor"
	"github.com/geocog/geocog/internal/tiffio"
)

// Reader decodes one GeoTIFF. It keeps the underlying stream open for pixel
// decoding; resolution level 0 is the full image, higher levels are the
// COG's reduced overviews.
type Reader struct {
	file *tiffio.File
}

// NewReader parses the container structure of the stream. Pixels are not
// decoded until Decode or DecodeLevel is called.
func NewReader(r io.ReadSeeker) (*Reader, error) {
	f, err := tiffio.Parse(r)
	if err != nil {
		return nil, err
	}
	return &Reader{file: f}, nil
}

// Levels returns the number of resolution levels in the file.
func (r *Reader) Levels() int {
	return len(r.file.IFDs)
}

// BandCount returns the number of bands the full-resolution image decodes
// to. Palette, CMYK and other coded color layouts are rejected.
func (r *Reader) BandCount() (int, error) {
	return bandCount(r.file.IFDs[0])
}

// DataType returns the element type of the full-resolution image.
func (r *Reader) DataType() (tensor.DataType, error) {
	return r.file.IFDs[0].DataType()
}

// Size returns the full-resolution width and height in pixels.
func (r *Reader) Size() (width, height int) {
	return int(r.file.IFDs[0].Width), int(r.file.IFDs[0].Height)
}

// Decode decodes the full-resolution image to a (bands, height, width)
// tensor, preserving the file's element type exactly.
func (r *Reader) Decode() (*tensor.Tensor, error) {
	return r.DecodeLevel(0)
}

// DecodeLevel decodes one resolution level to a (bands, height, width)
// tensor.
func (r *Reader) DecodeLevel(level int) (*tensor.Tensor, error) {
	if level < 0 || level >= len(r.file.IFDs) {
		return nil, cogerr.New(cogerr.Container,
			"resolution level %d out of range, file has %d", level, len(r.file.IFDs))
	}
	d := r.file.IFDs[level]

	bands, err := bandCount(d)
	if err != nil {
		return nil, err
	}

	im, err := tiffio.DecodePixels(r.file, d)
	if err != nil {
		return nil, err
	}

	switch im.DType {
	case tensor.Uint8:
		return shapeBands[uint8](im, bands)
	case tensor.Uint16:
		return shapeBands[uint16](im, bands)
	case tensor.Uint32:
		return shapeBands[uint32](im, bands)
	case tensor.Uint64:
		return shapeBands[uint64](im, bands)
	case tensor.Int8:
		return shapeBands[int8](im, bands)
	case tensor.Int16:
		return shapeBands[int16](im, bands)
	case tensor.Int32:
		return shapeBands[int32](im, bands)
	case tensor.Int64:
		return shapeBands[int64](im, bands)
	case tensor.Float32:
		return shapeBands[float32](im, bands)
	case tensor.Float64:
		return shapeBands[float64](im, bands)
	default:
		return nil, cogerr.New(cogerr.UnsupportedSampleFormat, "element type %s", im.DType)
	}
}

// Read decodes the full-resolution image of a GeoTIFF whose element type is
// known ahead of time. The file's actual type must match T exactly.
func Read[T tensor.DType](r io.ReadSeeker) (*tensor.Tensor, error) {
	gr, err := NewReader(r)
	if err != nil {
		return nil, err
	}

	dtype, err := gr.DataType()
	if err != nil {
		return nil, err
	}
	if want := tensor.DataTypeOf[T](); dtype != want {
		return nil, cogerr.New(cogerr.UnsupportedSampleFormat,
			"file has element type %s, requested %s", dtype, want)
	}
	return gr.Decode()
}

// bandCount maps the photometric interpretation onto a band count.
func bandCount(d *tiffio.IFD) (int, error) {
	spp := int(d.SamplesPerPixel)
	switch d.Photometric {
	case tiffio.PhotometricWhiteIsZero, tiffio.PhotometricBlackIsZero:
		return spp, nil
	case tiffio.PhotometricRGB:
		return 3, nil
	case tiffio.PhotometricPalette:
		return 0, cogerr.New(cogerr.UnsupportedColorType, "color type palette not supported yet")
	case tiffio.PhotometricCMYK:
		return 0, cogerr.New(cogerr.UnsupportedColorType,
			"color type CMYK with %d bits not supported yet", bitDepth(d))
	case tiffio.PhotometricYCbCr:
		return 0, cogerr.New(cogerr.UnsupportedColorType, "color type YCbCr not supported yet")
	default:
		return 0, cogerr.New(cogerr.UnsupportedColorType,
			"photometric interpretation %d not supported", d.Photometric)
	}
}

func bitDepth(d *tiffio.IFD) uint16 {
	if len(d.BitsPerSample) == 0 {
		return 0
	}
	return d.BitsPerSample[0]
}

// shapeBands reshapes an interleaved image into a (bands, height, width)
// tensor. Single-band images reuse the decoded buffer without copying.
func shapeBands[T tensor.DType](im *tiffio.Image, bands int) (*tensor.Tensor, error) {
	samples := tiffio.Samples[T](im)
	shape := tensor.Shape{bands, im.Height, im.Width}
	if len(samples) != shape.NumElements() {
		return nil, cogerr.New(cogerr.ShapeMismatch,
			"failed to convert vector of size %d to shape (%d, %d, %d)",
			len(samples), bands, im.Height, im.Width)
	}

	if bands == 1 {
		return tensor.FromSlice(samples, shape)
	}

	// Deinterleave pixel-major samples into band-major planes.
	plane := im.Height * im.Width
	out := make([]T, len(samples))
	for p := 0; p < plane; p++ {
		for b := 0; b < bands; b++ {
			out[b*plane+p] = samples[p*bands+b]
		}
	}
	return tensor.FromSlice(out, shape)
}
