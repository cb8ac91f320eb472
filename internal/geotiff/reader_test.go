package geotiff

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geocog/geocog/cogerr"
	"github.com/geocog/geocog/internal/tensor"
	"github.com/geocog/geocog/internal/tifftest"
)

// utmScale and utmTiepoint model a 200m-resolution UTM grid, the common
// Sentinel-2 style layout.
var (
	utmScale    = []float64{200, 200, 0}
	utmTiepoint = []float64{0, 0, 0, 499980, 5300040, 0}
)

func newReader(t *testing.T, data []byte) *Reader {
	t.Helper()
	r, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	return r
}

func gradientPixels(width, height int) []byte {
	out := make([]byte, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			out[y*width+x] = byte(y + x)
		}
	}
	return out
}

func TestDecodeGradient(t *testing.T) {
	const width, height = 20, 10
	data := tifftest.Build(tifftest.Config{
		Width: width, Height: height,
		Photometric: 1,
		PixelScale:  utmScale,
		Tiepoint:    utmTiepoint,
		Pixels:      gradientPixels(width, height),
	})

	r := newReader(t, data)
	tr, err := r.Decode()
	require.NoError(t, err)
	defer tr.Close()

	assert.Equal(t, tensor.Shape{1, height, width}, tr.Shape())
	assert.Equal(t, tensor.Uint8, tr.DType())

	sum := 0.0
	for _, v := range tr.AsUint8() {
		sum += float64(v)
	}
	assert.InDelta(t, 14.0, sum/float64(width*height), 1e-9)
}

func TestDecodePreservesUint16(t *testing.T) {
	vals := []uint16{0, 1, 256, 65535}
	pixels := make([]byte, 2*len(vals))
	for i, v := range vals {
		pixels[2*i] = byte(v)
		pixels[2*i+1] = byte(v >> 8)
	}
	data := tifftest.Build(tifftest.Config{
		Width: 2, Height: 2,
		BitsPerSample: 16,
		Photometric:   1,
		Pixels:        pixels,
	})

	r := newReader(t, data)
	tr, err := r.Decode()
	require.NoError(t, err)
	defer tr.Close()

	assert.Equal(t, tensor.Uint16, tr.DType())
	assert.Equal(t, vals, tr.AsUint16())
}

func TestDecodeRGBDeinterleaves(t *testing.T) {
	// 2x1 RGB image: pixel 0 = (1,2,3), pixel 1 = (4,5,6).
	data := tifftest.Build(tifftest.Config{
		Width: 2, Height: 1,
		Bands:       3,
		Photometric: 2,
		Pixels:      []byte{1, 2, 3, 4, 5, 6},
	})

	r := newReader(t, data)
	bands, err := r.BandCount()
	require.NoError(t, err)
	assert.Equal(t, 3, bands)

	tr, err := r.Decode()
	require.NoError(t, err)
	defer tr.Close()

	assert.Equal(t, tensor.Shape{3, 1, 2}, tr.Shape())
	assert.Equal(t, []uint8{1, 4, 2, 5, 3, 6}, tr.AsUint8())
}

func TestDecodeShapeMismatch(t *testing.T) {
	// RGB photometric with only two samples per pixel: the declared shape
	// needs 3*h*w elements, the file holds 2*h*w.
	data := tifftest.Build(tifftest.Config{
		Width: 2, Height: 2,
		Bands:       2,
		Photometric: 2,
		Pixels:      []byte{1, 2, 3, 4, 5, 6, 7, 8},
	})

	r := newReader(t, data)
	_, err := r.Decode()
	require.Error(t, err)
	assert.True(t, cogerr.IsKind(err, cogerr.ShapeMismatch))
	assert.NotPanics(t, func() { _, _ = r.Decode() })
}

func TestCMYKRejected(t *testing.T) {
	data := tifftest.Build(tifftest.Config{
		Width: 2, Height: 2,
		Bands:       4,
		Photometric: 5,
		Pixels:      make([]byte, 16),
	})

	r := newReader(t, data)
	_, err := r.BandCount()
	require.Error(t, err)
	assert.True(t, cogerr.IsKind(err, cogerr.UnsupportedColorType))

	_, err = r.Decode()
	require.Error(t, err)
	assert.True(t, cogerr.IsKind(err, cogerr.UnsupportedColorType))
}

func TestTransform(t *testing.T) {
	data := tifftest.Build(tifftest.Config{
		Width: 4, Height: 4,
		Photometric: 1,
		PixelScale:  utmScale,
		Tiepoint:    utmTiepoint,
		Pixels:      make([]byte, 16),
	})

	r := newReader(t, data)
	tf, err := r.Transform()
	require.NoError(t, err)
	assert.Equal(t, Affine{A: 200, B: 0, C: 499980, D: 0, E: -200, F: 5300040}, tf)

	x, y := tf.Apply(0, 0)
	assert.Equal(t, 499980.0, x)
	assert.Equal(t, 5300040.0, y)
}

func TestTransformMissingGeoTags(t *testing.T) {
	data := tifftest.Build(tifftest.Config{
		Width: 2, Height: 2,
		Photometric: 1,
		Pixels:      make([]byte, 4),
	})

	r := newReader(t, data)
	_, err := r.Transform()
	require.Error(t, err)
	assert.True(t, cogerr.IsKind(err, cogerr.MissingGeoTag))
}

func TestTransformRotationRejected(t *testing.T) {
	data := tifftest.Build(tifftest.Config{
		Width: 2, Height: 2,
		Photometric: 1,
		Transformation: []float64{
			200, 30, 0, 499980,
			30, -200, 0, 5300040,
			0, 0, 0, 0,
			0, 0, 0, 1,
		},
		Pixels: make([]byte, 4),
	})

	r := newReader(t, data)
	_, err := r.Transform()
	require.Error(t, err)
	assert.True(t, cogerr.IsKind(err, cogerr.Unimplemented))
}

func TestTransformNonOriginTiepoint(t *testing.T) {
	data := tifftest.Build(tifftest.Config{
		Width: 2, Height: 2,
		Photometric: 1,
		PixelScale:  utmScale,
		Tiepoint:    []float64{5, 5, 0, 499980, 5300040, 0},
		Pixels:      make([]byte, 4),
	})

	r := newReader(t, data)
	_, err := r.Transform()
	require.Error(t, err)
	assert.True(t, cogerr.IsKind(err, cogerr.UnsupportedTiepoint))
}

func TestXYCoordsPixelCenters(t *testing.T) {
	data := tifftest.Build(tifftest.Config{
		Width: 3, Height: 2,
		Photometric: 1,
		PixelScale:  utmScale,
		Tiepoint:    utmTiepoint,
		Pixels:      make([]byte, 6),
	})

	r := newReader(t, data)
	xs, ys, err := r.XYCoords()
	require.NoError(t, err)

	assert.Equal(t, []float64{500080, 500280, 500480}, xs)
	assert.Equal(t, []float64{5299940, 5299740}, ys)
}

func TestDecodeLevels(t *testing.T) {
	data := tifftest.Build(tifftest.Config{
		Width: 8, Height: 8,
		Photometric: 1,
		Pixels:      gradientPixels(8, 8),
		Overviews: []tifftest.Overview{
			{Width: 4, Height: 4, Pixels: gradientPixels(4, 4)},
		},
	})

	r := newReader(t, data)
	assert.Equal(t, 2, r.Levels())

	tr, err := r.DecodeLevel(1)
	require.NoError(t, err)
	defer tr.Close()
	assert.Equal(t, tensor.Shape{1, 4, 4}, tr.Shape())

	_, err = r.DecodeLevel(2)
	require.Error(t, err)
}

func TestReadTyped(t *testing.T) {
	data := tifftest.Build(tifftest.Config{
		Width: 2, Height: 2,
		Photometric: 1,
		Pixels:      []byte{1, 2, 3, 4},
	})

	tr, err := Read[uint8](bytes.NewReader(data))
	require.NoError(t, err)
	defer tr.Close()
	assert.Equal(t, []uint8{1, 2, 3, 4}, tr.AsUint8())

	_, err = Read[float32](bytes.NewReader(data))
	require.Error(t, err)
	assert.True(t, cogerr.IsKind(err, cogerr.UnsupportedSampleFormat))
}

func TestNotATIFF(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte("not a tiff at all")))
	require.Error(t, err)
	assert.True(t, cogerr.IsKind(err, cogerr.Container))
}
