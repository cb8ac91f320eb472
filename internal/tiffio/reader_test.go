package tiffio

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geocog/geocog/cogerr"
	"github.com/geocog/geocog/internal/tensor"
	"github.com/geocog/geocog/internal/tifftest"
)

func parseFixture(t *testing.T, data []byte) *File {
	t.Helper()
	f, err := Parse(bytes.NewReader(data))
	require.NoError(t, err)
	return f
}

func gradient8(width, height int) []byte {
	out := make([]byte, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			out[y*width+x] = byte(y + x)
		}
	}
	return out
}

func TestParseClassic(t *testing.T) {
	data := tifftest.Build(tifftest.Config{
		Width: 4, Height: 3,
		Photometric: PhotometricBlackIsZero,
		Pixels:      gradient8(4, 3),
	})

	f := parseFixture(t, data)
	assert.False(t, f.BigTIFF)
	require.Len(t, f.IFDs, 1)

	d := f.IFDs[0]
	assert.Equal(t, uint32(4), d.Width)
	assert.Equal(t, uint32(3), d.Height)
	assert.Equal(t, uint16(1), d.SamplesPerPixel)
	assert.False(t, d.Tiled())

	dtype, err := d.DataType()
	require.NoError(t, err)
	assert.Equal(t, tensor.Uint8, dtype)

	im, err := DecodePixels(f, d)
	require.NoError(t, err)
	assert.Equal(t, gradient8(4, 3), Samples[uint8](im))
}

func TestParseBigTIFF(t *testing.T) {
	data := tifftest.Build(tifftest.Config{
		BigTIFF: true,
		Width:   4, Height: 3,
		Photometric: PhotometricBlackIsZero,
		Pixels:      gradient8(4, 3),
	})

	f := parseFixture(t, data)
	assert.True(t, f.BigTIFF)
	require.Len(t, f.IFDs, 1)

	im, err := DecodePixels(f, f.IFDs[0])
	require.NoError(t, err)
	assert.Equal(t, gradient8(4, 3), Samples[uint8](im))
}

func TestBigEndianSamples(t *testing.T) {
	// 2x2 uint16 raster, big-endian file order.
	pixels := []byte{
		0x01, 0x00, 0x02, 0x00,
		0x03, 0x00, 0xff, 0xfe,
	}
	data := tifftest.Build(tifftest.Config{
		BigEndian: true,
		Width:     2, Height: 2,
		BitsPerSample: 16,
		Photometric:   PhotometricBlackIsZero,
		Pixels:        pixels,
	})

	f := parseFixture(t, data)
	im, err := DecodePixels(f, f.IFDs[0])
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x0100, 0x0200, 0x0300, 0xfffe}, Samples[uint16](im))
}

func TestTiledWithPadding(t *testing.T) {
	// 10x10 raster in 4x4 tiles: right and bottom tiles are padded.
	pixels := gradient8(10, 10)
	data := tifftest.Build(tifftest.Config{
		Width: 10, Height: 10,
		TileWidth: 4, TileLength: 4,
		Photometric: PhotometricBlackIsZero,
		Pixels:      pixels,
	})

	f := parseFixture(t, data)
	require.True(t, f.IFDs[0].Tiled())

	im, err := DecodePixels(f, f.IFDs[0])
	require.NoError(t, err)
	assert.Equal(t, pixels, Samples[uint8](im))
}

func TestCompressedBlocks(t *testing.T) {
	pixels := gradient8(8, 8)
	schemes := map[string]uint16{
		"lzw":            tifftest.CompressionLZW,
		"deflate":        tifftest.CompressionDeflate,
		"deflate-legacy": tifftest.CompressionDeflateOld,
		"packbits":       tifftest.CompressionPackBits,
	}

	for name, scheme := range schemes {
		t.Run(name, func(t *testing.T) {
			data := tifftest.Build(tifftest.Config{
				Width: 8, Height: 8,
				RowsPerStrip: 4,
				Compression:  scheme,
				Photometric:  PhotometricBlackIsZero,
				Pixels:       pixels,
			})

			f := parseFixture(t, data)
			im, err := DecodePixels(f, f.IFDs[0])
			require.NoError(t, err)
			assert.Equal(t, pixels, Samples[uint8](im))
		})
	}
}

func TestHorizontalPredictor16(t *testing.T) {
	// 3x2 uint16 raster stored as horizontal differences.
	vals := []uint16{100, 150, 90, 7, 7, 65535}
	pixels := make([]byte, 2*len(vals))
	for i, v := range vals {
		pixels[2*i] = byte(v)
		pixels[2*i+1] = byte(v >> 8)
	}

	data := tifftest.Build(tifftest.Config{
		Width: 3, Height: 2,
		BitsPerSample: 16,
		Predictor:     2,
		Photometric:   PhotometricBlackIsZero,
		Pixels:        pixels,
	})

	f := parseFixture(t, data)
	im, err := DecodePixels(f, f.IFDs[0])
	require.NoError(t, err)
	assert.Equal(t, vals, Samples[uint16](im))
}

func TestOverviewChain(t *testing.T) {
	data := tifftest.Build(tifftest.Config{
		Width: 8, Height: 8,
		Photometric: PhotometricBlackIsZero,
		Pixels:      gradient8(8, 8),
		Overviews: []tifftest.Overview{
			{Width: 4, Height: 4, Pixels: gradient8(4, 4)},
			{Width: 2, Height: 2, Pixels: gradient8(2, 2)},
		},
	})

	f := parseFixture(t, data)
	require.Len(t, f.IFDs, 3)
	assert.Equal(t, uint32(4), f.IFDs[1].Width)
	assert.Equal(t, uint32(2), f.IFDs[2].Width)

	im, err := DecodePixels(f, f.IFDs[1])
	require.NoError(t, err)
	assert.Equal(t, gradient8(4, 4), Samples[uint8](im))
}

func TestDataTypeMapping(t *testing.T) {
	tests := []struct {
		format uint16
		bits   uint16
		want   tensor.DataType
	}{
		{SampleFormatUint, 8, tensor.Uint8},
		{SampleFormatUint, 16, tensor.Uint16},
		{SampleFormatUint, 32, tensor.Uint32},
		{SampleFormatUint, 64, tensor.Uint64},
		{SampleFormatInt, 8, tensor.Int8},
		{SampleFormatInt, 16, tensor.Int16},
		{SampleFormatInt, 32, tensor.Int32},
		{SampleFormatInt, 64, tensor.Int64},
		{SampleFormatFloat, 32, tensor.Float32},
		{SampleFormatFloat, 64, tensor.Float64},
	}

	for _, tt := range tests {
		d := &IFD{
			BitsPerSample: []uint16{tt.bits},
			SampleFormat:  []uint16{tt.format},
		}
		got, err := d.DataType()
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestDataTypeRejections(t *testing.T) {
	tests := []struct {
		name string
		ifd  *IFD
	}{
		{"complex int", &IFD{BitsPerSample: []uint16{32}, SampleFormat: []uint16{SampleFormatComplexInt}}},
		{"complex float", &IFD{BitsPerSample: []uint16{64}, SampleFormat: []uint16{SampleFormatComplexFloat}}},
		{"float16", &IFD{BitsPerSample: []uint16{16}, SampleFormat: []uint16{SampleFormatFloat}}},
		{"1-bit", &IFD{BitsPerSample: []uint16{1}, SampleFormat: []uint16{SampleFormatUint}}},
		{"mixed bits", &IFD{BitsPerSample: []uint16{8, 16}, SampleFormat: []uint16{SampleFormatUint, SampleFormatUint}}},
		{"mixed formats", &IFD{BitsPerSample: []uint16{32, 32}, SampleFormat: []uint16{SampleFormatUint, SampleFormatFloat}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.ifd.DataType()
			require.Error(t, err)
			assert.True(t, cogerr.IsKind(err, cogerr.UnsupportedSampleFormat))
		})
	}
}

func TestBadHeader(t *testing.T) {
	_, err := Parse(bytes.NewReader([]byte("PK\x03\x04....")))
	require.Error(t, err)
	assert.True(t, cogerr.IsKind(err, cogerr.Container))

	_, err = Parse(bytes.NewReader([]byte("II\x2b\x00")))
	require.Error(t, err)
	assert.True(t, cogerr.IsKind(err, cogerr.Container))
}

func TestTruncatedFile(t *testing.T) {
	data := tifftest.Build(tifftest.Config{
		Width: 4, Height: 4,
		Photometric: PhotometricBlackIsZero,
		Pixels:      gradient8(4, 4),
	})

	_, err := Parse(bytes.NewReader(data[:len(data)-6]))
	require.Error(t, err)
	assert.True(t, cogerr.IsKind(err, cogerr.Container))
}

func TestHugeEntryCountBigTIFF(t *testing.T) {
	// BigTIFF whose 64-bit IFD entry count is far larger than the file.
	data := make([]byte, 32)
	copy(data, "II")
	binary.LittleEndian.PutUint16(data[2:], 43)
	binary.LittleEndian.PutUint16(data[4:], 8)
	binary.LittleEndian.PutUint64(data[8:], 16)
	binary.LittleEndian.PutUint64(data[16:], 1<<63)

	require.NotPanics(t, func() {
		_, err := Parse(bytes.NewReader(data))
		require.Error(t, err)
		assert.True(t, cogerr.IsKind(err, cogerr.Container))
	})
}

func TestOverflowingDimensions(t *testing.T) {
	// Claimed dimensions whose pixel buffer length overflows int.
	f := &File{ByteOrder: binary.LittleEndian}
	d := &IFD{
		Width: 0xffffffff, Height: 0xffffffff,
		SamplesPerPixel: 1,
		BitsPerSample:   []uint16{8},
		RowsPerStrip:    0xffffffff,
		StripOffsets:    []uint64{8},
		StripByteCounts: []uint64{0},
	}

	require.NotPanics(t, func() {
		_, err := DecodePixels(f, d)
		require.Error(t, err)
		assert.True(t, cogerr.IsKind(err, cogerr.Container))
	})
}

func TestPlanarConfigurationUnimplemented(t *testing.T) {
	f := &File{}
	d := &IFD{
		Width: 2, Height: 2,
		SamplesPerPixel: 3,
		BitsPerSample:   []uint16{8, 8, 8},
		PlanarConfig:    PlanarConfigPlanar,
	}

	_, err := DecodePixels(f, d)
	require.Error(t, err)
	assert.True(t, cogerr.IsKind(err, cogerr.Unimplemented))
}

func TestUnknownCompression(t *testing.T) {
	data := tifftest.Build(tifftest.Config{
		Width: 2, Height: 2,
		Photometric: PhotometricBlackIsZero,
		Pixels:      gradient8(2, 2),
	})
	f := parseFixture(t, data)
	f.IFDs[0].Compression = 7 // JPEG

	_, err := DecodePixels(f, f.IFDs[0])
	require.Error(t, err)
	assert.True(t, cogerr.IsKind(err, cogerr.Container))
}

func TestUnpackBits(t *testing.T) {
	// Example stream from the TIFF 6.0 spec, section 9.
	src := []byte{
		0xFE, 0xAA, 0x02, 0x80, 0x00, 0x2A, 0xFD, 0xAA,
		0x03, 0x80, 0x00, 0x2A, 0x22, 0xF7, 0xAA,
	}
	want := []byte{
		0xAA, 0xAA, 0xAA, 0x80, 0x00, 0x2A, 0xAA, 0xAA, 0xAA, 0xAA,
		0x80, 0x00, 0x2A, 0x22, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA,
		0xAA, 0xAA, 0xAA, 0xAA,
	}
	got, err := unpackBits(src)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
