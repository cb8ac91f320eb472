package tiffio

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"unsafe"

	"golang.org/x/image/tiff/lzw"

	"github.com/geocog/geocog/cogerr"
	"github.com/geocog/geocog/internal/tensor"
)

// Image is a decoded raster: a flat band-interleaved buffer in native byte
// order, tagged with its element type.
type Image struct {
	DType  tensor.DataType
	Width  int
	Height int
	Bands  int

	data []byte
}

// Samples returns the typed view of the interleaved pixel buffer.
// Panics if T does not match the image's element type.
func Samples[T tensor.DType](im *Image) []T {
	want := tensor.DataTypeOf[T]()
	if im.DType != want {
		panic(fmt.Sprintf("image dtype is %s, not %s", im.DType, want))
	}
	n := im.Width * im.Height * im.Bands
	//nolint:gosec // unsafe.Slice for zero-copy views, length fixed by image geometry
	return unsafe.Slice((*T)(unsafe.Pointer(&im.data[0])), n)
}

// Bytes returns the interleaved pixel buffer in native byte order.
func (im *Image) Bytes() []byte {
	return im.data
}

// DecodePixels decodes all tiles or strips of one IFD into a flat
// band-interleaved buffer. Edge tiles are clipped to the image bounds.
func DecodePixels(f *File, d *IFD) (*Image, error) {
	dtype, err := d.DataType()
	if err != nil {
		return nil, err
	}
	if d.PlanarConfig != PlanarConfigChunky {
		return nil, cogerr.New(cogerr.Unimplemented,
			"planar configuration %d not supported yet", d.PlanarConfig)
	}

	bands := int(d.SamplesPerPixel)
	if len(d.BitsPerSample) != bands {
		return nil, cogerr.New(cogerr.Container,
			"BitsPerSample count %d does not match SamplesPerPixel %d",
			len(d.BitsPerSample), bands)
	}

	width := int(d.Width)
	height := int(d.Height)
	elem := dtype.Size()

	// Width and height are untrusted u32 values; the buffer length must not
	// overflow int.
	if uint64(width)*uint64(height) > uint64(math.MaxInt)/uint64(bands*elem) {
		return nil, cogerr.New(cogerr.Container,
			"image dimensions %dx%d with %d bands out of range", width, height, bands)
	}

	im := &Image{
		DType:  dtype,
		Width:  width,
		Height: height,
		Bands:  bands,
		data:   make([]byte, width*height*bands*elem),
	}

	// Block geometry: tiles are always encoded at full block size with
	// padding past the image edge; the last strip may be short.
	blockWidth := width
	blockHeight := int(d.RowsPerStrip)
	blocksAcross := 1
	offsets := d.StripOffsets
	counts := d.StripByteCounts
	if d.Tiled() {
		blockWidth = int(d.TileWidth)
		blockHeight = int(d.TileLength)
		blocksAcross = (width + blockWidth - 1) / blockWidth
		offsets = d.TileOffsets
		counts = d.TileByteCounts
	}
	if blockWidth <= 0 || blockHeight <= 0 {
		return nil, cogerr.New(cogerr.Container, "invalid block geometry %dx%d", blockWidth, blockHeight)
	}
	blocksDown := (height + blockHeight - 1) / blockHeight

	numBlocks := blocksAcross * blocksDown
	if len(offsets) < numBlocks || len(counts) < numBlocks {
		return nil, cogerr.New(cogerr.Container,
			"have %d block offsets and %d byte counts, need %d",
			len(offsets), len(counts), numBlocks)
	}

	for j := 0; j < blocksDown; j++ {
		for i := 0; i < blocksAcross; i++ {
			idx := j*blocksAcross + i
			buf, err := f.readBlock(d, offsets[idx], counts[idx])
			if err != nil {
				return nil, err
			}

			xmin := i * blockWidth
			ymin := j * blockHeight
			copyW := min(blockWidth, width-xmin)
			copyH := min(blockHeight, height-ymin)

			// Strips are encoded at their actual height; tiles always at
			// full block height.
			rowsEncoded := copyH
			if d.Tiled() {
				rowsEncoded = blockHeight
			}
			rowBytes := blockWidth * bands * elem
			if len(buf) < rowsEncoded*rowBytes {
				return nil, cogerr.New(cogerr.Container,
					"block %d: %d bytes decoded, need %d", idx, len(buf), rowsEncoded*rowBytes)
			}

			if d.Predictor == PredictorHorizontal {
				if err := f.undoPredictor(buf, d, blockWidth, rowsEncoded); err != nil {
					return nil, err
				}
			}

			f.copyBlock(im, buf, xmin, ymin, copyW, copyH, rowBytes, bands, elem)
		}
	}

	return im, nil
}

// readBlock reads one compressed block and returns its decompressed bytes.
func (f *File) readBlock(d *IFD, offset, count uint64) ([]byte, error) {
	raw := make([]byte, count)
	if err := f.readAt(raw, offset); err != nil {
		return nil, err
	}

	switch d.Compression {
	case CompressionNone:
		return raw, nil

	case CompressionLZW:
		r := lzw.NewReader(bytes.NewReader(raw), lzw.MSB, 8)
		defer r.Close()
		buf, err := io.ReadAll(r)
		if err != nil {
			return nil, cogerr.Wrap(cogerr.Container, err, "LZW block at offset %d", offset)
		}
		return buf, nil

	case CompressionDeflate, CompressionDeflateOld:
		r, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, cogerr.Wrap(cogerr.Container, err, "deflate block at offset %d", offset)
		}
		defer r.Close()
		buf, err := io.ReadAll(r)
		if err != nil {
			return nil, cogerr.Wrap(cogerr.Container, err, "deflate block at offset %d", offset)
		}
		return buf, nil

	case CompressionPackBits:
		buf, err := unpackBits(raw)
		if err != nil {
			return nil, cogerr.Wrap(cogerr.Container, err, "packbits block at offset %d", offset)
		}
		return buf, nil

	default:
		return nil, cogerr.New(cogerr.Container, "unsupported compression scheme %d", d.Compression)
	}
}

// undoPredictor reverses horizontal differencing in place, row by row.
// Only 8- and 16-bit samples use the predictor in practice.
func (f *File) undoPredictor(buf []byte, d *IFD, rowPixels, rows int) error {
	spp := int(d.SamplesPerPixel)
	switch d.BitsPerSample[0] {
	case 8:
		for y := 0; y < rows; y++ {
			off := y * rowPixels * spp
			for x := spp; x < rowPixels*spp; x++ {
				buf[off+x] += buf[off+x-spp]
			}
		}
	case 16:
		bpp := spp * 2
		for y := 0; y < rows; y++ {
			off := y * rowPixels * bpp
			for x := bpp; x < rowPixels*bpp; x += 2 {
				v0 := f.ByteOrder.Uint16(buf[off+x-bpp:])
				v1 := f.ByteOrder.Uint16(buf[off+x:])
				f.ByteOrder.PutUint16(buf[off+x:], v1+v0)
			}
		}
	default:
		return cogerr.New(cogerr.Container,
			"horizontal predictor with %d-bit samples not supported", d.BitsPerSample[0])
	}
	return nil
}

// copyBlock copies the visible part of a decoded block into the image,
// converting from file byte order to native order.
func (f *File) copyBlock(im *Image, buf []byte, xmin, ymin, copyW, copyH, rowBytes, bands, elem int) {
	for y := 0; y < copyH; y++ {
		src := buf[y*rowBytes:]
		dst := im.data[((ymin+y)*im.Width+xmin)*bands*elem:]
		n := copyW * bands

		switch elem {
		case 1:
			copy(dst[:n], src[:n])
		case 2:
			for k := 0; k < n; k++ {
				binary.NativeEndian.PutUint16(dst[2*k:], f.ByteOrder.Uint16(src[2*k:]))
			}
		case 4:
			for k := 0; k < n; k++ {
				binary.NativeEndian.PutUint32(dst[4*k:], f.ByteOrder.Uint32(src[4*k:]))
			}
		case 8:
			for k := 0; k < n; k++ {
				binary.NativeEndian.PutUint64(dst[8*k:], f.ByteOrder.Uint64(src[8*k:]))
			}
		}
	}
}

// unpackBits expands PackBits run-length encoding (TIFF spec, section 9).
func unpackBits(src []byte) ([]byte, error) {
	var dst []byte
	for i := 0; i < len(src); {
		n := int8(src[i])
		i++
		switch {
		case n >= 0:
			count := int(n) + 1
			if i+count > len(src) {
				return nil, fmt.Errorf("literal run of %d bytes overruns input", count)
			}
			dst = append(dst, src[i:i+count]...)
			i += count
		case n == -128:
			// No-op.
		default:
			if i >= len(src) {
				return nil, fmt.Errorf("replicate run missing value byte")
			}
			count := 1 - int(n)
			for k := 0; k < count; k++ {
				dst = append(dst, src[i])
			}
			i++
		}
	}
	return dst, nil
}
