// Package tifftest builds synthetic TIFF and BigTIFF files in memory for
// decoder tests. It supports the subset of the format the decoders read:
// strips or tiles, horizontal predictor, and deflate, packbits or LZW
// compressed blocks.
package tifftest

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"math"
	"sort"
)

// Field types used by the builder.
const (
	TypeShort  = 3
	TypeLong   = 4
	TypeASCII  = 2
	TypeDouble = 12
)

// Compression schemes understood by the builder.
const (
	CompressionNone       = 1
	CompressionLZW        = 5
	CompressionDeflate    = 8
	CompressionPackBits   = 32773
	CompressionDeflateOld = 32946
)

// Config describes the file to synthesize. Pixels is the full raster,
// band-interleaved, already in the file byte order. Zero-value fields get
// sensible defaults: little-endian, one band, chunky, uncompressed strips.
type Config struct {
	BigTIFF   bool
	BigEndian bool

	Width  uint32
	Height uint32

	Bands         uint16
	BitsPerSample uint16
	SampleFormat  uint16
	Photometric   uint16
	Compression   uint16
	Predictor     uint16

	// TileWidth != 0 switches from strips to tiles.
	TileWidth  uint32
	TileLength uint32
	// RowsPerStrip defaults to the full image height.
	RowsPerStrip uint32

	PixelScale     []float64
	Tiepoint       []float64
	Transformation []float64

	Pixels []byte

	// Overviews are appended as further IFDs sharing this config's
	// sample layout.
	Overviews []Overview
}

// Overview is a reduced-resolution raster appended after the main IFD.
type Overview struct {
	Width  uint32
	Height uint32
	Pixels []byte
}

type entry struct {
	tag   uint16
	ftype uint16
	count uint64
	value []byte // packed in file byte order
}

type builder struct {
	cfg   Config
	order binary.ByteOrder
	buf   *bytes.Buffer
}

// Build serializes the config into a complete TIFF or BigTIFF byte stream.
func Build(cfg Config) []byte {
	if cfg.Bands == 0 {
		cfg.Bands = 1
	}
	if cfg.BitsPerSample == 0 {
		cfg.BitsPerSample = 8
	}
	if cfg.SampleFormat == 0 {
		cfg.SampleFormat = 1
	}
	if cfg.Compression == 0 {
		cfg.Compression = CompressionNone
	}
	if cfg.Predictor == 0 {
		cfg.Predictor = 1
	}
	if cfg.RowsPerStrip == 0 {
		cfg.RowsPerStrip = cfg.Height
	}

	b := &builder{cfg: cfg, buf: &bytes.Buffer{}}
	b.order = binary.LittleEndian
	if cfg.BigEndian {
		b.order = binary.BigEndian
	}

	headerLen := 8
	if cfg.BigTIFF {
		headerLen = 16
	}
	body := &bytes.Buffer{} // everything after the header

	type pendingIFD struct {
		width, height uint32
		offsets       []uint64
		counts        []uint64
	}
	var pending []pendingIFD

	writeBlocks := func(width, height uint32, pixels []byte) pendingIFD {
		p := pendingIFD{width: width, height: height}
		for _, blk := range b.splitBlocks(width, height, pixels) {
			enc := b.encodeBlock(blk)
			p.offsets = append(p.offsets, uint64(headerLen+body.Len()))
			p.counts = append(p.counts, uint64(len(enc)))
			body.Write(enc)
		}
		return p
	}

	pending = append(pending, writeBlocks(cfg.Width, cfg.Height, cfg.Pixels))
	for _, ov := range cfg.Overviews {
		pending = append(pending, writeBlocks(ov.Width, ov.Height, ov.Pixels))
	}

	// IFDs go after all block data; each links to the next.
	ifdOffsets := make([]uint64, len(pending))
	raws := make([][]byte, len(pending))
	extras := make([][]byte, len(pending))
	off := uint64(headerLen + body.Len())
	for i, p := range pending {
		entries := b.entries(p.width, p.height, i > 0, p.offsets, p.counts)
		raw, extra := b.packIFD(entries, off)
		ifdOffsets[i] = off
		raws[i] = raw
		extras[i] = extra
		off += uint64(len(raw) + len(extra))
	}

	out := &bytes.Buffer{}
	b.writeHeader(out, ifdOffsets[0])
	out.Write(body.Bytes())
	for i := range raws {
		next := uint64(0)
		if i+1 < len(ifdOffsets) {
			next = ifdOffsets[i+1]
		}
		b.patchNext(raws[i], next)
		out.Write(raws[i])
		out.Write(extras[i])
	}
	return out.Bytes()
}

func (b *builder) writeHeader(out *bytes.Buffer, firstIFD uint64) {
	if b.cfg.BigEndian {
		out.WriteString("MM")
	} else {
		out.WriteString("II")
	}
	if b.cfg.BigTIFF {
		b.putU16(out, 43)
		b.putU16(out, 8)
		b.putU16(out, 0)
		b.putU64(out, firstIFD)
	} else {
		b.putU16(out, 42)
		b.putU32(out, uint32(firstIFD))
	}
}

// splitBlocks cuts the raster into strip or tile payloads, applying the
// predictor and tile padding but not compression.
func (b *builder) splitBlocks(width, height uint32, pixels []byte) [][]byte {
	elem := int(b.cfg.BitsPerSample) / 8
	pixelBytes := int(b.cfg.Bands) * elem
	rowBytes := int(width) * pixelBytes

	var blocks [][]byte
	if b.cfg.TileWidth == 0 {
		for y := 0; y < int(height); y += int(b.cfg.RowsPerStrip) {
			rows := min(int(b.cfg.RowsPerStrip), int(height)-y)
			strip := append([]byte(nil), pixels[y*rowBytes:(y+rows)*rowBytes]...)
			b.applyPredictor(strip, int(width), rows)
			blocks = append(blocks, strip)
		}
		return blocks
	}

	tw, th := int(b.cfg.TileWidth), int(b.cfg.TileLength)
	tileRowBytes := tw * pixelBytes
	for ty := 0; ty < int(height); ty += th {
		for tx := 0; tx < int(width); tx += tw {
			tile := make([]byte, tileRowBytes*th)
			copyW := min(tw, int(width)-tx)
			copyH := min(th, int(height)-ty)
			for y := 0; y < copyH; y++ {
				src := pixels[(ty+y)*rowBytes+tx*pixelBytes:]
				copy(tile[y*tileRowBytes:], src[:copyW*pixelBytes])
			}
			b.applyPredictor(tile, tw, th)
			blocks = append(blocks, tile)
		}
	}
	return blocks
}

// applyPredictor converts a block to horizontal differences in place.
func (b *builder) applyPredictor(buf []byte, rowPixels, rows int) {
	if b.cfg.Predictor != 2 {
		return
	}
	spp := int(b.cfg.Bands)
	switch b.cfg.BitsPerSample {
	case 8:
		for y := 0; y < rows; y++ {
			off := y * rowPixels * spp
			for x := rowPixels*spp - 1; x >= spp; x-- {
				buf[off+x] -= buf[off+x-spp]
			}
		}
	case 16:
		bpp := spp * 2
		for y := 0; y < rows; y++ {
			off := y * rowPixels * bpp
			for x := rowPixels*bpp - 2; x >= bpp; x -= 2 {
				prev := b.order.Uint16(buf[off+x-bpp:])
				cur := b.order.Uint16(buf[off+x:])
				b.order.PutUint16(buf[off+x:], cur-prev)
			}
		}
	default:
		panic("predictor fixtures support 8- and 16-bit samples only")
	}
}

func (b *builder) encodeBlock(blk []byte) []byte {
	switch b.cfg.Compression {
	case CompressionNone:
		return blk
	case CompressionDeflate, CompressionDeflateOld:
		var out bytes.Buffer
		zw := zlib.NewWriter(&out)
		zw.Write(blk)
		zw.Close()
		return out.Bytes()
	case CompressionPackBits:
		return packBits(blk)
	case CompressionLZW:
		return lzwEncode(blk)
	default:
		panic("unsupported fixture compression")
	}
}

// entries builds the sorted tag list for one IFD.
func (b *builder) entries(width, height uint32, overview bool, offsets, counts []uint64) []entry {
	cfg := b.cfg
	var es []entry

	es = append(es,
		b.longEntry(256, width),
		b.longEntry(257, height),
		b.shortsEntry(258, repeat16(cfg.BitsPerSample, int(cfg.Bands))),
		b.shortsEntry(259, []uint16{cfg.Compression}),
		b.shortsEntry(262, []uint16{cfg.Photometric}),
		b.shortsEntry(277, []uint16{cfg.Bands}),
		b.shortsEntry(284, []uint16{1}),
		b.shortsEntry(339, repeat16(cfg.SampleFormat, int(cfg.Bands))),
	)
	if overview {
		es = append(es, b.longEntry(254, 1))
	}
	if cfg.Predictor != 1 {
		es = append(es, b.shortsEntry(317, []uint16{cfg.Predictor}))
	}

	if cfg.TileWidth == 0 {
		es = append(es,
			b.longEntry(278, cfg.RowsPerStrip),
			b.longsEntry(273, offsets),
			b.longsEntry(279, counts),
		)
	} else {
		es = append(es,
			b.longEntry(322, cfg.TileWidth),
			b.longEntry(323, cfg.TileLength),
			b.longsEntry(324, offsets),
			b.longsEntry(325, counts),
		)
	}

	if !overview {
		if len(cfg.PixelScale) > 0 {
			es = append(es, b.doublesEntry(33550, cfg.PixelScale))
		}
		if len(cfg.Tiepoint) > 0 {
			es = append(es, b.doublesEntry(33922, cfg.Tiepoint))
		}
		if len(cfg.Transformation) > 0 {
			es = append(es, b.doublesEntry(34264, cfg.Transformation))
		}
	}

	sort.Slice(es, func(i, j int) bool { return es[i].tag < es[j].tag })
	return es
}

// packIFD serializes entries into the directory table plus the out-of-line
// value area that follows it. ifdOff is the absolute offset of the table.
func (b *builder) packIFD(es []entry, ifdOff uint64) (raw, extra []byte) {
	entrySize, countSize, nextSize, inline := 12, 2, 4, 4
	if b.cfg.BigTIFF {
		entrySize, countSize, nextSize, inline = 20, 8, 8, 8
	}

	tableLen := countSize + len(es)*entrySize + nextSize
	extraOff := ifdOff + uint64(tableLen)
	var extraBuf bytes.Buffer

	table := &bytes.Buffer{}
	if b.cfg.BigTIFF {
		b.putU64(table, uint64(len(es)))
	} else {
		b.putU16(table, uint16(len(es)))
	}

	for _, e := range es {
		b.putU16(table, e.tag)
		b.putU16(table, e.ftype)
		if b.cfg.BigTIFF {
			b.putU64(table, e.count)
		} else {
			b.putU32(table, uint32(e.count))
		}

		val := make([]byte, inline)
		if len(e.value) <= inline {
			copy(val, e.value)
		} else {
			off := extraOff + uint64(extraBuf.Len())
			if b.cfg.BigTIFF {
				b.order.PutUint64(val, off)
			} else {
				b.order.PutUint32(val, uint32(off))
			}
			extraBuf.Write(e.value)
		}
		table.Write(val)
	}

	// Next-IFD link, patched later.
	table.Write(make([]byte, nextSize))
	return table.Bytes(), extraBuf.Bytes()
}

// patchNext rewrites the next-IFD link at the end of a packed table.
func (b *builder) patchNext(raw []byte, next uint64) {
	if b.cfg.BigTIFF {
		b.order.PutUint64(raw[len(raw)-8:], next)
	} else {
		b.order.PutUint32(raw[len(raw)-4:], uint32(next))
	}
}

func (b *builder) shortsEntry(tag uint16, vals []uint16) entry {
	buf := make([]byte, 2*len(vals))
	for i, v := range vals {
		b.order.PutUint16(buf[2*i:], v)
	}
	return entry{tag: tag, ftype: TypeShort, count: uint64(len(vals)), value: buf}
}

func (b *builder) longEntry(tag uint16, v uint32) entry {
	buf := make([]byte, 4)
	b.order.PutUint32(buf, v)
	return entry{tag: tag, ftype: TypeLong, count: 1, value: buf}
}

func (b *builder) longsEntry(tag uint16, vals []uint64) entry {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		b.order.PutUint32(buf[4*i:], uint32(v))
	}
	return entry{tag: tag, ftype: TypeLong, count: uint64(len(vals)), value: buf}
}

func (b *builder) doublesEntry(tag uint16, vals []float64) entry {
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		b.order.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return entry{tag: tag, ftype: TypeDouble, count: uint64(len(vals)), value: buf}
}

func (b *builder) putU16(w *bytes.Buffer, v uint16) {
	var tmp [2]byte
	b.order.PutUint16(tmp[:], v)
	w.Write(tmp[:])
}

func (b *builder) putU32(w *bytes.Buffer, v uint32) {
	var tmp [4]byte
	b.order.PutUint32(tmp[:], v)
	w.Write(tmp[:])
}

func (b *builder) putU64(w *bytes.Buffer, v uint64) {
	var tmp [8]byte
	b.order.PutUint64(tmp[:], v)
	w.Write(tmp[:])
}

func repeat16(v uint16, n int) []uint16 {
	out := make([]uint16, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// packBits run-length encodes a block (TIFF spec, section 9). Literal runs
// only; correct, if not minimal.
func packBits(src []byte) []byte {
	var dst []byte
	for len(src) > 0 {
		n := min(128, len(src))
		dst = append(dst, byte(n-1))
		dst = append(dst, src[:n]...)
		src = src[n:]
	}
	return dst
}

// lzwEncode emits a literal-only TIFF LZW stream: Clear, each byte as a
// 9-bit code, EOI. Valid while fewer than 253 symbols keep the code width
// at 9 bits, which holds for every fixture here.
func lzwEncode(src []byte) []byte {
	if len(src) >= 250 {
		panic("lzw fixtures must stay under 250 bytes")
	}
	var (
		dst   []byte
		acc   uint32
		nbits uint
	)
	emit := func(code uint32) {
		acc = acc<<9 | code
		nbits += 9
		for nbits >= 8 {
			nbits -= 8
			dst = append(dst, byte(acc>>nbits))
		}
	}
	emit(256) // Clear
	for _, c := range src {
		emit(uint32(c))
	}
	emit(257) // EOI
	if nbits > 0 {
		dst = append(dst, byte(acc<<(8-nbits)))
	}
	return dst
}
