package tiffio

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"strings"

	"github.com/geocog/geocog/cogerr"
	"github.com/geocog/geocog/internal/tensor"
)

const (
	magicClassic = 42
	magicBig     = 43
)

// File is a parsed TIFF or BigTIFF container. IFDs appear in file order;
// for a Cloud-Optimized GeoTIFF the first IFD is the full-resolution image
// and later IFDs are reduced-resolution overviews.
type File struct {
	ByteOrder binary.ByteOrder
	BigTIFF   bool
	IFDs      []*IFD

	r    io.ReadSeeker
	size uint64
}

// IFD holds the tags of one image file directory.
type IFD struct {
	Width  uint32
	Height uint32

	BitsPerSample   []uint16
	SampleFormat    []uint16
	ExtraSamples    []uint16
	SamplesPerPixel uint16
	Photometric     uint16
	Compression     uint16
	Predictor       uint16
	PlanarConfig    uint16
	SubfileType     uint32

	RowsPerStrip    uint32
	StripOffsets    []uint64
	StripByteCounts []uint64

	TileWidth      uint32
	TileLength     uint32
	TileOffsets    []uint64
	TileByteCounts []uint64

	PixelScale     []float64
	Tiepoint       []float64
	Transformation []float64
	NoData         string
}

// Tiled reports whether the IFD stores pixels as tiles rather than strips.
func (d *IFD) Tiled() bool {
	return d.TileWidth != 0
}

// DataType maps the IFD's sample format and bit depth onto one of the ten
// element types. Bit depth and sample format must be uniform across bands.
func (d *IFD) DataType() (tensor.DataType, error) {
	if len(d.BitsPerSample) == 0 {
		return 0, cogerr.New(cogerr.Container, "missing BitsPerSample tag")
	}
	bits := d.BitsPerSample[0]
	for _, b := range d.BitsPerSample[1:] {
		if b != bits {
			return 0, cogerr.New(cogerr.UnsupportedSampleFormat,
				"non-uniform bits per sample %v", d.BitsPerSample)
		}
	}

	format := uint16(SampleFormatUint)
	if len(d.SampleFormat) > 0 {
		format = d.SampleFormat[0]
		for _, f := range d.SampleFormat[1:] {
			if f != format {
				return 0, cogerr.New(cogerr.UnsupportedSampleFormat,
					"non-uniform sample format %v", d.SampleFormat)
			}
		}
	}

	switch format {
	case SampleFormatUint:
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
	case SampleFormatInt:
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
	case SampleFormatFloat:
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

// Parse reads the container header and walks the IFD chain. The reader is
// retained for pixel decoding; no size limits are imposed on tag data.
func Parse(r io.ReadSeeker) (*File, error) {
	f := &File{r: r}

	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, cogerr.Wrap(cogerr.Io, err, "seek to end")
	}
	f.size = uint64(end)

	var hdr [8]byte
	if err := f.readAt(hdr[:], 0); err != nil {
		return nil, err
	}

	switch string(hdr[:2]) {
	case "II":
		f.ByteOrder = binary.LittleEndian
	case "MM":
		f.ByteOrder = binary.BigEndian
	default:
		return nil, cogerr.New(cogerr.Container, "bad byte order mark %q", hdr[:2])
	}

	var next uint64
	switch f.ByteOrder.Uint16(hdr[2:4]) {
	case magicClassic:
		next = uint64(f.ByteOrder.Uint32(hdr[4:8]))
	case magicBig:
		if f.ByteOrder.Uint16(hdr[4:6]) != 8 || f.ByteOrder.Uint16(hdr[6:8]) != 0 {
			return nil, cogerr.New(cogerr.Container, "bad BigTIFF header")
		}
		f.BigTIFF = true
		var off [8]byte
		if err := f.readAt(off[:], 8); err != nil {
			return nil, err
		}
		next = f.ByteOrder.Uint64(off[:])
	default:
		return nil, cogerr.New(cogerr.Container, "bad magic %d", f.ByteOrder.Uint16(hdr[2:4]))
	}

	seen := make(map[uint64]bool)
	for next != 0 {
		if seen[next] {
			return nil, cogerr.New(cogerr.Container, "IFD chain loop at offset %d", next)
		}
		seen[next] = true

		ifd, nextOff, err := f.readIFD(next)
		if err != nil {
			return nil, err
		}
		f.IFDs = append(f.IFDs, ifd)
		next = nextOff
	}

	if len(f.IFDs) == 0 {
		return nil, cogerr.New(cogerr.Container, "no image directories")
	}
	return f, nil
}

// readAt fills buf from the given absolute offset. Truncation is a
// Container error; any other stream failure is an Io error.
func (f *File) readAt(buf []byte, off uint64) error {
	if off > math.MaxInt64 {
		return cogerr.New(cogerr.Container, "offset %d out of range", off)
	}
	if _, err := f.r.Seek(int64(off), io.SeekStart); err != nil {
		return cogerr.Wrap(cogerr.Io, err, "seek to %d", off)
	}
	if _, err := io.ReadFull(f.r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return cogerr.Wrap(cogerr.Container, err, "truncated at offset %d", off)
		}
		return cogerr.Wrap(cogerr.Io, err, "read %d bytes at %d", len(buf), off)
	}
	return nil
}

// entry is one decoded IFD entry with its value bytes already fetched.
type entry struct {
	tag   uint16
	ftype uint16
	count uint64
	raw   []byte
}

func (f *File) readIFD(off uint64) (*IFD, uint64, error) {
	entrySize := 12
	countSize := 2
	nextSize := 4
	if f.BigTIFF {
		entrySize = 20
		countSize = 8
		nextSize = 8
	}

	cntBuf := make([]byte, countSize)
	if err := f.readAt(cntBuf, off); err != nil {
		return nil, 0, err
	}
	var numEntries uint64
	if f.BigTIFF {
		numEntries = f.ByteOrder.Uint64(cntBuf)
	} else {
		numEntries = uint64(f.ByteOrder.Uint16(cntBuf))
	}

	// The entry table has to fit in the file; a larger count is corrupt and
	// would overflow the length arithmetic below.
	if numEntries > f.size/uint64(entrySize) {
		return nil, 0, cogerr.New(cogerr.Container,
			"IFD at offset %d claims %d entries, file is %d bytes", off, numEntries, f.size)
	}
	tableLen := numEntries*uint64(entrySize) + uint64(nextSize)
	table := make([]byte, tableLen)
	if err := f.readAt(table, off+uint64(countSize)); err != nil {
		return nil, 0, err
	}

	d := &IFD{
		SamplesPerPixel: 1,
		Photometric:     PhotometricBlackIsZero,
		Compression:     CompressionNone,
		Predictor:       PredictorNone,
		PlanarConfig:    PlanarConfigChunky,
	}

	for i := uint64(0); i < numEntries; i++ {
		e, err := f.readEntry(table[i*uint64(entrySize) : (i+1)*uint64(entrySize)])
		if err != nil {
			return nil, 0, err
		}
		if err := f.applyEntry(d, e); err != nil {
			return nil, 0, err
		}
	}

	var next uint64
	nextBuf := table[numEntries*uint64(entrySize):]
	if f.BigTIFF {
		next = f.ByteOrder.Uint64(nextBuf)
	} else {
		next = uint64(f.ByteOrder.Uint32(nextBuf))
	}

	if d.Width == 0 || d.Height == 0 {
		return nil, 0, cogerr.New(cogerr.Container, "IFD missing image dimensions")
	}
	if d.RowsPerStrip == 0 {
		d.RowsPerStrip = d.Height
	}
	return d, next, nil
}

// readEntry decodes one entry and fetches out-of-line values.
func (f *File) readEntry(raw []byte) (*entry, error) {
	e := &entry{
		tag:   f.ByteOrder.Uint16(raw[0:2]),
		ftype: f.ByteOrder.Uint16(raw[2:4]),
	}

	var value []byte
	if f.BigTIFF {
		e.count = f.ByteOrder.Uint64(raw[4:12])
		value = raw[12:20]
	} else {
		e.count = uint64(f.ByteOrder.Uint32(raw[4:8]))
		value = raw[8:12]
	}

	size := fieldTypeSize(e.ftype)
	if size == 0 {
		// Unknown field type; skip the tag rather than fail the file.
		e.raw = nil
		return e, nil
	}
	if e.count > math.MaxInt64/uint64(size) {
		return nil, cogerr.New(cogerr.Container, "tag %d value too large", e.tag)
	}

	byteLen := e.count * uint64(size)
	if byteLen <= uint64(len(value)) {
		e.raw = value[:byteLen]
		return e, nil
	}

	var valOff uint64
	if f.BigTIFF {
		valOff = f.ByteOrder.Uint64(value)
	} else {
		valOff = uint64(f.ByteOrder.Uint32(value))
	}
	e.raw = make([]byte, byteLen)
	if err := f.readAt(e.raw, valOff); err != nil {
		return nil, err
	}
	return e, nil
}

// uints interprets the entry as unsigned integers, widening as needed.
func (f *File) uints(e *entry) ([]uint64, error) {
	out := make([]uint64, e.count)
	switch e.ftype {
	case typeByte:
		for i := range out {
			out[i] = uint64(e.raw[i])
		}
	case typeShort:
		for i := range out {
			out[i] = uint64(f.ByteOrder.Uint16(e.raw[2*i:]))
		}
	case typeLong:
		for i := range out {
			out[i] = uint64(f.ByteOrder.Uint32(e.raw[4*i:]))
		}
	case typeLong8, typeIFD8:
		for i := range out {
			out[i] = f.ByteOrder.Uint64(e.raw[8*i:])
		}
	default:
		return nil, cogerr.New(cogerr.Container, "tag %d has field type %d, expected integer", e.tag, e.ftype)
	}
	return out, nil
}

// shorts interprets the entry as uint16 values.
func (f *File) shorts(e *entry) ([]uint16, error) {
	vals, err := f.uints(e)
	if err != nil {
		return nil, err
	}
	out := make([]uint16, len(vals))
	for i, v := range vals {
		if v > math.MaxUint16 {
			return nil, cogerr.New(cogerr.Container, "tag %d value %d exceeds uint16", e.tag, v)
		}
		out[i] = uint16(v)
	}
	return out, nil
}

// doubles interprets the entry as float64 values.
func (f *File) doubles(e *entry) ([]float64, error) {
	if e.ftype != typeDouble {
		return nil, cogerr.New(cogerr.Container, "tag %d has field type %d, expected DOUBLE", e.tag, e.ftype)
	}
	out := make([]float64, e.count)
	for i := range out {
		out[i] = math.Float64frombits(f.ByteOrder.Uint64(e.raw[8*i:]))
	}
	return out, nil
}

// ascii interprets the entry as a NUL-terminated string.
func (f *File) ascii(e *entry) string {
	return strings.TrimRight(string(e.raw), "\x00")
}

func firstUint(vals []uint64) uint32 {
	if len(vals) == 0 {
		return 0
	}
	return uint32(vals[0])
}

func firstShort(vals []uint16) uint16 {
	if len(vals) == 0 {
		return 0
	}
	return vals[0]
}

//nolint:gocyclo // one arm per tag
func (f *File) applyEntry(d *IFD, e *entry) error {
	if e.raw == nil {
		return nil
	}

	switch e.tag {
	case tagImageWidth, tagImageLength, tagRowsPerStrip, tagNewSubfileType,
		tagTileWidth, tagTileLength:
		vals, err := f.uints(e)
		if err != nil {
			return err
		}
		switch e.tag {
		case tagImageWidth:
			d.Width = firstUint(vals)
		case tagImageLength:
			d.Height = firstUint(vals)
		case tagRowsPerStrip:
			d.RowsPerStrip = firstUint(vals)
		case tagNewSubfileType:
			d.SubfileType = firstUint(vals)
		case tagTileWidth:
			d.TileWidth = firstUint(vals)
		case tagTileLength:
			d.TileLength = firstUint(vals)
		}

	case tagBitsPerSample, tagSampleFormat, tagExtraSamples, tagSamplesPerPixel,
		tagPhotometric, tagCompression, tagPredictor, tagPlanarConfig:
		vals, err := f.shorts(e)
		if err != nil {
			return err
		}
		switch e.tag {
		case tagBitsPerSample:
			d.BitsPerSample = vals
		case tagSampleFormat:
			d.SampleFormat = vals
		case tagExtraSamples:
			d.ExtraSamples = vals
		case tagSamplesPerPixel:
			d.SamplesPerPixel = firstShort(vals)
		case tagPhotometric:
			d.Photometric = firstShort(vals)
		case tagCompression:
			d.Compression = firstShort(vals)
		case tagPredictor:
			d.Predictor = firstShort(vals)
		case tagPlanarConfig:
			d.PlanarConfig = firstShort(vals)
		}

	case tagStripOffsets, tagStripByteCounts, tagTileOffsets, tagTileByteCounts:
		vals, err := f.uints(e)
		if err != nil {
			return err
		}
		switch e.tag {
		case tagStripOffsets:
			d.StripOffsets = vals
		case tagStripByteCounts:
			d.StripByteCounts = vals
		case tagTileOffsets:
			d.TileOffsets = vals
		case tagTileByteCounts:
			d.TileByteCounts = vals
		}

	case tagModelPixelScale, tagModelTiepoint, tagModelTransform:
		vals, err := f.doubles(e)
		if err != nil {
			return err
		}
		switch e.tag {
		case tagModelPixelScale:
			d.PixelScale = vals
		case tagModelTiepoint:
			d.Tiepoint = vals
		case tagModelTransform:
			d.Transformation = vals
		}

	case tagGDALNoData:
		d.NoData = f.ascii(e)
	}
	return nil
}
