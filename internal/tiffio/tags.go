// Package tiffio parses TIFF and BigTIFF containers and decodes tiled or
// stripped pixel data into flat typed buffers. It knows nothing about
// geocoding or tensors beyond the element type tag it reports.
package tiffio

// TIFF tag IDs read by this package.
const (
	tagNewSubfileType  = 254
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagPlanarConfig    = 284
	tagPredictor       = 317
	tagTileWidth       = 322
	tagTileLength      = 323
	tagTileOffsets     = 324
	tagTileByteCounts  = 325
	tagExtraSamples    = 338
	tagSampleFormat    = 339
	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
	tagModelTransform  = 34264
	tagGDALNoData      = 42113
)

// IFD entry field types.
const (
	typeByte      = 1
	typeASCII     = 2
	typeShort     = 3
	typeLong      = 4
	typeRational  = 5
	typeSByte     = 6
	typeUndefined = 7
	typeSShort    = 8
	typeSLong     = 9
	typeSRational = 10
	typeFloat     = 11
	typeDouble    = 12
	typeLong8     = 16
	typeSLong8    = 17
	typeIFD8      = 18
)

// fieldTypeSize returns the byte size of one value of the field type,
// or 0 for unknown types.
func fieldTypeSize(ft uint16) int {
	switch ft {
	case typeByte, typeASCII, typeSByte, typeUndefined:
		return 1
	case typeShort, typeSShort:
		return 2
	case typeLong, typeSLong, typeFloat:
		return 4
	case typeRational, typeSRational, typeDouble, typeLong8, typeSLong8, typeIFD8:
		return 8
	default:
		return 0
	}
}

// Compression schemes.
const (
	CompressionNone       = 1
	CompressionLZW        = 5
	CompressionDeflate    = 8 // Adobe Deflate
	CompressionPackBits   = 32773
	CompressionDeflateOld = 32946 // legacy Deflate code, same wire format
)

// PhotometricInterpretation values.
const (
	PhotometricWhiteIsZero = 0
	PhotometricBlackIsZero = 1
	PhotometricRGB         = 2
	PhotometricPalette     = 3
	PhotometricMask        = 4
	PhotometricCMYK        = 5
	PhotometricYCbCr       = 6
	PhotometricCIELab      = 8
)

// SampleFormat values.
const (
	SampleFormatUint         = 1
	SampleFormatInt          = 2
	SampleFormatFloat        = 3
	SampleFormatVoid         = 4
	SampleFormatComplexInt   = 5
	SampleFormatComplexFloat = 6
)

// Predictor values.
const (
	PredictorNone       = 1
	PredictorHorizontal = 2
)

// PlanarConfiguration values.
const (
	PlanarConfigChunky = 1
	PlanarConfigPlanar = 2
)
