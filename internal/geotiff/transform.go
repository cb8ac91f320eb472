package geotiff

import (
	"github.com/geocog/geocog/cogerr"
)

// Affine is the pixel-to-world mapping (a, b, c, d, e, f):
//
//	x = c + a*col + b*row
//	y = f + d*col + e*row
//
// In the supported subset b and d are always zero (north-up images).
type Affine struct {
	A, B, C float64
	D, E, F float64
}

// Apply maps a pixel coordinate to world coordinates. Integer pixel indices
// map to the top-left corner of the pixel.
func (t Affine) Apply(col, row float64) (x, y float64) {
	x = t.C + t.A*col + t.B*row
	y = t.F + t.D*col + t.E*row
	return x, y
}

// Transform derives the affine geotransform from the file's geo tags.
//
// Only the ModelPixelScale + ModelTiepoint form is supported, with the
// tiepoint anchored at the raster origin. Files carrying a full
// ModelTransformation matrix (rotation or shear) are rejected as
// unimplemented rather than silently mis-georeferenced.
func (r *Reader) Transform() (Affine, error) {
	d := r.file.IFDs[0]

	if len(d.Transformation) > 0 {
		return Affine{}, cogerr.New(cogerr.Unimplemented,
			"ModelTransformation tag (rotated or sheared images) not supported yet")
	}
	if len(d.PixelScale) < 2 {
		return Affine{}, cogerr.New(cogerr.MissingGeoTag,
			"ModelPixelScale tag missing or short (%d values)", len(d.PixelScale))
	}
	if len(d.Tiepoint) < 6 {
		return Affine{}, cogerr.New(cogerr.MissingGeoTag,
			"ModelTiepoint tag missing or short (%d values)", len(d.Tiepoint))
	}
	if d.Tiepoint[0] != 0 || d.Tiepoint[1] != 0 || d.Tiepoint[2] != 0 {
		return Affine{}, cogerr.New(cogerr.UnsupportedTiepoint,
			"tiepoint reference pixel (%g, %g, %g) is not the raster origin",
			d.Tiepoint[0], d.Tiepoint[1], d.Tiepoint[2])
	}

	return Affine{
		A: d.PixelScale[0],
		B: 0,
		C: d.Tiepoint[3],
		D: 0,
		E: -d.PixelScale[1],
		F: d.Tiepoint[4],
	}, nil
}

// XYCoords returns the world coordinates of every pixel center along the x
// and y axes of the full-resolution image.
func (r *Reader) XYCoords() (xs, ys []float64, err error) {
	t, err := r.Transform()
	if err != nil {
		return nil, nil, err
	}

	width, height := r.Size()
	xs = make([]float64, width)
	ys = make([]float64, height)
	for i := range xs {
		xs[i] = t.C + t.A/2 + float64(i)*t.A
	}
	for j := range ys {
		ys[j] = t.F + t.E/2 + float64(j)*t.E
	}
	return xs, ys, nil
}

// NoData returns the GDAL nodata marker of the full-resolution image, if
// present, as the raw tag string.
func (r *Reader) NoData() (string, bool) {
	d := r.file.IFDs[0]
	return d.NoData, d.NoData != ""
}
