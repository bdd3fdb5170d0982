package elevation

import (
	"bytes"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/tiff"
)

// Raster is a decoded north-up elevation raster. Row 0 is the northern edge.
// Cells without elevation hold NaN.
type Raster struct {
	Width, Height int
	Values        []float64
}

// At returns the value at pixel (px, py), clamped to the raster.
func (r *Raster) At(px, py int) float64 {
	px = min(max(px, 0), r.Width-1)
	py = min(max(py, 0), r.Height-1)
	return r.Values[py*r.Width+px]
}

// RasterDecoder turns a coverage payload into elevations.
type RasterDecoder interface {
	Decode(data []byte) (*Raster, error)
}

// TIFFDecoder decodes single-band TIFF coverages. Unsigned samples go
// through x/image/tiff; signed and IEEE float samples are read from the
// strips or tiles directly. Sample values are mapped to elevations as
// sample*Scale + Offset. Samples equal to the GDAL_NODATA value, and NaN
// samples, decode as NaN.
type TIFFDecoder struct {
	Scale  float64
	Offset float64
}

// Decode implements RasterDecoder.
func (d TIFFDecoder) Decode(data []byte) (*Raster, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Reason: "empty coverage payload"}
	}
	dir, err := readTIFFDir(data)
	if err != nil {
		return nil, &DecodeError{Reason: "tiff", Err: err}
	}

	var r *Raster
	if dir.sampleFormat() == sampleFormatUint {
		r, err = decodeImage(data)
	} else {
		r, err = dir.sampleRaster()
	}
	if err != nil {
		return nil, &DecodeError{Reason: "tiff", Err: err}
	}

	scale := d.Scale
	if scale == 0 {
		scale = 1
	}
	noData, hasNoData := dir.noData()
	for i, v := range r.Values {
		if math.IsNaN(v) || hasNoData && isNoData(v, noData) {
			r.Values[i] = math.NaN()
			continue
		}
		r.Values[i] = v*scale + d.Offset
	}
	return r, nil
}

// isNoData compares at float32 precision as well, since GDAL writes the
// nodata tag for Float32 bands as a float64 string.
func isNoData(v, noData float64) bool {
	return v == noData || v == float64(float32(noData))
}

func decodeImage(data []byte) (*Raster, error) {
	img, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, errTIFFFormat
	}

	r := &Raster{Width: b.Dx(), Height: b.Dy(), Values: make([]float64, 0, b.Dx()*b.Dy())}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r.Values = append(r.Values, float64(sample(img, x, y)))
		}
	}
	return r, nil
}

func sample(img image.Image, x, y int) uint16 {
	switch m := img.(type) {
	case *image.Gray16:
		return m.Gray16At(x, y).Y
	case *image.Gray:
		return uint16(m.GrayAt(x, y).Y)
	default:
		return color.Gray16Model.Convert(img.At(x, y)).(color.Gray16).Y
	}
}
