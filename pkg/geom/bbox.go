// Package geom provides the geometry primitives used by the terrain pipeline:
// bounding boxes, vertices, triangle meshes and the triangulations that build them.
package geom

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// BBox errors.
var (
	ErrInvalidBBox       = errors.New("invalid bounding box")
	ErrInvalidResolution = errors.New("resolution must be positive")
)

// BBox is an axis-aligned rectangle in projected CRS coordinates.
// X2 >= X1 and Y2 >= Y1 for a valid box.
type BBox struct {
	X1 float64 `yaml:"x1" json:"x1"`
	Y1 float64 `yaml:"y1" json:"y1"`
	X2 float64 `yaml:"x2" json:"x2"`
	Y2 float64 `yaml:"y2" json:"y2"`
}

// NewBBox returns a validated bounding box.
func NewBBox(x1, y1, x2, y2 float64) (BBox, error) {
	b := BBox{X1: x1, Y1: y1, X2: x2, Y2: y2}
	if err := b.Validate(); err != nil {
		return BBox{}, err
	}
	return b, nil
}

// Validate checks the ordering invariant.
func (b BBox) Validate() error {
	for _, v := range [4]float64{b.X1, b.Y1, b.X2, b.Y2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite coordinate in %s", ErrInvalidBBox, b)
		}
	}
	if b.X2 < b.X1 || b.Y2 < b.Y1 {
		return fmt.Errorf("%w: %s", ErrInvalidBBox, b)
	}
	return nil
}

// Width returns the extent along x.
func (b BBox) Width() float64 {
	return b.X2 - b.X1
}

// Height returns the extent along y.
func (b BBox) Height() float64 {
	return b.Y2 - b.Y1
}

// NumPixelsX returns ceil(width / resolution).
func (b BBox) NumPixelsX(resolution float64) int {
	return int(math.Ceil(b.Width() / resolution))
}

// NumPixelsY returns ceil(height / resolution).
func (b BBox) NumPixelsY(resolution float64) int {
	return int(math.Ceil(b.Height() / resolution))
}

// Padded returns a copy grown by margin on every side.
func (b BBox) Padded(margin float64) BBox {
	return BBox{
		X1: b.X1 - margin,
		Y1: b.Y1 - margin,
		X2: b.X2 + margin,
		Y2: b.Y2 + margin,
	}
}

// Center returns the midpoint of the box.
func (b BBox) Center() (float64, float64) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// String formats the box as "x1,y1,x2,y2", the order WCS BBOX parameters use.
func (b BBox) String() string {
	return formatOrdinate(b.X1) + "," + formatOrdinate(b.Y1) + "," +
		formatOrdinate(b.X2) + "," + formatOrdinate(b.Y2)
}

// formatOrdinate never switches to exponent form; projected northings run
// into the millions.
func formatOrdinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseBBox parses "x1,y1,x2,y2".
func ParseBBox(s string) (BBox, error) {
	var x1, y1, x2, y2 float64
	if _, err := fmt.Sscanf(s, "%g,%g,%g,%g", &x1, &y1, &x2, &y2); err != nil {
		return BBox{}, fmt.Errorf("%w: parsing %q: %v", ErrInvalidBBox, s, err)
	}
	return NewBBox(x1, y1, x2, y2)
}
