package geom

import (
	dvec3 "github.com/flywave/go3d/float64/vec3"
)

// Vertex is a terrain sample position; Z is the elevation.
type Vertex struct {
	Position dvec3.T
}

// NewVertex creates a vertex at (x, y, z).
func NewVertex(x, y, z float64) Vertex {
	return Vertex{Position: dvec3.T{x, y, z}}
}

// X returns the easting.
func (v Vertex) X() float64 { return v.Position[0] }

// Y returns the northing.
func (v Vertex) Y() float64 { return v.Position[1] }

// Z returns the elevation.
func (v Vertex) Z() float64 { return v.Position[2] }

// WithZ returns a copy with the elevation replaced.
func (v Vertex) WithZ(z float64) Vertex {
	v.Position[2] = z
	return v
}
