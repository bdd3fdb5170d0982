package geom

import "fmt"

// TriangulateGrid returns the index buffer for a width x height row-major
// vertex grid. Each quad is split along the same diagonal:
// (bottom-left, top-left, bottom-right) and (bottom-right, top-left, top-right).
func TriangulateGrid(width, height int) []uint32 {
	if width < 2 || height < 2 {
		return nil
	}
	indices := make([]uint32, 0, (width-1)*(height-1)*6)
	w := uint32(width)
	for y := 0; y < height-1; y++ {
		for x := 0; x < width-1; x++ {
			v0 := uint32(y)*w + uint32(x)
			v1 := v0 + 1
			v2 := v0 + w
			v3 := v2 + 1

			indices = append(indices,
				v0, v2, v1,
				v1, v2, v3,
			)
		}
	}
	return indices
}

// BuildGrid turns row-major samples into a triangulated mesh.
func BuildGrid(samples []Vertex, width, height int) (*Mesh, error) {
	if width < 2 || height < 2 {
		return nil, &GeometryError{Op: "grid", Reason: fmt.Sprintf("grid %dx%d is smaller than 2x2", width, height)}
	}
	if len(samples) != width*height {
		return nil, &GeometryError{Op: "grid", Reason: fmt.Sprintf("%d samples for a %dx%d grid", len(samples), width, height)}
	}
	vertices := make([]Vertex, len(samples))
	copy(vertices, samples)
	return &Mesh{
		Vertices: vertices,
		Indices:  TriangulateGrid(width, height),
	}, nil
}

// GridPositions returns the x/y positions of a width x height grid anchored at
// (originX, originY) with the given spacing, elevation zero.
func GridPositions(originX, originY, spacing float64, width, height int) []Vertex {
	vertices := make([]Vertex, 0, width*height)
	for y := range height {
		for x := range width {
			vertices = append(vertices, NewVertex(
				originX+float64(x)*spacing,
				originY+float64(y)*spacing,
				0,
			))
		}
	}
	return vertices
}
