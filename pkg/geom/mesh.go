package geom

import (
	"fmt"

	dvec3 "github.com/flywave/go3d/float64/vec3"
)

// GeometryError reports input a triangulation or simplification cannot handle,
// such as too few points or a grid that does not match its sample count.
type GeometryError struct {
	Op     string
	Reason string
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("geometry: %s: %s", e.Op, e.Reason)
}

// Mesh is a vertex buffer plus a triangle index buffer.
// Indices are grouped in triples; every index is < len(Vertices).
// Transforms never mutate a Mesh, they return a new one.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

// NewMesh wraps the given buffers.
func NewMesh(vertices []Vertex, indices []uint32) *Mesh {
	return &Mesh{Vertices: vertices, Indices: indices}
}

// TriangleCount returns len(Indices) / 3.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Triangle returns the three vertex indices of triangle i.
func (m *Mesh) Triangle(i int) [3]uint32 {
	return [3]uint32{m.Indices[3*i], m.Indices[3*i+1], m.Indices[3*i+2]}
}

// Validate checks the index invariants.
func (m *Mesh) Validate() error {
	if len(m.Indices)%3 != 0 {
		return &GeometryError{Op: "validate", Reason: fmt.Sprintf("index count %d is not a multiple of 3", len(m.Indices))}
	}
	n := uint32(len(m.Vertices))
	for i, idx := range m.Indices {
		if idx >= n {
			return &GeometryError{Op: "validate", Reason: fmt.Sprintf("index %d at position %d out of range (%d vertices)", idx, i, n)}
		}
	}
	return nil
}

// Clone returns a deep copy.
func (m *Mesh) Clone() *Mesh {
	vertices := make([]Vertex, len(m.Vertices))
	copy(vertices, m.Vertices)
	indices := make([]uint32, len(m.Indices))
	copy(indices, m.Indices)
	return &Mesh{Vertices: vertices, Indices: indices}
}

// Bounds returns the axis-aligned box of all vertices.
func (m *Mesh) Bounds() dvec3.Box {
	if len(m.Vertices) == 0 {
		return dvec3.Box{}
	}
	box := dvec3.MinBox
	for _, v := range m.Vertices {
		b := dvec3.Box{Min: v.Position, Max: v.Position}
		box.Join(&b)
	}
	return box
}

// ReferencedVertices returns the set of distinct positions reachable from the
// index buffer.
func (m *Mesh) ReferencedVertices() map[dvec3.T]struct{} {
	set := make(map[dvec3.T]struct{}, len(m.Vertices))
	for _, idx := range m.Indices {
		set[m.Vertices[idx].Position] = struct{}{}
	}
	return set
}

// String is a short summary suitable for logs.
func (m *Mesh) String() string {
	return fmt.Sprintf("Mesh{vertices: %d, triangles: %d}", len(m.Vertices), m.TriangleCount())
}
