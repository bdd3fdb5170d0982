package surface

import (
	dvec3 "github.com/flywave/go3d/float64/vec3"

	"github.com/Faultbox/ifc-terrain/pkg/geom"
)

const unmapped = ^uint32(0)

// VertexRemap computes the old-to-new vertex index table for the referenced
// vertices of mesh. New indices follow first reference order in the index
// buffer; vertices with identical positions share one slot. Unreferenced
// vertices map to ^uint32(0). It returns the table and the new vertex count.
func VertexRemap(mesh *geom.Mesh) ([]uint32, int) {
	remap := make([]uint32, len(mesh.Vertices))
	for i := range remap {
		remap[i] = unmapped
	}
	byPosition := make(map[dvec3.T]uint32, len(mesh.Vertices))
	next := uint32(0)
	for _, idx := range mesh.Indices {
		if remap[idx] != unmapped {
			continue
		}
		pos := mesh.Vertices[idx].Position
		if existing, ok := byPosition[pos]; ok {
			remap[idx] = existing
			continue
		}
		byPosition[pos] = next
		remap[idx] = next
		next++
	}
	return remap, int(next)
}

// Compact drops unreferenced vertices, merges duplicate positions and rewrites
// the index buffer. Every index still denotes the same position afterwards.
func Compact(mesh *geom.Mesh) *geom.Mesh {
	remap, count := VertexRemap(mesh)

	vertices := make([]geom.Vertex, count)
	for old, idx := range remap {
		if idx != unmapped {
			vertices[idx] = mesh.Vertices[old]
		}
	}

	indices := make([]uint32, len(mesh.Indices))
	for i, idx := range mesh.Indices {
		indices[i] = remap[idx]
	}
	return geom.NewMesh(vertices, indices)
}
