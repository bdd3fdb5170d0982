// Package glb exports a terrain mesh as a binary glTF preview.
package glb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	dvec3 "github.com/flywave/go3d/float64/vec3"
	"github.com/qmuntal/gltf"

	"github.com/Faultbox/ifc-terrain/pkg/geom"
)

const gltfVersion = "2.0"

// Encode writes mesh as a single-primitive GLB. Positions are made relative
// to origin, since projected coordinates do not survive float32, and rotated
// from z-up to the glTF y-up frame.
func Encode(mesh *geom.Mesh, origin dvec3.T) ([]byte, error) {
	if len(mesh.Vertices) == 0 || mesh.TriangleCount() == 0 {
		return nil, &geom.GeometryError{Op: "glb", Reason: "mesh is empty"}
	}
	if err := mesh.Validate(); err != nil {
		return nil, err
	}

	positions := make([][3]float32, len(mesh.Vertices))
	lo := [3]float32{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
	hi := [3]float32{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32}
	for i, v := range mesh.Vertices {
		local := dvec3.Sub(&v.Position, &origin)
		p := [3]float32{float32(local[0]), float32(local[2]), float32(-local[1])}
		for k := range 3 {
			lo[k] = min(lo[k], p[k])
			hi[k] = max(hi[k], p[k])
		}
		positions[i] = p
	}

	// Indices first; both sections are 4-byte aligned.
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, mesh.Indices); err != nil {
		return nil, err
	}
	indexLength := uint32(buf.Len())
	if err := binary.Write(&buf, binary.LittleEndian, positions); err != nil {
		return nil, err
	}
	positionLength := uint32(buf.Len()) - indexLength

	doc := &gltf.Document{
		Asset:   gltf.Asset{Version: gltfVersion, Generator: "ifc-terrain"},
		Scene:   uint32Ptr(0),
		Scenes:  []*gltf.Scene{{Nodes: []uint32{0}}},
		Nodes:   []*gltf.Node{{Name: "terrain", Mesh: uint32Ptr(0)}},
		Buffers: []*gltf.Buffer{{ByteLength: uint32(buf.Len()), Data: buf.Bytes()}},
		BufferViews: []*gltf.BufferView{
			{Buffer: 0, ByteOffset: 0, ByteLength: indexLength},
			{Buffer: 0, ByteOffset: indexLength, ByteLength: positionLength},
		},
		Accessors: []*gltf.Accessor{
			{
				BufferView:    uint32Ptr(0),
				ComponentType: gltf.ComponentUint,
				Type:          gltf.AccessorScalar,
				Count:         uint32(len(mesh.Indices)),
			},
			{
				BufferView:    uint32Ptr(1),
				ComponentType: gltf.ComponentFloat,
				Type:          gltf.AccessorVec3,
				Count:         uint32(len(positions)),
				Min:           lo[:],
				Max:           hi[:],
			},
		},
		Meshes: []*gltf.Mesh{{
			Name: "terrain",
			Primitives: []*gltf.Primitive{{
				Indices:    uint32Ptr(0),
				Attributes: gltf.Attribute{"POSITION": 1},
				Mode:       gltf.PrimitiveTriangles,
			}},
		}},
	}

	var out bytes.Buffer
	enc := gltf.NewEncoder(&out)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode glb: %w", err)
	}
	return out.Bytes(), nil
}

func uint32Ptr(v uint32) *uint32 {
	return &v
}
