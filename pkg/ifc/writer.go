package ifc

import (
	"bytes"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Faultbox/ifc-terrain/pkg/geom"
)

// Writer errors.
var (
	ErrMeshAlreadyAdded = errors.New("ifc: document already holds a mesh")
	ErrFinished         = errors.New("ifc: writer already finished")
)

// Writer accumulates one IFC document. NewWriter emits the fixed header,
// model, style and property sections; AddMesh appends the geometry pair
// (#94 point list, #53 face set); Finish closes the document.
//
// A Writer is not safe for concurrent use.
type Writer struct {
	buf       bytes.Buffer
	meta      Metadata
	namespace uuid.UUID
	nextID    int
	hasMesh   bool
	finished  bool
}

// NewWriter starts a document for meta.
func NewWriter(meta Metadata) *Writer {
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	meta.Timestamp = meta.Timestamp.UTC().Truncate(time.Second)

	w := &Writer{
		meta:      meta,
		namespace: uuid.NewSHA1(uuid.NameSpaceURL, []byte("ifc-terrain:"+meta.ProjectName+"/"+meta.SiteName)),
		nextID:    firstDynamicID,
	}
	w.writeHeader()
	w.writeModel()
	w.writeStyle()
	w.writeProperties()
	return w
}

// NextID hands out an entity id above every fixed id.
func (w *Writer) NextID() int {
	id := w.nextID
	w.nextID++
	return id
}

// AddMesh writes the point list and the triangulated face set. Indices are
// written 1-based. The mesh is not validated. Only one mesh per document is
// supported.
func (w *Writer) AddMesh(mesh *geom.Mesh) error {
	if w.finished {
		return ErrFinished
	}
	if w.hasMesh {
		return ErrMeshAlreadyAdded
	}
	w.hasMesh = true

	w.comment("GEOMETRY")

	// Built with a scratch slice rather than fmt; point lists run into the
	// hundreds of thousands of entries.
	line := make([]byte, 0, 64)

	w.buf.WriteString("#" + strconv.Itoa(idPointList) + "=IFCCARTESIANPOINTLIST3D((")
	for i, v := range mesh.Vertices {
		line = line[:0]
		if i > 0 {
			line = append(line, ',')
		}
		line = append(line, '(')
		line = append(line, formatCoord(v.X())...)
		line = append(line, ',')
		line = append(line, formatCoord(v.Y())...)
		line = append(line, ',')
		line = append(line, formatCoord(v.Z())...)
		line = append(line, ')')
		w.buf.Write(line)
	}
	w.buf.WriteString("));\n")

	w.buf.WriteString("#" + strconv.Itoa(idFaceSet) + "=IFCTRIANGULATEDFACESET(#" + strconv.Itoa(idPointList) + ",$,$,(")
	for t := range mesh.TriangleCount() {
		tri := mesh.Triangle(t)
		line = line[:0]
		if t > 0 {
			line = append(line, ',')
		}
		line = append(line, '(')
		line = strconv.AppendUint(line, uint64(tri[0])+1, 10)
		line = append(line, ',')
		line = strconv.AppendUint(line, uint64(tri[1])+1, 10)
		line = append(line, ',')
		line = strconv.AppendUint(line, uint64(tri[2])+1, 10)
		line = append(line, ')')
		w.buf.Write(line)
	}
	w.buf.WriteString("),$);\n")
	return nil
}

// Finish appends the section terminator and end-of-document marker and
// returns the document. Later calls return the same bytes.
func (w *Writer) Finish() []byte {
	if !w.finished {
		w.buf.WriteString("\nENDSEC;\nEND-ISO-10303-21;\n")
		w.finished = true
	}
	return w.buf.Bytes()
}

// Len returns the current document size in bytes.
func (w *Writer) Len() int {
	return w.buf.Len()
}

func (w *Writer) guid(entity int) string {
	return quote(GlobalID(uuid.NewSHA1(w.namespace, []byte(strconv.Itoa(entity)))))
}
