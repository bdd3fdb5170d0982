package elevation

import "github.com/Faultbox/ifc-terrain/pkg/geom"

// Point is one query coordinate. Z is valid only when HasZ is set.
type Point struct {
	X, Y float64
	Z    float64
	HasZ bool
}

// Grid is the row-major set of query points for the point strategy. The index
// of (row, col) is row*Cols+col and is fixed before any request is sent.
type Grid struct {
	Rows, Cols int
	Points     []Point
}

// NewGrid lays out cols x rows points starting at the south-west corner of box.
func NewGrid(box geom.BBox, resolution float64, cols, rows int) *Grid {
	positions := geom.GridPositions(box.X1, box.Y1, resolution, cols, rows)
	g := &Grid{Rows: rows, Cols: cols, Points: make([]Point, len(positions))}
	for i, v := range positions {
		g.Points[i] = Point{X: v.X(), Y: v.Y()}
	}
	return g
}

// Index returns the flat index of (row, col).
func (g *Grid) Index(row, col int) int {
	return row*g.Cols + col
}

// Batches splits the point range into consecutive [start, end) spans of at
// most size points.
func (g *Grid) Batches(size int) [][2]int {
	if size <= 0 {
		size = len(g.Points)
	}
	var spans [][2]int
	for start := 0; start < len(g.Points); start += size {
		spans = append(spans, [2]int{start, min(start+size, len(g.Points))})
	}
	return spans
}

// Vertices converts the grid to vertices, substituting noData for missing
// elevations. It returns the vertices and the number of substitutions.
func (g *Grid) Vertices(noData float64) ([]geom.Vertex, int) {
	out := make([]geom.Vertex, len(g.Points))
	missing := 0
	for i, p := range g.Points {
		z := p.Z
		if !p.HasZ {
			z = noData
			missing++
		}
		out[i] = geom.NewVertex(p.X, p.Y, z)
	}
	return out, missing
}
