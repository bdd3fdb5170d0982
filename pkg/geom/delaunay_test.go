package geom

import (
	"errors"
	"math/rand/v2"
	"testing"
)

func TestDelaunaySquareWithCenter(t *testing.T) {
	points := []Vertex{
		NewVertex(500000, 6600000, 1),
		NewVertex(500010, 6600000, 2),
		NewVertex(500010, 6600010, 3),
		NewVertex(500000, 6600010, 4),
		NewVertex(500005, 6600005, 5),
	}

	mesh, err := Delaunay(points)
	if err != nil {
		t.Fatalf("Delaunay failed: %v", err)
	}
	if err := mesh.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if mesh.TriangleCount() != 4 {
		t.Fatalf("expected 4 triangles, got %d", mesh.TriangleCount())
	}

	for i := range mesh.TriangleCount() {
		tri := mesh.Triangle(i)
		if tri[0] != 4 && tri[1] != 4 && tri[2] != 4 {
			t.Errorf("triangle %v does not use the center point", tri)
		}
		a, b, c := mesh.Vertices[tri[0]], mesh.Vertices[tri[1]], mesh.Vertices[tri[2]]
		area := (b.X()-a.X())*(c.Y()-a.Y()) - (b.Y()-a.Y())*(c.X()-a.X())
		if area <= 0 {
			t.Errorf("triangle %v is not counter-clockwise", tri)
		}
	}

	// Elevations ride along untouched.
	if mesh.Vertices[4].Z() != 5 {
		t.Errorf("center z = %v, want 5", mesh.Vertices[4].Z())
	}
}

func TestDelaunayErrors(t *testing.T) {
	tests := []struct {
		name   string
		points []Vertex
	}{
		{"too few", []Vertex{NewVertex(0, 0, 0), NewVertex(1, 0, 0)}},
		{"coincident", []Vertex{NewVertex(1, 1, 0), NewVertex(1, 1, 2), NewVertex(1, 1, 3)}},
		{"collinear", []Vertex{NewVertex(0, 0, 0), NewVertex(1, 1, 0), NewVertex(2, 2, 0), NewVertex(3, 3, 0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Delaunay(tt.points)
			var geomErr *GeometryError
			if !errors.As(err, &geomErr) {
				t.Errorf("expected GeometryError, got %v", err)
			}
		})
	}
}

func TestDelaunayRegularGrid(t *testing.T) {
	const w, h = 12, 9
	mesh, err := Delaunay(GridPositions(600000, 6640000, 2, w, h))
	if err != nil {
		t.Fatalf("Delaunay failed: %v", err)
	}
	if got, want := mesh.TriangleCount(), 2*(w-1)*(h-1); got != want {
		t.Errorf("triangles = %d, want %d", got, want)
	}
}

func TestDelaunayEmptyCircumcircles(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	points := make([]Vertex, 2000)
	for i := range points {
		points[i] = NewVertex(598000+rng.Float64()*1000, 6643000+rng.Float64()*1000, rng.Float64()*50)
	}

	mesh, err := Delaunay(points)
	if err != nil {
		t.Fatalf("Delaunay failed: %v", err)
	}
	if err := mesh.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	// Euler: a triangulation of n points with k on the hull has 2n-2-k triangles.
	if mesh.TriangleCount() < len(points) {
		t.Fatalf("only %d triangles for %d points", mesh.TriangleCount(), len(points))
	}

	for ti := range mesh.TriangleCount() {
		tri := mesh.Triangle(ti)
		a, b, c := mesh.Vertices[tri[0]], mesh.Vertices[tri[1]], mesh.Vertices[tri[2]]
		ox, oy := a.X(), a.Y()
		cx, cy, r2 := circumcircle(0, 0, b.X()-ox, b.Y()-oy, c.X()-ox, c.Y()-oy)
		for pi, p := range points {
			if uint32(pi) == tri[0] || uint32(pi) == tri[1] || uint32(pi) == tri[2] {
				continue
			}
			dx, dy := p.X()-ox-cx, p.Y()-oy-cy
			if dx*dx+dy*dy < r2*(1-1e-9) {
				t.Fatalf("point %d lies inside the circumcircle of triangle %v", pi, tri)
			}
		}
	}
}

func TestDelaunayInputOrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	points := make([]Vertex, 300)
	for i := range points {
		points[i] = NewVertex(rng.Float64()*100, rng.Float64()*100, float64(i))
	}
	shuffled := append([]Vertex(nil), points...)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	a, err := Delaunay(points)
	if err != nil {
		t.Fatalf("Delaunay failed: %v", err)
	}
	b, err := Delaunay(shuffled)
	if err != nil {
		t.Fatalf("Delaunay failed: %v", err)
	}
	if a.TriangleCount() != b.TriangleCount() {
		t.Errorf("triangle count %d vs %d after shuffling", a.TriangleCount(), b.TriangleCount())
	}
}
