package geom

import (
	"errors"
	"testing"
)

func TestTriangulateGrid(t *testing.T) {
	tests := []struct {
		width, height int
	}{
		{2, 2},
		{3, 3},
		{5, 2},
		{4, 7},
	}

	for _, tt := range tests {
		indices := TriangulateGrid(tt.width, tt.height)
		wantTris := 2 * (tt.width - 1) * (tt.height - 1)
		if len(indices) != wantTris*3 {
			t.Errorf("%dx%d: got %d indices, want %d", tt.width, tt.height, len(indices), wantTris*3)
		}
		limit := uint32(tt.width * tt.height)
		for i, idx := range indices {
			if idx >= limit {
				t.Fatalf("%dx%d: index %d at %d out of range", tt.width, tt.height, idx, i)
			}
		}
	}
}

func TestTriangulateGridWinding(t *testing.T) {
	got := TriangulateGrid(2, 2)
	want := []uint32{0, 2, 1, 1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestTriangulateGridTooSmall(t *testing.T) {
	for _, dims := range [][2]int{{1, 5}, {5, 1}, {0, 0}} {
		if got := TriangulateGrid(dims[0], dims[1]); len(got) != 0 {
			t.Errorf("%v: expected no indices, got %d", dims, len(got))
		}
	}
}

func TestBuildGrid(t *testing.T) {
	samples := GridPositions(100, 200, 5, 3, 3)
	mesh, err := BuildGrid(samples, 3, 3)
	if err != nil {
		t.Fatalf("BuildGrid failed: %v", err)
	}
	if mesh.TriangleCount() != 8 {
		t.Errorf("expected 8 triangles, got %d", mesh.TriangleCount())
	}
	if err := mesh.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if v := mesh.Vertices[5]; v.X() != 110 || v.Y() != 205 {
		t.Errorf("vertex 5 at (%v, %v), want (110, 205)", v.X(), v.Y())
	}

	// The mesh owns its buffer.
	samples[0] = NewVertex(0, 0, 99)
	if mesh.Vertices[0].Z() != 0 {
		t.Error("BuildGrid aliases the sample slice")
	}
}

func TestBuildGridErrors(t *testing.T) {
	var geomErr *GeometryError

	_, err := BuildGrid(GridPositions(0, 0, 1, 3, 3), 3, 4)
	if !errors.As(err, &geomErr) {
		t.Errorf("size mismatch: expected GeometryError, got %v", err)
	}

	_, err = BuildGrid(GridPositions(0, 0, 1, 1, 4), 1, 4)
	if !errors.As(err, &geomErr) {
		t.Errorf("1-wide grid: expected GeometryError, got %v", err)
	}
}
