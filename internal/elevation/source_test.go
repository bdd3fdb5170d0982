package elevation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Faultbox/ifc-terrain/pkg/geom"
)

func TestLayout(t *testing.T) {
	tests := []struct {
		name       string
		box        geom.BBox
		res        float64
		pad        int
		wantBox    geom.BBox
		cols, rows int
	}{
		{"unpadded", geom.BBox{X1: 0, Y1: 0, X2: 10, Y2: 10}, 5, 0, geom.BBox{X1: 0, Y1: 0, X2: 10, Y2: 10}, 3, 3},
		{"padded", geom.BBox{X1: 0, Y1: 0, X2: 10, Y2: 10}, 5, 5, geom.BBox{X1: -25, Y1: -25, X2: 35, Y2: 35}, 13, 13},
		{"uneven", geom.BBox{X1: 0, Y1: 0, X2: 10, Y2: 4}, 3, 0, geom.BBox{X1: 0, Y1: 0, X2: 10, Y2: 4}, 5, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			box, cols, rows, err := Layout(tt.box, tt.res, tt.pad)
			if err != nil {
				t.Fatalf("Layout: %v", err)
			}
			if box != tt.wantBox || cols != tt.cols || rows != tt.rows {
				t.Errorf("Layout = %v %dx%d, want %v %dx%d", box, cols, rows, tt.wantBox, tt.cols, tt.rows)
			}
		})
	}
}

func TestLayoutRejectsBadResolution(t *testing.T) {
	_, _, _, err := Layout(geom.BBox{X2: 1, Y2: 1}, 0, 0)
	if !errors.Is(err, geom.ErrInvalidResolution) {
		t.Fatalf("expected ErrInvalidResolution, got %v", err)
	}
}

func TestGridBatches(t *testing.T) {
	g := NewGrid(geom.BBox{X2: 10, Y2: 10}, 1, 11, 11)
	spans := g.Batches(50)
	want := [][2]int{{0, 50}, {50, 100}, {100, 121}}
	if len(spans) != len(want) {
		t.Fatalf("got %d batches, want %d", len(spans), len(want))
	}
	for i := range want {
		if spans[i] != want[i] {
			t.Errorf("batch %d = %v, want %v", i, spans[i], want[i])
		}
	}
	if p := g.Points[g.Index(2, 3)]; p.X != 3 || p.Y != 2 {
		t.Errorf("point (2,3) = %+v", p)
	}
}

func TestGridVerticesNoData(t *testing.T) {
	g := NewGrid(geom.BBox{X2: 1, Y2: 1}, 1, 2, 2)
	g.Points[0].Z, g.Points[0].HasZ = 7, true
	g.Points[3].Z, g.Points[3].HasZ = 0, true

	vertices, missing := g.Vertices(-9999)
	if missing != 2 {
		t.Errorf("missing = %d, want 2", missing)
	}
	want := []float64{7, -9999, -9999, 0}
	for i, v := range vertices {
		if v.Z() != want[i] {
			t.Errorf("vertex %d z = %v, want %v", i, v.Z(), want[i])
		}
	}
}

func TestErrorChains(t *testing.T) {
	err := &BatchError{Index: 4, Err: &TransportError{URL: "http://x", Err: context.DeadlineExceeded}}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("BatchError should unwrap to the transport cause")
	}
	if got := err.Error(); got != "point batch 4: elevation request http://x: context deadline exceeded" {
		t.Errorf("Error() = %q", got)
	}

	decode := fmt.Errorf("stage: %w", &DecodeError{Reason: "tiff", Err: errors.New("bad magic")})
	var d *DecodeError
	if !errors.As(decode, &d) || d.Reason != "tiff" {
		t.Errorf("errors.As DecodeError failed: %v", decode)
	}
}
