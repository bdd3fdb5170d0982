package surface

import (
	"errors"
	"math"
	"testing"

	"github.com/Faultbox/ifc-terrain/pkg/geom"
)

func gridMesh(t *testing.T, width, height int, z func(x, y int) float64) *geom.Mesh {
	t.Helper()
	samples := geom.GridPositions(500000, 6600000, 1, width, height)
	for i := range samples {
		samples[i] = samples[i].WithZ(z(i%width, i/width))
	}
	mesh, err := geom.BuildGrid(samples, width, height)
	if err != nil {
		t.Fatalf("BuildGrid failed: %v", err)
	}
	return mesh
}

func TestGaussianKernelNormalized(t *testing.T) {
	for _, r := range []int{0, 1, 2, 4} {
		k := GaussianKernel(r, 0.8)
		if len(k) != (2*r+1)*(2*r+1) {
			t.Fatalf("radius %d: kernel size %d", r, len(k))
		}
		var sum float64
		for _, v := range k {
			sum += v
		}
		if math.Abs(sum-1) > 1e-12 {
			t.Errorf("radius %d: kernel sums to %v", r, sum)
		}
	}
}

func TestGaussianBlurFlatFieldUnchanged(t *testing.T) {
	mesh := gridMesh(t, 8, 6, func(int, int) float64 { return 42 })

	out, err := GaussianBlur(mesh, 8, 6, 1, DefaultParams())
	if err != nil {
		t.Fatalf("GaussianBlur failed: %v", err)
	}
	for i, v := range out.Vertices {
		if math.Abs(v.Z()-42) > 1e-9 {
			t.Fatalf("vertex %d: z = %v, want 42", i, v.Z())
		}
	}
}

func TestGaussianBlurOnlyTouchesZ(t *testing.T) {
	mesh := gridMesh(t, 9, 9, func(x, y int) float64 { return float64((x*7 + y*13) % 5) })

	out, err := GaussianBlur(mesh, 9, 9, 1, DefaultParams())
	if err != nil {
		t.Fatalf("GaussianBlur failed: %v", err)
	}
	if len(out.Indices) != len(mesh.Indices) {
		t.Fatalf("index count changed: %d -> %d", len(mesh.Indices), len(out.Indices))
	}
	for i := range mesh.Indices {
		if out.Indices[i] != mesh.Indices[i] {
			t.Fatalf("index %d changed", i)
		}
	}
	for i := range mesh.Vertices {
		if out.Vertices[i].X() != mesh.Vertices[i].X() || out.Vertices[i].Y() != mesh.Vertices[i].Y() {
			t.Fatalf("vertex %d moved in x/y", i)
		}
	}
}

func TestGaussianBlurBorderCopiedThrough(t *testing.T) {
	mesh := gridMesh(t, 7, 7, func(x, y int) float64 {
		if x == 3 && y == 3 {
			return 100
		}
		return float64(x + y)
	})

	out, err := GaussianBlur(mesh, 7, 7, 1, DefaultParams())
	if err != nil {
		t.Fatalf("GaussianBlur failed: %v", err)
	}
	for i, v := range out.Vertices {
		x, y := i%7, i/7
		if x == 0 || y == 0 || x == 6 || y == 6 {
			if v.Z() != mesh.Vertices[i].Z() {
				t.Errorf("border vertex (%d,%d) changed: %v -> %v", x, y, mesh.Vertices[i].Z(), v.Z())
			}
		}
	}
	if peak := out.Vertices[3*7+3].Z(); peak >= 100 {
		t.Errorf("peak not smoothed: %v", peak)
	}
	if mesh.Vertices[3*7+3].Z() != 100 {
		t.Error("input mesh was mutated")
	}
}

func TestGaussianBlurNoPasses(t *testing.T) {
	mesh := gridMesh(t, 5, 5, func(x, y int) float64 { return float64(x * y) })
	p := DefaultParams()
	p.BlurPasses = 0

	out, err := GaussianBlur(mesh, 5, 5, 1, p)
	if err != nil {
		t.Fatalf("GaussianBlur failed: %v", err)
	}
	for i := range mesh.Vertices {
		if out.Vertices[i] != mesh.Vertices[i] {
			t.Fatalf("vertex %d changed with zero passes", i)
		}
	}
}

func TestGaussianBlurSizeMismatch(t *testing.T) {
	mesh := gridMesh(t, 4, 4, func(int, int) float64 { return 0 })
	_, err := GaussianBlur(mesh, 5, 4, 1, DefaultParams())
	var geomErr *geom.GeometryError
	if !errors.As(err, &geomErr) {
		t.Errorf("expected GeometryError, got %v", err)
	}
}

// referenceBlur convolves z sequentially, pass after pass, copying the ring
// within radius of the edge through.
func referenceBlur(z []float64, width, height, radius int, sigma float64, passes int) []float64 {
	kernel := GaussianKernel(radius, sigma)
	size := 2*radius + 1
	src := append([]float64(nil), z...)
	for range passes {
		dst := append([]float64(nil), src...)
		for y := radius; y < height-radius; y++ {
			for x := radius; x < width-radius; x++ {
				var sum float64
				for ky := range size {
					for kx := range size {
						sum += kernel[ky*size+kx] * src[(y+ky-radius)*width+x+kx-radius]
					}
				}
				dst[y*width+x] = sum
			}
		}
		src = dst
	}
	return src
}

func TestGaussianBlurMatchesSequentialConvolution(t *testing.T) {
	const width, height = 11, 9
	terrain := func(x, y int) float64 {
		return 10*math.Sin(float64(x)*0.7) + 0.3*float64(y*y) + float64((x*y)%7)
	}

	tests := []struct {
		name   string
		radius float64
		sigma  float64
		passes int
	}{
		{"one pass radius 2", 2, 1.1, 1},
		{"three passes radius 2", 2, 1.1, 3},
		{"two passes radius 3", 3, 1.7, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mesh := gridMesh(t, width, height, terrain)
			z := make([]float64, len(mesh.Vertices))
			for i, v := range mesh.Vertices {
				z[i] = v.Z()
			}

			p := DefaultParams()
			p.BlurRadius, p.BlurSigma, p.BlurPasses = tt.radius, tt.sigma, tt.passes
			got, err := GaussianBlur(mesh, width, height, 1, p)
			if err != nil {
				t.Fatalf("GaussianBlur: %v", err)
			}

			want := referenceBlur(z, width, height, int(tt.radius), tt.sigma, tt.passes)
			for i, v := range got.Vertices {
				if v.Z() != want[i] {
					t.Fatalf("vertex %d z = %v, want %v", i, v.Z(), want[i])
				}
			}
		})
	}
}

func TestGaussianBlurPassesChain(t *testing.T) {
	const width, height = 10, 10
	mesh := gridMesh(t, width, height, func(x, y int) float64 { return float64((x*7 + y*3) % 11) })

	p := DefaultParams()
	p.BlurRadius, p.BlurSigma = 2, 1.0

	p.BlurPasses = 3
	three, err := GaussianBlur(mesh, width, height, 1, p)
	if err != nil {
		t.Fatalf("GaussianBlur: %v", err)
	}

	p.BlurPasses = 1
	chained := mesh
	for range 3 {
		if chained, err = GaussianBlur(chained, width, height, 1, p); err != nil {
			t.Fatalf("GaussianBlur: %v", err)
		}
	}

	for i := range three.Vertices {
		if three.Vertices[i].Z() != chained.Vertices[i].Z() {
			t.Fatalf("vertex %d: 3 passes = %v, chained single passes = %v", i, three.Vertices[i].Z(), chained.Vertices[i].Z())
		}
	}
}
