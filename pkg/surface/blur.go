package surface

import (
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/ifc-terrain/pkg/geom"
)

// GaussianKernel builds a normalized (2r+1)x(2r+1) kernel, row-major.
func GaussianKernel(radius int, sigma float64) []float64 {
	size := 2*radius + 1
	kernel := make([]float64, size*size)
	var sum float64
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			v := math.Exp(-float64(x*x+y*y) / (2 * sigma * sigma))
			kernel[(y+radius)*size+(x+radius)] = v
			sum += v
		}
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// GaussianBlur smooths the elevation of a width x height grid mesh. Only z
// changes. Each pass reads the previous pass's output. Cells closer than the
// kernel radius to any edge are copied through unconvolved; the fetch padding
// is expected to absorb that ring.
func GaussianBlur(mesh *geom.Mesh, width, height int, resolution float64, p Params) (*geom.Mesh, error) {
	if len(mesh.Vertices) != width*height {
		return nil, &geom.GeometryError{
			Op:     "blur",
			Reason: fmt.Sprintf("%d vertices for a %dx%d grid", len(mesh.Vertices), width, height),
		}
	}
	out := mesh.Clone()

	radius := p.RadiusPixels(resolution)
	if p.BlurPasses == 0 || radius == 0 || width <= 2*radius || height <= 2*radius {
		return out, nil
	}
	kernel := GaussianKernel(radius, p.BlurSigma)
	size := 2*radius + 1

	src := make([]float64, len(out.Vertices))
	for i, v := range out.Vertices {
		src[i] = v.Z()
	}
	dst := make([]float64, len(src))

	for range p.BlurPasses {
		copy(dst, src)

		var g errgroup.Group
		g.SetLimit(runtime.GOMAXPROCS(0))
		for y := radius; y < height-radius; y++ {
			g.Go(func() error {
				for x := radius; x < width-radius; x++ {
					var sum float64
					for ky := range size {
						row := (y + ky - radius) * width
						for kx := range size {
							sum += kernel[ky*size+kx] * src[row+x+kx-radius]
						}
					}
					dst[y*width+x] = sum
				}
				return nil
			})
		}
		// Row closures never return an error.
		_ = g.Wait()

		src, dst = dst, src
	}

	for i := range out.Vertices {
		out.Vertices[i] = out.Vertices[i].WithZ(src[i])
	}
	return out, nil
}
