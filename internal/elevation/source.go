// Package elevation fetches terrain elevation samples for a bounding box.
//
// Two strategies share the Source interface: RasterSource issues one WCS
// GetCoverage request and samples the decoded raster; PointSource queries a
// point elevation API in concurrent batches and reassembles the answers in
// submission order.
package elevation

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/ifc-terrain/internal/logger"
	"github.com/Faultbox/ifc-terrain/internal/observability"
	"github.com/Faultbox/ifc-terrain/pkg/geom"
)

// DefaultPaddingCells is the margin, in grid cells, fetched around the box so
// smoothing has real data at the edges.
const DefaultPaddingCells = 5

// Source produces elevation samples covering a bounding box.
type Source interface {
	Fetch(ctx context.Context, box geom.BBox) (*Samples, error)
}

// Samples is a row-major grid of vertices. Row 0 is the southern edge. A
// source may instead return an unordered point cloud with Width and Height
// left at zero. Resolution and CRS echo the source's settings; zero means
// the source does not say.
type Samples struct {
	Width      int
	Height     int
	Bounds     geom.BBox // padded box the grid spans
	Resolution float64
	CRS        int
	Vertices   []geom.Vertex
}

// Scattered reports whether the samples carry no grid layout.
func (s *Samples) Scattered() bool {
	return s.Width == 0 && s.Height == 0
}

// Options are shared by both strategies.
type Options struct {
	Resolution   float64
	CRS          int
	PaddingCells int
	Client       *http.Client
	UserAgent    string
	Metrics      *observability.Metrics
	Logger       *zap.Logger
}

func (o *Options) setDefaults(component string) {
	if o.Client == nil {
		o.Client = &http.Client{Timeout: 60 * time.Second}
	}
	if o.Logger == nil {
		o.Logger = logger.Named(component)
	}
}

// Layout returns the padded box and the vertex grid dimensions for box at
// resolution. The grid spans the padded box edge to edge, so it has one more
// vertex than cells along each axis.
func Layout(box geom.BBox, resolution float64, paddingCells int) (geom.BBox, int, int, error) {
	if err := box.Validate(); err != nil {
		return geom.BBox{}, 0, 0, err
	}
	if resolution <= 0 {
		return geom.BBox{}, 0, 0, fmt.Errorf("%w: %v", geom.ErrInvalidResolution, resolution)
	}
	padded := box.Padded(float64(paddingCells) * resolution)
	return padded, padded.NumPixelsX(resolution) + 1, padded.NumPixelsY(resolution) + 1, nil
}

func (o *Options) request(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if o.UserAgent != "" {
		req.Header.Set("User-Agent", o.UserAgent)
	}
	return req, nil
}
