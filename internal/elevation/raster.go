package elevation

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Faultbox/ifc-terrain/internal/observability"
	"github.com/Faultbox/ifc-terrain/pkg/geom"
)

// RasterConfig configures a RasterSource.
type RasterConfig struct {
	Options
	URL      string // WCS endpoint without query
	Coverage string
	Format   string // default GeoTIFF
	Decoder  RasterDecoder

	NoDataElevation float64 // used for cells the coverage marks as nodata
}

// RasterSource fetches one WCS 1.0.0 coverage for the padded box and samples
// it at every grid vertex. The coverage is requested one pixel per vertex,
// each Resolution wide, so every vertex sits on a pixel centre.
type RasterSource struct {
	cfg RasterConfig
	log *zap.Logger
}

// NewRasterSource returns a raster strategy.
func NewRasterSource(cfg RasterConfig) *RasterSource {
	cfg.setDefaults("elevation.raster")
	if cfg.Format == "" {
		cfg.Format = "GeoTIFF"
	}
	if cfg.Decoder == nil {
		cfg.Decoder = TIFFDecoder{Scale: 1}
	}
	return &RasterSource{cfg: cfg, log: cfg.Logger}
}

// CoverageURL returns the GetCoverage request for a coverage box.
func (s *RasterSource) CoverageURL(coverage geom.BBox, width, height int) string {
	q := url.Values{}
	q.Set("SERVICE", "WCS")
	q.Set("VERSION", "1.0.0")
	q.Set("REQUEST", "GetCoverage")
	q.Set("COVERAGE", s.cfg.Coverage)
	q.Set("CRS", "EPSG:"+strconv.Itoa(s.cfg.CRS))
	q.Set("BBOX", coverage.String())
	q.Set("WIDTH", strconv.Itoa(width))
	q.Set("HEIGHT", strconv.Itoa(height))
	q.Set("FORMAT", s.cfg.Format)
	return s.cfg.URL + "?" + q.Encode()
}

// CoverageBox returns the box whose cols x rows pixels, each resolution
// wide, are centred on the grid vertices of padded.
func CoverageBox(padded geom.BBox, resolution float64, cols, rows int) geom.BBox {
	half := resolution / 2
	x1, y1 := padded.X1-half, padded.Y1-half
	return geom.BBox{
		X1: x1,
		Y1: y1,
		X2: x1 + float64(cols)*resolution,
		Y2: y1 + float64(rows)*resolution,
	}
}

// Fetch implements Source.
func (s *RasterSource) Fetch(ctx context.Context, box geom.BBox) (*Samples, error) {
	padded, cols, rows, err := Layout(box, s.cfg.Resolution, s.cfg.PaddingCells)
	if err != nil {
		return nil, err
	}
	coverage := CoverageBox(padded, s.cfg.Resolution, cols, rows)

	ctx, span := observability.Tracer().Start(ctx, "elevation.raster",
		trace.WithAttributes(
			attribute.String("bbox", coverage.String()),
			attribute.Int("width", cols),
			attribute.Int("height", rows),
		))
	defer span.End()

	target := s.CoverageURL(coverage, cols, rows)
	s.log.Debug("fetching coverage", zap.String("url", target))

	start := time.Now()
	data, err := s.get(ctx, target)
	s.cfg.Metrics.ObserveFetch("raster", time.Since(start), len(data), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, err
	}

	raster, err := s.cfg.Decoder.Decode(data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		return nil, err
	}
	if raster.Width != cols || raster.Height != rows {
		s.log.Warn("coverage size differs from request",
			zap.Int("width", raster.Width), zap.Int("height", raster.Height),
			zap.Int("want_width", cols), zap.Int("want_height", rows))
	}

	vertices := make([]geom.Vertex, 0, cols*rows)
	missing := 0
	for r := range rows {
		y := padded.Y1 + float64(r)*s.cfg.Resolution
		py := pixel(coverage.Y2-y, coverage.Height(), raster.Height)
		for c := range cols {
			x := padded.X1 + float64(c)*s.cfg.Resolution
			px := pixel(x-coverage.X1, coverage.Width(), raster.Width)
			z := raster.At(px, py)
			if math.IsNaN(z) {
				z = s.cfg.NoDataElevation
				missing++
			}
			vertices = append(vertices, geom.NewVertex(x, y, z))
		}
	}
	if missing == len(vertices) {
		err := &DecodeError{Reason: "coverage holds no elevation for the box"}
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		return nil, err
	}
	if missing > 0 {
		s.cfg.Metrics.AddMissingElevation(missing)
		s.log.Warn("coverage has nodata cells",
			zap.Int("missing", missing),
			zap.Float64("substitute", s.cfg.NoDataElevation))
	}

	s.log.Info("coverage sampled",
		zap.Int("bytes", len(data)),
		zap.Int("vertices", len(vertices)),
		zap.Duration("elapsed", time.Since(start)))

	return &Samples{
		Width:      cols,
		Height:     rows,
		Bounds:     padded,
		Resolution: s.cfg.Resolution,
		CRS:        s.cfg.CRS,
		Vertices:   vertices,
	}, nil
}

// pixel maps an offset along an extent onto one of n pixels.
func pixel(offset, extent float64, n int) int {
	if extent <= 0 {
		return 0
	}
	return int(math.Floor(offset / extent * float64(n)))
}

func (s *RasterSource) get(ctx context.Context, target string) ([]byte, error) {
	req, err := s.cfg.request(ctx, target)
	if err != nil {
		return nil, &TransportError{URL: target, Err: err}
	}
	resp, err := s.cfg.Client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	if !statusOK(resp.StatusCode) {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &TransportError{
			URL:        target,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return data, &TransportError{URL: target, StatusCode: resp.StatusCode, Err: err}
	}
	return data, nil
}

var _ Source = (*RasterSource)(nil)

// statusOK reports whether code is a 2xx status.
func statusOK(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}
