package elevation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/Faultbox/ifc-terrain/internal/observability"
	"github.com/Faultbox/ifc-terrain/pkg/geom"
)

// Point API limits.
const (
	DefaultBatchSize   = 50
	DefaultMaxInFlight = 8
)

// PointConfig configures a PointSource.
type PointConfig struct {
	Options
	URL             string
	BatchSize       int
	MaxInFlight     int
	NoDataElevation float64 // used where the service has no elevation
}

// PointSource queries a point elevation service in batches. At most
// MaxInFlight batches are outstanding; the first failing batch cancels the
// rest.
type PointSource struct {
	cfg PointConfig
	log *zap.Logger
}

// NewPointSource returns a point-batch strategy.
func NewPointSource(cfg PointConfig) *PointSource {
	cfg.setDefaults("elevation.points")
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = DefaultMaxInFlight
	}
	return &PointSource{cfg: cfg, log: cfg.Logger}
}

// pointResponse is the payload of the punkt endpoint.
type pointResponse struct {
	CRS    int `json:"koordsys"`
	Points []struct {
		X float64  `json:"x"`
		Y float64  `json:"y"`
		Z *float64 `json:"z"`
	} `json:"punkter"`
}

type batchResult struct {
	z   []*float64
	err error
}

// Fetch implements Source.
func (s *PointSource) Fetch(ctx context.Context, box geom.BBox) (*Samples, error) {
	padded, cols, rows, err := Layout(box, s.cfg.Resolution, s.cfg.PaddingCells)
	if err != nil {
		return nil, err
	}
	grid := NewGrid(padded, s.cfg.Resolution, cols, rows)
	spans := grid.Batches(s.cfg.BatchSize)

	ctx, span := observability.Tracer().Start(ctx, "elevation.points",
		trace.WithAttributes(
			attribute.String("bbox", padded.String()),
			attribute.Int("points", len(grid.Points)),
			attribute.Int("batches", len(spans)),
		))
	defer span.End()

	s.log.Debug("fetching point batches",
		zap.Int("points", len(grid.Points)),
		zap.Int("batches", len(spans)),
		zap.Int("max_in_flight", s.cfg.MaxInFlight))
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	gate := semaphore.NewWeighted(int64(s.cfg.MaxInFlight))

	// One result slot per admitted batch, queued in submission order.
	queue := make(chan chan batchResult, len(spans))

	g.Go(func() error {
		defer close(queue)
		for i, sp := range spans {
			if err := gate.Acquire(gctx, 1); err != nil {
				return nil
			}
			slot := make(chan batchResult, 1)
			queue <- slot
			s.cfg.Metrics.BatchAdmitted()

			g.Go(func() error {
				defer gate.Release(1)
				defer s.cfg.Metrics.BatchReleased()

				res := s.fetchBatch(gctx, i, grid.Points[sp[0]:sp[1]])
				slot <- res
				return res.err
			})
		}
		return nil
	})

	// Slots are drained in order even after a failure so every batch
	// goroutine has delivered before Wait.
	filled := 0
	failed := false
	for slot := range queue {
		res := <-slot
		if failed || res.err != nil {
			failed = true
			continue
		}
		sp := spans[filled]
		for k, z := range res.z {
			if z != nil {
				grid.Points[sp[0]+k].Z = *z
				grid.Points[sp[0]+k].HasZ = true
			}
		}
		filled++
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch failed")
		return nil, err
	}
	if filled < len(spans) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("point fetch stopped after %d of %d batches", filled, len(spans))
	}

	vertices, missing := grid.Vertices(s.cfg.NoDataElevation)
	if missing > 0 {
		s.cfg.Metrics.AddMissingElevation(missing)
		s.log.Warn("points without elevation",
			zap.Int("missing", missing),
			zap.Float64("substitute", s.cfg.NoDataElevation))
	}

	s.log.Info("point batches assembled",
		zap.Int("points", len(vertices)),
		zap.Int("batches", len(spans)),
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

func (s *PointSource) fetchBatch(ctx context.Context, index int, points []Point) batchResult {
	target := s.PointURL(points)

	start := time.Now()
	z, n, err := s.query(ctx, target, len(points))
	s.cfg.Metrics.ObserveFetch("points", time.Since(start), n, err)
	if err != nil {
		s.log.Debug("batch failed", zap.Int("batch", index), zap.Error(err))
		return batchResult{err: &BatchError{Index: index, Err: err}}
	}
	return batchResult{z: z}
}

// PointURL returns the query for one batch.
func (s *PointSource) PointURL(points []Point) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, p := range points {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('[')
		b.WriteString(strconv.FormatFloat(p.X, 'f', -1, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(p.Y, 'f', -1, 64))
		b.WriteByte(']')
	}
	b.WriteByte(']')

	q := url.Values{}
	q.Set("koordsys", strconv.Itoa(s.cfg.CRS))
	q.Set("punkter", b.String())
	q.Set("geojson", "false")
	return s.cfg.URL + "?" + q.Encode()
}

func (s *PointSource) query(ctx context.Context, target string, want int) ([]*float64, int, error) {
	req, err := s.cfg.request(ctx, target)
	if err != nil {
		return nil, 0, &TransportError{URL: target, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.cfg.Client.Do(req)
	if err != nil {
		return nil, 0, &TransportError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	if !statusOK(resp.StatusCode) {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, 0, &TransportError{
			URL:        target,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, len(data), &TransportError{URL: target, StatusCode: resp.StatusCode, Err: err}
	}

	var payload pointResponse
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, len(data), &DecodeError{Reason: "point payload", Err: err}
	}
	if len(payload.Points) != want {
		return nil, len(data), &DecodeError{
			Reason: fmt.Sprintf("expected %d points, got %d", want, len(payload.Points)),
		}
	}

	z := make([]*float64, want)
	for i, p := range payload.Points {
		z[i] = p.Z
	}
	return z, len(data), nil
}

var _ Source = (*PointSource)(nil)
