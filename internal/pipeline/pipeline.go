// Package pipeline runs the terrain synthesis chain: fetch elevations, build
// the grid mesh, blur, simplify, compact and encode the IFC document.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Faultbox/ifc-terrain/internal/elevation"
	"github.com/Faultbox/ifc-terrain/internal/logger"
	"github.com/Faultbox/ifc-terrain/internal/observability"
	"github.com/Faultbox/ifc-terrain/pkg/geom"
	"github.com/Faultbox/ifc-terrain/pkg/ifc"
	"github.com/Faultbox/ifc-terrain/pkg/surface"
)

// Request describes one terrain document.
type Request struct {
	BBox       geom.BBox
	Resolution float64
	CRS        int
	Metadata   ifc.Metadata
	Params     surface.Params
}

// Stats summarises a run.
type Stats struct {
	GridWidth     int
	GridHeight    int
	RawTriangles  int
	Triangles     int
	Vertices      int
	DocumentBytes int
	Elapsed       time.Duration
}

// Result is a finished document plus the mesh it encodes.
type Result struct {
	Document []byte
	Mesh     *geom.Mesh
	Stats    Stats
}

// Pipeline carries the observability hooks for Generate. The zero value
// logs through the package logger and records no metrics.
type Pipeline struct {
	Metrics *observability.Metrics
	Logger  *zap.Logger
}

// Generate runs a request with a zero Pipeline.
func Generate(ctx context.Context, src elevation.Source, req Request) (*Result, error) {
	var p Pipeline
	return p.Generate(ctx, src, req)
}

// Generate fetches elevations from src and produces the IFC document. No
// partial document is returned on error.
func (p *Pipeline) Generate(ctx context.Context, src elevation.Source, req Request) (res *Result, err error) {
	log := p.Logger
	if log == nil {
		log = logger.Named("pipeline")
	}
	start := time.Now()

	ctx, span := observability.Tracer().Start(ctx, "terrain.generate",
		trace.WithAttributes(
			attribute.String("bbox", req.BBox.String()),
			attribute.Float64("resolution", req.Resolution),
			attribute.Int("crs", req.CRS),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		p.Metrics.ObserveDocument(err)
	}()

	if err := validate(req); err != nil {
		return nil, &Error{Stage: StageRequest, Err: err}
	}

	var samples *elevation.Samples
	if err := p.stage(ctx, "fetch", func(ctx context.Context) (int, error) {
		var err error
		samples, err = src.Fetch(ctx, req.BBox)
		if err != nil {
			return -1, err
		}
		return -1, checkSamples(req, samples)
	}); err != nil {
		return nil, &Error{Stage: StageFetch, Err: err}
	}

	var mesh *geom.Mesh
	if err := p.stage(ctx, "build", func(context.Context) (int, error) {
		var err error
		if samples.Scattered() {
			mesh, err = geom.Delaunay(samples.Vertices)
		} else {
			mesh, err = geom.BuildGrid(samples.Vertices, samples.Width, samples.Height)
		}
		if err != nil {
			return -1, err
		}
		return mesh.TriangleCount(), nil
	}); err != nil {
		return nil, &Error{Stage: StageBuild, Err: err}
	}
	raw := mesh.TriangleCount()

	steps := []struct {
		name string
		fn   func(*geom.Mesh) (*geom.Mesh, error)
	}{
		{"blur", func(m *geom.Mesh) (*geom.Mesh, error) {
			return surface.GaussianBlur(m, samples.Width, samples.Height, req.Resolution, req.Params)
		}},
		{"simplify", func(m *geom.Mesh) (*geom.Mesh, error) {
			return surface.Simplify(m, req.Params.CompressionFactor, req.Params.MaxError)
		}},
		{"compact", func(m *geom.Mesh) (*geom.Mesh, error) {
			return surface.Compact(m), nil
		}},
	}
	for _, step := range steps {
		if step.name == "blur" && samples.Scattered() {
			log.Debug("skipping blur for scattered samples")
			continue
		}
		if err := p.stage(ctx, step.name, func(context.Context) (int, error) {
			next, err := step.fn(mesh)
			if err != nil {
				return -1, err
			}
			mesh = next
			return mesh.TriangleCount(), nil
		}); err != nil {
			return nil, &Error{Stage: StageProcess, Err: fmt.Errorf("%s: %w", step.name, err)}
		}
	}

	var doc []byte
	if err := p.stage(ctx, "encode", func(context.Context) (int, error) {
		meta := req.Metadata
		meta.CRS = req.CRS
		w := ifc.NewWriter(meta)
		if err := w.AddMesh(mesh); err != nil {
			return -1, err
		}
		doc = w.Finish()
		return mesh.TriangleCount(), nil
	}); err != nil {
		return nil, &Error{Stage: StageEncode, Err: err}
	}

	stats := Stats{
		GridWidth:     samples.Width,
		GridHeight:    samples.Height,
		RawTriangles:  raw,
		Triangles:     mesh.TriangleCount(),
		Vertices:      len(mesh.Vertices),
		DocumentBytes: len(doc),
		Elapsed:       time.Since(start),
	}
	log.Info("terrain generated",
		zap.String("bbox", req.BBox.String()),
		zap.Int("grid_width", stats.GridWidth),
		zap.Int("grid_height", stats.GridHeight),
		zap.Int("raw_triangles", stats.RawTriangles),
		zap.Int("triangles", stats.Triangles),
		zap.Int("vertices", stats.Vertices),
		zap.Int("bytes", stats.DocumentBytes),
		zap.Duration("elapsed", stats.Elapsed))

	return &Result{Document: doc, Mesh: mesh, Stats: stats}, nil
}

// stage runs fn inside a span and records its duration. fn returns the
// triangle count it produced, or -1 when it has none.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) (int, error)) error {
	ctx, span := observability.Tracer().Start(ctx, "terrain."+name)
	defer span.End()

	start := time.Now()
	triangles, err := fn(ctx)
	p.Metrics.ObserveStage(name, time.Since(start), triangles)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if triangles >= 0 {
		span.SetAttributes(attribute.Int("triangles", triangles))
	}
	return nil
}

func validate(req Request) error {
	if err := req.BBox.Validate(); err != nil {
		return err
	}
	if req.Resolution <= 0 {
		return fmt.Errorf("%w: %v", geom.ErrInvalidResolution, req.Resolution)
	}
	return req.Params.Validate()
}

// checkSamples rejects samples produced for a different grid spacing or
// reference system than the request describes.
func checkSamples(req Request, samples *elevation.Samples) error {
	if samples.Resolution != 0 && samples.Resolution != req.Resolution {
		return fmt.Errorf("%w: source resolution %v, request %v", ErrSourceMismatch, samples.Resolution, req.Resolution)
	}
	if samples.CRS != 0 && samples.CRS != req.CRS {
		return fmt.Errorf("%w: source EPSG:%d, request EPSG:%d", ErrSourceMismatch, samples.CRS, req.CRS)
	}
	return nil
}
