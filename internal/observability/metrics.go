// Package observability wires Prometheus metrics and OpenTelemetry tracing
// for the terrain pipeline.
package observability

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics bundles the collectors for elevation fetches and pipeline stages.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	FetchRequests    *prometheus.CounterVec
	FetchDuration    *prometheus.HistogramVec
	FetchBytes       *prometheus.CounterVec
	BatchesInFlight  prometheus.Gauge
	MissingElevation prometheus.Counter

	StageDuration *prometheus.HistogramVec
	MeshTriangles *prometheus.GaugeVec
	Documents     *prometheus.CounterVec
}

// NewMetrics registers the terrain collectors against reg, defaulting to the
// global registry when nil. Registering twice against the same registry
// returns the existing collectors.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	m := &Metrics{gatherer: gatherer}
	var err error

	if m.FetchRequests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "terrain_fetch_requests_total",
		Help: "Elevation requests sent upstream, labeled by source and outcome.",
	}, []string{"source", "outcome"})); err != nil {
		return nil, err
	}
	if m.FetchDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "terrain_fetch_request_duration_seconds",
		Help:    "Latency of a single upstream elevation request.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"source"})); err != nil {
		return nil, err
	}
	if m.FetchBytes, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "terrain_fetch_bytes_total",
		Help: "Response payload bytes received from elevation sources.",
	}, []string{"source"})); err != nil {
		return nil, err
	}
	if m.BatchesInFlight, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "terrain_point_batches_in_flight",
		Help: "Point batches currently holding an admission permit.",
	})); err != nil {
		return nil, err
	}
	if m.MissingElevation, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "terrain_missing_elevation_total",
		Help: "Query points the upstream returned without an elevation.",
	})); err != nil {
		return nil, err
	}
	if m.StageDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "terrain_stage_duration_seconds",
		Help:    "Wall time of each pipeline stage.",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"stage"})); err != nil {
		return nil, err
	}
	if m.MeshTriangles, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "terrain_mesh_triangles",
		Help: "Triangle count after the most recent run of each stage.",
	}, []string{"stage"})); err != nil {
		return nil, err
	}
	if m.Documents, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "terrain_documents_total",
		Help: "Pipeline runs, labeled by outcome.",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	return m, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (m *Metrics) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if m != nil && m.gatherer != nil {
		gatherer = m.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveFetch records one upstream request.
func (m *Metrics) ObserveFetch(source string, elapsed time.Duration, bytes int, err error) {
	if m == nil {
		return
	}
	m.FetchRequests.WithLabelValues(source, outcome(err)).Inc()
	m.FetchDuration.WithLabelValues(source).Observe(elapsed.Seconds())
	if bytes > 0 {
		m.FetchBytes.WithLabelValues(source).Add(float64(bytes))
	}
}

// BatchAdmitted and BatchReleased track the admission gate.
func (m *Metrics) BatchAdmitted() {
	if m != nil {
		m.BatchesInFlight.Inc()
	}
}

func (m *Metrics) BatchReleased() {
	if m != nil {
		m.BatchesInFlight.Dec()
	}
}

// AddMissingElevation counts points that fell back to the no-data elevation.
func (m *Metrics) AddMissingElevation(n int) {
	if m != nil && n > 0 {
		m.MissingElevation.Add(float64(n))
	}
}

// ObserveStage records a stage duration and, when triangles >= 0, the mesh size
// the stage produced.
func (m *Metrics) ObserveStage(stage string, elapsed time.Duration, triangles int) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	if triangles >= 0 {
		m.MeshTriangles.WithLabelValues(stage).Set(float64(triangles))
	}
}

// ObserveDocument counts a finished pipeline run.
func (m *Metrics) ObserveDocument(err error) {
	if m != nil {
		m.Documents.WithLabelValues(outcome(err)).Inc()
	}
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}

// register adds c to reg, returning the already registered collector of the
// same type when one exists.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
			var zero C
			return zero, fmt.Errorf("collector already registered with incompatible type %T", are.ExistingCollector)
		}
		var zero C
		return zero, err
	}
	return c, nil
}
