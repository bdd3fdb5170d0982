// Package config handles terrain generator configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/Faultbox/ifc-terrain/pkg/geom"
	"github.com/Faultbox/ifc-terrain/pkg/ifc"
	"github.com/Faultbox/ifc-terrain/pkg/surface"
)

// Source kinds.
const (
	SourceRaster = "raster"
	SourcePoints = "points"
)

// Config holds all generator settings.
type Config struct {
	Request    RequestConfig  `yaml:"request"`
	Source     SourceConfig   `yaml:"source"`
	Processing surface.Params `yaml:"processing"`
	Project    ifc.Metadata   `yaml:"project"`
	Output     OutputConfig   `yaml:"output"`
	Logging    LoggingConfig  `yaml:"logging"`
	Metrics    MetricsConfig  `yaml:"metrics"`
	Tracing    TracingConfig  `yaml:"tracing"`
}

// RequestConfig holds the area to generate.
type RequestConfig struct {
	BBox       geom.BBox `yaml:"bbox"`
	Resolution float64   `yaml:"resolution"` // metres between grid vertices
	CRS        int       `yaml:"crs"`        // EPSG code
}

// SourceConfig selects and tunes the elevation source.
type SourceConfig struct {
	Kind            string        `yaml:"kind"` // raster | points
	RasterURL       string        `yaml:"raster_url"`
	Coverage        string        `yaml:"coverage"`
	Format          string        `yaml:"format"`
	PointURL        string        `yaml:"point_url"`
	BatchSize       int           `yaml:"batch_size"`
	MaxInFlight     int           `yaml:"max_in_flight"`
	PaddingCells    int           `yaml:"padding_cells"`
	Timeout         time.Duration `yaml:"timeout"`
	ElevationScale  float64       `yaml:"elevation_scale"`
	ElevationOffset float64       `yaml:"elevation_offset"`
	NoDataElevation float64       `yaml:"nodata_elevation"`
	UserAgent       string        `yaml:"user_agent"`
}

// OutputConfig holds output file paths. "-" writes the document to stdout.
type OutputConfig struct {
	Path    string `yaml:"path"`
	GLBPath string `yaml:"glb_path"` // optional binary glTF preview
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
	JSON    bool   `yaml:"json"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Listen string `yaml:"listen"` // e.g. ":9102"; empty disables
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"` // stdout | otlp
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Request: RequestConfig{
			Resolution: 1.0,
			CRS:        25833,
		},
		Source: SourceConfig{
			Kind:            SourceRaster,
			RasterURL:       "https://wcs.geonorge.no/skwms1/wcs.hoyde-dtm-nhm-25833",
			Coverage:        "nhm_dtm_topo_25833",
			Format:          "GeoTIFF",
			PointURL:        "https://ws.geonorge.no/hoydedata/v1/punkt",
			BatchSize:       50,
			MaxInFlight:     8,
			PaddingCells:    5,
			Timeout:         60 * time.Second,
			ElevationScale:  1.0,
			ElevationOffset: 0,
			NoDataElevation: 0,
			UserAgent:       "ifc-terrain/0.1",
		},
		Processing: surface.DefaultParams(),
		Project:    ifc.DefaultMetadata(),
		Output: OutputConfig{
			Path: "terrain.ifc",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Tracing: TracingConfig{
			Exporter:    "stdout",
			ServiceName: "ifc-terrain",
			SampleRatio: 1.0,
		},
	}
}

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// Validate checks the settings a generate run depends on.
func (c *Config) Validate() error {
	if err := c.Request.BBox.Validate(); err != nil {
		return fmt.Errorf("%w: request.bbox: %v", ErrInvalidConfig, err)
	}
	if c.Request.BBox.Width() == 0 || c.Request.BBox.Height() == 0 {
		return fmt.Errorf("%w: request.bbox %s has no area", ErrInvalidConfig, c.Request.BBox)
	}
	if c.Request.Resolution <= 0 {
		return fmt.Errorf("%w: request.resolution must be positive, got %v", ErrInvalidConfig, c.Request.Resolution)
	}
	if c.Request.CRS <= 0 {
		return fmt.Errorf("%w: request.crs must be an EPSG code, got %d", ErrInvalidConfig, c.Request.CRS)
	}

	switch c.Source.Kind {
	case SourceRaster:
		if c.Source.RasterURL == "" {
			return fmt.Errorf("%w: source.raster_url is empty", ErrInvalidConfig)
		}
	case SourcePoints:
		if c.Source.PointURL == "" {
			return fmt.Errorf("%w: source.point_url is empty", ErrInvalidConfig)
		}
		if c.Source.BatchSize <= 0 || c.Source.MaxInFlight <= 0 {
			return fmt.Errorf("%w: source.batch_size and source.max_in_flight must be positive", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown source.kind %q", ErrInvalidConfig, c.Source.Kind)
	}
	if c.Source.PaddingCells < 0 {
		return fmt.Errorf("%w: source.padding_cells is negative", ErrInvalidConfig)
	}

	if err := c.Processing.Validate(); err != nil {
		return fmt.Errorf("%w: processing: %v", ErrInvalidConfig, err)
	}
	if c.Output.Path == "" {
		return fmt.Errorf("%w: output.path is empty", ErrInvalidConfig)
	}
	return nil
}
