package pipeline

import (
	"fmt"
	"net/http"

	"github.com/Faultbox/ifc-terrain/internal/config"
	"github.com/Faultbox/ifc-terrain/internal/elevation"
	"github.com/Faultbox/ifc-terrain/internal/observability"
)

// NewSource builds the elevation strategy named by cfg.Kind.
func NewSource(cfg config.SourceConfig, resolution float64, crs int, metrics *observability.Metrics) (elevation.Source, error) {
	opts := elevation.Options{
		Resolution:   resolution,
		CRS:          crs,
		PaddingCells: cfg.PaddingCells,
		Client:       &http.Client{Timeout: cfg.Timeout},
		UserAgent:    cfg.UserAgent,
		Metrics:      metrics,
	}

	switch cfg.Kind {
	case config.SourceRaster:
		return elevation.NewRasterSource(elevation.RasterConfig{
			Options:  opts,
			URL:      cfg.RasterURL,
			Coverage: cfg.Coverage,
			Format:   cfg.Format,
			Decoder: elevation.TIFFDecoder{
				Scale:  cfg.ElevationScale,
				Offset: cfg.ElevationOffset,
			},
			NoDataElevation: cfg.NoDataElevation,
		}), nil
	case config.SourcePoints:
		return elevation.NewPointSource(elevation.PointConfig{
			Options:         opts,
			URL:             cfg.PointURL,
			BatchSize:       cfg.BatchSize,
			MaxInFlight:     cfg.MaxInFlight,
			NoDataElevation: cfg.NoDataElevation,
		}), nil
	default:
		return nil, fmt.Errorf("unknown elevation source %q", cfg.Kind)
	}
}
