package config

import (
	"flag"
	"fmt"

	"github.com/Faultbox/ifc-terrain/pkg/geom"
)

var (
	flagConfig      = flag.String("config", "", "Path to config file")
	flagDebug       = flag.Bool("debug", false, "Enable debug logging")
	flagBBox        = flag.String("bbox", "", "Bounding box x1,y1,x2,y2 in CRS units")
	flagResolution  = flag.Float64("resolution", 0, "Grid spacing in metres")
	flagCRS         = flag.Int("crs", 0, "EPSG code of the bounding box")
	flagSource      = flag.String("source", "", "Elevation source: raster or points")
	flagOut         = flag.String("out", "", "Output IFC path (- for stdout)")
	flagGLB         = flag.String("glb", "", "Optional GLB preview path")
	flagCompression = flag.Float64("compression", -1, "Simplification keep ratio 0..1")
	flagMetrics     = flag.String("metrics", "", "Serve Prometheus metrics on this address")
)

// ParseFlags parses command-line flags from args (os.Args[2:] for a
// subcommand). Call this early in main().
func ParseFlags(args []string) error {
	return flag.CommandLine.Parse(args)
}

// Args returns the positional arguments left after flag parsing.
func Args() []string {
	return flag.CommandLine.Args()
}

// ConfigPath returns the explicit config path if provided via -config.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) error {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagBBox != "" {
		b, err := geom.ParseBBox(*flagBBox)
		if err != nil {
			return fmt.Errorf("-bbox: %w", err)
		}
		cfg.Request.BBox = b
	}
	if *flagResolution > 0 {
		cfg.Request.Resolution = *flagResolution
	}
	if *flagCRS > 0 {
		cfg.Request.CRS = *flagCRS
	}
	if *flagSource != "" {
		cfg.Source.Kind = *flagSource
	}
	if *flagOut != "" {
		cfg.Output.Path = *flagOut
	}
	if *flagGLB != "" {
		cfg.Output.GLBPath = *flagGLB
	}
	if *flagCompression >= 0 {
		cfg.Processing.CompressionFactor = *flagCompression
	}
	if *flagMetrics != "" {
		cfg.Metrics.Listen = *flagMetrics
	}
	return nil
}
