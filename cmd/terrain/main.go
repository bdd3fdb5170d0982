// terrain generates IFC terrain models from public elevation services.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/Faultbox/ifc-terrain/internal/config"
	"github.com/Faultbox/ifc-terrain/internal/logger"
	"github.com/Faultbox/ifc-terrain/internal/observability"
	"github.com/Faultbox/ifc-terrain/internal/pipeline"
	"github.com/Faultbox/ifc-terrain/pkg/glb"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "generate", "gen":
		if err := cmdGenerate(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "config":
		if err := cmdConfig(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`terrain - IFC terrain model generator

Usage:
  terrain <command> [options]

Commands:
  generate [flags]       Fetch elevations and write an IFC terrain document
  config [flags] [save]  Print the effective configuration, or save it

Flags:
  -config <file>         Config file (default ./terrain.yaml, then the user config dir)
  -bbox x1,y1,x2,y2      Bounding box in CRS units
  -resolution <m>        Grid spacing in metres
  -crs <epsg>            EPSG code of the bounding box
  -source raster|points  Elevation source
  -compression <0..1>    Simplification keep ratio
  -out <file>            Output IFC path, - for stdout
  -glb <file>            Also write a binary glTF preview
  -metrics <addr>        Serve Prometheus metrics while generating
  -debug                 Debug logging

Examples:
  terrain generate -bbox 598000,6643000,598200,6643200 -resolution 1 -out site.ifc
  terrain generate -source points -bbox 262000,6649000,262100,6649100 -glb site.glb
  terrain config -resolution 2 save`)
}

func cmdGenerate(args []string) error {
	if err := config.ParseFlags(args); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := initLogger(cfg.Logging); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
	}, logger.Log)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, logger.Log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := observability.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if srv := serveMetrics(cfg.Metrics.Listen, metrics); srv != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("generating terrain",
		zap.String("bbox", cfg.Request.BBox.String()),
		zap.Float64("resolution", cfg.Request.Resolution),
		zap.Int("crs", cfg.Request.CRS),
		zap.String("source", cfg.Source.Kind))
	logger.Sugar.Debugf("Config: %+v", cfg)

	src, err := pipeline.NewSource(cfg.Source, cfg.Request.Resolution, cfg.Request.CRS, metrics)
	if err != nil {
		return err
	}
	p := &pipeline.Pipeline{Metrics: metrics, Logger: logger.Named("pipeline")}
	res, err := p.Generate(ctx, src, pipeline.Request{
		BBox:       cfg.Request.BBox,
		Resolution: cfg.Request.Resolution,
		CRS:        cfg.Request.CRS,
		Metadata:   cfg.Project,
		Params:     cfg.Processing,
	})
	if err != nil {
		logger.Error("generation failed", zap.Error(err))
		return err
	}

	if err := writeFile(cfg.Output.Path, res.Document); err != nil {
		return err
	}
	logger.Info("document written",
		zap.String("path", cfg.Output.Path),
		zap.Int("triangles", res.Stats.Triangles),
		zap.Int("bytes", len(res.Document)))

	if cfg.Output.GLBPath != "" {
		data, err := glb.Encode(res.Mesh, res.Mesh.Bounds().Min)
		if err != nil {
			return fmt.Errorf("glb preview: %w", err)
		}
		if err := writeFile(cfg.Output.GLBPath, data); err != nil {
			return err
		}
		logger.Info("preview written", zap.String("path", cfg.Output.GLBPath), zap.Int("bytes", len(data)))
	}
	return nil
}

func cmdConfig(args []string) error {
	if err := config.ParseFlags(args); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	rest := config.Args()
	if len(rest) > 0 && rest[0] == "save" {
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Printf("Saved %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
		return nil
	}

	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func initLogger(cfg config.LoggingConfig) error {
	if cfg.LogFile == "" {
		return logger.Init(cfg.Level, "")
	}
	fileCfg := logger.DefaultFileConfig(cfg.LogFile)
	fileCfg.JSON = cfg.JSON
	return logger.InitWithFileConfig(cfg.Level, fileCfg, true)
}

func serveMetrics(addr string, metrics *observability.Metrics) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server exited", zap.Error(err))
		}
	}()

	logger.Info("serving Prometheus metrics", zap.String("addr", addr))
	return srv
}

// writeFile writes data to path, or to stdout for "-".
func writeFile(path string, data []byte) error {
	if path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
