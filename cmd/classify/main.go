package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Riverscapes/hydrologic-regimes-tool/internal/adapter/httpadapter"
	kafkaadapter "github.com/Riverscapes/hydrologic-regimes-tool/internal/adapter/kafka"
	"github.com/Riverscapes/hydrologic-regimes-tool/internal/adapter/network"
	"github.com/Riverscapes/hydrologic-regimes-tool/internal/adapter/output"
	"github.com/Riverscapes/hydrologic-regimes-tool/internal/adapter/raster"
	"github.com/Riverscapes/hydrologic-regimes-tool/internal/adapter/rasterservice"
	"github.com/Riverscapes/hydrologic-regimes-tool/internal/config"
	"github.com/Riverscapes/hydrologic-regimes-tool/internal/domain"
	"github.com/Riverscapes/hydrologic-regimes-tool/internal/observability"
	"github.com/Riverscapes/hydrologic-regimes-tool/internal/pipeline"
	"github.com/Riverscapes/hydrologic-regimes-tool/internal/workspace"
)

const (
	outputBaseName = "hydrologic_regimes"
	clippedNetwork = "clipped_network.geojson"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, metrics); err != nil {
		logger.Error("classification failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	layout, err := workspace.Prepare(cfg.WorkspaceDir)
	if err != nil {
		return err
	}
	logger.Info("workspace ready", "root", layout.Root)

	streams, err := loadNetwork(cfg, layout, logger)
	if err != nil {
		return err
	}

	tree, err := domain.LookupTree(cfg.TreeVariant)
	if err != nil {
		return err
	}

	sampler, sources, err := newSampler(cfg, tree, metrics, logger)
	if err != nil {
		return err
	}
	builder, err := pipeline.NewBuilder(tree, sources, sampler)
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		TestingMode:      cfg.TestingMode,
		TestingLimit:     cfg.TestingLimit,
		ProgressInterval: cfg.ProgressInterval,
		Workers:          cfg.Workers,
		Policy:           pipeline.Policy(cfg.SamplePolicy),
	}
	p := pipeline.New(builder, pipeline.NewLogProgress(logger), logger, metrics, opts)

	if cfg.MetricsAddr != "" {
		srv := httpadapter.NewServer(cfg.MetricsAddr, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer shutdownServer(srv, cfg.ShutdownTimeout, logger)
	}

	result, err := p.Process(ctx, streams)
	if err != nil {
		return err
	}
	for _, s := range result.Skipped {
		logger.Warn("reach left unclassified", "index", s.Index, "error", s.Err)
	}

	loaders, closeLoaders := newLoaders(cfg, layout, logger)
	defer closeLoaders()

	return pipeline.Deliver(ctx, result, streams.SpatialReference(), logger, loaders...)
}

// loadNetwork reads the stream network and applies the optional clip region.
func loadNetwork(cfg *config.Config, layout workspace.Layout, logger *slog.Logger) (*network.Network, error) {
	streams, err := network.Load(cfg.NetworkPath)
	if err != nil {
		return nil, err
	}
	if cfg.SpatialReference != "" {
		streams = streams.WithSpatialReference(domain.SpatialReference{Name: cfg.SpatialReference})
	}
	logger.Info("network loaded", "path", cfg.NetworkPath, "reaches", streams.Count(), "crs", streams.SpatialReference().Name)

	if cfg.ClipRegionPath == "" {
		return streams, nil
	}
	region, err := network.LoadRegion(cfg.ClipRegionPath)
	if err != nil {
		return nil, err
	}
	clipped, removed := network.Clip(streams, region)
	path := layout.TempPath(clippedNetwork)
	if err := clipped.WriteFile(path); err != nil {
		return nil, err
	}
	logger.Info("network clipped", "region", cfg.ClipRegionPath, "kept", clipped.Count(), "removed", removed, "path", path)
	return clipped, nil
}

// newSampler builds the raster sampler chain: a local grid sampler or a
// raster service client, an optional cache, then instrumentation.
func newSampler(cfg *config.Config, tree *domain.Tree, metrics *observability.Metrics, logger *slog.Logger) (domain.RasterSampler, domain.CovariateSources, error) {
	manifest, err := raster.LoadManifest(cfg.LayersPath)
	if err != nil {
		return nil, nil, err
	}

	var (
		base    domain.RasterSampler
		sources domain.CovariateSources
	)
	if cfg.RasterServiceURL != "" {
		if sources, err = manifest.Sources(); err != nil {
			return nil, nil, err
		}
		base = rasterservice.NewClient(cfg.RasterServiceURL, cfg.RasterServiceTimeout, logger)
		logger.Info("sampling from raster service", "url", cfg.RasterServiceURL, "timeout", cfg.RasterServiceTimeout)
	} else {
		if sources, err = manifest.LocalSources(); err != nil {
			return nil, nil, err
		}
		needed, err := treeSources(tree, sources)
		if err != nil {
			return nil, nil, err
		}
		grids, err := raster.OpenGridSampler(needed)
		if err != nil {
			return nil, nil, err
		}
		base = grids
		logger.Info("sampling from local grids", "layers", len(needed))
	}

	if cfg.SampleCacheSize > 0 {
		base = rasterservice.NewCachedSampler(base, cfg.SampleCacheSize, metrics)
		logger.Info("sample cache enabled", "cache_size", cfg.SampleCacheSize)
	}
	return pipeline.NewInstrumentedSampler(base, sources, metrics, logger), sources, nil
}

// treeSources restricts sources to the covariates tree consults so unused
// layers are never loaded.
func treeSources(tree *domain.Tree, sources domain.CovariateSources) (domain.CovariateSources, error) {
	need := tree.Covariates()
	if err := sources.Require(need); err != nil {
		return nil, fmt.Errorf("covariate sources for tree %q: %w", tree.Name(), err)
	}
	out := make(domain.CovariateSources, len(need))
	for _, c := range need {
		out[c] = sources[c]
	}
	return out, nil
}

func newLoaders(cfg *config.Config, layout workspace.Layout, logger *slog.Logger) ([]pipeline.NamedLoader, func()) {
	var (
		loaders []pipeline.NamedLoader
		kafka   *kafkaadapter.Writer
	)
	for _, format := range cfg.OutputFormats {
		switch format {
		case config.FormatGeoJSON:
			loaders = append(loaders, pipeline.NamedLoader{Name: format, Loader: output.NewGeoJSONWriter(layout.OutputPath(outputBaseName + ".geojson"))})
		case config.FormatSQLite:
			loaders = append(loaders, pipeline.NamedLoader{Name: format, Loader: output.NewSQLiteWriter(layout.OutputPath(outputBaseName + ".sqlite"))})
		case config.FormatKafka:
			kafka = kafkaadapter.NewWriter(cfg, logger)
			loaders = append(loaders, pipeline.NamedLoader{Name: format, Loader: kafka})
		}
	}
	return loaders, func() {
		if kafka == nil {
			return
		}
		if err := kafka.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
}

func shutdownServer(srv *httpadapter.Server, timeout time.Duration, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}
