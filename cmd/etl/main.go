package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/gcdb-labs/disaster-etl/internal/adapter/http"
	kafkaadapter "github.com/gcdb-labs/disaster-etl/internal/adapter/kafka"
	"github.com/gcdb-labs/disaster-etl/internal/config"
	"github.com/gcdb-labs/disaster-etl/internal/domain"
	"github.com/gcdb-labs/disaster-etl/internal/geo"
	"github.com/gcdb-labs/disaster-etl/internal/observability"
	"github.com/gcdb-labs/disaster-etl/internal/pipeline"
	"github.com/gcdb-labs/disaster-etl/internal/taxonomy"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	table := taxonomy.NewTable()
	if cfg.TaxonomyPath != "" {
		table = taxonomy.NewTableFromPath(cfg.TaxonomyPath)
		logger.Info("taxonomy dataset override", "path", cfg.TaxonomyPath)
	}
	resolver := taxonomy.NewResolver(table, logger)

	// Geometry resolution is feature-flagged via BOUNDARY_DATASET / GEO_ENABLED.
	// An unreadable dataset is fatal; running without one is a deliberate choice.
	var geocoder domain.Geocoder
	if cfg.GeoEnabled {
		g, err := geo.NewResolver(cfg.BoundaryDataset, logger)
		if err != nil {
			logger.Error("failed to load boundary dataset", "error", err)
			os.Exit(1)
		}
		geocoder = g
		metrics.GeoEnabled.Set(1)
		logger.Info("geometry resolution enabled", "dataset", cfg.BoundaryDataset)
	} else {
		logger.Info("geometry resolution disabled")
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	transformer := pipeline.NewTransformer(resolver, geocoder, logger, metrics)

	p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, table, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start ETL pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
