package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	httpadapter "github.com/couchcryptid/radar-volume-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/radar-volume-etl/internal/adapter/kafka"
	"github.com/couchcryptid/radar-volume-etl/internal/config"
	"github.com/couchcryptid/radar-volume-etl/internal/observability"
	"github.com/couchcryptid/radar-volume-etl/internal/pipeline"
	"github.com/couchcryptid/radar-volume-etl/internal/registry"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	checks := map[string]httpadapter.ReadinessChecker{}

	// Station registry (optional, file or HTTP).
	var reg registry.Registry
	switch {
	case cfg.RegistryFile != "":
		table, err := registry.LoadFile(cfg.RegistryFile)
		if err != nil {
			logger.Error("failed to load station registry", "file", cfg.RegistryFile, "error", err)
			os.Exit(1)
		}
		reg = table
		logger.Info("station registry loaded", "file", cfg.RegistryFile, "stations", table.Len())
	case cfg.RegistryURL != "":
		client := registry.NewClient(cfg.RegistryURL, cfg.RegistryTimeout, metrics, logger)
		reg = registry.NewCached(client, cfg.RegistryCacheSize, metrics)
		checks["registry"] = client
		logger.Info("station registry enabled", "url", cfg.RegistryURL,
			"cache_size", cfg.RegistryCacheSize, "timeout", cfg.RegistryTimeout)
	default:
		logger.Info("station registry disabled")
	}
	if cfg.RegistryEnabled() {
		metrics.RegistryEnabled.Set(1)
	}

	decoder := pipeline.NewDecoder(reg, cfg.SweepRepair, metrics)
	transformer := pipeline.NewTransformer(decoder, pipeline.ProductConfig{
		Extent:       cfg.GridExtent,
		Step:         cfg.GridStep,
		CAPPIHeights: cfg.CAPPIHeights,
		Workers:      cfg.GridWorkers,
		MinROI:       cfg.InterpMinROI,
		ROICoeff:     cfg.InterpCoeff,
	}, metrics, logger)

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)

	p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)
	checks["pipeline"] = p

	srv := httpadapter.NewServer(cfg.HTTPAddr, checks, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

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
