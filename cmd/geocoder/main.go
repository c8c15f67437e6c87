package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/incident-geocode-service/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/incident-geocode-service/internal/adapter/kafka"
	"github.com/couchcryptid/incident-geocode-service/internal/app"
	"github.com/couchcryptid/incident-geocode-service/internal/config"
	"github.com/couchcryptid/incident-geocode-service/internal/observability"
	"github.com/couchcryptid/incident-geocode-service/internal/pipeline"
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

	stack, err := app.Build(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Error("failed to build geocoder", "error", err)
		os.Exit(1)
	}

	checks := httpadapter.Checks(stack.Probes)

	var (
		reader *kafkaadapter.Reader
		writer *kafkaadapter.Writer
		p      *pipeline.Pipeline
	)
	if cfg.KafkaEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)
		enricher := pipeline.NewGeocodeEnricher(stack.Orchestrator, cfg.DefaultMaxGeocode, cfg.DefaultConcurrency, logger)
		p = pipeline.New(reader, pipeline.NewNormalizer(), enricher, writer, logger, metrics, cfg.BatchSize)
		checks = append(checks, p.CheckReadiness)
		logger.Info("kafka pipeline enabled", "source", cfg.KafkaSourceTopic, "sink", cfg.KafkaSinkTopic)
	} else {
		logger.Info("kafka pipeline disabled")
	}

	api := httpadapter.NewAPI(stack.Resolver, stack.Orchestrator, stack.Cache, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, checks, api, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Start ingestion pipeline.
	if p != nil {
		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	// Flush background cache writes before dropping the connections.
	stack.Wait()
	if err := stack.Close(); err != nil {
		logger.Error("cache close error", "error", err)
	}

	logger.Info("shutdown complete")
}
