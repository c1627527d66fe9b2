// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command observe starts the AI-operation telemetry gateway.
//
// Every chat, embedding, local inference, and vector operation that
// flows through it is wrapped in a span, priced against the model
// pricing table, and emitted as OpenTelemetry metrics (OTLP and/or a
// Prometheus scrape endpoint).
//
// Usage:
//
//	go run ./cmd/observe
//	OBSERVE_PORT=9000 go run ./cmd/observe
//
// With an OTLP collector:
//
//	OTEL_EXPORTER_OTLP_ENDPOINT=http://localhost:4318 go run ./cmd/observe
//
// Example requests:
//
//	curl http://localhost:8000/health
//	curl -X POST http://localhost:8000/api/v1/chat \
//	  -H "Content-Type: application/json" \
//	  -d '{"message": "What is a goroutine?"}'
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

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/jinterlante1206/AleutianObserve/pkg/logging"
	"github.com/jinterlante1206/AleutianObserve/services/observe/config"
	"github.com/jinterlante1206/AleutianObserve/services/observe/costs"
	"github.com/jinterlante1206/AleutianObserve/services/observe/evals"
	"github.com/jinterlante1206/AleutianObserve/services/observe/llm"
	"github.com/jinterlante1206/AleutianObserve/services/observe/pipeline"
	"github.com/jinterlante1206/AleutianObserve/services/observe/recorder"
	"github.com/jinterlante1206/AleutianObserve/services/observe/routes"
	"github.com/jinterlante1206/AleutianObserve/services/observe/telemetry"
	"github.com/jinterlante1206/AleutianObserve/services/observe/vector"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	logger := logging.Setup(logging.Config{Service: "observe"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telCfg := telemetry.DefaultConfig()
	shutdown, err := telemetry.Init(ctx, telCfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("Telemetry shutdown incomplete", "error", err)
		}
	}()

	reg, err := telemetry.NewRegistry(otel.Meter("aleutian.observe"))
	if err != nil {
		return fmt.Errorf("create metric registry: %w", err)
	}

	sink := telemetry.NewEventSink(0, logger)
	defer sink.Close()

	table, err := costs.NewTable(logger)
	if err != nil {
		return fmt.Errorf("load pricing table: %w", err)
	}
	if cfg.PricingFile != "" {
		if err := table.LoadFile(cfg.PricingFile); err != nil {
			logger.Warn("Failed to load pricing file, using built-in rates",
				"path", cfg.PricingFile, "error", err)
		} else if cfg.PricingWatch {
			if err := table.Watch(ctx, cfg.PricingFile); err != nil {
				logger.Warn("Pricing hot reload unavailable", "error", err)
			}
		}
	}

	rec := recorder.New(reg, table, evals.NewScorer(reg), sink, logger)
	correlator := pipeline.NewCorrelator(reg, logger)

	deps := routes.Deps{
		Recorder:   rec,
		Correlator: correlator,
		Costs:      table,
		Sink:       sink,
		ChatModel:  cfg.DefaultChatModel,
		EmbedModel: cfg.DefaultEmbeddingModel,
	}

	if cfg.OpenAIAPIKey != "" {
		client, err := llm.NewOpenAIClient(cfg.OpenAIAPIKey)
		if err != nil {
			return fmt.Errorf("create OpenAI client: %w", err)
		}
		deps.Client = client
		logger.Info("OpenAI backend configured", "chat_model", cfg.DefaultChatModel)
	} else {
		logger.Info("OPENAI_API_KEY not set. Chat, embed, and search endpoints disabled.")
	}

	if cfg.LocalLLMURL != "" {
		local, err := llm.NewLlamaCppClient(cfg.LocalLLMURL, cfg.LocalModelName)
		if err != nil {
			logger.Warn("Local LLM misconfigured, endpoint disabled", "error", err)
		} else {
			deps.Local = local
			logger.Info("Local LLM backend configured", "url", cfg.LocalLLMURL, "model", cfg.LocalModelName)
		}
	}

	if cfg.WeaviateURL != "" {
		store, err := vector.NewStore(cfg.WeaviateURL, cfg.VectorClass, logger)
		if err != nil {
			logger.Warn("Weaviate misconfigured, vector endpoints disabled", "error", err)
		} else if err := store.EnsureSchema(ctx); err != nil {
			logger.Warn("Weaviate unreachable, vector endpoints disabled", "error", err)
		} else {
			deps.Store = store
		}
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(telCfg.ServiceName))
	router.Use(telemetry.MetricsMiddleware(reg))
	routes.SetupRoutes(router, deps)

	g, gctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		logger.Info("Starting observe server", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("observe server: %w", err)
		}
		return nil
	})

	// A separate scrape port keeps /metrics off the public listener
	// when PROMETHEUS_PORT is set.
	var promSrv *http.Server
	if cfg.PrometheusPort > 0 && cfg.PrometheusPort != cfg.HTTPPort {
		if h := telemetry.MetricsHandler(); h != nil {
			mux := http.NewServeMux()
			mux.Handle("/metrics", h)
			promSrv = &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.PrometheusPort),
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}
			g.Go(func() error {
				logger.Info("Starting Prometheus scrape endpoint", "address", promSrv.Addr)
				if err := promSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("prometheus server: %w", err)
				}
				return nil
			})
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down observe server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if promSrv != nil {
			if err := promSrv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
