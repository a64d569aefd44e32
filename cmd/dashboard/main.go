package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/drought-dashboard/internal/adapter/backend"
	httpadapter "github.com/couchcryptid/drought-dashboard/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/drought-dashboard/internal/adapter/kafka"
	"github.com/couchcryptid/drought-dashboard/internal/chat"
	"github.com/couchcryptid/drought-dashboard/internal/config"
	"github.com/couchcryptid/drought-dashboard/internal/incident"
	"github.com/couchcryptid/drought-dashboard/internal/insight"
	"github.com/couchcryptid/drought-dashboard/internal/observability"
	"github.com/couchcryptid/drought-dashboard/internal/poller"
	"github.com/couchcryptid/drought-dashboard/internal/store"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	client := backend.NewClient(cfg.BackendURL, backend.Timeouts{
		Request: cfg.RequestTimeout,
		Insight: cfg.InsightTimeout,
		Chat:    cfg.ChatTimeout,
	}, metrics, logger)
	forecasts := backend.NewCachedForecaster(client, cfg.ForecastCacheSize, cfg.ForecastCacheTTL, clock, metrics)

	st := store.New(clock)
	p := poller.New(client, st, clock, cfg.PollInterval, logger, metrics)
	insights := insight.New(client, cfg.InsightTimeout, logger, metrics)

	// Publish incidents (feature-flagged via KAFKA_ENABLED).
	var writer *kafkaadapter.IncidentWriter
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewIncidentWriter(cfg, logger)
		p.OnVillages(incident.NewPublisher(writer, logger, metrics).Publish)
		logger.Info("incident publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaIncidentTopic)
	} else {
		logger.Info("incident publishing disabled")
	}

	srv := httpadapter.NewServer(
		httpadapter.Options{Addr: cfg.HTTPAddr, AllowedOrigins: cfg.AllowedOrigins, RefreshTimeout: cfg.RequestTimeout},
		httpadapter.Deps{
			Store:     st,
			Poller:    p,
			Insight:   insights,
			Forecasts: forecasts,
			Chat:      chat.NewSession(client, logger),
			PageSize:  cfg.PageSize,
		},
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Start background polling.
	p.Start(ctx)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	p.Stop()
	insights.Shutdown()
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
