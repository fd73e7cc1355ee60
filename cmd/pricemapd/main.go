// Command pricemapd keeps the SIPSA price map summary current. It builds the
// summary on startup, serves it over HTTP and, with WATCH_ENABLED, rebuilds
// it whenever the snapshot file changes.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/sipsa-price-map/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/sipsa-price-map/internal/adapter/kafka"
	"github.com/couchcryptid/sipsa-price-map/internal/app"
	"github.com/couchcryptid/sipsa-price-map/internal/config"
	"github.com/couchcryptid/sipsa-price-map/internal/observability"
	"github.com/couchcryptid/sipsa-price-map/internal/pipeline"
	"github.com/couchcryptid/sipsa-price-map/internal/store"
	"github.com/couchcryptid/sipsa-price-map/internal/watch"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	summaries := store.NewMemoryStore()

	loaders := []pipeline.NamedLoader{{Name: "memory", Loader: summaries}}
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		loaders = append(loaders, pipeline.NamedLoader{Name: "kafka", Loader: writer})
	}

	p, err := app.NewPipeline(cfg, metrics, logger, app.DaemonLoaders(cfg, loaders...))
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, summaries, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Initial run. A failure leaves /readyz reporting not ready until a
	// later run succeeds.
	if _, err := p.Run(ctx); err != nil {
		logger.Error("initial pipeline run failed", "error", err)
	}

	if cfg.WatchEnabled {
		w := watch.New(cfg.InputPath, cfg.WatchDebounce, logger)
		go func() {
			err := w.Run(ctx, func(ctx context.Context) {
				metrics.SnapshotReloads.Inc()
				if _, err := p.Run(ctx); err != nil {
					logger.Error("pipeline rerun failed", "error", err)
				}
			})
			if err != nil {
				logger.Error("snapshot watcher error", "error", err)
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
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
