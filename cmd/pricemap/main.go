// Command pricemap runs the SIPSA price map pipeline once: it reads the
// snapshot at INPUT_PATH, writes the summary to OUTPUT_PATH and, when
// KAFKA_ENABLED is set, publishes one message per city.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	kafkaadapter "github.com/couchcryptid/sipsa-price-map/internal/adapter/kafka"
	"github.com/couchcryptid/sipsa-price-map/internal/app"
	"github.com/couchcryptid/sipsa-price-map/internal/config"
	"github.com/couchcryptid/sipsa-price-map/internal/observability"
	"github.com/couchcryptid/sipsa-price-map/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	var publishers []pipeline.NamedLoader
	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		publishers = append(publishers, pipeline.NamedLoader{Name: "kafka", Loader: writer})
	}

	p, err := app.NewPipeline(cfg, metrics, logger, app.BatchLoaders(cfg, publishers...))
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := p.Run(ctx); err != nil {
		logger.Error("pipeline run failed", "error", err, "input", cfg.InputPath)
		return 1
	}
	logger.Info("summary written", "output", cfg.OutputPath)
	return 0
}
