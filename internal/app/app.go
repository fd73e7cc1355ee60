// Package app wires configuration into the pipeline stages shared by the
// batch command and the daemon.
package app

import (
	"fmt"
	"log/slog"

	"github.com/couchcryptid/sipsa-price-map/internal/adapter/mapbox"
	"github.com/couchcryptid/sipsa-price-map/internal/config"
	"github.com/couchcryptid/sipsa-price-map/internal/domain"
	"github.com/couchcryptid/sipsa-price-map/internal/observability"
	"github.com/couchcryptid/sipsa-price-map/internal/pipeline"
	"github.com/couchcryptid/sipsa-price-map/internal/snapshot"
)

// NewSelector builds the recency selector from the window and feed offset.
func NewSelector(cfg *config.Config) (domain.Selector, error) {
	parser, err := domain.NewTimeParser(cfg.TimezoneOffset)
	if err != nil {
		return domain.Selector{}, fmt.Errorf("invalid TIMEZONE_OFFSET: %w", err)
	}
	return domain.Selector{WindowDays: cfg.WindowDays, Parser: parser}, nil
}

// NewResolver loads the coordinate table and, when enabled, attaches the
// cached Mapbox geocoder for table misses.
func NewResolver(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (*domain.Resolver, error) {
	table, err := config.LoadCoordinateTable(cfg.CoordinatesFile)
	if err != nil {
		return nil, err
	}
	logger.Info("coordinate table loaded", "cities", table.Len(), "overrides", cfg.CoordinatesFile)

	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		metrics.GeocodeEnabled.Set(0)
		logger.Info("mapbox geocoding disabled")
	}
	return domain.NewResolver(table, geocoder, logger), nil
}

// FileLoader writes the summary to cfg.OutputPath.
func FileLoader(cfg *config.Config) pipeline.NamedLoader {
	return pipeline.NamedLoader{Name: "file", Loader: snapshot.Sink{Path: cfg.OutputPath}}
}

// BatchLoaders puts the file last so a failed publish leaves the previous
// output file in place.
func BatchLoaders(cfg *config.Config, publishers ...pipeline.NamedLoader) []pipeline.NamedLoader {
	loaders := make([]pipeline.NamedLoader, 0, len(publishers)+1)
	loaders = append(loaders, publishers...)
	return append(loaders, FileLoader(cfg))
}

// DaemonLoaders puts the file first so the store and publishers only see
// summaries that reached disk.
func DaemonLoaders(cfg *config.Config, rest ...pipeline.NamedLoader) []pipeline.NamedLoader {
	return append([]pipeline.NamedLoader{FileLoader(cfg)}, rest...)
}

// NewPipeline builds a pipeline that reads cfg.InputPath and hands each
// summary to loaders in order.
func NewPipeline(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger, loaders []pipeline.NamedLoader) (*pipeline.Pipeline, error) {
	sel, err := NewSelector(cfg)
	if err != nil {
		return nil, err
	}
	resolver, err := NewResolver(cfg, metrics, logger)
	if err != nil {
		return nil, err
	}
	return pipeline.New(snapshot.Source{Path: cfg.InputPath}, sel, resolver, loaders, logger, metrics), nil
}
