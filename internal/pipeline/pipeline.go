package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/sipsa-price-map/internal/domain"
	"github.com/couchcryptid/sipsa-price-map/internal/observability"
)

// ErrRunPanicked wraps a panic recovered during a run.
var ErrRunPanicked = errors.New("pipeline run panicked")

// Extractor reads every observation from the current snapshot.
type Extractor interface {
	Extract(ctx context.Context) ([]domain.Observation, error)
}

// Loader publishes a finished summary.
type Loader interface {
	Load(ctx context.Context, summary domain.Summary) error
}

// NamedLoader labels a Loader for logs and metrics.
type NamedLoader struct {
	Name   string
	Loader Loader
}

// Pipeline orchestrates one extract-select-build-load run.
type Pipeline struct {
	extractor Extractor
	selector  domain.Selector
	resolver  domain.CoordinateResolver
	loaders   []NamedLoader
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	mu        sync.Mutex
}

// New creates a Pipeline with the given stages and observability. Loaders
// run in order and a failing loader stops the ones after it.
func New(e Extractor, sel domain.Selector, r domain.CoordinateResolver, loaders []NamedLoader, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		extractor: e,
		selector:  sel,
		resolver:  r,
		loaders:   loaders,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once a run has completed successfully,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no summary has been produced yet")
	}
	return nil
}

// Run recomputes the summary from the full snapshot and hands it to every
// loader. Concurrent calls are serialized. A panic in any stage is
// recovered and returned as ErrRunPanicked.
func (p *Pipeline) Run(ctx context.Context) (summary domain.Summary, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pipeline run panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrRunPanicked, r)
		}
		p.observeRun(start, err)
	}()

	now := domain.Now()

	observations, err := p.extractor.Extract(ctx)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("extract: %w", err)
	}
	p.logger.Info("snapshot read", "records", len(observations))

	summary = p.transform(ctx, observations, now)

	if err := ctx.Err(); err != nil {
		return domain.Summary{}, err
	}
	for _, l := range p.loaders {
		if err := l.Loader.Load(ctx, summary); err != nil {
			p.metrics.LoadErrors.WithLabelValues(l.Name).Inc()
			return domain.Summary{}, fmt.Errorf("load %s: %w", l.Name, err)
		}
		p.logger.Debug("summary loaded", "loader", l.Name)
	}

	p.ready.Store(true)
	p.logger.Info("pipeline run complete",
		"cities", summary.Metadata.TotalCities,
		"products", summary.Metadata.TotalProducts,
		"records_retained", summary.Metadata.RecordsRetained,
		"duration", time.Since(start),
	)
	return summary, nil
}

func (p *Pipeline) observeRun(start time.Time, err error) {
	p.metrics.RunDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.Runs.WithLabelValues("error").Inc()
		return
	}
	p.metrics.Runs.WithLabelValues("success").Inc()
	p.metrics.LastSuccess.Set(float64(time.Now().Unix()))
}
