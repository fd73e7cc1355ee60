package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/sipsa-price-map/internal/domain"
	"github.com/couchcryptid/sipsa-price-map/internal/observability"
	"github.com/couchcryptid/sipsa-price-map/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockExtractor struct {
	observations []domain.Observation
	err          error
	panicWith    any
	calls        int
}

func (m *mockExtractor) Extract(_ context.Context) ([]domain.Observation, error) {
	m.calls++
	if m.panicWith != nil {
		panic(m.panicWith)
	}
	return m.observations, m.err
}

type mockLoader struct {
	loaded []domain.Summary
	err    error
}

func (m *mockLoader) Load(_ context.Context, s domain.Summary) error {
	if m.err != nil {
		return m.err
	}
	m.loaded = append(m.loaded, s)
	return nil
}

var testNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func freezeClock(t *testing.T) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(testNow))
	t.Cleanup(func() { domain.SetClock(nil) })
}

func newPipeline(ext pipeline.Extractor, metrics *observability.Metrics, loaders ...pipeline.NamedLoader) *pipeline.Pipeline {
	sel := domain.Selector{WindowDays: domain.DefaultWindowDays, Parser: domain.DefaultTimeParser()}
	resolver := domain.NewResolver(nil, nil, discardLogger())
	return pipeline.New(ext, sel, resolver, loaders, discardLogger(), metrics)
}

func sampleObservations() []domain.Observation {
	return []domain.Observation{
		{ProductCode: 1, ProductName: "Papa criolla", AveragePrice: 3000, CapturedAt: "2025-06-01 00:00:00.000-05:00", RawCity: "Bogotá, D.C."},
		{ProductCode: 1, ProductName: "Papa criolla", AveragePrice: 3200, CapturedAt: "2025-06-05 00:00:00.000-05:00", RawCity: "Bogotá, D.C."},
		{ProductCode: 2, ProductName: "Tomate chonto", AveragePrice: 2100, CapturedAt: "2025-06-03", RawCity: "Cali, Valle del Cauca"},
		{ProductCode: 2, ProductName: "Tomate chonto", AveragePrice: 1500, CapturedAt: "2024-01-03", RawCity: "Cali, Valle del Cauca"},
		{ProductCode: 3, ProductName: "Cebolla", AveragePrice: 900, CapturedAt: "not a date", RawCity: "Sogamoso"},
	}
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	freezeClock(t)
	ext := &mockExtractor{observations: sampleObservations()}
	file, mem := &mockLoader{}, &mockLoader{}
	metrics := observability.NewMetricsForTesting()

	p := newPipeline(ext, metrics,
		pipeline.NamedLoader{Name: "file", Loader: file},
		pipeline.NamedLoader{Name: "memory", Loader: mem},
	)
	require.Error(t, p.CheckReadiness(context.Background()))

	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, file.loaded, 1)
	require.Len(t, mem.loaded, 1)
	assert.Empty(t, cmp.Diff(summary, file.loaded[0]))

	require.Len(t, summary.Cities, 3)
	assert.Equal(t, "BOGOTÁ", summary.Cities[0].City)
	require.Len(t, summary.Cities[0].Products, 1)
	assert.Equal(t, 3200.0, summary.Cities[0].Products[0].Price)
	assert.Equal(t, "SOGAMOSO", summary.Cities[2].City)

	md := summary.Metadata
	assert.True(t, md.GeneratedAt.Equal(testNow))
	assert.Equal(t, 1, md.RecordsOutOfWindow)
	assert.Equal(t, 1, md.UnparseableDates)
	assert.Equal(t, 1, md.CoordinateMisses)
	assert.Equal(t, 3, md.RecordsRetained)

	require.NoError(t, p.CheckReadiness(context.Background()))
	assert.Equal(t, float64(5), testutil.ToFloat64(metrics.RecordsRead))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RecordsOutOfWindow))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.UnparseableDates))
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.RecordsRetained))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CoordinateMisses.WithLabelValues("default")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Runs.WithLabelValues("success")))
	assert.Positive(t, testutil.ToFloat64(metrics.LastSuccess))
}

func TestPipeline_Run_ExtractError(t *testing.T) {
	errMissing := errors.New("snapshot not found")
	ext := &mockExtractor{err: errMissing}
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()

	p := newPipeline(ext, metrics, pipeline.NamedLoader{Name: "file", Loader: ldr})

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errMissing)
	assert.Empty(t, ldr.loaded, "nothing should be written after a failed read")
	assert.Error(t, p.CheckReadiness(context.Background()))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Runs.WithLabelValues("error")))
}

func TestPipeline_Run_LoaderErrorStopsLaterLoaders(t *testing.T) {
	freezeClock(t)
	ext := &mockExtractor{observations: sampleObservations()}
	failing := &mockLoader{err: errors.New("disk full")}
	later := &mockLoader{}
	metrics := observability.NewMetricsForTesting()

	p := newPipeline(ext, metrics,
		pipeline.NamedLoader{Name: "file", Loader: failing},
		pipeline.NamedLoader{Name: "memory", Loader: later},
	)

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load file")
	assert.Empty(t, later.loaded)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.LoadErrors.WithLabelValues("file")))
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_RecoversPanic(t *testing.T) {
	ext := &mockExtractor{panicWith: "unexpected shape"}
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()

	p := newPipeline(ext, metrics, pipeline.NamedLoader{Name: "file", Loader: ldr})

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrRunPanicked)
	assert.Contains(t, err.Error(), "unexpected shape")
	assert.Empty(t, ldr.loaded)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Runs.WithLabelValues("error")))
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{observations: sampleObservations()}
	ldr := &mockLoader{}

	p := newPipeline(ext, observability.NewMetricsForTesting(), pipeline.NamedLoader{Name: "file", Loader: ldr})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ldr.loaded)
}

func TestPipeline_Run_Idempotent(t *testing.T) {
	freezeClock(t)
	ext := &mockExtractor{observations: sampleObservations()}
	p := newPipeline(ext, observability.NewMetricsForTesting())

	first, err := p.Run(context.Background())
	require.NoError(t, err)
	second, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, ext.calls)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated run mismatch (-first +second):\n%s", diff)
	}
}

func TestPipeline_Run_EmptySnapshot(t *testing.T) {
	freezeClock(t)
	ldr := &mockLoader{}
	p := newPipeline(&mockExtractor{}, observability.NewMetricsForTesting(), pipeline.NamedLoader{Name: "file", Loader: ldr})

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, ldr.loaded, 1)
	assert.Empty(t, summary.Cities)
	assert.Empty(t, summary.Products)
	assert.Equal(t, 0, summary.Metadata.TotalCities)
}
