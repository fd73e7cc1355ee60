package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sipsa_pricemap"

// Metrics holds the Prometheus counters, histograms, and gauges for summary runs.
type Metrics struct {
	RecordsRead        prometheus.Counter
	RecordsOutOfWindow prometheus.Counter
	UnparseableDates   prometheus.Counter
	UnkeyedRecords     prometheus.Counter
	RecordsRetained    prometheus.Gauge
	CitiesPublished    prometheus.Gauge
	ProductsPublished  prometheus.Gauge
	CoordinateMisses   *prometheus.CounterVec // labels: resolution={geocoded,default}

	Runs            *prometheus.CounterVec // labels: outcome={success,error}
	RunDuration     prometheus.Histogram
	LastSuccess     prometheus.Gauge
	LoadErrors      *prometheus.CounterVec // labels: loader
	SnapshotReloads prometheus.Counter

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec   // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetricsWithHelp()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetricsWithHelp()
}

func newMetricsWithHelp() *Metrics {
	return &Metrics{
		RecordsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_read_total",
			Help:      "Total observations read from snapshots.",
		}),
		RecordsOutOfWindow: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_out_of_window_total",
			Help:      "Observations dropped for falling before the retention cutoff.",
		}),
		UnparseableDates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unparseable_dates_total",
			Help:      "Observations whose capture time was replaced by the run time.",
		}),
		UnkeyedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unkeyed_records_total",
			Help:      "In-window observations missing a city or product code.",
		}),
		RecordsRetained: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records_retained",
			Help:      "City/product entries in the latest summary.",
		}),
		CitiesPublished: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cities",
			Help:      "Cities in the latest summary.",
		}),
		ProductsPublished: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "products",
			Help:      "Distinct products in the latest summary.",
		}),
		CoordinateMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coordinate_misses_total",
			Help:      "Cities missing from the coordinate table, by how they were resolved.",
		}, []string{"resolution"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Summary runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete read-select-build-load run.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		LoadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_errors_total",
			Help:      "Summary load failures by loader.",
		}, []string{"loader"}),
		SnapshotReloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_reloads_total",
			Help:      "Runs triggered by a snapshot file change.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when geocoding fallback is enabled, 0 otherwise.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RecordsRead,
		m.RecordsOutOfWindow,
		m.UnparseableDates,
		m.UnkeyedRecords,
		m.RecordsRetained,
		m.CitiesPublished,
		m.ProductsPublished,
		m.CoordinateMisses,
		m.Runs,
		m.RunDuration,
		m.LastSuccess,
		m.LoadErrors,
		m.SnapshotReloads,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	}
}
