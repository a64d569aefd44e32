package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the dashboard service.
type Metrics struct {
	// Sync metrics.
	PollTicks        prometheus.Counter
	SyncFetches      *prometheus.CounterVec   // labels: resource={villages,allocation}, outcome={applied,stale,error}
	SyncDuration     *prometheus.HistogramVec // labels: resource
	VillagesTracked  prometheus.Gauge
	CriticalVillages prometheus.Gauge
	PollerRunning    prometheus.Gauge

	// Insight metrics.
	InsightRequests *prometheus.CounterVec // labels: outcome={success,error,stale}

	// Backend client metrics.
	BackendDuration  *prometheus.HistogramVec // labels: endpoint
	InvalidRecords   *prometheus.CounterVec   // labels: resource
	ForecastCache    *prometheus.CounterVec   // labels: result={hit,miss}
	IncidentsWritten prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PollTicks,
		m.SyncFetches,
		m.SyncDuration,
		m.VillagesTracked,
		m.CriticalVillages,
		m.PollerRunning,
		m.InsightRequests,
		m.BackendDuration,
		m.InvalidRecords,
		m.ForecastCache,
		m.IncidentsWritten,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return NewUnregisteredMetrics()
}

// NewUnregisteredMetrics creates Metrics that are not exposed on any
// registry, for one-shot processes that never serve /metrics.
func NewUnregisteredMetrics() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PollTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drought_dashboard",
			Name:      "poll_ticks_total",
			Help:      "Background poll timer ticks.",
		}),
		SyncFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drought_dashboard",
			Name:      "sync_fetches_total",
			Help:      "Village and allocation fetches by resource and outcome.",
		}, []string{"resource", "outcome"}),
		SyncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "drought_dashboard",
			Name:      "sync_fetch_duration_seconds",
			Help:      "Duration of a sync fetch including decode.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"resource"}),
		VillagesTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "drought_dashboard",
			Name:      "villages_tracked",
			Help:      "Villages in the last applied status snapshot.",
		}),
		CriticalVillages: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "drought_dashboard",
			Name:      "critical_villages",
			Help:      "Villages classified critical in the last applied snapshot.",
		}),
		PollerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "drought_dashboard",
			Name:      "poller_running",
			Help:      "1 while the background poller is active, 0 otherwise.",
		}),
		InsightRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drought_dashboard",
			Name:      "insight_requests_total",
			Help:      "Resolved insight requests by outcome.",
		}, []string{"outcome"}),
		BackendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "drought_dashboard",
			Name:      "backend_request_duration_seconds",
			Help:      "Backend HTTP request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"endpoint"}),
		InvalidRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drought_dashboard",
			Name:      "invalid_records_total",
			Help:      "Backend records dropped by validation.",
		}, []string{"resource"}),
		ForecastCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drought_dashboard",
			Name:      "forecast_cache_total",
			Help:      "Forecast cache lookups by result.",
		}, []string{"result"}),
		IncidentsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drought_dashboard",
			Name:      "incidents_written_total",
			Help:      "Incidents published to the incident topic.",
		}),
	}
}
