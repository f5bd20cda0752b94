package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the process's Prometheus collectors, registered once at
// startup and updated from Run(). Metric vectors live on one small struct
// rather than as package-level globals scattered across files.
type Metrics struct {
	registry *prometheus.Registry

	refreshDuration *prometheus.HistogramVec
	refreshTotal    *prometheus.CounterVec
	ingesterErrors  *prometheus.CounterVec
	activeLanes     prometheus.Gauge
	activeAdbLanes  *prometheus.GaugeVec
}

// NewMetrics builds and registers the orchestrator's metric collectors
// against a fresh registry, served at /metrics.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.refreshDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dvrguide",
		Subsystem: "refresh",
		Name:      "duration_seconds",
		Help:      "Wall-clock duration of a refresh run, by kind (manual/auto) and outcome.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind", "status"})

	m.refreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dvrguide",
		Subsystem: "refresh",
		Name:      "runs_total",
		Help:      "Refresh runs completed, by kind and outcome.",
	}, []string{"kind", "status"})

	m.ingesterErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dvrguide",
		Subsystem: "ingest",
		Name:      "errors_total",
		Help:      "Ingester run failures, by provider code.",
	}, []string{"provider"})

	m.activeLanes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "dvrguide",
		Subsystem: "lanes",
		Name:      "generic_scheduled",
		Help:      "Events scheduled onto the generic lane pool in the last rebuild.",
	})

	m.activeAdbLanes = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "dvrguide",
		Subsystem: "lanes",
		Name:      "adb_scheduled",
		Help:      "Events scheduled onto a provider's ADB lanes in the last rebuild.",
	}, []string{"provider"})

	m.registry.MustRegister(m.refreshDuration, m.refreshTotal, m.ingesterErrors, m.activeLanes, m.activeAdbLanes)
	return m
}
