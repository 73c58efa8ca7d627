package client

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the Prometheus collectors for fetching and record assembly.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry      *prometheus.Registry
	AttemptsTotal *prometheus.CounterVec
	RetriesTotal  prometheus.Counter
	FetchDuration prometheus.Histogram
	RecordsTotal  *prometheus.CounterVec
}

// NewMetrics constructs and registers all collectors on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	attempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idb_fetch_attempts_total",
			Help: "Item page GET attempts by outcome.",
		},
		[]string{"outcome"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "idb_fetch_retries_total",
			Help: "Attempts made after a transient failure.",
		},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "idb_fetch_duration_seconds",
			Help:    "Latency of a single item page GET.",
			Buckets: prometheus.DefBuckets,
		},
	)
	records := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idb_records_total",
			Help: "Item record requests by result kind.",
		},
		[]string{"result"},
	)

	registry.MustRegister(attempts, retries, duration, records)

	return &Metrics{
		Registry:      registry,
		AttemptsTotal: attempts,
		RetriesTotal:  retries,
		FetchDuration: duration,
		RecordsTotal:  records,
	}
}

func (m *Metrics) IncAttempt(outcome string) {
	if m == nil {
		return
	}
	m.AttemptsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
}

// IncRecord counts one finished GetItemRecord call under its result kind.
func (m *Metrics) IncRecord(result string) {
	if m == nil {
		return
	}
	m.RecordsTotal.WithLabelValues(result).Inc()
}
