package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "agri_evidence"

// Metrics holds the Prometheus collectors for the aggregation service.
type Metrics struct {
	Aggregations        *prometheus.CounterVec // labels: result={ok,demo,unknown_profile,all_sources_unavailable,canceled}
	AggregationDuration prometheus.Histogram

	SourceFetches  *prometheus.CounterVec // labels: source, outcome={ok,cache_hit,unavailable}
	CacheLookups   *prometheus.CounterVec // labels: source, result={hit,miss,expired}
	DroppedRecords *prometheus.CounterVec // labels: source
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// means the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		Aggregations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregations_total",
			Help:      "Aggregation requests by result.",
		}, []string{"result"}),
		AggregationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregation_duration_seconds",
			Help:      "Duration of one aggregation from resolution to assembly.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 15},
		}),
		SourceFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetch_total",
			Help:      "Per-source fetch outcomes.",
		}, []string{"source", "outcome"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Source cache lookups by result.",
		}, []string{"source", "result"}),
		DroppedRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_records_total",
			Help:      "Upstream records discarded as malformed.",
		}, []string{"source"}),
	}

	reg.MustRegister(
		m.Aggregations,
		m.AggregationDuration,
		m.SourceFetches,
		m.CacheLookups,
		m.DroppedRecords,
	)

	return m
}

// NewMetricsForTesting registers with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
