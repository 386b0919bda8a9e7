// Package metrics exposes Prometheus instrumentation for the resolution
// kernel. All Metrics methods are nil-safe so kernel components can run
// uninstrumented in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the resolution kernel.
type Metrics struct {
	AggregatesCreated   *prometheus.CounterVec
	ObservationsMerged  *prometheus.CounterVec
	EntityMismatches    prometheus.Counter
	InvalidNames        prometheus.Counter
	ReconcileMerges     prometheus.Counter
	ReconcileSkips      prometheus.Counter
	ReconcileBatchSizes prometheus.Histogram
}

// New creates and registers all kernel metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metrics on the given registerer; tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration panics.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AggregatesCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dealroom_aggregates_created_total",
			Help: "Aggregates created, by object type and entity",
		}, []string{"object_type", "entity"}),
		ObservationsMerged: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dealroom_observations_merged_total",
			Help: "Observations merged into existing aggregates, by object type and entity",
		}, []string{"object_type", "entity"}),
		EntityMismatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "dealroom_entity_mismatches_total",
			Help: "Observations rejected because their entity disagreed with the aggregate",
		}),
		InvalidNames: factory.NewCounter(prometheus.CounterOpts{
			Name: "dealroom_invalid_names_total",
			Help: "Observations dropped because normalization produced an empty name",
		}),
		ReconcileMerges: factory.NewCounter(prometheus.CounterOpts{
			Name: "dealroom_reconcile_merges_total",
			Help: "Near-duplicate aggregates folded by reconciliation",
		}),
		ReconcileSkips: factory.NewCounter(prometheus.CounterOpts{
			Name: "dealroom_reconcile_skips_total",
			Help: "Reconciliation passes skipped by the batch-size circuit breaker",
		}),
		ReconcileBatchSizes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dealroom_reconcile_batch_size",
			Help:    "Aggregate batch sizes submitted to reconciliation",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
}

// IncAggregatesCreated counts a newly created aggregate.
func (m *Metrics) IncAggregatesCreated(objectType, entity string) {
	if m == nil {
		return
	}
	m.AggregatesCreated.WithLabelValues(objectType, entity).Inc()
}

// IncObservationsMerged counts an observation merged into an existing aggregate.
func (m *Metrics) IncObservationsMerged(objectType, entity string) {
	if m == nil {
		return
	}
	m.ObservationsMerged.WithLabelValues(objectType, entity).Inc()
}

// IncEntityMismatches counts a rejected cross-entity observation.
func (m *Metrics) IncEntityMismatches() {
	if m == nil {
		return
	}
	m.EntityMismatches.Inc()
}

// IncInvalidNames counts a dropped unnormalizable name.
func (m *Metrics) IncInvalidNames() {
	if m == nil {
		return
	}
	m.InvalidNames.Inc()
}

// AddReconcileMerges counts merges from one reconciliation pass.
func (m *Metrics) AddReconcileMerges(n int) {
	if m == nil {
		return
	}
	m.ReconcileMerges.Add(float64(n))
}

// IncReconcileSkips counts a circuit-breaker skip.
func (m *Metrics) IncReconcileSkips() {
	if m == nil {
		return
	}
	m.ReconcileSkips.Inc()
}

// ObserveReconcileBatch records a submitted batch size.
func (m *Metrics) ObserveReconcileBatch(size int) {
	if m == nil {
		return
	}
	m.ReconcileBatchSizes.Observe(float64(size))
}
