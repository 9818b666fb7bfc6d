package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the party module. Orphaned parties and
// unresolvable legacy references are counted here as well as logged, so the
// operator dashboard shows data-integrity gaps without log scraping.
type Metrics struct {
	Resolutions        *prometheus.CounterVec
	OrphanedParties    prometheus.Counter
	UnresolvedLegacy   prometheus.Counter
	ProjectionDuration prometheus.Histogram
	BatchResolveSize   prometheus.Histogram
}

// New creates a Metrics instance with all party module metrics registered.
func New() *Metrics {
	return &Metrics{
		Resolutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "studbook_party_resolutions_total",
			Help: "Legacy reference resolutions by outcome (resolved, empty, missing, cross_tenant)",
		}, []string{"outcome"}),
		OrphanedParties: promauto.NewCounter(prometheus.CounterOpts{
			Name: "studbook_orphaned_parties_total",
			Help: "Backing lookups that found a Party with no backing record",
		}),
		UnresolvedLegacy: promauto.NewCounter(prometheus.CounterOpts{
			Name: "studbook_unresolved_legacy_refs_total",
			Help: "Legacy references whose backing record carries no Party",
		}),
		ProjectionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "studbook_legacy_projection_duration_seconds",
			Help:    "Duration of legacy shape projections (list read path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		BatchResolveSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "studbook_batch_resolve_size",
			Help:    "Number of parties per BackingOfMany call",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),
	}
}

// RecordResolution counts one resolution with the given outcome label.
func (m *Metrics) RecordResolution(outcome string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(outcome).Inc()
}

// RecordOrphanedParty counts a Party found without a backing record.
func (m *Metrics) RecordOrphanedParty() {
	if m == nil {
		return
	}
	m.OrphanedParties.Inc()
}

// RecordUnresolvedLegacy counts a legacy reference with no Party behind it.
func (m *Metrics) RecordUnresolvedLegacy() {
	if m == nil {
		return
	}
	m.UnresolvedLegacy.Inc()
}

// ObserveProjection records the duration of a projection call.
func (m *Metrics) ObserveProjection(start time.Time) {
	if m == nil {
		return
	}
	m.ProjectionDuration.Observe(time.Since(start).Seconds())
}

// ObserveBatchSize records the size of a batched backing lookup.
func (m *Metrics) ObserveBatchSize(n int) {
	if m == nil {
		return
	}
	m.BatchResolveSize.Observe(float64(n))
}
