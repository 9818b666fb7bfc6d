package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the migration engine. The validation
// disagreement gauge is the number an operator watches go to zero before
// requesting cutover.
type Metrics struct {
	BackfillRows    *prometheus.CounterVec
	ChunkDuration   *prometheus.HistogramVec
	ValidationGauge *prometheus.GaugeVec
	DriftEvents     *prometheus.CounterVec
	CutoverAttempts *prometheus.CounterVec
}

// New creates a Metrics instance with all migration engine metrics registered.
func New() *Metrics {
	return &Metrics{
		BackfillRows: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "studbook_backfill_rows_total",
			Help: "Backfilled rows by table and outcome (linked, minted, already_linked, no_reference, unresolvable)",
		}, []string{"table", "outcome"}),
		ChunkDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "studbook_backfill_chunk_duration_seconds",
			Help:    "Duration of one backfill chunk",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"table"}),
		ValidationGauge: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "studbook_migration_validation_disagreements",
			Help: "Disagreements found by the latest consistency validation, per table",
		}, []string{"table"}),
		DriftEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "studbook_consistency_drift_total",
			Help: "Dual-write sanity checks that found the two shapes disagreeing",
		}, []string{"table"}),
		CutoverAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "studbook_cutover_attempts_total",
			Help: "Cutover attempts by table and outcome (applied, blocked, unauthorized)",
		}, []string{"table", "outcome"}),
	}
}

// RecordBackfillRow counts one processed row with its outcome.
func (m *Metrics) RecordBackfillRow(table, outcome string) {
	if m == nil {
		return
	}
	m.BackfillRows.WithLabelValues(table, outcome).Inc()
}

// ObserveChunk records the duration of one backfill chunk.
func (m *Metrics) ObserveChunk(table string, start time.Time) {
	if m == nil {
		return
	}
	m.ChunkDuration.WithLabelValues(table).Observe(time.Since(start).Seconds())
}

// SetValidationDisagreements publishes the latest validation result.
func (m *Metrics) SetValidationDisagreements(table string, n int64) {
	if m == nil {
		return
	}
	m.ValidationGauge.WithLabelValues(table).Set(float64(n))
}

// RecordDrift counts one dual-write disagreement.
func (m *Metrics) RecordDrift(table string) {
	if m == nil {
		return
	}
	m.DriftEvents.WithLabelValues(table).Inc()
}

// RecordCutover counts one cutover attempt with its outcome.
func (m *Metrics) RecordCutover(table, outcome string) {
	if m == nil {
		return
	}
	m.CutoverAttempts.WithLabelValues(table, outcome).Inc()
}
