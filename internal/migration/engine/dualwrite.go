package engine

import (
	"context"
	"log"

	"studbook/internal/audit"
	migrationmetrics "studbook/internal/migration/metrics"
	"studbook/internal/migration/models"
	partymodels "studbook/internal/party/models"
	id "studbook/pkg/domain"
)

// WritePlan tells a writing service which reference columns to fill for one
// write, based on the table's current stage. The stage is re-read for every
// plan; a table's stage can advance between two writes of the same process.
// The canonical id is written in every stage (a LEGACY_ONLY table simply
// does not trust the column yet), so the plan only gates the legacy shape.
type WritePlan struct {
	Stage       models.Stage
	WriteLegacy bool
	Legacy      partymodels.LegacyShape
}

// DualWriter computes write plans and runs the post-commit sanity check of
// the dual-write stage.
type DualWriter struct {
	stages  StageStore
	parties PartyResolver
	audit   *audit.Recorder
	metrics *migrationmetrics.Metrics
	log     *log.Logger
}

// NewDualWriter constructs the dual-write helper.
func NewDualWriter(stages StageStore, parties PartyResolver, auditRec *audit.Recorder, m *migrationmetrics.Metrics, l *log.Logger) *DualWriter {
	return &DualWriter{stages: stages, parties: parties, audit: auditRec, metrics: m, log: l}
}

// PlanWrite derives the column plan for writing a party reference into the
// table. In the dual-write stage both shapes are computed here so the caller
// persists them in one transaction.
func (w *DualWriter) PlanWrite(ctx context.Context, table string, partyID id.PartyID) (WritePlan, error) {
	stage, err := w.stages.GetStage(ctx, table)
	if err != nil {
		return WritePlan{}, err
	}
	plan := WritePlan{
		Stage:       stage,
		WriteLegacy: stage != models.StagePartyOnly,
	}
	if plan.WriteLegacy {
		shape, err := w.parties.Project(ctx, partyID)
		if err != nil {
			return WritePlan{}, err
		}
		plan.Legacy = shape
	}
	return plan, nil
}

// VerifyAfterCommit recomputes the canonical id from the legacy columns a
// dual-write just persisted and records ConsistencyDrift when the two shapes
// disagree. Runs after the write committed and never fails it; drift is a
// finding for operators, not for the caller.
func (w *DualWriter) VerifyAfterCommit(ctx context.Context, table string, partyID id.PartyID, written partymodels.LegacyRef) {
	derived, err := w.parties.Resolve(ctx, written)
	if err != nil {
		if w.log != nil {
			w.log.Printf("dual-write check %s: resolve failed: %v", table, err)
		}
		return
	}
	if derived == partyID {
		return
	}
	w.metrics.RecordDrift(table)
	if w.log != nil {
		w.log.Printf("dual-write drift on %s: stored party %s, legacy columns derive to %s", table, partyID, derived)
	}
	w.audit.Record(ctx, audit.Event{
		Kind:    audit.KindConsistencyDrift,
		Table:   table,
		PartyID: partyID.String(),
		Detail:  "legacy columns derive to " + derived.String(),
	})
}
