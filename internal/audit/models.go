// Package audit records operator-review events: data-integrity findings the
// encountering request must not fail on (orphaned parties, dual-write drift)
// and migration lifecycle events (backfill, validation, cutover).
//
// Events are written to an outbox table in the caller's transaction and
// relayed to Kafka by the outbox worker, so an event is published iff the
// write that produced it committed.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event kinds.
const (
	KindOrphanedParty       = "ORPHANED_PARTY"
	KindUnresolvedLegacyRef = "UNRESOLVED_LEGACY_REF"
	KindConsistencyDrift    = "CONSISTENCY_DRIFT"
	KindBackfillStarted     = "BACKFILL_STARTED"
	KindBackfillCompleted   = "BACKFILL_COMPLETED"
	KindValidationCompleted = "VALIDATION_COMPLETED"
	KindCutoverApplied      = "CUTOVER_APPLIED"
	KindCutoverBlocked      = "CUTOVER_BLOCKED"
)

// Event is a single operator-review record.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Kind      string    `json:"kind"`
	TenantID  string    `json:"tenant_id,omitempty"`
	Table     string    `json:"table,omitempty"`
	PartyID   string    `json:"party_id,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Count     int64     `json:"count,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
