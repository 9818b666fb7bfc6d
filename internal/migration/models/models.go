// Package models defines the staged-migration vocabulary: per-table stages,
// backfill checkpoints, and the reports the engine hands to operators.
package models

import (
	"time"

	partymodels "studbook/internal/party/models"
	id "studbook/pkg/domain"
)

// Stage is a referencing table's position in the legacy-to-canonical
// migration. The stage is table-level configuration; all rows of a table
// share it.
type Stage string

const (
	// StageLegacyOnly: writes touch legacy columns only, canonical column
	// is absent or ignored.
	StageLegacyOnly Stage = "LEGACY_ONLY"
	// StageDualWrite: writes fill canonical and legacy columns in one
	// transaction; reads prefer the canonical column.
	StageDualWrite Stage = "DUAL_WRITE"
	// StagePartyOnly: legacy columns are no longer written. Legacy input is
	// still accepted and translated at the boundary.
	StagePartyOnly Stage = "PARTY_ONLY"
)

// Valid reports whether the stage is a member of the closed set.
func (s Stage) Valid() bool {
	return s == StageLegacyOnly || s == StageDualWrite || s == StagePartyOnly
}

// CanAdvanceTo reports whether next is the legal successor stage. Stages only
// move forward and only one step at a time; there is no rollback transition.
func (s Stage) CanAdvanceTo(next Stage) bool {
	switch s {
	case StageLegacyOnly:
		return next == StageDualWrite
	case StageDualWrite:
		return next == StagePartyOnly
	default:
		return false
	}
}

// Row is one referencing row as seen by a table adapter: its numeric PK, the
// canonical id currently stored (zero when unset), and the legacy reference
// columns.
type Row struct {
	PK      int64
	PartyID id.PartyID
	Legacy  partymodels.LegacyRef
}

// Checkpoint marks how far a backfill window has progressed. Key is the
// table name, suffixed with the window index when windows run concurrently.
type Checkpoint struct {
	Key       string
	LastPK    int64
	UpdatedAt time.Time
}

// BackfillReport summarizes one RunBackfill invocation. Unresolvable rows
// are counted, never dropped: they stay untouched for the next run and block
// validation from reaching zero only if their legacy reference resolves later.
type BackfillReport struct {
	Table         string        `json:"table"`
	RowsScanned   int64         `json:"rows_scanned"`
	RowsLinked    int64         `json:"rows_linked"`
	PartiesMinted int64         `json:"parties_minted"`
	Unresolvable  int64         `json:"unresolvable"`
	Chunks        int64         `json:"chunks"`
	Resumed       bool          `json:"resumed"`
	Duration      time.Duration `json:"duration"`
}

// Merge folds a window's report into the aggregate.
func (r *BackfillReport) Merge(other BackfillReport) {
	r.RowsScanned += other.RowsScanned
	r.RowsLinked += other.RowsLinked
	r.PartiesMinted += other.PartiesMinted
	r.Unresolvable += other.Unresolvable
	r.Chunks += other.Chunks
	r.Resumed = r.Resumed || other.Resumed
}

// ValidationReport is the result of one consistency validation pass. Cutover
// is gated on Disagreements == 0.
type ValidationReport struct {
	Table         string    `json:"table"`
	RowsChecked   int64     `json:"rows_checked"`
	Disagreements int64     `json:"disagreements"`
	CheckedAt     time.Time `json:"checked_at"`
}

// Clean reports whether the validated table had no disagreements.
func (r ValidationReport) Clean() bool {
	return r.Disagreements == 0
}
