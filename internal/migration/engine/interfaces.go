package engine

import (
	"context"

	"studbook/internal/migration/models"
	partymodels "studbook/internal/party/models"
	id "studbook/pkg/domain"
)

// StageStore persists per-table migration stages and validation results.
type StageStore interface {
	GetStage(ctx context.Context, table string) (models.Stage, error)
	SetStage(ctx context.Context, table string, stage models.Stage) error
	RecordValidation(ctx context.Context, report models.ValidationReport) error
	LatestValidation(ctx context.Context, table string) (models.ValidationReport, error)
}

// CheckpointStore persists backfill progress per window key.
type CheckpointStore interface {
	Load(ctx context.Context, key string) (lastPK int64, found bool, err error)
	Save(ctx context.Context, key string, lastPK int64) error
	Clear(ctx context.Context, key string) error
}

// PartyMinter resolves legacy references during backfill, minting a Party
// when the backing record exists but has none.
type PartyMinter interface {
	EnsureParty(ctx context.Context, ref partymodels.LegacyRef) (partyID id.PartyID, minted bool, err error)
}

// PartyResolver is the read side the dual-write sanity check needs.
type PartyResolver interface {
	Resolve(ctx context.Context, ref partymodels.LegacyRef) (id.PartyID, error)
	Project(ctx context.Context, partyID id.PartyID) (partymodels.LegacyShape, error)
}
