// Package adapter gives the migration engine a uniform view of the
// referencing tables. Each table carrying a legacy person/organization pair
// registers one adapter; the engine never knows column names.
package adapter

import (
	"context"

	"studbook/internal/migration/models"
	id "studbook/pkg/domain"
)

// TableAdapter is the engine's handle on one referencing table: chunked
// listing by PK window, linking rows to their canonical id, and counting
// disagreements between the stored canonical id and the one the legacy
// columns derive to.
type TableAdapter interface {
	Table() string
	// MaxPK returns the highest PK in the table, 0 when empty.
	MaxPK(ctx context.Context) (int64, error)
	// ListChunk returns up to limit rows with afterPK < pk <= upToPK in PK
	// order.
	ListChunk(ctx context.Context, afterPK, upToPK int64, limit int) ([]models.Row, error)
	// SetPartyID writes the canonical id on one row.
	SetPartyID(ctx context.Context, pk int64, partyID id.PartyID) error
	// CountDisagreements compares every row's stored canonical id against
	// the id its legacy columns resolve to.
	CountDisagreements(ctx context.Context) (checked, disagreements int64, err error)
}
