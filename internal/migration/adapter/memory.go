package adapter

import (
	"context"
	"sort"
	"sync"

	"studbook/internal/migration/models"
	partymodels "studbook/internal/party/models"
	id "studbook/pkg/domain"
)

// ResolveFunc derives the canonical id a legacy reference should carry.
// Unresolvable references derive to the zero id.
type ResolveFunc func(ref partymodels.LegacyRef) id.PartyID

// Memory is the test twin of SQLAdapter. The resolve function stands in for
// the organization/person joins of the SQL validation query.
type Memory struct {
	mu      sync.RWMutex
	table   string
	rows    map[int64]models.Row
	resolve ResolveFunc

	// SetCalls counts SetPartyID invocations, letting idempotence tests
	// assert a second backfill run writes nothing.
	SetCalls int
}

// NewMemory constructs an in-memory adapter for one synthetic table.
func NewMemory(table string, resolve ResolveFunc) *Memory {
	return &Memory{table: table, rows: make(map[int64]models.Row), resolve: resolve}
}

// Seed inserts or replaces a row.
func (a *Memory) Seed(row models.Row) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rows[row.PK] = row
}

// Row returns a seeded row by PK.
func (a *Memory) Row(pk int64) (models.Row, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	row, ok := a.rows[pk]
	return row, ok
}

func (a *Memory) Table() string {
	return a.table
}

func (a *Memory) MaxPK(_ context.Context) (int64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var maxPK int64
	for pk := range a.rows {
		if pk > maxPK {
			maxPK = pk
		}
	}
	return maxPK, nil
}

func (a *Memory) ListChunk(_ context.Context, afterPK, upToPK int64, limit int) ([]models.Row, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []models.Row
	for pk, row := range a.rows {
		if pk > afterPK && pk <= upToPK {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PK < out[j].PK })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (a *Memory) SetPartyID(_ context.Context, pk int64, partyID id.PartyID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	row := a.rows[pk]
	row.PK = pk
	row.PartyID = partyID
	a.rows[pk] = row
	a.SetCalls++
	return nil
}

func (a *Memory) CountDisagreements(_ context.Context) (int64, int64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var checked, disagreements int64
	for _, row := range a.rows {
		checked++
		if a.resolve(row.Legacy) != row.PartyID {
			disagreements++
		}
	}
	return checked, disagreements, nil
}
