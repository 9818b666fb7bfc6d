package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"studbook/internal/group/models"
	id "studbook/pkg/domain"
	"studbook/pkg/platform/sentinel"
)

// InMemory is the test twin of PostgresStore. FOR SHARE has no meaning here;
// the forShare flag is accepted and ignored because a single mutex already
// serializes everything.
type InMemory struct {
	mu          sync.RWMutex
	nextID      int64
	assignments []*models.BuyerAssignment
}

// NewInMemory constructs an empty assignment store.
func NewInMemory() *InMemory {
	return &InMemory{nextID: 1}
}

func (s *InMemory) Assign(_ context.Context, assignment *models.BuyerAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.assignments {
		if existing.GroupID == assignment.GroupID && existing.PartyID == assignment.PartyID && existing.Current() {
			return sentinel.ErrConflict
		}
	}
	assignment.ID = s.nextID
	s.nextID++
	clone := *assignment
	s.assignments = append(s.assignments, &clone)
	return nil
}

func (s *InMemory) Remove(_ context.Context, groupID id.GroupID, partyID id.PartyID, removedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.assignments {
		if existing.GroupID == groupID && existing.PartyID == partyID && existing.Current() {
			t := removedAt
			existing.RemovedAt = &t
			return nil
		}
	}
	return sentinel.ErrNotFound
}

func (s *InMemory) IsCurrentBuyer(_ context.Context, tenantID id.TenantID, groupID id.GroupID, partyID id.PartyID, _ bool) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, existing := range s.assignments {
		if existing.TenantID == tenantID && existing.GroupID == groupID && existing.PartyID == partyID && existing.Current() {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemory) ListCurrentBuyers(_ context.Context, tenantID id.TenantID, groupID id.GroupID) ([]*models.BuyerAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.BuyerAssignment
	for _, existing := range s.assignments {
		if existing.TenantID == tenantID && existing.GroupID == groupID && existing.Current() {
			clone := *existing
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AssignedAt.Equal(out[j].AssignedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].AssignedAt.Before(out[j].AssignedAt)
	})
	return out, nil
}
