package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"studbook/internal/group/models"
	id "studbook/pkg/domain"
	"studbook/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store    *InMemory
	tenantID id.TenantID
	groupID  id.GroupID
	partyID  id.PartyID
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.tenantID = id.TenantID(uuid.New())
	s.groupID = id.GroupID(uuid.New())
	s.partyID = id.PartyID(uuid.New())
}

func (s *MemoryStoreSuite) assign() *models.BuyerAssignment {
	assignment := &models.BuyerAssignment{
		TenantID:   s.tenantID,
		GroupID:    s.groupID,
		PartyID:    s.partyID,
		AssignedAt: time.Now().UTC(),
	}
	s.Require().NoError(s.store.Assign(context.Background(), assignment))
	return assignment
}

func (s *MemoryStoreSuite) TestAssign() {
	ctx := context.Background()
	s.assign()

	s.Run("duplicate current assignment conflicts", func() {
		err := s.store.Assign(ctx, &models.BuyerAssignment{GroupID: s.groupID, PartyID: s.partyID})
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("re-assignment after removal is allowed", func() {
		s.Require().NoError(s.store.Remove(ctx, s.groupID, s.partyID, time.Now().UTC()))
		s.NoError(s.store.Assign(ctx, &models.BuyerAssignment{GroupID: s.groupID, PartyID: s.partyID, AssignedAt: time.Now().UTC()}))
	})
}

func (s *MemoryStoreSuite) TestRemove() {
	ctx := context.Background()

	s.Run("removing a non-buyer is not found", func() {
		err := s.store.Remove(ctx, s.groupID, s.partyID, time.Now().UTC())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("removal ends the current assignment", func() {
		s.assign()
		s.Require().NoError(s.store.Remove(ctx, s.groupID, s.partyID, time.Now().UTC()))

		current, err := s.store.IsCurrentBuyer(ctx, s.tenantID, s.groupID, s.partyID, false)
		s.Require().NoError(err)
		s.False(current)
	})
}

func (s *MemoryStoreSuite) TestIsCurrentBuyerTenantScoped() {
	ctx := context.Background()
	s.assign()

	current, err := s.store.IsCurrentBuyer(ctx, s.tenantID, s.groupID, s.partyID, false)
	s.Require().NoError(err)
	s.True(current)

	current, err = s.store.IsCurrentBuyer(ctx, id.TenantID(uuid.New()), s.groupID, s.partyID, false)
	s.Require().NoError(err)
	s.False(current)
}

func (s *MemoryStoreSuite) TestListCurrentBuyers() {
	ctx := context.Background()
	first := s.assign()

	second := &models.BuyerAssignment{
		TenantID:   s.tenantID,
		GroupID:    s.groupID,
		PartyID:    id.PartyID(uuid.New()),
		AssignedAt: first.AssignedAt.Add(time.Minute),
	}
	s.Require().NoError(s.store.Assign(ctx, second))
	s.Require().NoError(s.store.Remove(ctx, s.groupID, second.PartyID, time.Now().UTC()))

	buyers, err := s.store.ListCurrentBuyers(ctx, s.tenantID, s.groupID)
	s.Require().NoError(err)
	s.Require().Len(buyers, 1)
	s.Equal(first.PartyID, buyers[0].PartyID)
}
