package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"studbook/internal/party/models"
	id "studbook/pkg/domain"
	"studbook/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store    *InMemory
	tenantID id.TenantID
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.tenantID = id.TenantID(uuid.New())
}

func (s *MemoryStoreSuite) newParty(kind models.PartyKind) *models.Party {
	party, err := models.NewParty(id.PartyID(uuid.New()), s.tenantID, kind, "Test Party", "party@example.com", time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateParty(context.Background(), party))
	return party
}

func (s *MemoryStoreSuite) TestPersonLifecycle() {
	ctx := context.Background()
	party := s.newParty(models.KindPerson)
	person := &models.Person{ID: id.PersonID(uuid.New()), TenantID: s.tenantID, PartyID: party.ID, FirstName: "A", LastName: "B"}
	s.Require().NoError(s.store.CreatePerson(ctx, person))

	s.Run("find by id and by party", func() {
		found, err := s.store.FindPerson(ctx, person.ID)
		s.Require().NoError(err)
		s.Equal(party.ID, found.PartyID)

		byParty, err := s.store.FindPersonByParty(ctx, party.ID)
		s.Require().NoError(err)
		s.Equal(person.ID, byParty.ID)
	})

	s.Run("duplicate party link conflicts", func() {
		dup := &models.Person{ID: id.PersonID(uuid.New()), TenantID: s.tenantID, PartyID: party.ID}
		s.ErrorIs(s.store.CreatePerson(ctx, dup), sentinel.ErrConflict)
	})

	s.Run("referenced party blocks deletion", func() {
		s.store.AddReference(party.ID)
		err := s.store.DeletePersonAndParty(ctx, person.ID, party.ID)
		s.ErrorIs(err, sentinel.ErrReferenced)
		s.store.RemoveReference(party.ID)
	})

	s.Run("unreferenced person deletes with party", func() {
		s.Require().NoError(s.store.DeletePersonAndParty(ctx, person.ID, party.ID))
		_, err := s.store.FindParty(ctx, party.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *MemoryStoreSuite) TestAttachParty() {
	ctx := context.Background()

	s.Run("attach links an unlinked person exactly once", func() {
		person := &models.Person{ID: id.PersonID(uuid.New()), TenantID: s.tenantID}
		s.Require().NoError(s.store.CreatePerson(ctx, person))
		party := s.newParty(models.KindPerson)

		s.Require().NoError(s.store.AttachPartyToPerson(ctx, person.ID, party.ID))

		found, err := s.store.FindPerson(ctx, person.ID)
		s.Require().NoError(err)
		s.Equal(party.ID, found.PartyID)

		// A second attach must not re-point the row.
		other := s.newParty(models.KindPerson)
		s.ErrorIs(s.store.AttachPartyToPerson(ctx, person.ID, other.ID), sentinel.ErrInvalidState)
	})

	s.Run("attach to an unlinked organization", func() {
		org := &models.Organization{ID: id.OrganizationID(uuid.New()), TenantID: s.tenantID, Name: "Org"}
		s.Require().NoError(s.store.CreateOrganization(ctx, org))
		party := s.newParty(models.KindOrganization)

		s.Require().NoError(s.store.AttachPartyToOrganization(ctx, org.ID, party.ID))
		found, err := s.store.FindOrganizationByParty(ctx, party.ID)
		s.Require().NoError(err)
		s.Equal(org.ID, found.ID)
	})
}

func (s *MemoryStoreSuite) TestBatchLookups() {
	ctx := context.Background()
	first := s.newParty(models.KindPerson)
	second := s.newParty(models.KindOrganization)
	s.Require().NoError(s.store.CreatePerson(ctx, &models.Person{ID: id.PersonID(uuid.New()), TenantID: s.tenantID, PartyID: first.ID}))
	s.Require().NoError(s.store.CreateOrganization(ctx, &models.Organization{ID: id.OrganizationID(uuid.New()), TenantID: s.tenantID, PartyID: second.ID, Name: "Org"}))

	parties, err := s.store.PartiesByID(ctx, []id.PartyID{first.ID, second.ID, id.PartyID(uuid.New())})
	s.Require().NoError(err)
	s.Len(parties, 2)

	persons, err := s.store.PersonsByParty(ctx, []id.PartyID{first.ID, second.ID})
	s.Require().NoError(err)
	s.Len(persons, 1)

	orgs, err := s.store.OrganizationsByParty(ctx, []id.PartyID{first.ID, second.ID})
	s.Require().NoError(err)
	s.Len(orgs, 1)
}
