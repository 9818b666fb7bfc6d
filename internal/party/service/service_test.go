package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"studbook/internal/audit"
	"studbook/internal/party/models"
	"studbook/internal/party/store"
	id "studbook/pkg/domain"
	dErrors "studbook/pkg/domain-errors"
	"studbook/pkg/requestcontext"
)

// =============================================================================
// Party Service Test Suite
// =============================================================================
// Justification for unit tests: resolution precedence, tenant scoping, and
// orphan handling are pure service semantics that the integration suite only
// exercises indirectly. The in-memory store keeps these deterministic.

type PartyServiceSuite struct {
	suite.Suite
	store    *store.InMemory
	auditLog *audit.InMemoryStore
	service  *Service
	tenantID id.TenantID
}

func TestPartyServiceSuite(t *testing.T) {
	suite.Run(t, new(PartyServiceSuite))
}

func (s *PartyServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.auditLog = audit.NewInMemory()
	s.service = New(s.store, WithAudit(audit.NewRecorder(s.auditLog, nil)))
	s.tenantID = id.TenantID(uuid.New())
}

func (s *PartyServiceSuite) ctx() context.Context {
	return requestcontext.WithTenantID(context.Background(), s.tenantID)
}

func (s *PartyServiceSuite) mustCreatePerson(ctx context.Context, first, last string) *models.Person {
	person, err := s.service.CreatePerson(ctx, PersonInput{FirstName: first, LastName: last, Email: first + "@example.com"})
	s.Require().NoError(err)
	return person
}

func (s *PartyServiceSuite) mustCreateOrganization(ctx context.Context, name string) *models.Organization {
	org, err := s.service.CreateOrganization(ctx, OrganizationInput{Name: name, Email: "billing@example.com"})
	s.Require().NoError(err)
	return org
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func (s *PartyServiceSuite) TestCreatePerson() {
	ctx := s.ctx()

	s.Run("mints party and backing record together", func() {
		person := s.mustCreatePerson(ctx, "Anna", "Koch")
		s.False(person.PartyID.IsNil())

		backing, err := s.service.BackingOf(ctx, person.PartyID)
		s.Require().NoError(err)
		s.Require().NotNil(backing)
		s.Equal(models.KindPerson, backing.Kind)
		s.Equal(person.ID, backing.Person.ID)
	})

	s.Run("missing tenant scope fails closed", func() {
		_, err := s.service.CreatePerson(context.Background(), PersonInput{FirstName: "No", LastName: "Tenant"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *PartyServiceSuite) TestDeletePerson() {
	ctx := s.ctx()

	s.Run("unreferenced person deletes with its party", func() {
		person := s.mustCreatePerson(ctx, "Erik", "Vos")
		s.Require().NoError(s.service.DeletePerson(ctx, person.ID))

		_, err := s.service.BackingOf(ctx, person.PartyID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("referenced party blocks deletion", func() {
		person := s.mustCreatePerson(ctx, "Mia", "Berg")
		s.store.AddReference(person.PartyID)

		err := s.service.DeletePerson(ctx, person.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		s.Equal("PARTY_STILL_REFERENCED", dErrors.Reason(err))

		// Party survives the refused delete.
		backing, err := s.service.BackingOf(ctx, person.PartyID)
		s.Require().NoError(err)
		s.NotNil(backing)
	})

	s.Run("other tenant's person reads as not found", func() {
		person := s.mustCreatePerson(ctx, "Lars", "Holm")
		otherCtx := requestcontext.WithTenantID(context.Background(), id.TenantID(uuid.New()))

		err := s.service.DeletePerson(otherCtx, person.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *PartyServiceSuite) TestDeleteOrganization() {
	ctx := s.ctx()

	org := s.mustCreateOrganization(ctx, "Van Dijk Stud BV")
	s.store.AddReference(org.PartyID)

	err := s.service.DeleteOrganization(ctx, org.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	s.store.RemoveReference(org.PartyID)
	s.NoError(s.service.DeleteOrganization(ctx, org.ID))
}

// =============================================================================
// Resolve Tests
// =============================================================================

func (s *PartyServiceSuite) TestResolve() {
	ctx := s.ctx()
	person := s.mustCreatePerson(ctx, "Sofia", "Lind")
	org := s.mustCreateOrganization(ctx, "Lind Equine AB")

	s.Run("empty reference resolves to zero party with no error", func() {
		partyID, err := s.service.Resolve(ctx, models.LegacyRef{})
		s.NoError(err)
		s.True(partyID.IsNil())
	})

	s.Run("person reference resolves to the person's party", func() {
		partyID, err := s.service.Resolve(ctx, models.LegacyRef{PersonID: person.ID})
		s.NoError(err)
		s.Equal(person.PartyID, partyID)
	})

	s.Run("organization wins when both references are set", func() {
		partyID, err := s.service.Resolve(ctx, models.LegacyRef{PersonID: person.ID, OrganizationID: org.ID})
		s.NoError(err)
		s.Equal(org.PartyID, partyID)
	})

	s.Run("missing backing record resolves to zero party with no error", func() {
		partyID, err := s.service.Resolve(ctx, models.LegacyRef{PersonID: id.PersonID(uuid.New())})
		s.NoError(err)
		s.True(partyID.IsNil())
	})

	s.Run("unlinked backing record resolves to zero party and is audited", func() {
		unlinked := &models.Person{ID: id.PersonID(uuid.New()), TenantID: s.tenantID, FirstName: "Pre", LastName: "Backfill"}
		s.Require().NoError(s.store.CreatePerson(context.Background(), unlinked))

		partyID, err := s.service.Resolve(ctx, models.LegacyRef{PersonID: unlinked.ID})
		s.NoError(err)
		s.True(partyID.IsNil())
		s.Len(s.auditLog.EventsOfKind(audit.KindUnresolvedLegacyRef), 1)
	})

	s.Run("cross-tenant reference fails closed", func() {
		otherCtx := requestcontext.WithTenantID(context.Background(), id.TenantID(uuid.New()))
		_, err := s.service.Resolve(otherCtx, models.LegacyRef{PersonID: person.ID})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeAmbiguousReference))
		s.Equal("CROSS_TENANT_REFERENCE", dErrors.Reason(err))
	})

	s.Run("missing tenant scope fails closed", func() {
		_, err := s.service.Resolve(context.Background(), models.LegacyRef{PersonID: person.ID})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

// =============================================================================
// Backing Lookup Tests
// =============================================================================

func (s *PartyServiceSuite) TestBackingOf() {
	ctx := s.ctx()

	s.Run("zero party id returns nil backing", func() {
		backing, err := s.service.BackingOf(ctx, id.PartyID{})
		s.NoError(err)
		s.Nil(backing)
	})

	s.Run("unknown party id is not found", func() {
		_, err := s.service.BackingOf(ctx, id.PartyID(uuid.New()))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("orphaned party returns nil backing and is audited", func() {
		person := s.mustCreatePerson(ctx, "Orphan", "Case")
		s.store.DetachBacking(person.PartyID)

		backing, err := s.service.BackingOf(ctx, person.PartyID)
		s.NoError(err)
		s.Nil(backing)
		s.Len(s.auditLog.EventsOfKind(audit.KindOrphanedParty), 1)
	})

	s.Run("other tenant's party reads as not found", func() {
		person := s.mustCreatePerson(ctx, "Scoped", "Row")
		otherCtx := requestcontext.WithTenantID(context.Background(), id.TenantID(uuid.New()))

		_, err := s.service.BackingOf(otherCtx, person.PartyID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *PartyServiceSuite) TestVerifyParty() {
	ctx := s.ctx()

	s.Run("party in the request tenant verifies", func() {
		person := s.mustCreatePerson(ctx, "Own", "Tenant")
		s.NoError(s.service.VerifyParty(ctx, person.PartyID))
	})

	s.Run("zero party id is invalid input", func() {
		err := s.service.VerifyParty(ctx, id.PartyID{})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unknown party id is not found", func() {
		err := s.service.VerifyParty(ctx, id.PartyID(uuid.New()))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("other tenant's party is indistinguishable from absent", func() {
		person := s.mustCreatePerson(ctx, "Foreign", "Tenant")
		otherCtx := requestcontext.WithTenantID(context.Background(), id.TenantID(uuid.New()))

		err := s.service.VerifyParty(otherCtx, person.PartyID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("missing tenant scope fails closed", func() {
		person := s.mustCreatePerson(ctx, "No", "Scope")
		err := s.service.VerifyParty(context.Background(), person.PartyID)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *PartyServiceSuite) TestBackingOfMany() {
	ctx := s.ctx()
	person := s.mustCreatePerson(ctx, "Batch", "One")
	org := s.mustCreateOrganization(ctx, "Batch Two BV")
	orphan := s.mustCreatePerson(ctx, "Batch", "Orphan")
	s.store.DetachBacking(orphan.PartyID)

	ids := []id.PartyID{person.PartyID, org.PartyID, orphan.PartyID, person.PartyID, {}}
	out, err := s.service.BackingOfMany(ctx, ids)
	s.Require().NoError(err)

	s.Len(out, 2)
	s.Equal(models.KindPerson, out[person.PartyID].Kind)
	s.Equal(models.KindOrganization, out[org.PartyID].Kind)
	s.NotContains(out, orphan.PartyID)
	s.Len(s.auditLog.EventsOfKind(audit.KindOrphanedParty), 1)
}

// =============================================================================
// Backfill Minting Tests
// =============================================================================

func (s *PartyServiceSuite) TestEnsureParty() {
	ctx := context.Background()

	s.Run("already linked backing returns existing party without minting", func() {
		person := s.mustCreatePerson(s.ctx(), "Linked", "Row")

		partyID, minted, err := s.service.EnsureParty(ctx, models.LegacyRef{PersonID: person.ID})
		s.Require().NoError(err)
		s.False(minted)
		s.Equal(person.PartyID, partyID)
	})

	s.Run("unlinked person gets a minted party of its own tenant", func() {
		rowTenant := id.TenantID(uuid.New())
		unlinked := &models.Person{ID: id.PersonID(uuid.New()), TenantID: rowTenant, FirstName: "Legacy", LastName: "Row"}
		s.Require().NoError(s.store.CreatePerson(ctx, unlinked))

		partyID, minted, err := s.service.EnsureParty(ctx, models.LegacyRef{PersonID: unlinked.ID})
		s.Require().NoError(err)
		s.True(minted)
		s.False(partyID.IsNil())

		refreshed, err := s.store.FindPerson(ctx, unlinked.ID)
		s.Require().NoError(err)
		s.Equal(partyID, refreshed.PartyID)

		party, err := s.store.FindParty(ctx, partyID)
		s.Require().NoError(err)
		s.Equal(rowTenant, party.TenantID)
		s.Equal(models.KindPerson, party.Kind)
	})

	s.Run("minting is idempotent across repeated windows", func() {
		unlinked := &models.Organization{ID: id.OrganizationID(uuid.New()), TenantID: s.tenantID, Name: "Repeat BV"}
		s.Require().NoError(s.store.CreateOrganization(ctx, unlinked))

		first, minted, err := s.service.EnsureParty(ctx, models.LegacyRef{OrganizationID: unlinked.ID})
		s.Require().NoError(err)
		s.True(minted)

		second, minted, err := s.service.EnsureParty(ctx, models.LegacyRef{OrganizationID: unlinked.ID})
		s.Require().NoError(err)
		s.False(minted)
		s.Equal(first, second)
	})

	s.Run("missing backing row is reported as unresolvable not an error", func() {
		partyID, minted, err := s.service.EnsureParty(ctx, models.LegacyRef{PersonID: id.PersonID(uuid.New())})
		s.NoError(err)
		s.False(minted)
		s.True(partyID.IsNil())
	})
}

// racingPartyStore links a competing Party to the person right before the
// real attach runs, so the caller always loses the attach race.
type racingPartyStore struct {
	*store.InMemory
	winner id.PartyID
}

func (r *racingPartyStore) AttachPartyToPerson(ctx context.Context, personID id.PersonID, partyID id.PartyID) error {
	if r.winner.IsNil() {
		person, err := r.InMemory.FindPerson(ctx, personID)
		if err != nil {
			return err
		}
		winner, err := models.NewParty(id.PartyID(uuid.New()), person.TenantID, models.KindPerson, person.DisplayName(), person.Email, time.Now())
		if err != nil {
			return err
		}
		if err := r.InMemory.CreateParty(ctx, winner); err != nil {
			return err
		}
		if err := r.InMemory.AttachPartyToPerson(ctx, personID, winner.ID); err != nil {
			return err
		}
		r.winner = winner.ID
	}
	return r.InMemory.AttachPartyToPerson(ctx, personID, partyID)
}

func (s *PartyServiceSuite) TestEnsurePartyLostAttachRace() {
	ctx := context.Background()
	racing := &racingPartyStore{InMemory: store.NewInMemory()}
	svc := New(racing)

	person := &models.Person{ID: id.PersonID(uuid.New()), TenantID: s.tenantID, FirstName: "Raced", LastName: "Row"}
	s.Require().NoError(racing.CreatePerson(ctx, person))

	partyID, minted, err := svc.EnsureParty(ctx, models.LegacyRef{PersonID: person.ID})
	s.Require().NoError(err)
	s.Equal(racing.winner, partyID, "the winner's Party is returned after the race")
	s.False(minted, "a call that lost the attach race did not mint the Party")
}
