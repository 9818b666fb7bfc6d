package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"studbook/internal/audit"
	"studbook/internal/party/models"
	"studbook/internal/party/store"
	id "studbook/pkg/domain"
	"studbook/pkg/requestcontext"
)

type ProjectionSuite struct {
	suite.Suite
	store    *store.InMemory
	service  *Service
	tenantID id.TenantID
}

func TestProjectionSuite(t *testing.T) {
	suite.Run(t, new(ProjectionSuite))
}

func (s *ProjectionSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.service = New(s.store, WithAudit(audit.NewRecorder(audit.NewInMemory(), nil)))
	s.tenantID = id.TenantID(uuid.New())
}

func (s *ProjectionSuite) ctx() context.Context {
	return requestcontext.WithTenantID(context.Background(), s.tenantID)
}

func (s *ProjectionSuite) TestProject() {
	ctx := s.ctx()

	s.Run("person party projects person fields only", func() {
		person, err := s.service.CreatePerson(ctx, PersonInput{FirstName: "Ida", LastName: "Falk", Email: "ida@example.com"})
		s.Require().NoError(err)

		shape, err := s.service.Project(ctx, person.PartyID)
		s.Require().NoError(err)
		s.Require().NotNil(shape.PersonID)
		s.Equal(person.ID, *shape.PersonID)
		s.Nil(shape.OrganizationID)
		s.Require().NotNil(shape.PersonSummary)
		s.Equal("Ida", shape.PersonSummary.FirstName)
		s.Nil(shape.OrganizationSummary)
	})

	s.Run("organization party projects organization fields only", func() {
		org, err := s.service.CreateOrganization(ctx, OrganizationInput{Name: "Falk Stud BV"})
		s.Require().NoError(err)

		shape, err := s.service.Project(ctx, org.PartyID)
		s.Require().NoError(err)
		s.Require().NotNil(shape.OrganizationID)
		s.Equal(org.ID, *shape.OrganizationID)
		s.Nil(shape.PersonID)
		s.Require().NotNil(shape.OrganizationSummary)
		s.Equal("Falk Stud BV", shape.OrganizationSummary.Name)
	})

	s.Run("zero party id projects the all-nil shape", func() {
		shape, err := s.service.Project(ctx, id.PartyID{})
		s.NoError(err)
		s.Equal(models.LegacyShape{}, shape)
	})

	s.Run("orphaned party degrades to the all-nil shape", func() {
		person, err := s.service.CreatePerson(ctx, PersonInput{FirstName: "Gone", LastName: "Backing"})
		s.Require().NoError(err)
		s.store.DetachBacking(person.PartyID)

		shape, err := s.service.Project(ctx, person.PartyID)
		s.NoError(err)
		s.Equal(models.LegacyShape{}, shape)
	})
}

// Projecting a resolved reference must reproduce the reference. This is the
// compatibility contract legacy clients depend on during dual-write.
func (s *ProjectionSuite) TestProjectResolveRoundTrip() {
	ctx := s.ctx()
	person, err := s.service.CreatePerson(ctx, PersonInput{FirstName: "Round", LastName: "Trip"})
	s.Require().NoError(err)
	org, err := s.service.CreateOrganization(ctx, OrganizationInput{Name: "Round Trip BV"})
	s.Require().NoError(err)

	for _, ref := range []models.LegacyRef{
		{PersonID: person.ID},
		{OrganizationID: org.ID},
	} {
		partyID, err := s.service.Resolve(ctx, ref)
		s.Require().NoError(err)

		shape, err := s.service.Project(ctx, partyID)
		s.Require().NoError(err)
		s.Equal(ref, shape.ToRef())
	}
}

func (s *ProjectionSuite) TestProjectMany() {
	ctx := s.ctx()
	person, err := s.service.CreatePerson(ctx, PersonInput{FirstName: "Many", LastName: "One"})
	s.Require().NoError(err)
	org, err := s.service.CreateOrganization(ctx, OrganizationInput{Name: "Many Two BV"})
	s.Require().NoError(err)
	unknown := id.PartyID(uuid.New())

	shapes, err := s.service.ProjectMany(ctx, []id.PartyID{person.PartyID, org.PartyID, unknown, {}})
	s.Require().NoError(err)

	s.Require().NotNil(shapes[person.PartyID].PersonID)
	s.Equal(person.ID, *shapes[person.PartyID].PersonID)
	s.Require().NotNil(shapes[org.PartyID].OrganizationID)
	s.Equal(org.ID, *shapes[org.PartyID].OrganizationID)

	// Unknown ids still get an entry so templating code can index safely.
	s.Contains(shapes, unknown)
	s.Equal(models.LegacyShape{}, shapes[unknown])
	s.NotContains(shapes, id.PartyID{})
}
