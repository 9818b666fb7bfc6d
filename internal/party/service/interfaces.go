package service

import (
	"context"

	"studbook/internal/party/models"
	id "studbook/pkg/domain"
)

// PartyStore defines the persistence interface for parties and their
// backing entities. Implemented by store.PostgresStore and store.InMemory.
type PartyStore interface {
	CreateParty(ctx context.Context, party *models.Party) error
	FindParty(ctx context.Context, partyID id.PartyID) (*models.Party, error)
	PartiesByID(ctx context.Context, partyIDs []id.PartyID) (map[id.PartyID]*models.Party, error)

	CreatePerson(ctx context.Context, person *models.Person) error
	CreateOrganization(ctx context.Context, org *models.Organization) error
	FindPerson(ctx context.Context, personID id.PersonID) (*models.Person, error)
	FindOrganization(ctx context.Context, orgID id.OrganizationID) (*models.Organization, error)
	FindPersonByParty(ctx context.Context, partyID id.PartyID) (*models.Person, error)
	FindOrganizationByParty(ctx context.Context, partyID id.PartyID) (*models.Organization, error)
	PersonsByParty(ctx context.Context, partyIDs []id.PartyID) ([]*models.Person, error)
	OrganizationsByParty(ctx context.Context, partyIDs []id.PartyID) ([]*models.Organization, error)

	AttachPartyToPerson(ctx context.Context, personID id.PersonID, partyID id.PartyID) error
	AttachPartyToOrganization(ctx context.Context, orgID id.OrganizationID, partyID id.PartyID) error

	DeletePersonAndParty(ctx context.Context, personID id.PersonID, partyID id.PartyID) error
	DeleteOrganizationAndParty(ctx context.Context, orgID id.OrganizationID, partyID id.PartyID) error
}

// TxRunner runs a function inside a database transaction. The transaction
// travels in the context so tx-aware stores join it.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// passthroughTx backs memory-store setups where there is no real
// transaction to open.
type passthroughTx struct{}

func (passthroughTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
