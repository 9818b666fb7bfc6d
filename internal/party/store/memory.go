package store

import (
	"context"
	"sync"

	"studbook/internal/party/models"
	id "studbook/pkg/domain"
	"studbook/pkg/platform/sentinel"
)

// InMemory is the in-memory twin of PostgresStore, used by unit tests and
// single-process development. Semantics mirror the SQL implementation,
// including the uniqueness constraint on the backing side.
type InMemory struct {
	mu       sync.RWMutex
	parties  map[id.PartyID]*models.Party
	persons  map[id.PersonID]*models.Person
	orgs     map[id.OrganizationID]*models.Organization
	byPartyP map[id.PartyID]id.PersonID
	byPartyO map[id.PartyID]id.OrganizationID

	// refCount simulates foreign keys from referencing tables for
	// restrict-on-delete tests.
	refCount map[id.PartyID]int
}

// NewInMemory constructs an empty in-memory party store.
func NewInMemory() *InMemory {
	return &InMemory{
		parties:  make(map[id.PartyID]*models.Party),
		persons:  make(map[id.PersonID]*models.Person),
		orgs:     make(map[id.OrganizationID]*models.Organization),
		byPartyP: make(map[id.PartyID]id.PersonID),
		byPartyO: make(map[id.PartyID]id.OrganizationID),
		refCount: make(map[id.PartyID]int),
	}
}

// AddReference registers a simulated referencing row pointing at the party.
func (s *InMemory) AddReference(partyID id.PartyID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refCount[partyID]++
}

// RemoveReference drops a simulated referencing row.
func (s *InMemory) RemoveReference(partyID id.PartyID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refCount[partyID] > 0 {
		s.refCount[partyID]--
	}
}

func (s *InMemory) CreateParty(_ context.Context, party *models.Party) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.parties[party.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *party
	s.parties[party.ID] = &cp
	return nil
}

func (s *InMemory) FindParty(_ context.Context, partyID id.PartyID) (*models.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	party, ok := s.parties[partyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *party
	return &cp, nil
}

func (s *InMemory) PartiesByID(_ context.Context, partyIDs []id.PartyID) (map[id.PartyID]*models.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[id.PartyID]*models.Party, len(partyIDs))
	for _, pid := range partyIDs {
		if party, ok := s.parties[pid]; ok {
			cp := *party
			out[pid] = &cp
		}
	}
	return out, nil
}

func (s *InMemory) CreatePerson(_ context.Context, person *models.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.persons[person.ID]; exists {
		return sentinel.ErrConflict
	}
	if !person.PartyID.IsNil() {
		if _, taken := s.byPartyP[person.PartyID]; taken {
			return sentinel.ErrConflict
		}
	}
	cp := *person
	s.persons[person.ID] = &cp
	if !person.PartyID.IsNil() {
		s.byPartyP[person.PartyID] = person.ID
	}
	return nil
}

func (s *InMemory) CreateOrganization(_ context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orgs[org.ID]; exists {
		return sentinel.ErrConflict
	}
	if !org.PartyID.IsNil() {
		if _, taken := s.byPartyO[org.PartyID]; taken {
			return sentinel.ErrConflict
		}
	}
	cp := *org
	s.orgs[org.ID] = &cp
	if !org.PartyID.IsNil() {
		s.byPartyO[org.PartyID] = org.ID
	}
	return nil
}

// AttachPartyToPerson links a party-less person row to a minted Party.
func (s *InMemory) AttachPartyToPerson(_ context.Context, personID id.PersonID, partyID id.PartyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	person, ok := s.persons[personID]
	if !ok || !person.PartyID.IsNil() {
		return sentinel.ErrInvalidState
	}
	person.PartyID = partyID
	s.byPartyP[partyID] = personID
	return nil
}

// AttachPartyToOrganization links a party-less organization row to a minted Party.
func (s *InMemory) AttachPartyToOrganization(_ context.Context, orgID id.OrganizationID, partyID id.PartyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.orgs[orgID]
	if !ok || !org.PartyID.IsNil() {
		return sentinel.ErrInvalidState
	}
	org.PartyID = partyID
	s.byPartyO[partyID] = orgID
	return nil
}

func (s *InMemory) FindPerson(_ context.Context, personID id.PersonID) (*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	person, ok := s.persons[personID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *person
	return &cp, nil
}

func (s *InMemory) FindOrganization(_ context.Context, orgID id.OrganizationID) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.orgs[orgID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *org
	return &cp, nil
}

func (s *InMemory) FindPersonByParty(_ context.Context, partyID id.PartyID) (*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	personID, ok := s.byPartyP[partyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.persons[personID]
	return &cp, nil
}

func (s *InMemory) FindOrganizationByParty(_ context.Context, partyID id.PartyID) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orgID, ok := s.byPartyO[partyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.orgs[orgID]
	return &cp, nil
}

func (s *InMemory) PersonsByParty(_ context.Context, partyIDs []id.PartyID) ([]*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Person
	for _, pid := range partyIDs {
		if personID, ok := s.byPartyP[pid]; ok {
			cp := *s.persons[personID]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *InMemory) OrganizationsByParty(_ context.Context, partyIDs []id.PartyID) ([]*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Organization
	for _, pid := range partyIDs {
		if orgID, ok := s.byPartyO[pid]; ok {
			cp := *s.orgs[orgID]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *InMemory) DeletePersonAndParty(_ context.Context, personID id.PersonID, partyID id.PartyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	person, ok := s.persons[personID]
	if !ok || person.PartyID != partyID {
		return sentinel.ErrNotFound
	}
	if s.refCount[partyID] > 0 {
		return sentinel.ErrReferenced
	}
	delete(s.persons, personID)
	delete(s.byPartyP, partyID)
	delete(s.parties, partyID)
	return nil
}

func (s *InMemory) DeleteOrganizationAndParty(_ context.Context, orgID id.OrganizationID, partyID id.PartyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.orgs[orgID]
	if !ok || org.PartyID != partyID {
		return sentinel.ErrNotFound
	}
	if s.refCount[partyID] > 0 {
		return sentinel.ErrReferenced
	}
	delete(s.orgs, orgID)
	delete(s.byPartyO, partyID)
	delete(s.parties, partyID)
	return nil
}

// DetachBacking removes the backing row but keeps the Party, producing an
// orphaned Party. Test helper for the data-integrity paths.
func (s *InMemory) DetachBacking(partyID id.PartyID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if personID, ok := s.byPartyP[partyID]; ok {
		delete(s.persons, personID)
		delete(s.byPartyP, partyID)
	}
	if orgID, ok := s.byPartyO[partyID]; ok {
		delete(s.orgs, orgID)
		delete(s.byPartyO, partyID)
	}
}
