package models

import (
	"time"

	id "studbook/pkg/domain"
	dErrors "studbook/pkg/domain-errors"
)

// PartyKind is the closed set of concrete kinds a Party can represent.
type PartyKind string

const (
	KindPerson       PartyKind = "PERSON"
	KindOrganization PartyKind = "ORGANIZATION"
)

// Valid reports whether the kind is a member of the closed set.
func (k PartyKind) Valid() bool {
	return k == KindPerson || k == KindOrganization
}

// Party is the canonical polymorphic identity record. Every domain row that
// needs "a person or organization" points at a Party instead of carrying two
// mutually exclusive foreign keys.
//
// Invariants:
//   - Kind is immutable after creation (there is no setter and no store
//     update path for it)
//   - a Party of kind PERSON is backed by exactly one person record, kind
//     ORGANIZATION by exactly one organization record; the uniqueness
//     constraint lives on the backing side
//   - a Party may lack a backing record only inside the transaction that
//     creates both; afterwards a backing-less Party is an orphan and a
//     data-integrity defect
type Party struct {
	ID          id.PartyID  `json:"id"`
	TenantID    id.TenantID `json:"tenant_id"`
	Kind        PartyKind   `json:"kind"`
	DisplayName string      `json:"display_name"`
	Email       string      `json:"email"`
	Phone       string      `json:"phone,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// NewParty constructs a Party, enforcing construction invariants.
func NewParty(partyID id.PartyID, tenantID id.TenantID, kind PartyKind, displayName, email string, now time.Time) (*Party, error) {
	if partyID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "party id is required")
	}
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "tenant id is required")
	}
	if !kind.Valid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "party kind must be PERSON or ORGANIZATION")
	}
	if displayName == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "display name is required")
	}
	return &Party{
		ID:          partyID,
		TenantID:    tenantID,
		Kind:        kind,
		DisplayName: displayName,
		Email:       email,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Person is the concrete backing record for a Party of kind PERSON.
type Person struct {
	ID        id.PersonID `json:"id"`
	TenantID  id.TenantID `json:"tenant_id"`
	PartyID   id.PartyID  `json:"party_id"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Email     string      `json:"email"`
	Phone     string      `json:"phone,omitempty"`
	Address   string      `json:"address,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// DisplayName derives the name shown in summaries and on the Party record.
func (p *Person) DisplayName() string {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.LastName != "":
		return p.LastName
	default:
		return p.FirstName
	}
}

// Organization is the concrete backing record for a Party of kind ORGANIZATION.
type Organization struct {
	ID                 id.OrganizationID `json:"id"`
	TenantID           id.TenantID       `json:"tenant_id"`
	PartyID            id.PartyID        `json:"party_id"`
	Name               string            `json:"name"`
	RegistrationNumber string            `json:"registration_number,omitempty"`
	VATNumber          string            `json:"vat_number,omitempty"`
	Email              string            `json:"email"`
	Phone              string            `json:"phone,omitempty"`
	Address            string            `json:"address,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// Backing is the resolved concrete record behind a Party. Exactly one of
// Person or Organization is non-nil, matching Kind.
type Backing struct {
	Kind         PartyKind
	Person       *Person
	Organization *Organization
}
