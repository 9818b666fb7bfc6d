// Package domain holds the typed identifiers shared across modules.
//
// Every identifier is a distinct type over uuid.UUID so the compiler rejects
// cross-entity assignment (a PersonID can never be passed where a PartyID is
// expected). Parse helpers enforce the invariant that identifiers are valid,
// non-nil UUIDs at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "studbook/pkg/domain-errors"
)

type (
	// TenantID scopes every record to a tenant.
	TenantID uuid.UUID

	// PartyID identifies the canonical polymorphic identity record.
	PartyID uuid.UUID

	// PersonID identifies a person backing record.
	PersonID uuid.UUID

	// OrganizationID identifies an organization backing record.
	OrganizationID uuid.UUID

	// GroupID identifies a breeding/offspring group.
	GroupID uuid.UUID

	// InvoiceID identifies an invoice.
	InvoiceID uuid.UUID
)

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is not a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return u, nil
}

// ParseTenantID validates and returns a TenantID.
func ParseTenantID(s string) (TenantID, error) {
	u, err := parseUUID(s)
	return TenantID(u), err
}

// ParsePartyID validates and returns a PartyID.
func ParsePartyID(s string) (PartyID, error) {
	u, err := parseUUID(s)
	return PartyID(u), err
}

// ParsePersonID validates and returns a PersonID.
func ParsePersonID(s string) (PersonID, error) {
	u, err := parseUUID(s)
	return PersonID(u), err
}

// ParseOrganizationID validates and returns an OrganizationID.
func ParseOrganizationID(s string) (OrganizationID, error) {
	u, err := parseUUID(s)
	return OrganizationID(u), err
}

// ParseGroupID validates and returns a GroupID.
func ParseGroupID(s string) (GroupID, error) {
	u, err := parseUUID(s)
	return GroupID(u), err
}

// ParseInvoiceID validates and returns an InvoiceID.
func ParseInvoiceID(s string) (InvoiceID, error) {
	u, err := parseUUID(s)
	return InvoiceID(u), err
}

func (id TenantID) String() string       { return uuid.UUID(id).String() }
func (id PartyID) String() string        { return uuid.UUID(id).String() }
func (id PersonID) String() string       { return uuid.UUID(id).String() }
func (id OrganizationID) String() string { return uuid.UUID(id).String() }
func (id GroupID) String() string        { return uuid.UUID(id).String() }
func (id InvoiceID) String() string      { return uuid.UUID(id).String() }

// Text marshaling keeps identifiers as canonical UUID strings in JSON
// payloads and map keys instead of raw byte arrays.

func (id TenantID) MarshalText() ([]byte, error)       { return []byte(id.String()), nil }
func (id PartyID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id PersonID) MarshalText() ([]byte, error)       { return []byte(id.String()), nil }
func (id OrganizationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id GroupID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id InvoiceID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }

func (id *TenantID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = TenantID(u)
	return err
}

func (id *PartyID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = PartyID(u)
	return err
}

func (id *PersonID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = PersonID(u)
	return err
}

func (id *OrganizationID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = OrganizationID(u)
	return err
}

func (id *GroupID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = GroupID(u)
	return err
}

func (id *InvoiceID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = InvoiceID(u)
	return err
}

func (id TenantID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id PartyID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id PersonID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id OrganizationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id GroupID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id InvoiceID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
