package models

import (
	id "studbook/pkg/domain"
)

// LegacyRef is the dual-reference input shape old API callers still send:
// at most one of PersonID / OrganizationID set. It is accepted everywhere a
// canonical PartyID is accepted, translated at the boundary, and never
// stored once a table has cut over.
type LegacyRef struct {
	PersonID       id.PersonID       `json:"person_id,omitempty"`
	OrganizationID id.OrganizationID `json:"organization_id,omitempty"`
}

// IsEmpty reports whether neither reference is set.
func (r LegacyRef) IsEmpty() bool {
	return r.PersonID.IsNil() && r.OrganizationID.IsNil()
}

// PersonSummary is the abbreviated person shape embedded in projected
// responses.
type PersonSummary struct {
	ID        id.PersonID `json:"id"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Email     string      `json:"email"`
}

// OrganizationSummary is the abbreviated organization shape embedded in
// projected responses.
type OrganizationSummary struct {
	ID    id.OrganizationID `json:"id"`
	Name  string            `json:"name"`
	Email string            `json:"email"`
}

// LegacyShape is the backward-compatible dual-reference response shape.
// It is always derived at read time (see the projection service) and never
// stored. Exactly one pair is populated based on the Party's kind; all
// fields are nil for a null or orphaned Party.
type LegacyShape struct {
	PersonID            *id.PersonID         `json:"person_id"`
	OrganizationID      *id.OrganizationID   `json:"organization_id"`
	PersonSummary       *PersonSummary       `json:"person,omitempty"`
	OrganizationSummary *OrganizationSummary `json:"organization,omitempty"`
}

// FromBacking derives the legacy shape for a resolved backing record.
func FromBacking(b *Backing) LegacyShape {
	var shape LegacyShape
	if b == nil {
		return shape
	}
	switch b.Kind {
	case KindPerson:
		if b.Person != nil {
			personID := b.Person.ID
			shape.PersonID = &personID
			shape.PersonSummary = &PersonSummary{
				ID:        b.Person.ID,
				FirstName: b.Person.FirstName,
				LastName:  b.Person.LastName,
				Email:     b.Person.Email,
			}
		}
	case KindOrganization:
		if b.Organization != nil {
			orgID := b.Organization.ID
			shape.OrganizationID = &orgID
			shape.OrganizationSummary = &OrganizationSummary{
				ID:    b.Organization.ID,
				Name:  b.Organization.Name,
				Email: b.Organization.Email,
			}
		}
	}
	return shape
}

// ToRef converts the projected shape back into the legacy input reference.
// Used by the dual-write sanity check to assert the round trip.
func (s LegacyShape) ToRef() LegacyRef {
	var ref LegacyRef
	if s.PersonID != nil {
		ref.PersonID = *s.PersonID
	}
	if s.OrganizationID != nil {
		ref.OrganizationID = *s.OrganizationID
	}
	return ref
}
