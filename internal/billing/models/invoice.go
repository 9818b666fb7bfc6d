// Package models defines invoices, the canonical consumer of the party
// identity model: every invoice buyer is a Party, with legacy buyer columns
// kept in step while the invoices table is dual-writing.
package models

import (
	"time"

	id "studbook/pkg/domain"
	dErrors "studbook/pkg/domain-errors"
)

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	StatusDraft  InvoiceStatus = "DRAFT"
	StatusIssued InvoiceStatus = "ISSUED"
	StatusPaid   InvoiceStatus = "PAID"
	StatusVoided InvoiceStatus = "VOIDED"
)

// Invoice bills a buying-group purchase to one buyer Party. The legacy buyer
// columns are derived from BuyerPartyID at write time while the table is in
// dual-write; they are never an independent source of truth.
type Invoice struct {
	ID           id.InvoiceID `json:"id"`
	PK           int64        `json:"-"`
	TenantID     id.TenantID  `json:"tenant_id"`
	GroupID      id.GroupID   `json:"group_id"`
	BuyerPartyID id.PartyID   `json:"buyer_party_id"`

	// Dual-write columns; populated only while the invoices table has not
	// cut over.
	BuyerPersonID       *id.PersonID       `json:"buyer_person_id,omitempty"`
	BuyerOrganizationID *id.OrganizationID `json:"buyer_organization_id,omitempty"`

	AmountCents int64         `json:"amount_cents"`
	Currency    string        `json:"currency"`
	Status      InvoiceStatus `json:"status"`
	IssuedAt    time.Time     `json:"issued_at"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Validate enforces construction invariants.
func (i *Invoice) Validate() error {
	if i.TenantID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "tenant id is required")
	}
	if i.GroupID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "group id is required")
	}
	if i.AmountCents <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "amount must be positive")
	}
	if i.Currency == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "currency is required")
	}
	return nil
}
