// Package store persists invoices. The invoices table is one of the
// migrating referencing tables: its canonical buyer column and legacy buyer
// columns are both written while the table is in dual-write, and the legacy
// pair stops being written after cutover.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"studbook/internal/billing/models"
	id "studbook/pkg/domain"
	"studbook/pkg/platform/sentinel"
	txcontext "studbook/pkg/platform/tx"
)

// PostgresStore persists invoices in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed invoice store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbtx {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Create inserts an invoice. Legacy buyer columns are written as given; the
// service decides per migration stage whether they are populated.
func (s *PostgresStore) Create(ctx context.Context, invoice *models.Invoice) error {
	if invoice == nil {
		return fmt.Errorf("invoice is required")
	}
	query := `
		INSERT INTO invoices (id, tenant_id, group_id, buyer_party_id, buyer_person_id, buyer_organization_id,
		                      amount_cents, currency, status, issued_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING pk
	`
	err := s.execer(ctx).QueryRowContext(ctx, query,
		uuid.UUID(invoice.ID), uuid.UUID(invoice.TenantID), uuid.UUID(invoice.GroupID),
		nullableParty(invoice.BuyerPartyID), nullablePerson(invoice.BuyerPersonID), nullableOrganization(invoice.BuyerOrganizationID),
		invoice.AmountCents, invoice.Currency, string(invoice.Status), invoice.IssuedAt, invoice.CreatedAt,
	).Scan(&invoice.PK)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// Find returns an invoice by id.
func (s *PostgresStore) Find(ctx context.Context, invoiceID id.InvoiceID) (*models.Invoice, error) {
	query := `
		SELECT pk, id, tenant_id, group_id, buyer_party_id, buyer_person_id, buyer_organization_id,
		       amount_cents, currency, status, issued_at, created_at
		FROM invoices
		WHERE id = $1
	`
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(invoiceID))

	var (
		invoice  models.Invoice
		invID    uuid.UUID
		tenantID uuid.UUID
		groupID  uuid.UUID
		partyID  uuid.NullUUID
		personID uuid.NullUUID
		orgID    uuid.NullUUID
		status   string
	)
	err := row.Scan(&invoice.PK, &invID, &tenantID, &groupID, &partyID, &personID, &orgID,
		&invoice.AmountCents, &invoice.Currency, &status, &invoice.IssuedAt, &invoice.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan invoice: %w", err)
	}
	invoice.ID = id.InvoiceID(invID)
	invoice.TenantID = id.TenantID(tenantID)
	invoice.GroupID = id.GroupID(groupID)
	if partyID.Valid {
		invoice.BuyerPartyID = id.PartyID(partyID.UUID)
	}
	if personID.Valid {
		pid := id.PersonID(personID.UUID)
		invoice.BuyerPersonID = &pid
	}
	if orgID.Valid {
		oid := id.OrganizationID(orgID.UUID)
		invoice.BuyerOrganizationID = &oid
	}
	invoice.Status = models.InvoiceStatus(status)
	return &invoice, nil
}

func nullableParty(partyID id.PartyID) uuid.NullUUID {
	return uuid.NullUUID{UUID: uuid.UUID(partyID), Valid: !partyID.IsNil()}
}

func nullablePerson(personID *id.PersonID) uuid.NullUUID {
	if personID == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*personID), Valid: true}
}

func nullableOrganization(orgID *id.OrganizationID) uuid.NullUUID {
	if orgID == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*orgID), Valid: true}
}
