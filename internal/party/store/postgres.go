// Package store persists Party records and their concrete backing entities.
//
// Stores are pure I/O: tenant checks, precedence rules, and invariant logic
// belong to the services in internal/party/service. Lookups by primary key
// are global (UUIDs are unique across tenants); the resolver compares the
// row's tenant against the request scope and fails closed on mismatch.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"studbook/internal/party/models"
	id "studbook/pkg/domain"
	"studbook/pkg/platform/sentinel"
	txcontext "studbook/pkg/platform/tx"
)

// pq error codes the store translates into sentinel errors.
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// PostgresStore persists parties, persons, and organizations in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed party store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// execer joins a surrounding transaction when one is present in the context.
func (s *PostgresStore) execer(ctx context.Context) dbtx {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) CreateParty(ctx context.Context, party *models.Party) error {
	if party == nil {
		return fmt.Errorf("party is required")
	}
	query := `
		INSERT INTO parties (id, tenant_id, kind, display_name, email, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(party.ID), uuid.UUID(party.TenantID), string(party.Kind),
		party.DisplayName, party.Email, party.Phone,
		party.CreatedAt, party.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert party: %w", translatePQ(err))
	}
	return nil
}

func (s *PostgresStore) FindParty(ctx context.Context, partyID id.PartyID) (*models.Party, error) {
	query := `
		SELECT id, tenant_id, kind, display_name, email, phone, created_at, updated_at
		FROM parties
		WHERE id = $1
	`
	party, err := scanParty(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(partyID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find party: %w", err)
	}
	return party, nil
}

// PartiesByID fetches a batch of parties in one query. Missing ids are
// simply absent from the result map.
func (s *PostgresStore) PartiesByID(ctx context.Context, partyIDs []id.PartyID) (map[id.PartyID]*models.Party, error) {
	out := make(map[id.PartyID]*models.Party, len(partyIDs))
	if len(partyIDs) == 0 {
		return out, nil
	}
	query := `
		SELECT id, tenant_id, kind, display_name, email, phone, created_at, updated_at
		FROM parties
		WHERE id = ANY($1)
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, pq.Array(partyIDStrings(partyIDs)))
	if err != nil {
		return nil, fmt.Errorf("batch find parties: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		party, err := scanParty(rows)
		if err != nil {
			return nil, fmt.Errorf("batch find parties: %w", err)
		}
		out[party.ID] = party
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("batch find parties: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CreatePerson(ctx context.Context, person *models.Person) error {
	if person == nil {
		return fmt.Errorf("person is required")
	}
	query := `
		INSERT INTO persons (id, tenant_id, party_id, first_name, last_name, email, phone, address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(person.ID), uuid.UUID(person.TenantID), nullableUUID(uuid.UUID(person.PartyID)),
		person.FirstName, person.LastName, person.Email, person.Phone, person.Address,
		person.CreatedAt, person.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert person: %w", translatePQ(err))
	}
	return nil
}

func (s *PostgresStore) CreateOrganization(ctx context.Context, org *models.Organization) error {
	if org == nil {
		return fmt.Errorf("organization is required")
	}
	query := `
		INSERT INTO organizations (id, tenant_id, party_id, name, registration_number, vat_number, email, phone, address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(org.ID), uuid.UUID(org.TenantID), nullableUUID(uuid.UUID(org.PartyID)),
		org.Name, org.RegistrationNumber, org.VATNumber, org.Email, org.Phone, org.Address,
		org.CreatedAt, org.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert organization: %w", translatePQ(err))
	}
	return nil
}

func (s *PostgresStore) FindPerson(ctx context.Context, personID id.PersonID) (*models.Person, error) {
	query := selectPerson + ` WHERE id = $1`
	person, err := scanPerson(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(personID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find person: %w", err)
	}
	return person, nil
}

func (s *PostgresStore) FindOrganization(ctx context.Context, orgID id.OrganizationID) (*models.Organization, error) {
	query := selectOrganization + ` WHERE id = $1`
	org, err := scanOrganization(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(orgID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find organization: %w", err)
	}
	return org, nil
}

func (s *PostgresStore) FindPersonByParty(ctx context.Context, partyID id.PartyID) (*models.Person, error) {
	query := selectPerson + ` WHERE party_id = $1`
	person, err := scanPerson(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(partyID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find person by party: %w", err)
	}
	return person, nil
}

func (s *PostgresStore) FindOrganizationByParty(ctx context.Context, partyID id.PartyID) (*models.Organization, error) {
	query := selectOrganization + ` WHERE party_id = $1`
	org, err := scanOrganization(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(partyID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find organization by party: %w", err)
	}
	return org, nil
}

// PersonsByParty fetches all person backing rows for the given parties in
// one query (the batched half of BackingOfMany).
func (s *PostgresStore) PersonsByParty(ctx context.Context, partyIDs []id.PartyID) ([]*models.Person, error) {
	if len(partyIDs) == 0 {
		return nil, nil
	}
	query := selectPerson + ` WHERE party_id = ANY($1)`
	rows, err := s.execer(ctx).QueryContext(ctx, query, pq.Array(partyIDStrings(partyIDs)))
	if err != nil {
		return nil, fmt.Errorf("batch find persons: %w", err)
	}
	defer rows.Close()
	var out []*models.Person
	for rows.Next() {
		person, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("batch find persons: %w", err)
		}
		out = append(out, person)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("batch find persons: %w", err)
	}
	return out, nil
}

// OrganizationsByParty fetches all organization backing rows for the given
// parties in one query.
func (s *PostgresStore) OrganizationsByParty(ctx context.Context, partyIDs []id.PartyID) ([]*models.Organization, error) {
	if len(partyIDs) == 0 {
		return nil, nil
	}
	query := selectOrganization + ` WHERE party_id = ANY($1)`
	rows, err := s.execer(ctx).QueryContext(ctx, query, pq.Array(partyIDStrings(partyIDs)))
	if err != nil {
		return nil, fmt.Errorf("batch find organizations: %w", err)
	}
	defer rows.Close()
	var out []*models.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("batch find organizations: %w", err)
		}
		out = append(out, org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("batch find organizations: %w", err)
	}
	return out, nil
}

// DeletePersonAndParty removes a person backing row and its Party in one
// statement pair. Callers run it inside a transaction. Referencing rows
// make the party delete fail with ErrReferenced (restrict-on-delete).
func (s *PostgresStore) DeletePersonAndParty(ctx context.Context, personID id.PersonID, partyID id.PartyID) error {
	exec := s.execer(ctx)
	res, err := exec.ExecContext(ctx, `DELETE FROM persons WHERE id = $1 AND party_id = $2`, uuid.UUID(personID), uuid.UUID(partyID))
	if err != nil {
		return fmt.Errorf("delete person: %w", translatePQ(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	if _, err := exec.ExecContext(ctx, `DELETE FROM parties WHERE id = $1`, uuid.UUID(partyID)); err != nil {
		return fmt.Errorf("delete party: %w", translatePQ(err))
	}
	return nil
}

// DeleteOrganizationAndParty mirrors DeletePersonAndParty for organizations.
func (s *PostgresStore) DeleteOrganizationAndParty(ctx context.Context, orgID id.OrganizationID, partyID id.PartyID) error {
	exec := s.execer(ctx)
	res, err := exec.ExecContext(ctx, `DELETE FROM organizations WHERE id = $1 AND party_id = $2`, uuid.UUID(orgID), uuid.UUID(partyID))
	if err != nil {
		return fmt.Errorf("delete organization: %w", translatePQ(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	if _, err := exec.ExecContext(ctx, `DELETE FROM parties WHERE id = $1`, uuid.UUID(partyID)); err != nil {
		return fmt.Errorf("delete party: %w", translatePQ(err))
	}
	return nil
}

const selectPerson = `
	SELECT id, tenant_id, party_id, first_name, last_name, email, phone, address, created_at, updated_at
	FROM persons`

const selectOrganization = `
	SELECT id, tenant_id, party_id, name, registration_number, vat_number, email, phone, address, created_at, updated_at
	FROM organizations`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParty(row rowScanner) (*models.Party, error) {
	var (
		party           models.Party
		partyID, tenant uuid.UUID
		kind            string
	)
	if err := row.Scan(&partyID, &tenant, &kind, &party.DisplayName, &party.Email, &party.Phone, &party.CreatedAt, &party.UpdatedAt); err != nil {
		return nil, err
	}
	party.ID = id.PartyID(partyID)
	party.TenantID = id.TenantID(tenant)
	party.Kind = models.PartyKind(kind)
	return &party, nil
}

func scanPerson(row rowScanner) (*models.Person, error) {
	var (
		person           models.Person
		personID, tenant uuid.UUID
		partyRef         uuid.NullUUID
	)
	if err := row.Scan(&personID, &tenant, &partyRef, &person.FirstName, &person.LastName, &person.Email, &person.Phone, &person.Address, &person.CreatedAt, &person.UpdatedAt); err != nil {
		return nil, err
	}
	person.ID = id.PersonID(personID)
	person.TenantID = id.TenantID(tenant)
	if partyRef.Valid {
		person.PartyID = id.PartyID(partyRef.UUID)
	}
	return &person, nil
}

func scanOrganization(row rowScanner) (*models.Organization, error) {
	var (
		org           models.Organization
		orgID, tenant uuid.UUID
		partyRef      uuid.NullUUID
	)
	if err := row.Scan(&orgID, &tenant, &partyRef, &org.Name, &org.RegistrationNumber, &org.VATNumber, &org.Email, &org.Phone, &org.Address, &org.CreatedAt, &org.UpdatedAt); err != nil {
		return nil, err
	}
	org.ID = id.OrganizationID(orgID)
	org.TenantID = id.TenantID(tenant)
	if partyRef.Valid {
		org.PartyID = id.PartyID(partyRef.UUID)
	}
	return &org, nil
}

// AttachParty links a previously party-less person backing row to a freshly
// minted Party. Backfill-only path; refuses to overwrite an existing link so
// a re-run can never re-point a row.
func (s *PostgresStore) AttachPartyToPerson(ctx context.Context, personID id.PersonID, partyID id.PartyID) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE persons SET party_id = $2, updated_at = NOW() WHERE id = $1 AND party_id IS NULL`,
		uuid.UUID(personID), uuid.UUID(partyID),
	)
	if err != nil {
		return fmt.Errorf("attach party to person: %w", translatePQ(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrInvalidState
	}
	return nil
}

// AttachPartyToOrganization mirrors AttachPartyToPerson for organizations.
func (s *PostgresStore) AttachPartyToOrganization(ctx context.Context, orgID id.OrganizationID, partyID id.PartyID) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE organizations SET party_id = $2, updated_at = NOW() WHERE id = $1 AND party_id IS NULL`,
		uuid.UUID(orgID), uuid.UUID(partyID),
	)
	if err != nil {
		return fmt.Errorf("attach party to organization: %w", translatePQ(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrInvalidState
	}
	return nil
}

func nullableUUID(u uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: u, Valid: u != uuid.Nil}
}

func partyIDStrings(ids []id.PartyID) []string {
	out := make([]string, 0, len(ids))
	for _, pid := range ids {
		out = append(out, pid.String())
	}
	return out
}

// translatePQ maps PostgreSQL constraint violations onto sentinel errors.
func translatePQ(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			return sentinel.ErrConflict
		case pqForeignKeyViolation:
			return sentinel.ErrReferenced
		}
	}
	return err
}
