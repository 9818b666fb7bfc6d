package adapter

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"studbook/internal/migration/models"
	partymodels "studbook/internal/party/models"
	id "studbook/pkg/domain"
)

// Columns names the identity columns of one referencing table. Every
// migrating table carries a BIGINT PK, a nullable canonical party column,
// and the legacy person/organization pair.
type Columns struct {
	PK           string
	Party        string
	Person       string
	Organization string
}

// DefaultColumns is the column layout the schema uses everywhere. Individual
// tables only deviate from it when they predate the naming convention.
var DefaultColumns = Columns{
	PK:           "id",
	Party:        "party_id",
	Person:       "person_id",
	Organization: "organization_id",
}

// SQLAdapter is the generic adapter covering every referencing table that
// follows the shared column layout. Table and column names come from the
// static registry in the engine wiring, never from request input, so
// interpolating them into SQL is safe.
type SQLAdapter struct {
	db    *sql.DB
	table string
	cols  Columns

	listQuery     string
	maxQuery      string
	setQuery      string
	validateQuery string
}

// NewSQL constructs an adapter for one referencing table.
func NewSQL(db *sql.DB, table string, cols Columns) *SQLAdapter {
	a := &SQLAdapter{db: db, table: table, cols: cols}
	a.maxQuery = fmt.Sprintf(`SELECT COALESCE(MAX(%s), 0) FROM %s`, cols.PK, table)
	a.listQuery = fmt.Sprintf(`
		SELECT %s, %s, %s, %s
		FROM %s
		WHERE %s > $1 AND %s <= $2
		ORDER BY %s
		LIMIT $3
	`, cols.PK, cols.Party, cols.Person, cols.Organization, table, cols.PK, cols.PK, cols.PK)
	a.setQuery = fmt.Sprintf(`UPDATE %s SET %s = $2 WHERE %s = $1`, table, cols.Party, cols.PK)
	// Organization precedence is absolute: a set organization reference
	// derives from the organization row or not at all, it never falls
	// through to the person. COALESCE would do exactly that fallthrough
	// when the organization row is missing or unlinked.
	a.validateQuery = fmt.Sprintf(`
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE
		           CASE WHEN t.%s IS NOT NULL THEN o.party_id ELSE p.party_id END
		           IS DISTINCT FROM t.%s)
		FROM %s t
		LEFT JOIN organizations o ON t.%s = o.id
		LEFT JOIN persons p ON t.%s = p.id
	`, cols.Organization, cols.Party, table, cols.Organization, cols.Person)
	return a
}

func (a *SQLAdapter) Table() string {
	return a.table
}

func (a *SQLAdapter) MaxPK(ctx context.Context) (int64, error) {
	var maxPK int64
	if err := a.db.QueryRowContext(ctx, a.maxQuery).Scan(&maxPK); err != nil {
		return 0, fmt.Errorf("max pk of %s: %w", a.table, err)
	}
	return maxPK, nil
}

func (a *SQLAdapter) ListChunk(ctx context.Context, afterPK, upToPK int64, limit int) ([]models.Row, error) {
	rows, err := a.db.QueryContext(ctx, a.listQuery, afterPK, upToPK, limit)
	if err != nil {
		return nil, fmt.Errorf("list chunk of %s: %w", a.table, err)
	}
	defer rows.Close()

	var out []models.Row
	for rows.Next() {
		var (
			row      models.Row
			partyID  uuid.NullUUID
			personID uuid.NullUUID
			orgID    uuid.NullUUID
		)
		if err := rows.Scan(&row.PK, &partyID, &personID, &orgID); err != nil {
			return nil, fmt.Errorf("scan chunk row of %s: %w", a.table, err)
		}
		if partyID.Valid {
			row.PartyID = id.PartyID(partyID.UUID)
		}
		row.Legacy = partymodels.LegacyRef{}
		if personID.Valid {
			row.Legacy.PersonID = id.PersonID(personID.UUID)
		}
		if orgID.Valid {
			row.Legacy.OrganizationID = id.OrganizationID(orgID.UUID)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list chunk of %s: %w", a.table, err)
	}
	return out, nil
}

func (a *SQLAdapter) SetPartyID(ctx context.Context, pk int64, partyID id.PartyID) error {
	if _, err := a.db.ExecContext(ctx, a.setQuery, pk, uuid.UUID(partyID)); err != nil {
		return fmt.Errorf("set party id on %s: %w", a.table, err)
	}
	return nil
}

func (a *SQLAdapter) CountDisagreements(ctx context.Context) (int64, int64, error) {
	var checked, disagreements int64
	if err := a.db.QueryRowContext(ctx, a.validateQuery).Scan(&checked, &disagreements); err != nil {
		return 0, 0, fmt.Errorf("count disagreements of %s: %w", a.table, err)
	}
	return checked, disagreements, nil
}
