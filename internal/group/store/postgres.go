// Package store persists buying-group buyer assignments. The FOR SHARE
// lookup is the locking substrate for the write-time buyer invariant: it
// pins the assignment row for the rest of the caller's transaction so a
// concurrent removal serializes against the dependent write.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"studbook/internal/group/models"
	id "studbook/pkg/domain"
	"studbook/pkg/platform/sentinel"
	txcontext "studbook/pkg/platform/tx"
)

const pqUniqueViolation = "23505"

// PostgresStore persists buyer assignments in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed assignment store.
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

// Assign records a Party as a current buyer of the group. A second current
// assignment for the same pair violates the partial unique index and maps to
// ErrConflict.
func (s *PostgresStore) Assign(ctx context.Context, assignment *models.BuyerAssignment) error {
	if assignment == nil {
		return fmt.Errorf("assignment is required")
	}
	query := `
		INSERT INTO group_buyer_assignments (tenant_id, group_id, party_id, assigned_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := s.execer(ctx).QueryRowContext(ctx, query,
		uuid.UUID(assignment.TenantID), uuid.UUID(assignment.GroupID),
		uuid.UUID(assignment.PartyID), assignment.AssignedAt,
	).Scan(&assignment.ID)
	if err != nil {
		return fmt.Errorf("insert buyer assignment: %w", translatePQ(err))
	}
	return nil
}

// Remove soft-deletes the current assignment for the pair. ErrNotFound when
// no current assignment exists.
func (s *PostgresStore) Remove(ctx context.Context, groupID id.GroupID, partyID id.PartyID, removedAt time.Time) error {
	query := `
		UPDATE group_buyer_assignments
		SET removed_at = $3
		WHERE group_id = $1 AND party_id = $2 AND removed_at IS NULL
	`
	result, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(groupID), uuid.UUID(partyID), removedAt)
	if err != nil {
		return fmt.Errorf("remove buyer assignment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove buyer assignment: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// IsCurrentBuyer reports whether the Party currently buys in the group
// within the tenant. When forShare is set the row is read with FOR SHARE
// inside the caller's transaction, holding the assignment against
// concurrent removal until the transaction ends. Callers asserting the
// invariant must pass forShare=true from inside a transaction.
func (s *PostgresStore) IsCurrentBuyer(ctx context.Context, tenantID id.TenantID, groupID id.GroupID, partyID id.PartyID, forShare bool) (bool, error) {
	query := `
		SELECT id FROM group_buyer_assignments
		WHERE tenant_id = $1 AND group_id = $2 AND party_id = $3 AND removed_at IS NULL
	`
	if forShare {
		query += " FOR SHARE"
	}
	var rowID int64
	err := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(tenantID), uuid.UUID(groupID), uuid.UUID(partyID)).Scan(&rowID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check current buyer: %w", err)
	}
	return true, nil
}

// ListCurrentBuyers returns the current assignments of a group in assignment
// order.
func (s *PostgresStore) ListCurrentBuyers(ctx context.Context, tenantID id.TenantID, groupID id.GroupID) ([]*models.BuyerAssignment, error) {
	query := `
		SELECT id, tenant_id, group_id, party_id, assigned_at, removed_at
		FROM group_buyer_assignments
		WHERE tenant_id = $1 AND group_id = $2 AND removed_at IS NULL
		ORDER BY assigned_at, id
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(tenantID), uuid.UUID(groupID))
	if err != nil {
		return nil, fmt.Errorf("list current buyers: %w", err)
	}
	defer rows.Close()

	var out []*models.BuyerAssignment
	for rows.Next() {
		assignment, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, assignment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list current buyers: %w", err)
	}
	return out, nil
}

func scanAssignment(rows *sql.Rows) (*models.BuyerAssignment, error) {
	var (
		assignment models.BuyerAssignment
		tenantID   uuid.UUID
		groupID    uuid.UUID
		partyID    uuid.UUID
		removedAt  sql.NullTime
	)
	if err := rows.Scan(&assignment.ID, &tenantID, &groupID, &partyID, &assignment.AssignedAt, &removedAt); err != nil {
		return nil, fmt.Errorf("scan buyer assignment: %w", err)
	}
	assignment.TenantID = id.TenantID(tenantID)
	assignment.GroupID = id.GroupID(groupID)
	assignment.PartyID = id.PartyID(partyID)
	if removedAt.Valid {
		t := removedAt.Time
		assignment.RemovedAt = &t
	}
	return &assignment, nil
}

func translatePQ(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
		return sentinel.ErrConflict
	}
	return err
}
