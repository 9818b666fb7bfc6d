package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	txcontext "studbook/pkg/platform/tx"
)

// PostgresStore implements Store using the transactional outbox pattern.
// Events land in audit_outbox and are published to Kafka by the relay
// worker; joining the caller's transaction means drift findings recorded
// during a dual-write are only published if that write committed.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres creates a PostgreSQL outbox-backed audit store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append writes an event to the outbox table.
func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	query := `
		INSERT INTO audit_outbox (id, kind, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query, event.ID, event.Kind, payload, time.Now())
	if err != nil {
		return fmt.Errorf("insert audit outbox entry: %w", err)
	}
	return nil
}

// outboxEntry is one unpublished row claimed by the relay worker.
type outboxEntry struct {
	ID      uuid.UUID
	Kind    string
	Payload []byte
}

// NextBatch fetches up to limit unpublished entries, oldest first. The
// relay runs as a single worker; Kafka consumers must tolerate the rare
// duplicate from a crash between publish and MarkPublished.
func (s *PostgresStore) NextBatch(ctx context.Context, limit int) ([]outboxEntry, error) {
	query := `
		SELECT id, kind, payload
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox batch: %w", err)
	}
	defer rows.Close()
	var out []outboxEntry
	for rows.Next() {
		var e outboxEntry
		if err := rows.Scan(&e.ID, &e.Kind, &e.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch outbox batch: %w", err)
	}
	return out, nil
}

// MarkPublished stamps entries as relayed.
func (s *PostgresStore) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	strs := make([]string, 0, len(ids))
	for _, entryID := range ids {
		strs = append(strs, entryID.String())
	}
	query := `UPDATE audit_outbox SET published_at = NOW() WHERE id = ANY($1::uuid[])`
	if _, err := s.db.ExecContext(ctx, query, pq.Array(strs)); err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}
