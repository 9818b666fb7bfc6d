package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CheckpointPostgres stores backfill checkpoints in PostgreSQL. This is the
// default checkpoint backend; the redis variant serves deployments that
// prefer keeping transient job state out of the primary database.
type CheckpointPostgres struct {
	db *sql.DB
}

// NewCheckpointPostgres constructs a PostgreSQL-backed checkpoint store.
func NewCheckpointPostgres(db *sql.DB) *CheckpointPostgres {
	return &CheckpointPostgres{db: db}
}

// Load returns the checkpointed PK for a window key. The second return is
// false when no checkpoint exists.
func (s *CheckpointPostgres) Load(ctx context.Context, key string) (int64, bool, error) {
	query := `SELECT last_pk FROM migration_checkpoints WHERE checkpoint_key = $1`
	var lastPK int64
	err := s.db.QueryRowContext(ctx, query, key).Scan(&lastPK)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load checkpoint: %w", err)
	}
	return lastPK, true, nil
}

// Save upserts the checkpoint for a window key.
func (s *CheckpointPostgres) Save(ctx context.Context, key string, lastPK int64) error {
	query := `
		INSERT INTO migration_checkpoints (checkpoint_key, last_pk, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (checkpoint_key) DO UPDATE SET last_pk = EXCLUDED.last_pk, updated_at = NOW()
	`
	if _, err := s.db.ExecContext(ctx, query, key, lastPK); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Clear removes the checkpoint once a window completes.
func (s *CheckpointPostgres) Clear(ctx context.Context, key string) error {
	query := `DELETE FROM migration_checkpoints WHERE checkpoint_key = $1`
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}
