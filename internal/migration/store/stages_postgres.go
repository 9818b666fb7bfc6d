// Package store persists migration stages, validation results, and backfill
// checkpoints. Stage rows double as the validation ledger so the cutover
// gate and the stage flip live in the same table.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"studbook/internal/migration/models"
	"studbook/pkg/platform/sentinel"
	txcontext "studbook/pkg/platform/tx"
)

// StagePostgres stores per-table migration stages in PostgreSQL.
type StagePostgres struct {
	db *sql.DB
}

// NewStagePostgres constructs a PostgreSQL-backed stage store.
func NewStagePostgres(db *sql.DB) *StagePostgres {
	return &StagePostgres{db: db}
}

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *StagePostgres) execer(ctx context.Context) dbtx {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// GetStage returns a table's stage. Unregistered tables default to
// LegacyOnly: a table nobody has advanced has by definition not started
// migrating.
func (s *StagePostgres) GetStage(ctx context.Context, table string) (models.Stage, error) {
	query := `SELECT stage FROM migration_stages WHERE table_name = $1`
	var stage string
	err := s.execer(ctx).QueryRowContext(ctx, query, table).Scan(&stage)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StageLegacyOnly, nil
	}
	if err != nil {
		return "", fmt.Errorf("get migration stage: %w", err)
	}
	return models.Stage(stage), nil
}

// SetStage upserts a table's stage.
func (s *StagePostgres) SetStage(ctx context.Context, table string, stage models.Stage) error {
	query := `
		INSERT INTO migration_stages (table_name, stage, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (table_name) DO UPDATE SET stage = EXCLUDED.stage, updated_at = NOW()
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query, table, string(stage)); err != nil {
		return fmt.Errorf("set migration stage: %w", err)
	}
	return nil
}

// RecordValidation upserts the latest validation result for a table.
func (s *StagePostgres) RecordValidation(ctx context.Context, report models.ValidationReport) error {
	query := `
		INSERT INTO migration_stages (table_name, stage, validation_checked, validation_disagreements, validated_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (table_name) DO UPDATE SET
			validation_checked = EXCLUDED.validation_checked,
			validation_disagreements = EXCLUDED.validation_disagreements,
			validated_at = EXCLUDED.validated_at,
			updated_at = NOW()
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		report.Table, string(models.StageLegacyOnly), report.RowsChecked, report.Disagreements, report.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("record validation: %w", err)
	}
	return nil
}

// LatestValidation returns the most recent validation result for a table, or
// ErrNotFound when the table was never validated.
func (s *StagePostgres) LatestValidation(ctx context.Context, table string) (models.ValidationReport, error) {
	query := `
		SELECT validation_checked, validation_disagreements, validated_at
		FROM migration_stages
		WHERE table_name = $1 AND validated_at IS NOT NULL
	`
	var report models.ValidationReport
	report.Table = table
	err := s.execer(ctx).QueryRowContext(ctx, query, table).Scan(
		&report.RowsChecked, &report.Disagreements, &report.CheckedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ValidationReport{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.ValidationReport{}, fmt.Errorf("latest validation: %w", err)
	}
	return report, nil
}
