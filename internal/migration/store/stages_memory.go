package store

import (
	"context"
	"sync"

	"studbook/internal/migration/models"
	"studbook/pkg/platform/sentinel"
)

// StageInMemory is the test twin of StagePostgres.
type StageInMemory struct {
	mu          sync.RWMutex
	stages      map[string]models.Stage
	validations map[string]models.ValidationReport
}

// NewStageInMemory constructs an empty stage store.
func NewStageInMemory() *StageInMemory {
	return &StageInMemory{
		stages:      make(map[string]models.Stage),
		validations: make(map[string]models.ValidationReport),
	}
}

func (s *StageInMemory) GetStage(_ context.Context, table string) (models.Stage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if stage, ok := s.stages[table]; ok {
		return stage, nil
	}
	return models.StageLegacyOnly, nil
}

func (s *StageInMemory) SetStage(_ context.Context, table string, stage models.Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages[table] = stage
	return nil
}

func (s *StageInMemory) RecordValidation(_ context.Context, report models.ValidationReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validations[report.Table] = report
	return nil
}

func (s *StageInMemory) LatestValidation(_ context.Context, table string) (models.ValidationReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	report, ok := s.validations[table]
	if !ok {
		return models.ValidationReport{}, sentinel.ErrNotFound
	}
	return report, nil
}
