package store

import (
	"context"
	"sync"
)

// CheckpointInMemory is the test twin of the checkpoint stores.
type CheckpointInMemory struct {
	mu     sync.RWMutex
	points map[string]int64
}

// NewCheckpointInMemory constructs an empty checkpoint store.
func NewCheckpointInMemory() *CheckpointInMemory {
	return &CheckpointInMemory{points: make(map[string]int64)}
}

func (s *CheckpointInMemory) Load(_ context.Context, key string) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lastPK, ok := s.points[key]
	return lastPK, ok, nil
}

func (s *CheckpointInMemory) Save(_ context.Context, key string, lastPK int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points[key] = lastPK
	return nil
}

func (s *CheckpointInMemory) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.points, key)
	return nil
}
