package audit

import (
	"context"
	"sync"
)

// InMemoryStore collects events for unit tests and single-process dev runs.
type InMemoryStore struct {
	mu     sync.Mutex
	events []Event
}

// NewInMemory constructs an empty in-memory audit store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of everything recorded so far.
func (s *InMemoryStore) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// EventsOfKind filters recorded events by kind.
func (s *InMemoryStore) EventsOfKind(kind string) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, e := range s.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
