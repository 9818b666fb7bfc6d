package store

import (
	"context"
	"sync"

	"studbook/internal/billing/models"
	id "studbook/pkg/domain"
	"studbook/pkg/platform/sentinel"
)

// InMemory is the test twin of PostgresStore.
type InMemory struct {
	mu       sync.RWMutex
	nextPK   int64
	invoices map[id.InvoiceID]*models.Invoice

	// FailNextCreate makes the next Create return the given error, for
	// asserting that a failed write leaves nothing behind.
	FailNextCreate error
}

// NewInMemory constructs an empty invoice store.
func NewInMemory() *InMemory {
	return &InMemory{nextPK: 1, invoices: make(map[id.InvoiceID]*models.Invoice)}
}

func (s *InMemory) Create(_ context.Context, invoice *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.FailNextCreate; err != nil {
		s.FailNextCreate = nil
		return err
	}
	if _, exists := s.invoices[invoice.ID]; exists {
		return sentinel.ErrConflict
	}
	invoice.PK = s.nextPK
	s.nextPK++
	clone := *invoice
	s.invoices[invoice.ID] = &clone
	return nil
}

func (s *InMemory) Find(_ context.Context, invoiceID id.InvoiceID) (*models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	invoice, ok := s.invoices[invoiceID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *invoice
	return &clone, nil
}

// Count returns the number of stored invoices.
func (s *InMemory) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.invoices)
}
