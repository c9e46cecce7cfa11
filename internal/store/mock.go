package store

import (
	"context"
	"fmt"
	"sync"

	"fjacquet/statement-ledger/internal/models"
)

// MockLedgerStore is an in-memory LedgerStore for testing.
type MockLedgerStore struct {
	mu      sync.Mutex
	ledgers map[string]*models.Ledger
	next    int

	// Error flags for testing error conditions
	SaveError error
	GetError  error
}

// NewMockLedgerStore returns an empty MockLedgerStore.
func NewMockLedgerStore() *MockLedgerStore {
	return &MockLedgerStore{ledgers: make(map[string]*models.Ledger)}
}

// Save keeps ledger under a sequential id.
func (m *MockLedgerStore) Save(_ context.Context, ledger *models.Ledger) (string, error) {
	if m.SaveError != nil {
		return "", m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	id := fmt.Sprintf("ledger-%d", m.next)
	m.ledgers[id] = ledger
	return id, nil
}

// Get returns the ledger saved under id.
func (m *MockLedgerStore) Get(_ context.Context, id string) (*models.Ledger, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ledger, ok := m.ledgers[id]
	if !ok {
		return nil, ErrLedgerNotFound
	}
	return ledger, nil
}

// Len returns the number of saved ledgers.
func (m *MockLedgerStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ledgers)
}
