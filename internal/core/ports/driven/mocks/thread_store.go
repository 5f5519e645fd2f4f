package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/labinsights/internal/core/ports/driven"
)

// Ensure MockThreadStore implements ThreadStore
var _ driven.ThreadStore = (*MockThreadStore)(nil)

// MockThreadStore is an in-memory ThreadStore for testing
type MockThreadStore struct {
	mu      sync.Mutex
	threads map[string]string

	GetErr error
	PutErr error
}

// NewMockThreadStore creates a new MockThreadStore
func NewMockThreadStore() *MockThreadStore {
	return &MockThreadStore{threads: make(map[string]string)}
}

func (m *MockThreadStore) Get(ctx context.Context, userID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return "", false, m.GetErr
	}
	id, ok := m.threads[userID]
	return id, ok, nil
}

func (m *MockThreadStore) PutIfAbsent(ctx context.Context, userID, threadID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PutErr != nil {
		return "", m.PutErr
	}
	if existing, ok := m.threads[userID]; ok {
		return existing, nil
	}
	m.threads[userID] = threadID
	return threadID, nil
}

// Len returns the number of recorded threads
func (m *MockThreadStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.threads)
}
