package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/labinsights/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ThreadStore = (*ThreadStore)(nil)

// ThreadStore keeps the user to thread mapping in process memory.
// Mappings are lost on restart and are not shared between replicas.
type ThreadStore struct {
	mu      sync.RWMutex
	threads map[string]string
}

// NewThreadStore creates an empty ThreadStore
func NewThreadStore() *ThreadStore {
	return &ThreadStore{threads: make(map[string]string)}
}

// Get returns the thread recorded for userID
func (s *ThreadStore) Get(ctx context.Context, userID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.threads[userID]
	return id, ok, nil
}

// PutIfAbsent records threadID unless userID already has a thread, and
// returns the thread that is recorded afterwards.
func (s *ThreadStore) PutIfAbsent(ctx context.Context, userID, threadID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.threads[userID]; ok {
		return existing, nil
	}
	s.threads[userID] = threadID
	return threadID, nil
}

// Ping always succeeds
func (s *ThreadStore) Ping(ctx context.Context) error {
	return nil
}
