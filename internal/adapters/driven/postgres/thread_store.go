package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/labinsights/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ThreadStore = (*ThreadStore)(nil)

// ThreadStore implements driven.ThreadStore using PostgreSQL
type ThreadStore struct {
	db *DB
}

// NewThreadStore creates a new ThreadStore
func NewThreadStore(db *DB) *ThreadStore {
	return &ThreadStore{db: db}
}

// Get returns the thread recorded for userID
func (s *ThreadStore) Get(ctx context.Context, userID string) (string, bool, error) {
	var threadID string
	err := s.db.QueryRowContext(ctx, `SELECT thread_id FROM user_threads WHERE user_id = $1`, userID).Scan(&threadID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get thread for %s: %w", userID, err)
	}
	return threadID, true, nil
}

// PutIfAbsent inserts the mapping unless one exists and returns the
// recorded thread. The upsert makes the first writer win across replicas.
func (s *ThreadStore) PutIfAbsent(ctx context.Context, userID, threadID string) (string, error) {
	query := `
		WITH inserted AS (
			INSERT INTO user_threads (user_id, thread_id)
			VALUES ($1, $2)
			ON CONFLICT (user_id) DO NOTHING
			RETURNING thread_id
		)
		SELECT thread_id FROM inserted
		UNION ALL
		SELECT thread_id FROM user_threads WHERE user_id = $1
		LIMIT 1
	`

	var recorded string
	err := s.db.QueryRowContext(ctx, query, userID, threadID).Scan(&recorded)
	if err == sql.ErrNoRows {
		// The conflicting row was committed after this statement's snapshot.
		id, ok, getErr := s.Get(ctx, userID)
		if getErr != nil {
			return "", getErr
		}
		if !ok {
			return "", fmt.Errorf("record thread for %s: row vanished after conflict", userID)
		}
		return id, nil
	}
	if err != nil {
		return "", fmt.Errorf("record thread for %s: %w", userID, err)
	}
	return recorded, nil
}

// Ping checks if the database is reachable
func (s *ThreadStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
