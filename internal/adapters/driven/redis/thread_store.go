package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/labinsights/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ThreadStore = (*ThreadStore)(nil)

const threadPrefix = "labinsights:thread:"

// ThreadStore keeps the user to thread mapping in Redis so every replica
// resolves a user to the same thread.
type ThreadStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewThreadStore creates a Redis-backed ThreadStore.
// A zero ttl keeps mappings forever.
func NewThreadStore(client *redis.Client, ttl time.Duration) *ThreadStore {
	return &ThreadStore{client: client, ttl: ttl}
}

// Connect parses a redis:// URL and verifies the server is reachable
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Get returns the thread recorded for userID
func (s *ThreadStore) Get(ctx context.Context, userID string) (string, bool, error) {
	id, err := s.client.Get(ctx, threadPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get thread for %s: %w", userID, err)
	}
	return id, true, nil
}

// PutIfAbsent records threadID with SETNX and returns whichever thread is
// recorded afterwards.
func (s *ThreadStore) PutIfAbsent(ctx context.Context, userID, threadID string) (string, error) {
	key := threadPrefix + userID
	set, err := s.client.SetNX(ctx, key, threadID, s.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("record thread for %s: %w", userID, err)
	}
	if set {
		return threadID, nil
	}

	existing, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("read recorded thread for %s: %w", userID, err)
	}
	return existing, nil
}

// Ping checks if the Redis backend is healthy.
func (s *ThreadStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
