package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/labinsights/internal/core/domain"
	"github.com/custodia-labs/labinsights/internal/core/ports/driven"
)

// ThreadRegistry maps each user to exactly one agent thread.
// Concurrent first requests for the same user create a single thread.
type ThreadRegistry struct {
	agent  driven.AgentClient
	store  driven.ThreadStore
	group  singleflight.Group
	logger zerolog.Logger
}

// NewThreadRegistry creates a ThreadRegistry
func NewThreadRegistry(agent driven.AgentClient, store driven.ThreadStore, logger *zerolog.Logger) *ThreadRegistry {
	return &ThreadRegistry{
		agent:  agent,
		store:  store,
		logger: loggerOrNop(logger).With().Str("component", "threads").Logger(),
	}
}

// Lookup returns the user's thread without creating one
func (r *ThreadRegistry) Lookup(ctx context.Context, userID string) (string, bool, error) {
	if userID == "" {
		return "", false, fmt.Errorf("%w: empty user id", domain.ErrInvalidInput)
	}
	id, ok, err := r.store.Get(ctx, userID)
	if err != nil {
		return "", false, fmt.Errorf("lookup thread: %w", err)
	}
	return id, ok, nil
}

// GetOrCreate returns the user's thread, creating it on first use
func (r *ThreadRegistry) GetOrCreate(ctx context.Context, userID string) (string, error) {
	if id, ok, err := r.Lookup(ctx, userID); err != nil {
		return "", err
	} else if ok {
		return id, nil
	}

	// The flight is detached from any single caller; each caller stops
	// waiting when its own ctx ends.
	flightCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(userID, func() (interface{}, error) {
		// A flight that finished between Lookup and DoChan has already recorded the thread.
		if id, ok, err := r.Lookup(flightCtx, userID); err != nil {
			return "", err
		} else if ok {
			return id, nil
		}

		created, err := r.agent.CreateThread(flightCtx)
		if err != nil {
			return "", fmt.Errorf("create thread: %w", err)
		}

		// Another replica may have won the race; its thread is authoritative.
		id, err := r.store.PutIfAbsent(flightCtx, userID, created)
		if err != nil {
			return "", fmt.Errorf("record thread: %w", err)
		}
		if id != created {
			r.logger.Warn().
				Str("user_id", userID).
				Str("thread_id", id).
				Str("orphaned_thread_id", created).
				Msg("thread already recorded by another writer")
		} else {
			r.logger.Info().Str("user_id", userID).Str("thread_id", id).Msg("thread created")
		}
		return id, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}
