package driven

import "context"

// ThreadStore keeps the user -> thread mapping
type ThreadStore interface {
	// Get returns the thread for a user; ok is false when none is recorded
	Get(ctx context.Context, userID string) (threadID string, ok bool, err error)

	// PutIfAbsent records threadID for userID unless a thread is already recorded.
	// It returns the thread that is recorded after the call.
	PutIfAbsent(ctx context.Context, userID, threadID string) (string, error)
}
