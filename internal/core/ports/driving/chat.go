package driving

import (
	"context"

	"github.com/custodia-labs/labinsights/internal/core/domain"
)

// ChatService handles follow-up conversation on the user's thread
type ChatService interface {
	// Chat appends a user turn and returns the agent's reply
	Chat(ctx context.Context, userID, message string) (*domain.ChatReply, error)

	// Messages returns the user's thread history, oldest first.
	// Returns an empty slice when the user has no thread yet.
	Messages(ctx context.Context, userID string) ([]domain.ThreadMessage, error)
}
