package driven

import (
	"context"

	"github.com/custodia-labs/labinsights/internal/core/domain"
)

// RunOptions are scoped to a single run
type RunOptions struct {
	// AdditionalInstructions are layered over the agent's standing instructions
	// for this run only
	AdditionalInstructions string
}

// AgentClient is the conversational-agent runtime: threads, messages and runs
type AgentClient interface {
	// CreateThread creates an empty thread and returns its ID
	CreateThread(ctx context.Context) (string, error)

	// CreateMessage appends a message to a thread
	CreateMessage(ctx context.Context, threadID string, role domain.MessageRole, content string) error

	// CreateAndProcessRun starts a run and blocks until it reaches a terminal status.
	// A failed run is returned with a nil error; err is reserved for transport failures.
	CreateAndProcessRun(ctx context.Context, threadID string, opts RunOptions) (*domain.Run, error)

	// ListMessages returns every message of a thread in the given order.
	// Text is the message's last text segment, empty when it has none.
	ListMessages(ctx context.Context, threadID string, order domain.SortOrder) ([]domain.ThreadMessage, error)
}
