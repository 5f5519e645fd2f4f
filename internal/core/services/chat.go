package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/custodia-labs/labinsights/internal/core/domain"
	"github.com/custodia-labs/labinsights/internal/core/ports/driven"
	"github.com/custodia-labs/labinsights/internal/core/ports/driving"
)

// ChatInstructions are layered over the agent's standing instructions on chat runs
const ChatInstructions = "MODE: CHAT. Answer conversationally and briefly. " +
	"Do NOT use the analysis section headings. " +
	"Refer to the most recent analysis in this thread only if helpful. " +
	"Keep responses concise (a few sentences or short bullets)."

// Ensure chatService implements ChatService
var _ driving.ChatService = (*chatService)(nil)

type chatService struct {
	agent   driven.AgentClient
	threads *ThreadRegistry
	logger  zerolog.Logger
}

// NewChatService creates a new ChatService
func NewChatService(agent driven.AgentClient, threads *ThreadRegistry, logger *zerolog.Logger) driving.ChatService {
	return &chatService{
		agent:   agent,
		threads: threads,
		logger:  loggerOrNop(logger).With().Str("component", "chat").Logger(),
	}
}

// Chat posts a user turn on the user's thread and returns the agent's reply verbatim
func (s *chatService) Chat(ctx context.Context, userID, message string) (*domain.ChatReply, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: empty message", domain.ErrInvalidInput)
	}

	threadID, err := s.threads.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.agent.CreateMessage(ctx, threadID, domain.MessageRoleUser, message); err != nil {
		return nil, fmt.Errorf("post chat message: %w", err)
	}

	run, err := s.agent.CreateAndProcessRun(ctx, threadID, driven.RunOptions{AdditionalInstructions: ChatInstructions})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAgentRun, err)
	}
	if !run.Succeeded() {
		s.logger.Error().Str("thread_id", threadID).Str("status", string(run.Status)).Str("detail", run.FailureDetail()).Msg("chat run failed")
		return nil, fmt.Errorf("%w: %s", domain.ErrAgentRun, run.FailureDetail())
	}

	msgs, err := s.agent.ListMessages(ctx, threadID, domain.SortDescending)
	if err != nil {
		return nil, fmt.Errorf("list thread messages: %w", err)
	}
	reply, _ := latestAssistantText(msgs)

	return &domain.ChatReply{ThreadID: threadID, Reply: reply}, nil
}

// Messages returns the user's thread history oldest first. The seed message
// at index zero and messages without text are skipped. A user without a
// thread gets an empty history and no thread is created.
func (s *chatService) Messages(ctx context.Context, userID string) ([]domain.ThreadMessage, error) {
	threadID, ok, err := s.threads.Lookup(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []domain.ThreadMessage{}, nil
	}

	msgs, err := s.agent.ListMessages(ctx, threadID, domain.SortAscending)
	if err != nil {
		return nil, fmt.Errorf("list thread messages: %w", err)
	}

	out := make([]domain.ThreadMessage, 0, len(msgs))
	for i, msg := range msgs {
		if i == 0 {
			continue
		}
		text := strings.TrimSpace(msg.Text)
		if text == "" {
			continue
		}
		out = append(out, domain.ThreadMessage{ID: msg.ID, Role: msg.Role, Text: text})
	}
	return out, nil
}
