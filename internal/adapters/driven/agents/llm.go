package agents

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/custodia-labs/labinsights/internal/core/domain"
	"github.com/custodia-labs/labinsights/internal/core/ports/driven"
)

// Ensure LLMClient implements AgentClient
var _ driven.AgentClient = (*LLMClient)(nil)

// DefaultInstructions are the standing instructions of the local agent
const DefaultInstructions = "You are a careful assistant that explains laboratory reports in plain language. " +
	"Report only values present in the provided text, use cautious non-diagnostic wording " +
	"and recommend consulting a clinician for medical decisions."

// LLMConfig holds settings for an OpenAI-compatible chat completion endpoint
type LLMConfig struct {
	BaseURL      string
	APIKey       string
	Model        string
	Instructions string
	Logger       *zerolog.Logger
}

// LLMClient emulates agent threads over a chat-completion model.
// Threads live in process memory and are lost on restart.
type LLMClient struct {
	model        llms.Model
	instructions string
	logger       zerolog.Logger

	mu      sync.Mutex
	threads map[string][]domain.ThreadMessage
	seq     atomic.Int64
}

// NewLLMClient creates an OpenAI-compatible client via langchaingo
func NewLLMClient(cfg LLMConfig) (*LLMClient, error) {
	if cfg.APIKey == "" || cfg.Model == "" {
		return nil, fmt.Errorf("%w: llm api key and model are required", domain.ErrConfiguration)
	}

	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(cfg.APIKey, "Bearer ")),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	return NewLLMClientWithModel(llm, cfg.Instructions, cfg.Logger), nil
}

// NewLLMClientWithModel wraps an existing langchaingo model
func NewLLMClientWithModel(model llms.Model, instructions string, logger *zerolog.Logger) *LLMClient {
	if instructions == "" {
		instructions = DefaultInstructions
	}
	c := &LLMClient{
		model:        model,
		instructions: instructions,
		logger:       zerolog.Nop(),
		threads:      make(map[string][]domain.ThreadMessage),
	}
	if logger != nil {
		c.logger = logger.With().Str("component", "llm_agent").Logger()
	}
	return c
}

// CreateThread creates an empty in-memory thread
func (c *LLMClient) CreateThread(ctx context.Context) (string, error) {
	id := "thread_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	c.mu.Lock()
	c.threads[id] = []domain.ThreadMessage{}
	c.mu.Unlock()
	return id, nil
}

// CreateMessage appends a message to a thread
func (c *LLMClient) CreateMessage(ctx context.Context, threadID string, role domain.MessageRole, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs, ok := c.threads[threadID]
	if !ok {
		return fmt.Errorf("%w: thread %s", domain.ErrNotFound, threadID)
	}
	c.threads[threadID] = append(msgs, c.newMessage(role, content))
	return nil
}

// CreateAndProcessRun sends the whole thread to the model and appends the reply.
// Model errors produce a failed run.
func (c *LLMClient) CreateAndProcessRun(ctx context.Context, threadID string, opts driven.RunOptions) (*domain.Run, error) {
	c.mu.Lock()
	history, ok := c.threads[threadID]
	history = append([]domain.ThreadMessage(nil), history...)
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: thread %s", domain.ErrNotFound, threadID)
	}

	run := &domain.Run{
		ID:       fmt.Sprintf("run_%d", c.seq.Add(1)),
		ThreadID: threadID,
	}

	resp, err := c.model.GenerateContent(ctx, c.buildMessages(history, opts))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn().Err(err).Str("thread_id", threadID).Msg("model call failed")
		run.Status = domain.RunStatusFailed
		run.LastError = err.Error()
		return run, nil
	}
	if len(resp.Choices) == 0 {
		run.Status = domain.RunStatusFailed
		run.LastError = "model returned no choices"
		return run, nil
	}

	reply := resp.Choices[0].Content
	c.mu.Lock()
	c.threads[threadID] = append(c.threads[threadID], c.newMessage(domain.MessageRoleAssistant, reply))
	c.mu.Unlock()

	run.Status = domain.RunStatusCompleted
	return run, nil
}

// ListMessages returns a copy of the thread in the given order
func (c *LLMClient) ListMessages(ctx context.Context, threadID string, order domain.SortOrder) ([]domain.ThreadMessage, error) {
	c.mu.Lock()
	msgs, ok := c.threads[threadID]
	out := append([]domain.ThreadMessage{}, msgs...)
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: thread %s", domain.ErrNotFound, threadID)
	}

	if order == domain.SortDescending {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

func (c *LLMClient) newMessage(role domain.MessageRole, text string) domain.ThreadMessage {
	return domain.ThreadMessage{
		ID:   fmt.Sprintf("msg_%d", c.seq.Add(1)),
		Role: role,
		Text: text,
	}
}

func (c *LLMClient) buildMessages(history []domain.ThreadMessage, opts driven.RunOptions) []llms.MessageContent {
	system := c.instructions
	if opts.AdditionalInstructions != "" {
		system += "\n\n" + opts.AdditionalInstructions
	}

	messages := make([]llms.MessageContent, 0, len(history)+1)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, system))
	for _, m := range history {
		role := llms.ChatMessageTypeHuman
		if m.Role == domain.MessageRoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, m.Text))
	}
	return messages
}
