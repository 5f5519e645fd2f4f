package mocks

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/labinsights/internal/core/domain"
	"github.com/custodia-labs/labinsights/internal/core/ports/driven"
)

// Ensure MockAgentClient implements AgentClient
var _ driven.AgentClient = (*MockAgentClient)(nil)

// MockAgentClient is an in-memory agent runtime. A completed run appends
// Reply as an assistant message unless Reply is empty.
type MockAgentClient struct {
	mu      sync.Mutex
	threads map[string][]domain.ThreadMessage
	runs    []driven.RunOptions
	nextMsg int
	created atomic.Int32

	// CreateThreadDelay widens the window for concurrent creation tests
	CreateThreadDelay time.Duration

	CreateThreadErr  error
	CreateMessageErr error
	RunErr           error
	ListErr          error

	// RunStatus defaults to completed
	RunStatus    domain.RunStatus
	RunLastError string
	Reply        string
}

// NewMockAgentClient creates a new MockAgentClient that replies with reply
func NewMockAgentClient(reply string) *MockAgentClient {
	return &MockAgentClient{
		threads: make(map[string][]domain.ThreadMessage),
		Reply:   reply,
	}
}

func (m *MockAgentClient) CreateThread(ctx context.Context) (string, error) {
	if m.CreateThreadDelay > 0 {
		select {
		case <-time.After(m.CreateThreadDelay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if m.CreateThreadErr != nil {
		return "", m.CreateThreadErr
	}

	n := m.created.Add(1)
	id := fmt.Sprintf("thread-%d", n)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.threads[id] = []domain.ThreadMessage{}
	return id, nil
}

func (m *MockAgentClient) CreateMessage(ctx context.Context, threadID string, role domain.MessageRole, content string) error {
	if m.CreateMessageErr != nil {
		return m.CreateMessageErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(threadID, role, content)
}

func (m *MockAgentClient) CreateAndProcessRun(ctx context.Context, threadID string, opts driven.RunOptions) (*domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs = append(m.runs, opts)
	if m.RunErr != nil {
		return nil, m.RunErr
	}

	status := m.RunStatus
	if status == "" {
		status = domain.RunStatusCompleted
	}
	run := &domain.Run{
		ID:        fmt.Sprintf("run-%d", len(m.runs)),
		ThreadID:  threadID,
		Status:    status,
		LastError: m.RunLastError,
	}
	if status == domain.RunStatusCompleted && m.Reply != "" {
		if err := m.appendLocked(threadID, domain.MessageRoleAssistant, m.Reply); err != nil {
			return nil, err
		}
	}
	return run, nil
}

func (m *MockAgentClient) ListMessages(ctx context.Context, threadID string, order domain.SortOrder) ([]domain.ThreadMessage, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	msgs, ok := m.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("thread %s: %w", threadID, domain.ErrNotFound)
	}

	out := make([]domain.ThreadMessage, len(msgs))
	if order == domain.SortDescending {
		for i, msg := range msgs {
			out[len(msgs)-1-i] = msg
		}
		return out, nil
	}
	copy(out, msgs)
	return out, nil
}

// Seed replaces a thread's history
func (m *MockAgentClient) Seed(threadID string, msgs ...domain.ThreadMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threads[threadID] = append([]domain.ThreadMessage{}, msgs...)
}

// Messages returns a thread's history, oldest first
func (m *MockAgentClient) Messages(threadID string) []domain.ThreadMessage {
	msgs, _ := m.ListMessages(context.Background(), threadID, domain.SortAscending)
	return msgs
}

// ThreadsCreated returns how many threads CreateThread has made
func (m *MockAgentClient) ThreadsCreated() int {
	return int(m.created.Load())
}

// Runs returns the options of every run started so far
func (m *MockAgentClient) Runs() []driven.RunOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]driven.RunOptions, len(m.runs))
	copy(out, m.runs)
	return out
}

func (m *MockAgentClient) appendLocked(threadID string, role domain.MessageRole, content string) error {
	if _, ok := m.threads[threadID]; !ok {
		return fmt.Errorf("thread %s: %w", threadID, domain.ErrNotFound)
	}
	m.nextMsg++
	m.threads[threadID] = append(m.threads[threadID], domain.ThreadMessage{
		ID:   fmt.Sprintf("msg-%d", m.nextMsg),
		Role: role,
		Text: content,
	})
	return nil
}
