package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/custodia-labs/labinsights/internal/adapters/driven/azcred"
	"github.com/custodia-labs/labinsights/internal/core/domain"
	"github.com/custodia-labs/labinsights/internal/core/ports/driven"
)

// Ensure AzureClient implements AgentClient
var _ driven.AgentClient = (*AzureClient)(nil)

const (
	defaultAPIVersion   = "v1"
	defaultPollInterval = time.Second
	listPageSize        = 100
)

// AzureConfig holds settings for a hosted Azure AI Foundry agent
type AzureConfig struct {
	// Endpoint is the project endpoint,
	// e.g. https://{resource}.services.ai.azure.com/api/projects/{project}
	Endpoint     string
	AgentID      string
	Tokens       azcred.TokenSource
	APIVersion   string
	PollInterval time.Duration
	HTTPClient   *http.Client
	Logger       *zerolog.Logger
}

// AzureClient talks to the Azure AI Agents threads/messages/runs REST API
type AzureClient struct {
	endpoint     string
	agentID      string
	tokens       azcred.TokenSource
	apiVersion   string
	pollInterval time.Duration
	client       *http.Client
	logger       zerolog.Logger
}

// NewAzureClient creates an Azure AI Agents client
func NewAzureClient(cfg AzureConfig) (*AzureClient, error) {
	if cfg.Endpoint == "" || cfg.AgentID == "" {
		return nil, fmt.Errorf("%w: agent endpoint and agent id are required", domain.ErrConfiguration)
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("%w: agent client needs a token source", domain.ErrConfiguration)
	}

	c := &AzureClient{
		endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
		agentID:      cfg.AgentID,
		tokens:       cfg.Tokens,
		apiVersion:   cfg.APIVersion,
		pollInterval: cfg.PollInterval,
		client:       cfg.HTTPClient,
		logger:       zerolog.Nop(),
	}
	if c.apiVersion == "" {
		c.apiVersion = defaultAPIVersion
	}
	if c.pollInterval <= 0 {
		c.pollInterval = defaultPollInterval
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.Logger != nil {
		c.logger = cfg.Logger.With().Str("component", "azure_agents").Logger()
	}
	return c, nil
}

type threadResponse struct {
	ID string `json:"id"`
}

type messageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type runRequest struct {
	AssistantID            string `json:"assistant_id"`
	AdditionalInstructions string `json:"additional_instructions,omitempty"`
}

type runResponse struct {
	ID        string `json:"id"`
	ThreadID  string `json:"thread_id"`
	Status    string `json:"status"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
}

type messageResponse struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text *struct {
			Value string `json:"value"`
		} `json:"text,omitempty"`
	} `json:"content"`
}

type messageList struct {
	Data    []messageResponse `json:"data"`
	HasMore bool              `json:"has_more"`
	LastID  string            `json:"last_id"`
}

// CreateThread creates an empty thread
func (c *AzureClient) CreateThread(ctx context.Context) (string, error) {
	var thread threadResponse
	if err := c.do(ctx, http.MethodPost, "/threads", nil, struct{}{}, &thread); err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	if thread.ID == "" {
		return "", fmt.Errorf("%w: create thread returned no id", domain.ErrAgentRun)
	}
	return thread.ID, nil
}

// CreateMessage appends a message to a thread
func (c *AzureClient) CreateMessage(ctx context.Context, threadID string, role domain.MessageRole, content string) error {
	body := messageRequest{Role: string(role), Content: content}
	if err := c.do(ctx, http.MethodPost, "/threads/"+url.PathEscape(threadID)+"/messages", nil, body, nil); err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

// CreateAndProcessRun starts a run of the configured agent and polls it until
// it reaches a terminal status. The run is not cancelled remotely when ctx ends.
func (c *AzureClient) CreateAndProcessRun(ctx context.Context, threadID string, opts driven.RunOptions) (*domain.Run, error) {
	runsPath := "/threads/" + url.PathEscape(threadID) + "/runs"
	body := runRequest{AssistantID: c.agentID, AdditionalInstructions: opts.AdditionalInstructions}

	var run runResponse
	if err := c.do(ctx, http.MethodPost, runsPath, nil, body, &run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	started := time.Now()
	for !domain.RunStatus(run.Status).IsTerminal() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}

		if err := c.do(ctx, http.MethodGet, runsPath+"/"+url.PathEscape(run.ID), nil, nil, &run); err != nil {
			return nil, fmt.Errorf("get run: %w", err)
		}
	}

	c.logger.Debug().
		Str("run_id", run.ID).
		Str("status", run.Status).
		Dur("elapsed", time.Since(started)).
		Msg("agent run finished")

	return toRun(threadID, &run), nil
}

// ListMessages pages through every message of a thread
func (c *AzureClient) ListMessages(ctx context.Context, threadID string, order domain.SortOrder) ([]domain.ThreadMessage, error) {
	path := "/threads/" + url.PathEscape(threadID) + "/messages"
	messages := []domain.ThreadMessage{}

	after := ""
	for {
		query := url.Values{}
		query.Set("order", string(order))
		query.Set("limit", fmt.Sprint(listPageSize))
		if after != "" {
			query.Set("after", after)
		}

		var page messageList
		if err := c.do(ctx, http.MethodGet, path, query, nil, &page); err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		for i := range page.Data {
			messages = append(messages, toMessage(&page.Data[i]))
		}

		if !page.HasMore || page.LastID == "" {
			return messages, nil
		}
		after = page.LastID
	}
}

func (c *AzureClient) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("api-version", c.apiVersion)
	endpoint := c.endpoint + path + "?" + query.Encode()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", domain.ErrAgentRun, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, readError(resp))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s", domain.ErrAgentRun, readError(resp))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", domain.ErrAgentRun, err)
	}
	return nil
}

func readError(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var envelope struct {
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error != nil && envelope.Error.Message != "" {
		if envelope.Error.Code != "" {
			return envelope.Error.Code + ": " + envelope.Error.Message
		}
		return envelope.Error.Message
	}
	return fmt.Sprintf("agent service returned status %d", resp.StatusCode)
}

func toRun(threadID string, r *runResponse) *domain.Run {
	run := &domain.Run{
		ID:       r.ID,
		ThreadID: threadID,
		Status:   domain.RunStatus(r.Status),
	}
	if r.LastError != nil {
		run.LastError = r.LastError.Message
		if run.LastError == "" {
			run.LastError = r.LastError.Code
		}
	}
	return run
}

// toMessage keeps the last text segment of the message content
func toMessage(m *messageResponse) domain.ThreadMessage {
	msg := domain.ThreadMessage{ID: m.ID, Role: domain.MessageRole(m.Role)}
	for _, part := range m.Content {
		if part.Type == "text" && part.Text != nil {
			msg.Text = part.Text.Value
		}
	}
	return msg
}
