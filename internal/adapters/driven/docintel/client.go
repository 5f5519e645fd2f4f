package docintel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/custodia-labs/labinsights/internal/adapters/driven/azcred"
	"github.com/custodia-labs/labinsights/internal/core/domain"
	"github.com/custodia-labs/labinsights/internal/core/ports/driven"
)

// Ensure Client implements DocumentExtractor
var _ driven.DocumentExtractor = (*Client)(nil)

const (
	defaultAPIVersion   = "2024-11-30"
	defaultModel        = "prebuilt-read"
	defaultPollInterval = time.Second
)

// Operation states reported by the service
const (
	statusNotStarted = "notStarted"
	statusRunning    = "running"
	statusSucceeded  = "succeeded"
	statusFailed     = "failed"
)

// Config holds Document Intelligence settings
type Config struct {
	// Endpoint is the resource endpoint, e.g. https://{name}.cognitiveservices.azure.com
	Endpoint string

	// Key is sent as Ocp-Apim-Subscription-Key. When empty, Tokens is used.
	Key    string
	Tokens azcred.TokenSource

	APIVersion   string
	Model        string
	PollInterval time.Duration
	HTTPClient   *http.Client
	Logger       *zerolog.Logger
}

// Client runs read-mode text extraction (prebuilt-read) through the
// Document Intelligence REST API.
// AnalyzeRead submits a URL, then polls the operation until it finishes.
type Client struct {
	endpoint     string
	key          string
	tokens       azcred.TokenSource
	apiVersion   string
	model        string
	pollInterval time.Duration
	client       *http.Client
	logger       zerolog.Logger
}

// NewClient creates a Document Intelligence client
func NewClient(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: document intelligence endpoint is required", domain.ErrConfiguration)
	}
	if cfg.Key == "" && cfg.Tokens == nil {
		return nil, fmt.Errorf("%w: document intelligence needs a key or a token source", domain.ErrConfiguration)
	}

	c := &Client{
		endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
		key:          cfg.Key,
		tokens:       cfg.Tokens,
		apiVersion:   cfg.APIVersion,
		model:        cfg.Model,
		pollInterval: cfg.PollInterval,
		client:       cfg.HTTPClient,
		logger:       zerolog.Nop(),
	}
	if c.apiVersion == "" {
		c.apiVersion = defaultAPIVersion
	}
	if c.model == "" {
		c.model = defaultModel
	}
	if c.pollInterval <= 0 {
		c.pollInterval = defaultPollInterval
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.Logger != nil {
		c.logger = cfg.Logger.With().Str("component", "docintel").Logger()
	}
	return c, nil
}

// Name identifies the extractor in logs
func (c *Client) Name() string {
	return "docintel:" + c.model
}

// analyzeRequest is the request body of the analyze call
type analyzeRequest struct {
	URLSource string `json:"urlSource"`
}

// apiError is the error envelope of the service
type apiError struct {
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	InnerError *apiError `json:"innererror,omitempty"`
}

func (e *apiError) String() string {
	msg := e.Code + ": " + e.Message
	if e.InnerError != nil && e.InnerError.Message != "" {
		msg += " (" + e.InnerError.Message + ")"
	}
	return msg
}

// analyzeOperation is the body returned by the Operation-Location URL
type analyzeOperation struct {
	Status        string         `json:"status"`
	Error         *apiError      `json:"error,omitempty"`
	AnalyzeResult *analyzeResult `json:"analyzeResult,omitempty"`
}

type analyzeResult struct {
	Content string `json:"content"`
	Pages   []struct {
		PageNumber int     `json:"pageNumber"`
		Width      float64 `json:"width"`
		Height     float64 `json:"height"`
		Unit       string  `json:"unit"`
		Lines      []struct {
			Content string `json:"content"`
		} `json:"lines"`
	} `json:"pages"`
	Tables []struct {
		RowCount    int `json:"rowCount"`
		ColumnCount int `json:"columnCount"`
		Cells       []struct {
			RowIndex    int    `json:"rowIndex"`
			ColumnIndex int    `json:"columnIndex"`
			Content     string `json:"content"`
		} `json:"cells"`
	} `json:"tables"`
	KeyValuePairs []struct {
		Key *struct {
			Content string `json:"content"`
		} `json:"key"`
		Value *struct {
			Content string `json:"content"`
		} `json:"value"`
		Confidence *float64 `json:"confidence"`
	} `json:"keyValuePairs"`
}

// AnalyzeRead extracts text, lines, tables and key-value pairs from the
// document at url. It blocks until the remote operation finishes.
func (c *Client) AnalyzeRead(ctx context.Context, url string) (*domain.ExtractedDocument, error) {
	opURL, err := c.begin(ctx, url)
	if err != nil {
		return nil, err
	}

	op, err := c.poll(ctx, opURL)
	if err != nil {
		return nil, err
	}
	return toDocument(op.AnalyzeResult), nil
}

func (c *Client) begin(ctx context.Context, documentURL string) (string, error) {
	body, err := json.Marshal(analyzeRequest{URLSource: documentURL})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/documentintelligence/documentModels/%s:analyze?api-version=%s", c.endpoint, c.model, c.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.authorize(ctx, req); err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: analyze request failed: %v", domain.ErrExtraction, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("%w: %s", domain.ErrExtraction, readError(resp))
	}

	opURL := resp.Header.Get("Operation-Location")
	if opURL == "" {
		return "", fmt.Errorf("%w: analyze response has no Operation-Location", domain.ErrExtraction)
	}
	return opURL, nil
}

func (c *Client) poll(ctx context.Context, opURL string) (*analyzeOperation, error) {
	for attempt := 1; ; attempt++ {
		op, retryAfter, err := c.getOperation(ctx, opURL)
		if err != nil {
			return nil, err
		}

		switch op.Status {
		case statusSucceeded:
			if op.AnalyzeResult == nil {
				return nil, fmt.Errorf("%w: operation succeeded without a result", domain.ErrExtraction)
			}
			c.logger.Debug().Int("polls", attempt).Msg("analyze operation succeeded")
			return op, nil
		case statusFailed:
			detail := "operation failed"
			if op.Error != nil {
				detail = op.Error.String()
			}
			return nil, fmt.Errorf("%w: %s", domain.ErrExtraction, detail)
		case statusNotStarted, statusRunning:
		default:
			return nil, fmt.Errorf("%w: unexpected operation status %q", domain.ErrExtraction, op.Status)
		}

		wait := c.pollInterval
		if retryAfter > 0 {
			wait = retryAfter
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) getOperation(ctx context.Context, opURL string) (*analyzeOperation, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	if err := c.authorize(ctx, req); err != nil {
		return nil, 0, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: poll request failed: %v", domain.ErrExtraction, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("%w: %s", domain.ErrExtraction, readError(resp))
	}

	var op analyzeOperation
	if err := json.NewDecoder(resp.Body).Decode(&op); err != nil {
		return nil, 0, fmt.Errorf("%w: failed to parse operation: %v", domain.ErrExtraction, err)
	}

	var retryAfter time.Duration
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		retryAfter = time.Duration(secs) * time.Second
	}
	return &op, retryAfter, nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	if c.key != "" {
		req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
		return nil
	}
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	return nil
}

func readError(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var envelope struct {
		Error *apiError `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error != nil {
		return envelope.Error.String()
	}
	return fmt.Sprintf("service returned status %d", resp.StatusCode)
}

func toDocument(r *analyzeResult) *domain.ExtractedDocument {
	doc := &domain.ExtractedDocument{Content: r.Content}

	for _, p := range r.Pages {
		page := domain.Page{
			PageNumber: p.PageNumber,
			Width:      p.Width,
			Height:     p.Height,
			Unit:       p.Unit,
			Lines:      make([]domain.Line, 0, len(p.Lines)),
		}
		for _, l := range p.Lines {
			page.Lines = append(page.Lines, domain.Line{Text: l.Content})
		}
		doc.Pages = append(doc.Pages, page)
	}

	for _, t := range r.Tables {
		table := domain.Table{
			RowCount:    t.RowCount,
			ColumnCount: t.ColumnCount,
			Cells:       make([]domain.TableCell, 0, len(t.Cells)),
		}
		for _, cell := range t.Cells {
			table.Cells = append(table.Cells, domain.TableCell{
				RowIndex:    cell.RowIndex,
				ColumnIndex: cell.ColumnIndex,
				Content:     cell.Content,
			})
		}
		doc.Tables = append(doc.Tables, table)
	}

	for _, kv := range r.KeyValuePairs {
		pair := domain.KeyValuePair{Confidence: kv.Confidence}
		if kv.Key != nil {
			key := kv.Key.Content
			pair.Key = &key
		}
		if kv.Value != nil {
			value := kv.Value.Content
			pair.Value = &value
		}
		doc.KeyValuePairs = append(doc.KeyValuePairs, pair)
	}

	return doc.Normalize()
}
