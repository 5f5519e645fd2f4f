package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"

	"github.com/custodia-labs/labinsights/internal/core/domain"
	"github.com/custodia-labs/labinsights/internal/core/ports/driven"
)

// Ensure Extractor implements DocumentExtractor
var _ driven.DocumentExtractor = (*Extractor)(nil)

const (
	defaultMaxBytes = 32 << 20
	pointsPerInch   = 72.0
)

var pdfMagic = []byte("%PDF-")

// Config holds local extractor settings
type Config struct {
	// MaxBytes bounds the downloaded document size
	MaxBytes   int64
	HTTPClient *http.Client
	Logger     *zerolog.Logger
}

// Extractor reads the embedded text layer of PDF reports without a remote
// OCR service. Scanned images and PDFs without a text layer yield no text.
// Tables and key-value pairs are not detected.
type Extractor struct {
	maxBytes int64
	client   *http.Client
	logger   zerolog.Logger
}

// NewExtractor creates a local PDF text extractor
func NewExtractor(cfg Config) *Extractor {
	e := &Extractor{
		maxBytes: cfg.MaxBytes,
		client:   cfg.HTTPClient,
		logger:   zerolog.Nop(),
	}
	if e.maxBytes <= 0 {
		e.maxBytes = defaultMaxBytes
	}
	if e.client == nil {
		e.client = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.Logger != nil {
		e.logger = cfg.Logger.With().Str("component", "pdftext").Logger()
	}
	return e
}

// Name identifies the extractor in logs
func (e *Extractor) Name() string {
	return "pdftext"
}

// AnalyzeRead downloads the document at url and extracts its text per page
func (e *Extractor) AnalyzeRead(ctx context.Context, url string) (*domain.ExtractedDocument, error) {
	data, err := e.download(ctx, url)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return nil, fmt.Errorf("%w: local extraction supports PDF documents only", domain.ErrExtraction)
	}
	return parse(data)
}

func (e *Extractor) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: download failed: %v", domain.ErrExtraction, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: download returned status %d", domain.ErrExtraction, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: download failed: %v", domain.ErrExtraction, err)
	}
	if int64(len(data)) > e.maxBytes {
		return nil, fmt.Errorf("%w: document exceeds %d bytes", domain.ErrExtraction, e.maxBytes)
	}
	return data, nil
}

func parse(data []byte) (doc *domain.ExtractedDocument, err error) {
	// The PDF reader panics on some malformed object graphs.
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("%w: malformed pdf: %v", domain.ErrExtraction, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}

	doc = &domain.ExtractedDocument{}
	var content []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", domain.ErrExtraction, i, err)
		}

		width, height := pageSize(page.V)
		p := domain.Page{
			PageNumber: i,
			Width:      width,
			Height:     height,
			Unit:       "inch",
			Lines:      []domain.Line{},
		}
		for _, line := range strings.Split(text, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				p.Lines = append(p.Lines, domain.Line{Text: line})
				content = append(content, line)
			}
		}
		doc.Pages = append(doc.Pages, p)
	}

	doc.Content = strings.Join(content, "\n")
	return doc.Normalize(), nil
}

// pageSize reads the MediaBox, inherited from parent page nodes when absent
func pageSize(v pdf.Value) (float64, float64) {
	for node := v; !node.IsNull(); node = node.Key("Parent") {
		box := node.Key("MediaBox")
		if box.Len() == 4 {
			width := box.Index(2).Float64() - box.Index(0).Float64()
			height := box.Index(3).Float64() - box.Index(1).Float64()
			return width / pointsPerInch, height / pointsPerInch
		}
	}
	return 0, 0
}
