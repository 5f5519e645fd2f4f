package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/custodia-labs/labinsights/internal/core/domain"
	"github.com/custodia-labs/labinsights/internal/core/ports/driven"
)

// ExtractionService turns a readable document URL into normalized text, lines and tables
type ExtractionService struct {
	extractor driven.DocumentExtractor
	logger    zerolog.Logger
}

// NewExtractionService creates an ExtractionService
func NewExtractionService(extractor driven.DocumentExtractor, logger *zerolog.Logger) *ExtractionService {
	return &ExtractionService{
		extractor: extractor,
		logger:    loggerOrNop(logger).With().Str("component", "extraction").Logger(),
	}
}

// Extract runs read-mode text extraction on the document at readURL. The URL must be
// absolute; it usually carries a read grant.
func (s *ExtractionService) Extract(ctx context.Context, readURL string) (*domain.ExtractedDocument, error) {
	u, err := url.Parse(readURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: extraction needs an absolute url", domain.ErrInvalidURL)
	}
	if s.extractor == nil {
		return nil, fmt.Errorf("%w: no document extractor", domain.ErrConfiguration)
	}

	start := time.Now()
	doc, err := s.extractor.AnalyzeRead(ctx, readURL)
	if err != nil {
		if errors.Is(err, domain.ErrExtraction) || errors.Is(err, domain.ErrConfiguration) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: extractor returned no result", domain.ErrExtraction)
	}
	doc.Normalize()

	// Never log the full URL: the query is a bearer credential.
	s.logger.Info().
		Str("extractor", s.extractor.Name()).
		Str("host", u.Host).
		Int("pages", len(doc.Pages)).
		Int("tables", len(doc.Tables)).
		Int("key_value_pairs", len(doc.KeyValuePairs)).
		Dur("duration", time.Since(start)).
		Msg("document extracted")

	return doc, nil
}
