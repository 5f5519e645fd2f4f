package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/custodia-labs/labinsights/internal/core/domain"
	"github.com/custodia-labs/labinsights/internal/core/ports/driving"
)

// ReportServiceConfig holds dependencies for the report service
type ReportServiceConfig struct {
	Issuer     *CredentialIssuer
	Extraction *ExtractionService
	Analysis   *AnalysisService

	// ReadGrantMinutes is the lifetime of the grant handed to the extractor
	ReadGrantMinutes int

	// NewID defaults to uuid.NewString
	NewID  func() string
	Logger *zerolog.Logger
}

// Ensure reportService implements ReportService
var _ driving.ReportService = (*reportService)(nil)

type reportService struct {
	issuer      *CredentialIssuer
	extraction  *ExtractionService
	analysis    *AnalysisService
	readMinutes int
	newID       func() string
	logger      zerolog.Logger
}

// NewReportService creates a new ReportService
func NewReportService(cfg ReportServiceConfig) driving.ReportService {
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	minutes := cfg.ReadGrantMinutes
	if minutes <= 0 {
		minutes = DefaultReadGrantMinutes
	}
	return &reportService{
		issuer:      cfg.Issuer,
		extraction:  cfg.Extraction,
		analysis:    cfg.Analysis,
		readMinutes: minutes,
		newID:       newID,
		logger:      loggerOrNop(cfg.Logger).With().Str("component", "reports").Logger(),
	}
}

// UploadURL issues a direct-upload grant for an accepted file type
func (s *reportService) UploadURL(ctx context.Context, req domain.UploadURLRequest) (*domain.UploadURLResponse, error) {
	if strings.TrimSpace(req.Filename) == "" {
		return nil, fmt.Errorf("%w: filename is required", domain.ErrInvalidInput)
	}
	if !domain.IsAcceptedMIMEType(req.ContentType) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedMedia, req.ContentType)
	}

	grant, err := s.issuer.IssueUploadGrant(ctx, req.Filename, req.ContentType)
	if err != nil {
		return nil, err
	}

	return &domain.UploadURLResponse{
		SASURL:    grant.UploadURL,
		BlobURL:   grant.BlobURL,
		ExpiresAt: grant.Grant.ExpiresAt,
	}, nil
}

// Analyze extracts and analyzes an uploaded report on the user's thread
func (s *reportService) Analyze(ctx context.Context, userID string, req domain.AnalyzeRequest) (*domain.AnalyzeResponse, error) {
	if req.MimeType != "" && !domain.IsAcceptedMIMEType(req.MimeType) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedMedia, req.MimeType)
	}
	if strings.TrimSpace(req.BlobURL) == "" {
		return nil, fmt.Errorf("%w: blobUrl is required", domain.ErrInvalidURL)
	}

	start := time.Now()
	reportID := s.newID()
	logger := s.logger.With().Str("report_id", reportID).Str("user_id", userID).Logger()

	grant, err := s.issuer.IssueReadGrant(ctx, req.BlobURL, s.readMinutes)
	if err != nil {
		return nil, err
	}

	doc, err := s.extraction.Extract(ctx, grant.URL)
	if err != nil {
		logger.Error().Err(err).Msg("extraction failed")
		return nil, err
	}

	analysis, err := s.analysis.Analyze(ctx, userID, doc)
	if err != nil {
		logger.Error().Err(err).Msg("analysis failed")
		return nil, err
	}

	logger.Info().
		Str("file_name", req.FileName).
		Bool("degraded", analysis.Degraded).
		Dur("duration", time.Since(start)).
		Msg("report analyzed")

	return &domain.AnalyzeResponse{
		ReportID:  reportID,
		BlobURL:   req.BlobURL,
		Extracted: doc,
		Analysis:  analysis,
	}, nil
}
