package driving

import (
	"context"

	"github.com/custodia-labs/labinsights/internal/core/domain"
)

// ReportService handles report upload grants and analysis
type ReportService interface {
	// UploadURL issues a browser upload grant for an accepted content type
	UploadURL(ctx context.Context, req domain.UploadURLRequest) (*domain.UploadURLResponse, error)

	// Analyze extracts and interprets an uploaded report for the user
	Analyze(ctx context.Context, userID string, req domain.AnalyzeRequest) (*domain.AnalyzeResponse, error)
}
