package driven

import (
	"context"

	"github.com/custodia-labs/labinsights/internal/core/domain"
)

// DocumentExtractor runs a "read" extraction against a dereferenceable URL.
// Implementations block until the remote job reaches a terminal state.
type DocumentExtractor interface {
	AnalyzeRead(ctx context.Context, url string) (*domain.ExtractedDocument, error)

	// Name identifies the backend in logs
	Name() string
}
