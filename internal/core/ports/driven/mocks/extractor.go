package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/labinsights/internal/core/domain"
	"github.com/custodia-labs/labinsights/internal/core/ports/driven"
)

// Ensure MockDocumentExtractor implements DocumentExtractor
var _ driven.DocumentExtractor = (*MockDocumentExtractor)(nil)

// MockDocumentExtractor returns a canned document
type MockDocumentExtractor struct {
	mu   sync.Mutex
	urls []string

	Doc *domain.ExtractedDocument
	Err error
}

// NewMockDocumentExtractor creates a new MockDocumentExtractor returning doc
func NewMockDocumentExtractor(doc *domain.ExtractedDocument) *MockDocumentExtractor {
	return &MockDocumentExtractor{Doc: doc}
}

func (m *MockDocumentExtractor) AnalyzeRead(ctx context.Context, url string) (*domain.ExtractedDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urls = append(m.urls, url)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Doc, nil
}

func (m *MockDocumentExtractor) Name() string {
	return "mock"
}

// URLs returns every URL passed to AnalyzeRead
func (m *MockDocumentExtractor) URLs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.urls))
	copy(out, m.urls)
	return out
}
