package mocks

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/custodia-labs/labinsights/internal/core/ports/driven"
)

// Ensure MockBlobSigner implements BlobSigner
var _ driven.BlobSigner = (*MockBlobSigner)(nil)

// MockBlobSigner records sign requests and returns a readable fake token
type MockBlobSigner struct {
	mu        sync.Mutex
	account   string
	container string
	requests  []driven.BlobSignRequest

	// Err is returned from Sign when set
	Err error
}

// NewMockBlobSigner creates a new MockBlobSigner
func NewMockBlobSigner(accountURL, container string) *MockBlobSigner {
	return &MockBlobSigner{account: accountURL, container: container}
}

func (m *MockBlobSigner) AccountURL() string {
	return m.account
}

func (m *MockBlobSigner) DefaultContainer() string {
	return m.container
}

// Sign returns "sp=<perms>&se=<expiry>" plus "st=<start>" when a start time is set
func (m *MockBlobSigner) Sign(ctx context.Context, req driven.BlobSignRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.Err != nil {
		return "", m.Err
	}

	q := url.Values{}
	q.Set("sp", req.Permissions.String())
	q.Set("se", req.ExpiresAt.UTC().Format(time.RFC3339))
	if !req.StartsAt.IsZero() {
		q.Set("st", req.StartsAt.UTC().Format(time.RFC3339))
	}
	return q.Encode(), nil
}

// Requests returns a copy of every sign request seen so far
func (m *MockBlobSigner) Requests() []driven.BlobSignRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]driven.BlobSignRequest, len(m.requests))
	copy(out, m.requests)
	return out
}
