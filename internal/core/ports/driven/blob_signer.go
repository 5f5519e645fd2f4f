package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/labinsights/internal/core/domain"
)

// BlobSignRequest describes a delegation token to mint for one blob
type BlobSignRequest struct {
	Container   string
	BlobPath    string
	Permissions domain.Permissions
	StartsAt    time.Time // zero means no start constraint
	ExpiresAt   time.Time
	ContentType string // optional response content type override
}

// BlobSigner mints delegation tokens on the object store.
// Signing is local key material; no object is read or written.
type BlobSigner interface {
	// AccountURL returns the base URL blobs are addressed under
	// (scheme://host[/prefix]), without a trailing slash
	AccountURL() string

	// DefaultContainer returns the container uploads are written to
	DefaultContainer() string

	// Sign returns the token as an encoded URL query string (no leading '?')
	Sign(ctx context.Context, req BlobSignRequest) (string, error)
}
