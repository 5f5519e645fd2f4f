package services

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/custodia-labs/labinsights/internal/core/domain"
	"github.com/custodia-labs/labinsights/internal/core/ports/driven"
)

const (
	// UploadGrantTTL is how long a browser may use an upload grant
	UploadGrantTTL = 20 * time.Minute

	// DefaultReadGrantMinutes applies when a caller asks for a non-positive lifetime
	DefaultReadGrantMinutes = 10

	// ReadGrantSkew backdates read grants to absorb clock drift on the reader side
	ReadGrantSkew = time.Minute

	uploadPathLayout = "20060102/150405"
	fallbackBlobName = "file"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// CredentialIssuerConfig holds dependencies for CredentialIssuer
type CredentialIssuerConfig struct {
	Signer driven.BlobSigner
	Logger *zerolog.Logger

	// Now defaults to time.Now
	Now func() time.Time
}

// CredentialIssuer mints time-boxed grants on report blobs.
// Grants are never persisted.
type CredentialIssuer struct {
	signer driven.BlobSigner
	logger zerolog.Logger
	now    func() time.Time
}

// NewCredentialIssuer creates a CredentialIssuer
func NewCredentialIssuer(cfg CredentialIssuerConfig) *CredentialIssuer {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &CredentialIssuer{
		signer: cfg.Signer,
		logger: loggerOrNop(cfg.Logger).With().Str("component", "credentials").Logger(),
		now:    now,
	}
}

// IssueUploadGrant mints a 20 minute read/add/create/write grant on a fresh
// blob under uploads/YYYYMMDD/HHMMSS_<name>.
func (i *CredentialIssuer) IssueUploadGrant(ctx context.Context, filename, contentType string) (*domain.UploadGrant, error) {
	if i.signer == nil {
		return nil, fmt.Errorf("%w: no blob signer", domain.ErrConfiguration)
	}

	now := i.now().UTC()
	loc := domain.BlobLocation{
		Container: i.signer.DefaultContainer(),
		BlobPath:  "uploads/" + now.Format(uploadPathLayout) + "_" + SanitizeFilename(filename),
	}
	expiresAt := now.Add(UploadGrantTTL)

	query, err := i.signer.Sign(ctx, driven.BlobSignRequest{
		Container:   loc.Container,
		BlobPath:    loc.BlobPath,
		Permissions: domain.UploadPermissions,
		ExpiresAt:   expiresAt,
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("sign upload grant: %w", err)
	}

	blobURL := i.blobURL(loc)
	i.logger.Debug().
		Str("container", loc.Container).
		Str("blob", loc.BlobPath).
		Time("expires_at", expiresAt).
		Msg("upload grant issued")

	return &domain.UploadGrant{
		UploadURL: blobURL + "?" + query,
		BlobURL:   blobURL,
		Grant: domain.AccessGrant{
			URL:         blobURL + "?" + query,
			IssuedAt:    now,
			ExpiresAt:   expiresAt,
			Permissions: domain.UploadPermissions,
		},
	}, nil
}

// IssueReadGrant mints a read-only grant for an existing blob URL. Any query
// already on blobURL is discarded and the URL is rebuilt from the store's
// account URL. Non-positive minutes fall back to DefaultReadGrantMinutes.
func (i *CredentialIssuer) IssueReadGrant(ctx context.Context, blobURL string, minutes int) (*domain.AccessGrant, error) {
	if i.signer == nil {
		return nil, fmt.Errorf("%w: no blob signer", domain.ErrConfiguration)
	}

	loc, err := ParseBlobURL(blobURL)
	if err != nil {
		return nil, err
	}
	if minutes <= 0 {
		minutes = DefaultReadGrantMinutes
	}

	now := i.now().UTC()
	startsAt := now.Add(-ReadGrantSkew)
	expiresAt := now.Add(time.Duration(minutes) * time.Minute)

	query, err := i.signer.Sign(ctx, driven.BlobSignRequest{
		Container:   loc.Container,
		BlobPath:    loc.BlobPath,
		Permissions: domain.ReadPermissions,
		StartsAt:    startsAt,
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("sign read grant: %w", err)
	}

	return &domain.AccessGrant{
		URL:         i.blobURL(*loc) + "?" + query,
		IssuedAt:    now,
		StartsAt:    startsAt,
		ExpiresAt:   expiresAt,
		Permissions: domain.ReadPermissions,
	}, nil
}

func (i *CredentialIssuer) blobURL(loc domain.BlobLocation) string {
	return strings.TrimRight(i.signer.AccountURL(), "/") + "/" + loc.Container + "/" + loc.BlobPath
}

// ParseBlobURL splits a blob URL path into container and blob path.
// The query string is ignored.
func ParseBlobURL(raw string) (*domain.BlobLocation, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not absolute", domain.ErrInvalidURL, raw)
	}

	container, blobPath, ok := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	if !ok || container == "" || blobPath == "" {
		return nil, fmt.Errorf("%w: expected /{container}/{blob} in %q", domain.ErrInvalidURL, u.Path)
	}
	return &domain.BlobLocation{Container: container, BlobPath: blobPath}, nil
}

// SanitizeFilename keeps the base name of a client-supplied filename and
// replaces anything outside [A-Za-z0-9._-] with underscores.
func SanitizeFilename(name string) string {
	if idx := strings.LastIndexAny(name, `/\`); idx >= 0 {
		name = name[idx+1:]
	}
	name = unsafeNameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return fallbackBlobName
	}
	return name
}
