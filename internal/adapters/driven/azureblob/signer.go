package azureblob

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"

	"github.com/custodia-labs/labinsights/internal/core/domain"
	"github.com/custodia-labs/labinsights/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.BlobSigner = (*Signer)(nil)

// Config holds storage account settings
type Config struct {
	AccountName string
	AccountKey  string
	Container   string

	// Endpoint overrides https://{account}.blob.core.windows.net, e.g. for Azurite
	Endpoint string
}

// Signer mints blob-scoped SAS tokens with the account's shared key
type Signer struct {
	cred       *azblob.SharedKeyCredential
	accountURL string
	container  string
	protocol   sas.Protocol
}

// NewSigner creates a Signer. Missing account credentials are a configuration error.
func NewSigner(cfg Config) (*Signer, error) {
	if cfg.AccountName == "" || cfg.AccountKey == "" {
		return nil, fmt.Errorf("%w: storage account name and key are required", domain.ErrConfiguration)
	}
	if cfg.Container == "" {
		return nil, fmt.Errorf("%w: storage container is required", domain.ErrConfiguration)
	}

	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("%w: storage account key: %v", domain.ErrConfiguration, err)
	}

	accountURL := strings.TrimRight(cfg.Endpoint, "/")
	if accountURL == "" {
		accountURL = fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AccountName)
	}
	u, err := url.Parse(accountURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: storage endpoint %q", domain.ErrConfiguration, cfg.Endpoint)
	}

	protocol := sas.ProtocolHTTPS
	if u.Scheme == "http" {
		protocol = sas.ProtocolHTTPSandHTTP
	}

	return &Signer{
		cred:       cred,
		accountURL: accountURL,
		container:  cfg.Container,
		protocol:   protocol,
	}, nil
}

// AccountURL returns the blob service base URL
func (s *Signer) AccountURL() string {
	return s.accountURL
}

// DefaultContainer returns the upload container
func (s *Signer) DefaultContainer() string {
	return s.container
}

// Sign returns a blob SAS query string
func (s *Signer) Sign(ctx context.Context, req driven.BlobSignRequest) (string, error) {
	perms := sas.BlobPermissions{
		Read:   req.Permissions.Read,
		Add:    req.Permissions.Add,
		Create: req.Permissions.Create,
		Write:  req.Permissions.Write,
	}

	// A zero StartsAt stays zero and is omitted from the token.
	values := sas.BlobSignatureValues{
		Protocol:      s.protocol,
		StartTime:     req.StartsAt.UTC(),
		ExpiryTime:    req.ExpiresAt.UTC(),
		Permissions:   perms.String(),
		ContainerName: req.Container,
		BlobName:      req.BlobPath,
		ContentType:   req.ContentType,
	}

	qp, err := values.SignWithSharedKey(s.cred)
	if err != nil {
		return "", fmt.Errorf("sign blob %s/%s: %w", req.Container, req.BlobPath, err)
	}
	return qp.Encode(), nil
}
