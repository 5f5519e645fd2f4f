package minio

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/custodia-labs/labinsights/internal/core/domain"
	"github.com/custodia-labs/labinsights/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.BlobSigner = (*Signer)(nil)

// Presigned S3 URLs are valid for at most seven days
const maxPresignTTL = 7 * 24 * time.Hour

// Config holds S3-compatible object store settings
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool

	// Region avoids a bucket-location lookup when presigning
	Region string
}

// Signer mints presigned URLs on an S3-compatible store such as MinIO.
// Write grants presign PUT and read grants presign GET. S3 has no start
// time, so StartsAt is ignored.
type Signer struct {
	client *minio.Client
	bucket string
	scheme string
	host   string
	now    func() time.Time
}

// NewSigner creates a Signer. No network call is made.
func NewSigner(cfg Config) (*Signer, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: object store endpoint and keys are required", domain.ErrConfiguration)
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: object store bucket is required", domain.ErrConfiguration)
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create minio client: %v", domain.ErrConfiguration, err)
	}

	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}

	return &Signer{
		client: client,
		bucket: cfg.Bucket,
		scheme: scheme,
		host:   cfg.Endpoint,
		now:    time.Now,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *Signer) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// AccountURL returns the path-style base URL of the store
func (s *Signer) AccountURL() string {
	return fmt.Sprintf("%s://%s", s.scheme, s.host)
}

// DefaultContainer returns the upload bucket
func (s *Signer) DefaultContainer() string {
	return s.bucket
}

// Sign presigns PUT for write grants and GET for read-only grants
func (s *Signer) Sign(ctx context.Context, req driven.BlobSignRequest) (string, error) {
	ttl := req.ExpiresAt.Sub(s.now()).Round(time.Second)
	if ttl < time.Second {
		return "", fmt.Errorf("presign %s/%s: grant already expired", req.Container, req.BlobPath)
	}
	if ttl > maxPresignTTL {
		ttl = maxPresignTTL
	}

	var (
		u   *url.URL
		err error
	)
	if req.Permissions.AllowsWrite() {
		u, err = s.client.PresignedPutObject(ctx, req.Container, req.BlobPath, ttl)
	} else {
		params := url.Values{}
		if req.ContentType != "" {
			params.Set("response-content-type", req.ContentType)
		}
		u, err = s.client.PresignedGetObject(ctx, req.Container, req.BlobPath, ttl, params)
	}
	if err != nil {
		return "", fmt.Errorf("presign %s/%s: %w", req.Container, req.BlobPath, err)
	}

	if !strings.HasPrefix(u.Path, "/"+req.Container+"/") {
		return "", fmt.Errorf("presign %s/%s: store returned virtual-host URL %s", req.Container, req.BlobPath, u.Host)
	}
	return u.RawQuery, nil
}
