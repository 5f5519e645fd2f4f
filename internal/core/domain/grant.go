package domain

import (
	"strings"
	"time"
)

// Permission is a single delegated-access right on a blob
type Permission string

const (
	PermissionRead   Permission = "read"
	PermissionAdd    Permission = "add"
	PermissionCreate Permission = "create"
	PermissionWrite  Permission = "write"
)

// Permissions is a set of blob permissions
type Permissions struct {
	Read   bool
	Add    bool
	Create bool
	Write  bool
}

// UploadPermissions are granted to browsers uploading a report
var UploadPermissions = Permissions{Read: true, Add: true, Create: true, Write: true}

// ReadPermissions are granted to the extraction service
var ReadPermissions = Permissions{Read: true}

// List returns the permissions in r/a/c/w order
func (p Permissions) List() []Permission {
	var out []Permission
	if p.Read {
		out = append(out, PermissionRead)
	}
	if p.Add {
		out = append(out, PermissionAdd)
	}
	if p.Create {
		out = append(out, PermissionCreate)
	}
	if p.Write {
		out = append(out, PermissionWrite)
	}
	return out
}

// AllowsWrite reports whether the set permits creating or modifying content
func (p Permissions) AllowsWrite() bool {
	return p.Write || p.Create || p.Add
}

// String renders the set in SAS order (e.g. "racw")
func (p Permissions) String() string {
	var b strings.Builder
	for _, perm := range p.List() {
		b.WriteByte(perm[0])
	}
	return b.String()
}

// AccessGrant is a time-boxed, permission-scoped URL for a blob.
// It is never stored; the caller consumes it within its validity window.
type AccessGrant struct {
	URL         string      `json:"url"`
	IssuedAt    time.Time   `json:"issuedAt"`
	StartsAt    time.Time   `json:"startsAt"` // zero when not constrained
	ExpiresAt   time.Time   `json:"expiresAt"`
	Permissions Permissions `json:"-"`
}

// UploadGrant pairs the browser upload URL with the canonical blob URL
type UploadGrant struct {
	UploadURL string
	BlobURL   string
	Grant     AccessGrant
}

// BlobLocation identifies a blob inside the object store
type BlobLocation struct {
	Container string
	BlobPath  string
}

// Accepted MIME types for lab reports
const (
	MIMETypePDF  = "application/pdf"
	MIMETypePNG  = "image/png"
	MIMETypeJPEG = "image/jpeg"
	MIMETypeTIFF = "image/tiff"
)

var acceptedMIMETypes = map[string]bool{
	MIMETypePDF:  true,
	MIMETypePNG:  true,
	MIMETypeJPEG: true,
	MIMETypeTIFF: true,
}

// IsAcceptedMIMEType checks a declared content type against the allow-list
func IsAcceptedMIMEType(contentType string) bool {
	return acceptedMIMETypes[contentType]
}
