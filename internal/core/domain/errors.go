package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrConfiguration indicates required credentials or endpoints are not configured
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidURL indicates a malformed or non-decomposable resource URL
	ErrInvalidURL = errors.New("invalid url")

	// ErrUnsupportedMedia indicates a MIME type outside the accepted set
	ErrUnsupportedMedia = errors.New("unsupported file type")

	// ErrExtraction indicates the document extraction service failed
	ErrExtraction = errors.New("extraction failed")

	// ErrAgentRun indicates an agent run reached a failed terminal state
	ErrAgentRun = errors.New("agent run failed")
)
