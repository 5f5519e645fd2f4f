package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrNotFound", ErrNotFound, "not found"},
		{"ErrInvalidInput", ErrInvalidInput, "invalid input"},
		{"ErrUnauthorized", ErrUnauthorized, "unauthorized"},
		{"ErrTokenExpired", ErrTokenExpired, "token expired"},
		{"ErrTokenInvalid", ErrTokenInvalid, "token invalid"},
		{"ErrConfiguration", ErrConfiguration, "configuration error"},
		{"ErrInvalidURL", ErrInvalidURL, "invalid url"},
		{"ErrUnsupportedMedia", ErrUnsupportedMedia, "unsupported file type"},
		{"ErrExtraction", ErrExtraction, "extraction failed"},
		{"ErrAgentRun", ErrAgentRun, "agent run failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.msg {
				t.Errorf("expected %q, got %q", tt.msg, tt.err.Error())
			}
		})
	}
}

func TestErrorsAreDistinct(t *testing.T) {
	allErrors := []error{
		ErrNotFound,
		ErrInvalidInput,
		ErrUnauthorized,
		ErrTokenExpired,
		ErrTokenInvalid,
		ErrConfiguration,
		ErrInvalidURL,
		ErrUnsupportedMedia,
		ErrExtraction,
		ErrAgentRun,
	}

	for i, err1 := range allErrors {
		for j, err2 := range allErrors {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("errors %v and %v should be distinct", err1, err2)
			}
		}
	}
}

func TestErrorsWrap(t *testing.T) {
	wrapped := fmt.Errorf("%w: %s", ErrAgentRun, "boom")
	if !errors.Is(wrapped, ErrAgentRun) {
		t.Error("expected wrapped error to match ErrAgentRun")
	}
	if wrapped.Error() != "agent run failed: boom" {
		t.Errorf("unexpected message %q", wrapped.Error())
	}
}
