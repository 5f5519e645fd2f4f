package azcred

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
)

type fakeCredential struct {
	scopes []string
	err    error
}

func (f *fakeCredential) GetToken(ctx context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	f.scopes = opts.Scopes
	if f.err != nil {
		return azcore.AccessToken{}, f.err
	}
	return azcore.AccessToken{Token: "tok-123", ExpiresOn: time.Now().Add(time.Hour)}, nil
}

func TestCredentialSource_Token(t *testing.T) {
	cred := &fakeCredential{}
	source := NewCredentialSource(cred, ScopeAIFoundry)

	tok, err := source.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok != "tok-123" {
		t.Errorf("expected tok-123, got %s", tok)
	}
	if len(cred.scopes) != 1 || cred.scopes[0] != ScopeAIFoundry {
		t.Errorf("unexpected scopes %v", cred.scopes)
	}
}

func TestCredentialSource_Error(t *testing.T) {
	source := NewCredentialSource(&fakeCredential{err: errors.New("no identity")}, ScopeCognitiveServices)

	if _, err := source.Token(context.Background()); err == nil {
		t.Error("expected error")
	}
}

func TestStaticToken(t *testing.T) {
	tok, err := StaticToken("abc").Token(context.Background())
	if err != nil || tok != "abc" {
		t.Errorf("expected abc, got %q (%v)", tok, err)
	}

	if _, err := StaticToken("").Token(context.Background()); err == nil {
		t.Error("expected error for empty token")
	}
}
