package azcred

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

// Token scopes of the Azure services this module calls
const (
	ScopeAIFoundry         = "https://ai.azure.com/.default"
	ScopeCognitiveServices = "https://cognitiveservices.azure.com/.default"
)

// TokenSource yields bearer tokens for one audience
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a pre-issued bearer token, e.g. from `az account get-access-token`
type StaticToken string

// Token returns the static token
func (t StaticToken) Token(ctx context.Context) (string, error) {
	if t == "" {
		return "", errors.New("static token is empty")
	}
	return string(t), nil
}

// CredentialSource requests tokens for a fixed scope from an Azure credential.
// The azidentity credentials cache and refresh tokens themselves.
type CredentialSource struct {
	cred  azcore.TokenCredential
	scope string
}

// NewCredentialSource wraps an existing credential
func NewCredentialSource(cred azcore.TokenCredential, scope string) *CredentialSource {
	return &CredentialSource{cred: cred, scope: scope}
}

// NewDefaultSource uses the default Azure credential chain
// (environment, workload identity, managed identity, Azure CLI).
func NewDefaultSource(scope string) (*CredentialSource, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("create default azure credential: %w", err)
	}
	return NewCredentialSource(cred, scope), nil
}

// Token returns a bearer token for the configured scope
func (s *CredentialSource) Token(ctx context.Context) (string, error) {
	tok, err := s.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{s.scope}})
	if err != nil {
		return "", fmt.Errorf("get token for %s: %w", s.scope, err)
	}
	return tok.Token, nil
}
