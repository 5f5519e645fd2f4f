package driven

import "github.com/custodia-labs/labinsights/internal/core/domain"

// AuthAdapter verifies identity tokens issued by the external identity provider.
// Token issuance and user storage live outside this service.
type AuthAdapter interface {
	ParseToken(token string) (*domain.TokenClaims, error)
}
