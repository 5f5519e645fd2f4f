package driving

import (
	"context"

	"github.com/custodia-labs/labinsights/internal/core/domain"
)

// AuthService resolves bearer tokens to an authenticated identity
type AuthService interface {
	// ValidateToken validates a JWT token and returns the auth context
	ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error)
}
