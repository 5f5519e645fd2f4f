package domain

// AuthContext contains authenticated user info for request context.
// UserID is the opaque identity key used for thread ownership.
type AuthContext struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
}

// TokenClaims represents the JWT token payload issued by the identity provider
type TokenClaims struct {
	Subject   string `json:"sub"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}
