package auth

import (
	"time"
)

// Roles granted to API clients
const (
	RoleReader = "reader"
	RoleAdmin  = "admin"
)

// ClientClaims represents the JWT claims for an API client
type ClientClaims struct {
	ClientID string `json:"client_id"`
	Role     string `json:"role"`
}

// IsAdmin reports whether the client holds the admin role
func (c ClientClaims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// TokenResponse is returned when a token is issued
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"` // seconds
	ExpiresAt   time.Time `json:"expires_at"`
	TokenType   string    `json:"token_type"` // Always "Bearer"
}

// Config holds authentication configuration
type Config struct {
	JWTSecret     string        `json:"jwt_secret"`
	Issuer        string        `json:"issuer"`
	TokenDuration time.Duration `json:"token_duration"`
}

// DefaultConfig returns default authentication configuration
func DefaultConfig() Config {
	return Config{
		JWTSecret:     "", // Must be set
		Issuer:        "otc-signal-bot",
		TokenDuration: 24 * time.Hour,
	}
}

// Error types for authentication
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e AuthError) Error() string {
	return e.Message
}

// Common authentication errors
var (
	ErrInvalidToken = AuthError{Code: "INVALID_TOKEN", Message: "invalid or expired token"}
	ErrTokenExpired = AuthError{Code: "TOKEN_EXPIRED", Message: "token has expired"}
	ErrUnauthorized = AuthError{Code: "UNAUTHORIZED", Message: "unauthorized access"}
	ErrForbidden    = AuthError{Code: "FORBIDDEN", Message: "access forbidden"}
	ErrWeakSecret   = AuthError{Code: "WEAK_SECRET", Message: "jwt secret must be at least 32 characters"}
	ErrInvalidRole  = AuthError{Code: "INVALID_ROLE", Message: "role must be reader or admin"}
)
