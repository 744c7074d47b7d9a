package gatekeeper

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ClaimSource records where a resolved role came from. It is used for
// precedence and diagnostics, never persisted with the claim itself.
type ClaimSource string

const (
	// SourceTokenClaims is the cached identity-token claim set
	SourceTokenClaims ClaimSource = "token-claims"
	// SourceTokenRefreshed is a freshly re-fetched signed token
	SourceTokenRefreshed ClaimSource = "token-claims-refreshed"
	// SourceProfileDocument is the user-profile document fallback
	SourceProfileDocument ClaimSource = "profile-document"
	// SourceNone means every source was silent or erroring
	SourceNone ClaimSource = "none"
)

// AuthClaims represents structured identity-token claims
type AuthClaims interface {
	Subject() string
	UserID() string
	Role() string
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims
type JWTClaims struct {
	jwt.RegisteredClaims
	UID      string         `json:"uid,omitempty"`
	UserRole string         `json:"role,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"` // extension payload
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Role returns the raw role claim. Use NormalizeRole before comparing.
func (c *JWTClaims) Role() string {
	return c.UserRole
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued-at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// ClaimsMetadata exposes metadata extensions for optional context enrichment.
func (c *JWTClaims) ClaimsMetadata() map[string]any {
	return c.Metadata
}
