package gatekeeper

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an authenticated principal
type Identity interface {
	ID() string
	Email() string
	Role() string
}

// IdentityEvent is a single identity-state-change notification. A nil
// Principal means "no identity"; Err carries a provider-reported
// failure, which gate logic treats the same as "no identity".
type IdentityEvent struct {
	Principal Identity
	Err       error
}

// Unsubscribe releases an identity subscription. Failing to call it on
// page teardown leaks the listener across navigations.
type Unsubscribe func()

// IdentityWatcher emits identity-state-change events to subscribers
type IdentityWatcher interface {
	Subscribe(fn func(IdentityEvent)) Unsubscribe
}

// TokenSource exposes the identity provider's token claims for one
// principal. forceRefresh re-fetches a signed token from the provider
// instead of reading the local cache.
type TokenSource interface {
	Claims(ctx context.Context, forceRefresh bool) (AuthClaims, error)
}

// ProfileReader reads the external user-profile document used as the
// last-resort role source
type ProfileReader interface {
	GetProfile(ctx context.Context, principalID string) (*UserProfile, error)
}

// ProfileWriter mirrors role changes into the profile document so
// clients can observe them before token claims propagate
type ProfileWriter interface {
	UpsertProfile(ctx context.Context, profile *UserProfile) (*UserProfile, error)
}

// Navigator performs page navigation on behalf of a SessionGate
type Navigator interface {
	Navigate(path string)
}

// RedemptionLedger consumes single-use invitation codes
type RedemptionLedger interface {
	Redeem(ctx context.Context, code, principalID string) RedemptionResult
}

// ClaimWriter persists a principal's resolved role
type ClaimWriter interface {
	Put(ctx context.Context, principalID string, role Role) error
}

// ClaimReader returns a principal's cached role, RoleUnresolved when absent
type ClaimReader interface {
	Get(ctx context.Context, principalID string) (Role, error)
}

// Resolver produces one resolved role for a principal
type Resolver interface {
	Resolve(ctx context.Context, principalID string, opts ResolveOptions) Resolution
}

// TokenValidator validates a raw token string into structured claims
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// Config holds gating options
type Config interface {
	GetGracePeriod() time.Duration
	GetLoginPath() string
	GetDefaultLandingPath() string
	GetOrigin() string
	GetSigningKey() string
	GetSigningMethod() string
	GetIssuer() string
	GetAudience() []string
	GetTokenExpiration() int
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] GATE "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] GATE "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] GATE "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
