package gatekeeper

import (
	"context"
)

var principalCtxKey = &contextKey{"principal"}
var resolutionCtxKey = &contextKey{"resolution"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithPrincipalContext sets the Identity in the given context
func WithPrincipalContext(ctx context.Context, principal Identity) context.Context {
	return context.WithValue(ctx, principalCtxKey, principal)
}

// PrincipalFromContext finds the principal from the context.
func PrincipalFromContext(ctx context.Context) (Identity, bool) {
	raw, ok := ctx.Value(principalCtxKey).(Identity)
	return raw, ok
}

// WithResolutionContext sets the role Resolution in the given context
func WithResolutionContext(ctx context.Context, resolution Resolution) context.Context {
	return context.WithValue(ctx, resolutionCtxKey, resolution)
}

// ResolutionFromContext extracts the role Resolution from the context
func ResolutionFromContext(ctx context.Context) (Resolution, bool) {
	raw, ok := ctx.Value(resolutionCtxKey).(Resolution)
	return raw, ok
}

// WithClaimsContext sets the AuthClaims in the given context
func WithClaimsContext(ctx context.Context, claims AuthClaims) context.Context {
	return context.WithValue(ctx, claimsCtxKey, claims)
}

// GetClaims extracts the AuthClaims from the standard context
func GetClaims(ctx context.Context) (AuthClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(AuthClaims)
	return raw, ok
}

// RoleFromContext is a convenience helper returning the resolved role,
// RoleUnresolved when no resolution was recorded
func RoleFromContext(ctx context.Context) Role {
	if resolution, ok := ResolutionFromContext(ctx); ok {
		return resolution.Role
	}
	return RoleUnresolved
}
