package gatekeeper

import (
	"context"
)

// Resolution is the outcome of one Resolve call
type Resolution struct {
	Role   Role
	Source ClaimSource
}

// Resolved reports whether the resolution carries a usable role
func (r Resolution) Resolved() bool {
	return r.Role.Resolved()
}

// ResolveOptions tune a single resolution
type ResolveOptions struct {
	// ForceRefresh skips the cached token probe and starts at the forced
	// refresh, for callers that just performed a privilege-changing
	// action and need the provider's freshest view.
	ForceRefresh bool
}

// roleProbe is one ordered source in the fallback chain. Reordering the
// chain is a data change, not a control-flow rewrite.
type roleProbe struct {
	source ClaimSource
	fetch  func(ctx context.Context, principalID string) (Role, error)
}

// RoleResolver produces a single resolved role for a principal from
// multiple, possibly inconsistent sources: cached token claims, a
// forced token refresh, and the profile-document fallback, in that
// order. It never writes; callers own any persistence.
type RoleResolver struct {
	tokens   TokenSource
	profiles ProfileReader
	logger   Logger
}

var _ Resolver = (*RoleResolver)(nil)

// ResolverOption customizes resolver construction
type ResolverOption func(*RoleResolver)

// WithResolverProfiles enables the profile-document fallback. Claim
// propagation to tokens can lag document writes; this path compensates.
func WithResolverProfiles(profiles ProfileReader) ResolverOption {
	return func(r *RoleResolver) {
		r.profiles = profiles
	}
}

// WithResolverLogger overrides the resolver logger
func WithResolverLogger(logger Logger) ResolverOption {
	return func(r *RoleResolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRoleResolver creates a resolver over the given token source
func NewRoleResolver(tokens TokenSource, opts ...ResolverOption) *RoleResolver {
	r := &RoleResolver{
		tokens: tokens,
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

// Resolve walks the precedence chain and returns the first usable role.
// Each source is tried only if the previous one yielded nothing; a
// source error counts as "source silent" and advances the chain, so a
// transient fetch failure never surfaces as an authorization decision.
// Total exhaustion yields {RoleUnresolved, SourceNone}.
func (r *RoleResolver) Resolve(ctx context.Context, principalID string, opts ResolveOptions) Resolution {
	for _, probe := range r.chain(opts) {
		role, err := probe.fetch(ctx, principalID)
		if err != nil {
			r.logger.Debug("role source silent", "source", probe.source, "error", err)
			continue
		}

		if role.Resolved() {
			r.logger.Debug("role resolved", "principal", principalID, "role", role, "source", probe.source)
			return Resolution{Role: role, Source: probe.source}
		}
	}

	return Resolution{Role: RoleUnresolved, Source: SourceNone}
}

func (r *RoleResolver) chain(opts ResolveOptions) []roleProbe {
	probes := make([]roleProbe, 0, 3)

	if r.tokens != nil {
		if !opts.ForceRefresh {
			probes = append(probes, roleProbe{
				source: SourceTokenClaims,
				fetch: func(ctx context.Context, _ string) (Role, error) {
					return r.tokenRole(ctx, false)
				},
			})
		}

		probes = append(probes, roleProbe{
			source: SourceTokenRefreshed,
			fetch: func(ctx context.Context, _ string) (Role, error) {
				return r.tokenRole(ctx, true)
			},
		})
	}

	if r.profiles != nil {
		probes = append(probes, roleProbe{
			source: SourceProfileDocument,
			fetch:  r.profileRole,
		})
	}

	return probes
}

func (r *RoleResolver) tokenRole(ctx context.Context, forceRefresh bool) (Role, error) {
	claims, err := r.tokens.Claims(ctx, forceRefresh)
	if err != nil {
		return RoleUnresolved, err
	}
	if claims == nil {
		return RoleUnresolved, nil
	}
	return NormalizeRole(claims.Role()), nil
}

func (r *RoleResolver) profileRole(ctx context.Context, principalID string) (Role, error) {
	profile, err := r.profiles.GetProfile(ctx, principalID)
	if err != nil {
		return RoleUnresolved, err
	}
	return profile.EffectiveRole(), nil
}
