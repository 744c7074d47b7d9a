package gatekeeper

import "strings"

// RequiredRoles is the set of roles permitted to view a page. An empty
// set means any authenticated principal is admitted.
type RequiredRoles []Role

// Satisfied reports whether the role meets the requirement. Unresolved
// roles only satisfy an empty requirement.
func (rr RequiredRoles) Satisfied(role Role) bool {
	if len(rr) == 0 {
		return true
	}

	for _, required := range rr {
		if role == required {
			return true
		}
	}

	return false
}

// RoutePolicy is the static, data-driven mapping from page identity to
// the roles permitted to view it. Three tiers exist: team pages
// ({admin, team-member}), follower pages ({follower}), and a default
// tier admitting any authenticated principal.
type RoutePolicy struct {
	protected    map[string]struct{}
	teamPages    map[string]struct{}
	followerPage map[string]struct{}
	landings     map[Role]string
	defaultLand  string
	loginPath    string
}

// RoutePolicyOption customizes route policy construction
type RoutePolicyOption func(*RoutePolicy)

// WithProtectedPages marks pages as requiring authentication
func WithProtectedPages(pages ...string) RoutePolicyOption {
	return func(p *RoutePolicy) {
		addPages(p.protected, pages)
	}
}

// WithTeamMemberPages marks pages as requiring {admin, team-member}.
// Team pages are implicitly protected.
func WithTeamMemberPages(pages ...string) RoutePolicyOption {
	return func(p *RoutePolicy) {
		addPages(p.teamPages, pages)
		addPages(p.protected, pages)
	}
}

// WithFollowerPages marks pages as requiring {follower}. Follower pages
// are implicitly protected.
func WithFollowerPages(pages ...string) RoutePolicyOption {
	return func(p *RoutePolicy) {
		addPages(p.followerPage, pages)
		addPages(p.protected, pages)
	}
}

// WithLandingPath sets the page a role is rerouted to when it is
// authenticated but under-privileged for the page it requested
func WithLandingPath(role Role, path string) RoutePolicyOption {
	return func(p *RoutePolicy) {
		p.landings[role] = path
	}
}

// WithDefaultLandingPath sets the landing page for roles without an
// explicit one, including unresolved principals
func WithDefaultLandingPath(path string) RoutePolicyOption {
	return func(p *RoutePolicy) {
		if path != "" {
			p.defaultLand = path
		}
	}
}

// WithLoginPath sets the login page unauthenticated viewers are sent to
func WithLoginPath(path string) RoutePolicyOption {
	return func(p *RoutePolicy) {
		if path != "" {
			p.loginPath = path
		}
	}
}

// NewRoutePolicy builds a policy table
func NewRoutePolicy(opts ...RoutePolicyOption) *RoutePolicy {
	p := &RoutePolicy{
		protected:    map[string]struct{}{},
		teamPages:    map[string]struct{}{},
		followerPage: map[string]struct{}{},
		landings:     map[Role]string{},
		defaultLand:  "/",
		loginPath:    "/login",
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p
}

// IsProtected reports whether the page requires authentication at all
func (p *RoutePolicy) IsProtected(pageID string) bool {
	_, ok := p.protected[normalizePage(pageID)]
	return ok
}

// Classify returns the role set required to view a page. It is pure and
// total: pages absent from every table carry no restriction beyond
// being a recognized protected page.
func (p *RoutePolicy) Classify(pageID string) RequiredRoles {
	page := normalizePage(pageID)

	if _, ok := p.teamPages[page]; ok {
		return RequiredRoles{RoleAdmin, RoleTeamMember}
	}

	if _, ok := p.followerPage[page]; ok {
		return RequiredRoles{RoleFollower}
	}

	return RequiredRoles{}
}

// LandingPath returns the role-appropriate landing page, falling back
// to the default for unknown or unresolved roles
func (p *RoutePolicy) LandingPath(role Role) string {
	if path, ok := p.landings[role]; ok && path != "" {
		return path
	}
	return p.defaultLand
}

// LoginPath returns the login page path
func (p *RoutePolicy) LoginPath() string {
	return p.loginPath
}

// DefaultLandingPath returns the safe default landing page
func (p *RoutePolicy) DefaultLandingPath() string {
	return p.defaultLand
}

func addPages(set map[string]struct{}, pages []string) {
	for _, page := range pages {
		if page = normalizePage(page); page != "" {
			set[page] = struct{}{}
		}
	}
}

func normalizePage(pageID string) string {
	return strings.TrimPrefix(strings.TrimSpace(pageID), "/")
}
