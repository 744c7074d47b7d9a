package gatekeeper

import "strings"

// Role is a principal's authorization tier
type Role string

const (
	// RoleAdmin has full access to team pages and administrative surfaces
	RoleAdmin Role = "admin"
	// RoleTeamMember can view team pages (dashboards, approvals, code management)
	RoleTeamMember Role = "team-member"
	// RoleFollower can view follower pages
	RoleFollower Role = "follower"
	// RolePublicFan is the default tier assigned when no invitation was redeemed
	RolePublicFan Role = "public-fan"
	// RoleUnresolved is the distinct "no usable role" state. It is not an
	// error: an unresolved principal is treated as the lowest privilege
	// tier and never elevated.
	RoleUnresolved Role = ""
)

// NormalizeRole maps a raw claim value onto a known role. Values are
// case and whitespace insensitive ("Team-Member " == "team-member").
// Unknown strings normalize to RoleUnresolved so a typo'd claim can
// never grant unintended access.
func NormalizeRole(raw string) Role {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if role.IsValid() {
		return role
	}
	return RoleUnresolved
}

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleTeamMember, RoleFollower, RolePublicFan:
		return true
	default:
		return false
	}
}

// Resolved reports whether the role carries a usable tier
func (r Role) Resolved() bool {
	return r.IsValid()
}

// Elevated reports whether the role grants team-page access
func (r Role) Elevated() bool {
	switch r {
	case RoleAdmin, RoleTeamMember:
		return true
	default:
		return false
	}
}

// IsAtLeast checks if this role meets the minimum required level
func (r Role) IsAtLeast(minRole Role) bool {
	roleHierarchy := map[Role]int{
		RolePublicFan:  0,
		RoleFollower:   1,
		RoleTeamMember: 2,
		RoleAdmin:      3,
	}

	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// AllRoles returns all predefined roles in hierarchical order
func AllRoles() []Role {
	return []Role{
		RolePublicFan,
		RoleFollower,
		RoleTeamMember,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a Role type
func ParseRole(roleStr string) (Role, bool) {
	role := NormalizeRole(roleStr)
	return role, role.IsValid()
}
