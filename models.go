package gatekeeper

import (
	"time"

	"github.com/uptrace/bun"
)

// InvitationCode is a single-use code provisioned out-of-band. Once
// Used flips to true the (Used, UsedBy, UsedAt) triple is immutable;
// exactly one principal may ever win that transition.
type InvitationCode struct {
	bun.BaseModel `bun:"table:invitation_codes,alias:inv"`
	Code          string     `bun:"code,pk" json:"code,omitempty"`
	Role          Role       `bun:"user_role,nullzero" json:"user_role,omitempty"`
	Used          bool       `bun:"used,notnull,default:false" json:"used"`
	UsedBy        string     `bun:"used_by,nullzero" json:"used_by,omitempty"`
	UsedAt        *time.Time `bun:"used_at,nullzero" json:"used_at,omitempty"`
	ExpiresAt     *time.Time `bun:"expires_at,nullzero" json:"expires_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Expired reports whether the code's expiry predates now. Codes without
// an expiry never expire.
func (c *InvitationCode) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}

// GrantedRole is the tier a successful redemption binds to the
// principal. Codes without an explicit role grant team membership.
func (c *InvitationCode) GrantedRole() Role {
	if role := NormalizeRole(string(c.Role)); role.Resolved() {
		return role
	}
	return RoleTeamMember
}

// AuthorizationClaim is the cached view of a principal's role. The
// identity provider and the profile document own the source of truth;
// this record only reflects the last resolution we persisted.
type AuthorizationClaim struct {
	bun.BaseModel `bun:"table:authorization_claims,alias:clm"`
	PrincipalID   string     `bun:"principal_id,pk" json:"principal_id,omitempty"`
	Role          Role       `bun:"user_role,notnull" json:"user_role,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// UserProfile is the external user-profile document used as the
// last-resort role source. Any truthy elevated flag counts as evidence
// of team membership.
type UserProfile struct {
	bun.BaseModel `bun:"table:user_profiles,alias:prf"`
	ID            string     `bun:"id,pk" json:"id,omitempty"`
	Email         string     `bun:"email,nullzero" json:"email,omitempty"`
	Role          string     `bun:"user_role,nullzero" json:"user_role,omitempty"`
	IsAdmin       bool       `bun:"is_admin" json:"is_admin,omitempty"`
	IsTeamMember  bool       `bun:"is_team_member" json:"is_team_member,omitempty"`
	IsOwner       bool       `bun:"is_owner" json:"is_owner,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// EffectiveRole collapses the profile's role field and privilege flags
// into one tier. Flags win over the role string so a stale or typo'd
// role value cannot hide granted team access.
func (p *UserProfile) EffectiveRole() Role {
	if p == nil {
		return RoleUnresolved
	}
	if p.IsAdmin {
		return RoleAdmin
	}
	if p.IsTeamMember || p.IsOwner {
		return RoleTeamMember
	}
	return NormalizeRole(p.Role)
}
