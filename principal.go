package gatekeeper

// principal is the minimal concrete Identity
type principal struct {
	id    string
	email string
	role  string
}

var _ Identity = principal{}

// NewPrincipal builds an Identity from raw attributes
func NewPrincipal(id, email, role string) Identity {
	return principal{id: id, email: email, role: role}
}

// IdentityFromClaims projects validated token claims onto an Identity
func IdentityFromClaims(claims AuthClaims) Identity {
	if claims == nil {
		return nil
	}
	return principal{
		id:   claims.UserID(),
		role: claims.Role(),
	}
}

func (p principal) ID() string    { return p.id }
func (p principal) Email() string { return p.email }
func (p principal) Role() string  { return p.role }
