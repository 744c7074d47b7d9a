package gatekeeper

import (
	"time"

	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
)

// AppConfig is the environment-driven configuration for the gating
// core. It satisfies the Config interface consumed by constructors.
type AppConfig struct {
	GracePeriod        time.Duration `env:"GATEKEEPER_GRACE_PERIOD" envDefault:"1500ms"`
	LoginPath          string        `env:"GATEKEEPER_LOGIN_PATH" envDefault:"/login"`
	DefaultLandingPath string        `env:"GATEKEEPER_DEFAULT_LANDING" envDefault:"/"`
	Origin             string        `env:"GATEKEEPER_ORIGIN"`

	SigningKey      string   `env:"GATEKEEPER_SIGNING_KEY"`
	SigningMethod   string   `env:"GATEKEEPER_SIGNING_METHOD" envDefault:"HS256"`
	Issuer          string   `env:"GATEKEEPER_ISSUER"`
	Audience        []string `env:"GATEKEEPER_AUDIENCE" envSeparator:","`
	TokenExpiration int      `env:"GATEKEEPER_TOKEN_EXPIRATION" envDefault:"24"`
	JWKSetURLs      []string `env:"GATEKEEPER_JWKS_URLS" envSeparator:","`

	ProtectedPages  []string `env:"GATEKEEPER_PROTECTED_PAGES" envSeparator:","`
	TeamMemberPages []string `env:"GATEKEEPER_TEAM_PAGES" envSeparator:","`
	FollowerPages   []string `env:"GATEKEEPER_FOLLOWER_PAGES" envSeparator:","`
	TeamLandingPath string   `env:"GATEKEEPER_TEAM_LANDING"`
	FanLandingPath  string   `env:"GATEKEEPER_FAN_LANDING"`
}

var _ Config = (*AppConfig)(nil)

// LoadConfig reads configuration from environment variables
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to parse environment configuration")
	}
	return cfg, nil
}

func (c *AppConfig) GetGracePeriod() time.Duration {
	if c.GracePeriod <= 0 {
		return DefaultGracePeriod
	}
	return c.GracePeriod
}

func (c *AppConfig) GetLoginPath() string          { return c.LoginPath }
func (c *AppConfig) GetDefaultLandingPath() string { return c.DefaultLandingPath }
func (c *AppConfig) GetOrigin() string             { return c.Origin }
func (c *AppConfig) GetSigningKey() string         { return c.SigningKey }
func (c *AppConfig) GetSigningMethod() string      { return c.SigningMethod }
func (c *AppConfig) GetIssuer() string             { return c.Issuer }
func (c *AppConfig) GetAudience() []string         { return c.Audience }
func (c *AppConfig) GetTokenExpiration() int       { return c.TokenExpiration }

// RoutePolicy builds the static policy table from the configured page sets
func (c *AppConfig) RoutePolicy() *RoutePolicy {
	opts := []RoutePolicyOption{
		WithProtectedPages(c.ProtectedPages...),
		WithTeamMemberPages(c.TeamMemberPages...),
		WithFollowerPages(c.FollowerPages...),
		WithLoginPath(c.LoginPath),
		WithDefaultLandingPath(c.DefaultLandingPath),
	}

	if c.TeamLandingPath != "" {
		opts = append(opts,
			WithLandingPath(RoleAdmin, c.TeamLandingPath),
			WithLandingPath(RoleTeamMember, c.TeamLandingPath),
		)
	}

	if c.FanLandingPath != "" {
		opts = append(opts,
			WithLandingPath(RoleFollower, c.FanLandingPath),
			WithLandingPath(RolePublicFan, c.FanLandingPath),
		)
	}

	return NewRoutePolicy(opts...)
}
