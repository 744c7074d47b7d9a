package guardware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	gatekeeper "github.com/paddockhq/go-gatekeeper"
)

var (
	defaultTokenLookup       = "header:" + fiber.HeaderAuthorization
	ErrJWTMissingOrMalformed = errors.New("missing or malformed JWT")
)

// Config controls the route guard middleware. It is the server-side
// rendition of the page gate: extract a token, validate it, then apply
// the route policy for the requested page.
type Config struct {
	// Filter skips the guard entirely when it returns true
	Filter func(*fiber.Ctx) bool

	// SuccessHandler runs after the request passes the guard
	SuccessHandler fiber.Handler

	// ErrorHandler handles extraction and validation failures
	ErrorHandler fiber.ErrorHandler

	// TokenValidator is required for token validation
	TokenValidator gatekeeper.TokenValidator

	// Policy applies the page role requirements. Unprotected pages pass
	// through the guard untouched.
	Policy *gatekeeper.RoutePolicy

	// PageID derives the page identity for policy lookups, c.Path() by default
	PageID func(*fiber.Ctx) string

	// Redirect issues gate-style navigations (login redirect for missing
	// identity, landing-page reroute for under-privileged viewers)
	// instead of JSON errors.
	Redirect bool

	// Origin validates return paths carried on login redirects
	Origin string

	// ContextKey is where validated claims are stored in request locals
	ContextKey string

	// TokenLookup is a comma separated list of "<source>:<name>" entries,
	// e.g. "header:Authorization,cookie:token,query:auth_token"
	TokenLookup string

	// AuthScheme is the header scheme stripped from the raw value
	AuthScheme string
}

// New creates the route guard middleware
func New(config ...Config) fiber.Handler {
	cfg := configDefault(config...)

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		page := cfg.PageID(c)
		if cfg.Policy != nil && !cfg.Policy.IsProtected(page) {
			return c.Next()
		}

		raw, err := extractRawToken(c, cfg.getExtractors())
		if err != nil {
			return cfg.reject(c, err)
		}

		claims, err := cfg.TokenValidator.Validate(raw)
		if err != nil {
			return cfg.reject(c, err)
		}

		c.Locals(cfg.ContextKey, claims)

		if cfg.Policy != nil {
			role := gatekeeper.NormalizeRole(claims.Role())
			required := cfg.Policy.Classify(page)

			if !required.Satisfied(role) {
				// Authenticated but under-privileged viewers go to their
				// landing page, not to login.
				if role.Resolved() && cfg.Redirect {
					return c.Redirect(cfg.Policy.LandingPath(role), fiber.StatusFound)
				}
				if role.Resolved() {
					return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
						"status":  "error",
						"message": "You do not have permission to view this page.",
					})
				}
				return cfg.reject(c, ErrJWTMissingOrMalformed)
			}
		}

		return cfg.SuccessHandler(c)
	}
}

func (cfg *Config) reject(c *fiber.Ctx, err error) error {
	if cfg.Redirect && cfg.Policy != nil {
		returnPath := gatekeeper.SafeReturnPath(c.OriginalURL(), cfg.Origin, "")
		return c.Redirect(gatekeeper.BuildLoginRedirect(cfg.Policy.LoginPath(), returnPath), fiber.StatusFound)
	}
	return cfg.ErrorHandler(c, err)
}

func configDefault(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c *fiber.Ctx, err error) error {
			if err.Error() == ErrJWTMissingOrMalformed.Error() {
				return c.Status(fiber.StatusBadRequest).SendString(ErrJWTMissingOrMalformed.Error())
			}
			return c.Status(fiber.StatusUnauthorized).SendString("Invalid or expired token")
		}
	}

	if cfg.TokenValidator == nil {
		panic("GATE: guard middleware configuration: TokenValidator is required.")
	}

	if cfg.PageID == nil {
		cfg.PageID = func(c *fiber.Ctx) string {
			return c.Path()
		}
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = gatekeeper.DefaultClaimsContextKey
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

func (cfg *Config) getExtractors() []tokenExtractor {
	return getExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

type tokenExtractor func(c *fiber.Ctx) (string, error)

func extractRawToken(c *fiber.Ctx, extractors []tokenExtractor) (string, error) {
	var raw string
	var err error

	for _, extractor := range extractors {
		raw, err = extractor(c)
		if raw != "" && err == nil {
			break
		}
	}

	return raw, err
}

func getExtractors(tokenLookup string, authScheme string) []tokenExtractor {
	extractors := make([]tokenExtractor, 0)

	// header:Authorization,cookie:jwt,query:auth_token,param:token
	rootParts := strings.Split(tokenLookup, ",")
	for _, rootPart := range rootParts {
		parts := strings.Split(strings.TrimSpace(rootPart), ":")
		if len(parts) != 2 {
			continue
		}

		for i, el := range parts {
			parts[i] = strings.TrimSpace(el)
		}

		switch parts[0] {
		case "header":
			extractors = append(extractors, tokenFromHeader(parts[1], authScheme))
		case "query":
			extractors = append(extractors, tokenFromQuery(parts[1]))
		case "param":
			extractors = append(extractors, tokenFromParam(parts[1]))
		case "cookie":
			extractors = append(extractors, tokenFromCookie(parts[1]))
		}
	}

	return extractors
}

// tokenFromHeader returns a function that extracts token from the request header.
func tokenFromHeader(header string, authScheme string) tokenExtractor {
	return func(c *fiber.Ctx) (string, error) {
		a := c.Get(header)
		l := len(authScheme)
		if l == 0 {
			return "", ErrJWTMissingOrMalformed
		}
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) {
			return strings.TrimSpace(a[l:]), nil
		}
		return "", ErrJWTMissingOrMalformed
	}
}

// tokenFromQuery returns a function that extracts token from the query string.
func tokenFromQuery(param string) tokenExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Query(param)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

// tokenFromParam returns a function that extracts token from the url param string.
func tokenFromParam(param string) tokenExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Params(param)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

// tokenFromCookie returns a function that extracts token from the named cookie.
func tokenFromCookie(name string) tokenExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}
