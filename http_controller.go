package gatekeeper

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
)

// DefaultClaimsContextKey is where the guard middleware stores
// validated claims in the request locals.
const DefaultClaimsContextKey = "claims"

// RedeemRequest is the payload for the invitation redemption endpoint.
// PrincipalID is optional; when present it must match the
// authenticated principal, so codes cannot be redeemed on behalf of
// someone else.
type RedeemRequest struct {
	Code        string `json:"code"`
	PrincipalID string `json:"uid"`
}

// Validate checks the redemption payload
func (r RedeemRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Code, validation.Required, validation.Length(4, 64), is.PrintableASCII),
	)
}

// GateController exposes the redemption and role-resolution endpoints
type GateController struct {
	Logger     Logger
	Enrollment *Enrollment
	Resolver   Resolver
	ContextKey string
}

// GateControllerOption customizes controller construction
type GateControllerOption func(*GateController) *GateController

// WithControllerLogger overrides the controller logger
func WithControllerLogger(logger Logger) GateControllerOption {
	return func(c *GateController) *GateController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithControllerEnrollment sets the enrollment flow behind the redeem endpoint
func WithControllerEnrollment(enrollment *Enrollment) GateControllerOption {
	return func(c *GateController) *GateController {
		c.Enrollment = enrollment
		return c
	}
}

// WithControllerResolver sets the resolver behind the role endpoint
func WithControllerResolver(resolver Resolver) GateControllerOption {
	return func(c *GateController) *GateController {
		c.Resolver = resolver
		return c
	}
}

// WithControllerContextKey overrides where validated claims are read from
func WithControllerContextKey(key string) GateControllerOption {
	return func(c *GateController) *GateController {
		if key != "" {
			c.ContextKey = key
		}
		return c
	}
}

// NewGateController creates the HTTP controller
func NewGateController(opts ...GateControllerOption) *GateController {
	c := &GateController{
		Logger:     defLogger{},
		ContextKey: DefaultClaimsContextKey,
	}

	for _, opt := range opts {
		if opt != nil {
			c = opt(c)
		}
	}

	return c
}

// RegisterGateRoutes mounts the controller's routes on a fiber app
func RegisterGateRoutes(app *fiber.App, controller *GateController) {
	app.Post("/invitation/redeem", controller.RedeemInvitation)
	app.Get("/session/role", controller.CurrentRole)
}

// GetFiberClaims extracts validated claims stored by the guard middleware
func GetFiberClaims(c *fiber.Ctx, key string) (AuthClaims, bool) {
	if key == "" {
		key = DefaultClaimsContextKey
	}
	claims, ok := c.Locals(key).(AuthClaims)
	return claims, ok && claims != nil
}

// RedeemInvitation consumes an invitation code for the authenticated
// principal. Redemption failure degrades the assigned role; it never
// blocks the account, so the relevant failure detail is carried in the
// response body rather than a connection-level error.
func (g *GateController) RedeemInvitation(c *fiber.Ctx) error {
	claims, ok := GetFiberClaims(c, g.ContextKey)
	if !ok {
		g.Logger.Error("redeem invitation called without authenticated principal")
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"status":  "error",
			"message": "You must be logged in to use an invitation code.",
		})
	}

	payload := RedeemRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "The request must include a 'code'.",
		})
	}

	if err := payload.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": err.Error(),
		})
	}

	if payload.PrincipalID != "" && payload.PrincipalID != claims.UserID() {
		g.Logger.Error("principal %s attempted to redeem a code for %s", claims.UserID(), payload.PrincipalID)
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"status":  "error",
			"message": "You can only use invitation codes for your own account.",
		})
	}

	principal := IdentityFromClaims(claims)
	outcome, err := g.Enrollment.Activate(c.UserContext(), principal, payload.Code)
	if err != nil {
		g.Logger.Error("failed to activate principal %s: %s", claims.UserID(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "An internal error occurred while processing the code.",
		})
	}

	if outcome.Granted {
		return c.JSON(fiber.Map{
			"status":  "success",
			"role":    outcome.Role,
			"message": fmt.Sprintf("Role '%s' assigned successfully.", outcome.Role),
		})
	}

	status := fiber.StatusConflict
	message := "This invitation code is invalid or has already been used."
	switch outcome.Reason {
	case ReasonExpired:
		message = "This invitation code has expired."
	case ReasonUnavailable:
		status = fiber.StatusServiceUnavailable
		message = "The invitation system is temporarily unavailable. Please try again later."
	}

	return c.Status(status).JSON(fiber.Map{
		"status":    "error",
		"role":      outcome.Role,
		"message":   message,
		"retryable": outcome.Retryable,
	})
}

// CurrentRole reports the principal's resolved role and its source.
// Pass ?refresh=1 after a privilege-changing action to skip the cached
// token probe.
func (g *GateController) CurrentRole(c *fiber.Ctx) error {
	claims, ok := GetFiberClaims(c, g.ContextKey)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"status":  "error",
			"message": "Please sign in to continue.",
		})
	}

	resolution := g.Resolver.Resolve(c.UserContext(), claims.UserID(), ResolveOptions{
		ForceRefresh: c.QueryBool("refresh"),
	})

	return c.JSON(fiber.Map{
		"role":   resolution.Role,
		"source": resolution.Source,
	})
}
