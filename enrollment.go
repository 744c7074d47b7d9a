package gatekeeper

import (
	"context"
	"net/url"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// DefaultCodeParams are the query parameters checked for a pending
// invitation code when capturing from a URL.
var DefaultCodeParams = []string{"invite", "code"}

// ActivationOutcome is the result of activating a principal's account
// role after sign-up.
type ActivationOutcome struct {
	Role      Role
	Granted   bool
	Reason    RedemptionReason
	Retryable bool
}

// Enrollment is the post-signup glue between the invitation ledger and
// the claim store: it redeems a pending code and persists the resulting
// role tier. Redemption failure is never fatal to account creation; it
// only degrades the assigned role.
type Enrollment struct {
	ledger   RedemptionLedger
	claims   ClaimWriter
	profiles ProfileWriter
	logger   Logger
}

// EnrollmentOption customizes enrollment construction
type EnrollmentOption func(*Enrollment)

// WithEnrollmentProfiles mirrors granted roles into the user-profile
// document, matching the provider-side write that lets clients observe
// a role before token claims propagate.
func WithEnrollmentProfiles(profiles ProfileWriter) EnrollmentOption {
	return func(e *Enrollment) {
		e.profiles = profiles
	}
}

// WithEnrollmentLogger overrides the enrollment logger
func WithEnrollmentLogger(logger Logger) EnrollmentOption {
	return func(e *Enrollment) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEnrollment creates the activation flow around a ledger and claim store
func NewEnrollment(ledger RedemptionLedger, claims ClaimWriter, opts ...EnrollmentOption) *Enrollment {
	e := &Enrollment{
		ledger: ledger,
		claims: claims,
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}

	return e
}

// Activate assigns the principal's initial role. A granted redemption
// binds the code's tier; everything else, including no code at all,
// assigns the default public-fan tier. The returned error covers only
// claim persistence; redemption failures are encoded in the outcome.
func (e *Enrollment) Activate(ctx context.Context, principal Identity, code string) (ActivationOutcome, error) {
	if principal == nil || strings.TrimSpace(principal.ID()) == "" {
		return ActivationOutcome{}, goerrors.New("an authenticated principal is required", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized)
	}

	outcome := ActivationOutcome{
		Role:   RolePublicFan,
		Reason: ReasonNone,
	}

	if code = strings.TrimSpace(code); code != "" {
		result := e.ledger.Redeem(ctx, code, principal.ID())
		outcome.Granted = result.Granted
		outcome.Reason = result.Reason
		outcome.Retryable = result.Retryable()

		if result.Granted {
			outcome.Role = result.Role
		} else {
			e.logger.Info("redemption failed, assigning default role",
				"principal", principal.ID(), "reason", result.Reason)
		}
	}

	if err := e.claims.Put(ctx, principal.ID(), outcome.Role); err != nil {
		return outcome, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to persist activated role")
	}

	if e.profiles != nil {
		e.mirrorProfile(ctx, principal, outcome.Role)
	}

	return outcome, nil
}

// mirrorProfile best-effort copies the granted role into the profile
// document. The claim store already holds the durable record.
func (e *Enrollment) mirrorProfile(ctx context.Context, principal Identity, role Role) {
	profile := &UserProfile{
		ID:           principal.ID(),
		Email:        principal.Email(),
		Role:         string(role),
		IsAdmin:      role == RoleAdmin,
		IsTeamMember: role.Elevated(),
	}

	if _, err := e.profiles.UpsertProfile(ctx, profile); err != nil {
		e.logger.Error("failed to mirror role into profile", "principal", principal.ID(), "error", err)
	}
}

// CapturePendingCode pulls an invitation code out of a URL's query
// parameters and returns the code plus the URL with the parameter
// stripped, so the code does not linger in history or share links.
// params defaults to DefaultCodeParams. When no code is present the
// original URL is returned unchanged.
func CapturePendingCode(rawURL string, params ...string) (string, string) {
	if len(params) == 0 {
		params = DefaultCodeParams
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", rawURL
	}

	query := parsed.Query()
	for _, param := range params {
		code := strings.TrimSpace(query.Get(param))
		if code == "" {
			continue
		}

		query.Del(param)
		parsed.RawQuery = query.Encode()
		return code, parsed.String()
	}

	return "", rawURL
}
