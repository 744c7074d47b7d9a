package gatekeeper

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeInvalidTransition = "INVALID_SESSION_TRANSITION"
	textCodeTerminalState     = "TERMINAL_SESSION_STATE"
	textCodeInvalidOrUsed     = "INVALID_OR_USED"
	textCodeExpired           = "CODE_EXPIRED"
	textCodeLedgerUnavailable = "LEDGER_UNAVAILABLE"
)

// ErrInvalidTransition is returned when a requested session status change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid session state transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// ErrTerminalState is returned when attempting to move away from a terminal session status.
var ErrTerminalState = goerrors.New("session state is terminal", goerrors.CategoryConflict).
	WithTextCode(textCodeTerminalState).
	WithCode(goerrors.CodeConflict)

// ErrCodeInvalidOrUsed is returned when a code is absent or was already consumed.
var ErrCodeInvalidOrUsed = goerrors.New("invitation code is invalid or already used", goerrors.CategoryConflict).
	WithTextCode(textCodeInvalidOrUsed).
	WithCode(goerrors.CodeConflict)

// ErrCodeExpired is returned when a code's expiry predates the redemption attempt.
var ErrCodeExpired = goerrors.New("invitation code has expired", goerrors.CategoryConflict).
	WithTextCode(textCodeExpired).
	WithCode(goerrors.CodeConflict)

// ErrLedgerUnavailable is returned when the transaction layer cannot be reached.
// Callers must treat it as "not granted", never as a silent grant.
var ErrLedgerUnavailable = goerrors.New("invitation ledger unavailable", goerrors.CategoryOperation).
	WithTextCode(textCodeLedgerUnavailable)

// ErrTokenExpired is the rich error for expired identity tokens.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode("TOKEN_EXPIRED").
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is the rich error for tokens we cannot parse.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode("TOKEN_MALFORMED").
	WithCode(goerrors.CodeUnauthorized)

// ErrUnauthenticated is returned by HTTP surfaces when no principal is present.
var ErrUnauthenticated = goerrors.New("authentication required", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
