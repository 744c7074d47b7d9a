package gatekeeper

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// RedemptionReason explains a redemption outcome
type RedemptionReason string

const (
	// ReasonGranted means this principal won the code
	ReasonGranted RedemptionReason = "granted"
	// ReasonInvalidOrUsed means the code is absent or already consumed
	ReasonInvalidOrUsed RedemptionReason = "invalid-or-used"
	// ReasonExpired means the code's expiry predates the attempt
	ReasonExpired RedemptionReason = "expired"
	// ReasonUnavailable means the transaction layer could not be reached.
	// It still counts as "not granted"; retrying later is allowed.
	ReasonUnavailable RedemptionReason = "unavailable"
	// ReasonNone means no redemption was attempted
	ReasonNone RedemptionReason = "none"
)

// RedemptionResult is the outcome of one Redeem call
type RedemptionResult struct {
	Granted bool
	Reason  RedemptionReason
	// Role is the tier the code binds to the winning principal, set only
	// when Granted is true.
	Role Role
}

// Retryable reports whether a later attempt with the same code could
// still succeed. Invalid, used and expired codes are dead; only
// transport-level failures are worth keeping the code around for.
func (r RedemptionResult) Retryable() bool {
	return !r.Granted && r.Reason == ReasonUnavailable
}

// InvitationLedger guarantees a code is consumed by at most one
// principal, with the consuming principal durably recorded.
type InvitationLedger struct {
	db       *bun.DB
	now      func() time.Time
	logger   Logger
	activity ActivitySink
}

var _ RedemptionLedger = (*InvitationLedger)(nil)

// LedgerOption customizes ledger construction
type LedgerOption func(*InvitationLedger)

// WithLedgerClock injects a custom clock (useful for tests).
func WithLedgerClock(clock func() time.Time) LedgerOption {
	return func(l *InvitationLedger) {
		if clock != nil {
			l.now = clock
		}
	}
}

// WithLedgerLogger overrides the ledger logger
func WithLedgerLogger(logger Logger) LedgerOption {
	return func(l *InvitationLedger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithLedgerActivitySink records redemption outcomes for auditing
func WithLedgerActivitySink(sink ActivitySink) LedgerOption {
	return func(l *InvitationLedger) {
		l.activity = normalizeActivitySink(sink)
	}
}

// NewInvitationLedger creates a ledger backed by the given database
func NewInvitationLedger(db *bun.DB, opts ...LedgerOption) *InvitationLedger {
	l := &InvitationLedger{
		db:       db,
		now:      time.Now,
		logger:   defLogger{},
		activity: noopActivitySink{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}

	return l
}

// Redeem consumes a code for a principal in a single serializable
// transaction. Under concurrent attempts for the same code exactly one
// call observes Granted=true; every other caller, and every failure
// mode including ledger unavailability, observes Granted=false. A
// failed redemption degrades the assigned role and nothing else.
func (l *InvitationLedger) Redeem(ctx context.Context, code, principalID string) RedemptionResult {
	code = strings.TrimSpace(code)
	principalID = strings.TrimSpace(principalID)

	if code == "" || principalID == "" {
		return RedemptionResult{Granted: false, Reason: ReasonInvalidOrUsed}
	}

	record := &InvitationCode{}

	err := l.db.RunInTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewSelect().Model(record).Where("code = ?", code).Scan(ctx); err != nil {
			if stderrors.Is(err, sql.ErrNoRows) {
				return ErrCodeInvalidOrUsed
			}
			return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to read invitation code")
		}

		if record.Used {
			return ErrCodeInvalidOrUsed
		}

		if record.Expired(l.now()) {
			return ErrCodeExpired
		}

		usedAt := l.now()
		res, err := tx.NewUpdate().
			Model((*InvitationCode)(nil)).
			Set("used = ?", true).
			Set("used_by = ?", principalID).
			Set("used_at = ?", usedAt).
			Where("code = ?", code).
			Where("used = ?", false).
			Exec(ctx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to mark invitation code used")
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to confirm invitation code update")
		}

		// Another principal won the race between our read and write.
		if rows == 0 {
			return ErrCodeInvalidOrUsed
		}

		return nil
	})

	switch {
	case err == nil:
		l.logger.Info("invitation code redeemed", "code", code, "principal", principalID)
		result := RedemptionResult{Granted: true, Reason: ReasonGranted, Role: record.GrantedRole()}
		l.audit(ctx, code, principalID, result)
		return result
	case stderrors.Is(err, ErrCodeInvalidOrUsed):
		l.logger.Info("invitation code rejected", "code", code, "principal", principalID)
		result := RedemptionResult{Granted: false, Reason: ReasonInvalidOrUsed}
		l.audit(ctx, code, principalID, result)
		return result
	case stderrors.Is(err, ErrCodeExpired):
		l.logger.Info("invitation code expired", "code", code, "principal", principalID)
		result := RedemptionResult{Granted: false, Reason: ReasonExpired}
		l.audit(ctx, code, principalID, result)
		return result
	default:
		// Fail toward the lower privilege role, never silently grant.
		l.logger.Error("invitation ledger unavailable", "error", err)
		result := RedemptionResult{Granted: false, Reason: ReasonUnavailable}
		l.audit(ctx, code, principalID, result)
		return result
	}
}

func (l *InvitationLedger) audit(ctx context.Context, code, principalID string, result RedemptionResult) {
	eventType := ActivityEventCodeRejected
	if result.Granted {
		eventType = ActivityEventCodeRedeemed
	}

	if err := l.activity.Record(ctx, ActivityEvent{
		EventType:   eventType,
		PrincipalID: principalID,
		Code:        code,
		Role:        result.Role,
		Metadata:    map[string]any{"reason": string(result.Reason)},
		OccurredAt:  l.now(),
	}); err != nil {
		l.logger.Debug("activity sink rejected redemption event", "error", err)
	}
}

// Lookup returns the current state of a code without mutating it
func (l *InvitationLedger) Lookup(ctx context.Context, code string) (*InvitationCode, error) {
	record := &InvitationCode{}
	if err := l.db.NewSelect().Model(record).Where("code = ?", strings.TrimSpace(code)).Scan(ctx); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, ErrCodeInvalidOrUsed
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to read invitation code")
	}
	return record, nil
}
