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

// ClaimStore caches per-principal authorization claims. It is the
// durable record a trusted server-side process writes after a
// redemption or role grant; reads tolerate staleness.
type ClaimStore struct {
	db     *bun.DB
	now    func() time.Time
	logger Logger
}

var (
	_ ClaimWriter = (*ClaimStore)(nil)
	_ ClaimReader = (*ClaimStore)(nil)
)

// ClaimStoreOption customizes claim store construction
type ClaimStoreOption func(*ClaimStore)

// WithClaimStoreClock injects a custom clock (useful for tests).
func WithClaimStoreClock(clock func() time.Time) ClaimStoreOption {
	return func(s *ClaimStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithClaimStoreLogger overrides the claim store logger
func WithClaimStoreLogger(logger Logger) ClaimStoreOption {
	return func(s *ClaimStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewClaimStore creates a claim store backed by the given database
func NewClaimStore(db *bun.DB, opts ...ClaimStoreOption) *ClaimStore {
	s := &ClaimStore{
		db:     db,
		now:    time.Now,
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Put upserts the principal's cached role
func (s *ClaimStore) Put(ctx context.Context, principalID string, role Role) error {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return goerrors.New("principal id is required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	if role = NormalizeRole(string(role)); !role.Resolved() {
		return goerrors.New("cannot persist an unresolved role", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	updatedAt := s.now()
	record := &AuthorizationClaim{
		PrincipalID: principalID,
		Role:        role,
		UpdatedAt:   &updatedAt,
	}

	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (principal_id) DO UPDATE").
		Set("user_role = EXCLUDED.user_role").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to persist authorization claim")
	}

	s.logger.Debug("authorization claim stored", "principal", principalID, "role", role)
	return nil
}

// Get returns the principal's cached role. An absent record yields
// RoleUnresolved with no error; absence is a state, not a failure.
func (s *ClaimStore) Get(ctx context.Context, principalID string) (Role, error) {
	record := &AuthorizationClaim{}
	err := s.db.NewSelect().
		Model(record).
		Where("principal_id = ?", strings.TrimSpace(principalID)).
		Scan(ctx)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return RoleUnresolved, nil
		}
		return RoleUnresolved, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to read authorization claim")
	}

	return NormalizeRole(string(record.Role)), nil
}
