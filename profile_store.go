package gatekeeper

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// ProfileStore reads and mirrors the external user-profile document.
// The document store owns this data; we only consume the role fields
// and mirror role grants so clients can observe them before token
// claims propagate.
type ProfileStore struct {
	db     *bun.DB
	now    func() time.Time
	logger Logger
}

var (
	_ ProfileReader = (*ProfileStore)(nil)
	_ ProfileWriter = (*ProfileStore)(nil)
)

// ProfileStoreOption customizes profile store construction
type ProfileStoreOption func(*ProfileStore)

// WithProfileStoreClock injects a custom clock (useful for tests).
func WithProfileStoreClock(clock func() time.Time) ProfileStoreOption {
	return func(s *ProfileStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithProfileStoreLogger overrides the profile store logger
func WithProfileStoreLogger(logger Logger) ProfileStoreOption {
	return func(s *ProfileStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewProfileStore creates a profile store backed by the given database
func NewProfileStore(db *bun.DB, opts ...ProfileStoreOption) *ProfileStore {
	s := &ProfileStore{
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

// GetProfile returns the profile document for a principal, nil when absent
func (s *ProfileStore) GetProfile(ctx context.Context, principalID string) (*UserProfile, error) {
	record := &UserProfile{}
	err := s.db.NewSelect().
		Model(record).
		Where("id = ?", strings.TrimSpace(principalID)).
		Scan(ctx)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to read user profile")
	}

	return record, nil
}

// UpsertProfile writes the profile document, merging over any existing
// record. Profiles without an ID get a deterministic one derived from
// the email so repeated mirrors of the same principal converge.
func (s *ProfileStore) UpsertProfile(ctx context.Context, profile *UserProfile) (*UserProfile, error) {
	if profile == nil {
		return nil, goerrors.New("profile is required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	if strings.TrimSpace(profile.ID) == "" {
		if profile.Email == "" {
			return nil, goerrors.New("profile requires an id or email", goerrors.CategoryValidation).
				WithCode(goerrors.CodeBadRequest)
		}
		if id, err := hashid.NewUUID(profile.Email); err == nil {
			profile.ID = id.String()
		}
	}

	updatedAt := s.now()
	profile.UpdatedAt = &updatedAt

	_, err := s.db.NewInsert().
		Model(profile).
		On("CONFLICT (id) DO UPDATE").
		Set("user_role = EXCLUDED.user_role").
		Set("is_admin = EXCLUDED.is_admin").
		Set("is_team_member = EXCLUDED.is_team_member").
		Set("is_owner = EXCLUDED.is_owner").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to persist user profile")
	}

	return profile, nil
}
