package gatekeeper_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	gatekeeper "github.com/paddockhq/go-gatekeeper"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	sqliteCreateInvitationCodes = `CREATE TABLE invitation_codes (
    code TEXT NOT NULL PRIMARY KEY,
    user_role TEXT,
    used BOOLEAN NOT NULL DEFAULT FALSE,
    used_by TEXT,
    used_at TIMESTAMP NULL,
    expires_at TIMESTAMP NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`
	sqliteCreateAuthorizationClaims = `CREATE TABLE authorization_claims (
    principal_id TEXT NOT NULL PRIMARY KEY,
    user_role TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`
	sqliteCreateUserProfiles = `CREATE TABLE user_profiles (
    id TEXT NOT NULL PRIMARY KEY,
    email TEXT,
    user_role TEXT,
    is_admin BOOLEAN NOT NULL DEFAULT FALSE,
    is_team_member BOOLEAN NOT NULL DEFAULT FALSE,
    is_owner BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP
);`
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())

	for _, ddl := range []string{
		sqliteCreateInvitationCodes,
		sqliteCreateAuthorizationClaims,
		sqliteCreateUserProfiles,
	} {
		_, err = bunDB.Exec(ddl)
		require.NoError(t, err)
	}

	t.Cleanup(func() {
		_ = bunDB.Close()
		_ = db.Close()
	})

	return bunDB
}

type MockTokenSource struct {
	mock.Mock
}

func (m *MockTokenSource) Claims(ctx context.Context, forceRefresh bool) (gatekeeper.AuthClaims, error) {
	args := m.Called(ctx, forceRefresh)
	if claims := args.Get(0); claims != nil {
		return claims.(gatekeeper.AuthClaims), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockProfileReader struct {
	mock.Mock
}

func (m *MockProfileReader) GetProfile(ctx context.Context, principalID string) (*gatekeeper.UserProfile, error) {
	args := m.Called(ctx, principalID)
	if profile := args.Get(0); profile != nil {
		return profile.(*gatekeeper.UserProfile), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockProfileWriter struct {
	mock.Mock
}

func (m *MockProfileWriter) UpsertProfile(ctx context.Context, profile *gatekeeper.UserProfile) (*gatekeeper.UserProfile, error) {
	args := m.Called(ctx, profile)
	if out := args.Get(0); out != nil {
		return out.(*gatekeeper.UserProfile), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Redeem(ctx context.Context, code, principalID string) gatekeeper.RedemptionResult {
	args := m.Called(ctx, code, principalID)
	return args.Get(0).(gatekeeper.RedemptionResult)
}

type MockClaimWriter struct {
	mock.Mock
}

func (m *MockClaimWriter) Put(ctx context.Context, principalID string, role gatekeeper.Role) error {
	args := m.Called(ctx, principalID, role)
	return args.Error(0)
}

type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, principalID string, opts gatekeeper.ResolveOptions) gatekeeper.Resolution {
	args := m.Called(ctx, principalID, opts)
	return args.Get(0).(gatekeeper.Resolution)
}

// recordingNavigator captures every navigation a gate issues
type recordingNavigator struct {
	mu      sync.Mutex
	targets []string
}

func (n *recordingNavigator) Navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.targets = append(n.targets, path)
}

func (n *recordingNavigator) Targets() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.targets))
	copy(out, n.targets)
	return out
}

// staticClaims is a minimal AuthClaims stub
type staticClaims struct {
	subject string
	uid     string
	role    string
}

func (s staticClaims) Subject() string     { return s.subject }
func (s staticClaims) Role() string        { return s.role }
func (s staticClaims) Expires() time.Time  { return time.Time{} }
func (s staticClaims) IssuedAt() time.Time { return time.Time{} }

func (s staticClaims) UserID() string {
	if s.uid != "" {
		return s.uid
	}
	return s.subject
}
