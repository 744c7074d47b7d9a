package gatekeeper_test

import (
	"context"
	"errors"
	"testing"
	"time"

	gatekeeper "github.com/paddockhq/go-gatekeeper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestGateAdmitsUnprotectedPageImmediately(t *testing.T) {
	hub := gatekeeper.NewIdentityHub()
	nav := &recordingNavigator{}
	resolver := &MockResolver{}

	gate := gatekeeper.NewSessionGate("about", hub, resolver, teamSitePolicy(), nav)
	require.NoError(t, gate.Start(context.Background()))

	assert.Equal(t, gatekeeper.SessionAdmitted, gate.Status())
	assert.Equal(t, gatekeeper.OutcomeAdmitted, gate.Outcome())
	assert.Empty(t, nav.Targets())
	assert.Equal(t, 0, hub.Listeners())
	resolver.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything, mock.Anything)
}

func TestGateRejectsSecondStart(t *testing.T) {
	hub := gatekeeper.NewIdentityHub()
	gate := gatekeeper.NewSessionGate("about", hub, &MockResolver{}, teamSitePolicy(), &recordingNavigator{})

	require.NoError(t, gate.Start(context.Background()))
	err := gate.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, gatekeeper.ErrInvalidTransition)
}

func TestGateAdmitsSatisfiedIdentityBeforeGraceExpiry(t *testing.T) {
	hub := gatekeeper.NewIdentityHub()
	nav := &recordingNavigator{}

	resolver := &MockResolver{}
	resolver.On("Resolve", mock.Anything, "user-1", mock.Anything).
		Return(gatekeeper.Resolution{Role: gatekeeper.RoleTeamMember, Source: gatekeeper.SourceTokenClaims}).Once()

	var admitted gatekeeper.Resolution
	gate := gatekeeper.NewSessionGate("dashboard", hub, resolver, teamSitePolicy(), nav,
		gatekeeper.WithGracePeriod(time.Minute),
		gatekeeper.WithAdmitHandler(func(r gatekeeper.Resolution) { admitted = r }))

	require.NoError(t, gate.Start(context.Background()))
	assert.Equal(t, gatekeeper.SessionAwaitingIdentity, gate.Status())

	hub.Publish(gatekeeper.IdentityEvent{Principal: gatekeeper.NewPrincipal("user-1", "pit@example.com", "team-member")})

	assert.Equal(t, gatekeeper.SessionAdmitted, gate.Status())
	assert.Equal(t, gatekeeper.OutcomeAdmitted, gate.Outcome())
	assert.Equal(t, gatekeeper.RoleTeamMember, admitted.Role)
	assert.Equal(t, gatekeeper.RoleTeamMember, gate.Resolution().Role)
	assert.Empty(t, nav.Targets())
	resolver.AssertExpectations(t)
}

func TestGateRedirectsToLoginWhenGraceExpires(t *testing.T) {
	hub := gatekeeper.NewIdentityHub()
	nav := &recordingNavigator{}
	resolver := &MockResolver{}

	gate := gatekeeper.NewSessionGate("dashboard", hub, resolver, teamSitePolicy(), nav,
		gatekeeper.WithGracePeriod(10*time.Millisecond),
		gatekeeper.WithOrigin(siteOrigin),
		gatekeeper.WithReturnPath("/dashboard"))

	require.NoError(t, gate.Start(context.Background()))

	require.Eventually(t, func() bool {
		return gate.Status() == gatekeeper.SessionRedirecting
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, gatekeeper.OutcomeRedirected, gate.Outcome())
	targets := nav.Targets()
	require.Len(t, targets, 1)
	assert.Equal(t, "/login?return_to=%2Fdashboard", targets[0])
	resolver.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything, mock.Anything)
}

func TestGateToleratesSlowHydrationWithinGrace(t *testing.T) {
	hub := gatekeeper.NewIdentityHub()
	nav := &recordingNavigator{}

	resolver := &MockResolver{}
	resolver.On("Resolve", mock.Anything, "user-1", mock.Anything).
		Return(gatekeeper.Resolution{Role: gatekeeper.RoleAdmin, Source: gatekeeper.SourceTokenClaims}).Once()

	gate := gatekeeper.NewSessionGate("dashboard", hub, resolver, teamSitePolicy(), nav,
		gatekeeper.WithGracePeriod(time.Minute))

	require.NoError(t, gate.Start(context.Background()))

	// a signed-out signal during hydration is not a bounce
	hub.Publish(gatekeeper.IdentityEvent{})
	assert.Equal(t, gatekeeper.SessionAwaitingIdentity, gate.Status())

	// neither is a transient provider error
	hub.Publish(gatekeeper.IdentityEvent{Err: errors.New("network blip")})
	assert.Equal(t, gatekeeper.SessionAwaitingIdentity, gate.Status())

	hub.Publish(gatekeeper.IdentityEvent{Principal: gatekeeper.NewPrincipal("user-1", "", "admin")})
	assert.Equal(t, gatekeeper.SessionAdmitted, gate.Status())
	assert.Empty(t, nav.Targets())
}

func TestGateReroutesUnderPrivilegedViewer(t *testing.T) {
	hub := gatekeeper.NewIdentityHub()
	nav := &recordingNavigator{}

	resolver := &MockResolver{}
	resolver.On("Resolve", mock.Anything, "fan-1", mock.Anything).
		Return(gatekeeper.Resolution{Role: gatekeeper.RolePublicFan, Source: gatekeeper.SourceTokenClaims}).Once()

	gate := gatekeeper.NewSessionGate("dashboard", hub, resolver, teamSitePolicy(), nav,
		gatekeeper.WithGracePeriod(time.Minute))

	require.NoError(t, gate.Start(context.Background()))
	hub.Publish(gatekeeper.IdentityEvent{Principal: gatekeeper.NewPrincipal("fan-1", "", "public-fan")})

	assert.Equal(t, gatekeeper.SessionRedirecting, gate.Status())
	assert.Equal(t, gatekeeper.OutcomeRerouted, gate.Outcome())
	assert.Equal(t, []string{"/"}, nav.Targets())
}

func TestGateReroutesAdminAwayFromFollowerPage(t *testing.T) {
	hub := gatekeeper.NewIdentityHub()
	nav := &recordingNavigator{}

	resolver := &MockResolver{}
	resolver.On("Resolve", mock.Anything, "admin-1", mock.Anything).
		Return(gatekeeper.Resolution{Role: gatekeeper.RoleAdmin, Source: gatekeeper.SourceTokenClaims}).Once()

	gate := gatekeeper.NewSessionGate("facebook-group", hub, resolver, teamSitePolicy(), nav,
		gatekeeper.WithGracePeriod(time.Minute))

	require.NoError(t, gate.Start(context.Background()))
	hub.Publish(gatekeeper.IdentityEvent{Principal: gatekeeper.NewPrincipal("admin-1", "", "admin")})

	// follower pages require exactly {follower}; elevated viewers get
	// their own landing page instead
	assert.Equal(t, gatekeeper.OutcomeRerouted, gate.Outcome())
	assert.Equal(t, []string{"/dashboard"}, nav.Targets())
}

func TestGateUnresolvedIdentityGoesToLogin(t *testing.T) {
	hub := gatekeeper.NewIdentityHub()
	nav := &recordingNavigator{}

	resolver := &MockResolver{}
	resolver.On("Resolve", mock.Anything, "ghost", mock.Anything).
		Return(gatekeeper.Resolution{Role: gatekeeper.RoleUnresolved, Source: gatekeeper.SourceNone}).Once()

	gate := gatekeeper.NewSessionGate("dashboard", hub, resolver, teamSitePolicy(), nav,
		gatekeeper.WithGracePeriod(time.Minute))

	require.NoError(t, gate.Start(context.Background()))
	hub.Publish(gatekeeper.IdentityEvent{Principal: gatekeeper.NewPrincipal("ghost", "", "")})

	assert.Equal(t, gatekeeper.OutcomeRedirected, gate.Outcome())
	assert.Equal(t, []string{"/login"}, nav.Targets())
}

func TestGateUnresolvedIdentityAdmittedOnUnrestrictedPage(t *testing.T) {
	hub := gatekeeper.NewIdentityHub()
	nav := &recordingNavigator{}

	resolver := &MockResolver{}
	resolver.On("Resolve", mock.Anything, "ghost", mock.Anything).
		Return(gatekeeper.Resolution{Role: gatekeeper.RoleUnresolved, Source: gatekeeper.SourceNone}).Once()

	gate := gatekeeper.NewSessionGate("news", hub, resolver, teamSitePolicy(), nav,
		gatekeeper.WithGracePeriod(time.Minute))

	require.NoError(t, gate.Start(context.Background()))
	hub.Publish(gatekeeper.IdentityEvent{Principal: gatekeeper.NewPrincipal("ghost", "", "")})

	// protected-but-unrestricted pages only require an identity
	assert.Equal(t, gatekeeper.OutcomeAdmitted, gate.Outcome())
	assert.Empty(t, nav.Targets())
}

func TestGateNavigatesAtMostOnce(t *testing.T) {
	hub := gatekeeper.NewIdentityHub()
	nav := &recordingNavigator{}

	resolver := &MockResolver{}
	resolver.On("Resolve", mock.Anything, mock.Anything, mock.Anything).
		Return(gatekeeper.Resolution{Role: gatekeeper.RolePublicFan, Source: gatekeeper.SourceTokenClaims})

	gate := gatekeeper.NewSessionGate("dashboard", hub, resolver, teamSitePolicy(), nav,
		gatekeeper.WithGracePeriod(time.Minute))

	require.NoError(t, gate.Start(context.Background()))

	hub.Publish(gatekeeper.IdentityEvent{Principal: gatekeeper.NewPrincipal("fan-1", "", "public-fan")})
	// late events after the decision are no-ops
	hub.Publish(gatekeeper.IdentityEvent{Principal: gatekeeper.NewPrincipal("fan-1", "", "public-fan")})
	hub.Publish(gatekeeper.IdentityEvent{Principal: gatekeeper.NewPrincipal("fan-2", "", "public-fan")})

	assert.Len(t, nav.Targets(), 1)
}

func TestGateGraceDeadlineUsesInjectedClock(t *testing.T) {
	hub := gatekeeper.NewIdentityHub()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	gate := gatekeeper.NewSessionGate("dashboard", hub, &MockResolver{}, teamSitePolicy(), &recordingNavigator{},
		gatekeeper.WithGracePeriod(1500*time.Millisecond),
		gatekeeper.WithGateClock(func() time.Time { return now }))

	require.NoError(t, gate.Start(context.Background()))
	defer gate.Terminate()

	assert.Equal(t, now.Add(1500*time.Millisecond), gate.GraceDeadline())
}

func TestGateTerminateReleasesSubscription(t *testing.T) {
	hub := gatekeeper.NewIdentityHub()

	gate := gatekeeper.NewSessionGate("dashboard", hub, &MockResolver{}, teamSitePolicy(), &recordingNavigator{},
		gatekeeper.WithGracePeriod(time.Minute))

	require.NoError(t, gate.Start(context.Background()))
	assert.Equal(t, 1, hub.Listeners())

	gate.Terminate()
	assert.Equal(t, 0, hub.Listeners())
	assert.Equal(t, gatekeeper.SessionTerminated, gate.Status())

	// idempotent
	gate.Terminate()
	assert.Equal(t, gatekeeper.SessionTerminated, gate.Status())
}

func TestGateTerminatedBeforeDecisionNeverNavigates(t *testing.T) {
	hub := gatekeeper.NewIdentityHub()
	nav := &recordingNavigator{}

	gate := gatekeeper.NewSessionGate("dashboard", hub, &MockResolver{}, teamSitePolicy(), nav,
		gatekeeper.WithGracePeriod(20*time.Millisecond))

	require.NoError(t, gate.Start(context.Background()))
	gate.Terminate()

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, nav.Targets())
	assert.Equal(t, gatekeeper.OutcomePending, gate.Outcome())
}

func TestGateEventAfterTerminationIsIgnored(t *testing.T) {
	hub := gatekeeper.NewIdentityHub()
	nav := &recordingNavigator{}
	resolver := &MockResolver{}

	gate := gatekeeper.NewSessionGate("dashboard", hub, resolver, teamSitePolicy(), nav,
		gatekeeper.WithGracePeriod(time.Minute))

	require.NoError(t, gate.Start(context.Background()))
	gate.Terminate()

	hub.Publish(gatekeeper.IdentityEvent{Principal: gatekeeper.NewPrincipal("user-1", "", "admin")})

	assert.Equal(t, gatekeeper.SessionTerminated, gate.Status())
	assert.Empty(t, nav.Targets())
	resolver.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything, mock.Anything)
}
