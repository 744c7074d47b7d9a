package gatekeeper

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultGracePeriod is how long a gate waits for the identity provider
// to hydrate before treating the viewer as unauthenticated.
const DefaultGracePeriod = 1500 * time.Millisecond

// SessionStatus is the lifecycle state of one SessionGate instance
type SessionStatus string

const (
	// SessionIdle is the initial state before Start
	SessionIdle SessionStatus = "idle"
	// SessionAwaitingIdentity means the grace timer is running and the
	// gate is waiting on an identity signal
	SessionAwaitingIdentity SessionStatus = "awaiting_identity"
	// SessionResolving means an identity arrived and the role chain is running
	SessionResolving SessionStatus = "resolving"
	// SessionAdmitted is terminal for this page load; protected content
	// is revealed and further identity events are no-ops
	SessionAdmitted SessionStatus = "admitted"
	// SessionRedirecting is terminal; a navigation has been issued
	SessionRedirecting SessionStatus = "redirecting"
	// SessionTerminated means the page unloaded; timers and
	// subscriptions are released
	SessionTerminated SessionStatus = "terminated"
)

// GateOutcome is the externally observable decision of a gate
type GateOutcome string

const (
	// OutcomePending means no decision has been reached yet
	OutcomePending GateOutcome = "pending"
	// OutcomeAdmitted means the viewer may see the page
	OutcomeAdmitted GateOutcome = "admitted"
	// OutcomeRedirected means the viewer was sent to the login flow
	OutcomeRedirected GateOutcome = "redirected"
	// OutcomeRerouted means an authenticated but under-privileged viewer
	// was sent to their role-appropriate landing page
	OutcomeRerouted GateOutcome = "rerouted"
)

// SessionGate decides, for one loaded protected page, whether to admit
// the viewer or navigate away. It tolerates asynchronous identity
// hydration via a bounded grace timer, and guarantees at most one
// navigation per instance however its racing triggers interleave.
type SessionGate struct {
	id       uuid.UUID
	page     string
	policy   *RoutePolicy
	resolver Resolver
	watcher  IdentityWatcher
	nav      Navigator
	logger   Logger
	onAdmit  func(Resolution)
	activity ActivitySink

	grace      time.Duration
	now        func() time.Time
	origin     string
	returnPath string

	transitions map[SessionStatus]map[SessionStatus]struct{}

	mu            sync.Mutex
	ctx           context.Context
	status        SessionStatus
	graceDeadline time.Time
	timer         *time.Timer
	unsubscribe   Unsubscribe
	redirected    bool
	outcome       GateOutcome
	resolution    Resolution
}

// GateOption customizes gate construction
type GateOption func(*SessionGate)

// WithGracePeriod overrides the hydration grace period
func WithGracePeriod(d time.Duration) GateOption {
	return func(g *SessionGate) {
		if d > 0 {
			g.grace = d
		}
	}
}

// WithGateClock injects a custom clock (useful for tests).
func WithGateClock(clock func() time.Time) GateOption {
	return func(g *SessionGate) {
		if clock != nil {
			g.now = clock
		}
	}
}

// WithGateLogger overrides the gate logger
func WithGateLogger(logger Logger) GateOption {
	return func(g *SessionGate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithReturnPath records the URL the viewer should come back to after
// signing in. It is same-origin validated before reuse.
func WithReturnPath(path string) GateOption {
	return func(g *SessionGate) {
		g.returnPath = path
	}
}

// WithOrigin sets the site origin used to validate return paths
func WithOrigin(origin string) GateOption {
	return func(g *SessionGate) {
		g.origin = origin
	}
}

// WithAdmitHandler registers a callback invoked once when the gate
// admits the viewer, with the resolution that satisfied the page
func WithAdmitHandler(fn func(Resolution)) GateOption {
	return func(g *SessionGate) {
		g.onAdmit = fn
	}
}

// WithGateActivitySink records admission decisions for auditing
func WithGateActivitySink(sink ActivitySink) GateOption {
	return func(g *SessionGate) {
		g.activity = normalizeActivitySink(sink)
	}
}

// NewSessionGate creates a gate for one page load
func NewSessionGate(page string, watcher IdentityWatcher, resolver Resolver, policy *RoutePolicy, nav Navigator, opts ...GateOption) *SessionGate {
	g := &SessionGate{
		id:       uuid.New(),
		page:     page,
		policy:   policy,
		resolver: resolver,
		watcher:  watcher,
		nav:      nav,
		logger:   defLogger{},
		activity: noopActivitySink{},
		grace:    DefaultGracePeriod,
		now:      time.Now,
		status:   SessionIdle,
		outcome:  OutcomePending,
		transitions: map[SessionStatus]map[SessionStatus]struct{}{
			SessionIdle: {
				SessionAwaitingIdentity: {},
				SessionAdmitted:         {},
			},
			SessionAwaitingIdentity: {
				SessionResolving:   {},
				SessionRedirecting: {},
			},
			SessionResolving: {
				SessionAdmitted:    {},
				SessionRedirecting: {},
			},
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return g
}

// Start arms the grace timer and subscribes to identity events. Pages
// outside the protected set are admitted immediately without a timer or
// subscription.
func (g *SessionGate) Start(ctx context.Context) error {
	g.mu.Lock()

	if g.status != SessionIdle {
		status := g.status
		g.mu.Unlock()
		return ErrInvalidTransition.WithMetadata(map[string]any{
			"from":   status,
			"reason": "gate already started",
		})
	}

	g.ctx = ctx

	if !g.policy.IsProtected(g.page) {
		if err := g.transitionLocked(SessionAdmitted); err != nil {
			g.mu.Unlock()
			return err
		}
		g.outcome = OutcomeAdmitted
		g.mu.Unlock()
		g.logger.Debug("page %q is not protected, admitting (gate %s)", g.page, g.id)
		return nil
	}

	if err := g.transitionLocked(SessionAwaitingIdentity); err != nil {
		g.mu.Unlock()
		return err
	}
	g.graceDeadline = g.now().Add(g.grace)
	g.timer = time.AfterFunc(g.grace, g.onGraceExpired)
	g.mu.Unlock()

	// Subscribe after arming the timer so a synchronous first event
	// finds the gate in AwaitingIdentity.
	unsubscribe := g.watcher.Subscribe(g.onIdentityEvent)

	g.mu.Lock()
	if g.status == SessionTerminated {
		g.mu.Unlock()
		unsubscribe()
		return nil
	}
	g.unsubscribe = unsubscribe
	g.mu.Unlock()

	return nil
}

// Terminate releases the timer and subscription. It is safe to call
// from any state and idempotent.
func (g *SessionGate) Terminate() {
	g.mu.Lock()
	if g.status == SessionTerminated {
		g.mu.Unlock()
		return
	}

	g.status = SessionTerminated
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	unsubscribe := g.unsubscribe
	g.unsubscribe = nil
	g.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}

	g.logger.Debug("gate %s terminated (page %q)", g.id, g.page)
}

// Status returns the current lifecycle state
func (g *SessionGate) Status() SessionStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// Outcome returns the gate's decision, OutcomePending until one is made
func (g *SessionGate) Outcome() GateOutcome {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.outcome
}

// Resolution returns the role resolution that admitted the viewer
func (g *SessionGate) Resolution() Resolution {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resolution
}

// GraceDeadline reports when the grace period elapses
func (g *SessionGate) GraceDeadline() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.graceDeadline
}

// onGraceExpired fires when the grace period elapses without a
// positive identity signal.
func (g *SessionGate) onGraceExpired() {
	g.mu.Lock()
	if g.status != SessionAwaitingIdentity {
		// Identity arrived first, or the page unloaded.
		g.mu.Unlock()
		return
	}

	if err := g.transitionLocked(SessionRedirecting); err != nil {
		g.mu.Unlock()
		return
	}
	target, issue := g.loginTargetLocked()
	g.mu.Unlock()

	g.logger.Info("grace period elapsed without identity on %q, redirecting (gate %s)", g.page, g.id)
	if issue {
		g.nav.Navigate(target)
		g.audit(ActivityEventViewerRedirected, "", Resolution{}, map[string]any{"cause": "grace-expired"})
	}
}

// onIdentityEvent handles one identity-state-change notification. All
// triggers are serialized; the transitions table is the re-entrancy
// guard, so a second event while already decided is a no-op.
func (g *SessionGate) onIdentityEvent(ev IdentityEvent) {
	g.mu.Lock()

	if g.status != SessionAwaitingIdentity {
		g.mu.Unlock()
		return
	}

	// Provider errors and signed-out signals both mean "no identity".
	// The grace timer keeps running; slow hydration is not a bounce.
	if ev.Err != nil || ev.Principal == nil {
		if ev.Err != nil {
			g.logger.Debug("identity provider reported error, awaiting grace expiry: %v", ev.Err)
		}
		g.mu.Unlock()
		return
	}

	if g.timer != nil {
		g.timer.Stop()
	}
	if err := g.transitionLocked(SessionResolving); err != nil {
		g.mu.Unlock()
		return
	}
	ctx := g.ctx
	g.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	resolution := g.resolver.Resolve(ctx, ev.Principal.ID(), ResolveOptions{})
	g.settle(ev.Principal, resolution)
}

// settle applies the admission decision for a resolved identity
func (g *SessionGate) settle(principal Identity, resolution Resolution) {
	g.mu.Lock()

	if g.status != SessionResolving {
		// Page unloaded while the chain was in flight.
		g.mu.Unlock()
		return
	}

	required := g.policy.Classify(g.page)

	if required.Satisfied(resolution.Role) {
		if err := g.transitionLocked(SessionAdmitted); err != nil {
			g.mu.Unlock()
			return
		}
		g.outcome = OutcomeAdmitted
		g.resolution = resolution
		onAdmit := g.onAdmit
		g.mu.Unlock()

		g.logger.Info("viewer %s admitted to %q with role %q from %s",
			principal.ID(), g.page, resolution.Role, resolution.Source)
		g.audit(ActivityEventViewerAdmitted, principal.ID(), resolution, nil)
		if onAdmit != nil {
			onAdmit(resolution)
		}
		return
	}

	if err := g.transitionLocked(SessionRedirecting); err != nil {
		g.mu.Unlock()
		return
	}
	g.resolution = resolution

	var target string
	var issue bool
	if resolution.Resolved() {
		// Authenticated but under-privileged: send to the role's landing
		// page, not to login.
		target, issue = g.navigateOnceLocked(g.policy.LandingPath(resolution.Role), OutcomeRerouted)
	} else {
		// An unresolved principal cannot be distinguished from an absent
		// one for access control.
		target, issue = g.loginTargetLocked()
	}
	g.mu.Unlock()

	g.logger.Info("viewer %s not admitted to %q (role %q), sending to %q",
		principal.ID(), g.page, resolution.Role, target)
	if issue {
		g.nav.Navigate(target)
		g.audit(ActivityEventViewerRedirected, principal.ID(), resolution, map[string]any{"target": target})
	}
}

// audit records an admission decision. Must be called without holding mu.
func (g *SessionGate) audit(eventType ActivityEventType, principalID string, resolution Resolution, metadata map[string]any) {
	g.mu.Lock()
	ctx := g.ctx
	g.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := g.activity.Record(ctx, ActivityEvent{
		EventType:   eventType,
		PrincipalID: principalID,
		Page:        g.page,
		Role:        resolution.Role,
		Metadata:    metadata,
		OccurredAt:  g.now(),
	}); err != nil {
		g.logger.Debug("activity sink rejected gate event: %v", err)
	}
}

// loginTargetLocked marks the redirect-to-login navigation. Callers
// must hold mu and perform the navigation after releasing it.
func (g *SessionGate) loginTargetLocked() (string, bool) {
	returnPath := SafeReturnPath(g.returnPath, g.origin, "")
	target := BuildLoginRedirect(g.policy.LoginPath(), returnPath)
	return g.navigateOnceLocked(target, OutcomeRedirected)
}

// navigateOnceLocked checks-and-sets the monotonic redirected flag.
// Once true, no further navigation is ever issued by this instance,
// even when racing triggers both reach a redirect decision.
func (g *SessionGate) navigateOnceLocked(target string, outcome GateOutcome) (string, bool) {
	if g.redirected {
		return target, false
	}

	g.redirected = true
	g.outcome = outcome
	return target, true
}

// transitionLocked applies a status change through the transitions
// table. Callers must hold mu. Terminated is reachable from every state
// but only via Terminate.
func (g *SessionGate) transitionLocked(to SessionStatus) error {
	if g.status == SessionTerminated {
		return ErrTerminalState.WithMetadata(map[string]any{
			"to": to,
		})
	}

	allowed, ok := g.transitions[g.status]
	if !ok {
		return ErrInvalidTransition.WithMetadata(map[string]any{
			"from": g.status,
			"to":   to,
		})
	}

	if _, ok := allowed[to]; !ok {
		return ErrInvalidTransition.WithMetadata(map[string]any{
			"from": g.status,
			"to":   to,
		})
	}

	g.status = to
	return nil
}
