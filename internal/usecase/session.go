package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-authz/internal/core/domain"
	"github.com/arklim/social-platform-authz/internal/core/port"
	"github.com/arklim/social-platform-authz/internal/infra/telemetry"
	"github.com/arklim/social-platform-authz/internal/retry"
)

var (
	// ErrNotAuthenticated indicates a refresh was requested without an
	// established session.
	ErrNotAuthenticated = errors.New("session not authenticated")
)

// refreshSuppressWindow is how long a refresh observed from a sibling
// context suppresses this context's proactive refresh. Best effort only:
// without a distributed lock two contexts may still refresh concurrently.
const refreshSuppressWindow = 30 * time.Second

// SessionCoordinator owns the session state machine. It is the single
// writer of SessionSnapshot; every reader gets an immutable copy. Sign-in
// and refresh exchanges run under the retry policy, and transitions into
// Authenticated and Unauthenticated are broadcast to sibling contexts on
// the session channel.
type SessionCoordinator struct {
	identity  port.IdentityProvider
	resolver  *PermissionResolver
	broadcast port.Broadcaster
	policy    retry.Policy
	logger    *zap.Logger
	originID  string
	events    port.EventPublisher
	metrics   *telemetry.Metrics

	mu            sync.Mutex
	snap          domain.SessionSnapshot
	refreshToken  string
	requestSeq    uint64
	activeRequest uint64
	version       uint64
	// lastRemote tracks the highest applied event version per origin.
	// Versions are per-origin counters, so a shared watermark would let a
	// chatty sibling suppress events from a quieter one.
	lastRemote          map[string]uint64
	lastRemoteRefreshAt time.Time
	now                 func() time.Time
}

// NewSessionCoordinator constructs a SessionCoordinator.
func NewSessionCoordinator(
	identity port.IdentityProvider,
	resolver *PermissionResolver,
	broadcast port.Broadcaster,
	policy retry.Policy,
	logger *zap.Logger,
) *SessionCoordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.Classify == nil {
		policy.Classify = AuthErrorClassifier
	}
	c := &SessionCoordinator{
		identity:   identity,
		resolver:   resolver,
		broadcast:  broadcast,
		policy:     policy,
		logger:     logger,
		originID:   uuid.NewString(),
		snap:       domain.SessionSnapshot{Phase: domain.PhaseUnauthenticated},
		lastRemote: make(map[string]uint64),
	}
	c.now = func() time.Time { return time.Now().UTC() }
	return c
}

// WithClock overrides the internal clock for deterministic tests.
func (c *SessionCoordinator) WithClock(clock func() time.Time) {
	if clock != nil {
		c.now = clock
	}
}

// WithEventPublisher attaches a publisher for session lifecycle events.
// Publish failures never fail the session operation.
func (c *SessionCoordinator) WithEventPublisher(events port.EventPublisher) {
	c.events = events
}

// WithMetrics attaches the session collectors.
func (c *SessionCoordinator) WithMetrics(m *telemetry.Metrics) {
	c.metrics = m
}

// OriginID identifies this execution context on the session channel.
func (c *SessionCoordinator) OriginID() string {
	return c.originID
}

// countPhase records a transition into the given phase. Callers hold c.mu.
func (c *SessionCoordinator) countPhase(phase domain.SessionPhase) {
	if c.metrics != nil {
		c.metrics.SessionPhases.WithLabelValues(phase.String()).Inc()
	}
}

// Start subscribes the coordinator to the session channel. It blocks until
// the subscription is established and delivers remote events until ctx is
// cancelled. A coordinator without a channel runs standalone.
func (c *SessionCoordinator) Start(ctx context.Context) error {
	if c.broadcast == nil {
		return nil
	}
	if err := c.broadcast.Subscribe(ctx, c.applyRemote); err != nil {
		return fmt.Errorf("subscribe session channel: %w", err)
	}
	return nil
}

// Snapshot returns the current read projection of the session state.
func (c *SessionCoordinator) Snapshot() domain.SessionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// SignIn exchanges credentials for a session. The effective permission set
// is resolved strictly after credential success and strictly before the
// Authenticated snapshot becomes observable, so no reader ever sees an
// authenticated identity with an unpopulated permission set. A sign-in
// superseded by a newer request is discarded rather than committed.
func (c *SessionCoordinator) SignIn(ctx context.Context, creds port.Credentials) (domain.SessionSnapshot, error) {
	token := c.beginSignIn()

	result, err := retry.Do(ctx, c.policy, func(ctx context.Context) (*port.SignInResult, error) {
		return c.identity.SignIn(ctx, creds)
	})
	if err != nil {
		return c.fail(token, err), err
	}

	permissions, err := c.resolver.Resolve(ctx, result.Identity.UserID)
	if err != nil {
		return c.fail(token, err), err
	}

	snap, committed := c.commitAuthenticated(token, result.Identity, permissions, result.ExpiresAt, result.RefreshToken)
	if committed {
		c.publish(ctx, domain.SessionSignedIn, result.Identity.UserID, snap.Version)
	}
	return snap, nil
}

// Refresh rotates the session credentials and re-resolves permissions.
// Only an authenticated session can refresh; a refresh superseded by a
// newer request (including sign-out) is discarded.
func (c *SessionCoordinator) Refresh(ctx context.Context) (domain.SessionSnapshot, error) {
	token, refreshToken, identity, err := c.beginRefresh()
	if err != nil {
		return c.Snapshot(), err
	}

	result, err := retry.Do(ctx, c.policy, func(ctx context.Context) (*port.RefreshResult, error) {
		return c.identity.Refresh(ctx, refreshToken)
	})
	if err != nil {
		return c.fail(token, err), err
	}

	permissions, err := c.resolver.Resolve(ctx, identity.UserID)
	if err != nil {
		return c.fail(token, err), err
	}

	snap, committed := c.commitAuthenticated(token, identity, permissions, result.ExpiresAt, result.RefreshToken)
	if committed {
		c.publish(ctx, domain.SessionRefreshed, identity.UserID, snap.Version)
	}
	return snap, nil
}

// RefreshIfNeeded refreshes when the session expires within the supplied
// window. A refresh recently observed from a sibling context suppresses
// the attempt so siblings do not pile on; this is a target property, not a
// guarantee.
func (c *SessionCoordinator) RefreshIfNeeded(ctx context.Context, within time.Duration) (domain.SessionSnapshot, error) {
	c.mu.Lock()
	needed := c.snap.Phase == domain.PhaseAuthenticated &&
		c.snap.ExpiresAt.Sub(c.now()) <= within
	suppressed := !c.lastRemoteRefreshAt.IsZero() &&
		c.now().Sub(c.lastRemoteRefreshAt) < refreshSuppressWindow
	snap := c.snap
	c.mu.Unlock()

	if !needed || suppressed {
		return snap, nil
	}
	return c.Refresh(ctx)
}

// SignOut clears the session from any state, revokes the refresh token on
// a best-effort basis, and notifies sibling contexts.
func (c *SessionCoordinator) SignOut(ctx context.Context) domain.SessionSnapshot {
	c.mu.Lock()
	c.requestSeq++
	c.activeRequest = c.requestSeq
	refreshToken := c.refreshToken
	userID := ""
	if c.snap.Identity != nil {
		userID = c.snap.Identity.UserID
	}
	c.refreshToken = ""
	c.version++
	c.snap = domain.SessionSnapshot{Phase: domain.PhaseUnauthenticated, Version: c.version}
	c.countPhase(domain.PhaseUnauthenticated)
	snap := c.snap
	c.mu.Unlock()

	if refreshToken != "" {
		if err := c.identity.SignOut(ctx, refreshToken); err != nil {
			c.logger.Warn("refresh token revocation failed", zap.Error(err))
		}
	}

	c.publish(ctx, domain.SessionSignedOut, userID, snap.Version)
	c.publishSessionEnded(ctx, userID)
	return snap
}

func (c *SessionCoordinator) publishSessionEnded(ctx context.Context, userID string) {
	if c.events == nil || userID == "" {
		return
	}
	event := domain.SessionEndedEvent{
		EventID:  uuid.NewString(),
		UserID:   userID,
		OriginID: c.originID,
		Reason:   "signed_out",
		EndedAt:  c.now(),
	}
	if err := c.events.PublishSessionEnded(ctx, event); err != nil {
		c.logger.Warn("publish session ended event failed", zap.Error(err))
	}
}

func (c *SessionCoordinator) beginSignIn() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestSeq++
	c.activeRequest = c.requestSeq
	c.refreshToken = ""
	c.version++
	c.snap = domain.SessionSnapshot{Phase: domain.PhaseAuthenticating, Version: c.version}
	c.countPhase(domain.PhaseAuthenticating)
	return c.requestSeq
}

func (c *SessionCoordinator) beginRefresh() (token uint64, refreshToken string, identity domain.Identity, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap.Phase != domain.PhaseAuthenticated || c.snap.Identity == nil || c.refreshToken == "" {
		return 0, "", domain.Identity{}, ErrNotAuthenticated
	}
	c.requestSeq++
	c.activeRequest = c.requestSeq
	identity = *c.snap.Identity
	refreshToken = c.refreshToken
	c.version++
	snap := c.snap
	snap.Phase = domain.PhaseRefreshing
	snap.Version = c.version
	c.snap = snap
	c.countPhase(domain.PhaseRefreshing)
	return c.requestSeq, refreshToken, identity, nil
}

func (c *SessionCoordinator) commitAuthenticated(
	token uint64,
	identity domain.Identity,
	permissions domain.PermissionSet,
	expiresAt time.Time,
	refreshToken string,
) (domain.SessionSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.activeRequest {
		// Superseded by a newer sign-in, refresh, or sign-out.
		return c.snap, false
	}
	c.refreshToken = refreshToken
	c.version++
	c.snap = domain.SessionSnapshot{
		Phase:       domain.PhaseAuthenticated,
		Identity:    &identity,
		Permissions: permissions,
		ExpiresAt:   expiresAt,
		Version:     c.version,
	}
	c.countPhase(domain.PhaseAuthenticated)
	return c.snap, true
}

func (c *SessionCoordinator) fail(token uint64, cause error) domain.SessionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.activeRequest {
		return c.snap
	}
	c.refreshToken = ""
	c.version++
	c.snap = domain.SessionSnapshot{Phase: domain.PhaseFailed, Err: cause, Version: c.version}
	c.countPhase(domain.PhaseFailed)
	return c.snap
}

// applyRemote folds an event from a sibling context into local state.
// Duplicate and out-of-order deliveries are dropped via the event version,
// tracked per origin since each sibling numbers its own events.
func (c *SessionCoordinator) applyRemote(event domain.SessionEvent) {
	if event.OriginID == c.originID {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if event.Version <= c.lastRemote[event.OriginID] {
		return
	}
	c.lastRemote[event.OriginID] = event.Version

	switch event.Kind {
	case domain.SessionSignedOut:
		// A sign-out anywhere signs out everywhere, superseding any
		// operation in flight here.
		c.requestSeq++
		c.activeRequest = c.requestSeq
		c.refreshToken = ""
		c.version++
		c.snap = domain.SessionSnapshot{Phase: domain.PhaseUnauthenticated, Version: c.version}
		c.countPhase(domain.PhaseUnauthenticated)
	case domain.SessionRefreshed:
		c.lastRemoteRefreshAt = c.now()
	case domain.SessionSignedIn:
		// Informational: credentials never cross the channel, so a
		// sibling sign-in changes nothing here.
	}
}

// publish sends a session event on the channel. Failures are logged and
// dropped; the channel contract is fire and forget.
func (c *SessionCoordinator) publish(ctx context.Context, kind domain.SessionEventKind, userID string, version uint64) {
	if c.broadcast == nil {
		return
	}
	event := domain.SessionEvent{
		Kind:     kind,
		OriginID: c.originID,
		UserID:   userID,
		Version:  version,
		At:       c.now(),
	}
	if err := c.broadcast.Publish(ctx, event); err != nil {
		if c.metrics != nil {
			c.metrics.BroadcastFailures.Inc()
		}
		c.logger.Warn("session event publish failed",
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
}
