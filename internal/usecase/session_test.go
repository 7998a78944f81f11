package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/arklim/social-platform-authz/internal/core/domain"
	"github.com/arklim/social-platform-authz/internal/core/port"
	"github.com/arklim/social-platform-authz/internal/infra/bus"
	"github.com/arklim/social-platform-authz/internal/infra/telemetry"
	"github.com/arklim/social-platform-authz/internal/retry"
)

func fastPolicy(maxAttempts int) retry.Policy {
	return retry.Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		Multiplier:  2.0,
		Classify:    AuthErrorClassifier,
	}
}

func signInResult(userID string, expiresIn time.Duration) *port.SignInResult {
	return &port.SignInResult{
		Identity:     domain.Identity{UserID: userID, Username: userID},
		AccessToken:  "access-" + userID,
		RefreshToken: "refresh-" + userID,
		ExpiresAt:    time.Now().Add(expiresIn),
	}
}

func testDirectory(userID string) *fakeDirectory {
	dir := newFakeDirectory()
	dir.roles[userID] = []domain.Role{{ID: "r-editor", Code: "editor", Level: 50, IsActive: true}}
	dir.grants["r-editor"] = []domain.PermissionCode{"posts:view", "posts:edit"}
	return dir
}

func TestSignInResolvesPermissionsBeforeAuthenticated(t *testing.T) {
	identity := &fakeIdentity{
		signIn: func(int) (*port.SignInResult, error) {
			return signInResult("user-1", time.Hour), nil
		},
	}
	resolver := NewPermissionResolver(testDirectory("user-1"), nil)
	broadcast := &recordingBroadcaster{}

	coord := NewSessionCoordinator(identity, resolver, broadcast, fastPolicy(3), nil)

	snap, err := coord.SignIn(context.Background(), port.Credentials{Identifier: "user-1", Password: "pw"})
	if err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}

	if snap.Phase != domain.PhaseAuthenticated {
		t.Fatalf("expected Authenticated, got %s", snap.Phase)
	}
	if snap.Identity == nil || snap.Identity.UserID != "user-1" {
		t.Fatalf("unexpected identity: %+v", snap.Identity)
	}
	if !snap.Permissions.HasAll("posts:view", "posts:edit") {
		t.Fatalf("authenticated snapshot has unpopulated permissions: %v", snap.Permissions.Codes())
	}

	events := broadcast.published()
	if len(events) != 1 || events[0].Kind != domain.SessionSignedIn {
		t.Fatalf("expected one signed_in event, got %+v", events)
	}
}

func TestSignInTerminalErrorShortCircuits(t *testing.T) {
	identity := &fakeIdentity{
		signIn: func(int) (*port.SignInResult, error) {
			return nil, ErrInvalidCredentials
		},
	}
	resolver := NewPermissionResolver(newFakeDirectory(), nil)

	coord := NewSessionCoordinator(identity, resolver, &recordingBroadcaster{}, fastPolicy(5), nil)

	snap, err := coord.SignIn(context.Background(), port.Credentials{})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if snap.Phase != domain.PhaseFailed {
		t.Fatalf("expected Failed, got %s", snap.Phase)
	}
	if calls, _, _ := identity.calls(); calls != 1 {
		t.Fatalf("terminal error must not retry, got %d attempts", calls)
	}
}

func TestSignInRetriesTransientFailures(t *testing.T) {
	errTransient := errors.New("upstream unavailable")
	identity := &fakeIdentity{
		signIn: func(call int) (*port.SignInResult, error) {
			if call < 3 {
				return nil, errTransient
			}
			return signInResult("user-1", time.Hour), nil
		},
	}
	resolver := NewPermissionResolver(testDirectory("user-1"), nil)

	coord := NewSessionCoordinator(identity, resolver, &recordingBroadcaster{}, fastPolicy(3), nil)

	snap, err := coord.SignIn(context.Background(), port.Credentials{})
	if err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}
	if snap.Phase != domain.PhaseAuthenticated {
		t.Fatalf("expected Authenticated after retries, got %s", snap.Phase)
	}
	if calls, _, _ := identity.calls(); calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestSignInExhaustionReturnsLastError(t *testing.T) {
	errTransient := errors.New("upstream unavailable")
	identity := &fakeIdentity{
		signIn: func(int) (*port.SignInResult, error) {
			return nil, errTransient
		},
	}
	resolver := NewPermissionResolver(newFakeDirectory(), nil)

	coord := NewSessionCoordinator(identity, resolver, &recordingBroadcaster{}, fastPolicy(2), nil)

	snap, err := coord.SignIn(context.Background(), port.Credentials{})
	if err != errTransient {
		t.Fatalf("exhaustion must return the last error unwrapped, got %v", err)
	}
	if snap.Phase != domain.PhaseFailed {
		t.Fatalf("expected Failed, got %s", snap.Phase)
	}
	if calls, _, _ := identity.calls(); calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestSignOutSupersedesInFlightSignIn(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	identity := &fakeIdentity{
		signIn: func(int) (*port.SignInResult, error) {
			close(started)
			<-release
			return signInResult("user-1", time.Hour), nil
		},
	}
	resolver := NewPermissionResolver(testDirectory("user-1"), nil)
	broadcast := &recordingBroadcaster{}

	coord := NewSessionCoordinator(identity, resolver, broadcast, fastPolicy(1), nil)

	done := make(chan domain.SessionSnapshot, 1)
	go func() {
		snap, _ := coord.SignIn(context.Background(), port.Credentials{})
		done <- snap
	}()

	<-started
	coord.SignOut(context.Background())
	close(release)

	snap := <-done
	if snap.Phase != domain.PhaseUnauthenticated {
		t.Fatalf("superseded sign-in must not commit, got %s", snap.Phase)
	}
	if final := coord.Snapshot(); final.Phase != domain.PhaseUnauthenticated {
		t.Fatalf("expected Unauthenticated after sign-out, got %s", final.Phase)
	}

	for _, event := range broadcast.published() {
		if event.Kind == domain.SessionSignedIn {
			t.Fatal("superseded sign-in must not broadcast signed_in")
		}
	}
}

func TestRemoteSignOutForcesUnauthenticated(t *testing.T) {
	sharedBus := bus.New(nil)
	dir := testDirectory("user-1")

	makeCoord := func() *SessionCoordinator {
		identity := &fakeIdentity{
			signIn: func(int) (*port.SignInResult, error) {
				return signInResult("user-1", time.Hour), nil
			},
		}
		return NewSessionCoordinator(identity, NewPermissionResolver(dir, nil), sharedBus, fastPolicy(1), nil)
	}

	a := makeCoord()
	b := makeCoord()

	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start a: %v", err)
	}
	if err := b.Start(ctx); err != nil {
		t.Fatalf("Start b: %v", err)
	}

	if _, err := a.SignIn(ctx, port.Credentials{}); err != nil {
		t.Fatalf("SignIn a: %v", err)
	}
	if _, err := b.SignIn(ctx, port.Credentials{}); err != nil {
		t.Fatalf("SignIn b: %v", err)
	}

	authz := NewAuthorizationContext(a)
	if !authz.HasPermission("posts:view") {
		t.Fatal("expected posts:view before remote sign-out")
	}

	b.SignOut(ctx)

	if snap := a.Snapshot(); snap.Phase != domain.PhaseUnauthenticated {
		t.Fatalf("remote sign-out must force Unauthenticated, got %s", snap.Phase)
	}
	if authz.HasPermission("posts:view") {
		t.Fatal("predicates must fail closed after remote sign-out")
	}
	if authz.HasAllPermissions() {
		t.Fatal("vacuous truth must not apply when signed out")
	}
}

func TestRemoteSignOutAppliedAfterChattierSibling(t *testing.T) {
	sharedBus := bus.New(nil)
	dir := testDirectory("user-1")

	makeCoord := func() *SessionCoordinator {
		identity := &fakeIdentity{
			signIn: func(int) (*port.SignInResult, error) {
				return signInResult("user-1", time.Hour), nil
			},
			refresh: func(int) (*port.RefreshResult, error) {
				return &port.RefreshResult{
					AccessToken:  "access-2",
					RefreshToken: "refresh-2",
					ExpiresAt:    time.Now().Add(time.Hour),
				}, nil
			},
		}
		return NewSessionCoordinator(identity, NewPermissionResolver(dir, nil), sharedBus, fastPolicy(1), nil)
	}

	a := makeCoord()
	b := makeCoord()
	c := makeCoord()

	ctx := context.Background()
	for name, coord := range map[string]*SessionCoordinator{"a": a, "b": b, "c": c} {
		if err := coord.Start(ctx); err != nil {
			t.Fatalf("Start %s: %v", name, err)
		}
	}

	if _, err := a.SignIn(ctx, port.Credentials{}); err != nil {
		t.Fatalf("SignIn a: %v", err)
	}

	// B's refresh chain drives its own event versions well past anything
	// C will ever broadcast.
	if _, err := b.SignIn(ctx, port.Credentials{}); err != nil {
		t.Fatalf("SignIn b: %v", err)
	}
	if _, err := b.Refresh(ctx); err != nil {
		t.Fatalf("Refresh b: %v", err)
	}
	if _, err := b.Refresh(ctx); err != nil {
		t.Fatalf("second Refresh b: %v", err)
	}

	// C signs in fresh and signs out; its event versions are low, but the
	// sign-out must still reach A.
	if _, err := c.SignIn(ctx, port.Credentials{}); err != nil {
		t.Fatalf("SignIn c: %v", err)
	}
	c.SignOut(ctx)

	if snap := a.Snapshot(); snap.Phase != domain.PhaseUnauthenticated {
		t.Fatalf("sign-out from a low-version origin was dropped, a is %s", snap.Phase)
	}
	if snap := b.Snapshot(); snap.Phase != domain.PhaseUnauthenticated {
		t.Fatalf("sign-out from a low-version origin was dropped, b is %s", snap.Phase)
	}
}

func TestRemoteRefreshSuppressesProactiveRefresh(t *testing.T) {
	sharedBus := bus.New(nil)
	dir := testDirectory("user-1")

	newIdentity := func() *fakeIdentity {
		return &fakeIdentity{
			signIn: func(int) (*port.SignInResult, error) {
				return signInResult("user-1", time.Minute), nil
			},
			refresh: func(int) (*port.RefreshResult, error) {
				return &port.RefreshResult{
					AccessToken:  "access-2",
					RefreshToken: "refresh-2",
					ExpiresAt:    time.Now().Add(time.Hour),
				}, nil
			},
		}
	}

	identityA := newIdentity()
	a := NewSessionCoordinator(identityA, NewPermissionResolver(dir, nil), sharedBus, fastPolicy(1), nil)
	b := NewSessionCoordinator(newIdentity(), NewPermissionResolver(dir, nil), sharedBus, fastPolicy(1), nil)

	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start a: %v", err)
	}
	if err := b.Start(ctx); err != nil {
		t.Fatalf("Start b: %v", err)
	}

	if _, err := a.SignIn(ctx, port.Credentials{}); err != nil {
		t.Fatalf("SignIn a: %v", err)
	}
	if _, err := b.SignIn(ctx, port.Credentials{}); err != nil {
		t.Fatalf("SignIn b: %v", err)
	}

	// B refreshes; A observes it on the shared channel.
	if _, err := b.Refresh(ctx); err != nil {
		t.Fatalf("Refresh b: %v", err)
	}

	// A's own session expires within the window, but the recently observed
	// sibling refresh suppresses the attempt.
	if _, err := a.RefreshIfNeeded(ctx, time.Hour); err != nil {
		t.Fatalf("RefreshIfNeeded a: %v", err)
	}

	if _, refreshCalls, _ := identityA.calls(); refreshCalls != 0 {
		t.Fatalf("expected suppressed refresh, got %d refresh calls", refreshCalls)
	}
}

func TestRefreshRequiresAuthenticatedSession(t *testing.T) {
	coord := NewSessionCoordinator(&fakeIdentity{}, NewPermissionResolver(newFakeDirectory(), nil), &recordingBroadcaster{}, fastPolicy(1), nil)

	if _, err := coord.Refresh(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestRefreshReResolvesPermissions(t *testing.T) {
	dir := testDirectory("user-1")
	identity := &fakeIdentity{
		signIn: func(int) (*port.SignInResult, error) {
			return signInResult("user-1", time.Hour), nil
		},
		refresh: func(int) (*port.RefreshResult, error) {
			return &port.RefreshResult{
				AccessToken:  "access-2",
				RefreshToken: "refresh-2",
				ExpiresAt:    time.Now().Add(time.Hour),
			}, nil
		},
	}

	coord := NewSessionCoordinator(identity, NewPermissionResolver(dir, nil), &recordingBroadcaster{}, fastPolicy(1), nil)

	ctx := context.Background()
	if _, err := coord.SignIn(ctx, port.Credentials{}); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	// Grants change between sign-in and refresh.
	dir.mu.Lock()
	dir.grants["r-editor"] = []domain.PermissionCode{"posts:view"}
	dir.mu.Unlock()

	snap, err := coord.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if snap.Phase != domain.PhaseAuthenticated {
		t.Fatalf("expected Authenticated, got %s", snap.Phase)
	}
	if snap.Permissions.Has("posts:edit") {
		t.Fatal("refresh must re-resolve permissions, stale grant survived")
	}
}

func TestVersionsAreMonotonic(t *testing.T) {
	identity := &fakeIdentity{
		signIn: func(int) (*port.SignInResult, error) {
			return signInResult("user-1", time.Hour), nil
		},
	}
	coord := NewSessionCoordinator(identity, NewPermissionResolver(testDirectory("user-1"), nil), &recordingBroadcaster{}, fastPolicy(1), nil)

	ctx := context.Background()
	last := coord.Snapshot().Version

	snap, err := coord.SignIn(ctx, port.Credentials{})
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if snap.Version <= last {
		t.Fatalf("version did not advance: %d -> %d", last, snap.Version)
	}
	last = snap.Version

	snap = coord.SignOut(ctx)
	if snap.Version <= last {
		t.Fatalf("version did not advance: %d -> %d", last, snap.Version)
	}
}

func TestPublishFailuresAreDropped(t *testing.T) {
	identity := &fakeIdentity{
		signIn: func(int) (*port.SignInResult, error) {
			return signInResult("user-1", time.Hour), nil
		},
	}
	broadcast := &recordingBroadcaster{err: errors.New("channel down")}

	coord := NewSessionCoordinator(identity, NewPermissionResolver(testDirectory("user-1"), nil), broadcast, fastPolicy(1), nil)

	snap, err := coord.SignIn(context.Background(), port.Credentials{})
	if err != nil {
		t.Fatalf("SignIn must succeed despite publish failure: %v", err)
	}
	if snap.Phase != domain.PhaseAuthenticated {
		t.Fatalf("expected Authenticated, got %s", snap.Phase)
	}
}

func TestSignOutPublishesSessionEndedEvent(t *testing.T) {
	identity := &fakeIdentity{
		signIn: func(int) (*port.SignInResult, error) {
			return signInResult("user-1", time.Hour), nil
		},
	}
	events := &recordingEvents{}

	coord := NewSessionCoordinator(identity, NewPermissionResolver(testDirectory("user-1"), nil), &recordingBroadcaster{}, fastPolicy(1), nil)
	coord.WithEventPublisher(events)

	ctx := context.Background()
	if _, err := coord.SignIn(ctx, port.Credentials{}); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	coord.SignOut(ctx)

	ended := events.ended()
	if len(ended) != 1 {
		t.Fatalf("expected one session ended event, got %d", len(ended))
	}
	if ended[0].UserID != "user-1" {
		t.Fatalf("unexpected user id: %s", ended[0].UserID)
	}
	if ended[0].OriginID != coord.OriginID() {
		t.Fatalf("unexpected origin id: %s", ended[0].OriginID)
	}
	if ended[0].Reason != "signed_out" {
		t.Fatalf("unexpected reason: %s", ended[0].Reason)
	}

	// Signing out without a session publishes nothing further.
	coord.SignOut(ctx)
	if got := len(events.ended()); got != 1 {
		t.Fatalf("expected no event for anonymous sign-out, got %d", got)
	}
}

func TestSessionMetricsAreRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := telemetry.NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	identity := &fakeIdentity{
		signIn: func(int) (*port.SignInResult, error) {
			return signInResult("user-1", time.Hour), nil
		},
	}
	resolver := NewPermissionResolver(testDirectory("user-1"), nil)
	resolver.WithMetrics(m)
	broadcast := &recordingBroadcaster{err: errors.New("channel down")}

	coord := NewSessionCoordinator(identity, resolver, broadcast, fastPolicy(1), nil)
	coord.WithMetrics(m)

	ctx := context.Background()
	if _, err := coord.SignIn(ctx, port.Credentials{}); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	coord.SignOut(ctx)

	for phase, want := range map[string]float64{
		"authenticating":  1,
		"authenticated":   1,
		"unauthenticated": 1,
	} {
		if got := testutil.ToFloat64(m.SessionPhases.WithLabelValues(phase)); got != want {
			t.Errorf("phase %s count = %v, want %v", phase, got, want)
		}
	}

	// Both the signed_in and signed_out broadcasts fail.
	if got := testutil.ToFloat64(m.BroadcastFailures); got != 2 {
		t.Errorf("broadcast failures = %v, want 2", got)
	}

	if got := histogramSampleCount(t, reg, "authz_resolved_permission_set_size"); got != 1 {
		t.Errorf("resolved set size observations = %d, want 1", got)
	}
}

func histogramSampleCount(t *testing.T, reg prometheus.Gatherer, name string) uint64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		var total uint64
		for _, metric := range family.GetMetric() {
			total += metric.GetHistogram().GetSampleCount()
		}
		return total
	}
	t.Fatalf("metric %s not found", name)
	return 0
}
