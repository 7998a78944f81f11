package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/arklim/social-platform-authz/internal/core/port"
)

func TestAuthorizationContextFailsClosedWhenSignedOut(t *testing.T) {
	coord := NewSessionCoordinator(&fakeIdentity{}, NewPermissionResolver(newFakeDirectory(), nil), &recordingBroadcaster{}, fastPolicy(1), nil)
	authz := NewAuthorizationContext(coord)

	if authz.Identity() != nil {
		t.Fatal("expected nil identity when signed out")
	}
	if authz.IsLoading() {
		t.Fatal("expected not loading when signed out")
	}
	if authz.HasPermission("posts:view") {
		t.Fatal("expected denial when signed out")
	}
	if authz.HasAnyPermission("posts:view", "posts:edit") {
		t.Fatal("expected denial when signed out")
	}
	if authz.HasAllPermissions() {
		t.Fatal("vacuous truth must not apply when signed out")
	}
	if authz.HasPermissionPattern("posts:*") {
		t.Fatal("expected pattern denial when signed out")
	}
}

func TestAuthorizationContextAfterSignIn(t *testing.T) {
	identity := &fakeIdentity{
		signIn: func(int) (*port.SignInResult, error) {
			return signInResult("user-1", time.Hour), nil
		},
	}
	coord := NewSessionCoordinator(identity, NewPermissionResolver(testDirectory("user-1"), nil), &recordingBroadcaster{}, fastPolicy(1), nil)
	authz := NewAuthorizationContext(coord)

	if _, err := coord.SignIn(context.Background(), port.Credentials{}); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	if id := authz.Identity(); id == nil || id.UserID != "user-1" {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if !authz.HasPermission("posts:view") {
		t.Fatal("expected posts:view")
	}
	if authz.HasPermission("users:delete") {
		t.Fatal("unexpected users:delete")
	}
	if !authz.HasAnyPermission("users:delete", "posts:edit") {
		t.Fatal("expected any-of to pass via posts:edit")
	}
	if !authz.HasAllPermissions() {
		t.Fatal("empty all-of is vacuously true once authenticated")
	}
	if authz.HasAnyPermission() {
		t.Fatal("empty any-of must be false")
	}
	if !authz.HasPermissionPattern("posts:*") {
		t.Fatal("expected posts:* to match")
	}
	if authz.HasPermissionPattern("users:*") {
		t.Fatal("users:* must not match")
	}
}

func TestAuthorizationContextFailsClosedAfterFailure(t *testing.T) {
	identity := &fakeIdentity{
		signIn: func(int) (*port.SignInResult, error) {
			return nil, ErrInvalidCredentials
		},
	}
	coord := NewSessionCoordinator(identity, NewPermissionResolver(newFakeDirectory(), nil), &recordingBroadcaster{}, fastPolicy(1), nil)
	authz := NewAuthorizationContext(coord)

	if _, err := coord.SignIn(context.Background(), port.Credentials{}); err == nil {
		t.Fatal("expected sign-in failure")
	}

	if authz.HasPermission("posts:view") {
		t.Fatal("expected denial after failed sign-in")
	}
	if authz.IsLoading() {
		t.Fatal("Failed is a settled state, not loading")
	}
}
