package usecase

import (
	"github.com/arklim/social-platform-authz/internal/core/domain"
)

// AuthorizationContext exposes the permission predicates bound to the
// session coordinator's current snapshot. Every predicate fails closed:
// while a sign-in or refresh is in flight, and whenever no session is
// established, all checks return false. IsLoading lets callers tell
// "denied" apart from "not yet known".
type AuthorizationContext struct {
	coordinator *SessionCoordinator
}

// NewAuthorizationContext constructs an AuthorizationContext.
func NewAuthorizationContext(coordinator *SessionCoordinator) *AuthorizationContext {
	return &AuthorizationContext{coordinator: coordinator}
}

// Identity returns a copy of the authenticated identity, or nil.
func (a *AuthorizationContext) Identity() *domain.Identity {
	snap := a.coordinator.Snapshot()
	if !snap.Authenticated() {
		return nil
	}
	identity := *snap.Identity
	return &identity
}

// IsLoading reports whether an exchange is in flight.
func (a *AuthorizationContext) IsLoading() bool {
	return a.coordinator.Snapshot().Loading()
}

// Snapshot returns the underlying session projection.
func (a *AuthorizationContext) Snapshot() domain.SessionSnapshot {
	return a.coordinator.Snapshot()
}

// HasPermission reports whether the session holds the exact code.
func (a *AuthorizationContext) HasPermission(code domain.PermissionCode) bool {
	snap := a.coordinator.Snapshot()
	return snap.Authenticated() && snap.Permissions.Has(code)
}

// HasAnyPermission reports whether the session holds at least one of the codes.
func (a *AuthorizationContext) HasAnyPermission(codes ...domain.PermissionCode) bool {
	snap := a.coordinator.Snapshot()
	return snap.Authenticated() && snap.Permissions.HasAny(codes...)
}

// HasAllPermissions reports whether the session holds every code. The
// vacuous-truth edge for an empty query applies only once authenticated.
func (a *AuthorizationContext) HasAllPermissions(codes ...domain.PermissionCode) bool {
	snap := a.coordinator.Snapshot()
	return snap.Authenticated() && snap.Permissions.HasAll(codes...)
}

// HasPermissionPattern reports whether any held code matches the wildcard pattern.
func (a *AuthorizationContext) HasPermissionPattern(pattern string) bool {
	snap := a.coordinator.Snapshot()
	return snap.Authenticated() && snap.Permissions.MatchesPattern(pattern)
}
