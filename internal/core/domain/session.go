package domain

import "time"

// SessionPhase enumerates the session state machine.
type SessionPhase int

const (
	// PhaseUnauthenticated is the initial phase and the result of sign-out.
	PhaseUnauthenticated SessionPhase = iota
	// PhaseAuthenticating means a sign-in exchange is in flight.
	PhaseAuthenticating
	// PhaseAuthenticated means credentials succeeded and the effective
	// permission set has been resolved.
	PhaseAuthenticated
	// PhaseRefreshing means a token refresh is in flight.
	PhaseRefreshing
	// PhaseFailed means the last sign-in or refresh ended in a terminal
	// rejection or exhausted its retry budget. A fresh sign-in is allowed.
	PhaseFailed
)

func (p SessionPhase) String() string {
	switch p {
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseRefreshing:
		return "refreshing"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Identity describes the authenticated principal.
type Identity struct {
	UserID   string
	Username string
	Email    *string
}

// SessionSnapshot is an immutable read projection of the session state.
// The coordinator is the single writer; everything else holds copies.
type SessionSnapshot struct {
	Phase       SessionPhase
	Identity    *Identity
	Permissions PermissionSet
	ExpiresAt   time.Time
	Version     uint64
	Err         error
}

// Authenticated reports whether the snapshot carries a live identity.
func (s SessionSnapshot) Authenticated() bool {
	return s.Phase == PhaseAuthenticated && s.Identity != nil
}

// Loading reports whether an exchange is in flight and predicate results
// would be premature.
func (s SessionSnapshot) Loading() bool {
	return s.Phase == PhaseAuthenticating || s.Phase == PhaseRefreshing
}

// SessionEventKind tags cross-context session notifications.
type SessionEventKind string

const (
	SessionSignedIn  SessionEventKind = "session.signed_in"
	SessionSignedOut SessionEventKind = "session.signed_out"
	SessionRefreshed SessionEventKind = "session.refreshed"
)

// SessionEvent is broadcast between execution contexts sharing a session
// channel. Delivery is fire-and-forget: duplicates and reordering are
// tolerated by applying events idempotently keyed on Version.
type SessionEvent struct {
	Kind     SessionEventKind `json:"kind"`
	OriginID string           `json:"origin_id"`
	UserID   string           `json:"user_id,omitempty"`
	Version  uint64           `json:"version"`
	At       time.Time        `json:"at"`
}
