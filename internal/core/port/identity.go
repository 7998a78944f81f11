package port

import (
	"context"
	"time"

	"github.com/arklim/social-platform-authz/internal/core/domain"
)

// Credentials carry a sign-in request.
type Credentials struct {
	Identifier string
	Password   string
}

// SignInResult is the successful outcome of a credential exchange.
type SignInResult struct {
	Identity     domain.Identity
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// RefreshResult is the successful outcome of a token rotation.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// IdentityProvider exchanges and rotates credentials. Implementations must
// surface invalid-credential and revoked-session failures with sentinel
// errors so callers can classify them as terminal rather than retryable.
type IdentityProvider interface {
	SignIn(ctx context.Context, creds Credentials) (*SignInResult, error)
	Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error)
	SignOut(ctx context.Context, refreshToken string) error
}
