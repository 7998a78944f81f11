package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-authz/internal/core/domain"
	"github.com/arklim/social-platform-authz/internal/core/port"
	"github.com/arklim/social-platform-authz/internal/infra/security"
	"github.com/arklim/social-platform-authz/internal/repository"
	"github.com/arklim/social-platform-authz/internal/retry"
)

var (
	// ErrInvalidCredentials indicates the provided identifier or password are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInactiveAccount indicates the account is disabled.
	ErrInactiveAccount = errors.New("account is not active")
	// ErrInvalidRefreshToken indicates the provided refresh token does not exist or was revoked.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrExpiredRefreshToken indicates the provided refresh token has expired.
	ErrExpiredRefreshToken = errors.New("refresh token expired")
)

// AuthErrorClassifier separates credential rejections, which no retry can
// fix, from transient infrastructure failures.
func AuthErrorClassifier(err error) retry.Class {
	switch {
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrInactiveAccount),
		errors.Is(err, ErrInvalidRefreshToken),
		errors.Is(err, ErrExpiredRefreshToken):
		return retry.Terminal
	}
	return retry.Retryable
}

// IdentityService is the local credential collaborator: argon2id password
// verification, JWT access tokens, and hash-keyed refresh token rotation.
type IdentityService struct {
	users      port.UserRepository
	tokens     port.TokenRepository
	signer     *security.TokenSigner
	refreshTTL time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewIdentityService constructs an IdentityService.
func NewIdentityService(
	users port.UserRepository,
	tokens port.TokenRepository,
	signer *security.TokenSigner,
	refreshTTL time.Duration,
	logger *zap.Logger,
) *IdentityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	s := &IdentityService{
		users:      users,
		tokens:     tokens,
		signer:     signer,
		refreshTTL: refreshTTL,
		logger:     logger,
	}
	s.now = func() time.Time { return time.Now().UTC() }
	return s
}

// WithClock overrides the internal clock for deterministic tests.
func (s *IdentityService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// SignIn validates credentials and issues an access/refresh token pair.
func (s *IdentityService) SignIn(ctx context.Context, creds port.Credentials) (*port.SignInResult, error) {
	identifier := strings.TrimSpace(creds.Identifier)
	if identifier == "" || creds.Password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !user.IsActive {
		return nil, ErrInactiveAccount
	}

	ok, err := security.VerifyPassword(creds.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	accessToken, expiresAt, err := s.signer.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	refreshToken, err := s.issueRefreshToken(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &port.SignInResult{
		Identity: domain.Identity{
			UserID:   user.ID,
			Username: user.Username,
			Email:    user.Email,
		},
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}

// Refresh validates and rotates the refresh token, then issues a new
// access token. The presented token is revoked on success.
func (s *IdentityService) Refresh(ctx context.Context, refreshToken string) (*port.RefreshResult, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}

	record, err := s.tokens.GetRefreshTokenByHash(ctx, security.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}

	if record.RevokedAt != nil {
		return nil, ErrInvalidRefreshToken
	}
	if record.Expired(s.now()) {
		return nil, ErrExpiredRefreshToken
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrInactiveAccount
	}

	accessToken, expiresAt, err := s.signer.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	rotated, err := s.issueRefreshToken(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.RevokeRefreshToken(ctx, record.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("revoke rotated refresh token: %w", err)
	}

	return &port.RefreshResult{
		AccessToken:  accessToken,
		RefreshToken: rotated,
		ExpiresAt:    expiresAt,
	}, nil
}

// SignOut revokes the presented refresh token. An unknown token is not an
// error: sign-out is idempotent.
func (s *IdentityService) SignOut(ctx context.Context, refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil
	}

	record, err := s.tokens.GetRefreshTokenByHash(ctx, security.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup refresh token: %w", err)
	}

	if err := s.tokens.RevokeRefreshToken(ctx, record.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// ParseAccessToken validates a bearer token and returns the subject user id.
func (s *IdentityService) ParseAccessToken(token string) (string, error) {
	claims, err := s.signer.Parse(token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func (s *IdentityService) issueRefreshToken(ctx context.Context, userID string) (string, error) {
	raw, err := security.GenerateSecureToken(32)
	if err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}

	now := s.now()
	record := domain.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: security.HashToken(raw),
		CreatedAt: now,
		ExpiresAt: now.Add(s.refreshTTL),
	}

	if err := s.tokens.CreateRefreshToken(ctx, record); err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	return raw, nil
}

var _ port.IdentityProvider = (*IdentityService)(nil)
