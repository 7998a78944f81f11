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
)

var (
	// ErrUserExists indicates an account with the identifier already exists.
	ErrUserExists = errors.New("user already exists")
)

// CreateUserInput captures the payload for the privileged create-user operation.
type CreateUserInput struct {
	Username string
	Email    *string
	Password string
	Active   bool
}

// UserService handles privileged account management. Creation requires the
// actor to hold users:manage.
type UserService struct {
	users    port.UserRepository
	resolver *PermissionResolver
	events   port.EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewUserService constructs a UserService.
func NewUserService(users port.UserRepository, resolver *PermissionResolver, events port.EventPublisher, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &UserService{users: users, resolver: resolver, events: events, logger: logger}
	s.now = func() time.Time { return time.Now().UTC() }
	return s
}

// CreateUser provisions an account with a policy-checked, argon2id-hashed password.
func (s *UserService) CreateUser(ctx context.Context, actorID string, input CreateUserInput) (*domain.User, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, fmt.Errorf("actor id is required")
	}

	permissions, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("resolve actor permissions: %w", err)
	}
	if !permissions.Has(PermissionUsersManage) {
		return nil, ErrPermissionDenied
	}

	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}

	if err := security.ValidatePassword(input.Password, username); err != nil {
		return nil, err
	}

	if existing, err := s.users.GetByIdentifier(ctx, username); err == nil && existing != nil {
		return nil, ErrUserExists
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := security.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        input.Email,
		PasswordHash: hash,
		IsActive:     input.Active,
		CreatedAt:    s.now(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.publishUserCreated(ctx, actorID, user)

	sanitized := user
	sanitized.PasswordHash = ""
	return &sanitized, nil
}

func (s *UserService) publishUserCreated(ctx context.Context, actorID string, user domain.User) {
	if s.events == nil {
		return
	}
	event := domain.UserCreatedEvent{
		EventID:   uuid.NewString(),
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedBy: actorID,
		CreatedAt: user.CreatedAt,
	}
	if err := s.events.PublishUserCreated(ctx, event); err != nil {
		s.logger.Warn("publish user created event failed", zap.Error(err))
	}
}
