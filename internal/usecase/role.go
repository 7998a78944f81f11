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
	"github.com/arklim/social-platform-authz/internal/repository"
)

// Permission codes gating the privileged operations in this package.
const (
	PermissionRolesManage = domain.PermissionCode("roles:manage")
	PermissionUsersManage = domain.PermissionCode("users:manage")
)

var (
	// ErrPermissionDenied indicates the actor lacks the required permission.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrRoleExists indicates a role with the provided code already exists.
	ErrRoleExists = errors.New("role already exists")
	// ErrRoleNotFound indicates the requested role does not exist.
	ErrRoleNotFound = errors.New("role not found")
	// ErrSystemRoleProtected indicates the operation would alter a system role.
	ErrSystemRoleProtected = errors.New("system role is protected")
	// ErrRoleLevelDenied indicates the actor's authority does not dominate the target role.
	ErrRoleLevelDenied = errors.New("insufficient role level")
	// ErrInvalidRoleLevel indicates a level outside the allowed range.
	ErrInvalidRoleLevel = errors.New("role level out of range")
	// ErrInvalidPermissionCode indicates a grant code that is not canonical resource:action.
	ErrInvalidPermissionCode = errors.New("invalid permission code")
)

// CreateRoleInput captures the payload for creating a role.
type CreateRoleInput struct {
	Code   string
	Name   string
	Level  int
	Active bool
}

// UpdateRoleInput captures the payload for updating a role.
type UpdateRoleInput struct {
	ID     string
	Name   *string
	Level  *int
	Active *bool
}

// RoleService manages roles, assignments, and grants. All mutating
// operations require the actor to hold roles:manage; assignment and
// revocation additionally require the actor's highest role level to
// strictly dominate the target role's level.
type RoleService struct {
	roles    port.RoleRepository
	resolver *PermissionResolver
	events   port.EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewRoleService constructs a RoleService.
func NewRoleService(roles port.RoleRepository, resolver *PermissionResolver, events port.EventPublisher, logger *zap.Logger) *RoleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &RoleService{roles: roles, resolver: resolver, events: events, logger: logger}
	s.now = func() time.Time { return time.Now().UTC() }
	return s
}

// CreateRole provisions a new role.
func (s *RoleService) CreateRole(ctx context.Context, actorID string, input CreateRoleInput) (*domain.Role, error) {
	if err := s.requireManage(ctx, actorID); err != nil {
		return nil, err
	}

	code := strings.ToLower(strings.TrimSpace(input.Code))
	if code == "" {
		return nil, fmt.Errorf("role code is required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("role name is required")
	}
	if input.Level < domain.RoleLevelMin || input.Level > domain.RoleLevelMax {
		return nil, ErrInvalidRoleLevel
	}

	if existing, err := s.roles.GetByCode(ctx, code); err == nil && existing != nil {
		return nil, ErrRoleExists
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup role by code: %w", err)
	}

	role := domain.Role{
		ID:       uuid.NewString(),
		Code:     code,
		Name:     name,
		Level:    input.Level,
		IsActive: input.Active,
	}

	if err := s.roles.Create(ctx, role); err != nil {
		return nil, fmt.Errorf("create role: %w", err)
	}

	return &role, nil
}

// GetRole retrieves a role by ID.
func (s *RoleService) GetRole(ctx context.Context, roleID string) (*domain.Role, error) {
	role, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("get role: %w", err)
	}
	return role, nil
}

// ListRoles returns all roles.
func (s *RoleService) ListRoles(ctx context.Context) ([]domain.Role, error) {
	roles, err := s.roles.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

// UpdateRole modifies an existing role. System roles accept name changes
// only: their level and active flag are locked.
func (s *RoleService) UpdateRole(ctx context.Context, actorID string, input UpdateRoleInput) (*domain.Role, error) {
	if err := s.requireManage(ctx, actorID); err != nil {
		return nil, err
	}

	role, err := s.GetRole(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	if role.IsSystem && (input.Level != nil || input.Active != nil) {
		return nil, ErrSystemRoleProtected
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, fmt.Errorf("role name is required")
		}
		role.Name = name
	}
	if input.Level != nil {
		if *input.Level < domain.RoleLevelMin || *input.Level > domain.RoleLevelMax {
			return nil, ErrInvalidRoleLevel
		}
		role.Level = *input.Level
	}
	if input.Active != nil {
		role.IsActive = *input.Active
	}

	if err := s.roles.Update(ctx, *role); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("update role: %w", err)
	}

	return role, nil
}

// DeleteRole removes a role. System roles cannot be deleted.
func (s *RoleService) DeleteRole(ctx context.Context, actorID, roleID string) error {
	if err := s.requireManage(ctx, actorID); err != nil {
		return err
	}

	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return ErrSystemRoleProtected
	}

	if err := s.roles.Delete(ctx, roleID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRoleNotFound
		}
		return fmt.Errorf("delete role: %w", err)
	}
	return nil
}

// AssignRole assigns a role to a user. The actor's highest role level must
// strictly exceed the target role's level: HasRoleLevel gives the
// comparison primitive, the strict dominance is policy enforced here.
func (s *RoleService) AssignRole(ctx context.Context, actorID, userID, roleID string) error {
	if err := s.requireManage(ctx, actorID); err != nil {
		return err
	}

	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}

	if err := s.requireDominance(ctx, actorID, role); err != nil {
		return err
	}

	if err := s.roles.AssignToUser(ctx, userID, roleID); err != nil {
		return fmt.Errorf("assign role: %w", err)
	}

	s.publishRolesAssigned(ctx, actorID, userID, role)
	return nil
}

// RevokeRole removes a role assignment, under the same dominance policy as
// assignment.
func (s *RoleService) RevokeRole(ctx context.Context, actorID, userID, roleID, reason string) error {
	if err := s.requireManage(ctx, actorID); err != nil {
		return err
	}

	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return err
	}

	if err := s.requireDominance(ctx, actorID, role); err != nil {
		return err
	}

	if err := s.roles.RevokeFromUser(ctx, userID, roleID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRoleNotFound
		}
		return fmt.Errorf("revoke role: %w", err)
	}

	s.publishRolesRevoked(ctx, actorID, userID, role, reason)
	return nil
}

// AddGrants attaches permission codes to a role. Codes must be canonical
// resource:action strings; grants are stored verbatim, never generated.
func (s *RoleService) AddGrants(ctx context.Context, actorID, roleID string, codes []domain.PermissionCode) (int, error) {
	if err := s.requireManage(ctx, actorID); err != nil {
		return 0, err
	}
	if err := validateGrantCodes(codes); err != nil {
		return 0, err
	}

	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return 0, err
	}

	added, err := s.roles.AddGrants(ctx, roleID, codes)
	if err != nil {
		return 0, fmt.Errorf("add grants: %w", err)
	}

	s.publishGrantsChanged(ctx, actorID, role.ID, codes, nil)
	return added, nil
}

// RemoveGrants detaches permission codes from a role.
func (s *RoleService) RemoveGrants(ctx context.Context, actorID, roleID string, codes []domain.PermissionCode) (int, error) {
	if err := s.requireManage(ctx, actorID); err != nil {
		return 0, err
	}

	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return 0, err
	}

	removed, err := s.roles.RemoveGrants(ctx, roleID, codes)
	if err != nil {
		return 0, fmt.Errorf("remove grants: %w", err)
	}

	s.publishGrantsChanged(ctx, actorID, role.ID, nil, codes)
	return removed, nil
}

// ListGrants returns the permission codes attached to a role.
func (s *RoleService) ListGrants(ctx context.Context, roleID string) ([]domain.PermissionCode, error) {
	grants, err := s.roles.ListGrantsForRole(ctx, roleID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("list grants: %w", err)
	}
	return grants, nil
}

// ListRolesForUser returns the roles currently assigned to a user.
func (s *RoleService) ListRolesForUser(ctx context.Context, userID string) ([]domain.Role, error) {
	roles, err := s.roles.ListRolesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list roles for user: %w", err)
	}
	return roles, nil
}

func (s *RoleService) requireManage(ctx context.Context, actorID string) error {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return fmt.Errorf("actor id is required")
	}

	permissions, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return fmt.Errorf("resolve actor permissions: %w", err)
	}
	if !permissions.Has(PermissionRolesManage) {
		return ErrPermissionDenied
	}
	return nil
}

func (s *RoleService) requireDominance(ctx context.Context, actorID string, target *domain.Role) error {
	actorRoles, err := s.roles.ListRolesForUser(ctx, actorID)
	if err != nil {
		return fmt.Errorf("list actor roles: %w", err)
	}

	active := make([]domain.Role, 0, len(actorRoles))
	for _, role := range actorRoles {
		if role.IsActive {
			active = append(active, role)
		}
	}

	actorLevel := domain.HighestRoleLevel(active)
	if !domain.HasRoleLevel(actorLevel, target.Level+1) {
		return ErrRoleLevelDenied
	}
	return nil
}

func validateGrantCodes(codes []domain.PermissionCode) error {
	if len(codes) == 0 {
		return fmt.Errorf("at least one permission code is required")
	}
	for _, code := range codes {
		if _, _, ok := code.Parse(); !ok {
			return fmt.Errorf("%w: %q", ErrInvalidPermissionCode, code)
		}
	}
	return nil
}

func (s *RoleService) publishRolesAssigned(ctx context.Context, actorID, userID string, role *domain.Role) {
	if s.events == nil {
		return
	}
	event := domain.RolesAssignedEvent{
		EventID:    uuid.NewString(),
		UserID:     userID,
		RolesAdded: []domain.RoleChange{{RoleID: role.ID, RoleCode: role.Code}},
		AssignedBy: actorID,
		AssignedAt: s.now(),
	}
	if err := s.events.PublishRolesAssigned(ctx, event); err != nil {
		s.logger.Warn("publish roles assigned event failed", zap.Error(err))
	}
}

func (s *RoleService) publishRolesRevoked(ctx context.Context, actorID, userID string, role *domain.Role, reason string) {
	if s.events == nil {
		return
	}
	event := domain.RolesRevokedEvent{
		EventID:      uuid.NewString(),
		UserID:       userID,
		RolesRemoved: []domain.RoleChange{{RoleID: role.ID, RoleCode: role.Code}},
		RevokedBy:    actorID,
		RevokedAt:    s.now(),
		Reason:       reason,
	}
	if err := s.events.PublishRolesRevoked(ctx, event); err != nil {
		s.logger.Warn("publish roles revoked event failed", zap.Error(err))
	}
}

func (s *RoleService) publishGrantsChanged(ctx context.Context, actorID, roleID string, added, removed []domain.PermissionCode) {
	if s.events == nil {
		return
	}
	event := domain.GrantsChangedEvent{
		EventID:   uuid.NewString(),
		RoleID:    roleID,
		Added:     added,
		Removed:   removed,
		ChangedBy: actorID,
		ChangedAt: s.now(),
	}
	if err := s.events.PublishGrantsChanged(ctx, event); err != nil {
		s.logger.Warn("publish grants changed event failed", zap.Error(err))
	}
}
