package port

import (
	"context"

	"github.com/arklim/social-platform-authz/internal/core/domain"
)

// RoleRepository handles role, assignment, and grant persistence.
type RoleRepository interface {
	Create(ctx context.Context, role domain.Role) error
	GetByID(ctx context.Context, id string) (*domain.Role, error)
	GetByCode(ctx context.Context, code string) (*domain.Role, error)
	List(ctx context.Context) ([]domain.Role, error)
	Update(ctx context.Context, role domain.Role) error
	Delete(ctx context.Context, id string) error

	AssignToUser(ctx context.Context, userID, roleID string) error
	RevokeFromUser(ctx context.Context, userID, roleID string) error
	ListRolesForUser(ctx context.Context, userID string) ([]domain.Role, error)

	AddGrants(ctx context.Context, roleID string, codes []domain.PermissionCode) (int, error)
	RemoveGrants(ctx context.Context, roleID string, codes []domain.PermissionCode) (int, error)
	ListGrantsForRole(ctx context.Context, roleID string) ([]domain.PermissionCode, error)
}
