package port

import (
	"context"

	"github.com/arklim/social-platform-authz/internal/core/domain"
)

// RoleDirectory is the narrow read capability the permission resolver
// depends on. Implementations return an immutable snapshot per call.
type RoleDirectory interface {
	ListRolesForUser(ctx context.Context, userID string) ([]domain.Role, error)
	ListGrantsForRole(ctx context.Context, roleID string) ([]domain.PermissionCode, error)
}
