package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/arklim/social-platform-authz/internal/core/domain"
	"github.com/arklim/social-platform-authz/internal/core/port"
	"github.com/arklim/social-platform-authz/internal/infra/telemetry"
	"github.com/arklim/social-platform-authz/internal/repository"
)

// PermissionResolver computes a user's effective permission set: the union
// of the grants of every active role assigned to the user. The result is
// recomputed from a fresh snapshot on every call; callers decide cadence.
type PermissionResolver struct {
	directory port.RoleDirectory
	logger    *zap.Logger
	metrics   *telemetry.Metrics
}

// NewPermissionResolver constructs a PermissionResolver.
func NewPermissionResolver(directory port.RoleDirectory, logger *zap.Logger) *PermissionResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PermissionResolver{directory: directory, logger: logger}
}

// WithMetrics attaches the resolved-set-size collector.
func (r *PermissionResolver) WithMetrics(m *telemetry.Metrics) {
	r.metrics = m
}

// Resolve returns the effective permission set for the user. A user with
// no assigned roles resolves to an empty set. An assignment referencing a
// role whose grants are missing contributes nothing; the inconsistency is
// logged, not surfaced, so one dangling reference cannot zero out the
// whole resolution.
func (r *PermissionResolver) Resolve(ctx context.Context, userID string) (domain.PermissionSet, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.NewPermissionSet(), fmt.Errorf("user id is required")
	}

	roles, err := r.directory.ListRolesForUser(ctx, userID)
	if err != nil {
		return domain.NewPermissionSet(), fmt.Errorf("list roles for user: %w", err)
	}

	effective := domain.NewPermissionSet()
	for _, role := range roles {
		if !role.IsActive {
			continue
		}

		grants, err := r.directory.ListGrantsForRole(ctx, role.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				r.logger.Warn("role assignment references missing grants",
					zap.String("user_id", userID),
					zap.String("role_id", role.ID),
				)
				continue
			}
			return domain.NewPermissionSet(), fmt.Errorf("list grants for role %s: %w", role.ID, err)
		}

		effective = effective.Union(domain.NewPermissionSet(grants...))
	}

	if r.metrics != nil {
		r.metrics.ResolvedSetSize.Observe(float64(effective.Len()))
	}

	return effective, nil
}
