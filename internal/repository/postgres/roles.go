package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/social-platform-authz/internal/core/domain"
	"github.com/arklim/social-platform-authz/internal/core/port"
	"github.com/arklim/social-platform-authz/internal/repository"
)

// RoleRepository implements role, assignment, and grant persistence. It also
// satisfies port.RoleDirectory, which the permission resolver reads from.
type RoleRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewRoleRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewRoleRepository(exec pgExecutor) *RoleRepository {
	repo := &RoleRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance executing within the provided transaction.
func (r *RoleRepository) WithTx(tx pgx.Tx) *RoleRepository {
	if tx == nil {
		return r
	}
	return &RoleRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

const roleColumns = "id, code, name, level, is_system, is_active"

func scanRole(row pgx.Row) (*domain.Role, error) {
	var role domain.Role
	if err := row.Scan(&role.ID, &role.Code, &role.Name, &role.Level, &role.IsSystem, &role.IsActive); err != nil {
		return nil, err
	}
	return &role, nil
}

// Create inserts a new role.
func (r *RoleRepository) Create(ctx context.Context, role domain.Role) error {
	stmt, args, err := r.builder.Insert("authz.roles").
		Columns("id", "code", "name", "level", "is_system", "is_active").
		Values(role.ID, role.Code, role.Name, role.Level, role.IsSystem, role.IsActive).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert role sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert role: %w", err)
	}

	return nil
}

// GetByID retrieves a role by its ID.
func (r *RoleRepository) GetByID(ctx context.Context, id string) (*domain.Role, error) {
	stmt, args, err := r.builder.Select(roleColumns).
		From("authz.roles").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select role sql: %w", err)
	}

	role, err := scanRole(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan role: %w", err)
	}

	return role, nil
}

// GetByCode retrieves a role by its unique code.
func (r *RoleRepository) GetByCode(ctx context.Context, code string) (*domain.Role, error) {
	stmt, args, err := r.builder.Select(roleColumns).
		From("authz.roles").
		Where(squirrel.Eq{"code": code}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select role by code sql: %w", err)
	}

	role, err := scanRole(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan role by code: %w", err)
	}

	return role, nil
}

// List retrieves all roles ordered by descending level, then code.
func (r *RoleRepository) List(ctx context.Context) ([]domain.Role, error) {
	stmt, args, err := r.builder.Select(roleColumns).
		From("authz.roles").
		OrderBy("level DESC", "code ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list roles sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query roles: %w", err)
	}
	defer rows.Close()

	var roles []domain.Role

	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.ID, &role.Code, &role.Name, &role.Level, &role.IsSystem, &role.IsActive); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, role)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}

	return roles, nil
}

// Update rewrites the mutable role attributes.
func (r *RoleRepository) Update(ctx context.Context, role domain.Role) error {
	stmt, args, err := r.builder.Update("authz.roles").
		Set("name", role.Name).
		Set("level", role.Level).
		Set("is_active", role.IsActive).
		Where(squirrel.Eq{"id": role.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update role sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Delete removes a role together with its assignments and grants.
func (r *RoleRepository) Delete(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Delete("authz.roles").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete role sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// AssignToUser links a role to a user. Re-assigning an already held role is a no-op.
func (r *RoleRepository) AssignToUser(ctx context.Context, userID, roleID string) error {
	stmt, args, err := r.builder.Insert("authz.user_roles").
		Columns("user_id", "role_id", "assigned_at").
		Values(userID, roleID, time.Now().UTC()).
		Suffix("ON CONFLICT (user_id, role_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build assign role sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("assign role: %w", err)
	}

	return nil
}

// RevokeFromUser removes a role assignment.
func (r *RoleRepository) RevokeFromUser(ctx context.Context, userID, roleID string) error {
	stmt, args, err := r.builder.Delete("authz.user_roles").
		Where(squirrel.Eq{"user_id": userID, "role_id": roleID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build revoke role sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("revoke role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ListRolesForUser retrieves every role assigned to the user, active or not.
func (r *RoleRepository) ListRolesForUser(ctx context.Context, userID string) ([]domain.Role, error) {
	stmt, args, err := r.builder.Select("r.id", "r.code", "r.name", "r.level", "r.is_system", "r.is_active").
		From("authz.roles r").
		Join("authz.user_roles ur ON ur.role_id = r.id").
		Where(squirrel.Eq{"ur.user_id": userID}).
		OrderBy("r.level DESC", "r.code ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list user roles sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query user roles: %w", err)
	}
	defer rows.Close()

	var roles []domain.Role

	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.ID, &role.Code, &role.Name, &role.Level, &role.IsSystem, &role.IsActive); err != nil {
			return nil, fmt.Errorf("scan user role: %w", err)
		}
		roles = append(roles, role)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user roles: %w", err)
	}

	return roles, nil
}

// AddGrants attaches permission codes to a role and reports how many were new.
func (r *RoleRepository) AddGrants(ctx context.Context, roleID string, codes []domain.PermissionCode) (int, error) {
	if len(codes) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	insert := r.builder.Insert("authz.role_permissions").
		Columns("role_id", "code", "granted_at")
	for _, code := range codes {
		insert = insert.Values(roleID, string(code), now)
	}

	stmt, args, err := insert.
		Suffix("ON CONFLICT (role_id, code) DO NOTHING").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build add grants sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("add grants: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// RemoveGrants detaches permission codes from a role and reports how many existed.
func (r *RoleRepository) RemoveGrants(ctx context.Context, roleID string, codes []domain.PermissionCode) (int, error) {
	if len(codes) == 0 {
		return 0, nil
	}

	values := make([]string, 0, len(codes))
	for _, code := range codes {
		values = append(values, string(code))
	}

	stmt, args, err := r.builder.Delete("authz.role_permissions").
		Where(squirrel.Eq{"role_id": roleID, "code": values}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build remove grants sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("remove grants: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// ListGrantsForRole retrieves the permission codes attached to a role. A role
// with no grants row at all is reported as repository.ErrNotFound so callers
// can tell a missing grant set apart from an empty one.
func (r *RoleRepository) ListGrantsForRole(ctx context.Context, roleID string) ([]domain.PermissionCode, error) {
	exists, args, err := r.builder.Select("1").
		From("authz.roles").
		Where(squirrel.Eq{"id": roleID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build role exists sql: %w", err)
	}

	var one int
	if err := r.exec.QueryRow(ctx, exists, args...).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("check role exists: %w", err)
	}

	stmt, args, err := r.builder.Select("code").
		From("authz.role_permissions").
		Where(squirrel.Eq{"role_id": roleID}).
		OrderBy("granted_at ASC", "code ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list grants sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query grants: %w", err)
	}
	defer rows.Close()

	var codes []domain.PermissionCode

	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		codes = append(codes, domain.PermissionCode(code))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grants: %w", err)
	}

	return codes, nil
}

var (
	_ port.RoleRepository = (*RoleRepository)(nil)
	_ port.RoleDirectory  = (*RoleRepository)(nil)
)
