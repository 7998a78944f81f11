package postgres

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/arklim/social-platform-authz/internal/core/domain"
	"github.com/arklim/social-platform-authz/internal/repository"
)

func TestRoleRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewRoleRepository(mock)

	role := domain.Role{
		ID:       "role-1",
		Code:     "moderator",
		Name:     "Moderator",
		Level:    60,
		IsActive: true,
	}

	mock.ExpectExec(`INSERT INTO authz\.roles`).
		WithArgs(role.ID, role.Code, role.Name, role.Level, role.IsSystem, role.IsActive).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), role); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRoleRepository_GetByCodeNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewRoleRepository(mock)

	mock.ExpectQuery(`SELECT .*FROM authz\.roles`).
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows([]string{"id", "code", "name", "level", "is_system", "is_active"}))

	if _, err := repo.GetByCode(context.Background(), "ghost"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRoleRepository_ListRolesForUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewRoleRepository(mock)

	rows := pgxmock.NewRows([]string{"id", "code", "name", "level", "is_system", "is_active"}).
		AddRow("role-1", "admin", "Administrator", 90, true, true).
		AddRow("role-2", "member", "Member", 10, false, true)

	mock.ExpectQuery(`SELECT .*FROM authz\.roles r JOIN authz\.user_roles ur`).
		WithArgs("user-1").
		WillReturnRows(rows)

	roles, err := repo.ListRolesForUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListRolesForUser returned error: %v", err)
	}
	if len(roles) != 2 {
		t.Fatalf("expected 2 roles, got %d", len(roles))
	}
	if roles[0].Code != "admin" || roles[0].Level != 90 {
		t.Fatalf("unexpected first role: %+v", roles[0])
	}
}

func TestRoleRepository_AddGrantsCountsNewRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewRoleRepository(mock)

	codes := []domain.PermissionCode{"posts:edit", "posts:delete"}

	mock.ExpectExec(`INSERT INTO authz\.role_permissions`).
		WithArgs("role-1", "posts:edit", pgxmock.AnyArg(), "role-1", "posts:delete", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	added, err := repo.AddGrants(context.Background(), "role-1", codes)
	if err != nil {
		t.Fatalf("AddGrants returned error: %v", err)
	}
	if added != 1 {
		t.Fatalf("expected 1 new grant, got %d", added)
	}
}

func TestRoleRepository_ListGrantsForRoleMissingRole(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewRoleRepository(mock)

	mock.ExpectQuery(`SELECT 1 FROM authz\.roles`).
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}))

	if _, err := repo.ListGrantsForRole(context.Background(), "ghost"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRoleRepository_ListGrantsForRole(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewRoleRepository(mock)

	mock.ExpectQuery(`SELECT 1 FROM authz\.roles`).
		WithArgs("role-1").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	mock.ExpectQuery(`SELECT code FROM authz\.role_permissions`).
		WithArgs("role-1").
		WillReturnRows(pgxmock.NewRows([]string{"code"}).
			AddRow("posts:view").
			AddRow("posts:edit"))

	codes, err := repo.ListGrantsForRole(context.Background(), "role-1")
	if err != nil {
		t.Fatalf("ListGrantsForRole returned error: %v", err)
	}
	if len(codes) != 2 || codes[0] != "posts:view" || codes[1] != "posts:edit" {
		t.Fatalf("unexpected grants: %v", codes)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRoleRepository_UpdateMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewRoleRepository(mock)

	role := domain.Role{ID: "ghost", Name: "Ghost", Level: 10, IsActive: true}

	mock.ExpectExec(`UPDATE authz\.roles`).
		WithArgs(role.Name, role.Level, role.IsActive, role.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.Update(context.Background(), role); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
