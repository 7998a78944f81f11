package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/arklim/social-platform-authz/internal/core/domain"
	"github.com/arklim/social-platform-authz/internal/infra/security"
)

// adminDirectory gives the actor an active role carrying users:manage.
func adminDirectory(actorID string) *fakeDirectory {
	dir := newFakeDirectory()
	dir.roles[actorID] = []domain.Role{{ID: "r-adm", Code: "admin", Level: 90, IsActive: true}}
	dir.grants["r-adm"] = []domain.PermissionCode{PermissionUsersManage}
	return dir
}

func newUserService(dir *fakeDirectory, users *fakeUserRepo) *UserService {
	return NewUserService(users, NewPermissionResolver(dir, nil), nopEvents{}, nil)
}

func TestCreateUserRequiresManagePermission(t *testing.T) {
	svc := newUserService(newFakeDirectory(), newFakeUserRepo())

	_, err := svc.CreateUser(context.Background(), "actor-1", CreateUserInput{
		Username: "bob",
		Password: testPassword,
		Active:   true,
	})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestCreateUserRejectsWeakPassword(t *testing.T) {
	svc := newUserService(adminDirectory("actor-1"), newFakeUserRepo())

	_, err := svc.CreateUser(context.Background(), "actor-1", CreateUserInput{
		Username: "bob",
		Password: "password1234",
		Active:   true,
	})
	if !errors.Is(err, security.ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestCreateUserRejectsDuplicateUsername(t *testing.T) {
	users := newFakeUserRepo()
	seedUser(t, users, "user-1", "bob", true)

	svc := newUserService(adminDirectory("actor-1"), users)

	_, err := svc.CreateUser(context.Background(), "actor-1", CreateUserInput{
		Username: "bob",
		Password: testPassword,
		Active:   true,
	})
	if !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestCreateUserSanitizesPasswordHash(t *testing.T) {
	users := newFakeUserRepo()
	svc := newUserService(adminDirectory("actor-1"), users)

	created, err := svc.CreateUser(context.Background(), "actor-1", CreateUserInput{
		Username: "bob",
		Password: testPassword,
		Active:   true,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if created.PasswordHash != "" {
		t.Fatal("returned user must not expose the password hash")
	}

	stored, err := users.GetByIdentifier(context.Background(), "bob")
	if err != nil {
		t.Fatalf("GetByIdentifier: %v", err)
	}
	if stored.PasswordHash == "" {
		t.Fatal("stored user must carry the password hash")
	}
	ok, err := security.VerifyPassword(testPassword, stored.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("stored hash must verify the password: ok=%v err=%v", ok, err)
	}
}
