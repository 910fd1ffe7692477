package service

import (
	"context"
	"errors"
	"testing"

	"github.com/quillcms/quill/internal/domain"
	"github.com/quillcms/quill/internal/rbac"
	"github.com/quillcms/quill/internal/repository"
	"github.com/quillcms/quill/internal/security"
)

type stubUserRepo struct {
	users      map[uint]*domain.User
	adminCount int64
}

func newStubUserRepo(users ...*domain.User) *stubUserRepo {
	r := &stubUserRepo{users: map[uint]*domain.User{}}
	for _, u := range users {
		r.users[u.ID] = u
		if u.Role == rbac.RoleAdmin {
			r.adminCount++
		}
	}
	return r
}

func (r *stubUserRepo) Create(user *domain.User) error {
	for _, u := range r.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	user.ID = uint(len(r.users) + 1)
	r.users[user.ID] = user
	return nil
}

func (r *stubUserRepo) FindByID(id uint) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

func (r *stubUserRepo) FindByEmail(email string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *stubUserRepo) ListPaged(q repository.UserListQuery) (repository.PageResult[domain.User], error) {
	return repository.PageResult[domain.User]{}, nil
}

func (r *stubUserRepo) Update(id uint, updates map[string]any) error {
	if _, ok := r.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	return nil
}

func (r *stubUserRepo) DeleteByID(id uint) error {
	if _, ok := r.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *stubUserRepo) TouchLastLogin(id uint) error { return nil }

func (r *stubUserRepo) CountByRole(role string) (int64, error) {
	return r.adminCount, nil
}

func TestUserServiceDeleteRefusesSelf(t *testing.T) {
	admin := &domain.User{ID: 1, Email: "a@example.com", Role: rbac.RoleAdmin}
	svc := NewUserService(newStubUserRepo(admin))

	err := svc.Delete(context.Background(), admin.Actor(), 1)
	if !errors.Is(err, ErrSelfDelete) {
		t.Fatalf("expected ErrSelfDelete, got %v", err)
	}
}

func TestUserServiceDeleteProtectsLastAdmin(t *testing.T) {
	admin := &domain.User{ID: 1, Email: "a@example.com", Role: rbac.RoleAdmin}
	other := &domain.User{ID: 2, Email: "b@example.com", Role: rbac.RoleEditor}
	svc := NewUserService(newStubUserRepo(admin, other))

	err := svc.Delete(context.Background(), other.Actor(), 1)
	if !errors.Is(err, ErrLastAdmin) {
		t.Fatalf("expected ErrLastAdmin, got %v", err)
	}
}

func TestUserServiceCreateRejectsUnknownRole(t *testing.T) {
	svc := NewUserService(newStubUserRepo())

	_, err := svc.Create(context.Background(), CreateUserInput{
		Email:    "new@example.com",
		Name:     "New User",
		Password: "longenough",
		Role:     "owner",
	})
	if !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestUserServiceAuthenticate(t *testing.T) {
	hash, err := security.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user := &domain.User{ID: 1, Email: "a@example.com", PasswordHash: hash, Role: rbac.RoleAdmin, IsActive: true}
	svc := NewUserService(newStubUserRepo(user))

	if _, err := svc.Authenticate(context.Background(), "A@Example.com ", "correct horse"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "a@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	user.IsActive = false
	if _, err := svc.Authenticate(context.Background(), "a@example.com", "correct horse"); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Hello World":        "hello-world",
		"  Already-slugged ": "already-slugged",
		"Crème Brûlée!":      "cr-me-br-l-e",
		"--a--b--":           "a-b",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}
