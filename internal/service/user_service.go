package service

import (
	"context"
	"errors"
	"strings"

	"github.com/quillcms/quill/internal/domain"
	"github.com/quillcms/quill/internal/observability"
	"github.com/quillcms/quill/internal/rbac"
	"github.com/quillcms/quill/internal/repository"
	"github.com/quillcms/quill/internal/security"
)

var (
	ErrInvalidRole        = errors.New("role must be one of admin, editor, author, user")
	ErrSelfDelete         = errors.New("you cannot delete your own account")
	ErrLastAdmin          = errors.New("cannot remove the last admin")
	ErrUserDemoLocked     = errors.New("demo users cannot be modified")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("account is disabled")
)

type CreateUserInput struct {
	Email    string `validate:"required,email,max=255"`
	Name     string `validate:"required,min=2,max=255"`
	Password string `validate:"required,min=8,max=128"`
	Role     string `validate:"required"`
}

type UpdateUserInput struct {
	Name     *string
	Role     *string
	IsActive *bool
	Password *string
}

type UserServiceImpl struct {
	repo repository.UserRepository
}

func NewUserService(repo repository.UserRepository) *UserServiceImpl {
	return &UserServiceImpl{repo: repo}
}

func (s *UserServiceImpl) Create(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	outcome := "success"
	defer func() { observability.RecordContentMutation(ctx, "user", "create", outcome) }()

	if err := validate.Struct(input); err != nil {
		outcome = "bad_request"
		return nil, err
	}
	role := rbac.Role(input.Role)
	if !rbac.ValidRole(role) {
		outcome = "bad_request"
		return nil, ErrInvalidRole
	}
	hash, err := security.HashPassword(input.Password)
	if err != nil {
		outcome = "error"
		return nil, err
	}
	user := &domain.User{
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		Name:         input.Name,
		PasswordHash: hash,
		Role:         role,
		UserType:     "regular",
		IsActive:     true,
	}
	if err := s.repo.Create(user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			outcome = "conflict"
		} else {
			outcome = "error"
		}
		return nil, err
	}
	return user, nil
}

func (s *UserServiceImpl) ListPaged(ctx context.Context, q repository.UserListQuery) (repository.PageResult[domain.User], error) {
	observability.RecordListPageSize(ctx, "users", q.Limit)
	return s.repo.ListPaged(q)
}

func (s *UserServiceImpl) GetByID(ctx context.Context, id uint) (*domain.User, error) {
	return s.repo.FindByID(id)
}

func (s *UserServiceImpl) Update(ctx context.Context, actor *rbac.Actor, id uint, input UpdateUserInput) (*domain.User, error) {
	outcome := "success"
	defer func() { observability.RecordContentMutation(ctx, "user", "update", outcome) }()

	existing, err := s.repo.FindByID(id)
	if err != nil {
		outcome = "not_found"
		return nil, err
	}
	if existing.Demo && !rbac.IsSuperAdmin(actor) {
		outcome = "forbidden"
		return nil, rbac.ErrDemoLocked
	}

	updates := map[string]any{}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Role != nil {
		role := rbac.Role(*input.Role)
		if !rbac.ValidRole(role) {
			outcome = "bad_request"
			return nil, ErrInvalidRole
		}
		// Demoting the last admin would lock everyone out.
		if existing.Role == rbac.RoleAdmin && role != rbac.RoleAdmin {
			admins, err := s.repo.CountByRole(string(rbac.RoleAdmin))
			if err != nil {
				outcome = "error"
				return nil, err
			}
			if admins <= 1 {
				outcome = "conflict"
				return nil, ErrLastAdmin
			}
		}
		updates["role"] = string(role)
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if input.Password != nil {
		if len(*input.Password) < 8 {
			outcome = "bad_request"
			return nil, errors.New("password must be at least 8 characters")
		}
		hash, err := security.HashPassword(*input.Password)
		if err != nil {
			outcome = "error"
			return nil, err
		}
		updates["password_hash"] = hash
	}
	if len(updates) == 0 {
		outcome = "bad_request"
		return nil, ErrNoUpdates
	}

	if err := s.repo.Update(id, updates); err != nil {
		outcome = "error"
		return nil, err
	}
	return s.repo.FindByID(id)
}

func (s *UserServiceImpl) Delete(ctx context.Context, actor *rbac.Actor, id uint) error {
	outcome := "success"
	defer func() { observability.RecordContentMutation(ctx, "user", "delete", outcome) }()

	if actor.ID == id {
		outcome = "bad_request"
		return ErrSelfDelete
	}
	existing, err := s.repo.FindByID(id)
	if err != nil {
		outcome = "not_found"
		return err
	}
	if existing.Demo && !rbac.IsSuperAdmin(actor) {
		outcome = "forbidden"
		return rbac.ErrDemoLocked
	}
	if existing.Role == rbac.RoleAdmin {
		admins, err := s.repo.CountByRole(string(rbac.RoleAdmin))
		if err != nil {
			outcome = "error"
			return err
		}
		if admins <= 1 {
			outcome = "conflict"
			return ErrLastAdmin
		}
	}
	if err := s.repo.DeleteByID(id); err != nil {
		outcome = "error"
		return err
	}
	return nil
}

// Authenticate verifies credentials for login and stamps last_login_at.
func (s *UserServiceImpl) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.repo.FindByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			observability.RecordAuthLogin(ctx, "unknown_user")
			return nil, ErrInvalidCredentials
		}
		observability.RecordAuthLogin(ctx, "error")
		return nil, err
	}
	ok, err := security.VerifyPassword(user.PasswordHash, password)
	if err != nil || !ok {
		observability.RecordAuthLogin(ctx, "bad_password")
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		observability.RecordAuthLogin(ctx, "disabled")
		return nil, ErrAccountDisabled
	}
	if err := s.repo.TouchLastLogin(user.ID); err != nil {
		observability.RecordAuthLogin(ctx, "error")
		return nil, err
	}
	observability.RecordAuthLogin(ctx, "success")
	return user, nil
}
