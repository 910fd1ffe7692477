package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/quillcms/quill/internal/domain"
	"github.com/quillcms/quill/internal/observability"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("duplicate email")
)

type UserListQuery struct {
	PageRequest
	Search    string
	SortBy    string
	SortOrder string
	Role      string
}

type UserRepository interface {
	Create(user *domain.User) error
	FindByID(id uint) (*domain.User, error)
	FindByEmail(email string) (*domain.User, error)
	ListPaged(q UserListQuery) (PageResult[domain.User], error)
	Update(id uint, updates map[string]any) error
	DeleteByID(id uint) error
	TouchLastLogin(id uint) error
	CountByRole(role string) (int64, error)
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) Create(user *domain.User) error {
	if err := r.db.Create(user).Error; err != nil {
		if isDuplicateKey(err) {
			observability.RecordRepositoryOperation(context.Background(), "user", "create", "conflict")
			return ErrDuplicateEmail
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "create", "success")
	return nil
}

func (r *GormUserRepository) FindByID(id uint) (*domain.User, error) {
	var user domain.User
	if err := r.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *GormUserRepository) FindByEmail(email string) (*domain.User, error) {
	var user domain.User
	if err := r.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *GormUserRepository) ListPaged(q UserListQuery) (PageResult[domain.User], error) {
	normalized := normalizePageRequest(q.PageRequest)
	result := PageResult[domain.User]{Page: normalized.Page, Limit: normalized.Limit}

	base := r.db.Model(&domain.User{})
	if q.Role != "" {
		base = base.Where("role = ?", q.Role)
	}
	if term := searchTerm(q.Search); term != "" {
		pattern := "%" + term + "%"
		base = base.Where("name LIKE ? OR email LIKE ?", pattern, pattern)
	}

	if err := base.Count(&result.Total).Error; err != nil {
		return PageResult[domain.User]{}, err
	}
	offset := (normalized.Page - 1) * normalized.Limit
	err := base.Order(orderClause(q.SortBy, q.SortOrder, userSortFields)).
		Offset(offset).Limit(normalized.Limit).
		Find(&result.Data).Error
	if err != nil {
		return PageResult[domain.User]{}, err
	}
	result.TotalPages = calcTotalPages(result.Total, normalized.Limit)
	return result, nil
}

func (r *GormUserRepository) Update(id uint, updates map[string]any) error {
	res := r.db.Model(&domain.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		if isDuplicateKey(res.Error) {
			return ErrDuplicateEmail
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *GormUserRepository) DeleteByID(id uint) error {
	res := r.db.Delete(&domain.User{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *GormUserRepository) TouchLastLogin(id uint) error {
	now := time.Now()
	return r.db.Model(&domain.User{}).Where("id = ?", id).
		UpdateColumn("last_login_at", now).Error
}

func (r *GormUserRepository) CountByRole(role string) (int64, error) {
	var count int64
	err := r.db.Model(&domain.User{}).Where("role = ?", role).Count(&count).Error
	return count, err
}

var userSortFields = map[string]string{
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
	"name":        "name",
	"email":       "email",
	"role":        "role",
	"lastLoginAt": "last_login_at",
}
