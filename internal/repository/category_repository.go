package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/quillcms/quill/internal/domain"
	"github.com/quillcms/quill/internal/observability"
)

var (
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryInUse    = errors.New("category still has posts")
)

type CategoryListQuery struct {
	PageRequest
	Search    string
	SortBy    string
	SortOrder string
}

type CategoryRepository interface {
	Create(category *domain.Category) error
	FindByID(id uint) (*domain.Category, error)
	FindBySlug(slug string) (*domain.Category, error)
	ListAll() ([]domain.Category, error)
	ListPaged(q CategoryListQuery) (PageResult[domain.Category], error)
	Update(id uint, updates map[string]any) error
	DeleteByID(id uint) error
	CountPosts(id uint) (int64, error)
}

type GormCategoryRepository struct{ db *gorm.DB }

func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &GormCategoryRepository{db: db}
}

func (r *GormCategoryRepository) Create(category *domain.Category) error {
	if err := r.db.Create(category).Error; err != nil {
		if isDuplicateKey(err) {
			observability.RecordRepositoryOperation(context.Background(), "category", "create", "conflict")
			return ErrDuplicateSlug
		}
		observability.RecordRepositoryOperation(context.Background(), "category", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "category", "create", "success")
	return nil
}

func (r *GormCategoryRepository) FindByID(id uint) (*domain.Category, error) {
	var category domain.Category
	if err := r.db.First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return &category, nil
}

func (r *GormCategoryRepository) FindBySlug(slug string) (*domain.Category, error) {
	var category domain.Category
	if err := r.db.Where("slug = ?", slug).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return &category, nil
}

// ListAll returns every category ordered by name. The public surface and
// the dashboard selects both want the full set, not a page.
func (r *GormCategoryRepository) ListAll() ([]domain.Category, error) {
	var categories []domain.Category
	err := r.db.Order("name asc").Find(&categories).Error
	return categories, err
}

func (r *GormCategoryRepository) ListPaged(q CategoryListQuery) (PageResult[domain.Category], error) {
	normalized := normalizePageRequest(q.PageRequest)
	result := PageResult[domain.Category]{Page: normalized.Page, Limit: normalized.Limit}

	base := r.db.Model(&domain.Category{})
	if term := searchTerm(q.Search); term != "" {
		pattern := "%" + term + "%"
		base = base.Where("name LIKE ? OR slug LIKE ?", pattern, pattern)
	}

	if err := base.Count(&result.Total).Error; err != nil {
		return PageResult[domain.Category]{}, err
	}
	offset := (normalized.Page - 1) * normalized.Limit
	err := base.Order(orderClause(q.SortBy, q.SortOrder, categorySortFields)).
		Offset(offset).Limit(normalized.Limit).
		Find(&result.Data).Error
	if err != nil {
		return PageResult[domain.Category]{}, err
	}
	result.TotalPages = calcTotalPages(result.Total, normalized.Limit)
	return result, nil
}

func (r *GormCategoryRepository) Update(id uint, updates map[string]any) error {
	res := r.db.Model(&domain.Category{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		if isDuplicateKey(res.Error) {
			return ErrDuplicateSlug
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

func (r *GormCategoryRepository) DeleteByID(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Post{}).Where("category_id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrCategoryInUse
		}
		res := tx.Delete(&domain.Category{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrCategoryNotFound
		}
		return nil
	})
}

func (r *GormCategoryRepository) CountPosts(id uint) (int64, error) {
	var count int64
	err := r.db.Model(&domain.Post{}).Where("category_id = ?", id).Count(&count).Error
	return count, err
}

var categorySortFields = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"name":      "name",
}
