package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/quillcms/quill/internal/domain"
	"github.com/quillcms/quill/internal/observability"
)

var ErrPageNotFound = errors.New("page not found")

type PageListQuery struct {
	PageRequest
	Search     string
	SortBy     string
	SortOrder  string
	ActiveOnly bool
}

type PageRepository interface {
	Create(page *domain.Page) error
	FindByID(id uint) (*domain.Page, error)
	FindBySlug(slug string) (*domain.Page, error)
	ListPaged(q PageListQuery) (PageResult[domain.Page], error)
	Update(id uint, updates map[string]any) error
	DeleteByID(id uint) error
	IncrementViews(id uint) error
}

type GormPageRepository struct{ db *gorm.DB }

func NewPageRepository(db *gorm.DB) PageRepository {
	return &GormPageRepository{db: db}
}

func (r *GormPageRepository) Create(page *domain.Page) error {
	if err := r.db.Create(page).Error; err != nil {
		if isDuplicateKey(err) {
			observability.RecordRepositoryOperation(context.Background(), "page", "create", "conflict")
			return ErrDuplicateSlug
		}
		observability.RecordRepositoryOperation(context.Background(), "page", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "page", "create", "success")
	return nil
}

func (r *GormPageRepository) FindByID(id uint) (*domain.Page, error) {
	var page domain.Page
	if err := r.db.First(&page, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPageNotFound
		}
		return nil, err
	}
	return &page, nil
}

func (r *GormPageRepository) FindBySlug(slug string) (*domain.Page, error) {
	var page domain.Page
	if err := r.db.Where("slug = ?", slug).First(&page).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPageNotFound
		}
		return nil, err
	}
	return &page, nil
}

func (r *GormPageRepository) ListPaged(q PageListQuery) (PageResult[domain.Page], error) {
	normalized := normalizePageRequest(q.PageRequest)
	result := PageResult[domain.Page]{Page: normalized.Page, Limit: normalized.Limit}

	base := r.db.Model(&domain.Page{})
	if q.ActiveOnly {
		base = base.Where("is_active = ?", true)
	}
	if term := searchTerm(q.Search); term != "" {
		pattern := "%" + term + "%"
		base = base.Where("title LIKE ? OR slug LIKE ?", pattern, pattern)
	}

	if err := base.Count(&result.Total).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "page", "list_paged", "error")
		return PageResult[domain.Page]{}, err
	}
	offset := (normalized.Page - 1) * normalized.Limit
	err := base.Order(orderClause(q.SortBy, q.SortOrder, pageSortFields)).
		Offset(offset).Limit(normalized.Limit).
		Find(&result.Data).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "page", "list_paged", "error")
		return PageResult[domain.Page]{}, err
	}
	result.TotalPages = calcTotalPages(result.Total, normalized.Limit)
	observability.RecordRepositoryOperation(context.Background(), "page", "list_paged", "success")
	return result, nil
}

func (r *GormPageRepository) Update(id uint, updates map[string]any) error {
	res := r.db.Model(&domain.Page{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		if isDuplicateKey(res.Error) {
			return ErrDuplicateSlug
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPageNotFound
	}
	return nil
}

func (r *GormPageRepository) DeleteByID(id uint) error {
	res := r.db.Delete(&domain.Page{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPageNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "page", "delete_by_id", "success")
	return nil
}

func (r *GormPageRepository) IncrementViews(id uint) error {
	return r.db.Model(&domain.Page{}).Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + 1")).Error
}

var pageSortFields = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"title":     "title",
	"views":     "views",
}
