package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/quillcms/quill/internal/domain"
	"github.com/quillcms/quill/internal/observability"
)

var (
	ErrPostNotFound  = errors.New("post not found")
	ErrDuplicateSlug = errors.New("duplicate slug")
)

type PostListQuery struct {
	PageRequest
	Search     string
	SortBy     string
	SortOrder  string
	Status     string
	AuthorID   uint
	CategoryID uint
	Tag        string
	IsFeatured *bool
	// PublishedOnly narrows the listing to the public read surface.
	PublishedOnly bool
}

type PostRepository interface {
	Create(post *domain.Post) error
	FindByID(id uint) (*domain.Post, error)
	FindBySlug(slug string) (*domain.Post, error)
	ListPaged(q PostListQuery) (PageResult[domain.Post], error)
	ListRelated(categoryID *uint, excludeID uint, limit int) ([]domain.Post, error)
	Update(id uint, updates map[string]any) error
	DeleteByID(id uint) error
	BulkUpdateStatus(ids []uint, status string, skipDemo bool) (int64, error)
	BulkSetFeatured(ids []uint, featured bool, skipDemo bool) (int64, error)
	BulkDelete(ids []uint, skipDemo bool) (int64, error)
	IncrementViews(id uint) error
}

type GormPostRepository struct{ db *gorm.DB }

func NewPostRepository(db *gorm.DB) PostRepository {
	return &GormPostRepository{db: db}
}

func (r *GormPostRepository) Create(post *domain.Post) error {
	if err := r.db.Create(post).Error; err != nil {
		if isDuplicateKey(err) {
			observability.RecordRepositoryOperation(context.Background(), "post", "create", "conflict")
			return ErrDuplicateSlug
		}
		observability.RecordRepositoryOperation(context.Background(), "post", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "post", "create", "success")
	return nil
}

func (r *GormPostRepository) FindByID(id uint) (*domain.Post, error) {
	var post domain.Post
	err := r.db.Preload("Author").Preload("Category").First(&post, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "post", "find_by_id", "not_found")
			return nil, ErrPostNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "post", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "post", "find_by_id", "success")
	return &post, nil
}

func (r *GormPostRepository) FindBySlug(slug string) (*domain.Post, error) {
	var post domain.Post
	err := r.db.Preload("Author").Preload("Category").Where("slug = ?", slug).First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

func (r *GormPostRepository) ListPaged(q PostListQuery) (PageResult[domain.Post], error) {
	normalized := normalizePageRequest(q.PageRequest)
	result := PageResult[domain.Post]{Page: normalized.Page, Limit: normalized.Limit}

	base := r.db.Model(&domain.Post{})
	if q.PublishedOnly {
		base = base.Where("status = ?", domain.StatusPublished)
	} else if q.Status != "" {
		base = base.Where("status = ?", q.Status)
	}
	if q.AuthorID != 0 {
		base = base.Where("author_id = ?", q.AuthorID)
	}
	if q.CategoryID != 0 {
		base = base.Where("category_id = ?", q.CategoryID)
	}
	if q.IsFeatured != nil {
		base = base.Where("is_featured = ?", *q.IsFeatured)
	}
	if q.Tag != "" {
		base = base.Where("tags LIKE ?", "%"+q.Tag+"%")
	}
	if term := searchTerm(q.Search); term != "" {
		pattern := "%" + term + "%"
		base = base.Where("title LIKE ? OR excerpt LIKE ?", pattern, pattern)
	}

	if err := base.Count(&result.Total).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "post", "list_paged", "error")
		return PageResult[domain.Post]{}, err
	}
	offset := (normalized.Page - 1) * normalized.Limit
	err := base.Preload("Author").Preload("Category").
		Order(orderClause(q.SortBy, q.SortOrder, postSortFields)).
		Offset(offset).Limit(normalized.Limit).
		Find(&result.Data).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "post", "list_paged", "error")
		return PageResult[domain.Post]{}, err
	}
	result.TotalPages = calcTotalPages(result.Total, normalized.Limit)
	observability.RecordRepositoryOperation(context.Background(), "post", "list_paged", "success")
	return result, nil
}

func (r *GormPostRepository) ListRelated(categoryID *uint, excludeID uint, limit int) ([]domain.Post, error) {
	if limit <= 0 {
		limit = 3
	}
	q := r.db.Model(&domain.Post{}).
		Where("status = ?", domain.StatusPublished).
		Where("id <> ?", excludeID)
	if categoryID != nil {
		q = q.Where("category_id = ?", *categoryID)
	}
	var posts []domain.Post
	err := q.Order("created_at desc").Limit(limit).Find(&posts).Error
	return posts, err
}

func (r *GormPostRepository) Update(id uint, updates map[string]any) error {
	res := r.db.Model(&domain.Post{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		if isDuplicateKey(res.Error) {
			observability.RecordRepositoryOperation(context.Background(), "post", "update", "conflict")
			return ErrDuplicateSlug
		}
		observability.RecordRepositoryOperation(context.Background(), "post", "update", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "post", "update", "not_found")
		return ErrPostNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "post", "update", "success")
	return nil
}

// DeleteByID removes the post and its comments in one transaction.
func (r *GormPostRepository) DeleteByID(id uint) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&domain.Comment{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&domain.Post{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPostNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrPostNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "post", "delete_by_id", "not_found")
		} else {
			observability.RecordRepositoryOperation(context.Background(), "post", "delete_by_id", "error")
		}
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "post", "delete_by_id", "success")
	return nil
}

func (r *GormPostRepository) BulkUpdateStatus(ids []uint, status string, skipDemo bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q := r.db.Model(&domain.Post{}).Where("id IN ?", ids)
	if skipDemo {
		q = q.Where("demo = ?", false)
	}
	res := q.Update("status", status)
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "post", "bulk_update_status", "error")
		return 0, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "post", "bulk_update_status", "success")
	return res.RowsAffected, nil
}

func (r *GormPostRepository) BulkSetFeatured(ids []uint, featured bool, skipDemo bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q := r.db.Model(&domain.Post{}).Where("id IN ?", ids)
	if skipDemo {
		q = q.Where("demo = ?", false)
	}
	res := q.Update("is_featured", featured)
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "post", "bulk_set_featured", "error")
		return 0, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "post", "bulk_set_featured", "success")
	return res.RowsAffected, nil
}

func (r *GormPostRepository) BulkDelete(ids []uint, skipDemo bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var deleted int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		target := tx.Model(&domain.Post{}).Where("id IN ?", ids)
		if skipDemo {
			target = target.Where("demo = ?", false)
		}
		var victims []uint
		if err := target.Pluck("id", &victims).Error; err != nil {
			return err
		}
		if len(victims) == 0 {
			return nil
		}
		if err := tx.Where("post_id IN ?", victims).Delete(&domain.Comment{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&domain.Post{}, victims)
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "post", "bulk_delete", "error")
		return 0, err
	}
	observability.RecordRepositoryOperation(context.Background(), "post", "bulk_delete", "success")
	return deleted, nil
}

// IncrementViews bumps the view counter with a single atomic UPDATE so
// concurrent public reads never lose counts.
func (r *GormPostRepository) IncrementViews(id uint) error {
	return r.db.Model(&domain.Post{}).Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + 1")).Error
}

var postSortFields = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"title":     "title",
	"views":     "views",
	"status":    "status",
}

func orderClause(sortBy, sortOrder string, allowed map[string]string) string {
	column, ok := allowed[sortBy]
	if !ok {
		column = "created_at"
	}
	direction := "desc"
	if sortOrder == "asc" {
		direction = "asc"
	}
	return column + " " + direction
}
