package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/quillcms/quill/internal/domain"
	"github.com/quillcms/quill/internal/observability"
)

var ErrCommentNotFound = errors.New("comment not found")

type CommentListQuery struct {
	PageRequest
	Search    string
	SortBy    string
	SortOrder string
	Status    string
	PostID    uint
}

type CommentRepository interface {
	Create(comment *domain.Comment) error
	FindByID(id uint) (*domain.Comment, error)
	ListPaged(q CommentListQuery) (PageResult[domain.Comment], error)
	ListApprovedForPost(postID uint) ([]domain.Comment, error)
	Update(id uint, updates map[string]any) error
	DeleteByID(id uint) error
	BulkUpdateStatus(ids []uint, status string, skipDemo bool) (int64, error)
	BulkDelete(ids []uint, skipDemo bool) (int64, error)
}

type GormCommentRepository struct{ db *gorm.DB }

func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &GormCommentRepository{db: db}
}

func (r *GormCommentRepository) Create(comment *domain.Comment) error {
	if err := r.db.Create(comment).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "comment", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "comment", "create", "success")
	return nil
}

func (r *GormCommentRepository) FindByID(id uint) (*domain.Comment, error) {
	var comment domain.Comment
	if err := r.db.First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCommentNotFound
		}
		return nil, err
	}
	return &comment, nil
}

func (r *GormCommentRepository) ListPaged(q CommentListQuery) (PageResult[domain.Comment], error) {
	normalized := normalizePageRequest(q.PageRequest)
	result := PageResult[domain.Comment]{Page: normalized.Page, Limit: normalized.Limit}

	base := r.db.Model(&domain.Comment{})
	if q.Status != "" {
		base = base.Where("status = ?", q.Status)
	}
	if q.PostID != 0 {
		base = base.Where("post_id = ?", q.PostID)
	}
	if term := searchTerm(q.Search); term != "" {
		pattern := "%" + term + "%"
		base = base.Where("author_name LIKE ? OR body LIKE ?", pattern, pattern)
	}

	if err := base.Count(&result.Total).Error; err != nil {
		return PageResult[domain.Comment]{}, err
	}
	offset := (normalized.Page - 1) * normalized.Limit
	err := base.Order(orderClause(q.SortBy, q.SortOrder, commentSortFields)).
		Offset(offset).Limit(normalized.Limit).
		Find(&result.Data).Error
	if err != nil {
		return PageResult[domain.Comment]{}, err
	}
	result.TotalPages = calcTotalPages(result.Total, normalized.Limit)
	return result, nil
}

func (r *GormCommentRepository) ListApprovedForPost(postID uint) ([]domain.Comment, error) {
	var comments []domain.Comment
	err := r.db.Where("post_id = ? AND status = ?", postID, domain.CommentApproved).
		Order("created_at asc").Find(&comments).Error
	return comments, err
}

func (r *GormCommentRepository) Update(id uint, updates map[string]any) error {
	res := r.db.Model(&domain.Comment{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCommentNotFound
	}
	return nil
}

func (r *GormCommentRepository) DeleteByID(id uint) error {
	res := r.db.Delete(&domain.Comment{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCommentNotFound
	}
	return nil
}

func (r *GormCommentRepository) BulkUpdateStatus(ids []uint, status string, skipDemo bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q := r.db.Model(&domain.Comment{}).Where("id IN ?", ids)
	if skipDemo {
		q = q.Where("demo = ?", false)
	}
	res := q.Update("status", status)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *GormCommentRepository) BulkDelete(ids []uint, skipDemo bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q := r.db.Where("id IN ?", ids)
	if skipDemo {
		q = q.Where("demo = ?", false)
	}
	res := q.Delete(&domain.Comment{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

var commentSortFields = map[string]string{
	"createdAt":  "created_at",
	"updatedAt":  "updated_at",
	"status":     "status",
	"authorName": "author_name",
}
