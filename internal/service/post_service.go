package service

import (
	"context"
	"errors"
	"time"

	"github.com/quillcms/quill/internal/domain"
	"github.com/quillcms/quill/internal/observability"
	"github.com/quillcms/quill/internal/rbac"
	"github.com/quillcms/quill/internal/repository"
)

var (
	ErrPostInvalidStatus = errors.New("status must be one of draft, published, archived")
	ErrNoUpdates         = errors.New("no updates provided")
	ErrEmptyIDList       = errors.New("ids must not be empty")
)

type CreatePostInput struct {
	Title      string `validate:"required,min=3,max=200"`
	Content    string `validate:"required"`
	Excerpt    string `validate:"max=500"`
	Slug       string `validate:"omitempty,max=220"`
	Status     string `validate:"omitempty,oneof=draft published archived"`
	CategoryID *uint
	Tags       string `validate:"max=500"`
	IsFeatured bool
}

type UpdatePostInput struct {
	Title      *string
	Content    *string
	Excerpt    *string
	Slug       *string
	Status     *string
	CategoryID *uint
	Tags       *string
	IsFeatured *bool
}

type PostServiceImpl struct {
	repo repository.PostRepository
}

func NewPostService(repo repository.PostRepository) *PostServiceImpl {
	return &PostServiceImpl{repo: repo}
}

func (s *PostServiceImpl) Create(ctx context.Context, actor *rbac.Actor, input CreatePostInput) (*domain.Post, error) {
	outcome := "success"
	defer func() { observability.RecordContentMutation(ctx, "post", "create", outcome) }()

	if err := validate.Struct(input); err != nil {
		outcome = "bad_request"
		return nil, err
	}
	status := input.Status
	if status == "" {
		status = domain.StatusDraft
	}
	slug := input.Slug
	if slug == "" {
		slug = Slugify(input.Title)
	}

	post := &domain.Post{
		Title:      input.Title,
		Slug:       slug,
		Content:    input.Content,
		Excerpt:    input.Excerpt,
		Status:     status,
		AuthorID:   actor.ID,
		CategoryID: input.CategoryID,
		Tags:       input.Tags,
		IsFeatured: input.IsFeatured,
	}
	if err := s.repo.Create(post); err != nil {
		if errors.Is(err, repository.ErrDuplicateSlug) {
			outcome = "conflict"
		} else {
			outcome = "error"
		}
		return nil, err
	}
	return post, nil
}

func (s *PostServiceImpl) ListPaged(ctx context.Context, q repository.PostListQuery) (repository.PageResult[domain.Post], error) {
	start := time.Now()
	status := "success"
	defer func() { observability.RecordListRequestDuration(ctx, "posts", status, time.Since(start)) }()
	observability.RecordListPageSize(ctx, "posts", q.Limit)

	res, err := s.repo.ListPaged(q)
	if err != nil {
		status = "error"
		return repository.PageResult[domain.Post]{}, err
	}
	return res, nil
}

func (s *PostServiceImpl) GetByID(ctx context.Context, id uint) (*domain.Post, error) {
	return s.repo.FindByID(id)
}

func (s *PostServiceImpl) GetBySlug(ctx context.Context, slug string) (*domain.Post, error) {
	return s.repo.FindBySlug(slug)
}

func (s *PostServiceImpl) ListRelated(ctx context.Context, post *domain.Post, limit int) ([]domain.Post, error) {
	return s.repo.ListRelated(post.CategoryID, post.ID, limit)
}

// Update applies a partial edit after the ownership and demo-lock checks.
func (s *PostServiceImpl) Update(ctx context.Context, actor *rbac.Actor, id uint, input UpdatePostInput) (*domain.Post, error) {
	outcome := "success"
	defer func() { observability.RecordContentMutation(ctx, "post", "update", outcome) }()

	existing, err := s.repo.FindByID(id)
	if err != nil {
		outcome = "not_found"
		return nil, err
	}
	if err := rbac.AuthorizeMutation(actor, existing.AuthorID, existing.Demo); err != nil {
		outcome = "forbidden"
		return nil, err
	}

	updates := map[string]any{}
	if input.Title != nil {
		if len(*input.Title) < 3 || len(*input.Title) > 200 {
			outcome = "bad_request"
			return nil, errors.New("title must be between 3 and 200 characters")
		}
		updates["title"] = *input.Title
	}
	if input.Content != nil {
		updates["content"] = *input.Content
	}
	if input.Excerpt != nil {
		updates["excerpt"] = *input.Excerpt
	}
	if input.Slug != nil {
		updates["slug"] = Slugify(*input.Slug)
	}
	if input.Status != nil {
		if !validPostStatus(*input.Status) {
			outcome = "bad_request"
			return nil, ErrPostInvalidStatus
		}
		updates["status"] = *input.Status
	}
	if input.CategoryID != nil {
		updates["category_id"] = *input.CategoryID
	}
	if input.Tags != nil {
		updates["tags"] = *input.Tags
	}
	if input.IsFeatured != nil {
		updates["is_featured"] = *input.IsFeatured
	}
	if len(updates) == 0 {
		outcome = "bad_request"
		return nil, ErrNoUpdates
	}

	if err := s.repo.Update(id, updates); err != nil {
		if errors.Is(err, repository.ErrDuplicateSlug) {
			outcome = "conflict"
		} else {
			outcome = "error"
		}
		return nil, err
	}
	return s.repo.FindByID(id)
}

func (s *PostServiceImpl) Delete(ctx context.Context, actor *rbac.Actor, id uint) error {
	outcome := "success"
	defer func() { observability.RecordContentMutation(ctx, "post", "delete", outcome) }()

	existing, err := s.repo.FindByID(id)
	if err != nil {
		outcome = "not_found"
		return err
	}
	if err := rbac.AuthorizeMutation(actor, existing.AuthorID, existing.Demo); err != nil {
		outcome = "forbidden"
		return err
	}
	if err := s.repo.DeleteByID(id); err != nil {
		outcome = "error"
		return err
	}
	return nil
}

// BulkUpdateStatus changes the status of many posts at once. Demo rows
// are silently skipped unless the actor is a superadmin.
func (s *PostServiceImpl) BulkUpdateStatus(ctx context.Context, actor *rbac.Actor, ids []uint, status string) (int64, error) {
	outcome := "success"
	defer func() { observability.RecordContentMutation(ctx, "post", "bulk_update_status", outcome) }()

	if len(ids) == 0 {
		outcome = "bad_request"
		return 0, ErrEmptyIDList
	}
	if !validPostStatus(status) {
		outcome = "bad_request"
		return 0, ErrPostInvalidStatus
	}
	modified, err := s.repo.BulkUpdateStatus(ids, status, !rbac.IsSuperAdmin(actor))
	if err != nil {
		outcome = "error"
		return 0, err
	}
	return modified, nil
}

func (s *PostServiceImpl) BulkSetFeatured(ctx context.Context, actor *rbac.Actor, ids []uint, featured bool) (int64, error) {
	outcome := "success"
	defer func() { observability.RecordContentMutation(ctx, "post", "bulk_set_featured", outcome) }()

	if len(ids) == 0 {
		outcome = "bad_request"
		return 0, ErrEmptyIDList
	}
	modified, err := s.repo.BulkSetFeatured(ids, featured, !rbac.IsSuperAdmin(actor))
	if err != nil {
		outcome = "error"
		return 0, err
	}
	return modified, nil
}

func (s *PostServiceImpl) BulkDelete(ctx context.Context, actor *rbac.Actor, ids []uint) (int64, error) {
	outcome := "success"
	defer func() { observability.RecordContentMutation(ctx, "post", "bulk_delete", outcome) }()

	if len(ids) == 0 {
		outcome = "bad_request"
		return 0, ErrEmptyIDList
	}
	deleted, err := s.repo.BulkDelete(ids, !rbac.IsSuperAdmin(actor))
	if err != nil {
		outcome = "error"
		return 0, err
	}
	return deleted, nil
}

func (s *PostServiceImpl) RecordView(ctx context.Context, id uint) error {
	if err := s.repo.IncrementViews(id); err != nil {
		return err
	}
	observability.RecordViewIncrement(ctx, "post")
	return nil
}

func validPostStatus(status string) bool {
	switch status {
	case domain.StatusDraft, domain.StatusPublished, domain.StatusArchived:
		return true
	}
	return false
}
