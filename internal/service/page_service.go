package service

import (
	"context"
	"errors"

	"github.com/quillcms/quill/internal/domain"
	"github.com/quillcms/quill/internal/observability"
	"github.com/quillcms/quill/internal/rbac"
	"github.com/quillcms/quill/internal/repository"
)

type CreatePageInput struct {
	Title    string `validate:"required,min=3,max=200"`
	Content  string `validate:"required"`
	Slug     string `validate:"omitempty,max=220"`
	Status   string `validate:"omitempty,oneof=draft published archived"`
	IsActive *bool
}

type UpdatePageInput struct {
	Title    *string
	Content  *string
	Slug     *string
	Status   *string
	IsActive *bool
}

type PageServiceImpl struct {
	repo repository.PageRepository
}

func NewPageService(repo repository.PageRepository) *PageServiceImpl {
	return &PageServiceImpl{repo: repo}
}

func (s *PageServiceImpl) Create(ctx context.Context, actor *rbac.Actor, input CreatePageInput) (*domain.Page, error) {
	outcome := "success"
	defer func() { observability.RecordContentMutation(ctx, "page", "create", outcome) }()

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
	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}

	page := &domain.Page{
		Title:    input.Title,
		Slug:     slug,
		Content:  input.Content,
		Status:   status,
		AuthorID: actor.ID,
		IsActive: active,
	}
	if err := s.repo.Create(page); err != nil {
		if errors.Is(err, repository.ErrDuplicateSlug) {
			outcome = "conflict"
		} else {
			outcome = "error"
		}
		return nil, err
	}
	return page, nil
}

func (s *PageServiceImpl) ListPaged(ctx context.Context, q repository.PageListQuery) (repository.PageResult[domain.Page], error) {
	observability.RecordListPageSize(ctx, "pages", q.Limit)
	return s.repo.ListPaged(q)
}

func (s *PageServiceImpl) GetByID(ctx context.Context, id uint) (*domain.Page, error) {
	return s.repo.FindByID(id)
}

func (s *PageServiceImpl) GetBySlug(ctx context.Context, slug string) (*domain.Page, error) {
	return s.repo.FindBySlug(slug)
}

func (s *PageServiceImpl) Update(ctx context.Context, actor *rbac.Actor, id uint, input UpdatePageInput) (*domain.Page, error) {
	outcome := "success"
	defer func() { observability.RecordContentMutation(ctx, "page", "update", outcome) }()

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
		updates["title"] = *input.Title
	}
	if input.Content != nil {
		updates["content"] = *input.Content
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
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
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

// ToggleActive flips the visibility switch on a page.
func (s *PageServiceImpl) ToggleActive(ctx context.Context, actor *rbac.Actor, id uint) (*domain.Page, error) {
	outcome := "success"
	defer func() { observability.RecordContentMutation(ctx, "page", "toggle_active", outcome) }()

	existing, err := s.repo.FindByID(id)
	if err != nil {
		outcome = "not_found"
		return nil, err
	}
	if err := rbac.AuthorizeMutation(actor, existing.AuthorID, existing.Demo); err != nil {
		outcome = "forbidden"
		return nil, err
	}
	if err := s.repo.Update(id, map[string]any{"is_active": !existing.IsActive}); err != nil {
		outcome = "error"
		return nil, err
	}
	return s.repo.FindByID(id)
}

func (s *PageServiceImpl) Delete(ctx context.Context, actor *rbac.Actor, id uint) error {
	outcome := "success"
	defer func() { observability.RecordContentMutation(ctx, "page", "delete", outcome) }()

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

func (s *PageServiceImpl) RecordView(ctx context.Context, id uint) error {
	if err := s.repo.IncrementViews(id); err != nil {
		return err
	}
	observability.RecordViewIncrement(ctx, "page")
	return nil
}
