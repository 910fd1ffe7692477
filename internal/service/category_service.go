package service

import (
	"context"
	"errors"

	"github.com/quillcms/quill/internal/domain"
	"github.com/quillcms/quill/internal/observability"
	"github.com/quillcms/quill/internal/rbac"
	"github.com/quillcms/quill/internal/repository"
)

type CreateCategoryInput struct {
	Name        string `validate:"required,min=2,max=120"`
	Slug        string `validate:"omitempty,max=140"`
	Description string `validate:"max=500"`
}

type UpdateCategoryInput struct {
	Name        *string
	Slug        *string
	Description *string
}

type CategoryServiceImpl struct {
	repo repository.CategoryRepository
}

func NewCategoryService(repo repository.CategoryRepository) *CategoryServiceImpl {
	return &CategoryServiceImpl{repo: repo}
}

func (s *CategoryServiceImpl) Create(ctx context.Context, input CreateCategoryInput) (*domain.Category, error) {
	outcome := "success"
	defer func() { observability.RecordContentMutation(ctx, "category", "create", outcome) }()

	if err := validate.Struct(input); err != nil {
		outcome = "bad_request"
		return nil, err
	}
	slug := input.Slug
	if slug == "" {
		slug = Slugify(input.Name)
	}
	category := &domain.Category{
		Name:        input.Name,
		Slug:        slug,
		Description: input.Description,
	}
	if err := s.repo.Create(category); err != nil {
		if errors.Is(err, repository.ErrDuplicateSlug) {
			outcome = "conflict"
		} else {
			outcome = "error"
		}
		return nil, err
	}
	return category, nil
}

func (s *CategoryServiceImpl) ListAll(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListAll()
}

func (s *CategoryServiceImpl) ListPaged(ctx context.Context, q repository.CategoryListQuery) (repository.PageResult[domain.Category], error) {
	observability.RecordListPageSize(ctx, "categories", q.Limit)
	return s.repo.ListPaged(q)
}

func (s *CategoryServiceImpl) GetByID(ctx context.Context, id uint) (*domain.Category, error) {
	return s.repo.FindByID(id)
}

func (s *CategoryServiceImpl) GetBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	return s.repo.FindBySlug(slug)
}

func (s *CategoryServiceImpl) Update(ctx context.Context, actor *rbac.Actor, id uint, input UpdateCategoryInput) (*domain.Category, error) {
	outcome := "success"
	defer func() { observability.RecordContentMutation(ctx, "category", "update", outcome) }()

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
	if input.Slug != nil {
		updates["slug"] = Slugify(*input.Slug)
	}
	if input.Description != nil {
		updates["description"] = *input.Description
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

func (s *CategoryServiceImpl) Delete(ctx context.Context, actor *rbac.Actor, id uint) error {
	outcome := "success"
	defer func() { observability.RecordContentMutation(ctx, "category", "delete", outcome) }()

	existing, err := s.repo.FindByID(id)
	if err != nil {
		outcome = "not_found"
		return err
	}
	if existing.Demo && !rbac.IsSuperAdmin(actor) {
		outcome = "forbidden"
		return rbac.ErrDemoLocked
	}
	if err := s.repo.DeleteByID(id); err != nil {
		if errors.Is(err, repository.ErrCategoryInUse) {
			outcome = "conflict"
		} else {
			outcome = "error"
		}
		return err
	}
	return nil
}
