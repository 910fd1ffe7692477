package service

import (
	"context"
	"errors"

	"github.com/quillcms/quill/internal/domain"
	"github.com/quillcms/quill/internal/observability"
	"github.com/quillcms/quill/internal/rbac"
	"github.com/quillcms/quill/internal/repository"
)

var ErrCommentInvalidStatus = errors.New("status must be one of pending, approved, spam")

type CreateCommentInput struct {
	PostID      uint   `validate:"required"`
	AuthorName  string `validate:"required,min=2,max=120"`
	AuthorEmail string `validate:"omitempty,email,max=255"`
	Body        string `validate:"required,min=2"`
}

type CommentServiceImpl struct {
	repo  repository.CommentRepository
	posts repository.PostRepository
}

func NewCommentService(repo repository.CommentRepository, posts repository.PostRepository) *CommentServiceImpl {
	return &CommentServiceImpl{repo: repo, posts: posts}
}

// Submit accepts a public comment. New comments always start pending.
func (s *CommentServiceImpl) Submit(ctx context.Context, input CreateCommentInput) (*domain.Comment, error) {
	outcome := "success"
	defer func() { observability.RecordContentMutation(ctx, "comment", "submit", outcome) }()

	if err := validate.Struct(input); err != nil {
		outcome = "bad_request"
		return nil, err
	}
	if _, err := s.posts.FindByID(input.PostID); err != nil {
		outcome = "not_found"
		return nil, err
	}
	comment := &domain.Comment{
		PostID:      input.PostID,
		AuthorName:  input.AuthorName,
		AuthorEmail: input.AuthorEmail,
		Body:        input.Body,
		Status:      domain.CommentPending,
	}
	if err := s.repo.Create(comment); err != nil {
		outcome = "error"
		return nil, err
	}
	return comment, nil
}

func (s *CommentServiceImpl) ListPaged(ctx context.Context, q repository.CommentListQuery) (repository.PageResult[domain.Comment], error) {
	observability.RecordListPageSize(ctx, "comments", q.Limit)
	return s.repo.ListPaged(q)
}

func (s *CommentServiceImpl) ListApprovedForPost(ctx context.Context, postID uint) ([]domain.Comment, error) {
	return s.repo.ListApprovedForPost(postID)
}

func (s *CommentServiceImpl) SetStatus(ctx context.Context, actor *rbac.Actor, id uint, status string) (*domain.Comment, error) {
	outcome := "success"
	defer func() { observability.RecordContentMutation(ctx, "comment", "set_status", outcome) }()

	if !validCommentStatus(status) {
		outcome = "bad_request"
		return nil, ErrCommentInvalidStatus
	}
	existing, err := s.repo.FindByID(id)
	if err != nil {
		outcome = "not_found"
		return nil, err
	}
	if existing.Demo && !rbac.IsSuperAdmin(actor) {
		outcome = "forbidden"
		return nil, rbac.ErrDemoLocked
	}
	if err := s.repo.Update(id, map[string]any{"status": status}); err != nil {
		outcome = "error"
		return nil, err
	}
	return s.repo.FindByID(id)
}

func (s *CommentServiceImpl) Delete(ctx context.Context, actor *rbac.Actor, id uint) error {
	outcome := "success"
	defer func() { observability.RecordContentMutation(ctx, "comment", "delete", outcome) }()

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
		outcome = "error"
		return err
	}
	return nil
}

func (s *CommentServiceImpl) BulkUpdateStatus(ctx context.Context, actor *rbac.Actor, ids []uint, status string) (int64, error) {
	outcome := "success"
	defer func() { observability.RecordContentMutation(ctx, "comment", "bulk_update_status", outcome) }()

	if len(ids) == 0 {
		outcome = "bad_request"
		return 0, ErrEmptyIDList
	}
	if !validCommentStatus(status) {
		outcome = "bad_request"
		return 0, ErrCommentInvalidStatus
	}
	modified, err := s.repo.BulkUpdateStatus(ids, status, !rbac.IsSuperAdmin(actor))
	if err != nil {
		outcome = "error"
		return 0, err
	}
	return modified, nil
}

func (s *CommentServiceImpl) BulkDelete(ctx context.Context, actor *rbac.Actor, ids []uint) (int64, error) {
	outcome := "success"
	defer func() { observability.RecordContentMutation(ctx, "comment", "bulk_delete", outcome) }()

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

func validCommentStatus(status string) bool {
	switch status {
	case domain.CommentPending, domain.CommentApproved, domain.CommentSpam:
		return true
	}
	return false
}
