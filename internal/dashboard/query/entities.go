package query

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/quillcms/quill/internal/domain"
)

// PostsClient manages /api/posts through the optimistic cache.
type PostsClient struct {
	*resource[domain.Post]
}

func NewPostsClient(c *Client) *PostsClient {
	return &PostsClient{resource: newResource(c, "/api/posts",
		func(p *domain.Post) uint { return p.ID },
		func(p *domain.Post, t time.Time) { p.UpdatedAt = t },
	)}
}

// PostInput is the write payload for create and update. Nil fields are
// omitted so a PATCH only touches what the user changed.
type PostInput struct {
	Title      *string `json:"title,omitempty"`
	Slug       *string `json:"slug,omitempty"`
	Content    *string `json:"content,omitempty"`
	Excerpt    *string `json:"excerpt,omitempty"`
	Status     *string `json:"status,omitempty"`
	CategoryID *uint   `json:"categoryId,omitempty"`
	Tags       *string `json:"tags,omitempty"`
	IsFeatured *bool   `json:"isFeatured,omitempty"`
}

type BulkPostInput struct {
	IDs        []uint  `json:"ids"`
	Status     *string `json:"status,omitempty"`
	IsFeatured *bool   `json:"isFeatured,omitempty"`
}

func (pc *PostsClient) SetStatus(ctx context.Context, active ListParams, id uint, status string) (*domain.Post, error) {
	return pc.Update(ctx, active, id, PostInput{Status: &status}, func(p *domain.Post) {
		p.Status = status
	})
}

func (pc *PostsClient) ToggleFeatured(ctx context.Context, active ListParams, id uint, featured bool) (*domain.Post, error) {
	return pc.Update(ctx, active, id, PostInput{IsFeatured: &featured}, func(p *domain.Post) {
		p.IsFeatured = featured
	})
}

func (pc *PostsClient) BulkSetStatus(ctx context.Context, active ListParams, ids []uint, status string) (*BulkResult, error) {
	return pc.BulkUpdate(ctx, active, ids, BulkPostInput{IDs: ids, Status: &status}, func(p *domain.Post) {
		p.Status = status
	})
}

func (pc *PostsClient) BulkSetFeatured(ctx context.Context, active ListParams, ids []uint, featured bool) (*BulkResult, error) {
	return pc.BulkUpdate(ctx, active, ids, BulkPostInput{IDs: ids, IsFeatured: &featured}, func(p *domain.Post) {
		p.IsFeatured = featured
	})
}

// PagesClient manages /api/pages.
type PagesClient struct {
	*resource[domain.Page]
}

func NewPagesClient(c *Client) *PagesClient {
	return &PagesClient{resource: newResource(c, "/api/pages",
		func(p *domain.Page) uint { return p.ID },
		func(p *domain.Page, t time.Time) { p.UpdatedAt = t },
	)}
}

type PageInput struct {
	Title    *string `json:"title,omitempty"`
	Slug     *string `json:"slug,omitempty"`
	Content  *string `json:"content,omitempty"`
	Status   *string `json:"status,omitempty"`
	IsActive *bool   `json:"isActive,omitempty"`
}

// ToggleActive flips visibility through the dedicated toggle route so
// the server decides the new value; the optimistic patch mirrors it.
func (pc *PagesClient) ToggleActive(ctx context.Context, active ListParams, id uint) (*domain.Page, error) {
	return pc.mutateRecord(ctx, active, id, http.MethodPatch,
		fmt.Sprintf("%s/%d/toggle", pc.path, id), nil,
		func(p *domain.Page) { p.IsActive = !p.IsActive })
}

// CategoriesClient manages /api/categories.
type CategoriesClient struct {
	*resource[domain.Category]
}

func NewCategoriesClient(c *Client) *CategoriesClient {
	return &CategoriesClient{resource: newResource(c, "/api/categories",
		func(cat *domain.Category) uint { return cat.ID },
		func(cat *domain.Category, t time.Time) { cat.UpdatedAt = t },
	)}
}

type CategoryInput struct {
	Name        *string `json:"name,omitempty"`
	Slug        *string `json:"slug,omitempty"`
	Description *string `json:"description,omitempty"`
}

// CommentsClient manages /api/comments. Comments have no create from
// the dashboard; they arrive through the public site.
type CommentsClient struct {
	*resource[domain.Comment]
}

func NewCommentsClient(c *Client) *CommentsClient {
	return &CommentsClient{resource: newResource(c, "/api/comments",
		func(cm *domain.Comment) uint { return cm.ID },
		func(cm *domain.Comment, t time.Time) { cm.UpdatedAt = t },
	)}
}

func (cc *CommentsClient) SetStatus(ctx context.Context, active ListParams, id uint, status string) (*domain.Comment, error) {
	return cc.Update(ctx, active, id, map[string]string{"status": status}, func(cm *domain.Comment) {
		cm.Status = status
	})
}

// UsersClient manages /api/users.
type UsersClient struct {
	*resource[domain.User]
}

func NewUsersClient(c *Client) *UsersClient {
	return &UsersClient{resource: newResource(c, "/api/users",
		func(u *domain.User) uint { return u.ID },
		func(u *domain.User, t time.Time) { u.UpdatedAt = t },
	)}
}

type UserInput struct {
	Email    *string `json:"email,omitempty"`
	Name     *string `json:"name,omitempty"`
	Password *string `json:"password,omitempty"`
	Role     *string `json:"role,omitempty"`
	IsActive *bool   `json:"isActive,omitempty"`
}
