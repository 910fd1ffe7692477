package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/quillcms/quill/internal/config"
	"github.com/quillcms/quill/internal/domain"
	"github.com/quillcms/quill/internal/http/response"
	"github.com/quillcms/quill/internal/repository"
	"github.com/quillcms/quill/internal/service"
)

// PublicHandler serves the unauthenticated read surface. Only published,
// active content is ever visible here.
type PublicHandler struct {
	posts      *service.PostServiceImpl
	pages      *service.PageServiceImpl
	categories *service.CategoryServiceImpl
	comments   *service.CommentServiceImpl
	site       config.SiteConfig
}

func NewPublicHandler(posts *service.PostServiceImpl, pages *service.PageServiceImpl, categories *service.CategoryServiceImpl, comments *service.CommentServiceImpl, site config.SiteConfig) *PublicHandler {
	return &PublicHandler{posts: posts, pages: pages, categories: categories, comments: comments, site: site}
}

func (h *PublicHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/posts", h.ListPosts)
	r.Get("/posts/{slug}", h.GetPost)
	r.Get("/pages/{slug}", h.GetPage)
	r.Get("/categories", h.ListCategories)
	r.Post("/comments", h.SubmitComment)
	return r
}

func (h *PublicHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	sortBy, sortOrder := parseSortParams(r)
	q := repository.PostListQuery{
		PageRequest:   parsePageRequest(r),
		Search:        r.URL.Query().Get("search"),
		SortBy:        sortBy,
		SortOrder:     sortOrder,
		PublishedOnly: true,
	}
	if raw := r.URL.Query().Get("category"); raw != "" {
		if category, err := h.categories.GetBySlug(r.Context(), raw); err == nil {
			q.CategoryID = category.ID
		}
	}
	if raw := r.URL.Query().Get("tag"); raw != "" {
		q.Tag = raw
	}

	res, err := h.posts.ListPaged(r.Context(), q)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "Failed to list posts", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, response.Paginated(res.Data, res.Page, res.Limit, res.Total, res.TotalPages))
}

// GetPost returns the post detail with related posts and approved
// comments fetched concurrently, plus site SEO metadata.
func (h *PublicHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	post, err := h.posts.GetBySlug(r.Context(), slug)
	if err != nil || post.Status != domain.StatusPublished {
		response.Error(w, r, http.StatusNotFound, "Post not found", nil)
		return
	}

	// A lost increment under races is acceptable only because the UPDATE
	// itself is atomic; failures here must not break the read.
	_ = h.posts.RecordView(r.Context(), post.ID)

	var related []domain.Post
	var comments []domain.Comment
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		related, err = h.posts.ListRelated(ctx, post, 3)
		return err
	})
	g.Go(func() error {
		var err error
		comments, err = h.comments.ListApprovedForPost(ctx, post.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		response.Error(w, r, http.StatusInternalServerError, "Failed to load post", nil)
		return
	}
	if related == nil {
		related = []domain.Post{}
	}
	if comments == nil {
		comments = []domain.Comment{}
	}

	response.JSON(w, r, http.StatusOK, map[string]any{
		"post":     post,
		"related":  related,
		"comments": comments,
		"seo":      h.seoMeta(post.Title, post.Excerpt, "/posts/"+post.Slug),
	})
}

func (h *PublicHandler) GetPage(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	page, err := h.pages.GetBySlug(r.Context(), slug)
	if err != nil || !page.IsActive || page.Status != domain.StatusPublished {
		response.Error(w, r, http.StatusNotFound, "Page not found", nil)
		return
	}
	_ = h.pages.RecordView(r.Context(), page.ID)
	response.JSON(w, r, http.StatusOK, map[string]any{
		"page": page,
		"seo":  h.seoMeta(page.Title, "", "/"+page.Slug),
	})
}

func (h *PublicHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.ListAll(r.Context())
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "Failed to list categories", nil)
		return
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	response.JSON(w, r, http.StatusOK, categories)
}

func (h *PublicHandler) SubmitComment(w http.ResponseWriter, r *http.Request) {
	var input service.CreateCommentInput
	if !decodeBody(w, r, &input) {
		return
	}
	comment, err := h.comments.Submit(r.Context(), input)
	if err != nil {
		if writeValidationError(w, r, err) {
			return
		}
		if errors.Is(err, repository.ErrPostNotFound) {
			response.Error(w, r, http.StatusNotFound, "Post not found", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "Failed to submit comment", nil)
		return
	}
	response.JSON(w, r, http.StatusCreated, comment)
}

func (h *PublicHandler) seoMeta(title, description, path string) map[string]any {
	if description == "" {
		description = h.site.Description
	}
	return map[string]any{
		"title":       title + " | " + h.site.Name,
		"description": description,
		"canonical":   h.site.BaseURL + path,
		"siteName":    h.site.Name,
	}
}
