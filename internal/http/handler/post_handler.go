package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/quillcms/quill/internal/http/middleware"
	"github.com/quillcms/quill/internal/http/response"
	"github.com/quillcms/quill/internal/observability"
	"github.com/quillcms/quill/internal/rbac"
	"github.com/quillcms/quill/internal/repository"
	"github.com/quillcms/quill/internal/service"
)

type PostHandler struct {
	auth    *middleware.Authenticator
	service *service.PostServiceImpl
}

func NewPostHandler(auth *middleware.Authenticator, svc *service.PostServiceImpl) *PostHandler {
	return &PostHandler{auth: auth, service: svc}
}

func (h *PostHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/", h.Create)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/bulk", h.BulkUpdate)
	r.Delete("/bulk", h.BulkDelete)
	return r
}

func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	_, ok := h.auth.Authenticate(w, r, middleware.AuthOptions{
		CheckPermission: true,
		Permission:      rbac.PermPostsView,
	})
	if !ok {
		return
	}

	sortBy, sortOrder := parseSortParams(r)
	q := repository.PostListQuery{
		PageRequest: parsePageRequest(r),
		Search:      r.URL.Query().Get("search"),
		SortBy:      sortBy,
		SortOrder:   sortOrder,
		Status:      r.URL.Query().Get("status"),
	}
	if raw := r.URL.Query().Get("author"); raw != "" {
		if v, err := strconv.ParseUint(raw, 10, 32); err == nil {
			q.AuthorID = uint(v)
		}
	}
	if raw := r.URL.Query().Get("category"); raw != "" {
		if v, err := strconv.ParseUint(raw, 10, 32); err == nil {
			q.CategoryID = uint(v)
		}
	}
	if raw := r.URL.Query().Get("tag"); raw != "" {
		q.Tag = raw
	}
	if raw := r.URL.Query().Get("isFeatured"); raw != "" {
		featured := raw == "true"
		q.IsFeatured = &featured
	}

	res, err := h.service.ListPaged(r.Context(), q)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "Failed to list posts", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, response.Paginated(res.Data, res.Page, res.Limit, res.Total, res.TotalPages))
}

func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	_, ok := h.auth.Authenticate(w, r, middleware.AuthOptions{
		CheckPermission: true,
		Permission:      rbac.PermPostsView,
	})
	if !ok {
		return
	}
	id, err := parsePathID(r)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}
	post, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			response.Error(w, r, http.StatusNotFound, "Post not found", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "Failed to load post", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, post)
}

func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.auth.Authenticate(w, r, middleware.AuthOptions{
		CheckPermission: true,
		Permission:      rbac.PermPostsManage,
	})
	if !ok {
		return
	}
	var input service.CreatePostInput
	if !decodeBody(w, r, &input) {
		return
	}
	post, err := h.service.Create(r.Context(), actor, input)
	if err != nil {
		if writeValidationError(w, r, err) {
			return
		}
		if errors.Is(err, repository.ErrDuplicateSlug) {
			response.Error(w, r, http.StatusConflict, "Duplicate slug, please choose a different one", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "Failed to create post", nil)
		return
	}
	observability.Audit(r, "post.created", "post_id", post.ID, "actor_id", actor.ID)
	response.JSON(w, r, http.StatusCreated, post)
}

func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.auth.Authenticate(w, r, middleware.AuthOptions{
		CheckPermission: true,
		Permission:      rbac.PermPostsManage,
	})
	if !ok {
		return
	}
	id, err := parsePathID(r)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}
	var input service.UpdatePostInput
	if !decodeBody(w, r, &input) {
		return
	}
	post, err := h.service.Update(r.Context(), actor, id, input)
	if err != nil {
		h.writePostMutationError(w, r, err, "You don't have permission to edit this post")
		return
	}
	observability.Audit(r, "post.updated", "post_id", post.ID, "actor_id", actor.ID)
	response.JSON(w, r, http.StatusOK, post)
}

func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.auth.Authenticate(w, r, middleware.AuthOptions{
		CheckPermission: true,
		Permission:      rbac.PermPostsDelete,
	})
	if !ok {
		return
	}
	id, err := parsePathID(r)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		h.writePostMutationError(w, r, err, "You don't have permission to delete this post")
		return
	}
	observability.Audit(r, "post.deleted", "post_id", id, "actor_id", actor.ID)
	response.JSON(w, r, http.StatusOK, map[string]any{"id": id})
}

type bulkPostRequest struct {
	IDs        []uint  `json:"ids"`
	Status     *string `json:"status"`
	IsFeatured *bool   `json:"isFeatured"`
}

// BulkUpdate applies one field change to many posts. The body carries
// either a status or an isFeatured flag.
func (h *PostHandler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.auth.Authenticate(w, r, middleware.AuthOptions{
		CheckPermission: true,
		Permission:      rbac.PermPostsManage,
	})
	if !ok {
		return
	}
	var req bulkPostRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var modified int64
	var err error
	switch {
	case req.Status != nil:
		modified, err = h.service.BulkUpdateStatus(r.Context(), actor, req.IDs, *req.Status)
	case req.IsFeatured != nil:
		modified, err = h.service.BulkSetFeatured(r.Context(), actor, req.IDs, *req.IsFeatured)
	default:
		response.Error(w, r, http.StatusBadRequest, "Nothing to update", nil)
		return
	}
	if err != nil {
		if errors.Is(err, service.ErrEmptyIDList) || errors.Is(err, service.ErrPostInvalidStatus) {
			response.Error(w, r, http.StatusBadRequest, err.Error(), nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "Bulk update failed", nil)
		return
	}
	observability.Audit(r, "post.bulk_updated", "count", modified, "actor_id", actor.ID)
	response.JSON(w, r, http.StatusOK, map[string]any{
		"message":       fmt.Sprintf("%d posts updated", modified),
		"modifiedCount": modified,
	})
}

func (h *PostHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.auth.Authenticate(w, r, middleware.AuthOptions{
		CheckPermission: true,
		Permission:      rbac.PermPostsDelete,
	})
	if !ok {
		return
	}
	var req bulkIDsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	deleted, err := h.service.BulkDelete(r.Context(), actor, req.IDs)
	if err != nil {
		if errors.Is(err, service.ErrEmptyIDList) {
			response.Error(w, r, http.StatusBadRequest, err.Error(), nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "Bulk delete failed", nil)
		return
	}
	observability.Audit(r, "post.bulk_deleted", "count", deleted, "actor_id", actor.ID)
	response.JSON(w, r, http.StatusOK, map[string]any{
		"message":      fmt.Sprintf("%d posts deleted", deleted),
		"deletedCount": deleted,
	})
}

func (h *PostHandler) writePostMutationError(w http.ResponseWriter, r *http.Request, err error, ownershipMsg string) {
	switch {
	case errors.Is(err, repository.ErrPostNotFound):
		response.Error(w, r, http.StatusNotFound, "Post not found", nil)
	case errors.Is(err, rbac.ErrDemoLocked):
		response.Error(w, r, http.StatusForbidden, "Demo data can't be deleted!", nil)
	case errors.Is(err, rbac.ErrNotOwner):
		response.Error(w, r, http.StatusForbidden, ownershipMsg, nil)
	case errors.Is(err, repository.ErrDuplicateSlug):
		response.Error(w, r, http.StatusConflict, "Duplicate slug, please choose a different one", nil)
	case errors.Is(err, service.ErrNoUpdates):
		response.Error(w, r, http.StatusBadRequest, err.Error(), nil)
	case service.IsValidationError(err):
		response.Error(w, r, http.StatusBadRequest, "Validation failed", service.FieldErrors(err))
	case strings.Contains(err.Error(), "must be"):
		response.Error(w, r, http.StatusBadRequest, err.Error(), nil)
	default:
		response.Error(w, r, http.StatusInternalServerError, "Post mutation failed", nil)
	}
}
