package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/quillcms/quill/internal/http/middleware"
	"github.com/quillcms/quill/internal/http/response"
	"github.com/quillcms/quill/internal/observability"
	"github.com/quillcms/quill/internal/rbac"
	"github.com/quillcms/quill/internal/repository"
	"github.com/quillcms/quill/internal/service"
)

type CommentHandler struct {
	auth    *middleware.Authenticator
	service *service.CommentServiceImpl
}

func NewCommentHandler(auth *middleware.Authenticator, svc *service.CommentServiceImpl) *CommentHandler {
	return &CommentHandler{auth: auth, service: svc}
}

func (h *CommentHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Patch("/{id}", h.SetStatus)
	r.Delete("/{id}", h.Delete)
	r.Post("/bulk", h.BulkUpdate)
	r.Delete("/bulk", h.BulkDelete)
	return r
}

func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	_, ok := h.auth.Authenticate(w, r, middleware.AuthOptions{
		CheckPermission: true,
		Permission:      rbac.PermCommentsView,
	})
	if !ok {
		return
	}
	sortBy, sortOrder := parseSortParams(r)
	q := repository.CommentListQuery{
		PageRequest: parsePageRequest(r),
		Search:      r.URL.Query().Get("search"),
		SortBy:      sortBy,
		SortOrder:   sortOrder,
		Status:      r.URL.Query().Get("status"),
	}
	if raw := r.URL.Query().Get("post"); raw != "" {
		if v, err := strconv.ParseUint(raw, 10, 32); err == nil {
			q.PostID = uint(v)
		}
	}
	res, err := h.service.ListPaged(r.Context(), q)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "Failed to list comments", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, response.Paginated(res.Data, res.Page, res.Limit, res.Total, res.TotalPages))
}

type setCommentStatusRequest struct {
	Status string `json:"status"`
}

func (h *CommentHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.auth.Authenticate(w, r, middleware.AuthOptions{
		CheckPermission: true,
		Permission:      rbac.PermCommentsManage,
	})
	if !ok {
		return
	}
	id, err := parsePathID(r)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}
	var req setCommentStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	comment, err := h.service.SetStatus(r.Context(), actor, id, req.Status)
	if err != nil {
		h.writeCommentMutationError(w, r, err)
		return
	}
	observability.Audit(r, "comment.status_changed", "comment_id", id, "status", req.Status, "actor_id", actor.ID)
	response.JSON(w, r, http.StatusOK, comment)
}

func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.auth.Authenticate(w, r, middleware.AuthOptions{
		CheckPermission: true,
		Permission:      rbac.PermCommentsManage,
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
		h.writeCommentMutationError(w, r, err)
		return
	}
	observability.Audit(r, "comment.deleted", "comment_id", id, "actor_id", actor.ID)
	response.JSON(w, r, http.StatusOK, map[string]any{"id": id})
}

type bulkCommentRequest struct {
	IDs    []uint  `json:"ids"`
	Status *string `json:"status"`
}

func (h *CommentHandler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.auth.Authenticate(w, r, middleware.AuthOptions{
		CheckPermission: true,
		Permission:      rbac.PermCommentsManage,
	})
	if !ok {
		return
	}
	var req bulkCommentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Status == nil {
		response.Error(w, r, http.StatusBadRequest, "Nothing to update", nil)
		return
	}
	modified, err := h.service.BulkUpdateStatus(r.Context(), actor, req.IDs, *req.Status)
	if err != nil {
		if errors.Is(err, service.ErrEmptyIDList) || errors.Is(err, service.ErrCommentInvalidStatus) {
			response.Error(w, r, http.StatusBadRequest, err.Error(), nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "Bulk update failed", nil)
		return
	}
	observability.Audit(r, "comment.bulk_updated", "count", modified, "actor_id", actor.ID)
	response.JSON(w, r, http.StatusOK, map[string]any{
		"message":       fmt.Sprintf("%d comments updated", modified),
		"modifiedCount": modified,
	})
}

func (h *CommentHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.auth.Authenticate(w, r, middleware.AuthOptions{
		CheckPermission: true,
		Permission:      rbac.PermCommentsManage,
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
	observability.Audit(r, "comment.bulk_deleted", "count", deleted, "actor_id", actor.ID)
	response.JSON(w, r, http.StatusOK, map[string]any{
		"message":      fmt.Sprintf("%d comments deleted", deleted),
		"deletedCount": deleted,
	})
}

func (h *CommentHandler) writeCommentMutationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrCommentNotFound):
		response.Error(w, r, http.StatusNotFound, "Comment not found", nil)
	case errors.Is(err, rbac.ErrDemoLocked):
		response.Error(w, r, http.StatusForbidden, "Demo data can't be deleted!", nil)
	case errors.Is(err, service.ErrCommentInvalidStatus):
		response.Error(w, r, http.StatusBadRequest, err.Error(), nil)
	case service.IsValidationError(err):
		response.Error(w, r, http.StatusBadRequest, "Validation failed", service.FieldErrors(err))
	default:
		response.Error(w, r, http.StatusInternalServerError, "Comment mutation failed", nil)
	}
}
