package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quillcms/quill/internal/http/middleware"
	"github.com/quillcms/quill/internal/http/response"
	"github.com/quillcms/quill/internal/observability"
	"github.com/quillcms/quill/internal/rbac"
	"github.com/quillcms/quill/internal/repository"
	"github.com/quillcms/quill/internal/service"
)

type PageHandler struct {
	auth    *middleware.Authenticator
	service *service.PageServiceImpl
}

func NewPageHandler(auth *middleware.Authenticator, svc *service.PageServiceImpl) *PageHandler {
	return &PageHandler{auth: auth, service: svc}
}

func (h *PageHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/", h.Create)
	r.Patch("/{id}", h.Update)
	r.Patch("/{id}/toggle", h.ToggleActive)
	r.Delete("/{id}", h.Delete)
	return r
}

func (h *PageHandler) List(w http.ResponseWriter, r *http.Request) {
	_, ok := h.auth.Authenticate(w, r, middleware.AuthOptions{
		CheckPermission: true,
		Permission:      rbac.PermPagesView,
	})
	if !ok {
		return
	}
	sortBy, sortOrder := parseSortParams(r)
	res, err := h.service.ListPaged(r.Context(), repository.PageListQuery{
		PageRequest: parsePageRequest(r),
		Search:      r.URL.Query().Get("search"),
		SortBy:      sortBy,
		SortOrder:   sortOrder,
	})
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "Failed to list pages", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, response.Paginated(res.Data, res.Page, res.Limit, res.Total, res.TotalPages))
}

func (h *PageHandler) Get(w http.ResponseWriter, r *http.Request) {
	_, ok := h.auth.Authenticate(w, r, middleware.AuthOptions{
		CheckPermission: true,
		Permission:      rbac.PermPagesView,
	})
	if !ok {
		return
	}
	id, err := parsePathID(r)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}
	page, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrPageNotFound) {
			response.Error(w, r, http.StatusNotFound, "Page not found", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "Failed to load page", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, page)
}

func (h *PageHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.auth.Authenticate(w, r, middleware.AuthOptions{
		CheckPermission: true,
		Permission:      rbac.PermPagesManage,
	})
	if !ok {
		return
	}
	var input service.CreatePageInput
	if !decodeBody(w, r, &input) {
		return
	}
	page, err := h.service.Create(r.Context(), actor, input)
	if err != nil {
		if writeValidationError(w, r, err) {
			return
		}
		if errors.Is(err, repository.ErrDuplicateSlug) {
			response.Error(w, r, http.StatusConflict, "Duplicate slug, please choose a different one", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "Failed to create page", nil)
		return
	}
	observability.Audit(r, "page.created", "page_id", page.ID, "actor_id", actor.ID)
	response.JSON(w, r, http.StatusCreated, page)
}

func (h *PageHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.auth.Authenticate(w, r, middleware.AuthOptions{
		CheckPermission: true,
		Permission:      rbac.PermPagesManage,
	})
	if !ok {
		return
	}
	id, err := parsePathID(r)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}
	var input service.UpdatePageInput
	if !decodeBody(w, r, &input) {
		return
	}
	page, err := h.service.Update(r.Context(), actor, id, input)
	if err != nil {
		h.writePageMutationError(w, r, err, "You don't have permission to edit this page")
		return
	}
	observability.Audit(r, "page.updated", "page_id", page.ID, "actor_id", actor.ID)
	response.JSON(w, r, http.StatusOK, page)
}

func (h *PageHandler) ToggleActive(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.auth.Authenticate(w, r, middleware.AuthOptions{
		CheckPermission: true,
		Permission:      rbac.PermPagesManage,
	})
	if !ok {
		return
	}
	id, err := parsePathID(r)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}
	page, err := h.service.ToggleActive(r.Context(), actor, id)
	if err != nil {
		h.writePageMutationError(w, r, err, "You don't have permission to edit this page")
		return
	}
	observability.Audit(r, "page.toggled", "page_id", page.ID, "active", page.IsActive, "actor_id", actor.ID)
	response.JSON(w, r, http.StatusOK, page)
}

func (h *PageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.auth.Authenticate(w, r, middleware.AuthOptions{
		CheckPermission: true,
		Permission:      rbac.PermPagesDelete,
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
		h.writePageMutationError(w, r, err, "You don't have permission to delete this page")
		return
	}
	observability.Audit(r, "page.deleted", "page_id", id, "actor_id", actor.ID)
	response.JSON(w, r, http.StatusOK, map[string]any{"id": id})
}

func (h *PageHandler) writePageMutationError(w http.ResponseWriter, r *http.Request, err error, ownershipMsg string) {
	switch {
	case errors.Is(err, repository.ErrPageNotFound):
		response.Error(w, r, http.StatusNotFound, "Page not found", nil)
	case errors.Is(err, rbac.ErrDemoLocked):
		response.Error(w, r, http.StatusForbidden, "Demo data can't be deleted!", nil)
	case errors.Is(err, rbac.ErrNotOwner):
		response.Error(w, r, http.StatusForbidden, ownershipMsg, nil)
	case errors.Is(err, repository.ErrDuplicateSlug):
		response.Error(w, r, http.StatusConflict, "Duplicate slug, please choose a different one", nil)
	case errors.Is(err, service.ErrNoUpdates), errors.Is(err, service.ErrPostInvalidStatus):
		response.Error(w, r, http.StatusBadRequest, err.Error(), nil)
	case service.IsValidationError(err):
		response.Error(w, r, http.StatusBadRequest, "Validation failed", service.FieldErrors(err))
	default:
		response.Error(w, r, http.StatusInternalServerError, "Page mutation failed", nil)
	}
}
