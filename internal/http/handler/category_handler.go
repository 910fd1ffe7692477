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

type CategoryHandler struct {
	auth    *middleware.Authenticator
	service *service.CategoryServiceImpl
}

func NewCategoryHandler(auth *middleware.Authenticator, svc *service.CategoryServiceImpl) *CategoryHandler {
	return &CategoryHandler{auth: auth, service: svc}
}

func (h *CategoryHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/", h.Create)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	return r
}

func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	_, ok := h.auth.Authenticate(w, r, middleware.AuthOptions{
		CheckPermission: true,
		Permission:      rbac.PermCategoriesView,
	})
	if !ok {
		return
	}
	sortBy, sortOrder := parseSortParams(r)
	res, err := h.service.ListPaged(r.Context(), repository.CategoryListQuery{
		PageRequest: parsePageRequest(r),
		Search:      r.URL.Query().Get("search"),
		SortBy:      sortBy,
		SortOrder:   sortOrder,
	})
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "Failed to list categories", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, response.Paginated(res.Data, res.Page, res.Limit, res.Total, res.TotalPages))
}

func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	_, ok := h.auth.Authenticate(w, r, middleware.AuthOptions{
		CheckPermission: true,
		Permission:      rbac.PermCategoriesView,
	})
	if !ok {
		return
	}
	id, err := parsePathID(r)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}
	category, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			response.Error(w, r, http.StatusNotFound, "Category not found", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "Failed to load category", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, category)
}

func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.auth.Authenticate(w, r, middleware.AuthOptions{
		CheckPermission: true,
		Permission:      rbac.PermCategoriesAdd,
	})
	if !ok {
		return
	}
	var input service.CreateCategoryInput
	if !decodeBody(w, r, &input) {
		return
	}
	category, err := h.service.Create(r.Context(), input)
	if err != nil {
		if writeValidationError(w, r, err) {
			return
		}
		if errors.Is(err, repository.ErrDuplicateSlug) {
			response.Error(w, r, http.StatusConflict, "Duplicate slug, please choose a different one", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "Failed to create category", nil)
		return
	}
	observability.Audit(r, "category.created", "category_id", category.ID, "actor_id", actor.ID)
	response.JSON(w, r, http.StatusCreated, category)
}

func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.auth.Authenticate(w, r, middleware.AuthOptions{
		CheckPermission: true,
		Permission:      rbac.PermCategoriesUpdate,
	})
	if !ok {
		return
	}
	id, err := parsePathID(r)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}
	var input service.UpdateCategoryInput
	if !decodeBody(w, r, &input) {
		return
	}
	category, err := h.service.Update(r.Context(), actor, id, input)
	if err != nil {
		h.writeCategoryMutationError(w, r, err)
		return
	}
	observability.Audit(r, "category.updated", "category_id", category.ID, "actor_id", actor.ID)
	response.JSON(w, r, http.StatusOK, category)
}

func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.auth.Authenticate(w, r, middleware.AuthOptions{
		CheckPermission: true,
		Permission:      rbac.PermCategoriesDelete,
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
		h.writeCategoryMutationError(w, r, err)
		return
	}
	observability.Audit(r, "category.deleted", "category_id", id, "actor_id", actor.ID)
	response.JSON(w, r, http.StatusOK, map[string]any{"id": id})
}

func (h *CategoryHandler) writeCategoryMutationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrCategoryNotFound):
		response.Error(w, r, http.StatusNotFound, "Category not found", nil)
	case errors.Is(err, rbac.ErrDemoLocked):
		response.Error(w, r, http.StatusForbidden, "Demo data can't be deleted!", nil)
	case errors.Is(err, repository.ErrCategoryInUse):
		response.Error(w, r, http.StatusConflict, "Category still has posts assigned to it", nil)
	case errors.Is(err, repository.ErrDuplicateSlug):
		response.Error(w, r, http.StatusConflict, "Duplicate slug, please choose a different one", nil)
	case errors.Is(err, service.ErrNoUpdates):
		response.Error(w, r, http.StatusBadRequest, err.Error(), nil)
	case service.IsValidationError(err):
		response.Error(w, r, http.StatusBadRequest, "Validation failed", service.FieldErrors(err))
	default:
		response.Error(w, r, http.StatusInternalServerError, "Category mutation failed", nil)
	}
}
