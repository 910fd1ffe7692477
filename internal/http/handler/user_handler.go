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

type UserHandler struct {
	auth    *middleware.Authenticator
	service *service.UserServiceImpl
}

func NewUserHandler(auth *middleware.Authenticator, svc *service.UserServiceImpl) *UserHandler {
	return &UserHandler{auth: auth, service: svc}
}

func (h *UserHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/", h.Create)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	return r
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	_, ok := h.auth.Authenticate(w, r, middleware.AuthOptions{
		CheckPermission: true,
		Permission:      rbac.PermUsersView,
	})
	if !ok {
		return
	}
	sortBy, sortOrder := parseSortParams(r)
	res, err := h.service.ListPaged(r.Context(), repository.UserListQuery{
		PageRequest: parsePageRequest(r),
		Search:      r.URL.Query().Get("search"),
		SortBy:      sortBy,
		SortOrder:   sortOrder,
		Role:        r.URL.Query().Get("role"),
	})
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "Failed to list users", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, response.Paginated(res.Data, res.Page, res.Limit, res.Total, res.TotalPages))
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	_, ok := h.auth.Authenticate(w, r, middleware.AuthOptions{
		CheckPermission: true,
		Permission:      rbac.PermUsersView,
	})
	if !ok {
		return
	}
	id, err := parsePathID(r)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}
	user, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			response.Error(w, r, http.StatusNotFound, "User not found", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "Failed to load user", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, user)
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.auth.Authenticate(w, r, middleware.AuthOptions{
		CheckPermission: true,
		Permission:      rbac.PermUsersAdd,
	})
	if !ok {
		return
	}
	var input service.CreateUserInput
	if !decodeBody(w, r, &input) {
		return
	}
	user, err := h.service.Create(r.Context(), input)
	if err != nil {
		if writeValidationError(w, r, err) {
			return
		}
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			response.Error(w, r, http.StatusConflict, "A user with this email already exists", nil)
		case errors.Is(err, service.ErrInvalidRole):
			response.Error(w, r, http.StatusBadRequest, err.Error(), nil)
		default:
			response.Error(w, r, http.StatusInternalServerError, "Failed to create user", nil)
		}
		return
	}
	observability.Audit(r, "user.created", "user_id", user.ID, "actor_id", actor.ID)
	response.JSON(w, r, http.StatusCreated, user)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.auth.Authenticate(w, r, middleware.AuthOptions{
		CheckPermission: true,
		Permission:      rbac.PermUsersUpdate,
	})
	if !ok {
		return
	}
	id, err := parsePathID(r)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}
	var input service.UpdateUserInput
	if !decodeBody(w, r, &input) {
		return
	}

	// Role and active-flag changes reach into account control and need
	// the stronger permission on top of users:update.
	if input.Role != nil || input.IsActive != nil {
		if !rbac.HasPermission(actor.Role, rbac.PermAdminControlledData) {
			response.Error(w, r, http.StatusForbidden, "Access Denied", nil)
			return
		}
	}

	user, err := h.service.Update(r.Context(), actor, id, input)
	if err != nil {
		h.writeUserMutationError(w, r, err)
		return
	}
	observability.Audit(r, "user.updated", "user_id", user.ID, "actor_id", actor.ID)
	response.JSON(w, r, http.StatusOK, user)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.auth.Authenticate(w, r, middleware.AuthOptions{
		CheckPermission: true,
		Permission:      rbac.PermUsersDelete,
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
		h.writeUserMutationError(w, r, err)
		return
	}
	observability.Audit(r, "user.deleted", "user_id", id, "actor_id", actor.ID)
	response.JSON(w, r, http.StatusOK, map[string]any{"id": id})
}

func (h *UserHandler) writeUserMutationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		response.Error(w, r, http.StatusNotFound, "User not found", nil)
	case errors.Is(err, rbac.ErrDemoLocked):
		response.Error(w, r, http.StatusForbidden, "Demo data can't be deleted!", nil)
	case errors.Is(err, service.ErrSelfDelete):
		response.Error(w, r, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, service.ErrLastAdmin):
		response.Error(w, r, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, service.ErrInvalidRole), errors.Is(err, service.ErrNoUpdates):
		response.Error(w, r, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, repository.ErrDuplicateEmail):
		response.Error(w, r, http.StatusConflict, "A user with this email already exists", nil)
	case service.IsValidationError(err):
		response.Error(w, r, http.StatusBadRequest, "Validation failed", service.FieldErrors(err))
	default:
		response.Error(w, r, http.StatusInternalServerError, "User mutation failed", nil)
	}
}
