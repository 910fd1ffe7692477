package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/quillcms/quill/internal/http/middleware"
	"github.com/quillcms/quill/internal/http/response"
	"github.com/quillcms/quill/internal/observability"
	"github.com/quillcms/quill/internal/rbac"
	"github.com/quillcms/quill/internal/security"
	"github.com/quillcms/quill/internal/service"
)

type AuthHandler struct {
	auth    *middleware.Authenticator
	users   *service.UserServiceImpl
	tokens  *security.TokenManager
	cookies *security.CookieManager
}

func NewAuthHandler(auth *middleware.Authenticator, users *service.UserServiceImpl, tokens *security.TokenManager, cookies *security.CookieManager) *AuthHandler {
	return &AuthHandler{auth: auth, users: users, tokens: tokens, cookies: cookies}
}

func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	r.Get("/me", h.Me)
	return r
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrAccountDisabled) {
			response.Error(w, r, http.StatusUnauthorized, "User not Allowed To Perform Any Actions!", nil)
			return
		}
		response.Error(w, r, http.StatusUnauthorized, "Invalid email or password", nil)
		return
	}

	token, err := h.tokens.SignSessionToken(user.ID, user.Role, user.UserType)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "Failed to start session", nil)
		return
	}
	h.cookies.SetSession(w, token, h.tokens.TTL())

	// Double-submit CSRF cookie, readable by the client so it can mirror
	// the value into X-CSRF-Token on mutations.
	csrf := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     "csrf_token",
		Value:    csrf,
		Path:     "/",
		Expires:  time.Now().Add(h.tokens.TTL()),
		SameSite: http.SameSiteLaxMode,
	})

	observability.Audit(r, "auth.login", "user_id", user.ID, "role", string(user.Role))
	response.JSON(w, r, http.StatusOK, map[string]any{
		"user":        user,
		"permissions": rbac.Permissions(user.Role),
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.cookies.ClearSession(w)
	http.SetCookie(w, &http.Cookie{Name: "csrf_token", Value: "", Path: "/", MaxAge: -1})
	observability.RecordAuthLogout(r.Context(), "success")
	observability.Audit(r, "auth.logout")
	response.JSON(w, r, http.StatusOK, map[string]any{"message": "Logged out"})
}

// Me returns the session's user plus the role's full permission list, so
// the dashboard can derive its UI flags in one round trip.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.auth.Authenticate(w, r, middleware.AuthOptions{})
	if !ok {
		return
	}
	user, err := h.users.GetByID(r.Context(), actor.ID)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "Failed to load user", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{
		"user":        user,
		"permissions": rbac.Permissions(user.Role),
	})
}
