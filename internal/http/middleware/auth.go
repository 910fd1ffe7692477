package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/quillcms/quill/internal/http/response"
	"github.com/quillcms/quill/internal/observability"
	"github.com/quillcms/quill/internal/rbac"
	"github.com/quillcms/quill/internal/repository"
	"github.com/quillcms/quill/internal/security"
)

type contextKey string

const actorContextKey contextKey = "actor"

// AuthOptions selects which checks run after session resolution. Role and
// permission checks are independent switches so a route can require either
// or both.
type AuthOptions struct {
	CheckRole       bool
	Roles           []rbac.Role
	CheckPermission bool
	Permission      rbac.Permission
}

type Authenticator struct {
	tokens *security.TokenManager
	users  repository.UserRepository
}

func NewAuthenticator(tokens *security.TokenManager, users repository.UserRepository) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// Authenticate runs the ordered request checks and writes the error
// response itself when one fails. Callers must return immediately when
// ok is false. The check order is fixed: session, user, active flag,
// role membership, permission.
func (a *Authenticator) Authenticate(w http.ResponseWriter, r *http.Request, opts AuthOptions) (*rbac.Actor, bool) {
	ctx := r.Context()

	token := security.GetCookie(r, security.SessionCookieName)
	if token == "" {
		observability.RecordAuthzDecision(ctx, "no_session", "")
		response.Error(w, r, http.StatusForbidden, "Session not Found", nil)
		return nil, false
	}
	claims, err := a.tokens.ParseSessionToken(token)
	if err != nil {
		observability.RecordSessionValidation(ctx, "invalid_token")
		observability.RecordAuthzDecision(ctx, "no_session", "")
		response.Error(w, r, http.StatusForbidden, "Session not Found", nil)
		return nil, false
	}
	observability.RecordSessionValidation(ctx, "valid")

	userID, err := claims.UserID()
	if err != nil {
		observability.RecordAuthzDecision(ctx, "no_user", string(claims.Role))
		response.Error(w, r, http.StatusUnauthorized, "User not Authenticated", nil)
		return nil, false
	}
	user, err := a.users.FindByID(userID)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			response.Error(w, r, http.StatusInternalServerError, "Internal server error", nil)
			return nil, false
		}
		observability.RecordAuthzDecision(ctx, "no_user", string(claims.Role))
		response.Error(w, r, http.StatusUnauthorized, "User not Authenticated", nil)
		return nil, false
	}

	if !user.IsActive {
		observability.RecordAuthzDecision(ctx, "inactive", string(user.Role))
		response.Error(w, r, http.StatusUnauthorized, "User not Allowed To Perform Any Actions!", nil)
		return nil, false
	}

	if opts.CheckRole {
		allowed := opts.Roles
		if len(allowed) == 0 {
			allowed = []rbac.Role{rbac.RoleAdmin}
		}
		if !roleAllowed(user.Role, allowed) {
			observability.RecordAuthzDecision(ctx, "role_denied", string(user.Role))
			response.Error(w, r, http.StatusForbidden, "User not Allowed To Perform This Action!", nil)
			return nil, false
		}
	}

	if opts.CheckPermission && opts.Permission != "" {
		if !rbac.HasPermission(user.Role, opts.Permission) {
			observability.RecordAuthzDecision(ctx, "permission_denied", string(user.Role))
			response.Error(w, r, http.StatusForbidden, "Access Denied", nil)
			return nil, false
		}
	}

	observability.RecordAuthzDecision(ctx, "allowed", string(user.Role))
	return user.Actor(), true
}

// Require wraps a handler for routes where the whole subtree shares one
// AuthOptions. The actor lands in the request context.
func (a *Authenticator) Require(opts AuthOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := a.Authenticate(w, r, opts)
			if !ok {
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func WithActor(ctx context.Context, actor *rbac.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

func ActorFromContext(ctx context.Context) (*rbac.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey).(*rbac.Actor)
	return actor, ok
}

func roleAllowed(role rbac.Role, allowed []rbac.Role) bool {
	for _, candidate := range allowed {
		if role == candidate {
			return true
		}
	}
	return false
}
