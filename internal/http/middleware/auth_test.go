package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quillcms/quill/internal/domain"
	"github.com/quillcms/quill/internal/rbac"
	"github.com/quillcms/quill/internal/repository"
	"github.com/quillcms/quill/internal/security"
)

type stubUserRepo struct {
	users map[uint]*domain.User
}

func (r *stubUserRepo) Create(*domain.User) error { return nil }

func (r *stubUserRepo) FindByID(id uint) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

func (r *stubUserRepo) FindByEmail(string) (*domain.User, error) {
	return nil, repository.ErrUserNotFound
}

func (r *stubUserRepo) ListPaged(repository.UserListQuery) (repository.PageResult[domain.User], error) {
	return repository.PageResult[domain.User]{}, nil
}

func (r *stubUserRepo) Update(uint, map[string]any) error { return nil }
func (r *stubUserRepo) DeleteByID(uint) error             { return nil }
func (r *stubUserRepo) TouchLastLogin(uint) error         { return nil }
func (r *stubUserRepo) CountByRole(string) (int64, error) { return 0, nil }

func newTestAuthenticator(t *testing.T, users ...*domain.User) (*Authenticator, *security.TokenManager) {
	t.Helper()
	repo := &stubUserRepo{users: map[uint]*domain.User{}}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	tokens := security.NewTokenManager("quill-test", "quill", "0123456789abcdef0123456789abcdef", time.Hour)
	return NewAuthenticator(tokens, repo), tokens
}

func requestWithSession(t *testing.T, tokens *security.TokenManager, user *domain.User) *http.Request {
	t.Helper()
	token, err := tokens.SignSessionToken(user.ID, user.Role, user.UserType)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	r := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	r.AddCookie(&http.Cookie{Name: security.SessionCookieName, Value: token})
	return r
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	msg, _ := body["error"].(string)
	return msg
}

func TestAuthenticateNoSession(t *testing.T) {
	auth, _ := newTestAuthenticator(t)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/posts", nil)

	_, ok := auth.Authenticate(w, r, AuthOptions{})
	if ok {
		t.Fatal("expected failure")
	}
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if got := decodeError(t, w); got != "Session not Found" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestAuthenticateGarbageToken(t *testing.T) {
	auth, _ := newTestAuthenticator(t)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	r.AddCookie(&http.Cookie{Name: security.SessionCookieName, Value: "not-a-jwt"})

	if _, ok := auth.Authenticate(w, r, AuthOptions{}); ok {
		t.Fatal("expected failure")
	}
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if got := decodeError(t, w); got != "Session not Found" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestAuthenticateUnknownUser(t *testing.T) {
	ghost := &domain.User{ID: 42, Role: rbac.RoleAdmin, UserType: "regular", IsActive: true}
	auth, tokens := newTestAuthenticator(t)
	w := httptest.NewRecorder()
	r := requestWithSession(t, tokens, ghost)

	if _, ok := auth.Authenticate(w, r, AuthOptions{}); ok {
		t.Fatal("expected failure")
	}
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if got := decodeError(t, w); got != "User not Authenticated" {
		t.Fatalf("unexpected message %q", got)
	}
}

// An inactive user must get the inactive message even when role and
// permission checks would also fail: later checks never run.
func TestAuthenticateInactiveShortCircuits(t *testing.T) {
	user := &domain.User{ID: 1, Role: rbac.RoleUser, UserType: "regular", IsActive: false}
	auth, tokens := newTestAuthenticator(t, user)
	w := httptest.NewRecorder()
	r := requestWithSession(t, tokens, user)

	_, ok := auth.Authenticate(w, r, AuthOptions{
		CheckRole:       true,
		Roles:           []rbac.Role{rbac.RoleAdmin},
		CheckPermission: true,
		Permission:      rbac.PermPostsManage,
	})
	if ok {
		t.Fatal("expected failure")
	}
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if got := decodeError(t, w); got != "User not Allowed To Perform Any Actions!" {
		t.Fatalf("unexpected message %q", got)
	}
}

// Role rejection wins over permission rejection when both checks are on.
func TestAuthenticateRoleCheckBeforePermission(t *testing.T) {
	user := &domain.User{ID: 1, Role: rbac.RoleUser, UserType: "regular", IsActive: true}
	auth, tokens := newTestAuthenticator(t, user)
	w := httptest.NewRecorder()
	r := requestWithSession(t, tokens, user)

	_, ok := auth.Authenticate(w, r, AuthOptions{
		CheckRole:       true,
		CheckPermission: true,
		Permission:      rbac.PermPostsManage,
	})
	if ok {
		t.Fatal("expected failure")
	}
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if got := decodeError(t, w); got != "User not Allowed To Perform This Action!" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestAuthenticatePermissionDenied(t *testing.T) {
	user := &domain.User{ID: 1, Role: rbac.RoleAuthor, UserType: "regular", IsActive: true}
	auth, tokens := newTestAuthenticator(t, user)
	w := httptest.NewRecorder()
	r := requestWithSession(t, tokens, user)

	_, ok := auth.Authenticate(w, r, AuthOptions{
		CheckPermission: true,
		Permission:      rbac.PermUsersDelete,
	})
	if ok {
		t.Fatal("expected failure")
	}
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if got := decodeError(t, w); got != "Access Denied" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestAuthenticateDefaultRoleSetIsAdminOnly(t *testing.T) {
	editor := &domain.User{ID: 1, Role: rbac.RoleEditor, UserType: "regular", IsActive: true}
	auth, tokens := newTestAuthenticator(t, editor)
	w := httptest.NewRecorder()
	r := requestWithSession(t, tokens, editor)

	if _, ok := auth.Authenticate(w, r, AuthOptions{CheckRole: true}); ok {
		t.Fatal("expected editor rejected by default admin-only role set")
	}
	if got := decodeError(t, w); got != "User not Allowed To Perform This Action!" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestAuthenticateSuccessReturnsActor(t *testing.T) {
	user := &domain.User{ID: 5, Role: rbac.RoleEditor, UserType: "regular", IsActive: true}
	auth, tokens := newTestAuthenticator(t, user)
	w := httptest.NewRecorder()
	r := requestWithSession(t, tokens, user)

	actor, ok := auth.Authenticate(w, r, AuthOptions{
		CheckRole:       true,
		Roles:           []rbac.Role{rbac.RoleAdmin, rbac.RoleEditor},
		CheckPermission: true,
		Permission:      rbac.PermPostsManage,
	})
	if !ok {
		t.Fatalf("expected success, got %d %s", w.Code, w.Body.String())
	}
	if actor.ID != 5 || actor.Role != rbac.RoleEditor {
		t.Fatalf("unexpected actor %+v", actor)
	}
}
