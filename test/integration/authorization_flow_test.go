package integration

import (
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"testing"

	"github.com/quillcms/quill/internal/rbac"
)

// The request authorization pipeline answers in a fixed order: missing
// session, unverifiable session, disabled account, role, permission.
func TestAuthorizationOrderEndToEnd(t *testing.T) {
	srv, stop := newTestServer(t)
	defer stop()

	seedUser(t, srv.DB, "author@test.local", rbac.RoleAuthor, "regular", true)
	seedUser(t, srv.DB, "disabled@test.local", rbac.RoleAdmin, "regular", false)

	t.Run("no session cookie", func(t *testing.T) {
		jar, _ := cookiejar.New(nil)
		anon := &http.Client{Jar: jar}
		res := doJSON(t, anon, srv.URL, http.MethodGet, "/api/posts", nil)
		if res.status != http.StatusForbidden || errorMessage(res) != "Session not Found" {
			t.Fatalf("got %d %q", res.status, errorMessage(res))
		}
	})

	t.Run("garbage session token", func(t *testing.T) {
		// An unverifiable cookie is treated the same as no session at all.
		jar, _ := cookiejar.New(nil)
		client := &http.Client{Jar: jar}
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/posts", nil)
		req.AddCookie(&http.Cookie{Name: "quill_session", Value: "not-a-token"})
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", resp.StatusCode)
		}
		var body map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if msg, _ := body["error"].(string); msg != "Session not Found" {
			t.Fatalf("unexpected message %q", msg)
		}
	})

	t.Run("disabled account cannot even log in", func(t *testing.T) {
		jar, _ := cookiejar.New(nil)
		client := &http.Client{Jar: jar}
		res := doJSON(t, client, srv.URL, http.MethodPost, "/api/auth/login", map[string]string{
			"email": "disabled@test.local", "password": testPassword,
		})
		if res.status != http.StatusUnauthorized || errorMessage(res) != "User not Allowed To Perform Any Actions!" {
			t.Fatalf("got %d %q", res.status, errorMessage(res))
		}
	})

	t.Run("permission denied for author on users list", func(t *testing.T) {
		author := login(t, srv.URL, "author@test.local")
		res := doJSON(t, author, srv.URL, http.MethodGet, "/api/users", nil)
		if res.status != http.StatusForbidden || errorMessage(res) != "Access Denied" {
			t.Fatalf("got %d %q", res.status, errorMessage(res))
		}
	})

	t.Run("granted permission passes", func(t *testing.T) {
		author := login(t, srv.URL, "author@test.local")
		res := doJSON(t, author, srv.URL, http.MethodGet, "/api/posts", nil)
		if res.status != http.StatusOK {
			t.Fatalf("expected 200, got %d %q", res.status, errorMessage(res))
		}
	})
}

func TestMutationWithoutCSRFHeaderIsRejected(t *testing.T) {
	srv, stop := newTestServer(t)
	defer stop()
	seedUser(t, srv.DB, "editor@test.local", rbac.RoleEditor, "regular", true)

	editor := login(t, srv.URL, "editor@test.local")
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/categories", nil)
	resp, err := editor.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 without CSRF header, got %d", resp.StatusCode)
	}
}
