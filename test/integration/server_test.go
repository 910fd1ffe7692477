package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/quillcms/quill/internal/config"
	"github.com/quillcms/quill/internal/database"
	"github.com/quillcms/quill/internal/domain"
	"github.com/quillcms/quill/internal/http/handler"
	"github.com/quillcms/quill/internal/http/middleware"
	"github.com/quillcms/quill/internal/http/router"
	"github.com/quillcms/quill/internal/rbac"
	"github.com/quillcms/quill/internal/repository"
	"github.com/quillcms/quill/internal/security"
	"github.com/quillcms/quill/internal/service"
)

const testPassword = "correct-horse-battery"

type testServer struct {
	URL string
	DB  *gorm.DB
}

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	pageRepo := repository.NewPageRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	commentRepo := repository.NewCommentRepository(db)

	tokens := security.NewTokenManager("iss", "aud", "abcdefghijklmnopqrstuvwxyz123456", time.Hour)
	cookies := security.NewCookieManager("", false, "lax")
	auth := middleware.NewAuthenticator(tokens, userRepo)

	userSvc := service.NewUserService(userRepo)
	postSvc := service.NewPostService(postRepo)
	pageSvc := service.NewPageService(pageRepo)
	categorySvc := service.NewCategoryService(categoryRepo)
	commentSvc := service.NewCommentService(commentRepo, postRepo)

	site := config.SiteConfig{Name: "Quill", BaseURL: "http://example.test", Description: "test site"}

	noLimit := middleware.NewRateLimiter(100000, time.Minute, "test").Middleware()
	h := router.NewRouter(router.Dependencies{
		AuthHandler:       handler.NewAuthHandler(auth, userSvc, tokens, cookies),
		PostHandler:       handler.NewPostHandler(auth, postSvc),
		PageHandler:       handler.NewPageHandler(auth, pageSvc),
		CategoryHandler:   handler.NewCategoryHandler(auth, categorySvc),
		CommentHandler:    handler.NewCommentHandler(auth, commentSvc),
		UserHandler:       handler.NewUserHandler(auth, userSvc),
		PublicHandler:     handler.NewPublicHandler(postSvc, pageSvc, categorySvc, commentSvc, site),
		CORSOrigins:       []string{"http://example.test"},
		APIRateLimiter:    noLimit,
		PublicRateLimiter: noLimit,
	})

	srv := httptest.NewServer(h)
	return &testServer{URL: srv.URL, DB: db}, srv.Close
}

func seedUser(t *testing.T, db *gorm.DB, email string, role rbac.Role, userType string, active bool) *domain.User {
	t.Helper()
	hash, err := security.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := &domain.User{
		Email:        email,
		Name:         strings.Split(email, "@")[0],
		PasswordHash: hash,
		Role:         role,
		UserType:     userType,
		IsActive:     active,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return u
}

func seedPost(t *testing.T, db *gorm.DB, authorID uint, slug, status string, demo bool) *domain.Post {
	t.Helper()
	p := &domain.Post{
		Title:    "Post " + slug,
		Slug:     slug,
		Content:  "content",
		Status:   status,
		AuthorID: authorID,
		Demo:     demo,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("seed post %s: %v", slug, err)
	}
	return p
}

// login returns an http.Client whose jar carries the session cookie;
// mutation helpers mirror the CSRF cookie into the header.
func login(t *testing.T, baseURL, email string) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	client := &http.Client{Jar: jar}

	body, _ := json.Marshal(map[string]string{"email": email, "password": testPassword})
	resp, err := client.Post(baseURL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("login %s failed: %d %s", email, resp.StatusCode, raw)
	}
	return client
}

func csrfToken(t *testing.T, client *http.Client, baseURL string) string {
	t.Helper()
	if client.Jar == nil {
		return ""
	}
	u, _ := url.Parse(baseURL)
	for _, ck := range client.Jar.Cookies(u) {
		if ck.Name == "csrf_token" {
			return ck.Value
		}
	}
	return ""
}

type apiResponse struct {
	status int
	body   map[string]any
}

func doJSON(t *testing.T, client *http.Client, baseURL, method, path string, payload any) apiResponse {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, baseURL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet && method != http.MethodHead {
		if token := csrfToken(t, client, baseURL); token != "" {
			req.Header.Set("X-CSRF-Token", token)
		}
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	out := apiResponse{status: resp.StatusCode}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out.body); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return out
}

func errorMessage(res apiResponse) string {
	msg, _ := res.body["error"].(string)
	return msg
}
