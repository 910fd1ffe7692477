package query

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quillcms/quill/internal/domain"
	"github.com/quillcms/quill/internal/querycache"
)

type postRecord = domain.Post

func sleepShort() { time.Sleep(5 * time.Millisecond) }

func TestListParamsEncodeCanonical(t *testing.T) {
	tests := []struct {
		name string
		in   ListParams
		want string
	}{
		{
			name: "defaults",
			in:   ListParams{},
			want: "limit=5&page=1",
		},
		{
			name: "page below one becomes one",
			in:   ListParams{Page: -3, Limit: 20},
			want: "limit=20&page=1",
		},
		{
			name: "limit clamped high",
			in:   ListParams{Page: 2, Limit: 500},
			want: "limit=100&page=2",
		},
		{
			name: "short search dropped",
			in:   ListParams{Page: 1, Limit: 10, Search: " a "},
			want: "limit=10&page=1",
		},
		{
			name: "search kept at two chars",
			in:   ListParams{Page: 1, Limit: 10, Search: " ab "},
			want: "limit=10&page=1&search=ab",
		},
		{
			name: "sort and filters in stable key order",
			in: ListParams{
				Page: 1, Limit: 10, SortBy: "title", SortOrder: "bogus",
				Filters: map[string]string{"status": "draft", "category": "3"},
			},
			want: "category=3&limit=10&page=1&sortBy=title&sortOrder=desc&status=draft",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Encode(); got != tt.want {
				t.Fatalf("Encode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeListShapes(t *testing.T) {
	type rec struct {
		ID uint `json:"id"`
	}

	envelope := []byte(`{"data":[{"id":1},{"id":2}],"page":2,"limit":10,"total":12,"totalPages":2}`)
	res, err := normalizeList[rec](envelope)
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	if len(res.Data) != 2 || res.Page != 2 || res.Total != 12 {
		t.Fatalf("envelope decoded wrong: %+v", res)
	}

	bare := []byte(`[{"id":7}]`)
	res, err = normalizeList[rec](bare)
	if err != nil {
		t.Fatalf("bare array: %v", err)
	}
	if len(res.Data) != 1 || res.Page != 1 || res.TotalPages != 1 || res.Total != 1 {
		t.Fatalf("bare array should become a single full page: %+v", res)
	}

	for _, raw := range []string{`"just a string"`, `42`, `{"items":[]}`} {
		if _, err := normalizeList[rec]([]byte(raw)); err == nil {
			t.Fatalf("shape %s should fail closed", raw)
		}
	}
}

func TestNormalizeErrorUnwrapsBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"plain envelope", `{"error":"Access Denied"}`, "Access Denied"},
		{"double-encoded envelope", `"{\"error\":\"Access Denied\"}"`, "Access Denied"},
		{"bare string", `"boom"`, "boom"},
		{"empty body falls back to status text", ``, "Forbidden"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeError(http.StatusForbidden, []byte(tt.body))
			if got.Message != tt.want {
				t.Fatalf("message = %q, want %q", got.Message, tt.want)
			}
			if got.Status != http.StatusForbidden {
				t.Fatalf("status = %d", got.Status)
			}
		})
	}
}

func TestGetRetriesServerErrorsThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, `{"error":"flaky"}`, http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"data":[],"page":1,"limit":10,"total":0,"totalPages":0}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, nil)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	posts := NewPostsClient(c)

	if _, err := posts.List(context.Background(), ListParams{Page: 1, Limit: 10}); err != nil {
		t.Fatalf("list should succeed on the third attempt: %v", err)
	}
	if got := hits.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, `{"error":"Access Denied"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, nil)
	posts := NewPostsClient(c)

	_, err := posts.List(context.Background(), ListParams{Page: 1, Limit: 10})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "Access Denied" {
		t.Fatalf("expected normalized Access Denied, got %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("4xx must not be retried, got %d attempts", got)
	}
}

func TestMutationsAreNeverRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, nil)
	posts := NewPostsClient(c)

	title := "x"
	if _, err := posts.Update(context.Background(), ListParams{Page: 1, Limit: 10}, 1, PostInput{Title: &title}, func(p *postRecord) {}); err == nil {
		t.Fatal("expected error")
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("mutation retried: %d attempts", got)
	}
}

func TestMutationMirrorsCSRFCookie(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/auth/login":
			// Path "/" matches the server: without it the jar scopes the
			// cookies to /api/auth and the mirror comes out empty.
			http.SetCookie(w, &http.Cookie{Name: "quill_session", Value: "s", Path: "/"})
			http.SetCookie(w, &http.Cookie{Name: csrfCookieName, Value: "token-123", Path: "/"})
			w.Write([]byte(`{"user":{},"permissions":[]}`))
		default:
			gotHeader = r.Header.Get(csrfHeaderName)
			w.Write([]byte(`{"id":1}`))
		}
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, nil)
	if _, err := c.Login(context.Background(), "a@b.c", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	posts := NewPostsClient(c)
	title := "t"
	if _, err := posts.Update(context.Background(), ListParams{Page: 1, Limit: 10}, 1, PostInput{Title: &title}, func(p *postRecord) {}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if gotHeader != "token-123" {
		t.Fatalf("CSRF header = %q, want token-123", gotHeader)
	}
}

func seededListBody() string {
	return `{"data":[` +
		`{"id":1,"title":"first","status":"draft","updatedAt":"2026-01-01T00:00:00Z"},` +
		`{"id":2,"title":"second","status":"draft","updatedAt":"2026-01-01T00:00:00Z"}` +
		`],"page":1,"limit":10,"total":2,"totalPages":1}`
}

func cacheKeyFor(pc *PostsClient, params ListParams) querycache.Key {
	return pc.key(params)
}

func titlesInCache(t *testing.T, pc *PostsClient, params ListParams) []string {
	t.Helper()
	var cached ListResult[postRecord]
	if err := pc.c.cache.Get(cacheKeyFor(pc, params), &cached); err != nil {
		t.Fatalf("cache get: %v", err)
	}
	out := make([]string, 0, len(cached.Data))
	for _, p := range cached.Data {
		out = append(out, p.Title)
	}
	return out
}

func TestOptimisticUpdateCommitsServerTruth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(seededListBody()))
		case http.MethodPatch:
			w.Write([]byte(`{"id":2,"title":"server says","status":"draft"}`))
		}
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, nil)
	posts := NewPostsClient(c)
	params := ListParams{Page: 1, Limit: 10}

	if _, err := posts.List(context.Background(), params); err != nil {
		t.Fatalf("list: %v", err)
	}

	title := "client says"
	updated, err := posts.Update(context.Background(), params, 2, PostInput{Title: &title}, func(p *postRecord) {
		p.Title = title
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "server says" {
		t.Fatalf("expected server record back, got %q", updated.Title)
	}

	titles := titlesInCache(t, posts, params)
	if titles[1] != "server says" {
		t.Fatalf("cache should hold server truth, got %v", titles)
	}
}

func TestOptimisticUpdateRevertsOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(seededListBody()))
		case http.MethodPatch:
			http.Error(w, `{"error":"You don't have permission to edit this post"}`, http.StatusForbidden)
		}
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, nil)
	posts := NewPostsClient(c)
	params := ListParams{Page: 1, Limit: 10}

	if _, err := posts.List(context.Background(), params); err != nil {
		t.Fatalf("list: %v", err)
	}

	title := "optimistic"
	_, err := posts.Update(context.Background(), params, 2, PostInput{Title: &title}, func(p *postRecord) {
		p.Title = title
	})
	if err == nil {
		t.Fatal("expected forbidden error")
	}

	titles := titlesInCache(t, posts, params)
	if titles[0] != "first" || titles[1] != "second" {
		t.Fatalf("cache should be reverted, got %v", titles)
	}
}

func TestOptimisticDeleteMissingIDIsNoOp(t *testing.T) {
	deleted := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(seededListBody()))
		case http.MethodDelete:
			deleted = true
			w.Write([]byte(`{"id":99}`))
		}
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, nil)
	posts := NewPostsClient(c)
	params := ListParams{Page: 1, Limit: 10}

	if _, err := posts.List(context.Background(), params); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := posts.Delete(context.Background(), params, 99); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted {
		t.Fatal("server delete never sent")
	}
}

func TestCreateTracksPendingUntilServerAnswers(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(seededListBody()))
		case http.MethodPost:
			<-release
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":3,"title":"new","status":"draft"}`))
		}
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, nil)
	posts := NewPostsClient(c)
	params := ListParams{Page: 1, Limit: 10}
	if _, err := posts.List(context.Background(), params); err != nil {
		t.Fatalf("list: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		title := "new"
		_, err := posts.Create(context.Background(), params, postRecord{Title: title}, PostInput{Title: &title})
		done <- err
	}()

	waitFor(t, func() bool { return posts.PendingCreates() == 1 })

	// The temp record is already visible in the cached list.
	if titles := titlesInCache(t, posts, params); titles[0] != "new" {
		t.Fatalf("temp record not prepended: %v", titles)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("create: %v", err)
	}
	if posts.PendingCreates() != 0 {
		t.Fatal("pending create not cleared after commit")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	for i := 0; i < 100; i++ {
		if cond() {
			return
		}
		sleepShort()
	}
	t.Fatal("condition never met")
}
