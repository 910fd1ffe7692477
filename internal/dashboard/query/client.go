// Package query is the dashboard's HTTP layer: typed per-entity clients
// that read through an optimistic cache and speak the API's envelope and
// error formats. Reads are retried a bounded number of times; mutations
// are applied to the cache first, then committed or rolled back against
// the server's answer.
package query

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/quillcms/quill/internal/querycache"
	"github.com/quillcms/quill/internal/security"
)

const (
	getAttempts  = 3
	retryBackoff = 150 * time.Millisecond

	csrfCookieName = "csrf_token"
	csrfHeaderName = "X-CSRF-Token"
)

// Client is the shared transport under the entity clients. It carries
// the session cookie jar and mirrors the CSRF cookie into the header
// the server checks on mutations.
type Client struct {
	baseURL *url.URL
	httpc   *http.Client
	cache   *querycache.Cache
}

func NewClient(baseURL string, cache *querycache.Cache) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	if cache == nil {
		cache = querycache.New()
	}
	return &Client{
		baseURL: u,
		httpc:   &http.Client{Jar: jar, Timeout: 15 * time.Second},
		cache:   cache,
	}, nil
}

func (c *Client) Cache() *querycache.Cache { return c.cache }

func (c *Client) endpoint(path string) string {
	return strings.TrimSuffix(c.baseURL.String(), "/") + path
}

// getJSON fetches path with bounded retries and decodes the body into
// dst. Transport errors and 5xx responses are retried; anything the
// server answered deliberately (4xx) is not.
func (c *Client) getJSON(ctx context.Context, path, rawQuery string, dst any) error {
	target := c.endpoint(path)
	if rawQuery != "" {
		target += "?" + rawQuery
	}

	var lastErr error
	for attempt := 1; attempt <= getAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(time.Duration(attempt-1) * retryBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpc.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			lastErr = normalizeError(resp.StatusCode, body)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return normalizeError(resp.StatusCode, body)
		}
		if dst == nil {
			return nil
		}
		return json.Unmarshal(body, dst)
	}
	return fmt.Errorf("get %s: %w", path, lastErr)
}

// doMutation sends one write request. Mutations are never retried: a
// timed-out POST may still have landed, and replaying it double-applies.
func (c *Client) doMutation(ctx context.Context, method, path string, payload any, dst any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.csrfToken(); token != "" {
		req.Header.Set(csrfHeaderName, token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return normalizeError(resp.StatusCode, raw)
	}
	if dst == nil {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func (c *Client) csrfToken() string {
	for _, ck := range c.httpc.Jar.Cookies(c.baseURL) {
		if ck.Name == csrfCookieName {
			return ck.Value
		}
	}
	return ""
}

// Login authenticates and primes the jar with the session and CSRF
// cookies. The returned session carries the role used to derive
// dashboard permissions.
type Session struct {
	User        json.RawMessage `json:"user"`
	Permissions []string        `json:"permissions"`
}

func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var out Session
	err := c.doMutation(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.doMutation(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// HasSession reports whether the jar still holds a session cookie.
func (c *Client) HasSession() bool {
	for _, ck := range c.httpc.Jar.Cookies(c.baseURL) {
		if ck.Name == security.SessionCookieName {
			return true
		}
	}
	return false
}
