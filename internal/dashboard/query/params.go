package query

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const (
	minClientLimit = 5
	maxClientLimit = 100
	minSearchLen   = 2
)

// ListParams is what a dashboard list view asks for. Encode produces a
// canonical query string so two equivalent requests share one cache
// entry.
type ListParams struct {
	Page      int
	Limit     int
	Search    string
	SortBy    string
	SortOrder string
	Filters   map[string]string
}

// Encode normalizes and renders the params in a stable key order. Pages
// below 1 become 1, the limit is clamped into [5, 100], and search text
// shorter than two characters after trimming is dropped entirely.
func (p ListParams) Encode() string {
	page := p.Page
	if page < 1 {
		page = 1
	}
	limit := p.Limit
	if limit < minClientLimit {
		limit = minClientLimit
	}
	if limit > maxClientLimit {
		limit = maxClientLimit
	}

	values := url.Values{}
	values.Set("page", strconv.Itoa(page))
	values.Set("limit", strconv.Itoa(limit))

	if search := strings.TrimSpace(p.Search); len(search) >= minSearchLen {
		values.Set("search", search)
	}
	if p.SortBy != "" {
		values.Set("sortBy", p.SortBy)
		order := p.SortOrder
		if order != "asc" && order != "desc" {
			order = "desc"
		}
		values.Set("sortOrder", order)
	}
	for k, v := range p.Filters {
		if k == "" || v == "" {
			continue
		}
		values.Set(k, v)
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(values.Get(k)))
	}
	return b.String()
}
