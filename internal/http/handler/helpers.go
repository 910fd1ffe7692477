package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/quillcms/quill/internal/http/response"
	"github.com/quillcms/quill/internal/repository"
	"github.com/quillcms/quill/internal/service"
)

func parsePathID(r *http.Request) (uint, error) {
	raw := chi.URLParam(r, "id")
	var n uint64
	if _, err := fmt.Sscanf(raw, "%d", &n); err != nil {
		return 0, errors.New("id must be a positive integer")
	}
	return uint(n), nil
}

// parsePageRequest reads ?page= and ?limit=. Out-of-range values are
// normalized rather than rejected so stale bookmarks keep working.
func parsePageRequest(r *http.Request) repository.PageRequest {
	req := repository.PageRequest{Page: repository.DefaultPage, Limit: repository.DefaultLimit}
	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 1 {
			req.Page = v
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 1 {
			if v > repository.MaxLimit {
				v = repository.MaxLimit
			}
			req.Limit = v
		}
	}
	return req
}

func parseSortParams(r *http.Request) (string, string) {
	sortBy := strings.TrimSpace(r.URL.Query().Get("sortBy"))
	sortOrder := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("sortOrder")))
	if sortOrder != "asc" && sortOrder != "desc" {
		sortOrder = "desc"
	}
	return sortBy, sortOrder
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.Error(w, r, http.StatusBadRequest, "Invalid request body", nil)
		return false
	}
	return true
}

// writeServiceError translates validation failures into 400 with field
// details. Everything else is the caller's business.
func writeValidationError(w http.ResponseWriter, r *http.Request, err error) bool {
	if !service.IsValidationError(err) {
		return false
	}
	response.Error(w, r, http.StatusBadRequest, "Validation failed", service.FieldErrors(err))
	return true
}

type bulkIDsRequest struct {
	IDs []uint `json:"ids"`
}
