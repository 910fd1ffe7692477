package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

func JSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// Error writes the {"error": ...} body every client-side caller parses.
// Details carries structured field errors for validation failures.
func Error(w http.ResponseWriter, r *http.Request, status int, message string, details map[string]string) {
	body := map[string]any{"error": message}
	if len(details) > 0 {
		body["details"] = details
	}
	JSON(w, r, status, body)
}

// Paginated shapes the list envelope: { data, page, total, totalPages, limit }.
func Paginated[T any](data []T, page, limit int, total int64, totalPages int) map[string]any {
	if data == nil {
		data = []T{}
	}
	return map[string]any{
		"data":       data,
		"page":       page,
		"limit":      limit,
		"total":      total,
		"totalPages": totalPages,
	}
}
