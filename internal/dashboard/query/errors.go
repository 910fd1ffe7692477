package query

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a server response the dashboard can show to the user.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// normalizeError extracts a human-readable message from an error body.
// The API writes {"error": "..."}; some proxies re-encode that whole
// object as a JSON string, so a string body is unwrapped and parsed
// again before falling back to the raw text.
func normalizeError(status int, body []byte) *APIError {
	msg := extractMessage(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{Status: status, Message: msg}
}

func extractMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}

	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(trimmed), &envelope); err == nil && envelope.Error != "" {
		return envelope.Error
	}

	var wrapped string
	if err := json.Unmarshal([]byte(trimmed), &wrapped); err == nil {
		if err := json.Unmarshal([]byte(wrapped), &envelope); err == nil && envelope.Error != "" {
			return envelope.Error
		}
		return wrapped
	}

	return trimmed
}
