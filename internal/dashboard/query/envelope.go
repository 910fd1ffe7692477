package query

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ListResult mirrors the server's pagination envelope.
type ListResult[T any] struct {
	Data       []T   `json:"data"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

var errUnrecognizedListShape = errors.New("unrecognized list response shape")

// normalizeList accepts the two shapes list endpoints are allowed to
// return: the full envelope, or a bare array (treated as a single full
// page). Anything else fails closed rather than guessing.
func normalizeList[T any](raw []byte) (ListResult[T], error) {
	var out ListResult[T]

	trimmed := firstNonSpace(raw)
	switch trimmed {
	case '{':
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(raw, &probe); err != nil {
			return out, fmt.Errorf("decode list envelope: %w", err)
		}
		if _, ok := probe["data"]; !ok {
			return out, errUnrecognizedListShape
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			return out, fmt.Errorf("decode list envelope: %w", err)
		}
		return out, nil
	case '[':
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return out, fmt.Errorf("decode bare list: %w", err)
		}
		out.Data = items
		out.Page = 1
		out.Limit = len(items)
		out.Total = int64(len(items))
		out.TotalPages = 1
		return out, nil
	default:
		return out, errUnrecognizedListShape
	}
}

func firstNonSpace(raw []byte) byte {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return b
	}
	return 0
}
