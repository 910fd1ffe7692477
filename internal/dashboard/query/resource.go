package query

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quillcms/quill/internal/querycache"
)

// resource binds one entity endpoint to the optimistic cache. The id
// and touch closures let the generic mutation protocol find and stamp
// records without the record types knowing about this package.
type resource[T any] struct {
	c     *Client
	path  string
	id    func(*T) uint
	touch func(*T, time.Time)

	mu      sync.Mutex
	pending map[string]querycache.Key
}

func newResource[T any](c *Client, path string, id func(*T) uint, touch func(*T, time.Time)) *resource[T] {
	return &resource[T]{
		c:       c,
		path:    path,
		id:      id,
		touch:   touch,
		pending: make(map[string]querycache.Key),
	}
}

func (r *resource[T]) key(params ListParams) querycache.Key {
	return querycache.Key{Endpoint: r.path, Params: params.Encode()}
}

// List reads through the cache. Concurrent misses for the same params
// share one request; the fetched page is cached verbatim.
func (r *resource[T]) List(ctx context.Context, params ListParams) (ListResult[T], error) {
	return querycache.GetOrFetch(ctx, r.c.cache, r.key(params), func(ctx context.Context) (ListResult[T], error) {
		var raw json.RawMessage
		if err := r.c.getJSON(ctx, r.path, params.Encode(), &raw); err != nil {
			return ListResult[T]{}, err
		}
		return normalizeList[T](raw)
	})
}

func (r *resource[T]) GetByID(ctx context.Context, id uint) (*T, error) {
	var out T
	if err := r.c.getJSON(ctx, fmt.Sprintf("%s/%d", r.path, id), "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create runs the optimistic protocol against the active list view:
// the temp record (tracked by a uuid token until the server answers)
// is prepended, the POST goes out, and the patch is committed on
// success or reverted to the exact pre-patch bytes on failure. After a
// commit the endpoint is invalidated so the next read sees server
// truth, including the real ID.
func (r *resource[T]) Create(ctx context.Context, active ListParams, optimistic T, payload any) (*T, error) {
	key := r.key(active)
	undo, err := querycache.Patch(r.c.cache, key, func(l *ListResult[T]) error {
		r.touch(&optimistic, time.Now())
		l.Data = append([]T{optimistic}, l.Data...)
		l.Total++
		return nil
	})
	if err != nil {
		return nil, err
	}
	token := r.track(key)

	var created T
	if err := r.c.doMutation(ctx, http.MethodPost, r.path, payload, &created); err != nil {
		_ = undo.Revert()
		r.untrack(token)
		return nil, err
	}
	_ = undo.Commit()
	r.untrack(token)
	r.c.cache.InvalidateEndpoint(r.path)
	return &created, nil
}

// Update patches every cached record with the given ID through apply,
// stamps UpdatedAt, then sends the PATCH. On success the server's
// record replaces the optimistic one; on failure the list reverts.
func (r *resource[T]) Update(ctx context.Context, active ListParams, id uint, payload any, apply func(*T)) (*T, error) {
	return r.mutateRecord(ctx, active, id, http.MethodPatch, fmt.Sprintf("%s/%d", r.path, id), payload, apply)
}

// mutateRecord is the shared single-record mutation path; Update and
// route-specific actions like a page's visibility toggle go through it.
func (r *resource[T]) mutateRecord(ctx context.Context, active ListParams, id uint, method, path string, payload any, apply func(*T)) (*T, error) {
	key := r.key(active)
	undo, err := querycache.Patch(r.c.cache, key, func(l *ListResult[T]) error {
		now := time.Now()
		for i := range l.Data {
			if r.id(&l.Data[i]) == id {
				apply(&l.Data[i])
				r.touch(&l.Data[i], now)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var updated T
	if err := r.c.doMutation(ctx, method, path, payload, &updated); err != nil {
		_ = undo.Revert()
		return nil, err
	}
	_ = undo.Commit()
	r.confirmRecord(key, id, updated)
	return &updated, nil
}

// Delete removes the record from the cached list (a missing ID is a
// no-op) and sends the DELETE.
func (r *resource[T]) Delete(ctx context.Context, active ListParams, id uint) error {
	key := r.key(active)
	undo, err := querycache.Patch(r.c.cache, key, func(l *ListResult[T]) error {
		kept := l.Data[:0]
		for i := range l.Data {
			if r.id(&l.Data[i]) != id {
				kept = append(kept, l.Data[i])
			} else {
				l.Total--
			}
		}
		l.Data = kept
		return nil
	})
	if err != nil {
		return err
	}

	if err := r.c.doMutation(ctx, http.MethodDelete, fmt.Sprintf("%s/%d", r.path, id), nil, nil); err != nil {
		_ = undo.Revert()
		return err
	}
	_ = undo.Commit()
	r.c.cache.InvalidateEndpoint(r.path)
	return nil
}

// BulkResult is the server's summary of a bulk mutation.
type BulkResult struct {
	Message       string `json:"message"`
	ModifiedCount int64  `json:"modifiedCount,omitempty"`
	DeletedCount  int64  `json:"deletedCount,omitempty"`
}

// BulkUpdate applies apply to every cached record whose ID is in ids,
// then POSTs the bulk payload. IDs not present in the page no-op.
func (r *resource[T]) BulkUpdate(ctx context.Context, active ListParams, ids []uint, payload any, apply func(*T)) (*BulkResult, error) {
	key := r.key(active)
	want := idSet(ids)
	undo, err := querycache.Patch(r.c.cache, key, func(l *ListResult[T]) error {
		now := time.Now()
		for i := range l.Data {
			if _, ok := want[r.id(&l.Data[i])]; ok {
				apply(&l.Data[i])
				r.touch(&l.Data[i], now)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var out BulkResult
	if err := r.c.doMutation(ctx, http.MethodPost, r.path+"/bulk", payload, &out); err != nil {
		_ = undo.Revert()
		return nil, err
	}
	_ = undo.Commit()
	r.c.cache.InvalidateEndpoint(r.path)
	return &out, nil
}

func (r *resource[T]) BulkDelete(ctx context.Context, active ListParams, ids []uint) (*BulkResult, error) {
	key := r.key(active)
	want := idSet(ids)
	undo, err := querycache.Patch(r.c.cache, key, func(l *ListResult[T]) error {
		kept := l.Data[:0]
		for i := range l.Data {
			if _, ok := want[r.id(&l.Data[i])]; ok {
				l.Total--
				continue
			}
			kept = append(kept, l.Data[i])
		}
		l.Data = kept
		return nil
	})
	if err != nil {
		return nil, err
	}

	var out BulkResult
	if err := r.c.doMutation(ctx, http.MethodDelete, r.path+"/bulk", map[string][]uint{"ids": ids}, &out); err != nil {
		_ = undo.Revert()
		return nil, err
	}
	_ = undo.Commit()
	r.c.cache.InvalidateEndpoint(r.path)
	return &out, nil
}

// confirmRecord swaps the server's record into the cached list after a
// committed update. Best effort: a cache miss just means the next read
// refetches.
func (r *resource[T]) confirmRecord(key querycache.Key, id uint, confirmed T) {
	undo, err := querycache.Patch(r.c.cache, key, func(l *ListResult[T]) error {
		for i := range l.Data {
			if r.id(&l.Data[i]) == id {
				l.Data[i] = confirmed
			}
		}
		return nil
	})
	if err != nil {
		r.c.cache.Invalidate(key)
		return
	}
	_ = undo.Commit()
}

func (r *resource[T]) track(key querycache.Key) string {
	token := uuid.NewString()
	r.mu.Lock()
	r.pending[token] = key
	r.mu.Unlock()
	return token
}

func (r *resource[T]) untrack(token string) {
	r.mu.Lock()
	delete(r.pending, token)
	r.mu.Unlock()
}

// PendingCreates reports how many optimistic creates are awaiting a
// server answer. The TUI shows this as a sync indicator.
func (r *resource[T]) PendingCreates() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func idSet(ids []uint) map[uint]struct{} {
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
