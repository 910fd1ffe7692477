// Package querycache is a small optimistic cache for list and detail
// responses keyed by endpoint plus canonical query params. Entries are
// stored as raw JSON so an optimistic patch can be reverted to the exact
// bytes that were cached before it.
package querycache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/quillcms/quill/internal/observability"
)

var (
	ErrNotCached      = errors.New("entry not cached")
	ErrUndoSpent      = errors.New("undo already committed or reverted")
	ErrEntryDisplaced = errors.New("entry changed since patch")
)

type Key struct {
	Endpoint string
	Params   string
}

func (k Key) String() string {
	return k.Endpoint + "?" + k.Params
}

type EventKind string

const (
	EventSet        EventKind = "set"
	EventPatch      EventKind = "patch"
	EventCommit     EventKind = "commit"
	EventRevert     EventKind = "revert"
	EventInvalidate EventKind = "invalidate"
)

type Event struct {
	Key  Key
	Kind EventKind
}

type subscriber struct {
	ch chan Event
}

type entry struct {
	data []byte
	// generation increments on every write; Undo.Revert compares it to
	// refuse rolling back an entry someone else wrote since the patch.
	generation uint64
}

type Cache struct {
	mu      sync.RWMutex
	entries map[Key]*entry
	subs    map[Key][]*subscriber
	group   singleflight.Group
}

func New() *Cache {
	return &Cache{
		entries: make(map[Key]*entry),
		subs:    make(map[Key][]*subscriber),
	}
}

// Get decodes the cached entry into dst. The stored bytes are never
// handed out directly, so callers cannot mutate the cache in place.
func (c *Cache) Get(key Key, dst any) error {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		observability.RecordQueryCacheEvent(context.Background(), key.Endpoint, "miss")
		return ErrNotCached
	}
	observability.RecordQueryCacheEvent(context.Background(), key.Endpoint, "hit")
	return json.Unmarshal(e.data, dst)
}

// SetConfirmed stores server truth for a key.
func (c *Cache) SetConfirmed(key Key, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.storeLocked(key, data)
	c.mu.Unlock()
	c.notify(key, EventSet)
	observability.RecordQueryCacheEvent(context.Background(), key.Endpoint, "set")
	return nil
}

// Invalidate drops a key. Subscribers are told so they can refetch.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	c.notify(key, EventInvalidate)
	observability.RecordQueryCacheEvent(context.Background(), key.Endpoint, "invalidate")
}

// InvalidateEndpoint drops every cached entry for one endpoint,
// regardless of params. Used after mutations that change list membership.
func (c *Cache) InvalidateEndpoint(endpoint string) {
	c.mu.Lock()
	var dropped []Key
	for k := range c.entries {
		if k.Endpoint == endpoint {
			delete(c.entries, k)
			dropped = append(dropped, k)
		}
	}
	c.mu.Unlock()
	for _, k := range dropped {
		c.notify(k, EventInvalidate)
	}
	observability.RecordQueryCacheEvent(context.Background(), endpoint, "invalidate_endpoint")
}

// Subscribe returns a channel that receives cache events for key and a
// cancel function. Slow consumers drop events rather than block writers.
func (c *Cache) Subscribe(key Key) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, 8)}
	c.mu.Lock()
	c.subs[key] = append(c.subs[key], sub)
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		subs := c.subs[key]
		for i, s := range subs {
			if s == sub {
				c.subs[key] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(c.subs[key]) == 0 {
			delete(c.subs, key)
		}
		c.mu.Unlock()
		close(sub.ch)
	}
	return sub.ch, cancel
}

func (c *Cache) notify(key Key, kind EventKind) {
	c.mu.RLock()
	subs := make([]*subscriber, len(c.subs[key]))
	copy(subs, c.subs[key])
	c.mu.RUnlock()
	for _, s := range subs {
		select {
		case s.ch <- Event{Key: key, Kind: kind}:
		default:
		}
	}
}

func (c *Cache) storeLocked(key Key, data []byte) {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	e.data = data
	e.generation++
}

// Undo captures the cache state a Patch replaced. Exactly one of Commit
// or Revert may be called, once.
type Undo struct {
	cache      *Cache
	key        Key
	prev       []byte
	existed    bool
	generation uint64
	spent      bool
	mu         sync.Mutex
}

// Revert restores the exact pre-patch bytes (or absence).
func (u *Undo) Revert() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.spent {
		return ErrUndoSpent
	}
	u.spent = true

	c := u.cache
	c.mu.Lock()
	// Only the bytes this patch wrote may be rolled back. If the entry
	// was written or invalidated since, restoring the snapshot would
	// clobber newer truth.
	e, ok := c.entries[u.key]
	if !ok || e.generation != u.generation {
		c.mu.Unlock()
		return ErrEntryDisplaced
	}
	if u.existed {
		c.storeLocked(u.key, u.prev)
	} else {
		delete(c.entries, u.key)
	}
	c.mu.Unlock()
	c.notify(u.key, EventRevert)
	observability.RecordQueryCacheEvent(context.Background(), u.key.Endpoint, "revert")
	return nil
}

// Commit discards the undo snapshot, keeping the patched value.
func (u *Undo) Commit() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.spent {
		return ErrUndoSpent
	}
	u.spent = true
	u.prev = nil
	u.cache.notify(u.key, EventCommit)
	observability.RecordQueryCacheEvent(context.Background(), u.key.Endpoint, "commit")
	return nil
}

// Patch applies an optimistic mutation to the cached value of type T and
// returns an undo handle snapshotting the previous bytes. Patching an
// absent entry seeds it from the zero value of T.
func Patch[T any](c *Cache, key Key, mutate func(*T) error) (*Undo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	undo := &Undo{cache: c, key: key}
	var value T
	if e, ok := c.entries[key]; ok {
		undo.existed = true
		undo.prev = e.data
		if err := json.Unmarshal(e.data, &value); err != nil {
			return nil, err
		}
	}
	if err := mutate(&value); err != nil {
		return nil, err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	c.storeLocked(key, data)
	// The undo is only valid while its own write is the newest one.
	undo.generation = c.entries[key].generation

	go c.notify(key, EventPatch)
	observability.RecordQueryCacheEvent(context.Background(), key.Endpoint, "patch")
	return undo, nil
}

// GetOrFetch returns the cached value for key, fetching through fetch on
// a miss. Concurrent misses for the same key share one fetch.
func GetOrFetch[T any](ctx context.Context, c *Cache, key Key, fetch func(context.Context) (T, error)) (T, error) {
	var out T
	if err := c.Get(key, &out); err == nil {
		return out, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		fetched, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.SetConfirmed(key, fetched); err != nil {
			return nil, err
		}
		return fetched, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
