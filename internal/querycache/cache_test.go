package querycache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type testRecord struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

type testList struct {
	Data  []testRecord `json:"data"`
	Total int64        `json:"total"`
}

func listKey(params string) Key {
	return Key{Endpoint: "/api/posts", Params: params}
}

func TestCacheGetMiss(t *testing.T) {
	c := New()
	var out testList
	if err := c.Get(listKey("page=1"), &out); !errors.Is(err, ErrNotCached) {
		t.Fatalf("expected ErrNotCached, got %v", err)
	}
}

func TestCacheSetAndGetReturnsCopy(t *testing.T) {
	c := New()
	key := listKey("page=1")
	if err := c.SetConfirmed(key, testList{Data: []testRecord{{ID: 1, Title: "a"}}, Total: 1}); err != nil {
		t.Fatalf("set: %v", err)
	}

	var first testList
	if err := c.Get(key, &first); err != nil {
		t.Fatalf("get: %v", err)
	}
	first.Data[0].Title = "mutated"

	var second testList
	if err := c.Get(key, &second); err != nil {
		t.Fatalf("get: %v", err)
	}
	if second.Data[0].Title != "a" {
		t.Fatal("caller mutation leaked into the cache")
	}
}

// Revert must restore the exact bytes cached before the patch.
func TestPatchRevertIsBitIdentical(t *testing.T) {
	c := New()
	key := listKey("page=1")
	original := testList{Data: []testRecord{{ID: 1, Title: "a"}, {ID: 2, Title: "b"}}, Total: 2}
	if err := c.SetConfirmed(key, original); err != nil {
		t.Fatalf("set: %v", err)
	}
	before := rawBytes(t, c, key)

	undo, err := Patch(c, key, func(l *testList) error {
		l.Data[1].Title = "optimistic"
		return nil
	})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}

	var patched testList
	if err := c.Get(key, &patched); err != nil {
		t.Fatalf("get: %v", err)
	}
	if patched.Data[1].Title != "optimistic" {
		t.Fatal("patch not visible")
	}

	if err := undo.Revert(); err != nil {
		t.Fatalf("revert: %v", err)
	}
	after := rawBytes(t, c, key)
	if !bytes.Equal(before, after) {
		t.Fatalf("revert not bit-identical:\n before %s\n after  %s", before, after)
	}
}

func TestPatchOnAbsentEntryRevertRemovesIt(t *testing.T) {
	c := New()
	key := listKey("page=9")

	undo, err := Patch(c, key, func(l *testList) error {
		l.Data = append(l.Data, testRecord{ID: 7, Title: "temp"})
		return nil
	})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	var out testList
	if err := c.Get(key, &out); err != nil {
		t.Fatalf("get: %v", err)
	}

	if err := undo.Revert(); err != nil {
		t.Fatalf("revert: %v", err)
	}
	if err := c.Get(key, &out); !errors.Is(err, ErrNotCached) {
		t.Fatalf("expected entry removed, got %v", err)
	}
}

func TestUndoIsSingleUse(t *testing.T) {
	c := New()
	key := listKey("page=1")
	if err := c.SetConfirmed(key, testList{}); err != nil {
		t.Fatalf("set: %v", err)
	}
	undo, err := Patch(c, key, func(l *testList) error { return nil })
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if err := undo.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := undo.Revert(); !errors.Is(err, ErrUndoSpent) {
		t.Fatalf("expected ErrUndoSpent, got %v", err)
	}
}

// A revert must not clobber an entry somebody else wrote after the
// patch: the stale undo reports displacement and the newer value stays.
func TestRevertRefusesDisplacedEntry(t *testing.T) {
	c := New()
	key := listKey("page=1")
	if err := c.SetConfirmed(key, testList{Data: []testRecord{{ID: 1, Title: "old"}}, Total: 1}); err != nil {
		t.Fatalf("set: %v", err)
	}
	undo, err := Patch(c, key, func(l *testList) error {
		l.Data[0].Title = "optimistic"
		return nil
	})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}

	if err := c.SetConfirmed(key, testList{Data: []testRecord{{ID: 1, Title: "server"}}, Total: 1}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if err := undo.Revert(); !errors.Is(err, ErrEntryDisplaced) {
		t.Fatalf("expected ErrEntryDisplaced, got %v", err)
	}

	var out testList
	if err := c.Get(key, &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if out.Data[0].Title != "server" {
		t.Fatalf("newer write lost, got %q", out.Data[0].Title)
	}
}

func TestRevertRefusesInvalidatedEntry(t *testing.T) {
	c := New()
	key := listKey("page=1")
	if err := c.SetConfirmed(key, testList{Total: 1}); err != nil {
		t.Fatalf("set: %v", err)
	}
	undo, err := Patch(c, key, func(l *testList) error { l.Total = 2; return nil })
	if err != nil {
		t.Fatalf("patch: %v", err)
	}

	c.Invalidate(key)
	if err := undo.Revert(); !errors.Is(err, ErrEntryDisplaced) {
		t.Fatalf("expected ErrEntryDisplaced, got %v", err)
	}
	var out testList
	if err := c.Get(key, &out); !errors.Is(err, ErrNotCached) {
		t.Fatalf("invalidated entry resurrected: %v", err)
	}
}

func TestSubscribeReceivesEvents(t *testing.T) {
	c := New()
	key := listKey("page=1")
	ch, cancel := c.Subscribe(key)
	defer cancel()

	if err := c.SetConfirmed(key, testList{}); err != nil {
		t.Fatalf("set: %v", err)
	}
	select {
	case ev := <-ch:
		if ev.Kind != EventSet {
			t.Fatalf("expected set event, got %s", ev.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}

	c.Invalidate(key)
	select {
	case ev := <-ch:
		if ev.Kind != EventInvalidate {
			t.Fatalf("expected invalidate event, got %s", ev.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("no invalidate event received")
	}
}

func TestInvalidateEndpointDropsAllParams(t *testing.T) {
	c := New()
	a := listKey("page=1")
	b := listKey("page=2")
	other := Key{Endpoint: "/api/pages", Params: "page=1"}
	for _, k := range []Key{a, b, other} {
		if err := c.SetConfirmed(k, testList{}); err != nil {
			t.Fatalf("set: %v", err)
		}
	}

	c.InvalidateEndpoint("/api/posts")

	var out testList
	if err := c.Get(a, &out); !errors.Is(err, ErrNotCached) {
		t.Fatal("page=1 should be dropped")
	}
	if err := c.Get(b, &out); !errors.Is(err, ErrNotCached) {
		t.Fatal("page=2 should be dropped")
	}
	if err := c.Get(other, &out); err != nil {
		t.Fatalf("other endpoint should survive: %v", err)
	}
}

func TestGetOrFetchDedupesConcurrentFetches(t *testing.T) {
	c := New()
	key := listKey("page=1")
	var calls atomic.Int32

	fetch := func(context.Context) (testList, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return testList{Total: 5}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := GetOrFetch(context.Background(), c, key, fetch)
			if err != nil {
				t.Errorf("fetch: %v", err)
				return
			}
			if out.Total != 5 {
				t.Errorf("unexpected total %d", out.Total)
			}
		}()
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 upstream fetch, got %d", got)
	}
}

func rawBytes(t *testing.T, c *Cache, key Key) []byte {
	t.Helper()
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		t.Fatal("entry missing")
	}
	out := make([]byte, len(e.data))
	copy(out, e.data)
	return out
}

func TestStoredBytesAreCanonicalJSON(t *testing.T) {
	c := New()
	key := listKey("page=1")
	if err := c.SetConfirmed(key, testList{Data: []testRecord{{ID: 1, Title: "x"}}, Total: 1}); err != nil {
		t.Fatalf("set: %v", err)
	}
	raw := rawBytes(t, c, key)
	var decoded testList
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("stored bytes are not valid JSON: %v", err)
	}
}
