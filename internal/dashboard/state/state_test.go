package state

import (
	"testing"
	"time"

	"github.com/quillcms/quill/internal/rbac"
)

func newPostsState() *EntityViewState {
	return NewEntityViewState("posts", rbac.PermPostsView, rbac.PermPostsManage, rbac.PermPostsDelete)
}

func TestItemsPerPageClamped(t *testing.T) {
	s := newPostsState()

	s.SetItemsPerPage(0)
	if got := s.Snapshot().ItemsPerPage; got != MinItemsPerPage {
		t.Fatalf("expected clamp to %d, got %d", MinItemsPerPage, got)
	}

	s.SetItemsPerPage(9000)
	if got := s.Snapshot().ItemsPerPage; got != MaxItemsPerPage {
		t.Fatalf("expected clamp to %d, got %d", MaxItemsPerPage, got)
	}

	s.SetItemsPerPage(25)
	if got := s.Snapshot().ItemsPerPage; got != 25 {
		t.Fatalf("expected 25, got %d", got)
	}
}

func TestSearchAndFilterResetPage(t *testing.T) {
	s := newPostsState()
	s.SetCurrentPage(7)

	s.SetSearchQuery("hello")
	if got := s.Snapshot().CurrentPage; got != 1 {
		t.Fatalf("search should reset page, got %d", got)
	}

	s.SetCurrentPage(4)
	s.SetFilter("status", "published")
	snap := s.Snapshot()
	if snap.CurrentPage != 1 {
		t.Fatalf("filter should reset page, got %d", snap.CurrentPage)
	}
	if snap.Filters["status"] != "published" {
		t.Fatal("filter not recorded")
	}

	s.SetCurrentPage(3)
	s.SetFilter("status", "")
	snap = s.Snapshot()
	if _, ok := snap.Filters["status"]; ok {
		t.Fatal("empty value should remove the filter")
	}
	if snap.CurrentPage != 1 {
		t.Fatal("removing a filter should also reset the page")
	}
}

func TestClampToTotalPages(t *testing.T) {
	s := newPostsState()
	s.SetCurrentPage(9)

	s.ClampToTotalPages(0)
	if got := s.Snapshot().CurrentPage; got != 9 {
		t.Fatalf("zero total must not move the page, got %d", got)
	}

	s.ClampToTotalPages(4)
	if got := s.Snapshot().CurrentPage; got != 4 {
		t.Fatalf("expected clamp to 4, got %d", got)
	}

	s.ClampToTotalPages(10)
	if got := s.Snapshot().CurrentPage; got != 4 {
		t.Fatalf("larger total must not move the page, got %d", got)
	}
}

func TestUpdateUserPermissions(t *testing.T) {
	s := newPostsState()

	s.UpdateUserPermissions("author")
	snap := s.Snapshot()
	if !snap.CanView || !snap.CanManage || snap.CanDelete {
		t.Fatalf("author flags wrong: %+v", snap)
	}
	if snap.LastKnownRole != "author" || snap.LastRoleUpdate.IsZero() {
		t.Fatal("role bookkeeping not updated")
	}

	first := snap.LastRoleUpdate
	s.UpdateUserPermissions("author")
	if got := s.Snapshot().LastRoleUpdate; !got.Equal(first) {
		t.Fatal("unchanged role must be a no-op")
	}

	s.UpdateUserPermissions("editor")
	snap = s.Snapshot()
	if !snap.CanDelete {
		t.Fatal("editor should gain delete on posts")
	}

	s.UpdateUserPermissions("")
	snap = s.Snapshot()
	if snap.CanView || snap.CanManage || snap.CanDelete {
		t.Fatal("absent role must clear all flags")
	}
}

func TestHydrateResetsVolatileState(t *testing.T) {
	s := newPostsState()
	s.UpdateUserPermissions("admin")
	s.SetSearchQuery("drafts")
	s.SetFilter("status", "draft")
	s.SetCurrentPage(5)

	s.Hydrate(Persisted{ViewMode: ViewModeTable, ItemsPerPage: 50, SortBy: "title"})

	snap := s.Snapshot()
	if snap.ViewMode != ViewModeTable || snap.ItemsPerPage != 50 || snap.SortBy != "title" {
		t.Fatalf("persisted prefs not applied: %+v", snap)
	}
	if snap.CurrentPage != 1 || snap.SearchQuery != "" || len(snap.Filters) != 0 {
		t.Fatalf("volatile state not reset: %+v", snap)
	}
	if snap.CanView || snap.CanManage || snap.CanDelete || snap.LastKnownRole != "" {
		t.Fatal("permission flags must drop to false on hydration")
	}
}

func TestHydrateIgnoresInvalidPersistedValues(t *testing.T) {
	s := newPostsState()
	s.Hydrate(Persisted{ViewMode: "carousel", ItemsPerPage: 100000})

	snap := s.Snapshot()
	if snap.ViewMode != ViewModeGrid {
		t.Fatalf("invalid view mode should keep default, got %s", snap.ViewMode)
	}
	if snap.ItemsPerPage != DefaultItemsPerPage {
		t.Fatalf("out-of-range items per page should keep default, got %d", snap.ItemsPerPage)
	}
}

func TestDebouncedPersistWritesLastValue(t *testing.T) {
	store := NewMemoryStore()
	deb := NewDebouncer(20 * time.Millisecond)
	defer deb.Stop()

	s := newPostsState()
	s.OnPersist(func(p Persisted) {
		deb.Call(func() {
			if err := store.Save(s.Entity(), p); err != nil {
				t.Errorf("save: %v", err)
			}
		})
	})

	s.SetItemsPerPage(20)
	s.SetItemsPerPage(30)
	s.SetViewMode(ViewModeTable)

	if _, ok, _ := store.Load("posts"); ok {
		t.Fatal("save should not happen before the quiet window")
	}

	time.Sleep(60 * time.Millisecond)
	p, ok, err := store.Load("posts")
	if err != nil || !ok {
		t.Fatalf("expected persisted state, ok=%v err=%v", ok, err)
	}
	if p.ItemsPerPage != 30 || p.ViewMode != ViewModeTable {
		t.Fatalf("expected the last value, got %+v", p)
	}
}

func TestMemoryStoreDiscardsCorruptPayload(t *testing.T) {
	store := NewMemoryStore()
	store.Corrupt("posts")

	_, ok, err := store.Load("posts")
	if err != nil {
		t.Fatalf("corrupt payload should not error: %v", err)
	}
	if ok {
		t.Fatal("corrupt payload should be discarded")
	}

	// The key is cleared, so a later load behaves like a fresh install.
	if _, ok, _ := store.Load("posts"); ok {
		t.Fatal("corrupt key should have been deleted")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if _, ok, _ := store.Load("pages"); ok {
		t.Fatal("missing key should report absent")
	}

	want := Persisted{ViewMode: ViewModeTable, ItemsPerPage: 15, SortBy: "updatedAt"}
	if err := store.Save("pages", want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := store.Load("pages")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	if err := store.Delete("pages"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := store.Load("pages"); ok {
		t.Fatal("deleted key should report absent")
	}
}
