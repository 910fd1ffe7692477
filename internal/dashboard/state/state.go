// Package state holds the dashboard's per-entity view state: pagination,
// search, sorting, layout, and the permission flags derived from the
// signed-in user's role. Layout preferences survive restarts through a
// debounced store; everything else is session-local.
package state

import (
	"sync"
	"time"

	"github.com/quillcms/quill/internal/rbac"
)

type ViewMode string

const (
	ViewModeGrid  ViewMode = "grid"
	ViewModeTable ViewMode = "table"
)

const (
	MinItemsPerPage     = 1
	MaxItemsPerPage     = 241
	DefaultItemsPerPage = 10
	DefaultSortBy       = "createdAt"
)

// EntityViewState is one dashboard section's view state (posts, pages,
// categories or users). All methods are safe for concurrent use.
type EntityViewState struct {
	mu sync.Mutex

	entity     string
	viewPerm   rbac.Permission
	managePerm rbac.Permission
	deletePerm rbac.Permission

	viewMode     ViewMode
	itemsPerPage int
	searchQuery  string
	sortBy       string
	currentPage  int
	filters      map[string]string

	canView   bool
	canManage bool
	canDelete bool

	lastKnownRole  string
	lastRoleUpdate time.Time

	persist func(Persisted)
}

// Snapshot is a point-in-time copy handed to readers.
type Snapshot struct {
	ViewMode       ViewMode
	ItemsPerPage   int
	SearchQuery    string
	SortBy         string
	CurrentPage    int
	Filters        map[string]string
	CanView        bool
	CanManage      bool
	CanDelete      bool
	LastKnownRole  string
	LastRoleUpdate time.Time
}

// Persisted is the sanitized subset written to the store. Volatile
// fields (page, search, filters, permissions) never persist.
type Persisted struct {
	ViewMode     ViewMode `json:"viewMode"`
	ItemsPerPage int      `json:"itemsPerPage"`
	SortBy       string   `json:"sortBy"`
}

func NewEntityViewState(entity string, viewPerm, managePerm, deletePerm rbac.Permission) *EntityViewState {
	return &EntityViewState{
		entity:       entity,
		viewPerm:     viewPerm,
		managePerm:   managePerm,
		deletePerm:   deletePerm,
		viewMode:     ViewModeGrid,
		itemsPerPage: DefaultItemsPerPage,
		sortBy:       DefaultSortBy,
		currentPage:  1,
		filters:      map[string]string{},
	}
}

// OnPersist registers the callback invoked (typically through a
// Debouncer) whenever a persisted field changes.
func (s *EntityViewState) OnPersist(fn func(Persisted)) {
	s.mu.Lock()
	s.persist = fn
	s.mu.Unlock()
}

func (s *EntityViewState) Entity() string { return s.entity }

func (s *EntityViewState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	filters := make(map[string]string, len(s.filters))
	for k, v := range s.filters {
		filters[k] = v
	}
	return Snapshot{
		ViewMode:       s.viewMode,
		ItemsPerPage:   s.itemsPerPage,
		SearchQuery:    s.searchQuery,
		SortBy:         s.sortBy,
		CurrentPage:    s.currentPage,
		Filters:        filters,
		CanView:        s.canView,
		CanManage:      s.canManage,
		CanDelete:      s.canDelete,
		LastKnownRole:  s.lastKnownRole,
		LastRoleUpdate: s.lastRoleUpdate,
	}
}

func (s *EntityViewState) SetViewMode(mode ViewMode) {
	if mode != ViewModeGrid && mode != ViewModeTable {
		return
	}
	s.mu.Lock()
	s.viewMode = mode
	fn, p := s.persist, s.persistedLocked()
	s.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

// SetItemsPerPage clamps into [MinItemsPerPage, MaxItemsPerPage].
func (s *EntityViewState) SetItemsPerPage(n int) {
	if n < MinItemsPerPage {
		n = MinItemsPerPage
	}
	if n > MaxItemsPerPage {
		n = MaxItemsPerPage
	}
	s.mu.Lock()
	s.itemsPerPage = n
	fn, p := s.persist, s.persistedLocked()
	s.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

func (s *EntityViewState) SetSortBy(sortBy string) {
	s.mu.Lock()
	s.sortBy = sortBy
	fn, p := s.persist, s.persistedLocked()
	s.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

// SetSearchQuery updates the search text and jumps back to page 1.
func (s *EntityViewState) SetSearchQuery(q string) {
	s.mu.Lock()
	s.searchQuery = q
	s.currentPage = 1
	s.mu.Unlock()
}

// SetFilter sets a named filter and jumps back to page 1. An empty
// value removes the filter.
func (s *EntityViewState) SetFilter(name, value string) {
	s.mu.Lock()
	if value == "" {
		delete(s.filters, name)
	} else {
		s.filters[name] = value
	}
	s.currentPage = 1
	s.mu.Unlock()
}

func (s *EntityViewState) ClearFilters() {
	s.mu.Lock()
	s.filters = map[string]string{}
	s.currentPage = 1
	s.mu.Unlock()
}

func (s *EntityViewState) SetCurrentPage(page int) {
	if page < 1 {
		page = 1
	}
	s.mu.Lock()
	s.currentPage = page
	s.mu.Unlock()
}

// ClampToTotalPages pulls currentPage back when the result set shrank
// below it. Zero or negative totals leave the page alone.
func (s *EntityViewState) ClampToTotalPages(totalPages int) {
	if totalPages <= 0 {
		return
	}
	s.mu.Lock()
	if s.currentPage > totalPages {
		s.currentPage = totalPages
	}
	s.mu.Unlock()
}

// UpdateUserPermissions recomputes the permission flags for role. An
// absent role normalizes to the empty role (no grants). When the
// normalized role matches the last known one, nothing changes: flags
// and timestamp stay untouched.
func (s *EntityViewState) UpdateUserPermissions(role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if role == s.lastKnownRole {
		return
	}
	r := rbac.Role(role)
	s.canView = rbac.HasPermission(r, s.viewPerm)
	s.canManage = rbac.HasPermission(r, s.managePerm)
	s.canDelete = rbac.HasPermission(r, s.deletePerm)
	s.lastKnownRole = role
	s.lastRoleUpdate = time.Now()
}

// Hydrate merges persisted layout preferences over defaults. Volatile
// state is reset: page 1, empty search, no filters, all permission
// flags false until the next role update.
func (s *EntityViewState) Hydrate(p Persisted) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ViewMode == ViewModeGrid || p.ViewMode == ViewModeTable {
		s.viewMode = p.ViewMode
	}
	if p.ItemsPerPage >= MinItemsPerPage && p.ItemsPerPage <= MaxItemsPerPage {
		s.itemsPerPage = p.ItemsPerPage
	}
	if p.SortBy != "" {
		s.sortBy = p.SortBy
	}
	s.currentPage = 1
	s.searchQuery = ""
	s.filters = map[string]string{}
	s.canView = false
	s.canManage = false
	s.canDelete = false
	s.lastKnownRole = ""
	s.lastRoleUpdate = time.Time{}
}

func (s *EntityViewState) persistedLocked() Persisted {
	return Persisted{ViewMode: s.viewMode, ItemsPerPage: s.itemsPerPage, SortBy: s.sortBy}
}
