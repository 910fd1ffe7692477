package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quillcms/quill/internal/dashboard/query"
	"github.com/quillcms/quill/internal/dashboard/state"
	"github.com/quillcms/quill/internal/domain"
	"github.com/quillcms/quill/internal/rbac"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusColors  = map[string]lipgloss.Style{
		domain.StatusPublished: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		domain.StatusDraft:     lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		domain.StatusArchived:  dimStyle,
	}
)

type loginMsg struct {
	session *query.Session
	err     error
}

type postsMsg struct {
	result query.ListResult[domain.Post]
	err    error
}

type mutationMsg struct {
	err error
}

type model struct {
	client *query.Client
	posts  *query.PostsClient
	view   *state.EntityViewState
	deb    *state.Debouncer

	email    string
	password string

	loggedIn  bool
	role      string
	rows      []domain.Post
	total     int64
	pages     int
	cursor    int
	searching bool
	search    string
	errMsg    string
}

func newModel(client *query.Client, store state.Store, email, password string) *model {
	view := state.NewEntityViewState("posts", rbac.PermPostsView, rbac.PermPostsManage, rbac.PermPostsDelete)
	if persisted, ok, _ := store.Load(view.Entity()); ok {
		view.Hydrate(persisted)
	}
	deb := state.NewDebouncer(state.DefaultDebounce)
	view.OnPersist(func(p state.Persisted) {
		deb.Call(func() { _ = store.Save("posts", p) })
	})
	return &model{
		client:   client,
		posts:    query.NewPostsClient(client),
		view:     view,
		deb:      deb,
		email:    email,
		password: password,
	}
}

func (m *model) shutdown() {
	m.deb.Flush()
	m.deb.Stop()
}

func (m *model) params() query.ListParams {
	snap := m.view.Snapshot()
	return query.ListParams{
		Page:      snap.CurrentPage,
		Limit:     snap.ItemsPerPage,
		Search:    snap.SearchQuery,
		SortBy:    "created_at",
		SortOrder: "desc",
		Filters:   snap.Filters,
	}
}

func (m *model) Init() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		session, err := m.client.Login(ctx, m.email, m.password)
		return loginMsg{session: session, err: err}
	}
}

func (m *model) loadPosts() tea.Cmd {
	params := m.params()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		res, err := m.posts.List(ctx, params)
		return postsMsg{result: res, err: err}
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loginMsg:
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, tea.Quit
		}
		m.loggedIn = true
		m.role = roleFromSession(msg.session)
		m.view.UpdateUserPermissions(m.role)
		return m, m.loadPosts()

	case postsMsg:
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.errMsg = ""
		m.rows = msg.result.Data
		m.total = msg.result.Total
		m.pages = msg.result.TotalPages
		m.view.ClampToTotalPages(msg.result.TotalPages)
		if m.cursor >= len(m.rows) {
			m.cursor = max(0, len(m.rows)-1)
		}
		return m, nil

	case mutationMsg:
		if msg.err != nil {
			m.errMsg = msg.err.Error()
		} else {
			m.errMsg = ""
		}
		return m, m.loadPosts()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searching {
		switch msg.String() {
		case "enter":
			m.searching = false
			m.view.SetSearchQuery(m.search)
			return m, m.loadPosts()
		case "esc":
			m.searching = false
			m.search = ""
			m.view.SetSearchQuery("")
			return m, m.loadPosts()
		case "backspace":
			if len(m.search) > 0 {
				m.search = m.search[:len(m.search)-1]
			}
		default:
			if len(msg.String()) == 1 {
				m.search += msg.String()
			}
		}
		return m, nil
	}

	snap := m.view.Snapshot()
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
	case "n":
		if snap.CurrentPage < m.pages {
			m.view.SetCurrentPage(snap.CurrentPage + 1)
			return m, m.loadPosts()
		}
	case "p":
		if snap.CurrentPage > 1 {
			m.view.SetCurrentPage(snap.CurrentPage - 1)
			return m, m.loadPosts()
		}
	case "/":
		m.searching = true
		m.search = ""
	case "v":
		if snap.ViewMode == state.ViewModeGrid {
			m.view.SetViewMode(state.ViewModeTable)
		} else {
			m.view.SetViewMode(state.ViewModeGrid)
		}
	case "+":
		m.view.SetItemsPerPage(snap.ItemsPerPage + 5)
		return m, m.loadPosts()
	case "-":
		m.view.SetItemsPerPage(snap.ItemsPerPage - 5)
		return m, m.loadPosts()
	case "P":
		return m.mutateSelected(snap, func(ctx context.Context, id uint) error {
			_, err := m.posts.SetStatus(ctx, m.params(), id, domain.StatusPublished)
			return err
		}, snap.CanManage)
	case "D":
		return m.mutateSelected(snap, func(ctx context.Context, id uint) error {
			_, err := m.posts.SetStatus(ctx, m.params(), id, domain.StatusDraft)
			return err
		}, snap.CanManage)
	case "f":
		if m.cursor < len(m.rows) {
			featured := !m.rows[m.cursor].IsFeatured
			return m.mutateSelected(snap, func(ctx context.Context, id uint) error {
				_, err := m.posts.ToggleFeatured(ctx, m.params(), id, featured)
				return err
			}, snap.CanManage)
		}
	case "x":
		return m.mutateSelected(snap, func(ctx context.Context, id uint) error {
			return m.posts.Delete(ctx, m.params(), id)
		}, snap.CanDelete)
	case "r":
		m.client.Cache().InvalidateEndpoint("/api/posts")
		return m, m.loadPosts()
	}
	return m, nil
}

func (m *model) mutateSelected(snap state.Snapshot, fn func(context.Context, uint) error, allowed bool) (tea.Model, tea.Cmd) {
	if !allowed {
		m.errMsg = "your role can't do that"
		return m, nil
	}
	if m.cursor >= len(m.rows) {
		return m, nil
	}
	id := m.rows[m.cursor].ID
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return mutationMsg{err: fn(ctx, id)}
	}
}

func (m *model) View() string {
	if !m.loggedIn {
		if m.errMsg != "" {
			return errorStyle.Render("login failed: "+m.errMsg) + "\n"
		}
		return "Signing in...\n"
	}

	snap := m.view.Snapshot()
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Posts — page %d/%d — %d total — %s view — role %s",
		snap.CurrentPage, max(m.pages, 1), m.total, snap.ViewMode, m.role)))
	b.WriteString("\n\n")

	if m.searching {
		b.WriteString("search: " + m.search + "█\n\n")
	} else if snap.SearchQuery != "" {
		b.WriteString(dimStyle.Render("search: "+snap.SearchQuery) + "\n\n")
	}

	for i, post := range m.rows {
		line := renderPost(post, snap.ViewMode)
		if i == m.cursor {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	if len(m.rows) == 0 {
		b.WriteString(dimStyle.Render("  no posts") + "\n")
	}

	b.WriteString("\n")
	if m.errMsg != "" {
		b.WriteString(errorStyle.Render(m.errMsg) + "\n")
	}
	b.WriteString(dimStyle.Render("j/k move · n/p page · / search · v view · +/- page size · P publish · D draft · f feature · x delete · r refresh · q quit"))
	b.WriteString("\n")
	return b.String()
}

func renderPost(post domain.Post, mode state.ViewMode) string {
	status := post.Status
	if style, ok := statusColors[post.Status]; ok {
		status = style.Render(post.Status)
	}
	star := " "
	if post.IsFeatured {
		star = "*"
	}
	if mode == state.ViewModeTable {
		return fmt.Sprintf("%-4d %s %-40.40s %-10s %6d views", post.ID, star, post.Title, status, post.Views)
	}
	return fmt.Sprintf("%s %s [%s]", star, post.Title, status)
}

func roleFromSession(s *query.Session) string {
	if s == nil {
		return ""
	}
	var user struct {
		Role string `json:"role"`
	}
	if err := json.Unmarshal(s.User, &user); err != nil {
		return ""
	}
	return user.Role
}
