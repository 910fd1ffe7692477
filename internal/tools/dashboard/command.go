// Package dashboard is the terminal admin dashboard: it signs in
// against the API, keeps per-entity view state, and drives the
// optimistic query clients so edits feel instant and roll back when the
// server refuses them.
package dashboard

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/quillcms/quill/internal/dashboard/query"
	"github.com/quillcms/quill/internal/dashboard/state"
	"github.com/quillcms/quill/internal/tools/common"
)

type options struct {
	envFile  string
	apiURL   string
	email    string
	password string
	stateDir string
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Terminal dashboard for managing content",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(opts)
		},
	}
	cmd.Flags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.Flags().StringVar(&opts.apiURL, "api", "http://localhost:8080", "API base URL")
	cmd.Flags().StringVar(&opts.email, "email", "", "login email (falls back to DASHBOARD_EMAIL)")
	cmd.Flags().StringVar(&opts.password, "password", "", "login password (falls back to DASHBOARD_PASSWORD)")
	cmd.Flags().StringVar(&opts.stateDir, "state-dir", "", "directory for persisted view preferences")
	return cmd
}

func runDashboard(opts *options) error {
	if err := common.LoadEnvFile(opts.envFile); err != nil {
		return err
	}
	if opts.email == "" {
		opts.email = os.Getenv("DASHBOARD_EMAIL")
	}
	if opts.password == "" {
		opts.password = os.Getenv("DASHBOARD_PASSWORD")
	}
	if opts.email == "" || opts.password == "" {
		return fmt.Errorf("email and password are required")
	}

	stateDir := opts.stateDir
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		stateDir = filepath.Join(home, ".quill", "dashboard")
	}
	store, err := state.NewFileStore(stateDir)
	if err != nil {
		return err
	}

	client, err := query.NewClient(opts.apiURL, nil)
	if err != nil {
		return err
	}

	m := newModel(client, store, opts.email, opts.password)
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	m.shutdown()
	return err
}
