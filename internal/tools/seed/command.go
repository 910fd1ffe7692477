// Package seed is the CLI for applying schema migrations and seed data:
// the bootstrap admin account and, when enabled, the demo content a
// fresh install ships with.
package seed

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/quillcms/quill/internal/config"
	"github.com/quillcms/quill/internal/database"
	"github.com/quillcms/quill/internal/tools/common"
	"github.com/quillcms/quill/internal/tools/ui"
)

type options struct {
	envFile string
	ci      bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{Use: "seed", Short: "Database migration and seed tooling"}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.AddCommand(newApplyCommand(opts), newDryRunCommand(opts))
	return cmd
}

func newApplyCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Migrate the schema and apply seed data",
		RunE: func(cmd *cobra.Command, args []string) error {
			details, err := run(opts, "seed apply", func(ctx context.Context) ([]string, error) {
				cfg, db, err := loadConfigDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				if err := database.Migrate(db); err != nil {
					return nil, err
				}
				report, err := database.Seed(db, cfg)
				if err != nil {
					return nil, err
				}
				details := []string{
					fmt.Sprintf("created users: %d", report.CreatedUsers),
					fmt.Sprintf("created categories: %d", report.CreatedCategories),
					fmt.Sprintf("created posts: %d", report.CreatedPosts),
					fmt.Sprintf("created pages: %d", report.CreatedPages),
					fmt.Sprintf("created comments: %d", report.CreatedComments),
				}
				if cfg.BootstrapAdminEmail != "" {
					details = append(details, "bootstrap admin ensured for: "+cfg.BootstrapAdminEmail)
				}
				return details, nil
			})
			if opts.ci {
				common.PrintCIResult(err == nil, "seed apply", details, err)
			}
			if err != nil {
				os.Exit(3)
			}
			return nil
		},
	}
}

func newDryRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dry-run",
		Short: "Show what seeding would do",
		RunE: func(cmd *cobra.Command, args []string) error {
			details, err := run(opts, "seed dry-run", func(ctx context.Context) ([]string, error) {
				if err := common.LoadEnvFile(opts.envFile); err != nil {
					return nil, err
				}
				cfg, err := config.Load()
				if err != nil {
					return nil, err
				}
				details := []string{"would migrate schema: users, categories, posts, pages, comments"}
				if cfg.BootstrapAdminEmail != "" {
					details = append(details, "would ensure bootstrap admin: "+cfg.BootstrapAdminEmail)
				}
				if cfg.SeedDemoContent {
					details = append(details,
						"would ensure demo author, category, two posts, about page and one comment",
						"demo rows are flagged so only superadmins can remove them",
					)
				}
				return details, nil
			})
			if opts.ci {
				common.PrintCIResult(err == nil, "seed dry-run", details, err)
			}
			if err != nil {
				os.Exit(3)
			}
			return nil
		},
	}
}

func run(opts *options, title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	if opts.ci {
		return fn(context.Background())
	}
	return ui.Run(title, fn)
}

func loadConfigDB(envFile string) (*config.Config, *gorm.DB, error) {
	if err := common.LoadEnvFile(envFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}
