package integration

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/quillcms/quill/internal/config"
	"github.com/quillcms/quill/internal/database"
	"github.com/quillcms/quill/internal/domain"
	"github.com/quillcms/quill/internal/repository"
)

// Runs against a real Postgres so the duplicate-key detection and the
// demo-row filters are exercised on the production driver, not just
// sqlite. Gated behind INTEGRATION=1 because it needs Docker.
func TestPostgresRepositoryBehaviour(t *testing.T) {
	if os.Getenv("INTEGRATION") == "" {
		t.Skip("set INTEGRATION=1 to run testcontainers-backed tests")
	}

	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("quill"),
		tcpostgres.WithUsername("quill"),
		tcpostgres.WithPassword("quill"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = ctr.Terminate(ctx) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	cfg := &config.Config{DatabaseURL: dsn, SeedDemoContent: true}
	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	report, err := database.Seed(db, cfg)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if report.CreatedPosts != 2 {
		t.Fatalf("expected 2 demo posts, got %d", report.CreatedPosts)
	}

	posts := repository.NewPostRepository(db)

	t.Run("duplicate slug maps to the sentinel on postgres", func(t *testing.T) {
		var author domain.User
		if err := db.Where("email = ?", "demo-author@quillcms.local").First(&author).Error; err != nil {
			t.Fatalf("load demo author: %v", err)
		}
		err := posts.Create(&domain.Post{
			Title:    "Clash",
			Slug:     "welcome-to-your-new-blog",
			Content:  "x",
			Status:   domain.StatusDraft,
			AuthorID: author.ID,
		})
		if !errors.Is(err, repository.ErrDuplicateSlug) {
			t.Fatalf("expected ErrDuplicateSlug, got %v", err)
		}
	})

	t.Run("bulk delete with demo filter leaves demo rows", func(t *testing.T) {
		var ids []uint
		if err := db.Model(&domain.Post{}).Pluck("id", &ids).Error; err != nil {
			t.Fatalf("pluck ids: %v", err)
		}
		deleted, err := posts.BulkDelete(ids, true)
		if err != nil {
			t.Fatalf("bulk delete: %v", err)
		}
		if deleted != 0 {
			t.Fatalf("demo rows must survive, deleted %d", deleted)
		}
		var remaining int64
		if err := db.Model(&domain.Post{}).Count(&remaining).Error; err != nil {
			t.Fatalf("count: %v", err)
		}
		if remaining != int64(len(ids)) {
			t.Fatalf("expected %d posts remaining, got %d", len(ids), remaining)
		}
	})

	t.Run("seed is idempotent", func(t *testing.T) {
		again, err := database.Seed(db, cfg)
		if err != nil {
			t.Fatalf("re-seed: %v", err)
		}
		if again.CreatedPosts != 0 || again.CreatedUsers != 0 {
			t.Fatalf("re-seed created rows: %+v", again)
		}
	})
}
