package database

import (
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/quillcms/quill/internal/config"
	"github.com/quillcms/quill/internal/domain"
	"github.com/quillcms/quill/internal/rbac"
	"github.com/quillcms/quill/internal/security"
)

// SeedReport tallies what a seed run created. Re-runs are idempotent:
// existing rows are left untouched and the report stays at zero.
type SeedReport struct {
	CreatedUsers      int `json:"created_users"`
	CreatedCategories int `json:"created_categories"`
	CreatedPosts      int `json:"created_posts"`
	CreatedPages      int `json:"created_pages"`
	CreatedComments   int `json:"created_comments"`
}

func Seed(db *gorm.DB, cfg *config.Config) (*SeedReport, error) {
	report := &SeedReport{}

	if cfg.BootstrapAdminEmail != "" {
		hash, err := security.HashPassword(cfg.BootstrapAdminPassword)
		if err != nil {
			return nil, fmt.Errorf("hash bootstrap password: %w", err)
		}
		admin := domain.User{
			Email:        cfg.BootstrapAdminEmail,
			Name:         "Site Admin",
			PasswordHash: hash,
			Role:         rbac.RoleAdmin,
			UserType:     rbac.UserTypeSuperAdmin,
			IsActive:     true,
		}
		res := db.Where("email = ?", admin.Email).FirstOrCreate(&admin)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected > 0 {
			report.CreatedUsers++
			slog.Info("seeded bootstrap admin", "email", admin.Email)
		}
	}

	if !cfg.SeedDemoContent {
		return report, nil
	}

	demoAuthor := domain.User{
		Email:        "demo-author@quillcms.local",
		Name:         "Demo Author",
		PasswordHash: "*",
		Role:         rbac.RoleAuthor,
		UserType:     "regular",
		IsActive:     true,
		Demo:         true,
	}
	res := db.Where("email = ?", demoAuthor.Email).FirstOrCreate(&demoAuthor)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected > 0 {
		report.CreatedUsers++
	}

	demoCategory := domain.Category{
		Name:        "Getting Started",
		Slug:        "getting-started",
		Description: "Showcase content that ships with a fresh install.",
		Demo:        true,
	}
	res = db.Where("slug = ?", demoCategory.Slug).FirstOrCreate(&demoCategory)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected > 0 {
		report.CreatedCategories++
	}

	demoPosts := []domain.Post{
		{
			Title:      "Welcome to your new blog",
			Slug:       "welcome-to-your-new-blog",
			Content:    "This demo post shows how published content looks on the public site.",
			Excerpt:    "A quick tour of the publishing workflow.",
			Status:     domain.StatusPublished,
			AuthorID:   demoAuthor.ID,
			CategoryID: &demoCategory.ID,
			Tags:       "welcome,demo",
			IsFeatured: true,
			Demo:       true,
		},
		{
			Title:    "Drafts stay private",
			Slug:     "drafts-stay-private",
			Content:  "Draft posts are only visible from the dashboard.",
			Excerpt:  "Understanding draft visibility.",
			Status:   domain.StatusDraft,
			AuthorID: demoAuthor.ID,
			Tags:     "demo",
			Demo:     true,
		},
	}
	for i := range demoPosts {
		res := db.Where("slug = ?", demoPosts[i].Slug).FirstOrCreate(&demoPosts[i])
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected > 0 {
			report.CreatedPosts++
		}
	}

	demoPage := domain.Page{
		Title:    "About",
		Slug:     "about",
		Content:  "Tell your readers who you are.",
		Status:   domain.StatusPublished,
		AuthorID: demoAuthor.ID,
		IsActive: true,
		Demo:     true,
	}
	res = db.Where("slug = ?", demoPage.Slug).FirstOrCreate(&demoPage)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected > 0 {
		report.CreatedPages++
	}

	demoComment := domain.Comment{
		PostID:     demoPosts[0].ID,
		AuthorName: "First Reader",
		Body:       "Looking forward to more posts!",
		Status:     domain.CommentApproved,
		Demo:       true,
	}
	res = db.Where("post_id = ? AND author_name = ?", demoComment.PostID, demoComment.AuthorName).FirstOrCreate(&demoComment)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected > 0 {
		report.CreatedComments++
	}

	return report, nil
}
