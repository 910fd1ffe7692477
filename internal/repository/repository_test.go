package repository

import (
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/quillcms/quill/internal/domain"
)

var testDBSeq int

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	testDBSeq++
	dsn := fmt.Sprintf("file:repotest%d?mode=memory&cache=shared", testDBSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&domain.User{},
		&domain.Category{},
		&domain.Post{},
		&domain.Page{},
		&domain.Comment{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedAuthor(t *testing.T, db *gorm.DB) *domain.User {
	t.Helper()
	user := &domain.User{
		Email:        fmt.Sprintf("author%d@example.com", testDBSeq),
		Name:         "Test Author",
		PasswordHash: "x",
		Role:         "author",
		UserType:     "regular",
		IsActive:     true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed author: %v", err)
	}
	return user
}

func seedPost(t *testing.T, db *gorm.DB, authorID uint, slug, status string, demo bool) *domain.Post {
	t.Helper()
	post := &domain.Post{
		Title:    "Post " + slug,
		Slug:     slug,
		Content:  "content",
		Status:   status,
		AuthorID: authorID,
		Demo:     demo,
	}
	if err := db.Create(post).Error; err != nil {
		t.Fatalf("seed post %s: %v", slug, err)
	}
	return post
}
