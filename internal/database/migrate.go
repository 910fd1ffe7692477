package database

import (
	"github.com/quillcms/quill/internal/domain"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Category{},
		&domain.Post{},
		&domain.Page{},
		&domain.Comment{},
	)
}
