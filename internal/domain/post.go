package domain

import "time"

const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

type Post struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Title      string    `gorm:"size:200;not null;index" json:"title"`
	Slug       string    `gorm:"uniqueIndex;size:220;not null" json:"slug"`
	Content    string    `gorm:"type:text" json:"content"`
	Excerpt    string    `gorm:"size:500" json:"excerpt"`
	Status     string    `gorm:"size:32;not null;default:draft;index:idx_posts_status" json:"status"`
	AuthorID   uint      `gorm:"not null;index:idx_posts_author" json:"authorId"`
	Author     *User     `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	CategoryID *uint     `gorm:"index:idx_posts_category" json:"categoryId"`
	Category   *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Tags       string    `gorm:"size:500" json:"tags"`
	IsFeatured bool      `gorm:"not null;default:false" json:"isFeatured"`
	Demo       bool      `gorm:"not null;default:false" json:"demo"`
	Views      int64     `gorm:"not null;default:0" json:"views"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
