package domain

import "time"

const (
	CommentPending  = "pending"
	CommentApproved = "approved"
	CommentSpam     = "spam"
)

type Comment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PostID      uint      `gorm:"not null;index:idx_comments_post" json:"postId"`
	AuthorName  string    `gorm:"size:120;not null" json:"authorName"`
	AuthorEmail string    `gorm:"size:255" json:"authorEmail"`
	Body        string    `gorm:"type:text;not null" json:"body"`
	Status      string    `gorm:"size:32;not null;default:pending;index:idx_comments_status" json:"status"`
	Demo        bool      `gorm:"not null;default:false" json:"demo"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
