package domain

import "time"

type Page struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:200;not null" json:"title"`
	Slug      string    `gorm:"uniqueIndex;size:220;not null" json:"slug"`
	Content   string    `gorm:"type:text" json:"content"`
	Status    string    `gorm:"size:32;not null;default:draft;index:idx_pages_status" json:"status"`
	AuthorID  uint      `gorm:"not null;index:idx_pages_author" json:"authorId"`
	Author    *User     `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	IsActive  bool      `gorm:"not null" json:"isActive"`
	Demo      bool      `gorm:"not null;default:false" json:"demo"`
	Views     int64     `gorm:"not null;default:0" json:"views"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
