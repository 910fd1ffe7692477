package domain

import "time"

type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:120;not null;index" json:"name"`
	Slug        string    `gorm:"uniqueIndex;size:140;not null" json:"slug"`
	Description string    `gorm:"size:500" json:"description"`
	Demo        bool      `gorm:"not null;default:false" json:"demo"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
