package domain

import (
	"time"

	"github.com/quillcms/quill/internal/rbac"
)

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	PasswordHash string    `gorm:"size:512;not null" json:"-"`
	Role         rbac.Role `gorm:"size:32;not null;default:user;index:idx_users_role" json:"role"`
	UserType     string    `gorm:"size:32;not null;default:regular" json:"userType"`
	// No column default here: gorm would skip a zero-valued field that has
	// one, silently storing a deliberately inactive user as active.
	IsActive bool `gorm:"not null;index:idx_users_active" json:"isActive"`
	Demo         bool      `gorm:"not null;default:false" json:"demo"`
	LastLoginAt  time.Time `json:"lastLoginAt"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (u *User) Actor() *rbac.Actor {
	return &rbac.Actor{ID: u.ID, Role: u.Role, UserType: u.UserType, IsActive: u.IsActive}
}
