package repository

import (
	"testing"

	"github.com/quillcms/quill/internal/domain"
)

// A user inserted with IsActive=false must read back inactive. A column
// default would make gorm skip the zero-valued field on insert and the
// row would come back active.
func TestUserRepositoryCreatePreservesInactiveFlag(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)

	user := &domain.User{
		Email:        "disabled@example.com",
		Name:         "Disabled",
		PasswordHash: "x",
		Role:         "admin",
		UserType:     "regular",
		IsActive:     false,
	}
	if err := repo.Create(user); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.FindByID(user.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.IsActive {
		t.Fatal("user stored active despite IsActive=false on insert")
	}
}
