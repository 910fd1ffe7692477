package rbac

import "errors"

const UserTypeSuperAdmin = "superadmin"

var (
	ErrNotOwner   = errors.New("actor does not own the resource")
	ErrDemoLocked = errors.New("demo data is locked")
)

// Actor is the authenticated caller of a request.
type Actor struct {
	ID       uint
	Role     Role
	UserType string
	IsActive bool
}

// IsSuperAdmin reports whether the actor bypasses ownership and demo locks.
// It never bypasses the permission table itself.
func IsSuperAdmin(a *Actor) bool {
	return a != nil && a.Role == RoleAdmin && a.UserType == UserTypeSuperAdmin
}

// AuthorizeMutation applies the ownership and demo-lock checks that run after
// a permission check has already passed. The demo lock takes precedence: demo
// rows are immutable for every non-superadmin actor regardless of ownership.
func AuthorizeMutation(actor *Actor, ownerID uint, demo bool) error {
	if IsSuperAdmin(actor) {
		return nil
	}
	if demo {
		return ErrDemoLocked
	}
	if actor == nil || actor.ID != ownerID {
		return ErrNotOwner
	}
	return nil
}
