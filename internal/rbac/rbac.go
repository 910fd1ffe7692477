package rbac

// Role is the closed set of dashboard roles. The zero value means
// "unauthenticated" and is granted nothing.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleAuthor Role = "author"
	RoleUser   Role = "user"
)

// Permission identifies one authorizable action as "resource:action".
type Permission string

const (
	PermPostsView   Permission = "posts:view"
	PermPostsManage Permission = "posts:manage"
	PermPostsDelete Permission = "posts:delete"

	PermPagesView   Permission = "pages:view"
	PermPagesManage Permission = "pages:manage"
	PermPagesDelete Permission = "pages:delete"

	PermCategoriesView   Permission = "categories:view"
	PermCategoriesAdd    Permission = "categories:add"
	PermCategoriesUpdate Permission = "categories:update"
	PermCategoriesDelete Permission = "categories:delete"

	PermUsersView   Permission = "users:view"
	PermUsersAdd    Permission = "users:add"
	PermUsersUpdate Permission = "users:update"
	PermUsersDelete Permission = "users:delete"

	PermCommentsView   Permission = "comments:view"
	PermCommentsManage Permission = "comments:manage"

	PermAdminControlledData Permission = "admin:controlled_data"
)

// AllPermissions lists every permission in the table, in a stable order.
func AllPermissions() []Permission {
	return []Permission{
		PermPostsView, PermPostsManage, PermPostsDelete,
		PermPagesView, PermPagesManage, PermPagesDelete,
		PermCategoriesView, PermCategoriesAdd, PermCategoriesUpdate, PermCategoriesDelete,
		PermUsersView, PermUsersAdd, PermUsersUpdate, PermUsersDelete,
		PermCommentsView, PermCommentsManage,
		PermAdminControlledData,
	}
}

var rolePermissions = map[Role]map[Permission]struct{}{
	RoleAdmin: permSet(
		PermPostsView, PermPostsManage, PermPostsDelete,
		PermPagesView, PermPagesManage, PermPagesDelete,
		PermCategoriesView, PermCategoriesAdd, PermCategoriesUpdate, PermCategoriesDelete,
		PermUsersView, PermUsersAdd, PermUsersUpdate, PermUsersDelete,
		PermCommentsView, PermCommentsManage,
		PermAdminControlledData,
	),
	RoleEditor: permSet(
		PermPostsView, PermPostsManage, PermPostsDelete,
		PermPagesView, PermPagesManage,
		PermCategoriesView, PermCategoriesAdd, PermCategoriesUpdate,
		PermCommentsView, PermCommentsManage,
	),
	RoleAuthor: permSet(
		PermPostsView, PermPostsManage,
		PermCategoriesView,
		PermCommentsView,
	),
	RoleUser: permSet(),
}

func permSet(perms ...Permission) map[Permission]struct{} {
	set := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// HasPermission reports whether role is granted perm. It is pure and total:
// an empty or unknown role and an unknown permission both fail closed.
func HasPermission(role Role, perm Permission) bool {
	set, ok := rolePermissions[role]
	if !ok {
		return false
	}
	_, granted := set[perm]
	return granted
}

// Permissions returns the granted permission set for role in stable order.
func Permissions(role Role) []Permission {
	set, ok := rolePermissions[role]
	if !ok {
		return nil
	}
	out := make([]Permission, 0, len(set))
	for _, p := range AllPermissions() {
		if _, granted := set[p]; granted {
			out = append(out, p)
		}
	}
	return out
}

// ValidRole reports whether role is one of the closed role set.
func ValidRole(role Role) bool {
	switch role {
	case RoleAdmin, RoleEditor, RoleAuthor, RoleUser:
		return true
	default:
		return false
	}
}
