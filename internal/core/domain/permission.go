package domain

import "strings"

// Permission is a "<domain>.<action>" string such as "feedback.read".
// Two grant forms are special: "*" matches everything and "<domain>.*"
// matches any action within that domain.
type Permission string

// PermissionAll grants every permission.
const PermissionAll Permission = "*"

// Permissions checked by gatekeeper's own routes.
const (
	PermUsersRead  Permission = "users.read"
	PermUsersWrite Permission = "users.write"
	PermStatsRead  Permission = "stats.read"
)

// Domain returns the part before the first dot.
func (p Permission) Domain() string {
	d, _, _ := strings.Cut(string(p), ".")
	return d
}

// Matches reports whether a granted permission satisfies a requested one.
func Matches(granted, requested Permission) bool {
	if granted == PermissionAll || granted == requested {
		return true
	}
	d, action, ok := strings.Cut(string(granted), ".")
	if !ok || action != "*" {
		return false
	}
	return requested.Domain() == d
}

// PermissionSet is the immutable list of grants held by one role.
type PermissionSet []Permission

// Allows reports whether any grant in the set matches the requested permission.
func (s PermissionSet) Allows(requested Permission) bool {
	for _, g := range s {
		if Matches(g, requested) {
			return true
		}
	}
	return false
}

// rolePermissions is read-only after init and needs no locking.
var rolePermissions = map[Role]PermissionSet{
	RoleSuperAdmin: {PermissionAll},
	RoleAdmin: {
		"users.read", "users.write", "users.delete",
		"team.read", "team.write",
		"feedback.read", "feedback.write", "feedback.delete",
		"apikeys.read", "apikeys.write", "apikeys.delete",
		"stats.read",
		"chats.read", "chats.delete",
		"export.read",
	},
	RoleSupport: {
		"users.read",
		"feedback.read", "feedback.write",
		"chats.read",
		"stats.read",
	},
	RoleMarketing: {"stats.read", "users.read"},
	RoleFinance:   {"stats.read", "apikeys.read", "usage.read", "export.read"},
	RoleModerator: {
		"feedback.read", "feedback.write", "feedback.delete",
		"chats.read", "chats.delete",
	},
	RoleDeveloper: {"apikeys.read", "apikeys.write", "stats.read", "logs.read", "health.read"},
	RoleUser:      {},
}

// PermissionsFor returns the grants of a role. Unknown roles get none.
func PermissionsFor(r Role) PermissionSet {
	return rolePermissions[r]
}

// HasPermission reports whether role r holds the requested permission.
func HasPermission(r Role, requested Permission) bool {
	return PermissionsFor(r).Allows(requested)
}
