package domain

// Role is the closed set of roles a user record may carry.
type Role string

const (
	RoleSuperAdmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleSupport    Role = "support"
	RoleMarketing  Role = "marketing"
	RoleFinance    Role = "finance"
	RoleModerator  Role = "moderator"
	RoleDeveloper  Role = "developer"
	RoleUser       Role = "user"
)

// ValidRoles returns all valid roles.
func ValidRoles() []Role {
	return []Role{
		RoleSuperAdmin, RoleAdmin, RoleSupport, RoleMarketing,
		RoleFinance, RoleModerator, RoleDeveloper, RoleUser,
	}
}

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleSupport, RoleMarketing,
		RoleFinance, RoleModerator, RoleDeveloper, RoleUser:
		return true
	}
	return false
}

// IsStaff reports whether r is an internal operator role.
func (r Role) IsStaff() bool {
	return r.IsValid() && r != RoleUser
}

// ParseRole maps a stored role string to a Role.
// Unknown or empty values fall back to RoleUser, which grants nothing.
func ParseRole(s string) Role {
	r := Role(s)
	if !r.IsValid() {
		return RoleUser
	}
	return r
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}
