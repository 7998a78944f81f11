package domain

import "time"

// Role level bounds. Higher level means greater authority.
const (
	RoleLevelMin = 0
	RoleLevelMax = 100
)

// Role is a named, leveled bundle of permissions assignable to users.
type Role struct {
	ID       string
	Code     string
	Name     string
	Level    int
	IsSystem bool
	IsActive bool
}

// ValidLevel reports whether the role level lies within the allowed range.
func (r Role) ValidLevel() bool {
	return r.Level >= RoleLevelMin && r.Level <= RoleLevelMax
}

// HasRoleLevel reports whether userLevel satisfies requiredLevel. This is
// the hierarchy primitive only; policies such as "cannot assign a role at
// or above one's own level" are composed by callers.
func HasRoleLevel(userLevel, requiredLevel int) bool {
	return userLevel >= requiredLevel
}

// HighestRoleLevel returns the maximum level among the supplied roles, or
// RoleLevelMin when none are given.
func HighestRoleLevel(roles []Role) int {
	highest := RoleLevelMin
	for _, role := range roles {
		if role.Level > highest {
			highest = role.Level
		}
	}
	return highest
}

// RoleAssignment associates a user with a role. A user may hold any number
// of roles concurrently; ordering carries no meaning.
type RoleAssignment struct {
	UserID     string
	RoleID     string
	AssignedAt time.Time
}

// RoleGrant attaches a permission code to a role.
type RoleGrant struct {
	RoleID    string
	Code      PermissionCode
	GrantedAt time.Time
}
