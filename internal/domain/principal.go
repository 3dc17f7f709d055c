package domain

import "time"

// Role is a platform user role carried in token claims.
type Role string

const (
	RoleUser       Role = "user"
	RoleModerator  Role = "moderator"
	RoleAdmin      Role = "admin"
	RoleCurator    Role = "curator"
	RoleResearcher Role = "researcher"
)

// Roles lists every role the platform recognizes.
var Roles = []Role{RoleUser, RoleModerator, RoleAdmin, RoleCurator, RoleResearcher}

// Valid reports whether r is a recognized role.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Principal is the verified identity behind one request. It is derived from a
// validated token, lives for the duration of that request and is never
// persisted or cached.
type Principal struct {
	ID        string
	Role      Role
	ExpiresAt time.Time
}

// Is reports whether the principal holds any of the given roles.
func (p Principal) Is(roles ...Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}
