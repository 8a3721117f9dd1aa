package auth

import "time"

// User is a directory record for a registered account. Account registration
// and profile storage live outside this service; the guard only resolves ids.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Location     string
	Roles        []string
	CreatedAt    time.Time
}

// RoleOperator marks accounts allowed to drive disposition transitions.
const RoleOperator = "operator"

// Principal is the resolved caller identity attached to a request context
// after successful authentication. It is never persisted.
type Principal struct {
	User  *User
	Roles []string
}

// HasRole reports whether the principal carries the given role.
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// UserID returns the resolved subject id, or "" for a zero principal.
func (p Principal) UserID() string {
	if p.User == nil {
		return ""
	}
	return p.User.ID
}
