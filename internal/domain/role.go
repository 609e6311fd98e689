package domain

// Role is the authorization tier assigned to a user.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleEmployee Role = "EMPLOYEE"
)

// Valid reports whether the role belongs to the closed role set.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEmployee:
		return true
	}
	return false
}
