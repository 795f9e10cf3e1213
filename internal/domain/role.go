package domain

import "strings"

// Role governs which capabilities a principal is granted. The zero value means the
// principal has not chosen a role yet.
type Role string

const (
	RoleGuest Role = "guest"
	RoleHost  Role = "host"
)

// ParseRole accepts only the recognized roles.
func ParseRole(value string) (Role, bool) {
	role := Role(strings.TrimSpace(value))
	if !role.Valid() {
		return "", false
	}
	return role, true
}

// Valid reports whether r is one of the recognized roles.
func (r Role) Valid() bool {
	return r == RoleGuest || r == RoleHost
}

func (r Role) String() string {
	return string(r)
}

// Ptr returns nil for an unset role, which renders as JSON null.
func (r Role) Ptr() *string {
	if r == "" {
		return nil
	}
	s := string(r)
	return &s
}
