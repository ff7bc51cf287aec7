package types

import "fmt"

// Role is the privilege level of a user inside an organization
type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleManager  Role = "Manager"
	RoleReviewer Role = "Reviewer"
	RoleUser     Role = "User"
)

// AllRoles returns all roles ordered from most to least privileged
func AllRoles() []Role {
	return []Role{
		RoleAdmin,
		RoleManager,
		RoleReviewer,
		RoleUser,
	}
}

// IsValid checks if the role is valid
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin,
		RoleManager,
		RoleReviewer,
		RoleUser:
		return true
	default:
		return false
	}
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// ParseRole parses a string into a Role
func ParseRole(s string) (Role, error) {
	role := Role(s)
	if !role.IsValid() {
		return "", fmt.Errorf("invalid role: %s", s)
	}
	return role, nil
}

// RoleSet is a set over Role. An empty set has no members.
type RoleSet map[Role]struct{}

// NewRoleSet builds a RoleSet from roles
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// Contains reports whether r is a member of the set
func (s RoleSet) Contains(r Role) bool {
	_, ok := s[r]
	return ok
}
