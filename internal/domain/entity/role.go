// Package entity contains the core business objects of the client.
package entity

import "slices"

// Role represents the type of role a user can have on the platform.
// Role names come from the server verbatim; note the mixed casing of
// the built-in roles.
type Role string

const (
	// RoleAdmin indicates a platform administrator.
	RoleAdmin Role = "Admin"
	// RoleCreator indicates the owner of a project.
	RoleCreator Role = "creator"
	// RoleBacker indicates a regular funding user.
	RoleBacker Role = "backer"
)

// String returns the string representation of the Role.
func (r Role) String() string {
	return string(r)
}

// Roles is a slice of Role for convenience.
type Roles []Role

// Contains checks if the roles slice contains a specific role.
func (rs Roles) Contains(role Role) bool {
	return slices.Contains(rs, role)
}

// ToStrings converts Roles to []string for wire compatibility.
func (rs Roles) ToStrings() []string {
	result := make([]string, len(rs))
	for i, r := range rs {
		result[i] = r.String()
	}

	return result
}

// RolesFromStrings converts []string to Roles. Unknown role names are kept
// as-is: the server owns the role vocabulary and the client only does
// membership checks against it.
func RolesFromStrings(ss []string) Roles {
	result := make(Roles, 0, len(ss))
	for _, s := range ss {
		result = append(result, Role(s))
	}

	return result
}
