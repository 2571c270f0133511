// Package identity holds the actor model supplied by the external
// identity collaborator. The engine trusts the caller to have verified
// the actor; nothing here touches credentials.
package identity

import "fmt"

// Role is the closed set of actor roles known to the engine.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleSupervisor   Role = "supervisor"
	RoleTechnician   Role = "technician"
	RoleReferent     Role = "referent"
	RoleManufacturer Role = "manufacturer"
)

// ParseRole converts a raw role string into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleSupervisor, RoleTechnician, RoleReferent, RoleManufacturer:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Actor is an already-authenticated identity attached to every call.
type Actor struct {
	ID   uint
	Name string
	Role Role
}

// IsStaff reports whether the actor holds one of the back-office roles.
func (a Actor) IsStaff() bool {
	return a.Role == RoleAdmin || a.Role == RoleSupervisor
}
