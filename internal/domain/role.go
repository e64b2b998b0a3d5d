package domain

// Role enumerates the closed set of portal roles.
type Role string

const (
	RoleAdmin             Role = "admin"
	RoleManager           Role = "manager"
	RoleStaff             Role = "staff"
	RoleSupplier          Role = "supplier"
	RoleProductionManager Role = "production_manager"
)

// knownRoles is the authorization vocabulary; anything else parses to RoleStaff
// with ok=false so callers can detect and log unrecognized values.
var knownRoles = map[Role]struct{}{
	RoleAdmin:             {},
	RoleManager:           {},
	RoleStaff:             {},
	RoleSupplier:          {},
	RoleProductionManager: {},
}

// ParseRole converts a raw role string from the backend into a Role.
func ParseRole(raw string) (Role, bool) {
	role := Role(raw)
	if _, ok := knownRoles[role]; ok {
		return role, true
	}
	return RoleStaff, false
}

// Effective returns the role used for authorization decisions. Managers
// transparently receive admin-equivalent authority; every other role maps to
// itself. This is the single place manager elevation happens.
func (r Role) Effective() Role {
	if r == RoleManager {
		return RoleAdmin
	}
	return r
}

// Valid reports whether r belongs to the closed role set.
func (r Role) Valid() bool {
	_, ok := knownRoles[r]
	return ok
}
