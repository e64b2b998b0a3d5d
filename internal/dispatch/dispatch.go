// Package dispatch maps a role to its canonical landing views. Pure lookup,
// no I/O, defined fallback for any role outside the table.
package dispatch

import "github.com/spec-kit/factory-portal/internal/domain"

// landing pairs the two canonical destinations for one role.
type landing struct {
	dashboard string
	profile   string
}

const (
	// FallbackDashboard is the landing view for unrecognized roles.
	FallbackDashboard = "/dashboard"
	// FallbackProfile is the profile view for roles without one of their own.
	FallbackProfile = "/staff/profile"
)

// landingTable is the exhaustive role mapping. Adding a role is a one-line
// change here; nothing else in the portal hard-codes landing paths.
var landingTable = map[domain.Role]landing{
	domain.RoleAdmin:             {dashboard: "/admin/dashboard", profile: "/admin/profile"},
	domain.RoleManager:           {dashboard: "/admin/dashboard", profile: "/admin/profile"},
	domain.RoleStaff:             {dashboard: "/staff/dashboard", profile: "/staff/profile"},
	domain.RoleSupplier:          {dashboard: "/supplier/dashboard", profile: "/supplier/profile"},
	domain.RoleProductionManager: {dashboard: "/production/dashboard", profile: FallbackProfile},
}

// Dashboard returns the landing dashboard path for role.
func Dashboard(role domain.Role) string {
	if entry, ok := landingTable[role]; ok {
		return entry.dashboard
	}
	return FallbackDashboard
}

// Profile returns the landing profile path for role.
func Profile(role domain.Role) string {
	if entry, ok := landingTable[role]; ok {
		return entry.profile
	}
	return FallbackProfile
}
