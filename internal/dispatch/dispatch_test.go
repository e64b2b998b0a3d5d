package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/factory-portal/internal/domain"
)

func TestDashboard(t *testing.T) {
	cases := []struct {
		role domain.Role
		want string
	}{
		{domain.RoleAdmin, "/admin/dashboard"},
		{domain.RoleManager, "/admin/dashboard"},
		{domain.RoleStaff, "/staff/dashboard"},
		{domain.RoleSupplier, "/supplier/dashboard"},
		{domain.RoleProductionManager, "/production/dashboard"},
		{domain.Role("intern"), FallbackDashboard},
		{domain.Role(""), FallbackDashboard},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Dashboard(tc.role), "role %q", tc.role)
	}
}

func TestProfile(t *testing.T) {
	cases := []struct {
		role domain.Role
		want string
	}{
		{domain.RoleAdmin, "/admin/profile"},
		{domain.RoleManager, "/admin/profile"},
		{domain.RoleStaff, "/staff/profile"},
		{domain.RoleSupplier, "/supplier/profile"},
		{domain.RoleProductionManager, FallbackProfile},
		{domain.Role("intern"), FallbackProfile},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Profile(tc.role), "role %q", tc.role)
	}
}

func TestTableCoversEveryKnownRole(t *testing.T) {
	for _, role := range []domain.Role{
		domain.RoleAdmin,
		domain.RoleManager,
		domain.RoleStaff,
		domain.RoleSupplier,
		domain.RoleProductionManager,
	} {
		_, ok := landingTable[role]
		assert.True(t, ok, "role %q has no landing entry", role)
	}
}
