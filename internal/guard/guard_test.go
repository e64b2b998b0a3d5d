package guard

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/factory-portal/internal/domain"
)

func liveSession(role domain.Role) *domain.Session {
	return &domain.Session{
		UserID:    "u1",
		Role:      role,
		Token:     "token",
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func TestDecideUnauthenticated(t *testing.T) {
	d := Decide(nil, nil, Policy{}, "/admin/dashboard")
	assert.Equal(t, StateUnauthenticated, d.State)
	assert.Equal(t, "/login?next=%2Fadmin%2Fdashboard", d.RedirectTo)
}

func TestDecideExpiredSessionIsUnauthenticated(t *testing.T) {
	expired := &domain.Session{Token: "token", ExpiresAt: time.Now().Add(-time.Minute)}
	d := Decide(expired, nil, Policy{}, "/staff/dashboard")
	assert.Equal(t, StateUnauthenticated, d.State)
}

func TestDecideInconclusiveResolutionIsLoading(t *testing.T) {
	sess := liveSession(domain.RoleStaff)
	d := Decide(sess, errors.New("backend unreachable"), Policy{}, "/staff/dashboard")
	assert.Equal(t, StateLoading, d.State)
	assert.Empty(t, d.RedirectTo, "loading takes no redirect action")
}

func TestDecideResolveErrorWithoutSessionIsUnauthenticated(t *testing.T) {
	d := Decide(nil, errors.New("store down"), Policy{}, "/dashboard")
	assert.Equal(t, StateUnauthenticated, d.State)
}

func TestDecideRequiredRole(t *testing.T) {
	d := Decide(liveSession(domain.RoleStaff), nil, Policy{RequiredRole: domain.RoleAdmin}, "/admin/dashboard")
	assert.Equal(t, StateUnauthorized, d.State)
	assert.Equal(t, UnauthorizedPath, d.RedirectTo)

	d = Decide(liveSession(domain.RoleAdmin), nil, Policy{RequiredRole: domain.RoleAdmin}, "/admin/dashboard")
	assert.Equal(t, StateAuthorized, d.State)
}

func TestDecideManagerPassesAdminGuard(t *testing.T) {
	d := Decide(liveSession(domain.RoleManager), nil, Policy{RequiredRole: domain.RoleAdmin}, "/admin/dashboard")
	assert.Equal(t, StateAuthorized, d.State)
}

func TestDecideAllowList(t *testing.T) {
	policy := Policy{AllowedRoles: []domain.Role{domain.RoleProductionManager, domain.RoleAdmin}}

	d := Decide(liveSession(domain.RoleProductionManager), nil, policy, "/production/dashboard")
	assert.Equal(t, StateAuthorized, d.State)

	d = Decide(liveSession(domain.RoleSupplier), nil, policy, "/production/dashboard")
	assert.Equal(t, StateUnauthorized, d.State)
	assert.Equal(t, "/dashboard", d.RedirectTo, "empty fallback goes to the generic dashboard")

	policy.Fallback = "/supplier/dashboard"
	d = Decide(liveSession(domain.RoleSupplier), nil, policy, "/production/dashboard")
	assert.Equal(t, "/supplier/dashboard", d.RedirectTo)
}

func TestDecideAnyAuthenticated(t *testing.T) {
	d := Decide(liveSession(domain.RoleSupplier), nil, Policy{}, "/dashboard")
	assert.Equal(t, StateAuthorized, d.State)
}
