package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsAuthenticated(t *testing.T) {
	var nilSession *Session
	assert.False(t, nilSession.IsAuthenticated())

	assert.False(t, (&Session{}).IsAuthenticated(), "no token means unauthenticated")

	expired := &Session{Token: "t", ExpiresAt: time.Now().Add(-time.Minute)}
	assert.False(t, expired.IsAuthenticated())

	live := &Session{Token: "t", ExpiresAt: time.Now().Add(time.Hour)}
	assert.True(t, live.IsAuthenticated())

	noExpiry := &Session{Token: "t"}
	assert.True(t, noExpiry.IsAuthenticated(), "token without expiry claim stays valid locally")
}

func TestHasRole(t *testing.T) {
	var nilSession *Session
	assert.False(t, nilSession.HasRole(RoleAdmin))

	manager := &Session{Role: RoleManager}
	assert.True(t, manager.HasRole(RoleAdmin), "manager authority is admin authority")
	assert.False(t, manager.HasRole(RoleManager), "effective role comparison, not raw")

	staff := &Session{Role: RoleStaff}
	assert.True(t, staff.HasRole(RoleStaff))
	assert.False(t, staff.HasRole(RoleAdmin))
}

func TestActingAsAdmin(t *testing.T) {
	assert.True(t, (&Session{Role: RoleManager}).ActingAsAdmin())
	assert.False(t, (&Session{Role: RoleAdmin}).ActingAsAdmin(), "a real admin is not acting")
	assert.False(t, (&Session{Role: RoleStaff}).ActingAsAdmin())
}
