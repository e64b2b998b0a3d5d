package domain

import "time"

// Session is the authenticated identity and authority context for a browser.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Token     string    `json:"token"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	// Confirmed flips once an identity-confirming backend call has succeeded
	// for this session. Until then guards treat navigation as in-flight.
	Confirmed bool `json:"confirmed"`
}

// EffectiveRole is the role used for authorization decisions.
func (s *Session) EffectiveRole() Role {
	return s.Role.Effective()
}

// HasRole reports whether the session's effective role matches role.
// Call sites never compare raw role strings.
func (s *Session) HasRole(role Role) bool {
	if s == nil {
		return false
	}
	return s.EffectiveRole() == role
}

// IsAuthenticated is a pure function of in-memory state: true iff a token is
// present and not expired. No network round-trip.
func (s *Session) IsAuthenticated() bool {
	if s == nil || s.Token == "" {
		return false
	}
	if s.ExpiresAt.IsZero() {
		return true
	}
	return time.Now().Before(s.ExpiresAt)
}

// ActingAsAdmin reports whether the session holds elevated authority it was
// not directly assigned, used for the "manager with admin access" banner.
func (s *Session) ActingAsAdmin() bool {
	return s != nil && s.Role == RoleManager
}
