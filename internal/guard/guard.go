// Package guard gates rendering of protected views on session state. The
// per-navigation decision is an explicit state machine so redirects are a
// consequence of named states, not scattered role comparisons.
package guard

import (
	"net/url"

	"github.com/spec-kit/factory-portal/internal/domain"
)

// State names one outcome of evaluating a navigation attempt.
type State int

const (
	// StateLoading means session resolution is inconclusive (store or backend
	// unreachable while a stored session exists). Render a neutral retry
	// view; take no redirect action.
	StateLoading State = iota
	// StateUnauthenticated redirects to login, preserving the destination.
	StateUnauthenticated
	// StateUnauthorized means authenticated but insufficient role.
	StateUnauthorized
	// StateAuthorized renders the requested view.
	StateAuthorized
)

// LoginPath is where unauthenticated navigation lands.
const LoginPath = "/login"

// UnauthorizedPath is the fixed destination for single-role guard failures.
const UnauthorizedPath = "/unauthorized"

// Policy describes what a route requires. Zero value: any authenticated
// session. RequiredRole gates on a single effective role. AllowedRoles
// switches to allow-list mode: any listed role passes, and failures redirect
// to Fallback instead of the fixed unauthorized view.
type Policy struct {
	RequiredRole domain.Role
	AllowedRoles []domain.Role
	Fallback     string
}

// Decision is the evaluated outcome for one navigation attempt.
type Decision struct {
	State      State
	RedirectTo string
}

// Decide evaluates the state machine. Pure: no I/O, fully unit-testable.
// resolveErr is non-nil only when session resolution was inconclusive.
func Decide(sess *domain.Session, resolveErr error, policy Policy, requestedPath string) Decision {
	if resolveErr != nil && sess != nil {
		return Decision{State: StateLoading}
	}

	if !sess.IsAuthenticated() {
		return Decision{
			State:      StateUnauthenticated,
			RedirectTo: LoginPath + "?next=" + url.QueryEscape(requestedPath),
		}
	}

	if len(policy.AllowedRoles) > 0 {
		for _, role := range policy.AllowedRoles {
			if sess.HasRole(role) {
				return Decision{State: StateAuthorized}
			}
		}
		fallback := policy.Fallback
		if fallback == "" {
			fallback = "/dashboard"
		}
		return Decision{State: StateUnauthorized, RedirectTo: fallback}
	}

	if policy.RequiredRole != "" && !sess.HasRole(policy.RequiredRole) {
		return Decision{State: StateUnauthorized, RedirectTo: UnauthorizedPath}
	}

	return Decision{State: StateAuthorized}
}
