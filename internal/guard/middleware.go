package guard

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/factory-portal/internal/domain"
)

// SessionLocalKey is where an authorized decision stores the session in the
// request locals. Exported because the websocket upgrade handler reads
// locals through a different context type.
const SessionLocalKey = "guard_session"

// Source resolves the session for a request. The error return marks an
// inconclusive resolution (store or backend unreachable), not a missing
// session; a missing session is (nil, nil).
type Source interface {
	Current(ctx context.Context, sessionID string) (*domain.Session, error)
}

// Middleware evaluates the guard state machine per request and acts on the
// decision with real redirects.
type Middleware struct {
	sessions   Source
	cookieName string
	logger     *zap.Logger
}

// NewMiddleware constructs the middleware.
func NewMiddleware(sessions Source, cookieName string, logger *zap.Logger) *Middleware {
	return &Middleware{sessions: sessions, cookieName: cookieName, logger: logger}
}

// RequireAuthenticated gates a route on any signed-in session.
func (m *Middleware) RequireAuthenticated() fiber.Handler {
	return m.handler(Policy{})
}

// RequireRole gates a route on a single effective role.
func (m *Middleware) RequireRole(role domain.Role) fiber.Handler {
	return m.handler(Policy{RequiredRole: role})
}

// AllowRoles gates a route on a caller-supplied allow-list; failures
// redirect to fallback ("" means the generic dashboard).
func (m *Middleware) AllowRoles(fallback string, roles ...domain.Role) fiber.Handler {
	return m.handler(Policy{AllowedRoles: roles, Fallback: fallback})
}

func (m *Middleware) handler(policy Policy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := m.sessions.Current(c.UserContext(), c.Cookies(m.cookieName))
		decision := Decide(sess, err, policy, c.OriginalURL())

		switch decision.State {
		case StateLoading:
			m.logger.Warn("session resolution inconclusive", zap.String("path", c.Path()), zap.Error(err))
			return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{
				"state":   "loading",
				"message": "session is being resolved, retry shortly",
			})
		case StateUnauthenticated, StateUnauthorized:
			return c.Redirect(decision.RedirectTo, fiber.StatusFound)
		default:
			c.Locals(SessionLocalKey, sess)
			return c.Next()
		}
	}
}

// SessionFromContext retrieves the session placed by an authorized decision.
func SessionFromContext(c *fiber.Ctx) (*domain.Session, bool) {
	val := c.Locals(SessionLocalKey)
	if val == nil {
		return nil, false
	}
	sess, ok := val.(*domain.Session)
	return sess, ok
}
