package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/factory-portal/internal/api/dto"
	"github.com/spec-kit/factory-portal/internal/dispatch"
	"github.com/spec-kit/factory-portal/internal/guard"
	"github.com/spec-kit/factory-portal/internal/panel"
	"github.com/spec-kit/factory-portal/internal/realtime"
	"github.com/spec-kit/factory-portal/internal/session"
	"github.com/spec-kit/factory-portal/internal/worker"
	apperrors "github.com/spec-kit/factory-portal/pkg/util"
)

// AuthHandler exposes the login and logout surface.
type AuthHandler struct {
	sessions   *session.Store
	channels   *realtime.Manager
	panels     *panel.Service
	poller     *worker.RefreshPoller
	cookieName string
	cookieTTL  time.Duration
	logger     *zap.Logger
}

// AuthHandlerDeps bundles collaborator requirements.
type AuthHandlerDeps struct {
	Sessions   *session.Store
	Channels   *realtime.Manager
	Panels     *panel.Service
	Poller     *worker.RefreshPoller
	CookieName string
	CookieTTL  time.Duration
}

// NewAuthHandler constructs handler.
func NewAuthHandler(deps AuthHandlerDeps, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		sessions:   deps.Sessions,
		channels:   deps.Channels,
		panels:     deps.Panels,
		poller:     deps.Poller,
		cookieName: deps.CookieName,
		cookieTTL:  deps.CookieTTL,
		logger:     logger,
	}
}

// LoginPage handles GET /login. An already signed-in visitor is sent to
// their landing dashboard instead.
func (h *AuthHandler) LoginPage(c *fiber.Ctx) error {
	if sess := h.sessions.Resolve(c.UserContext(), c.Cookies(h.cookieName)); sess != nil {
		return c.Redirect(dispatch.Dashboard(sess.Role), fiber.StatusFound)
	}
	return c.JSON(dto.LoginView{View: "login", Next: c.Query("next")})
}

// Login handles POST /login: authenticate, set the session cookie, then
// return to the originally requested location or the role landing view.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	sess, err := h.sessions.Login(c.UserContext(), req.Identifier, req.Password, req.IsUsername)
	if err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     h.cookieName,
		Value:    sess.ID,
		Expires:  time.Now().Add(h.cookieTTL),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
	})

	target := dispatch.Dashboard(sess.Role)
	if next := safeNext(req.Next); next != "" {
		target = next
	}
	return c.Redirect(target, fiber.StatusFound)
}

// Logout handles POST /logout: destroy the session, tear down the realtime
// channel and poller, drop panel state and clear the cookie.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	sessionID := c.Cookies(h.cookieName)
	if sess := h.sessions.Resolve(c.UserContext(), sessionID); sess != nil {
		h.channels.Release(sess.UserID)
		h.poller.Forget(sess.UserID)
		h.panels.Forget(sess.UserID)
	}
	h.sessions.Logout(c.UserContext(), sessionID)

	c.Cookie(&fiber.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Path:     "/",
	})
	return c.Redirect(guard.LoginPath, fiber.StatusFound)
}

// safeNext accepts only portal-internal paths so the post-login redirect
// cannot be pointed off-site.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return ""
	}
	return next
}
