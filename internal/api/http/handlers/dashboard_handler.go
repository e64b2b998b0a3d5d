package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/factory-portal/internal/api/dto"
	"github.com/spec-kit/factory-portal/internal/dispatch"
	"github.com/spec-kit/factory-portal/internal/guard"
	"github.com/spec-kit/factory-portal/internal/panel"
	"github.com/spec-kit/factory-portal/internal/persistence"
	apperrors "github.com/spec-kit/factory-portal/pkg/util"
)

// DashboardHandler renders role dashboards and profile views. Numeric
// dashboard content comes from the backend reporting surface and is passed
// through untouched; these views own structure, identity and panel counts.
type DashboardHandler struct {
	panels *panel.Service
	diags  persistence.DiagnosticsStore
}

// NewDashboardHandler constructs handler.
func NewDashboardHandler(panels *panel.Service, diags persistence.DiagnosticsStore) *DashboardHandler {
	return &DashboardHandler{panels: panels, diags: diags}
}

func (h *DashboardHandler) render(c *fiber.Ctx, view string) error {
	sess, ok := guard.SessionFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("no session")
	}
	snapshot := h.panels.Snapshot(sess.UserID)
	body := fiber.Map{
		"view":    view,
		"session": dto.NewSessionView(sess),
		"panel": fiber.Map{
			"unread_notifications": snapshot.UnreadNotifications,
			"unread_messages":      snapshot.UnreadMessages,
		},
	}
	if at, ok := h.diags.LastLogin(c.UserContext(), sess.UserID); ok {
		body["last_login"] = at
	}
	return c.JSON(body)
}

// Admin handles GET /admin/dashboard. Managers land here too; the session
// view carries the acting-as-admin banner flag.
func (h *DashboardHandler) Admin(c *fiber.Ctx) error {
	return h.render(c, "admin-dashboard")
}

// Staff handles GET /staff/dashboard.
func (h *DashboardHandler) Staff(c *fiber.Ctx) error {
	return h.render(c, "staff-dashboard")
}

// Supplier handles GET /supplier/dashboard.
func (h *DashboardHandler) Supplier(c *fiber.Ctx) error {
	return h.render(c, "supplier-dashboard")
}

// Production handles GET /production/dashboard.
func (h *DashboardHandler) Production(c *fiber.Ctx) error {
	return h.render(c, "production-dashboard")
}

// Generic handles GET /dashboard, the fallback landing view.
func (h *DashboardHandler) Generic(c *fiber.Ctx) error {
	return h.render(c, "dashboard")
}

// AdminProfile handles GET /admin/profile.
func (h *DashboardHandler) AdminProfile(c *fiber.Ctx) error {
	return h.render(c, "admin-profile")
}

// StaffProfile handles GET /staff/profile.
func (h *DashboardHandler) StaffProfile(c *fiber.Ctx) error {
	return h.render(c, "staff-profile")
}

// SupplierProfile handles GET /supplier/profile.
func (h *DashboardHandler) SupplierProfile(c *fiber.Ctx) error {
	return h.render(c, "supplier-profile")
}

// DashboardShortcut handles GET /go/dashboard: dispatch to the canonical
// landing dashboard for the session's role.
func (h *DashboardHandler) DashboardShortcut(c *fiber.Ctx) error {
	sess, ok := guard.SessionFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("no session")
	}
	return c.Redirect(dispatch.Dashboard(sess.Role), fiber.StatusFound)
}

// ProfileShortcut handles GET /go/profile: dispatch to the canonical profile
// view for the session's role.
func (h *DashboardHandler) ProfileShortcut(c *fiber.Ctx) error {
	sess, ok := guard.SessionFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("no session")
	}
	return c.Redirect(dispatch.Profile(sess.Role), fiber.StatusFound)
}

// RecentErrors handles GET /admin/diagnostics/errors: the capped log of
// uncaught errors, newest first.
func (h *DashboardHandler) RecentErrors(c *fiber.Ctx) error {
	entries, err := h.diags.RecentErrors(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": entries})
}

// Unauthorized handles GET /unauthorized, the fixed landing view for
// insufficient-role redirects.
func (h *DashboardHandler) Unauthorized(c *fiber.Ctx) error {
	return c.Status(http.StatusForbidden).JSON(fiber.Map{
		"view":    "unauthorized",
		"message": "you do not have access to that view",
	})
}
