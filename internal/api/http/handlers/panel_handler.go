package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/factory-portal/internal/api/dto"
	"github.com/spec-kit/factory-portal/internal/domain"
	"github.com/spec-kit/factory-portal/internal/guard"
	"github.com/spec-kit/factory-portal/internal/panel"
	"github.com/spec-kit/factory-portal/internal/session"
	apperrors "github.com/spec-kit/factory-portal/pkg/util"
)

// PanelHandler is the JSON API behind the navigation shell: notification and
// message panels, conversations, search.
type PanelHandler struct {
	panels     *panel.Service
	sessions   *session.Store
	cookieName string
	logger     *zap.Logger
}

// NewPanelHandler constructs handler.
func NewPanelHandler(panels *panel.Service, sessions *session.Store, cookieName string, logger *zap.Logger) *PanelHandler {
	return &PanelHandler{panels: panels, sessions: sessions, cookieName: cookieName, logger: logger}
}

// expireSession clears the session after a backend 401 and answers with the
// login redirect. Shared by every authenticated call site; never retries.
func (h *PanelHandler) expireSession(c *fiber.Ctx, sess *domain.Session) error {
	h.sessions.Invalidate(c.UserContext(), sess.ID)
	c.Cookie(&fiber.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Path:     "/",
	})
	return c.Status(http.StatusUnauthorized).JSON(fiber.Map{
		"error":    fiber.Map{"code": "SESSION_EXPIRED", "message": "session expired"},
		"redirect": guard.LoginPath,
	})
}

func (h *PanelHandler) currentSession(c *fiber.Ctx) (*domain.Session, error) {
	sess, ok := guard.SessionFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("no session")
	}
	return sess, nil
}

// Snapshot handles GET /api/panel: trigger cool-down-limited refreshes and
// return the current view model. Background-style refresh failures degrade
// silently here; the snapshot simply reflects whatever state is consistent.
func (h *PanelHandler) Snapshot(c *fiber.Ctx) error {
	sess, err := h.currentSession(c)
	if err != nil {
		return err
	}

	if err := h.panels.RefreshNotifications(c.UserContext(), sess); err != nil {
		if apperrors.HasCode(err, "SESSION_EXPIRED") {
			return h.expireSession(c, sess)
		}
		h.logger.Warn("notification refresh failed", zap.Error(err))
	}
	if err := h.panels.RefreshMessages(c.UserContext(), sess); err != nil {
		if apperrors.HasCode(err, "SESSION_EXPIRED") {
			return h.expireSession(c, sess)
		}
		h.logger.Warn("message refresh failed", zap.Error(err))
	}

	return c.JSON(h.panels.Snapshot(sess.UserID))
}

// OpenPanel handles POST /api/panel/open: toggles the active surface,
// closing its siblings.
func (h *PanelHandler) OpenPanel(c *fiber.Ctx) error {
	sess, err := h.currentSession(c)
	if err != nil {
		return err
	}
	var req dto.OpenPanelRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	switch panel.Kind(req.Panel) {
	case panel.PanelProfile, panel.PanelNotifications, panel.PanelMessages, panel.PanelNone:
		h.panels.OpenPanel(sess.UserID, panel.Kind(req.Panel))
	default:
		return apperrors.NewValidationError("unknown panel", nil)
	}
	return c.JSON(h.panels.Snapshot(sess.UserID))
}

// MarkNotificationRead handles POST /api/panel/notifications/:id/read.
func (h *PanelHandler) MarkNotificationRead(c *fiber.Ctx) error {
	sess, err := h.currentSession(c)
	if err != nil {
		return err
	}
	if err := h.panels.MarkNotificationRead(c.UserContext(), sess, c.Params("id")); err != nil {
		if apperrors.HasCode(err, "SESSION_EXPIRED") {
			return h.expireSession(c, sess)
		}
		return err
	}
	return c.JSON(h.panels.Snapshot(sess.UserID))
}

// MarkMessageRead handles POST /api/panel/messages/:id/read.
func (h *PanelHandler) MarkMessageRead(c *fiber.Ctx) error {
	sess, err := h.currentSession(c)
	if err != nil {
		return err
	}
	if err := h.panels.MarkMessageRead(c.UserContext(), sess, c.Params("id")); err != nil {
		if apperrors.HasCode(err, "SESSION_EXPIRED") {
			return h.expireSession(c, sess)
		}
		return err
	}
	return c.JSON(h.panels.Snapshot(sess.UserID))
}

// OpenConversation handles POST /api/panel/conversations/:userId/open.
func (h *PanelHandler) OpenConversation(c *fiber.Ctx) error {
	sess, err := h.currentSession(c)
	if err != nil {
		return err
	}
	if err := h.panels.OpenConversation(c.UserContext(), sess, c.Params("userId")); err != nil {
		if apperrors.HasCode(err, "SESSION_EXPIRED") {
			return h.expireSession(c, sess)
		}
		return err
	}
	return c.JSON(h.panels.Snapshot(sess.UserID))
}

// SendMessage handles POST /api/panel/messages. Failures the user triggered
// surface as visible errors; empty bodies are no-ops.
func (h *PanelHandler) SendMessage(c *fiber.Ctx) error {
	sess, err := h.currentSession(c)
	if err != nil {
		return err
	}
	var req dto.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.panels.SendMessage(c.UserContext(), sess, req.PartnerID, req.Body); err != nil {
		if apperrors.HasCode(err, "SESSION_EXPIRED") {
			return h.expireSession(c, sess)
		}
		return err
	}
	return c.JSON(h.panels.Snapshot(sess.UserID))
}

// SearchUsers handles GET /api/panel/users/search?query=.
func (h *PanelHandler) SearchUsers(c *fiber.Ctx) error {
	sess, err := h.currentSession(c)
	if err != nil {
		return err
	}
	if err := h.panels.SearchUsers(c.UserContext(), sess, c.Query("query")); err != nil {
		if apperrors.HasCode(err, "SESSION_EXPIRED") {
			return h.expireSession(c, sess)
		}
		return err
	}
	return c.JSON(h.panels.Snapshot(sess.UserID))
}

// RefreshUsers handles POST /api/panel/users/refresh: cool-down-limited directory
// reload for the compose picker.
func (h *PanelHandler) RefreshUsers(c *fiber.Ctx) error {
	sess, err := h.currentSession(c)
	if err != nil {
		return err
	}
	if err := h.panels.RefreshUsers(c.UserContext(), sess); err != nil {
		if apperrors.HasCode(err, "SESSION_EXPIRED") {
			return h.expireSession(c, sess)
		}
		h.logger.Warn("user directory refresh failed", zap.Error(err))
	}
	return c.JSON(h.panels.Snapshot(sess.UserID))
}
