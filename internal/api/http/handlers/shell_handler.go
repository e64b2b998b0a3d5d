package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/factory-portal/internal/domain"
	"github.com/spec-kit/factory-portal/internal/guard"
	"github.com/spec-kit/factory-portal/internal/push"
	"github.com/spec-kit/factory-portal/internal/realtime"
	"github.com/spec-kit/factory-portal/internal/worker"
	apperrors "github.com/spec-kit/factory-portal/pkg/util"
)

// ShellHandler serves the navigation shell's websocket. Each tab that
// connects acquires (or reuses) the user's upstream channel, ensures the
// fallback poller is running, and joins the push hub. Remounting the shell
// therefore never creates a second upstream connection.
type ShellHandler struct {
	channels *realtime.Manager
	poller   *worker.RefreshPoller
	hub      *push.Hub
	logger   *zap.Logger
}

// NewShellHandler constructs handler.
func NewShellHandler(channels *realtime.Manager, poller *worker.RefreshPoller, hub *push.Hub, logger *zap.Logger) *ShellHandler {
	return &ShellHandler{channels: channels, poller: poller, hub: hub, logger: logger}
}

// UpgradeRequired rejects plain HTTP requests on the websocket route.
func (h *ShellHandler) UpgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return apperrors.NewDomainError("UPGRADE_REQUIRED", "websocket upgrade required", http.StatusUpgradeRequired, nil)
}

// Socket is the upgraded connection handler for GET /ws.
func (h *ShellHandler) Socket() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		sess, ok := conn.Locals(guard.SessionLocalKey).(*domain.Session)
		if !ok || sess == nil {
			_ = conn.Close()
			return
		}
		h.channels.Acquire(sess)
		h.poller.Track(sess)
		h.hub.Serve(conn, sess.UserID)
	})
}
