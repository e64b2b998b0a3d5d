package handlers

import (
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/factory-portal/internal/backend"
	"github.com/spec-kit/factory-portal/internal/guard"
	apperrors "github.com/spec-kit/factory-portal/pkg/util"
)

// BackupHandler proxies the admin-only backup surface of the backend. The
// route group is gated on the admin effective role, so managers reach it too.
type BackupHandler struct {
	backend backend.Client
}

// NewBackupHandler constructs handler.
func NewBackupHandler(client backend.Client) *BackupHandler {
	return &BackupHandler{backend: client}
}

// List handles GET /admin/backups.
func (h *BackupHandler) List(c *fiber.Ctx) error {
	sess, ok := guard.SessionFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("no session")
	}
	files, err := h.backend.ListBackups(c.UserContext(), sess.Token)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": files})
}

// Create handles POST /admin/backups.
func (h *BackupHandler) Create(c *fiber.Ctx) error {
	sess, ok := guard.SessionFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("no session")
	}
	file, err := h.backend.CreateBackup(c.UserContext(), sess.Token)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": file})
}

// Download handles GET /admin/backups/:filename/download.
func (h *BackupHandler) Download(c *fiber.Ctx) error {
	sess, ok := guard.SessionFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("no session")
	}
	filename := c.Params("filename")
	data, err := h.backend.DownloadBackup(c.UserContext(), sess.Token, filename)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	return c.Send(data)
}

// Delete handles DELETE /admin/backups/:filename.
func (h *BackupHandler) Delete(c *fiber.Ctx) error {
	sess, ok := guard.SessionFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("no session")
	}
	if err := h.backend.DeleteBackup(c.UserContext(), sess.Token, c.Params("filename")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
