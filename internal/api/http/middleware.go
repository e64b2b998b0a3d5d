package http

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/factory-portal/internal/observability"
	"github.com/spec-kit/factory-portal/internal/persistence"
	apperrors "github.com/spec-kit/factory-portal/pkg/util"
)

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, diags persistence.DiagnosticsStore, timeout time.Duration) {
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(errorBoundaryMiddleware(logger, metrics, diags))
	app.Use(observability.RequestLogger(logger, metrics))
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// errorBoundaryMiddleware is the top-level boundary: uncaught errors never
// blank the screen. Panics are appended to the capped diagnostic log and the
// response is a recovery view offering reload and clear-session-and-retry.
func errorBoundaryMiddleware(logger *zap.Logger, metrics *observability.Metrics, diags persistence.DiagnosticsStore) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				recordUncaught(c, diags, r)
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				domainErr := apperrors.ToDomainError(err)
				if metrics != nil {
					metrics.RecordError(c.Path(), c.Method(), domainErr.Code)
				}
				if domainErr.HTTPStatus >= 500 {
					logger.Error("request failed", zap.Error(domainErr))
				}
				response := fiber.Map{"error": fiber.Map{
					"code":    domainErr.Code,
					"message": domainErr.Message,
				}}
				if len(domainErr.Details) > 0 {
					response["error"].(fiber.Map)["details"] = domainErr.Details
				}
				if domainErr.Code == "INTERNAL_ERROR" {
					response["recovery"] = fiber.Map{
						"reload":        c.OriginalURL(),
						"clear_session": "/logout",
					}
				}
				c.Status(domainErr.HTTPStatus)
				_ = c.JSON(response)
				err = nil
			}
		}()
		return c.Next()
	}
}

func recordUncaught(c *fiber.Ctx, diags persistence.DiagnosticsStore, r any) {
	if diags == nil {
		return
	}
	message := "panic"
	if err, ok := r.(error); ok {
		message = err.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = diags.RecordUncaughtError(ctx, persistence.ErrorEntry{
		Time:    time.Now(),
		Path:    c.Path(),
		Message: message,
	})
}
