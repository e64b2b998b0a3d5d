package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/factory-portal/internal/api/http/handlers"
	"github.com/spec-kit/factory-portal/internal/domain"
	"github.com/spec-kit/factory-portal/internal/guard"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health    *handlers.HealthHandler
	Auth      *handlers.AuthHandler
	Dashboard *handlers.DashboardHandler
	Panel     *handlers.PanelHandler
	Backup    *handlers.BackupHandler
	Shell     *handlers.ShellHandler
	Guard     *guard.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Get("/login", cfg.Auth.LoginPage)
	app.Post("/login", cfg.Auth.Login)
	app.Post("/logout", cfg.Auth.Logout)
	app.Get("/unauthorized", cfg.Dashboard.Unauthorized)

	authed := app.Group("", cfg.Guard.RequireAuthenticated())
	authed.Get("/dashboard", cfg.Dashboard.Generic)
	authed.Get("/go/dashboard", cfg.Dashboard.DashboardShortcut)
	authed.Get("/go/profile", cfg.Dashboard.ProfileShortcut)

	admin := app.Group("/admin", cfg.Guard.RequireRole(domain.RoleAdmin))
	admin.Get("/dashboard", cfg.Dashboard.Admin)
	admin.Get("/profile", cfg.Dashboard.AdminProfile)
	admin.Get("/backups", cfg.Backup.List)
	admin.Post("/backups", cfg.Backup.Create)
	admin.Get("/backups/:filename/download", cfg.Backup.Download)
	admin.Delete("/backups/:filename", cfg.Backup.Delete)
	admin.Get("/diagnostics/errors", cfg.Dashboard.RecentErrors)

	staff := app.Group("/staff", cfg.Guard.RequireRole(domain.RoleStaff))
	staff.Get("/dashboard", cfg.Dashboard.Staff)
	staff.Get("/profile", cfg.Dashboard.StaffProfile)

	supplier := app.Group("/supplier", cfg.Guard.RequireRole(domain.RoleSupplier))
	supplier.Get("/dashboard", cfg.Dashboard.Supplier)
	supplier.Get("/profile", cfg.Dashboard.SupplierProfile)

	production := app.Group("/production",
		cfg.Guard.AllowRoles("/dashboard", domain.RoleProductionManager, domain.RoleAdmin))
	production.Get("/dashboard", cfg.Dashboard.Production)

	api := app.Group("/api", cfg.Guard.RequireAuthenticated())
	api.Get("/panel", cfg.Panel.Snapshot)
	api.Post("/panel/open", cfg.Panel.OpenPanel)
	api.Post("/panel/notifications/:id/read", cfg.Panel.MarkNotificationRead)
	api.Post("/panel/messages/:id/read", cfg.Panel.MarkMessageRead)
	api.Post("/panel/conversations/:userId/open", cfg.Panel.OpenConversation)
	api.Post("/panel/messages", cfg.Panel.SendMessage)
	api.Get("/panel/users/search", cfg.Panel.SearchUsers)
	api.Post("/panel/users/refresh", cfg.Panel.RefreshUsers)

	app.Get("/ws", cfg.Shell.UpgradeRequired, cfg.Guard.RequireAuthenticated(), cfg.Shell.Socket())
}
