package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/factory-portal/internal/api/http"
	"github.com/spec-kit/factory-portal/internal/api/http/handlers"
	"github.com/spec-kit/factory-portal/internal/backend"
	"github.com/spec-kit/factory-portal/internal/config"
	"github.com/spec-kit/factory-portal/internal/events"
	"github.com/spec-kit/factory-portal/internal/guard"
	"github.com/spec-kit/factory-portal/internal/observability"
	"github.com/spec-kit/factory-portal/internal/panel"
	"github.com/spec-kit/factory-portal/internal/persistence"
	"github.com/spec-kit/factory-portal/internal/push"
	"github.com/spec-kit/factory-portal/internal/realtime"
	"github.com/spec-kit/factory-portal/internal/session"
	"github.com/spec-kit/factory-portal/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	diags := persistence.NewRedisDiagnostics(redis)
	metrics := observability.NewMetrics()

	backendClient := backend.NewHTTPClient(cfg.Backend, logger)

	sessions := session.NewStore(backendClient, session.NewRedisRepository(redis), diags, cfg.Session, logger)

	dispatcher := events.NewInMemoryDispatcher()

	panels := panel.NewService(backendClient, cfg.Panel, logger)
	panels.RegisterHandlers(dispatcher)

	hub := push.NewHub(logger)
	hub.RegisterHandlers(dispatcher)

	channels := realtime.NewManager(cfg.Realtime, dispatcher, logger)
	poller := worker.NewRefreshPoller(panels, cfg.Panel.PollInterval(), logger)

	guardMiddleware := guard.NewMiddleware(sessions, cfg.Session.CookieName, logger)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, diags, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, redis),
		Auth: handlers.NewAuthHandler(handlers.AuthHandlerDeps{
			Sessions:   sessions,
			Channels:   channels,
			Panels:     panels,
			Poller:     poller,
			CookieName: cfg.Session.CookieName,
			CookieTTL:  cfg.Session.TTL(),
		}, logger),
		Dashboard: handlers.NewDashboardHandler(panels, diags),
		Panel:     handlers.NewPanelHandler(panels, sessions, cfg.Session.CookieName, logger),
		Backup:    handlers.NewBackupHandler(backendClient),
		Shell:     handlers.NewShellHandler(channels, poller, hub, logger),
		Guard:     guardMiddleware,
	})

	metricsDone := make(chan struct{})
	go persistRenderMetric(diags, metrics, metricsDone)

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	close(metricsDone)
	poller.Shutdown()
	channels.Shutdown()
	_ = app.Shutdown()
}

// persistRenderMetric periodically snapshots the mean request duration into
// the diagnostics store.
func persistRenderMetric(diags persistence.DiagnosticsStore, metrics *observability.Metrics, done <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			_ = diags.RecordRenderTime(ctx, metrics.AverageRenderTime())
			cancel()
		}
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
