package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"funnel-api/core/cache"
	"funnel-api/core/config"
	"funnel-api/core/database"
	"funnel-api/core/logger"
	"funnel-api/core/middleware"
	"funnel-api/core/queue"
	"funnel-api/modules/appointment"
	"funnel-api/modules/calendar"
	"funnel-api/modules/lead"
	notifService "funnel-api/modules/notification/service"
	reminderService "funnel-api/modules/reminder/service"
	"funnel-api/modules/reminder/worker"

	"github.com/labstack/echo/v4"
	echoMw "github.com/labstack/echo/v4/middleware"
)

// Run boots the API: config, database, redis, the HTTP modules, and the
// background worker. Blocks until SIGINT/SIGTERM, then shuts down cleanly.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	defer logger.Sync()

	db, err := database.InitDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	slotCache, err := cache.NewCache(cfg.Redis)
	if err != nil {
		return err
	}
	defer slotCache.Close()

	queueClient := queue.NewClient(cfg.Redis)
	defer queueClient.Close()

	e := echo.New()
	e.HideBanner = true
	e.Use(echoMw.Recover())
	e.Use(echoMw.CORS())

	mw := middleware.NewMiddleware(cfg.Admin)
	e.Use(mw.RequestLogger())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	v1 := e.Group("/api/v1")

	leadSvc := lead.Init(v1, db, mw)
	gw := calendar.Init(v1, cfg.GoogleAPI)
	mailer := notifService.NewMailerService(cfg.SMTP)
	_, aptRepo := appointment.Init(v1, db, mw, leadSvc, gw, slotCache, queueClient, cfg.Scheduling)

	reminders := reminderService.NewReminderService(aptRepo, leadSvc, mailer, cfg.Scheduling)
	w := worker.New(queue.RedisOpt(cfg.Redis), reminders, aptRepo, leadSvc, mailer, cfg.Scheduling.SweepInterval)
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Shutdown()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		if serveErr := e.Start(addr); serveErr != nil && serveErr != http.ErrServerClosed {
			errCh <- serveErr
		}
	}()
	logger.Info("Server started", "addr", addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("Shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", "error", err)
		return err
	}
	return nil
}
