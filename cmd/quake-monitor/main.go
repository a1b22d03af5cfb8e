package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/quake-monitor/internal/api/http"
	"github.com/i474232898/quake-monitor/internal/config"
	"github.com/i474232898/quake-monitor/internal/observability"
	"github.com/i474232898/quake-monitor/internal/quake"
	"github.com/i474232898/quake-monitor/internal/quake/source"
	"github.com/i474232898/quake-monitor/internal/scheduler"
	"github.com/i474232898/quake-monitor/internal/store"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck // best-effort flush on exit

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("quake-monitor stopped", zap.Error(err))
	}
}

func run(cfg *config.AppConfig, zlog *zap.Logger) error {
	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	// One store handle for the whole process.
	db, err := store.Open(startCtx, cfg.DBPath, zlog)
	if err != nil {
		return err
	}
	defer db.Close()

	inserter, err := store.NewInserter(cfg.StoreStrategy, db)
	if err != nil {
		return err
	}

	if cfg.LoadVolcanoesOnStart {
		n, err := quake.ReloadVolcanoes(startCtx, db)
		if err != nil {
			zlog.Warn("volcano dataset load failed", zap.Error(err))
		} else {
			zlog.Info("volcano dataset loaded", zap.Int("count", n))
		}
	}

	// Shared HTTP client for outbound source calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	client := source.NewClient(httpClient, source.ClientOptions{
		UserAgent:  cfg.UserAgent,
		MaxRetries: cfg.FetchMaxRetries,
	})

	metrics := observability.NewMetrics()
	service := quake.NewService(
		cfg.SourceBaseURL,
		quake.Window{Years: cfg.RecentYears, Months: cfg.RecentMonths},
		client,
		source.NewParser(cfg.MinMagnitude),
		inserter,
		zlog.Named("ingest"),
		metrics,
		clockwork.NewRealClock(),
	)

	// Scheduler that periodically scrapes and stores new events.
	sched := scheduler.New(service, scheduler.Options{
		Interval:   cfg.ScrapeInterval,
		RunTimeout: cfg.RunTimeout,
		RunOnStart: cfg.ScrapeOnStart,
	}, zlog.Named("scheduler"))
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "quake-monitor",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "quake-monitor",
		})
	})

	httpapi.RegisterRoutes(app, db, db, service)

	go func() {
		zlog.Info("http server starting", zap.String("port", cfg.Port))
		if err := app.Listen(":" + cfg.Port); err != nil {
			zlog.Error("fiber server stopped", zap.Error(err))
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	zlog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		zlog.Error("error during shutdown", zap.Error(err))
	}
	return nil
}
