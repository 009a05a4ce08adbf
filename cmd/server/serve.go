package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mini-api/internal/admin"
	"mini-api/internal/auth"
	"mini-api/internal/config"
	"mini-api/internal/engine"
	"mini-api/internal/instrument"
	"mini-api/internal/logging"
	"mini-api/internal/metadata"
	"mini-api/internal/store"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Load config
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Logger
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("config loaded",
		zap.String("file", cfg.File),
		zap.Int("port", cfg.Server.Port),
		zap.String("driver", cfg.Database.Driver),
	)

	// 3. Connect to database
	s, err := store.New(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer s.Close()
	logger.Info("database connected")

	// 4. Load endpoints and models
	reg := metadata.NewRegistry()
	if err := metadata.LoadConfig(cfg, reg, logger); err != nil {
		return fmt.Errorf("load endpoints: %w", err)
	}
	logger.Info("endpoints loaded",
		zap.Int("endpoints", len(reg.AllEndpoints())),
		zap.Int("models", len(reg.AllModels())),
	)

	// 5. Create Fiber app
	app := newApp(cfg, s, reg, logger, instrument.NewMetrics())

	// 6. Start server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("starting server", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() { errCh <- app.Listen(addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return app.ShutdownWithContext(shutdownCtx)
}

// newApp wires the middleware and routes. Routes are registered in order:
// health, metrics, builder, then the configured endpoints under /api.
func newApp(cfg *config.Config, s *store.Store, reg *metadata.Registry, logger *zap.Logger, metrics *instrument.Metrics) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          engine.ErrorHandler,
		DisableStartupMessage: !cfg.App.Debug,
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: cfg.App.Debug,
	}))
	app.Use(instrument.RequestID())
	app.Use(instrument.AccessLog(logger, metrics))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	if cfg.Metrics.Enabled && cfg.Metrics.Path != "" {
		app.Get(cfg.Metrics.Path, metrics.Handler())
	}

	if cfg.Builder.Mounted(cfg.App.Debug) {
		builder := admin.NewHandler(s, reg, cfg.File, logger)
		admin.RegisterBuilderRoutes(app, builder, cfg.Builder.Route)
		logger.Warn("endpoint builder mounted", zap.String("route", "/"+cfg.Builder.Route+"/api"))
	}

	reporter := instrument.NewErrorReporter(logger, metrics)
	h := engine.NewHandler(s, reg, logger, reporter, cfg.Database.QueryTimeout)
	engine.RegisterRoutes(app, h, auth.APIKeyMiddleware(reg))

	return app
}
