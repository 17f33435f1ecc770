package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"podocs/docs"
	"podocs/internal/config"
	"podocs/internal/database"
	"podocs/internal/database/migration"
	handlers "podocs/internal/http/handler"
	"podocs/internal/http/middleware"
	"podocs/internal/logging"
	otelinit "podocs/internal/otel"
	"podocs/internal/pdf"
	"podocs/internal/repository/sqldb"
	"podocs/internal/service"
	"podocs/internal/storage"
)

// @title Purchase Order Document API
// @version 1.0
// @description Generates, attaches and serves purchase-order documents.
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	log := logging.New(os.Stdout, cfg.Location())

	if err := run(cfg, log); err != nil {
		log.Error("server_exit", err, nil)
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, log *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otelinit.Init(ctx, log)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	dbMetrics, err := database.NewMetrics(reg)
	if err != nil {
		return err
	}
	pool, err := database.Open(cfg.Database, database.WithLogger(log), database.WithMetrics(dbMetrics))
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := pool.Shutdown(sctx); err != nil {
			log.Error("db_pool_shutdown_failed", err, nil)
		}
	}()

	target := cfg.Database.Host
	if pool.Dialect() == database.SQLite {
		target = cfg.Database.Path
	}
	if err := migration.EnsureMigrated(ctx, pool, log, target); err != nil {
		return err
	}

	exec := database.NewExecutor(pool,
		database.WithMaxAttempts(cfg.Database.MaxAttempts),
		database.WithRetryBaseDelay(cfg.Database.RetryBaseDelay()),
	)

	store, err := storage.Open(cfg.Storage, cfg.MinIO)
	if err != nil {
		return err
	}
	if err := store.EnsureDirectory(ctx); err != nil {
		return err
	}

	svcMetrics, err := service.NewMetrics(reg)
	if err != nil {
		return err
	}
	docSvc := service.NewDocumentService(
		store,
		sqldb.NewDocumentStore(exec),
		sqldb.NewPurchaseOrderStore(exec),
		pdf.NewGenerator(),
		service.WithLogger(log),
		service.WithMetrics(svcMetrics),
	)

	httpMetrics, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    20 * 1024 * 1024,
	})

	app.Use(middleware.RequestID())
	app.Use(otelfiber.Middleware())
	app.Use(httpMetrics.Handler())
	app.Use(middleware.Logger(log))

	handlers.RegisterRoutes(app, pool, docSvc, reg)

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("server_listening", map[string]any{"addr": ":" + cfg.Port})
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("server_shutdown", nil)
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
