package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/pybroo/pybroo/internal/config"
	"github.com/pybroo/pybroo/internal/handler"
	"github.com/pybroo/pybroo/internal/service"
	"github.com/pybroo/pybroo/internal/store"
	"github.com/pybroo/pybroo/pkg/database"
	"github.com/pybroo/pybroo/pkg/logger"
)

func main() {
	// Initialize structured logger
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logFormat := os.Getenv("LOG_FORMAT")
	if logFormat == "" {
		logFormat = "json"
	}
	logger.Init(logger.Config{
		Level:  logLevel,
		Format: logFormat,
		Output: os.Stdout,
	})

	// Load configuration
	cfg := config.Load()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Configuration error")
	}

	logger.Info().
		Str("bind_address", cfg.Server.BindAddress).
		Str("port", cfg.Server.Port).
		Str("log_level", logLevel).
		Msg("Starting PYBROO server")

	// Initialize database
	db, err := database.Initialize(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize database")
	}
	logger.Info().Str("path", cfg.Database.Path).Msg("Database initialized")

	// Initialize schema
	if err := database.InitSchema(db); err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize schema")
	}
	logger.Info().Msg("Database schema initialized")

	// Initialize the state store and the application core
	st := store.New(db)
	app, err := service.NewApp(st, cfg, time.Now)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load persisted state")
	}

	// Initialize handlers
	authHandler := handler.NewAuthHandler(app, cfg.Auth.TokenTTLDays)
	catalogHandler := handler.NewCatalogHandler(app)

	// Create Fiber app
	srv := fiber.New(fiber.Config{
		BodyLimit:               10 * 1024 * 1024, // logo data URIs cap at 5MB
		DisableKeepalive:        false,
		ReadTimeout:             10 * time.Second,
		WriteTimeout:            30 * time.Second,
		IdleTimeout:             60 * time.Second,
		ProxyHeader:             fiber.HeaderXForwardedFor,
		EnableTrustedProxyCheck: true,
		TrustedProxies:          cfg.Server.TrustedProxies,
		EnableIPValidation:      true,
	})

	logger.Info().
		Strs("trusted_proxies", cfg.Server.TrustedProxies).
		Msg("Trusted proxy configuration loaded")

	// Middleware
	srv.Use(recover.New())
	srv.Use(compress.New(compress.Config{
		Level: compress.LevelDefault,
	}))
	srv.Use(handler.SecurityHeadersMiddleware())
	srv.Use(handler.RequestIDMiddleware())
	srv.Use(handler.MetricsMiddleware())
	srv.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowMethods:     "GET, POST, OPTIONS",
		AllowCredentials: true,
		MaxAge:           3600, // Cache preflight responses for 1 hour
	}))
	srv.Use(logger.Middleware())

	// Routes
	api := srv.Group("/api/v1")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/logout", handler.AuthMiddleware(app), authHandler.Logout)
	auth.Get("/me", handler.AuthMiddleware(app), authHandler.GetMe)
	auth.Get("/levels", authHandler.Levels)
	auth.Post("/upgrade", handler.AuthMiddleware(app), authHandler.Upgrade)

	// Catalog routes. Browsing is open, mutations require a session.
	resources := api.Group("/resources")
	resources.Get("/", catalogHandler.Query)
	resources.Post("/", handler.AuthMiddleware(app), catalogHandler.Upload)
	resources.Post("/:id/download", catalogHandler.Download)

	// Resource request routes
	requests := api.Group("/requests")
	requests.Get("/", catalogHandler.ListRequests)
	requests.Post("/", handler.AuthMiddleware(app), catalogHandler.CreateRequest)

	// Sidebar stats
	stats := api.Group("/stats")
	stats.Get("/categories", catalogHandler.Categories)
	stats.Get("/contributors", catalogHandler.Contributors)

	// Health check handler
	healthHandler := handler.NewHealthHandler(db)
	srv.Get("/health", healthHandler.Liveness)
	srv.Get("/health/ready", healthHandler.Readiness)

	// Metrics endpoint
	metricsHandler := handler.NewMetricsHandler()
	if cfg.Observability.MetricsEnabled {
		if cfg.IsProduction {
			srv.Get("/metrics", handler.BearerTokenMiddleware(cfg.Observability.MetricsToken), metricsHandler.Handler())
		} else {
			srv.Get("/metrics", metricsHandler.Handler())
		}
	} else {
		logger.Info().Msg("Metrics endpoint disabled")
	}

	// Start server in goroutine
	go func() {
		addr := net.JoinHostPort(cfg.Server.BindAddress, cfg.Server.Port)
		logger.Info().
			Str("address", addr).
			Bool("metrics_enabled", cfg.Observability.MetricsEnabled).
			Msg("HTTP server listening")
		if err := srv.Listen(addr); err != nil {
			logger.Error().Err(err).Msg("Server stopped")
		}
	}()

	// Graceful shutdown setup
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	sig := <-quit
	logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown Fiber app
	logger.Info().Msg("Shutting down HTTP server...")
	if err := srv.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
	}

	// Close database connection
	logger.Info().Msg("Closing database connection...")
	if err := db.Close(); err != nil {
		logger.Error().Err(err).Msg("Error closing database")
	}

	logger.Info().Msg("Server stopped gracefully")
}
