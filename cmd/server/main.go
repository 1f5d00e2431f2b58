package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/argestone/marble-site/backend/internal/audit"
	"github.com/argestone/marble-site/backend/internal/auth"
	"github.com/argestone/marble-site/backend/internal/backup"
	"github.com/argestone/marble-site/backend/internal/catalog"
	"github.com/argestone/marble-site/backend/internal/config"
	"github.com/argestone/marble-site/backend/internal/health"
	"github.com/argestone/marble-site/backend/internal/logger"
	"github.com/argestone/marble-site/backend/internal/media"
	"github.com/argestone/marble-site/backend/internal/metrics"
	appmw "github.com/argestone/marble-site/backend/internal/middleware"
	"github.com/argestone/marble-site/backend/internal/ratelimit"
	"github.com/argestone/marble-site/backend/internal/session"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Structured JSON logging with sensitive-attribute redaction
	appLogger := logger.New(logger.DefaultConfig())
	auditor := audit.NewRecorder(appLogger)

	// Initialize auth components
	limiter := ratelimit.NewLimiter(cfg.Auth.MaxLoginAttempts, cfg.Auth.LockoutDuration)
	sessions := session.NewStore(cfg.Auth.SessionDuration, cfg.Auth.RefreshThreshold)
	passwordValidator := auth.NewPasswordValidator()

	authService := auth.NewService(cfg.Auth, limiter, sessions, passwordValidator, auditor, appLogger)
	authHandler := auth.NewHandler(authService, cfg.Server.Production)
	adminMiddleware := appmw.NewAdminMiddleware(authService, auditor)

	// Initialize catalog and media components
	mediaClient := media.NewClient(cfg.Media, appLogger)
	mediaHandler := media.NewHandler(mediaClient, appLogger)

	catalogStore := catalog.NewStore(cfg.Catalog.FilePath, appLogger)
	catalogHandler := catalog.NewHandler(catalogStore, mediaClient, appLogger)

	// Initialize backup components. Mirroring is optional; a nil *S3Mirror
	// must not be stored in the interface or the manager would call it.
	var mirror backup.Mirror
	if s3Mirror := backup.NewS3Mirror(cfg.Backup); s3Mirror != nil {
		mirror = s3Mirror
		appLogger.Info("snapshot mirroring enabled", "bucket", cfg.Backup.S3Bucket)
	}
	backupManager := backup.NewManager(cfg.Catalog.FilePath, cfg.Backup.Dir, cfg.Backup.Retention, mirror, appLogger)
	backupHandler := backup.NewHandler(backupManager, appLogger)

	// Health checks
	healthHandler := health.NewHandler(health.Config{
		CatalogPath: cfg.Catalog.FilePath,
		Media:       mediaClient,
		Version:     version,
	})

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(appmw.SecurityHeaders)
	r.Use(appmw.StructuredLogger(appLogger))
	r.Use(metrics.Middleware)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health and metrics endpoints
	r.Get("/health", healthHandler.Health)
	r.Get("/health/ready", healthHandler.Readiness)
	r.Get("/health/live", healthHandler.Liveness)
	r.Handle("/metrics", metrics.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		auth.RegisterRoutes(r, authHandler)
		catalog.RegisterRoutes(r, catalogHandler, adminMiddleware.RequireSession,
			backup.Routes(backupHandler, adminMiddleware.RequireSession))
		media.RegisterRoutes(r, mediaHandler, adminMiddleware.RequireSession)
	})

	// Create server
	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		appLogger.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down server")
	healthHandler.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	appLogger.Info("server exited")
}

// version is stamped at build time via -ldflags.
var version = "dev"
