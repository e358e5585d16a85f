package server

import (
	"context"
	"os"

	"github.com/fulmenhq/gofulmen/signals"
	"go.uber.org/zap"

	"github.com/PitchConnect/google-drive-service/internal/appid"
	"github.com/PitchConnect/google-drive-service/internal/observability"
	"github.com/PitchConnect/google-drive-service/internal/server/handlers"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	// Liveness and health endpoints
	s.router.Get("/ping", handlers.PingHandler)
	s.router.Get("/health", handlers.HealthHandler)
	s.router.Get("/health/live", handlers.LivenessHandler)
	s.router.Get("/health/ready", handlers.ReadinessHandler)
	s.router.Get("/health/startup", handlers.StartupHandler)

	// Service introspection
	s.router.Get("/version", handlers.VersionHandler)
	s.router.Get("/info", handlers.InfoHandler)
	s.router.Get("/auth/status", handlers.AuthStatusHandler)
	s.router.Get("/service/status", handlers.ServiceStatusHandler)

	// OAuth authorization flow
	s.router.Get("/authorize_gdrive", handlers.AuthorizeHandler)
	s.router.Post("/submit_auth_code", handlers.SubmitAuthCodeHandler)
	s.router.Get("/oauth/callback", handlers.OAuthCallbackHandler)

	// Drive operations
	s.router.Post("/upload_file", handlers.UploadFileHandler)
	s.router.Post("/delete_folder", handlers.DeleteFolderHandler)

	// Metrics endpoint (in server package to access HandleError)
	s.router.Get("/metrics", MetricsHandler)

	// Admin signal endpoint (optional, requires GDRIVE_ADMIN_TOKEN)
	s.registerAdminEndpoint()
}

// registerAdminEndpoint optionally registers the admin signal endpoint
func (s *Server) registerAdminEndpoint() {
	// Get admin token from environment (identity-aware)
	ctx := context.Background()
	identity, _ := appid.Get(ctx)
	envPrefix := "GDRIVE_"
	if identity != nil && identity.EnvPrefix != "" {
		envPrefix = identity.EnvPrefix
	}

	adminToken := os.Getenv(envPrefix + "ADMIN_TOKEN")
	logger := observability.ServerLogger

	if adminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no " + envPrefix + "ADMIN_TOKEN set)")
		}
		return
	}

	// Create HTTP signal handler with bearer token auth and rate limiting
	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: adminToken,
		RateLimit: 10,  // 10 requests per minute
		RateBurst: 5,   // burst size
		Manager:   nil, // use default global manager
	})

	// Register admin endpoint
	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("auth", "bearer token"),
			zap.String("rate_limit", "10/min, burst 5"))
		logger.Warn("Admin endpoint enabled - ensure this server is not exposed to public internet")
	}
}
