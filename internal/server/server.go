package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/PitchConnect/google-drive-service/internal/drive"
	apperrors "github.com/PitchConnect/google-drive-service/internal/errors"
	"github.com/PitchConnect/google-drive-service/internal/observability"
	"github.com/PitchConnect/google-drive-service/internal/server/handlers"
	servermw "github.com/PitchConnect/google-drive-service/internal/server/middleware"
)

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	host   string
	port   int
}

// New creates a new HTTP server instance wired to the Drive facade. drv may
// be nil, in which case the drive endpoints answer 503; the health, version
// and metrics surface still works.
func New(host string, port int, drv *drive.Service) *Server {
	r := chi.NewRouter()

	// Standard chi middleware
	r.Use(middleware.RealIP)

	// Our custom middleware in correct order (RequestID → Throttle → Metrics → Recovery)
	r.Use(servermw.RequestID) // 1. Request ID (early for correlation)
	if viper.GetBool("server.throttle.enabled") {
		rps := viper.GetFloat64("server.throttle.requests_per_second")
		burst := viper.GetInt("server.throttle.burst")
		r.Use(servermw.Throttle(rps, burst)) // 2. Inbound rate limit (before any work)
	}
	r.Use(servermw.RequestMetrics) // 3. Metrics (measure everything)
	r.Use(servermw.ErrorHandler)   // 4. Error handling (after metrics)
	r.Use(servermw.Recovery)       // 5. Panic recovery (outermost)

	// Standardized error responses using centralized HandleError
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		err := apperrors.NewNotFoundError("The requested resource was not found")
		HandleError(w, req, err)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		err := apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource")
		HandleError(w, req, err)
	})

	s := &Server{
		router: r,
		host:   host,
		port:   port,
	}

	// Ensure handlers use the centralized error responder
	handlers.SetHTTPErrorResponder(HandleError)
	if drv != nil {
		handlers.SetDriveService(drv)
	}

	// Register routes
	s.registerRoutes()

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	observability.ServerLogger.Info("Starting HTTP server",
		zap.String("host", s.host),
		zap.Int("port", s.port),
		zap.String("addr", addr))

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	observability.ServerLogger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the server port for testing
func (s *Server) Port() int {
	return s.port
}
