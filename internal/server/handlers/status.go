package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	gferrors "github.com/fulmenhq/gofulmen/errors"

	"github.com/PitchConnect/google-drive-service/internal/drive"
)

// ServiceName appears in health and status payloads.
const ServiceName = "google-drive-service"

// PingHandler is the cheapest possible liveness check: plain-text OK with no
// dependency on Drive or the token store.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// HealthHandler reports basic service health without touching the Drive API,
// so container orchestrators get a fast answer even when Drive is down.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{
		"status":    "healthy",
		"service":   ServiceName,
		"version":   AppVersion,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// AuthStatusHandler reports whether a persisted OAuth token exists. It does
// not validate the token against Google; /service/status does that.
func AuthStatusHandler(w http.ResponseWriter, r *http.Request) {
	svc := requireDrive()
	if svc == nil {
		respondWithError(w, r, gferrors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "Drive service is not configured"))
		return
	}

	response := map[string]any{
		"service":   ServiceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   AppVersion,
	}

	if svc.HasToken() {
		response["auth_status"] = "authenticated"
		response["status"] = "authenticated"
		response["message"] = "Authentication tokens are available"
	} else {
		response["auth_status"] = "unauthenticated"
		response["status"] = "unauthenticated"
		response["message"] = "Authentication required. Visit /authorize_gdrive to authenticate."
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// ServiceStatusHandler performs a live Drive connectivity probe and reports
// the measured latency together with the circuit breaker states. Missing
// authorization degrades with 200; any other probe failure answers 500.
func ServiceStatusHandler(w http.ResponseWriter, r *http.Request) {
	svc := requireDrive()
	if svc == nil {
		respondWithError(w, r, gferrors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "Drive service is not configured"))
		return
	}

	response := map[string]any{
		"service":   ServiceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   AppVersion,
	}
	if svc.HasToken() {
		response["auth_status"] = "authenticated"
	} else {
		response["auth_status"] = "unauthenticated"
	}

	breakers := make(map[string]string)
	for name, stats := range svc.BreakerStats() {
		breakers[name] = stats.State.String()
	}
	response["circuit_breakers"] = breakers

	start := time.Now()
	err := svc.Authenticate(r.Context())
	response["api_response_time_ms"] = time.Since(start).Milliseconds()

	httpStatus := http.StatusOK
	switch {
	case err == nil:
		response["status"] = "healthy"
		response["api_connectivity"] = true
		response["message"] = "Service is fully operational"
	case errors.Is(err, drive.ErrAuthRequired):
		response["status"] = "degraded"
		response["reason"] = "auth_required"
		response["api_connectivity"] = false
		response["message"] = "Authentication required. Visit /authorize_gdrive to authenticate."
	default:
		response["status"] = "unhealthy"
		response["reason"] = err.Error()
		response["api_connectivity"] = false
		httpStatus = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(response)
}

// InfoHandler catalogs the service's endpoints for interactive discovery.
func InfoHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"service": ServiceName,
		"version": AppVersion,
		"endpoints": map[string]string{
			"GET /ping":             "Plain-text liveness check",
			"GET /health":           "Basic service health (no Drive calls)",
			"GET /health/live":      "Kubernetes liveness probe",
			"GET /health/ready":     "Kubernetes readiness probe",
			"GET /health/startup":   "Kubernetes startup probe",
			"GET /version":          "Build and runtime version information",
			"GET /metrics":          "Prometheus metrics",
			"GET /info":             "This endpoint catalog",
			"GET /auth/status":      "Whether an OAuth token is present",
			"GET /service/status":   "Live Drive connectivity probe",
			"GET /authorize_gdrive": "Begin the OAuth authorization flow",
			"POST /submit_auth_code": "Complete authorization with a pasted code",
			"GET /oauth/callback":   "OAuth redirect target",
			"POST /upload_file":     "Upload a file into a Drive folder path",
			"POST /delete_folder":   "Delete a Drive folder by path",
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}
