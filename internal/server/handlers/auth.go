package handlers

import (
	"encoding/json"
	"html"
	"net/http"
	"strings"

	gferrors "github.com/fulmenhq/gofulmen/errors"

	apperrors "github.com/PitchConnect/google-drive-service/internal/errors"
	"github.com/PitchConnect/google-drive-service/internal/resilience"
)

// callbackSuccessPage is served after a successful OAuth redirect. The script
// closes the popup window the consent screen usually opens in.
const callbackSuccessPage = `<!DOCTYPE html>
<html>
<head><title>Authorization Complete</title></head>
<body>
<h1>Authorization successful</h1>
<p>You can close this window and return to the application.</p>
<script>setTimeout(function() { window.close(); }, 3000);</script>
</body>
</html>`

const callbackErrorPage = `<!DOCTYPE html>
<html>
<head><title>Authorization Failed</title></head>
<body>
<h1>Authorization failed</h1>
<p>%MESSAGE%</p>
<p>Return to the application and start over at /authorize_gdrive.</p>
</body>
</html>`

// AuthorizeHandler begins the OAuth flow: it returns the Google consent URL
// for the operator to visit.
func AuthorizeHandler(w http.ResponseWriter, r *http.Request) {
	svc := requireDrive()
	if svc == nil {
		respondWithError(w, r, gferrors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "Drive service is not configured"))
		return
	}

	url, err := svc.AuthURL()
	if err != nil {
		respondWithError(w, r, apperrors.WrapInternal(r.Context(), err,
			"Failed to build the authorization URL, check the client secrets file"))
		return
	}

	response := map[string]string{
		"status":            "success",
		"authorization_url": url,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// submitCodeRequest is the JSON body accepted by SubmitAuthCodeHandler.
type submitCodeRequest struct {
	Code string `json:"code"`
}

// SubmitAuthCodeHandler completes the OAuth flow with a manually pasted
// authorization code. Accepts JSON {"code": "..."} or a form field.
func SubmitAuthCodeHandler(w http.ResponseWriter, r *http.Request) {
	svc := requireDrive()
	if svc == nil {
		respondWithError(w, r, gferrors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "Drive service is not configured"))
		return
	}

	code := extractAuthCode(r)
	if code == "" {
		respondWithError(w, r, apperrors.NewValidationError("Missing authorization code"))
		return
	}

	if err := svc.ExchangeCode(r.Context(), code); err != nil {
		respondWithError(w, r, apperrors.WrapUnauthorized(r.Context(), err,
			"Failed to exchange the authorization code, it may be expired or already used"))
		return
	}

	response := map[string]string{
		"status":  "success",
		"message": "Authentication successful, the service can now access Google Drive",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// OAuthCallbackHandler is the redirect target registered with the OAuth
// client. It exchanges the code and renders a human-facing HTML page, since
// the visitor is a browser rather than an API client.
func OAuthCallbackHandler(w http.ResponseWriter, r *http.Request) {
	svc := requireDrive()
	if svc == nil {
		writeCallbackError(w, http.StatusServiceUnavailable, "The Drive service is not configured")
		return
	}

	query := r.URL.Query()
	if errParam := query.Get("error"); errParam != "" {
		writeCallbackError(w, http.StatusBadRequest, "Google reported: "+errParam)
		return
	}

	code := query.Get("code")
	if code == "" {
		writeCallbackError(w, http.StatusBadRequest, "The callback did not include an authorization code")
		return
	}

	if err := svc.ExchangeCode(r.Context(), code); err != nil {
		// A bad or expired code is the caller's problem; anything on
		// Google's side or the wire is ours.
		status := http.StatusBadRequest
		switch resilience.Classify(err) {
		case resilience.ClassServer, resilience.ClassRetryable:
			status = http.StatusInternalServerError
		}
		writeCallbackError(w, status, "Exchanging the authorization code failed: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(callbackSuccessPage))
}

// writeCallbackError renders the failure page. The message may carry
// query-string or upstream error text, so it is escaped before substitution.
func writeCallbackError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	page := strings.Replace(callbackErrorPage, "%MESSAGE%", html.EscapeString(message), 1)
	_, _ = w.Write([]byte(page))
}

// extractAuthCode pulls the code from a JSON body or form data.
func extractAuthCode(r *http.Request) string {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		var body submitCodeRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			return strings.TrimSpace(body.Code)
		}
		return ""
	}
	if err := r.ParseForm(); err != nil {
		return ""
	}
	return strings.TrimSpace(r.FormValue("code"))
}
