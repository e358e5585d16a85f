package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scopes requested during authorization. The broad set matches the shared
// OAuth client this service participates in: Drive plus the sibling services
// that reuse the same consent screen.
var Scopes = []string{
	"https://www.googleapis.com/auth/drive",
	"https://www.googleapis.com/auth/calendar",
	"https://www.googleapis.com/auth/contacts",
}

// ErrAuthRequired signals that no usable token exists and the caller must run
// the authorization flow (/authorize_gdrive then /submit_auth_code).
var ErrAuthRequired = errors.New("drive: authorization required")

// TokenConfig locates the OAuth client secrets and the persisted token file.
type TokenConfig struct {
	CredentialsPath string
	TokenPath       string
	RedirectURI     string
}

// TokenManager owns the persisted OAuth token: it generates authorization
// URLs, exchanges authorization codes, and refreshes expired tokens, writing
// every new token back to the token file.
type TokenManager struct {
	cfg    TokenConfig
	logger *logging.Logger

	mu sync.Mutex
}

// NewTokenManager builds a TokenManager. logger may be nil.
func NewTokenManager(cfg TokenConfig, logger *logging.Logger) *TokenManager {
	return &TokenManager{cfg: cfg, logger: logger}
}

// oauthConfig parses the client secrets file. Supports both "web" and
// "installed" credential formats via google.ConfigFromJSON.
func (m *TokenManager) oauthConfig() (*oauth2.Config, error) {
	raw, err := os.ReadFile(m.cfg.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read client secrets %s: %w", m.cfg.CredentialsPath, err)
	}
	conf, err := google.ConfigFromJSON(raw, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse client secrets: %w", err)
	}
	if m.cfg.RedirectURI != "" {
		conf.RedirectURL = m.cfg.RedirectURI
	}
	return conf, nil
}

// AuthURL returns the consent-screen URL for the offline authorization flow.
func (m *TokenManager) AuthURL() (string, error) {
	conf, err := m.oauthConfig()
	if err != nil {
		return "", err
	}
	return conf.AuthCodeURL("state",
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	), nil
}

// Exchange trades an authorization code for tokens and persists them.
func (m *TokenManager) Exchange(ctx context.Context, code string) error {
	conf, err := m.oauthConfig()
	if err != nil {
		return err
	}
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.saveLocked(tok); err != nil {
		return err
	}
	if m.logger != nil {
		m.logger.Info("Exchanged authorization code for tokens",
			zap.String("token_path", m.cfg.TokenPath))
	}
	return nil
}

// Token loads the persisted token, refreshing it when expired. Refreshed
// tokens are written back to the token file. A refresh failure caused by a
// revoked grant deletes the token file and reports ErrAuthRequired so the
// caller re-runs the authorization flow.
func (m *TokenManager) Token(ctx context.Context) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tok, err := m.loadLocked()
	if err != nil {
		return nil, err
	}
	if tok.Valid() {
		return tok, nil
	}
	if tok.RefreshToken == "" {
		return nil, ErrAuthRequired
	}

	conf, err := m.oauthConfig()
	if err != nil {
		return nil, err
	}
	if m.logger != nil {
		m.logger.Info("Refreshing expired credentials")
	}
	refreshed, err := conf.TokenSource(ctx, tok).Token()
	if err != nil {
		if isRevokedGrant(err) {
			if m.logger != nil {
				m.logger.Warn("Removing invalid token file",
					zap.String("token_path", m.cfg.TokenPath))
			}
			_ = os.Remove(m.cfg.TokenPath)
			return nil, ErrAuthRequired
		}
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	// Refresh responses may omit the refresh token. Keep the old one.
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = tok.RefreshToken
	}
	if err := m.saveLocked(refreshed); err != nil {
		return nil, err
	}
	return refreshed, nil
}

// HasToken reports whether a token file exists on disk. It does not validate
// the token; /auth/status uses this as a cheap authentication probe.
func (m *TokenManager) HasToken() bool {
	_, err := os.Stat(m.cfg.TokenPath)
	return err == nil
}

// Clear removes the persisted token. Test support and forced re-auth.
func (m *TokenManager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := os.Remove(m.cfg.TokenPath)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// Source returns an oauth2.TokenSource backed by the token file, so API
// clients pick up refreshed tokens across the process lifetime.
func (m *TokenManager) Source(ctx context.Context) oauth2.TokenSource {
	return &fileTokenSource{manager: m, ctx: ctx}
}

func (m *TokenManager) loadLocked() (*oauth2.Token, error) {
	raw, err := os.ReadFile(m.cfg.TokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrAuthRequired
		}
		return nil, fmt.Errorf("read token file %s: %w", m.cfg.TokenPath, err)
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(raw, tok); err != nil {
		return nil, fmt.Errorf("decode token file %s: %w", m.cfg.TokenPath, err)
	}
	return tok, nil
}

func (m *TokenManager) saveLocked(tok *oauth2.Token) error {
	raw, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if dir := filepath.Dir(m.cfg.TokenPath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create token directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(m.cfg.TokenPath, raw, 0o600); err != nil {
		return fmt.Errorf("write token file %s: %w", m.cfg.TokenPath, err)
	}
	return nil
}

// isRevokedGrant detects refresh failures that mean the grant itself is dead,
// as opposed to transient transport errors.
func isRevokedGrant(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "invalid_grant") || strings.Contains(msg, "invalid_token")
}

// fileTokenSource defers to the TokenManager on every Token call so refreshes
// are persisted and revoked grants surface as ErrAuthRequired.
type fileTokenSource struct {
	manager *TokenManager
	ctx     context.Context
}

func (s *fileTokenSource) Token() (*oauth2.Token, error) {
	return s.manager.Token(s.ctx)
}
