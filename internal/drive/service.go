// Package drive is the facade over the Google Drive API. Every remote call
// runs inside the resilience guard chain (circuit breaker outermost, then
// retry, then the token-bucket rate limiter) so transient Drive failures are
// absorbed before they reach the HTTP layer.
package drive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"

	"github.com/PitchConnect/google-drive-service/internal/metrics"
	"github.com/PitchConnect/google-drive-service/internal/resilience"
)

// RootFolderID is the sentinel parent ID for the top of the Drive tree.
const RootFolderID = "root"

// minDriveIDLength rejects IDs too short to plausibly be Drive IDs before
// any remote call is spent on them.
const minDriveIDLength = 10

// ErrFolderNotFound reports that a folder path did not resolve.
var ErrFolderNotFound = errors.New("drive: folder path not found")

// Operation classes, one circuit breaker each.
const (
	classLookups   = "lookups"
	classMutations = "mutations"
	classUploads   = "uploads"
)

// Options configures the guard chain shared by all operations of a class.
type Options struct {
	Retry           resilience.Policy
	RateLimit       float64
	Burst           float64
	Breaker         resilience.BreakerConfig
	UploadChunkSize int
}

// DefaultOptions returns the service-wide resilience defaults.
func DefaultOptions() Options {
	return Options{
		Retry:           resilience.DefaultPolicy(),
		RateLimit:       5.0,
		Burst:           10,
		Breaker:         resilience.DefaultBreakerConfig(),
		UploadChunkSize: DefaultUploadChunkSize,
	}
}

// Service composes the resilience guards around the Drive API and owns the
// token manager. One instance serves the whole process; its guards carry the
// shared mutable limiter and breaker state.
type Service struct {
	tokens *TokenManager
	opts   Options
	logger *logging.Logger

	lookups   resilience.Guard
	mutations resilience.Guard
	uploads   resilience.Guard
	breakers  map[string]*resilience.Breaker

	mu  sync.Mutex
	api API
}

// NewService builds the facade. logger may be nil.
func NewService(tokens *TokenManager, opts Options, logger *logging.Logger) *Service {
	s := &Service{
		tokens:   tokens,
		opts:     opts,
		logger:   logger,
		breakers: make(map[string]*resilience.Breaker, 3),
	}
	s.lookups = s.buildGuard(classLookups)
	s.mutations = s.buildGuard(classMutations)
	s.uploads = s.buildGuard(classUploads)
	return s
}

// buildGuard nests breaker → retrier → limiter for one operation class.
func (s *Service) buildGuard(class string) resilience.Guard {
	breaker := resilience.NewBreaker(class, s.opts.Breaker, s.logger)
	s.breakers[class] = breaker
	return resilience.Compose(
		breaker,
		resilience.NewRetrier(s.opts.Retry, s.logger),
		resilience.NewLimiter(s.opts.RateLimit, s.opts.Burst, s.logger),
	)
}

// AuthURL delegates to the token manager.
func (s *Service) AuthURL() (string, error) {
	return s.tokens.AuthURL()
}

// ExchangeCode delegates to the token manager.
func (s *Service) ExchangeCode(ctx context.Context, code string) error {
	return s.tokens.Exchange(ctx, code)
}

// HasToken reports whether a persisted token exists.
func (s *Service) HasToken() bool {
	return s.tokens.HasToken()
}

// Authenticate loads credentials and probes the Drive API. Auth and
// permission failures on the probe surface as ErrAuthRequired, forcing the
// re-authorization flow instead of a retry storm.
func (s *Service) Authenticate(ctx context.Context) error {
	start := time.Now()
	err := s.authenticate(ctx)
	metrics.RecordDriveOperation("authenticate", err == nil, time.Since(start))
	return err
}

func (s *Service) authenticate(ctx context.Context) error {
	api, err := s.ensureAPI(ctx)
	if err != nil {
		return err
	}
	err = s.lookups.Do(ctx, func(ctx context.Context) error {
		return api.Probe(ctx)
	})
	if err != nil {
		switch resilience.Classify(err) {
		case resilience.ClassAuth, resilience.ClassQuota:
			return fmt.Errorf("%w: %v", ErrAuthRequired, err)
		}
		return err
	}
	return nil
}

// ResolveOrCreateFolder walks a slash-separated path from the Drive root,
// creating missing segments, and returns the final folder ID. An empty or
// all-slash path resolves to the root sentinel with zero remote calls.
func (s *Service) ResolveOrCreateFolder(ctx context.Context, path string) (string, error) {
	start := time.Now()
	id, err := s.resolveOrCreateFolder(ctx, path)
	metrics.RecordDriveOperation("resolve_or_create_folder", err == nil, time.Since(start))
	return id, err
}

func (s *Service) resolveOrCreateFolder(ctx context.Context, path string) (string, error) {
	segments := splitFolderPath(path)
	if len(segments) == 0 {
		return RootFolderID, nil
	}
	api, err := s.ensureAPI(ctx)
	if err != nil {
		return "", err
	}

	parent := RootFolderID
	for _, name := range segments {
		id, err := s.findFolder(ctx, api, name, parent)
		if err != nil {
			return "", err
		}
		if id == "" {
			if s.logger != nil {
				s.logger.Info("Folder not found, creating it",
					zap.String("name", name),
					zap.String("parent", parent))
			}
			id, err = s.createFolder(ctx, api, name, parent)
			if err != nil {
				return "", err
			}
		}
		parent = id
	}
	return parent, nil
}

// FolderIDByPath walks a folder path without creating anything. A missing
// segment reports ErrFolderNotFound.
func (s *Service) FolderIDByPath(ctx context.Context, path string) (string, error) {
	segments := splitFolderPath(path)
	if len(segments) == 0 {
		return RootFolderID, nil
	}
	api, err := s.ensureAPI(ctx)
	if err != nil {
		return "", err
	}

	current := RootFolderID
	for _, name := range segments {
		id, err := s.findFolder(ctx, api, name, current)
		if err != nil {
			return "", err
		}
		if id == "" {
			return "", fmt.Errorf("%w: %q", ErrFolderNotFound, path)
		}
		current = id
	}
	return current, nil
}

// UploadFile uploads a local file into folderID and returns its shareable
// link. With overwrite, an existing file of the same name is deleted first,
// best-effort; without it no lookup happens and Drive keeps both files.
func (s *Service) UploadFile(ctx context.Context, localPath, folderID string, overwrite bool) (string, error) {
	start := time.Now()
	link, err := s.uploadFile(ctx, localPath, folderID, overwrite)
	metrics.RecordDriveOperation("upload_file", err == nil, time.Since(start))
	return link, err
}

func (s *Service) uploadFile(ctx context.Context, localPath, folderID string, overwrite bool) (string, error) {
	if err := validateFolderID(folderID); err != nil {
		return "", err
	}
	if _, err := os.Stat(localPath); err != nil {
		return "", resilience.NewConfigError("upload source %q does not exist", localPath)
	}
	api, err := s.ensureAPI(ctx)
	if err != nil {
		return "", err
	}

	name := filepath.Base(localPath)
	if overwrite {
		s.deleteExisting(ctx, api, name, folderID)
	}

	var link string
	err = s.uploads.Do(ctx, func(ctx context.Context) error {
		var uerr error
		link, uerr = api.Upload(ctx, localPath, name, folderID)
		return uerr
	})
	if err != nil {
		return "", err
	}
	return link, nil
}

// deleteExisting removes a same-named file before an overwrite upload.
// Failures are logged and the upload proceeds anyway; a crash between delete
// and create can leave the folder without the file, which is a documented
// gap of the delete-then-create overwrite.
func (s *Service) deleteExisting(ctx context.Context, api API, name, folderID string) {
	existing, err := s.findFile(ctx, api, name, folderID)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("Existing-file lookup failed, proceeding with upload",
				zap.String("name", name), zap.Error(err))
		}
		return
	}
	if existing == "" {
		return
	}
	if s.logger != nil {
		s.logger.Info("Deleting existing file before upload",
			zap.String("name", name),
			zap.String("file_id", existing))
	}
	deleted, err := s.deleteByID(ctx, api, existing)
	if err != nil || !deleted {
		if s.logger != nil {
			s.logger.Warn("Failed to delete existing file, proceeding with upload",
				zap.String("name", name), zap.Error(err))
		}
	}
}

// DeleteFileByID deletes a file. A remote 404 is success (already deleted);
// a 403 reports false without retrying.
func (s *Service) DeleteFileByID(ctx context.Context, fileID string) (bool, error) {
	if err := validateDriveID(fileID); err != nil {
		return false, err
	}
	api, err := s.ensureAPI(ctx)
	if err != nil {
		return false, err
	}
	start := time.Now()
	deleted, err := s.deleteByID(ctx, api, fileID)
	metrics.RecordDriveOperation("delete_file", err == nil, time.Since(start))
	return deleted, err
}

// DeleteFolder resolves a path (without creating) and deletes the folder.
// Returns false without error when the path does not resolve or deletion is
// refused; the HTTP layer maps that to 404.
func (s *Service) DeleteFolder(ctx context.Context, path string) (bool, error) {
	start := time.Now()
	ok, err := s.deleteFolder(ctx, path)
	metrics.RecordDriveOperation("delete_folder", err == nil, time.Since(start))
	return ok, err
}

func (s *Service) deleteFolder(ctx context.Context, path string) (bool, error) {
	if strings.TrimSpace(path) == "" {
		return false, resilience.NewConfigError("folder path is required")
	}
	id, err := s.FolderIDByPath(ctx, path)
	if err != nil {
		if errors.Is(err, ErrFolderNotFound) {
			if s.logger != nil {
				s.logger.Warn("Folder path not found, cannot delete",
					zap.String("path", path))
			}
			return false, nil
		}
		return false, err
	}
	if id == RootFolderID {
		if s.logger != nil {
			s.logger.Warn("Refusing to delete the root folder",
				zap.String("path", path))
		}
		return false, nil
	}
	api, err := s.ensureAPI(ctx)
	if err != nil {
		return false, err
	}
	return s.deleteByID(ctx, api, id)
}

// BreakerStats snapshots the per-class circuit breakers for status reporting.
func (s *Service) BreakerStats() map[string]resilience.BreakerStats {
	stats := make(map[string]resilience.BreakerStats, len(s.breakers))
	for name, b := range s.breakers {
		stats[name] = b.Stats()
	}
	return stats
}

// ResetGuards restores every breaker to a fresh closed state. Test support.
func (s *Service) ResetGuards() {
	for _, b := range s.breakers {
		b.Reset()
	}
}

// guarded single-call helpers

func (s *Service) findFolder(ctx context.Context, api API, name, parentID string) (string, error) {
	var id string
	err := s.lookups.Do(ctx, func(ctx context.Context) error {
		var ferr error
		id, ferr = api.FindFolder(ctx, name, parentID)
		return ferr
	})
	return id, err
}

func (s *Service) createFolder(ctx context.Context, api API, name, parentID string) (string, error) {
	var id string
	err := s.mutations.Do(ctx, func(ctx context.Context) error {
		var cerr error
		id, cerr = api.CreateFolder(ctx, name, parentID)
		return cerr
	})
	return id, err
}

func (s *Service) findFile(ctx context.Context, api API, name, folderID string) (string, error) {
	var id string
	err := s.lookups.Do(ctx, func(ctx context.Context) error {
		var ferr error
		id, ferr = api.FindFile(ctx, name, folderID)
		return ferr
	})
	return id, err
}

// deleteByID runs the delete inside the mutations guard. The 404 and 403
// normalizations happen inside the guarded operation so the retry layer never
// sees them as failures.
func (s *Service) deleteByID(ctx context.Context, api API, id string) (bool, error) {
	deleted := false
	err := s.mutations.Do(ctx, func(ctx context.Context) error {
		derr := api.Delete(ctx, id)
		if derr == nil {
			deleted = true
			return nil
		}
		var gerr *googleapi.Error
		if errors.As(derr, &gerr) {
			switch gerr.Code {
			case 404:
				if s.logger != nil {
					s.logger.Warn("Target not found, treating delete as success",
						zap.String("id", id))
				}
				deleted = true
				return nil
			case 403:
				if s.logger != nil {
					s.logger.Error("Permission denied deleting target",
						zap.String("id", id))
				}
				deleted = false
				return nil
			}
		}
		return derr
	})
	return deleted, err
}

// ensureAPI lazily builds the Drive client from the persisted token.
func (s *Service) ensureAPI(ctx context.Context) (API, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.api != nil {
		return s.api, nil
	}
	if _, err := s.tokens.Token(ctx); err != nil {
		return nil, err
	}
	// The client outlives any single request; its token source re-reads the
	// token file so refreshed credentials are picked up transparently.
	client, err := NewClient(context.Background(), s.tokens.Source(context.Background()),
		s.opts.UploadChunkSize, s.logger)
	if err != nil {
		return nil, err
	}
	s.api = client
	return s.api, nil
}

// setAPI injects a fake API. Test support.
func (s *Service) setAPI(api API) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.api = api
}

// validateFolderID rejects obviously invalid folder IDs before any remote
// call. The root sentinel is always valid.
func validateFolderID(folderID string) error {
	if strings.TrimSpace(folderID) == "" {
		return resilience.NewConfigError("folder ID is required")
	}
	if folderID != RootFolderID && len(folderID) < minDriveIDLength {
		return resilience.NewConfigError("folder ID %q is too short to be a Drive ID", folderID)
	}
	return nil
}

func validateDriveID(id string) error {
	if strings.TrimSpace(id) == "" {
		return resilience.NewConfigError("ID is required")
	}
	if len(id) < minDriveIDLength {
		return resilience.NewConfigError("ID %q is too short to be a Drive ID", id)
	}
	return nil
}

// splitFolderPath trims slashes and drops empty segments.
func splitFolderPath(path string) []string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}
