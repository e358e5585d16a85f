package drive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// FolderMimeType is the Drive MIME type identifying folders.
const FolderMimeType = "application/vnd.google-apps.folder"

// DefaultUploadChunkSize is the resumable-upload chunk size (1 MiB).
const DefaultUploadChunkSize = 1024 * 1024

// API is the seam between the facade and the remote Drive service. Lookup
// methods return an empty ID when no match exists; every other failure is an
// error for the resilience layer to classify.
type API interface {
	FindFolder(ctx context.Context, name, parentID string) (string, error)
	CreateFolder(ctx context.Context, name, parentID string) (string, error)
	FindFile(ctx context.Context, name, folderID string) (string, error)
	Delete(ctx context.Context, fileID string) error
	Upload(ctx context.Context, localPath, name, folderID string) (string, error)
	Probe(ctx context.Context) error
}

// Client implements API over the real Drive v3 service.
type Client struct {
	svc       *gdrive.Service
	chunkSize int
	logger    *logging.Logger
}

// NewClient builds a Drive client from a token source. chunkSize <= 0 selects
// the default 1 MiB resumable chunk.
func NewClient(ctx context.Context, ts oauth2.TokenSource, chunkSize int, logger *logging.Logger) (*Client, error) {
	svc, err := gdrive.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	if chunkSize <= 0 {
		chunkSize = DefaultUploadChunkSize
	}
	return &Client{svc: svc, chunkSize: chunkSize, logger: logger}, nil
}

// escapeQueryTerm escapes single quotes for embedding a name in a Drive
// search query.
func escapeQueryTerm(name string) string {
	return strings.ReplaceAll(name, "'", `\'`)
}

// FindFolder returns the ID of the first folder with the given exact name
// under parentID, or "" when none exists.
func (c *Client) FindFolder(ctx context.Context, name, parentID string) (string, error) {
	query := fmt.Sprintf("mimeType='%s' and name='%s' and '%s' in parents and trashed=false",
		FolderMimeType, escapeQueryTerm(name), parentID)
	return c.firstMatch(ctx, query)
}

// CreateFolder creates a folder under parentID and returns its ID.
func (c *Client) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	meta := &gdrive.File{
		Name:     name,
		MimeType: FolderMimeType,
		Parents:  []string{parentID},
	}
	created, err := c.svc.Files.Create(meta).Fields("id", "name").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if c.logger != nil {
		c.logger.Info("Created folder",
			zap.String("name", name),
			zap.String("folder_id", created.Id))
	}
	return created.Id, nil
}

// FindFile returns the ID of the first file with the given exact name inside
// folderID, or "" when none exists.
func (c *Client) FindFile(ctx context.Context, name, folderID string) (string, error) {
	query := fmt.Sprintf("name='%s' and '%s' in parents and trashed=false",
		escapeQueryTerm(name), folderID)
	return c.firstMatch(ctx, query)
}

// firstMatch runs a files.list query with pageSize=1; ambiguous duplicates
// resolve first-match-wins.
func (c *Client) firstMatch(ctx context.Context, query string) (string, error) {
	res, err := c.svc.Files.List().
		Q(query).
		Fields("files(id,name)").
		PageSize(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", err
	}
	if len(res.Files) == 0 {
		return "", nil
	}
	return res.Files[0].Id, nil
}

// Delete removes a file or folder by ID. The remote 404 case is left to the
// facade, which treats already-deleted as success.
func (c *Client) Delete(ctx context.Context, fileID string) error {
	return c.svc.Files.Delete(fileID).Context(ctx).Do()
}

// Upload sends a local file into folderID using a resumable transfer and
// returns the shareable webViewLink. Progress is logged at 20% increments.
func (c *Client) Upload(ctx context.Context, localPath, name, folderID string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open upload source %s: %w", localPath, err)
	}
	defer func() {
		_ = f.Close()
	}()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat upload source %s: %w", localPath, err)
	}

	meta := &gdrive.File{
		Name:    name,
		Parents: []string{folderID},
	}

	lastLogged := int64(0)
	call := c.svc.Files.Create(meta).
		Fields("id", "name", "webViewLink", "size").
		Media(f, googleapi.ChunkSize(c.chunkSize)).
		ProgressUpdater(func(current, total int64) {
			if total <= 0 {
				total = info.Size()
			}
			if total <= 0 {
				return
			}
			progress := current * 100 / total
			if progress-lastLogged >= 20 {
				lastLogged = progress
				if c.logger != nil {
					c.logger.Info("Upload in progress",
						zap.String("name", name),
						zap.Int64("percent", progress))
				}
			}
		}).
		Context(ctx)

	uploaded, err := call.Do()
	if err != nil {
		return "", err
	}
	if c.logger != nil {
		c.logger.Info("File uploaded",
			zap.String("name", filepath.Base(localPath)),
			zap.String("file_id", uploaded.Id),
			zap.Int64("size", info.Size()))
	}
	return uploaded.WebViewLink, nil
}

// Probe verifies API connectivity with a minimal files.list call.
func (c *Client) Probe(ctx context.Context) error {
	_, err := c.svc.Files.List().PageSize(1).Fields("files(id)").Context(ctx).Do()
	return err
}
