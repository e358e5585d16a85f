package handlers

import (
	"context"

	"github.com/PitchConnect/google-drive-service/internal/resilience"
)

// DriveService is the surface the HTTP handlers need from the Drive facade.
// *drive.Service satisfies it; tests substitute a fake.
type DriveService interface {
	AuthURL() (string, error)
	ExchangeCode(ctx context.Context, code string) error
	HasToken() bool
	Authenticate(ctx context.Context) error
	ResolveOrCreateFolder(ctx context.Context, path string) (string, error)
	UploadFile(ctx context.Context, localPath, folderID string, overwrite bool) (string, error)
	DeleteFolder(ctx context.Context, path string) (bool, error)
	DeleteFileByID(ctx context.Context, fileID string) (bool, error)
	BreakerStats() map[string]resilience.BreakerStats
}

var driveService DriveService

// SetDriveService injects the Drive facade used by the drive handlers.
func SetDriveService(svc DriveService) {
	driveService = svc
}

// requireDrive reports the injected facade or nil when the service started
// without Drive wiring (some tests and the bare router do this).
func requireDrive() DriveService {
	return driveService
}
