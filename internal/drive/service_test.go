package drive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/PitchConnect/google-drive-service/internal/resilience"
)

// fakeAPI records calls and serves canned responses keyed by name/parent.
type fakeAPI struct {
	folders   map[string]string // "parent/name" -> folder ID
	files     map[string]string // "folder/name" -> file ID
	deleteErr error
	uploadErr error
	probeErr  error

	findFolderCalls   int
	createFolderCalls int
	findFileCalls     int
	deleteCalls       []string
	uploadCalls       int
	created           []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		folders: make(map[string]string),
		files:   make(map[string]string),
	}
}

func (f *fakeAPI) FindFolder(ctx context.Context, name, parentID string) (string, error) {
	f.findFolderCalls++
	return f.folders[parentID+"/"+name], nil
}

func (f *fakeAPI) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	f.createFolderCalls++
	id := "created-" + parentID + "-" + name
	f.folders[parentID+"/"+name] = id
	f.created = append(f.created, parentID+"/"+name)
	return id, nil
}

func (f *fakeAPI) FindFile(ctx context.Context, name, folderID string) (string, error) {
	f.findFileCalls++
	return f.files[folderID+"/"+name], nil
}

func (f *fakeAPI) Delete(ctx context.Context, fileID string) error {
	f.deleteCalls = append(f.deleteCalls, fileID)
	return f.deleteErr
}

func (f *fakeAPI) Upload(ctx context.Context, localPath, name, folderID string) (string, error) {
	f.uploadCalls++
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return "https://drive.google.com/file/d/uploaded-" + name + "/view", nil
}

func (f *fakeAPI) Probe(ctx context.Context) error {
	return f.probeErr
}

// testOptions keeps retries and delays tiny so failure paths stay fast.
func testOptions() Options {
	return Options{
		Retry: resilience.Policy{
			MaxRetries:    1,
			InitialDelay:  time.Millisecond,
			MaxDelay:      5 * time.Millisecond,
			BackoffFactor: 2.0,
			Jitter:        false,
		},
		RateLimit:       1000,
		Burst:           1000,
		Breaker:         resilience.BreakerConfig{FailureThreshold: 100, ResetTimeout: time.Minute},
		UploadChunkSize: DefaultUploadChunkSize,
	}
}

func newTestService(t *testing.T, api API) *Service {
	t.Helper()
	dir := t.TempDir()
	tokens := NewTokenManager(TokenConfig{
		CredentialsPath: filepath.Join(dir, "credentials.json"),
		TokenPath:       filepath.Join(dir, "token.json"),
		RedirectURI:     "http://localhost:9085/oauth/callback",
	}, nil)
	svc := NewService(tokens, testOptions(), nil)
	svc.setAPI(api)
	return svc
}

func TestResolveOrCreateFolderEmptyPathResolvesToRoot(t *testing.T) {
	api := newFakeAPI()
	svc := newTestService(t, api)

	for _, path := range []string{"", "/", "///"} {
		id, err := svc.ResolveOrCreateFolder(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, RootFolderID, id)
	}

	assert.Zero(t, api.findFolderCalls, "root resolution must not hit the API")
	assert.Zero(t, api.createFolderCalls)
}

func TestResolveOrCreateFolderCreatesMissingSegments(t *testing.T) {
	api := newFakeAPI()
	api.folders["root/reports"] = "folder-reports-0001"
	svc := newTestService(t, api)

	id, err := svc.ResolveOrCreateFolder(context.Background(), "/reports/2026/august/")
	require.NoError(t, err)

	assert.Equal(t, "created-created-folder-reports-0001-2026-august", id)
	assert.Equal(t, []string{"folder-reports-0001/2026", "created-folder-reports-0001-2026/august"}, api.created)
}

func TestFolderIDByPathReportsMissingSegment(t *testing.T) {
	api := newFakeAPI()
	api.folders["root/reports"] = "folder-reports-0001"
	svc := newTestService(t, api)

	_, err := svc.FolderIDByPath(context.Background(), "reports/missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFolderNotFound)
	assert.Zero(t, api.createFolderCalls, "lookup must never create folders")
}

func TestUploadFileOverwriteDeletesExistingFirst(t *testing.T) {
	dir := t.TempDir()
	localPath := filepath.Join(dir, "match_report.pdf")
	require.NoError(t, os.WriteFile(localPath, []byte("report body"), 0o600))

	api := newFakeAPI()
	api.files["folder-dest-000001/match_report.pdf"] = "file-existing-0001"
	svc := newTestService(t, api)

	link, err := svc.UploadFile(context.Background(), localPath, "folder-dest-000001", true)
	require.NoError(t, err)

	assert.Contains(t, link, "uploaded-match_report.pdf")
	assert.Equal(t, []string{"file-existing-0001"}, api.deleteCalls)
	assert.Equal(t, 1, api.uploadCalls)
}

func TestUploadFileWithoutOverwriteSkipsLookup(t *testing.T) {
	dir := t.TempDir()
	localPath := filepath.Join(dir, "match_report.pdf")
	require.NoError(t, os.WriteFile(localPath, []byte("report body"), 0o600))

	api := newFakeAPI()
	api.files["folder-dest-000001/match_report.pdf"] = "file-existing-0001"
	svc := newTestService(t, api)

	_, err := svc.UploadFile(context.Background(), localPath, "folder-dest-000001", false)
	require.NoError(t, err)

	assert.Zero(t, api.findFileCalls, "no duplicate lookup without overwrite")
	assert.Empty(t, api.deleteCalls)
}

func TestUploadFileMissingSourceIsConfigError(t *testing.T) {
	svc := newTestService(t, newFakeAPI())

	_, err := svc.UploadFile(context.Background(), "/does/not/exist.pdf", "folder-dest-000001", false)
	require.Error(t, err)
	assert.Equal(t, resilience.ClassConfig, resilience.Classify(err))
}

func TestUploadFileRejectsShortFolderID(t *testing.T) {
	dir := t.TempDir()
	localPath := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(localPath, []byte("x"), 0o600))

	api := newFakeAPI()
	svc := newTestService(t, api)

	_, err := svc.UploadFile(context.Background(), localPath, "short", false)
	require.Error(t, err)
	assert.Equal(t, resilience.ClassConfig, resilience.Classify(err))
	assert.Zero(t, api.uploadCalls)
}

func TestUploadFileOverwriteProceedsWhenDeleteDenied(t *testing.T) {
	dir := t.TempDir()
	localPath := filepath.Join(dir, "locked.pdf")
	require.NoError(t, os.WriteFile(localPath, []byte("x"), 0o600))

	api := newFakeAPI()
	api.files["folder-dest-000001/locked.pdf"] = "file-existing-0001"
	api.deleteErr = &googleapi.Error{Code: 403, Message: "insufficient permissions"}
	svc := newTestService(t, api)

	link, err := svc.UploadFile(context.Background(), localPath, "folder-dest-000001", true)
	require.NoError(t, err)
	assert.NotEmpty(t, link)
	assert.Equal(t, 1, api.uploadCalls, "upload runs even when the pre-delete is refused")
}

func TestDeleteFileByIDTreats404AsDeleted(t *testing.T) {
	api := newFakeAPI()
	api.deleteErr = &googleapi.Error{Code: 404, Message: "not found"}
	svc := newTestService(t, api)

	deleted, err := svc.DeleteFileByID(context.Background(), "file-gone-000001")
	require.NoError(t, err)
	assert.True(t, deleted, "404 means the file is already gone")
	assert.Len(t, api.deleteCalls, 1, "404 must not be retried")
}

func TestDeleteFileByIDReports403WithoutError(t *testing.T) {
	api := newFakeAPI()
	api.deleteErr = &googleapi.Error{Code: 403, Message: "insufficient permissions"}
	svc := newTestService(t, api)

	deleted, err := svc.DeleteFileByID(context.Background(), "file-locked-0001")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Len(t, api.deleteCalls, 1, "permission denials must not be retried")
}

func TestDeleteFileByIDRejectsShortID(t *testing.T) {
	api := newFakeAPI()
	svc := newTestService(t, api)

	_, err := svc.DeleteFileByID(context.Background(), "abc")
	require.Error(t, err)
	assert.Equal(t, resilience.ClassConfig, resilience.Classify(err))
	assert.Empty(t, api.deleteCalls)
}

func TestDeleteFolderMissingPathIsNotAnError(t *testing.T) {
	api := newFakeAPI()
	svc := newTestService(t, api)

	deleted, err := svc.DeleteFolder(context.Background(), "no/such/folder")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Empty(t, api.deleteCalls)
}

func TestDeleteFolderRefusesRoot(t *testing.T) {
	api := newFakeAPI()
	svc := newTestService(t, api)

	deleted, err := svc.DeleteFolder(context.Background(), "///")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Empty(t, api.deleteCalls)
}

func TestDeleteFolderEmptyPathIsConfigError(t *testing.T) {
	svc := newTestService(t, newFakeAPI())

	_, err := svc.DeleteFolder(context.Background(), "   ")
	require.Error(t, err)
	assert.Equal(t, resilience.ClassConfig, resilience.Classify(err))
}

func TestDeleteFolderDeletesResolvedID(t *testing.T) {
	api := newFakeAPI()
	api.folders["root/reports"] = "folder-reports-0001"
	svc := newTestService(t, api)

	deleted, err := svc.DeleteFolder(context.Background(), "reports")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, []string{"folder-reports-0001"}, api.deleteCalls)
}

func TestAuthenticateMapsAuthFailureToErrAuthRequired(t *testing.T) {
	api := newFakeAPI()
	api.probeErr = &googleapi.Error{Code: 401, Message: "invalid credentials"}
	svc := newTestService(t, api)

	err := svc.Authenticate(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthRequired)
}

func TestAuthenticateSucceedsOnHealthyProbe(t *testing.T) {
	svc := newTestService(t, newFakeAPI())
	require.NoError(t, svc.Authenticate(context.Background()))
}

func TestBreakerStatsExposesAllClasses(t *testing.T) {
	svc := newTestService(t, newFakeAPI())

	stats := svc.BreakerStats()
	for _, class := range []string{"lookups", "mutations", "uploads"} {
		s, ok := stats[class]
		require.True(t, ok, "missing breaker for %s", class)
		assert.Equal(t, resilience.StateClosed, s.State)
	}
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	api := newFakeAPI()
	api.deleteErr = errors.New("backend exploded")
	svc := newTestService(t, api)
	svc.breakers["mutations"] = resilience.NewBreaker("mutations",
		resilience.BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute}, nil)
	svc.mutations = resilience.Compose(
		svc.breakers["mutations"],
		resilience.NewRetrier(testOptions().Retry, nil),
		resilience.NewLimiter(1000, 1000, nil),
	)

	for i := 0; i < 2; i++ {
		_, err := svc.DeleteFileByID(context.Background(), "file-doomed-0001")
		require.Error(t, err)
	}

	assert.Equal(t, resilience.StateOpen, svc.BreakerStats()["mutations"].State)

	_, err := svc.DeleteFileByID(context.Background(), "file-doomed-0001")
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)

	svc.ResetGuards()
	assert.Equal(t, resilience.StateClosed, svc.BreakerStats()["mutations"].State)
}

func TestSplitFolderPath(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"/", nil},
		{"a/b/c", []string{"a", "b", "c"}},
		{"/a//b/", []string{"a", "b"}},
	}
	for _, tc := range cases {
		got := splitFolderPath(tc.in)
		if len(tc.want) == 0 {
			assert.Empty(t, got, "path %q", tc.in)
			continue
		}
		assert.Equal(t, tc.want, got, "path %q", tc.in)
	}
}
