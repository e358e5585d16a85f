package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	gferrors "github.com/fulmenhq/gofulmen/errors"

	"github.com/PitchConnect/google-drive-service/internal/drive"
	apperrors "github.com/PitchConnect/google-drive-service/internal/errors"
)

// maxUploadMemory bounds how much of a multipart body is held in memory
// before spilling to disk (32 MiB, the net/http default).
const maxUploadMemory = 32 << 20

// UploadResponse is the success payload of POST /upload_file.
type UploadResponse struct {
	Status        string `json:"status"`
	FileURL       string `json:"file_url"`
	FileName      string `json:"file_name"`
	FolderPath    string `json:"folder_path"`
	OverwriteMode bool   `json:"overwrite_mode"`
}

// UploadFileHandler accepts a multipart upload and stores the file in the
// Drive folder path, creating missing folders. The overwrite field defaults
// to true; only the literal string "false" disables it.
func UploadFileHandler(w http.ResponseWriter, r *http.Request) {
	svc := requireDrive()
	if svc == nil {
		respondWithError(w, r, gferrors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "Drive service is not configured"))
		return
	}
	if !svc.HasToken() {
		respondWithError(w, r, apperrors.NewUnauthorizedError(
			"Not authenticated with Google Drive, visit /authorize_gdrive first"))
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		respondWithError(w, r, apperrors.WrapValidationError(r.Context(), err,
			"Request body must be multipart/form-data"))
		return
	}

	var missing []string
	file, header, err := r.FormFile("file")
	if err != nil {
		missing = append(missing, "file")
	} else {
		defer func() { _ = file.Close() }()
	}
	folderPath := strings.TrimSpace(r.FormValue("folder_path"))
	if folderPath == "" {
		missing = append(missing, "folder_path")
	}
	if len(missing) > 0 {
		envelope := apperrors.NewValidationError("Missing required fields")
		envelope = envelope.WithDetails(map[string]interface{}{
			"missing_fields": missing,
		})
		respondWithError(w, r, envelope)
		return
	}

	// Only the literal "false" disables overwrite; anything else keeps the
	// default so a typo cannot silently create duplicates.
	overwrite := r.FormValue("overwrite") != "false"

	localPath, cleanup, err := spoolUpload(file, header.Filename)
	if err != nil {
		respondWithError(w, r, apperrors.WrapInternal(r.Context(), err,
			"Failed to stage the uploaded file"))
		return
	}
	defer cleanup()

	folderID, err := svc.ResolveOrCreateFolder(r.Context(), folderPath)
	if err != nil {
		respondDriveError(w, r, err, "Failed to resolve the destination folder")
		return
	}

	link, err := svc.UploadFile(r.Context(), localPath, folderID, overwrite)
	if err != nil {
		respondDriveError(w, r, err, "Failed to upload the file to Google Drive")
		return
	}

	response := UploadResponse{
		Status:        "success",
		FileURL:       link,
		FileName:      filepath.Base(header.Filename),
		FolderPath:    folderPath,
		OverwriteMode: overwrite,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// DeleteFolderHandler removes a Drive folder addressed by path. A path that
// does not resolve reports 404; deleting the root is refused the same way.
func DeleteFolderHandler(w http.ResponseWriter, r *http.Request) {
	svc := requireDrive()
	if svc == nil {
		respondWithError(w, r, gferrors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "Drive service is not configured"))
		return
	}
	if !svc.HasToken() {
		respondWithError(w, r, apperrors.NewUnauthorizedError(
			"Not authenticated with Google Drive, visit /authorize_gdrive first"))
		return
	}

	folderPath := extractFolderPath(r)
	if folderPath == "" {
		respondWithError(w, r, apperrors.NewValidationError("Missing required field: folder_path"))
		return
	}

	deleted, err := svc.DeleteFolder(r.Context(), folderPath)
	if err != nil {
		respondDriveError(w, r, err, "Failed to delete the folder")
		return
	}
	if !deleted {
		respondWithError(w, r, apperrors.NewNotFoundError("Folder not found or cannot be deleted"))
		return
	}

	response := map[string]string{
		"status":  "success",
		"message": "Folder deleted: " + folderPath,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// spoolUpload writes the multipart part to a temp directory under the
// original filename, so the Drive upload carries the right name. cleanup
// removes the whole directory.
func spoolUpload(src io.Reader, filename string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "gdrive-upload-")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	name := filepath.Base(filename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "upload"
	}
	localPath := filepath.Join(dir, name)

	out, err := os.Create(localPath)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		cleanup()
		return "", nil, err
	}
	if err := out.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return localPath, cleanup, nil
}

// extractFolderPath pulls folder_path from a JSON body or form data.
func extractFolderPath(r *http.Request) string {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		var body struct {
			FolderPath string `json:"folder_path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			return strings.TrimSpace(body.FolderPath)
		}
		return ""
	}
	if err := r.ParseForm(); err != nil {
		return ""
	}
	return strings.TrimSpace(r.FormValue("folder_path"))
}

// respondDriveError maps a failed facade call onto the HTTP error taxonomy.
func respondDriveError(w http.ResponseWriter, r *http.Request, err error, message string) {
	if errors.Is(err, drive.ErrAuthRequired) {
		respondWithError(w, r, apperrors.WrapUnauthorized(r.Context(), err,
			"Google Drive authorization has expired, visit /authorize_gdrive"))
		return
	}
	respondWithError(w, r, apperrors.FromDriveError(r.Context(), err, message))
}
