package api

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"notely/internal/auth"
	"notely/internal/blob"
	"notely/internal/constants"
	"notely/internal/db"
	"notely/internal/mediaurl"
	"notely/internal/models"
)

const (
	profilePictureField = "profilePic"
	// multipartOverheadBytes covers boundaries and part headers on top of
	// the file itself.
	multipartOverheadBytes = 64 << 10
)

type UploadHandler struct {
	manager  *auth.Manager
	blobs    blob.Store
	blobRepo *db.BlobRepository
	baseURL  string
}

func NewUploadHandler(manager *auth.Manager, blobs blob.Store, blobRepo *db.BlobRepository, baseURL string) *UploadHandler {
	return &UploadHandler{
		manager:  manager,
		blobs:    blobs,
		blobRepo: blobRepo,
		baseURL:  baseURL,
	}
}

// PATCH /auth/upload-profile-pic
func (h *UploadHandler) UploadProfilePicture(w http.ResponseWriter, r *http.Request) {
	session := GetSession(r)
	if session == nil {
		writeError(w, http.StatusUnauthorized, constants.ErrCodeUnauthenticated, "No access token provided")
		return
	}

	maxBytes := h.blobs.MaxUploadBytes()
	file, fileHeader, cleanup, ok := readSingleFileUpload(w, r, profilePictureField, maxBytes+multipartOverheadBytes)
	if !ok {
		return
	}
	defer cleanup()
	defer file.Close()

	if fileHeader.Size > maxBytes {
		payloadTooLarge(w, "File exceeds maximum upload size")
		return
	}

	normalized, err := blob.NormalizeProfilePicture(file, blob.DefaultProfilePictureMaxEdge, blob.DefaultProfilePictureQuality)
	if !handleImageNormalizeError(w, err) {
		return
	}

	stored, err := h.blobs.Save(r.Context(), blob.KindProfilePicture, fileHeader.Filename, bytes.NewReader(normalized.Data))
	if !handleBlobSaveError(w, err) {
		return
	}

	err = h.blobRepo.Create(r.Context(), &models.Blob{
		ID:           stored.ID,
		Kind:         string(stored.Kind),
		UploadedBy:   session.User.ID,
		StoragePath:  stored.StoragePath,
		MimeType:     stored.MimeType,
		SizeBytes:    stored.SizeBytes,
		OriginalName: stored.OriginalName,
		CreatedAt:    stored.CreatedAt,
	})
	if err != nil {
		_ = h.blobs.Delete(r.Context(), stored.StoragePath)
		slog.Error("error creating profile picture blob record", "error", err, "user_id", session.User.ID)
		internalError(w)
		return
	}

	oldBlobID := ""
	if session.User.ProfilePicture != nil {
		if blobID, ok := mediaurl.ParseBlobID(*session.User.ProfilePicture); ok {
			oldBlobID = blobID
		}
	}

	user, err := h.manager.UpdateProfilePicture(r.Context(), session, mediaurl.Blob(h.baseURL, stored.ID))
	if err != nil {
		h.deleteBlobByIDBestEffort(r.Context(), stored.ID)
		writeAppError(w, r, err)
		return
	}

	if oldBlobID != "" && oldBlobID != stored.ID {
		h.deleteBlobByIDBestEffort(r.Context(), oldBlobID)
	}

	writeJSON(w, http.StatusOK, UserResponse{
		Message: "Profile picture uploaded successfully",
		User:    *user,
	})
}

// deleteBlobByIDBestEffort removes a profile picture row and its stored
// bytes. Failures are only logged; the cleanup service sweeps leftovers.
func (h *UploadHandler) deleteBlobByIDBestEffort(ctx context.Context, blobID string) {
	row, err := h.blobRepo.FindByID(ctx, blobID)
	if err != nil {
		return
	}
	if row.Kind != string(blob.KindProfilePicture) {
		return
	}

	if err := h.blobRepo.Delete(ctx, blobID); err != nil {
		slog.Warn("error deleting blob record", "error", err, "blob_id", blobID)
		return
	}

	if err := h.blobs.Delete(ctx, row.StoragePath); err != nil {
		slog.Warn("error deleting blob file", "error", err, "blob_id", blobID)
	}
}

func readSingleFileUpload(
	w http.ResponseWriter,
	r *http.Request,
	field string,
	maxBytes int64,
) (multipart.File, *multipart.FileHeader, func(), bool) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(nil, r.Body, maxBytes)
	}

	err := r.ParseMultipartForm(1 << 20)
	if err != nil {
		if isBodyTooLargeError(err) {
			payloadTooLarge(w, "File exceeds maximum upload size")
		} else {
			badRequest(w, "Invalid multipart upload")
		}
		return nil, nil, func() {}, false
	}

	cleanup := func() {
		if r.MultipartForm != nil {
			r.MultipartForm.RemoveAll()
		}
	}

	file, fileHeader, err := r.FormFile(field)
	if err != nil {
		badRequest(w, "File field '"+field+"' is required")
		cleanup()
		return nil, nil, func() {}, false
	}

	if fileHeader == nil || strings.TrimSpace(fileHeader.Filename) == "" {
		file.Close()
		cleanup()
		badRequest(w, "File name is required")
		return nil, nil, func() {}, false
	}

	return file, fileHeader, cleanup, true
}

func handleBlobSaveError(w http.ResponseWriter, err error) bool {
	if err == nil {
		return true
	}

	if errors.Is(err, blob.ErrFileTooLarge) {
		payloadTooLarge(w, "File exceeds maximum upload size")
		return false
	}
	if errors.Is(err, blob.ErrDisallowedType) {
		badRequest(w, "Invalid file type. Only JPEG and PNG images are allowed")
		return false
	}
	if errors.Is(err, blob.ErrExecutableFile) {
		badRequest(w, "Executable files are not allowed")
		return false
	}

	slog.Error("error saving blob", "error", err)
	internalError(w)
	return false
}

func handleImageNormalizeError(w http.ResponseWriter, err error) bool {
	if err == nil {
		return true
	}

	if errors.Is(err, blob.ErrInvalidImage) {
		badRequest(w, "Invalid file type. Only JPEG and PNG images are allowed")
		return false
	}

	slog.Error("error normalizing image", "error", err)
	internalError(w)
	return false
}

func isBodyTooLargeError(err error) bool {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "request body too large")
}
