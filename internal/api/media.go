package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"notely/internal/blob"
	"notely/internal/db"
)

type MediaHandler struct {
	blobRepo *db.BlobRepository
	blobs    blob.Store
}

func NewMediaHandler(blobRepo *db.BlobRepository, blobs blob.Store) *MediaHandler {
	return &MediaHandler{blobRepo: blobRepo, blobs: blobs}
}

// GET /media/{blobID}
func (h *MediaHandler) GetBlob(w http.ResponseWriter, r *http.Request) {
	blobID := strings.TrimSpace(chi.URLParam(r, "blobID"))
	if !db.IsValidID(db.PrefixBlob, blobID) {
		notFound(w, "Media not found")
		return
	}

	if match := r.Header.Get("If-None-Match"); match != "" && match == etagFor(blobID) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	row, err := h.blobRepo.FindByID(r.Context(), blobID)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Media not found")
		return
	}
	if err != nil {
		slog.Error("error finding blob", "error", err, "blob_id", blobID)
		internalError(w)
		return
	}

	file, err := h.blobs.Open(r.Context(), row.StoragePath)
	if errors.Is(err, blob.ErrNotFound) {
		notFound(w, "Media not found")
		return
	}
	if err != nil {
		slog.Error("error opening blob", "error", err, "blob_id", blobID)
		internalError(w)
		return
	}
	defer file.Close()

	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("ETag", etagFor(row.ID))
	w.Header().Set("Content-Type", row.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(row.SizeBytes, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=\"%s\"", sanitizeDispositionFilename(row.OriginalName)))
	// Profile pictures are embedded by front ends served from other origins.
	w.Header().Set("Cross-Origin-Resource-Policy", "cross-origin")
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, file); err != nil {
		slog.Warn("error streaming blob", "error", err, "blob_id", blobID)
	}
}

func etagFor(blobID string) string {
	return fmt.Sprintf("\"%s\"", blobID)
}

func sanitizeDispositionFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "download"
	}
	name = strings.ReplaceAll(name, "\\", "")
	name = strings.ReplaceAll(name, "\"", "")
	name = strings.ReplaceAll(name, "\r", "")
	name = strings.ReplaceAll(name, "\n", "")
	if name == "" {
		return "download"
	}
	return name
}
