package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStore keeps blobs under a root directory, sharded by the first two
// characters of the blob ID.
type LocalStore struct {
	root     string
	maxBytes int64
}

func NewLocalStore(root string, maxUploadBytes int64) (*LocalStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("blob root directory is required")
	}
	if maxUploadBytes <= 0 {
		return nil, fmt.Errorf("max upload bytes must be > 0")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob root directory: %w", err)
	}

	return &LocalStore{root: root, maxBytes: maxUploadBytes}, nil
}

func (s *LocalStore) MaxUploadBytes() int64 {
	return s.maxBytes
}

func (s *LocalStore) Save(_ context.Context, kind Kind, originalName string, src io.Reader) (*StoredBlob, error) {
	mimeType, content, err := sniffUpload(kind, src)
	if err != nil {
		return nil, err
	}

	blobID, err := newBlobID()
	if err != nil {
		return nil, err
	}

	relPath := blobRelativePath(kind, blobID)
	target, err := s.abs(relPath)
	if err != nil {
		return nil, err
	}

	size, err := s.writeAtomically(target, content)
	if err != nil {
		return nil, err
	}

	return &StoredBlob{
		ID:           blobID,
		Kind:         kind,
		StoragePath:  relPath,
		MimeType:     mimeType,
		SizeBytes:    size,
		OriginalName: sanitizeOriginalName(originalName),
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// writeAtomically copies at most maxBytes into a temp file beside target and
// renames it into place. A partially written or oversized file never becomes
// visible under target.
func (s *LocalStore) writeAtomically(target string, content io.Reader) (int64, error) {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("creating blob directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(target)+".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("creating temporary blob file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	n, err := io.Copy(tmp, io.LimitReader(content, s.maxBytes+1))
	if err != nil {
		return 0, fmt.Errorf("writing blob file: %w", err)
	}
	if n > s.maxBytes {
		return 0, ErrFileTooLarge
	}
	if err := tmp.Sync(); err != nil {
		return 0, fmt.Errorf("syncing blob file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("closing blob file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return 0, fmt.Errorf("moving blob into place: %w", err)
	}

	return n, nil
}

func (s *LocalStore) Open(_ context.Context, storagePath string) (io.ReadCloser, error) {
	path, err := s.abs(storagePath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("opening blob file: %w", err)
	}
	return f, nil
}

// Delete is idempotent: a missing file is not an error.
func (s *LocalStore) Delete(_ context.Context, storagePath string) error {
	path, err := s.abs(storagePath)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting blob file: %w", err)
	}
	return nil
}

func (s *LocalStore) abs(storagePath string) (string, error) {
	clean, err := cleanStoragePath(storagePath)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}
