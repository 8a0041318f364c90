// Package blob stores uploaded files. LocalStore keeps them on disk and
// S3Store in an S3-compatible bucket; both validate content the same way.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"notely/internal/db"
)

type Kind string

const (
	KindProfilePicture Kind = "profile_picture"
)

var (
	ErrFileTooLarge   = errors.New("blob file too large")
	ErrInvalidKind    = errors.New("invalid blob kind")
	ErrDisallowedType = errors.New("disallowed blob mime type")
	ErrExecutableFile = errors.New("executable files are not allowed")
	ErrInvalidPath    = errors.New("invalid blob path")
	ErrNotFound       = errors.New("blob not found")
)

type StoredBlob struct {
	ID           string
	Kind         Kind
	StoragePath  string
	MimeType     string
	SizeBytes    int64
	OriginalName string
	CreatedAt    time.Time
}

type Store interface {
	Save(ctx context.Context, kind Kind, originalName string, src io.Reader) (*StoredBlob, error)
	Open(ctx context.Context, storagePath string) (io.ReadCloser, error)
	Delete(ctx context.Context, storagePath string) error
	MaxUploadBytes() int64
}

// allowedTypes lists the sniffed MIME types accepted per kind. A kind
// missing from the map is invalid.
var allowedTypes = map[Kind][]string{
	KindProfilePicture: {"image/jpeg", "image/png"},
}

// executableMagics are leading bytes of PE, ELF, Mach-O (both byte orders,
// 32/64-bit and fat) and shebang scripts.
var executableMagics = [][]byte{
	[]byte("MZ"),
	[]byte("#!"),
	{0x7f, 'E', 'L', 'F'},
	{0xfe, 0xed, 0xfa, 0xce},
	{0xce, 0xfa, 0xed, 0xfe},
	{0xfe, 0xed, 0xfa, 0xcf},
	{0xcf, 0xfa, 0xed, 0xfe},
	{0xca, 0xfe, 0xba, 0xbe},
	{0xbe, 0xba, 0xfe, 0xca},
}

// sniffUpload reads the head of src, rejects executables and content not
// allowed for kind, and returns the detected MIME type together with a reader
// that replays the full stream.
func sniffUpload(kind Kind, src io.Reader) (string, io.Reader, error) {
	allowed, ok := allowedTypes[kind]
	if !ok {
		return "", nil, ErrInvalidKind
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(src, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, fmt.Errorf("reading blob data: %w", err)
	}
	head = head[:n]

	for _, magic := range executableMagics {
		if bytes.HasPrefix(head, magic) {
			return "", nil, ErrExecutableFile
		}
	}

	mimeType := "application/octet-stream"
	if len(head) > 0 {
		if mt, _, err := mime.ParseMediaType(http.DetectContentType(head)); err == nil {
			mimeType = mt
		}
	}
	if !slices.Contains(allowed, mimeType) {
		return "", nil, ErrDisallowedType
	}

	return mimeType, io.MultiReader(bytes.NewReader(head), src), nil
}

func newBlobID() (string, error) {
	id, err := db.GenerateID(db.PrefixBlob)
	if err != nil {
		return "", fmt.Errorf("generating blob id: %w", err)
	}
	return id, nil
}

// blobRelativePath shards by the first two characters of the random part:
// profile_picture/ab/blb_ab12...
func blobRelativePath(kind Kind, blobID string) string {
	shard := "xx"
	if random := strings.TrimPrefix(blobID, db.PrefixBlob+"_"); len(random) >= 2 {
		shard = random[:2]
	}
	return path.Join(string(kind), shard, blobID)
}

func cleanStoragePath(storagePath string) (string, error) {
	clean := path.Clean(filepath.ToSlash(storagePath))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") || path.IsAbs(clean) {
		return "", ErrInvalidPath
	}
	return clean, nil
}

func sanitizeOriginalName(name string) string {
	const maxLen = 255

	name = strings.TrimSpace(filepath.Base(name))
	switch {
	case name == "" || name == "." || name == string(filepath.Separator):
		return "upload.bin"
	case len(name) > maxLen:
		return name[:maxLen]
	default:
		return name
	}
}
