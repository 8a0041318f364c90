// Package mediaurl builds and parses the public URLs stored for uploaded blobs.
package mediaurl

import (
	"net/url"
	"strings"

	"notely/internal/db"
)

const PathPrefix = "/media/"

func Blob(baseURL, blobID string) string {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	return baseURL + PathPrefix + blobID
}

// ParseBlobID extracts the blob ID from a URL produced by Blob, with or
// without the base URL. Anything else, including external picture URLs,
// reports false.
func ParseBlobID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	blobID, ok := strings.CutPrefix(u.Path, PathPrefix)
	if !ok || !db.IsValidID(db.PrefixBlob, blobID) {
		return "", false
	}

	return blobID, true
}
