package db

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"notely/internal/constants"
)

const (
	PrefixUser      = "usr"
	PrefixNote      = "nte"
	PrefixResetCode = "rst"
	PrefixBlob      = "blb"
)

func GenerateID(prefix string) (string, error) {
	b := make([]byte, constants.IDRandomBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return prefix + "_" + hex.EncodeToString(b), nil
}

// IsValidID reports whether id has the given prefix followed by lowercase hex
// of the expected length.
func IsValidID(prefix, id string) bool {
	if !strings.HasPrefix(id, prefix+"_") {
		return false
	}

	hexPart := strings.TrimPrefix(id, prefix+"_")
	if len(hexPart) != constants.IDRandomBytes*2 {
		return false
	}

	for _, r := range hexPart {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}

	return true
}
