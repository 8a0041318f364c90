package constants

import "time"

const (
	// IDRandomBytes is the number of random bytes behind every prefixed ID.
	IDRandomBytes = 12

	DefaultNotesPageLimit = 10
	MaxNotesPageLimit     = 100

	ResetCodeTTL    = 15 * time.Minute
	ResetCodeDigits = 6

	ProfilePictureMaxBytes = 5 << 20
)
