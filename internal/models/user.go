package models

import "time"

type User struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"`
	ProfilePicture *string    `json:"profilePicture,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"`
}

func (u *User) GetProfilePicture() string {
	if u.ProfilePicture != nil {
		return *u.ProfilePicture
	}
	return ""
}

// ResetCode is a one-time password-reset code. Only the hash of the code is stored.
type ResetCode struct {
	ID        string
	Email     string
	CodeHash  string
	Attempts  int
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

type RevokedToken struct {
	TokenID   string
	RevokedAt time.Time
	ExpiresAt time.Time
}

type Blob struct {
	ID           string
	Kind         string
	UploadedBy   string
	StoragePath  string
	MimeType     string
	SizeBytes    int64
	OriginalName string
	CreatedAt    time.Time
}
