package models

import "time"

type Note struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"ownerId"`
	Owner     *NoteOwner `json:"owner,omitempty"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// NoteOwner is the public projection of a note's author.
type NoteOwner struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NoteQuery is the storage-level note filter. Zero values disable a clause.
type NoteQuery struct {
	OwnerID string
	Title   string
	From    *time.Time
	To      *time.Time
	Offset  int
	Limit   int
}
