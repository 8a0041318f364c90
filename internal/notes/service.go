// Package notes implements note creation, owner-scoped deletion, paginated
// search and AI summaries on top of the note store.
package notes

import (
	"context"
	"errors"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"notely/internal/apperr"
	"notely/internal/constants"
	"notely/internal/db"
	"notely/internal/models"
)

const summaryPrompt = "Summarize the following note with the same the language of content:\n\n"

type Store interface {
	Create(ctx context.Context, ownerID, title, content string) (*models.Note, error)
	FindByID(ctx context.Context, id string) (*models.Note, error)
	DeleteOwned(ctx context.Context, id, ownerID string) (*models.Note, error)
	Search(ctx context.Context, q models.NoteQuery) ([]models.Note, int, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Note, error)
}

// Summarizer turns a prompt into generated text.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// Index is an optional full-text index kept alongside the store.
type Index interface {
	IndexNote(ctx context.Context, note models.Note) error
	DeleteNote(ctx context.Context, id string) error
	SearchIDs(ctx context.Context, q models.NoteQuery) ([]string, int, error)
}

type Service struct {
	store      Store
	summarizer Summarizer
	index      Index
	sanitizer  *bluemonday.Policy
	logger     *slog.Logger
}

// NewService builds a note service. summarizer and index may be nil.
func NewService(store Store, summarizer Summarizer, index Index, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		summarizer: summarizer,
		index:      index,
		sanitizer:  bluemonday.StrictPolicy(),
		logger:     logger.With("component", "notes"),
	}
}

type CreateInput struct {
	Title   string `json:"title" validate:"required,min=3,max=100"`
	Content string `json:"content" validate:"required,min=5"`
}

type Filter struct {
	UserID string
	Title  string
	From   *time.Time
	To     *time.Time
	Page   int
	Limit  int
}

type Page struct {
	Notes       []models.Note `json:"notes"`
	TotalCount  int           `json:"totalCount"`
	CurrentPage int           `json:"currentPage"`
	TotalPages  int           `json:"totalPages"`
}

func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (*models.Note, error) {
	in.Title = s.clean(in.Title)
	in.Content = s.clean(in.Content)
	if err := apperr.ValidateStruct(in); err != nil {
		return nil, err
	}

	note, err := s.store.Create(ctx, ownerID, in.Title, in.Content)
	if err != nil {
		return nil, apperr.Internal("creating note", err)
	}

	if s.index != nil {
		if err := s.index.IndexNote(ctx, *note); err != nil {
			s.logger.Warn("failed to index note", "note_id", note.ID, "error", err)
		}
	}

	return note, nil
}

func (s *Service) Delete(ctx context.Context, id, ownerID string) (*models.Note, error) {
	note, err := s.store.DeleteOwned(ctx, id, ownerID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "Note not found or you do not have permission to delete this note")
	}
	if err != nil {
		return nil, apperr.Internal("deleting note", err)
	}

	if s.index != nil {
		if err := s.index.DeleteNote(ctx, note.ID); err != nil {
			s.logger.Warn("failed to remove note from index", "note_id", note.ID, "error", err)
		}
	}

	return note, nil
}

func (s *Service) Summarize(ctx context.Context, id string) (string, error) {
	note, err := s.store.FindByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return "", apperr.New(apperr.KindNotFound, "Note not found")
	}
	if err != nil {
		return "", apperr.Internal("finding note", err)
	}

	if s.summarizer == nil {
		return "", apperr.Internal("summarizing note", errors.New("summarizer not configured"))
	}

	summary, err := s.summarizer.Summarize(ctx, summaryPrompt+note.Content)
	if err != nil {
		return "", apperr.Internal("summarizing note", err)
	}

	return summary, nil
}

// Search returns one page of notes, newest first. A UserID that is not a
// well-formed user ID is ignored rather than rejected.
func (s *Service) Search(ctx context.Context, f Filter) (*Page, error) {
	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit < 1 {
		limit = constants.DefaultNotesPageLimit
	}
	if limit > constants.MaxNotesPageLimit {
		limit = constants.MaxNotesPageLimit
	}

	q := models.NoteQuery{
		Title:  strings.TrimSpace(f.Title),
		From:   f.From,
		To:     f.To,
		Offset: (page - 1) * limit,
		Limit:  limit,
	}
	if db.IsValidID(db.PrefixUser, f.UserID) {
		q.OwnerID = f.UserID
	}

	notes, total, err := s.search(ctx, q)
	if err != nil {
		return nil, apperr.Internal("searching notes", err)
	}

	return &Page{
		Notes:       notes,
		TotalCount:  total,
		CurrentPage: page,
		TotalPages:  (total + limit - 1) / limit,
	}, nil
}

func (s *Service) search(ctx context.Context, q models.NoteQuery) ([]models.Note, int, error) {
	if s.index == nil || q.Title == "" {
		return s.store.Search(ctx, q)
	}

	ids, total, err := s.index.SearchIDs(ctx, q)
	if err != nil {
		s.logger.Warn("index search failed, falling back to store", "error", err)
		return s.store.Search(ctx, q)
	}

	notes, err := s.store.FindByIDs(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	return notes, total, nil
}

// clean strips all markup and leaves plain text.
func (s *Service) clean(in string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(in)))
}
