package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"notely/internal/models"
)

const noteColumns = `n.id, n.owner_id, n.title, n.content, n.created_at, n.updated_at, u.id, u.name, u.email`

type NoteRepository struct {
	db *DB
}

func NewNoteRepository(db *DB) *NoteRepository {
	return &NoteRepository{db: db}
}

func (r *NoteRepository) Create(ctx context.Context, ownerID, title, content string) (*models.Note, error) {
	id, err := GenerateID(PrefixNote)
	if err != nil {
		return nil, fmt.Errorf("generating note ID: %w", err)
	}
	now := time.Now().UTC()

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO notes (id, owner_id, title, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, ownerID, title, content, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating note: %w", err)
	}

	return &models.Note{
		ID:        id,
		OwnerID:   ownerID,
		Title:     title,
		Content:   content,
		CreatedAt: now,
	}, nil
}

func (r *NoteRepository) FindByID(ctx context.Context, id string) (*models.Note, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes n JOIN users u ON u.id = n.owner_id WHERE n.id = ?`,
		id,
	)

	note, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying note: %w", err)
	}
	return note, nil
}

// DeleteOwned removes the note only when ownerID owns it. A missing note and a
// foreign note both return ErrNotFound.
func (r *NoteRepository) DeleteOwned(ctx context.Context, id, ownerID string) (*models.Note, error) {
	note, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if note.OwnerID != ownerID {
		return nil, ErrNotFound
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("deleting note: %w", err)
	}
	if err := requireRows(result); err != nil {
		return nil, err
	}

	return note, nil
}

// Search returns one page of notes matching q, newest first, and the total
// number of matches across all pages.
func (r *NoteRepository) Search(ctx context.Context, q models.NoteQuery) ([]models.Note, int, error) {
	where, args := noteWhereClause(q)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes n`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting notes: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}
	pageArgs := append(append([]any{}, args...), limit, q.Offset)

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes n JOIN users u ON u.id = n.owner_id`+where+
			` ORDER BY n.created_at DESC, n.id DESC LIMIT ? OFFSET ?`,
		pageArgs...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("querying notes: %w", err)
	}
	defer rows.Close()

	notes := make([]models.Note, 0)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning note: %w", err)
		}
		notes = append(notes, *note)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating notes: %w", err)
	}

	return notes, total, nil
}

// FindByIDs loads notes in the order of ids, skipping any that no longer exist.
func (r *NoteRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Note, error) {
	if len(ids) == 0 {
		return []models.Note{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes n JOIN users u ON u.id = n.owner_id WHERE n.id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("querying notes by id: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]models.Note, len(ids))
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		byID[note.ID] = *note
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notes: %w", err)
	}

	notes := make([]models.Note, 0, len(byID))
	for _, id := range ids {
		if note, ok := byID[id]; ok {
			notes = append(notes, note)
		}
	}
	return notes, nil
}

func noteWhereClause(q models.NoteQuery) (string, []any) {
	var clauses []string
	var args []any

	if q.OwnerID != "" {
		clauses = append(clauses, "n.owner_id = ?")
		args = append(args, q.OwnerID)
	}
	if q.Title != "" {
		clauses = append(clauses, `unicode_lower(n.title) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(q.Title))+"%")
	}
	if q.From != nil {
		clauses = append(clauses, "n.created_at >= ?")
		args = append(args, q.From.UTC())
	}
	if q.To != nil {
		clauses = append(clauses, "n.created_at <= ?")
		args = append(args, q.To.UTC())
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*models.Note, error) {
	var n models.Note
	var owner models.NoteOwner
	var updatedAt sql.NullTime

	if err := row.Scan(
		&n.ID,
		&n.OwnerID,
		&n.Title,
		&n.Content,
		&n.CreatedAt,
		&updatedAt,
		&owner.ID,
		&owner.Name,
		&owner.Email,
	); err != nil {
		return nil, err
	}

	n.UpdatedAt = timePtr(updatedAt)
	n.Owner = &owner

	return &n, nil
}
