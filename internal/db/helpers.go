package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")
)

// insertError maps a failed INSERT onto ErrDuplicate when a UNIQUE or
// PRIMARY KEY constraint rejected the row, and wraps anything else.
func insertError(err error, action string) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return ErrDuplicate
		}
	}
	return fmt.Errorf("%s: %w", action, err)
}

func timePtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

func stringPtr(ns sql.NullString) *string {
	if ns.Valid {
		return &ns.String
	}
	return nil
}

// requireRows turns a zero-row UPDATE or DELETE into ErrNotFound.
func requireRows(result sql.Result) error {
	n, err := result.RowsAffected()
	switch {
	case err != nil:
		return fmt.Errorf("reading affected rows: %w", err)
	case n == 0:
		return ErrNotFound
	default:
		return nil
	}
}
