// Package graph exposes the note search as a GraphQL schema.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/handler"

	"notely/internal/apperr"
	"notely/internal/models"
	"notely/internal/notes"
)

const dateOnlyLayout = "2006-01-02"

// NoteSearcher answers paginated note queries.
type NoteSearcher interface {
	Search(ctx context.Context, f notes.Filter) (*notes.Page, error)
}

var userType = graphql.NewObject(graphql.ObjectConfig{
	Name: "User",
	Fields: graphql.Fields{
		"_id":   &graphql.Field{Type: graphql.ID},
		"name":  &graphql.Field{Type: graphql.String},
		"email": &graphql.Field{Type: graphql.String},
	},
})

var noteType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Note",
	Fields: graphql.Fields{
		"_id":       &graphql.Field{Type: graphql.ID},
		"title":     &graphql.Field{Type: graphql.String},
		"content":   &graphql.Field{Type: graphql.String},
		"createdAt": &graphql.Field{Type: graphql.String},
		"ownerId":   &graphql.Field{Type: userType},
	},
})

var paginatedNotesType = graphql.NewObject(graphql.ObjectConfig{
	Name: "PaginatedNotes",
	Fields: graphql.Fields{
		"notes":       &graphql.Field{Type: graphql.NewList(noteType)},
		"totalCount":  &graphql.Field{Type: graphql.Int},
		"currentPage": &graphql.Field{Type: graphql.Int},
		"totalPages":  &graphql.Field{Type: graphql.Int},
	},
})

// NewSchema builds the schema with a single root query, notes.
func NewSchema(searcher NoteSearcher) (graphql.Schema, error) {
	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "RootQueryType",
		Fields: graphql.Fields{
			"notes": &graphql.Field{
				Type: paginatedNotesType,
				Args: graphql.FieldConfigArgument{
					"userId": &graphql.ArgumentConfig{Type: graphql.String},
					"title":  &graphql.ArgumentConfig{Type: graphql.String},
					"from":   &graphql.ArgumentConfig{Type: graphql.String},
					"to":     &graphql.ArgumentConfig{Type: graphql.String},
					"page":   &graphql.ArgumentConfig{Type: graphql.Int},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return resolveNotes(p.Context, searcher, p.Args)
				},
			},
		},
	})

	schema, err := graphql.NewSchema(graphql.SchemaConfig{Query: query})
	if err != nil {
		return graphql.Schema{}, fmt.Errorf("building notes schema: %w", err)
	}
	return schema, nil
}

// NewHandler serves the schema over HTTP, with GraphiQL for browsers.
func NewHandler(searcher NoteSearcher) (*handler.Handler, error) {
	schema, err := NewSchema(searcher)
	if err != nil {
		return nil, err
	}

	return handler.New(&handler.Config{
		Schema:   &schema,
		Pretty:   true,
		GraphiQL: true,
	}), nil
}

func resolveNotes(ctx context.Context, searcher NoteSearcher, args map[string]any) (any, error) {
	filter := notes.Filter{
		UserID: stringArg(args, "userId"),
		Title:  stringArg(args, "title"),
		Page:   intArg(args, "page"),
		Limit:  intArg(args, "limit"),
	}

	var err error
	if filter.From, err = dateArg(args, "from"); err != nil {
		return nil, publicError(err)
	}
	if filter.To, err = dateArg(args, "to"); err != nil {
		return nil, publicError(err)
	}

	page, err := searcher.Search(ctx, filter)
	if err != nil {
		return nil, publicError(err)
	}

	items := make([]map[string]any, 0, len(page.Notes))
	for _, n := range page.Notes {
		items = append(items, noteToMap(n))
	}

	return map[string]any{
		"notes":       items,
		"totalCount":  page.TotalCount,
		"currentPage": page.CurrentPage,
		"totalPages":  page.TotalPages,
	}, nil
}

// publicError strips causes from resolver errors; GraphQL reports the
// message verbatim to the client.
func publicError(err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Kind != apperr.KindInternal {
		return errors.New(appErr.Message)
	}
	slog.Error("notes query failed", "component", "graphql", "error", err)
	return errors.New("An internal error occurred")
}

func noteToMap(n models.Note) map[string]any {
	out := map[string]any{
		"_id":       n.ID,
		"title":     n.Title,
		"content":   n.Content,
		"createdAt": n.CreatedAt.UTC().Format(time.RFC3339),
	}
	if n.Owner != nil {
		out["ownerId"] = map[string]any{
			"_id":   n.Owner.ID,
			"name":  n.Owner.Name,
			"email": n.Owner.Email,
		}
	}
	return out
}

func stringArg(args map[string]any, name string) string {
	v, _ := args[name].(string)
	return strings.TrimSpace(v)
}

func intArg(args map[string]any, name string) int {
	v, _ := args[name].(int)
	return v
}

// dateArg accepts RFC 3339 timestamps and plain dates (midnight UTC).
func dateArg(args map[string]any, name string) (*time.Time, error) {
	raw := stringArg(args, name)
	if raw == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	if t, err := time.Parse(dateOnlyLayout, raw); err == nil {
		return &t, nil
	}

	return nil, apperr.New(apperr.KindValidation, fmt.Sprintf("%s must be a date (YYYY-MM-DD) or RFC 3339 timestamp", name))
}
