// Package search mirrors notes into Elasticsearch and answers title queries
// from the index.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esapi"

	"notely/internal/models"
)

const indexMapping = `{
  "mappings": {
    "properties": {
      "owner_id":   {"type": "keyword"},
      "title":      {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
      "content":    {"type": "text"},
      "created_at": {"type": "date"}
    }
  }
}`

type NoteIndex struct {
	es    *elasticsearch.Client
	index string
}

type noteDocument struct {
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func NewNoteIndex(ctx context.Context, addresses []string, username, password, index string) (*NoteIndex, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: addresses,
		Username:  username,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %w", err)
	}

	idx := &NoteIndex{es: client, index: index}
	if err := idx.ensureIndex(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (i *NoteIndex) ensureIndex(ctx context.Context) error {
	res, err := i.es.Indices.Exists([]string{i.index}, i.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("checking index %s: %w", i.index, err)
	}
	res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("checking index %s: %s", i.index, res.Status())
	}

	res, err = i.es.Indices.Create(i.index,
		i.es.Indices.Create.WithContext(ctx),
		i.es.Indices.Create.WithBody(strings.NewReader(indexMapping)),
	)
	if err != nil {
		return fmt.Errorf("creating index %s: %w", i.index, err)
	}
	return checkResponse(res, "creating index")
}

func (i *NoteIndex) IndexNote(ctx context.Context, note models.Note) error {
	body, err := json.Marshal(noteDocument{
		OwnerID:   note.OwnerID,
		Title:     note.Title,
		Content:   note.Content,
		CreatedAt: note.CreatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("encoding note document: %w", err)
	}

	res, err := i.es.Index(i.index, bytes.NewReader(body),
		i.es.Index.WithContext(ctx),
		i.es.Index.WithDocumentID(note.ID),
	)
	if err != nil {
		return fmt.Errorf("indexing note: %w", err)
	}
	return checkResponse(res, "indexing note")
}

func (i *NoteIndex) DeleteNote(ctx context.Context, id string) error {
	res, err := i.es.Delete(i.index, id, i.es.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("deleting note document: %w", err)
	}
	if res.StatusCode == http.StatusNotFound {
		res.Body.Close()
		return nil
	}
	return checkResponse(res, "deleting note document")
}

// SearchIDs returns the IDs of one page of matching notes, newest first, and
// the total hit count.
func (i *NoteIndex) SearchIDs(ctx context.Context, q models.NoteQuery) ([]string, int, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(buildQuery(q)); err != nil {
		return nil, 0, fmt.Errorf("encoding search query: %w", err)
	}

	res, err := i.es.Search(
		i.es.Search.WithContext(ctx),
		i.es.Search.WithIndex(i.index),
		i.es.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("searching notes: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, 0, fmt.Errorf("searching notes: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, 0, fmt.Errorf("decoding search response: %w", err)
	}

	ids := make([]string, len(r.Hits.Hits))
	for n, hit := range r.Hits.Hits {
		ids[n] = hit.ID
	}
	return ids, r.Hits.Total.Value, nil
}

func buildQuery(q models.NoteQuery) map[string]any {
	filters := []map[string]any{}

	if q.OwnerID != "" {
		filters = append(filters, map[string]any{
			"term": map[string]any{"owner_id": q.OwnerID},
		})
	}
	if q.Title != "" {
		filters = append(filters, map[string]any{
			"wildcard": map[string]any{
				"title.keyword": map[string]any{
					"value":            "*" + escapeWildcard(q.Title) + "*",
					"case_insensitive": true,
				},
			},
		})
	}
	if q.From != nil || q.To != nil {
		bounds := map[string]any{}
		if q.From != nil {
			bounds["gte"] = q.From.UTC().Format(time.RFC3339Nano)
		}
		if q.To != nil {
			bounds["lte"] = q.To.UTC().Format(time.RFC3339Nano)
		}
		filters = append(filters, map[string]any{
			"range": map[string]any{"created_at": bounds},
		})
	}

	size := q.Limit
	if size <= 0 {
		size = 10
	}

	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{"filter": filters},
		},
		"sort": []map[string]any{
			{"created_at": map[string]any{"order": "desc"}},
		},
		"from":             q.Offset,
		"size":             size,
		"track_total_hits": true,
		"_source":          false,
	}
}

// Ping reports whether the cluster answers.
func (i *NoteIndex) Ping(ctx context.Context) error {
	res, err := i.es.Ping(i.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("pinging elasticsearch: %w", err)
	}
	return checkResponse(res, "pinging elasticsearch")
}

func escapeWildcard(s string) string {
	return strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`).Replace(s)
}

func checkResponse(res *esapi.Response, action string) error {
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return fmt.Errorf("%s: %s: %s", action, res.Status(), body)
	}
	return nil
}
