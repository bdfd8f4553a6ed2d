package db

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"gopkg.in/yaml.v3"

	"github.com/raphaelgruber/portalsync/internal/models"
)

// ListDocuments returns every document of kind, ordered by id. Documents are
// fetched page by page; field values are passed through untouched.
func (c *Client) ListDocuments(ctx context.Context, kind models.Kind) ([]models.RawRecord, error) {
	table := c.Table(kind)
	sql := `SELECT * FROM type::table($table) ORDER BY id LIMIT $limit START $start`

	var out []models.RawRecord
	for start := 0; ; start += c.cfg.PageSize {
		results, err := surrealdb.Query[[]map[string]any](ctx, c.db, sql, map[string]any{
			"table": table,
			"start": start,
			"limit": c.cfg.PageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", table, wrapQueryError("list "+string(kind), err))
		}
		if results == nil || len(*results) == 0 {
			break
		}

		page := (*results)[0].Result
		for _, doc := range page {
			out = append(out, toRawRecord(doc))
		}
		if len(page) < c.cfg.PageSize {
			break
		}
	}

	c.logger.Info("listed documents", "kind", kind, "table", table, "count", len(out))
	return out, nil
}

// toRawRecord splits the record id off a decoded document.
func toRawRecord(doc map[string]any) models.RawRecord {
	id := documentID(doc["id"])
	fields := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == "id" {
			continue
		}
		fields[k] = v
	}
	return models.RawRecord{ID: id, Fields: fields}
}

func documentID(v any) string {
	switch id := v.(type) {
	case surrealmodels.RecordID:
		if s, err := models.RecordIDString(id); err == nil {
			return s
		}
		return fmt.Sprint(id.ID)
	case *surrealmodels.RecordID:
		if id == nil {
			return ""
		}
		return documentID(*id)
	case string:
		// "table:key" as returned by some SDK paths
		if _, key, ok := strings.Cut(id, ":"); ok {
			return strings.Trim(key, "⟨⟩`")
		}
		return id
	}
	return ""
}

// PutDocument creates or replaces the document kind:id with fields.
func (c *Client) PutDocument(ctx context.Context, kind models.Kind, id string, fields map[string]any) error {
	content := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == "id" {
			continue
		}
		content[k] = v
	}
	_, err := surrealdb.Query[any](ctx, c.db, `UPSERT type::record($table, $id) CONTENT $content`, map[string]any{
		"table":   c.Table(kind),
		"id":      id,
		"content": content,
	})
	if err != nil {
		return fmt.Errorf("put %s %s: %w", kind, id, wrapQueryError("put "+string(kind), err))
	}
	return nil
}

// Ping checks that the document store answers queries.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := surrealdb.Query[any](ctx, c.db, "RETURN true", nil); err != nil {
		return wrapQueryError("ping", err)
	}
	return nil
}

// Fixtures are raw documents keyed by kind, as loaded from a YAML file:
//
//	locations:
//	  - id: L1
//	    locationName: Depot
//	jobs:
//	  - id: J1
//	    name: Inspect roof
//	    locationId: L1
type Fixtures map[models.Kind][]map[string]any

// LoadFixtures parses a fixtures YAML document.
func LoadFixtures(r io.Reader) (Fixtures, error) {
	var raw map[string][]map[string]any
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if err == io.EOF {
			return Fixtures{}, nil
		}
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}

	out := make(Fixtures, len(raw))
	for key, docs := range raw {
		kind, err := models.ParseKind(key)
		if err != nil {
			return nil, fmt.Errorf("fixtures: %w", err)
		}
		for i, doc := range docs {
			if _, ok := doc["id"]; !ok {
				return nil, fmt.Errorf("fixtures: %s[%d] has no id", key, i)
			}
		}
		out[kind] = append(out[kind], docs...)
	}
	return out, nil
}

// Seed writes fixtures into the document store, referenced kinds first.
// Returns the number of documents written.
func (c *Client) Seed(ctx context.Context, fx Fixtures) (int, error) {
	n := 0
	for _, kind := range models.Kinds {
		for _, doc := range fx[kind] {
			id := fmt.Sprint(doc["id"])
			if err := c.PutDocument(ctx, kind, id, doc); err != nil {
				return n, err
			}
			n++
		}
	}
	c.logger.Info("seeded documents", "count", n)
	return n, nil
}
