package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
	"github.com/zatekoja/carepoint/internal/domain/entities"
	"github.com/zatekoja/carepoint/internal/domain/repositories"
	tsclient "github.com/zatekoja/carepoint/internal/infrastructure/clients/typesense"
)

// TypesenseAdapter implements entity search using Typesense
type TypesenseAdapter struct {
	client *tsclient.Client
}

var _ repositories.SearchRepository = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// buildDocument derives the search document for rec from its entity's searchable fields
func buildDocument(rec *entities.Record) (map[string]any, bool) {
	def, ok := entities.Lookup(rec.Entity)
	if !ok || len(def.Searchable) == 0 {
		return nil, false
	}
	title, body, tags := def.SearchText(rec)
	if tags == nil {
		tags = []string{}
	}
	return map[string]any{
		"id":           documentID(rec.Entity, rec.ID),
		"entity":       rec.Entity,
		"title":        title,
		"body":         body,
		"tags":         tags,
		"created_date": rec.CreatedDate.Unix(),
	}, true
}

// documentID keeps ids unique across entities within the shared collection
func documentID(entity, id string) string {
	return entity + ":" + id
}

// Index adds or replaces a record in the index. Entities without searchable fields are ignored.
func (a *TypesenseAdapter) Index(ctx context.Context, rec *entities.Record) error {
	doc, ok := buildDocument(rec)
	if !ok {
		return nil
	}

	_, err := a.client.Client().Collection(tsclient.EntitiesCollection).Documents().Upsert(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to index %s %s: %w", rec.Entity, rec.ID, err)
	}
	return nil
}

// Remove deletes a record from the index; unknown documents are not an error
func (a *TypesenseAdapter) Remove(ctx context.Context, entity, id string) error {
	_, err := a.client.Client().Collection(tsclient.EntitiesCollection).Document(documentID(entity, id)).Delete(ctx)
	if err != nil && !tsclient.IsNotFound(err) {
		return fmt.Errorf("failed to remove %s %s from index: %w", entity, id, err)
	}
	return nil
}

// Search returns the record IDs of entity matching q, best match first
func (a *TypesenseAdapter) Search(ctx context.Context, entity, q string, limit int) ([]string, error) {
	if limit <= 0 || limit > 250 {
		limit = 20
	}
	if strings.TrimSpace(q) == "" {
		q = "*"
	}

	params := &api.SearchCollectionParams{
		Q:        pointer.String(q),
		QueryBy:  pointer.String("title,body,tags"),
		FilterBy: pointer.String(fmt.Sprintf("entity:=`%s`", entity)),
		PerPage:  pointer.Int(limit),
	}

	result, err := a.client.Client().Collection(tsclient.EntitiesCollection).Documents().Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", entity, err)
	}

	ids := make([]string, 0)
	if result.Hits == nil {
		return ids, nil
	}
	prefix := entity + ":"
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		docID, _ := (*hit.Document)["id"].(string)
		if strings.HasPrefix(docID, prefix) {
			ids = append(ids, strings.TrimPrefix(docID, prefix))
		}
	}
	return ids, nil
}
