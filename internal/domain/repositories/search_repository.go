package repositories

import (
	"context"

	"github.com/zatekoja/carepoint/internal/domain/entities"
)

// SearchRepository defines the interface for full-text entity search (e.g. Typesense)
type SearchRepository interface {
	// Index adds or replaces a record in the search index
	Index(ctx context.Context, record *entities.Record) error

	// Remove deletes a record from the search index
	Remove(ctx context.Context, entity, id string) error

	// Search returns the IDs of matching records of entity, best match first
	Search(ctx context.Context, entity, q string, limit int) ([]string, error)
}
