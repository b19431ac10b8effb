package repositories

import (
	"context"

	"github.com/zatekoja/carepoint/internal/domain/entities"
)

const (
	// DefaultEntityLimit is used when a query does not set a limit
	DefaultEntityLimit = 50
	// MaxEntityLimit caps every query
	MaxEntityLimit = 500
	// DefaultEntitySort orders newest records first
	DefaultEntitySort = "-created_date"
)

// EntityQuery describes a filter over one entity's records
type EntityQuery struct {
	// Match is an equality filter on top-level data fields
	Match map[string]any
	// Sort is a field name; a leading "-" sorts descending
	Sort   string
	Limit  int
	Offset int
}

// Normalized returns a copy of q with defaults applied and the limit capped
func (q EntityQuery) Normalized() EntityQuery {
	if q.Sort == "" {
		q.Sort = DefaultEntitySort
	}
	if q.Limit <= 0 {
		q.Limit = DefaultEntityLimit
	}
	if q.Limit > MaxEntityLimit {
		q.Limit = MaxEntityLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

// EntityRepository defines the interface for generic entity record storage
type EntityRepository interface {
	// Filter returns records of entity matching query
	Filter(ctx context.Context, entity string, query EntityQuery) ([]*entities.Record, error)

	// Get retrieves a record by ID
	Get(ctx context.Context, entity, id string) (*entities.Record, error)

	// GetByIDs retrieves the records with the given IDs; unknown IDs are skipped
	GetByIDs(ctx context.Context, entity string, ids []string) ([]*entities.Record, error)

	// Create persists a new record, assigning ID and timestamps
	Create(ctx context.Context, record *entities.Record) error

	// Update shallow-merges partial into the record; nil values remove fields
	Update(ctx context.Context, entity, id string, partial map[string]any) (*entities.Record, error)

	// Delete removes a record
	Delete(ctx context.Context, entity, id string) error

	// Count returns the number of records matching match
	Count(ctx context.Context, entity string, match map[string]any) (int, error)
}
