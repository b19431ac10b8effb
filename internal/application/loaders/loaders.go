package loaders

import (
	"context"
	"time"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/zatekoja/carepoint/internal/domain/entities"
	"github.com/zatekoja/carepoint/internal/domain/repositories"
	apperrors "github.com/zatekoja/carepoint/pkg/errors"
)

type ctxKey string

const loadersKey ctxKey = "dataloaders"

// Loaders batches record lookups made while serving one request
type Loaders struct {
	DoctorLoader  *dataloader.Loader[string, *entities.Doctor]
	LabTestLoader *dataloader.Loader[string, *entities.LabTest]
}

// NewLoaders creates a new instance of Loaders
func NewLoaders(repo repositories.EntityRepository) *Loaders {
	return &Loaders{
		DoctorLoader:  newRecordLoader[entities.Doctor](repo, entities.EntityDoctor),
		LabTestLoader: newRecordLoader[entities.LabTest](repo, entities.EntityLabTest),
	}
}

// newRecordLoader builds a loader decoding records of entity into T
func newRecordLoader[T any](repo repositories.EntityRepository, entity string) *dataloader.Loader[string, *T] {
	return dataloader.NewBatchedLoader(func(ctx context.Context, keys []string) []*dataloader.Result[*T] {
		results := make([]*dataloader.Result[*T], len(keys))
		records, err := repo.GetByIDs(ctx, entity, keys)

		byID := make(map[string]*T, len(records))
		if err == nil {
			for _, rec := range records {
				v := new(T)
				if decodeErr := rec.Decode(v); decodeErr == nil {
					byID[rec.ID] = v
				}
			}
		}

		for i, key := range keys {
			if err != nil {
				results[i] = &dataloader.Result[*T]{Error: err}
			} else if v, ok := byID[key]; ok {
				results[i] = &dataloader.Result[*T]{Data: v}
			} else {
				results[i] = &dataloader.Result[*T]{Error: apperrors.NewNotFoundError(entity + " " + key + " not found")}
			}
		}
		return results
	}, dataloader.WithWait[string, *T](2*time.Millisecond))
}

// For returns the loaders attached to ctx, or nil
func For(ctx context.Context) *Loaders {
	l, _ := ctx.Value(loadersKey).(*Loaders)
	return l
}

// WithLoaders returns a new context with the loaders attached
func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}
