package database

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/carepoint/internal/domain/entities"
	"github.com/zatekoja/carepoint/internal/domain/providers"
	"github.com/zatekoja/carepoint/internal/domain/repositories"
	"github.com/zatekoja/carepoint/internal/infrastructure/observability"
)

// Cache TTLs (in seconds)
const (
	entityByIDTTL   = 300 // 5 minutes for single records
	entityFilterTTL = 120 // 2 minutes for filter results
)

// CachedEntityAdapter wraps an EntityRepository with Redis caching for
// entities registered as cacheable. Other entities pass straight through.
type CachedEntityAdapter struct {
	adapter repositories.EntityRepository
	cache   providers.CacheProvider
	metrics *observability.Metrics
}

// NewCachedEntityAdapter creates a new cached entity adapter
func NewCachedEntityAdapter(adapter repositories.EntityRepository, cache providers.CacheProvider, metrics *observability.Metrics) *CachedEntityAdapter {
	return &CachedEntityAdapter{
		adapter: adapter,
		cache:   cache,
		metrics: metrics,
	}
}

// Cache key generators
func entityCacheKey(entity, id string) string {
	return fmt.Sprintf("entity:%s:%s", entity, id)
}

func entityGenerationKey(entity string) string {
	return fmt.Sprintf("entities:%s:gen", entity)
}

func entityFilterCacheKey(entity string, generation int64, query repositories.EntityQuery) string {
	b, _ := json.Marshal(query)
	sum := sha256.Sum256(append([]byte(strconv.FormatInt(generation, 10)+":"), b...))
	return fmt.Sprintf("entities:%s:filter:%s", entity, hex.EncodeToString(sum[:]))
}

func cacheable(entity string) bool {
	def, ok := entities.Lookup(entity)
	return ok && def.Cacheable
}

// Filter returns records matching query, served from cache when possible
func (a *CachedEntityAdapter) Filter(ctx context.Context, entity string, query repositories.EntityQuery) ([]*entities.Record, error) {
	if !cacheable(entity) {
		return a.adapter.Filter(ctx, entity, query)
	}

	query = query.Normalized()
	cacheKey := entityFilterCacheKey(entity, a.generation(ctx, entity), query)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var records []*entities.Record
		if err := json.Unmarshal(cached, &records); err == nil {
			for _, rec := range records {
				rec.Entity = entity
			}
			observability.RecordCacheHit(ctx, a.metrics, entity)
			return records, nil
		}
		log.Warn().Str("key", cacheKey).Msg("failed to decode cached filter result")
	}
	observability.RecordCacheMiss(ctx, a.metrics, entity)

	records, err := a.adapter.Filter(ctx, entity, query)
	if err != nil {
		return nil, err
	}

	a.store(ctx, cacheKey, records, entityFilterTTL)
	return records, nil
}

// Get retrieves a record by ID with caching
func (a *CachedEntityAdapter) Get(ctx context.Context, entity, id string) (*entities.Record, error) {
	if !cacheable(entity) {
		return a.adapter.Get(ctx, entity, id)
	}

	cacheKey := entityCacheKey(entity, id)
	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		rec := &entities.Record{}
		if err := json.Unmarshal(cached, rec); err == nil {
			rec.Entity = entity
			observability.RecordCacheHit(ctx, a.metrics, entity)
			return rec, nil
		}
		log.Warn().Str("key", cacheKey).Msg("failed to decode cached record")
	}
	observability.RecordCacheMiss(ctx, a.metrics, entity)

	rec, err := a.adapter.Get(ctx, entity, id)
	if err != nil {
		return nil, err
	}

	a.store(ctx, cacheKey, rec, entityByIDTTL)
	return rec, nil
}

// GetByIDs serves cached records and loads the rest in one query
func (a *CachedEntityAdapter) GetByIDs(ctx context.Context, entity string, ids []string) ([]*entities.Record, error) {
	if !cacheable(entity) {
		return a.adapter.GetByIDs(ctx, entity, ids)
	}

	records := make([]*entities.Record, 0, len(ids))
	missing := make([]string, 0, len(ids))
	for _, id := range ids {
		cached, err := a.cache.Get(ctx, entityCacheKey(entity, id))
		if err != nil {
			missing = append(missing, id)
			continue
		}
		rec := &entities.Record{}
		if err := json.Unmarshal(cached, rec); err != nil {
			missing = append(missing, id)
			continue
		}
		rec.Entity = entity
		records = append(records, rec)
	}
	if len(missing) == 0 {
		observability.RecordCacheHit(ctx, a.metrics, entity)
		return records, nil
	}
	observability.RecordCacheMiss(ctx, a.metrics, entity)

	loaded, err := a.adapter.GetByIDs(ctx, entity, missing)
	if err != nil {
		return nil, err
	}
	for _, rec := range loaded {
		a.store(ctx, entityCacheKey(entity, rec.ID), rec, entityByIDTTL)
	}
	return append(records, loaded...), nil
}

// Create persists a record and retires cached filter results
func (a *CachedEntityAdapter) Create(ctx context.Context, record *entities.Record) error {
	if err := a.adapter.Create(ctx, record); err != nil {
		return err
	}
	if cacheable(record.Entity) {
		a.bumpGeneration(ctx, record.Entity)
	}
	return nil
}

// Update merges partial into the record and invalidates its cache entries
func (a *CachedEntityAdapter) Update(ctx context.Context, entity, id string, partial map[string]any) (*entities.Record, error) {
	rec, err := a.adapter.Update(ctx, entity, id, partial)
	if err != nil {
		return nil, err
	}
	a.Invalidate(ctx, entity, id)
	return rec, nil
}

// Delete removes a record and invalidates its cache entries
func (a *CachedEntityAdapter) Delete(ctx context.Context, entity, id string) error {
	if err := a.adapter.Delete(ctx, entity, id); err != nil {
		return err
	}
	a.Invalidate(ctx, entity, id)
	return nil
}

// Count is never cached
func (a *CachedEntityAdapter) Count(ctx context.Context, entity string, match map[string]any) (int, error) {
	return a.adapter.Count(ctx, entity, match)
}

// Invalidate drops the cached record and retires cached filter results for entity
func (a *CachedEntityAdapter) Invalidate(ctx context.Context, entity, id string) {
	if !cacheable(entity) {
		return
	}
	if id != "" {
		if err := a.cache.Delete(ctx, entityCacheKey(entity, id)); err != nil {
			log.Warn().Err(err).Str("entity", entity).Str("id", id).Msg("failed to delete cached record")
		}
	}
	a.bumpGeneration(ctx, entity)
}

func (a *CachedEntityAdapter) generation(ctx context.Context, entity string) int64 {
	b, err := a.cache.Get(ctx, entityGenerationKey(entity))
	if err != nil {
		if !errors.Is(err, providers.ErrCacheMiss) {
			log.Warn().Err(err).Str("entity", entity).Msg("failed to read cache generation")
		}
		return 0
	}
	gen, _ := strconv.ParseInt(string(b), 10, 64)
	return gen
}

func (a *CachedEntityAdapter) bumpGeneration(ctx context.Context, entity string) {
	if _, err := a.cache.Incr(ctx, entityGenerationKey(entity)); err != nil {
		log.Warn().Err(err).Str("entity", entity).Msg("failed to bump cache generation")
	}
}

func (a *CachedEntityAdapter) store(ctx context.Context, key string, v any, ttl int) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, key, data, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to write cache")
	}
}
