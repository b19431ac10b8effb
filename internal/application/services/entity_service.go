package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/carepoint/internal/domain/entities"
	"github.com/zatekoja/carepoint/internal/domain/providers"
	"github.com/zatekoja/carepoint/internal/domain/repositories"
	"github.com/zatekoja/carepoint/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/carepoint/pkg/errors"
)

// SystemActor is the created_by value of records written by background workers
const SystemActor = "system"

// EntityService implements the generic entity contract with access rules.
// Every write publishes an EntityEvent and keeps the search index current.
type EntityService struct {
	repo       repositories.EntityRepository
	search     repositories.SearchRepository
	eventBus   providers.EventBus
	metrics    *observability.Metrics
	instanceID string
}

// NewEntityService creates a new entity service. search and eventBus may be nil.
func NewEntityService(
	repo repositories.EntityRepository,
	search repositories.SearchRepository,
	eventBus providers.EventBus,
	metrics *observability.Metrics,
) *EntityService {
	return &EntityService{
		repo:       repo,
		search:     search,
		eventBus:   eventBus,
		metrics:    metrics,
		instanceID: uuid.NewString(),
	}
}

// InstanceID identifies this process in published events
func (s *EntityService) InstanceID() string {
	return s.instanceID
}

func lookup(entity string) (entities.Definition, error) {
	def, ok := entities.Lookup(entity)
	if !ok {
		return def, apperrors.NewValidationError(fmt.Sprintf("unknown entity %q", entity))
	}
	return def, nil
}

func requirePrincipal(p *entities.Principal) error {
	if p == nil || p.Email == "" {
		return apperrors.NewUnauthorizedError("authentication required")
	}
	return nil
}

// ownsRecord reports whether p owns rec under def
func ownsRecord(def entities.Definition, p *entities.Principal, rec *entities.Record) bool {
	email := strings.ToLower(p.Email)
	return strings.EqualFold(def.Owner(rec), email) || strings.EqualFold(rec.CreatedBy, email)
}

func checkAdminFields(def entities.Definition, p *entities.Principal, data map[string]any) error {
	if p.IsAdmin() {
		return nil
	}
	if fields := def.AdminFieldsIn(data); len(fields) > 0 {
		return apperrors.NewForbiddenError(fmt.Sprintf("only admins can set %s", strings.Join(fields, ", ")))
	}
	return nil
}

// parentOwner resolves the owner of the parent record referenced by data.
// Non-admins may only reference parents they own. required makes a missing
// parent reference an error for non-admins.
func (s *EntityService) parentOwner(ctx context.Context, def entities.Definition, p *entities.Principal, data map[string]any, required bool) (string, error) {
	if def.Parent == nil {
		return "", nil
	}
	id, present := def.ParentID(data)
	if !present && (!required || p.IsAdmin()) {
		return "", nil
	}
	if id == "" {
		return "", apperrors.NewValidationError(fmt.Sprintf("%s is required", def.Parent.Field))
	}

	parent, err := s.repo.Get(ctx, def.Parent.Entity, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return "", apperrors.NewValidationError(fmt.Sprintf("%s %s does not exist", def.Parent.Entity, id))
		}
		return "", err
	}
	owner := strings.ToLower(parent.String(def.Parent.OwnerField))
	if !p.IsAdmin() && (owner == "" || owner != strings.ToLower(p.Email)) {
		return "", apperrors.NewForbiddenError(fmt.Sprintf("not allowed to add %s records to this %s", def.Name, def.Parent.Entity))
	}
	return owner, nil
}

// Filter lists records visible to p. Owner-scoped reads are narrowed to p's records.
func (s *EntityService) Filter(ctx context.Context, p *entities.Principal, entity string, query repositories.EntityQuery) ([]*entities.Record, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	def, err := lookup(entity)
	if err != nil {
		return nil, err
	}

	if def.EffectiveReadScope() == entities.ScopeOwner && !p.IsAdmin() {
		match := make(map[string]any, len(query.Match)+1)
		for k, v := range query.Match {
			match[k] = v
		}
		if def.OwnerField != "" {
			match[def.OwnerField] = strings.ToLower(p.Email)
		} else {
			match["created_by"] = strings.ToLower(p.Email)
		}
		query.Match = match
	}

	return s.repo.Filter(ctx, entity, query)
}

// Get returns one record visible to p
func (s *EntityService) Get(ctx context.Context, p *entities.Principal, entity, id string) (*entities.Record, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	def, err := lookup(entity)
	if err != nil {
		return nil, err
	}

	rec, err := s.repo.Get(ctx, entity, id)
	if err != nil {
		return nil, err
	}
	if def.EffectiveReadScope() == entities.ScopeOwner && !p.IsAdmin() && !ownsRecord(def, p, rec) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("%s with id %s not found", entity, id))
	}
	return rec, nil
}

// Create validates and stores a new record owned by p
func (s *EntityService) Create(ctx context.Context, p *entities.Principal, entity string, data map[string]any) (*entities.Record, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	def, err := lookup(entity)
	if err != nil {
		return nil, err
	}
	if def.Scope == entities.ScopeSystem && !p.IsAdmin() {
		return nil, apperrors.NewForbiddenError(fmt.Sprintf("%s records cannot be created directly", entity))
	}
	if err := checkAdminFields(def, p, data); err != nil {
		return nil, err
	}
	createdBy := strings.ToLower(p.Email)
	owner, err := s.parentOwner(ctx, def, p, data, true)
	if err != nil {
		return nil, err
	}
	// records published into a partner's catalogue belong to the partner
	if owner != "" {
		createdBy = owner
	}

	return s.create(ctx, def, createdBy, data)
}

// CreateAs stores a record on behalf of a workflow, skipping access rules
func (s *EntityService) CreateAs(ctx context.Context, createdBy, entity string, data map[string]any) (*entities.Record, error) {
	def, err := lookup(entity)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, def, strings.ToLower(createdBy), data)
}

func (s *EntityService) create(ctx context.Context, def entities.Definition, createdBy string, data map[string]any) (*entities.Record, error) {
	rec := entities.NewRecord(def.Name, createdBy, data)
	if err := def.Validate(rec.Data); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}

	s.afterWrite(ctx, def, rec, entities.EntityActionCreate)
	return rec, nil
}

// Update merges partial into a record p may modify
func (s *EntityService) Update(ctx context.Context, p *entities.Principal, entity, id string, partial map[string]any) (*entities.Record, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	def, err := lookup(entity)
	if err != nil {
		return nil, err
	}

	if err := checkAdminFields(def, p, partial); err != nil {
		return nil, err
	}
	if !p.IsAdmin() {
		rec, err := s.Get(ctx, p, entity, id)
		if err != nil {
			return nil, err
		}
		if !ownsRecord(def, p, rec) || !def.OwnerMayUpdate(partial) {
			return nil, apperrors.NewForbiddenError(fmt.Sprintf("not allowed to modify this %s", entity))
		}
		if _, err := s.parentOwner(ctx, def, p, partial, false); err != nil {
			return nil, err
		}
	}

	return s.update(ctx, def, id, partial)
}

// UpdateAs merges partial into a record on behalf of a workflow, skipping access rules
func (s *EntityService) UpdateAs(ctx context.Context, entity, id string, partial map[string]any) (*entities.Record, error) {
	def, err := lookup(entity)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, def, id, partial)
}

func (s *EntityService) update(ctx context.Context, def entities.Definition, id string, partial map[string]any) (*entities.Record, error) {
	patch := make(map[string]any, len(partial))
	for k, v := range partial {
		if entities.IsReservedKey(k) {
			continue
		}
		patch[k] = v
	}

	rec, err := s.repo.Update(ctx, def.Name, id, patch)
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, def, rec, entities.EntityActionUpdate)
	return rec, nil
}

// Delete removes a record p may modify
func (s *EntityService) Delete(ctx context.Context, p *entities.Principal, entity, id string) error {
	if err := requirePrincipal(p); err != nil {
		return err
	}
	def, err := lookup(entity)
	if err != nil {
		return err
	}

	rec, err := s.Get(ctx, p, entity, id)
	if err != nil {
		return err
	}
	if !p.IsAdmin() && (def.Scope == entities.ScopeSystem || !ownsRecord(def, p, rec)) {
		return apperrors.NewForbiddenError(fmt.Sprintf("not allowed to delete this %s", entity))
	}

	if err := s.repo.Delete(ctx, entity, id); err != nil {
		return err
	}

	s.afterWrite(ctx, def, rec, entities.EntityActionDelete)
	return nil
}

// Count counts records of entity without access rules; used by dashboards
func (s *EntityService) Count(ctx context.Context, entity string, match map[string]any) (int, error) {
	return s.repo.Count(ctx, entity, match)
}

// List filters records without access rules; used by workflows
func (s *EntityService) List(ctx context.Context, entity string, query repositories.EntityQuery) ([]*entities.Record, error) {
	return s.repo.Filter(ctx, entity, query)
}

// Load fetches one record without access rules; used by workflows
func (s *EntityService) Load(ctx context.Context, entity, id string) (*entities.Record, error) {
	return s.repo.Get(ctx, entity, id)
}

// afterWrite publishes the change and updates the search index. Failures are logged only.
func (s *EntityService) afterWrite(ctx context.Context, def entities.Definition, rec *entities.Record, action entities.EntityAction) {
	observability.RecordEntityWrite(ctx, s.metrics, def.Name, string(action))
	logger := observability.LoggerFromContext(ctx)

	if s.eventBus != nil {
		event := entities.EntityEvent{
			ID:        uuid.NewString(),
			Entity:    def.Name,
			RecordID:  rec.ID,
			Action:    action,
			Owner:     def.Owner(rec),
			Origin:    s.instanceID,
			Timestamp: time.Now().UTC(),
		}
		if action != entities.EntityActionDelete {
			event.Record = rec.Flatten()
		}
		if err := s.eventBus.Publish(ctx, providers.EventChannelEntities, event); err != nil {
			logger.Warn().Err(err).Str("entity", def.Name).Str("id", rec.ID).Msg("failed to publish entity event")
		}
	}

	if s.search != nil && len(def.Searchable) > 0 {
		var err error
		if action == entities.EntityActionDelete {
			err = s.search.Remove(ctx, def.Name, rec.ID)
		} else {
			err = s.search.Index(ctx, rec)
		}
		if err != nil {
			logger.Warn().Err(err).Str("entity", def.Name).Str("id", rec.ID).Msg("failed to update search index")
		}
	}
}

// Search runs a full-text query over a searchable entity. Without a search
// engine, or when it fails, records are scanned for a case-insensitive match.
func (s *EntityService) Search(ctx context.Context, p *entities.Principal, entity, q string, limit int) ([]*entities.Record, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	def, err := lookup(entity)
	if err != nil {
		return nil, err
	}
	if len(def.Searchable) == 0 {
		return nil, apperrors.NewValidationError(fmt.Sprintf("%s is not searchable", entity))
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	if s.search != nil {
		ids, err := s.search.Search(ctx, entity, q, limit)
		if err == nil {
			return s.loadHits(ctx, p, entity, ids), nil
		}
		log.Warn().Err(err).Str("entity", entity).Msg("search engine failed, scanning records")
	}

	return s.scan(ctx, p, def, q, limit)
}

func (s *EntityService) loadHits(ctx context.Context, p *entities.Principal, entity string, ids []string) []*entities.Record {
	records := make([]*entities.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Get(ctx, p, entity, id)
		if err != nil {
			if !apperrors.IsNotFound(err) {
				log.Warn().Err(err).Str("entity", entity).Str("id", id).Msg("failed to load search hit")
			}
			continue
		}
		records = append(records, rec)
	}
	return records
}

func (s *EntityService) scan(ctx context.Context, p *entities.Principal, def entities.Definition, q string, limit int) ([]*entities.Record, error) {
	candidates, err := s.Filter(ctx, p, def.Name, repositories.EntityQuery{Limit: repositories.MaxEntityLimit})
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(q))
	records := make([]*entities.Record, 0)
	for _, rec := range candidates {
		if len(records) >= limit {
			break
		}
		if needle == "" || matchesText(def, rec, needle) {
			records = append(records, rec)
		}
	}
	return records, nil
}

func matchesText(def entities.Definition, rec *entities.Record, needle string) bool {
	title, body, tags := def.SearchText(rec)
	if strings.Contains(strings.ToLower(title), needle) || strings.Contains(strings.ToLower(body), needle) {
		return true
	}
	for _, tag := range tags {
		if strings.Contains(tag, needle) {
			return true
		}
	}
	return false
}
