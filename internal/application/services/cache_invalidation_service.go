package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/carepoint/internal/domain/entities"
	"github.com/zatekoja/carepoint/internal/domain/providers"
)

// CacheInvalidator drops cached copies of an entity's records
type CacheInvalidator interface {
	Invalidate(ctx context.Context, entity, id string)
}

// CacheInvalidationService applies entity writes made by other instances to
// the local cache
type CacheInvalidationService struct {
	invalidator CacheInvalidator
	eventBus    providers.EventBus
	instanceID  string
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewCacheInvalidationService creates a new cache invalidation service.
// Events whose origin is instanceID were already applied by the writer.
func NewCacheInvalidationService(invalidator CacheInvalidator, eventBus providers.EventBus, instanceID string) *CacheInvalidationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidationService{
		invalidator: invalidator,
		eventBus:    eventBus,
		instanceID:  instanceID,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins listening for entity events
func (s *CacheInvalidationService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelEntities)
	if err != nil {
		return fmt.Errorf("failed to subscribe to entity events: %w", err)
	}

	s.wg.Add(1)
	go s.processEvents(eventChan)
	log.Info().Str("instance_id", s.instanceID).Msg("cache invalidation service started")
	return nil
}

// Stop stops the service and waits for the event loop to exit
func (s *CacheInvalidationService) Stop() {
	s.cancel()
	s.wg.Wait()
	log.Info().Msg("cache invalidation service stopped")
}

func (s *CacheInvalidationService) processEvents(eventChan <-chan []byte) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case raw, ok := <-eventChan:
			if !ok {
				return
			}
			s.handleEvent(raw)
		}
	}
}

func (s *CacheInvalidationService) handleEvent(raw []byte) {
	var event entities.EntityEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		log.Warn().Err(err).Msg("failed to decode entity event")
		return
	}
	if event.Origin == s.instanceID || event.Entity == "" {
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	id := event.RecordID
	if event.Action == entities.EntityActionCreate {
		// nothing cached under a new id; only filter results are stale
		id = ""
	}
	s.invalidator.Invalidate(ctx, event.Entity, id)

	log.Debug().
		Str("entity", event.Entity).
		Str("id", event.RecordID).
		Str("action", string(event.Action)).
		Msg("invalidated cache for remote write")
}
