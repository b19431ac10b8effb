package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/zatekoja/carepoint/internal/domain/entities"
	"github.com/zatekoja/carepoint/internal/domain/providers"
	"github.com/zatekoja/carepoint/internal/domain/repositories"
	"github.com/zatekoja/carepoint/internal/infrastructure/observability"
)

// NotificationService handles in-app notifications
type NotificationService struct {
	entities *EntityService
	eventBus providers.EventBus
}

// NewNotificationService creates a new notification service. eventBus may be nil.
func NewNotificationService(entitySvc *EntityService, eventBus providers.EventBus) *NotificationService {
	return &NotificationService{
		entities: entitySvc,
		eventBus: eventBus,
	}
}

// Notify stores a notification for userEmail and pushes it to the user's stream
func (n *NotificationService) Notify(ctx context.Context, userEmail, title, message string, typ entities.NotificationType, link string) (*entities.Notification, error) {
	userEmail = strings.ToLower(strings.TrimSpace(userEmail))

	rec, err := n.entities.CreateAs(ctx, SystemActor, entities.EntityNotification, map[string]any{
		"user_email": userEmail,
		"title":      title,
		"message":    message,
		"type":       string(typ),
		"link":       link,
		"is_read":    false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	notification := &entities.Notification{}
	if err := rec.Decode(notification); err != nil {
		return nil, err
	}

	if n.eventBus != nil {
		if err := n.eventBus.Publish(ctx, providers.GetNotificationChannel(userEmail), notification); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).
				Str("notification_id", notification.ID).
				Msg("failed to publish notification")
		}
	}

	return notification, nil
}

// notifyQuietly is used by workflows where a failed notification must not fail the operation
func (n *NotificationService) notifyQuietly(ctx context.Context, userEmail, title, message string, typ entities.NotificationType, link string) {
	if n == nil || userEmail == "" {
		return
	}
	if _, err := n.Notify(ctx, userEmail, title, message, typ, link); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).
			Str("type", string(typ)).
			Msg("failed to send notification")
	}
}

// MarkRead marks one of the caller's notifications as read
func (n *NotificationService) MarkRead(ctx context.Context, p *entities.Principal, id string) (*entities.Record, error) {
	return n.entities.Update(ctx, p, entities.EntityNotification, id, map[string]any{"is_read": true})
}

// MarkAllRead marks every unread notification of the caller as read and
// returns how many changed
func (n *NotificationService) MarkAllRead(ctx context.Context, p *entities.Principal) (int, error) {
	if err := requirePrincipal(p); err != nil {
		return 0, err
	}

	unread, err := n.entities.List(ctx, entities.EntityNotification, repositories.EntityQuery{
		Match: map[string]any{"user_email": strings.ToLower(p.Email), "is_read": false},
		Limit: repositories.MaxEntityLimit,
	})
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, rec := range unread {
		if _, err := n.entities.UpdateAs(ctx, entities.EntityNotification, rec.ID, map[string]any{"is_read": true}); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}
