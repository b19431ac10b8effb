package providers

import (
	"context"
	"strings"
)

// EventBus defines the interface for publishing and subscribing to events.
// Payloads are JSON documents; subscribers decode the type they expect.
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event any) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannel constants for different event types
const (
	// EventChannelEntities carries an EntityEvent for every entity write
	EventChannelEntities = "entities:events"

	// EventChannelNotificationPrefix is the prefix for per-user notification channels
	EventChannelNotificationPrefix = "notifications:"

	// EventChannelEmergency carries newly raised emergency requests
	EventChannelEmergency = "emergency:requests"
)

// GetNotificationChannel returns the channel name for a user's notifications
func GetNotificationChannel(email string) string {
	return EventChannelNotificationPrefix + strings.ToLower(email)
}
