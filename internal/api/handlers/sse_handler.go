package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/zatekoja/carepoint/internal/domain/providers"
	"github.com/zatekoja/carepoint/internal/infrastructure/observability"
)

// DefaultHeartbeatInterval keeps idle streams open through proxies
const DefaultHeartbeatInterval = 30 * time.Second

// SSEHandler streams a user's notifications as Server-Sent Events
type SSEHandler struct {
	eventBus  providers.EventBus
	heartbeat time.Duration
	clients   map[string]int // channel -> open streams
	mu        sync.RWMutex
}

// NewSSEHandler creates a new SSE handler. heartbeat <= 0 uses DefaultHeartbeatInterval.
func NewSSEHandler(eventBus providers.EventBus, heartbeat time.Duration) *SSEHandler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}
	return &SSEHandler{
		eventBus:  eventBus,
		heartbeat: heartbeat,
		clients:   make(map[string]int),
	}
}

// StreamNotifications handles GET /api/stream/notifications
func (h *SSEHandler) StreamNotifications(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if p == nil {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	if h.eventBus == nil {
		respondWithError(w, http.StatusServiceUnavailable, "notification stream unavailable")
		return
	}

	ctx := r.Context()
	logger := observability.LoggerFromContext(ctx)
	channel := providers.GetNotificationChannel(p.Email)

	// The subscription ends with the request context
	eventChan, err := h.eventBus.Subscribe(ctx, channel)
	if err != nil {
		logger.Error().Err(err).Str("channel", channel).Msg("failed to subscribe to notifications")
		respondWithError(w, http.StatusServiceUnavailable, "notification stream unavailable")
		return
	}

	h.registerClient(channel)
	defer h.unregisterClient(channel)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	h.sendEvent(w, "connected", map[string]any{
		"user_email": strings.ToLower(p.Email),
		"timestamp":  time.Now(),
	})
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Str("channel", channel).Msg("notification stream closed")
			return
		case <-ticker.C:
			h.sendEvent(w, "heartbeat", map[string]any{
				"timestamp": time.Now(),
			})
			flusher.Flush()
		case raw, ok := <-eventChan:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: notification\ndata: %s\n\n", raw)
			flusher.Flush()
		}
	}
}

func (h *SSEHandler) registerClient(channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[channel]++
}

func (h *SSEHandler) unregisterClient(channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[channel]--
	if h.clients[channel] <= 0 {
		delete(h.clients, channel)
	}
}

// sendEvent writes one SSE event
func (h *SSEHandler) sendEvent(w http.ResponseWriter, eventType string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}

	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
}

// GetClientCount returns the number of open streams
func (h *SSEHandler) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, n := range h.clients {
		count += n
	}
	return count
}
