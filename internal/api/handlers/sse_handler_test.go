package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/carepoint/internal/api/handlers"
	"github.com/zatekoja/carepoint/internal/api/middleware"
	"github.com/zatekoja/carepoint/internal/domain/providers"
)

// channelEventBus hands out one unbuffered channel per subscribed channel name
type channelEventBus struct {
	mu      sync.Mutex
	streams map[string]chan []byte
	fail    bool
}

func newChannelEventBus() *channelEventBus {
	return &channelEventBus{streams: make(map[string]chan []byte)}
}

func (b *channelEventBus) Publish(ctx context.Context, channel string, event any) error {
	return nil
}

func (b *channelEventBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	if b.fail {
		return nil, errors.New("redis unavailable")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan []byte)
	b.streams[channel] = ch
	return ch, nil
}

func (b *channelEventBus) stream(channel string) chan []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.streams[channel]
}

func (b *channelEventBus) Unsubscribe(ctx context.Context, channel string) error {
	return nil
}

func (b *channelEventBus) Close() error {
	return nil
}

func TestSSEHandler_StreamNotifications(t *testing.T) {
	bus := newChannelEventBus()
	handler := handlers.NewSSEHandler(bus, time.Hour)

	ctx, cancel := context.WithCancel(middleware.WithPrincipal(context.Background(), testUser))
	req := httptest.NewRequest(http.MethodGet, "/api/stream/notifications", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.StreamNotifications(w, req)
	}()

	channel := providers.GetNotificationChannel(testUser.Email)
	require.Eventually(t, func() bool { return bus.stream(channel) != nil }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return handler.GetClientCount() == 1 }, time.Second, 5*time.Millisecond)

	// unbuffered: the send returns once the handler has taken the event
	bus.stream(channel) <- []byte(`{"id":"n1","title":"Appointment confirmed"}`)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after the client went away")
	}

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Contains(t, body, "event: connected\n")
	assert.Contains(t, body, "event: notification\ndata: {\"id\":\"n1\",\"title\":\"Appointment confirmed\"}\n\n")
	assert.Zero(t, handler.GetClientCount())
}

func TestSSEHandler_Heartbeat(t *testing.T) {
	bus := newChannelEventBus()
	handler := handlers.NewSSEHandler(bus, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(middleware.WithPrincipal(context.Background(), testUser), 100*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/stream/notifications", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	handler.StreamNotifications(w, req)

	assert.Contains(t, w.Body.String(), "event: heartbeat\n")
}

func TestSSEHandler_Rejections(t *testing.T) {
	t.Run("anonymous", func(t *testing.T) {
		handler := handlers.NewSSEHandler(newChannelEventBus(), 0)
		w := httptest.NewRecorder()
		handler.StreamNotifications(w, httptest.NewRequest(http.MethodGet, "/api/stream/notifications", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("bus unavailable", func(t *testing.T) {
		bus := newChannelEventBus()
		bus.fail = true
		handler := handlers.NewSSEHandler(bus, 0)
		w := httptest.NewRecorder()
		handler.StreamNotifications(w, authed(testUser, http.MethodGet, "/api/stream/notifications", ""))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
