package routes_test

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/carepoint/internal/api/routes"
)

func TestNewServer_CancelEndsOpenStreams(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	streaming := make(chan struct{})
	ended := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		close(streaming)
		<-r.Context().Done()
		close(ended)
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	server := routes.NewServer(ctx, ln.Addr().String(), handler)
	go func() { _ = server.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/stream/notifications")
	require.NoError(t, err)
	defer resp.Body.Close()
	<-streaming

	cancel()
	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end when the server context was cancelled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	start := time.Now()
	require.NoError(t, server.Shutdown(shutdownCtx))
	assert.Less(t, time.Since(start), 2*time.Second)
}
