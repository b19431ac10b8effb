package routes

import (
	"context"
	"net"
	"net/http"
	"time"
)

// NewServer builds the HTTP server for handler. Request contexts derive from
// ctx, so cancelling it ends open notification streams and lets Shutdown
// finish without waiting out its timeout. No write timeout: streams stay open.
func NewServer(ctx context.Context, addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}
