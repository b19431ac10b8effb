package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/carepoint/internal/adapters/cache"
	"github.com/zatekoja/carepoint/internal/adapters/database"
	"github.com/zatekoja/carepoint/internal/adapters/events"
	"github.com/zatekoja/carepoint/internal/api/handlers"
	"github.com/zatekoja/carepoint/internal/api/middleware"
	"github.com/zatekoja/carepoint/internal/api/routes"
	"github.com/zatekoja/carepoint/internal/application/services"
	"github.com/zatekoja/carepoint/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/carepoint/internal/infrastructure/clients/redis"
	"github.com/zatekoja/carepoint/internal/infrastructure/observability"
	"github.com/zatekoja/carepoint/pkg/config"
	"github.com/zatekoja/carepoint/pkg/secrets"
)

func main() {
	if _, err := secrets.ApplyVaultSecrets(context.Background(), secrets.LoadVaultConfigFromEnv()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load secrets from vault: %v\n", err)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName+"-sse", cfg.Env)
	log.Info().Msg("starting SSE server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	// Redis is required: every stream is a pub/sub subscription
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize Redis client")
	}
	defer redisClient.Close()

	// Tokens resolve to users stored in PostgreSQL
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	eventBus := events.NewRedisEventBus(redisClient)
	authService := services.NewAuthService(database.NewUserAdapter(pgClient), cache.NewRedisAdapter(redisClient), services.AuthConfig{
		Secret:        cfg.Auth.JWTSecret,
		TokenTTL:      cfg.Auth.TokenTTL,
		LoginURL:      cfg.Server.LoginURL,
		PublicBaseURL: cfg.Server.PublicBaseURL,
	})
	sseHandler := handlers.NewSSEHandler(eventBus, handlers.DefaultHeartbeatInterval)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	mux.Handle("GET /api/stream/notifications", middleware.RequireAuth(http.HandlerFunc(sseHandler.StreamNotifications)))

	mux.HandleFunc("GET /api/stream/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"connected_clients": %d}`, sseHandler.GetClientCount())
	})

	var handler http.Handler = middleware.RecordRoute(mux)
	handler = middleware.Authenticate(authService)(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(metrics)(handler)
	handler = middleware.CORSMiddleware(cfg.Server.AllowedOrigins)(handler)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := routes.NewServer(ctx, serverAddr, handler)

	go func() {
		log.Info().Str("addr", serverAddr).Msg("SSE server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("SSE server failed to start")
		}
	}()

	<-ctx.Done()

	log.Info().Msg("SSE server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	if err := eventBus.Close(); err != nil {
		log.Error().Err(err).Msg("error closing event bus")
	}

	log.Info().Msg("SSE server stopped")
}
