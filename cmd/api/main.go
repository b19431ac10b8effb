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
	"github.com/zatekoja/carepoint/internal/adapters/search"
	"github.com/zatekoja/carepoint/internal/api/handlers"
	"github.com/zatekoja/carepoint/internal/api/middleware"
	"github.com/zatekoja/carepoint/internal/api/routes"
	"github.com/zatekoja/carepoint/internal/application/services"
	"github.com/zatekoja/carepoint/internal/domain/providers"
	"github.com/zatekoja/carepoint/internal/domain/repositories"
	"github.com/zatekoja/carepoint/internal/infrastructure/clients/openai"
	"github.com/zatekoja/carepoint/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/carepoint/internal/infrastructure/clients/redis"
	"github.com/zatekoja/carepoint/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/carepoint/internal/infrastructure/observability"
	"github.com/zatekoja/carepoint/pkg/config"
	"github.com/zatekoja/carepoint/pkg/secrets"
)

// Register and login attempts per client IP
const authRequestsPerMinute = 10

func main() {
	// Secrets from Vault are exported before configuration is read
	if res, err := secrets.ApplyVaultSecrets(context.Background(), secrets.LoadVaultConfigFromEnv()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load secrets from vault: %v\n", err)
		os.Exit(1)
	} else if res.Enabled {
		fmt.Fprintf(os.Stderr, "loaded %d secrets from vault path %s\n", res.Loaded, res.Path)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)

	// Set up context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	// Initialize database client
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	if err := database.Migrate(ctx, pgClient); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	// Redis backs caching, token revocation and the event bus. The API keeps
	// serving without it.
	var (
		cacheProvider providers.CacheProvider
		eventBus      providers.EventBus
	)
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable; running without cache, token revocation or notifications streaming")
	} else {
		defer redisClient.Close()
		cacheProvider = cache.NewRedisAdapter(redisClient)
		eventBus = events.NewRedisEventBus(redisClient)
	}

	var searchRepo repositories.SearchRepository
	if cfg.Typesense.Enabled {
		typesenseClient, err := typesense.NewClient(&cfg.Typesense)
		if err != nil {
			log.Warn().Err(err).Msg("Typesense unavailable; search falls back to scanning")
		} else {
			if err := typesenseClient.InitSchema(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to init Typesense schema")
			}
			searchRepo = search.NewTypesenseAdapter(typesenseClient)
		}
	}

	var llm providers.LLMProvider
	if cfg.OpenAI.APIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY is not set; InvokeLLM is disabled")
	} else {
		openaiClient, err := openai.NewClient(&cfg.OpenAI)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize OpenAI client")
		} else {
			llm = openaiClient
		}
	}

	// Initialize adapters
	var entityRepo repositories.EntityRepository = database.NewEntityAdapter(pgClient, metrics)
	var cachedRepo *database.CachedEntityAdapter
	if cacheProvider != nil {
		cachedRepo = database.NewCachedEntityAdapter(entityRepo, cacheProvider, metrics)
		entityRepo = cachedRepo
	}
	userRepo := database.NewUserAdapter(pgClient)
	fileRepo := database.NewFileAdapter(pgClient)

	// Initialize services
	entityService := services.NewEntityService(entityRepo, searchRepo, eventBus, metrics)
	notificationService := services.NewNotificationService(entityService, eventBus)
	authService := services.NewAuthService(userRepo, cacheProvider, services.AuthConfig{
		Secret:        cfg.Auth.JWTSecret,
		TokenTTL:      cfg.Auth.TokenTTL,
		LoginURL:      cfg.Server.LoginURL,
		PublicBaseURL: cfg.Server.PublicBaseURL,
	})
	integrationService := services.NewIntegrationService(llm, fileRepo, cfg.Server.PublicBaseURL, cfg.Storage.MaxUploadBytes)
	appointmentService := services.NewAppointmentService(entityService, notificationService, "")
	labService := services.NewLabService(entityService, notificationService)
	orderService := services.NewMedicineOrderService(entityService, notificationService)
	forumService := services.NewForumService(entityService, notificationService)
	healthAIService := services.NewHealthAIService(entityService, integrationService, notificationService)
	emergencyService := services.NewEmergencyService(entityService, notificationService, eventBus)
	onboardingService := services.NewOnboardingService(entityService, userRepo, notificationService)
	dashboardService := services.NewDashboardService(entityService)

	// Other instances' writes drop our cached copies
	var cacheInvalidationService *services.CacheInvalidationService
	if cachedRepo != nil && eventBus != nil {
		cacheInvalidationService = services.NewCacheInvalidationService(cachedRepo, eventBus, entityService.InstanceID())
		if err := cacheInvalidationService.Start(); err != nil {
			log.Warn().Err(err).Msg("failed to start cache invalidation service")
			cacheInvalidationService = nil
		}
	}

	reminders := services.NewReminderWorker(entityService, notificationService, cfg.Workers.ReminderInterval, cfg.Workers.ReminderWindow)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		reminders.Run(ctx)
	}()

	authLimiter := middleware.NewRateLimiter(authRequestsPerMinute, 5)
	defer authLimiter.Close()
	llmLimiter := middleware.NewRateLimiter(float64(cfg.OpenAI.RateLimitRPM), cfg.OpenAI.RateLimitBurst)
	defer llmLimiter.Close()

	// Set up router
	router := routes.NewRouter(routes.Handlers{
		Entity:       handlers.NewEntityHandler(entityService),
		Auth:         handlers.NewAuthHandler(authService),
		Integration:  handlers.NewIntegrationHandler(integrationService),
		Appointment:  handlers.NewAppointmentHandler(appointmentService),
		Care:         handlers.NewCareHandler(labService, orderService),
		Community:    handlers.NewCommunityHandler(forumService),
		HealthAI:     handlers.NewHealthAIHandler(healthAIService),
		Emergency:    handlers.NewEmergencyHandler(emergencyService),
		Onboarding:   handlers.NewOnboardingHandler(onboardingService),
		Dashboard:    handlers.NewDashboardHandler(dashboardService),
		Notification: handlers.NewNotificationHandler(notificationService),
		Stream:       handlers.NewSSEHandler(eventBus, handlers.DefaultHeartbeatInterval),
	}, routes.Options{
		Authenticator:  authService,
		Repository:     entityRepo,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        metrics,
		AuthLimiter:    authLimiter,
		LLMLimiter:     llmLimiter,
	})

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := routes.NewServer(ctx, serverAddr, router.SetupRoutes())

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", serverAddr).Str("env", cfg.Env).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		log.Error().Err(err).Msg("server failed")
		cancel()
	}

	log.Info().Msg("server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	<-workerDone

	if cacheInvalidationService != nil {
		cacheInvalidationService.Stop()
	}
	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Error().Err(err).Msg("error closing event bus")
		}
	}

	log.Info().Msg("server stopped")
}
