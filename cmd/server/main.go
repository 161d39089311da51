package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"

	"github.com/benvon/soonish/internal/cache"
	"github.com/benvon/soonish/internal/config"
	"github.com/benvon/soonish/internal/database"
	"github.com/benvon/soonish/internal/handlers"
	"github.com/benvon/soonish/internal/logger"
	"github.com/benvon/soonish/internal/metrics"
	"github.com/benvon/soonish/internal/middleware"
	"github.com/benvon/soonish/internal/queue"
	"github.com/benvon/soonish/internal/services/ai"
	"github.com/benvon/soonish/internal/services/token"
	"github.com/benvon/soonish/internal/telemetry"
)

const (
	serviceName          = "soonish-api"
	settingsReloadPeriod = time.Minute
	pruneInterval        = time.Minute
	dlqCollectInterval   = time.Hour
	rabbitMQMaxAttempts  = 10
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug mode for LLM API logging")
	migrateFlag := flag.Bool("migrate", true, "Apply pending database migrations on startup")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.String("ai_provider", cfg.AIProvider),
		zap.String("ai_model", cfg.AIModel),
		zap.String("timezone", cfg.Location.String()),
		zap.Bool("auth_enabled", cfg.AuthEnabled()),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
		zap.String("version", telemetry.Version),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.Setup(ctx, cfg.OTELEnabled, serviceName, cfg.OTELEndpoint, zapLogger)
	if err != nil {
		zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		shutdownTracer = func(context.Context) error { return nil }
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
		}
	}()

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database")

	if *migrateFlag {
		migrateDatabase(db, zapLogger)
	}

	// Redis is optional: without it the board is always built live and
	// rate limiting is per process.
	var redisClient *redis.Client
	var boardCache *cache.BoardCache
	if cfg.RedisURL != "" {
		redisClient, err = cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
			}
		}()
		boardCache = cache.NewBoardCache(redisClient)
		zapLogger.Info("connected_to_redis")
	}

	// RabbitMQ is optional: without it a worker in follower mode picks up
	// changes through Postgres notifications.
	var jobQueue *queue.RabbitMQQueue
	if cfg.RabbitMQURL != "" {
		jobQueue, err = queue.ConnectWithRetry(ctx, cfg.RabbitMQURL, rabbitMQMaxAttempts, zapLogger)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.Error(err))
		}
		defer func() {
			if err := jobQueue.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
	}

	m := metrics.New()

	planRepo := database.NewPlanRepository(db, zapLogger)
	planRepo.SetChangeHandler(planChangeHandler(cfg, boardCache, jobQueue, m, zapLogger))
	settingsRepo := database.NewSettingsRepository(db)

	chatService := newChatService(cfg, planRepo, m, zapLogger, debugMode)

	limiterStore, err := middleware.NewLimiterStore(redisClient)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limiter_store", zap.Error(err))
	}
	corsReloader := middleware.NewCORSReloader(settingsRepo, cfg.FrontendURL, zapLogger, settingsReloadPeriod)
	rateLimitReloader := middleware.NewRateLimitReloader(limiterStore, settingsRepo, cfg.ChatRateLimit, zapLogger, settingsReloadPeriod)

	var boards handlers.BoardStore
	if boardCache != nil {
		boards = boardCache
	}
	planHandler := handlers.NewPlanHandler(planRepo, cfg.Now, zapLogger)
	boardHandler := handlers.NewBoardHandler(planRepo, boards, cfg.Now, zapLogger)

	checks := map[string]handlers.Pinger{
		"database": handlers.PingerFunc(db.HealthCheck),
	}
	if redisClient != nil {
		checks["redis"] = handlers.PingerFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}
	if jobQueue != nil {
		checks["queue"] = handlers.PingerFunc(jobQueue.HealthCheck)
	}
	healthChecker := handlers.NewHealthChecker(checks)

	// Middleware registered first runs outermost
	r := mux.NewRouter()
	r.Use(middleware.RequestID)
	if cfg.OTELEnabled {
		r.Use(otelmux.Middleware(serviceName))
	}
	if cfg.MetricsEnabled {
		r.Use(m.Middleware)
	}
	r.Use(middleware.Logging(zapLogger))
	r.Use(middleware.Audit(zapLogger))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(corsReloader.Middleware())
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)

	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", versionInfo).Methods(http.MethodGet)
	if cfg.MetricsEnabled {
		r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	}
	handlers.NewOpenAPIHandler().RegisterRoutes(r)

	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	if cfg.AuthEnabled() {
		tokens, err := token.NewService(cfg.APITokenSecret)
		if err != nil {
			zapLogger.Fatal("failed_to_create_token_service", zap.Error(err))
		}
		apiRouter.Use(middleware.Auth(tokens, zapLogger))
	} else {
		zapLogger.Warn("api_authentication_disabled")
	}

	plansRouter := apiRouter.PathPrefix("/plans").Subrouter()
	plansRouter.Use(middleware.Timeout(middleware.DefaultRequestTimeout))
	planHandler.RegisterRoutes(plansRouter)

	if chatService != nil {
		chatRouter := apiRouter.PathPrefix("/conversations").Subrouter()
		chatRouter.Use(rateLimitReloader.Middleware())
		chatRouter.Use(middleware.Timeout(middleware.ChatRequestTimeout))
		handlers.NewChatHandler(chatService, cfg.Now, zapLogger).RegisterRoutes(chatRouter)
	}

	// Board routes sit at the /api/v1 root, so their subrouter goes last
	boardRouter := apiRouter.PathPrefix("").Subrouter()
	boardRouter.Use(middleware.Timeout(middleware.DefaultRequestTimeout))
	boardHandler.RegisterRoutes(boardRouter)

	// Preflight requests are answered by the CORS middleware; this only
	// gives them a matching route.
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	go corsReloader.Start(ctx)
	go rateLimitReloader.Start(ctx)
	if chatService != nil {
		go pruneConversations(ctx, chatService, cfg.ConversationIdleTimeout, m, zapLogger)
	}
	if jobQueue != nil {
		dlqGC := queue.NewGarbageCollector(jobQueue, dlqCollectInterval, cfg.DLQRetention, zapLogger)
		go func() {
			if err := dlqGC.Start(ctx); err != nil && err != context.Canceled {
				zapLogger.Error("dlq_garbage_collector_stopped_with_error", zap.Error(err))
			}
		}()
		zapLogger.Info("started_dlq_garbage_collector",
			zap.Duration("interval", dlqCollectInterval),
			zap.Duration("retention", cfg.DLQRetention),
		)
	}

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   middleware.ChatRequestTimeout + 15*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB max header size
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("server_shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}
	zapLogger.Info("server_exited")
}

func migrateDatabase(db *database.DB, zapLogger *zap.Logger) {
	migrator, err := database.NewMigrator(db)
	if err != nil {
		zapLogger.Fatal("failed_to_create_migrator", zap.Error(err))
	}
	changed, err := migrator.Up()
	if err != nil {
		zapLogger.Fatal("failed_to_apply_migrations", zap.Error(err))
	}
	version, dirty, err := migrator.Version()
	if err != nil {
		zapLogger.Warn("failed_to_read_migration_version", zap.Error(err))
		return
	}
	zapLogger.Info("database_migrated",
		zap.Bool("changed", changed),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
}

// planChangeHandler drops the cached board on every write and, when a
// broker is configured, asks the worker for a debounced rebuild
func planChangeHandler(cfg *config.Config, boardCache *cache.BoardCache, jobQueue *queue.RabbitMQQueue, m *metrics.Metrics, zapLogger *zap.Logger) database.ChangeHandler {
	return func(ctx context.Context, change database.PlanChange) error {
		m.ObservePlanWrite(string(change.Op))

		if boardCache != nil {
			if err := boardCache.Invalidate(ctx); err != nil {
				zapLogger.Warn("failed_to_invalidate_board_cache",
					zap.String("plan_id", change.PlanID.String()),
					zap.Error(err),
				)
			}
		}
		if jobQueue == nil {
			return nil
		}

		planID := change.PlanID
		job := queue.NewBoardRefreshJob(queue.ReasonPlanChange, &planID, cfg.Now()).Debounce(cfg.BoardRefreshDebounce)
		if err := jobQueue.Enqueue(ctx, job); err != nil {
			return fmt.Errorf("failed to enqueue board refresh job: %w", err)
		}
		zapLogger.Debug("enqueued_board_refresh_job",
			zap.String("job_id", job.ID.String()),
			zap.String("plan_id", planID.String()),
			zap.Duration("debounce_delay", cfg.BoardRefreshDebounce),
		)
		return nil
	}
}

// newChatService builds the conversation engine, or returns nil when no
// extraction provider is configured
func newChatService(cfg *config.Config, plans ai.PlanSaver, m *metrics.Metrics, zapLogger *zap.Logger, debugMode bool) *ai.ChatService {
	if cfg.OpenAIKey == "" {
		zapLogger.Warn("ai_provider_not_configured_chat_disabled")
		return nil
	}

	registry := ai.NewProviderRegistry()
	registry.Register("openai", ai.NewOpenAIFactory(logger.Component(zapLogger, "llm"), debugMode))
	extractor, err := registry.GetProvider(cfg.AIProvider, map[string]string{
		"api_key":  cfg.OpenAIKey,
		"model":    cfg.AIModel,
		"base_url": cfg.AIBaseURL,
	})
	if err != nil {
		zapLogger.Warn("failed_to_create_ai_provider_chat_disabled", zap.Error(err))
		return nil
	}

	chats := ai.NewChatService(extractor, plans, logger.Component(zapLogger, "chat"))
	chats.SetClock(cfg.Now)
	chats.SetObserver(m)
	return chats
}

func pruneConversations(ctx context.Context, chats *ai.ChatService, maxIdle time.Duration, m *metrics.Metrics, zapLogger *zap.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pruned := chats.PruneIdle(maxIdle); pruned > 0 {
				zapLogger.Info("idle_conversations_pruned", zap.Int("count", pruned))
			}
			m.SetLiveConversations(chats.Count())
		}
	}
}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, `{"version":%q,"timestamp":%q}`, telemetry.Version, time.Now().UTC().Format(time.RFC3339))
}
