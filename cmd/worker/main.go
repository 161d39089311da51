package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/benvon/soonish/internal/cache"
	"github.com/benvon/soonish/internal/config"
	"github.com/benvon/soonish/internal/database"
	"github.com/benvon/soonish/internal/logger"
	"github.com/benvon/soonish/internal/metrics"
	"github.com/benvon/soonish/internal/queue"
	"github.com/benvon/soonish/internal/telemetry"
	"github.com/benvon/soonish/internal/workers"
)

const (
	serviceName         = "soonish-worker"
	rabbitMQMaxAttempts = 10
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	metricsAddr := flag.String("metrics-addr", ":9091", "Listen address for the Prometheus endpoint")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	if cfg.RedisURL == "" {
		zapLogger.Fatal("worker_requires_redis", zap.String("hint", "set REDIS_URL; the worker only maintains the cached board"))
	}

	mode := "follower"
	if cfg.RabbitMQURL != "" {
		mode = "queue"
	}
	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.String("mode", mode),
		zap.String("timezone", cfg.Location.String()),
		zap.Duration("board_refresh_debounce", cfg.BoardRefreshDebounce),
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

	redisClient, err := cache.NewRedisClient(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()

	m := metrics.New()
	if cfg.MetricsEnabled {
		go serveMetrics(ctx, *metricsAddr, m, zapLogger)
	}

	planRepo := database.NewPlanRepository(db, zapLogger)
	boardCache := cache.NewBoardCache(redisClient)

	var jobQueue *queue.RabbitMQQueue
	if mode == "queue" {
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

	var refresher *workers.BoardRefresher
	if jobQueue != nil {
		refresher = workers.NewBoardRefresher(planRepo, boardCache, jobQueue, logger.Component(zapLogger, "refresher"))
	} else {
		refresher = workers.NewBoardRefresher(planRepo, boardCache, nil, logger.Component(zapLogger, "refresher"))
	}
	refresher.SetClock(cfg.Now)
	refresher.SetObserver(m)

	if _, err := refresher.Refresh(ctx, queue.ReasonManual); err != nil {
		zapLogger.Warn("initial_board_refresh_failed", zap.Error(err))
	}

	// Rollover and change jobs go through the broker when there is one and
	// straight to the refresher otherwise.
	var enqueuer workers.JobEnqueuer = refresher
	if jobQueue != nil {
		enqueuer = jobQueue
	}

	rollover := workers.NewRolloverScheduler(enqueuer, cfg.Now, logger.Component(zapLogger, "rollover"))
	go func() {
		if err := rollover.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("rollover_scheduler_stopped_with_error", zap.Error(err))
		}
	}()

	if jobQueue != nil {
		msgs, errs, err := jobQueue.Consume(ctx, cfg.RabbitMQPrefetch)
		if err != nil {
			zapLogger.Fatal("failed_to_start_consuming_messages", zap.Error(err))
		}
		zapLogger.Info("worker_started_consuming", zap.Int("prefetch", cfg.RabbitMQPrefetch))
		refresher.Run(ctx, msgs, errs)
	} else {
		follower := workers.NewChangeFollower(planRepo, refresher, cfg.BoardRefreshDebounce, logger.Component(zapLogger, "follower"))
		zapLogger.Info("worker_started_following_plan_changes")
		if err := follower.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("change_follower_stopped_with_error", zap.Error(err))
		}
	}

	zapLogger.Info("worker_stopped")
}

func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics, zapLogger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	zapLogger.Info("metrics_server_starting", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		zapLogger.Error("metrics_server_failed", zap.Error(err))
	}
}
