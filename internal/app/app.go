package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nexlane/solutionhub/internal/config"
	"github.com/nexlane/solutionhub/internal/event"
	handler "github.com/nexlane/solutionhub/internal/handler/http"
	"github.com/nexlane/solutionhub/internal/notifier"
	"github.com/nexlane/solutionhub/internal/provider"
	"github.com/nexlane/solutionhub/internal/repository/postgres"
	"github.com/nexlane/solutionhub/internal/service"
	"github.com/nexlane/solutionhub/migrations"
	"github.com/nexlane/solutionhub/pkg/database"
	"github.com/nexlane/solutionhub/pkg/health"
	"github.com/nexlane/solutionhub/pkg/httpclient"
	pkgkafka "github.com/nexlane/solutionhub/pkg/kafka"
	"github.com/nexlane/solutionhub/pkg/middleware"
	"github.com/nexlane/solutionhub/pkg/tracing"
)

// webhookDedupTTL bounds how long processed webhook event ids are retained.
// The billing provider retries deliveries for at most three days.
const webhookDedupTTL = 72 * time.Hour

// App wires together all dependencies and runs the solutionhub server.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redisClient    *redis.Client
	producer       *pkgkafka.Producer
	rateLimiter    *middleware.RateLimiter
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "solutionhub",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     cfg.TraceSampleRate,
		Enabled:        cfg.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pgCfg := database.PostgresConfig{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPass,
		DBName:   cfg.PostgresDB,
		SSLMode:  cfg.PostgresSSL,
	}

	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, "solutionhub")

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Redis backs webhook deduplication.
	redisClient, err := database.NewRedisClient(ctx, &database.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("addr", cfg.RedisAddr))

	// Initialize Kafka producer.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Build the dependency graph.
	assetRepo := postgres.NewAssetRepository(pool)
	solutionRepo := postgres.NewSolutionRepository(pool)
	reviewRepo := postgres.NewReviewRepository(pool)
	voteRepo := postgres.NewVoteRepository(pool, logger)
	bookingRepo := postgres.NewBookingRepository(pool, logger)
	billingRepo := postgres.NewBillingRepository(pool)

	eventProducer := event.NewProducer(producer, cfg.DomainEventTopic, logger)
	dispatcher := notifier.NewKafkaDispatcher(producer, cfg.NotificationTopic, logger)

	// Billing provider client with retries and a circuit breaker.
	baseClient := httpclient.New(httpclient.Config{
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		RetryWaitMin:    500 * time.Millisecond,
		RetryWaitMax:    5 * time.Second,
		MaxConnsPerHost: 100,
	})
	cbClient := httpclient.NewCircuitBreakerClient(
		baseClient,
		httpclient.DefaultCircuitBreakerConfig("billing-provider"),
		logger,
	)
	billingProvider := provider.NewRESTBillingProvider(cbClient, cfg.BillingBaseURL, cfg.BillingAPIKey, logger)

	catalogService := service.NewCatalogService(assetRepo, solutionRepo, logger)
	reviewService := service.NewReviewService(reviewRepo, eventProducer, logger)
	voteService := service.NewVoteService(voteRepo, logger)
	bookingService := service.NewBookingService(
		bookingRepo,
		solutionRepo,
		billingRepo,
		billingProvider,
		eventProducer,
		dispatcher,
		service.CheckoutURLs{SuccessURL: cfg.CheckoutSuccessURL, CancelURL: cfg.CheckoutCancelURL},
		logger,
	)
	billingSync := service.NewBillingSyncService(
		billingRepo,
		solutionRepo,
		bookingRepo,
		dispatcher,
		eventProducer,
		logger,
	)

	webhookDedup := pkgkafka.NewRedisIdempotencyStore(redisClient, "webhook:billing", webhookDedupTTL)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.Register("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins
	corsCfg.Environment = cfg.Environment

	router := handler.NewRouter(handler.RouterDeps{
		Catalog:       catalogService,
		Reviews:       reviewService,
		Votes:         voteService,
		Bookings:      bookingService,
		BillingSync:   billingSync,
		WebhookDedup:  webhookDedup,
		WebhookSecret: cfg.BillingWebhookSecret,
		Health:        healthHandler,
		Auth:          middleware.JWTValidator(cfg.JWTSecret),
		RateLimiter:   rateLimiter,
		CORS:          corsCfg,
		Logger:        logger,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redisClient:    redisClient,
		producer:       producer,
		rateLimiter:    rateLimiter,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components: the HTTP server drains first so
// in-flight request spans still reach the tracer, then the outbound
// producer and stores close.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.rateLimiter.Close()

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.redisClient.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
