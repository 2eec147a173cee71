package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/vetclinic/sitemedia/internal/auth"
	"github.com/vetclinic/sitemedia/internal/config"
	"github.com/vetclinic/sitemedia/internal/domain"
	"github.com/vetclinic/sitemedia/internal/event"
	handler "github.com/vetclinic/sitemedia/internal/handler/http"
	"github.com/vetclinic/sitemedia/internal/optimizer"
	"github.com/vetclinic/sitemedia/internal/repository/postgres"
	"github.com/vetclinic/sitemedia/internal/service"
	"github.com/vetclinic/sitemedia/internal/storage"
	"github.com/vetclinic/sitemedia/internal/storage/memory"
	redisstore "github.com/vetclinic/sitemedia/internal/storage/redis"
	s3store "github.com/vetclinic/sitemedia/internal/storage/s3"
	"github.com/vetclinic/sitemedia/internal/storage/supabase"
	"github.com/vetclinic/sitemedia/internal/uploader"
	"github.com/vetclinic/sitemedia/migrations"
	"github.com/vetclinic/sitemedia/pkg/database"
	"github.com/vetclinic/sitemedia/pkg/health"
	pkgkafka "github.com/vetclinic/sitemedia/pkg/kafka"
	"github.com/vetclinic/sitemedia/pkg/logger"
	"github.com/vetclinic/sitemedia/pkg/middleware"
	"github.com/vetclinic/sitemedia/pkg/tracing"
)

const serviceName = "media-service"

// App wires together all dependencies and runs the media service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	rdb            *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	stopLimiter    context.CancelFunc
	shutdownTracer tracing.ShutdownFunc
}

// NewApp creates a new application instance, initializing all dependencies.
// It returns only once every critical dependency reports healthy.
func NewApp(cfg *config.Config, log *slog.Logger) (_ *App, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: log}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	defaults, err := pipelineDefaults(cfg)
	if err != nil {
		return nil, err
	}

	// Tracing.
	tracingCfg := tracing.DefaultConfig(serviceName)
	tracingCfg.Environment = cfg.Environment
	tracingCfg.OTLPEndpoint = cfg.OTELEndpoint
	tracingCfg.SampleRate = cfg.OTELSampleRate
	tracingCfg.Enabled = cfg.OTELEnabled
	a.shutdownTracer, err = tracing.InitTracer(ctx, tracingCfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pgCfg := cfg.PostgresConfig()
	a.pool, err = database.NewPostgresPool(ctx, &pgCfg, log)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	log.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, a.pool, "media"); err != nil {
		log.Warn("failed to register pool metrics", slog.String("error", err.Error()))
	}
	database.SetSlowQueryLogging(200*time.Millisecond, log)

	// Run database migrations.
	if err := database.RunMigrations(ctx, a.pool, migrations.FS, log); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	log.Info("database migrations completed")

	// Initialize Kafka producer.
	a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), log)
	log.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Object storage.
	store, opener, err := a.newStorage(ctx)
	if err != nil {
		return nil, err
	}
	log.Info("object storage initialized", slog.String("backend", cfg.StorageBackend))

	// Build the dependency graph.
	opt := optimizer.New(defaults)
	up := uploader.New(opt, store, cfg.UploadCacheControl, logger.Component(log, "uploader"))
	repo := postgres.NewImageRepository(a.pool)
	events := event.NewProducer(a.producer, log)
	imageService := service.NewImageService(opt, up, repo, store, events, log)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("storage", store.Ping)
	healthHandler.RegisterCritical("postgres", repo.Ping)
	healthHandler.RegisterNonCritical("kafka", a.producer.Ping)

	if err := healthHandler.WaitReady(ctx, cfg.StartupAttempts, cfg.StartupBackoff); err != nil {
		return nil, err
	}

	// HTTP router.
	limiterCtx, stopLimiter := context.WithCancel(context.Background())
	a.stopLimiter = stopLimiter
	limiter := middleware.NewRateLimiter(limiterCtx, middleware.RateLimitConfig{
		RPS:   cfg.UploadRateRPS,
		Burst: cfg.UploadRateBurst,
	}, log)

	router := handler.NewRouter(handler.RouterConfig{
		Service:  imageService,
		Health:   healthHandler,
		Validate: tokenValidator(cfg, log),
		CORS: middleware.CORSConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			ExposedHeaders: []string{"X-Correlation-ID", "X-Image-Width", "X-Image-Height"},
			Environment:    cfg.Environment,
		},
		PprofCIDRs:       cfg.PprofAllowedCIDRs,
		MaxUploadBytes:   cfg.MaxUploadBytes,
		Media:            opener,
		UploadLimiter:    limiter,
		MediaCacheMaxAge: cfg.UploadCacheControl,
	}, log)

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

// pipelineDefaults builds the optimizer defaults from configuration.
func pipelineDefaults(cfg *config.Config) (domain.Options, error) {
	format, err := domain.ParseFormat(cfg.ImageOutputType)
	if err != nil {
		return domain.Options{}, fmt.Errorf("IMAGE_OUTPUT_TYPE: %w", err)
	}
	defaults := domain.Options{
		MaxWidth:   cfg.ImageMaxWidth,
		Quality:    cfg.ImageQuality,
		OutputType: format,
	}.WithDefaults(domain.DefaultOptions())
	if err := defaults.Validate(); err != nil {
		return domain.Options{}, fmt.Errorf("image defaults: %w", err)
	}
	return defaults, nil
}

// newStorage selects the object store. The returned Opener is non-nil only
// for backends whose objects this service serves itself.
func (a *App) newStorage(ctx context.Context) (storage.Storage, storage.Opener, error) {
	cfg := a.cfg
	log := logger.Component(a.logger, "storage")

	switch cfg.StorageBackend {
	case config.BackendSupabase:
		return supabase.New(supabase.Config{
			URL:     cfg.SupabaseURL,
			Key:     cfg.SupabaseKey,
			Bucket:  cfg.SupabaseBucket,
			Timeout: 30 * time.Second,
		}, log), nil, nil

	case config.BackendS3:
		store, err := s3store.New(ctx, s3store.Config{
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
			PublicBaseURL:   cfg.S3PublicBaseURL,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			UsePathStyle:    cfg.S3UsePathStyle,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init s3 storage: %w", err)
		}
		return store, nil, nil

	case config.BackendRedis:
		rdb, err := database.NewRedisClient(ctx, cfg.RedisConfig(), log)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.rdb = rdb
		store := redisstore.New(rdb, cfg.PublicBaseURL(), 0)
		return store, store, nil

	case config.BackendMemory:
		store := memory.New(cfg.PublicBaseURL())
		return store, store, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// tokenValidator returns the bearer token check for the API routes. Without
// a secret every token is rejected.
func tokenValidator(cfg *config.Config, log *slog.Logger) middleware.TokenValidator {
	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET is not set; authenticated routes will reject every request")
		return func(string) (*middleware.Claims, error) {
			return nil, errors.New("token validation is not configured")
		}
	}
	return auth.NewTokenValidator(cfg.JWTSecret).Validate
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.close()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	a.close()

	a.logger.Info("application shutdown complete")
	return nil
}

// close releases every initialized dependency. It tolerates partially
// constructed apps.
func (a *App) close() {
	if a.stopLimiter != nil {
		a.stopLimiter()
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}

	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}

	if a.pool != nil {
		a.pool.Close()
	}

	if a.shutdownTracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.shutdownTracer(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		}
	}
}
