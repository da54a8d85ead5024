package container

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"

	database "github.com/FACorreiaa/easytrip-api/app/db"
	appMiddleware "github.com/FACorreiaa/easytrip-api/app/middleware"
	"github.com/FACorreiaa/easytrip-api/app/observability/metrics"
	"github.com/FACorreiaa/easytrip-api/app/tracer"
	"github.com/FACorreiaa/easytrip-api/config"
	"github.com/FACorreiaa/easytrip-api/internal/api/auth"
	"github.com/FACorreiaa/easytrip-api/internal/api/place"
	"github.com/FACorreiaa/easytrip-api/internal/api/review"
	"github.com/FACorreiaa/easytrip-api/internal/api/user"
	"github.com/FACorreiaa/easytrip-api/internal/imagehost"
	"github.com/FACorreiaa/easytrip-api/internal/router"
)

const redisPingTimeout = 3 * time.Second

// Container holds all application dependencies
type Container struct {
	Config    *config.Config
	Logger    *slog.Logger
	Pool      *pgxpool.Pool
	Redis     *redis.Client
	Telemetry *tracer.Telemetry

	Dispatcher imagehost.Dispatcher
	// Consumer is set when uploads go through RabbitMQ.
	Consumer *imagehost.Consumer

	PlaceHandler  *place.HandlerImpl
	ReviewHandler *review.HandlerImpl
	UserHandler   *user.HandlerImpl

	Authenticate  router.Middleware
	RequireAdmin  router.Middleware
	ResponseCache *appMiddleware.ResponseCache
}

// NewContainer initializes and returns a new dependency container
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}

	telemetry, err := tracer.InitTracingAndMetrics(cfg.Metrics.ServiceName)
	if err != nil {
		logger.Error("Failed to initialize telemetry", slog.Any("error", err))
		return nil, err
	}
	c.Telemetry = telemetry
	metrics.InitAppMetrics()

	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		_ = c.Close(ctx)
		return nil, err
	}
	pool, err := database.Init(ctx, dbConfig, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		_ = c.Close(ctx)
		return nil, err
	}
	c.Pool = pool

	var invalidator place.Invalidator = place.NoopInvalidator{}
	if cfg.Repositories.Redis.Enabled {
		if rdb := connectRedis(ctx, cfg, logger); rdb != nil {
			c.Redis = rdb
			c.ResponseCache = appMiddleware.NewResponseCache(
				appMiddleware.NewRedisStore(rdb), cfg.Cache.ResponsePrefix, cfg.Cache.ResponseTTL, logger)
			invalidator = c.ResponseCache
		}
	}

	// Users and auth
	userRepo := user.NewPostgresUserRepo(pool, logger)
	userService := user.NewUserService(userRepo, logger)
	c.UserHandler = user.NewHandlerImpl(userService, logger)

	var verifier auth.Verifier
	if cfg.StubAuth() {
		logger.Warn("Stub authentication enabled, every caller is an admin")
		verifier = auth.StubVerifier{}
	} else {
		verifier = auth.NewFirebaseVerifier(cfg.Auth, logger)
	}
	policy := auth.NewAdminPolicy(cfg.StubAuth(), cfg.Auth.AdminEmails, cfg.Auth.AdminUIDs)
	c.Authenticate = auth.Authenticate(logger, verifier, userService, policy)
	c.RequireAdmin = auth.RequireAdmin(logger)

	// Places and images
	placeRepo := place.NewRepository(pool, logger)
	uploader, err := imagehost.New(cfg.Images, logger)
	if err != nil {
		logger.Error("Failed to initialize image host", slog.Any("error", err))
		_ = c.Close(ctx)
		return nil, err
	}
	processor := imagehost.NewProcessor(uploader, place.NewImageSink(placeRepo, invalidator, logger), logger)
	local := imagehost.NewLocalDispatcher(processor)
	c.Dispatcher = local
	if mq := cfg.Repositories.RabbitMQ; mq.Enabled {
		c.Dispatcher = imagehost.NewAMQPDispatcher(mq.URL, mq.Queue, local, logger)
		c.Consumer = imagehost.NewConsumer(mq.URL, mq.Queue, processor, logger)
	}

	placeService := place.NewService(placeRepo, c.Dispatcher, invalidator, cfg.Cache.SnapshotTTL,
		place.ImageSettings{Folder: cfg.Images.Folder, TempDir: cfg.Images.TempDir}, logger)
	c.PlaceHandler = place.NewHandlerImpl(placeService, cfg.Server.MaxUploadBytes, logger)

	// Reviews
	reviewRepo := review.NewRepository(pool, logger)
	reviewService := review.NewService(reviewRepo, invalidator, logger)
	c.ReviewHandler = review.NewHandlerImpl(reviewService, logger)

	return c, nil
}

// connectRedis returns nil when the server does not answer; the API then
// runs without the response cache.
func connectRedis(ctx context.Context, cfg *config.Config, logger *slog.Logger) *redis.Client {
	rc := cfg.Repositories.Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis unavailable, response cache disabled", slog.String("addr", rc.Addr), slog.Any("error", err))
		_ = rdb.Close()
		return nil
	}
	logger.Info("Redis connected", slog.String("addr", rc.Addr))
	return rdb
}

// RouterConfig wires the handlers into the API router.
func (c *Container) RouterConfig() *router.Config {
	rc := &router.Config{
		PlaceHandler:     c.PlaceHandler,
		ReviewHandler:    c.ReviewHandler,
		UserHandler:      c.UserHandler,
		Authenticate:     c.Authenticate,
		RequireAdmin:     c.RequireAdmin,
		AllowedOrigins:   c.Config.Server.AllowedOrigins,
		ReviewsPerMinute: c.Config.Server.ReviewsPerMinute,
	}
	if c.ResponseCache != nil {
		rc.Cache = c.ResponseCache.Middleware
	}
	return rc
}

// MetricsHandler serves the Prometheus scrape endpoint.
func (c *Container) MetricsHandler() http.Handler {
	return c.Telemetry.Handler()
}

// Close releases all resources held by the container. Pending image jobs
// are drained before the pool closes.
func (c *Container) Close(ctx context.Context) error {
	var err error
	if c.Dispatcher != nil {
		err = multierr.Append(err, c.Dispatcher.Close(ctx))
	}
	if c.Redis != nil {
		err = multierr.Append(err, c.Redis.Close())
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
	if c.Telemetry != nil {
		err = multierr.Append(err, c.Telemetry.Shutdown(ctx))
	}
	return err
}

// WaitForDB waits for the database to be ready
func (c *Container) WaitForDB(ctx context.Context) bool {
	return database.WaitForDB(ctx, c.Pool, c.Logger)
}
