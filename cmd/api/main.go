package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"boomscore/identity/internal/cache"
	"boomscore/identity/internal/config"
	"boomscore/identity/internal/database"
	"boomscore/identity/internal/graph"
	"boomscore/identity/internal/handlers"
	"boomscore/identity/internal/jobs"
	"boomscore/identity/internal/log"
	"boomscore/identity/internal/memstore"
	"boomscore/identity/internal/middleware"
	"boomscore/identity/internal/oauth"
	"boomscore/identity/internal/observe"
	"boomscore/identity/internal/repository"
	"boomscore/identity/internal/security"
	"boomscore/identity/internal/server"
	"boomscore/identity/internal/service"
	"boomscore/identity/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	warnings, err := cfg.Validate()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	for _, w := range warnings {
		logger.Warn().Msg(w)
	}

	ctx := context.Background()
	checks := map[string]handlers.HealthCheck{}

	var dbPool *pgxpool.Pool
	var stores service.Stores
	if cfg.Postgres.DSN != "" {
		dbPool, err = database.NewPostgresPool(ctx, cfg.Postgres)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect postgres")
		}
		if err := database.Migrate(ctx, dbPool, logger); err != nil {
			logger.Fatal().Err(err).Msg("migrations failed")
		}
		stores = service.Stores{
			Users:         repository.NewUserRepository(dbPool),
			Devices:       repository.NewDeviceRepository(dbPool),
			Sessions:      repository.NewSessionRepository(dbPool),
			RefreshTokens: repository.NewRefreshTokenRepository(dbPool),
		}
		checks["postgres"] = dbPool.Ping
	} else {
		logger.Warn().Msg("DATABASE_URL not set, identity data kept in memory")
		mem := memstore.New()
		stores = service.Stores{
			Users:         mem.Users,
			Devices:       mem.Devices,
			Sessions:      mem.Sessions,
			RefreshTokens: mem.RefreshTokens,
		}
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		if cfg.IsProduction() {
			logger.Fatal().Err(err).Msg("failed to connect redis")
		}
		logger.Warn().Err(err).Msg("redis unavailable, rate limiting and google sign-in disabled")
		redisClient = nil
	}

	var (
		limiter middleware.HitCounter
		states  handlers.StateStore
	)
	if redisClient != nil {
		limiter = cache.NewWindowCounter(redisClient, "ratelimit:")
		states = oauth.NewStateStore(redisClient)
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	var avatarStore service.AvatarStore
	if cfg.Storage.Endpoint != "" {
		objectStore, err := storage.NewObjectStore(cfg.Storage)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init object store")
		}
		if err := objectStore.EnsureBucket(ctx); err != nil {
			logger.Warn().Err(err).Msg("ensure avatar bucket failed")
		}
		avatarStore = objectStore
		checks["storage"] = objectStore.Ping
	} else {
		logger.Warn().Msg("storage endpoint not set, avatar uploads disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := observe.NewMetricsRecorder(registry)
	if err != nil {
		logger.Fatal().Err(err).Msg("register metrics")
	}
	recorder := observe.Multi(observe.NewLogRecorder(logger), metrics)

	issuer := security.NewTokenIssuer(cfg.Security.JWTSecret, cfg.AccessTTL())
	auth := service.NewAuthService(stores, issuer, recorder, service.AuthOptions{
		RefreshTTL:     cfg.RefreshTTL(),
		MaxSessions:    cfg.Security.MaxSessions,
		SessionBinding: cfg.Security.SessionBinding,
	}, logger)
	accounts := service.NewAccountService(stores, recorder, logger)
	avatars := service.NewAvatarService(stores.Users, avatarStore, logger)

	graphServer, err := graph.NewServer(auth, accounts, handlers.NewTransport(cfg), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("build graphql schema")
	}

	handlerSet := handlers.NewHandlerSet(handlers.Deps{
		Config:   cfg,
		Log:      logger,
		Auth:     auth,
		Accounts: accounts,
		Avatars:  avatars,
		Google:   oauth.NewGoogleProvider(cfg.Google, logger),
		States:   states,
		Limiter:  limiter,
		Recorder: recorder,
		Checks:   checks,
		Metrics:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		GraphQL:  graphServer.Handle,
	})
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(redisClient, cfg.Worker.Stream, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	scheduler.Stop(5 * time.Second)

	if db != nil {
		db.Close()
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}

	logger.Info().Msg("server exited cleanly")
}
