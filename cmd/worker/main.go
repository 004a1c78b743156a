package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"boomscore/identity/internal/cache"
	"boomscore/identity/internal/config"
	"boomscore/identity/internal/database"
	"boomscore/identity/internal/log"
	"boomscore/identity/internal/queue"
	"boomscore/identity/internal/repository"
	"boomscore/identity/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level).With().Str("component", "worker").Logger()

	if cfg.Postgres.DSN == "" {
		logger.Fatal().Msg("DATABASE_URL is required for the maintenance worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	processor := tasks.NewProcessor(
		repository.NewSessionRepository(dbPool),
		repository.NewRefreshTokenRepository(dbPool),
		repository.NewUserRepository(dbPool),
		logger,
	)
	consumer := queue.NewConsumer(
		client,
		cfg.Worker.Stream,
		cfg.Worker.Group,
		cfg.Worker.Consumer,
		cfg.Worker.ClaimInterval,
		logger,
		processor,
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("consumer stopped unexpectedly")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn().Msg("consumer did not stop in time")
	}
}
