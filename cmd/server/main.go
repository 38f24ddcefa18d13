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

	"go.uber.org/zap"

	"matjar/backoffice/internal/cache"
	"matjar/backoffice/internal/config"
	"matjar/backoffice/internal/events"
	"matjar/backoffice/internal/httpapi"
	"matjar/backoffice/internal/logging"
	"matjar/backoffice/internal/metrics"
	"matjar/backoffice/internal/service"
	"matjar/backoffice/internal/store"
	"matjar/backoffice/internal/store/memory"
	pgstore "matjar/backoffice/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatal("invalid security configuration", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 3)

	repo, closeRepo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("repository unavailable", zap.Error(err))
	}
	if closeRepo != nil {
		closers = append(closers, closeRepo)
	}

	actionCache, closeCache := openCache(ctx, cfg, logger)
	if closeCache != nil {
		closers = append(closers, closeCache)
	}

	publisher, closePublisher := openPublisher(cfg, logger)
	if closePublisher != nil {
		closers = append(closers, closePublisher)
	}

	server := newServer(ctx, cfg, repo, actionCache, publisher, logger)

	go func() {
		logger.Info("back office listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error("close error", zap.Error(err))
		}
	}

	logger.Info("server stopped")
}

func newServer(ctx context.Context, cfg config.Config, repo store.Repository, actionCache cache.ActionCache, publisher events.Publisher, logger *zap.Logger) *http.Server {
	m := metrics.New()
	svc := service.New(repo, service.Options{
		Cache:     actionCache,
		Publisher: publisher,
		Metrics:   m,
		Logger:    logger,
		ActionTTL: cfg.ActionTTL(),
	})
	auth := httpapi.NewAuthManager(ctx, cfg.AuthSecret, cfg.AccessTokenTTL(), repo, logger)
	api := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin:   cfg.AllowedOrigin,
		Currency:        cfg.Currency,
		DefaultLanguage: cfg.DefaultLanguage,
		Metrics:         m,
		Logger:          logger,
	})

	return &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// openRepository connects to PostgreSQL when DATABASE_URL is set and never
// falls back to memory in that case. Without it the seeded in-memory store
// is used.
func openRepository(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Repository, func() error, error) {
	if cfg.DatabaseURL == "" {
		repo, err := memory.NewSeeded(logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("repository: in-memory")
		return repo, nil, nil
	}

	pg, err := pgstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		_ = pg.Close()
		return nil, nil, err
	}
	if cfg.SeedDemoData {
		if err := seedPostgres(ctx, pg, logger); err != nil {
			_ = pg.Close()
			return nil, nil, err
		}
	}
	logger.Info("repository: postgres", zap.Bool("demo_data", cfg.SeedDemoData))
	return pg, pg.Close, nil
}

func seedPostgres(ctx context.Context, pg *pgstore.Store, logger *zap.Logger) error {
	data, err := memory.LoadSeed(time.Now())
	if err != nil {
		return err
	}
	if err := pg.Seed(ctx, data); err != nil {
		return fmt.Errorf("seed demo data: %w", err)
	}
	users, err := memory.DemoUsers(logger)
	if err != nil {
		return err
	}
	for _, user := range users {
		if err := pg.CreateUser(ctx, user); err != nil && !errors.Is(err, store.ErrInvalidRecord) {
			return fmt.Errorf("seed user %s: %w", user.Username, err)
		}
	}
	return nil
}

// openCache prefers Redis so retries are recognised across instances. An
// unreachable Redis degrades to the in-process cache.
func openCache(ctx context.Context, cfg config.Config, logger *zap.Logger) (cache.ActionCache, func() error) {
	if cfg.RedisAddr == "" {
		logger.Info("action cache: memory")
		return cache.NewMemoryActionCache(), nil
	}
	redisCache := cache.NewRedisActionCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := redisCache.Ping(ctx); err != nil {
		logger.Warn("redis unavailable, using memory action cache", zap.Error(err))
		_ = redisCache.Close()
		return cache.NewMemoryActionCache(), nil
	}
	logger.Info("action cache: redis", zap.String("addr", cfg.RedisAddr))
	return redisCache, redisCache.Close
}

func openPublisher(cfg config.Config, logger *zap.Logger) (events.Publisher, func() error) {
	if cfg.AMQPURL == "" {
		logger.Info("action events: disabled")
		return events.NoopPublisher{}, nil
	}
	publisher, err := events.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		logger.Warn("amqp unavailable, action events disabled", zap.Error(err))
		return events.NoopPublisher{}, nil
	}
	logger.Info("action events: amqp", zap.String("exchange", cfg.AMQPExchange))
	return publisher, publisher.Close
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}
