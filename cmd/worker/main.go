package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/checkout-pricing/internal/checkout"
	"github.com/noah-isme/checkout-pricing/internal/config"
	"github.com/noah-isme/checkout-pricing/internal/events"
	"github.com/noah-isme/checkout-pricing/internal/lock"
	"github.com/noah-isme/checkout-pricing/internal/obs"
	"github.com/noah-isme/checkout-pricing/internal/repo"
	"github.com/noah-isme/checkout-pricing/internal/resilience"
	"github.com/noah-isme/checkout-pricing/internal/taxapp"
	"github.com/noah-isme/checkout-pricing/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	obs.MustRegisterDomainMetrics(envOrDefault("OBS_METRICS_NAMESPACE", "checkout_pricing"), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	checkouts := repo.NewCheckouts(pool)
	base := checkout.StandardBasePrices{}
	taxClient := &taxapp.Client{
		BaseURL: cfg.TaxAppURL,
		HTTP: resilience.HTTPClient{
			Client:      &http.Client{},
			Breaker:     resilience.NewBreaker(cfg.BreakerMinReqs, cfg.BreakerRatio, cfg.BreakerOpenFor).WithTarget("tax-app").WithLogger(logger),
			BaseBackoff: 200 * time.Millisecond,
			MaxAttempts: cfg.TaxAppRetries,
			Jitter:      0.2,
			Timeout:     cfg.TaxAppTimeout,
		},
		Base:   base,
		Logger: logger,
	}
	pricingSvc := &checkout.Service{
		Base:      base,
		Tax:       taxClient,
		Rates:     repo.NewFlatRates(pool, cfg.ShippingTaxClass),
		Store:     checkouts,
		GiftCards: repo.NewGiftCards(pool),
		Events:    &events.Bus{Store: repo.NewEvents(pool)},
		TTL:       cfg.PricesTTL,
		Logger:    logger,
	}
	refresher := &worker.Refresher{
		Expired: checkouts,
		Loader:  checkouts,
		Svc:     pricingSvc,
		Locker:  lock.Locker{R: redisClient},
		LockTTL: cfg.RefreshLockTTL,
		Batch:   cfg.RefreshBatch,
		Logger:  logger,
	}

	redisConn, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis uri for asynq")
	}

	scheduler := asynq.NewScheduler(redisConn, &asynq.SchedulerOpts{})
	spec := fmt.Sprintf("@every %s", cfg.RefreshInterval)
	if _, err := scheduler.Register(spec, worker.NewRefreshTask()); err != nil {
		logger.Fatal().Err(err).Msg("register refresh schedule")
	}
	go func() {
		if err := scheduler.Run(); err != nil {
			logger.Error().Err(err).Msg("scheduler stopped")
		}
	}()
	defer scheduler.Shutdown()

	srv := asynq.NewServer(redisConn, asynq.Config{
		Concurrency: envInt("WORKER_CONCURRENCY", 2),
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(worker.TypeRefreshPrices, refresher.HandleRefreshTask)

	logger.Info().Str("schedule", spec).Msg("worker starting")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped with error")
	}
	logger.Info().Msg("worker shutdown complete")
}

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "checkout-pricing-worker"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}
