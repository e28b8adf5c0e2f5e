package main

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/aurelle-london/backend-aurelle/internal/common"
	"github.com/aurelle-london/backend-aurelle/internal/config"
	"github.com/aurelle-london/backend-aurelle/internal/events"
	"github.com/aurelle-london/backend-aurelle/internal/lock"
	"github.com/aurelle-london/backend-aurelle/internal/notify"
	"github.com/aurelle-london/backend-aurelle/internal/obs"
	"github.com/aurelle-london/backend-aurelle/internal/resilience"
	"github.com/aurelle-london/backend-aurelle/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	ctx := context.Background()

	pool, queries := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	taskConnOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for tasks")
	}

	confirmations := confirmationHandler{
		Q:       queries,
		Mail:    common.NopEmailSender{},
		Inbox:   envOrDefault("NOTIFY_ORDERS_INBOX", ""),
		Locker:  lock.Locker{R: redisClient},
		Breaker: resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget("order-confirmation").WithLogger(logger),
		Logger:  logger,
	}

	srv := asynq.NewServer(taskConnOpt, asynq.Config{
		Concurrency: 5,
		Queues:      map[string]int{"default": 1},
		Logger:      asynqLogger{logger},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(events.TaskOrderConfirmation, confirmations.Handle)

	logger.Info().Msg("worker starting")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped with error")
	}
	logger.Info().Msg("worker shutdown complete")
}

// confirmationHandler sends the order confirmation email for a freshly
// created order. A short-lived lock dedupes retried deliveries of the same
// task; send failures trip the breaker so a broken mail provider does not
// burn through the retry budget.
type confirmationHandler struct {
	Q       *store.Queries
	Mail    common.EmailSender
	Inbox   string
	Locker  lock.Locker
	Breaker *resilience.Breaker
	Logger  zerolog.Logger
}

func (h confirmationHandler) Handle(ctx context.Context, t *asynq.Task) error {
	orderID, err := events.DecodeOrderConfirmation(t)
	if err != nil {
		return err
	}
	return h.Locker.WithLock(ctx, "confirm:"+orderID.String(), time.Minute, func(ctx context.Context) error {
		ord, err := h.Q.GetOrderByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				h.Logger.Warn().Str("order_id", orderID.String()).Msg("order vanished before confirmation")
				return nil
			}
			return err
		}
		items, err := h.Q.ListOrderItems(ctx, orderID)
		if err != nil {
			return err
		}
		to := strings.TrimSpace(h.Inbox)
		if to == "" {
			h.Logger.Debug().Str("order_id", orderID.String()).Msg("no confirmation inbox configured")
			return nil
		}
		if h.Breaker != nil && !h.Breaker.Allow(ctx) {
			return errors.New("confirmation sender circuit open")
		}
		subject, body := notify.ConfirmationEmail(ord, items)
		sendErr := h.Mail.Send(to, subject, body)
		if h.Breaker != nil {
			h.Breaker.Report(ctx, sendErr == nil)
		}
		if sendErr != nil {
			return sendErr
		}
		h.Logger.Info().Str("order_number", ord.OrderNumber).Msg("confirmation sent")
		return nil
	})
}

// asynqLogger adapts zerolog to asynq's logger interface.
type asynqLogger struct {
	l zerolog.Logger
}

func (a asynqLogger) Debug(args ...any) { a.l.Debug().Msgf("%v", args) }
func (a asynqLogger) Info(args ...any)  { a.l.Info().Msgf("%v", args) }
func (a asynqLogger) Warn(args ...any)  { a.l.Warn().Msgf("%v", args) }
func (a asynqLogger) Error(args ...any) { a.l.Error().Msgf("%v", args) }
func (a asynqLogger) Fatal(args ...any) { a.l.Fatal().Msgf("%v", args) }

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*pgxpool.Pool, *store.Queries) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	poolConfig.ConnConfig.RuntimeParams = map[string]string{"application_name": "aurelle-worker"}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool, store.New(pool)
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
