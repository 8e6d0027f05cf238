package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lumea-app/lumea-backend/internal/accounts"
	"github.com/lumea-app/lumea-backend/internal/cron"
	"github.com/lumea-app/lumea-backend/internal/ledger"
	"github.com/lumea-app/lumea-backend/internal/presence"
	"github.com/lumea-app/lumea-backend/internal/sessions"
	"github.com/lumea-app/lumea-backend/pkg/config"
	"github.com/lumea-app/lumea-backend/pkg/db"
	"github.com/lumea-app/lumea-backend/pkg/logger"
	"github.com/lumea-app/lumea-backend/pkg/metrics"
	"github.com/lumea-app/lumea-backend/pkg/migrate"
	"github.com/lumea-app/lumea-backend/pkg/outbox"
	"github.com/lumea-app/lumea-backend/pkg/redis"
)

const lockKeyFormat = "lumea:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	presenceService, err := presence.NewService(redisClient, cfg.Billing.PresenceTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create presence service", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(dbClient, ledger.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	outboxRepo := outbox.NewRepository(dbClient.DB())
	sessionsService, err := sessions.NewService(sessions.ServiceParams{
		Tx:        dbClient,
		Repo:      sessions.NewRepository(dbClient.DB()),
		Ledger:    ledgerService,
		Accounts:  accounts.NewRepository(dbClient.DB()),
		Presence:  presenceService,
		Outbox:    outbox.NewService(outboxRepo, logg),
		Metrics:   metrics.NewSettlementMetrics(prometheus.DefaultRegisterer),
		Logger:    logg,
		MaxLength: cfg.Billing.SessionMaxLen,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sessions service", err)
		os.Exit(1)
	}

	staleSweepJob, err := cron.NewStaleSessionSweepJob(cron.StaleSessionSweepJobParams{
		Logger:   logg,
		Sessions: sessionsService,
		StaleAge: cfg.Billing.SessionStaleAge,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stale session sweep job", err)
		os.Exit(1)
	}

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
		Retention:  cfg.Cron.OutboxRetentionDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(staleSweepJob, retentionJob)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.StaleSessionSweepInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
