package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lumea-app/lumea-backend/api/routes"
	"github.com/lumea-app/lumea-backend/internal/accounts"
	"github.com/lumea-app/lumea-backend/internal/gifts"
	"github.com/lumea-app/lumea-backend/internal/ledger"
	"github.com/lumea-app/lumea-backend/internal/presence"
	"github.com/lumea-app/lumea-backend/internal/sessions"
	"github.com/lumea-app/lumea-backend/internal/wallet"
	"github.com/lumea-app/lumea-backend/internal/withdrawals"
	"github.com/lumea-app/lumea-backend/pkg/auth/session"
	"github.com/lumea-app/lumea-backend/pkg/config"
	"github.com/lumea-app/lumea-backend/pkg/db"
	"github.com/lumea-app/lumea-backend/pkg/logger"
	"github.com/lumea-app/lumea-backend/pkg/metrics"
	"github.com/lumea-app/lumea-backend/pkg/migrate"
	"github.com/lumea-app/lumea-backend/pkg/outbox"
	"github.com/lumea-app/lumea-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	accountsRepo := accounts.NewRepository(dbClient.DB())
	ledgerRepo := ledger.NewRepository(dbClient.DB())
	sessionsRepo := sessions.NewRepository(dbClient.DB())
	giftsRepo := gifts.NewRepository(dbClient.DB())
	withdrawalsRepo := withdrawals.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	settlementMetrics := metrics.NewSettlementMetrics(prometheus.DefaultRegisterer)

	accountsService, err := accounts.NewService(accountsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create accounts service", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(dbClient, ledgerRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	presenceService, err := presence.NewService(redisClient, cfg.Billing.PresenceTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create presence service", err)
		os.Exit(1)
	}

	walletService, err := wallet.NewService(wallet.ServiceParams{
		Tx:            dbClient,
		Ledger:        ledgerService,
		Accounts:      accountsRepo,
		Outbox:        outboxService,
		Metrics:       settlementMetrics,
		GatewaySecret: cfg.Gateway.KeySecret,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet service", err)
		os.Exit(1)
	}

	sessionsService, err := sessions.NewService(sessions.ServiceParams{
		Tx:        dbClient,
		Repo:      sessionsRepo,
		Ledger:    ledgerService,
		Accounts:  accountsRepo,
		Presence:  presenceService,
		Outbox:    outboxService,
		Metrics:   settlementMetrics,
		Logger:    logg,
		MaxLength: cfg.Billing.SessionMaxLen,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sessions service", err)
		os.Exit(1)
	}

	giftsService, err := gifts.NewService(gifts.ServiceParams{
		Tx:       dbClient,
		Repo:     giftsRepo,
		Ledger:   ledgerService,
		Accounts: accountsRepo,
		Outbox:   outboxService,
		Metrics:  settlementMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create gifts service", err)
		os.Exit(1)
	}

	withdrawalsService, err := withdrawals.NewService(withdrawals.ServiceParams{
		Tx:               dbClient,
		Repo:             withdrawalsRepo,
		Ledger:           ledgerService,
		Accounts:         accountsRepo,
		Outbox:           outboxService,
		Metrics:          settlementMetrics,
		CoinValueINR:     cfg.Billing.CoinValueINR,
		MinWithdrawCoins: cfg.Billing.MinWithdrawCoins,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create withdrawals service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, sessionManager, routes.Services{
			Wallet:      walletService,
			Sessions:    sessionsService,
			Gifts:       giftsService,
			Accounts:    accountsService,
			Presence:    presenceService,
			Withdrawals: withdrawalsService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
