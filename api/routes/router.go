package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lumea-app/lumea-backend/api/controllers"
	"github.com/lumea-app/lumea-backend/api/middleware"
	"github.com/lumea-app/lumea-backend/internal/accounts"
	"github.com/lumea-app/lumea-backend/internal/gifts"
	"github.com/lumea-app/lumea-backend/internal/presence"
	"github.com/lumea-app/lumea-backend/internal/sessions"
	"github.com/lumea-app/lumea-backend/internal/wallet"
	"github.com/lumea-app/lumea-backend/internal/withdrawals"
	"github.com/lumea-app/lumea-backend/pkg/auth/session"
	"github.com/lumea-app/lumea-backend/pkg/config"
	"github.com/lumea-app/lumea-backend/pkg/db"
	"github.com/lumea-app/lumea-backend/pkg/logger"
	"github.com/lumea-app/lumea-backend/pkg/redis"
)

// Services groups the domain services the HTTP surface fronts.
type Services struct {
	Wallet      wallet.Service
	Sessions    sessions.Service
	Gifts       gifts.Service
	Accounts    accounts.Service
	Presence    presence.Service
	Withdrawals withdrawals.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessionChecker session.AccessSessionChecker,
	svcs Services,
) http.Handler {
	// A typed nil would slip past the middleware nil checks once boxed in
	// an interface, so resolve the optional redis surfaces up front.
	var (
		redisP    redis.Pinger
		idemStore redis.IdempotencyStore
	)
	if redisClient != nil {
		redisP = redisClient
		idemStore = redisClient
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	withdrawPolicy := middleware.NewRateLimitPolicy(
		"withdraw",
		cfg.RateLimit.WithdrawWindow,
		cfg.RateLimit.WithdrawIPLimit,
		cfg.RateLimit.WithdrawAccountLimit,
	)
	sessionPolicy := middleware.NewRateLimitPolicy(
		"session-start",
		cfg.RateLimit.SessionWindow,
		cfg.RateLimit.SessionIPLimit,
		cfg.RateLimit.SessionAccountLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})
	r.Get("/healthz", controllers.HealthReady(cfg, logg, dbP, redisP))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	// Gateway server-to-server callback; authenticated by HMAC signature,
	// not by bearer token.
	r.Post("/v1/wallet/recharge/callback", controllers.WalletRechargeCallback(svcs.Wallet, logg))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionChecker, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1/wallet", func(r chi.Router) {
			r.Get("/", controllers.WalletBalance(svcs.Wallet, logg))
			r.Get("/transactions", controllers.WalletTransactions(svcs.Wallet, logg))
			r.Get("/plans", controllers.WalletPlans(logg))
		})

		r.Route("/v1/sessions", func(r chi.Router) {
			r.With(rateLimiter(sessionPolicy, redisClient, logg)).
				Post("/", controllers.SessionStart(svcs.Sessions, logg))
			r.Get("/", controllers.SessionHistory(svcs.Sessions, logg))
			r.Post("/{id}/end", controllers.SessionEnd(svcs.Sessions, logg))
			r.Post("/{id}/cancel", controllers.SessionCancel(svcs.Sessions, logg))
		})

		r.Route("/v1/gifts", func(r chi.Router) {
			r.Get("/", controllers.GiftCatalog(svcs.Gifts, logg))
			r.Post("/send", controllers.GiftSend(svcs.Gifts, logg))
			r.Get("/history", controllers.GiftHistory(svcs.Gifts, logg))
		})

		r.Route("/v1/hosts", func(r chi.Router) {
			r.Get("/", controllers.HostDirectory(svcs.Accounts, logg))
			r.Route("/me", func(r chi.Router) {
				r.Use(middleware.RequireRole("host", logg))
				r.Put("/rates", controllers.HostUpdateRates(svcs.Accounts, logg))
				r.Put("/payout-details", controllers.HostUpdatePayoutDetails(svcs.Accounts, logg))
				r.Post("/presence", controllers.HostPresenceHeartbeat(svcs.Presence, logg))
			})
		})

		r.Route("/v1/withdrawals", func(r chi.Router) {
			r.With(rateLimiter(withdrawPolicy, redisClient, logg)).
				With(middleware.RequireRole("host", logg)).
				Post("/", controllers.WithdrawalRequest(svcs.Withdrawals, logg))
			r.Get("/", controllers.WithdrawalHistory(svcs.Withdrawals, logg))
		})

		r.Route("/v1/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole("admin", logg))
			r.Get("/ping", controllers.AdminPing())
			r.Route("/withdrawals", func(r chi.Router) {
				r.Get("/", controllers.AdminWithdrawalList(svcs.Withdrawals, logg))
				r.Post("/{id}/process", controllers.AdminWithdrawalProcess(svcs.Withdrawals, logg))
				r.Post("/{id}/complete", controllers.AdminWithdrawalComplete(svcs.Withdrawals, logg))
			})
			r.Post("/accounts/{id}/adjust", controllers.AdminBalanceAdjust(svcs.Wallet, logg))
		})
	})

	return r
}

func rateLimiter(policy middleware.RateLimitPolicy, client *redis.Client, logg *logger.Logger) func(http.Handler) http.Handler {
	if client == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.RateLimit(policy, client, logg)
}
