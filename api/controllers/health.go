package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/lumea-app/lumea-backend/api/responses"
	"github.com/lumea-app/lumea-backend/pkg/config"
	"github.com/lumea-app/lumea-backend/pkg/db"
	pkgerrors "github.com/lumea-app/lumea-backend/pkg/errors"
	"github.com/lumea-app/lumea-backend/pkg/logger"
	"github.com/lumea-app/lumea-backend/pkg/redis"
)

const healthCheckTimeout = 2 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Lumea-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the database and redis before reporting ready.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Lumea-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		checks := map[string]string{}
		healthy := true

		if dbP != nil {
			if err := dbP.Ping(ctx); err != nil {
				checks["db"] = "down"
				healthy = false
			} else {
				checks["db"] = "up"
			}
		}
		if redisP != nil {
			if err := redisP.Ping(ctx); err != nil {
				checks["redis"] = "down"
				healthy = false
			} else {
				checks["redis"] = "up"
			}
		}

		if !healthy {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "dependency unavailable").WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
