package controllers

import (
	"context"
	"net/http"

	"github.com/pledgeforge/backerstore-backend/api/responses"
	"github.com/pledgeforge/backerstore-backend/pkg/config"
	pkgerrors "github.com/pledgeforge/backerstore-backend/pkg/errors"
	"github.com/pledgeforge/backerstore-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-BackerStore-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady verifies the dependencies the request path cannot run without.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbPinger, redisPinger pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		w.Header().Set("X-BackerStore-Env", cfg.App.Env)

		checks := map[string]pinger{
			"db":    dbPinger,
			"redis": redisPinger,
		}
		for name, dep := range checks {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" not ready"))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
