package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/streampass/streampass-backend/api/responses"
	"github.com/streampass/streampass-backend/pkg/config"
	pkgerrors "github.com/streampass/streampass-backend/pkg/errors"
	"github.com/streampass/streampass-backend/pkg/logger"
)

const readyPingTimeout = 2 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-StreamPass-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, dbP, redisP, bigqueryP pinger) http.HandlerFunc {
	dependencies := []struct {
		name string
		p    pinger
	}{
		{"database", dbP},
		{"redis", redisP},
		{"bigquery", bigqueryP},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-StreamPass-Env", cfg.App.Env)

		var failed []string
		var pingErrs error
		for _, dep := range dependencies {
			if dep.p == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(r.Context(), readyPingTimeout)
			err := dep.p.Ping(ctx)
			cancel()
			if err != nil {
				failed = append(failed, dep.name)
				pingErrs = multierr.Append(pingErrs, err)
			}
		}
		if pingErrs != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, pingErrs, strings.Join(failed, ", ")+" not ready"))
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
