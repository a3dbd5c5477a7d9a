package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"

	"authguard/internal/platform/metrics"
	"authguard/pkg/platform/httputil"
	"authguard/pkg/platform/middleware/metadata"
	"authguard/pkg/platform/middleware/origin"
	"authguard/pkg/platform/middleware/recovery"
	"authguard/pkg/platform/middleware/requestid"
	"authguard/pkg/platform/middleware/requesttime"
)

// healthCheck reports one dependency's reachability.
type healthCheck struct {
	name  string
	check func(ctx context.Context) error
}

type routes interface {
	Register(r chi.Router)
}

type routerConfig struct {
	allowedOrigins []string
	registry       *prometheus.Registry
	checks         []healthCheck
	logger         *slog.Logger
}

func newRouter(cfg routerConfig, api routes) http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(recovery.Middleware(cfg.logger))
	if len(cfg.allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", requestid.Header},
			ExposedHeaders: []string{requestid.Header},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", healthHandler(cfg.checks))
	if cfg.registry != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(cfg.registry))
	}

	r.Group(func(r chi.Router) {
		r.Use(origin.SameOrigin(cfg.allowedOrigins))
		api.Register(r)
	})
	return r
}

type healthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

// healthHandler always answers 200 while the process serves: an unreachable backend
// degrades rate limiting but does not stop evaluation.
func healthHandler(checks []healthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Components: map[string]string{}}
		for _, c := range checks {
			if err := c.check(ctx); err != nil {
				resp.Status = "degraded"
				resp.Components[c.name] = "unavailable"
				continue
			}
			resp.Components[c.name] = "ok"
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}
