package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"warden/internal/gate"
	"warden/internal/platform/config"
	httpmetrics "warden/internal/platform/metrics"
	"warden/internal/platform/middleware"
	"warden/internal/punishment/handler"
	"warden/internal/punishment/service"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/audit"
	"warden/pkg/platform/httputil"
)

type routerDeps struct {
	cfg      config.Config
	logger   *slog.Logger
	engine   *service.Service
	issuer   *service.Issuer
	gate     *gate.Gate
	auditLog audit.Store
	health   func(context.Context) error
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.AccessLog(d.logger))
	r.Use(httpmetrics.New().Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := d.health(ctx); err != nil {
			d.logger.WarnContext(ctx, "health check failed", "error", err)
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "store unreachable"))
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	jwt := middleware.NewJWTService(d.cfg.Auth.SigningKey, d.cfg.Auth.Issuer)
	h := handler.New(d.engine, d.issuer, d.gate, d.auditLog, d.logger)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(jwt, d.logger))
		h.Register(r)
	})
	return r
}
