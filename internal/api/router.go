// Package api exposes the analysis pipeline over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/maltedev/review-analyzer/internal/ratelimit"
)

type RouterConfig struct {
	CORSOrigins    []string
	RequestTimeout time.Duration
	// PerMinute is the burst limit per client IP on /api/analyze. Zero
	// disables it.
	PerMinute int
	// Daily caps analyses per client per calendar day. Nil disables it.
	Daily ratelimit.DailyLimiter
}

func NewRouter(h *Handlers, cfg RouterConfig, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Minute
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestContext)
	r.Use(AccessLog(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if cfg.PerMinute > 0 {
				r.Use(httprate.LimitByIP(cfg.PerMinute, time.Minute))
			}
			if cfg.Daily != nil {
				r.Use(DailyLimit(cfg.Daily, logger))
			}
			r.Post("/analyze", h.Analyze)
		})

		r.Post("/visit", h.Visit)
		r.Get("/stats", h.GetStats)
	})

	return r
}
