package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/spherical-ai/appraisal/cmd/appraisal-api/handlers"
	"github.com/spherical-ai/appraisal/cmd/appraisal-api/middleware"
	"github.com/spherical-ai/appraisal/internal/observability"
)

// AppConfig holds the settings the router needs.
type AppConfig struct {
	ServiceName    string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

// NewRouter creates the main API router with all routes configured.
func NewRouter(logger *observability.Logger, cfg AppConfig, submitter handlers.Submitter, ready func() bool) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)

	health := handlers.NewHealthHandler(cfg.ServiceName, ready)
	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)

	documents := handlers.NewDocumentHandler(logger, submitter, cfg.MaxBodyBytes)

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RequestTimeout > 0 {
			r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
		}
		r.Post("/documents", documents.Upload)
		r.Post("/chat", documents.Chat)
	})

	return r
}
