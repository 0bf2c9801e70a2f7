package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies groups what the router needs.
type Dependencies struct {
	Store   GameStore
	Actions ActionRepository
	Live    LiveSession
	Logger  *slog.Logger
}

// NewRouter creates and configures a new chi router with all routes and middleware.
func NewRouter(deps Dependencies) *chi.Mux {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(CORS())
	r.Use(RequestLogger(deps.Logger))
	r.Use(PrometheusMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	h := NewHandler(deps.Store, deps.Actions, deps.Live, deps.Logger)

	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadinessCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/games", func(r chi.Router) {
			r.Get("/", h.ListGames)
			r.Post("/", h.CreateGame)
			r.Get("/latest", h.LatestGame)
			r.Get("/{id}", h.GetGame)
		})

		r.Get("/history", h.History)

		r.Route("/match", func(r chi.Router) {
			r.Get("/", h.GetMatch)
			r.Post("/actions", h.ApplyAction)
			r.Post("/reset", h.ResetMatch)
			r.Post("/save", h.SaveMatch)
			r.Get("/snapshot", h.GetSnapshot)
			r.Post("/restore", h.RestoreMatch)
		})

		r.Get("/matches/{matchId}/actions", h.GetActionTally)
		r.Post("/matches/{matchId}/recover", h.RecoverMatch)
	})

	return r
}

// NewServer creates a new HTTP server with the configured router.
func NewServer(addr string, deps Dependencies) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      NewRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
