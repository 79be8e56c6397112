package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Dependencies are the components the HTTP layer talks to.
type Dependencies struct {
	Subscriptions Subscriptions
	Articles      ArticleValidator
	Store         AdminStore
	Queue         JobQueue
	Runner        JobRunner
	Hub           EventHub
	Guard         GuardInspector
	Limiter       Limiter
	Health        map[string]Pinger
	WebSocket     http.HandlerFunc

	SubscribeLimit int
	AdminToken     string
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(corsMiddleware(deps.AllowedOrigins))

	nlHandler := NewNewsletterHandler(deps.Subscriptions, deps.Logger)
	adminHandler := NewAdminHandler(
		deps.Subscriptions,
		deps.Articles,
		deps.Store,
		deps.Queue,
		deps.Runner,
		deps.Hub,
		deps.Guard,
		deps.Logger,
	)

	if deps.WebSocket != nil {
		r.Get("/ws", deps.WebSocket)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler(deps.Health))

		r.Route("/newsletter", func(r chi.Router) {
			r.With(rateLimit(deps.Limiter, "subscribe", deps.SubscribeLimit)).Post("/subscribe", nlHandler.Subscribe)
			r.Get("/confirm", nlHandler.Confirm)
			r.Post("/unsubscribe", nlHandler.Unsubscribe)
		})

		r.Route("/admin/newsletter", func(r chi.Router) {
			r.Use(adminAuth(deps.AdminToken))

			r.Get("/stats", adminHandler.Stats)
			r.Post("/send", adminHandler.Send)
			r.Post("/cleanup", adminHandler.Cleanup)
			r.Get("/feedback", adminHandler.Feedback)
			r.Get("/broadcasts", adminHandler.ListBroadcasts)
			r.Get("/broadcasts/{id}", adminHandler.GetBroadcast)
			r.Get("/metrics", adminHandler.Metrics)
		})
	})

	return r
}
