package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/staffhub/staffhub/backend/internal/setup"
	mw "github.com/staffhub/staffhub/shared/middleware"
	"github.com/staffhub/staffhub/shared/middleware/metrics"
)

// New creates and configures a chi router with all the routes.
// IMPORTANT! the moderation limiter is shared by every mutation of one supervisor
func New(deps *setup.Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Public.Http.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))
	r.Use(mw.SecurityHeaders(deps.Config.Public.Http.SecureCookies))

	h := deps.Handler
	authMw := deps.AuthMiddleware

	// Probes and scraping stay outside auth
	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/supervisor", func(r chi.Router) {
		r.Use(authMw.SupervisorOnly())

		r.Get("/users", h.UsersInScope)
		r.Get("/registrations", h.PendingRegistrations)
		r.Get("/edits", h.PendingEdits)
		r.Get("/blocked", h.BlockedUsers)
		r.Get("/skills/{skillId}/users", h.UsersWithSkill)

		// Mutations: limited per supervisor when moderation_rate_limit > 0
		r.Group(func(r chi.Router) {
			r.Use(mw.RateLimit(deps.ModerationLimiter, mw.CallerRateKey))

			r.Post("/registrations/approve", h.ApproveRegistration)
			r.Post("/registrations/reject", h.RejectRegistration)
			r.Post("/edits/approve", h.ApproveProfileEdit)
			r.Post("/edits/reject", h.RejectProfileEdit)
			r.Post("/blocked/approve", h.ApproveBlockAppeal)
			r.Post("/blocked/reject", h.RejectBlockAppeal)
		})
	})

	return r
}
