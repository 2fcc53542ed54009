package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"roommates-app-go/internal/config"
	"roommates-app-go/internal/metrics"
	"roommates-app-go/internal/transport/httpserver/handler"
	authmw "roommates-app-go/internal/transport/httpserver/middleware"
	"roommates-app-go/pkg/logger"
)

// NewRouter builds the HTTP surface. m may be nil, in which case no metrics
// are collected or exposed.
func NewRouter(cfg config.Config, handlers *handler.Handlers, profiles authmw.ProfileSaver, m *metrics.Metrics, log logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           cfg.CORS.MaxAge,
	}).Handler)

	if m != nil && cfg.Metrics.Enabled {
		r.Use(authmw.Metrics(m))
		r.Method(http.MethodGet, cfg.Metrics.Path, m.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.Health)

		auth := authmw.NewSupabaseAuth(cfg.Supabase, profiles, log)
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)

			r.Get("/auth/me", handlers.AuthMe)

			r.Get("/requests", handlers.ListRequests)
			r.Post("/requests/apartments/{id}/approve", handlers.ApproveApartmentRequest)
			r.Post("/requests/apartments/{id}/reject", handlers.RejectApartmentRequest)
			r.Post("/requests/apartments/{id}/cancel", handlers.CancelApartmentRequest)
			r.Post("/requests/matches/{id}/approve", handlers.ApproveMatch)
			r.Post("/requests/matches/{id}/reject", handlers.RejectMatch)

			r.Get("/groups/me", handlers.GetMyGroup)
			r.Patch("/groups/me", handlers.RenameGroup)
			r.Post("/groups/leave", handlers.LeaveGroup)
			r.Get("/groups/invites", handlers.ListInvites)
			r.Post("/groups/invites", handlers.SendInvite)
			r.Post("/groups/invites/{id}/accept", handlers.AcceptInvite)
			r.Post("/groups/invites/{id}/decline", handlers.DeclineInvite)

			r.Get("/notifications", handlers.ListNotifications)
			r.Post("/notifications/{id}/read", handlers.MarkNotificationRead)
		})
	})

	return r
}
