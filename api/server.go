/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/users/*            Users, balances, logs, pending rewards, chores
  /api/entertainments/*   Bulk catalog initialization
  /api/reset/*            Settlement runs
  /metrics                Prometheus scrape endpoint

SECURITY NOTE:
  No authentication middleware. Authentication is an external
  collaborator in this deployment; all endpoints are public here.

SEE ALSO:
  - handlers.go, chores_handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsers)
			r.Post("/", h.CreateUser)

			r.Route("/{userID}", func(r chi.Router) {
				r.Get("/", h.GetUser)
				r.Put("/settings", h.UpdateSettings)

				r.Get("/balance", h.GetBalance)
				r.Put("/balance", h.SetBalance)

				r.Route("/logs", func(r chi.Router) {
					r.Get("/", h.GetLogs)
					r.Delete("/", h.PurgeLogs)
					r.Post("/backup", h.Backup)
				})

				r.Route("/pending", func(r chi.Router) {
					r.Get("/", h.ListPending)
					r.Post("/", h.ProposePending)
					r.Post("/approve-all", h.ApproveAllPending)
					r.Post("/deny-all", h.DenyAllPending)
					r.Post("/{pendingID}/approve", h.ApprovePending)
					r.Delete("/{pendingID}", h.DenyPending)
				})

				r.Route("/activities", func(r chi.Router) {
					r.Get("/", h.ListActivities)
					r.Post("/", h.CreateActivity)
					r.Get("/{activityID}", h.GetActivity)
					r.Put("/{activityID}", h.UpdateActivity)
					r.Delete("/{activityID}", h.DeleteActivity)
					r.Post("/{activityID}/quantity", h.ChangeQuantity)
				})

				r.Route("/behaviors", func(r chi.Router) {
					r.Get("/", h.ListBehaviors)
					r.Post("/", h.CreateBehavior)
					r.Delete("/{behaviorID}", h.DeleteBehavior)
				})

				r.Route("/entertainments", func(r chi.Router) {
					r.Get("/", h.ListEntertainments)
					r.Post("/initialize", h.InitializeEntertainments)
					r.Put("/{entertainmentID}", h.UpdateEntertainment)
				})

				r.Route("/todos", func(r chi.Router) {
					r.Get("/", h.ListTodos)
					r.Post("/", h.CreateTodo)
					r.Put("/{todoID}", h.UpdateTodo)
					r.Delete("/{todoID}", h.DeleteTodo)
					r.Post("/{todoID}/complete", h.CompleteTodo)
				})

				r.Post("/reset", h.SettleUser)
			})
		})

		r.Post("/entertainments/initialize", h.InitializeAllEntertainments)

		r.Route("/reset", func(r chi.Router) {
			r.Post("/run", h.RunReset)
			r.Post("/by-repeat", h.ResetByRepeat)
			r.Get("/runs", h.ListResetRuns)
		})
	})

	// Prometheus scrape endpoint
	r.Handle("/metrics", promhttp.Handler())

	return r
}
