package controller

import (
	"net/http"
	"time"

	"github.com/cassiomorais/paysvc/internal/infrastructure/config"
	"github.com/cassiomorais/paysvc/internal/infrastructure/observability"
	customMW "github.com/cassiomorais/paysvc/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type RouterDeps struct {
	Registrar    Registrar
	Dependencies []Dependency
	Metrics      *observability.Metrics
	// Gatherer serves /metrics. Nil disables the endpoint.
	Gatherer     prometheus.Gatherer
	ServerConfig config.ServerConfig
	Logger       zerolog.Logger
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(customMW.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(customMW.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.ServerConfig.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: deps.ServerConfig.CORS.AllowCredentials,
		MaxAge:           300,
	}))
	if deps.Metrics != nil {
		r.Use(customMW.Metrics(deps.Metrics))
	}

	healthH := NewHealthController(deps.Dependencies...)
	regH := NewRegistrationController(deps.Registrar)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Approval page redirects arrive from the subscriber's browser.
		r.Get("/subscriptions/{id}/confirm", regH.Confirm)
		r.Get("/subscriptions/{id}/cancel", regH.Cancel)

		r.Group(func(r chi.Router) {
			if deps.ServerConfig.JWTSecret != "" {
				r.Use(customMW.RequireAuth(deps.ServerConfig.JWTSecret))
			}
			if deps.ServerConfig.RateLimitPerMinute > 0 {
				r.Use(customMW.RateLimit(deps.ServerConfig.RateLimitPerMinute))
			}

			r.Route("/services/{serviceID}", func(r chi.Router) {
				r.Post("/products/{productID}/registration", regH.RegisterProduct)
				r.Delete("/products/{productID}/registration", regH.RetireProduct)
				r.Post("/plans/{planID}/registration", regH.RegisterPlan)
				r.Post("/subscriptions", regH.CreateSubscription)
				r.Get("/userinfo", regH.UserInfo)
				r.Get("/log", regH.ActionLog)
			})

			r.Post("/subscriptions/{id}/check", regH.RequestCheck)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "route not found", Code: "not_found"})
	})

	return r
}
