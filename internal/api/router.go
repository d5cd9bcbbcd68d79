// Package api provides the local HTTP API driving the walk planner.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/walkthrough/walkthrough/internal/api/handler"
	"github.com/walkthrough/walkthrough/internal/api/middleware"
	"github.com/walkthrough/walkthrough/internal/api/models"
	"github.com/walkthrough/walkthrough/internal/api/response"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	Trip     handler.Trip
	Location handler.LocationReporter
	Health   handler.HealthSource

	// AllowedHosts restricts the Host header. Empty allows every host.
	AllowedHosts []string
	// GeocodingRatePerMinute bounds the endpoints that hit the geocoder.
	GeocodingRatePerMinute int
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "walkthrough"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(middleware.AllowHosts(cfg.AllowedHosts...))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.RequireJSON)

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Health)
	sessionHandler := handler.NewSessionHandler(cfg.Trip)
	locationHandler := handler.NewLocationHandler(cfg.Location)
	tripHandler := handler.NewTripHandler(cfg.Trip)
	accountHandler := handler.NewAccountHandler(cfg.Trip)

	// Geocoding quotas are per application; share one bucket.
	geocodingRateLimit := middleware.RateLimitShared("geocoding", middleware.PerMinute(cfg.GeocodingRatePerMinute))
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		response.NotFound(w, req, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		problem := models.NewProblem(models.ProblemTypeNotFound, "Method not allowed",
			http.StatusMethodNotAllowed, middleware.GetRequestID(req.Context()))
		response.Error(w, req, problem)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		r.Group(func(r chi.Router) {
			r.Use(standardRateLimit)

			r.Put("/session", sessionHandler.Attach)
			r.Delete("/session", sessionHandler.Detach)

			r.Post("/device/location", locationHandler.Report)

			r.Route("/trip", func(r chi.Router) {
				r.With(geocodingRateLimit).Post("/plan", tripHandler.Plan)
				r.With(geocodingRateLimit).Put("/origin", tripHandler.SetOrigin)
				r.With(geocodingRateLimit).Put("/destination", tripHandler.SetDestination)

				r.Get("/landmarks", tripHandler.Landmarks)
				r.Route("/landmarks/{id}", func(r chi.Router) {
					r.Get("/preview", tripHandler.Preview)
					r.Post("/toggle", tripHandler.Toggle)
					r.Post("/confirm", tripHandler.Confirm)
				})
				r.Delete("/detour", tripHandler.ResetDetour)

				r.Get("/route", tripHandler.Route)
				r.Post("/route/refresh", tripHandler.Refresh)
			})

			// Saving a favorite reverse-geocodes both ends of the route.
			r.With(geocodingRateLimit).Post("/favorites", accountHandler.SaveFavorite)
			r.Post("/steps", accountHandler.LogSteps)
		})
	})

	return r
}
