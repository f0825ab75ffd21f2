// Package api provides the HTTP API for ClinicDesk.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/api/handler"
	"github.com/clinicdesk/clinicdesk/internal/api/middleware"
	"github.com/clinicdesk/clinicdesk/internal/auth"
	"github.com/clinicdesk/clinicdesk/internal/featureflags"
	"github.com/clinicdesk/clinicdesk/internal/schedule"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version            string
	BuildTime          string
	Logger             zerolog.Logger
	ServiceName        string
	Metrics            *middleware.Metrics
	AuthService        *auth.Service
	FeatureFlagService *featureflags.Service
	ScheduleService    *schedule.Service
	Database           handler.Pinger
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "clinicdesk-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Database, cfg.FeatureFlagService)
	slotHandler := handler.NewSlotHandler(cfg.ScheduleService, cfg.FeatureFlagService)
	calendarHandler := handler.NewCalendarHandler(cfg.ScheduleService)
	appointmentHandler := handler.NewAppointmentHandler(cfg.ScheduleService)
	absenceHandler := handler.NewAbsenceHandler(cfg.ScheduleService)
	featureFlagsHandler := handler.NewFeatureFlagsHandler(cfg.FeatureFlagService)

	// Create auth middleware
	authMiddleware := middleware.Auth(cfg.AuthService)

	// Create rate limit middleware for different endpoint categories
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			// Status endpoint requires authentication
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
		})

		// Me endpoints (authenticated) - user-based rate limiting
		r.Route("/me", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RateLimitByUser(middleware.StandardRateLimit)) // 100 req/min per user

			// Availability slots
			r.Route("/slots", func(r chi.Router) {
				r.Get("/", slotHandler.ListSlots)
				r.Post("/", slotHandler.CreateSlot)
				r.Route("/{slotId}", func(r chi.Router) {
					r.Get("/", slotHandler.GetSlot)
					r.Put("/", slotHandler.UpdateSlot)
					r.Delete("/", slotHandler.DeleteSlot)
				})
			})

			// Calendar projection and occupancy analysis
			r.Get("/calendar/events", calendarHandler.Events)
			r.Get("/analysis/occupancy", calendarHandler.Occupancy)

			// Appointments
			r.Route("/appointments", func(r chi.Router) {
				r.Get("/", appointmentHandler.ListAppointments)
				r.Post("/", appointmentHandler.CreateAppointment)
			})

			// Absences
			r.Route("/absences", func(r chi.Router) {
				r.Get("/", absenceHandler.ListAbsences)
				r.Post("/", absenceHandler.CreateAbsence)
				r.Delete("/{absenceId}", absenceHandler.DeleteAbsence)
			})
		})

		// Recurrence preview - authenticated, standard rate limiting
		r.With(authMiddleware, standardRateLimit).Post("/slots:preview", slotHandler.PreviewRecurrence)

		// Conflict check may call the remote provider - strict rate limiting
		r.With(authMiddleware, expensiveRateLimit).Post("/conflicts:check", slotHandler.CheckConflicts)

		// Admin endpoints (authenticated) - for internal operations
		r.Route("/admin", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(standardRateLimit)

			// Feature flags management
			r.Route("/feature-flags", func(r chi.Router) {
				r.Get("/", featureFlagsHandler.ListFeatureFlags)
				r.Put("/", featureFlagsHandler.UpsertFeatureFlags)
				r.Post("/invalidate", featureFlagsHandler.InvalidateCache)
			})
		})
	})

	return r
}
