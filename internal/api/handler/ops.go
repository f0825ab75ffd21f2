// Package handler provides HTTP handlers for the ClinicDesk API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/clinicdesk/clinicdesk/internal/api/models"
	"github.com/clinicdesk/clinicdesk/internal/api/response"
	"github.com/clinicdesk/clinicdesk/internal/featureflags"
	"github.com/clinicdesk/clinicdesk/internal/provider/resilience"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	db        Pinger                // optional
	flags     *featureflags.Service // optional
	registry  *resilience.Registry  // optional, defaults to the global one
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(version, buildTime string, db Pinger, flags *featureflags.Service) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		db:        db,
		flags:     flags,
		registry:  resilience.GlobalRegistry,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check. Fails when the
// database is unreachable.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	status := models.HealthStatusOK
	code := http.StatusOK

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			status = models.HealthStatusFail
			code = http.StatusServiceUnavailable
		}
	}

	health := models.Health{
		Status: status,
		Time:   models.Timestamp(time.Now()),
	}
	response.JSON(w, r, code, health)
}

// SystemStatus handles GET /v1/ops/status - subsystem and provider status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	now := models.Timestamp(time.Now())
	overall := models.HealthStatusOK

	subsystems := []models.SubsystemStatus{}
	if h.db != nil {
		dbStatus := models.HealthStatusOK
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		if err := h.db.Ping(ctx); err != nil {
			dbStatus = models.HealthStatusFail
			overall = models.HealthStatusDegraded
		}
		cancel()
		subsystems = append(subsystems, models.SubsystemStatus{Name: "postgres", Status: dbStatus})
	}

	providers := []models.ProviderStatus{}
	for _, health := range h.registry.GetAllHealth() {
		providerStatus := models.HealthStatusOK
		if health.IsDegraded() {
			providerStatus = models.HealthStatusDegraded
		} else if health.IsUnhealthy() {
			providerStatus = models.HealthStatusFail
			overall = models.HealthStatusDegraded
		}

		entry := models.ProviderStatus{
			Provider: health.Name,
			Status:   providerStatus,
		}
		if health.LastSuccessAt != nil {
			t := models.Timestamp(*health.LastSuccessAt)
			entry.LastSuccessAt = &t
		}
		if health.LastFailureAt != nil {
			t := models.Timestamp(*health.LastFailureAt)
			entry.LastFailureAt = &t
		}
		if health.LastError != "" {
			msg := health.LastError
			entry.Message = &msg
		}
		providers = append(providers, entry)
	}

	status := models.SystemStatus{
		Status:                 overall,
		Time:                   now,
		Subsystems:             subsystems,
		Providers:              providers,
		ActiveDegradationFlags: h.activeDegradationFlags(r.Context()),
	}
	response.JSON(w, r, http.StatusOK, status)
}

// activeDegradationFlags lists the kill switches currently turned on.
func (h *OpsHandler) activeDegradationFlags(ctx context.Context) []string {
	if h.flags == nil {
		return nil
	}

	var active []string
	for _, key := range []string{
		featureflags.FlagDisableRemoteConflictCheck,
		featureflags.FlagDisableCalendarSync,
		featureflags.FlagDisableOccupancyRefresh,
	} {
		if h.flags.IsEnabled(ctx, key) {
			active = append(active, key)
		}
	}
	return active
}
