package handler

import (
	"net/http"

	"github.com/clinicdesk/clinicdesk/internal/api/response"
	"github.com/clinicdesk/clinicdesk/internal/schedule"
)

// CalendarHandler handles calendar projection and occupancy endpoints.
type CalendarHandler struct {
	service *schedule.Service
}

// NewCalendarHandler creates a new CalendarHandler.
func NewCalendarHandler(service *schedule.Service) *CalendarHandler {
	return &CalendarHandler{service: service}
}

// Events handles GET /v1/me/calendar/events?from=&to= - project the
// therapist's slots, appointments and absences onto the Monday-first grid.
func (h *CalendarHandler) Events(w http.ResponseWriter, r *http.Request) {
	therapistID := GetUserID(r.Context())
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		response.BadRequest(w, r, "from and to query parameters are required", nil)
		return
	}

	projection, err := h.service.CalendarEvents(r.Context(), therapistID, from, to)
	if err != nil {
		writeScheduleError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, projection)
}

// Occupancy handles GET /v1/me/analysis/occupancy?weekStart= - per-day
// available/booked hours and the rolled-up occupancy percentage for the week
// starting at weekStart.
func (h *CalendarHandler) Occupancy(w http.ResponseWriter, r *http.Request) {
	therapistID := GetUserID(r.Context())
	weekStart := r.URL.Query().Get("weekStart")
	if weekStart == "" {
		response.BadRequest(w, r, "weekStart query parameter is required", nil)
		return
	}

	occupancy, err := h.service.Occupancy(r.Context(), therapistID, weekStart)
	if err != nil {
		writeScheduleError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, occupancy)
}
