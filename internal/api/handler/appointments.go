package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/clinicdesk/clinicdesk/internal/api/models"
	"github.com/clinicdesk/clinicdesk/internal/api/response"
	"github.com/clinicdesk/clinicdesk/internal/schedule"
)

// AppointmentHandler handles appointment endpoints.
type AppointmentHandler struct {
	service *schedule.Service
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(service *schedule.Service) *AppointmentHandler {
	return &AppointmentHandler{service: service}
}

// ListAppointments handles GET /v1/me/appointments - list the therapist's
// appointments. Optional from/to query parameters bound the window.
func (h *AppointmentHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	therapistID := GetUserID(r.Context())
	window := schedule.DateWindow{
		From: r.URL.Query().Get("from"),
		To:   r.URL.Query().Get("to"),
	}

	appointments, err := h.service.ListAppointments(r.Context(), therapistID, window)
	if err != nil {
		writeScheduleError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, appointments)
}

// CreateAppointment handles POST /v1/me/appointments - book a client session.
func (h *AppointmentHandler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	therapistID := GetUserID(r.Context())

	var input models.AppointmentCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	appointment, err := h.service.CreateAppointment(r.Context(), therapistID, &input)
	if err != nil {
		writeScheduleError(w, r, err)
		return
	}

	location := fmt.Sprintf("/v1/me/appointments/%s", appointment.ID)
	response.Created(w, r, location, appointment)
}
