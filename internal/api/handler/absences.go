package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clinicdesk/clinicdesk/internal/api/models"
	"github.com/clinicdesk/clinicdesk/internal/api/response"
	"github.com/clinicdesk/clinicdesk/internal/schedule"
)

// AbsenceHandler handles absence endpoints.
type AbsenceHandler struct {
	service *schedule.Service
}

// NewAbsenceHandler creates a new AbsenceHandler.
func NewAbsenceHandler(service *schedule.Service) *AbsenceHandler {
	return &AbsenceHandler{service: service}
}

// ListAbsences handles GET /v1/me/absences - list the therapist's absences.
// Optional from/to query parameters bound the window.
func (h *AbsenceHandler) ListAbsences(w http.ResponseWriter, r *http.Request) {
	therapistID := GetUserID(r.Context())
	window := schedule.DateWindow{
		From: r.URL.Query().Get("from"),
		To:   r.URL.Query().Get("to"),
	}

	absences, err := h.service.ListAbsences(r.Context(), therapistID, window)
	if err != nil {
		writeScheduleError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, absences)
}

// CreateAbsence handles POST /v1/me/absences - record an absence. Absences
// are soft blocks: they show on the calendar but never reject bookings.
func (h *AbsenceHandler) CreateAbsence(w http.ResponseWriter, r *http.Request) {
	therapistID := GetUserID(r.Context())

	var input models.AbsenceCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	absence, err := h.service.CreateAbsence(r.Context(), therapistID, &input)
	if err != nil {
		writeScheduleError(w, r, err)
		return
	}

	location := fmt.Sprintf("/v1/me/absences/%s", absence.ID)
	response.Created(w, r, location, absence)
}

// DeleteAbsence handles DELETE /v1/me/absences/{absenceId}.
func (h *AbsenceHandler) DeleteAbsence(w http.ResponseWriter, r *http.Request) {
	therapistID := GetUserID(r.Context())
	absenceID := chi.URLParam(r, "absenceId")
	if absenceID == "" {
		response.BadRequest(w, r, "absenceId is required", nil)
		return
	}

	if err := h.service.DeleteAbsence(r.Context(), therapistID, absenceID); err != nil {
		writeScheduleError(w, r, err)
		return
	}
	response.NoContent(w, r)
}
