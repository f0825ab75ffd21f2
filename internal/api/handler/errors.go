package handler

import (
	"errors"
	"net/http"

	"github.com/clinicdesk/clinicdesk/internal/api/response"
	"github.com/clinicdesk/clinicdesk/internal/schedule"
)

// writeScheduleError maps scheduling service errors onto problem responses.
func writeScheduleError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *schedule.ValidationError
	if errors.As(err, &validationErr) {
		response.BadRequest(w, r, "validation failed", validationErr.Errors)
		return
	}

	var conflictErr *schedule.ConflictError
	if errors.As(err, &conflictErr) {
		response.Conflict(w, r, conflictErr.Error())
		return
	}

	switch {
	case errors.Is(err, schedule.ErrSlotNotFound):
		response.NotFound(w, r, "slot not found")
	case errors.Is(err, schedule.ErrAppointmentNotFound):
		response.NotFound(w, r, "appointment not found")
	case errors.Is(err, schedule.ErrAbsenceNotFound):
		response.NotFound(w, r, "absence not found")
	case errors.Is(err, schedule.ErrDateInvalid):
		response.BadRequest(w, r, "invalid date, expected YYYY-MM-DD", nil)
	case errors.Is(err, schedule.ErrInvalidRule):
		response.BadRequest(w, r, err.Error(), nil)
	default:
		response.InternalError(w, r, "an unexpected error occurred")
	}
}
