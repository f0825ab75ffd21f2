package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clinicdesk/clinicdesk/internal/api/models"
	"github.com/clinicdesk/clinicdesk/internal/api/response"
	"github.com/clinicdesk/clinicdesk/internal/featureflags"
	"github.com/clinicdesk/clinicdesk/internal/schedule"
)

// SlotHandler handles availability slot endpoints.
type SlotHandler struct {
	service *schedule.Service
	flags   *featureflags.Service
}

// NewSlotHandler creates a new SlotHandler.
func NewSlotHandler(service *schedule.Service, flags *featureflags.Service) *SlotHandler {
	return &SlotHandler{service: service, flags: flags}
}

// ListSlots handles GET /v1/me/slots - list the therapist's slots.
// Optional from/to query parameters bound the window.
func (h *SlotHandler) ListSlots(w http.ResponseWriter, r *http.Request) {
	therapistID := GetUserID(r.Context())
	window := schedule.DateWindow{
		From: r.URL.Query().Get("from"),
		To:   r.URL.Query().Get("to"),
	}

	slots, err := h.service.ListSlots(r.Context(), therapistID, window)
	if err != nil {
		writeScheduleError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, slots)
}

// CreateSlot handles POST /v1/me/slots - create a slot, optionally expanding
// a recurrence rule into one slot per occurrence.
func (h *SlotHandler) CreateSlot(w http.ResponseWriter, r *http.Request) {
	therapistID := GetUserID(r.Context())

	var input models.SlotCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	slots, err := h.service.CreateSlot(r.Context(), therapistID, &input)
	if err != nil {
		writeScheduleError(w, r, err)
		return
	}

	location := ""
	if len(slots.Items) > 0 {
		location = fmt.Sprintf("/v1/me/slots/%s", slots.Items[0].ID)
	}
	response.Created(w, r, location, slots)
}

// GetSlot handles GET /v1/me/slots/{slotId}.
func (h *SlotHandler) GetSlot(w http.ResponseWriter, r *http.Request) {
	therapistID := GetUserID(r.Context())
	slotID := chi.URLParam(r, "slotId")
	if slotID == "" {
		response.BadRequest(w, r, "slotId is required", nil)
		return
	}

	slot, err := h.service.GetSlot(r.Context(), therapistID, slotID)
	if err != nil {
		writeScheduleError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, slot)
}

// UpdateSlot handles PUT /v1/me/slots/{slotId}.
func (h *SlotHandler) UpdateSlot(w http.ResponseWriter, r *http.Request) {
	therapistID := GetUserID(r.Context())
	slotID := chi.URLParam(r, "slotId")
	if slotID == "" {
		response.BadRequest(w, r, "slotId is required", nil)
		return
	}

	var input models.SlotUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	slot, err := h.service.UpdateSlot(r.Context(), therapistID, slotID, &input)
	if err != nil {
		writeScheduleError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, slot)
}

// DeleteSlot handles DELETE /v1/me/slots/{slotId}.
func (h *SlotHandler) DeleteSlot(w http.ResponseWriter, r *http.Request) {
	therapistID := GetUserID(r.Context())
	slotID := chi.URLParam(r, "slotId")
	if slotID == "" {
		response.BadRequest(w, r, "slotId is required", nil)
		return
	}

	if err := h.service.DeleteSlot(r.Context(), therapistID, slotID); err != nil {
		writeScheduleError(w, r, err)
		return
	}
	response.NoContent(w, r)
}

// PreviewRecurrence handles POST /v1/slots:preview - expand a recurrence rule
// without persisting anything. Gated behind the enable_recurrence_preview
// flag.
func (h *SlotHandler) PreviewRecurrence(w http.ResponseWriter, r *http.Request) {
	if h.flags != nil && !h.flags.IsRecurrencePreviewEnabled(r.Context()) {
		response.NotFound(w, r, "recurrence preview is not available")
		return
	}

	var input models.RecurrencePreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	preview, err := h.service.PreviewOccurrences(r.Context(), &input)
	if err != nil {
		writeScheduleError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, preview)
}

// CheckConflicts handles POST /v1/conflicts:check - advisory conflict check
// for a candidate booking. The answer may come from the remote booking-sync
// provider or the local engine; saves always re-check server-side.
func (h *SlotHandler) CheckConflicts(w http.ResponseWriter, r *http.Request) {
	therapistID := GetUserID(r.Context())

	var input models.ConflictCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if input.Date == "" || input.StartTime == "" || input.EndTime == "" {
		response.BadRequest(w, r, "date, startTime and endTime are required", nil)
		return
	}

	result, err := h.service.CheckConflicts(r.Context(), therapistID, &input)
	if err != nil {
		writeScheduleError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, result)
}
