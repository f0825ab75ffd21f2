package models

// RecurrenceRule describes how a slot repeats when authoring.
// SelectedWeekdays uses Monday-first indexes (0 = Monday ... 6 = Sunday) and
// is only required for the weekly_custom pattern.
type RecurrenceRule struct {
	Pattern          string `json:"pattern"`
	SelectedWeekdays []int  `json:"selectedWeekdays,omitempty"`
	DurationBound    string `json:"durationBound,omitempty"`
	EndDate          string `json:"endDate,omitempty"`
}

// Slot represents an availability slot.
type Slot struct {
	ID              string    `json:"id"`
	Date            string    `json:"date"`
	StartTime       string    `json:"startTime,omitempty"`
	EndTime         string    `json:"endTime,omitempty"`
	DurationMinutes int       `json:"durationMinutes,omitempty"`
	Location        string    `json:"location,omitempty"`
	Color           string    `json:"color,omitempty"`
	Title           string    `json:"title,omitempty"`
	CreatedAt       Timestamp `json:"createdAt"`
	UpdatedAt       Timestamp `json:"updatedAt"`
}

// SlotCreateRequest is the request body for creating a slot. A recurrence
// rule expands into one concrete slot per occurrence, anchored at Date.
type SlotCreateRequest struct {
	Date            string          `json:"date"`
	StartTime       string          `json:"startTime,omitempty"`
	EndTime         string          `json:"endTime,omitempty"`
	DurationMinutes int             `json:"durationMinutes,omitempty"`
	Location        string          `json:"location,omitempty"`
	Color           string          `json:"color,omitempty"`
	Title           string          `json:"title,omitempty"`
	Recurrence      *RecurrenceRule `json:"recurrence,omitempty"`
}

// SlotUpdateRequest is the request body for updating a slot.
type SlotUpdateRequest struct {
	Date            *string `json:"date,omitempty"`
	StartTime       *string `json:"startTime,omitempty"`
	EndTime         *string `json:"endTime,omitempty"`
	DurationMinutes *int    `json:"durationMinutes,omitempty"`
	Location        *string `json:"location,omitempty"`
	Color           *string `json:"color,omitempty"`
	Title           *string `json:"title,omitempty"`
}

// SlotList represents a list of slots.
type SlotList struct {
	Items []Slot `json:"items"`
}

// RecurrencePreviewRequest asks for the concrete dates a rule would expand to.
type RecurrencePreviewRequest struct {
	AnchorDate       string `json:"anchorDate"`
	Pattern          string `json:"pattern"`
	SelectedWeekdays []int  `json:"selectedWeekdays,omitempty"`
	DurationBound    string `json:"durationBound,omitempty"`
	EndDate          string `json:"endDate,omitempty"`
}

// RecurrencePreview is the expansion of a rule for the authoring UI.
type RecurrencePreview struct {
	Occurrences []string `json:"occurrences"`
	Count       int      `json:"count"`
}

// ConflictCheckRequest is a candidate booking to check against existing
// commitments.
type ConflictCheckRequest struct {
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Location  string `json:"location,omitempty"`
	ExcludeID string `json:"excludeId,omitempty"`
}

// ConflictingBooking is one existing commitment that clashes with a candidate.
type ConflictingBooking struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Date      string `json:"date,omitempty"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Location  string `json:"location,omitempty"`
	Title     string `json:"title,omitempty"`
}

// ConflictCheckResult is the outcome of a conflict check. Source reports
// whether the answer came from the remote checker or the local fallback;
// either way the answer is advisory and re-validated at commit time.
type ConflictCheckResult struct {
	HasConflicts bool                 `json:"hasConflicts"`
	Conflicts    []ConflictingBooking `json:"conflicts"`
	Source       string               `json:"source"`
}

// Appointment represents a booked client session.
type Appointment struct {
	ID              string    `json:"id"`
	ClientID        string    `json:"clientId,omitempty"`
	ClientName      string    `json:"clientName,omitempty"`
	Date            string    `json:"date"`
	StartTime       string    `json:"startTime,omitempty"`
	EndTime         string    `json:"endTime,omitempty"`
	DurationMinutes int       `json:"durationMinutes,omitempty"`
	Location        string    `json:"location,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       Timestamp `json:"createdAt"`
	UpdatedAt       Timestamp `json:"updatedAt"`
}

// AppointmentCreateRequest is the request body for booking an appointment.
type AppointmentCreateRequest struct {
	ClientID        string `json:"clientId,omitempty"`
	ClientName      string `json:"clientName,omitempty"`
	Date            string `json:"date"`
	StartTime       string `json:"startTime,omitempty"`
	EndTime         string `json:"endTime,omitempty"`
	DurationMinutes int    `json:"durationMinutes,omitempty"`
	Location        string `json:"location,omitempty"`
}

// AppointmentList represents a list of appointments.
type AppointmentList struct {
	Items []Appointment `json:"items"`
}

// Absence represents a period the therapist is unavailable.
type Absence struct {
	ID        string    `json:"id"`
	StartDate string    `json:"startDate"`
	EndDate   string    `json:"endDate"`
	StartTime string    `json:"startTime,omitempty"`
	EndTime   string    `json:"endTime,omitempty"`
	AllDay    bool      `json:"allDay"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt Timestamp `json:"createdAt"`
	UpdatedAt Timestamp `json:"updatedAt"`
}

// AbsenceCreateRequest is the request body for recording an absence.
type AbsenceCreateRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate,omitempty"`
	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
	AllDay    bool   `json:"allDay"`
	Reason    string `json:"reason,omitempty"`
}

// AbsenceList represents a list of absences.
type AbsenceList struct {
	Items []Absence `json:"items"`
}
