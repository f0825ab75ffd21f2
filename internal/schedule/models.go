// Package schedule implements the availability scheduling engine: recurrence
// expansion, conflict detection, calendar grid projection and occupancy
// aggregation, plus the service and repositories that feed it.
package schedule

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Default timing applied when a slot carries no start/end time.
const (
	DefaultStartTime = "09:00"
	DefaultEndTime   = "10:00"
)

// Model errors.
var (
	ErrDateInvalid = errors.New("invalid date")

	ErrSlotNotFound        = errors.New("slot not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrAbsenceNotFound     = errors.New("absence not found")
)

// Pattern identifies how a recurrence rule repeats.
type Pattern string

const (
	PatternNever        Pattern = "never"
	PatternDaily        Pattern = "daily"
	PatternWeekly       Pattern = "weekly"
	PatternWeeklyCustom Pattern = "weekly_custom"
	PatternMonthly      Pattern = "monthly"
)

// DurationBound limits how far a recurrence rule extends past its anchor.
type DurationBound string

const (
	BoundOneMonth    DurationBound = "1_month"
	BoundThreeMonths DurationBound = "3_months"
	BoundSixMonths   DurationBound = "6_months"
	BoundOneYear     DurationBound = "1_year"
	BoundUntilDate   DurationBound = "until_date"
	BoundIndefinite  DurationBound = "indefinite"
)

// AppointmentStatus tracks an appointment through its lifecycle.
type AppointmentStatus string

const (
	StatusUpcoming      AppointmentStatus = "upcoming"
	StatusPending       AppointmentStatus = "pending"
	StatusCompleted     AppointmentStatus = "completed"
	StatusCancelled     AppointmentStatus = "cancelled"
	StatusNoShow        AppointmentStatus = "no_show"
	StatusClientArrived AppointmentStatus = "client_arrived"
)

// RecurrenceRule describes how an availability slot repeats.
// SelectedWeekdays uses Monday-first indexes (0 = Monday ... 6 = Sunday) and
// is only consulted when Pattern is weekly_custom. EndDate is only consulted
// when DurationBound is until_date.
type RecurrenceRule struct {
	Pattern          Pattern
	SelectedWeekdays []int
	AnchorDate       string
	DurationBound    DurationBound
	EndDate          string
}

// Availability is a concrete-dated bookable slot. Recurrence is authoring
// metadata only; projection and aggregation always operate on expanded,
// concrete-dated instances.
type Availability struct {
	ID              string
	TherapistID     string
	Date            string // YYYY-MM-DD
	StartTime       string // HH:MM, optional
	EndTime         string // HH:MM, optional
	DurationMinutes int    // optional, used when times are absent
	Location        string
	Color           string
	Title           string
	Recurrence      *RecurrenceRule
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Appointment is a booked session with a client.
type Appointment struct {
	ID              string
	TherapistID     string
	ClientID        string
	ClientName      string
	Date            string // YYYY-MM-DD
	StartTime       string // HH:MM, optional
	EndTime         string // HH:MM, optional
	DurationMinutes int    // optional, preferred over times when set
	Location        string
	Status          AppointmentStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Absence is an informational block (holiday, sick leave). It may span
// multiple days; a single-day absence has StartDate == EndDate.
type Absence struct {
	ID          string
	TherapistID string
	StartDate   string // YYYY-MM-DD
	EndDate     string // YYYY-MM-DD
	StartTime   string // HH:MM, ignored when AllDay
	EndTime     string // HH:MM, ignored when AllDay
	AllDay      bool
	Reason      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrDateInvalid, s)
	}
	return t, nil
}

// MondayIndex converts a date's native Sunday-first weekday to the
// Monday-first index used for every grid and bucket placement
// (0 = Monday ... 6 = Sunday). All call sites must go through this
// function; reimplementing the conversion inline is how off-by-one
// weekday bugs happen.
func MondayIndex(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 6
	}
	return wd - 1
}
