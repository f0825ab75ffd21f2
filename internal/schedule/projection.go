package schedule

import (
	"fmt"

	"github.com/rs/zerolog"
)

// EventKind identifies what a positioned calendar event represents.
type EventKind string

const (
	EventAvailability EventKind = "availability"
	EventAppointment  EventKind = "appointment"
	EventAbsence      EventKind = "absence"
)

// AvailabilityCell is a background descriptor painted into the grid before
// events are layered on top.
type AvailabilityCell struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	Location  string `json:"location,omitempty"`
	Color     string `json:"color,omitempty"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// Event is a foreground entity anchored at its start hour. Events are never
// fragmented across the hours they span; the renderer computes visual height
// from StartTime/EndTime.
type Event struct {
	ID        string            `json:"id"`
	Kind      EventKind         `json:"kind"`
	Day       int               `json:"day"` // Monday-first
	Hour      int               `json:"hour"`
	Date      string            `json:"date"`
	StartTime string            `json:"startTime,omitempty"`
	EndTime   string            `json:"endTime,omitempty"`
	Title     string            `json:"title,omitempty"`
	Location  string            `json:"location,omitempty"`
	Color     string            `json:"color,omitempty"`
	Status    AppointmentStatus `json:"status,omitempty"`
	AllDay    bool              `json:"allDay,omitempty"`
}

// Projection is the renderable form of a set of scheduling entities:
// a background availability map keyed "day-hour" plus an ordered foreground
// event list (availability first, then appointments on top, then absence
// overlays).
type Projection struct {
	AvailabilityMap map[string][]AvailabilityCell `json:"availabilityMap"`
	Events          []Event                       `json:"events"`
}

// CellKey addresses a grid cell by Monday-first day index and hour.
func CellKey(day, hour int) string {
	return fmt.Sprintf("%d-%d", day, hour)
}

// Projector converts slots, appointments and absences into positioned cells
// on a Monday-first 7x24 grid. Entities with unparseable dates are skipped
// with a diagnostic, never fatal: one bad record must not blank out the
// whole calendar.
type Projector struct {
	logger zerolog.Logger
}

// NewProjector creates a new Projector.
func NewProjector(logger zerolog.Logger) *Projector {
	return &Projector{logger: logger}
}

// Project builds the availability map and ordered event list for the given
// entities. Inputs are assumed pre-filtered to the visible date window.
func (p *Projector) Project(slots []*Availability, appointments []*Appointment, absences []*Absence) *Projection {
	projection := &Projection{
		AvailabilityMap: make(map[string][]AvailabilityCell),
	}

	for _, slot := range slots {
		p.projectSlot(projection, slot)
	}
	for _, appt := range appointments {
		p.projectAppointment(projection, appt)
	}
	for _, absence := range absences {
		p.projectAbsence(projection, absence)
	}

	return projection
}

// projectSlot marks the slot's hours in the availability map and emits one
// foreground event anchored at the start hour.
func (p *Projector) projectSlot(projection *Projection, slot *Availability) {
	date, err := ParseDate(slot.Date)
	if err != nil {
		p.logger.Warn().
			Str("slot_id", slot.ID).
			Str("date", slot.Date).
			Msg("skipping availability slot with unparseable date")
		return
	}
	day := MondayIndex(date)

	// Missing or malformed timing falls back to the default window rather
	// than dropping the slot.
	start, end := slot.StartTime, slot.EndTime
	if start == "" {
		start = DefaultStartTime
	}
	if end == "" {
		end = DefaultEndTime
	}
	startMin, err := ToMinutes(start)
	if err != nil {
		p.logger.Warn().
			Str("slot_id", slot.ID).
			Str("start_time", start).
			Msg("availability slot start time unparseable, using default timing")
		start, end = DefaultStartTime, DefaultEndTime
		startMin, _ = ToMinutes(start)
	}
	endMin, err := ToMinutes(end)
	if err != nil {
		p.logger.Warn().
			Str("slot_id", slot.ID).
			Str("end_time", end).
			Msg("availability slot end time unparseable, using default timing")
		start, end = DefaultStartTime, DefaultEndTime
		startMin, _ = ToMinutes(start)
		endMin, _ = ToMinutes(end)
	}

	cell := AvailabilityCell{
		ID:        slot.ID,
		Title:     slot.Title,
		Location:  slot.Location,
		Color:     slot.Color,
		StartTime: start,
		EndTime:   end,
	}
	for _, hour := range hoursTouched(startMin, endMin) {
		if hour < 0 || hour > 23 {
			continue
		}
		key := CellKey(day, hour)
		projection.AvailabilityMap[key] = append(projection.AvailabilityMap[key], cell)
	}

	projection.Events = append(projection.Events, Event{
		ID:        slot.ID,
		Kind:      EventAvailability,
		Day:       day,
		Hour:      startMin / 60,
		Date:      slot.Date,
		StartTime: start,
		EndTime:   end,
		Title:     slot.Title,
		Location:  slot.Location,
		Color:     slot.Color,
	})
}

// hoursTouched returns the whole hours a [startMin, endMin) range occupies.
// When both bounds are on the hour the range is end-exclusive; otherwise a
// partial first hour is included and the end-boundary hour is dropped again
// when the end minute is zero.
func hoursTouched(startMin, endMin int) []int {
	startHour, startMinute := startMin/60, startMin%60
	endHour, endMinute := endMin/60, endMin%60

	if startMinute == 0 && endMinute == 0 {
		hours := make([]int, 0, endHour-startHour)
		for h := startHour; h < endHour; h++ {
			hours = append(hours, h)
		}
		return hours
	}

	hours := make([]int, 0, endHour-startHour+1)
	for h := startHour; h <= endHour; h++ {
		hours = append(hours, h)
	}
	if endMinute == 0 && len(hours) > 0 {
		hours = hours[:len(hours)-1]
	}
	return hours
}

// projectAppointment emits a foreground event at the appointment's start
// hour. Appointments without a start time are counted by the occupancy
// aggregator but have no grid position, so no event is emitted.
func (p *Projector) projectAppointment(projection *Projection, appt *Appointment) {
	date, err := ParseDate(appt.Date)
	if err != nil {
		p.logger.Warn().
			Str("appointment_id", appt.ID).
			Str("date", appt.Date).
			Msg("skipping appointment with unparseable date")
		return
	}
	if appt.StartTime == "" {
		return
	}
	startMin, err := ToMinutes(appt.StartTime)
	if err != nil {
		p.logger.Warn().
			Str("appointment_id", appt.ID).
			Str("start_time", appt.StartTime).
			Msg("skipping appointment with unparseable start time")
		return
	}

	projection.Events = append(projection.Events, Event{
		ID:        appt.ID,
		Kind:      EventAppointment,
		Day:       MondayIndex(date),
		Hour:      startMin / 60,
		Date:      appt.Date,
		StartTime: appt.StartTime,
		EndTime:   appt.EndTime,
		Title:     appt.ClientName,
		Location:  appt.Location,
		Status:    appt.Status,
	})
}

// projectAbsence emits one display-only overlay event per covered day.
// Absences never contribute to the availability map.
func (p *Projector) projectAbsence(projection *Projection, absence *Absence) {
	start, err := ParseDate(absence.StartDate)
	if err != nil {
		p.logger.Warn().
			Str("absence_id", absence.ID).
			Str("start_date", absence.StartDate).
			Msg("skipping absence with unparseable start date")
		return
	}
	end, err := ParseDate(absence.EndDate)
	if err != nil {
		p.logger.Warn().
			Str("absence_id", absence.ID).
			Str("end_date", absence.EndDate).
			Msg("skipping absence with unparseable end date")
		return
	}

	hour := 0
	startTime, endTime := "", ""
	if !absence.AllDay {
		startMin, err := ToMinutes(absence.StartTime)
		if err != nil {
			p.logger.Warn().
				Str("absence_id", absence.ID).
				Str("start_time", absence.StartTime).
				Msg("skipping timed absence with unparseable start time")
			return
		}
		hour = startMin / 60
		startTime, endTime = absence.StartTime, absence.EndTime
	}

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		projection.Events = append(projection.Events, Event{
			ID:        absence.ID,
			Kind:      EventAbsence,
			Day:       MondayIndex(d),
			Hour:      hour,
			Date:      d.Format(DateLayout),
			StartTime: startTime,
			EndTime:   endTime,
			Title:     absence.Reason,
			AllDay:    absence.AllDay,
		})
	}
}
