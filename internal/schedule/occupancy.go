package schedule

import (
	"math"
	"time"

	"github.com/rs/zerolog"
)

// Band is the display category for an occupancy percentage. The boundaries
// are a hard contract: downstream color-coding depends on them exactly.
type Band string

const (
	BandFree      Band = "free"       // < 25%
	BandAvailable Band = "available"  // 25-49%
	BandModerate  Band = "moderate"   // 50-74%
	BandBusy      Band = "busy"       // 75-89%
	BandVeryBusy  Band = "very_busy"  // >= 90%
)

// OccupancyBand maps a percentage to its display band.
func OccupancyBand(percent int) Band {
	switch {
	case percent < 25:
		return BandFree
	case percent < 50:
		return BandAvailable
	case percent < 75:
		return BandModerate
	case percent < 90:
		return BandBusy
	default:
		return BandVeryBusy
	}
}

// DayOccupancy sums available and booked time for one weekday.
type DayOccupancy struct {
	AvailableHours float64 `json:"availableHours"`
	BookedHours    float64 `json:"bookedHours"`
}

// WeekOccupancy is the aggregate for one Monday-first week.
type WeekOccupancy struct {
	WeekStart               string          `json:"weekStart"`
	Days                    [7]DayOccupancy `json:"days"` // Monday-first
	TotalAvailableHours     float64         `json:"totalAvailableHours"`
	TotalBookedHours        float64         `json:"totalBookedHours"`
	AverageOccupancyPercent int             `json:"averageOccupancyPercent"`
	Band                    Band            `json:"band"`
}

// Aggregator reduces slots and appointments for a week into per-day
// occupancy buckets and a rolled-up percentage.
type Aggregator struct {
	logger zerolog.Logger
}

// NewAggregator creates a new Aggregator.
func NewAggregator(logger zerolog.Logger) *Aggregator {
	return &Aggregator{logger: logger}
}

// Aggregate buckets every entity dated within [weekStart, weekStart+6d] into
// Monday-first day occupancy. Slot duration comes from the time range, else
// the explicit duration field. Appointment duration comes from the explicit
// duration field, else the time range, else one hour. Malformed entities are
// skipped per-entity with a diagnostic, never fatal to the aggregation.
func (a *Aggregator) Aggregate(slots []*Availability, appointments []*Appointment, weekStart string) (*WeekOccupancy, error) {
	start, err := ParseDate(weekStart)
	if err != nil {
		return nil, err
	}
	end := start.AddDate(0, 0, 6)

	week := &WeekOccupancy{WeekStart: start.Format(DateLayout)}

	for _, slot := range slots {
		date, ok := a.dateInWindow(slot.Date, start, end, "slot", slot.ID)
		if !ok {
			continue
		}
		minutes := a.slotMinutes(slot)
		if minutes <= 0 {
			continue
		}
		week.Days[MondayIndex(date)].AvailableHours += float64(minutes) / 60
	}

	for _, appt := range appointments {
		date, ok := a.dateInWindow(appt.Date, start, end, "appointment", appt.ID)
		if !ok {
			continue
		}
		minutes := a.appointmentMinutes(appt)
		if minutes <= 0 {
			continue
		}
		week.Days[MondayIndex(date)].BookedHours += float64(minutes) / 60
	}

	for _, day := range week.Days {
		week.TotalAvailableHours += day.AvailableHours
		week.TotalBookedHours += day.BookedHours
	}
	week.AverageOccupancyPercent = occupancyPercent(week.TotalBookedHours, week.TotalAvailableHours)
	week.Band = OccupancyBand(week.AverageOccupancyPercent)

	return week, nil
}

// dateInWindow parses an entity date and reports whether it falls inside the
// target week. Unparseable dates are skipped with a diagnostic.
func (a *Aggregator) dateInWindow(raw string, start, end time.Time, kind, id string) (time.Time, bool) {
	date, err := ParseDate(raw)
	if err != nil {
		a.logger.Warn().
			Str("entity", kind).
			Str("id", id).
			Str("date", raw).
			Msg("skipping entity with unparseable date during occupancy aggregation")
		return time.Time{}, false
	}
	if date.Before(start) || date.After(end) {
		return time.Time{}, false
	}
	return date, true
}

// slotMinutes resolves a slot's duration: time range first, explicit
// duration field as the fallback.
func (a *Aggregator) slotMinutes(slot *Availability) int {
	if slot.StartTime != "" && slot.EndTime != "" {
		minutes, err := DurationMinutes(slot.StartTime, slot.EndTime)
		if err == nil {
			return minutes
		}
		a.logger.Warn().
			Str("slot_id", slot.ID).
			Msg("slot time range unparseable, falling back to explicit duration")
	}
	return slot.DurationMinutes
}

// appointmentMinutes resolves an appointment's duration: explicit duration
// field first, then time range, then a one-hour default.
func (a *Aggregator) appointmentMinutes(appt *Appointment) int {
	if appt.DurationMinutes > 0 {
		return appt.DurationMinutes
	}
	if appt.StartTime != "" && appt.EndTime != "" {
		minutes, err := DurationMinutes(appt.StartTime, appt.EndTime)
		if err == nil {
			return minutes
		}
		a.logger.Warn().
			Str("appointment_id", appt.ID).
			Msg("appointment time range unparseable, falling back to default duration")
	}
	return 60
}

// occupancyPercent computes round(booked / (available + booked) * 100),
// returning 0 when both are zero.
func occupancyPercent(booked, available float64) int {
	total := booked + available
	if total == 0 {
		return 0
	}
	return int(math.Round(booked / total * 100))
}
