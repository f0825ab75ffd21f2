package schedule

import "time"

// BookingKind distinguishes the entity a normalized booking came from.
type BookingKind string

const (
	KindAvailability BookingKind = "availability"
	KindAppointment  BookingKind = "appointment"
)

// Booking is the normalized view of an existing commitment that conflict
// detection compares candidates against. A booking covers either a single
// Date or a [StartDate, EndDate] range; Date takes precedence when set.
//
// Absences are deliberately never represented as bookings: they are soft,
// informational blocks that require manual review, not bookable-resource
// state. Callers that want absences to block a save must surface them
// separately.
type Booking struct {
	ID        string
	Kind      BookingKind
	Date      string
	StartDate string
	EndDate   string
	StartTime string
	EndTime   string
	Location  string
	Title     string
}

// Candidate is the booking being authored or moved.
type Candidate struct {
	Date      string
	StartTime string
	EndTime   string
	Location  string

	// ExcludeID skips the entity being edited so it never conflicts with
	// itself.
	ExcludeID string
}

// AvailabilityBooking normalizes a slot for conflict detection.
func AvailabilityBooking(s *Availability) Booking {
	return Booking{
		ID:        s.ID,
		Kind:      KindAvailability,
		Date:      s.Date,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		Location:  s.Location,
		Title:     s.Title,
	}
}

// AppointmentBooking normalizes an appointment for conflict detection.
func AppointmentBooking(a *Appointment) Booking {
	return Booking{
		ID:        a.ID,
		Kind:      KindAppointment,
		Date:      a.Date,
		StartTime: a.StartTime,
		EndTime:   a.EndTime,
		Location:  a.Location,
		Title:     a.ClientName,
	}
}

// FindConflicts returns the subset of existing bookings that clash with the
// candidate: same date (or date-range containment), overlapping time range,
// and matching location. An unset location on either side is "unspecified"
// and conflicts with everything, so callers wanting precise checking must
// pass an explicit location. The filter is stable: results preserve the
// order of existing so "first conflict" is deterministic.
//
// This check never errors. Bookings with unparseable dates or times are
// skipped, and a candidate with unparseable fields yields an empty result;
// both follow the degrade-gracefully policy for upstream data that is not
// schema-guaranteed.
func FindConflicts(candidate Candidate, existing []Booking) []Booking {
	candDate, err := ParseDate(candidate.Date)
	if err != nil {
		return nil
	}
	candStart, err := ToMinutes(candidate.StartTime)
	if err != nil {
		return nil
	}
	candEnd, err := ToMinutes(candidate.EndTime)
	if err != nil {
		return nil
	}

	var conflicts []Booking
	for _, b := range existing {
		if b.ID == candidate.ExcludeID && candidate.ExcludeID != "" {
			continue
		}
		if b.Location != "" && candidate.Location != "" && b.Location != candidate.Location {
			continue
		}
		if !bookingCoversDate(b, candDate) {
			continue
		}

		startMin, err := ToMinutes(b.StartTime)
		if err != nil {
			continue
		}
		endMin, err := ToMinutes(b.EndTime)
		if err != nil {
			continue
		}
		if Overlaps(candStart, candEnd, startMin, endMin) {
			conflicts = append(conflicts, b)
		}
	}

	return conflicts
}

// bookingCoversDate reports whether the booking occupies the candidate date.
func bookingCoversDate(b Booking, date time.Time) bool {
	if b.Date != "" {
		d, err := ParseDate(b.Date)
		if err != nil {
			return false
		}
		return d.Equal(date)
	}

	start, err := ParseDate(b.StartDate)
	if err != nil {
		return false
	}
	end, err := ParseDate(b.EndDate)
	if err != nil {
		return false
	}
	return !date.Before(start) && !date.After(end)
}
