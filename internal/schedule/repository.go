package schedule

import "context"

// DateWindow bounds a query to [From, To] inclusive, both YYYY-MM-DD.
// Zero values leave the corresponding side unbounded.
type DateWindow struct {
	From string
	To   string
}

// Repository defines the interface for scheduling data persistence.
// All reads are scoped to a therapist; an entity that exists but belongs to
// another therapist is reported as not found.
type Repository interface {
	// GetSlot retrieves a slot for a therapist.
	// Returns ErrSlotNotFound if it doesn't exist or belongs to someone else.
	GetSlot(ctx context.Context, therapistID, slotID string) (*Availability, error)

	// ListSlots retrieves a therapist's slots, optionally bounded by window,
	// ordered by date then start time.
	ListSlots(ctx context.Context, therapistID string, window DateWindow) ([]*Availability, error)

	// CreateSlots persists a batch of slots. Recurring authoring expands a
	// rule into many concrete-dated instances saved in one call.
	CreateSlots(ctx context.Context, slots []*Availability) error

	// UpdateSlot updates an existing slot.
	UpdateSlot(ctx context.Context, slot *Availability) error

	// DeleteSlot deletes a slot by ID.
	DeleteSlot(ctx context.Context, slotID string) error

	// ListAppointments retrieves a therapist's appointments, optionally
	// bounded by window, ordered by date then start time.
	ListAppointments(ctx context.Context, therapistID string, window DateWindow) ([]*Appointment, error)

	// CreateAppointment persists a new appointment.
	CreateAppointment(ctx context.Context, appointment *Appointment) error

	// GetAbsence retrieves an absence for a therapist.
	// Returns ErrAbsenceNotFound if it doesn't exist or belongs to someone else.
	GetAbsence(ctx context.Context, therapistID, absenceID string) (*Absence, error)

	// ListAbsences retrieves a therapist's absences overlapping window,
	// ordered by start date.
	ListAbsences(ctx context.Context, therapistID string, window DateWindow) ([]*Absence, error)

	// CreateAbsence persists a new absence.
	CreateAbsence(ctx context.Context, absence *Absence) error

	// DeleteAbsence deletes an absence by ID.
	DeleteAbsence(ctx context.Context, absenceID string) error
}
