package schedule

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu           sync.RWMutex
	slots        map[string]*Availability
	appointments map[string]*Appointment
	absences     map[string]*Absence
}

// NewInMemoryRepository creates a new in-memory scheduling repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		slots:        make(map[string]*Availability),
		appointments: make(map[string]*Appointment),
		absences:     make(map[string]*Absence),
	}
}

// GetSlot retrieves a slot for a therapist.
func (r *InMemoryRepository) GetSlot(_ context.Context, therapistID, slotID string) (*Availability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	slot, ok := r.slots[slotID]
	if !ok || slot.TherapistID != therapistID {
		return nil, ErrSlotNotFound
	}

	cpy := *slot
	return &cpy, nil
}

// ListSlots retrieves a therapist's slots within the window.
func (r *InMemoryRepository) ListSlots(_ context.Context, therapistID string, window DateWindow) ([]*Availability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var slots []*Availability
	for _, slot := range r.slots {
		if slot.TherapistID != therapistID || !dateWithin(slot.Date, window) {
			continue
		}
		cpy := *slot
		slots = append(slots, &cpy)
	}

	sort.Slice(slots, func(a, b int) bool {
		if slots[a].Date != slots[b].Date {
			return slots[a].Date < slots[b].Date
		}
		return slots[a].StartTime < slots[b].StartTime
	})

	return slots, nil
}

// CreateSlots persists a batch of slots.
func (r *InMemoryRepository) CreateSlots(_ context.Context, slots []*Availability) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, slot := range slots {
		cpy := *slot
		r.slots[slot.ID] = &cpy
	}
	return nil
}

// UpdateSlot updates an existing slot.
func (r *InMemoryRepository) UpdateSlot(_ context.Context, slot *Availability) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.slots[slot.ID]; !ok {
		return ErrSlotNotFound
	}

	cpy := *slot
	r.slots[slot.ID] = &cpy
	return nil
}

// DeleteSlot deletes a slot by ID.
func (r *InMemoryRepository) DeleteSlot(_ context.Context, slotID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.slots, slotID)
	return nil
}

// ListAppointments retrieves a therapist's appointments within the window.
func (r *InMemoryRepository) ListAppointments(_ context.Context, therapistID string, window DateWindow) ([]*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var appointments []*Appointment
	for _, appt := range r.appointments {
		if appt.TherapistID != therapistID || !dateWithin(appt.Date, window) {
			continue
		}
		cpy := *appt
		appointments = append(appointments, &cpy)
	}

	sort.Slice(appointments, func(a, b int) bool {
		if appointments[a].Date != appointments[b].Date {
			return appointments[a].Date < appointments[b].Date
		}
		return appointments[a].StartTime < appointments[b].StartTime
	})

	return appointments, nil
}

// CreateAppointment persists a new appointment.
func (r *InMemoryRepository) CreateAppointment(_ context.Context, appointment *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *appointment
	r.appointments[appointment.ID] = &cpy
	return nil
}

// GetAbsence retrieves an absence for a therapist.
func (r *InMemoryRepository) GetAbsence(_ context.Context, therapistID, absenceID string) (*Absence, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	absence, ok := r.absences[absenceID]
	if !ok || absence.TherapistID != therapistID {
		return nil, ErrAbsenceNotFound
	}

	cpy := *absence
	return &cpy, nil
}

// ListAbsences retrieves a therapist's absences overlapping the window.
func (r *InMemoryRepository) ListAbsences(_ context.Context, therapistID string, window DateWindow) ([]*Absence, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var absences []*Absence
	for _, absence := range r.absences {
		if absence.TherapistID != therapistID {
			continue
		}
		// Range entities overlap the window unless entirely outside it.
		if window.From != "" && absence.EndDate < window.From {
			continue
		}
		if window.To != "" && absence.StartDate > window.To {
			continue
		}
		cpy := *absence
		absences = append(absences, &cpy)
	}

	sort.Slice(absences, func(a, b int) bool {
		return absences[a].StartDate < absences[b].StartDate
	})

	return absences, nil
}

// CreateAbsence persists a new absence.
func (r *InMemoryRepository) CreateAbsence(_ context.Context, absence *Absence) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *absence
	r.absences[absence.ID] = &cpy
	return nil
}

// DeleteAbsence deletes an absence by ID.
func (r *InMemoryRepository) DeleteAbsence(_ context.Context, absenceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.absences, absenceID)
	return nil
}

// dateWithin reports whether a YYYY-MM-DD date falls inside the window.
// ISO dates compare correctly as strings.
func dateWithin(date string, window DateWindow) bool {
	if window.From != "" && date < window.From {
		return false
	}
	if window.To != "" && date > window.To {
		return false
	}
	return true
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
