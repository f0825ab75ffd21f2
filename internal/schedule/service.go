package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/api/models"
	"github.com/clinicdesk/clinicdesk/internal/featureflags"
)

// Service errors.
var (
	ErrConflict = errors.New("booking conflicts with existing commitments")
)

// Validation constants.
const (
	MaxTitleLength    = 80
	MaxReasonLength   = 500
	MaxLocationLength = 120
)

// RemoteConflictChecker checks a candidate against an external booking
// system. Implementations must use the same half-open overlap semantics as
// FindConflicts so that remote and local answers never disagree for the
// same inputs.
type RemoteConflictChecker interface {
	CheckConflicts(ctx context.Context, therapistID string, candidate Candidate) ([]Booking, error)
}

// ConflictError carries the clashing bookings when a save is rejected.
type ConflictError struct {
	Conflicts []Booking
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%d conflicting bookings", len(e.Conflicts))
}

// Unwrap lets errors.Is match ErrConflict.
func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// ValidationError represents validation errors.
type ValidationError struct {
	Errors []models.FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

// ServiceConfig holds the dependencies for the scheduling service.
type ServiceConfig struct {
	Repository     Repository
	RemoteChecker  RemoteConflictChecker // optional
	Flags          *featureflags.Service // optional
	ExpanderConfig ExpanderConfig
	Logger         zerolog.Logger
}

// Service orchestrates repositories, the engine and the remote conflict
// checker.
type Service struct {
	repo       Repository
	remote     RemoteConflictChecker
	flags      *featureflags.Service
	expander   *Expander
	projector  *Projector
	aggregator *Aggregator
	logger     zerolog.Logger
}

// NewService creates a new scheduling service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		repo:       cfg.Repository,
		remote:     cfg.RemoteChecker,
		flags:      cfg.Flags,
		expander:   NewExpander(cfg.ExpanderConfig),
		projector:  NewProjector(cfg.Logger),
		aggregator: NewAggregator(cfg.Logger),
		logger:     cfg.Logger,
	}
}

// ListSlots retrieves a therapist's slots, optionally bounded to a window.
func (s *Service) ListSlots(ctx context.Context, therapistID string, window DateWindow) (*models.SlotList, error) {
	slots, err := s.repo.ListSlots(ctx, therapistID, window)
	if err != nil {
		return nil, err
	}

	items := make([]models.Slot, 0, len(slots))
	for _, slot := range slots {
		items = append(items, s.toAPISlot(slot))
	}
	return &models.SlotList{Items: items}, nil
}

// GetSlot retrieves a slot by ID for a therapist.
func (s *Service) GetSlot(ctx context.Context, therapistID, slotID string) (*models.Slot, error) {
	slot, err := s.repo.GetSlot(ctx, therapistID, slotID)
	if err != nil {
		return nil, err
	}

	result := s.toAPISlot(slot)
	return &result, nil
}

// CreateSlot creates one or more slots for a therapist. A recurrence rule
// expands into one concrete-dated instance per occurrence, so projection
// never has to understand recurrence. Every occurrence is conflict-checked
// before anything is persisted.
func (s *Service) CreateSlot(ctx context.Context, therapistID string, input *models.SlotCreateRequest) (*models.SlotList, error) {
	if fieldErrors := s.validateSlotCreate(input); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	dates := []string{input.Date}
	if input.Recurrence != nil && Pattern(input.Recurrence.Pattern) != PatternNever {
		rule := RecurrenceRule{
			Pattern:          Pattern(input.Recurrence.Pattern),
			SelectedWeekdays: input.Recurrence.SelectedWeekdays,
			AnchorDate:       input.Date,
			DurationBound:    DurationBound(input.Recurrence.DurationBound),
			EndDate:          input.Recurrence.EndDate,
		}
		expanded, err := s.expander.Expand(rule)
		if err != nil {
			return nil, err
		}
		dates = expanded
	}

	if input.StartTime != "" && input.EndTime != "" {
		if err := s.ensureNoConflicts(ctx, therapistID, dates, input.StartTime, input.EndTime, input.Location, ""); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	slots := make([]*Availability, 0, len(dates))
	for _, date := range dates {
		slots = append(slots, &Availability{
			ID:              "slt_" + uuid.New().String()[:22],
			TherapistID:     therapistID,
			Date:            date,
			StartTime:       input.StartTime,
			EndTime:         input.EndTime,
			DurationMinutes: input.DurationMinutes,
			Location:        input.Location,
			Color:           input.Color,
			Title:           input.Title,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}

	if err := s.repo.CreateSlots(ctx, slots); err != nil {
		return nil, err
	}

	items := make([]models.Slot, 0, len(slots))
	for _, slot := range slots {
		items = append(items, s.toAPISlot(slot))
	}
	return &models.SlotList{Items: items}, nil
}

// UpdateSlot updates an existing slot, re-checking conflicts with the slot
// itself excluded.
func (s *Service) UpdateSlot(ctx context.Context, therapistID, slotID string, input *models.SlotUpdateRequest) (*models.Slot, error) {
	slot, err := s.repo.GetSlot(ctx, therapistID, slotID)
	if err != nil {
		return nil, err
	}

	if fieldErrors := s.validateSlotUpdate(input); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	if input.Date != nil {
		slot.Date = *input.Date
	}
	if input.StartTime != nil {
		slot.StartTime = *input.StartTime
	}
	if input.EndTime != nil {
		slot.EndTime = *input.EndTime
	}
	if input.DurationMinutes != nil {
		slot.DurationMinutes = *input.DurationMinutes
	}
	if input.Location != nil {
		slot.Location = *input.Location
	}
	if input.Color != nil {
		slot.Color = *input.Color
	}
	if input.Title != nil {
		slot.Title = *input.Title
	}
	if slot.StartTime != "" && slot.EndTime != "" {
		if minutes, err := DurationMinutes(slot.StartTime, slot.EndTime); err != nil || minutes <= 0 {
			return nil, &ValidationError{Errors: []models.FieldError{
				{Field: "endTime", Message: "must be after startTime"},
			}}
		}
		if err := s.ensureNoConflicts(ctx, therapistID, []string{slot.Date}, slot.StartTime, slot.EndTime, slot.Location, slot.ID); err != nil {
			return nil, err
		}
	}
	slot.UpdatedAt = time.Now()

	if err := s.repo.UpdateSlot(ctx, slot); err != nil {
		return nil, err
	}

	result := s.toAPISlot(slot)
	return &result, nil
}

// DeleteSlot deletes a slot for a therapist.
func (s *Service) DeleteSlot(ctx context.Context, therapistID, slotID string) error {
	// Verify ownership
	if _, err := s.repo.GetSlot(ctx, therapistID, slotID); err != nil {
		return err
	}
	return s.repo.DeleteSlot(ctx, slotID)
}

// PreviewOccurrences expands a rule for the authoring UI without persisting
// anything.
func (s *Service) PreviewOccurrences(_ context.Context, input *models.RecurrencePreviewRequest) (*models.RecurrencePreview, error) {
	occurrences, err := s.expander.Expand(RecurrenceRule{
		Pattern:          Pattern(input.Pattern),
		SelectedWeekdays: input.SelectedWeekdays,
		AnchorDate:       input.AnchorDate,
		DurationBound:    DurationBound(input.DurationBound),
		EndDate:          input.EndDate,
	})
	if err != nil {
		return nil, err
	}

	return &models.RecurrencePreview{
		Occurrences: occurrences,
		Count:       len(occurrences),
	}, nil
}

// CheckConflicts answers whether a candidate clashes with existing
// commitments. The remote checker is consulted first when configured and
// enabled; any transport failure falls back to the local engine, which uses
// identical overlap semantics. The answer is advisory either way: create and
// update re-run the check server-side immediately before persisting.
func (s *Service) CheckConflicts(ctx context.Context, therapistID string, input *models.ConflictCheckRequest) (*models.ConflictCheckResult, error) {
	candidate := Candidate{
		Date:      input.Date,
		StartTime: input.StartTime,
		EndTime:   input.EndTime,
		Location:  input.Location,
		ExcludeID: input.ExcludeID,
	}

	if s.remoteCheckEnabled(ctx) {
		conflicts, err := s.remote.CheckConflicts(ctx, therapistID, candidate)
		if err == nil {
			return s.toConflictResult(conflicts, "remote"), nil
		}
		s.logger.Warn().Err(err).
			Str("therapist_id", therapistID).
			Msg("remote conflict check failed, falling back to local engine")
	}

	existing, err := s.existingBookings(ctx, therapistID, DateWindow{From: input.Date, To: input.Date})
	if err != nil {
		return nil, err
	}
	return s.toConflictResult(FindConflicts(candidate, existing), "local"), nil
}

// CalendarEvents projects the therapist's entities in [from, to] onto the
// Monday-first grid.
func (s *Service) CalendarEvents(ctx context.Context, therapistID, from, to string) (*Projection, error) {
	if _, err := ParseDate(from); err != nil {
		return nil, err
	}
	if _, err := ParseDate(to); err != nil {
		return nil, err
	}

	window := DateWindow{From: from, To: to}
	slots, err := s.repo.ListSlots(ctx, therapistID, window)
	if err != nil {
		return nil, err
	}
	appointments, err := s.repo.ListAppointments(ctx, therapistID, window)
	if err != nil {
		return nil, err
	}
	absences, err := s.repo.ListAbsences(ctx, therapistID, window)
	if err != nil {
		return nil, err
	}

	return s.projector.Project(slots, appointments, absences), nil
}

// Occupancy aggregates the week starting at weekStart into per-day
// available/booked hours and a rolled-up percentage.
func (s *Service) Occupancy(ctx context.Context, therapistID, weekStart string) (*WeekOccupancy, error) {
	start, err := ParseDate(weekStart)
	if err != nil {
		return nil, err
	}
	window := DateWindow{
		From: start.Format(DateLayout),
		To:   start.AddDate(0, 0, 6).Format(DateLayout),
	}

	slots, err := s.repo.ListSlots(ctx, therapistID, window)
	if err != nil {
		return nil, err
	}
	appointments, err := s.repo.ListAppointments(ctx, therapistID, window)
	if err != nil {
		return nil, err
	}

	return s.aggregator.Aggregate(slots, appointments, weekStart)
}

// ListAppointments retrieves a therapist's appointments, optionally bounded
// to a window.
func (s *Service) ListAppointments(ctx context.Context, therapistID string, window DateWindow) (*models.AppointmentList, error) {
	appointments, err := s.repo.ListAppointments(ctx, therapistID, window)
	if err != nil {
		return nil, err
	}

	items := make([]models.Appointment, 0, len(appointments))
	for _, appt := range appointments {
		items = append(items, s.toAPIAppointment(appt))
	}
	return &models.AppointmentList{Items: items}, nil
}

// CreateAppointment books a client session, rejecting it when it clashes
// with existing commitments.
func (s *Service) CreateAppointment(ctx context.Context, therapistID string, input *models.AppointmentCreateRequest) (*models.Appointment, error) {
	if fieldErrors := s.validateAppointmentCreate(input); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	if input.StartTime != "" && input.EndTime != "" {
		if err := s.ensureNoConflicts(ctx, therapistID, []string{input.Date}, input.StartTime, input.EndTime, input.Location, ""); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	appointment := &Appointment{
		ID:              "apt_" + uuid.New().String()[:22],
		TherapistID:     therapistID,
		ClientID:        input.ClientID,
		ClientName:      input.ClientName,
		Date:            input.Date,
		StartTime:       input.StartTime,
		EndTime:         input.EndTime,
		DurationMinutes: input.DurationMinutes,
		Location:        input.Location,
		Status:          StatusUpcoming,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.CreateAppointment(ctx, appointment); err != nil {
		return nil, err
	}

	result := s.toAPIAppointment(appointment)
	return &result, nil
}

// ListAbsences retrieves a therapist's absences, optionally bounded to a
// window.
func (s *Service) ListAbsences(ctx context.Context, therapistID string, window DateWindow) (*models.AbsenceList, error) {
	absences, err := s.repo.ListAbsences(ctx, therapistID, window)
	if err != nil {
		return nil, err
	}

	items := make([]models.Absence, 0, len(absences))
	for _, absence := range absences {
		items = append(items, s.toAPIAbsence(absence))
	}
	return &models.AbsenceList{Items: items}, nil
}

// CreateAbsence records an absence. Absences are soft blocks: they are never
// conflict-checked, only surfaced on the calendar for manual review.
func (s *Service) CreateAbsence(ctx context.Context, therapistID string, input *models.AbsenceCreateRequest) (*models.Absence, error) {
	if fieldErrors := s.validateAbsenceCreate(input); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	endDate := input.EndDate
	if endDate == "" {
		endDate = input.StartDate
	}

	now := time.Now()
	absence := &Absence{
		ID:          "abs_" + uuid.New().String()[:22],
		TherapistID: therapistID,
		StartDate:   input.StartDate,
		EndDate:     endDate,
		StartTime:   input.StartTime,
		EndTime:     input.EndTime,
		AllDay:      input.AllDay,
		Reason:      input.Reason,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.CreateAbsence(ctx, absence); err != nil {
		return nil, err
	}

	result := s.toAPIAbsence(absence)
	return &result, nil
}

// DeleteAbsence deletes an absence for a therapist.
func (s *Service) DeleteAbsence(ctx context.Context, therapistID, absenceID string) error {
	// Verify ownership
	if _, err := s.repo.GetAbsence(ctx, therapistID, absenceID); err != nil {
		return err
	}
	return s.repo.DeleteAbsence(ctx, absenceID)
}

// remoteCheckEnabled reports whether the remote conflict checker should be
// consulted.
func (s *Service) remoteCheckEnabled(ctx context.Context) bool {
	if s.remote == nil {
		return false
	}
	if s.flags != nil && s.flags.IsRemoteConflictCheckDisabled(ctx) {
		return false
	}
	return true
}

// ensureNoConflicts re-runs the conflict check server-side for every
// candidate date immediately before persisting. The commit-time check is the
// authoritative one; any earlier "no conflicts" answer a client saw is
// advisory and may be stale.
func (s *Service) ensureNoConflicts(ctx context.Context, therapistID string, dates []string, startTime, endTime, location, excludeID string) error {
	if len(dates) == 0 {
		return nil
	}
	window := DateWindow{From: dates[0], To: dates[len(dates)-1]}
	existing, err := s.existingBookings(ctx, therapistID, window)
	if err != nil {
		return err
	}

	var conflicts []Booking
	for _, date := range dates {
		conflicts = append(conflicts, FindConflicts(Candidate{
			Date:      date,
			StartTime: startTime,
			EndTime:   endTime,
			Location:  location,
			ExcludeID: excludeID,
		}, existing)...)
	}

	if len(conflicts) > 0 {
		return &ConflictError{Conflicts: conflicts}
	}
	return nil
}

// existingBookings loads and normalizes every commitment that conflict
// detection should consider. Absences are deliberately left out.
func (s *Service) existingBookings(ctx context.Context, therapistID string, window DateWindow) ([]Booking, error) {
	slots, err := s.repo.ListSlots(ctx, therapistID, window)
	if err != nil {
		return nil, err
	}
	appointments, err := s.repo.ListAppointments(ctx, therapistID, window)
	if err != nil {
		return nil, err
	}

	bookings := make([]Booking, 0, len(slots)+len(appointments))
	for _, appt := range appointments {
		bookings = append(bookings, AppointmentBooking(appt))
	}
	for _, slot := range slots {
		bookings = append(bookings, AvailabilityBooking(slot))
	}
	return bookings, nil
}

// validateSlotCreate validates the create slot input.
func (s *Service) validateSlotCreate(input *models.SlotCreateRequest) []models.FieldError {
	var errs []models.FieldError

	if input.Date == "" {
		errs = append(errs, models.FieldError{Field: "date", Message: "is required"})
	} else if _, err := ParseDate(input.Date); err != nil {
		errs = append(errs, models.FieldError{Field: "date", Message: "must be a YYYY-MM-DD date"})
	}

	errs = append(errs, s.validateTimeRange(input.StartTime, input.EndTime)...)

	if input.DurationMinutes < 0 {
		errs = append(errs, models.FieldError{Field: "durationMinutes", Message: "must not be negative"})
	}
	if len(input.Title) > MaxTitleLength {
		errs = append(errs, models.FieldError{Field: "title", Message: "must be at most 80 characters"})
	}
	if len(input.Location) > MaxLocationLength {
		errs = append(errs, models.FieldError{Field: "location", Message: "must be at most 120 characters"})
	}

	return errs
}

// validateSlotUpdate validates the update slot input.
func (s *Service) validateSlotUpdate(input *models.SlotUpdateRequest) []models.FieldError {
	var errs []models.FieldError

	if input.Date != nil {
		if _, err := ParseDate(*input.Date); err != nil {
			errs = append(errs, models.FieldError{Field: "date", Message: "must be a YYYY-MM-DD date"})
		}
	}
	if input.StartTime != nil && *input.StartTime != "" && !timeHHMMRegex.MatchString(*input.StartTime) {
		errs = append(errs, models.FieldError{Field: "startTime", Message: "must be in HH:mm format"})
	}
	if input.EndTime != nil && *input.EndTime != "" && !timeHHMMRegex.MatchString(*input.EndTime) {
		errs = append(errs, models.FieldError{Field: "endTime", Message: "must be in HH:mm format"})
	}
	if input.DurationMinutes != nil && *input.DurationMinutes < 0 {
		errs = append(errs, models.FieldError{Field: "durationMinutes", Message: "must not be negative"})
	}
	if input.Title != nil && len(*input.Title) > MaxTitleLength {
		errs = append(errs, models.FieldError{Field: "title", Message: "must be at most 80 characters"})
	}
	if input.Location != nil && len(*input.Location) > MaxLocationLength {
		errs = append(errs, models.FieldError{Field: "location", Message: "must be at most 120 characters"})
	}

	return errs
}

// validateAppointmentCreate validates the create appointment input.
func (s *Service) validateAppointmentCreate(input *models.AppointmentCreateRequest) []models.FieldError {
	var errs []models.FieldError

	if input.Date == "" {
		errs = append(errs, models.FieldError{Field: "date", Message: "is required"})
	} else if _, err := ParseDate(input.Date); err != nil {
		errs = append(errs, models.FieldError{Field: "date", Message: "must be a YYYY-MM-DD date"})
	}

	errs = append(errs, s.validateTimeRange(input.StartTime, input.EndTime)...)

	if input.DurationMinutes < 0 {
		errs = append(errs, models.FieldError{Field: "durationMinutes", Message: "must not be negative"})
	}
	if len(input.Location) > MaxLocationLength {
		errs = append(errs, models.FieldError{Field: "location", Message: "must be at most 120 characters"})
	}

	return errs
}

// validateAbsenceCreate validates the create absence input.
func (s *Service) validateAbsenceCreate(input *models.AbsenceCreateRequest) []models.FieldError {
	var errs []models.FieldError

	if input.StartDate == "" {
		errs = append(errs, models.FieldError{Field: "startDate", Message: "is required"})
	} else if _, err := ParseDate(input.StartDate); err != nil {
		errs = append(errs, models.FieldError{Field: "startDate", Message: "must be a YYYY-MM-DD date"})
	}
	if input.EndDate != "" {
		if _, err := ParseDate(input.EndDate); err != nil {
			errs = append(errs, models.FieldError{Field: "endDate", Message: "must be a YYYY-MM-DD date"})
		} else if input.StartDate != "" && input.EndDate < input.StartDate {
			errs = append(errs, models.FieldError{Field: "endDate", Message: "must not precede startDate"})
		}
	}
	if !input.AllDay {
		errs = append(errs, s.validateTimeRange(input.StartTime, input.EndTime)...)
	}
	if len(input.Reason) > MaxReasonLength {
		errs = append(errs, models.FieldError{Field: "reason", Message: "must be at most 500 characters"})
	}

	return errs
}

// validateTimeRange validates an optional start/end time pair. Overnight
// ranges are rejected here so the midnight wrap in AddMinutes can never be
// observed through the API.
func (s *Service) validateTimeRange(startTime, endTime string) []models.FieldError {
	var errs []models.FieldError

	if startTime != "" && !timeHHMMRegex.MatchString(startTime) {
		errs = append(errs, models.FieldError{Field: "startTime", Message: "must be in HH:mm format"})
	}
	if endTime != "" && !timeHHMMRegex.MatchString(endTime) {
		errs = append(errs, models.FieldError{Field: "endTime", Message: "must be in HH:mm format"})
	}
	if len(errs) == 0 && startTime != "" && endTime != "" {
		if minutes, err := DurationMinutes(startTime, endTime); err == nil && minutes <= 0 {
			errs = append(errs, models.FieldError{Field: "endTime", Message: "must be after startTime"})
		}
	}

	return errs
}

// toConflictResult converts engine bookings to the API shape.
func (s *Service) toConflictResult(conflicts []Booking, source string) *models.ConflictCheckResult {
	items := make([]models.ConflictingBooking, 0, len(conflicts))
	for _, c := range conflicts {
		items = append(items, models.ConflictingBooking{
			ID:        c.ID,
			Kind:      string(c.Kind),
			Date:      c.Date,
			StartDate: c.StartDate,
			EndDate:   c.EndDate,
			StartTime: c.StartTime,
			EndTime:   c.EndTime,
			Location:  c.Location,
			Title:     c.Title,
		})
	}
	return &models.ConflictCheckResult{
		HasConflicts: len(items) > 0,
		Conflicts:    items,
		Source:       source,
	}
}

// toAPISlot converts a domain Availability to an API Slot.
func (s *Service) toAPISlot(slot *Availability) models.Slot {
	return models.Slot{
		ID:              slot.ID,
		Date:            slot.Date,
		StartTime:       slot.StartTime,
		EndTime:         slot.EndTime,
		DurationMinutes: slot.DurationMinutes,
		Location:        slot.Location,
		Color:           slot.Color,
		Title:           slot.Title,
		CreatedAt:       models.Timestamp(slot.CreatedAt),
		UpdatedAt:       models.Timestamp(slot.UpdatedAt),
	}
}

// toAPIAppointment converts a domain Appointment to an API Appointment.
func (s *Service) toAPIAppointment(appt *Appointment) models.Appointment {
	return models.Appointment{
		ID:              appt.ID,
		ClientID:        appt.ClientID,
		ClientName:      appt.ClientName,
		Date:            appt.Date,
		StartTime:       appt.StartTime,
		EndTime:         appt.EndTime,
		DurationMinutes: appt.DurationMinutes,
		Location:        appt.Location,
		Status:          string(appt.Status),
		CreatedAt:       models.Timestamp(appt.CreatedAt),
		UpdatedAt:       models.Timestamp(appt.UpdatedAt),
	}
}

// toAPIAbsence converts a domain Absence to an API Absence.
func (s *Service) toAPIAbsence(absence *Absence) models.Absence {
	return models.Absence{
		ID:        absence.ID,
		StartDate: absence.StartDate,
		EndDate:   absence.EndDate,
		StartTime: absence.StartTime,
		EndTime:   absence.EndTime,
		AllDay:    absence.AllDay,
		Reason:    absence.Reason,
		CreatedAt: models.Timestamp(absence.CreatedAt),
		UpdatedAt: models.Timestamp(absence.UpdatedAt),
	}
}
