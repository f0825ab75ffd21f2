package schedule_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/clinicdesk/internal/api/models"
	"github.com/clinicdesk/clinicdesk/internal/featureflags"
	"github.com/clinicdesk/clinicdesk/internal/schedule"
)

const therapistID = "usr_test"

// fakeRemoteChecker is a scripted RemoteConflictChecker.
type fakeRemoteChecker struct {
	conflicts []schedule.Booking
	err       error
	calls     int
}

func (f *fakeRemoteChecker) CheckConflicts(_ context.Context, _ string, _ schedule.Candidate) ([]schedule.Booking, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.conflicts, nil
}

func newTestService(remote schedule.RemoteConflictChecker) (*schedule.Service, *schedule.InMemoryRepository) {
	repo := schedule.NewInMemoryRepository()
	service := schedule.NewService(schedule.ServiceConfig{
		Repository:    repo,
		RemoteChecker: remote,
		Logger:        zerolog.Nop(),
	})
	return service, repo
}

func TestService_CreateSlot_Single(t *testing.T) {
	service, _ := newTestService(nil)
	ctx := context.Background()

	created, err := service.CreateSlot(ctx, therapistID, &models.SlotCreateRequest{
		Date:      anchorMonday,
		StartTime: "09:00",
		EndTime:   "17:00",
		Location:  "room1",
		Color:     "#8bc34a",
	})
	require.NoError(t, err)
	require.Len(t, created.Items, 1)
	assert.NotEmpty(t, created.Items[0].ID)
	assert.Equal(t, anchorMonday, created.Items[0].Date)

	got, err := service.GetSlot(ctx, therapistID, created.Items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "09:00", got.StartTime)
}

func TestService_CreateSlot_RecurringExpandsInstances(t *testing.T) {
	service, _ := newTestService(nil)
	ctx := context.Background()

	created, err := service.CreateSlot(ctx, therapistID, &models.SlotCreateRequest{
		Date:      anchorMonday,
		StartTime: "09:00",
		EndTime:   "12:00",
		Recurrence: &models.RecurrenceRule{
			Pattern:       string(schedule.PatternWeekly),
			DurationBound: string(schedule.BoundOneMonth),
		},
	})
	require.NoError(t, err)
	// Five Mondays between 2025-09-01 and 2025-10-01, one concrete slot each.
	require.Len(t, created.Items, 5)
	for _, item := range created.Items {
		d, err := schedule.ParseDate(item.Date)
		require.NoError(t, err)
		assert.Equal(t, 0, schedule.MondayIndex(d))
	}

	list, err := service.ListSlots(ctx, therapistID, schedule.DateWindow{})
	require.NoError(t, err)
	assert.Len(t, list.Items, 5)
}

func TestService_CreateSlot_InvalidRecurrenceFails(t *testing.T) {
	service, _ := newTestService(nil)

	_, err := service.CreateSlot(context.Background(), therapistID, &models.SlotCreateRequest{
		Date:      anchorMonday,
		StartTime: "09:00",
		EndTime:   "12:00",
		Recurrence: &models.RecurrenceRule{
			Pattern: string(schedule.PatternWeeklyCustom),
		},
	})
	assert.ErrorIs(t, err, schedule.ErrInvalidRule)
}

func TestService_CreateSlot_Validation(t *testing.T) {
	service, _ := newTestService(nil)

	tests := []struct {
		name  string
		input models.SlotCreateRequest
		field string
	}{
		{name: "missing date", input: models.SlotCreateRequest{StartTime: "09:00", EndTime: "10:00"}, field: "date"},
		{name: "bad date", input: models.SlotCreateRequest{Date: "01-09-2025"}, field: "date"},
		{name: "bad start time", input: models.SlotCreateRequest{Date: anchorMonday, StartTime: "junk", EndTime: "10:00"}, field: "startTime"},
		{name: "end before start", input: models.SlotCreateRequest{Date: anchorMonday, StartTime: "12:00", EndTime: "09:00"}, field: "endTime"},
		{name: "end equals start", input: models.SlotCreateRequest{Date: anchorMonday, StartTime: "09:00", EndTime: "09:00"}, field: "endTime"},
		{name: "negative duration", input: models.SlotCreateRequest{Date: anchorMonday, DurationMinutes: -30}, field: "durationMinutes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.CreateSlot(context.Background(), therapistID, &tt.input)
			var validationErr *schedule.ValidationError
			require.ErrorAs(t, err, &validationErr)
			require.NotEmpty(t, validationErr.Errors)
			assert.Equal(t, tt.field, validationErr.Errors[0].Field)
		})
	}
}

func TestService_CreateAppointment_RejectsConflictAtCommit(t *testing.T) {
	service, _ := newTestService(nil)
	ctx := context.Background()

	_, err := service.CreateAppointment(ctx, therapistID, &models.AppointmentCreateRequest{
		ClientName: "A. Janssen",
		Date:       "2025-09-02",
		StartTime:  "14:30",
		EndTime:    "15:30",
		Location:   "room1",
	})
	require.NoError(t, err)

	// Overlapping second appointment in the same room is rejected even
	// though no client-side conflict check ran.
	_, err = service.CreateAppointment(ctx, therapistID, &models.AppointmentCreateRequest{
		ClientName: "B. de Vries",
		Date:       "2025-09-02",
		StartTime:  "14:00",
		EndTime:    "15:00",
		Location:   "room1",
	})
	require.ErrorIs(t, err, schedule.ErrConflict)

	var conflictErr *schedule.ConflictError
	require.ErrorAs(t, err, &conflictErr)
	require.Len(t, conflictErr.Conflicts, 1)

	// Touching the existing appointment is fine.
	_, err = service.CreateAppointment(ctx, therapistID, &models.AppointmentCreateRequest{
		ClientName: "B. de Vries",
		Date:       "2025-09-02",
		StartTime:  "15:30",
		EndTime:    "16:30",
		Location:   "room1",
	})
	assert.NoError(t, err)
}

func TestService_UpdateSlot_ExcludesSelfFromConflictCheck(t *testing.T) {
	service, _ := newTestService(nil)
	ctx := context.Background()

	created, err := service.CreateSlot(ctx, therapistID, &models.SlotCreateRequest{
		Date:      anchorMonday,
		StartTime: "09:00",
		EndTime:   "12:00",
		Location:  "room1",
	})
	require.NoError(t, err)
	slotID := created.Items[0].ID

	// Shrinking the same slot must not conflict with itself.
	newEnd := "11:00"
	updated, err := service.UpdateSlot(ctx, therapistID, slotID, &models.SlotUpdateRequest{
		EndTime: &newEnd,
	})
	require.NoError(t, err)
	assert.Equal(t, "11:00", updated.EndTime)
}

func TestService_CheckConflicts_RemoteFirstLocalFallback(t *testing.T) {
	remote := &fakeRemoteChecker{
		conflicts: []schedule.Booking{{
			ID:        "ext_1",
			Kind:      schedule.KindAppointment,
			Date:      "2025-09-02",
			StartTime: "14:00",
			EndTime:   "15:00",
		}},
	}
	service, _ := newTestService(remote)
	ctx := context.Background()

	result, err := service.CheckConflicts(ctx, therapistID, &models.ConflictCheckRequest{
		Date:      "2025-09-02",
		StartTime: "14:00",
		EndTime:   "15:00",
	})
	require.NoError(t, err)
	assert.Equal(t, "remote", result.Source)
	assert.True(t, result.HasConflicts)
	assert.Equal(t, 1, remote.calls)

	// Remote transport failure falls back to the local engine with the same
	// overlap semantics.
	remote.err = errors.New("connection refused")
	result, err = service.CheckConflicts(ctx, therapistID, &models.ConflictCheckRequest{
		Date:      "2025-09-02",
		StartTime: "14:00",
		EndTime:   "15:00",
	})
	require.NoError(t, err)
	assert.Equal(t, "local", result.Source)
	assert.False(t, result.HasConflicts)
}

func TestService_CheckConflicts_FlagDisablesRemote(t *testing.T) {
	remote := &fakeRemoteChecker{}
	repo := schedule.NewInMemoryRepository()
	flags := featureflags.NewService(featureflags.ServiceConfig{
		Repository: featureflags.NewInMemoryRepository(),
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, flags.SetFlag(context.Background(), &featureflags.Flag{
		Key:   featureflags.FlagDisableRemoteConflictCheck,
		Value: true,
	}))

	service := schedule.NewService(schedule.ServiceConfig{
		Repository:    repo,
		RemoteChecker: remote,
		Flags:         flags,
		Logger:        zerolog.Nop(),
	})

	result, err := service.CheckConflicts(context.Background(), therapistID, &models.ConflictCheckRequest{
		Date:      "2025-09-02",
		StartTime: "14:00",
		EndTime:   "15:00",
	})
	require.NoError(t, err)
	assert.Equal(t, "local", result.Source)
	assert.Zero(t, remote.calls)
}

func TestService_CheckConflicts_AbsencesNeverConflict(t *testing.T) {
	service, repo := newTestService(nil)
	ctx := context.Background()

	_, err := service.CreateAbsence(ctx, therapistID, &models.AbsenceCreateRequest{
		StartDate: "2025-09-02",
		AllDay:    true,
		Reason:    "conference",
	})
	require.NoError(t, err)

	// The absence is stored but is a soft block: a candidate on the same
	// day checks clean.
	absences, err := repo.ListAbsences(ctx, therapistID, schedule.DateWindow{})
	require.NoError(t, err)
	require.Len(t, absences, 1)

	result, err := service.CheckConflicts(ctx, therapistID, &models.ConflictCheckRequest{
		Date:      "2025-09-02",
		StartTime: "10:00",
		EndTime:   "11:00",
	})
	require.NoError(t, err)
	assert.False(t, result.HasConflicts)
}

func TestService_PreviewOccurrences(t *testing.T) {
	service, _ := newTestService(nil)

	preview, err := service.PreviewOccurrences(context.Background(), &models.RecurrencePreviewRequest{
		AnchorDate:       anchorMonday,
		Pattern:          string(schedule.PatternWeeklyCustom),
		SelectedWeekdays: []int{0, 3},
		DurationBound:    string(schedule.BoundUntilDate),
		EndDate:          "2025-09-14",
	})
	require.NoError(t, err)
	assert.Equal(t, 4, preview.Count)
	assert.Equal(t, preview.Count, len(preview.Occurrences))
}

func TestService_CalendarEvents(t *testing.T) {
	service, _ := newTestService(nil)
	ctx := context.Background()

	_, err := service.CreateSlot(ctx, therapistID, &models.SlotCreateRequest{
		Date:      anchorMonday,
		StartTime: "09:00",
		EndTime:   "17:00",
	})
	require.NoError(t, err)
	_, err = service.CreateAppointment(ctx, therapistID, &models.AppointmentCreateRequest{
		ClientName: "A. Janssen",
		Date:       anchorMonday,
		StartTime:  "10:00",
		EndTime:    "11:00",
		Location:   "room1",
	})
	require.NoError(t, err)
	_, err = service.CreateAbsence(ctx, therapistID, &models.AbsenceCreateRequest{
		StartDate: "2025-09-03",
		AllDay:    true,
	})
	require.NoError(t, err)

	projection, err := service.CalendarEvents(ctx, therapistID, anchorMonday, "2025-09-07")
	require.NoError(t, err)
	require.Len(t, projection.Events, 3)
	assert.Equal(t, schedule.EventAvailability, projection.Events[0].Kind)
	assert.Equal(t, schedule.EventAppointment, projection.Events[1].Kind)
	assert.Equal(t, schedule.EventAbsence, projection.Events[2].Kind)

	_, err = service.CalendarEvents(ctx, therapistID, "bad", "2025-09-07")
	assert.ErrorIs(t, err, schedule.ErrDateInvalid)
}

func TestService_Occupancy(t *testing.T) {
	service, _ := newTestService(nil)
	ctx := context.Background()

	_, err := service.CreateSlot(ctx, therapistID, &models.SlotCreateRequest{
		Date:      anchorMonday,
		StartTime: "09:00",
		EndTime:   "17:00",
	})
	require.NoError(t, err)
	_, err = service.CreateAppointment(ctx, therapistID, &models.AppointmentCreateRequest{
		ClientName: "A. Janssen",
		Date:       anchorMonday,
		StartTime:  "10:00",
		EndTime:    "11:00",
		Location:   "room1",
	})
	require.NoError(t, err)

	week, err := service.Occupancy(ctx, therapistID, anchorMonday)
	require.NoError(t, err)
	assert.Equal(t, 8.0, week.Days[0].AvailableHours)
	assert.Equal(t, 1.0, week.Days[0].BookedHours)
	assert.Equal(t, 11, week.AverageOccupancyPercent)
}

func TestService_DeleteSlot_VerifiesOwnership(t *testing.T) {
	service, _ := newTestService(nil)
	ctx := context.Background()

	created, err := service.CreateSlot(ctx, therapistID, &models.SlotCreateRequest{
		Date: anchorMonday,
	})
	require.NoError(t, err)
	slotID := created.Items[0].ID

	err = service.DeleteSlot(ctx, "usr_other", slotID)
	assert.ErrorIs(t, err, schedule.ErrSlotNotFound)

	require.NoError(t, service.DeleteSlot(ctx, therapistID, slotID))
	_, err = service.GetSlot(ctx, therapistID, slotID)
	assert.ErrorIs(t, err, schedule.ErrSlotNotFound)
}

func TestService_Absences(t *testing.T) {
	service, _ := newTestService(nil)
	ctx := context.Background()

	created, err := service.CreateAbsence(ctx, therapistID, &models.AbsenceCreateRequest{
		StartDate: "2025-09-10",
		AllDay:    true,
		Reason:    "holiday",
	})
	require.NoError(t, err)
	// Single-day absence: end date defaults to the start date.
	assert.Equal(t, "2025-09-10", created.EndDate)

	_, err = service.CreateAbsence(ctx, therapistID, &models.AbsenceCreateRequest{
		StartDate: "2025-09-12",
		EndDate:   "2025-09-11",
		AllDay:    true,
	})
	var validationErr *schedule.ValidationError
	require.ErrorAs(t, err, &validationErr)

	list, err := service.ListAbsences(ctx, therapistID, schedule.DateWindow{})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)

	require.NoError(t, service.DeleteAbsence(ctx, therapistID, created.ID))
	list, err = service.ListAbsences(ctx, therapistID, schedule.DateWindow{})
	require.NoError(t, err)
	assert.Empty(t, list.Items)
}
