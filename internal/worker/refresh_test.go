package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/clinicdesk/internal/api/models"
	"github.com/clinicdesk/clinicdesk/internal/featureflags"
	"github.com/clinicdesk/clinicdesk/internal/schedule"
	"github.com/clinicdesk/clinicdesk/internal/worker"
)

func newTestScheduleService(t *testing.T) (*schedule.Service, *schedule.InMemoryReportRepository) {
	t.Helper()

	svc := schedule.NewService(schedule.ServiceConfig{
		Repository: schedule.NewInMemoryRepository(),
		Logger:     zerolog.Nop(),
	})
	return svc, schedule.NewInMemoryReportRepository()
}

func newTestFlagService(t *testing.T) *featureflags.Service {
	t.Helper()

	return featureflags.NewService(featureflags.ServiceConfig{
		Repository: featureflags.NewInMemoryRepository(),
		Logger:     zerolog.Nop(),
	})
}

func TestDefaultRefreshConfig(t *testing.T) {
	cfg := worker.DefaultRefreshConfig()

	assert.Equal(t, 4, cfg.WeeksAhead)
	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}

func TestRefreshJob_Run_StoresReports(t *testing.T) {
	svc, reports := newTestScheduleService(t)
	ctx := context.Background()

	// Monday 2025-09-01: 8 available hours, 1 booked hour.
	_, err := svc.CreateSlot(ctx, "usr_therapist1", &models.SlotCreateRequest{
		Date:      "2025-09-01",
		StartTime: "09:00",
		EndTime:   "17:00",
	})
	require.NoError(t, err)

	_, err = svc.CreateAppointment(ctx, "usr_therapist1", &models.AppointmentCreateRequest{
		ClientName: "A. de Vries",
		Date:       "2025-09-01",
		StartTime:  "18:00",
		EndTime:    "19:00",
	})
	require.NoError(t, err)

	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{
			WeeksAhead:  2,
			Concurrency: 2,
			Timeout:     time.Second,
		},
		Logger:          zerolog.Nop(),
		ScheduleService: svc,
		Reports:         reports,
	})

	result := job.Run(ctx, "usr_therapist1", "2025-09-01")

	require.NotNil(t, result)
	assert.Equal(t, 2, result.TotalWeeks)
	assert.Equal(t, 2, result.Successful)
	assert.Equal(t, 0, result.Failed)
	assert.False(t, result.Skipped)
	assert.Greater(t, result.Duration, time.Duration(0))

	report, err := reports.GetReport(ctx, "usr_therapist1", "2025-09-01")
	require.NoError(t, err)
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, "usr_therapist1", report.TherapistID)
	require.NotNil(t, report.Week)
	assert.Equal(t, 8.0, report.Week.TotalAvailableHours)
	assert.Equal(t, 1.0, report.Week.TotalBookedHours)
	assert.Equal(t, 11, report.Week.AverageOccupancyPercent)
	assert.Equal(t, schedule.BandFree, report.Week.Band)

	// The following empty week stores a zeroed report.
	next, err := reports.GetReport(ctx, "usr_therapist1", "2025-09-08")
	require.NoError(t, err)
	assert.Equal(t, 0.0, next.Week.TotalAvailableHours)
	assert.Equal(t, 0, next.Week.AverageOccupancyPercent)
}

func TestRefreshJob_Run_InvalidWeekStart(t *testing.T) {
	svc, reports := newTestScheduleService(t)

	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:          worker.DefaultRefreshConfig(),
		Logger:          zerolog.Nop(),
		ScheduleService: svc,
		Reports:         reports,
	})

	result := job.Run(context.Background(), "usr_therapist1", "not-a-date")

	assert.Equal(t, 0, result.Successful)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "not-a-date", result.Errors[0].WeekStart)
}

func TestRefreshJob_Run_FlagDisabled(t *testing.T) {
	svc, reports := newTestScheduleService(t)
	flags := newTestFlagService(t)
	ctx := context.Background()

	err := flags.SetFlag(ctx, &featureflags.Flag{
		Key:   featureflags.FlagDisableOccupancyRefresh,
		Value: true,
	})
	require.NoError(t, err)

	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:          worker.DefaultRefreshConfig(),
		Logger:          zerolog.Nop(),
		ScheduleService: svc,
		Reports:         reports,
		Flags:           flags,
	})

	result := job.Run(ctx, "usr_therapist1", "2025-09-01")

	assert.True(t, result.Skipped)
	assert.Equal(t, 0, result.Successful)
	assert.Equal(t, 0, result.Failed)

	_, err = reports.GetReport(ctx, "usr_therapist1", "2025-09-01")
	assert.ErrorIs(t, err, schedule.ErrReportNotFound)
}

func TestRefreshJob_Run_ContextCancellation(t *testing.T) {
	svc, reports := newTestScheduleService(t)

	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{
			WeeksAhead:  50,
			Concurrency: 1,
			Timeout:     100 * time.Millisecond,
		},
		Logger:          zerolog.Nop(),
		ScheduleService: svc,
		Reports:         reports,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := job.Run(ctx, "usr_therapist1", "2025-09-01")

	// Should complete (even if not all weeks processed)
	assert.NotNil(t, result)
}

func TestRefreshJob_GetMetrics(t *testing.T) {
	svc, reports := newTestScheduleService(t)

	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{
			WeeksAhead:  1,
			Concurrency: 1,
			Timeout:     time.Second,
		},
		Logger:          zerolog.Nop(),
		ScheduleService: svc,
		Reports:         reports,
	})

	_ = job.Run(context.Background(), "usr_therapist1", "2025-09-01")

	metrics := job.GetMetrics()
	assert.Equal(t, int64(1), metrics.TotalRefreshes)
	assert.Equal(t, int64(1), metrics.SuccessfulWeeks)
	assert.Equal(t, int64(0), metrics.FailedWeeks)
	assert.NotZero(t, metrics.LastRefreshAt)
}

func TestRefreshJob_MetricsSnapshot(t *testing.T) {
	svc, reports := newTestScheduleService(t)

	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{
			WeeksAhead:  1,
			Concurrency: 1,
			Timeout:     time.Second,
		},
		Logger:          zerolog.Nop(),
		ScheduleService: svc,
		Reports:         reports,
	})

	_ = job.Run(context.Background(), "usr_therapist1", "2025-09-01")

	snapshot := job.MetricsSnapshot()

	assert.Contains(t, snapshot, "total_refreshes")
	assert.Contains(t, snapshot, "successful_weeks")
	assert.Contains(t, snapshot, "failed_weeks")
	assert.Contains(t, snapshot, "last_refresh_at")
	assert.Contains(t, snapshot, "last_refresh_duration")
}

func TestRefreshJob_HealthCheck(t *testing.T) {
	svc, reports := newTestScheduleService(t)

	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:          worker.DefaultRefreshConfig(),
		Logger:          zerolog.Nop(),
		ScheduleService: svc,
		Reports:         reports,
	})

	// A missing report is a healthy store, not a failure.
	assert.NoError(t, job.HealthCheck(context.Background()))
}

func TestNewRefreshJob_DefaultConfig(t *testing.T) {
	svc, reports := newTestScheduleService(t)

	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:          worker.RefreshConfig{}, // Empty
		Logger:          zerolog.Nop(),
		ScheduleService: svc,
		Reports:         reports,
	})

	metrics := job.GetMetrics()
	assert.Equal(t, int64(0), metrics.TotalRefreshes) // Not run yet
}
