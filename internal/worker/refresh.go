package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/featureflags"
	"github.com/clinicdesk/clinicdesk/internal/schedule"
)

// RefreshJob computes and stores weekly occupancy reports.
type RefreshJob struct {
	config   RefreshConfig
	logger   zerolog.Logger
	schedule *schedule.Service
	reports  schedule.ReportRepository
	flags    *featureflags.Service // optional

	// Metrics
	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalRefreshes  int64
	SuccessfulWeeks int64
	FailedWeeks     int64
	SkippedRuns     int64

	// Timings
	LastRefreshAt       time.Time
	LastRefreshDuration time.Duration
	TotalDuration       time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config          RefreshConfig
	Logger          zerolog.Logger
	ScheduleService *schedule.Service
	Reports         schedule.ReportRepository
	Flags           *featureflags.Service
}

// NewRefreshJob creates a new occupancy refresh job processor.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	config := cfg.Config
	if config.WeeksAhead <= 0 {
		config.WeeksAhead = DefaultRefreshConfig().WeeksAhead
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultRefreshConfig().Concurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultRefreshConfig().Timeout
	}

	return &RefreshJob{
		config:   config,
		logger:   cfg.Logger,
		schedule: cfg.ScheduleService,
		reports:  cfg.Reports,
		flags:    cfg.Flags,
		metrics:  &RefreshMetrics{},
	}
}

// RefreshResult contains the result of a refresh operation.
type RefreshResult struct {
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	TotalWeeks int
	Successful int
	Failed     int
	Skipped    bool
	Errors     []RefreshError
}

// RefreshError represents an error refreshing one week.
type RefreshError struct {
	WeekStart string
	Error     string
}

// Run refreshes occupancy reports for a therapist, covering the requested
// week and the configured number of weeks after it. Per-week failures never
// abort the remaining weeks.
func (j *RefreshJob) Run(ctx context.Context, therapistID, weekStart string) *RefreshResult {
	startTime := time.Now()
	result := &RefreshResult{StartTime: startTime}

	if j.flags != nil && j.flags.IsOccupancyRefreshDisabled(ctx) {
		j.logger.Info().
			Str("therapist_id", therapistID).
			Msg("occupancy refresh disabled by feature flag, skipping")
		result.Skipped = true
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(startTime)
		j.updateMetrics(result)
		return result
	}

	weeks, err := weekStarts(weekStart, j.config.WeeksAhead)
	if err != nil {
		result.Failed = 1
		result.Errors = append(result.Errors, RefreshError{WeekStart: weekStart, Error: err.Error()})
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(startTime)
		j.updateMetrics(result)
		return result
	}
	result.TotalWeeks = len(weeks)

	j.logger.Info().
		Str("therapist_id", therapistID).
		Str("week_start", weekStart).
		Int("weeks", len(weeks)).
		Int("concurrency", j.config.Concurrency).
		Msg("starting occupancy refresh job")

	// Create work channels
	weeksChan := make(chan string, len(weeks))
	resultsChan := make(chan weekResult, len(weeks))

	// Start workers
	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.refreshWorker(ctx, therapistID, weeksChan, resultsChan)
		}()
	}

	// Send weeks to workers
	for _, week := range weeks {
		weeksChan <- week
	}
	close(weeksChan)

	// Wait for workers to complete
	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	// Collect results
	for wr := range resultsChan {
		if wr.err == nil {
			result.Successful++
		} else {
			result.Failed++
			result.Errors = append(result.Errors, RefreshError{
				WeekStart: wr.weekStart,
				Error:     wr.err.Error(),
			})
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("occupancy refresh job completed")

	return result
}

type weekResult struct {
	weekStart string
	err       error
}

func (j *RefreshJob) refreshWorker(ctx context.Context, therapistID string, weeks <-chan string, results chan<- weekResult) {
	for week := range weeks {
		select {
		case <-ctx.Done():
			return
		default:
			results <- weekResult{weekStart: week, err: j.refreshWeek(ctx, therapistID, week)}
		}
	}
}

// refreshWeek aggregates one week and stores the report row. The aggregator
// skips unparseable entities itself, so a messy calendar degrades the report
// instead of failing the job.
func (j *RefreshJob) refreshWeek(ctx context.Context, therapistID, weekStart string) error {
	weekCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	week, err := j.schedule.Occupancy(weekCtx, therapistID, weekStart)
	if err != nil {
		return err
	}

	return j.reports.SaveReport(weekCtx, &schedule.OccupancyReport{
		ID:          "rpt_" + uuid.New().String()[:22],
		TherapistID: therapistID,
		WeekStart:   week.WeekStart,
		Week:        week,
		GeneratedAt: time.Now(),
	})
}

// HealthCheck verifies the report store is reachable.
func (j *RefreshJob) HealthCheck(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	_, err := j.reports.GetReport(checkCtx, "health-check", "1970-01-05")
	if err != nil && err != schedule.ErrReportNotFound {
		return err
	}
	return nil
}

// weekStarts returns anchor and the starts of the count-1 following weeks.
func weekStarts(anchor string, count int) ([]string, error) {
	start, err := schedule.ParseDate(anchor)
	if err != nil {
		return nil, err
	}

	weeks := make([]string, 0, count)
	for i := 0; i < count; i++ {
		weeks = append(weeks, start.AddDate(0, 0, 7*i).Format(schedule.DateLayout))
	}
	return weeks, nil
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRefreshes++
	j.metrics.SuccessfulWeeks += int64(result.Successful)
	j.metrics.FailedWeeks += int64(result.Failed)
	if result.Skipped {
		j.metrics.SkippedRuns++
	}
	j.metrics.LastRefreshAt = result.EndTime
	j.metrics.LastRefreshDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRefreshes:      j.metrics.TotalRefreshes,
		SuccessfulWeeks:     j.metrics.SuccessfulWeeks,
		FailedWeeks:         j.metrics.FailedWeeks,
		SkippedRuns:         j.metrics.SkippedRuns,
		LastRefreshAt:       j.metrics.LastRefreshAt,
		LastRefreshDuration: j.metrics.LastRefreshDuration,
		TotalDuration:       j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_refreshes":       m.TotalRefreshes,
		"successful_weeks":      m.SuccessfulWeeks,
		"failed_weeks":          m.FailedWeeks,
		"skipped_runs":          m.SkippedRuns,
		"last_refresh_at":       m.LastRefreshAt,
		"last_refresh_duration": m.LastRefreshDuration.String(),
		"total_duration":        m.TotalDuration.String(),
	}
}
