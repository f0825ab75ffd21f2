package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrReportNotFound is returned when an occupancy report does not exist.
var ErrReportNotFound = errors.New("occupancy report not found")

// OccupancyReport is a persisted weekly occupancy analysis, produced by the
// background refresh worker so dashboards read a precomputed row instead of
// aggregating on every request.
type OccupancyReport struct {
	ID          string
	TherapistID string
	WeekStart   string
	Week        *WeekOccupancy
	GeneratedAt time.Time
}

// ReportRepository stores weekly occupancy reports.
type ReportRepository interface {
	// SaveReport inserts or replaces the report for its therapist/week pair.
	SaveReport(ctx context.Context, report *OccupancyReport) error

	// GetReport retrieves the report for a therapist and week start date.
	GetReport(ctx context.Context, therapistID, weekStart string) (*OccupancyReport, error)
}

// InMemoryReportRepository is an in-memory ReportRepository for tests and
// local development.
type InMemoryReportRepository struct {
	mu      sync.RWMutex
	reports map[string]*OccupancyReport
}

// NewInMemoryReportRepository creates an empty in-memory report repository.
func NewInMemoryReportRepository() *InMemoryReportRepository {
	return &InMemoryReportRepository{
		reports: make(map[string]*OccupancyReport),
	}
}

// SaveReport inserts or replaces the report for its therapist/week pair.
func (r *InMemoryReportRepository) SaveReport(_ context.Context, report *OccupancyReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *report
	r.reports[reportKey(report.TherapistID, report.WeekStart)] = &copied
	return nil
}

// GetReport retrieves the report for a therapist and week start date.
func (r *InMemoryReportRepository) GetReport(_ context.Context, therapistID, weekStart string) (*OccupancyReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	report, ok := r.reports[reportKey(therapistID, weekStart)]
	if !ok {
		return nil, ErrReportNotFound
	}
	copied := *report
	return &copied, nil
}

func reportKey(therapistID, weekStart string) string {
	return therapistID + "/" + weekStart
}

// PostgresReportRepository is a PostgreSQL-backed ReportRepository.
type PostgresReportRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresReportRepository creates a new PostgreSQL report repository.
func NewPostgresReportRepository(pool *pgxpool.Pool) *PostgresReportRepository {
	return &PostgresReportRepository{pool: pool}
}

// SaveReport upserts the report keyed on therapist and week start.
func (r *PostgresReportRepository) SaveReport(ctx context.Context, report *OccupancyReport) error {
	payload, err := json.Marshal(report.Week)
	if err != nil {
		return fmt.Errorf("encoding occupancy report: %w", err)
	}

	query := `
		INSERT INTO occupancy_reports (id, therapist_id, week_start, report, generated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (therapist_id, week_start)
		DO UPDATE SET report = EXCLUDED.report, generated_at = EXCLUDED.generated_at
	`
	_, err = r.pool.Exec(ctx, query,
		report.ID, report.TherapistID, report.WeekStart, payload, report.GeneratedAt)
	if err != nil {
		return fmt.Errorf("saving occupancy report: %w", err)
	}
	return nil
}

// GetReport retrieves the report for a therapist and week start date.
func (r *PostgresReportRepository) GetReport(ctx context.Context, therapistID, weekStart string) (*OccupancyReport, error) {
	query := `
		SELECT id, therapist_id, week_start, report, generated_at
		FROM occupancy_reports
		WHERE therapist_id = $1 AND week_start = $2
	`

	var report OccupancyReport
	var payload []byte
	err := r.pool.QueryRow(ctx, query, therapistID, weekStart).Scan(
		&report.ID, &report.TherapistID, &report.WeekStart, &payload, &report.GeneratedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("loading occupancy report: %w", err)
	}

	week := &WeekOccupancy{}
	if err := json.Unmarshal(payload, week); err != nil {
		return nil, fmt.Errorf("decoding occupancy report: %w", err)
	}
	report.Week = week
	return &report, nil
}

var (
	_ ReportRepository = (*InMemoryReportRepository)(nil)
	_ ReportRepository = (*PostgresReportRepository)(nil)
)
