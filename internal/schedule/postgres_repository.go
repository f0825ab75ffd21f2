package schedule

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL scheduling repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const slotColumns = `
	id, therapist_id, date, start_time, end_time, duration_minutes,
	location, color, title, created_at, updated_at
`

// GetSlot retrieves a slot for a therapist.
func (r *PostgresRepository) GetSlot(ctx context.Context, therapistID, slotID string) (*Availability, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM availability_slots
		WHERE id = $1 AND therapist_id = $2
	`

	var slot Availability
	err := r.pool.QueryRow(ctx, query, slotID, therapistID).Scan(
		&slot.ID,
		&slot.TherapistID,
		&slot.Date,
		&slot.StartTime,
		&slot.EndTime,
		&slot.DurationMinutes,
		&slot.Location,
		&slot.Color,
		&slot.Title,
		&slot.CreatedAt,
		&slot.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	return &slot, nil
}

// ListSlots retrieves a therapist's slots within the window.
func (r *PostgresRepository) ListSlots(ctx context.Context, therapistID string, window DateWindow) ([]*Availability, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM availability_slots
		WHERE therapist_id = $1
			AND ($2 = '' OR date >= $2)
			AND ($3 = '' OR date <= $3)
		ORDER BY date, start_time
	`

	rows, err := r.pool.Query(ctx, query, therapistID, window.From, window.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []*Availability
	for rows.Next() {
		var slot Availability
		err := rows.Scan(
			&slot.ID,
			&slot.TherapistID,
			&slot.Date,
			&slot.StartTime,
			&slot.EndTime,
			&slot.DurationMinutes,
			&slot.Location,
			&slot.Color,
			&slot.Title,
			&slot.CreatedAt,
			&slot.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		slots = append(slots, &slot)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return slots, nil
}

// CreateSlots persists a batch of slots in a single transaction so a
// partially-saved recurring series can never be observed.
func (r *PostgresRepository) CreateSlots(ctx context.Context, slots []*Availability) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO availability_slots (
			id, therapist_id, date, start_time, end_time, duration_minutes,
			location, color, title, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	for _, slot := range slots {
		_, err := tx.Exec(ctx, query,
			slot.ID,
			slot.TherapistID,
			slot.Date,
			slot.StartTime,
			slot.EndTime,
			slot.DurationMinutes,
			slot.Location,
			slot.Color,
			slot.Title,
			slot.CreatedAt,
			slot.UpdatedAt,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// UpdateSlot updates an existing slot.
func (r *PostgresRepository) UpdateSlot(ctx context.Context, slot *Availability) error {
	query := `
		UPDATE availability_slots SET
			date = $2,
			start_time = $3,
			end_time = $4,
			duration_minutes = $5,
			location = $6,
			color = $7,
			title = $8,
			updated_at = $9
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		slot.ID,
		slot.Date,
		slot.StartTime,
		slot.EndTime,
		slot.DurationMinutes,
		slot.Location,
		slot.Color,
		slot.Title,
		slot.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrSlotNotFound
	}

	return nil
}

// DeleteSlot deletes a slot by ID.
func (r *PostgresRepository) DeleteSlot(ctx context.Context, slotID string) error {
	query := `DELETE FROM availability_slots WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, slotID)
	return err
}

// ListAppointments retrieves a therapist's appointments within the window.
func (r *PostgresRepository) ListAppointments(ctx context.Context, therapistID string, window DateWindow) ([]*Appointment, error) {
	query := `
		SELECT
			id, therapist_id, client_id, client_name, date, start_time,
			end_time, duration_minutes, location, status, created_at, updated_at
		FROM appointments
		WHERE therapist_id = $1
			AND ($2 = '' OR date >= $2)
			AND ($3 = '' OR date <= $3)
		ORDER BY date, start_time
	`

	rows, err := r.pool.Query(ctx, query, therapistID, window.From, window.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appointments []*Appointment
	for rows.Next() {
		var appt Appointment
		err := rows.Scan(
			&appt.ID,
			&appt.TherapistID,
			&appt.ClientID,
			&appt.ClientName,
			&appt.Date,
			&appt.StartTime,
			&appt.EndTime,
			&appt.DurationMinutes,
			&appt.Location,
			&appt.Status,
			&appt.CreatedAt,
			&appt.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, &appt)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return appointments, nil
}

// CreateAppointment persists a new appointment.
func (r *PostgresRepository) CreateAppointment(ctx context.Context, appointment *Appointment) error {
	query := `
		INSERT INTO appointments (
			id, therapist_id, client_id, client_name, date, start_time,
			end_time, duration_minutes, location, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.pool.Exec(ctx, query,
		appointment.ID,
		appointment.TherapistID,
		appointment.ClientID,
		appointment.ClientName,
		appointment.Date,
		appointment.StartTime,
		appointment.EndTime,
		appointment.DurationMinutes,
		appointment.Location,
		appointment.Status,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	return err
}

// GetAbsence retrieves an absence for a therapist.
func (r *PostgresRepository) GetAbsence(ctx context.Context, therapistID, absenceID string) (*Absence, error) {
	query := `
		SELECT
			id, therapist_id, start_date, end_date, start_time, end_time,
			all_day, reason, created_at, updated_at
		FROM absences
		WHERE id = $1 AND therapist_id = $2
	`

	var absence Absence
	err := r.pool.QueryRow(ctx, query, absenceID, therapistID).Scan(
		&absence.ID,
		&absence.TherapistID,
		&absence.StartDate,
		&absence.EndDate,
		&absence.StartTime,
		&absence.EndTime,
		&absence.AllDay,
		&absence.Reason,
		&absence.CreatedAt,
		&absence.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAbsenceNotFound
		}
		return nil, err
	}

	return &absence, nil
}

// ListAbsences retrieves a therapist's absences overlapping the window.
func (r *PostgresRepository) ListAbsences(ctx context.Context, therapistID string, window DateWindow) ([]*Absence, error) {
	query := `
		SELECT
			id, therapist_id, start_date, end_date, start_time, end_time,
			all_day, reason, created_at, updated_at
		FROM absences
		WHERE therapist_id = $1
			AND ($2 = '' OR end_date >= $2)
			AND ($3 = '' OR start_date <= $3)
		ORDER BY start_date
	`

	rows, err := r.pool.Query(ctx, query, therapistID, window.From, window.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var absences []*Absence
	for rows.Next() {
		var absence Absence
		err := rows.Scan(
			&absence.ID,
			&absence.TherapistID,
			&absence.StartDate,
			&absence.EndDate,
			&absence.StartTime,
			&absence.EndTime,
			&absence.AllDay,
			&absence.Reason,
			&absence.CreatedAt,
			&absence.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		absences = append(absences, &absence)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return absences, nil
}

// CreateAbsence persists a new absence.
func (r *PostgresRepository) CreateAbsence(ctx context.Context, absence *Absence) error {
	query := `
		INSERT INTO absences (
			id, therapist_id, start_date, end_date, start_time, end_time,
			all_day, reason, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		absence.ID,
		absence.TherapistID,
		absence.StartDate,
		absence.EndDate,
		absence.StartTime,
		absence.EndTime,
		absence.AllDay,
		absence.Reason,
		absence.CreatedAt,
		absence.UpdatedAt,
	)
	return err
}

// DeleteAbsence deletes an absence by ID.
func (r *PostgresRepository) DeleteAbsence(ctx context.Context, absenceID string) error {
	query := `DELETE FROM absences WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, absenceID)
	return err
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
