package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/joseantoniobg/financial-platform-scheduling/libs/db"
	"github.com/joseantoniobg/financial-platform-scheduling/services/scheduling-service/internal/engine"
	"github.com/joseantoniobg/financial-platform-scheduling/services/scheduling-service/internal/model"
)

// AppointmentRepository is the Postgres implementation of engine.Store.
//
// The overlap invariant is enforced twice: the engine pre-checks via
// FindOverlapping, and the appointments table carries an exclusion constraint
// on (consultant_id, tstzrange(start_time, end_time)) over non-cancelled rows
// so that two concurrent bookings cannot both commit. An exclusion violation
// (SQLSTATE 23P01) is surfaced as *engine.ConflictError.
type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

const appointmentColumns = `
	id::text, consultant_id::text, COALESCE(client_id::text, ''), reason_id::text,
	start_time, end_time, status, COALESCE(notes, ''), created_at, updated_at`

func (r *AppointmentRepository) GetByID(ctx context.Context, id string) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id::text = $1
	`, id)
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Appointment{}, engine.ErrNotFound
		}
		return model.Appointment{}, err
	}
	return appt, nil
}

func (r *AppointmentRepository) FindOverlapping(ctx context.Context, consultantID string, start, end time.Time, excludeID string) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE consultant_id::text = $1
			AND status <> 'cancelled'
			AND start_time < $3
			AND end_time > $2
			AND ($4 = '' OR id::text <> $4)
		ORDER BY start_time ASC
	`, consultantID, start, end, excludeID)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *AppointmentRepository) FindInRange(ctx context.Context, consultantID string, from, to time.Time) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE consultant_id::text = $1
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC
	`, consultantID, from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *AppointmentRepository) Create(ctx context.Context, appt *model.Appointment) error {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO appointments
			(id, consultant_id, client_id, reason_id, start_time, end_time, status, notes)
		VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, $7, NULLIF($8, ''))
		RETURNING created_at, updated_at
	`, appt.ID, appt.ConsultantID, appt.ClientID, appt.ReasonID,
		appt.Start, appt.End, string(appt.Status), appt.Notes,
	).Scan(&appt.CreatedAt, &appt.UpdatedAt)
	return mapWriteError(err, appt)
}

func (r *AppointmentRepository) Update(ctx context.Context, appt *model.Appointment) error {
	err := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET client_id = NULLIF($2, '')::uuid,
			reason_id = $3,
			start_time = $4,
			end_time = $5,
			status = $6,
			notes = NULLIF($7, ''),
			updated_at = now()
		WHERE id::text = $1
		RETURNING updated_at
	`, appt.ID, appt.ClientID, appt.ReasonID, appt.Start, appt.End,
		string(appt.Status), appt.Notes,
	).Scan(&appt.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return engine.ErrNotFound
	}
	return mapWriteError(err, appt)
}

func mapWriteError(err error, appt *model.Appointment) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23P01" {
		return &engine.ConflictError{ConsultantID: appt.ConsultantID, Start: appt.Start, End: appt.End}
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (model.Appointment, error) {
	var appt model.Appointment
	var status string
	err := row.Scan(
		&appt.ID,
		&appt.ConsultantID,
		&appt.ClientID,
		&appt.ReasonID,
		&appt.Start,
		&appt.End,
		&status,
		&appt.Notes,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.Status = model.Status(status)
	return appt, nil
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}
