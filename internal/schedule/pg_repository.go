package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medagenda/clinic-scheduling/internal/timeslot"
)

const uniqueViolation = "23505"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.SpecialtyID,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanWindow(row pgx.Row) (*AvailabilityWindow, error) {
	var w AvailabilityWindow
	err := row.Scan(
		&w.ID,
		&w.DoctorID,
		&w.Date,
		&w.StartMin,
		&w.EndMin,
		&w.SlotDurationMin,
		&w.IsActive,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWindowNotFound
		}
		return nil, err
	}
	return &w, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.Date,
		&a.StartMin,
		&a.EndMin,
		&a.Status,
		&a.SpecialtyID,
		&a.Reason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

const appointmentColumns = `
	id, doctor_id, patient_id, to_char(date, 'YYYY-MM-DD'),
	start_min, end_min, status, specialty_id, reason, created_at, updated_at`

const windowColumns = `
	id, doctor_id, to_char(date, 'YYYY-MM-DD'),
	start_min, end_min, slot_duration_min, is_active, created_at, updated_at`

// Interface methods

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty_id, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetWindowByID(ctx context.Context, id uuid.UUID) (*AvailabilityWindow, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+windowColumns+`
		FROM availability_windows
		WHERE id = $1
	`, id)
	return scanWindow(row)
}

func (r *PgRepository) ListWindowsByDoctor(ctx context.Context, doctorID uuid.UUID, date string) ([]AvailabilityWindow, error) {
	sql := `
		SELECT ` + windowColumns + `
		FROM availability_windows
		WHERE doctor_id = $1`
	args := []any{doctorID}
	if date != "" {
		sql += ` AND date = $2`
		args = append(args, date)
	}
	sql += ` ORDER BY date, start_min`

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AvailabilityWindow
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *w)
	}
	return result, rows.Err()
}

func (r *PgRepository) CreateWindow(ctx context.Context, w *AvailabilityWindow) (*AvailabilityWindow, error) {
	id := uuid.New()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO availability_windows
			(id, doctor_id, date, start_min, end_min, slot_duration_min, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING `+windowColumns+`
	`, id, w.DoctorID, w.Date, w.StartMin, w.EndMin, w.SlotDurationMin, w.IsActive)
	return scanWindow(row)
}

func (r *PgRepository) UpdateWindow(ctx context.Context, w *AvailabilityWindow) (*AvailabilityWindow, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE availability_windows
		SET date = $2,
		    start_min = $3,
		    end_min = $4,
		    slot_duration_min = $5,
		    is_active = $6,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+windowColumns+`
	`, w.ID, w.Date, w.StartMin, w.EndMin, w.SlotDurationMin, w.IsActive)
	return scanWindow(row)
}

func (r *PgRepository) DeleteWindow(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM availability_windows WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrWindowNotFound
	}
	return nil
}

func (r *PgRepository) ListOccupiedSlots(ctx context.Context, doctorID uuid.UUID, date string) ([]timeslot.Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_min, end_min
		FROM appointments
		WHERE doctor_id = $1
		  AND date = $2
		  AND status <> 'cancelada'
		ORDER BY start_min
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var occupied []timeslot.Slot
	for rows.Next() {
		var s timeslot.Slot
		if err := rows.Scan(&s.Start, &s.End); err != nil {
			return nil, err
		}
		occupied = append(occupied, s)
	}
	return occupied, rows.Err()
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	id := uuid.New()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments
			(id, doctor_id, patient_id, date, start_min, end_min, status, specialty_id, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'pendiente', $7, $8, now(), now())
		RETURNING `+appointmentColumns+`
	`, id, a.DoctorID, a.PatientID, a.Date, a.StartMin, a.EndMin, a.SpecialtyID, a.Reason)

	created, err := scanAppointment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrSlotConflict
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	return created, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, q ListAppointmentsQuery) ([]Appointment, error) {
	sql := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.DoctorID != nil {
		sql += ` AND doctor_id = ` + arg(*q.DoctorID)
	}
	if q.PatientID != nil {
		sql += ` AND patient_id = ` + arg(*q.PatientID)
	}
	if q.Date != nil {
		sql += ` AND date = ` + arg(*q.Date)
	}
	if q.Status != nil {
		sql += ` AND status = ` + arg(*q.Status)
	}
	sql += ` ORDER BY date, start_min LIMIT ` + arg(q.Limit) + ` OFFSET ` + arg(q.Offset)

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)
	return scanAppointment(row)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, now())
	`, ev.EventType, ev.AppointmentID, ev.Payload)
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}
