package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is idempotent so every binary can bootstrap a fresh database.
//
// The partial unique index on appointments is the booking correctness
// guarantee: at most one non-cancelled row may exist per
// (doctor, date, start, end) tuple, regardless of how many API
// processes race on the insert.
const schema = `
CREATE TABLE IF NOT EXISTS specialties (
	id         uuid PRIMARY KEY,
	name       text NOT NULL UNIQUE,
	created_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS doctors (
	id           uuid PRIMARY KEY,
	name         text NOT NULL,
	specialty_id uuid REFERENCES specialties(id) ON DELETE SET NULL,
	created_at   timestamptz NOT NULL DEFAULT now(),
	updated_at   timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS patients (
	id         uuid PRIMARY KEY,
	name       text NOT NULL,
	email      text,
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS availability_windows (
	id                uuid PRIMARY KEY,
	doctor_id         uuid NOT NULL REFERENCES doctors(id) ON DELETE CASCADE,
	date              date NOT NULL,
	start_min         smallint NOT NULL,
	end_min           smallint NOT NULL,
	slot_duration_min smallint NOT NULL,
	is_active         boolean NOT NULL DEFAULT true,
	created_at        timestamptz NOT NULL DEFAULT now(),
	updated_at        timestamptz NOT NULL DEFAULT now(),
	CHECK (start_min >= 0 AND end_min <= 1440 AND start_min < end_min),
	CHECK (slot_duration_min >= 5)
);

CREATE INDEX IF NOT EXISTS idx_windows_doctor_date
	ON availability_windows (doctor_id, date);

CREATE TABLE IF NOT EXISTS appointments (
	id           uuid PRIMARY KEY,
	doctor_id    uuid NOT NULL REFERENCES doctors(id),
	patient_id   uuid NOT NULL REFERENCES patients(id),
	date         date NOT NULL,
	start_min    smallint NOT NULL,
	end_min      smallint NOT NULL,
	status       varchar(20) NOT NULL DEFAULT 'pendiente',
	specialty_id uuid REFERENCES specialties(id),
	reason       text,
	created_at   timestamptz NOT NULL DEFAULT now(),
	updated_at   timestamptz NOT NULL DEFAULT now(),
	CHECK (start_min >= 0 AND end_min <= 1440 AND start_min < end_min),
	CHECK (status IN ('pendiente', 'confirmada', 'finalizada', 'cancelada', 'no_show'))
);

CREATE UNIQUE INDEX IF NOT EXISTS uniq_booked_slot
	ON appointments (doctor_id, date, start_min, end_min)
	WHERE status <> 'cancelada';

CREATE INDEX IF NOT EXISTS idx_appointments_doctor_date
	ON appointments (doctor_id, date);

CREATE INDEX IF NOT EXISTS idx_appointments_patient
	ON appointments (patient_id);

CREATE TABLE IF NOT EXISTS event_logs (
	id             bigserial PRIMARY KEY,
	event_type     text NOT NULL,
	appointment_id uuid,
	payload        jsonb,
	created_at     timestamptz NOT NULL DEFAULT now()
);
`

// EnsureSchema applies the DDL above.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
