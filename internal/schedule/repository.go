package schedule

import (
	"context"

	"github.com/google/uuid"

	"github.com/medagenda/clinic-scheduling/internal/timeslot"
)

// ListAppointmentsQuery filters the appointment listing. Nil fields
// match everything; Date is a canonical YYYY-MM-DD string when set.
type ListAppointmentsQuery struct {
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	Date      *string
	Status    *Status
	Limit     int
	Offset    int
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	// Availability windows
	GetWindowByID(ctx context.Context, id uuid.UUID) (*AvailabilityWindow, error)
	ListWindowsByDoctor(ctx context.Context, doctorID uuid.UUID, date string) ([]AvailabilityWindow, error)
	CreateWindow(ctx context.Context, w *AvailabilityWindow) (*AvailabilityWindow, error)
	UpdateWindow(ctx context.Context, w *AvailabilityWindow) (*AvailabilityWindow, error)
	DeleteWindow(ctx context.Context, id uuid.UUID) error

	// ListOccupiedSlots returns the intervals held by non-cancelled
	// appointments for the doctor/date. This is the occupied set both
	// availability queries and the booking conflict re-check read.
	ListOccupiedSlots(ctx context.Context, doctorID uuid.UUID, date string) ([]timeslot.Slot, error)

	// CreateAppointment inserts the row in pendiente status. The
	// partial unique index on (doctor, date, start, end) over
	// non-cancelled rows is the final arbiter under concurrency; a
	// unique violation surfaces as ErrSlotConflict.
	CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointments(ctx context.Context, q ListAppointmentsQuery) ([]Appointment, error)

	// UpdateAppointmentStatus writes `to` only if the row still holds
	// `from`, in one statement. Zero rows updated surfaces as
	// ErrAppointmentNotFound; the caller decides whether that means a
	// missing row or a lost optimistic race.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
