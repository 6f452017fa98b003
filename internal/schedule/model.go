package schedule

import (
	"time"

	"github.com/google/uuid"
)

// Status is the closed appointment status vocabulary. The wire values
// are the clinic's Spanish labels and must not be translated.
type Status string

const (
	StatusPendiente  Status = "pendiente"
	StatusConfirmada Status = "confirmada"
	StatusFinalizada Status = "finalizada"
	StatusCancelada  Status = "cancelada"
	StatusNoShow     Status = "no_show"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPendiente, StatusConfirmada, StatusFinalizada, StatusCancelada, StatusNoShow:
		return true
	}
	return false
}

// Terminal reports whether no further transition leaves s.
func (s Status) Terminal() bool {
	switch s {
	case StatusFinalizada, StatusCancelada, StatusNoShow:
		return true
	}
	return false
}

// Role identifies who is requesting a status transition.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

// transitions encodes the whole state machine as data. Adding a status
// is a one-entry edit here, nothing else. No transition targets
// pendiente; terminal states have no outgoing entries at all.
var transitions = map[Status]map[Status][]Role{
	StatusPendiente: {
		StatusConfirmada: {RoleDoctor, RoleAdmin},
		StatusCancelada:  {RolePatient, RoleDoctor, RoleAdmin},
	},
	StatusConfirmada: {
		StatusFinalizada: {RoleDoctor, RoleAdmin},
		StatusCancelada:  {RolePatient, RoleDoctor, RoleAdmin},
		StatusNoShow:     {RoleDoctor, RoleAdmin},
	},
}

// CanTransition reports whether from → to is reachable for any role.
func CanTransition(from, to Status) bool {
	_, ok := transitions[from][to]
	return ok
}

// RoleAllowed reports whether role may request a state-legal from → to.
// Callers must check CanTransition first: a state-illegal pair is
// InvalidTransition regardless of role.
func RoleAllowed(from, to Status, role Role) bool {
	for _, r := range transitions[from][to] {
		if r == role {
			return true
		}
	}
	return false
}

type Specialty struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

type Doctor struct {
	ID          uuid.UUID
	Name        string
	SpecialtyID *uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AvailabilityWindow is one contiguous block during which a doctor
// accepts appointments on a date. Times are minutes from midnight,
// same-day, StartMin < EndMin. Multiple windows per doctor/date are
// allowed and may overlap; duplicates are removed at generation time.
type AvailabilityWindow struct {
	ID              uuid.UUID
	DoctorID        uuid.UUID
	Date            string // YYYY-MM-DD
	StartMin        int
	EndMin          int
	SlotDurationMin int
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Appointment struct {
	ID          uuid.UUID
	DoctorID    uuid.UUID
	PatientID   uuid.UUID
	Date        string // YYYY-MM-DD
	StartMin    int
	EndMin      int
	Status      Status
	SpecialtyID *uuid.UUID
	Reason      *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
