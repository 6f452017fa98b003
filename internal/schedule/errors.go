package schedule

import (
	"errors"
	"fmt"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrWindowNotFound      = errors.New("availability window not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrInvalidSlot means the requested slot is not in the grid the
	// active windows currently generate: stale or tampered client input.
	ErrInvalidSlot = errors.New("slot does not match the doctor's availability")

	// ErrSlotConflict is the expected outcome when a concurrent request
	// won the slot first. Callers re-fetch availability and retry.
	ErrSlotConflict = errors.New("slot is no longer available")

	// ErrInvalidTransition covers both unreachable status pairs and the
	// optimistic-check failure when the status changed under us.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrForbidden means the transition is state-legal but the acting
	// role may not request it.
	ErrForbidden = errors.New("role not allowed to perform this transition")
)

// ValidationError rejects malformed input before any computation runs.
// It is a distinct kind so the boundary can map it to a 400 instead of
// the 409/422 family.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalidField(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
