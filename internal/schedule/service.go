package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medagenda/clinic-scheduling/internal/metrics"
	redisclient "github.com/medagenda/clinic-scheduling/internal/redis"
	"github.com/medagenda/clinic-scheduling/internal/timeslot"
)

const (
	EventAppointmentBooked = "APPOINTMENT_BOOKED"
	EventStatusChanged     = "APPOINTMENT_STATUS_CHANGED"
)

// Service owns the availability computation and the booking state
// machine. Slot generation is pure and side-effect free; only
// ReserveSlot and TransitionStatus write, and both re-validate at
// commit time.
type Service struct {
	repo    Repository
	locker  redisclient.Locker
	log     *zap.Logger
	metrics *metrics.Collector
}

func NewService(repo Repository, locker redisclient.Locker, log *zap.Logger, collector *metrics.Collector) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:    repo,
		locker:  locker,
		log:     log,
		metrics: collector,
	}
}

// ---- Availability windows ----

// WindowCommand carries window input as it arrives on the wire.
// Validation happens here, before any computation, so malformed input
// never reaches the repository.
type WindowCommand struct {
	DoctorID        uuid.UUID
	Date            string // YYYY-MM-DD
	StartTime       string // HH:MM
	EndTime         string // HH:MM
	SlotDurationMin int
	IsActive        bool
}

func (s *Service) validateWindow(cmd WindowCommand) (*AvailabilityWindow, error) {
	date, err := timeslot.ParseDate(cmd.Date)
	if err != nil {
		return nil, invalidField("date", err.Error())
	}
	start, err := timeslot.ParseClock(cmd.StartTime)
	if err != nil {
		return nil, invalidField("startTime", err.Error())
	}
	end, err := timeslot.ParseClock(cmd.EndTime)
	if err != nil {
		return nil, invalidField("endTime", err.Error())
	}
	if start >= end {
		return nil, invalidField("startTime", "must be before endTime")
	}
	if cmd.SlotDurationMin < timeslot.MinSlotDuration {
		return nil, invalidField("slotDuration", fmt.Sprintf("must be at least %d minutes", timeslot.MinSlotDuration))
	}
	return &AvailabilityWindow{
		DoctorID:        cmd.DoctorID,
		Date:            date,
		StartMin:        start,
		EndMin:          end,
		SlotDurationMin: cmd.SlotDurationMin,
		IsActive:        cmd.IsActive,
	}, nil
}

// CreateWindow validates and stores a new availability window.
// Overlap with existing windows is tolerated on purpose: duplicate
// slot candidates are removed at generation time instead.
func (s *Service) CreateWindow(ctx context.Context, cmd WindowCommand) (*AvailabilityWindow, error) {
	w, err := s.validateWindow(cmd)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetDoctorByID(ctx, cmd.DoctorID); err != nil {
		return nil, err
	}
	return s.repo.CreateWindow(ctx, w)
}

func (s *Service) UpdateWindow(ctx context.Context, id uuid.UUID, cmd WindowCommand) (*AvailabilityWindow, error) {
	w, err := s.validateWindow(cmd)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.GetWindowByID(ctx, id)
	if err != nil {
		return nil, err
	}
	w.ID = existing.ID
	w.DoctorID = existing.DoctorID
	return s.repo.UpdateWindow(ctx, w)
}

func (s *Service) DeleteWindow(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteWindow(ctx, id)
}

// DoctorWindows lists a doctor's windows, optionally narrowed to one date.
func (s *Service) DoctorWindows(ctx context.Context, doctorID uuid.UUID, date string) ([]AvailabilityWindow, error) {
	if date != "" {
		var err error
		if date, err = timeslot.ParseDate(date); err != nil {
			return nil, invalidField("date", err.Error())
		}
	}
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.repo.ListWindowsByDoctor(ctx, doctorID, date)
}

// ---- Slot computation ----

// AvailableSlots computes the free bookable slots for a doctor and
// date: active windows → slot grid per window → dedupe exact pairs →
// drop anything overlapping the occupied set → ascending order.
// No windows, or everything booked, is an empty result, not an error.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date string) ([]timeslot.Slot, error) {
	date, err := timeslot.ParseDate(date)
	if err != nil {
		return nil, invalidField("date", err.Error())
	}
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}

	windows, err := s.repo.ListWindowsByDoctor(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("load windows: %w", err)
	}
	occupied, err := s.repo.ListOccupiedSlots(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("load occupied slots: %w", err)
	}

	return freeSlots(windows, occupied), nil
}

// generateGrid builds the deduplicated candidate grid from the active
// windows only. Past dates are not filtered here: hiding them is a
// caller policy, not an engine invariant.
func generateGrid(windows []AvailabilityWindow) []timeslot.Slot {
	var grid []timeslot.Slot
	for _, w := range windows {
		if !w.IsActive {
			continue
		}
		grid = append(grid, timeslot.Generate(w.StartMin, w.EndMin, w.SlotDurationMin)...)
	}
	return timeslot.Dedupe(grid)
}

func freeSlots(windows []AvailabilityWindow, occupied []timeslot.Slot) []timeslot.Slot {
	free := timeslot.Subtract(generateGrid(windows), occupied)
	timeslot.SortAscending(free)
	return free
}

// ---- Booking ----

type ReserveSlotCommand struct {
	DoctorID    uuid.UUID
	PatientID   uuid.UUID
	Date        string // YYYY-MM-DD
	StartTime   string // HH:MM
	EndTime     string // HH:MM
	SpecialtyID *uuid.UUID
	Reason      *string
}

// ReserveSlot books a slot for a patient. The client-selected slot is
// never trusted: the grid is regenerated server-side and membership
// checked, then the occupied set is re-read inside the per-slot lock
// before the insert. The partial unique index backs all of this up at
// the persistence layer, so two racing processes cannot both commit.
func (s *Service) ReserveSlot(ctx context.Context, cmd ReserveSlotCommand) (*Appointment, error) {
	appt, err := s.reserveSlot(ctx, cmd)
	s.countBooking(err)
	return appt, err
}

func (s *Service) reserveSlot(ctx context.Context, cmd ReserveSlotCommand) (*Appointment, error) {
	date, err := timeslot.ParseDate(cmd.Date)
	if err != nil {
		return nil, invalidField("date", err.Error())
	}
	start, err := timeslot.ParseClock(cmd.StartTime)
	if err != nil {
		return nil, invalidField("startTime", err.Error())
	}
	end, err := timeslot.ParseClock(cmd.EndTime)
	if err != nil {
		return nil, invalidField("endTime", err.Error())
	}
	requested := timeslot.Slot{Start: start, End: end}

	if _, err := s.repo.GetDoctorByID(ctx, cmd.DoctorID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetPatientByID(ctx, cmd.PatientID); err != nil {
		return nil, err
	}

	windows, err := s.repo.ListWindowsByDoctor(ctx, cmd.DoctorID, date)
	if err != nil {
		return nil, fmt.Errorf("load windows: %w", err)
	}
	if !timeslot.Contains(generateGrid(windows), requested) {
		return nil, ErrInvalidSlot
	}

	var created *Appointment
	lockKey := redisclient.SlotLockKey(cmd.DoctorID, date, requested.Start)

	err = s.locker.WithSlotLock(ctx, lockKey, func(lockCtx context.Context) error {
		// Re-read the occupied set inside the critical section; the
		// availability the client saw may be stale by now.
		occupied, err := s.repo.ListOccupiedSlots(lockCtx, cmd.DoctorID, date)
		if err != nil {
			return fmt.Errorf("recheck occupied slots: %w", err)
		}
		if timeslot.OverlapsAny(requested, occupied) {
			return ErrSlotConflict
		}

		appt, err := s.repo.CreateAppointment(lockCtx, &Appointment{
			DoctorID:    cmd.DoctorID,
			PatientID:   cmd.PatientID,
			Date:        date,
			StartMin:    requested.Start,
			EndMin:      requested.End,
			SpecialtyID: cmd.SpecialtyID,
			Reason:      cmd.Reason,
		})
		if err != nil {
			return err
		}
		created = appt

		s.logEvent(lockCtx, appt.ID, EventAppointmentBooked, map[string]any{
			"doctor":    cmd.DoctorID.String(),
			"patient":   cmd.PatientID.String(),
			"date":      date,
			"startTime": timeslot.FormatClock(requested.Start),
			"endTime":   timeslot.FormatClock(requested.End),
		})
		return nil
	})

	if err != nil {
		// Another request holds the lock for this exact slot; from the
		// caller's point of view that is the same routine conflict.
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotConflict
		}
		return nil, err
	}

	s.log.Info("slot reserved",
		zap.String("appointment_id", created.ID.String()),
		zap.String("doctor_id", cmd.DoctorID.String()),
		zap.String("date", date),
		zap.String("slot", requested.String()),
	)
	return created, nil
}

// ---- Status transitions ----

// TransitionStatus applies the state machine. Precedence: a pair that
// is unreachable for every role fails with ErrInvalidTransition; the
// role gate only applies to otherwise state-legal pairs. The write is
// conditioned on the status read here, so a concurrent transition on
// the same appointment surfaces as ErrInvalidTransition and the caller
// re-fetches.
func (s *Service) TransitionStatus(ctx context.Context, id uuid.UUID, target Status, actor Role) (*Appointment, error) {
	if !target.Valid() {
		return nil, invalidField("status", fmt.Sprintf("unknown status %q", target))
	}
	if !actor.Valid() {
		return nil, invalidField("role", fmt.Sprintf("unknown role %q", actor))
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !CanTransition(appt.Status, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, target)
	}
	if !RoleAllowed(appt.Status, target, actor) {
		return nil, fmt.Errorf("%w: %s may not set %s", ErrForbidden, actor, target)
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, appt.Status, target)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Optimistic check lost: either the row is gone or its
			// status changed between read and write.
			if _, getErr := s.repo.GetAppointmentByID(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, fmt.Errorf("%w: status changed concurrently", ErrInvalidTransition)
		}
		return nil, fmt.Errorf("update status: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventStatusChanged, map[string]any{
		"from": string(appt.Status),
		"to":   string(target),
		"by":   string(actor),
	})
	if s.metrics != nil {
		s.metrics.TransitionsTotal.WithLabelValues(string(target)).Inc()
	}
	s.log.Info("appointment status changed",
		zap.String("appointment_id", id.String()),
		zap.String("from", string(appt.Status)),
		zap.String("to", string(target)),
		zap.String("role", string(actor)),
	)
	return updated, nil
}

// ---- Reads ----

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointmentByID(ctx, id)
}

func (s *Service) ListAppointments(ctx context.Context, q ListAppointmentsQuery) ([]Appointment, error) {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Date != nil {
		date, err := timeslot.ParseDate(*q.Date)
		if err != nil {
			return nil, invalidField("date", err.Error())
		}
		q.Date = &date
	}
	if q.Status != nil && !q.Status.Valid() {
		return nil, invalidField("status", fmt.Sprintf("unknown status %q", *q.Status))
	}
	return s.repo.ListAppointments(ctx, q)
}

// ---- Internals ----

func (s *Service) countBooking(err error) {
	if s.metrics == nil {
		return
	}
	outcome := metrics.OutcomeBooked
	switch {
	case err == nil:
	case errors.Is(err, ErrSlotConflict):
		outcome = metrics.OutcomeConflict
	case errors.Is(err, ErrInvalidSlot):
		outcome = metrics.OutcomeInvalidSlot
	default:
		outcome = metrics.OutcomeError
	}
	s.metrics.BookingsTotal.WithLabelValues(outcome).Inc()
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	apptID := appointmentID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warn("insert event log",
			zap.String("event", eventType),
			zap.String("appointment_id", appointmentID.String()),
			zap.Error(err),
		)
	}
}
