package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medagenda/clinic-scheduling/internal/timeslot"
)

// ---- fakes ----

// fakeRepo is an in-memory Repository. CreateAppointment enforces the
// same uniqueness the partial index enforces in Postgres, so the
// concurrency tests exercise the real arbitration path.
type fakeRepo struct {
	mu           sync.Mutex
	doctors      map[uuid.UUID]*Doctor
	patients     map[uuid.UUID]*Patient
	windows      map[uuid.UUID]*AvailabilityWindow
	appointments map[uuid.UUID]*Appointment
	events       []EventLog
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		doctors:      make(map[uuid.UUID]*Doctor),
		patients:     make(map[uuid.UUID]*Patient),
		windows:      make(map[uuid.UUID]*AvailabilityWindow),
		appointments: make(map[uuid.UUID]*Appointment),
	}
}

func (r *fakeRepo) addDoctor() uuid.UUID {
	id := uuid.New()
	r.doctors[id] = &Doctor{ID: id, Name: "Dr. Test"}
	return id
}

func (r *fakeRepo) addPatient() uuid.UUID {
	id := uuid.New()
	r.patients[id] = &Patient{ID: id, Name: "Patient Test"}
	return id
}

func (r *fakeRepo) addWindow(doctorID uuid.UUID, date string, start, end, dur int, active bool) uuid.UUID {
	id := uuid.New()
	r.windows[id] = &AvailabilityWindow{
		ID: id, DoctorID: doctorID, Date: date,
		StartMin: start, EndMin: end, SlotDurationMin: dur, IsActive: active,
	}
	return id
}

func (r *fakeRepo) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return d, nil
}

func (r *fakeRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return p, nil
}

func (r *fakeRepo) GetWindowByID(_ context.Context, id uuid.UUID) (*AvailabilityWindow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[id]
	if !ok {
		return nil, ErrWindowNotFound
	}
	cp := *w
	return &cp, nil
}

func (r *fakeRepo) ListWindowsByDoctor(_ context.Context, doctorID uuid.UUID, date string) ([]AvailabilityWindow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []AvailabilityWindow
	for _, w := range r.windows {
		if w.DoctorID == doctorID && (date == "" || w.Date == date) {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (r *fakeRepo) CreateWindow(_ context.Context, w *AvailabilityWindow) (*AvailabilityWindow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *w
	cp.ID = uuid.New()
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.windows[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *fakeRepo) UpdateWindow(_ context.Context, w *AvailabilityWindow) (*AvailabilityWindow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.windows[w.ID]; !ok {
		return nil, ErrWindowNotFound
	}
	cp := *w
	cp.UpdatedAt = time.Now()
	r.windows[w.ID] = &cp
	out := cp
	return &out, nil
}

func (r *fakeRepo) DeleteWindow(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.windows[id]; !ok {
		return ErrWindowNotFound
	}
	delete(r.windows, id)
	return nil
}

func (r *fakeRepo) ListOccupiedSlots(_ context.Context, doctorID uuid.UUID, date string) ([]timeslot.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []timeslot.Slot
	for _, a := range r.appointments {
		if a.DoctorID == doctorID && a.Date == date && a.Status != StatusCancelada {
			out = append(out, timeslot.Slot{Start: a.StartMin, End: a.EndMin})
		}
	}
	return out, nil
}

func (r *fakeRepo) CreateAppointment(_ context.Context, a *Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.appointments {
		if existing.DoctorID == a.DoctorID && existing.Date == a.Date &&
			existing.StartMin == a.StartMin && existing.EndMin == a.EndMin &&
			existing.Status != StatusCancelada {
			return nil, ErrSlotConflict
		}
	}
	cp := *a
	cp.ID = uuid.New()
	cp.Status = StatusPendiente
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.appointments[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *fakeRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *fakeRepo) ListAppointments(_ context.Context, q ListAppointmentsQuery) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if q.DoctorID != nil && a.DoctorID != *q.DoctorID {
			continue
		}
		if q.PatientID != nil && a.PatientID != *q.PatientID {
			continue
		}
		if q.Date != nil && a.Date != *q.Date {
			continue
		}
		if q.Status != nil && a.Status != *q.Status {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (r *fakeRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (r *fakeRepo) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// passLocker runs the critical section with no locking at all, which
// makes the uniqueness check in the repo do all the arbitration — the
// worst case the persistence layer must survive.
type passLocker struct{}

func (passLocker) WithSlotLock(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService(repo Repository) *Service {
	return NewService(repo, passLocker{}, nil, nil)
}

func slotsEqual(a, b []timeslot.Slot) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ---- availability ----

func TestAvailableSlots_HourWindow(t *testing.T) {
	repo := newFakeRepo()
	doc := repo.addDoctor()
	repo.addWindow(doc, "2024-06-10", 9*60, 10*60, 30, true)
	svc := newTestService(repo)

	slots, err := svc.AvailableSlots(context.Background(), doc, "2024-06-10")
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	want := []timeslot.Slot{{Start: 540, End: 570}, {Start: 570, End: 600}}
	if !slotsEqual(slots, want) {
		t.Fatalf("got %v, want %v", slots, want)
	}
}

func TestAvailableSlots_BookedSlotRemoved(t *testing.T) {
	repo := newFakeRepo()
	doc := repo.addDoctor()
	pat := repo.addPatient()
	repo.addWindow(doc, "2024-06-10", 9*60, 10*60, 30, true)
	svc := newTestService(repo)

	_, err := svc.ReserveSlot(context.Background(), ReserveSlotCommand{
		DoctorID: doc, PatientID: pat,
		Date: "2024-06-10", StartTime: "09:00", EndTime: "09:30",
	})
	if err != nil {
		t.Fatalf("ReserveSlot: %v", err)
	}

	slots, err := svc.AvailableSlots(context.Background(), doc, "2024-06-10")
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	want := []timeslot.Slot{{Start: 570, End: 600}}
	if !slotsEqual(slots, want) {
		t.Fatalf("got %v, want %v", slots, want)
	}
}

func TestAvailableSlots_Idempotent(t *testing.T) {
	repo := newFakeRepo()
	doc := repo.addDoctor()
	repo.addWindow(doc, "2024-06-10", 8*60, 12*60, 20, true)
	svc := newTestService(repo)

	first, err := svc.AvailableSlots(context.Background(), doc, "2024-06-10")
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := svc.AvailableSlots(context.Background(), doc, "2024-06-10")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if !slotsEqual(first, second) {
		t.Fatalf("not idempotent: %v vs %v", first, second)
	}
}

func TestAvailableSlots_InactiveWindowIgnored(t *testing.T) {
	repo := newFakeRepo()
	doc := repo.addDoctor()
	repo.addWindow(doc, "2024-06-10", 9*60, 10*60, 30, false)
	svc := newTestService(repo)

	slots, err := svc.AvailableSlots(context.Background(), doc, "2024-06-10")
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("inactive window produced slots: %v", slots)
	}
}

func TestAvailableSlots_OverlappingWindowsDeduplicated(t *testing.T) {
	repo := newFakeRepo()
	doc := repo.addDoctor()
	repo.addWindow(doc, "2024-06-10", 9*60, 10*60, 30, true)
	repo.addWindow(doc, "2024-06-10", 9*60, 11*60, 30, true)
	svc := newTestService(repo)

	slots, err := svc.AvailableSlots(context.Background(), doc, "2024-06-10")
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	want := []timeslot.Slot{{Start: 540, End: 570}, {Start: 570, End: 600}, {Start: 600, End: 630}, {Start: 630, End: 660}}
	if !slotsEqual(slots, want) {
		t.Fatalf("got %v, want %v", slots, want)
	}
}

func TestAvailableSlots_NoWindowsIsEmptyNotError(t *testing.T) {
	repo := newFakeRepo()
	doc := repo.addDoctor()
	svc := newTestService(repo)

	slots, err := svc.AvailableSlots(context.Background(), doc, "2024-06-10")
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no slots, got %v", slots)
	}
}

func TestAvailableSlots_CancelledAppointmentFreesSlot(t *testing.T) {
	repo := newFakeRepo()
	doc := repo.addDoctor()
	pat := repo.addPatient()
	repo.addWindow(doc, "2024-06-10", 9*60, 10*60, 30, true)
	svc := newTestService(repo)

	appt, err := svc.ReserveSlot(context.Background(), ReserveSlotCommand{
		DoctorID: doc, PatientID: pat,
		Date: "2024-06-10", StartTime: "09:00", EndTime: "09:30",
	})
	if err != nil {
		t.Fatalf("ReserveSlot: %v", err)
	}
	if _, err := svc.TransitionStatus(context.Background(), appt.ID, StatusCancelada, RolePatient); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	slots, err := svc.AvailableSlots(context.Background(), doc, "2024-06-10")
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("cancelled slot not offered again: %v", slots)
	}
}

func TestAvailableSlots_UnknownDoctor(t *testing.T) {
	svc := newTestService(newFakeRepo())
	_, err := svc.AvailableSlots(context.Background(), uuid.New(), "2024-06-10")
	if !errors.Is(err, ErrDoctorNotFound) {
		t.Fatalf("got %v, want ErrDoctorNotFound", err)
	}
}

func TestAvailableSlots_BadDate(t *testing.T) {
	repo := newFakeRepo()
	doc := repo.addDoctor()
	svc := newTestService(repo)
	_, err := svc.AvailableSlots(context.Background(), doc, "10/06/2024")
	if !IsValidation(err) {
		t.Fatalf("got %v, want ValidationError", err)
	}
}

// ---- booking ----

func TestReserveSlot_CreatesPendiente(t *testing.T) {
	repo := newFakeRepo()
	doc := repo.addDoctor()
	pat := repo.addPatient()
	repo.addWindow(doc, "2024-06-10", 9*60, 10*60, 30, true)
	svc := newTestService(repo)

	appt, err := svc.ReserveSlot(context.Background(), ReserveSlotCommand{
		DoctorID: doc, PatientID: pat,
		Date: "2024-06-10", StartTime: "09:30", EndTime: "10:00",
	})
	if err != nil {
		t.Fatalf("ReserveSlot: %v", err)
	}
	if appt.Status != StatusPendiente {
		t.Errorf("status = %s, want pendiente", appt.Status)
	}
	if appt.StartMin != 570 || appt.EndMin != 600 {
		t.Errorf("slot = %d-%d, want 570-600", appt.StartMin, appt.EndMin)
	}
	if len(repo.events) != 1 || repo.events[0].EventType != EventAppointmentBooked {
		t.Errorf("expected one booked event, got %v", repo.events)
	}
}

func TestReserveSlot_OffGridRejected(t *testing.T) {
	repo := newFakeRepo()
	doc := repo.addDoctor()
	pat := repo.addPatient()
	repo.addWindow(doc, "2024-06-10", 9*60, 10*60, 30, true)
	svc := newTestService(repo)

	// Well-formed but not a slot the windows generate.
	_, err := svc.ReserveSlot(context.Background(), ReserveSlotCommand{
		DoctorID: doc, PatientID: pat,
		Date: "2024-06-10", StartTime: "09:10", EndTime: "09:40",
	})
	if !errors.Is(err, ErrInvalidSlot) {
		t.Fatalf("got %v, want ErrInvalidSlot", err)
	}
}

func TestReserveSlot_InactiveWindowRejected(t *testing.T) {
	repo := newFakeRepo()
	doc := repo.addDoctor()
	pat := repo.addPatient()
	repo.addWindow(doc, "2024-06-10", 9*60, 10*60, 30, false)
	svc := newTestService(repo)

	_, err := svc.ReserveSlot(context.Background(), ReserveSlotCommand{
		DoctorID: doc, PatientID: pat,
		Date: "2024-06-10", StartTime: "09:00", EndTime: "09:30",
	})
	if !errors.Is(err, ErrInvalidSlot) {
		t.Fatalf("got %v, want ErrInvalidSlot", err)
	}
}

func TestReserveSlot_TakenSlotConflicts(t *testing.T) {
	repo := newFakeRepo()
	doc := repo.addDoctor()
	pat1 := repo.addPatient()
	pat2 := repo.addPatient()
	repo.addWindow(doc, "2024-06-10", 9*60, 10*60, 30, true)
	svc := newTestService(repo)

	cmd := ReserveSlotCommand{
		DoctorID: doc, PatientID: pat1,
		Date: "2024-06-10", StartTime: "09:00", EndTime: "09:30",
	}
	if _, err := svc.ReserveSlot(context.Background(), cmd); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	cmd.PatientID = pat2
	_, err := svc.ReserveSlot(context.Background(), cmd)
	if !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("got %v, want ErrSlotConflict", err)
	}
}

func TestReserveSlot_ValidationBeforeComputation(t *testing.T) {
	repo := newFakeRepo()
	doc := repo.addDoctor()
	pat := repo.addPatient()
	svc := newTestService(repo)

	cases := []ReserveSlotCommand{
		{DoctorID: doc, PatientID: pat, Date: "2024-6-10", StartTime: "09:00", EndTime: "09:30"},
		{DoctorID: doc, PatientID: pat, Date: "2024-06-10", StartTime: "9am", EndTime: "09:30"},
		{DoctorID: doc, PatientID: pat, Date: "2024-06-10", StartTime: "09:00", EndTime: "25:00"},
	}
	for _, cmd := range cases {
		if _, err := svc.ReserveSlot(context.Background(), cmd); !IsValidation(err) {
			t.Errorf("cmd %+v: got %v, want ValidationError", cmd, err)
		}
	}
}

func TestReserveSlot_UnknownPatient(t *testing.T) {
	repo := newFakeRepo()
	doc := repo.addDoctor()
	repo.addWindow(doc, "2024-06-10", 9*60, 10*60, 30, true)
	svc := newTestService(repo)

	_, err := svc.ReserveSlot(context.Background(), ReserveSlotCommand{
		DoctorID: doc, PatientID: uuid.New(),
		Date: "2024-06-10", StartTime: "09:00", EndTime: "09:30",
	})
	if !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("got %v, want ErrPatientNotFound", err)
	}
}

func TestReserveSlot_ConcurrentExactlyOneWins(t *testing.T) {
	repo := newFakeRepo()
	doc := repo.addDoctor()
	repo.addWindow(doc, "2024-06-10", 9*60, 10*60, 30, true)
	svc := newTestService(repo)

	const attempts = 32
	patients := make([]uuid.UUID, attempts)
	for i := range patients {
		patients[i] = repo.addPatient()
	}

	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.ReserveSlot(context.Background(), ReserveSlotCommand{
				DoctorID: doc, PatientID: patients[i],
				Date: "2024-06-10", StartTime: "09:00", EndTime: "09:30",
			})
			results[i] = err
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotConflict):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 || conflicts != attempts-1 {
		t.Fatalf("wins=%d conflicts=%d, want 1 and %d", wins, conflicts, attempts-1)
	}
}

// ---- transitions ----

func bookedAppointment(t *testing.T, repo *fakeRepo, svc *Service) *Appointment {
	t.Helper()
	doc := repo.addDoctor()
	pat := repo.addPatient()
	repo.addWindow(doc, "2024-06-10", 9*60, 10*60, 30, true)
	appt, err := svc.ReserveSlot(context.Background(), ReserveSlotCommand{
		DoctorID: doc, PatientID: pat,
		Date: "2024-06-10", StartTime: "09:00", EndTime: "09:30",
	})
	if err != nil {
		t.Fatalf("ReserveSlot: %v", err)
	}
	return appt
}

func TestTransitionStatus_ConfirmThenFinalize(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	appt := bookedAppointment(t, repo, svc)

	confirmed, err := svc.TransitionStatus(context.Background(), appt.ID, StatusConfirmada, RoleDoctor)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != StatusConfirmada {
		t.Fatalf("status = %s", confirmed.Status)
	}

	done, err := svc.TransitionStatus(context.Background(), appt.ID, StatusFinalizada, RoleDoctor)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if done.Status != StatusFinalizada {
		t.Fatalf("status = %s", done.Status)
	}
}

func TestTransitionStatus_TerminalIsFrozen(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	appt := bookedAppointment(t, repo, svc)

	if _, err := svc.TransitionStatus(context.Background(), appt.ID, StatusConfirmada, RoleDoctor); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.TransitionStatus(context.Background(), appt.ID, StatusFinalizada, RoleDoctor); err != nil {
		t.Fatal(err)
	}

	// finalizada → cancelada must fail for every role.
	for _, role := range allRoles {
		_, err := svc.TransitionStatus(context.Background(), appt.ID, StatusCancelada, role)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("role %s: got %v, want ErrInvalidTransition", role, err)
		}
	}
}

func TestTransitionStatus_StateIllegalBeatsRole(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	appt := bookedAppointment(t, repo, svc)

	// pendiente → finalizada is unreachable for everyone, so the answer
	// is InvalidTransition even for a patient who could also never be
	// allowed by role.
	_, err := svc.TransitionStatus(context.Background(), appt.ID, StatusFinalizada, RolePatient)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("got %v, want ErrInvalidTransition", err)
	}
}

func TestTransitionStatus_RoleForbidden(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	appt := bookedAppointment(t, repo, svc)

	// pendiente → confirmada is state-legal but patient-forbidden.
	_, err := svc.TransitionStatus(context.Background(), appt.ID, StatusConfirmada, RolePatient)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("got %v, want ErrForbidden", err)
	}

	// Admin may perform any state-legal transition.
	if _, err := svc.TransitionStatus(context.Background(), appt.ID, StatusConfirmada, RoleAdmin); err != nil {
		t.Fatalf("admin confirm: %v", err)
	}
	if _, err := svc.TransitionStatus(context.Background(), appt.ID, StatusNoShow, RoleAdmin); err != nil {
		t.Fatalf("admin no_show: %v", err)
	}
}

func TestTransitionStatus_PatientMayCancel(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	appt := bookedAppointment(t, repo, svc)

	if _, err := svc.TransitionStatus(context.Background(), appt.ID, StatusCancelada, RolePatient); err != nil {
		t.Fatalf("patient cancel: %v", err)
	}
}

func TestTransitionStatus_UnknownInput(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	appt := bookedAppointment(t, repo, svc)

	if _, err := svc.TransitionStatus(context.Background(), appt.ID, Status("archived"), RoleAdmin); !IsValidation(err) {
		t.Errorf("unknown status: got %v, want ValidationError", err)
	}
	if _, err := svc.TransitionStatus(context.Background(), appt.ID, StatusConfirmada, Role("nurse")); !IsValidation(err) {
		t.Errorf("unknown role: got %v, want ValidationError", err)
	}
	if _, err := svc.TransitionStatus(context.Background(), uuid.New(), StatusConfirmada, RoleAdmin); !errors.Is(err, ErrAppointmentNotFound) {
		t.Errorf("missing appointment: got %v", err)
	}
}

// racedRepo flips the appointment's status between the service's read
// and its conditional write, simulating a concurrent transition.
type racedRepo struct {
	*fakeRepo
	raceTo Status
}

func (r *racedRepo) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	r.mu.Lock()
	if a, ok := r.appointments[id]; ok && a.Status == from {
		a.Status = r.raceTo
	}
	r.mu.Unlock()
	return r.fakeRepo.UpdateAppointmentStatus(ctx, id, from, to)
}

func TestTransitionStatus_ConcurrentModificationDetected(t *testing.T) {
	base := newFakeRepo()
	svc := newTestService(base)
	appt := bookedAppointment(t, base, svc)

	raced := &racedRepo{fakeRepo: base, raceTo: StatusCancelada}
	svcRaced := newTestService(raced)

	_, err := svcRaced.TransitionStatus(context.Background(), appt.ID, StatusConfirmada, RoleDoctor)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("got %v, want ErrInvalidTransition", err)
	}
}

// ---- windows ----

func TestCreateWindow_Validation(t *testing.T) {
	repo := newFakeRepo()
	doc := repo.addDoctor()
	svc := newTestService(repo)

	cases := []WindowCommand{
		{DoctorID: doc, Date: "2024-06-10", StartTime: "10:00", EndTime: "09:00", SlotDurationMin: 30, IsActive: true},
		{DoctorID: doc, Date: "2024-06-10", StartTime: "09:00", EndTime: "09:00", SlotDurationMin: 30, IsActive: true},
		{DoctorID: doc, Date: "2024-06-10", StartTime: "09:00", EndTime: "10:00", SlotDurationMin: 4, IsActive: true},
		{DoctorID: doc, Date: "junk", StartTime: "09:00", EndTime: "10:00", SlotDurationMin: 30, IsActive: true},
	}
	for _, cmd := range cases {
		if _, err := svc.CreateWindow(context.Background(), cmd); !IsValidation(err) {
			t.Errorf("cmd %+v: got %v, want ValidationError", cmd, err)
		}
	}

	w, err := svc.CreateWindow(context.Background(), WindowCommand{
		DoctorID: doc, Date: "2024-06-10",
		StartTime: "09:00", EndTime: "14:00", SlotDurationMin: 30, IsActive: true,
	})
	if err != nil {
		t.Fatalf("valid window rejected: %v", err)
	}
	if w.StartMin != 540 || w.EndMin != 840 {
		t.Errorf("window minutes = %d-%d", w.StartMin, w.EndMin)
	}
}
