package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/medagenda/clinic-scheduling/internal/metrics"
	"github.com/medagenda/clinic-scheduling/internal/schedule"
	"github.com/medagenda/clinic-scheduling/internal/timeslot"
)

// SchedulingService is what the handlers need from the engine; tests
// stub it without a database.
type SchedulingService interface {
	DoctorWindows(ctx context.Context, doctorID uuid.UUID, date string) ([]schedule.AvailabilityWindow, error)
	CreateWindow(ctx context.Context, cmd schedule.WindowCommand) (*schedule.AvailabilityWindow, error)
	UpdateWindow(ctx context.Context, id uuid.UUID, cmd schedule.WindowCommand) (*schedule.AvailabilityWindow, error)
	DeleteWindow(ctx context.Context, id uuid.UUID) error

	AvailableSlots(ctx context.Context, doctorID uuid.UUID, date string) ([]timeslot.Slot, error)
	ReserveSlot(ctx context.Context, cmd schedule.ReserveSlotCommand) (*schedule.Appointment, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, target schedule.Status, actor schedule.Role) (*schedule.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*schedule.Appointment, error)
	ListAppointments(ctx context.Context, q schedule.ListAppointmentsQuery) ([]schedule.Appointment, error)
}

type RouterConfig struct {
	Service   SchedulingService
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Logger    *zap.Logger
	Collector *metrics.Collector
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger, cfg.Collector))

	// Health and metrics
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Availability windows
	r.Get("/availability/doctor/{doctorID}", doctorWindowsHandler(cfg.Service))
	r.Post("/availability", createWindowHandler(cfg.Service))
	r.Put("/availability/{id}", updateWindowHandler(cfg.Service))
	r.Delete("/availability/{id}", deleteWindowHandler(cfg.Service))

	// Appointments
	r.Get("/appointments/available-slots", availableSlotsHandler(cfg.Service))
	r.Post("/appointments", createAppointmentHandler(cfg.Service))
	r.Get("/appointments", listAppointmentsHandler(cfg.Service))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
	r.Patch("/appointments/{id}/status", updateStatusHandler(cfg.Service))

	return r
}
