package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medagenda/clinic-scheduling/internal/schedule"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// handleServiceError maps the domain taxonomy onto HTTP. Conflicts are
// routine outcomes under concurrent booking, so their payloads tell the
// caller what to do next rather than apologizing.
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case schedule.IsValidation(err):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, schedule.ErrDoctorNotFound),
		errors.Is(err, schedule.ErrPatientNotFound),
		errors.Is(err, schedule.ErrWindowNotFound),
		errors.Is(err, schedule.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, schedule.ErrInvalidSlot):
		writeError(w, http.StatusUnprocessableEntity, "invalid_slot",
			"slot does not match the doctor's current availability, re-fetch available slots")
	case errors.Is(err, schedule.ErrSlotConflict):
		writeError(w, http.StatusConflict, "slot_conflict",
			"slot no longer available, please pick another")
	case errors.Is(err, schedule.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, schedule.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func parseUUID(w http.ResponseWriter, raw, field string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+field, field+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// ---- availability windows ----

func doctorWindowsHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseUUID(w, chi.URLParam(r, "doctorID"), "doctor_id")
		if !ok {
			return
		}

		windows, err := svc.DoctorWindows(r.Context(), doctorID, r.URL.Query().Get("date"))
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := make([]WindowResponse, 0, len(windows))
		for i := range windows {
			resp = append(resp, windowToResponse(&windows[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func windowCommandFromRequest(w http.ResponseWriter, r *http.Request) (schedule.WindowCommand, bool) {
	var req WindowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return schedule.WindowCommand{}, false
	}
	doctorID, ok := parseUUID(w, req.Doctor, "doctor")
	if !ok {
		return schedule.WindowCommand{}, false
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return schedule.WindowCommand{
		DoctorID:        doctorID,
		Date:            req.Date,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		SlotDurationMin: req.SlotDuration,
		IsActive:        active,
	}, true
}

func createWindowHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cmd, ok := windowCommandFromRequest(w, r)
		if !ok {
			return
		}
		window, err := svc.CreateWindow(r.Context(), cmd)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, windowToResponse(window))
	}
}

func updateWindowHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUID(w, chi.URLParam(r, "id"), "window_id")
		if !ok {
			return
		}
		cmd, ok := windowCommandFromRequest(w, r)
		if !ok {
			return
		}
		window, err := svc.UpdateWindow(r.Context(), id, cmd)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, windowToResponse(window))
	}
}

func deleteWindowHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUID(w, chi.URLParam(r, "id"), "window_id")
		if !ok {
			return
		}
		if err := svc.DeleteWindow(r.Context(), id); err != nil {
			handleServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ---- slots & appointments ----

func availableSlotsHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseUUID(w, r.URL.Query().Get("doctorId"), "doctorId")
		if !ok {
			return
		}

		slots, err := svc.AvailableSlots(r.Context(), doctorID, r.URL.Query().Get("date"))
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, slotsToResponse(slots))
	}
}

func createAppointmentHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, ok := parseUUID(w, req.Doctor, "doctor")
		if !ok {
			return
		}
		patientID, ok := parseUUID(w, req.Patient, "patient")
		if !ok {
			return
		}

		cmd := schedule.ReserveSlotCommand{
			DoctorID:  doctorID,
			PatientID: patientID,
			Date:      req.Date,
			StartTime: req.StartTime,
			EndTime:   req.EndTime,
			Reason:    req.Reason,
		}
		if req.Specialty != nil {
			specialtyID, ok := parseUUID(w, *req.Specialty, "specialty")
			if !ok {
				return
			}
			cmd.SpecialtyID = &specialtyID
		}

		appt, err := svc.ReserveSlot(r.Context(), cmd)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, appointmentToResponse(appt))
	}
}

func getAppointmentHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUID(w, chi.URLParam(r, "id"), "appointment_id")
		if !ok {
			return
		}
		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, appointmentToResponse(appt))
	}
}

func listAppointmentsHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := schedule.ListAppointmentsQuery{
			Limit:  queryInt(r, "limit", 20),
			Offset: queryInt(r, "offset", 0),
		}

		if raw := r.URL.Query().Get("doctorId"); raw != "" {
			id, ok := parseUUID(w, raw, "doctorId")
			if !ok {
				return
			}
			q.DoctorID = &id
		}
		if raw := r.URL.Query().Get("patientId"); raw != "" {
			id, ok := parseUUID(w, raw, "patientId")
			if !ok {
				return
			}
			q.PatientID = &id
		}
		if raw := r.URL.Query().Get("date"); raw != "" {
			q.Date = &raw
		}
		if raw := r.URL.Query().Get("status"); raw != "" {
			st := schedule.Status(raw)
			q.Status = &st
		}

		appts, err := svc.ListAppointments(r.Context(), q)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, appointmentToResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// updateStatusHandler drives the state machine. Authentication is a
// gateway concern; the acting role arrives in X-Actor-Role and is
// validated, not authenticated, here.
func updateStatusHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUID(w, chi.URLParam(r, "id"), "appointment_id")
		if !ok {
			return
		}

		var req UpdateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		role := schedule.Role(r.Header.Get("X-Actor-Role"))
		appt, err := svc.TransitionStatus(r.Context(), id, schedule.Status(req.Status), role)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, appointmentToResponse(appt))
	}
}

func queryInt(r *http.Request, key string, def int) int {
	if raw := r.URL.Query().Get(key); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return def
}
