package api

import (
	"time"

	"github.com/medagenda/clinic-scheduling/internal/schedule"
	"github.com/medagenda/clinic-scheduling/internal/timeslot"
)

// Wire shapes. Times travel as "HH:MM" 24-hour strings, dates as
// "YYYY-MM-DD"; no timezone offset is transmitted or interpreted.

type WindowRequest struct {
	Doctor       string `json:"doctor"`
	Date         string `json:"date"`
	StartTime    string `json:"startTime"`
	EndTime      string `json:"endTime"`
	SlotDuration int    `json:"slotDuration"`
	IsActive     *bool  `json:"isActive,omitempty"`
}

type WindowResponse struct {
	ID           string `json:"id"`
	Doctor       string `json:"doctor"`
	Date         string `json:"date"`
	StartTime    string `json:"startTime"`
	EndTime      string `json:"endTime"`
	SlotDuration int    `json:"slotDuration"`
	IsActive     bool   `json:"isActive"`
}

type SlotResponse struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type AvailableSlotsResponse struct {
	Slots []SlotResponse `json:"slots"`
}

type CreateAppointmentRequest struct {
	Doctor    string  `json:"doctor"`
	Patient   string  `json:"patient"`
	Date      string  `json:"date"`
	StartTime string  `json:"startTime"`
	EndTime   string  `json:"endTime"`
	Specialty *string `json:"specialty,omitempty"`
	Reason    *string `json:"reason,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type AppointmentResponse struct {
	ID        string    `json:"id"`
	Doctor    string    `json:"doctor"`
	Patient   string    `json:"patient"`
	Date      string    `json:"date"`
	StartTime string    `json:"startTime"`
	EndTime   string    `json:"endTime"`
	Status    string    `json:"status"`
	Specialty *string   `json:"specialty,omitempty"`
	Reason    *string   `json:"reason,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func windowToResponse(w *schedule.AvailabilityWindow) WindowResponse {
	return WindowResponse{
		ID:           w.ID.String(),
		Doctor:       w.DoctorID.String(),
		Date:         w.Date,
		StartTime:    timeslot.FormatClock(w.StartMin),
		EndTime:      timeslot.FormatClock(w.EndMin),
		SlotDuration: w.SlotDurationMin,
		IsActive:     w.IsActive,
	}
}

func slotsToResponse(slots []timeslot.Slot) AvailableSlotsResponse {
	resp := AvailableSlotsResponse{Slots: make([]SlotResponse, 0, len(slots))}
	for _, s := range slots {
		resp.Slots = append(resp.Slots, SlotResponse{
			StartTime: timeslot.FormatClock(s.Start),
			EndTime:   timeslot.FormatClock(s.End),
		})
	}
	return resp
}

func appointmentToResponse(a *schedule.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:        a.ID.String(),
		Doctor:    a.DoctorID.String(),
		Patient:   a.PatientID.String(),
		Date:      a.Date,
		StartTime: timeslot.FormatClock(a.StartMin),
		EndTime:   timeslot.FormatClock(a.EndMin),
		Status:    string(a.Status),
		Reason:    a.Reason,
		CreatedAt: a.CreatedAt,
	}
	if a.SpecialtyID != nil {
		s := a.SpecialtyID.String()
		resp.Specialty = &s
	}
	return resp
}
