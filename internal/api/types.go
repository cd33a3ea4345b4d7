package api

import (
	"github.com/hackgods/clinic-appointment-assistant/internal/chat"
	"github.com/hackgods/clinic-appointment-assistant/internal/records"
)

type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

type ChatResponse struct {
	SessionID string     `json:"session_id"`
	Response  string     `json:"response"`
	Stage     chat.Stage `json:"stage"`
}

type CreateAppointmentRequest struct {
	PatientID        int64  `json:"patient_id"`
	Doctor           string `json:"doctor"`
	Date             string `json:"date"`
	StartTime        string `json:"start_time"`
	Duration         int    `json:"duration_minutes,omitempty"`
	InsuranceCarrier string `json:"insurance_carrier,omitempty"`
	MemberID         string `json:"member_id,omitempty"`
	GroupNumber      string `json:"group_number,omitempty"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason"`
}

type AppointmentResponse struct {
	ID               int64  `json:"id"`
	PatientID        int64  `json:"patient_id"`
	PatientName      string `json:"patient_name,omitempty"`
	Doctor           string `json:"doctor"`
	Date             string `json:"date"`
	StartTime        string `json:"start_time"`
	EndTime          string `json:"end_time"`
	Duration         int    `json:"duration_minutes"`
	Status           string `json:"status"`
	RemindersSent    int    `json:"reminders_sent"`
	FormSent         bool   `json:"form_sent"`
	CancelReason     string `json:"cancel_reason,omitempty"`
	InsuranceCarrier string `json:"insurance_carrier,omitempty"`
	MemberID         string `json:"member_id,omitempty"`
	GroupNumber      string `json:"group_number,omitempty"`
}

type SlotResponse struct {
	Doctor    string `json:"doctor"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *records.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:               a.ID,
		PatientID:        a.PatientID,
		PatientName:      a.PatientName,
		Doctor:           a.Doctor,
		Date:             records.FormatDate(a.Date),
		StartTime:        a.StartTime,
		EndTime:          a.EndTime,
		Duration:         a.Duration,
		Status:           string(a.ConfirmationStatus),
		RemindersSent:    a.RemindersSent,
		FormSent:         a.FormSent,
		CancelReason:     a.CancelReason,
		InsuranceCarrier: a.InsuranceCarrier,
		MemberID:         a.MemberID,
		GroupNumber:      a.GroupNumber,
	}
}
