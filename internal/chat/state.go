// Package chat drives a scheduling conversation one turn at a time.
package chat

import (
	"github.com/hackgods/clinic-appointment-assistant/internal/booking"
	"github.com/hackgods/clinic-appointment-assistant/internal/extract"
	"github.com/hackgods/clinic-appointment-assistant/internal/records"
)

type Stage string

const (
	StageGreeting      Stage = "greeting"
	StagePatientLookup Stage = "patient_lookup"
	StageScheduling    Stage = "scheduling"
	StageInsurance     Stage = "insurance"
	StageConfirmation  Stage = "confirmation"
	StageReminders     Stage = "reminders"
	StageCompleted     Stage = "completed"
)

const (
	EdgePatientCancels    = "patient_cancels"
	EdgeDoctorFullyBooked = "doctor_fully_booked"
	EdgeFormNotFilled     = "form_not_filled"
)

const (
	FormSent      = "sent"
	FormCompleted = "completed"
)

// SessionState is everything the engine knows about one conversation. The
// host stores it between turns; the engine never keeps it.
type SessionState struct {
	Stage  Stage         `json:"stage"`
	Asking extract.Field `json:"asking,omitempty"`

	Patient     extract.PatientFields `json:"patient"`
	PatientID   int64                 `json:"patient_id,omitempty"`
	PatientType records.PatientType   `json:"patient_type,omitempty"`
	Duration    int                   `json:"duration_minutes,omitempty"`

	RequestedDate  string              `json:"requested_date,omitempty"`
	AvailableSlots []booking.SlotOffer `json:"available_slots,omitempty"`
	Selected       *booking.SlotOffer  `json:"selected,omitempty"`

	Insurance extract.Insurance `json:"insurance"`

	AppointmentID int64  `json:"appointment_id,omitempty"`
	ReminderCount int    `json:"reminder_count"`
	FormStatus    string `json:"form_status,omitempty"`

	EdgeCase     string `json:"edge_case,omitempty"`
	CancelReason string `json:"cancel_reason,omitempty"`
}

func NewSession() SessionState {
	return SessionState{Stage: StageGreeting}
}
