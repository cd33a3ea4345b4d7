package records

import "time"

type PatientType string

const (
	PatientNew       PatientType = "New"
	PatientReturning PatientType = "Returning"
)

type ConfirmationStatus string

const (
	StatusPending   ConfirmationStatus = "Pending"
	StatusSent      ConfirmationStatus = "Sent"
	StatusConfirmed ConfirmationStatus = "Confirmed"
	StatusCancelled ConfirmationStatus = "Cancelled"
)

type SlotStatus string

const (
	SlotAvailable SlotStatus = "Available"
	SlotBooked    SlotStatus = "Booked"
)

// SlotMinutes is the granularity of pre-generated availability.
const SlotMinutes = 30

// Duration policy by patient classification.
const (
	NewPatientMinutes       = 60
	ReturningPatientMinutes = 30
)

// DurationFor maps a classification to its appointment length.
func DurationFor(t PatientType) int {
	if t == PatientReturning {
		return ReturningPatientMinutes
	}
	return NewPatientMinutes
}

type Patient struct {
	ID               int64
	Name             string
	DateOfBirth      string // YYYY-MM-DD
	Email            string
	Phone            string
	DoctorPreference string
	Location         string
	InsuranceCarrier string
	MemberID         string
	GroupNumber      string
	PatientType      PatientType
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type AvailabilitySlot struct {
	Doctor   string
	Date     time.Time // civil date, UTC midnight
	TimeSlot string    // HH:MM
	Status   SlotStatus
}

type Appointment struct {
	ID                 int64
	PatientID          int64
	PatientName        string
	Doctor             string
	Date               time.Time
	StartTime          string
	EndTime            string
	Duration           int
	InsuranceCarrier   string
	MemberID           string
	GroupNumber        string
	ConfirmationStatus ConfirmationStatus
	RemindersSent      int
	LastReminderAt     *time.Time
	FormSent           bool
	CancelReason       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// BookingRequest carries everything copied onto a new Appointment.
type BookingRequest struct {
	PatientID        int64
	PatientName      string
	Doctor           string
	Date             time.Time
	StartTime        string
	Duration         int
	InsuranceCarrier string
	MemberID         string
	GroupNumber      string
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *int64
	Payload       []byte
	CreatedAt     time.Time
}

// ReminderType selects one of the three escalating reminder templates.
type ReminderType int

const (
	ReminderBasic          ReminderType = 1 // plain heads-up
	ReminderFormAndConfirm ReminderType = 2 // intake form plus confirm request
	ReminderFinal          ReminderType = 3 // last call to confirm or cancel
)

func (t ReminderType) String() string {
	switch t {
	case ReminderBasic:
		return "basic"
	case ReminderFormAndConfirm:
		return "form_confirm"
	case ReminderFinal:
		return "final"
	default:
		return "unknown"
	}
}
