package records

import (
	"context"
	"errors"
	"time"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSlotNotAvailable    = errors.New("slot not available")
	ErrAlreadyCancelled    = errors.New("appointment is already cancelled")
	ErrStatusConflict      = errors.New("appointment status changed concurrently")
)

// Repository is the record store shared by the chat engine, the booking
// service and the reminder scheduler.
type Repository interface {
	// Patients
	ListPatients(ctx context.Context) ([]Patient, error)
	GetPatient(ctx context.Context, id int64) (*Patient, error)
	// UpsertPatient merges into an existing row with the same name
	// (case-insensitive) and date of birth, otherwise inserts.
	UpsertPatient(ctx context.Context, p Patient) (*Patient, error)
	UpdatePatientInsurance(ctx context.Context, id int64, carrier, memberID, groupNumber string) (*Patient, error)
	SetPatientType(ctx context.Context, id int64, t PatientType) (*Patient, error)

	// Availability
	ListSlots(ctx context.Context, date time.Time) ([]AvailabilitySlot, error)
	InsertSlots(ctx context.Context, slots []AvailabilitySlot) (int, error)

	// Appointments
	BookSlot(ctx context.Context, req BookingRequest) (*Appointment, error)
	CancelAppointment(ctx context.Context, id int64, reason string) (*Appointment, error)
	GetAppointment(ctx context.Context, id int64) (*Appointment, error)
	ListAppointmentsBetween(ctx context.Context, from, to time.Time) ([]Appointment, error)
	// SetConfirmationStatus moves an appointment to `to` only if its current
	// status is one of `from`; otherwise ErrStatusConflict. A missing row is
	// ErrAppointmentNotFound.
	SetConfirmationStatus(ctx context.Context, id int64, from []ConfirmationStatus, to ConfirmationStatus) (*Appointment, error)
	// IncrementRemindersSent bumps the counter and stamps when it was sent.
	IncrementRemindersSent(ctx context.Context, id int64, at time.Time) (*Appointment, error)
	MarkFormSent(ctx context.Context, id int64) (*Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

var (
	_ Repository = (*PgRepository)(nil)
	_ Repository = (*MemoryRepository)(nil)
)
