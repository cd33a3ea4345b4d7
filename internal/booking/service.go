package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/hackgods/clinic-appointment-assistant/internal/logging"
	"github.com/hackgods/clinic-appointment-assistant/internal/metrics"
	"github.com/hackgods/clinic-appointment-assistant/internal/records"
	redisclient "github.com/hackgods/clinic-appointment-assistant/internal/redis"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventConfirmationSent     = "CONFIRMATION_SENT"
	EventFormSent             = "INTAKE_FORM_SENT"
)

var (
	ErrSlotBeingBooked         = errors.New("slot is currently being booked, please retry")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrInvalidRequest          = errors.New("invalid booking request")
)

// SlotOffer is one bookable start time presented to a patient.
type SlotOffer struct {
	Doctor    string    `json:"doctor"`
	Date      time.Time `json:"date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
}

// LockRetry bounds how long Book waits for another booking of the same
// doctor and day to finish.
type LockRetry struct {
	MaxAttempts     int
	InitialInterval time.Duration
}

type Service struct {
	repo    records.Repository
	locker  redisclient.Locker
	logger  *logging.Logger
	metrics *metrics.AssistantMetrics
	retry   LockRetry
}

func NewService(repo records.Repository, locker redisclient.Locker, logger *logging.Logger, m *metrics.AssistantMetrics) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:    repo,
		locker:  locker,
		logger:  logger,
		metrics: m,
		retry:   LockRetry{MaxAttempts: 5, InitialInterval: 50 * time.Millisecond},
	}
}

// WithLockRetry overrides the wait on a contended booking lock.
func (s *Service) WithLockRetry(r LockRetry) *Service {
	if r.MaxAttempts < 1 {
		r.MaxAttempts = 1
	}
	s.retry = r
	return s
}

// AnyDoctor reports whether a preference leaves the doctor open.
func AnyDoctor(pref string) bool {
	switch strings.ToLower(strings.TrimSpace(pref)) {
	case "", "any", "any doctor", "to be determined", "no preference", "none":
		return true
	}
	return false
}

// FindSlots lists open start times on date ordered by (doctor, time).
// A specific doctor with nothing free falls back to every doctor that day.
// Starts whose [start, start+duration) span already holds a Booked record
// are left out since booking them would fail.
func (s *Service) FindSlots(ctx context.Context, date time.Time, doctorPref string, duration int) ([]SlotOffer, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidRequest)
	}
	all, err := s.repo.ListSlots(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load slots: %w", err)
	}

	booked := make(map[string][]int)
	for _, slot := range all {
		if slot.Status == records.SlotBooked {
			m, err := records.ClockMinutes(slot.TimeSlot)
			if err != nil {
				continue
			}
			booked[slot.Doctor] = append(booked[slot.Doctor], m)
		}
	}

	var open []records.AvailabilitySlot
	for _, slot := range all {
		if slot.Status != records.SlotAvailable {
			continue
		}
		start, err := records.ClockMinutes(slot.TimeSlot)
		if err != nil {
			s.logger.Warn("skipping malformed slot", "doctor", slot.Doctor, "time_slot", slot.TimeSlot)
			continue
		}
		if spanBlocked(booked[slot.Doctor], start, start+duration) {
			continue
		}
		open = append(open, slot)
	}

	candidates := open
	if !AnyDoctor(doctorPref) {
		var mine []records.AvailabilitySlot
		for _, slot := range open {
			if SameDoctor(slot.Doctor, doctorPref) {
				mine = append(mine, slot)
			}
		}
		if len(mine) > 0 {
			candidates = mine
		} else {
			s.logger.Info("preferred doctor has no openings, offering all doctors",
				"doctor", doctorPref, "date", records.FormatDate(date))
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Doctor != candidates[j].Doctor {
			return candidates[i].Doctor < candidates[j].Doctor
		}
		return candidates[i].TimeSlot < candidates[j].TimeSlot
	})

	offers := make([]SlotOffer, 0, len(candidates))
	for _, slot := range candidates {
		start, end, err := records.Span(slot.TimeSlot, duration)
		if err != nil {
			continue
		}
		offers = append(offers, SlotOffer{Doctor: slot.Doctor, Date: records.DateOf(slot.Date), StartTime: start, EndTime: end})
	}
	return offers, nil
}

func spanBlocked(booked []int, start, end int) bool {
	for _, m := range booked {
		if m >= start && m < end {
			return true
		}
	}
	return false
}

// SameDoctor tolerates "Johnson" vs "Dr. Johnson" and case differences.
func SameDoctor(a, b string) bool {
	norm := func(s string) string {
		s = strings.ToLower(strings.TrimSpace(s))
		s = strings.TrimPrefix(s, "dr.")
		s = strings.TrimPrefix(s, "dr ")
		return strings.TrimSpace(s)
	}
	return norm(a) == norm(b)
}

// Book reserves the span and creates a Pending appointment. Concurrent
// bookings for the same doctor and day are serialised through the locker;
// the store re-verifies availability inside its own transaction.
func (s *Service) Book(ctx context.Context, req records.BookingRequest) (*records.Appointment, error) {
	if req.PatientID <= 0 || strings.TrimSpace(req.Doctor) == "" || req.Duration <= 0 {
		return nil, ErrInvalidRequest
	}
	start := time.Now()

	key := redisclient.BookingKey(req.Doctor, records.FormatDate(req.Date))
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retry.InitialInterval

	// The lock covers the whole day for one doctor, so a wait here usually
	// means a different slot is being booked. Only contention is retried.
	created, err := backoff.Retry(ctx, func() (*records.Appointment, error) {
		var appt *records.Appointment
		err := s.locker.WithLock(ctx, key, func(lockCtx context.Context) error {
			a, err := s.repo.BookSlot(lockCtx, req)
			if err != nil {
				return err
			}
			appt = a

			s.logEvent(lockCtx, a.ID, EventAppointmentBooked, map[string]any{
				"patient_id": a.PatientID,
				"doctor":     a.Doctor,
				"date":       records.FormatDate(a.Date),
				"start_time": a.StartTime,
				"end_time":   a.EndTime,
			})
			return nil
		})
		if err != nil && !errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, backoff.Permanent(err)
		}
		return appt, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(s.retry.MaxAttempts)))

	switch {
	case err == nil:
		s.metrics.ObserveBooking("booked", time.Since(start).Seconds())
		s.logger.Info("appointment booked", "appointment_id", created.ID, "doctor", created.Doctor,
			"date", records.FormatDate(created.Date), "start_time", created.StartTime)
		return created, nil
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		s.metrics.ObserveBooking("contended", time.Since(start).Seconds())
		return nil, ErrSlotBeingBooked
	case errors.Is(err, records.ErrSlotNotAvailable):
		s.metrics.ObserveBooking("unavailable", time.Since(start).Seconds())
		return nil, err
	default:
		s.metrics.ObserveBooking("error", time.Since(start).Seconds())
		return nil, fmt.Errorf("book slot: %w", err)
	}
}

// Confirm records the patient's confirmation. Confirming twice is a no-op;
// confirming a cancelled appointment is rejected.
func (s *Service) Confirm(ctx context.Context, id int64) (*records.Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	switch appt.ConfirmationStatus {
	case records.StatusConfirmed:
		return appt, nil
	case records.StatusCancelled:
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.SetConfirmationStatus(ctx, id,
		[]records.ConfirmationStatus{records.StatusPending, records.StatusSent}, records.StatusConfirmed)
	switch {
	case errors.Is(err, records.ErrStatusConflict):
		// Lost a race: a concurrent confirm is fine, a concurrent cancel is not.
		current, getErr := s.repo.GetAppointment(ctx, id)
		if getErr == nil && current.ConfirmationStatus == records.StatusConfirmed {
			return current, nil
		}
		return nil, ErrInvalidStatusTransition
	case err != nil:
		return nil, fmt.Errorf("confirm appointment: %w", err)
	}

	s.markReturning(ctx, updated.PatientID)
	s.logEvent(ctx, updated.ID, EventAppointmentConfirmed, map[string]any{})
	return updated, nil
}

// Cancel releases the slots and keeps the appointment row with its reason.
func (s *Service) Cancel(ctx context.Context, id int64, reason string) (*records.Appointment, error) {
	appt, err := s.repo.CancelAppointment(ctx, id, strings.TrimSpace(reason))
	if err != nil {
		if errors.Is(err, records.ErrAlreadyCancelled) {
			return nil, ErrInvalidStatusTransition
		}
		if errors.Is(err, records.ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.markReturning(ctx, appt.PatientID)
	s.logEvent(ctx, appt.ID, EventAppointmentCancelled, map[string]any{"reason": appt.CancelReason})
	return appt, nil
}

// MarkConfirmationSent moves Pending to Sent once the confirmation e-mail
// went out. Any other status is left alone.
func (s *Service) MarkConfirmationSent(ctx context.Context, id int64) (*records.Appointment, error) {
	appt, err := s.repo.SetConfirmationStatus(ctx, id,
		[]records.ConfirmationStatus{records.StatusPending}, records.StatusSent)
	if err != nil {
		if errors.Is(err, records.ErrStatusConflict) {
			return s.repo.GetAppointment(ctx, id)
		}
		return nil, err
	}
	s.logEvent(ctx, id, EventConfirmationSent, map[string]any{})
	return appt, nil
}

func (s *Service) MarkFormSent(ctx context.Context, id int64) (*records.Appointment, error) {
	appt, err := s.repo.MarkFormSent(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logEvent(ctx, id, EventFormSent, map[string]any{})
	return appt, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*records.Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

func (s *Service) markReturning(ctx context.Context, patientID int64) {
	if _, err := s.repo.SetPatientType(ctx, patientID, records.PatientReturning); err != nil {
		s.logger.Warn("failed to mark patient returning", "patient_id", patientID, "error", err)
	}
}

func (s *Service) logEvent(ctx context.Context, appointmentID int64, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to marshal event payload", "event", eventType, "error", err)
		data = nil
	}

	apptID := appointmentID
	ev := records.EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Warn("failed to insert event log", "event", eventType, "appointment_id", appointmentID, "error", err)
	}
}
