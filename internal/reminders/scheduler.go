package reminders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hackgods/clinic-appointment-assistant/internal/logging"
	"github.com/hackgods/clinic-appointment-assistant/internal/metrics"
	"github.com/hackgods/clinic-appointment-assistant/internal/notify"
	"github.com/hackgods/clinic-appointment-assistant/internal/records"
	redisclient "github.com/hackgods/clinic-appointment-assistant/internal/redis"
)

// Sender delivers one rendered reminder.
type Sender interface {
	SendReminder(ctx context.Context, t records.ReminderType, p records.Patient, a records.Appointment) notify.Delivery
}

// Result is the outcome of one reminder attempt.
type Result struct {
	AppointmentID int64                `json:"appointment_id"`
	Type          records.ReminderType `json:"type"`
	Success       bool                 `json:"success"`
	Message       string               `json:"message"`
}

type Config struct {
	LookaheadDays int
	Location      *time.Location
}

type Scheduler struct {
	repo    records.Repository
	sender  Sender
	locker  redisclient.Locker
	cfg     Config
	logger  *logging.Logger
	metrics *metrics.AssistantMetrics
	now     func() time.Time
}

func NewScheduler(repo records.Repository, sender Sender, locker redisclient.Locker, cfg Config, logger *logging.Logger, m *metrics.AssistantMetrics) *Scheduler {
	if cfg.LookaheadDays < 2 {
		cfg.LookaheadDays = 7
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{
		repo:    repo,
		sender:  sender,
		locker:  locker,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// WithClock overrides the time source, for tests and replays.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

func (s *Scheduler) today() time.Time {
	return records.DateOf(s.now().In(s.cfg.Location))
}

// ProcessDue evaluates every live appointment from today through the
// lookahead window and sends whatever the policy says is due. An
// appointment gets at most one reminder per local calendar day, however
// often the worker ticks. Each appointment is handled under its own lock
// so a concurrent run, or a chat-triggered reminder, cannot double count.
func (s *Scheduler) ProcessDue(ctx context.Context) ([]Result, error) {
	today := s.today()
	appts, err := s.repo.ListAppointmentsBetween(ctx, today, today.AddDate(0, 0, s.cfg.LookaheadDays))
	if err != nil {
		return nil, fmt.Errorf("list upcoming appointments: %w", err)
	}

	var results []Result
	for _, a := range appts {
		if a.ConfirmationStatus == records.StatusCancelled {
			continue
		}
		err := s.locker.WithLock(ctx, redisclient.ReminderKey(a.ID), func(lockCtx context.Context) error {
			current, err := s.repo.GetAppointment(lockCtx, a.ID)
			if err != nil {
				return err
			}
			if current.ConfirmationStatus == records.StatusCancelled || s.remindedOn(current, today) {
				return nil
			}
			t, due := DetermineType(records.DaysBetween(today, current.Date), current.RemindersSent)
			if !due {
				return nil
			}
			results = append(results, s.deliver(lockCtx, t, *current))
			return nil
		})
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			s.logger.Info("reminder already in progress", "appointment_id", a.ID)
			continue
		}
		if err != nil {
			s.logger.Error("reminder evaluation failed", "appointment_id", a.ID, "error", err)
		}
	}
	return results, nil
}

// SendReminder sends a specific reminder type now.
func (s *Scheduler) SendReminder(ctx context.Context, appointmentID int64, t records.ReminderType) Result {
	var res Result
	err := s.locker.WithLock(ctx, redisclient.ReminderKey(appointmentID), func(lockCtx context.Context) error {
		appt, err := s.repo.GetAppointment(lockCtx, appointmentID)
		if err != nil {
			return err
		}
		if appt.ConfirmationStatus == records.StatusCancelled {
			res = Result{AppointmentID: appointmentID, Type: t, Message: "appointment is cancelled"}
			return nil
		}
		if records.DaysBetween(s.today(), appt.Date) < 0 {
			res = Result{AppointmentID: appointmentID, Type: t, Message: "appointment has already passed"}
			return nil
		}
		res = s.deliver(lockCtx, t, *appt)
		return nil
	})
	switch {
	case err == nil:
		return res
	case errors.Is(err, records.ErrAppointmentNotFound):
		return Result{AppointmentID: appointmentID, Type: t, Message: "appointment not found"}
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		return Result{AppointmentID: appointmentID, Type: t, Message: "another reminder is being sent, try again shortly"}
	default:
		s.logger.Error("send reminder failed", "appointment_id", appointmentID, "error", err)
		return Result{AppointmentID: appointmentID, Type: t, Message: "reminder could not be sent"}
	}
}

// ScheduleImmediate compresses the cadence for bookings a day or less
// away: the form-and-confirm reminder goes out now and, if it fails, the
// basic and final reminders are both attempted.
func (s *Scheduler) ScheduleImmediate(ctx context.Context, appointmentID int64) []Result {
	appt, err := s.repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return []Result{{AppointmentID: appointmentID, Message: "appointment not found"}}
	}
	days := records.DaysBetween(s.today(), appt.Date)
	if days < 0 || days > 1 {
		return nil
	}

	first := s.SendReminder(ctx, appointmentID, records.ReminderFormAndConfirm)
	if first.Success {
		return []Result{first}
	}
	return []Result{
		first,
		s.SendReminder(ctx, appointmentID, records.ReminderBasic),
		s.SendReminder(ctx, appointmentID, records.ReminderFinal),
	}
}

func (s *Scheduler) remindedOn(a *records.Appointment, day time.Time) bool {
	return a.LastReminderAt != nil && records.DateOf(a.LastReminderAt.In(s.cfg.Location)).Equal(day)
}

// deliver sends and, only on success, bumps the counter by one.
func (s *Scheduler) deliver(ctx context.Context, t records.ReminderType, appt records.Appointment) Result {
	res := Result{AppointmentID: appt.ID, Type: t}

	patient, err := s.repo.GetPatient(ctx, appt.PatientID)
	if err != nil {
		res.Message = "patient record not found"
		s.metrics.ObserveReminder(strconv.Itoa(int(t)), false)
		return res
	}

	d := s.sender.SendReminder(ctx, t, *patient, appt)
	s.metrics.ObserveReminder(strconv.Itoa(int(t)), d.Success)
	if !d.Success {
		s.logger.Warn("reminder delivery failed", "appointment_id", appt.ID, "type", t.String(), "message", d.Message)
		res.Message = d.Message
		return res
	}

	if _, err := s.repo.IncrementRemindersSent(ctx, appt.ID, s.now()); err != nil {
		s.logger.Error("reminder sent but counter not updated", "appointment_id", appt.ID, "error", err)
		res.Success = true
		res.Message = "reminder sent; counter update failed"
		return res
	}

	s.logger.Info("reminder sent", "appointment_id", appt.ID, "type", t.String())
	res.Success = true
	res.Message = d.Message
	return res
}
