// Package reports builds the admin summaries of the appointment book.
package reports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hackgods/clinic-appointment-assistant/internal/logging"
	"github.com/hackgods/clinic-appointment-assistant/internal/records"
	"github.com/hackgods/clinic-appointment-assistant/internal/textgen"
)

// Line is one appointment joined with the patient's contact details.
type Line struct {
	AppointmentID      int64                      `json:"appointment_id"`
	PatientID          int64                      `json:"patient_id"`
	PatientName        string                     `json:"patient_name"`
	Doctor             string                     `json:"doctor"`
	StartTime          string                     `json:"start_time"`
	EndTime            string                     `json:"end_time"`
	Duration           int                        `json:"duration_minutes"`
	ConfirmationStatus records.ConfirmationStatus `json:"confirmation_status"`
	RemindersSent      int                        `json:"reminders_sent"`
	FormSent           bool                       `json:"form_sent"`
	Email              string                     `json:"email,omitempty"`
	Phone              string                     `json:"phone,omitempty"`
	PatientType        records.PatientType        `json:"patient_type,omitempty"`
	InsuranceCarrier   string                     `json:"insurance_carrier,omitempty"`
}

type Counts struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Sent      int `json:"sent"`
	Confirmed int `json:"confirmed"`
	Cancelled int `json:"cancelled"`
	New       int `json:"new_patients"`
	Returning int `json:"returning_patients"`
}

type Daily struct {
	Date         string `json:"date"`
	Counts       Counts `json:"counts"`
	Appointments []Line `json:"appointments"`
	Summary      string `json:"summary"`
}

type Weekly struct {
	From    string  `json:"from"`
	To      string  `json:"to"`
	Total   int     `json:"total_appointments"`
	Days    []Daily `json:"days"`
	Summary string  `json:"summary"`
}

type Service struct {
	repo   records.Repository
	gen    textgen.Generator
	logger *logging.Logger
}

func NewService(repo records.Repository, gen textgen.Generator, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, gen: gen, logger: logger}
}

const reportRole = "You are an administrative assistant for a medical clinic. " +
	"Write a short, professional appointment report with a summary of key statistics followed by notable details. " +
	"Use plain text."

// Daily lists the appointments on date with contact data and a written
// summary. A failed model call yields a fixed summary instead.
func (s *Service) Daily(ctx context.Context, date time.Time) (*Daily, error) {
	d, err := s.day(ctx, date)
	if err != nil {
		return nil, err
	}
	fallback := dailyFallback(d)
	if d.Counts.Total == 0 {
		d.Summary = fallback
		return d, nil
	}
	d.Summary = textgen.GenerateOr(ctx, s.gen, reportRole, dailyPrompt(d), fallback)
	return d, nil
}

// Weekly covers the seven days starting at from.
func (s *Service) Weekly(ctx context.Context, from time.Time) (*Weekly, error) {
	start := records.DateOf(from)
	w := &Weekly{From: records.FormatDate(start), To: records.FormatDate(start.AddDate(0, 0, 6))}
	for i := 0; i < 7; i++ {
		d, err := s.day(ctx, start.AddDate(0, 0, i))
		if err != nil {
			return nil, err
		}
		d.Summary = dailyFallback(d)
		w.Days = append(w.Days, *d)
		w.Total += d.Counts.Total
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Weekly Report: %s to %s\nTotal Appointments: %d\n\n", w.From, w.To, w.Total)
	for _, d := range w.Days {
		fmt.Fprintf(&b, "Date: %s\nAppointments: %d (confirmed %d, cancelled %d)\n\n",
			d.Date, d.Counts.Total, d.Counts.Confirmed, d.Counts.Cancelled)
	}
	fallback := b.String()
	if w.Total == 0 {
		w.Summary = fallback
		return w, nil
	}
	w.Summary = textgen.GenerateOr(ctx, s.gen, reportRole,
		fallback+"Write a weekly report with a summary for the week and a brief breakdown per day.", fallback)
	return w, nil
}

func (s *Service) day(ctx context.Context, date time.Time) (*Daily, error) {
	day := records.DateOf(date)
	appts, err := s.repo.ListAppointmentsBetween(ctx, day, day)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}

	d := &Daily{Date: records.FormatDate(day), Appointments: make([]Line, 0, len(appts))}
	patients := make(map[int64]*records.Patient)
	for _, a := range appts {
		line := Line{
			AppointmentID:      a.ID,
			PatientID:          a.PatientID,
			PatientName:        a.PatientName,
			Doctor:             a.Doctor,
			StartTime:          a.StartTime,
			EndTime:            a.EndTime,
			Duration:           a.Duration,
			ConfirmationStatus: a.ConfirmationStatus,
			RemindersSent:      a.RemindersSent,
			FormSent:           a.FormSent,
			InsuranceCarrier:   a.InsuranceCarrier,
		}
		p, seen := patients[a.PatientID]
		if !seen {
			p, err = s.repo.GetPatient(ctx, a.PatientID)
			if err != nil {
				s.logger.Warn("report: patient missing", "patient_id", a.PatientID, "error", err)
				p = nil
			}
			patients[a.PatientID] = p
		}
		if p != nil {
			line.Email = p.Email
			line.Phone = p.Phone
			line.PatientType = p.PatientType
			if line.PatientName == "" {
				line.PatientName = p.Name
			}
		}
		d.Appointments = append(d.Appointments, line)
		d.Counts.add(line)
	}
	return d, nil
}

func (c *Counts) add(l Line) {
	c.Total++
	switch l.ConfirmationStatus {
	case records.StatusPending:
		c.Pending++
	case records.StatusSent:
		c.Sent++
	case records.StatusConfirmed:
		c.Confirmed++
	case records.StatusCancelled:
		c.Cancelled++
	}
	switch l.PatientType {
	case records.PatientNew:
		c.New++
	case records.PatientReturning:
		c.Returning++
	}
}

func dailyPrompt(d *Daily) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Date: %s\nTotal Appointments: %d\n\nAppointment Details:\n", d.Date, d.Counts.Total)
	for i, l := range d.Appointments {
		fmt.Fprintf(&b, "Appointment #%d: %s with %s, %s-%s, %s, status %s, reminders sent %d, form sent %t\n",
			i+1, l.PatientName, l.Doctor, l.StartTime, l.EndTime, l.PatientType, l.ConfirmationStatus, l.RemindersSent, l.FormSent)
	}
	return b.String()
}

func dailyFallback(d *Daily) string {
	if d.Counts.Total == 0 {
		return fmt.Sprintf("No appointments scheduled for %s.", d.Date)
	}
	c := d.Counts
	return fmt.Sprintf("Daily report for %s: %d appointments (%d confirmed, %d awaiting confirmation, %d cancelled). "+
		"%d new and %d returning patients.",
		d.Date, c.Total, c.Confirmed, c.Pending+c.Sent, c.Cancelled, c.New, c.Returning)
}
