package chat

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/hackgods/clinic-appointment-assistant/internal/booking"
	"github.com/hackgods/clinic-appointment-assistant/internal/extract"
	"github.com/hackgods/clinic-appointment-assistant/internal/logging"
	"github.com/hackgods/clinic-appointment-assistant/internal/matching"
	"github.com/hackgods/clinic-appointment-assistant/internal/metrics"
	"github.com/hackgods/clinic-appointment-assistant/internal/notify"
	"github.com/hackgods/clinic-appointment-assistant/internal/records"
	"github.com/hackgods/clinic-appointment-assistant/internal/reminders"
	"github.com/hackgods/clinic-appointment-assistant/internal/textgen"
)

type PatientResolver interface {
	Resolve(ctx context.Context, c matching.Candidate) (matching.Resolution, error)
}

type Booker interface {
	FindSlots(ctx context.Context, date time.Time, doctorPref string, duration int) ([]booking.SlotOffer, error)
	Book(ctx context.Context, req records.BookingRequest) (*records.Appointment, error)
	MarkConfirmationSent(ctx context.Context, id int64) (*records.Appointment, error)
	MarkFormSent(ctx context.Context, id int64) (*records.Appointment, error)
}

type PatientStore interface {
	GetPatient(ctx context.Context, id int64) (*records.Patient, error)
	UpdatePatientInsurance(ctx context.Context, id int64, carrier, memberID, groupNumber string) (*records.Patient, error)
}

type Mailer interface {
	SendConfirmation(ctx context.Context, p records.Patient, a records.Appointment) notify.Delivery
	SendIntakeForm(ctx context.Context, p records.Patient, a records.Appointment) notify.Delivery
}

type ReminderSender interface {
	SendReminder(ctx context.Context, appointmentID int64, t records.ReminderType) reminders.Result
	ScheduleImmediate(ctx context.Context, appointmentID int64) []reminders.Result
}

// Deps are the collaborators a turn may touch. Generator is optional;
// every reply has a fixed fallback.
type Deps struct {
	Matcher   PatientResolver
	Booking   Booker
	Patients  PatientStore
	Mailer    Mailer
	Reminders ReminderSender
	Insurance *extract.InsuranceExtractor
	Generator textgen.Generator
	Location  *time.Location
	Logger    *logging.Logger
	Metrics   *metrics.AssistantMetrics
}

type Engine struct {
	deps Deps
	now  func() time.Time
}

func NewEngine(d Deps) *Engine {
	if d.Logger == nil {
		d.Logger = logging.Default()
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Insurance == nil {
		d.Insurance = extract.NewInsuranceExtractor(d.Generator, d.Logger)
	}
	return &Engine{deps: d, now: time.Now}
}

// WithClock overrides the time source used for date checks.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func (e *Engine) today() time.Time {
	return records.DateOf(e.now().In(e.deps.Location))
}

// HandleTurn consumes one patient message and returns the reply together
// with the updated state. The input state is never modified in place.
func (e *Engine) HandleTurn(ctx context.Context, message string, state SessionState) (string, SessionState) {
	st := clone(state)
	if st.Stage == "" {
		st.Stage = StageGreeting
	}
	e.deps.Metrics.ObserveChatTurn(string(st.Stage))
	msg := strings.TrimSpace(message)

	var reply string
	switch st.Stage {
	case StageGreeting, StagePatientLookup:
		reply = e.greeting(ctx, msg, &st)
	case StageScheduling:
		reply = e.scheduling(ctx, msg, &st)
	case StageInsurance:
		reply = e.insurance(ctx, msg, &st)
	case StageConfirmation:
		reply = e.confirmation(ctx, msg, &st)
	case StageReminders:
		reply = e.reminders(ctx, msg, &st)
	case StageCompleted:
		reply = e.completed(msg, &st)
	default:
		e.deps.Logger.Warn("unknown chat stage, restarting", "stage", st.Stage)
		st = NewSession()
		reply = e.greeting(ctx, msg, &st)
	}
	return reply, st
}

func clone(s SessionState) SessionState {
	out := s
	out.AvailableSlots = append([]booking.SlotOffer(nil), s.AvailableSlots...)
	if s.Selected != nil {
		sel := *s.Selected
		out.Selected = &sel
	}
	return out
}

func containsAny(s string, words ...string) bool {
	l := strings.ToLower(s)
	for _, w := range words {
		if strings.Contains(l, w) {
			return true
		}
	}
	return false
}

// hasWord matches whole words only, so "update" does not count as "date".
func hasWord(s string, words ...string) bool {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	for _, f := range fields {
		for _, w := range words {
			if f == w {
				return true
			}
		}
	}
	return false
}

// phrase lets the model reword a fixed reply. The fallback is returned
// as is when no model is configured or the call fails.
func (e *Engine) phrase(ctx context.Context, instruction, fallback string) string {
	if e.deps.Generator == nil {
		return fallback
	}
	return textgen.GenerateOr(ctx, e.deps.Generator, assistantRole,
		instruction+"\n\nReply with a single short message. Base it on: "+fallback, fallback)
}

const assistantRole = "You are a friendly, professional scheduling assistant for a medical clinic. " +
	"Keep replies brief and ask for one thing at a time."
