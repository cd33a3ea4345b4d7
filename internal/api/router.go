package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hackgods/clinic-appointment-assistant/internal/booking"
	"github.com/hackgods/clinic-appointment-assistant/internal/chat"
	"github.com/hackgods/clinic-appointment-assistant/internal/logging"
	"github.com/hackgods/clinic-appointment-assistant/internal/records"
	"github.com/hackgods/clinic-appointment-assistant/internal/reports"
	"github.com/hackgods/clinic-appointment-assistant/internal/session"
)

type BookingService interface {
	FindSlots(ctx context.Context, date time.Time, doctorPref string, duration int) ([]booking.SlotOffer, error)
	Book(ctx context.Context, req records.BookingRequest) (*records.Appointment, error)
	Get(ctx context.Context, id int64) (*records.Appointment, error)
	Confirm(ctx context.Context, id int64) (*records.Appointment, error)
	Cancel(ctx context.Context, id int64, reason string) (*records.Appointment, error)
}

type PatientReader interface {
	GetPatient(ctx context.Context, id int64) (*records.Patient, error)
}

type ChatEngine interface {
	HandleTurn(ctx context.Context, message string, state chat.SessionState) (string, chat.SessionState)
}

type ReportService interface {
	Daily(ctx context.Context, date time.Time) (*reports.Daily, error)
	Weekly(ctx context.Context, from time.Time) (*reports.Weekly, error)
}

type RouterConfig struct {
	Chat     ChatEngine
	Sessions session.Store[chat.SessionState]
	Booking  BookingService
	Patients PatientReader
	Reports  ReportService
	Health   *HealthHandler
	Metrics  http.Handler
	Logger   *logging.Logger
	Location *time.Location
	// Now defaults to time.Now.
	Now func() time.Time
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	h := &handlers{cfg: cfg, logger: cfg.Logger, now: cfg.Now}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Post("/chat", h.chatTurn)
	r.Delete("/chat/{sessionID}", h.resetChat)

	r.Get("/slots", h.listSlots)
	r.Post("/appointments", h.createAppointment)
	r.Get("/appointments/{id}", h.getAppointment)
	r.Post("/appointments/{id}/confirm", h.confirmAppointment)
	r.Post("/appointments/{id}/cancel", h.cancelAppointment)

	// Target of the links in reminder e-mails.
	r.Get("/confirm", h.confirmLink)

	r.Get("/reports/daily", h.dailyReport)
	r.Get("/reports/weekly", h.weeklyReport)

	return r
}
