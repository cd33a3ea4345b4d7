package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointment-assistant/internal/booking"
	"github.com/hackgods/clinic-appointment-assistant/internal/chat"
	"github.com/hackgods/clinic-appointment-assistant/internal/logging"
	"github.com/hackgods/clinic-appointment-assistant/internal/records"
)

const linkCancelReason = "Cancelled via reminder link"

type handlers struct {
	cfg    RouterConfig
	logger *logging.Logger
	now    func() time.Time
}

func (h *handlers) today() time.Time {
	return records.DateOf(h.now().In(h.cfg.Location))
}

func (h *handlers) chatTurn(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "empty_message", "message is required")
		return
	}

	ctx := r.Context()
	id := strings.TrimSpace(req.SessionID)
	state := chat.NewSession()
	if id == "" {
		id = uuid.NewString()
	} else {
		stored, ok, err := h.cfg.Sessions.Get(ctx, id)
		if err != nil {
			h.logger.Error("load chat session failed", "session_id", id, "error", err)
			writeError(w, http.StatusServiceUnavailable, "session_unavailable", "we couldn't load your conversation, please try again shortly")
			return
		}
		if ok {
			state = stored
		}
	}

	reply, next := h.cfg.Chat.HandleTurn(ctx, req.Message, state)
	if err := h.cfg.Sessions.Put(ctx, id, next); err != nil {
		// The reply is still useful; the next turn may repeat this one.
		h.logger.Error("save chat session failed", "session_id", id, "error", err)
	}

	writeJSON(w, http.StatusOK, ChatResponse{SessionID: id, Response: reply, Stage: next.Stage})
}

func (h *handlers) resetChat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := h.cfg.Sessions.Delete(r.Context(), id); err != nil {
		h.logger.Error("delete chat session failed", "session_id", id, "error", err)
		writeError(w, http.StatusServiceUnavailable, "session_unavailable", "please try again shortly")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) listSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, err := records.ParseDate(q.Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}
	duration := records.SlotMinutes
	if v := q.Get("duration"); v != "" {
		duration, err = strconv.Atoi(v)
		if err != nil || duration <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_duration", "duration must be a positive number of minutes")
			return
		}
	}

	offers, err := h.cfg.Booking.FindSlots(r.Context(), date, q.Get("doctor"), duration)
	if err != nil {
		h.handleError(w, err)
		return
	}
	resp := make([]SlotResponse, len(offers))
	for i, o := range offers {
		resp[i] = SlotResponse{Doctor: o.Doctor, Date: records.FormatDate(o.Date), StartTime: o.StartTime, EndTime: o.EndTime}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) createAppointment(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	date, err := records.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}
	if date.Before(h.today()) {
		writeError(w, http.StatusBadRequest, "past_date", "appointments cannot be booked in the past")
		return
	}
	if _, err := records.NormalizeClock(req.StartTime); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_start_time", "start_time must be HH:MM")
		return
	}

	patient, err := h.cfg.Patients.GetPatient(r.Context(), req.PatientID)
	if err != nil {
		h.handleError(w, err)
		return
	}
	duration := req.Duration
	if duration == 0 {
		duration = records.DurationFor(patient.PatientType)
	}

	appt, err := h.cfg.Booking.Book(r.Context(), records.BookingRequest{
		PatientID:        patient.ID,
		PatientName:      patient.Name,
		Doctor:           req.Doctor,
		Date:             date,
		StartTime:        req.StartTime,
		Duration:         duration,
		InsuranceCarrier: firstNonEmpty(req.InsuranceCarrier, patient.InsuranceCarrier),
		MemberID:         firstNonEmpty(req.MemberID, patient.MemberID),
		GroupNumber:      firstNonEmpty(req.GroupNumber, patient.GroupNumber),
	})
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := appointmentID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	appt, err := h.cfg.Booking.Get(r.Context(), id)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) confirmAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := appointmentID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	appt, err := h.cfg.Booking.Confirm(r.Context(), id)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := appointmentID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req CancelAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		writeError(w, http.StatusBadRequest, "reason_required", "a cancellation reason is required")
		return
	}
	appt, err := h.cfg.Booking.Cancel(r.Context(), id, req.Reason)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

// confirmLink answers the confirm/cancel links in e-mails with a small
// HTML page, since it is opened in a browser.
func (h *handlers) confirmLink(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id, err := strconv.ParseInt(q.Get("appointment_id"), 10, 64)
	if err != nil || id <= 0 {
		writeHTML(w, http.StatusBadRequest, "Invalid link", "This link is missing a valid appointment number. Please call the office.")
		return
	}

	ctx := r.Context()
	switch q.Get("action") {
	case "confirm":
		appt, err := h.cfg.Booking.Confirm(ctx, id)
		if err != nil {
			h.linkError(w, err)
			return
		}
		writeHTML(w, http.StatusOK, "Appointment confirmed",
			fmt.Sprintf("Thank you! Your appointment with %s on %s at %s is confirmed.",
				appt.Doctor, records.FormatDate(appt.Date), appt.StartTime))
	case "cancel":
		reason := strings.TrimSpace(q.Get("reason"))
		if reason == "" {
			reason = linkCancelReason
		}
		appt, err := h.cfg.Booking.Cancel(ctx, id, reason)
		if err != nil {
			h.linkError(w, err)
			return
		}
		writeHTML(w, http.StatusOK, "Appointment cancelled",
			fmt.Sprintf("Your appointment with %s on %s at %s has been cancelled. We hope to see you another time.",
				appt.Doctor, records.FormatDate(appt.Date), appt.StartTime))
	default:
		writeHTML(w, http.StatusBadRequest, "Invalid link", "This link has an unknown action. Please call the office.")
	}
}

func (h *handlers) linkError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, records.ErrAppointmentNotFound):
		writeHTML(w, http.StatusNotFound, "Appointment not found", "We couldn't find this appointment. Please call the office.")
	case errors.Is(err, booking.ErrInvalidStatusTransition):
		writeHTML(w, http.StatusConflict, "Nothing to change", "This appointment has already been cancelled. Please call the office to book a new one.")
	default:
		h.logger.Error("confirmation link failed", "error", err)
		writeHTML(w, http.StatusInternalServerError, "Something went wrong", "We couldn't update your appointment. Please try the link again later or call the office.")
	}
}

func (h *handlers) dailyReport(w http.ResponseWriter, r *http.Request) {
	date := h.today()
	if v := r.URL.Query().Get("date"); v != "" {
		d, err := records.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		date = d
	}
	rep, err := h.cfg.Reports.Daily(r.Context(), date)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *handlers) weeklyReport(w http.ResponseWriter, r *http.Request) {
	today := h.today()
	// Monday of the current week.
	start := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))
	if v := r.URL.Query().Get("start"); v != "" {
		d, err := records.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "start must be YYYY-MM-DD")
			return
		}
		start = d
	}
	rep, err := h.cfg.Reports.Weekly(r.Context(), start)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *handlers) handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, records.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, records.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, records.ErrSlotNotAvailable):
		writeError(w, http.StatusConflict, "slot_not_available", err.Error())
	case errors.Is(err, booking.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, booking.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, booking.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		h.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong, please retry or call the office")
	}
}

func appointmentID(w http.ResponseWriter, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func writeHTML(w http.ResponseWriter, status int, title, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, "<!DOCTYPE html><html><head><title>%s</title></head><body><h1>%s</h1><p>%s</p></body></html>",
		html.EscapeString(title), html.EscapeString(title), html.EscapeString(body))
}
