package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hackgods/clinic-appointment-assistant/internal/booking"
	"github.com/hackgods/clinic-appointment-assistant/internal/extract"
	"github.com/hackgods/clinic-appointment-assistant/internal/records"
)

// maxOffers caps how many openings one reply lists.
const maxOffers = 10

const askInsurance = "Now, let's collect your insurance information. Please provide your insurance carrier, member ID, and group number."

func (e *Engine) scheduling(ctx context.Context, msg string, st *SessionState) string {
	if st.EdgeCase == EdgePatientCancels {
		return e.cancelBeforeBooking(msg, st)
	}
	if containsAny(msg, "cancel") {
		st.EdgeCase = EdgePatientCancels
		return "I understand you want to cancel. Could you please provide the reason for cancellation? This helps us improve our services."
	}

	if n, err := strconv.Atoi(strings.TrimSuffix(msg, ".")); err == nil {
		return e.selectSlot(n, st)
	}

	date, err := extract.AppointmentDate(msg, e.today())
	switch {
	case errors.Is(err, extract.ErrPastDate):
		return "That date has already passed. " + askDate
	case err != nil:
		return askDate
	}
	return e.offerSlots(ctx, date, st)
}

func (e *Engine) cancelBeforeBooking(msg string, st *SessionState) string {
	reason := strings.TrimSpace(msg)
	if reason == "" {
		return "Could you please tell me the reason for cancelling?"
	}
	st.CancelReason = reason
	st.Stage = StageCompleted
	st.AvailableSlots = nil
	st.Selected = nil
	e.deps.Logger.Info("patient cancelled before booking", "patient_id", st.PatientID, "reason", reason)
	return "Thank you for letting us know. I've noted your reason and nothing has been booked. " +
		"If you'd like to schedule later, just say \"new appointment\"."
}

func (e *Engine) selectSlot(n int, st *SessionState) string {
	if len(st.AvailableSlots) == 0 {
		return askDate
	}
	if n < 1 || n > len(st.AvailableSlots) {
		return "Please select a valid slot number from the list."
	}
	chosen := st.AvailableSlots[n-1]
	st.Selected = &chosen
	st.EdgeCase = ""
	st.Stage = StageInsurance
	return fmt.Sprintf("Great! I've selected your appointment with %s on %s from %s to %s. %s",
		chosen.Doctor, records.FormatDate(chosen.Date), chosen.StartTime, chosen.EndTime, askInsurance)
}

func (e *Engine) offerSlots(ctx context.Context, date time.Time, st *SessionState) string {
	day := records.FormatDate(date)
	pref := st.Patient.DoctorPreference

	offers, err := e.deps.Booking.FindSlots(ctx, date, pref, st.Duration)
	if err != nil {
		e.deps.Logger.Error("slot search failed", "date", day, "error", err)
		return "I'm sorry, I couldn't check availability right now. Please try again in a moment or call the office."
	}
	st.RequestedDate = day
	if len(offers) == 0 {
		st.AvailableSlots = nil
		return fmt.Sprintf("I'm sorry, there are no available slots for %s. Please try another date.", day)
	}
	if len(offers) > maxOffers {
		offers = offers[:maxOffers]
	}
	st.AvailableSlots = offers

	list := formatOffers(offers)
	if !booking.AnyDoctor(pref) && !offersInclude(offers, pref) {
		st.EdgeCase = EdgeDoctorFullyBooked
		return fmt.Sprintf("I'm sorry, %s is fully booked on %s. However, we have the following slots available with other doctors:\n%s\n\nPlease select a slot by entering the number.",
			pref, day, list)
	}
	return fmt.Sprintf("Great! Here are the available slots for %s:\n%s\n\nPlease select a slot by entering the number.", day, list)
}

func formatOffers(offers []booking.SlotOffer) string {
	lines := make([]string, len(offers))
	for i, o := range offers {
		lines[i] = fmt.Sprintf("%d. %s - %s with %s", i+1, o.StartTime, o.EndTime, o.Doctor)
	}
	return strings.Join(lines, "\n")
}

func offersInclude(offers []booking.SlotOffer, doctor string) bool {
	for _, o := range offers {
		if booking.SameDoctor(o.Doctor, doctor) {
			return true
		}
	}
	return false
}
