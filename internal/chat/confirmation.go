package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hackgods/clinic-appointment-assistant/internal/booking"
	"github.com/hackgods/clinic-appointment-assistant/internal/extract"
	"github.com/hackgods/clinic-appointment-assistant/internal/records"
)

const editPrompt = "What would you like to change? You can update:\n" +
	"1. Patient Information\n2. Appointment Details\n3. Insurance Information"

// Section edits need an explicit choice: the menu number, or a change
// verb next to a section word. Anything else leaves the state alone.
func (e *Engine) confirmation(ctx context.Context, msg string, st *SessionState) string {
	choice := strings.TrimSpace(msg)
	wantsChange := hasWord(msg, "no", "change", "edit", "update", "modify", "different", "reschedule", "switch")

	switch {
	case hasWord(msg, "yes", "confirm", "proceed", "correct") && !wantsChange:
		return e.finalize(ctx, st)
	case choice == "3" || containsAny(msg, "insurance information") ||
		(wantsChange && (hasWord(msg, "insurance", "carrier") || containsAny(msg, "member id", "group number"))):
		st.Insurance = extract.Insurance{}
		st.Stage = StageInsurance
		return "Sure. " + askInsurance
	case choice == "1" || containsAny(msg, "patient information", "personal information", "my details") ||
		(wantsChange && hasWord(msg, "name", "email", "phone", "birthday", "dob", "address")):
		return e.restartDetails(st)
	case choice == "2" || containsAny(msg, "appointment details") ||
		(wantsChange && hasWord(msg, "appointment", "date", "day", "time", "slot", "doctor")) ||
		hasWord(msg, "reschedule"):
		st.Selected = nil
		st.AvailableSlots = nil
		st.Stage = StageScheduling
		return "No problem, let's pick a different time. " + askDate
	case wantsChange:
		return editPrompt
	}
	return "I didn't quite understand your response. Please type 'yes' to confirm your appointment or 'no' to make changes."
}

// restartDetails collects the patient details from scratch. The lookup
// runs again afterwards, so duration and doctor may change.
func (e *Engine) restartDetails(st *SessionState) string {
	st.Patient = extract.PatientFields{}
	st.PatientID = 0
	st.PatientType = ""
	st.Duration = 0
	st.Selected = nil
	st.AvailableSlots = nil
	st.Insurance = extract.Insurance{}
	st.Stage = StageGreeting
	st.Asking = extract.FieldName
	return "Okay, let's go over your details again. " + fieldPrompts[extract.FieldName]
}

// finalize books the held slot and sends the follow-up e-mails. Delivery
// problems are reported but never undo the booking.
func (e *Engine) finalize(ctx context.Context, st *SessionState) string {
	sel := st.Selected
	if sel == nil {
		st.Stage = StageScheduling
		return "I don't have a time slot for you yet. " + askDate
	}

	appt, err := e.deps.Booking.Book(ctx, records.BookingRequest{
		PatientID:        st.PatientID,
		PatientName:      st.Patient.Name,
		Doctor:           sel.Doctor,
		Date:             sel.Date,
		StartTime:        sel.StartTime,
		Duration:         st.Duration,
		InsuranceCarrier: st.Insurance.Carrier,
		MemberID:         st.Insurance.MemberID,
		GroupNumber:      st.Insurance.GroupNumber,
	})
	switch {
	case errors.Is(err, records.ErrSlotNotAvailable):
		st.Selected = nil
		st.AvailableSlots = nil
		st.Stage = StageScheduling
		return "I'm sorry, that time slot was just taken by someone else. " + askDate
	case errors.Is(err, booking.ErrSlotBeingBooked):
		// The slot may still be free; the selection stays put.
		return fmt.Sprintf("Another booking with %s is finishing up right now. Your %s slot is still held for you, so please type 'yes' again in a moment.",
			sel.Doctor, sel.StartTime)
	case err != nil:
		e.deps.Logger.Error("booking failed", "patient_id", st.PatientID, "error", err)
		return "I'm sorry, I couldn't complete your booking right now. Please type 'yes' to try again, or call the office."
	}

	st.AppointmentID = appt.ID
	st.Stage = StageReminders
	st.EdgeCase = ""

	patient := e.patientRecord(ctx, st)
	var b strings.Builder
	fmt.Fprintf(&b, "Your appointment is confirmed! Appointment ID: %d. You're seeing %s on %s from %s to %s.",
		appt.ID, appt.Doctor, records.FormatDate(appt.Date), appt.StartTime, appt.EndTime)

	if d := e.deps.Mailer.SendConfirmation(ctx, patient, *appt); d.Success {
		if _, err := e.deps.Booking.MarkConfirmationSent(ctx, appt.ID); err != nil {
			e.deps.Logger.Warn("failed to mark confirmation sent", "appointment_id", appt.ID, "error", err)
		}
		fmt.Fprintf(&b, "\n\nA confirmation email has been sent to %s.", patient.Email)
	} else {
		e.deps.Logger.Warn("confirmation email not delivered", "appointment_id", appt.ID, "message", d.Message)
		b.WriteString("\n\nI'm sorry, I couldn't send your confirmation email, but your appointment is booked. Please call the office if you need the details in writing.")
	}

	if d := e.deps.Mailer.SendIntakeForm(ctx, patient, *appt); d.Success {
		if _, err := e.deps.Booking.MarkFormSent(ctx, appt.ID); err != nil {
			e.deps.Logger.Warn("failed to mark form sent", "appointment_id", appt.ID, "error", err)
		}
		st.FormStatus = FormSent
		b.WriteString(" I've also emailed you the patient intake form. Please complete it before your visit.")
	} else {
		e.deps.Logger.Warn("intake form email not delivered", "appointment_id", appt.ID, "message", d.Message)
		b.WriteString(" We couldn't email the intake form, so please arrive 15 minutes early to fill it in at the front desk.")
	}

	for _, r := range e.deps.Reminders.ScheduleImmediate(ctx, appt.ID) {
		if r.Success {
			b.WriteString(" Since your appointment is coming up soon, I've sent you a reminder with links to confirm or cancel.")
			break
		}
	}
	return b.String()
}

func (e *Engine) patientRecord(ctx context.Context, st *SessionState) records.Patient {
	if p, err := e.deps.Patients.GetPatient(ctx, st.PatientID); err == nil {
		return *p
	}
	return records.Patient{
		ID:          st.PatientID,
		Name:        st.Patient.Name,
		DateOfBirth: st.Patient.DateOfBirth,
		Email:       st.Patient.Email,
		Phone:       st.Patient.Phone,
		PatientType: st.PatientType,
	}
}
