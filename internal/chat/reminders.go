package chat

import (
	"context"
	"fmt"

	"github.com/hackgods/clinic-appointment-assistant/internal/extract"
	"github.com/hackgods/clinic-appointment-assistant/internal/records"
)

const allSet = "Your appointment is all set! If you have any questions or need to make changes, just let me know."

const maxChatReminders = 3

// reminders nudges the patient about the intake form, up to three times,
// until they say it is done.
func (e *Engine) reminders(ctx context.Context, msg string, st *SessionState) string {
	if st.FormStatus != FormSent || st.ReminderCount >= maxChatReminders {
		st.Stage = StageCompleted
		return allSet
	}
	if containsAny(msg, "done", "completed", "submitted", "filled") {
		st.FormStatus = FormCompleted
		st.EdgeCase = ""
		st.Stage = StageCompleted
		return "Thank you for completing your intake forms. Your appointment is all set!"
	}

	st.EdgeCase = EdgeFormNotFilled
	st.ReminderCount++
	res := e.deps.Reminders.SendReminder(ctx, st.AppointmentID, records.ReminderType(st.ReminderCount))
	if !res.Success {
		e.deps.Logger.Warn("chat reminder not sent", "appointment_id", st.AppointmentID, "count", st.ReminderCount, "message", res.Message)
		return "Is there anything else I can help you with regarding your upcoming appointment?"
	}
	return fmt.Sprintf("I noticed you haven't completed your intake forms yet. I've sent you reminder #%d of %d. Please complete them before your appointment.",
		st.ReminderCount, maxChatReminders)
}

func (e *Engine) completed(msg string, st *SessionState) string {
	if containsAny(msg, "new appointment", "another appointment") {
		*st = NewSession()
		st.Asking = extract.FieldName
		return "Sure, let's book another appointment. " + fieldPrompts[extract.FieldName]
	}
	return allSet
}
