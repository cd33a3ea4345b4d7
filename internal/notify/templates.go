package notify

import (
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/hackgods/clinic-appointment-assistant/internal/records"
)

const signature = "Thank you,\nMedical Office Staff"

const intakeFormName = "New Patient Intake Form.pdf"

// ActionLink builds the confirm or cancel link embedded in reminders.
func ActionLink(baseURL string, appointmentID int64, action string) string {
	q := url.Values{}
	q.Set("appointment_id", fmt.Sprint(appointmentID))
	q.Set("action", action)
	return strings.TrimRight(baseURL, "/") + "/confirm?" + q.Encode()
}

func when(a records.Appointment) string {
	return fmt.Sprintf("%s at %s", records.FormatDate(a.Date), a.StartTime)
}

func ConfirmationEmail(p records.Patient, a records.Appointment) EmailMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", p.Name)
	fmt.Fprintf(&b, "This email confirms your appointment with %s on %s (%d minutes, appointment #%d).\n\n",
		a.Doctor, when(a), a.Duration, a.ID)
	b.WriteString("Please arrive 15 minutes before your scheduled time to complete any additional paperwork.\n\n")
	b.WriteString("If you need to reschedule or cancel, please contact us at least 24 hours in advance.\n\n")
	b.WriteString(signature)

	return EmailMessage{
		To:      p.Email,
		ToName:  p.Name,
		Subject: fmt.Sprintf("Appointment Confirmation: %s", when(a)),
		Body:    b.String(),
	}
}

func IntakeFormEmail(p records.Patient, a records.Appointment, form []byte) EmailMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", p.Name)
	fmt.Fprintf(&b, "Thank you for scheduling your appointment with %s on %s. ", a.Doctor, when(a))
	b.WriteString("Please complete the attached intake form before your upcoming appointment. ")
	b.WriteString("This will help us provide you with the best possible care.\n\n")
	b.WriteString("You will receive reminders before your appointment.\n\n")
	b.WriteString("If you have any questions or need to reschedule, please contact our office.\n\n")
	b.WriteString(signature)

	msg := EmailMessage{
		To:      p.Email,
		ToName:  p.Name,
		Subject: fmt.Sprintf("Intake Form for Your Appointment on %s", when(a)),
		Body:    b.String(),
	}
	if len(form) > 0 {
		msg.Attachments = []Attachment{{Filename: intakeFormName, ContentType: "application/pdf", Content: form}}
	}
	return msg
}

func ReminderEmail(t records.ReminderType, p records.Patient, a records.Appointment, baseURL string, form []byte) (EmailMessage, error) {
	confirm := ActionLink(baseURL, a.ID, "confirm")
	cancel := ActionLink(baseURL, a.ID, "cancel")

	var subject string
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", p.Name)

	switch t {
	case records.ReminderBasic:
		subject = fmt.Sprintf("Reminder: Upcoming Appointment with %s", a.Doctor)
		fmt.Fprintf(&b, "This is a friendly reminder of your appointment with %s on %s.\n\n", a.Doctor, when(a))
		b.WriteString("Please arrive 15 minutes early.\n\n")
	case records.ReminderFormAndConfirm:
		subject = fmt.Sprintf("Action Required: Complete Forms & Confirm Appointment with %s", a.Doctor)
		fmt.Fprintf(&b, "Your appointment with %s is on %s.\n\n", a.Doctor, when(a))
		b.WriteString("1. Please complete the attached intake form if you have not already.\n")
		b.WriteString("2. Please confirm whether you will attend.\n\n")
		fmt.Fprintf(&b, "CONFIRM APPOINTMENT: %s\n\n", confirm)
		fmt.Fprintf(&b, "CANCEL APPOINTMENT: %s\n\n", cancel)
	case records.ReminderFinal:
		subject = fmt.Sprintf("Final Reminder: Appointment with %s - Please Confirm", a.Doctor)
		fmt.Fprintf(&b, "This is your final reminder for your appointment with %s on %s.\n\n", a.Doctor, when(a))
		b.WriteString("We have not yet received your confirmation. If you cannot attend, please cancel so another patient can use the time.\n\n")
		fmt.Fprintf(&b, "CONFIRM APPOINTMENT: %s\n\n", confirm)
		fmt.Fprintf(&b, "CANCEL APPOINTMENT: %s\n\n", cancel)
	default:
		return EmailMessage{}, fmt.Errorf("notify: unknown reminder type %d", t)
	}
	b.WriteString(signature)

	msg := EmailMessage{To: p.Email, ToName: p.Name, Subject: subject, Body: b.String()}
	if t != records.ReminderBasic {
		msg.HTML = actionHTML(b.String(), confirm, cancel)
	}
	if t == records.ReminderFormAndConfirm && len(form) > 0 {
		msg.Attachments = []Attachment{{Filename: intakeFormName, ContentType: "application/pdf", Content: form}}
	}
	return msg, nil
}

func actionHTML(text, confirm, cancel string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, para := range strings.Split(text, "\n\n") {
		fmt.Fprintf(&b, "<p>%s</p>", strings.ReplaceAll(html.EscapeString(para), "\n", "<br>"))
	}
	fmt.Fprintf(&b, `<p><a href="%s">Confirm appointment</a> | <a href="%s">Cancel appointment</a></p>`,
		html.EscapeString(confirm), html.EscapeString(cancel))
	b.WriteString("</body></html>")
	return b.String()
}
