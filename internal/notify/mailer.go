package notify

import (
	"context"
	"fmt"
	"os"

	"github.com/hackgods/clinic-appointment-assistant/internal/records"
)

// Mailer renders the clinic's templates and hands them to a Notifier.
type Mailer struct {
	notifier   *Notifier
	baseURL    string
	intakeForm []byte
}

func NewMailer(n *Notifier, baseURL string, intakeForm []byte) *Mailer {
	return &Mailer{notifier: n, baseURL: baseURL, intakeForm: intakeForm}
}

// LoadIntakeForm reads the PDF attached to intake e-mails. An empty path
// means no attachment.
func LoadIntakeForm(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("notify: read intake form: %w", err)
	}
	return data, nil
}

func (m *Mailer) SendConfirmation(ctx context.Context, p records.Patient, a records.Appointment) Delivery {
	return m.notifier.Send(ctx, ConfirmationEmail(p, a))
}

func (m *Mailer) SendIntakeForm(ctx context.Context, p records.Patient, a records.Appointment) Delivery {
	return m.notifier.Send(ctx, IntakeFormEmail(p, a, m.intakeForm))
}

func (m *Mailer) SendReminder(ctx context.Context, t records.ReminderType, p records.Patient, a records.Appointment) Delivery {
	msg, err := ReminderEmail(t, p, a, m.baseURL, m.intakeForm)
	if err != nil {
		return Delivery{Success: false, Message: err.Error()}
	}
	return m.notifier.Send(ctx, msg)
}
