package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-appointment-assistant/internal/records"
)

type fakeSender struct {
	mu       sync.Mutex
	failures int
	sent     []EmailMessage
	calls    int
}

func (f *fakeSender) Send(ctx context.Context, msg EmailMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return errors.New("smtp 451")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func fastNotifier(s EmailSender) *Notifier {
	return NewNotifier(s, NotifierOptions{Timeout: time.Second, MaxAttempts: 3, InitialInterval: time.Millisecond}, nil)
}

func samplePatient() records.Patient {
	return records.Patient{ID: 1, Name: "Mike Davis", Email: "mike.davis@gmail.com"}
}

func sampleAppointment() records.Appointment {
	return records.Appointment{
		ID: 42, Doctor: "Dr. Johnson", Date: time.Date(2025, 9, 5, 0, 0, 0, 0, time.UTC),
		StartTime: "09:00", EndTime: "10:00", Duration: 60,
	}
}

func TestNotifierRetriesTransientFailures(t *testing.T) {
	sender := &fakeSender{failures: 2}
	d := fastNotifier(sender).Send(context.Background(), EmailMessage{To: "mike.davis@gmail.com.com", Subject: "x"})

	assert.True(t, d.Success)
	assert.Equal(t, 3, sender.calls)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "mike.davis@gmail.com", sender.sent[0].To)
}

func TestNotifierReportsExhaustedRetries(t *testing.T) {
	sender := &fakeSender{failures: 10}
	d := fastNotifier(sender).Send(context.Background(), EmailMessage{To: "mike.davis@gmail.com"})

	assert.False(t, d.Success)
	assert.Equal(t, 3, sender.calls)
	assert.NotContains(t, d.Message, "smtp")
}

func TestNotifierRejectsInvalidAddressWithoutSending(t *testing.T) {
	sender := &fakeSender{}
	d := fastNotifier(sender).Send(context.Background(), EmailMessage{To: "nobody"})

	assert.False(t, d.Success)
	assert.Zero(t, sender.calls)
}

func TestReminderTemplates(t *testing.T) {
	p, a := samplePatient(), sampleAppointment()

	basic, err := ReminderEmail(records.ReminderBasic, p, a, "https://clinic.example/", []byte("%PDF"))
	require.NoError(t, err)
	assert.Contains(t, basic.Subject, "Reminder")
	assert.NotContains(t, basic.Body, "/confirm?")
	assert.Empty(t, basic.Attachments)

	form, err := ReminderEmail(records.ReminderFormAndConfirm, p, a, "https://clinic.example/", []byte("%PDF"))
	require.NoError(t, err)
	assert.Contains(t, form.Body, "https://clinic.example/confirm?action=confirm&appointment_id=42")
	assert.Contains(t, form.Body, "action=cancel")
	require.Len(t, form.Attachments, 1)
	assert.Equal(t, "application/pdf", form.Attachments[0].ContentType)

	final, err := ReminderEmail(records.ReminderFinal, p, a, "https://clinic.example", nil)
	require.NoError(t, err)
	assert.Contains(t, final.Subject, "Final Reminder")
	assert.Contains(t, final.HTML, "Cancel appointment")

	_, err = ReminderEmail(records.ReminderType(9), p, a, "", nil)
	assert.Error(t, err)
}

func TestMailerSendsConfirmationAndForm(t *testing.T) {
	sender := &fakeSender{}
	mailer := NewMailer(fastNotifier(sender), "http://localhost:8080", []byte("%PDF-1.4"))
	ctx := context.Background()

	assert.True(t, mailer.SendConfirmation(ctx, samplePatient(), sampleAppointment()).Success)
	assert.True(t, mailer.SendIntakeForm(ctx, samplePatient(), sampleAppointment()).Success)

	require.Len(t, sender.sent, 2)
	assert.Contains(t, sender.sent[0].Subject, "Appointment Confirmation: 2025-09-05 at 09:00")
	require.Len(t, sender.sent[1].Attachments, 1)
}

func TestLoadIntakeFormEmptyPath(t *testing.T) {
	data, err := LoadIntakeForm("")
	assert.NoError(t, err)
	assert.Nil(t, data)

	_, err = LoadIntakeForm("/does/not/exist.pdf")
	assert.Error(t, err)
}
