package reminders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-appointment-assistant/internal/notify"
	"github.com/hackgods/clinic-appointment-assistant/internal/records"
	redisclient "github.com/hackgods/clinic-appointment-assistant/internal/redis"
)

type fakeSender struct {
	mu   sync.Mutex
	fail map[records.ReminderType]bool
	sent []records.ReminderType
}

func (f *fakeSender) SendReminder(_ context.Context, t records.ReminderType, _ records.Patient, _ records.Appointment) notify.Delivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[t] {
		return notify.Delivery{Success: false, Message: "email could not be delivered"}
	}
	f.sent = append(f.sent, t)
	return notify.Delivery{Success: true, Message: "email sent"}
}

var today = time.Date(2025, 9, 3, 8, 0, 0, 0, time.UTC)

type fixture struct {
	repo   *records.MemoryRepository
	sender *fakeSender
	sched  *Scheduler
	clock  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := records.NewMemoryRepository()
	sender := &fakeSender{fail: map[records.ReminderType]bool{}}
	f := &fixture{repo: repo, sender: sender, clock: today}
	f.sched = NewScheduler(repo, sender, redisclient.NewLocalLocker(), Config{LookaheadDays: 7}, nil, nil).
		WithClock(func() time.Time { return f.clock })
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func (f *fixture) book(t *testing.T, daysAhead int, ts string) records.Appointment {
	t.Helper()
	ctx := context.Background()
	p, err := f.repo.UpsertPatient(ctx, records.Patient{Name: "Pat " + ts, DateOfBirth: "1980-01-01", Email: "pat@example.com"})
	require.NoError(t, err)
	date := records.DateOf(today).AddDate(0, 0, daysAhead)
	_, err = f.repo.InsertSlots(ctx, []records.AvailabilitySlot{{Doctor: "Dr. Lee", Date: date, TimeSlot: ts}})
	require.NoError(t, err)
	a, err := f.repo.BookSlot(ctx, records.BookingRequest{PatientID: p.ID, Doctor: "Dr. Lee", Date: date, StartTime: ts, Duration: 30})
	require.NoError(t, err)
	return *a
}

func (f *fixture) remindersSent(t *testing.T, id int64) int {
	t.Helper()
	a, err := f.repo.GetAppointment(context.Background(), id)
	require.NoError(t, err)
	return a.RemindersSent
}

func TestProcessDueFollowsCadence(t *testing.T) {
	f := newFixture(t)
	twoDays := f.book(t, 2, "09:00")
	tomorrow := f.book(t, 1, "10:00")
	farOut := f.book(t, 5, "11:00")
	past := f.book(t, -1, "12:00")

	results, err := f.sched.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	byID := map[int64]Result{}
	for _, r := range results {
		byID[r.AppointmentID] = r
	}
	assert.Equal(t, records.ReminderBasic, byID[twoDays.ID].Type)
	assert.Equal(t, records.ReminderFormAndConfirm, byID[tomorrow.ID].Type)
	assert.Equal(t, 1, f.remindersSent(t, twoDays.ID))
	assert.Equal(t, 1, f.remindersSent(t, tomorrow.ID))
	assert.Equal(t, 0, f.remindersSent(t, farOut.ID))
	assert.Equal(t, 0, f.remindersSent(t, past.ID))

	// hourly ticks for the rest of the day send nothing more
	for i := 0; i < 15; i++ {
		f.advance(time.Hour)
		results, err = f.sched.ProcessDue(context.Background())
		require.NoError(t, err)
		assert.Empty(t, results, "tick at %s", f.clock.Format(time.Kitchen))
	}
	assert.Equal(t, 1, f.remindersSent(t, tomorrow.ID))

	// next morning both move one step along the cadence
	f.clock = today.AddDate(0, 0, 1)
	results, err = f.sched.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	byID = map[int64]Result{}
	for _, r := range results {
		byID[r.AppointmentID] = r
	}
	assert.Equal(t, records.ReminderFinal, byID[tomorrow.ID].Type)
	assert.Equal(t, records.ReminderFinal, byID[twoDays.ID].Type)
	assert.Equal(t, 2, f.remindersSent(t, tomorrow.ID))

	f.advance(time.Hour)
	results, err = f.sched.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestImmediateReminderCountsForTheDay(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, 1, "09:00")

	require.True(t, f.sched.ScheduleImmediate(context.Background(), appt.ID)[0].Success)

	f.advance(time.Hour)
	results, err := f.sched.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, []records.ReminderType{records.ReminderFormAndConfirm}, f.sender.sent)
}

func TestFailedSendDoesNotIncrement(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, 0, "15:00")
	f.sender.fail[records.ReminderFormAndConfirm] = true

	results, err := f.sched.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Equal(t, 0, f.remindersSent(t, appt.ID))

	f.sender.fail[records.ReminderFormAndConfirm] = false
	results, err = f.sched.ProcessDue(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, 1, f.remindersSent(t, appt.ID))
}

func TestProcessDueSkipsCancelled(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, 1, "09:00")
	_, err := f.repo.CancelAppointment(context.Background(), appt.ID, "moved away")
	require.NoError(t, err)

	results, err := f.sched.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, f.sender.sent)
}

func TestScheduleImmediate(t *testing.T) {
	t.Run("near-term booking gets form reminder", func(t *testing.T) {
		f := newFixture(t)
		appt := f.book(t, 1, "09:00")

		results := f.sched.ScheduleImmediate(context.Background(), appt.ID)
		require.Len(t, results, 1)
		assert.True(t, results[0].Success)
		assert.Equal(t, records.ReminderFormAndConfirm, results[0].Type)
		assert.Equal(t, 1, f.remindersSent(t, appt.ID))
	})

	t.Run("failed form reminder falls back to basic and final", func(t *testing.T) {
		f := newFixture(t)
		appt := f.book(t, 0, "09:00")
		f.sender.fail[records.ReminderFormAndConfirm] = true

		results := f.sched.ScheduleImmediate(context.Background(), appt.ID)
		require.Len(t, results, 3)
		assert.False(t, results[0].Success)
		assert.Equal(t, records.ReminderBasic, results[1].Type)
		assert.True(t, results[1].Success)
		assert.Equal(t, records.ReminderFinal, results[2].Type)
		assert.True(t, results[2].Success)
		assert.Equal(t, 2, f.remindersSent(t, appt.ID))
	})

	t.Run("distant booking waits for the cadence", func(t *testing.T) {
		f := newFixture(t)
		appt := f.book(t, 4, "09:00")

		assert.Empty(t, f.sched.ScheduleImmediate(context.Background(), appt.ID))
		assert.Empty(t, f.sender.sent)
	})
}

func TestSendReminderRefusesPastAppointments(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, -2, "09:00")

	res := f.sched.SendReminder(context.Background(), appt.ID, records.ReminderBasic)
	assert.False(t, res.Success)
	assert.Empty(t, f.sender.sent)

	res = f.sched.SendReminder(context.Background(), 404, records.ReminderBasic)
	assert.False(t, res.Success)
	assert.Equal(t, "appointment not found", res.Message)
}
