package records

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	date, err := ParseDate(s)
	require.NoError(t, err)
	return date
}

func seedSlots(t *testing.T, repo *MemoryRepository, doctor, date string, times ...string) {
	t.Helper()
	day := mustDate(t, date)
	var slots []AvailabilitySlot
	for _, ts := range times {
		slots = append(slots, AvailabilitySlot{Doctor: doctor, Date: day, TimeSlot: ts, Status: SlotAvailable})
	}
	_, err := repo.InsertSlots(context.Background(), slots)
	require.NoError(t, err)
}

func TestUpsertPatientMergesByNameAndDOB(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	first, err := repo.UpsertPatient(ctx, Patient{Name: "Mike Davis", DateOfBirth: "1985-12-10", Email: "mike.davis@gmail.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, PatientNew, first.PatientType)

	second, err := repo.UpsertPatient(ctx, Patient{Name: "mike davis", DateOfBirth: "1985-12-10", Phone: "555-987-6543"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "mike.davis@gmail.com", second.Email)
	assert.Equal(t, "555-987-6543", second.Phone)

	other, err := repo.UpsertPatient(ctx, Patient{Name: "Mike Davis", DateOfBirth: "1990-01-01"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), other.ID)

	all, err := repo.ListPatients(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestInsertSlotsIgnoresDuplicates(t *testing.T) {
	repo := NewMemoryRepository()
	seedSlots(t, repo, "Dr. Johnson", "2025-09-05", "09:00", "9:00", "09:30")

	slots, err := repo.ListSlots(context.Background(), mustDate(t, "2025-09-05"))
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, "09:00", slots[0].TimeSlot)
}

func TestBookSlotIsExclusive(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	seedSlots(t, repo, "Dr. Johnson", "2025-09-05", "09:00", "09:30")
	day := mustDate(t, "2025-09-05")

	req := BookingRequest{PatientID: 1, PatientName: "Mike Davis", Doctor: "Dr. Johnson", Date: day, StartTime: "9:00", Duration: 30}
	appt, err := repo.BookSlot(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(1), appt.ID)
	assert.Equal(t, "09:30", appt.EndTime)
	assert.Equal(t, StatusPending, appt.ConfirmationStatus)
	assert.Zero(t, appt.RemindersSent)
	assert.False(t, appt.FormSent)

	_, err = repo.BookSlot(ctx, req)
	assert.ErrorIs(t, err, ErrSlotNotAvailable)

	all, err := repo.ListAppointmentsBetween(ctx, day, day)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestBookSlotChecksWholeSpan(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	seedSlots(t, repo, "Dr. Smith", "2025-09-05", "10:00", "10:30", "11:00")
	day := mustDate(t, "2025-09-05")

	_, err := repo.BookSlot(ctx, BookingRequest{PatientID: 1, Doctor: "Dr. Smith", Date: day, StartTime: "10:30", Duration: 30})
	require.NoError(t, err)

	_, err = repo.BookSlot(ctx, BookingRequest{PatientID: 2, Doctor: "Dr. Smith", Date: day, StartTime: "10:00", Duration: 60})
	assert.ErrorIs(t, err, ErrSlotNotAvailable)

	slots, err := repo.ListSlots(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, SlotAvailable, slots[0].Status, "failed booking must not flip anything")

	appt, err := repo.BookSlot(ctx, BookingRequest{PatientID: 2, Doctor: "Dr. Smith", Date: day, StartTime: "11:00", Duration: 60})
	require.NoError(t, err, "missing trailing records do not block")
	assert.Equal(t, "12:00", appt.EndTime)
}

func TestBookSlotRequiresStartRecord(t *testing.T) {
	repo := NewMemoryRepository()
	seedSlots(t, repo, "Dr. Smith", "2025-09-05", "10:00")

	_, err := repo.BookSlot(context.Background(), BookingRequest{Doctor: "Dr. Smith", Date: mustDate(t, "2025-09-05"), StartTime: "09:30", Duration: 60})
	assert.ErrorIs(t, err, ErrSlotNotAvailable)
}

func TestCancelAppointmentReleasesSpan(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	seedSlots(t, repo, "Dr. Brown", "2025-09-05", "13:00", "13:30")
	day := mustDate(t, "2025-09-05")

	appt, err := repo.BookSlot(ctx, BookingRequest{PatientID: 3, Doctor: "Dr. Brown", Date: day, StartTime: "13:00", Duration: 60})
	require.NoError(t, err)

	cancelled, err := repo.CancelAppointment(ctx, appt.ID, "schedule conflict")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.ConfirmationStatus)
	assert.Equal(t, "schedule conflict", cancelled.CancelReason)

	slots, err := repo.ListSlots(ctx, day)
	require.NoError(t, err)
	for _, s := range slots {
		assert.Equal(t, SlotAvailable, s.Status, s.TimeSlot)
	}

	stored, err := repo.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, stored.ConfirmationStatus)

	_, err = repo.CancelAppointment(ctx, appt.ID, "")
	assert.ErrorIs(t, err, ErrAlreadyCancelled)

	_, err = repo.CancelAppointment(ctx, 99, "")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestSetConfirmationStatusIsCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	seedSlots(t, repo, "Dr. Brown", "2025-09-05", "13:00")
	appt, err := repo.BookSlot(ctx, BookingRequest{Doctor: "Dr. Brown", Date: mustDate(t, "2025-09-05"), StartTime: "13:00", Duration: 30})
	require.NoError(t, err)

	updated, err := repo.SetConfirmationStatus(ctx, appt.ID, []ConfirmationStatus{StatusPending}, StatusSent)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, updated.ConfirmationStatus)

	_, err = repo.SetConfirmationStatus(ctx, appt.ID, []ConfirmationStatus{StatusPending}, StatusSent)
	assert.ErrorIs(t, err, ErrStatusConflict)
	assert.NotErrorIs(t, err, ErrAppointmentNotFound)

	_, err = repo.SetConfirmationStatus(ctx, 404, []ConfirmationStatus{StatusPending}, StatusSent)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestIncrementRemindersSentAndFormFlag(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	seedSlots(t, repo, "Dr. Brown", "2025-09-05", "13:00")
	appt, err := repo.BookSlot(ctx, BookingRequest{Doctor: "Dr. Brown", Date: mustDate(t, "2025-09-05"), StartTime: "13:00", Duration: 30})
	require.NoError(t, err)

	assert.Nil(t, appt.LastReminderAt)
	sentAt := time.Date(2025, 9, 3, 8, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		got, err := repo.IncrementRemindersSent(ctx, appt.ID, sentAt.AddDate(0, 0, i))
		require.NoError(t, err)
		assert.Equal(t, i, got.RemindersSent)
		require.NotNil(t, got.LastReminderAt)
		assert.Equal(t, sentAt.AddDate(0, 0, i), *got.LastReminderAt)
	}

	got, err := repo.MarkFormSent(ctx, appt.ID)
	require.NoError(t, err)
	assert.True(t, got.FormSent)

	_, err = repo.IncrementRemindersSent(ctx, 404, sentAt)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestInsertEventRecordsTrail(t *testing.T) {
	repo := NewMemoryRepository()
	id := int64(7)
	require.NoError(t, repo.InsertEvent(context.Background(), EventLog{EventType: "APPOINTMENT_BOOKED", AppointmentID: &id}))

	events := repo.Events()
	require.Len(t, events, 1)
	assert.Equal(t, int64(1), events[0].ID)
	assert.False(t, events[0].CreatedAt.IsZero())
}
