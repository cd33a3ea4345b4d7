package records

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var appointmentCols = []string{
	"id", "patient_id", "patient_name", "doctor", "appointment_date", "start_time", "end_time",
	"duration_minutes", "insurance_carrier", "member_id", "group_number", "confirmation_status",
	"reminders_sent", "last_reminder_at", "form_sent", "cancel_reason", "created_at", "updated_at",
}

var slotCols = []string{"doctor", "slot_date", "time_slot", "status"}

func appointmentRow(a Appointment) []any {
	return []any{
		a.ID, a.PatientID, a.PatientName, a.Doctor, a.Date, a.StartTime, a.EndTime,
		a.Duration, a.InsuranceCarrier, a.MemberID, a.GroupNumber, a.ConfirmationStatus,
		a.RemindersSent, a.LastReminderAt, a.FormSent, a.CancelReason, a.CreatedAt, a.UpdatedAt,
	}
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestPgBookSlotFlipsSpanAndInserts(t *testing.T) {
	mock := newMock(t)
	repo := NewPgRepository(mock)
	day := time.Date(2025, 9, 5, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT doctor, slot_date, time_slot, status").
		WithArgs("Dr. Johnson", day, "09:00", "10:00").
		WillReturnRows(pgxmock.NewRows(slotCols).
			AddRow("Dr. Johnson", day, "09:00", SlotAvailable).
			AddRow("Dr. Johnson", day, "09:30", SlotAvailable))
	mock.ExpectExec("UPDATE availability_slots").
		WithArgs("Dr. Johnson", day, "09:00", "10:00").
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(int64(4), "Mike Davis", "Dr. Johnson", day, "09:00", "10:00", 60, "Aetna", "AET123", "G1").
		WillReturnRows(pgxmock.NewRows(appointmentCols).AddRow(appointmentRow(Appointment{
			ID: 12, PatientID: 4, PatientName: "Mike Davis", Doctor: "Dr. Johnson", Date: day,
			StartTime: "09:00", EndTime: "10:00", Duration: 60, InsuranceCarrier: "Aetna",
			MemberID: "AET123", GroupNumber: "G1", ConfirmationStatus: StatusPending,
			CreatedAt: now, UpdatedAt: now,
		})...))
	mock.ExpectCommit()

	appt, err := repo.BookSlot(context.Background(), BookingRequest{
		PatientID: 4, PatientName: "Mike Davis", Doctor: "Dr. Johnson", Date: day,
		StartTime: "9:00", Duration: 60, InsuranceCarrier: "Aetna", MemberID: "AET123", GroupNumber: "G1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(12), appt.ID)
	assert.Equal(t, "10:00", appt.EndTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgBookSlotRejectsBookedSpan(t *testing.T) {
	mock := newMock(t)
	repo := NewPgRepository(mock)
	day := time.Date(2025, 9, 5, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT doctor, slot_date, time_slot, status").
		WithArgs("Dr. Johnson", day, "09:00", "10:00").
		WillReturnRows(pgxmock.NewRows(slotCols).
			AddRow("Dr. Johnson", day, "09:00", SlotAvailable).
			AddRow("Dr. Johnson", day, "09:30", SlotBooked))
	mock.ExpectRollback()

	_, err := repo.BookSlot(context.Background(), BookingRequest{
		PatientID: 4, Doctor: "Dr. Johnson", Date: day, StartTime: "09:00", Duration: 60,
	})
	assert.ErrorIs(t, err, ErrSlotNotAvailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCancelAppointmentReleasesSlots(t *testing.T) {
	mock := newMock(t)
	repo := NewPgRepository(mock)
	day := time.Date(2025, 9, 5, 0, 0, 0, 0, time.UTC)
	base := Appointment{
		ID: 3, PatientID: 1, PatientName: "Ann Lee", Doctor: "Dr. Smith", Date: day,
		StartTime: "11:00", EndTime: "11:30", Duration: 30, ConfirmationStatus: StatusSent,
	}
	cancelled := base
	cancelled.ConfirmationStatus = StatusCancelled
	cancelled.CancelReason = "feeling better"

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM appointments WHERE id = \\$1 FOR UPDATE").
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows(appointmentCols).AddRow(appointmentRow(base)...))
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(int64(3), "feeling better").
		WillReturnRows(pgxmock.NewRows(appointmentCols).AddRow(appointmentRow(cancelled)...))
	mock.ExpectExec("UPDATE availability_slots").
		WithArgs("Dr. Smith", day, "11:00", "11:30").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	got, err := repo.CancelAppointment(context.Background(), 3, "feeling better")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.ConfirmationStatus)
	assert.Equal(t, "feeling better", got.CancelReason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgIncrementRemindersSentNotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewPgRepository(mock)

	mock.ExpectQuery("UPDATE appointments").
		WithArgs(int64(99), pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.IncrementRemindersSent(context.Background(), 99, time.Now())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgSetConfirmationStatusDistinguishesConflictFromMissing(t *testing.T) {
	day := time.Date(2025, 9, 5, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()
	confirmed := Appointment{
		ID: 5, PatientID: 2, PatientName: "Ann Lee", Doctor: "Dr. Lee", Date: day,
		StartTime: "14:00", EndTime: "14:30", Duration: 30, ConfirmationStatus: StatusConfirmed,
		CreatedAt: now, UpdatedAt: now,
	}

	t.Run("status moved on", func(t *testing.T) {
		mock := newMock(t)
		repo := NewPgRepository(mock)
		mock.ExpectQuery("UPDATE appointments").
			WithArgs(int64(5), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectQuery("SELECT (.+) FROM appointments WHERE id").
			WithArgs(int64(5)).
			WillReturnRows(pgxmock.NewRows(appointmentCols).AddRow(appointmentRow(confirmed)...))

		_, err := repo.SetConfirmationStatus(context.Background(), 5, []ConfirmationStatus{StatusPending}, StatusSent)
		assert.ErrorIs(t, err, ErrStatusConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown id", func(t *testing.T) {
		mock := newMock(t)
		repo := NewPgRepository(mock)
		mock.ExpectQuery("UPDATE appointments").
			WithArgs(int64(6), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectQuery("SELECT (.+) FROM appointments WHERE id").
			WithArgs(int64(6)).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.SetConfirmationStatus(context.Background(), 6, []ConfirmationStatus{StatusPending}, StatusSent)
		assert.ErrorIs(t, err, ErrAppointmentNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgInsertSlotsCountsInsertedRows(t *testing.T) {
	mock := newMock(t)
	repo := NewPgRepository(mock)
	day := time.Date(2025, 9, 5, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO availability_slots").
		WithArgs("Dr. Lee", day, "09:00", SlotAvailable).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO availability_slots").
		WithArgs("Dr. Lee", day, "09:30", SlotAvailable).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()

	n, err := repo.InsertSlots(context.Background(), []AvailabilitySlot{
		{Doctor: "Dr. Lee", Date: day, TimeSlot: "9:00"},
		{Doctor: "Dr. Lee", Date: day, TimeSlot: "09:30"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgUpsertPatientReturnsMergedRow(t *testing.T) {
	mock := newMock(t)
	repo := NewPgRepository(mock)
	now := time.Now().UTC()

	cols := []string{"id", "name", "date_of_birth", "email", "phone", "doctor_preference", "location",
		"insurance_carrier", "member_id", "group_number", "patient_type", "created_at", "updated_at"}
	mock.ExpectQuery("INSERT INTO patients").
		WithArgs("Mike Davis", "1985-12-10", "mike.davis@gmail.com", "555-987-6543", "Dr. Johnson",
			"Los Angeles", "", "", "", PatientNew).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(int64(5), "Mike Davis", "1985-12-10",
			"mike.davis@gmail.com", "555-987-6543", "Dr. Johnson", "Los Angeles", "", "", "",
			PatientNew, now, now))

	p, err := repo.UpsertPatient(context.Background(), Patient{
		Name: "Mike Davis", DateOfBirth: "1985-12-10", Email: "mike.davis@gmail.com",
		Phone: "555-987-6543", DoctorPreference: "Dr. Johnson", Location: "Los Angeles",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
