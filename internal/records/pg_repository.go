package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	db DB
}

func NewPgRepository(db DB) *PgRepository {
	return &PgRepository{db: db}
}

const patientColumns = `id, name, date_of_birth, email, phone, doctor_preference, location,
		insurance_carrier, member_id, group_number, patient_type, created_at, updated_at`

const appointmentColumns = `id, patient_id, patient_name, doctor, appointment_date, start_time, end_time,
		duration_minutes, insurance_carrier, member_id, group_number, confirmation_status,
		reminders_sent, last_reminder_at, form_sent, cancel_reason, created_at, updated_at`

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.DateOfBirth,
		&p.Email,
		&p.Phone,
		&p.DoctorPreference,
		&p.Location,
		&p.InsuranceCarrier,
		&p.MemberID,
		&p.GroupNumber,
		&p.PatientType,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanSlot(row pgx.Row) (*AvailabilitySlot, error) {
	var s AvailabilitySlot
	if err := row.Scan(&s.Doctor, &s.Date, &s.TimeSlot, &s.Status); err != nil {
		return nil, err
	}
	s.Date = DateOf(s.Date)
	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.PatientName,
		&a.Doctor,
		&a.Date,
		&a.StartTime,
		&a.EndTime,
		&a.Duration,
		&a.InsuranceCarrier,
		&a.MemberID,
		&a.GroupNumber,
		&a.ConfirmationStatus,
		&a.RemindersSent,
		&a.LastReminderAt,
		&a.FormSent,
		&a.CancelReason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	a.Date = DateOf(a.Date)
	return &a, nil
}

// Patients

func (r *PgRepository) ListPatients(ctx context.Context) ([]Patient, error) {
	rows, err := r.db.Query(ctx, `SELECT `+patientColumns+` FROM patients ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	var result []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	row := r.db.QueryRow(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = $1`, id)
	return scanPatient(row)
}

func (r *PgRepository) UpsertPatient(ctx context.Context, p Patient) (*Patient, error) {
	if p.PatientType == "" {
		p.PatientType = PatientNew
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO patients (name, date_of_birth, email, phone, doctor_preference, location,
			insurance_carrier, member_id, group_number, patient_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		ON CONFLICT ((lower(name)), date_of_birth) DO UPDATE SET
			email = COALESCE(NULLIF(EXCLUDED.email, ''), patients.email),
			phone = COALESCE(NULLIF(EXCLUDED.phone, ''), patients.phone),
			doctor_preference = COALESCE(NULLIF(EXCLUDED.doctor_preference, ''), patients.doctor_preference),
			location = COALESCE(NULLIF(EXCLUDED.location, ''), patients.location),
			insurance_carrier = COALESCE(NULLIF(EXCLUDED.insurance_carrier, ''), patients.insurance_carrier),
			member_id = COALESCE(NULLIF(EXCLUDED.member_id, ''), patients.member_id),
			group_number = COALESCE(NULLIF(EXCLUDED.group_number, ''), patients.group_number),
			updated_at = now()
		RETURNING `+patientColumns,
		p.Name, p.DateOfBirth, p.Email, p.Phone, p.DoctorPreference, p.Location,
		p.InsuranceCarrier, p.MemberID, p.GroupNumber, p.PatientType)
	patient, err := scanPatient(row)
	if err != nil {
		return nil, fmt.Errorf("upsert patient: %w", err)
	}
	return patient, nil
}

func (r *PgRepository) UpdatePatientInsurance(ctx context.Context, id int64, carrier, memberID, groupNumber string) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE patients
		SET insurance_carrier = $2,
		    member_id = $3,
		    group_number = $4,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+patientColumns, id, carrier, memberID, groupNumber)
	return scanPatient(row)
}

func (r *PgRepository) SetPatientType(ctx context.Context, id int64, t PatientType) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE patients
		SET patient_type = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+patientColumns, id, t)
	return scanPatient(row)
}

// Availability

func (r *PgRepository) ListSlots(ctx context.Context, date time.Time) ([]AvailabilitySlot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT doctor, slot_date, time_slot, status
		FROM availability_slots
		WHERE slot_date = $1
		ORDER BY doctor, time_slot
	`, DateOf(date))
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var result []AvailabilitySlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) InsertSlots(ctx context.Context, slots []AvailabilitySlot) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	inserted := 0
	for _, s := range slots {
		ts, err := NormalizeClock(s.TimeSlot)
		if err != nil {
			return 0, err
		}
		status := s.Status
		if status == "" {
			status = SlotAvailable
		}
		tag, err := tx.Exec(ctx, `
			INSERT INTO availability_slots (doctor, slot_date, time_slot, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
			ON CONFLICT (doctor, slot_date, time_slot) DO NOTHING
		`, s.Doctor, DateOf(s.Date), ts, status)
		if err != nil {
			return 0, fmt.Errorf("insert slot: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return inserted, nil
}

// Appointments

// BookSlot locks every slot row in [start, end) for the doctor and date,
// requires the start slot to exist and none of them to be Booked, then
// flips them and inserts the appointment in the same transaction.
func (r *PgRepository) BookSlot(ctx context.Context, req BookingRequest) (*Appointment, error) {
	start, end, err := Span(req.StartTime, req.Duration)
	if err != nil {
		return nil, err
	}
	date := DateOf(req.Date)

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT doctor, slot_date, time_slot, status
		FROM availability_slots
		WHERE doctor = $1
		  AND slot_date = $2
		  AND time_slot >= $3
		  AND time_slot < $4
		ORDER BY time_slot
		FOR UPDATE
	`, req.Doctor, date, start, end)
	if err != nil {
		return nil, fmt.Errorf("lock slots: %w", err)
	}
	var span []AvailabilitySlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		span = append(span, *s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := checkSpan(span, start); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE availability_slots
		SET status = 'Booked',
		    updated_at = now()
		WHERE doctor = $1
		  AND slot_date = $2
		  AND time_slot >= $3
		  AND time_slot < $4
		  AND status = 'Available'
	`, req.Doctor, date, start, end); err != nil {
		return nil, fmt.Errorf("flip slots: %w", err)
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (patient_id, patient_name, doctor, appointment_date, start_time, end_time,
			duration_minutes, insurance_carrier, member_id, group_number, confirmation_status,
			reminders_sent, form_sent, cancel_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'Pending', 0, false, '', now(), now())
		RETURNING `+appointmentColumns,
		req.PatientID, req.PatientName, req.Doctor, date, start, end,
		req.Duration, req.InsuranceCarrier, req.MemberID, req.GroupNumber)
	appt, err := scanAppointment(row)
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return appt, nil
}

// checkSpan accepts a span whose first record is the requested start and
// which contains no Booked record.
func checkSpan(span []AvailabilitySlot, start string) error {
	if len(span) == 0 || span[0].TimeSlot != start {
		return ErrSlotNotAvailable
	}
	for _, s := range span {
		if s.Status != SlotAvailable {
			return ErrSlotNotAvailable
		}
	}
	return nil
}

func (r *PgRepository) CancelAppointment(ctx context.Context, id int64, reason string) (*Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := scanAppointment(tx.QueryRow(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if current.ConfirmationStatus == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}

	updated, err := scanAppointment(tx.QueryRow(ctx, `
		UPDATE appointments
		SET confirmation_status = 'Cancelled',
		    cancel_reason = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns, id, reason))
	if err != nil {
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE availability_slots
		SET status = 'Available',
		    updated_at = now()
		WHERE doctor = $1
		  AND slot_date = $2
		  AND time_slot >= $3
		  AND time_slot < $4
		  AND status = 'Booked'
	`, updated.Doctor, updated.Date, updated.StartTime, updated.EndTime); err != nil {
		return nil, fmt.Errorf("release slots: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *PgRepository) GetAppointment(ctx context.Context, id int64) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointmentsBetween(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE appointment_date BETWEEN $1 AND $2
		ORDER BY appointment_date, start_time, id
	`, DateOf(from), DateOf(to))
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) SetConfirmationStatus(ctx context.Context, id int64, from []ConfirmationStatus, to ConfirmationStatus) (*Appointment, error) {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET confirmation_status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND confirmation_status = ANY($3)
		RETURNING `+appointmentColumns, id, to, allowed)
	appt, err := scanAppointment(row)
	if !errors.Is(err, ErrAppointmentNotFound) {
		return appt, err
	}
	// No row updated: either the id is unknown or the status moved on.
	if _, err := r.GetAppointment(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrStatusConflict
}

func (r *PgRepository) IncrementRemindersSent(ctx context.Context, id int64, at time.Time) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET reminders_sent = reminders_sent + 1,
		    last_reminder_at = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns, id, at)
	return scanAppointment(row)
}

func (r *PgRepository) MarkFormSent(ctx context.Context, id int64) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET form_sent = true,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns, id)
	return scanAppointment(row)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
