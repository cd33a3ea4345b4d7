package records

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type slotKey struct {
	doctor string
	date   string
	time   string
}

// MemoryRepository keeps every collection in process. A single mutex makes
// each operation atomic, which is what BookSlot and CancelAppointment need.
type MemoryRepository struct {
	mu sync.Mutex

	patients     map[int64]Patient
	slots        map[slotKey]SlotStatus
	appointments map[int64]Appointment
	events       []EventLog

	nextPatientID     int64
	nextAppointmentID int64
	now               func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients:          make(map[int64]Patient),
		slots:             make(map[slotKey]SlotStatus),
		appointments:      make(map[int64]Appointment),
		nextPatientID:     1,
		nextAppointmentID: 1,
		now:               time.Now,
	}
}

func keyOf(doctor string, date time.Time, ts string) slotKey {
	return slotKey{doctor: doctor, date: FormatDate(DateOf(date)), time: ts}
}

// Patients

func (r *MemoryRepository) ListPatients(_ context.Context) ([]Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]Patient, 0, len(r.patients))
	for _, p := range r.patients {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *MemoryRepository) GetPatient(_ context.Context, id int64) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) UpsertPatient(_ context.Context, p Patient) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for id, existing := range r.patients {
		if !strings.EqualFold(existing.Name, p.Name) || existing.DateOfBirth != p.DateOfBirth {
			continue
		}
		mergeString(&existing.Email, p.Email)
		mergeString(&existing.Phone, p.Phone)
		mergeString(&existing.DoctorPreference, p.DoctorPreference)
		mergeString(&existing.Location, p.Location)
		mergeString(&existing.InsuranceCarrier, p.InsuranceCarrier)
		mergeString(&existing.MemberID, p.MemberID)
		mergeString(&existing.GroupNumber, p.GroupNumber)
		existing.UpdatedAt = now
		r.patients[id] = existing
		return &existing, nil
	}

	p.ID = r.nextPatientID
	r.nextPatientID++
	if p.PatientType == "" {
		p.PatientType = PatientNew
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	r.patients[p.ID] = p
	return &p, nil
}

func mergeString(dst *string, incoming string) {
	if strings.TrimSpace(incoming) != "" {
		*dst = incoming
	}
}

func (r *MemoryRepository) UpdatePatientInsurance(_ context.Context, id int64, carrier, memberID, groupNumber string) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	p.InsuranceCarrier = carrier
	p.MemberID = memberID
	p.GroupNumber = groupNumber
	p.UpdatedAt = r.now()
	r.patients[id] = p
	return &p, nil
}

func (r *MemoryRepository) SetPatientType(_ context.Context, id int64, t PatientType) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	p.PatientType = t
	p.UpdatedAt = r.now()
	r.patients[id] = p
	return &p, nil
}

// Availability

func (r *MemoryRepository) ListSlots(_ context.Context, date time.Time) ([]AvailabilitySlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	day := DateOf(date)
	want := FormatDate(day)
	var result []AvailabilitySlot
	for k, status := range r.slots {
		if k.date != want {
			continue
		}
		result = append(result, AvailabilitySlot{Doctor: k.doctor, Date: day, TimeSlot: k.time, Status: status})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Doctor != result[j].Doctor {
			return result[i].Doctor < result[j].Doctor
		}
		return result[i].TimeSlot < result[j].TimeSlot
	})
	return result, nil
}

func (r *MemoryRepository) InsertSlots(_ context.Context, slots []AvailabilitySlot) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inserted := 0
	for _, s := range slots {
		ts, err := NormalizeClock(s.TimeSlot)
		if err != nil {
			return inserted, err
		}
		k := keyOf(s.Doctor, s.Date, ts)
		if _, exists := r.slots[k]; exists {
			continue
		}
		status := s.Status
		if status == "" {
			status = SlotAvailable
		}
		r.slots[k] = status
		inserted++
	}
	return inserted, nil
}

// spanKeys lists the slot records that exist for doctor/date in [start, end).
func (r *MemoryRepository) spanKeys(doctor string, date time.Time, start, end string) []slotKey {
	want := FormatDate(DateOf(date))
	var keys []slotKey
	for k := range r.slots {
		if k.doctor == doctor && k.date == want && k.time >= start && k.time < end {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].time < keys[j].time })
	return keys
}

// Appointments

func (r *MemoryRepository) BookSlot(_ context.Context, req BookingRequest) (*Appointment, error) {
	start, end, err := Span(req.StartTime, req.Duration)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	keys := r.spanKeys(req.Doctor, req.Date, start, end)
	span := make([]AvailabilitySlot, len(keys))
	for i, k := range keys {
		span[i] = AvailabilitySlot{Doctor: k.doctor, TimeSlot: k.time, Status: r.slots[k]}
	}
	if err := checkSpan(span, start); err != nil {
		return nil, err
	}
	for _, k := range keys {
		r.slots[k] = SlotBooked
	}

	now := r.now()
	appt := Appointment{
		ID:                 r.nextAppointmentID,
		PatientID:          req.PatientID,
		PatientName:        req.PatientName,
		Doctor:             req.Doctor,
		Date:               DateOf(req.Date),
		StartTime:          start,
		EndTime:            end,
		Duration:           req.Duration,
		InsuranceCarrier:   req.InsuranceCarrier,
		MemberID:           req.MemberID,
		GroupNumber:        req.GroupNumber,
		ConfirmationStatus: StatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	r.nextAppointmentID++
	r.appointments[appt.ID] = appt
	return &appt, nil
}

func (r *MemoryRepository) CancelAppointment(_ context.Context, id int64, reason string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if appt.ConfirmationStatus == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}

	appt.ConfirmationStatus = StatusCancelled
	appt.CancelReason = reason
	appt.UpdatedAt = r.now()
	r.appointments[id] = appt

	for _, k := range r.spanKeys(appt.Doctor, appt.Date, appt.StartTime, appt.EndTime) {
		if r.slots[k] == SlotBooked {
			r.slots[k] = SlotAvailable
		}
	}
	return &appt, nil
}

func (r *MemoryRepository) GetAppointment(_ context.Context, id int64) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &appt, nil
}

func (r *MemoryRepository) ListAppointmentsBetween(_ context.Context, from, to time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lo, hi := DateOf(from), DateOf(to)
	var result []Appointment
	for _, a := range r.appointments {
		if a.Date.Before(lo) || a.Date.After(hi) {
			continue
		}
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return a.ID < b.ID
	})
	return result, nil
}

func (r *MemoryRepository) SetConfirmationStatus(_ context.Context, id int64, from []ConfirmationStatus, to ConfirmationStatus) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	allowed := false
	for _, s := range from {
		if appt.ConfirmationStatus == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, ErrStatusConflict
	}
	appt.ConfirmationStatus = to
	appt.UpdatedAt = r.now()
	r.appointments[id] = appt
	return &appt, nil
}

func (r *MemoryRepository) IncrementRemindersSent(_ context.Context, id int64, at time.Time) (*Appointment, error) {
	return r.mutateAppointment(id, func(a *Appointment) {
		a.RemindersSent++
		a.LastReminderAt = &at
	})
}

func (r *MemoryRepository) MarkFormSent(_ context.Context, id int64) (*Appointment, error) {
	return r.mutateAppointment(id, func(a *Appointment) { a.FormSent = true })
}

func (r *MemoryRepository) mutateAppointment(id int64, fn func(*Appointment)) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	fn(&appt)
	appt.UpdatedAt = r.now()
	r.appointments[id] = appt
	return &appt, nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.ID = int64(len(r.events) + 1)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = r.now()
	}
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the audit trail.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]EventLog(nil), r.events...)
}
