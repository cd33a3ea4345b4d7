// Package matching resolves a patient described in conversation to a
// stored record, creating one when nobody matches.
package matching

import (
	"context"
	"fmt"
	"strings"

	"github.com/hackgods/clinic-appointment-assistant/internal/booking"
	"github.com/hackgods/clinic-appointment-assistant/internal/logging"
	"github.com/hackgods/clinic-appointment-assistant/internal/records"
	"github.com/hackgods/clinic-appointment-assistant/internal/validate"
)

type Candidate struct {
	Name             string
	DateOfBirth      string
	Email            string
	Phone            string
	DoctorPreference string
	Location         string
}

type Resolution struct {
	Patient          records.Patient
	PatientType      records.PatientType
	DurationMinutes  int
	Exists           bool
	DoctorPreference string
}

type Matcher struct {
	repo   records.Repository
	logger *logging.Logger
}

func NewMatcher(repo records.Repository, logger *logging.Logger) *Matcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Matcher{repo: repo, logger: logger}
}

// Resolve runs the loose match rules in order, then accepts a hit only if
// some record carries the exact name or e-mail. Anything else is a new
// patient, persisted immediately and merged by name and date of birth.
func (m *Matcher) Resolve(ctx context.Context, c Candidate) (Resolution, error) {
	patients, err := m.repo.ListPatients(ctx)
	if err != nil {
		return Resolution{}, fmt.Errorf("load patients: %w", err)
	}

	if hit, ok := tentativeMatch(patients, c); ok && confirmed(patients, c) {
		// A named doctor on file wins; a placeholder never hides one the
		// patient just gave.
		pref := c.DoctorPreference
		if !booking.AnyDoctor(hit.DoctorPreference) {
			pref = hit.DoctorPreference
		}
		m.logger.Info("matched existing patient", "patient_id", hit.ID)
		return Resolution{
			Patient:          hit,
			PatientType:      records.PatientReturning,
			DurationMinutes:  records.DurationFor(records.PatientReturning),
			Exists:           true,
			DoctorPreference: pref,
		}, nil
	}

	created, err := m.repo.UpsertPatient(ctx, records.Patient{
		Name:             strings.TrimSpace(c.Name),
		DateOfBirth:      c.DateOfBirth,
		Email:            c.Email,
		Phone:            c.Phone,
		DoctorPreference: c.DoctorPreference,
		Location:         c.Location,
		PatientType:      records.PatientNew,
	})
	if err != nil {
		return Resolution{}, fmt.Errorf("create patient: %w", err)
	}
	m.logger.Info("registered new patient", "patient_id", created.ID)

	return Resolution{
		Patient:          *created,
		PatientType:      records.PatientNew,
		DurationMinutes:  records.DurationFor(records.PatientNew),
		Exists:           false,
		DoctorPreference: c.DoctorPreference,
	}, nil
}

// tentativeMatch applies, first hit wins: first name contained in the
// stored name plus equal DOB; equal e-mail ignoring case; the candidate's
// phone digits contained in the stored phone digits.
func tentativeMatch(patients []records.Patient, c Candidate) (records.Patient, bool) {
	first := strings.ToLower(firstName(c.Name))
	if first != "" && c.DateOfBirth != "" {
		for _, p := range patients {
			if strings.Contains(strings.ToLower(p.Name), first) && p.DateOfBirth == c.DateOfBirth {
				return p, true
			}
		}
	}

	if email := strings.TrimSpace(c.Email); email != "" {
		for _, p := range patients {
			if strings.EqualFold(strings.TrimSpace(p.Email), email) {
				return p, true
			}
		}
	}

	if digits := validate.Digits(c.Phone); digits != "" {
		for _, p := range patients {
			stored := validate.Digits(p.Phone)
			if stored != "" && strings.Contains(stored, digits) {
				return p, true
			}
		}
	}

	return records.Patient{}, false
}

// confirmed requires an exact name or e-mail somewhere in the record set.
func confirmed(patients []records.Patient, c Candidate) bool {
	name := strings.TrimSpace(c.Name)
	email := strings.TrimSpace(c.Email)
	for _, p := range patients {
		if name != "" && strings.EqualFold(strings.TrimSpace(p.Name), name) {
			return true
		}
		if email != "" && strings.EqualFold(strings.TrimSpace(p.Email), email) {
			return true
		}
	}
	return false
}

func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
