package chat

import (
	"context"
	"fmt"

	"github.com/hackgods/clinic-appointment-assistant/internal/extract"
	"github.com/hackgods/clinic-appointment-assistant/internal/matching"
	"github.com/hackgods/clinic-appointment-assistant/internal/records"
)

const (
	welcome      = "Hello! Welcome to our clinic's scheduling assistant. I can help you book an appointment."
	doctorTBD    = "To be determined"
	askDate      = "Please enter a date for your appointment in YYYY-MM-DD format."
	lookupFailed = "I'm sorry, I couldn't look up your record just now. Please send your last message again in a moment, or call the office."
)

var fieldPrompts = map[extract.Field]string{
	extract.FieldName:             "Could you please tell me your full name?",
	extract.FieldDateOfBirth:      "What is your date of birth?",
	extract.FieldEmail:            "What email address can we use to contact you?",
	extract.FieldPhone:            "What's the best phone number to reach you?",
	extract.FieldDoctorPreference: "Do you have a preferred doctor you'd like to see?",
	extract.FieldLocation:         "What city or location are you from?",
}

var invalidPrompts = map[extract.Field]string{
	extract.FieldDateOfBirth: "I couldn't read that date of birth. Please use YYYY-MM-DD or MM/DD/YYYY.",
	extract.FieldEmail:       "That email address doesn't look right. Could you check it and send it again?",
	extract.FieldPhone:       "I need a 10-digit phone number, for example 555-987-6543.",
}

// greeting collects the six required fields one at a time, then resolves
// the patient and moves straight on to scheduling.
func (e *Engine) greeting(ctx context.Context, msg string, st *SessionState) string {
	asked := st.Asking
	st.Patient.Merge(extract.Patient(msg, asked, e.now()))

	// A doctor question that yields nothing leaves the choice open.
	if asked == extract.FieldDoctorPreference && st.Patient.DoctorPreference == "" {
		st.Patient.DoctorPreference = doctorTBD
	}

	missing := st.Patient.Missing()
	if len(missing) > 0 {
		next := missing[0]
		st.Asking = next
		prompt := fieldPrompts[next]
		if asked == next && msg != "" {
			if bad, ok := invalidPrompts[next]; ok {
				return bad
			}
		}
		if asked == "" && st.Patient == (extract.PatientFields{}) {
			return welcome + " " + prompt
		}
		return e.phrase(ctx, fmt.Sprintf("Ask the patient only for their %s.", next), prompt)
	}

	st.Asking = ""
	st.Stage = StagePatientLookup
	return e.lookup(ctx, st)
}

func (e *Engine) lookup(ctx context.Context, st *SessionState) string {
	p := st.Patient
	res, err := e.deps.Matcher.Resolve(ctx, matching.Candidate{
		Name:             p.Name,
		DateOfBirth:      p.DateOfBirth,
		Email:            p.Email,
		Phone:            p.Phone,
		DoctorPreference: p.DoctorPreference,
		Location:         p.Location,
	})
	if err != nil {
		e.deps.Logger.Error("patient lookup failed", "error", err)
		st.Stage = StageGreeting
		return lookupFailed
	}

	st.PatientID = res.Patient.ID
	st.PatientType = res.PatientType
	st.Duration = res.DurationMinutes
	if res.DoctorPreference != "" {
		st.Patient.DoctorPreference = res.DoctorPreference
	}
	st.Stage = StageScheduling

	if res.PatientType == records.PatientReturning {
		return fmt.Sprintf("Welcome back, %s! I found your record. As a returning patient, your visit will be %d minutes. %s",
			p.Name, st.Duration, askDate)
	}
	return fmt.Sprintf("Thank you, %s. I couldn't find you in our records, so I've added you to our system as a new patient. "+
		"New patient visits are %d minutes. Let's continue with scheduling your appointment. %s",
		p.Name, st.Duration, askDate)
}
