package chat

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/hackgods/clinic-appointment-assistant/internal/extract"
	"github.com/hackgods/clinic-appointment-assistant/internal/records"
)

var bareToken = regexp.MustCompile(`^[A-Za-z0-9-]{3,}$`)

func (e *Engine) insurance(ctx context.Context, msg string, st *SessionState) string {
	found := e.deps.Insurance.Extract(ctx, msg)
	if found.Empty() && bareToken.MatchString(msg) {
		// "AET123456" in answer to "what is your member ID?"
		switch {
		case st.Insurance.Carrier == "":
			found.Carrier = msg
		case st.Insurance.MemberID == "":
			found.MemberID = strings.ToUpper(msg)
		case st.Insurance.GroupNumber == "":
			found.GroupNumber = strings.ToUpper(msg)
		}
	}
	st.Insurance.Merge(found)

	if !st.Insurance.Complete() {
		missing := missingInsurance(st.Insurance)
		if found.Empty() {
			return fmt.Sprintf("I'm sorry, I couldn't find your insurance details in that message. Please provide your %s.", missing)
		}
		return fmt.Sprintf("Thank you. I still need your %s.", missing)
	}

	ins := st.Insurance
	if _, err := e.deps.Patients.UpdatePatientInsurance(ctx, st.PatientID, ins.Carrier, ins.MemberID, ins.GroupNumber); err != nil {
		e.deps.Logger.Error("failed to save insurance", "patient_id", st.PatientID, "error", err)
		return "I'm sorry, I couldn't save your insurance information. Please send it again, or call the office if this keeps happening."
	}
	st.Stage = StageConfirmation
	return summary(st) + "\n\nIs everything correct? Please type 'yes' to confirm or 'no' to make changes."
}

func missingInsurance(i extract.Insurance) string {
	var parts []string
	if i.Carrier == "" {
		parts = append(parts, "insurance carrier")
	}
	if i.MemberID == "" {
		parts = append(parts, "member ID")
	}
	if i.GroupNumber == "" {
		parts = append(parts, "group number")
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
}

func summary(st *SessionState) string {
	var b strings.Builder
	p := st.Patient
	b.WriteString("Here is a summary of your appointment:\n\n")
	b.WriteString("Patient Information:\n")
	fmt.Fprintf(&b, "- Name: %s\n- Date of Birth: %s\n- Email: %s\n- Phone: %s\n- Location: %s\n- Patient Type: %s\n\n",
		p.Name, p.DateOfBirth, p.Email, p.Phone, p.Location, st.PatientType)
	if s := st.Selected; s != nil {
		b.WriteString("Appointment Details:\n")
		fmt.Fprintf(&b, "- Doctor: %s\n- Date: %s\n- Time: %s - %s\n- Duration: %d minutes\n\n",
			s.Doctor, records.FormatDate(s.Date), s.StartTime, s.EndTime, st.Duration)
	}
	i := st.Insurance
	b.WriteString("Insurance Information:\n")
	fmt.Fprintf(&b, "- Carrier: %s\n- Member ID: %s\n- Group Number: %s", i.Carrier, i.MemberID, i.GroupNumber)
	return b.String()
}
