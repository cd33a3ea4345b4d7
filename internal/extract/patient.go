// Package extract pulls structured fields out of free-form patient messages.
package extract

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/hackgods/clinic-appointment-assistant/internal/validate"
)

// Field names one piece of patient information the assistant asks for.
type Field string

const (
	FieldName             Field = "name"
	FieldDateOfBirth      Field = "dob"
	FieldEmail            Field = "email"
	FieldPhone            Field = "phone"
	FieldDoctorPreference Field = "doctor"
	FieldLocation         Field = "location"
)

// RequiredFields is the elicitation order used by the greeting stage.
var RequiredFields = []Field{FieldName, FieldDateOfBirth, FieldEmail, FieldPhone, FieldDoctorPreference, FieldLocation}

// PatientFields is a partial patient record. Empty means unknown.
type PatientFields struct {
	Name             string `json:"name,omitempty"`
	DateOfBirth      string `json:"dob,omitempty"`
	Email            string `json:"email,omitempty"`
	Phone            string `json:"phone,omitempty"`
	DoctorPreference string `json:"doctor_preference,omitempty"`
	Location         string `json:"location,omitempty"`
}

func (p PatientFields) Get(f Field) string {
	switch f {
	case FieldName:
		return p.Name
	case FieldDateOfBirth:
		return p.DateOfBirth
	case FieldEmail:
		return p.Email
	case FieldPhone:
		return p.Phone
	case FieldDoctorPreference:
		return p.DoctorPreference
	case FieldLocation:
		return p.Location
	}
	return ""
}

func (p *PatientFields) set(f Field, v string) {
	switch f {
	case FieldName:
		p.Name = v
	case FieldDateOfBirth:
		p.DateOfBirth = v
	case FieldEmail:
		p.Email = v
	case FieldPhone:
		p.Phone = v
	case FieldDoctorPreference:
		p.DoctorPreference = v
	case FieldLocation:
		p.Location = v
	}
}

// Merge copies every non-empty field of o into p.
func (p *PatientFields) Merge(o PatientFields) {
	for _, f := range RequiredFields {
		if v := strings.TrimSpace(o.Get(f)); v != "" {
			p.set(f, v)
		}
	}
}

// Missing lists the required fields still empty, in elicitation order.
func (p PatientFields) Missing() []Field {
	var out []Field
	for _, f := range RequiredFields {
		if strings.TrimSpace(p.Get(f)) == "" {
			out = append(out, f)
		}
	}
	return out
}

var (
	labelled      = regexp.MustCompile(`(?i)\b(full name|name|date of birth|dob|birthday|e-?mail|phone number|phone|mobile|preferred doctor|doctor|location|city)\s*[:=]\s*([^,;\n]+)`)
	nameIs        = regexp.MustCompile(`(?i)\bname is\s+([^.,;\n]+)`)
	dobHint       = regexp.MustCompile(`(?i)\b(born on|born|dob|date of birth|birthday)\b`)
	phoneHint     = regexp.MustCompile(`(?i)\b(phone|number|mobile|cell)\b`)
	phoneish      = regexp.MustCompile(`\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}`)
	doctorMention = regexp.MustCompile(`(?i)\bdr\.?\s+([a-z][a-z'-]+)`)
	locationHint  = regexp.MustCompile(`(?i)\b(?:location is|located in|live in|living in|city is|from|location|city)\s+(?:is\s+|in\s+|the\s+)*([a-z][a-z .'-]*)`)
)

var locationStop = map[string]bool{
	"in": true, "at": true, "from": true, "the": true, "a": true, "an": true, "is": true,
	"are": true, "was": true, "were": true, "located": true, "live": true, "lives": true,
	"reside": true, "resides": true, "and": true, "my": true,
}

// Patient extracts whatever fields a single message carries. expecting is
// the field the assistant last asked for: a bare answer such as "Mike Davis"
// is attributed to it when nothing more specific is found. Values that fail
// validation are dropped so the caller re-prompts for them.
func Patient(message string, expecting Field, now time.Time) PatientFields {
	var out PatientFields
	msg := strings.TrimSpace(message)
	if msg == "" {
		return out
	}

	for _, m := range labelled.FindAllStringSubmatch(msg, -1) {
		value := strings.TrimSpace(m[2])
		switch label := strings.ToLower(m[1]); {
		case strings.Contains(label, "name"):
			out.Name = cleanName(value)
		case label == "dob" || strings.Contains(label, "birth"):
			if d, ok := validate.DateOfBirth(value, now); ok {
				out.DateOfBirth = d
			}
		case strings.Contains(label, "mail"):
			if e, ok := validate.CleanEmail(value); ok {
				out.Email = e
			}
		case strings.Contains(label, "phone") || label == "mobile":
			if p, ok := validate.Phone(value); ok {
				out.Phone = p
			}
		case strings.Contains(label, "doctor"):
			out.DoctorPreference = doctorName(value)
		case label == "location" || label == "city":
			out.Location = titleWords(value)
		}
	}

	if out.Name == "" {
		if m := nameIs.FindStringSubmatch(msg); m != nil {
			out.Name = cleanName(m[1])
		}
	}

	if out.Email == "" {
		for _, w := range strings.Fields(msg) {
			if strings.Contains(w, "@") {
				if e, ok := validate.CleanEmail(strings.Trim(w, ",;")); ok {
					out.Email = e
					break
				}
			}
		}
	}

	if out.DateOfBirth == "" && (dobHint.MatchString(msg) || expecting == FieldDateOfBirth) {
		for _, w := range strings.Fields(msg) {
			w = strings.Trim(w, ".,;")
			if !strings.ContainsAny(w, "/-") {
				continue
			}
			if d, ok := validate.DateOfBirth(w, now); ok {
				out.DateOfBirth = d
				break
			}
		}
	}

	if out.Phone == "" && (phoneHint.MatchString(msg) || expecting == FieldPhone) {
		for _, m := range phoneish.FindAllString(msg, -1) {
			if p, ok := validate.Phone(m); ok {
				out.Phone = p
				break
			}
		}
	}

	if out.DoctorPreference == "" {
		if m := doctorMention.FindStringSubmatch(msg); m != nil {
			out.DoctorPreference = doctorName(m[1])
		} else if expecting == FieldDoctorPreference && noPreference(msg) {
			out.DoctorPreference = "Any"
		}
	}

	if out.Location == "" {
		if m := locationHint.FindStringSubmatch(msg); m != nil {
			out.Location = location(m[1])
		}
	}

	// A bare answer to the question just asked.
	if expecting != "" && out.Get(expecting) == "" && !strings.ContainsAny(msg, ":@") {
		switch expecting {
		case FieldName:
			if looksLikeName(msg) {
				out.Name = cleanName(msg)
			}
		case FieldDoctorPreference:
			if looksLikeName(msg) && len(strings.Fields(msg)) <= 2 {
				out.DoctorPreference = doctorName(msg)
			}
		case FieldLocation:
			if looksLikeName(msg) {
				out.Location = titleWords(msg)
			}
		}
	}
	return out
}

func noPreference(msg string) bool {
	l := strings.ToLower(strings.Trim(strings.TrimSpace(msg), ".!"))
	if strings.Contains(l, "no preference") || strings.Contains(l, "any doctor") {
		return true
	}
	switch l {
	case "no", "none", "any", "anyone", "no one", "doesn't matter", "not really":
		return true
	}
	return false
}

// looksLikeName accepts up to four words of letters.
func looksLikeName(s string) bool {
	words := strings.Fields(s)
	if len(words) == 0 || len(words) > 4 {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsSpace(r) && !strings.ContainsRune(".'-", r) {
			return false
		}
	}
	return true
}

func cleanName(s string) string {
	if i := strings.Index(strings.ToLower(s), " and "); i > 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(strings.Trim(s, ".,;!"))
	return titleWords(s)
}

func doctorName(s string) string {
	s = strings.TrimSpace(strings.Trim(s, ".,;!"))
	lower := strings.ToLower(s)
	lower = strings.TrimPrefix(lower, "dr.")
	lower = strings.TrimPrefix(lower, "dr ")
	lower = strings.TrimSpace(lower)
	if lower == "" {
		return ""
	}
	words := strings.Fields(lower)
	return "Dr. " + titleWords(words[len(words)-1])
}

func location(s string) string {
	var words []string
	for _, w := range strings.Fields(strings.Trim(s, ".,;! ")) {
		if locationStop[strings.ToLower(w)] {
			if len(words) > 0 {
				break
			}
			continue
		}
		words = append(words, w)
		if len(words) == 3 {
			break
		}
	}
	loc := titleWords(strings.Join(words, " "))
	if len(loc) <= 2 {
		return ""
	}
	return loc
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
