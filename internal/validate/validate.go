// Package validate normalises patient-supplied contact details.
package validate

import (
	"regexp"
	"strings"
	"time"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

var nonDigit = regexp.MustCompile(`\D`)

// Email reports whether s is a plausible address. A doubled ".com" is
// rejected since it is the most common typo we see.
func Email(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.Count(s, ".com") > 1 {
		return false
	}
	return emailPattern.MatchString(s)
}

// CleanEmail trims s, drops one trailing duplicate ".com" and validates it.
func CleanEmail(s string) (string, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ".")
	if strings.HasSuffix(s, ".com.com") {
		s = strings.TrimSuffix(s, ".com")
	}
	if !Email(s) {
		return "", false
	}
	return s, true
}

// Digits strips everything but 0-9.
func Digits(s string) string {
	return nonDigit.ReplaceAllString(s, "")
}

// Phone accepts any formatting of a ten digit number and returns it as
// NNN-NNN-NNNN.
func Phone(s string) (string, bool) {
	d := Digits(s)
	if len(d) != 10 {
		return "", false
	}
	return d[:3] + "-" + d[3:6] + "-" + d[6:], true
}

var dobLayouts = []string{"2006-01-02", "01/02/2006", "1/2/2006", "01-02-2006", "1-2-2006", "2006/01/02"}

// DateOfBirth parses the accepted layouts and returns YYYY-MM-DD. Dates in
// the future or more than 130 years back are rejected.
func DateOfBirth(s string, now time.Time) (string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dobLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if t.After(now) || t.Before(now.AddDate(-130, 0, 0)) {
			return "", false
		}
		return t.Format("2006-01-02"), true
	}
	return "", false
}
