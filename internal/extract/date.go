package extract

import (
	"errors"
	"strings"
	"time"

	"github.com/hackgods/clinic-appointment-assistant/internal/records"
)

var (
	ErrNotADate = errors.New("not a YYYY-MM-DD date")
	ErrPastDate = errors.New("date is in the past")
)

// AppointmentDate parses a requested visit date. Only YYYY-MM-DD is
// accepted, and today counts as valid.
func AppointmentDate(message string, today time.Time) (time.Time, error) {
	s := strings.Trim(strings.TrimSpace(message), ".!")
	d, err := records.ParseDate(s)
	if err != nil {
		return time.Time{}, ErrNotADate
	}
	if d.Before(records.DateOf(today)) {
		return time.Time{}, ErrPastDate
	}
	return d, nil
}
