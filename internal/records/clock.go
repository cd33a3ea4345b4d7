package records

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// ParseDate parses YYYY-MM-DD into a UTC-midnight civil date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DateOf returns the civil date of t in its own location as UTC midnight.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
}

// ClockMinutes parses "H:MM" or "HH:MM" into minutes past midnight.
func ClockMinutes(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || len(mm) != 2 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	if h == 24 && m != 0 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return h*60 + m, nil
}

func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// NormalizeClock rewrites a time so "9:00" and "09:00" compare equal.
func NormalizeClock(s string) (string, error) {
	m, err := ClockMinutes(s)
	if err != nil {
		return "", err
	}
	return FormatClock(m), nil
}

// AddMinutes returns start + d in HH:MM.
func AddMinutes(start string, d int) (string, error) {
	m, err := ClockMinutes(start)
	if err != nil {
		return "", err
	}
	return FormatClock(m + d), nil
}

// Span returns the normalized [start, end) of a booking.
func Span(start string, duration int) (string, string, error) {
	s, err := NormalizeClock(start)
	if err != nil {
		return "", "", err
	}
	if duration <= 0 {
		return "", "", fmt.Errorf("invalid duration %d", duration)
	}
	e, err := AddMinutes(s, duration)
	if err != nil {
		return "", "", err
	}
	return s, e, nil
}
