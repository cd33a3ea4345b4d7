package reminders

import "github.com/hackgods/clinic-appointment-assistant/internal/records"

// DetermineType picks the reminder due for an appointment daysUntil days
// away that has already had sent reminders. ok is false when nothing is due.
//
//	days  sent  type
//	0,1   0     2
//	0,1   1     3
//	2     0     1
func DetermineType(daysUntil, sent int) (records.ReminderType, bool) {
	switch {
	case daysUntil < 0 || daysUntil > 2:
		return 0, false
	case daysUntil <= 1 && sent == 0:
		return records.ReminderFormAndConfirm, true
	case daysUntil <= 1 && sent == 1:
		return records.ReminderFinal, true
	case daysUntil == 2 && sent == 0:
		return records.ReminderBasic, true
	default:
		return 0, false
	}
}
