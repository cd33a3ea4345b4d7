package reminders

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hackgods/clinic-appointment-assistant/internal/records"
)

func TestDetermineType(t *testing.T) {
	tests := []struct {
		days, sent int
		want       records.ReminderType
		due        bool
	}{
		{0, 0, records.ReminderFormAndConfirm, true},
		{0, 1, records.ReminderFinal, true},
		{0, 2, 0, false},
		{1, 0, records.ReminderFormAndConfirm, true},
		{1, 1, records.ReminderFinal, true},
		{1, 3, 0, false},
		{2, 0, records.ReminderBasic, true},
		{2, 1, 0, false},
		{3, 0, 0, false},
		{5, 0, 0, false},
		{5, 2, 0, false},
		{-1, 0, 0, false},
	}
	for _, tt := range tests {
		got, due := DetermineType(tt.days, tt.sent)
		assert.Equal(t, tt.due, due, "days=%d sent=%d", tt.days, tt.sent)
		assert.Equal(t, tt.want, got, "days=%d sent=%d", tt.days, tt.sent)
	}
}
