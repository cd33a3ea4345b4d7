package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEmail(t *testing.T) {
	assert.True(t, Email("mike.davis@gmail.com"))
	assert.False(t, Email("mike.davis@gmail.com.com"))
	assert.False(t, Email("mike.davis@"))
	assert.False(t, Email(""))
}

func TestCleanEmail(t *testing.T) {
	got, ok := CleanEmail("  mike.davis@gmail.com.com ")
	assert.True(t, ok)
	assert.Equal(t, "mike.davis@gmail.com", got)

	got, ok = CleanEmail("mike.davis@gmail.com.")
	assert.True(t, ok)
	assert.Equal(t, "mike.davis@gmail.com", got)

	_, ok = CleanEmail("not an email")
	assert.False(t, ok)
}

func TestPhone(t *testing.T) {
	tests := map[string]string{
		"555-987-6543":   "555-987-6543",
		"(555) 987 6543": "555-987-6543",
		"5559876543":     "555-987-6543",
	}
	for in, want := range tests {
		got, ok := Phone(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	_, ok := Phone("987-6543")
	assert.False(t, ok)
}

func TestDateOfBirth(t *testing.T) {
	now := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	got, ok := DateOfBirth("12/10/1985", now)
	assert.True(t, ok)
	assert.Equal(t, "1985-12-10", got)

	got, ok = DateOfBirth("1985-12-10", now)
	assert.True(t, ok)
	assert.Equal(t, "1985-12-10", got)

	_, ok = DateOfBirth("2030-01-01", now)
	assert.False(t, ok)
	_, ok = DateOfBirth("yesterday", now)
	assert.False(t, ok)
}
