package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		enable slog.Level
		off    slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug, slog.LevelDebug - 4},
		{"warn level", "WARN", slog.LevelWarn, slog.LevelInfo},
		{"default info", "", slog.LevelInfo, slog.LevelDebug},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.level)
			assert.True(t, logger.Enabled(ctx, tt.enable))
			assert.False(t, logger.Enabled(ctx, tt.off))
		})
	}
}

func TestWithCarriesAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("info", &buf).With("service", "scheduler")
	logger.Info("hello", "k", 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "scheduler", rec["service"])
	assert.Equal(t, "hello", rec["msg"])
}
