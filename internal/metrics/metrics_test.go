package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestAssistantMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAssistantMetrics(reg)

	m.ObserveChatTurn("greeting")
	m.ObserveChatTurn("greeting")
	m.ObserveBooking("booked", 0.02)
	m.ObserveReminder("2", true)
	m.ObserveReminder("2", false)
	m.ObserveFallback("error")

	assert.Equal(t, 2.0, counterValue(t, m.chatTurns.WithLabelValues("greeting")))
	assert.Equal(t, 1.0, counterValue(t, m.bookings.WithLabelValues("booked")))
	assert.Equal(t, 1.0, counterValue(t, m.reminders.WithLabelValues("2", "sent")))
	assert.Equal(t, 1.0, counterValue(t, m.reminders.WithLabelValues("2", "failed")))
	assert.Equal(t, 1.0, counterValue(t, m.fallbacks.WithLabelValues("error")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *AssistantMetrics
	assert.NotPanics(t, func() {
		m.ObserveChatTurn("x")
		m.ObserveBooking("x", 1)
		m.ObserveReminder("1", true)
		m.ObserveFallback("x")
	})
}
